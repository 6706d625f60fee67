package main

import (
	"bytes"
	"testing"
)

// useBufferWriters 在测试期间把 CLI 的 stdout/stderr 指向内存缓冲区，结束后自动还原。
func useBufferWriters(t *testing.T) {
	t.Helper()

	prevOut, prevErr := stdOut, stdErr
	stdOut, stdErr = new(bytes.Buffer), new(bytes.Buffer)
	t.Cleanup(func() {
		stdOut, stdErr = prevOut, prevErr
	})
}

// stdOutBuffer 返回当前捕获的正文输出；未调用 useBufferWriters 时为 nil。
func stdOutBuffer() *bytes.Buffer {
	return capturedBuffer(stdOut)
}

// stdErrBuffer 返回当前捕获的错误输出。
func stdErrBuffer() *bytes.Buffer {
	return capturedBuffer(stdErr)
}

func capturedBuffer(w interface{}) *bytes.Buffer {
	buf, _ := w.(*bytes.Buffer)
	return buf
}
