package cache

import (
	"bytes"
	"encoding/json"

	"github.com/any-hub/any-fetch/internal/transfer"
)

// Entry 是单个 URL 的完整缓存记录，整体写入、整体读取。
type Entry struct {
	Content []byte           `json:"content"`
	Options transfer.Options `json:"options"`
	Infos   map[string]any   `json:"infos"`
	Errno   int              `json:"errno"`
	Errmsg  string           `json:"errmsg"`
}

// NewEntry 根据一次传输结果与请求选项构造缓存记录。
func NewEntry(result transfer.Result, opts transfer.Options) Entry {
	return Entry{
		Content: result.Body,
		Options: opts,
		Infos:   NamedInfo(result.Info),
		Errno:   result.Errno,
		Errmsg:  result.Error,
	}
}

// Status 返回记录中的 HTTP 状态码字符串。
func (e Entry) Status() string {
	return StatusOf(e.Infos)
}

// Encode 序列化为 JSON；Content 以 base64 保存，可安全承载二进制。
func (e Entry) Encode() ([]byte, error) {
	return json.Marshal(e)
}

// DecodeEntry 解析 Encode 的输出；数字按 json.Number 读取以保证精度。
func DecodeEntry(data []byte) (*Entry, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var entry Entry
	if err := dec.Decode(&entry); err != nil {
		return nil, err
	}
	entry.Infos = normalizeInfos(entry.Infos)
	return &entry, nil
}
