package cache

import (
	"crypto/sha1"
	"encoding/hex"
)

// FileExt 为缓存文件后缀，Sweep 仅清理该后缀的文件。
const FileExt = ".cache"

// DeriveKey 以 URL 的 SHA-1 作为缓存键，结果可直接用作文件名。
func DeriveKey(url string) string {
	sum := sha1.Sum([]byte(url))
	return hex.EncodeToString(sum[:])
}
