package cache

import (
	"context"
	"time"
)

// Store 负责管理磁盘缓存的读写。磁盘布局遵循：
//
//	<CacheDirectory>/<sha1(url)>.cache    # JSON 序列化的 Entry
//
// 文件的 ModTime 即写入时间，供 Policy 计算新鲜度。
type Store interface {
	// Dir 返回缓存目录的绝对路径。
	Dir() string

	// Ensure 确认缓存目录仍然存在，被外部删除时重新创建。
	Ensure() error

	// Get 读取并解码缓存条目。不存在返回 ErrNotFound，无法打开返回 *IOError，
	// 内容损坏返回 *CorruptEntryError。
	Get(ctx context.Context, key string) (*Record, error)

	// Put 通过临时文件 + rename 原子写入整个条目，覆盖旧内容。
	Put(ctx context.Context, key string, entry Entry) (*Record, error)

	// Remove 删除单个缓存文件，返回文件此前是否存在。
	Remove(ctx context.Context, key string) (bool, error)

	// Sweep 删除目录下所有 *.cache 文件；单个失败不会中断，返回成功删除数与汇总错误。
	Sweep(ctx context.Context) (int, error)
}

// Record 组合解码后的 Entry 与其文件信息。
type Record struct {
	Key      string
	FilePath string
	ModTime  time.Time
	Entry    Entry
}
