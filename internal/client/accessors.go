package client

import (
	"github.com/any-hub/any-fetch/internal/cache"
	"github.com/any-hub/any-fetch/internal/transfer"
)

// Content 返回最近一次 Execute 的正文。
func (c *CachedClient) Content() []byte { return c.content }

// Info 返回单个统计项，未采集时 ok 为 false。
func (c *CachedClient) Info(m transfer.Metric) (any, bool) {
	value, ok := c.infos[cache.MetricName(m)]
	return value, ok
}

// Infos 返回以稳定名称为键的全部统计项副本。
func (c *CachedClient) Infos() map[string]any {
	out := make(map[string]any, len(c.infos))
	for k, v := range c.infos {
		out[k] = v
	}
	return out
}

// Status 返回最近一次响应的 HTTP 状态码字符串。
func (c *CachedClient) Status() string { return cache.StatusOf(c.infos) }

// Errno 返回最近一次传输的错误码，0 表示成功。
func (c *CachedClient) Errno() int { return c.errno }

// ErrorMessage 返回最近一次传输的错误描述。
func (c *CachedClient) ErrorMessage() string { return c.errmsg }

// URL 返回当前绑定的 URL。
func (c *CachedClient) URL() string { return c.url }

// IsCached 表示最近一次 Execute 是否命中缓存。
func (c *CachedClient) IsCached() bool { return c.isCached }

// Options 返回当前请求选项的副本。
func (c *CachedClient) Options() transfer.Options { return c.options.Clone() }

// CacheDirectory 返回配置的缓存目录。
func (c *CachedClient) CacheDirectory() string { return c.directory }

// Policy 返回当前缓存策略的副本。
func (c *CachedClient) Policy() cache.Policy { return c.policy }
