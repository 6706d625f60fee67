package config

import "github.com/any-hub/any-fetch/internal/transfer"

// RequestOptions 将 Transfer 段落转换为每次请求的默认选项；这些选项参与缓存一致性比较。
func (c *Config) RequestOptions() transfer.Options {
	t := c.Transfer
	opts := transfer.Options{
		transfer.OptFollowRedirects: t.FollowRedirects,
		transfer.OptMaxRedirects:    t.MaxRedirects,
	}
	if t.UserAgent != "" {
		opts[transfer.OptUserAgent] = t.UserAgent
	}
	if len(t.Headers) > 0 {
		headers := make(map[string]string, len(t.Headers))
		for key, value := range t.Headers {
			headers[key] = value
		}
		opts[transfer.OptHeaders] = headers
	}
	return opts
}
