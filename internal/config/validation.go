package config

import (
	"errors"
	"strings"

	"github.com/any-hub/any-fetch/internal/cache"
)

// Validate 针对语义级别做进一步校验，防止非法配置启动。
func (c *Config) Validate() error {
	if c == nil {
		return errors.New("配置为空")
	}

	g := c.Global
	if g.ListenPort <= 0 || g.ListenPort > 65535 {
		return newFieldError("ListenPort", "必须在 1-65535")
	}

	switch strings.ToLower(strings.TrimSpace(g.LogFormat)) {
	case "", "json", "text":
	default:
		return newFieldError("LogFormat", "仅支持 json/text")
	}

	if c.Cache.Directory == "" {
		return newFieldError("CacheDirectory", "不能为空")
	}
	if _, err := cache.CompileStatusPatterns(c.Cache.CacheableStatus); err != nil {
		return newFieldError("CacheableStatus", err.Error())
	}

	t := c.Transfer
	if t.RequestTimeout.DurationValue() <= 0 {
		return newFieldError("RequestTimeout", "必须大于 0")
	}
	if t.MaxRedirects < 0 {
		return newFieldError("MaxRedirects", "不能为负数")
	}

	return nil
}
