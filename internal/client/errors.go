package client

import "errors"

// ConfigurationError 表示调用 Execute 前缺少必需的配置（URL 或缓存目录）。
type ConfigurationError struct {
	Reason string
}

func (e *ConfigurationError) Error() string {
	return e.Reason
}

var (
	errURLRequired        = &ConfigurationError{Reason: "URL required"}
	errDirectoryUndefined = &ConfigurationError{Reason: "cache directory undefined"}
)

// IsConfigurationError 判断 err 链上是否存在 ConfigurationError。
func IsConfigurationError(err error) bool {
	var cfgErr *ConfigurationError
	return errors.As(err, &cfgErr)
}
