package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Duration 提供更灵活的反序列化能力，同时兼容纯秒整数、Go Duration 字符串与 "disabled"。
type Duration time.Duration

// Disabled 表示关闭按时间淘汰（CacheDuration = "disabled" / false）。
const Disabled Duration = -1

// UnmarshalText 使 Viper 可以识别诸如 "30s"、"5m"、纯数字秒值或 disabled 等配置写法。
func (d *Duration) UnmarshalText(text []byte) error {
	raw := strings.TrimSpace(string(text))
	if raw == "" {
		*d = Duration(0)
		return nil
	}

	if isDisabledKeyword(raw) {
		*d = Disabled
		return nil
	}

	if seconds, err := time.ParseDuration(raw); err == nil {
		*d = Duration(seconds)
		return nil
	}

	if intVal, err := parseInt(raw); err == nil {
		*d = Duration(time.Duration(intVal) * time.Second)
		return nil
	}

	return fmt.Errorf("invalid duration value: %s", raw)
}

// DurationValue 返回真实的 time.Duration，便于调用方计算。
func (d Duration) DurationValue() time.Duration {
	return time.Duration(d)
}

// IsDisabled 表示该时长是否为关闭状态（负数）。
func (d Duration) IsDisabled() bool {
	return d < 0
}

func isDisabledKeyword(raw string) bool {
	switch strings.ToLower(raw) {
	case "disabled", "never", "off", "false":
		return true
	}
	return false
}

// parseInt 支持十进制或 0x 前缀的十六进制字符串解析。
func parseInt(value string) (int64, error) {
	if strings.HasPrefix(value, "0x") || strings.HasPrefix(value, "0X") {
		return strconv.ParseInt(value, 0, 64)
	}
	return strconv.ParseInt(value, 10, 64)
}

// GlobalConfig 描述进程级运行参数：日志与 HTTP 服务端口。
type GlobalConfig struct {
	ListenPort    int    `mapstructure:"ListenPort"`
	LogLevel      string `mapstructure:"LogLevel"`
	LogFormat     string `mapstructure:"LogFormat"`
	LogFilePath   string `mapstructure:"LogFilePath"`
	LogMaxSize    int    `mapstructure:"LogMaxSize"`
	LogMaxBackups int    `mapstructure:"LogMaxBackups"`
	LogCompress   bool   `mapstructure:"LogCompress"`
}

// CacheConfig 决定缓存目录、新鲜度窗口与可落盘的状态码。
type CacheConfig struct {
	Directory          string   `mapstructure:"CacheDirectory"`
	Duration           Duration `mapstructure:"CacheDuration"`
	RetryOnServerError bool     `mapstructure:"RetryOnServerError"`
	CacheableStatus    []string `mapstructure:"CacheableStatus"`
}

// TransferConfig 为每次请求提供默认选项。
type TransferConfig struct {
	RequestTimeout  Duration          `mapstructure:"RequestTimeout"`
	UserAgent       string            `mapstructure:"UserAgent"`
	FollowRedirects bool              `mapstructure:"FollowRedirects"`
	MaxRedirects    int               `mapstructure:"MaxRedirects"`
	Headers         map[string]string `mapstructure:"Headers"`
}

// Config 是 TOML 文件映射的整体结构。
type Config struct {
	Global   GlobalConfig   `mapstructure:",squash"`
	Cache    CacheConfig    `mapstructure:",squash"`
	Transfer TransferConfig `mapstructure:",squash"`
}

// CacheDurationValue 返回缓存窗口；关闭时返回负数，与 cache.NoExpiry 对齐。
func (c CacheConfig) CacheDurationValue() time.Duration {
	if c.Duration.IsDisabled() {
		return -1
	}
	return c.Duration.DurationValue()
}
