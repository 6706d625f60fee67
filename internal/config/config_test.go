package config

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/any-hub/any-fetch/internal/transfer"
)

func TestLoadValidFile(t *testing.T) {
	cfg, err := Load(testConfigPath(t, "valid.toml"))
	if err != nil {
		t.Fatalf("Load 返回错误: %v", err)
	}
	if cfg.Cache.CacheDurationValue() != time.Hour {
		t.Fatalf("CacheDuration 应解析为 1h，得到 %s", cfg.Cache.CacheDurationValue())
	}
	if !filepath.IsAbs(cfg.Cache.Directory) {
		t.Fatalf("CacheDirectory 应转换为绝对路径: %s", cfg.Cache.Directory)
	}
	if len(cfg.Cache.CacheableStatus) != 2 {
		t.Fatalf("CacheableStatus 应保留两项，得到 %v", cfg.Cache.CacheableStatus)
	}
	if cfg.Transfer.RequestTimeout.DurationValue() != 15*time.Second {
		t.Fatalf("纯数字应按秒解析，得到 %s", cfg.Transfer.RequestTimeout.DurationValue())
	}
	if !cfg.Cache.RetryOnServerError {
		t.Fatalf("RetryOnServerError 应为 true")
	}
}

func TestLoadWithoutFileUsesDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("默认配置不应失败: %v", err)
	}
	if !cfg.Cache.Duration.IsDisabled() {
		t.Fatalf("默认 CacheDuration 应为 disabled")
	}
	if cfg.Cache.CacheDurationValue() >= 0 {
		t.Fatalf("disabled 应映射为负数")
	}
	if !cfg.Cache.RetryOnServerError {
		t.Fatalf("默认应对 5xx 重新回源")
	}
	if !cfg.Transfer.FollowRedirects || cfg.Transfer.MaxRedirects != 10 {
		t.Fatalf("默认跳转配置不符: %+v", cfg.Transfer)
	}
	if cfg.Global.ListenPort != 5080 {
		t.Fatalf("默认端口应为 5080，得到 %d", cfg.Global.ListenPort)
	}
}

func TestValidateEnforcesListenPortRange(t *testing.T) {
	cfg := validConfig()
	cfg.Global.ListenPort = 70000
	if err := cfg.Validate(); err == nil {
		t.Fatalf("ListenPort 超出范围应当报错")
	}
}

func TestValidateRequiresCacheDirectory(t *testing.T) {
	cfg := validConfig()
	cfg.Cache.Directory = ""
	err := cfg.Validate()
	fieldErr, ok := err.(FieldError)
	if !ok || fieldErr.Field != "CacheDirectory" {
		t.Fatalf("缺少缓存目录应返回 FieldError，得到 %v", err)
	}
}

func TestValidateRejectsNegativeRedirects(t *testing.T) {
	cfg := validConfig()
	cfg.Transfer.MaxRedirects = -1
	if err := cfg.Validate(); err == nil {
		t.Fatalf("负数跳转次数应当报错")
	}
}

func TestRequestOptionsFromTransferSection(t *testing.T) {
	cfg := validConfig()
	cfg.Transfer.UserAgent = "ua"
	cfg.Transfer.Headers = map[string]string{"accept": "text/plain"}

	opts := cfg.RequestOptions()
	if opts[transfer.OptUserAgent] != "ua" {
		t.Fatalf("UserAgent 未写入选项: %v", opts)
	}
	header, err := opts.Header()
	if err != nil || header.Get("Accept") != "text/plain" {
		t.Fatalf("Headers 未写入选项: %v %v", header, err)
	}
	if opts.MaxRedirects() != 3 {
		t.Fatalf("MaxRedirects 未写入选项: %v", opts)
	}
}

func validConfig() *Config {
	return &Config{
		Global: GlobalConfig{
			ListenPort: 5080,
			LogLevel:   "info",
		},
		Cache: CacheConfig{
			Directory:          "./data",
			Duration:           Disabled,
			RetryOnServerError: true,
		},
		Transfer: TransferConfig{
			RequestTimeout:  Duration(time.Second),
			FollowRedirects: true,
			MaxRedirects:    3,
		},
	}
}
