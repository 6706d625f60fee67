package server

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"

	"github.com/any-hub/any-fetch/internal/cache"
	"github.com/any-hub/any-fetch/internal/client"
	"github.com/any-hub/any-fetch/internal/transfer"
)

// Fetcher 抽象缓存抓取能力，测试中可注入假实现。
type Fetcher interface {
	Fetch(ctx context.Context, rawURL string) (*FetchResult, error)
	Clear(ctx context.Context, urls ...string) (int, error)
}

// FetchResult 为一次抓取对外暴露的结果。
type FetchResult struct {
	Body        []byte
	Status      string
	ContentType string
	Cached      bool
	Errno       int
	Error       string
}

// ServiceOptions 描述 CacheService 每次构造 CachedClient 时使用的参数。
type ServiceOptions struct {
	Directory          string
	Duration           time.Duration
	RetryOnServerError bool
	CacheableStatus    []string
	RequestOptions     transfer.Options
	Transfer           transfer.Transferer
	Logger             logrus.FieldLogger
}

// CacheService 为每个请求创建独立的 CachedClient，并用 singleflight 合并同一 URL 的并发抓取。
type CacheService struct {
	opts  ServiceOptions
	store cache.Store
	group singleflight.Group
}

// NewCacheService 校验状态码模式并构建整个服务共用的缓存存储。
func NewCacheService(opts ServiceOptions) (*CacheService, error) {
	if _, err := cache.CompileStatusPatterns(opts.CacheableStatus); err != nil {
		return nil, err
	}
	store, err := cache.NewStore(opts.Directory)
	if err != nil {
		return nil, err
	}
	return &CacheService{opts: opts, store: store}, nil
}

func (s *CacheService) newClient(rawURL string) *client.CachedClient {
	c := client.New(rawURL, s.opts.RequestOptions, s.opts.Transfer)
	c.SetLogger(s.opts.Logger)
	c.SetStore(s.store)
	c.SetCacheDuration(s.opts.Duration)
	c.SetRetryOnServerError(s.opts.RetryOnServerError)
	// 模式已在 NewCacheService 中校验。
	_ = c.SetCacheableStatusPatterns(s.opts.CacheableStatus)
	return c
}

// Fetch 通过缓存获取 URL；并发的相同请求只触发一次 Execute。
func (s *CacheService) Fetch(ctx context.Context, rawURL string) (*FetchResult, error) {
	value, err, _ := s.group.Do(cache.DeriveKey(rawURL), func() (interface{}, error) {
		c := s.newClient(rawURL)
		body, err := c.Execute(ctx)
		if err != nil {
			return nil, err
		}
		contentType, _ := c.Info(transfer.MetricContentType)
		ct, _ := contentType.(string)
		return &FetchResult{
			Body:        body,
			Status:      c.Status(),
			ContentType: ct,
			Cached:      c.IsCached(),
			Errno:       c.Errno(),
			Error:       c.ErrorMessage(),
		}, nil
	})
	if err != nil {
		return nil, err
	}
	return value.(*FetchResult), nil
}

// Clear 删除指定 URL 的缓存，未指定时清空目录。
func (s *CacheService) Clear(ctx context.Context, urls ...string) (int, error) {
	return s.newClient("").ClearCache(ctx, urls...)
}
