package client

import (
	"context"
	"errors"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cast"

	"github.com/any-hub/any-fetch/internal/cache"
	"github.com/any-hub/any-fetch/internal/logging"
	"github.com/any-hub/any-fetch/internal/transfer"
)

// CachedClient 负责 orchestrate “读缓存 → 判定 → 回源 → 写缓存” 的全流程。
type CachedClient struct {
	transfer transfer.Transferer
	logger   logrus.FieldLogger
	now      func() time.Time

	url       string
	options   transfer.Options
	directory string
	policy    cache.Policy
	store     cache.Store

	content  []byte
	infos    map[string]any
	errno    int
	errmsg   string
	isCached bool
}

// New 构建缓存客户端；opts 中的 url 选项会覆盖 rawURL。
func New(rawURL string, opts transfer.Options, tr transfer.Transferer) *CachedClient {
	c := &CachedClient{
		transfer: tr,
		logger:   logging.Discard(),
		now:      time.Now,
		policy:   cache.DefaultPolicy(),
	}
	c.Init(rawURL)
	if len(opts) > 0 {
		c.SetOptions(opts)
	}
	return c
}

// SetLogger 注入 logger；nil 表示静默。
func (c *CachedClient) SetLogger(logger logrus.FieldLogger) {
	if logger == nil {
		logger = logging.Discard()
	}
	c.logger = logger
}

// SetCacheDirectory 设置缓存目录，目录在下一次 Execute 时按需创建。
func (c *CachedClient) SetCacheDirectory(dir string) {
	if dir != c.directory {
		c.store = nil
	}
	c.directory = dir
}

// SetStore 注入共享的缓存存储，多个客户端复用同一把按 key 的锁；目录随之切换为 store.Dir()。
func (c *CachedClient) SetStore(store cache.Store) {
	if store == nil {
		c.store = nil
		return
	}
	c.store = store
	c.directory = store.Dir()
}

// SetCacheDuration 设置新鲜度窗口；传入 cache.NoExpiry 表示不按年龄淘汰。
func (c *CachedClient) SetCacheDuration(d time.Duration) {
	c.policy.Duration = d
}

// SetRetryOnServerError 控制缓存的 5xx 响应是否强制回源，默认开启。
func (c *CachedClient) SetRetryOnServerError(retry bool) {
	c.policy.RetryOnServerError = retry
}

// SetCacheableStatusPatterns 设置允许落盘的状态码白名单（整串匹配的正则，如 "2.."）。
func (c *CachedClient) SetCacheableStatusPatterns(patterns []string) error {
	return c.policy.SetStatusPatterns(patterns)
}

// SetOption 设置单个请求选项；url 选项同时更新客户端 URL。
func (c *CachedClient) SetOption(key transfer.Option, value any) {
	if key == transfer.OptURL {
		c.url = cast.ToString(value)
	}
	c.options[key] = value
}

// SetOptions 批量合并请求选项。
func (c *CachedClient) SetOptions(opts transfer.Options) {
	for key, value := range opts {
		c.SetOption(key, value)
	}
}

// Init 重置所有请求级状态并绑定新的 URL，不触碰已落盘的缓存。
func (c *CachedClient) Init(rawURL string) {
	c.url = rawURL
	c.options = transfer.Options{}
	c.content = nil
	c.infos = map[string]any{}
	c.errno = transfer.ErrnoOK
	c.errmsg = ""
	c.isCached = false
}

// Close 等价于 Init("")。
func (c *CachedClient) Close() {
	c.Init("")
}

// Execute 返回响应正文：命中时取自缓存，否则同步回源并按白名单决定是否落盘。
// 传输失败不会返回 error，而是体现在 Errno/ErrorMessage 上。
func (c *CachedClient) Execute(ctx context.Context) ([]byte, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if c.url == "" {
		return nil, errURLRequired
	}
	store, err := c.ensureStore()
	if err != nil {
		return nil, err
	}

	key := cache.DeriveKey(c.url)
	c.isCached = false

	record, err := store.Get(ctx, key)
	var corrupt *cache.CorruptEntryError
	switch {
	case err == nil:
	case errors.Is(err, cache.ErrNotFound):
		record = nil
	case errors.As(err, &corrupt):
		c.logger.WithError(err).
			WithFields(logging.FetchFields(c.url, key, false)).
			WithField("action", "cache_corrupt").
			Warn("cache entry unreadable, refetching")
		record = nil
	default:
		return nil, err
	}

	decision := c.policy.WithClock(c.now).Evaluate(record, c.options)
	fields := logging.FetchFields(c.url, key, decision.Hit)
	fields["reason"] = string(decision.Reason)
	if decision.Status != "" {
		fields["cached_status"] = decision.Status
	}

	if decision.Hit {
		c.adopt(record.Entry.Content, record.Entry.Infos, record.Entry.Errno, record.Entry.Errmsg)
		c.isCached = true
		fields["action"] = "cache_hit"
		c.logger.WithFields(fields).Info("served from cache")
		return c.content, nil
	}

	fields["action"] = "cache_miss"
	c.logger.WithFields(fields).Debug("cache miss")

	return c.fetch(ctx, store, key)
}

func (c *CachedClient) fetch(ctx context.Context, store cache.Store, key string) ([]byte, error) {
	opts := c.options.Clone()
	result := c.transfer.Transfer(ctx, c.url, opts)
	entry := cache.NewEntry(result, opts)
	status := entry.Status()

	fields := logging.FetchFields(c.url, key, false)
	fields["status"] = status
	if result.Errno != transfer.ErrnoOK {
		fields["errno"] = result.Errno
	}

	if c.policy.Cacheable(status) {
		if _, err := store.Put(ctx, key, entry); err != nil {
			return nil, err
		}
		fields["action"] = "cache_store"
		c.logger.WithFields(fields).Debug("response cached")
	} else {
		fields["action"] = "cache_skip_store"
		c.logger.WithFields(fields).Info("status not cacheable, response not stored")
	}

	c.adopt(entry.Content, entry.Infos, entry.Errno, entry.Errmsg)
	return c.content, nil
}

// ClearCache 带 URL 时删除该 URL 的缓存文件并返回 1/0；不带参数时清空整个目录并返回删除数。
func (c *CachedClient) ClearCache(ctx context.Context, urls ...string) (int, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	store, err := c.ensureStore()
	if err != nil {
		return 0, err
	}

	if len(urls) == 0 {
		removed, err := store.Sweep(ctx)
		c.logger.WithFields(logrus.Fields{
			"action":  "cache_clear",
			"removed": removed,
		}).Info("cache directory cleared")
		return removed, err
	}

	removed := 0
	for _, u := range urls {
		ok, err := store.Remove(ctx, cache.DeriveKey(u))
		if err != nil {
			return removed, err
		}
		if ok {
			removed++
		}
	}
	c.logger.WithFields(logrus.Fields{
		"action":  "cache_clear",
		"urls":    urls,
		"removed": removed,
	}).Info("cache entries cleared")
	return removed, nil
}

func (c *CachedClient) ensureStore() (cache.Store, error) {
	if c.directory == "" {
		return nil, errDirectoryUndefined
	}
	if c.store != nil {
		if err := c.store.Ensure(); err != nil {
			return nil, err
		}
		return c.store, nil
	}
	store, err := cache.NewStore(c.directory)
	if err != nil {
		return nil, err
	}
	c.store = store
	return store, nil
}

func (c *CachedClient) adopt(content []byte, infos map[string]any, errno int, errmsg string) {
	c.content = content
	c.infos = infos
	if c.infos == nil {
		c.infos = map[string]any{}
	}
	c.errno = errno
	c.errmsg = errmsg
}
