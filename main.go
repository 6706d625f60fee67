package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"

	"github.com/any-hub/any-fetch/internal/client"
	"github.com/any-hub/any-fetch/internal/config"
	"github.com/any-hub/any-fetch/internal/logging"
	"github.com/any-hub/any-fetch/internal/server"
	"github.com/any-hub/any-fetch/internal/transfer"
	"github.com/any-hub/any-fetch/internal/version"
)

// cliOptions 汇总 CLI 标志解析后的结果，便于在测试中注入。
type cliOptions struct {
	configPath  string
	checkOnly   bool
	showVersion bool
	serve       bool
	url         string
	method      string
	clearURL    string
	clearAll    bool
}

var (
	stdOut io.Writer = os.Stdout
	stdErr io.Writer = os.Stderr
)

func main() {
	opts, err := parseCLIFlags(os.Args[1:])
	if err != nil {
		fmt.Fprintln(stdErr, err.Error())
		os.Exit(2)
	}
	os.Exit(run(opts))
}

// run 根据解析到的 CLI 选项执行业务流程，并返回退出码，方便测试。
func run(opts cliOptions) int {
	if opts.showVersion {
		printVersion()
		return 0
	}

	cfg, err := config.Load(opts.configPath)
	if err != nil {
		fmt.Fprintf(stdErr, "加载配置失败: %v\n", err)
		return 1
	}

	logger, err := logging.InitLogger(cfg.Global)
	if err != nil {
		fmt.Fprintf(stdErr, "初始化日志失败: %v\n", err)
		return 1
	}

	if opts.checkOnly {
		fields := logging.BaseFields("check_config", opts.configPath)
		fields["cache_directory"] = cfg.Cache.Directory
		fields["cacheable_status"] = cfg.Cache.CacheableStatus
		fields["result"] = "ok"
		logger.WithFields(fields).Info("配置校验通过")
		return 0
	}

	tr := transfer.NewHTTPTransfer(transfer.NewClient(cfg.Transfer.RequestTimeout.DurationValue()), logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	switch {
	case opts.serve:
		return runServer(ctx, cfg, tr, logger)
	case opts.clearAll || opts.clearURL != "":
		return runClear(ctx, cfg, tr, logger, opts)
	case opts.url != "":
		return runFetch(ctx, cfg, tr, logger, opts)
	default:
		fmt.Fprintln(stdErr, "需要指定 -url、-clear、-clear-all 或 -serve")
		return 2
	}
}

// newCachedClient 按配置构造缓存客户端，CLI 与 HTTP 服务共享同一套默认值。
func newCachedClient(cfg *config.Config, tr transfer.Transferer, logger logrus.FieldLogger, rawURL string) (*client.CachedClient, error) {
	c := client.New(rawURL, cfg.RequestOptions(), tr)
	c.SetLogger(logger)
	c.SetCacheDirectory(cfg.Cache.Directory)
	c.SetCacheDuration(cfg.Cache.CacheDurationValue())
	c.SetRetryOnServerError(cfg.Cache.RetryOnServerError)
	if err := c.SetCacheableStatusPatterns(cfg.Cache.CacheableStatus); err != nil {
		return nil, err
	}
	return c, nil
}

func runFetch(ctx context.Context, cfg *config.Config, tr transfer.Transferer, logger *logrus.Logger, opts cliOptions) int {
	c, err := newCachedClient(cfg, tr, logger, opts.url)
	if err != nil {
		fmt.Fprintf(stdErr, "初始化缓存客户端失败: %v\n", err)
		return 1
	}
	if opts.method != "" {
		c.SetOption(transfer.OptMethod, opts.method)
	}

	body, err := c.Execute(ctx)
	if err != nil {
		fmt.Fprintf(stdErr, "请求失败: %v\n", err)
		return 1
	}
	if c.Errno() != transfer.ErrnoOK {
		fmt.Fprintf(stdErr, "传输失败 (errno %d): %s\n", c.Errno(), c.ErrorMessage())
		return 1
	}
	if _, err := stdOut.Write(body); err != nil {
		return 1
	}
	return 0
}

func runClear(ctx context.Context, cfg *config.Config, tr transfer.Transferer, logger *logrus.Logger, opts cliOptions) int {
	c, err := newCachedClient(cfg, tr, logger, "")
	if err != nil {
		fmt.Fprintf(stdErr, "初始化缓存客户端失败: %v\n", err)
		return 1
	}

	var removed int
	if opts.clearAll {
		removed, err = c.ClearCache(ctx)
	} else {
		removed, err = c.ClearCache(ctx, opts.clearURL)
	}
	fmt.Fprintf(stdOut, "removed %d\n", removed)
	if err != nil {
		fmt.Fprintf(stdErr, "清理缓存失败: %v\n", err)
		return 1
	}
	return 0
}

func runServer(ctx context.Context, cfg *config.Config, tr transfer.Transferer, logger *logrus.Logger) int {
	svc, err := server.NewCacheService(server.ServiceOptions{
		Directory:          cfg.Cache.Directory,
		Duration:           cfg.Cache.CacheDurationValue(),
		RetryOnServerError: cfg.Cache.RetryOnServerError,
		CacheableStatus:    cfg.Cache.CacheableStatus,
		RequestOptions:     cfg.RequestOptions(),
		Transfer:           tr,
		Logger:             logger,
	})
	if err != nil {
		fmt.Fprintf(stdErr, "初始化缓存服务失败: %v\n", err)
		return 1
	}

	app, err := server.NewApp(server.AppOptions{
		Logger:     logger,
		Fetcher:    svc,
		ListenPort: cfg.Global.ListenPort,
		Version:    version.Full(),
	})
	if err != nil {
		fmt.Fprintf(stdErr, "HTTP 服务初始化失败: %v\n", err)
		return 1
	}

	logger.WithFields(logrus.Fields{
		"action":          "listen",
		"port":            cfg.Global.ListenPort,
		"cache_directory": cfg.Cache.Directory,
		"version":         version.Full(),
	}).Info("Fiber 服务启动")

	go func() {
		<-ctx.Done()
		_ = app.Shutdown()
	}()

	if err := app.Listen(fmt.Sprintf(":%d", cfg.Global.ListenPort)); err != nil {
		fmt.Fprintf(stdErr, "HTTP 服务启动失败: %v\n", err)
		return 1
	}
	return 0
}

// parseCLIFlags 解析 CLI 参数，并结合环境变量计算最终的配置路径。
func parseCLIFlags(args []string) (cliOptions, error) {
	fs := flag.NewFlagSet("any-fetch", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	var opts cliOptions
	var configFlag string

	fs.StringVar(&configFlag, "config", "", "配置文件路径（可被 ANY_FETCH_CONFIG 覆盖，缺省时仅使用默认值）")
	fs.BoolVar(&opts.checkOnly, "check-config", false, "仅校验配置后退出")
	fs.BoolVar(&opts.showVersion, "version", false, "显示版本信息")
	fs.BoolVar(&opts.serve, "serve", false, "启动 HTTP 服务")
	fs.StringVar(&opts.url, "url", "", "通过缓存抓取的 URL，正文输出到 stdout")
	fs.StringVar(&opts.method, "method", "", "HTTP 方法（默认 GET）")
	fs.StringVar(&opts.clearURL, "clear", "", "删除指定 URL 的缓存")
	fs.BoolVar(&opts.clearAll, "clear-all", false, "清空缓存目录")

	if err := fs.Parse(args); err != nil {
		return cliOptions{}, fmt.Errorf("解析参数失败: %w", err)
	}

	path := os.Getenv("ANY_FETCH_CONFIG")
	if configFlag != "" {
		path = configFlag
	}
	opts.configPath = path
	return opts, nil
}
