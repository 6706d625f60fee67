package transfer

import (
	"bytes"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/httptrace"
	"net/url"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

const (
	defaultMaxRedirects = 10
	defaultTimeout      = 30 * time.Second

	// ErrnoBadOption 表示选项无法被解析（对应 libcurl 的 BAD_FUNCTION_ARGUMENT）。
	ErrnoBadOption = 43
)

var errTooManyRedirects = errors.New("maximum redirects followed")

// Transferer 执行一次阻塞式请求。实现不得返回 Go error，失败需折叠进 Result。
type Transferer interface {
	Transfer(ctx context.Context, rawURL string, opts Options) Result
}

// Shared HTTP transport tunings，复用长连接并集中配置超时。
var defaultTransport = &http.Transport{
	Proxy:                 http.ProxyFromEnvironment,
	MaxIdleConns:          100,
	MaxIdleConnsPerHost:   100,
	IdleConnTimeout:       90 * time.Second,
	TLSHandshakeTimeout:   10 * time.Second,
	ExpectContinueTimeout: 1 * time.Second,
	ForceAttemptHTTP2:     true,
	DialContext: (&net.Dialer{
		Timeout:   30 * time.Second,
		KeepAlive: 30 * time.Second,
	}).DialContext,
}

// NewClient 返回带整体超时的 http.Client；timeout <= 0 时使用 30s。
func NewClient(timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &http.Client{
		Timeout:   timeout,
		Transport: defaultTransport.Clone(),
	}
}

// HTTPTransfer 基于 net/http 实现 Transferer，并通过 httptrace 采集耗时统计。
type HTTPTransfer struct {
	client *http.Client
	logger logrus.FieldLogger
	now    func() time.Time
}

// NewHTTPTransfer 使用给定 client 构造传输器；client 为空时使用 NewClient(0)。
func NewHTTPTransfer(client *http.Client, logger logrus.FieldLogger) *HTTPTransfer {
	if client == nil {
		client = NewClient(0)
	}
	if logger == nil {
		silent := logrus.New()
		silent.SetOutput(io.Discard)
		logger = silent
	}
	return &HTTPTransfer{
		client: client,
		logger: logger,
		now:    time.Now,
	}
}

// Transfer 执行请求并输出一条 transfer_complete 日志。
func (t *HTTPTransfer) Transfer(ctx context.Context, rawURL string, opts Options) Result {
	if ctx == nil {
		ctx = context.Background()
	}
	started := t.now()
	result := t.do(ctx, rawURL, opts, started)
	elapsed := t.now().Sub(started)

	fields := logrus.Fields{
		"action":     "transfer",
		"url":        rawURL,
		"method":     opts.Method(),
		"elapsed_ms": elapsed.Milliseconds(),
		"http_code":  result.Info.HTTPCode(),
	}
	if result.Errno != ErrnoOK {
		fields["errno"] = result.Errno
		t.logger.WithFields(fields).Warn(result.Error)
		return result
	}
	t.logger.WithFields(fields).Info("transfer_complete")
	return result
}

func (t *HTTPTransfer) do(ctx context.Context, rawURL string, opts Options, started time.Time) Result {
	info := emptyInfo(rawURL)

	parsed, err := url.Parse(rawURL)
	if err != nil || parsed.Host == "" {
		return failure(info, ErrnoMalformedURL, fmt.Sprintf("malformed URL: %q", rawURL))
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return failure(info, ErrnoUnsupportedProtocol, fmt.Sprintf("unsupported protocol: %q", parsed.Scheme))
	}

	header, err := opts.Header()
	if err != nil {
		return failure(info, ErrnoBadOption, err.Error())
	}
	body, err := opts.Body()
	if err != nil {
		return failure(info, ErrnoBadOption, err.Error())
	}
	timeout, err := opts.Timeout()
	if err != nil {
		return failure(info, ErrnoBadOption, err.Error())
	}
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	var timing traceTiming
	ctx = httptrace.WithClientTrace(ctx, timing.trace(started, t.now))

	req, err := http.NewRequestWithContext(ctx, opts.Method(), parsed.String(), bytes.NewReader(body))
	if err != nil {
		return failure(info, ErrnoMalformedURL, err.Error())
	}
	req.Header = header
	if ua := opts.stringValue(OptUserAgent); ua != "" {
		req.Header.Set("User-Agent", ua)
	}
	if user := opts.stringValue(OptUsername); user != "" {
		req.SetBasicAuth(user, opts.stringValue(OptPassword))
	}

	client := *t.client
	follow := opts.FollowRedirects()
	maxRedirects := opts.MaxRedirects()
	redirects := 0
	var redirectTime time.Duration
	client.CheckRedirect = func(next *http.Request, via []*http.Request) error {
		if !follow {
			return http.ErrUseLastResponse
		}
		if len(via) > maxRedirects {
			return errTooManyRedirects
		}
		redirects = len(via)
		redirectTime = t.now().Sub(started)
		return nil
	}

	info[MetricRequestSize] = requestSize(req)
	info[MetricSizeUpload] = float64(len(body))
	if body != nil {
		info[MetricContentLengthUpload] = float64(len(body))
	}

	resp, err := client.Do(req)
	total := t.now().Sub(started)
	timing.fill(info)
	info[MetricRedirectCount] = redirects
	info[MetricRedirectTime] = redirectTime.Seconds()
	info[MetricTotalTime] = total.Seconds()
	if err != nil {
		errno := classifyError(err)
		return failure(info, errno, err.Error())
	}
	defer resp.Body.Close()

	content, readErr := io.ReadAll(resp.Body)
	total = t.now().Sub(started)

	info[MetricEffectiveURL] = resp.Request.URL.String()
	info[MetricHTTPCode] = resp.StatusCode
	info[MetricContentType] = resp.Header.Get("Content-Type")
	info[MetricHeaderSize] = headerSize(resp)
	info[MetricFiletime] = filetime(resp.Header)
	info[MetricSizeDownload] = float64(len(content))
	info[MetricContentLengthDownload] = float64(resp.ContentLength)
	info[MetricTotalTime] = total.Seconds()
	if seconds := total.Seconds(); seconds > 0 {
		info[MetricSpeedDownload] = float64(len(content)) / seconds
		info[MetricSpeedUpload] = float64(len(body)) / seconds
	}
	if resp.TLS != nil {
		info[MetricSSLVerifyResult] = 0
	}

	if readErr != nil {
		errno := classifyError(readErr)
		return Result{Body: content, Info: info, Errno: errno, Error: readErr.Error()}
	}
	return Result{Body: content, Info: info}
}

func failure(info Info, errno int, msg string) Result {
	return Result{Info: info, Errno: errno, Error: msg}
}

// emptyInfo 预填所有统计项，保证即使失败也输出完整表。
func emptyInfo(rawURL string) Info {
	return Info{
		MetricEffectiveURL:          rawURL,
		MetricContentType:           "",
		MetricHTTPCode:              0,
		MetricHeaderSize:            0,
		MetricRequestSize:           0,
		MetricFiletime:              int64(-1),
		MetricSSLVerifyResult:       0,
		MetricRedirectCount:         0,
		MetricTotalTime:             0.0,
		MetricNameLookupTime:        0.0,
		MetricConnectTime:           0.0,
		MetricPretransferTime:       0.0,
		MetricSizeUpload:            0.0,
		MetricSizeDownload:          0.0,
		MetricSpeedDownload:         0.0,
		MetricSpeedUpload:           0.0,
		MetricContentLengthDownload: -1.0,
		MetricContentLengthUpload:   -1.0,
		MetricStartTransferTime:     0.0,
		MetricRedirectTime:          0.0,
	}
}

// classifyError 将 net/http 错误映射为 libcurl 风格的错误码。
func classifyError(err error) int {
	if errors.Is(err, errTooManyRedirects) {
		return ErrnoTooManyRedirects
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return ErrnoTimeout
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return ErrnoTimeout
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return ErrnoResolveHost
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) && opErr.Op == "dial" {
		return ErrnoConnect
	}
	return ErrnoRecv
}

func headerSize(resp *http.Response) int {
	size := len(fmt.Sprintf("%s %s\r\n", resp.Proto, resp.Status)) + 2
	for key, values := range resp.Header {
		for _, value := range values {
			size += len(key) + len(value) + 4
		}
	}
	return size
}

func requestSize(req *http.Request) int {
	size := len(fmt.Sprintf("%s %s HTTP/1.1\r\n", req.Method, req.URL.RequestURI())) + 2
	size += len("Host: \r\n") + len(req.URL.Host)
	for key, values := range req.Header {
		for _, value := range values {
			size += len(key) + len(value) + 4
		}
	}
	return size
}

func filetime(header http.Header) int64 {
	raw := header.Get("Last-Modified")
	if raw == "" {
		return -1
	}
	parsed, err := http.ParseTime(raw)
	if err != nil {
		return -1
	}
	return parsed.Unix()
}

// traceTiming 记录 httptrace 回调的相对耗时；跳转时保留最后一次请求的数据。
type traceTiming struct {
	mu            sync.Mutex
	nameLookup    time.Duration
	connect       time.Duration
	pretransfer   time.Duration
	startTransfer time.Duration
	sslFailed     bool
}

func (tt *traceTiming) trace(started time.Time, now func() time.Time) *httptrace.ClientTrace {
	record := func(dst *time.Duration) {
		elapsed := now().Sub(started)
		tt.mu.Lock()
		*dst = elapsed
		tt.mu.Unlock()
	}
	return &httptrace.ClientTrace{
		DNSDone: func(httptrace.DNSDoneInfo) {
			record(&tt.nameLookup)
		},
		ConnectDone: func(network, addr string, err error) {
			if err == nil {
				record(&tt.connect)
			}
		},
		TLSHandshakeDone: func(_ tls.ConnectionState, err error) {
			tt.mu.Lock()
			tt.sslFailed = err != nil
			tt.mu.Unlock()
		},
		GotConn: func(httptrace.GotConnInfo) {
			record(&tt.pretransfer)
		},
		GotFirstResponseByte: func() {
			record(&tt.startTransfer)
		},
	}
}

func (tt *traceTiming) fill(info Info) {
	tt.mu.Lock()
	defer tt.mu.Unlock()
	info[MetricNameLookupTime] = tt.nameLookup.Seconds()
	info[MetricConnectTime] = tt.connect.Seconds()
	info[MetricPretransferTime] = tt.pretransfer.Seconds()
	info[MetricStartTransferTime] = tt.startTransfer.Seconds()
	if tt.sslFailed {
		info[MetricSSLVerifyResult] = 1
	}
}
