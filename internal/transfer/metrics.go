package transfer

// Metric 枚举传输层可提供的统计项；数值只在进程内有意义，落盘前需转换为稳定名称。
type Metric int

const (
	MetricEffectiveURL Metric = iota + 1
	MetricContentType
	MetricHTTPCode
	MetricHeaderSize
	MetricRequestSize
	MetricFiletime
	MetricSSLVerifyResult
	MetricRedirectCount
	MetricTotalTime
	MetricNameLookupTime
	MetricConnectTime
	MetricPretransferTime
	MetricSizeUpload
	MetricSizeDownload
	MetricSpeedDownload
	MetricSpeedUpload
	MetricContentLengthDownload
	MetricContentLengthUpload
	MetricStartTransferTime
	MetricRedirectTime
)

// AllMetrics 按枚举顺序列出全部统计项。
func AllMetrics() []Metric {
	metrics := make([]Metric, 0, int(MetricRedirectTime))
	for m := MetricEffectiveURL; m <= MetricRedirectTime; m++ {
		metrics = append(metrics, m)
	}
	return metrics
}

// Info 保存一次传输的统计数据。
type Info map[Metric]any

// HTTPCode 返回状态码，未收到响应时为 0。
func (i Info) HTTPCode() int {
	if code, ok := i[MetricHTTPCode].(int); ok {
		return code
	}
	return 0
}

// Result 为一次传输的完整结果。Errno 为 0 表示成功完成。
type Result struct {
	Body  []byte
	Info  Info
	Errno int
	Error string
}

// 错误码沿用 libcurl 的编号，便于与历史缓存互通。
const (
	ErrnoOK                  = 0
	ErrnoUnsupportedProtocol = 1
	ErrnoMalformedURL        = 3
	ErrnoResolveHost         = 6
	ErrnoConnect             = 7
	ErrnoTimeout             = 28
	ErrnoTooManyRedirects    = 47
	ErrnoRecv                = 56
)
