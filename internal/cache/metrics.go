package cache

import (
	"github.com/spf13/cast"

	"github.com/any-hub/any-fetch/internal/transfer"
)

// MetricName 将传输层的枚举映射为落盘使用的稳定名称，未知枚举返回空串。
func MetricName(m transfer.Metric) string {
	switch m {
	case transfer.MetricEffectiveURL:
		return "url"
	case transfer.MetricContentType:
		return "content_type"
	case transfer.MetricHTTPCode:
		return "http_code"
	case transfer.MetricHeaderSize:
		return "header_size"
	case transfer.MetricRequestSize:
		return "request_size"
	case transfer.MetricFiletime:
		return "filetime"
	case transfer.MetricSSLVerifyResult:
		return "ssl_verify_result"
	case transfer.MetricRedirectCount:
		return "redirect_count"
	case transfer.MetricTotalTime:
		return "total_time"
	case transfer.MetricNameLookupTime:
		return "namelookup_time"
	case transfer.MetricConnectTime:
		return "connect_time"
	case transfer.MetricPretransferTime:
		return "pretransfer_time"
	case transfer.MetricSizeUpload:
		return "size_upload"
	case transfer.MetricSizeDownload:
		return "size_download"
	case transfer.MetricSpeedDownload:
		return "speed_download"
	case transfer.MetricSpeedUpload:
		return "speed_upload"
	case transfer.MetricContentLengthDownload:
		return "download_content_length"
	case transfer.MetricContentLengthUpload:
		return "upload_content_length"
	case transfer.MetricStartTransferTime:
		return "starttransfer_time"
	case transfer.MetricRedirectTime:
		return "redirect_time"
	default:
		return ""
	}
}

// MetricByName 为 MetricName 的反查。
func MetricByName(name string) (transfer.Metric, bool) {
	for _, m := range transfer.AllMetrics() {
		if MetricName(m) == name {
			return m, true
		}
	}
	return 0, false
}

// NamedInfo 将传输统计转换为以稳定名称为键的表，并统一数值类型。
func NamedInfo(info transfer.Info) map[string]any {
	named := make(map[string]any, len(info))
	for m, value := range info {
		name := MetricName(m)
		if name == "" {
			continue
		}
		named[name] = normalizeMetric(m, value)
	}
	return named
}

// StatusOf 返回缓存中的 HTTP 状态码字符串；缺失时为空串。
func StatusOf(infos map[string]any) string {
	raw, ok := infos[MetricName(transfer.MetricHTTPCode)]
	if !ok || raw == nil {
		return ""
	}
	status, err := cast.ToStringE(raw)
	if err != nil {
		return ""
	}
	return status
}

func normalizeInfos(raw map[string]any) map[string]any {
	if raw == nil {
		return map[string]any{}
	}
	for name, value := range raw {
		if m, ok := MetricByName(name); ok {
			raw[name] = normalizeMetric(m, value)
		}
	}
	return raw
}

// normalizeMetric 使新鲜结果与回放结果拥有相同的 Go 类型：字符串、int64 或 float64。
func normalizeMetric(m transfer.Metric, value any) any {
	switch m {
	case transfer.MetricEffectiveURL, transfer.MetricContentType:
		return cast.ToString(value)
	case transfer.MetricHTTPCode,
		transfer.MetricHeaderSize,
		transfer.MetricRequestSize,
		transfer.MetricFiletime,
		transfer.MetricSSLVerifyResult,
		transfer.MetricRedirectCount:
		return cast.ToInt64(value)
	default:
		return cast.ToFloat64(value)
	}
}
