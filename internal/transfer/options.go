package transfer

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/spf13/cast"
)

// Option 标识一次传输的可配置项，取值保持稳定以便落盘后可回放比较。
type Option string

const (
	OptURL             Option = "url"
	OptMethod          Option = "method"
	OptHeaders         Option = "headers"
	OptBody            Option = "body"
	OptTimeout         Option = "timeout"
	OptFollowRedirects Option = "follow_redirects"
	OptMaxRedirects    Option = "max_redirects"
	OptUserAgent       Option = "user_agent"
	OptUsername        Option = "username"
	OptPassword        Option = "password"
)

// Options 为 Option → 值的映射，原样传递给 Transferer。
type Options map[Option]any

// Clone 返回浅拷贝，避免调用方后续修改影响已提交的请求。
func (o Options) Clone() Options {
	out := make(Options, len(o))
	for k, v := range o {
		out[k] = v
	}
	return out
}

// Canonical 返回确定性的 JSON 编码（键有序），nil 与空表等价。
func (o Options) Canonical() ([]byte, error) {
	if o == nil {
		o = Options{}
	}
	return json.Marshal(o)
}

// Equal 按规范编码逐键逐值比较，使内存中的选项与落盘后读回的选项可以直接对比。
func (o Options) Equal(other Options) bool {
	a, err := o.Canonical()
	if err != nil {
		return false
	}
	b, err := other.Canonical()
	if err != nil {
		return false
	}
	return bytes.Equal(a, b)
}

// Method 返回大写的 HTTP 方法，默认 GET。
func (o Options) Method() string {
	raw, ok := o[OptMethod]
	if !ok {
		return http.MethodGet
	}
	method := strings.ToUpper(strings.TrimSpace(cast.ToString(raw)))
	if method == "" {
		return http.MethodGet
	}
	return method
}

// Header 将 headers 选项整理为 http.Header，兼容 map[string]string / map[string][]string 等写法。
func (o Options) Header() (http.Header, error) {
	header := http.Header{}
	raw, ok := o[OptHeaders]
	if !ok || raw == nil {
		return header, nil
	}

	switch v := raw.(type) {
	case http.Header:
		for key, values := range v {
			for _, value := range values {
				header.Add(key, value)
			}
		}
		return header, nil
	case []string:
		for _, line := range v {
			key, value, found := strings.Cut(line, ":")
			if !found {
				return nil, fmt.Errorf("invalid header line: %q", line)
			}
			header.Add(strings.TrimSpace(key), strings.TrimSpace(value))
		}
		return header, nil
	}

	values, err := cast.ToStringMapStringSliceE(raw)
	if err != nil {
		return nil, fmt.Errorf("invalid headers option: %w", err)
	}
	for key, list := range values {
		for _, value := range list {
			header.Add(key, value)
		}
	}
	return header, nil
}

// Body 返回请求体；字符串与字节切片均可。
func (o Options) Body() ([]byte, error) {
	raw, ok := o[OptBody]
	if !ok || raw == nil {
		return nil, nil
	}
	if b, ok := raw.([]byte); ok {
		return b, nil
	}
	s, err := cast.ToStringE(raw)
	if err != nil {
		return nil, fmt.Errorf("invalid body option: %w", err)
	}
	return []byte(s), nil
}

// Timeout 支持 time.Duration、Go duration 字符串或按秒计的数字。
func (o Options) Timeout() (time.Duration, error) {
	raw, ok := o[OptTimeout]
	if !ok || raw == nil {
		return 0, nil
	}
	switch v := raw.(type) {
	case time.Duration:
		return v, nil
	case string:
		if d, err := time.ParseDuration(v); err == nil {
			return d, nil
		}
	}
	seconds, err := cast.ToFloat64E(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid timeout option: %w", err)
	}
	return time.Duration(seconds * float64(time.Second)), nil
}

// FollowRedirects 默认开启。
func (o Options) FollowRedirects() bool {
	raw, ok := o[OptFollowRedirects]
	if !ok {
		return true
	}
	return cast.ToBool(raw)
}

// MaxRedirects 返回允许的最大跳转次数，未设置时为 10。
func (o Options) MaxRedirects() int {
	raw, ok := o[OptMaxRedirects]
	if !ok {
		return defaultMaxRedirects
	}
	n, err := cast.ToIntE(raw)
	if err != nil || n < 0 {
		return defaultMaxRedirects
	}
	return n
}

func (o Options) stringValue(key Option) string {
	raw, ok := o[key]
	if !ok || raw == nil {
		return ""
	}
	return cast.ToString(raw)
}
