package cache

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/any-hub/any-fetch/internal/transfer"
)

// NoExpiry 表示不按年龄淘汰缓存。
const NoExpiry time.Duration = -1

// Reason 描述 Evaluate 的判定依据，直接用于日志字段。
type Reason string

const (
	ReasonHit           Reason = "hit"
	ReasonAbsent        Reason = "miss_absent"
	ReasonExpired       Reason = "miss_expired"
	ReasonOptions       Reason = "miss_options"
	ReasonServerError   Reason = "miss_server_error"
	ReasonUnknownStatus Reason = "miss_unknown_status"
)

// Decision 为一次命中判定的结果。
type Decision struct {
	Hit    bool
	Reason Reason
	Status string
	Age    time.Duration
}

// Policy 决定已存条目能否复用，以及新鲜响应能否落盘。
type Policy struct {
	// Duration 为新鲜度窗口，NoExpiry（任意负数）表示永不过期。
	Duration time.Duration
	// RetryOnServerError 为 true 时，缓存的 5xx 响应不会被复用。
	RetryOnServerError bool

	patterns []*regexp.Regexp
	raw      []string
	now      func() time.Time
}

// DefaultPolicy 不过期、对 5xx 重新回源、缓存所有状态码。
func DefaultPolicy() Policy {
	return Policy{
		Duration:           NoExpiry,
		RetryOnServerError: true,
		now:                time.Now,
	}
}

// CompileStatusPatterns 将状态码模式编译为整串匹配的正则，例如 "2.." 匹配 "200"。
func CompileStatusPatterns(patterns []string) ([]*regexp.Regexp, error) {
	compiled := make([]*regexp.Regexp, 0, len(patterns))
	for _, raw := range patterns {
		pattern := strings.TrimSpace(raw)
		if pattern == "" {
			continue
		}
		// 先单独编译，未配对的 ")" 无法逃出外层锚定分组。
		if _, err := regexp.Compile(pattern); err != nil {
			return nil, fmt.Errorf("invalid status pattern %q: %w", raw, err)
		}
		re, err := regexp.Compile("^(?:" + pattern + ")$")
		if err != nil {
			return nil, fmt.Errorf("invalid status pattern %q: %w", raw, err)
		}
		compiled = append(compiled, re)
	}
	return compiled, nil
}

// SetStatusPatterns 替换允许落盘的状态码白名单；空列表表示全部允许。
func (p *Policy) SetStatusPatterns(patterns []string) error {
	compiled, err := CompileStatusPatterns(patterns)
	if err != nil {
		return err
	}
	p.patterns = compiled
	p.raw = append([]string(nil), patterns...)
	return nil
}

// StatusPatterns 返回当前白名单的原始写法。
func (p Policy) StatusPatterns() []string {
	return append([]string(nil), p.raw...)
}

// WithClock 返回使用指定时钟的副本。
func (p Policy) WithClock(now func() time.Time) Policy {
	p.now = now
	return p
}

// Evaluate 依次检查存在性、新鲜度、选项一致性与状态码，任一不满足即 MISS。
func (p Policy) Evaluate(record *Record, current transfer.Options) Decision {
	if record == nil {
		return Decision{Reason: ReasonAbsent}
	}

	age := p.clock().Sub(record.ModTime)
	status := record.Entry.Status()
	decision := Decision{Status: status, Age: age}

	if p.Duration >= 0 && age > p.Duration {
		decision.Reason = ReasonExpired
		return decision
	}
	if !record.Entry.Options.Equal(current) {
		decision.Reason = ReasonOptions
		return decision
	}
	if isUnknownStatus(status) {
		decision.Reason = ReasonUnknownStatus
		return decision
	}
	if p.RetryOnServerError && strings.HasPrefix(status, "5") {
		decision.Reason = ReasonServerError
		return decision
	}

	decision.Hit = true
	decision.Reason = ReasonHit
	return decision
}

// Cacheable 判断新鲜响应是否允许落盘；白名单为空时总是允许。
func (p Policy) Cacheable(status string) bool {
	if len(p.patterns) == 0 {
		return true
	}
	for _, re := range p.patterns {
		if re.MatchString(status) {
			return true
		}
	}
	return false
}

func (p Policy) clock() time.Time {
	if p.now == nil {
		return time.Now()
	}
	return p.now()
}

// isUnknownStatus 将空串与 "0"（未收到响应）视为未知状态，永远回源。
func isUnknownStatus(status string) bool {
	status = strings.TrimSpace(status)
	return status == "" || strings.TrimLeft(status, "0") == ""
}
