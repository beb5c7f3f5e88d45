package cache

import (
	"fmt"
	"strings"
	"time"
)

// Policy 决定已存在的条目是否会因年龄被视为过期。
type Policy string

const (
	// PolicyTTL：mtime 早于 now-TTL 的条目视为过期并强制回源。
	PolicyTTL Policy = "ttl"
	// PolicyExistence：任何非空条目都视为命中，TTL 只用于输出的缓存头。
	PolicyExistence Policy = "existence"
)

// ParsePolicy 规范化配置中的策略名，空值回退到 PolicyTTL。
func ParsePolicy(raw string) (Policy, error) {
	switch normalized := Policy(strings.ToLower(strings.TrimSpace(raw))); normalized {
	case "":
		return PolicyTTL, nil
	case PolicyTTL, PolicyExistence:
		return normalized, nil
	default:
		return "", fmt.Errorf("unsupported freshness policy: %s", raw)
	}
}

// Freshness 注入策略与时钟，提供 TTL 决策。
type Freshness struct {
	Policy Policy
	TTL    time.Duration
	now    func() time.Time
}

// NewFreshness 构造新鲜度判定器，默认使用 time.Now 作为时钟。
func NewFreshness(policy Policy, ttl time.Duration) Freshness {
	if policy == "" {
		policy = PolicyTTL
	}
	return Freshness{Policy: policy, TTL: ttl, now: time.Now}
}

// Fresh 判断 modTime 对应的条目是否仍可直接使用。
func (f Freshness) Fresh(modTime time.Time) bool {
	if f.Policy == PolicyExistence || f.TTL <= 0 {
		return true
	}
	return f.clock().Before(modTime.Add(f.TTL))
}

func (f Freshness) clock() time.Time {
	if f.now == nil {
		return time.Now()
	}
	return f.now()
}
