package proxy

import "sync/atomic"

// outcome 是一次请求在流水线中的终态，用于日志与计数。
type outcome string

const (
	outcomeServeCached      outcome = "serve_cached"
	outcomeNotModified      outcome = "not_modified"
	outcomeRedirectOrigin   outcome = "redirect_origin"
	outcomeLockContention   outcome = "lock_contention"
	outcomeTransferFailed   outcome = "transfer_failed"
	outcomeNotFound         outcome = "not_found"
	outcomeForbidden        outcome = "forbidden"
	outcomeUnsupportedMedia outcome = "unsupported_media_type"
	outcomeMethodNotAllowed outcome = "method_not_allowed"
)

var allOutcomes = []outcome{
	outcomeServeCached,
	outcomeNotModified,
	outcomeRedirectOrigin,
	outcomeLockContention,
	outcomeTransferFailed,
	outcomeNotFound,
	outcomeForbidden,
	outcomeUnsupportedMedia,
	outcomeMethodNotAllowed,
}

// Stats 按终态统计请求数；map 在构造后只读，计数器本身是原子的。
type Stats struct {
	counters map[outcome]*atomic.Int64
}

// NewStats 创建所有终态计数器均为 0 的 Stats。
func NewStats() *Stats {
	counters := make(map[outcome]*atomic.Int64, len(allOutcomes))
	for _, o := range allOutcomes {
		counters[o] = new(atomic.Int64)
	}
	return &Stats{counters: counters}
}

func (s *Stats) record(o outcome) {
	if counter, ok := s.counters[o]; ok {
		counter.Add(1)
	}
}

// Snapshot 返回当前计数的副本。
func (s *Stats) Snapshot() map[string]int64 {
	result := make(map[string]int64, len(s.counters))
	for o, counter := range s.counters {
		result[string(o)] = counter.Load()
	}
	return result
}
