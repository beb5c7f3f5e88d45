package routes

import (
	"sort"

	"github.com/gofiber/fiber/v3"

	"github.com/any-hub/pull-cdn/internal/config"
	"github.com/any-hub/pull-cdn/internal/request"
	"github.com/any-hub/pull-cdn/internal/version"
)

// StatsSource 提供按终态聚合的请求计数。
type StatsSource interface {
	Snapshot() map[string]int64
}

// RegisterStatusRoutes 暴露 /-/status 诊断接口，供 SRE 查询源站、缓存配置与请求计数。
func RegisterStatusRoutes(app *fiber.App, cfg *config.Config, stats StatsSource) {
	if app == nil || cfg == nil {
		return
	}

	app.Get("/-/status", func(c fiber.Ctx) error {
		c.Set(fiber.HeaderCacheControl, "no-store")
		return c.JSON(encodeStatus(cfg, stats))
	})
}

type statusPayload struct {
	Version    string           `json:"version"`
	Origin     originPayload    `json:"origin"`
	Cache      cachePayload     `json:"cache"`
	Extensions []string         `json:"extensions"`
	Outcomes   map[string]int64 `json:"outcomes,omitempty"`
}

type originPayload struct {
	URL          string `json:"url"`
	StripPrefix  string `json:"strip_prefix,omitempty"`
	ProbeMillis  int64  `json:"probe_timeout_ms"`
	FetchMillis  int64  `json:"fetch_timeout_ms"`
	MaxRedirects int    `json:"max_redirects"`
}

type cachePayload struct {
	Dir             string `json:"dir"`
	TTLSeconds      int64  `json:"ttl_seconds"`
	FreshnessPolicy string `json:"freshness_policy"`
}

func encodeStatus(cfg *config.Config, stats StatsSource) statusPayload {
	extensions := request.Extensions()
	sort.Strings(extensions)

	payload := statusPayload{
		Version: version.Full(),
		Origin: originPayload{
			URL:          cfg.Origin.URL,
			StripPrefix:  cfg.Origin.StripPrefix,
			ProbeMillis:  cfg.Origin.ProbeTimeout.DurationValue().Milliseconds(),
			FetchMillis:  cfg.Origin.FetchTimeout.DurationValue().Milliseconds(),
			MaxRedirects: cfg.Origin.MaxRedirects,
		},
		Cache: cachePayload{
			Dir:             cfg.Global.CacheDir,
			TTLSeconds:      cfg.Global.CacheTTL.Seconds(),
			FreshnessPolicy: cfg.Global.FreshnessPolicy,
		},
		Extensions: extensions,
	}
	if stats != nil {
		payload.Outcomes = stats.Snapshot()
	}
	return payload
}
