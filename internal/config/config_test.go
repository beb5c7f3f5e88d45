package config

import (
	"testing"
	"time"
)

func TestLoadWithDefaults(t *testing.T) {
	cfgPath := testConfigPath(t, "valid.toml")

	cfg, err := Load(cfgPath)
	if err != nil {
		t.Fatalf("Load 返回错误: %v", err)
	}
	if cfg.Global.CacheTTL.DurationValue() != DefaultCacheTTL {
		t.Fatalf("CacheTTL 应该自动填充默认值, got %s", cfg.Global.CacheTTL.DurationValue())
	}
	if cfg.Global.CacheDir == "" {
		t.Fatalf("CacheDir 应该被保留")
	}
	if cfg.Global.FreshnessPolicy != "ttl" {
		t.Fatalf("FreshnessPolicy 默认应为 ttl, got %s", cfg.Global.FreshnessPolicy)
	}
	if cfg.Origin.URL != "http://cherone.co.uk" {
		t.Fatalf("Origin.URL 应去掉结尾的 /, got %s", cfg.Origin.URL)
	}
	if cfg.Origin.StripPrefix != "/PHPCDNv2" {
		t.Fatalf("StripPrefix mismatch: %s", cfg.Origin.StripPrefix)
	}
	if cfg.Origin.ProbeTimeout.DurationValue() != 5*time.Second || cfg.Origin.FetchTimeout.DurationValue() != 5*time.Second {
		t.Fatalf("超时默认值应为 5s")
	}
	if cfg.Origin.MaxRedirects != 10 {
		t.Fatalf("MaxRedirects 默认值应为 10, got %d", cfg.Origin.MaxRedirects)
	}
}

func TestValidateRejectsMissingOrigin(t *testing.T) {
	cfgPath := testConfigPath(t, "missing.toml")

	if _, err := Load(cfgPath); err == nil {
		t.Fatalf("缺少 Origin.URL 的配置应返回错误")
	}
}

func TestValidateEnforcesListenPortRange(t *testing.T) {
	cfg := validConfig()
	cfg.Global.ListenPort = 70000
	if err := cfg.Validate(); err == nil {
		t.Fatalf("ListenPort 超出范围应当报错")
	}
}

func TestValidateOriginURL(t *testing.T) {
	testCases := []struct {
		name      string
		url       string
		shouldErr bool
	}{
		{"http ok", "http://origin.example", false},
		{"https ok", "https://origin.example/base", false},
		{"missing", "", true},
		{"ftp", "ftp://origin.example", true},
		{"no host", "http://", true},
		{"query", "https://origin.example/?a=1", true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := validConfig()
			cfg.Origin.URL = tc.url
			err := cfg.Validate()
			if tc.shouldErr && err == nil {
				t.Fatalf("expected error for url %q", tc.url)
			}
			if !tc.shouldErr && err != nil {
				t.Fatalf("unexpected error for url %q: %v", tc.url, err)
			}
		})
	}
}

func TestValidateFreshnessPolicy(t *testing.T) {
	cfg := validConfig()
	cfg.Global.FreshnessPolicy = "existence"
	if err := cfg.Validate(); err != nil {
		t.Fatalf("existence 应当合法: %v", err)
	}
	cfg.Global.FreshnessPolicy = "lru"
	err := cfg.Validate()
	fieldErr, ok := err.(FieldError)
	if !ok || fieldErr.Field != "Global.FreshnessPolicy" {
		t.Fatalf("expected FieldError on FreshnessPolicy, got %v", err)
	}
}

func TestValidateStripPrefix(t *testing.T) {
	cfg := validConfig()
	cfg.Origin.StripPrefix = "cdn"
	if err := cfg.Validate(); err == nil {
		t.Fatalf("StripPrefix 必须以 / 开头")
	}
	cfg.Origin.StripPrefix = "/-/cdn"
	if err := cfg.Validate(); err == nil {
		t.Fatalf("StripPrefix 不能覆盖诊断路径")
	}
}

func TestDurationSeconds(t *testing.T) {
	if got := Duration(90 * time.Second).Seconds(); got != 90 {
		t.Fatalf("expected 90 seconds, got %d", got)
	}
}

func validConfig() *Config {
	return &Config{
		Global: GlobalConfig{
			ListenPort:      5000,
			CacheDir:        "./data",
			CacheTTL:        Duration(time.Hour),
			FreshnessPolicy: "ttl",
		},
		Origin: OriginConfig{
			URL:            "https://origin.example",
			ConnectTimeout: Duration(time.Second),
			ProbeTimeout:   Duration(time.Second),
			FetchTimeout:   Duration(time.Second),
			MaxRedirects:   3,
		},
	}
}
