package config

import (
	"fmt"
	"path/filepath"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
)

const (
	// DefaultCacheTTL 为 3 天，与最初的 CDN 脚本保持一致。
	DefaultCacheTTL     = 259200 * time.Second
	defaultTimeout      = 5 * time.Second
	defaultMaxRedirects = 10
)

// Load 读取并解析 TOML 配置文件，同时注入默认值与校验逻辑。
func Load(path string) (*Config, error) {
	if path == "" {
		path = "config.toml"
	}

	v := viper.New()
	v.SetConfigFile(path)
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("读取配置失败: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, viper.DecodeHook(durationDecodeHook())); err != nil {
		return nil, fmt.Errorf("解析配置失败: %w", err)
	}

	applyGlobalDefaults(&cfg.Global)
	applyOriginDefaults(&cfg.Origin)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	absCache, err := filepath.Abs(cfg.Global.CacheDir)
	if err != nil {
		return nil, fmt.Errorf("无法解析缓存目录: %w", err)
	}
	cfg.Global.CacheDir = absCache

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ListenPort", 5000)
	v.SetDefault("LogLevel", "info")
	v.SetDefault("LogFilePath", "")
	v.SetDefault("LogMaxSize", 100)
	v.SetDefault("LogMaxBackups", 10)
	v.SetDefault("LogCompress", true)
	v.SetDefault("CacheDir", "./cache")
	v.SetDefault("CacheTTL", int(DefaultCacheTTL/time.Second))
	v.SetDefault("FreshnessPolicy", "ttl")
	v.SetDefault("PoweredBy", "OPPCDN")
	v.SetDefault("Origin.ConnectTimeout", "5s")
	v.SetDefault("Origin.ProbeTimeout", "5s")
	v.SetDefault("Origin.FetchTimeout", "5s")
	v.SetDefault("Origin.MaxRedirects", defaultMaxRedirects)
}

func applyGlobalDefaults(g *GlobalConfig) {
	if g.ListenPort == 0 {
		g.ListenPort = 5000
	}
	if g.CacheTTL.DurationValue() == 0 {
		g.CacheTTL = Duration(DefaultCacheTTL)
	}
	g.FreshnessPolicy = strings.ToLower(strings.TrimSpace(g.FreshnessPolicy))
	if g.FreshnessPolicy == "" {
		g.FreshnessPolicy = "ttl"
	}
}

func applyOriginDefaults(o *OriginConfig) {
	o.URL = strings.TrimRight(strings.TrimSpace(o.URL), "/")
	if o.StripPrefix != "" {
		o.StripPrefix = strings.TrimRight(strings.TrimSpace(o.StripPrefix), "/")
	}
	if o.ConnectTimeout.DurationValue() == 0 {
		o.ConnectTimeout = Duration(defaultTimeout)
	}
	if o.ProbeTimeout.DurationValue() == 0 {
		o.ProbeTimeout = Duration(defaultTimeout)
	}
	if o.FetchTimeout.DurationValue() == 0 {
		o.FetchTimeout = Duration(defaultTimeout)
	}
}

func durationDecodeHook() mapstructure.DecodeHookFunc {
	targetType := reflect.TypeOf(Duration(0))

	return func(from reflect.Type, to reflect.Type, data interface{}) (interface{}, error) {
		if to != targetType {
			return data, nil
		}

		switch v := data.(type) {
		case string:
			if v == "" {
				return Duration(0), nil
			}
			if parsed, err := time.ParseDuration(v); err == nil {
				return Duration(parsed), nil
			}
			if seconds, err := strconv.ParseFloat(v, 64); err == nil {
				return Duration(time.Duration(seconds * float64(time.Second))), nil
			}
			return nil, fmt.Errorf("无法解析 Duration 字段: %s", v)
		case int:
			return Duration(time.Duration(v) * time.Second), nil
		case int64:
			return Duration(time.Duration(v) * time.Second), nil
		case float64:
			return Duration(time.Duration(v * float64(time.Second))), nil
		case time.Duration:
			return Duration(v), nil
		case Duration:
			return v, nil
		default:
			return nil, fmt.Errorf("不支持的 Duration 类型: %T", v)
		}
	}
}
