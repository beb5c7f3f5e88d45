package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Duration 提供更灵活的反序列化能力，同时兼容纯秒整数与 Go Duration 字符串。
type Duration time.Duration

// UnmarshalText 使 Viper 可以识别诸如 "30s"、"5m" 或纯数字秒值等配置写法。
func (d *Duration) UnmarshalText(text []byte) error {
	raw := strings.TrimSpace(string(text))
	if raw == "" {
		*d = Duration(0)
		return nil
	}

	if parsed, err := time.ParseDuration(raw); err == nil {
		*d = Duration(parsed)
		return nil
	}

	if intVal, err := parseInt(raw); err == nil {
		*d = Duration(time.Duration(intVal) * time.Second)
		return nil
	}

	return fmt.Errorf("invalid duration value: %s", raw)
}

// DurationValue 返回真实的 time.Duration，便于调用方计算。
func (d Duration) DurationValue() time.Duration {
	return time.Duration(d)
}

// Seconds 返回整秒数，用于 Cache-Control max-age 等头部。
func (d Duration) Seconds() int64 {
	return int64(time.Duration(d) / time.Second)
}

// parseInt 支持十进制或 0x 前缀的十六进制字符串解析。
func parseInt(value string) (int64, error) {
	if strings.HasPrefix(value, "0x") || strings.HasPrefix(value, "0X") {
		return strconv.ParseInt(value, 0, 64)
	}
	return strconv.ParseInt(value, 10, 64)
}

// GlobalConfig 描述进程级运行参数：监听、日志以及本地缓存。
type GlobalConfig struct {
	ListenPort      int      `mapstructure:"ListenPort"`
	LogLevel        string   `mapstructure:"LogLevel"`
	LogFilePath     string   `mapstructure:"LogFilePath"`
	LogMaxSize      int      `mapstructure:"LogMaxSize"`
	LogMaxBackups   int      `mapstructure:"LogMaxBackups"`
	LogCompress     bool     `mapstructure:"LogCompress"`
	CacheDir        string   `mapstructure:"CacheDir"`
	CacheTTL        Duration `mapstructure:"CacheTTL"`
	FreshnessPolicy string   `mapstructure:"FreshnessPolicy"`
	PoweredBy       string   `mapstructure:"PoweredBy"`
}

// OriginConfig 决定如何访问被镜像的源站。
type OriginConfig struct {
	URL            string   `mapstructure:"URL"`
	StripPrefix    string   `mapstructure:"StripPrefix"`
	ConnectTimeout Duration `mapstructure:"ConnectTimeout"`
	ProbeTimeout   Duration `mapstructure:"ProbeTimeout"`
	FetchTimeout   Duration `mapstructure:"FetchTimeout"`
	MaxRedirects   int      `mapstructure:"MaxRedirects"`
}

// Config 是 TOML 文件映射的整体结构。
type Config struct {
	Global GlobalConfig `mapstructure:",squash"`
	Origin OriginConfig `mapstructure:"Origin"`
}

// OriginHost 返回源站 Host，供日志字段使用；解析失败时返回原始值。
func (o OriginConfig) OriginHost() string {
	if parsed, err := parseOrigin(o.URL); err == nil {
		return parsed.Host
	}
	return o.URL
}
