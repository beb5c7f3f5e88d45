package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/sirupsen/logrus"
)

var supportedPolicies = map[string]struct{}{
	"ttl":       {},
	"existence": {},
}

// Validate 针对语义级别做进一步校验，防止非法配置启动服务。
func (c *Config) Validate() error {
	if c == nil {
		return errors.New("配置为空")
	}

	g := c.Global
	if g.ListenPort <= 0 || g.ListenPort > 65535 {
		return newFieldError("Global.ListenPort", "必须在 1-65535")
	}
	if g.LogLevel != "" {
		if _, err := logrus.ParseLevel(g.LogLevel); err != nil {
			return newFieldError("Global.LogLevel", "无法识别的日志级别")
		}
	}
	if g.CacheDir == "" {
		return newFieldError("Global.CacheDir", "不能为空")
	}
	if g.CacheTTL.DurationValue() <= 0 {
		return newFieldError("Global.CacheTTL", "必须大于 0")
	}
	if _, ok := supportedPolicies[strings.ToLower(g.FreshnessPolicy)]; !ok {
		return newFieldError("Global.FreshnessPolicy", "仅支持 ttl/existence")
	}

	o := c.Origin
	if _, err := parseOrigin(o.URL); err != nil {
		return fmt.Errorf("%s: %w", originField("URL"), err)
	}
	if o.StripPrefix != "" && !strings.HasPrefix(o.StripPrefix, "/") {
		return newFieldError(originField("StripPrefix"), "必须以 / 开头")
	}
	if strings.HasPrefix(o.StripPrefix, "/-/") || o.StripPrefix == "/-" {
		return newFieldError(originField("StripPrefix"), "不能占用诊断路径 /-/")
	}
	if o.ConnectTimeout.DurationValue() <= 0 {
		return newFieldError(originField("ConnectTimeout"), "必须大于 0")
	}
	if o.ProbeTimeout.DurationValue() <= 0 {
		return newFieldError(originField("ProbeTimeout"), "必须大于 0")
	}
	if o.FetchTimeout.DurationValue() <= 0 {
		return newFieldError(originField("FetchTimeout"), "必须大于 0")
	}
	if o.MaxRedirects < 0 {
		return newFieldError(originField("MaxRedirects"), "不能为负数")
	}

	return nil
}

func parseOrigin(raw string) (*url.URL, error) {
	if raw == "" {
		return nil, errors.New("缺少源站地址")
	}
	parsed, err := url.Parse(raw)
	if err != nil {
		return nil, err
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return nil, fmt.Errorf("仅支持 http/https，源站: %s", raw)
	}
	if parsed.Host == "" {
		return nil, fmt.Errorf("源站缺少 Host: %s", raw)
	}
	if parsed.RawQuery != "" || parsed.Fragment != "" {
		return nil, fmt.Errorf("源站地址不能包含 query 或 fragment: %s", raw)
	}
	return parsed, nil
}
