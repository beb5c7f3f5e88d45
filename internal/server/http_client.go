package server

import (
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/any-hub/pull-cdn/internal/config"
)

// Shared HTTP transport tunings，复用长连接并集中配置超时。
var defaultTransport = &http.Transport{
	Proxy:                 http.ProxyFromEnvironment,
	MaxIdleConns:          100,
	MaxIdleConnsPerHost:   100,
	IdleConnTimeout:       90 * time.Second,
	TLSHandshakeTimeout:   5 * time.Second,
	ExpectContinueTimeout: 1 * time.Second,
	ForceAttemptHTTP2:     true,
}

// NewOriginClient 返回访问源站的共享 http.Client：连接超时取 ConnectTimeout，
// 整体超时取探测与传输超时中较大者，重定向最多跟随 MaxRedirects 跳。
func NewOriginClient(cfg *config.Config) *http.Client {
	connect := 5 * time.Second
	total := 5 * time.Second
	maxRedirects := 10
	if cfg != nil {
		o := cfg.Origin
		if o.ConnectTimeout.DurationValue() > 0 {
			connect = o.ConnectTimeout.DurationValue()
		}
		if probe := o.ProbeTimeout.DurationValue(); probe > 0 {
			total = probe
		}
		if fetch := o.FetchTimeout.DurationValue(); fetch > total {
			total = fetch
		}
		maxRedirects = o.MaxRedirects
	}

	transport := defaultTransport.Clone()
	transport.DialContext = (&net.Dialer{
		Timeout:   connect,
		KeepAlive: 30 * time.Second,
	}).DialContext
	transport.TLSHandshakeTimeout = connect

	return &http.Client{
		Timeout:       total,
		Transport:     transport,
		CheckRedirect: limitRedirects(maxRedirects),
	}
}

func limitRedirects(max int) func(*http.Request, []*http.Request) error {
	return func(_ *http.Request, via []*http.Request) error {
		if len(via) > max {
			return fmt.Errorf("stopped after %d redirects", max)
		}
		return nil
	}
}
