package server

import (
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/any-hub/pull-cdn/internal/config"
)

func TestNewOriginClientUsesLargestTimeout(t *testing.T) {
	cfg := &config.Config{
		Origin: config.OriginConfig{
			ConnectTimeout: config.Duration(2 * time.Second),
			ProbeTimeout:   config.Duration(3 * time.Second),
			FetchTimeout:   config.Duration(45 * time.Second),
			MaxRedirects:   2,
		},
	}

	client := NewOriginClient(cfg)
	if client.Timeout != 45*time.Second {
		t.Fatalf("expected timeout 45s, got %s", client.Timeout)
	}
	transport, ok := client.Transport.(*http.Transport)
	if !ok {
		t.Fatalf("unexpected transport %T", client.Transport)
	}
	if transport.TLSHandshakeTimeout != 2*time.Second {
		t.Fatalf("expected tls handshake timeout 2s, got %s", transport.TLSHandshakeTimeout)
	}
}

func TestNewOriginClientBoundsRedirects(t *testing.T) {
	var hops atomic.Int32
	var srv *httptest.Server
	srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hops.Add(1)
		http.Redirect(w, r, srv.URL+"/loop.css", http.StatusFound)
	}))
	defer srv.Close()

	client := NewOriginClient(&config.Config{Origin: config.OriginConfig{MaxRedirects: 2}})
	defer client.CloseIdleConnections()

	resp, err := client.Get(srv.URL + "/start.css")
	if err == nil {
		resp.Body.Close()
		t.Fatalf("expected redirect loop to fail")
	}
	if hops.Load() != 3 {
		t.Fatalf("expected initial request plus 2 redirects, got %d", hops.Load())
	}
}

func TestNewOriginClientFollowsRedirect(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/old.js", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/new.js", http.StatusMovedPermanently)
	})
	mux.HandleFunc("/new.js", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("ok"))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	client := NewOriginClient(nil)
	defer client.CloseIdleConnections()

	resp, err := client.Get(srv.URL + "/old.js")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 after redirect, got %d", resp.StatusCode)
	}
}
