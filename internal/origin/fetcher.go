package origin

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"
)

const (
	defaultProbeTimeout = 5 * time.Second
	defaultFetchTimeout = 5 * time.Second
)

// ErrOriginStatus 表示源站返回了非 2xx 状态。
var ErrOriginStatus = errors.New("origin returned non-success status")

// Options 控制探测与传输的超时。
type Options struct {
	ProbeTimeout time.Duration
	FetchTimeout time.Duration
}

// FetchResult 描述一次完整回源的结果。
type FetchResult struct {
	Success      bool
	StatusCode   int
	BytesWritten int64
}

// Fetcher 复用共享 http.Client，对同一 URL 的并发探测只发一次 HEAD。
type Fetcher struct {
	client *http.Client
	opts   Options
	probes singleflight.Group
}

// NewFetcher 创建 Fetcher，未设置的超时回退到 5s。
func NewFetcher(client *http.Client, opts Options) *Fetcher {
	if client == nil {
		client = http.DefaultClient
	}
	if opts.ProbeTimeout <= 0 {
		opts.ProbeTimeout = defaultProbeTimeout
	}
	if opts.FetchTimeout <= 0 {
		opts.FetchTimeout = defaultFetchTimeout
	}
	return &Fetcher{client: client, opts: opts}
}

// Join 将规范化请求串直接拼接到源站地址之后。
func Join(base, normalized string) string {
	return strings.TrimRight(base, "/") + normalized
}

// Probe 通过 HEAD 判断资源是否存在。404、超时与网络错误一律视为不存在。
func (f *Fetcher) Probe(ctx context.Context, rawURL string) bool {
	// 同一 URL 的探测被合并，结果不能受某一个调用方断开的影响。
	shared := context.WithoutCancel(ctx)
	result, _, _ := f.probes.Do(rawURL, func() (interface{}, error) {
		return f.probe(shared, rawURL), nil
	})
	found, _ := result.(bool)
	return found
}

func (f *Fetcher) probe(ctx context.Context, rawURL string) bool {
	ctx, cancel := context.WithTimeout(ctx, f.opts.ProbeTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodHead, rawURL, http.NoBody)
	if err != nil {
		return false
	}
	resp, err := f.client.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	return isSuccess(resp.StatusCode)
}

// Fetch 以 GET 拉取完整正文并流式写入 sink，不在内存中缓冲整个资源。
// 传输生命周期与调用方连接解耦，仅受 FetchTimeout 约束。
func (f *Fetcher) Fetch(ctx context.Context, rawURL string, sink io.Writer) (FetchResult, error) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), f.opts.FetchTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, http.NoBody)
	if err != nil {
		return FetchResult{}, fmt.Errorf("build origin request: %w", err)
	}
	resp, err := f.client.Do(req)
	if err != nil {
		return FetchResult{}, fmt.Errorf("origin request: %w", err)
	}
	defer resp.Body.Close()

	if !isSuccess(resp.StatusCode) {
		return FetchResult{StatusCode: resp.StatusCode}, fmt.Errorf("%w: %d", ErrOriginStatus, resp.StatusCode)
	}

	written, err := copyWithContext(ctx, sink, resp.Body)
	result := FetchResult{StatusCode: resp.StatusCode, BytesWritten: written}
	if err != nil {
		return result, fmt.Errorf("origin transfer: %w", err)
	}
	result.Success = true
	return result, nil
}

func isSuccess(status int) bool {
	return status >= http.StatusOK && status < http.StatusMultipleChoices
}

func copyWithContext(ctx context.Context, dst io.Writer, src io.Reader) (int64, error) {
	var copied int64
	buf := make([]byte, 32*1024)
	for {
		if err := ctx.Err(); err != nil {
			return copied, err
		}
		n, err := src.Read(buf)
		if n > 0 {
			w, wErr := dst.Write(buf[:n])
			copied += int64(w)
			if wErr != nil {
				return copied, wErr
			}
			if w < n {
				return copied, io.ErrShortWrite
			}
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				return copied, nil
			}
			return copied, err
		}
	}
}
