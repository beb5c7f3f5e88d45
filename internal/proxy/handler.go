package proxy

import (
	"context"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/sirupsen/logrus"

	"github.com/any-hub/pull-cdn/internal/cache"
	"github.com/any-hub/pull-cdn/internal/logging"
	"github.com/any-hub/pull-cdn/internal/origin"
	"github.com/any-hub/pull-cdn/internal/request"
	"github.com/any-hub/pull-cdn/internal/server"
)

// OriginFetcher 抽象源站访问能力：HEAD 探测与流式 GET。
type OriginFetcher interface {
	Probe(ctx context.Context, rawURL string) bool
	Fetch(ctx context.Context, rawURL string, sink io.Writer) (origin.FetchResult, error)
}

// Options 是 Handler 的静态配置。
type Options struct {
	// Origin 为源站基础地址，不含结尾的 /。
	Origin      string
	StripPrefix string
	// TTL 同时用于 Cache-Control/Expires 头，以及 ttl 策略下的过期判断（由 Store 负责）。
	TTL       time.Duration
	PoweredBy string
}

// Handler 负责 orchestrate “解析 → 缓存查找 → 命中输出 / 探测 + 加锁回源 → 307” 的全流程，
// 对外暴露 Fiber handler，内部复用共享磁盘缓存与源站 Fetcher。
type Handler struct {
	opts    Options
	store   cache.Store
	fetcher OriginFetcher
	logger  *logrus.Logger
	stats   *Stats
	now     func() time.Time
}

// NewHandler constructs a pull handler with shared store/fetcher/logger.
func NewHandler(opts Options, store cache.Store, fetcher OriginFetcher, logger *logrus.Logger) *Handler {
	if logger == nil {
		logger = logging.Discard()
	}
	return &Handler{
		opts:    opts,
		store:   store,
		fetcher: fetcher,
		logger:  logger,
		stats:   NewStats(),
		now:     time.Now,
	}
}

// Stats 返回进程内的结果计数器，供诊断接口读取。
func (h *Handler) Stats() *Stats {
	return h.stats
}

// pull 是单次请求在流水线中传递的不可变上下文。
type pull struct {
	req       request.Request
	originURL string
	requestID string
	started   time.Time
}

// Handle 执行解析、缓存查找、回源与最终输出，任何阶段的失败都会映射为完整的 HTTP 响应。
func (h *Handler) Handle(c fiber.Ctx) error {
	p := pull{
		requestID: server.RequestID(c),
		started:   time.Now(),
	}
	rawURI := string(c.Request().RequestURI())

	method := c.Method()
	if method != fiber.MethodGet && method != fiber.MethodHead {
		c.Set(fiber.HeaderAllow, "GET, HEAD")
		return h.finish(c, p, outcomeMethodNotAllowed, h.emitError(c, http.StatusMethodNotAllowed), nil)
	}

	req, err := request.Resolve(rawURI, h.opts.StripPrefix)
	if err != nil {
		var rejectErr *request.RejectError
		if !errors.As(err, &rejectErr) {
			return err
		}
		outcome := outcomeForbidden
		if rejectErr.Reason == request.ReasonUnsupportedMediaType {
			outcome = outcomeUnsupportedMedia
		}
		p.req = request.Request{Raw: rawURI}
		return h.finish(c, p, outcome, h.emitError(c, rejectErr.StatusCode()), nil)
	}
	p.req = req
	p.originURL = origin.Join(h.opts.Origin, req.Normalized)

	ctx := c.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	cached, status, err := h.store.Lookup(ctx, req)
	if err != nil {
		h.logger.WithError(err).
			WithFields(logrus.Fields{"action": "cache_lookup", "cache_key": req.Key.String()}).
			Warn("cache_lookup_failed")
	}
	if status.Hit() {
		defer cached.Reader.Close()
		outcome, emitErr := h.serveCached(c, p, cached)
		return h.finish(c, p, outcome, emitErr, nil)
	}

	return h.pullFromOrigin(c, ctx, p, status)
}

// pullFromOrigin 处理未命中：探测失败返回 404；否则尝试加锁回源，最终一律 307 到源站。
func (h *Handler) pullFromOrigin(c fiber.Ctx, ctx context.Context, p pull, status cache.Status) error {
	if !h.fetcher.Probe(ctx, p.originURL) {
		return h.finish(c, p, outcomeNotFound, h.emitError(c, http.StatusNotFound), nil)
	}

	result, err := h.store.WithWriteLock(ctx, p.req, func(ctx context.Context, sink io.Writer) (int64, error) {
		fetched, err := h.fetcher.Fetch(ctx, p.originURL, sink)
		return fetched.BytesWritten, err
	})

	outcome := outcomeRedirectOrigin
	var transferErr error
	switch {
	case errors.Is(err, cache.ErrLocked):
		outcome = outcomeLockContention
	case err != nil:
		outcome = outcomeTransferFailed
		transferErr = err
	default:
		h.logger.WithFields(logrus.Fields{
			"action":      "cache_store",
			"cache_key":   p.req.Key.String(),
			"prev_status": status.String(),
			"bytes":       result.BytesWritten,
			"request_id":  p.requestID,
		}).Debug("cache_stored")
	}

	return h.finish(c, p, outcome, h.emitRedirect(c, p.originURL), transferErr)
}

// finish 记录结果计数与结构化日志。emitErr 为输出阶段错误，cause 为不影响响应的内部失败。
func (h *Handler) finish(c fiber.Ctx, p pull, o outcome, emitErr error, cause error) error {
	h.stats.record(o)

	statusCode := c.Response().StatusCode()
	fields := logging.RequestFields(
		h.opts.Origin,
		keyString(p.req.Key),
		p.req.Extension,
		string(o),
		o == outcomeServeCached || o == outcomeNotModified,
	)
	fields["action"] = "pull"
	fields["path"] = p.req.Raw
	fields["status"] = statusCode
	fields["elapsed_ms"] = time.Since(p.started).Milliseconds()
	if p.requestID != "" {
		fields["request_id"] = p.requestID
	}

	switch {
	case emitErr != nil:
		fields["error"] = emitErr.Error()
		h.logger.WithFields(fields).Error("pull_failed")
	case cause != nil:
		fields["error"] = cause.Error()
		h.logger.WithFields(fields).Warn("pull_transfer_failed")
	default:
		h.logger.WithFields(fields).Info("pull_complete")
	}
	return emitErr
}

func keyString(k request.Key) string {
	if k.IsZero() {
		return ""
	}
	return k.String()
}
