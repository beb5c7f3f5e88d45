package proxy

import (
	"bytes"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"html/template"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/klauspost/compress/gzip"
	"github.com/valyala/fasthttp"

	"github.com/any-hub/pull-cdn/internal/cache"
)

var errorPage = template.Must(template.New("error").Parse(
	`<!DOCTYPE HTML><html><head><meta http-equiv="Content-Type" content="text/html; charset=utf-8">` +
		`<title>{{.Origin}} CDN | {{.Status}}</title></head>` +
		`<body><h1><a href="{{.Origin}}">{{.Origin}}</a> CDN - {{.Status}}</h1></body></html>`,
))

// serveCached 处理命中：If-Modified-Since 与条目 mtime 相等时返回 304，
// 否则写出缓存头并按协商结果输出 identity 或 gzip 正文。
func (h *Handler) serveCached(c fiber.Ctx, p pull, result *cache.ReadResult) (outcome, error) {
	modified := result.Entry.ModTime.UTC().Truncate(time.Second)

	if since := c.Request().Header.Peek(fiber.HeaderIfModifiedSince); len(since) > 0 {
		if parsed, err := fasthttp.ParseHTTPDate(since); err == nil && parsed.Unix() == modified.Unix() {
			c.Status(fiber.StatusNotModified)
			return outcomeNotModified, nil
		}
	}

	ttl := h.opts.TTL
	c.Set(fiber.HeaderCacheControl, "max-age="+strconv.FormatInt(int64(ttl/time.Second), 10))
	c.Set(fiber.HeaderPragma, "public")
	c.Response().Header.Set(fiber.HeaderExpires, string(fasthttp.AppendHTTPDate(nil, h.now().Add(ttl))))
	c.Response().Header.Set(fiber.HeaderLastModified, string(fasthttp.AppendHTTPDate(nil, modified)))
	c.Set(fiber.HeaderContentType, p.req.MIMEType)
	c.Set(fiber.HeaderXContentTypeOptions, "nosniff")
	c.Set(fiber.HeaderXXSSProtection, "1; mode=block")
	c.Set(fiber.HeaderVary, fiber.HeaderAcceptEncoding)
	if h.opts.PoweredBy != "" {
		c.Set(fiber.HeaderXPoweredBy, h.opts.PoweredBy)
	}
	c.Status(fiber.StatusOK)

	digest, err := h.writeBody(c, result.Reader, negotiateEncoding(c.Get(fiber.HeaderAcceptEncoding)))
	if err != nil {
		return outcomeServeCached, fiber.NewError(fiber.StatusInternalServerError, fmt.Sprintf("read cache failed: %v", err))
	}
	c.Set(fiber.HeaderETag, `"`+digest+`"`)
	return outcomeServeCached, nil
}

// writeBody 在响应结束前统一完成编码：encoding 为空时原样输出，否则交由 gzip 库完成完整分帧。
// 返回未编码正文的 MD5，用作 ETag。
func (h *Handler) writeBody(c fiber.Ctx, body io.Reader, encoding string) (string, error) {
	hasher := md5.New()
	out := c.Response().BodyWriter()

	if encoding == "" {
		if _, err := io.Copy(io.MultiWriter(out, hasher), body); err != nil {
			return "", err
		}
		return hex.EncodeToString(hasher.Sum(nil)), nil
	}

	var compressed bytes.Buffer
	gz, err := gzip.NewWriterLevel(&compressed, gzip.BestCompression)
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(io.MultiWriter(gz, hasher), body); err != nil {
		return "", err
	}
	if err := gz.Close(); err != nil {
		return "", err
	}
	if _, err := out.Write(compressed.Bytes()); err != nil {
		return "", err
	}
	c.Set(fiber.HeaderContentEncoding, encoding)
	return hex.EncodeToString(hasher.Sum(nil)), nil
}

// emitRedirect 发出指向源站的 307，不携带正文。
func (h *Handler) emitRedirect(c fiber.Ctx, location string) error {
	c.Set(fiber.HeaderLocation, location)
	c.Status(fiber.StatusTemporaryRedirect)
	return nil
}

// emitError 输出带源站名与状态行的极简 HTML 错误页，并立即结束请求。
func (h *Handler) emitError(c fiber.Ctx, status int) error {
	var page bytes.Buffer
	statusLine := fmt.Sprintf("%d %s", status, http.StatusText(status))
	if err := errorPage.Execute(&page, struct{ Origin, Status string }{h.opts.Origin, statusLine}); err != nil {
		return err
	}
	c.Set(fiber.HeaderContentType, fiber.MIMETextHTML)
	c.Set(fiber.HeaderCacheControl, "private")
	return c.Status(status).Send(page.Bytes())
}

// negotiateEncoding 解析 Accept-Encoding，x-gzip 优先于 gzip；q=0 视为拒绝。
func negotiateEncoding(header string) string {
	if header == "" {
		return ""
	}
	var gzipOK, xGzipOK, wildcard bool
	for _, part := range strings.Split(header, ",") {
		token, params, _ := strings.Cut(part, ";")
		token = strings.ToLower(strings.TrimSpace(token))
		if rejectedByQuality(params) {
			continue
		}
		switch token {
		case "x-gzip":
			xGzipOK = true
		case "gzip":
			gzipOK = true
		case "*":
			wildcard = true
		}
	}
	switch {
	case xGzipOK:
		return "x-gzip"
	case gzipOK, wildcard:
		return "gzip"
	default:
		return ""
	}
}

func rejectedByQuality(params string) bool {
	for _, param := range strings.Split(params, ";") {
		key, value, ok := strings.Cut(strings.TrimSpace(param), "=")
		if !ok || !strings.EqualFold(strings.TrimSpace(key), "q") {
			continue
		}
		q, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
		return err == nil && q == 0
	}
	return false
}
