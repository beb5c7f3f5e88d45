package request

import (
	"fmt"
	"net/http"
)

// Reason 标识请求在解析阶段被拒绝的原因。
type Reason string

const (
	// ReasonForbidden 表示路径缺少扩展名（目录或 API 请求）。
	ReasonForbidden Reason = "forbidden"
	// ReasonUnsupportedMediaType 表示扩展名不在 MIME 表中。
	ReasonUnsupportedMediaType Reason = "unsupported_media_type"
)

// RejectError 是解析阶段的终止性错误，不会重试，也不会访问缓存或源站。
type RejectError struct {
	Reason    Reason
	Path      string
	Extension string
}

func (e *RejectError) Error() string {
	if e.Extension == "" {
		return fmt.Sprintf("%s: %s has no extension", e.Reason, e.Path)
	}
	return fmt.Sprintf("%s: extension %q of %s", e.Reason, e.Extension, e.Path)
}

// StatusCode maps the rejection to the HTTP status sent to the client.
func (e *RejectError) StatusCode() int {
	if e.Reason == ReasonUnsupportedMediaType {
		return http.StatusUnsupportedMediaType
	}
	return http.StatusForbidden
}
