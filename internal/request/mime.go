package request

import "strings"

// mimeTypes 是封闭的扩展名表：未列出的扩展名一律拒绝，不做猜测。
var mimeTypes = map[string]string{
	"gif":   "image/gif",
	"jpg":   "image/jpeg",
	"jpeg":  "image/jpeg",
	"png":   "image/png",
	"webp":  "image/webp",
	"svg":   "image/svg+xml",
	"ico":   "image/x-icon",
	"js":    "application/javascript;charset=utf-8",
	"css":   "text/css;charset=utf-8",
	"xml":   "text/xml;charset=utf-8",
	"json":  "application/json;charset=utf-8",
	"map":   "application/json;charset=utf-8",
	"txt":   "text/plain;charset=utf-8",
	"otf":   "font/otf",
	"ttf":   "font/ttf",
	"eot":   "application/vnd.ms-fontobject",
	"woff":  "font/woff",
	"woff2": "font/woff2",
}

// LookupMIME 返回扩展名（不含点，大小写不敏感）对应的 Content-Type。
func LookupMIME(ext string) (string, bool) {
	mime, ok := mimeTypes[strings.ToLower(ext)]
	return mime, ok
}

// Extensions 返回当前支持的扩展名列表，用于诊断输出。
func Extensions() []string {
	result := make([]string, 0, len(mimeTypes))
	for ext := range mimeTypes {
		result = append(result, ext)
	}
	return result
}
