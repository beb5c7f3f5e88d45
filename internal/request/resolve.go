package request

import (
	"crypto/sha1"
	"encoding/hex"
	"path"
	"strings"
)

// Key 是规范化请求串的 SHA-1 摘要，同时作为缓存文件名主体。
type Key [sha1.Size]byte

// String 返回 40 位小写十六进制表示。
func (k Key) String() string {
	return hex.EncodeToString(k[:])
}

// IsZero reports whether the key was never computed.
func (k Key) IsZero() bool {
	return k == Key{}
}

// KeyOf 基于规范化请求串计算缓存键，不依赖请求头、时间或环境。
func KeyOf(normalized string) Key {
	return Key(sha1.Sum([]byte(normalized)))
}

// Request 是一次请求经解析后的不可变描述，贯穿 lookup → fetch → emit 全流程。
type Request struct {
	// Raw 为原始 request URI。
	Raw string
	// Normalized 是去掉前缀后的 path + query，拼接在 Origin 之后即为回源地址。
	Normalized string
	Path       string
	Query      string
	// Extension 不含点，保持请求中的原始大小写。
	Extension string
	MIMEType  string
	Key       Key
}

// FileName 返回缓存文件名：<key>.<ext>，扩展名统一小写。
func (r Request) FileName() string {
	return r.Key.String() + "." + strings.ToLower(r.Extension)
}

// Resolve 去除 stripPrefix（仅匹配开头一次），计算缓存键并根据扩展名分类。
// 缺少扩展名返回 ReasonForbidden，扩展名未收录返回 ReasonUnsupportedMediaType。
func Resolve(rawURI, stripPrefix string) (Request, error) {
	normalized := normalize(rawURI, stripPrefix)

	reqPath, query := normalized, ""
	if idx := strings.IndexByte(normalized, '?'); idx >= 0 {
		reqPath, query = normalized[:idx], normalized[idx+1:]
	}

	ext := strings.TrimPrefix(path.Ext(reqPath), ".")
	if ext == "" {
		return Request{}, &RejectError{Reason: ReasonForbidden, Path: reqPath}
	}
	mime, ok := LookupMIME(ext)
	if !ok {
		return Request{}, &RejectError{Reason: ReasonUnsupportedMediaType, Path: reqPath, Extension: ext}
	}

	return Request{
		Raw:        rawURI,
		Normalized: normalized,
		Path:       reqPath,
		Query:      query,
		Extension:  ext,
		MIMEType:   mime,
		Key:        KeyOf(normalized),
	}, nil
}

func normalize(rawURI, stripPrefix string) string {
	if stripPrefix != "" && strings.HasPrefix(rawURI, stripPrefix) {
		rawURI = rawURI[len(stripPrefix):]
	}
	if !strings.HasPrefix(rawURI, "/") {
		rawURI = "/" + rawURI
	}
	return rawURI
}
