package cache

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/any-hub/pull-cdn/internal/request"
)

// Store 负责管理磁盘缓存的读写。磁盘布局遵循：
//
//	<CacheDir>/<sha1(request)>.<ext>    # 正文
//
// 每个条目仅由正文文件组成，ModTime/Size 由文件系统提供；空文件等价于未命中。
type Store interface {
	// Lookup 执行新鲜度查询。仅当 Status 为 StatusHit 时 Result 非 nil，
	// 调用方负责关闭 Result.Reader（同时释放读锁）。
	Lookup(ctx context.Context, req request.Request) (*ReadResult, Status, error)

	// WithWriteLock 以非阻塞方式获取单 key 写锁，截断旧内容后调用 fn 写入。
	// 锁被占用时返回 ErrLocked；fn 失败或写入 0 字节时条目会被再次截断为空。
	WithWriteLock(ctx context.Context, req request.Request, fn WriteFunc) (WriteResult, error)

	// Path 返回请求对应的缓存文件绝对路径。
	Path(req request.Request) string
}

// WriteFunc 将源站内容写入 sink，返回写入字节数。
type WriteFunc func(ctx context.Context, sink io.Writer) (int64, error)

// WriteResult 描述一次加锁写入的结果。
type WriteResult struct {
	OK           bool
	BytesWritten int64
	Entry        Entry
}

// Entry 表示一个缓存条目的文件信息。
type Entry struct {
	Key       request.Key `json:"key"`
	Extension string      `json:"extension"`
	FilePath  string      `json:"file_path"`
	SizeBytes int64       `json:"size_bytes"`
	ModTime   time.Time   `json:"mod_time"`
}

// ReadResult 组合 Entry 与正文 Reader，便于输出层直接流式返回。
type ReadResult struct {
	Entry  Entry
	Reader io.ReadSeekCloser
}

// Status 是 Lookup 的判定结果。
type Status int

const (
	StatusMiss Status = iota
	StatusHit
	// StatusStale 表示条目存在但已超过 TTL。
	StatusStale
	// StatusEmpty 表示条目存在但为 0 字节（上一次回源失败留下的占位）。
	StatusEmpty
	// StatusBusy 表示条目正在被写入，读方不能看到半成品。
	StatusBusy
)

// Hit reports whether the entry may be served from disk.
func (s Status) Hit() bool {
	return s == StatusHit
}

func (s Status) String() string {
	switch s {
	case StatusHit:
		return "hit"
	case StatusStale:
		return "stale"
	case StatusEmpty:
		return "empty"
	case StatusBusy:
		return "busy"
	default:
		return "miss"
	}
}

var (
	// ErrLocked 表示同 key 已有写入在进行，属于预期竞争而非故障。
	ErrLocked = errors.New("cache entry locked by another writer")
	// ErrEmptyTransfer 表示写入函数成功返回但未写入任何字节。
	ErrEmptyTransfer = errors.New("cache write produced no content")
)
