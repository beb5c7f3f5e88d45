package cache

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/any-hub/pull-cdn/internal/request"
)

// NewStore 以 dir 为根目录构建磁盘缓存，整站复用一份实例。
func NewStore(dir string, freshness Freshness) (Store, error) {
	if dir == "" {
		return nil, errors.New("cache dir required")
	}

	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("resolve cache dir: %w", err)
	}

	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("create cache dir: %w", err)
	}

	return &fileStore{
		basePath:  abs,
		freshness: freshness,
		locks:     make(map[request.Key]*entryLock),
	}, nil
}

// fileStore 通过 entryLock 保证同一 key 只有一个写者，读者与写者互斥。
type fileStore struct {
	basePath  string
	freshness Freshness

	mu    sync.Mutex
	locks map[request.Key]*entryLock
}

type entryLock struct {
	mu   sync.RWMutex
	refs int
}

func (s *fileStore) Path(req request.Request) string {
	return filepath.Join(s.basePath, req.FileName())
}

func (s *fileStore) Lookup(ctx context.Context, req request.Request) (*ReadResult, Status, error) {
	if err := ctx.Err(); err != nil {
		return nil, StatusMiss, err
	}

	release, ok := s.tryLock(req.Key, false)
	if !ok {
		return nil, StatusBusy, nil
	}

	filePath := s.Path(req)
	f, err := os.Open(filePath)
	if err != nil {
		release()
		if errors.Is(err, fs.ErrNotExist) {
			return nil, StatusMiss, nil
		}
		return nil, StatusMiss, err
	}

	if err := tryFlock(f, false); err != nil {
		f.Close()
		release()
		return nil, StatusBusy, nil
	}
	unlock := func() {
		_ = funlock(f)
		f.Close()
		release()
	}

	info, err := f.Stat()
	if err != nil {
		unlock()
		return nil, StatusMiss, err
	}

	switch {
	case info.IsDir():
		unlock()
		return nil, StatusMiss, nil
	case info.Size() == 0:
		unlock()
		return nil, StatusEmpty, nil
	case !s.freshness.Fresh(info.ModTime()):
		unlock()
		return nil, StatusStale, nil
	}

	entry := Entry{
		Key:       req.Key,
		Extension: req.Extension,
		FilePath:  filePath,
		SizeBytes: info.Size(),
		ModTime:   info.ModTime(),
	}
	return &ReadResult{
		Entry:  entry,
		Reader: &lockedFile{File: f, unlock: unlock},
	}, StatusHit, nil
}

func (s *fileStore) WithWriteLock(ctx context.Context, req request.Request, fn WriteFunc) (WriteResult, error) {
	release, ok := s.tryLock(req.Key, true)
	if !ok {
		return WriteResult{}, ErrLocked
	}
	defer release()

	filePath := s.Path(req)
	// 不能用 O_TRUNC 打开：拿到文件锁之前其他进程可能正在写。
	f, err := os.OpenFile(filePath, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return WriteResult{}, fmt.Errorf("open cache entry: %w", err)
	}
	defer f.Close()

	if err := tryFlock(f, true); err != nil {
		return WriteResult{}, ErrLocked
	}
	defer funlock(f)

	if err := truncate(f); err != nil {
		return WriteResult{}, fmt.Errorf("truncate cache entry: %w", err)
	}

	written, err := fn(ctx, f)
	if err == nil && written == 0 {
		err = ErrEmptyTransfer
	}
	if err == nil {
		err = f.Sync()
	}
	if err != nil {
		if truncErr := truncate(f); truncErr != nil {
			err = errors.Join(err, truncErr)
		}
		return WriteResult{BytesWritten: written}, err
	}

	info, err := f.Stat()
	if err != nil {
		return WriteResult{BytesWritten: written}, err
	}
	return WriteResult{
		OK:           true,
		BytesWritten: written,
		Entry: Entry{
			Key:       req.Key,
			Extension: req.Extension,
			FilePath:  filePath,
			SizeBytes: info.Size(),
			ModTime:   info.ModTime(),
		},
	}, nil
}

// tryLock 非阻塞地获取 key 的读锁或写锁，失败时不会留下引用计数。
func (s *fileStore) tryLock(key request.Key, exclusive bool) (func(), bool) {
	s.mu.Lock()
	lock := s.locks[key]
	if lock == nil {
		lock = &entryLock{}
		s.locks[key] = lock
	}
	lock.refs++
	s.mu.Unlock()

	var acquired bool
	if exclusive {
		acquired = lock.mu.TryLock()
	} else {
		acquired = lock.mu.TryRLock()
	}
	if !acquired {
		s.dropRef(key, lock)
		return nil, false
	}

	return func() {
		if exclusive {
			lock.mu.Unlock()
		} else {
			lock.mu.RUnlock()
		}
		s.dropRef(key, lock)
	}, true
}

func (s *fileStore) dropRef(key request.Key, lock *entryLock) {
	s.mu.Lock()
	lock.refs--
	if lock.refs == 0 {
		delete(s.locks, key)
	}
	s.mu.Unlock()
}

func truncate(f *os.File) error {
	if err := f.Truncate(0); err != nil {
		return err
	}
	_, err := f.Seek(0, io.SeekStart)
	return err
}

// lockedFile 在关闭时同时释放文件锁与进程内读锁。
type lockedFile struct {
	*os.File
	once   sync.Once
	unlock func()
}

func (l *lockedFile) Close() error {
	l.once.Do(l.unlock)
	return nil
}
