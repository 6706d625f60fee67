package cache

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// NewStore 以 dir 为缓存目录构建磁盘缓存，目录不存在时连同父目录一起创建。
func NewStore(dir string) (Store, error) {
	if dir == "" {
		return nil, &DirectoryError{Path: dir, Err: errors.New("cache directory undefined")}
	}

	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, &DirectoryError{Path: dir, Err: fmt.Errorf("resolve path: %w", err)}
	}
	if err := ensureDirectory(abs); err != nil {
		return nil, err
	}

	return &fileStore{
		basePath: abs,
		locks:    make(map[string]*entryLock),
		now:      time.Now,
	}, nil
}

func ensureDirectory(path string) error {
	info, err := os.Stat(path)
	switch {
	case err == nil:
		if !info.IsDir() {
			return &DirectoryError{Path: path, Err: errors.New("exists and is not a directory")}
		}
		return nil
	case errors.Is(err, fs.ErrNotExist):
		if err := os.MkdirAll(path, 0o755); err != nil {
			return &DirectoryError{Path: path, Err: err}
		}
		return nil
	default:
		return &DirectoryError{Path: path, Err: err}
	}
}

// fileStore 通过 entryLock 避免同一 key 并发写入，同时复用 basePath。
type fileStore struct {
	basePath string
	now      func() time.Time

	mu    sync.Mutex
	locks map[string]*entryLock
}

type entryLock struct {
	mu   sync.Mutex
	refs int
}

func (s *fileStore) Dir() string {
	return s.basePath
}

func (s *fileStore) Ensure() error {
	return ensureDirectory(s.basePath)
}

func (s *fileStore) Get(ctx context.Context, key string) (*Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	filePath, err := s.entryPath(key)
	if err != nil {
		return nil, err
	}

	info, err := os.Stat(filePath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ErrNotFound
		}
		return nil, &IOError{Op: "stat", Path: filePath, Err: err}
	}
	if info.IsDir() {
		return nil, ErrNotFound
	}

	data, err := os.ReadFile(filePath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ErrNotFound
		}
		return nil, &IOError{Op: "read", Path: filePath, Err: err}
	}

	entry, err := DecodeEntry(data)
	if err != nil {
		return nil, &CorruptEntryError{Path: filePath, Err: err}
	}

	return &Record{
		Key:      key,
		FilePath: filePath,
		ModTime:  info.ModTime(),
		Entry:    *entry,
	}, nil
}

func (s *fileStore) Put(ctx context.Context, key string, entry Entry) (*Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	unlock := s.lockEntry(key)
	defer unlock()

	filePath, err := s.entryPath(key)
	if err != nil {
		return nil, err
	}

	payload, err := entry.Encode()
	if err != nil {
		return nil, &IOError{Op: "encode", Path: filePath, Err: err}
	}

	tempFile, err := os.CreateTemp(s.basePath, ".cache-*")
	if err != nil {
		return nil, &IOError{Op: "create", Path: filePath, Err: err}
	}
	tempName := tempFile.Name()

	_, err = tempFile.Write(payload)
	closeErr := tempFile.Close()
	if err == nil {
		err = closeErr
	}
	if err != nil {
		os.Remove(tempName)
		return nil, &IOError{Op: "write", Path: filePath, Err: err}
	}

	if err := os.Rename(tempName, filePath); err != nil {
		os.Remove(tempName)
		return nil, &IOError{Op: "rename", Path: filePath, Err: err}
	}

	modTime := s.now()
	if info, err := os.Stat(filePath); err == nil {
		modTime = info.ModTime()
	}

	return &Record{
		Key:      key,
		FilePath: filePath,
		ModTime:  modTime,
		Entry:    entry,
	}, nil
}

func (s *fileStore) Remove(ctx context.Context, key string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	unlock := s.lockEntry(key)
	defer unlock()

	filePath, err := s.entryPath(key)
	if err != nil {
		return false, err
	}
	if err := os.Remove(filePath); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		return false, &IOError{Op: "remove", Path: filePath, Err: err}
	}
	return true, nil
}

func (s *fileStore) Sweep(ctx context.Context) (int, error) {
	dirEntries, err := os.ReadDir(s.basePath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return 0, nil
		}
		return 0, &IOError{Op: "list", Path: s.basePath, Err: err}
	}

	removed := 0
	var errs []error
	for _, de := range dirEntries {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		name := de.Name()
		if !de.Type().IsRegular() || !strings.HasSuffix(name, FileExt) {
			continue
		}
		ok, err := s.Remove(ctx, strings.TrimSuffix(name, FileExt))
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if ok {
			removed++
		}
	}
	return removed, errors.Join(errs...)
}

func (s *fileStore) lockEntry(key string) func() {
	s.mu.Lock()
	lock := s.locks[key]
	if lock == nil {
		lock = &entryLock{}
		s.locks[key] = lock
	}
	lock.refs++
	s.mu.Unlock()

	lock.mu.Lock()
	return func() {
		lock.mu.Unlock()
		s.mu.Lock()
		lock.refs--
		if lock.refs == 0 {
			delete(s.locks, key)
		}
		s.mu.Unlock()
	}
}

// entryPath 只接受不含路径分隔符的 key，防止写出缓存目录。
func (s *fileStore) entryPath(key string) (string, error) {
	if key == "" {
		return "", errors.New("cache key required")
	}
	if strings.ContainsAny(key, `/\`) || key == "." || key == ".." {
		return "", fmt.Errorf("invalid cache key: %q", key)
	}
	return filepath.Join(s.basePath, key+FileExt), nil
}
