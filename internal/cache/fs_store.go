package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/holepuncher/holepuncher/internal/transport"
)

// NewFSBackend 以 basePath 为根目录构建磁盘缓存，整站复用一份实例。磁盘布局：
//
//	<StoragePath>/<StoreName>/<sha256(key)>.http    # HTTP/1.1 报文形式的快照
func NewFSBackend(basePath string) (Backend, error) {
	if basePath == "" {
		return nil, errors.New("storage path required")
	}

	abs, err := filepath.Abs(basePath)
	if err != nil {
		return nil, fmt.Errorf("resolve storage path: %w", err)
	}

	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("create storage path: %w", err)
	}

	return &fsBackend{
		basePath: abs,
		locks:    make(map[string]*entryLock),
	}, nil
}

// fsBackend 通过 entryLock 避免同一条目并发写入，同时复用 basePath。
type fsBackend struct {
	basePath string

	mu    sync.Mutex
	locks map[string]*entryLock
}

type entryLock struct {
	mu   sync.Mutex
	refs int
}

type fsBucket struct {
	backend *fsBackend
	name    string
}

func (b *fsBackend) Open(ctx context.Context, name string) (Bucket, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if _, err := b.storeDir(name); err != nil {
		return nil, err
	}
	return &fsBucket{backend: b, name: name}, nil
}

func (b *fsBackend) Delete(ctx context.Context, name string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	dir, err := b.storeDir(name)
	if err != nil {
		return false, err
	}

	unlock := b.lockEntry(name)
	defer unlock()

	if _, err := os.Stat(dir); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		return false, err
	}
	if err := os.RemoveAll(dir); err != nil {
		return false, err
	}
	return true, nil
}

func (b *fsBackend) Close() error {
	return nil
}

func (b *fsBucket) Match(ctx context.Context, key string) (*transport.Response, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	filePath, err := b.backend.entryPath(b.name, key)
	if err != nil {
		return nil, err
	}

	info, err := os.Stat(filePath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if info.IsDir() {
		return nil, ErrNotFound
	}

	raw, err := os.ReadFile(filePath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return decodeSnapshot(raw)
}

func (b *fsBucket) Put(ctx context.Context, key string, resp *transport.Response) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	raw, err := encodeSnapshot(resp)
	if err != nil {
		return err
	}

	unlock := b.backend.lockEntry(b.name + "::" + key)
	defer unlock()

	filePath, err := b.backend.entryPath(b.name, key)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(filePath), 0o755); err != nil {
		return err
	}

	tempFile, err := os.CreateTemp(filepath.Dir(filePath), ".cache-*")
	if err != nil {
		return err
	}
	tempName := tempFile.Name()

	_, err = tempFile.Write(raw)
	closeErr := tempFile.Close()
	if err == nil {
		err = closeErr
	}
	if err != nil {
		os.Remove(tempName)
		return err
	}

	if err := os.Rename(tempName, filePath); err != nil {
		os.Remove(tempName)
		return err
	}
	return nil
}

func (b *fsBackend) lockEntry(key string) func() {
	b.mu.Lock()
	lock := b.locks[key]
	if lock == nil {
		lock = &entryLock{}
		b.locks[key] = lock
	}
	lock.refs++
	b.mu.Unlock()

	lock.mu.Lock()
	return func() {
		lock.mu.Unlock()
		b.mu.Lock()
		lock.refs--
		if lock.refs == 0 {
			delete(b.locks, key)
		}
		b.mu.Unlock()
	}
}

func (b *fsBackend) storeDir(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", errors.New("store name required")
	}
	if strings.ContainsAny(name, `/\`) || name == "." || name == ".." {
		return "", fmt.Errorf("invalid store name %q", name)
	}
	return filepath.Join(b.basePath, name), nil
}

func (b *fsBackend) entryPath(name, key string) (string, error) {
	dir, err := b.storeDir(name)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256([]byte(key))
	return filepath.Join(dir, hex.EncodeToString(sum[:])+".http"), nil
}
