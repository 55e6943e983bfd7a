package cache

import (
	"context"
	"errors"
	"sync"

	"github.com/holepuncher/holepuncher/internal/transport"
)

// NewMemoryBackend 返回进程内的 Backend，重启即丢失，适合测试与嵌入。
func NewMemoryBackend() Backend {
	return &memoryBackend{stores: make(map[string]map[string]*transport.Response)}
}

type memoryBackend struct {
	mu     sync.RWMutex
	stores map[string]map[string]*transport.Response
}

type memoryBucket struct {
	backend *memoryBackend
	name    string
}

func (m *memoryBackend) Open(ctx context.Context, name string) (Bucket, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if name == "" {
		return nil, errors.New("store name required")
	}
	return &memoryBucket{backend: m, name: name}, nil
}

func (m *memoryBackend) Delete(ctx context.Context, name string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	_, existed := m.stores[name]
	delete(m.stores, name)
	return existed, nil
}

func (m *memoryBackend) Close() error {
	return nil
}

func (b *memoryBucket) Match(ctx context.Context, key string) (*transport.Response, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	b.backend.mu.RLock()
	defer b.backend.mu.RUnlock()
	resp, ok := b.backend.stores[b.name][key]
	if !ok {
		return nil, ErrNotFound
	}
	return resp.Clone(), nil
}

func (b *memoryBucket) Put(ctx context.Context, key string, resp *transport.Response) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if resp == nil {
		return errors.New("nil response")
	}
	b.backend.mu.Lock()
	defer b.backend.mu.Unlock()
	entries := b.backend.stores[b.name]
	if entries == nil {
		entries = make(map[string]*transport.Response)
		b.backend.stores[b.name] = entries
	}
	entries[key] = resp.Clone()
	return nil
}
