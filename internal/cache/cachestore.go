package cache

import (
	"context"
	"errors"

	"github.com/holepuncher/holepuncher/internal/transport"
)

// CacheStore 绑定 Backend 上的一个固定名称。Backend 缺失或 enabled=false 时
// 所有操作均为 no-op：Get 恒为未命中，Put/Delete 直接返回。
type CacheStore struct {
	backend Backend
	name    string
	enabled bool
}

// NewCacheStore 构造指定名称的存储句柄；句柄本身无状态，可随时重建。
func NewCacheStore(backend Backend, name string, enabled bool) *CacheStore {
	return &CacheStore{
		backend: backend,
		name:    name,
		enabled: enabled,
	}
}

// Supported 返回当前是否具备缓存能力。
func (s *CacheStore) Supported() bool {
	return s != nil && s.backend != nil && s.enabled && s.name != ""
}

// Name 返回存储名称。
func (s *CacheStore) Name() string {
	if s == nil {
		return ""
	}
	return s.name
}

// Get 查找 key。未命中返回 nil, nil；后端错误仅用于诊断，调用方应按未命中处理。
func (s *CacheStore) Get(ctx context.Context, key string) (*transport.Response, error) {
	if !s.Supported() {
		return nil, nil
	}
	bucket, err := s.backend.Open(ctx, s.name)
	if err != nil {
		return nil, err
	}
	resp, err := bucket.Match(ctx, key)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return resp, nil
}

// Put 写入响应快照；不可用时直接返回 nil。
func (s *CacheStore) Put(ctx context.Context, key string, resp *transport.Response) error {
	if !s.Supported() {
		return nil
	}
	bucket, err := s.backend.Open(ctx, s.name)
	if err != nil {
		return err
	}
	return bucket.Put(ctx, key, resp)
}

// Delete 删除整个命名存储；不可用时返回 false, nil。
func (s *CacheStore) Delete(ctx context.Context) (bool, error) {
	if !s.Supported() {
		return false, nil
	}
	return s.backend.Delete(ctx, s.name)
}
