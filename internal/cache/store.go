package cache

import (
	"context"
	"errors"

	"github.com/holepuncher/holepuncher/internal/transport"
)

// Backend 是持久化能力本身，按 name 划分互不干扰的 Bucket。
// 同一个 name 在一个 Backend 内只对应一份存储。实现必须并发安全。
type Backend interface {
	// Open 返回 name 对应的 Bucket；存储在第一次 Put 时才真正创建。
	Open(ctx context.Context, name string) (Bucket, error)

	// Delete 删除整个命名存储，返回删除前是否存在。
	Delete(ctx context.Context, name string) (bool, error)

	// Close 释放底层资源（数据库连接等）。
	Close() error
}

// Bucket 是某个命名存储内 请求标识 → 响应快照 的映射。
type Bucket interface {
	// Match 返回 key 对应的响应快照；不存在时返回 ErrNotFound。
	Match(ctx context.Context, key string) (*transport.Response, error)

	// Put 覆盖写入 key 对应的快照。
	Put(ctx context.Context, key string, resp *transport.Response) error
}

// ErrNotFound 表示缓存不存在。
var ErrNotFound = errors.New("cache entry not found")

// ErrStoreUnavailable 表示未注入 Backend。
var ErrStoreUnavailable = errors.New("cache store unavailable")
