package cache

import (
	"fmt"
	"path/filepath"

	"github.com/holepuncher/holepuncher/internal/config"
)

// NewBackend 按配置的 StoreDriver 构建进程级 Backend。
func NewBackend(cfg *config.Config) (Backend, error) {
	if cfg == nil {
		return nil, ErrStoreUnavailable
	}
	switch cfg.Puncher.StoreDriver {
	case config.StoreDriverFS, "":
		return NewFSBackend(cfg.Global.StoragePath)
	case config.StoreDriverSQLite:
		return NewSQLiteBackend(filepath.Join(cfg.Global.StoragePath, SQLiteFileName))
	case config.StoreDriverMemory:
		return NewMemoryBackend(), nil
	default:
		return nil, fmt.Errorf("unsupported store driver: %s", cfg.Puncher.StoreDriver)
	}
}
