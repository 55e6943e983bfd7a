package cache

import (
	"context"
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"testing"

	"github.com/holepuncher/holepuncher/internal/config"
	"github.com/holepuncher/holepuncher/internal/transport"
)

type backendFactory func(t *testing.T) Backend

func backendFactories() map[string]backendFactory {
	return map[string]backendFactory{
		"fs": func(t *testing.T) Backend {
			b, err := NewFSBackend(t.TempDir())
			if err != nil {
				t.Fatalf("fs backend: %v", err)
			}
			return b
		},
		"sqlite": func(t *testing.T) Backend {
			b, err := NewSQLiteBackend(filepath.Join(t.TempDir(), SQLiteFileName))
			if err != nil {
				t.Fatalf("sqlite backend: %v", err)
			}
			t.Cleanup(func() { _ = b.Close() })
			return b
		},
		"memory": func(t *testing.T) Backend {
			return NewMemoryBackend()
		},
	}
}

func TestBackendPutAndMatch(t *testing.T) {
	for name, factory := range backendFactories() {
		t.Run(name, func(t *testing.T) {
			backend := factory(t)
			ctx := context.Background()
			bucket, err := backend.Open(ctx, config.DefaultStoreName)
			if err != nil {
				t.Fatalf("open error: %v", err)
			}

			header := http.Header{}
			header.Set("Content-Type", "text/html; charset=utf-8")
			resp := transport.NewResponse("https://example.com/a.html", http.StatusOK, header, []byte("payload"))
			key := "GET https://example.com/a.html"

			if err := bucket.Put(ctx, key, resp); err != nil {
				t.Fatalf("put error: %v", err)
			}

			got, err := bucket.Match(ctx, key)
			if err != nil {
				t.Fatalf("match error: %v", err)
			}
			if got.Text() != "payload" {
				t.Fatalf("cached payload mismatch: %s", got.Text())
			}
			if !got.OK() || got.StatusCode != http.StatusOK {
				t.Fatalf("status mismatch: %d", got.StatusCode)
			}
			if got.URL != resp.URL || got.Type != transport.ResponseBasic {
				t.Fatalf("metadata mismatch: url=%s type=%s", got.URL, got.Type)
			}
			if got.Header.Get("Content-Type") != "text/html; charset=utf-8" {
				t.Fatalf("header mismatch: %v", got.Header)
			}
			if got.Header.Get(snapshotURLHeader) != "" {
				t.Fatalf("internal snapshot header leaked")
			}
		})
	}
}

func TestBackendMatchMissing(t *testing.T) {
	for name, factory := range backendFactories() {
		t.Run(name, func(t *testing.T) {
			bucket, err := factory(t).Open(context.Background(), "holepuncher")
			if err != nil {
				t.Fatalf("open error: %v", err)
			}
			if _, err := bucket.Match(context.Background(), "GET https://example.com/missing"); !errors.Is(err, ErrNotFound) {
				t.Fatalf("expected ErrNotFound, got %v", err)
			}
		})
	}
}

func TestBackendDeleteDropsWholeStoreOnly(t *testing.T) {
	for name, factory := range backendFactories() {
		t.Run(name, func(t *testing.T) {
			backend := factory(t)
			ctx := context.Background()
			resp := transport.NewResponse("https://example.com/", http.StatusOK, nil, []byte("data"))

			mine, _ := backend.Open(ctx, "holepuncher")
			other, _ := backend.Open(ctx, "other")
			for _, key := range []string{"GET https://example.com/a", "GET https://example.com/b"} {
				if err := mine.Put(ctx, key, resp); err != nil {
					t.Fatalf("put error: %v", err)
				}
			}
			if err := other.Put(ctx, "GET https://example.com/a", resp); err != nil {
				t.Fatalf("put error: %v", err)
			}

			existed, err := backend.Delete(ctx, "holepuncher")
			if err != nil || !existed {
				t.Fatalf("delete should report existing store, got %v (%v)", existed, err)
			}
			if _, err := mine.Match(ctx, "GET https://example.com/b"); !errors.Is(err, ErrNotFound) {
				t.Fatalf("expected not found after delete, got %v", err)
			}
			if _, err := other.Match(ctx, "GET https://example.com/a"); err != nil {
				t.Fatalf("other store must survive, got %v", err)
			}

			existed, err = backend.Delete(ctx, "holepuncher")
			if err != nil || existed {
				t.Fatalf("second delete should report absent store, got %v (%v)", existed, err)
			}

			if err := mine.Put(ctx, "GET https://example.com/a", resp); err != nil {
				t.Fatalf("store should be recreated on write: %v", err)
			}
		})
	}
}

func TestFSBackendIgnoresDirectories(t *testing.T) {
	backend, err := NewFSBackend(t.TempDir())
	if err != nil {
		t.Fatalf("backend error: %v", err)
	}
	fsb := backend.(*fsBackend)

	key := "GET https://example.com/v2"
	filePath, err := fsb.entryPath("holepuncher", key)
	if err != nil {
		t.Fatalf("path error: %v", err)
	}
	if err := os.MkdirAll(filePath, 0o755); err != nil {
		t.Fatalf("mkdir error: %v", err)
	}

	bucket, _ := backend.Open(context.Background(), "holepuncher")
	if _, err := bucket.Match(context.Background(), key); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for directory, got %v", err)
	}
}

func TestFSBackendRejectsEscapingStoreName(t *testing.T) {
	backend, err := NewFSBackend(t.TempDir())
	if err != nil {
		t.Fatalf("backend error: %v", err)
	}
	if _, err := backend.Open(context.Background(), "../escape"); err == nil {
		t.Fatalf("store name with separators must be rejected")
	}
}

func TestMemoryBackendStoresCopies(t *testing.T) {
	ctx := context.Background()
	bucket, _ := NewMemoryBackend().Open(ctx, "holepuncher")
	resp := transport.NewResponse("https://example.com/", http.StatusOK, nil, []byte("v1"))
	if err := bucket.Put(ctx, "k", resp); err != nil {
		t.Fatalf("put error: %v", err)
	}
	resp.Header.Set("X-Mutated", "1")

	got, _ := bucket.Match(ctx, "k")
	if got.Header.Get("X-Mutated") != "" {
		t.Fatalf("stored snapshot must not alias the caller's response")
	}
}

func TestNewBackendFollowsDriver(t *testing.T) {
	cfg := config.Default()
	cfg.Global.StoragePath = t.TempDir()

	for _, driver := range []string{config.StoreDriverFS, config.StoreDriverSQLite, config.StoreDriverMemory} {
		cfg.Puncher.StoreDriver = driver
		backend, err := NewBackend(cfg)
		if err != nil {
			t.Fatalf("driver %s: %v", driver, err)
		}
		_ = backend.Close()
	}

	cfg.Puncher.StoreDriver = "redis"
	if _, err := NewBackend(cfg); err == nil {
		t.Fatalf("unknown driver should fail")
	}
}
