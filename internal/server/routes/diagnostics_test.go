package routes

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v3"

	"github.com/holepuncher/holepuncher/internal/cache"
	"github.com/holepuncher/holepuncher/internal/config"
	"github.com/holepuncher/holepuncher/internal/logging"
	"github.com/holepuncher/holepuncher/internal/puncher"
	"github.com/holepuncher/holepuncher/internal/server"
	"github.com/holepuncher/holepuncher/internal/transport"
)

func TestHealthz(t *testing.T) {
	app, _ := newDiagnosticsApp(t)

	resp := perform(t, app, http.MethodGet, "/-/healthz")
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var payload map[string]string
	decode(t, resp, &payload)
	if payload["status"] != "ok" {
		t.Fatalf("unexpected payload %v", payload)
	}
}

func TestStatusReportsConfiguration(t *testing.T) {
	app, _ := newDiagnosticsApp(t)

	resp := perform(t, app, http.MethodGet, "/-/status")
	var payload statusPayload
	decode(t, resp, &payload)

	if payload.StoreName != config.DefaultStoreName {
		t.Fatalf("unexpected store name %s", payload.StoreName)
	}
	if payload.StoreDriver != config.StoreDriverMemory {
		t.Fatalf("unexpected driver %s", payload.StoreDriver)
	}
	if payload.Mode != "no-cors" || payload.Credentials != "same-origin" {
		t.Fatalf("unexpected policy %s/%s", payload.Mode, payload.Credentials)
	}
	if payload.AuthMode != "anonymous" || !payload.LocalCache {
		t.Fatalf("unexpected status payload %+v", payload)
	}
}

func TestFlushDropsStore(t *testing.T) {
	app, backend := newDiagnosticsApp(t)

	store := cache.NewCacheStore(backend, config.DefaultStoreName, true)
	seed := transport.NewResponse("https://example.com/a", http.StatusOK, nil, []byte("a"))
	if err := store.Put(context.Background(), "GET https://example.com/a", seed); err != nil {
		t.Fatalf("seed put: %v", err)
	}

	resp := perform(t, app, http.MethodPost, "/-/flush")
	var payload struct {
		Deleted bool   `json:"deleted"`
		Store   string `json:"store"`
	}
	decode(t, resp, &payload)
	if !payload.Deleted || payload.Store != config.DefaultStoreName {
		t.Fatalf("unexpected flush payload %+v", payload)
	}

	got, err := store.Get(context.Background(), "GET https://example.com/a")
	if err != nil || got != nil {
		t.Fatalf("entry should be gone after flush, got %v err=%v", got, err)
	}

	resp = perform(t, app, http.MethodPost, "/-/flush")
	decode(t, resp, &payload)
	if payload.Deleted {
		t.Fatalf("flushing an empty store should report deleted=false")
	}
}

func TestFlushReportsBackendFailure(t *testing.T) {
	app, _ := newDiagnosticsAppWithBackend(t, brokenBackend{Backend: cache.NewMemoryBackend()})

	resp := perform(t, app, http.MethodPost, "/-/flush")
	if resp.StatusCode != fiber.StatusInternalServerError {
		t.Fatalf("expected 500 when delete fails, got %d", resp.StatusCode)
	}
	var payload map[string]string
	decode(t, resp, &payload)
	if payload["error"] != "flush_failed" {
		t.Fatalf("unexpected payload %v", payload)
	}
}

type brokenBackend struct {
	cache.Backend
}

func (brokenBackend) Delete(context.Context, string) (bool, error) {
	return false, errors.New("disk unavailable")
}

func TestDiagnosticsDoNotShadowPages(t *testing.T) {
	app, _ := newDiagnosticsApp(t)

	resp := perform(t, app, http.MethodGet, "/missing-page")
	if resp.StatusCode != fiber.StatusNotFound {
		t.Fatalf("expected page 404, got %d", resp.StatusCode)
	}
}

func newDiagnosticsApp(t *testing.T) (*fiber.App, cache.Backend) {
	t.Helper()
	return newDiagnosticsAppWithBackend(t, cache.NewMemoryBackend())
}

func newDiagnosticsAppWithBackend(t *testing.T, backend cache.Backend) (*fiber.App, cache.Backend) {
	t.Helper()

	logger := logging.Discard()

	cfg := config.Default()
	cfg.Puncher.StoreDriver = config.StoreDriverMemory
	cfg.Pages.Root = t.TempDir()

	client, err := transport.NewFromConfig(cfg)
	if err != nil {
		t.Fatalf("client error: %v", err)
	}
	deps, err := puncher.NewDeps(cfg, backend, client, logger)
	if err != nil {
		t.Fatalf("deps error: %v", err)
	}
	opts := puncher.OptionsFromConfig(cfg.Puncher)

	app, err := server.NewApp(server.AppOptions{
		Logger:     logger,
		Deps:       deps,
		Options:    opts,
		Pages:      cfg.Pages,
		ListenPort: cfg.Global.ListenPort,
	})
	if err != nil {
		t.Fatalf("app error: %v", err)
	}
	RegisterDiagnosticRoutes(app, Diagnostics{Logger: logger, Deps: deps, Options: opts, Config: cfg})
	return app, backend
}

func perform(t *testing.T, app *fiber.App, method, target string) *http.Response {
	t.Helper()
	resp, err := app.Test(httptest.NewRequest(method, target, nil))
	if err != nil {
		t.Fatalf("app.Test failed: %v", err)
	}
	return resp
}

func decode(t *testing.T, resp *http.Response, v any) {
	t.Helper()
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		t.Fatalf("decode body: %v", err)
	}
}
