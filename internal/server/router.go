package server

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strconv"
	"strings"
	"sync/atomic"

	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/recover"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/holepuncher/holepuncher/internal/config"
	"github.com/holepuncher/holepuncher/internal/events"
	"github.com/holepuncher/holepuncher/internal/logging"
	"github.com/holepuncher/holepuncher/internal/punch"
	"github.com/holepuncher/holepuncher/internal/puncher"
)

// AppOptions controls how the Fiber application renders pages.
type AppOptions struct {
	Logger     *logrus.Logger
	Deps       puncher.Deps
	Options    puncher.Options
	Pages      config.PagesConfig
	ListenPort int
}

const contextKeyRequestID = "_holepuncher_request_id"

// NewApp builds a Fiber application that serves Pages.Root with placeholders
// filled and structured error handling.
func NewApp(opts AppOptions) (*fiber.App, error) {
	if opts.Logger == nil {
		return nil, errors.New("logger is required")
	}
	if opts.Deps.Transport == nil {
		return nil, errors.New("transport is required")
	}
	if opts.Pages.Root == "" {
		return nil, errors.New("pages root is required")
	}
	if opts.ListenPort <= 0 {
		return nil, fmt.Errorf("invalid listen port: %d", opts.ListenPort)
	}

	app := fiber.New(fiber.Config{
		CaseSensitive: true,
	})

	app.Use(recover.New())
	app.Use(requestIDMiddleware())

	app.Get("/*", func(c fiber.Ctx) error {
		if isDiagnosticsPath(c.Path()) {
			return c.Next()
		}
		return renderPage(c, opts)
	})

	return app, nil
}

// requestIDMiddleware 为每个请求生成请求 ID 并写入响应头。
func requestIDMiddleware() fiber.Handler {
	return func(c fiber.Ctx) error {
		reqID := uuid.NewString()
		c.Locals(contextKeyRequestID, reqID)
		c.Set("X-Request-ID", reqID)
		return c.Next()
	}
}

// renderPage 读取页面文件，用新建的 Puncher 填充所有占位元素后返回。
func renderPage(c fiber.Ctx, opts AppOptions) error {
	file, ok := resolvePage(opts.Pages.Root, c.Path())
	if !ok {
		return renderNotFound(c, opts.Logger, c.Path())
	}

	f, err := os.Open(file)
	if err != nil {
		return renderNotFound(c, opts.Logger, c.Path())
	}
	defer f.Close()

	doc, err := punch.ParseDocument(f)
	if err != nil {
		return err
	}

	var hits, misses int32
	p := puncher.New(opts.Deps, opts.Options)
	p.On(puncher.EventFetchData, func(e events.Event) {
		if data, ok := e.Detail.(puncher.FetchData); ok && data.Cached {
			atomic.AddInt32(&hits, 1)
		}
	})
	p.On(puncher.EventBeforeFetch, func(events.Event) {
		atomic.AddInt32(&misses, 1)
	})

	ctx := c.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	reg := punch.Fill(ctx, p, doc, opts.Pages.Selector, opts.Pages.URLAttribute)
	reg.Remove()

	html, err := doc.Render()
	if err != nil {
		return err
	}

	fields := logging.PageFields(c.Path(), int(atomic.LoadInt32(&hits)), int(atomic.LoadInt32(&misses)))
	fields["action"] = "render_page"
	fields["request_id"] = RequestID(c)
	opts.Logger.WithFields(fields).Debug("page rendered")

	c.Set("X-Holepuncher-Hits", strconv.Itoa(int(atomic.LoadInt32(&hits))))
	c.Set("X-Holepuncher-Misses", strconv.Itoa(int(atomic.LoadInt32(&misses))))
	c.Set(fiber.HeaderContentType, fiber.MIMETextHTMLCharsetUTF8)
	return c.SendString(html)
}

// resolvePage 把请求路径映射到 root 下的文件：目录取 index.html，无扩展名时尝试 .html。
func resolvePage(root, requestPath string) (string, bool) {
	clean := strings.TrimPrefix(path.Clean("/"+requestPath), "/")
	candidate := filepath.Join(root, filepath.FromSlash(clean))

	info, err := os.Stat(candidate)
	switch {
	case err == nil && info.IsDir():
		candidate = filepath.Join(candidate, "index.html")
	case err != nil && filepath.Ext(candidate) == "":
		candidate += ".html"
	}

	info, err = os.Stat(candidate)
	if err != nil || info.IsDir() {
		return "", false
	}
	return candidate, true
}

func renderNotFound(c fiber.Ctx, logger *logrus.Logger, page string) error {
	logger.WithFields(logrus.Fields{
		"action":     "page_lookup",
		"page":       page,
		"request_id": RequestID(c),
	}).Warn("page not found")

	return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
		"error": "page_not_found",
	})
}

// RequestID returns the request identifier stored by the router middleware.
func RequestID(c fiber.Ctx) string {
	if value := c.Locals(contextKeyRequestID); value != nil {
		if reqID, ok := value.(string); ok {
			return reqID
		}
	}
	return ""
}

func isDiagnosticsPath(p string) bool {
	return strings.HasPrefix(p, "/-/")
}
