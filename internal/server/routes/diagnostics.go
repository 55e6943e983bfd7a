package routes

import (
	"context"

	"github.com/gofiber/fiber/v3"
	"github.com/sirupsen/logrus"

	"github.com/holepuncher/holepuncher/internal/config"
	"github.com/holepuncher/holepuncher/internal/puncher"
	"github.com/holepuncher/holepuncher/internal/server"
	"github.com/holepuncher/holepuncher/internal/version"
)

// Diagnostics 汇总诊断接口需要的依赖。
type Diagnostics struct {
	Logger  *logrus.Logger
	Deps    puncher.Deps
	Options puncher.Options
	Config  *config.Config
}

// RegisterDiagnosticRoutes 暴露 /-/healthz、/-/status 与 /-/flush，供运维探活与清缓存。
func RegisterDiagnosticRoutes(app *fiber.App, diag Diagnostics) {
	if app == nil || diag.Logger == nil {
		return
	}

	app.Get("/-/healthz", func(c fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	app.Get("/-/status", func(c fiber.Ctx) error {
		return c.JSON(encodeStatus(diag))
	})

	app.Post("/-/flush", func(c fiber.Ctx) error {
		ctx := c.Context()
		if ctx == nil {
			ctx = context.Background()
		}

		p := puncher.New(diag.Deps, diag.Options)
		p.Flush(ctx)
		deleted, err := p.FlushResult()

		fields := logrus.Fields{
			"action":     "flush",
			"store":      storeName(diag.Deps),
			"deleted":    deleted,
			"request_id": server.RequestID(c),
		}
		if err != nil {
			diag.Logger.WithFields(fields).WithError(err).Error("cache flush failed")
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "flush_failed",
				"store": storeName(diag.Deps),
			})
		}
		diag.Logger.WithFields(fields).Info("cache flushed")

		return c.JSON(fiber.Map{
			"deleted": deleted,
			"store":   storeName(diag.Deps),
		})
	})
}

type statusPayload struct {
	Version     string `json:"version"`
	StoreName   string `json:"store_name"`
	StoreDriver string `json:"store_driver"`
	LocalCache  bool   `json:"local_cache"`
	Verbose     bool   `json:"verbose"`
	Mode        string `json:"mode"`
	Credentials string `json:"credentials"`
	AuthMode    string `json:"auth_mode"`
	Origin      string `json:"origin,omitempty"`
}

func encodeStatus(diag Diagnostics) statusPayload {
	payload := statusPayload{
		Version:     version.Full(),
		StoreName:   storeName(diag.Deps),
		LocalCache:  diag.Options.LocalCache,
		Verbose:     diag.Options.Verbose,
		Mode:        string(diag.Deps.Policy.Mode),
		Credentials: string(diag.Deps.Policy.Credentials),
	}
	if diag.Config != nil {
		payload.StoreDriver = diag.Config.Puncher.StoreDriver
		payload.AuthMode = diag.Config.Puncher.AuthMode()
		payload.Origin = diag.Config.Puncher.Origin
	}
	return payload
}

func storeName(deps puncher.Deps) string {
	if deps.StoreName == "" {
		return config.DefaultStoreName
	}
	return deps.StoreName
}
