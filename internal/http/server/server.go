package server

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/monitor"
	"github.com/redis/go-redis/v9"

	"md2docx/internal/config"
	u "md2docx/internal/infra/logging"
	"md2docx/internal/infra/metrics"
	"md2docx/internal/infra/pandoc"
	"md2docx/internal/http/handlers"
	"md2docx/internal/http/middleware"
)

// Deps carries everything the app needs. Runner and Metrics may be left nil;
// production defaults are derived from the config.
type Deps struct {
	Config  config.Config
	Redis   *redis.Client
	Runner  pandoc.Runner
	Metrics *metrics.Conversions
}

// New creates and configures a new Fiber app instance
func New(d Deps) *fiber.App {
	if d.Runner == nil {
		d.Runner = pandoc.NewCLI(
			d.Config.Converter.Binary,
			time.Duration(d.Config.Converter.TimeoutSecs)*time.Second,
		)
	}
	if d.Metrics == nil && d.Config.Metrics.Enabled {
		d.Metrics = metrics.NewConversions(d.Config.Metrics.Namespace)
	}

	app := fiber.New(fiber.Config{
		Prefork:               d.Config.Server.Prefork,
		BodyLimit:             d.Config.Limits.MaxBodyBytes,
		DisableStartupMessage: true,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			code := fiber.StatusInternalServerError
			msg := "Internal Server Error"

			if e, ok := err.(*fiber.Error); ok {
				code = e.Code
				msg = e.Message
			}

			u.Warn("Request failed", "path", c.Path(), "status", code, "message", msg)

			return c.Status(code).JSON(fiber.Map{
				"error": fiber.Map{
					"code":    code,
					"message": msg,
				},
			})
		},
	})

	middleware.Register(app, d.Config)
	registerRoutes(app, d)

	// Ensure all responses, including 404s, return JSON
	app.Use(func(c *fiber.Ctx) error {
		return fiber.NewError(fiber.StatusNotFound, "Not Found")
	})

	return app
}

// registerRoutes mounts all route handlers to the app
func registerRoutes(app *fiber.App, d Deps) {
	svc := handlers.NewConvertService(d.Config, d.Runner, d.Redis, d.Metrics)

	api := app.Group("/api")
	api.Post("/convert", svc.HandleConvert)
	api.Get("/monitor", monitor.New())

	if d.Metrics != nil {
		app.Get("/metrics", adaptor.HTTPHandler(d.Metrics.Handler()))
	}
}
