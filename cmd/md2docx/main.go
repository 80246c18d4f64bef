package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"

	"md2docx/internal/config"
	u "md2docx/internal/infra/logging"
	"md2docx/internal/infra/pandoc"
	"md2docx/internal/http/server"
)

func main() {
	cfg := config.Load()
	// Allow common container env vars to override the config file.
	if v := os.Getenv("PANDOC_BIN"); v != "" {
		cfg.Converter.Binary = v
	}
	if v := os.Getenv("SCRATCH_DIR"); v != "" {
		cfg.Scratch.Dir = v
	}

	u.InitLogger(
		cfg.Logger.File,
		cfg.Logger.MaxSizeMB,
		cfg.Logger.MaxBackups,
		cfg.Logger.MaxAgeDays,
		cfg.Logger.Compress,
		cfg.Logger.Level,
	)
	u.SetLogLevel(cfg.Logger.Level)

	runner := pandoc.NewCLI(cfg.Converter.Binary, time.Duration(cfg.Converter.TimeoutSecs)*time.Second)
	if !runner.Available() {
		u.Warn("Converter binary not found on PATH", "binary", cfg.Converter.Binary)
	}

	var rdb *redis.Client
	if cfg.Cache.Enabled {
		rdb = redis.NewClient(&redis.Options{
			Addr: cfg.Cache.RedisHost,
			DB:   cfg.Cache.RedisDB,
		})
	}

	app := server.New(server.Deps{Config: cfg, Redis: rdb, Runner: runner})

	idleConnsClosed := make(chan struct{})
	startServer(app, cfg, idleConnsClosed)
	<-idleConnsClosed
}

// startServer starts the Fiber app and listens for shutdown signals
func startServer(app *fiber.App, cfg config.Config, idleConnsClosed chan struct{}) {
	go func() {
		if err := app.Listen(cfg.Server.Host + cfg.Server.Port); err != nil {
			u.Error("Server error", "error", err)
		}
	}()

	// Listen for OS termination signals
	sigint := make(chan os.Signal, 1)
	signal.Notify(sigint, syscall.SIGINT, syscall.SIGTERM)
	<-sigint

	u.Warn("Shutdown signal received, closing server...")

	// Graceful shutdown with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(ctx); err != nil {
		u.Error("Server forced to shutdown", "error", err)
	}

	close(idleConnsClosed)
	u.Info("Server stopped cleanly")
}
