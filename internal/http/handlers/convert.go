package handlers

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"md2docx/internal/config"
	u "md2docx/internal/infra/logging"
	"md2docx/internal/infra/metrics"
	"md2docx/internal/infra/pandoc"
)

const (
	downloadName = "converted_document.docx"
	docxMIME     = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
)

// How long a request waits for a free converter slot before giving up.
var slotAcquireWait = 5 * time.Second

type convertRequest struct {
	Markdown string `json:"markdown"`
}

// ConvertService bundles configuration and dependencies for markdown-to-docx
// conversion. It holds no per-request state; concurrent requests are isolated
// purely by per-request scratch tokens.
type ConvertService struct {
	Config  *config.Config
	Runner  pandoc.Runner
	Redis   *redis.Client
	Metrics *metrics.Conversions

	slots chan struct{}
}

// NewConvertService creates a new ConvertService instance.
func NewConvertService(cfg config.Config, runner pandoc.Runner, rdb *redis.Client, m *metrics.Conversions) *ConvertService {
	svc := &ConvertService{
		Config:  &cfg, // convert value to pointer
		Runner:  runner,
		Redis:   rdb,
		Metrics: m,
	}
	if cfg.Limits.MaxConcurrent > 0 {
		svc.slots = make(chan struct{}, cfg.Limits.MaxConcurrent)
	}
	return svc
}

// HandleConvert accepts a JSON body with markdown text and responds with the
// converted docx as an attachment, or serves a cached copy.
func (svc *ConvertService) HandleConvert(c *fiber.Ctx) error {
	start := time.Now()
	done := func(outcome string) {
		svc.Metrics.Observe(outcome, time.Since(start))
	}

	if !c.Is("json") {
		done(metrics.OutcomeUnsupportedMedia)
		return c.Status(fiber.StatusUnsupportedMediaType).JSON(fiber.Map{
			"error": "Request must be JSON",
		})
	}

	var req convertRequest
	if err := c.BodyParser(&req); err != nil || req.Markdown == "" {
		done(metrics.OutcomeBadRequest)
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Missing 'markdown' key in request body",
		})
	}

	cacheKey := computeDocCacheKey(req.Markdown)
	if svc.cacheEnabled() {
		if cached, err := svc.cachedDocument(c, cacheKey); err == nil && cached != nil {
			done(metrics.OutcomeCacheHit)
			return c.Send(cached)
		}
	}

	if svc.slots != nil {
		release, ok := svc.acquireSlot()
		if !ok {
			u.Warn("Converter slots saturated", "max_concurrent", svc.Config.Limits.MaxConcurrent)
			done(metrics.OutcomeBusy)
			return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
				"error": "Server busy",
			})
		}
		defer release()
	}

	token := uuid.NewString()
	inputPath := filepath.Join(svc.Config.Scratch.Dir, token+".md")
	outputPath := filepath.Join(svc.Config.Scratch.Dir, token+".docx")

	// Both artifacts are removed on every exit path, including panics while
	// building the response. Removal errors never override the outcome
	// already determined.
	defer func() {
		_ = os.Remove(inputPath)
		_ = os.Remove(outputPath)
	}()

	if err := os.WriteFile(inputPath, []byte(req.Markdown), 0o600); err != nil {
		u.Error("Cannot write scratch input", "error", err.Error())
		done(metrics.OutcomeInternal)
		return internalError(c)
	}

	// context.Background: the wall-clock timeout inside the runner is the
	// only cancellation mechanism; a client disconnect does not abort the
	// conversion.
	res, err := svc.Runner.Run(context.Background(), inputPath, outputPath)
	if err != nil {
		if errors.Is(err, pandoc.ErrTimeout) {
			u.Error("Conversion timed out", "timeout_secs", svc.Config.Converter.TimeoutSecs)
			done(metrics.OutcomeTimeout)
			return c.Status(fiber.StatusGatewayTimeout).JSON(fiber.Map{
				"error": "Conversion timed out",
			})
		}
		u.Error("Converter could not be run", "error", err.Error())
		done(metrics.OutcomeInternal)
		return internalError(c)
	}

	if res.ExitCode != 0 {
		u.Error("Pandoc conversion failed", "exit_code", res.ExitCode, "stderr", res.Stderr)
		done(metrics.OutcomeFailed)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error":   "Pandoc conversion failed",
			"details": res.Stderr,
		})
	}

	if _, err := os.Stat(outputPath); err != nil {
		u.Error("Converter exited cleanly but produced no output", "output", outputPath)
		done(metrics.OutcomeMissingOutput)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Converted file not found on server",
		})
	}

	doc, err := os.ReadFile(outputPath)
	if err != nil {
		u.Error("Cannot read scratch output", "error", err.Error())
		done(metrics.OutcomeInternal)
		return internalError(c)
	}

	if svc.cacheEnabled() {
		svc.storeDocument(c, cacheKey, doc)
	}

	svc.Metrics.ObserveDocumentBytes(len(doc))
	done(metrics.OutcomeOK)

	requestID := c.Get("X-Request-ID")
	u.Info("Document converted", "bytes", len(doc), "request_id", requestID)

	setAttachmentHeaders(c)
	return c.Send(doc)
}

// acquireSlot blocks until a converter slot is free or the wait budget runs
// out. The returned release func must be called once when ok is true.
func (svc *ConvertService) acquireSlot() (release func(), ok bool) {
	timer := time.NewTimer(slotAcquireWait)
	defer timer.Stop()
	select {
	case svc.slots <- struct{}{}:
		return func() { <-svc.slots }, true
	case <-timer.C:
		return nil, false
	}
}

func setAttachmentHeaders(c *fiber.Ctx) {
	c.Set("Content-Type", docxMIME)
	c.Set("Content-Disposition", `attachment; filename="`+downloadName+`"`)
}

func internalError(c *fiber.Ctx) error {
	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
		"error": "Internal server error",
	})
}
