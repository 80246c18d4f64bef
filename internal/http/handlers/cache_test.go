package handlers

import (
	"io"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
)

func TestHandleConvert_CacheHitSkipsConverter(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})

	cfg := testConvertCfg(t)
	cfg.Cache.Enabled = true
	cfg.Cache.RedisHost = mr.Addr()
	cfg.Cache.TTL = time.Minute

	runner := succeedingRunner()
	svc := NewConvertService(cfg, runner, rdb, nil)
	app := fiber.New()
	app.Post("/api/convert", svc.HandleConvert)

	resp1 := postJSON(t, app, `{"markdown": "# cached"}`)
	if resp1.StatusCode != fiber.StatusOK {
		t.Fatalf("first request: expected 200, got %d", resp1.StatusCode)
	}
	body1, _ := io.ReadAll(resp1.Body)

	resp2 := postJSON(t, app, `{"markdown": "# cached"}`)
	if resp2.StatusCode != fiber.StatusOK {
		t.Fatalf("second request: expected 200, got %d", resp2.StatusCode)
	}
	body2, _ := io.ReadAll(resp2.Body)

	if string(body1) != string(body2) {
		t.Fatalf("cache returned different content")
	}
	if got := resp2.Header.Get("Content-Disposition"); got != `attachment; filename="converted_document.docx"` {
		t.Fatalf("cache hit missing attachment headers: %q", got)
	}
	if runner.callCount() != 1 {
		t.Fatalf("expected converter to run once, ran %d times", runner.callCount())
	}
	assertScratchEmpty(t, cfg.Scratch.Dir)
}

func TestHandleConvert_DistinctInputsGetDistinctCacheEntries(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})

	cfg := testConvertCfg(t)
	cfg.Cache.Enabled = true
	cfg.Cache.RedisHost = mr.Addr()
	cfg.Cache.TTL = time.Minute

	runner := succeedingRunner()
	svc := NewConvertService(cfg, runner, rdb, nil)
	app := fiber.New()
	app.Post("/api/convert", svc.HandleConvert)

	respA := postJSON(t, app, `{"markdown": "# doc A"}`)
	respB := postJSON(t, app, `{"markdown": "# doc B"}`)
	bodyA, _ := io.ReadAll(respA.Body)
	bodyB, _ := io.ReadAll(respB.Body)

	if string(bodyA) == string(bodyB) {
		t.Fatalf("distinct inputs must not share a cache entry")
	}
	if runner.callCount() != 2 {
		t.Fatalf("expected two converter runs, got %d", runner.callCount())
	}
}

func TestHandleConvert_RedisDownDegradesToMiss(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()
	rdb := redis.NewClient(&redis.Options{Addr: addr})

	cfg := testConvertCfg(t)
	cfg.Cache.Enabled = true
	cfg.Cache.RedisHost = addr
	cfg.Cache.TTL = time.Minute

	runner := succeedingRunner()
	svc := NewConvertService(cfg, runner, rdb, nil)
	app := fiber.New()
	app.Post("/api/convert", svc.HandleConvert)

	resp := postJSON(t, app, `{"markdown": "# no cache"}`)
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("redis outage must not fail conversions, got %d", resp.StatusCode)
	}
	if runner.callCount() != 1 {
		t.Fatalf("expected converter fallback, got %d runs", runner.callCount())
	}
	assertScratchEmpty(t, cfg.Scratch.Dir)
}
