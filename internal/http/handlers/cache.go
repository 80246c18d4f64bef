package handlers

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"

	u "md2docx/internal/infra/logging"
)

func (svc *ConvertService) cacheEnabled() bool {
	return svc.Redis != nil && svc.Config.Cache.Enabled
}

// computeDocCacheKey creates a SHA256-based cache key from the source text.
func computeDocCacheKey(markdown string) string {
	sum := sha256.Sum256([]byte(markdown))
	return "docxcache:" + hex.EncodeToString(sum[:])
}

// cachedDocument attempts to retrieve a converted document from redis. On a
// hit the attachment headers are already set.
func (svc *ConvertService) cachedDocument(c *fiber.Ctx, key string) ([]byte, error) {
	ctxRedis, cancel := context.WithTimeout(c.Context(), 1*time.Second)
	defer cancel()

	cached, err := svc.Redis.Get(ctxRedis, key).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		u.Warn("Redis read failed", "error", err)
		return nil, err
	}

	u.Info("Document cache hit", "key", key)
	setAttachmentHeaders(c)
	return cached, nil
}

// storeDocument caches a converted document for the configured TTL.
func (svc *ConvertService) storeDocument(c *fiber.Ctx, key string, data []byte) {
	ctxRedis, cancel := context.WithTimeout(c.Context(), 1*time.Second)
	defer cancel()

	ttl := svc.Config.Cache.TTL
	if ttl <= 0 {
		ttl = 1 * time.Minute
	}

	if err := svc.Redis.Set(ctxRedis, key, data, ttl).Err(); err != nil {
		u.Warn("Redis write failed", "error", err)
	}
}
