package middleware

import (
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"

	"github.com/sabjab/sabjab_api/internal/apperror"
)

// RateLimitConfig configures a fixed-window limiter.
type RateLimitConfig struct {
	// Prefix namespaces the Redis keys, e.g. "otp" or "login".
	Prefix string
	// Max is the number of requests allowed per key and window.
	Max int
	// Window defaults to one minute.
	Window time.Duration
	// Key extracts the subject being limited; the client IP is used when it
	// returns an empty string.
	Key func(c *fiber.Ctx) string
}

// RateLimit limits requests per subject using Redis INCR/EXPIRE. Without a
// Redis client, or when Redis errors, requests pass through.
func RateLimit(cache *redis.Client, cfg RateLimitConfig, logger *slog.Logger) fiber.Handler {
	if cfg.Max <= 0 {
		cfg.Max = 5
	}
	if cfg.Window <= 0 {
		cfg.Window = time.Minute
	}
	return func(c *fiber.Ctx) error {
		if cache == nil {
			return c.Next()
		}
		subject := ""
		if cfg.Key != nil {
			subject = strings.TrimSpace(cfg.Key(c))
		}
		if subject == "" {
			subject = c.IP()
		}
		key := "rl:" + cfg.Prefix + ":" + subject

		ctx := c.UserContext()
		cnt, err := cache.Incr(ctx, key).Result()
		if err != nil {
			logger.Warn("rate limit unavailable", slog.String("prefix", cfg.Prefix), slog.Any("error", err))
			return c.Next()
		}
		if cnt == 1 {
			cache.Expire(ctx, key, cfg.Window)
		}
		if cnt > int64(cfg.Max) {
			if ttl, err := cache.TTL(ctx, key).Result(); err == nil && ttl > 0 {
				c.Set(fiber.HeaderRetryAfter, formatSeconds(ttl))
			}
			return apperror.ErrRateLimited
		}
		return c.Next()
	}
}

func formatSeconds(d time.Duration) string {
	secs := int(d.Round(time.Second) / time.Second)
	if secs < 1 {
		secs = 1
	}
	return strconv.Itoa(secs)
}
