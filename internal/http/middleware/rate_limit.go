package middleware

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	gocache "github.com/patrickmn/go-cache"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// RateLimitConfig holds rate limiting configuration
type RateLimitConfig struct {
	MaxRequests int
	Window      time.Duration
	KeyPrefix   string
}

// DefaultRateLimitConfig returns default rate limit configuration
func DefaultRateLimitConfig() RateLimitConfig {
	return RateLimitConfig{
		MaxRequests: 60,
		Window:      time.Minute,
		KeyPrefix:   "powerqr:ratelimit",
	}
}

// Counter counts hits per key inside a fixed window starting at the first hit.
type Counter interface {
	Incr(ctx context.Context, key string, window time.Duration) (int64, error)
}

type redisCounter struct {
	rdb redis.Cmdable
}

// NewRedisCounter shares the window across every dashboard replica.
func NewRedisCounter(rdb redis.Cmdable) Counter {
	return &redisCounter{rdb: rdb}
}

func (r *redisCounter) Incr(ctx context.Context, key string, window time.Duration) (int64, error) {
	n, err := r.rdb.Incr(ctx, key).Result()
	if err != nil {
		return 0, err
	}
	// Set expiration on first request
	if n == 1 {
		if err := r.rdb.Expire(ctx, key, window).Err(); err != nil {
			return n, err
		}
	}
	return n, nil
}

type memoryCounter struct {
	cache *gocache.Cache
}

// NewMemoryCounter counts in process. Used when Redis is not configured.
func NewMemoryCounter() Counter {
	return &memoryCounter{cache: gocache.New(time.Minute, time.Minute)}
}

func (m *memoryCounter) Incr(_ context.Context, key string, window time.Duration) (int64, error) {
	if err := m.cache.Add(key, int64(1), window); err == nil {
		return 1, nil
	}
	n, err := m.cache.IncrementInt64(key, 1)
	if err != nil {
		// Expired between Add and Increment.
		m.cache.Set(key, int64(1), window)
		return 1, nil
	}
	return n, nil
}

// RateLimit limits requests per client IP.
func RateLimit(counter Counter, config RateLimitConfig, logger *zap.Logger) fiber.Handler {
	if config.MaxRequests <= 0 || config.Window <= 0 {
		def := DefaultRateLimitConfig()
		config.MaxRequests, config.Window = def.MaxRequests, def.Window
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return func(c *fiber.Ctx) error {
		key := fmt.Sprintf("%s:%s", config.KeyPrefix, c.IP())

		result, err := counter.Incr(c.Context(), key, config.Window)
		if err != nil {
			logger.Error("rate limit counter error", zap.Error(err))
			// Fail open: allow request if the counter is unavailable
			return c.Next()
		}

		remaining := config.MaxRequests - int(result)
		c.Set("X-RateLimit-Limit", strconv.Itoa(config.MaxRequests))
		c.Set("X-RateLimit-Remaining", strconv.Itoa(max(0, remaining)))

		if result > int64(config.MaxRequests) {
			c.Set(fiber.HeaderRetryAfter, strconv.Itoa(int(config.Window.Seconds())))
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"error":   true,
				"message": "rate limit exceeded",
			})
		}

		return c.Next()
	}
}
