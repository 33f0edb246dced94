package middleware

import (
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"

	"github.com/buildforge/api/internal/config"
	"github.com/buildforge/api/internal/security"
	"github.com/buildforge/api/pkg/response"
)

type RateLimiter struct {
	redis    *redis.Client
	recorder security.Recorder
}

func NewRateLimiter(redisClient *redis.Client, recorder security.Recorder) *RateLimiter {
	return &RateLimiter{redis: redisClient, recorder: recorder}
}

// Limit enforces both an hourly and a daily cap per user for one feature.
func (rl *RateLimiter) Limit(feature string, limits config.FeatureLimit) fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID := GetUserID(c)
		if userID == "" {
			return c.Next() // auth middleware should catch this
		}

		if ok := rl.allow(c, feature, "hour", userID, limits.PerHour, time.Hour); !ok {
			rl.reject(c, feature, userID, "hourly cap")
			return response.RateLimited(c)
		}
		if ok := rl.allow(c, feature, "day", userID, limits.PerDay, 24*time.Hour); !ok {
			rl.reject(c, feature, userID, "daily cap")
			return response.RateLimited(c)
		}

		return c.Next()
	}
}

// allow increments one window's counter. Redis failures let the request
// through.
func (rl *RateLimiter) allow(c *fiber.Ctx, feature, window, userID string, max int, ttl time.Duration) bool {
	if max <= 0 {
		return true
	}

	key := fmt.Sprintf("ratelimit:%s:%s:%s", feature, window, userID)
	ctx := c.Context()

	count, err := rl.redis.Incr(ctx, key).Result()
	if err != nil {
		return true
	}

	// Set expiration on first request
	if count == 1 {
		rl.redis.Expire(ctx, key, ttl)
	}

	if count > int64(max) {
		retryTTL, _ := rl.redis.TTL(ctx, key).Result()
		c.Set("Retry-After", fmt.Sprintf("%d", int(retryTTL.Seconds())))
		return false
	}

	c.Set("X-RateLimit-Limit", fmt.Sprintf("%d", max))
	c.Set("X-RateLimit-Remaining", fmt.Sprintf("%d", max-int(count)))
	return true
}

func (rl *RateLimiter) reject(c *fiber.Ctx, feature, userID, detail string) {
	if rl.recorder == nil {
		return
	}
	rl.recorder.Record(c.Context(), security.Event{
		UserID:    userID,
		EventType: security.EventRateLimitExceeded,
		Severity:  security.SeverityLow,
		Details:   fmt.Sprintf("feature %s exceeded %s", feature, detail),
	})
}
