package http

import (
	"fmt"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/pharmaprep/platform-api/internal/config"
	apperrors "github.com/pharmaprep/platform-api/pkg/util"
)

// RateLimit returns a fixed-window limiter keyed by path and client IP,
// backed by Redis so limits hold across replicas. Fails open when Redis is
// unreachable: auth availability wins over abuse control.
func RateLimit(client *redis.Client, cfg config.RateLimitConfig, logger *zap.Logger) fiber.Handler {
	window := cfg.Window()

	return func(c *fiber.Ctx) error {
		if client == nil {
			return c.Next()
		}

		key := fmt.Sprintf("ratelimit:%s:%s", c.Path(), c.IP())
		ctx := c.UserContext()

		count, err := client.Incr(ctx, key).Result()
		if err != nil {
			logger.Warn("rate limiter unavailable", zap.Error(err))
			return c.Next()
		}
		if count == 1 {
			if err := client.Expire(ctx, key, window).Err(); err != nil {
				logger.Warn("rate limiter expire failed", zap.Error(err))
			}
		}
		if count > int64(cfg.Requests) {
			return apperrors.NewRateLimited()
		}
		return c.Next()
	}
}
