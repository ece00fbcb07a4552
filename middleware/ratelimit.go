package middleware

import (
	"net/http"
	"strconv"
	"time"

	"pdf-chat-service/utils"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// RateLimitMiddleware implements fixed-window rate limiting using Redis.
// It limits requests per IP + endpoint combination and fails open when
// Redis is unreachable.
func RateLimitMiddleware(rdb redis.Cmdable, limit, windowSeconds int, logger *zap.Logger) gin.HandlerFunc {
	window := time.Duration(windowSeconds) * time.Second
	return func(c *gin.Context) {
		// Skip rate limiting for health checks
		if c.FullPath() == "/health" {
			c.Next()
			return
		}

		key := "ratelimit:" + c.ClientIP() + ":" + c.FullPath()

		ctx := c.Request.Context()
		count, err := rdb.Incr(ctx, key).Result()
		if err != nil {
			logger.Warn("Rate limiter unavailable", zap.Error(err))
			c.Next()
			return
		}

		// Set expiration on first request
		if count == 1 {
			if err := rdb.Expire(ctx, key, window).Err(); err != nil {
				logger.Warn("Rate limiter could not set window", zap.String("key", key), zap.Error(err))
				rdb.Del(ctx, key)
				c.Next()
				return
			}
		}

		c.Header("X-RateLimit-Limit", strconv.Itoa(limit))
		if count > int64(limit) {
			restoreWindow(c, rdb, key, window, logger)
			c.Header("X-RateLimit-Remaining", "0")
			c.Header("X-RateLimit-Reset", strconv.FormatInt(time.Now().Add(window).Unix(), 10))

			utils.RespondWithError(c, http.StatusTooManyRequests,
				"rate_limit_exceeded",
				"Too many requests. Please try again later.",
				gin.H{
					"retry_after": windowSeconds,
					"limit":       limit,
				})
			c.Abort()
			return
		}

		c.Header("X-RateLimit-Remaining", strconv.Itoa(limit-int(count)))
		c.Next()
	}
}

// restoreWindow puts a TTL back on a counter that lost it, so a client is
// never blocked for longer than one window.
func restoreWindow(c *gin.Context, rdb redis.Cmdable, key string, window time.Duration, logger *zap.Logger) {
	ttl, err := rdb.TTL(c.Request.Context(), key).Result()
	if err != nil || ttl >= 0 {
		return
	}
	if err := rdb.Expire(c.Request.Context(), key, window).Err(); err != nil {
		logger.Warn("Rate limiter could not restore window", zap.String("key", key), zap.Error(err))
	}
}
