package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/todoapp/auth-service/internal/config"
	"github.com/todoapp/auth-service/internal/domain/service"
)

// RateLimitMiddleware applies a fixed-window limit keyed by client IP. A
// limiter backend failure lets the request through; an unavailable Redis
// must not take authentication down with it.
func RateLimitMiddleware(limiter service.RateLimiter, rule config.RateLimitRule, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !rule.Enabled {
			c.Next()
			return
		}

		key := "http:" + c.ClientIP()
		allowed, err := limiter.Allow(c.Request.Context(), key, rule)
		if err != nil {
			logger.Error("rate limiter failed", zap.Error(err), zap.String("key", key))
		}
		if !allowed {
			logger.Warn("rate limit exceeded",
				zap.String("key", key),
				zap.Int("limit", rule.Limit),
				zap.Duration("window", rule.Window),
			)
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "too many requests"})
			return
		}
		c.Next()
	}
}
