package ratelimit

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/todoapp/auth-service/internal/config"
	"github.com/todoapp/auth-service/internal/domain/service"
)

// RedisLimiter implements a fixed-window counter per key in Redis. It fails
// open: a Redis outage must not lock every user out of authentication.
type RedisLimiter struct {
	client  *redis.Client
	logger  *zap.Logger
	enabled bool
}

func NewRedisLimiter(client *redis.Client, logger *zap.Logger, enabled bool) *RedisLimiter {
	return &RedisLimiter{client: client, logger: logger, enabled: enabled}
}

func (l *RedisLimiter) Allow(ctx context.Context, key string, rule config.RateLimitRule) (bool, error) {
	if !l.enabled || !rule.Enabled {
		return true, nil
	}

	redisKey := fmt.Sprintf("rate:%s", key)

	// INCR and EXPIRE run in one pipeline so the window starts atomically
	// with the first hit.
	pipe := l.client.TxPipeline()
	incr := pipe.Incr(ctx, redisKey)
	pipe.ExpireNX(ctx, redisKey, rule.Window)
	if _, err := pipe.Exec(ctx); err != nil {
		l.logger.Error("rate limiter unavailable, allowing request",
			zap.String("key", key), zap.Error(err))
		return true, err
	}

	count := incr.Val()
	if count > int64(rule.Limit) {
		l.logger.Warn("rate limit exceeded",
			zap.String("key", key),
			zap.Int64("count", count),
			zap.Int("limit", rule.Limit))
		return false, nil
	}
	return true, nil
}

// Reset clears the window for a key. Used after successful verification so
// a legitimate user is not penalized for earlier failures.
func (l *RedisLimiter) Reset(ctx context.Context, key string) error {
	return l.client.Del(ctx, fmt.Sprintf("rate:%s", key)).Err()
}

var _ service.RateLimiter = (*RedisLimiter)(nil)
