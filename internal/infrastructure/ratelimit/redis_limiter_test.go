package ratelimit_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/todoapp/auth-service/internal/config"
	"github.com/todoapp/auth-service/internal/infrastructure/ratelimit"
)

func newTestLimiter(t *testing.T) (*ratelimit.RedisLimiter, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return ratelimit.NewRedisLimiter(client, zap.NewNop(), true), mr
}

func TestRedisLimiter_AllowsUpToLimit(t *testing.T) {
	limiter, _ := newTestLimiter(t)
	rule := config.RateLimitRule{Enabled: true, Limit: 3, Window: time.Minute}

	for i := 0; i < 3; i++ {
		allowed, err := limiter.Allow(context.Background(), "login:203.0.113.7", rule)
		require.NoError(t, err)
		assert.True(t, allowed, "attempt %d should be allowed", i+1)
	}

	allowed, err := limiter.Allow(context.Background(), "login:203.0.113.7", rule)
	require.NoError(t, err)
	assert.False(t, allowed)
}

func TestRedisLimiter_WindowExpires(t *testing.T) {
	limiter, mr := newTestLimiter(t)
	rule := config.RateLimitRule{Enabled: true, Limit: 1, Window: time.Minute}

	allowed, err := limiter.Allow(context.Background(), "reset:a@b.c", rule)
	require.NoError(t, err)
	assert.True(t, allowed)

	allowed, err = limiter.Allow(context.Background(), "reset:a@b.c", rule)
	require.NoError(t, err)
	assert.False(t, allowed)

	mr.FastForward(61 * time.Second)

	allowed, err = limiter.Allow(context.Background(), "reset:a@b.c", rule)
	require.NoError(t, err)
	assert.True(t, allowed)
}

func TestRedisLimiter_KeysAreIndependent(t *testing.T) {
	limiter, _ := newTestLimiter(t)
	rule := config.RateLimitRule{Enabled: true, Limit: 1, Window: time.Minute}

	allowed, err := limiter.Allow(context.Background(), "login:10.0.0.1", rule)
	require.NoError(t, err)
	assert.True(t, allowed)

	allowed, err = limiter.Allow(context.Background(), "login:10.0.0.2", rule)
	require.NoError(t, err)
	assert.True(t, allowed)
}

func TestRedisLimiter_DisabledRulePasses(t *testing.T) {
	limiter, _ := newTestLimiter(t)
	rule := config.RateLimitRule{Enabled: false, Limit: 1, Window: time.Minute}

	for i := 0; i < 10; i++ {
		allowed, err := limiter.Allow(context.Background(), "anything", rule)
		require.NoError(t, err)
		assert.True(t, allowed)
	}
}

func TestRedisLimiter_FailsOpenOnOutage(t *testing.T) {
	limiter, mr := newTestLimiter(t)
	rule := config.RateLimitRule{Enabled: true, Limit: 1, Window: time.Minute}
	mr.Close()

	allowed, err := limiter.Allow(context.Background(), "login:203.0.113.7", rule)
	assert.Error(t, err)
	assert.True(t, allowed)
}

func TestRedisLimiter_Reset(t *testing.T) {
	limiter, _ := newTestLimiter(t)
	rule := config.RateLimitRule{Enabled: true, Limit: 1, Window: time.Minute}

	_, err := limiter.Allow(context.Background(), "verify:u1", rule)
	require.NoError(t, err)
	allowed, err := limiter.Allow(context.Background(), "verify:u1", rule)
	require.NoError(t, err)
	require.False(t, allowed)

	require.NoError(t, limiter.Reset(context.Background(), "verify:u1"))

	allowed, err = limiter.Allow(context.Background(), "verify:u1", rule)
	require.NoError(t, err)
	assert.True(t, allowed)
}
