package service

import (
	"context"

	"github.com/todoapp/auth-service/internal/config"
)

// RateLimiter gates how often a keyed operation may run inside a window.
// Implementations fail open: when the backing store is unreachable the
// request is allowed and the error returned for logging.
type RateLimiter interface {
	Allow(ctx context.Context, key string, rule config.RateLimitRule) (bool, error)

	// Reset clears the window for a key so earlier failures stop counting
	// against it.
	Reset(ctx context.Context, key string) error
}
