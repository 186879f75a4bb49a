package repository

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/todoapp/auth-service/internal/domain/models"
)

// OneTimeTokenRepository is the port for verification and reset tokens.
type OneTimeTokenRepository interface {
	// Replace deletes every token for (user, purpose) and inserts token,
	// keeping at most one live token per purpose per user.
	Replace(ctx context.Context, token *models.OneTimeToken) error

	// GetByHash returns the token with the given hash and purpose
	// regardless of its consumed state, or ErrNotFound.
	GetByHash(ctx context.Context, purpose models.TokenPurpose, tokenHash string) (*models.OneTimeToken, error)

	// MarkConsumed sets consumed_at on the token.
	MarkConsumed(ctx context.Context, id uuid.UUID, at time.Time) error

	// DeleteExpired removes tokens that expired before the cutoff.
	DeleteExpired(ctx context.Context, cutoff time.Time) (int64, error)
}
