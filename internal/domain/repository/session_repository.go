package repository

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/todoapp/auth-service/internal/domain/models"
)

// SessionRepository is the session-ledger port. Refresh tokens are handled
// exclusively as SHA-256 hex hashes at this layer; plaintext never reaches
// the store.
type SessionRepository interface {
	Create(ctx context.Context, session *models.RefreshSession) error

	// LookupActive returns the session for tokenHash only when it exists,
	// is unrevoked and unexpired; otherwise ErrSessionNotFound.
	LookupActive(ctx context.Context, tokenHash string) (*models.RefreshSession, error)

	// Revoke marks the session for tokenHash revoked. Idempotent: revoking
	// an already-revoked or unknown hash is not an error.
	Revoke(ctx context.Context, tokenHash string) error

	// RevokeAll revokes every active session of the user and reports how
	// many rows were touched.
	RevokeAll(ctx context.Context, userID uuid.UUID) (int64, error)

	// Rotate atomically revokes the active session identified by
	// oldTokenHash and inserts next in the same transaction. It returns
	// the revoked session, or ErrSessionNotFound when no active session
	// matches, in which case next is not inserted. This is the only safe
	// entry point for refresh-token rotation: a concurrent replay of the
	// same token serializes on the row update and loses.
	Rotate(ctx context.Context, oldTokenHash string, next *models.RefreshSession) (*models.RefreshSession, error)

	// DeleteExpired removes sessions that expired before the cutoff.
	DeleteExpired(ctx context.Context, cutoff time.Time) (int64, error)
}
