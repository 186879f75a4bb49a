package models

import (
	"time"

	"github.com/google/uuid"
)

// RefreshSession is one row of the session ledger: a single issued refresh
// token, stored only as its SHA-256 hash. Rows are never updated after
// creation except to set RevokedAt; rotation inserts a successor row and
// revokes this one.
type RefreshSession struct {
	ID               uuid.UUID
	UserID           uuid.UUID
	RefreshTokenHash string
	UserAgent        *string
	IPAddress        *string
	ExpiresAt        time.Time
	RevokedAt        *time.Time
	CreatedAt        time.Time
}

// Active reports whether the session is neither revoked nor expired at now.
func (s *RefreshSession) Active(now time.Time) bool {
	return s.RevokedAt == nil && now.Before(s.ExpiresAt)
}
