package models

import (
	"time"

	"github.com/google/uuid"
)

// TokenPurpose distinguishes the two single-use token flows.
type TokenPurpose string

const (
	PurposeEmailVerification TokenPurpose = "email_verification"
	PurposePasswordReset     TokenPurpose = "password_reset"
)

// OneTimeToken is a hashed, time-boxed, single-use token bound to a user.
// At most one live token per (user, purpose) is meaningful: issuing a new one
// deletes the previous ones.
type OneTimeToken struct {
	ID         uuid.UUID
	UserID     uuid.UUID
	Purpose    TokenPurpose
	TokenHash  string
	ExpiresAt  time.Time
	ConsumedAt *time.Time
	CreatedAt  time.Time
}

// Expired reports whether the token's validity window has passed.
func (t *OneTimeToken) Expired(now time.Time) bool { return now.After(t.ExpiresAt) }

// Consumed reports whether the token has already been used.
func (t *OneTimeToken) Consumed() bool { return t.ConsumedAt != nil }
