package errors

import (
	"errors"
	"fmt"
)

// Sentinel errors for the auth domain. Services wrap these with context via
// fmt.Errorf("...: %w", err); the HTTP layer maps them to status codes.
var (
	ErrInternal     = errors.New("internal error")
	ErrInvalidInput = errors.New("invalid input")
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("conflict")
	ErrForbidden    = errors.New("forbidden")
	ErrUnauthorized = errors.New("unauthorized")
	ErrUnavailable  = errors.New("dependency unavailable")

	// Authentication.
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrEmailNotVerified   = errors.New("email not verified")
	ErrInvalidToken       = errors.New("invalid token")
	ErrExpiredToken       = errors.New("expired token")
	ErrRevokedToken       = errors.New("revoked token")

	// Users and identities.
	ErrUserNotFound    = errors.New("user not found")
	ErrUsernameExists  = errors.New("username already in use")
	ErrIdentityExists  = errors.New("identity already linked to another user")
	ErrSlotOccupied    = errors.New("user already has this identity type linked")
	ErrLastIdentity    = errors.New("cannot remove the last linked identity")
	ErrIdentityMissing = errors.New("identity is not linked")

	// Sessions and one-time tokens.
	ErrSessionNotFound = errors.New("session not found")
	ErrTokenConsumed   = errors.New("token already used")

	// OAuth.
	ErrInvalidState    = errors.New("invalid oauth state")
	ErrUnknownProvider = errors.New("unknown oauth provider")
)

// API error codes carried in responses.
const (
	CodeValidation   = "VALIDATION_ERROR"
	CodeUnauthorized = "UNAUTHORIZED"
	CodeForbidden    = "FORBIDDEN"
	CodeNotFound     = "NOT_FOUND"
	CodeConflict     = "CONFLICT"
	CodeUnavailable  = "UNAVAILABLE"
	CodeInternal     = "INTERNAL_ERROR"
)

// AppError carries a user-facing message and an API code alongside the
// wrapped cause.
type AppError struct {
	Err  error
	Msg  string
	Code string
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Msg, e.Err)
	}
	return e.Msg
}

func (e *AppError) Unwrap() error { return e.Err }

// ValidationError is an AppError that additionally lists every violated
// rule, so callers see all problems at once instead of the first.
type ValidationError struct {
	AppError
	Violations []string
}

func NewValidationError(msg string, violations []string) *ValidationError {
	return &ValidationError{
		AppError:   AppError{Err: ErrInvalidInput, Msg: msg, Code: CodeValidation},
		Violations: violations,
	}
}

func NewConflictError(msg string, cause error) *AppError {
	if cause == nil {
		cause = ErrConflict
	}
	return &AppError{Err: cause, Msg: msg, Code: CodeConflict}
}

func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound) ||
		errors.Is(err, ErrUserNotFound) ||
		errors.Is(err, ErrSessionNotFound)
}

func IsUnauthorized(err error) bool {
	return errors.Is(err, ErrUnauthorized) ||
		errors.Is(err, ErrInvalidCredentials) ||
		errors.Is(err, ErrEmailNotVerified) ||
		errors.Is(err, ErrInvalidToken) ||
		errors.Is(err, ErrExpiredToken) ||
		errors.Is(err, ErrRevokedToken)
}

func IsConflict(err error) bool {
	return errors.Is(err, ErrConflict) ||
		errors.Is(err, ErrUsernameExists) ||
		errors.Is(err, ErrIdentityExists) ||
		errors.Is(err, ErrSlotOccupied)
}

func IsInvalidInput(err error) bool {
	return errors.Is(err, ErrInvalidInput) ||
		errors.Is(err, ErrLastIdentity) ||
		errors.Is(err, ErrIdentityMissing) ||
		errors.Is(err, ErrTokenConsumed) ||
		errors.Is(err, ErrInvalidState)
}

func IsForbidden(err error) bool { return errors.Is(err, ErrForbidden) }

func IsUnavailable(err error) bool { return errors.Is(err, ErrUnavailable) }
