package models

import (
	"time"

	"github.com/google/uuid"
)

// Audit action vocabulary. The set is closed; new actions are added here, not
// inlined at call sites.
const (
	AuditRegister            = "REGISTER"
	AuditLoginSuccess        = "LOGIN_SUCCESS"
	AuditLoginFailure        = "LOGIN_FAILURE"
	AuditRefreshTokenRotated = "REFRESH_TOKEN_ROTATED"
	AuditLogout              = "LOGOUT"
	AuditEmailVerified       = "EMAIL_VERIFIED"
	AuditPasswordReset       = "PASSWORD_RESET"
	AuditPasswordResetReq    = "PASSWORD_RESET_REQUESTED"
	AuditAccountsMerged      = "ACCOUNTS_MERGED"
	AuditIdentityLinked      = "IDENTITY_LINKED"
	AuditIdentityUnlinked    = "IDENTITY_UNLINKED"
	AuditOAuthRegister       = "OAUTH_REGISTER"
	AuditOAuthLoginSuccess   = "OAUTH_LOGIN_SUCCESS"
	AuditOAuthEmailUpdated   = "OAUTH_EMAIL_UPDATED"
	AuditAdminUserViewed     = "ADMIN_USER_VIEWED"
	AuditAdminUserUpdated    = "ADMIN_USER_UPDATED"
	AuditAdminUserDeleted    = "ADMIN_USER_DELETED"
)

// AuditLogEntry is an append-only record of a security-relevant transition.
// UserID is nil when the actor is unknown (e.g. failed login for an unknown
// username).
type AuditLogEntry struct {
	ID         uuid.UUID
	UserID     *uuid.UUID
	Action     string
	EntityType *string
	EntityID   *uuid.UUID
	Metadata   map[string]any
	IPAddress  *string
	UserAgent  *string
	CreatedAt  time.Time
}
