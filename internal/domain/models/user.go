package models

import (
	"time"

	"github.com/google/uuid"
)

// Role is the ordered access level of a user: guest < admin < sysadmin.
type Role string

const (
	RoleGuest    Role = "guest"
	RoleAdmin    Role = "admin"
	RoleSysadmin Role = "sysadmin"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleGuest, RoleAdmin, RoleSysadmin:
		return true
	}
	return false
}

// Level returns the position of the role in the hierarchy.
func (r Role) Level() int {
	switch r {
	case RoleSysadmin:
		return 2
	case RoleAdmin:
		return 1
	default:
		return 0
	}
}

// AtLeast reports whether r grants at least the access of other.
func (r Role) AtLeast(other Role) bool { return r.Level() >= other.Level() }

// IdentityKind names one of the mutually exclusive identity slots a user may
// link.
type IdentityKind string

const (
	IdentityLocal     IdentityKind = "local"
	IdentityGoogle    IdentityKind = "google"
	IdentityMicrosoft IdentityKind = "microsoft"
)

// User is the identity aggregate. Each identity slot is a set of nullable
// columns on the users row; at most one instance per slot, and every user is
// expected to keep at least one slot populated (enforced at unlink time).
type User struct {
	ID              uuid.UUID
	FullName        string
	Role            Role
	EmailVerifiedAt *time.Time

	// Local identity.
	LocalEnabled      bool
	LocalUsername     *string
	LocalPasswordHash *string

	// Google identity.
	GoogleSub   *string
	GoogleEmail *string

	// Microsoft identity: (tid, oid) is the composite external key.
	MSObjectID *uuid.UUID
	MSTenantID *uuid.UUID
	MSEmail    *string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// HasLocal reports whether the local identity slot is populated and usable.
func (u *User) HasLocal() bool { return u.LocalEnabled && u.LocalUsername != nil }

func (u *User) HasGoogle() bool { return u.GoogleSub != nil }

func (u *User) HasMicrosoft() bool { return u.MSObjectID != nil && u.MSTenantID != nil }

// HasIdentity reports whether the given slot is populated.
func (u *User) HasIdentity(kind IdentityKind) bool {
	switch kind {
	case IdentityLocal:
		return u.HasLocal()
	case IdentityGoogle:
		return u.HasGoogle()
	case IdentityMicrosoft:
		return u.HasMicrosoft()
	}
	return false
}

// IdentityCount returns how many slots are populated.
func (u *User) IdentityCount() int {
	n := 0
	for _, k := range []IdentityKind{IdentityLocal, IdentityGoogle, IdentityMicrosoft} {
		if u.HasIdentity(k) {
			n++
		}
	}
	return n
}

// Email derives the user's primary email. The fallback order
// local -> google -> microsoft is encoded here once, so call sites never
// re-implement the slot preference.
func (u *User) Email() string {
	switch {
	case u.LocalUsername != nil:
		return *u.LocalUsername
	case u.GoogleEmail != nil:
		return *u.GoogleEmail
	case u.MSEmail != nil:
		return *u.MSEmail
	}
	return ""
}

// EmailVerified reports whether the user's email has been verified.
func (u *User) EmailVerified() bool { return u.EmailVerifiedAt != nil }
