package models

import (
	"time"

	"github.com/google/uuid"
)

// RegisterInput carries everything needed to create a local-identity user.
type RegisterInput struct {
	Email      string
	Password   string
	FullName   string
	Role       Role
	AutoVerify bool
}

// TokenPair is an access/refresh token pair as handed to the client.
type TokenPair struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

// UserInfo is the user view returned by auth endpoints.
type UserInfo struct {
	ID              uuid.UUID  `json:"id"`
	Email           string     `json:"email"`
	FullName        string     `json:"fullName"`
	Role            Role       `json:"role"`
	EmailVerified   bool       `json:"emailVerified"`
	EmailVerifiedAt *time.Time `json:"emailVerifiedAt,omitempty"`
	LocalUsername   *string    `json:"localUsername,omitempty"`
	GoogleEmail     *string    `json:"googleEmail,omitempty"`
	MSEmail         *string    `json:"msEmail,omitempty"`
}

// NewUserInfo projects a User into its API shape.
func NewUserInfo(u *User) UserInfo {
	return UserInfo{
		ID:              u.ID,
		Email:           u.Email(),
		FullName:        u.FullName,
		Role:            u.Role,
		EmailVerified:   u.EmailVerified(),
		EmailVerifiedAt: u.EmailVerifiedAt,
		LocalUsername:   u.LocalUsername,
		GoogleEmail:     u.GoogleEmail,
		MSEmail:         u.MSEmail,
	}
}

// AuthResult is the response of login, refresh and OAuth login.
type AuthResult struct {
	AccessToken  string   `json:"accessToken"`
	RefreshToken string   `json:"refreshToken"`
	User         UserInfo `json:"user"`
}

// ProviderIdentity is the normalized profile an OAuth provider vouches for
// after a successful code exchange.
type ProviderIdentity struct {
	Provider IdentityKind
	// Subject is the provider-issued stable id: google sub, or for
	// microsoft the "tid:oid" composite rendered by the provider adapter.
	Subject  string
	TenantID *uuid.UUID
	ObjectID *uuid.UUID
	Email    string
	FullName string
}
