package service

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/todoapp/auth-service/internal/domain/models"
)

// AccessTokenClaims is the payload of a signed access token.
type AccessTokenClaims struct {
	jwt.RegisteredClaims
	Email     string `json:"email,omitempty"`
	Role      string `json:"role"`
	TokenType string `json:"token_type"`
}

// RefreshTokenClaims is the payload of a signed refresh token. The session
// identifier binds the token to one server-side refresh session row.
type RefreshTokenClaims struct {
	jwt.RegisteredClaims
	SessionID string `json:"session_id"`
	TokenType string `json:"token_type"`
}

// TokenService signs and verifies the JWT pair. Access and refresh tokens
// use independent secrets so each can be rotated without affecting the other.
type TokenService interface {
	GenerateAccessToken(user *models.User) (string, error)
	GenerateRefreshToken(userID, sessionID uuid.UUID) (string, error)
	ParseAccessToken(tokenString string) (*AccessTokenClaims, error)
	ParseRefreshToken(tokenString string) (*RefreshTokenClaims, error)
	RefreshTokenTTL() time.Duration
}
