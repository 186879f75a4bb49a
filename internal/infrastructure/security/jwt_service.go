package security

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	domainErrors "github.com/todoapp/auth-service/internal/domain/errors"
	"github.com/todoapp/auth-service/internal/domain/models"
	"github.com/todoapp/auth-service/internal/domain/service"
)

const (
	accessTokenType  = "access"
	refreshTokenType = "refresh"
)

// JWTServiceConfig carries the secrets and lifetimes for the token pair.
// The two secrets are independent: rotating one invalidates only tokens of
// that kind.
type JWTServiceConfig struct {
	AccessTokenSecret  string
	RefreshTokenSecret string
	AccessTokenTTL     time.Duration
	RefreshTokenTTL    time.Duration
	Issuer             string
}

type jwtService struct {
	config JWTServiceConfig
}

// NewJWTService creates a TokenService signing with HS256.
func NewJWTService(cfg JWTServiceConfig) (service.TokenService, error) {
	if cfg.AccessTokenSecret == "" || cfg.RefreshTokenSecret == "" {
		return nil, errors.New("access and refresh token secrets must be configured")
	}
	if cfg.AccessTokenTTL <= 0 {
		cfg.AccessTokenTTL = 15 * time.Minute
	}
	if cfg.RefreshTokenTTL <= 0 {
		cfg.RefreshTokenTTL = 7 * 24 * time.Hour
	}
	return &jwtService{config: cfg}, nil
}

func (s *jwtService) GenerateAccessToken(user *models.User) (string, error) {
	now := time.Now()
	claims := &service.AccessTokenClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID.String(),
			Issuer:    s.config.Issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.config.AccessTokenTTL)),
			ID:        uuid.NewString(),
		},
		Email:     user.Email(),
		Role:      string(user.Role),
		TokenType: accessTokenType,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(s.config.AccessTokenSecret))
	if err != nil {
		return "", fmt.Errorf("failed to sign access token: %w", err)
	}
	return signed, nil
}

func (s *jwtService) GenerateRefreshToken(userID, sessionID uuid.UUID) (string, error) {
	now := time.Now()
	claims := &service.RefreshTokenClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID.String(),
			Issuer:    s.config.Issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.config.RefreshTokenTTL)),
			ID:        uuid.NewString(),
		},
		SessionID: sessionID.String(),
		TokenType: refreshTokenType,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(s.config.RefreshTokenSecret))
	if err != nil {
		return "", fmt.Errorf("failed to sign refresh token: %w", err)
	}
	return signed, nil
}

func (s *jwtService) ParseAccessToken(tokenString string) (*service.AccessTokenClaims, error) {
	claims := &service.AccessTokenClaims{}
	if err := s.parse(tokenString, claims, s.config.AccessTokenSecret); err != nil {
		return nil, err
	}
	if claims.TokenType != accessTokenType {
		return nil, fmt.Errorf("%w: unexpected token type %q", domainErrors.ErrInvalidToken, claims.TokenType)
	}
	return claims, nil
}

func (s *jwtService) ParseRefreshToken(tokenString string) (*service.RefreshTokenClaims, error) {
	claims := &service.RefreshTokenClaims{}
	if err := s.parse(tokenString, claims, s.config.RefreshTokenSecret); err != nil {
		return nil, err
	}
	if claims.TokenType != refreshTokenType {
		return nil, fmt.Errorf("%w: unexpected token type %q", domainErrors.ErrInvalidToken, claims.TokenType)
	}
	return claims, nil
}

func (s *jwtService) RefreshTokenTTL() time.Duration {
	return s.config.RefreshTokenTTL
}

func (s *jwtService) parse(tokenString string, claims jwt.Claims, secret string) error {
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(secret), nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return domainErrors.ErrExpiredToken
		}
		return fmt.Errorf("%w: %v", domainErrors.ErrInvalidToken, err)
	}
	if !token.Valid {
		return domainErrors.ErrInvalidToken
	}
	return nil
}

var _ service.TokenService = (*jwtService)(nil)
