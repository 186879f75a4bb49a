package security_test

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domainErrors "github.com/todoapp/auth-service/internal/domain/errors"
	"github.com/todoapp/auth-service/internal/domain/models"
	"github.com/todoapp/auth-service/internal/infrastructure/security"
)

func testJWTConfig() security.JWTServiceConfig {
	return security.JWTServiceConfig{
		AccessTokenSecret:  "access-secret-for-tests",
		RefreshTokenSecret: "refresh-secret-for-tests",
		AccessTokenTTL:     15 * time.Minute,
		RefreshTokenTTL:    7 * 24 * time.Hour,
		Issuer:             "auth-service-test",
	}
}

func testUser() *models.User {
	username := "alice@example.com"
	return &models.User{
		ID:            uuid.New(),
		FullName:      "Alice Example",
		Role:          models.RoleGuest,
		LocalEnabled:  true,
		LocalUsername: &username,
	}
}

func TestJWTService_AccessTokenRoundTrip(t *testing.T) {
	svc, err := security.NewJWTService(testJWTConfig())
	require.NoError(t, err)

	user := testUser()
	token, err := svc.GenerateAccessToken(user)
	require.NoError(t, err)
	require.NotEmpty(t, token)

	claims, err := svc.ParseAccessToken(token)
	require.NoError(t, err)
	assert.Equal(t, user.ID.String(), claims.Subject)
	assert.Equal(t, "alice@example.com", claims.Email)
	assert.Equal(t, string(models.RoleGuest), claims.Role)
}

func TestJWTService_RefreshTokenRoundTrip(t *testing.T) {
	svc, err := security.NewJWTService(testJWTConfig())
	require.NoError(t, err)

	userID := uuid.New()
	sessionID := uuid.New()
	token, err := svc.GenerateRefreshToken(userID, sessionID)
	require.NoError(t, err)

	claims, err := svc.ParseRefreshToken(token)
	require.NoError(t, err)
	assert.Equal(t, userID.String(), claims.Subject)
	assert.Equal(t, sessionID.String(), claims.SessionID)
}

func TestJWTService_SecretsAreIndependent(t *testing.T) {
	svc, err := security.NewJWTService(testJWTConfig())
	require.NoError(t, err)

	// An access token must not validate as a refresh token and vice versa.
	accessToken, err := svc.GenerateAccessToken(testUser())
	require.NoError(t, err)
	_, err = svc.ParseRefreshToken(accessToken)
	assert.ErrorIs(t, err, domainErrors.ErrInvalidToken)

	refreshToken, err := svc.GenerateRefreshToken(uuid.New(), uuid.New())
	require.NoError(t, err)
	_, err = svc.ParseAccessToken(refreshToken)
	assert.ErrorIs(t, err, domainErrors.ErrInvalidToken)
}

func TestJWTService_WrongSecretRejected(t *testing.T) {
	issuer, err := security.NewJWTService(testJWTConfig())
	require.NoError(t, err)

	otherCfg := testJWTConfig()
	otherCfg.AccessTokenSecret = "a-completely-different-secret"
	verifier, err := security.NewJWTService(otherCfg)
	require.NoError(t, err)

	token, err := issuer.GenerateAccessToken(testUser())
	require.NoError(t, err)

	_, err = verifier.ParseAccessToken(token)
	assert.ErrorIs(t, err, domainErrors.ErrInvalidToken)
}

func TestJWTService_ExpiredAccessToken(t *testing.T) {
	cfg := testJWTConfig()
	cfg.AccessTokenTTL = time.Nanosecond
	svc, err := security.NewJWTService(cfg)
	require.NoError(t, err)

	token, err := svc.GenerateAccessToken(testUser())
	require.NoError(t, err)

	time.Sleep(10 * time.Millisecond)
	_, err = svc.ParseAccessToken(token)
	assert.ErrorIs(t, err, domainErrors.ErrExpiredToken)
}

func TestJWTService_GarbageToken(t *testing.T) {
	svc, err := security.NewJWTService(testJWTConfig())
	require.NoError(t, err)

	_, err = svc.ParseAccessToken("not.a.token")
	assert.ErrorIs(t, err, domainErrors.ErrInvalidToken)
}
