package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	domainErrors "github.com/todoapp/auth-service/internal/domain/errors"
	"github.com/todoapp/auth-service/internal/domain/models"
	"github.com/todoapp/auth-service/internal/domain/repository"
	"github.com/todoapp/auth-service/internal/infrastructure/security"
)

// stubUserRepo serves a single user by id. Embedding the interface keeps
// the stub small; only GetByID is ever reached from the middleware.
type stubUserRepo struct {
	repository.UserRepository
	user *models.User
}

func (r *stubUserRepo) GetByID(_ context.Context, id uuid.UUID) (*models.User, error) {
	if r.user != nil && r.user.ID == id {
		return r.user, nil
	}
	return nil, domainErrors.ErrUserNotFound
}

func testRouter(t *testing.T, users repository.UserRepository, ttl time.Duration) (*gin.Engine, func(*models.User) string) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	tokens, err := security.NewJWTService(security.JWTServiceConfig{
		AccessTokenSecret:  "access-secret",
		RefreshTokenSecret: "refresh-secret",
		AccessTokenTTL:     ttl,
		RefreshTokenTTL:    time.Hour,
		Issuer:             "auth-service-test",
	})
	require.NoError(t, err)

	router := gin.New()
	router.GET("/protected", AuthMiddleware(tokens, users, zap.NewNop()), func(c *gin.Context) {
		user, ok := CurrentUser(c)
		require.True(t, ok)
		c.JSON(http.StatusOK, gin.H{"id": user.ID})
	})

	mint := func(u *models.User) string {
		token, err := tokens.GenerateAccessToken(u)
		require.NoError(t, err)
		return token
	}
	return router, mint
}

func protectedRequest(router *gin.Engine, authHeader string) *httptest.ResponseRecorder {
	recorder := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	if authHeader != "" {
		req.Header.Set("Authorization", authHeader)
	}
	router.ServeHTTP(recorder, req)
	return recorder
}

func testUser() *models.User {
	email := "alice@example.com"
	return &models.User{
		ID:            uuid.New(),
		Role:          models.RoleGuest,
		LocalEnabled:  true,
		LocalUsername: &email,
	}
}

func TestAuthMiddleware(t *testing.T) {
	t.Run("ValidTokenPasses", func(t *testing.T) {
		user := testUser()
		router, mint := testRouter(t, &stubUserRepo{user: user}, 15*time.Minute)

		recorder := protectedRequest(router, "Bearer "+mint(user))
		assert.Equal(t, http.StatusOK, recorder.Code)
	})

	t.Run("MissingHeaderRejected", func(t *testing.T) {
		router, _ := testRouter(t, &stubUserRepo{}, 15*time.Minute)
		recorder := protectedRequest(router, "")
		assert.Equal(t, http.StatusUnauthorized, recorder.Code)
	})

	t.Run("MalformedHeaderRejected", func(t *testing.T) {
		user := testUser()
		router, mint := testRouter(t, &stubUserRepo{user: user}, 15*time.Minute)

		recorder := protectedRequest(router, "Token "+mint(user))
		assert.Equal(t, http.StatusUnauthorized, recorder.Code)
	})

	t.Run("ExpiredTokenRejected", func(t *testing.T) {
		user := testUser()
		router, mint := testRouter(t, &stubUserRepo{user: user}, time.Nanosecond)

		token := mint(user)
		time.Sleep(5 * time.Millisecond)
		recorder := protectedRequest(router, "Bearer "+token)
		assert.Equal(t, http.StatusUnauthorized, recorder.Code)
	})

	t.Run("DeletedUserRejected", func(t *testing.T) {
		user := testUser()
		router, mint := testRouter(t, &stubUserRepo{user: nil}, 15*time.Minute)

		recorder := protectedRequest(router, "Bearer "+mint(user))
		assert.Equal(t, http.StatusUnauthorized, recorder.Code)
	})
}

func TestRequireRole(t *testing.T) {
	gin.SetMode(gin.TestMode)

	makeRouter := func(user *models.User, required models.Role) *gin.Engine {
		router := gin.New()
		router.GET("/admin", func(c *gin.Context) {
			c.Set(ContextUserKey, user)
		}, RequireRole(required), func(c *gin.Context) {
			c.Status(http.StatusOK)
		})
		return router
	}

	get := func(router *gin.Engine) int {
		recorder := httptest.NewRecorder()
		router.ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, "/admin", nil))
		return recorder.Code
	}

	t.Run("AdminReachesAdminRoute", func(t *testing.T) {
		user := testUser()
		user.Role = models.RoleAdmin
		assert.Equal(t, http.StatusOK, get(makeRouter(user, models.RoleAdmin)))
	})

	t.Run("SysadminOutranksAdmin", func(t *testing.T) {
		user := testUser()
		user.Role = models.RoleSysadmin
		assert.Equal(t, http.StatusOK, get(makeRouter(user, models.RoleAdmin)))
	})

	t.Run("GuestBlocked", func(t *testing.T) {
		user := testUser()
		assert.Equal(t, http.StatusForbidden, get(makeRouter(user, models.RoleAdmin)))
	})

	t.Run("AdminBlockedFromSysadminRoute", func(t *testing.T) {
		user := testUser()
		user.Role = models.RoleAdmin
		assert.Equal(t, http.StatusForbidden, get(makeRouter(user, models.RoleSysadmin)))
	})
}
