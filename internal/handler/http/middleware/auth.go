package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	domainErrors "github.com/todoapp/auth-service/internal/domain/errors"
	"github.com/todoapp/auth-service/internal/domain/models"
	"github.com/todoapp/auth-service/internal/domain/repository"
	"github.com/todoapp/auth-service/internal/domain/service"
)

const (
	authHeaderKey  = "Authorization"
	authTypeBearer = "bearer"

	ContextUserKey   = "currentUser"
	ContextUserIDKey = "userID"
	ContextClaimsKey = "claims"
)

// AuthMiddleware validates the bearer access token and loads the current
// user. Loading the row on every request means a deleted or merged-away
// account is locked out as soon as its access token is next presented,
// instead of at token expiry.
func AuthMiddleware(tokens service.TokenService, users repository.UserRepository, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader(authHeaderKey)
		if authHeader == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "authorization header required", "code": domainErrors.CodeUnauthorized})
			return
		}

		scheme, token, found := strings.Cut(authHeader, " ")
		if !found || strings.ToLower(scheme) != authTypeBearer {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "authorization header format must be Bearer <token>", "code": domainErrors.CodeUnauthorized})
			return
		}

		claims, err := tokens.ParseAccessToken(token)
		if err != nil {
			message := "invalid or expired token"
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": message, "code": domainErrors.CodeUnauthorized})
			return
		}

		userID, err := uuid.Parse(claims.Subject)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "invalid or expired token", "code": domainErrors.CodeUnauthorized})
			return
		}

		user, err := users.GetByID(c.Request.Context(), userID)
		if err != nil {
			logger.Warn("authenticated user no longer exists",
				zap.String("user_id", userID.String()), zap.Error(err))
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "account no longer exists", "code": domainErrors.CodeUnauthorized})
			return
		}

		c.Set(ContextClaimsKey, claims)
		c.Set(ContextUserIDKey, userID)
		c.Set(ContextUserKey, user)
		c.Next()
	}
}

// CurrentUser returns the user loaded by AuthMiddleware.
func CurrentUser(c *gin.Context) (*models.User, bool) {
	value, ok := c.Get(ContextUserKey)
	if !ok {
		return nil, false
	}
	user, ok := value.(*models.User)
	return user, ok
}
