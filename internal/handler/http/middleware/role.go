package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	domainErrors "github.com/todoapp/auth-service/internal/domain/errors"
	"github.com/todoapp/auth-service/internal/domain/models"
)

// RequireRole aborts with 403 unless the current user's role level is at
// least the given role's. Must run after AuthMiddleware.
func RequireRole(role models.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		user, ok := CurrentUser(c)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "authentication required", "code": domainErrors.CodeUnauthorized})
			return
		}
		if user.Role.Level() < role.Level() {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"error": "insufficient permissions", "code": domainErrors.CodeForbidden})
			return
		}
		c.Next()
	}
}
