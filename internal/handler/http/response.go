package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	domainErrors "github.com/todoapp/auth-service/internal/domain/errors"
)

// ResponseError is the error envelope every failing endpoint returns.
type ResponseError struct {
	Error      string   `json:"error"`
	Code       string   `json:"code"`
	Violations []string `json:"violations,omitempty"`
}

// RespondWithError maps a service error to an HTTP status and a sanitized
// body. Sentinel errors carry their own message; everything unrecognized
// becomes a generic 500 so internals never leak.
func RespondWithError(c *gin.Context, err error, logger *zap.Logger) {
	status, code := statusForError(err)

	body := ResponseError{
		Error: messageForError(err, status),
		Code:  code,
	}
	var vErr *domainErrors.ValidationError
	if errors.As(err, &vErr) {
		body.Error = vErr.Msg
		body.Violations = vErr.Violations
	}

	if status >= http.StatusInternalServerError {
		logger.Error("request failed",
			zap.Int("status", status),
			zap.String("path", c.Request.URL.Path),
			zap.String("method", c.Request.Method),
			zap.Error(err),
		)
	}

	c.AbortWithStatusJSON(status, body)
}

// RespondWithData sends a success payload.
func RespondWithData(c *gin.Context, statusCode int, data interface{}) {
	c.JSON(statusCode, data)
}

// RespondWithMessage sends a success body with only a message.
func RespondWithMessage(c *gin.Context, statusCode int, message string) {
	c.JSON(statusCode, gin.H{"message": message})
}

func statusForError(err error) (int, string) {
	switch {
	case domainErrors.IsUnauthorized(err):
		return http.StatusUnauthorized, domainErrors.CodeUnauthorized
	case domainErrors.IsForbidden(err):
		return http.StatusForbidden, domainErrors.CodeForbidden
	case domainErrors.IsNotFound(err):
		return http.StatusNotFound, domainErrors.CodeNotFound
	case domainErrors.IsConflict(err):
		return http.StatusConflict, domainErrors.CodeConflict
	case domainErrors.IsInvalidInput(err), errors.Is(err, domainErrors.ErrUnknownProvider):
		return http.StatusBadRequest, domainErrors.CodeValidation
	case domainErrors.IsUnavailable(err):
		return http.StatusServiceUnavailable, domainErrors.CodeUnavailable
	default:
		return http.StatusInternalServerError, domainErrors.CodeInternal
	}
}

// messageForError picks the client-visible message. For expected errors the
// sentinel text is already safe; wrapped context added by inner layers is
// discarded along with it for 500s.
func messageForError(err error, status int) string {
	if status >= http.StatusInternalServerError {
		return "internal error"
	}

	for _, sentinel := range []error{
		domainErrors.ErrInvalidCredentials,
		domainErrors.ErrEmailNotVerified,
		domainErrors.ErrExpiredToken,
		domainErrors.ErrRevokedToken,
		domainErrors.ErrInvalidToken,
		domainErrors.ErrUserNotFound,
		domainErrors.ErrUsernameExists,
		domainErrors.ErrIdentityExists,
		domainErrors.ErrSlotOccupied,
		domainErrors.ErrLastIdentity,
		domainErrors.ErrIdentityMissing,
		domainErrors.ErrTokenConsumed,
		domainErrors.ErrUnknownProvider,
		domainErrors.ErrForbidden,
		domainErrors.ErrUnauthorized,
	} {
		if errors.Is(err, sentinel) {
			return sentinel.Error()
		}
	}

	var appErr *domainErrors.AppError
	if errors.As(err, &appErr) {
		return appErr.Msg
	}
	return err.Error()
}
