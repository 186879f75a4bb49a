package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	domainErrors "github.com/todoapp/auth-service/internal/domain/errors"
	"github.com/todoapp/auth-service/internal/domain/models"
	"github.com/todoapp/auth-service/internal/handler/http/middleware"
	"github.com/todoapp/auth-service/internal/service"
	"github.com/todoapp/auth-service/internal/utils/metrics"
)

// AuthHandler serves registration, login and the token lifecycle.
type AuthHandler struct {
	auth         *service.AuthService
	verification *service.VerificationService
	logger       *zap.Logger
}

func NewAuthHandler(
	auth *service.AuthService,
	verification *service.VerificationService,
	logger *zap.Logger,
) *AuthHandler {
	return &AuthHandler{
		auth:         auth,
		verification: verification,
		logger:       logger.Named("auth_handler"),
	}
}

func clientMeta(c *gin.Context) service.ClientMeta {
	return service.ClientMeta{IP: c.ClientIP(), UserAgent: c.Request.UserAgent()}
}

type registerRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
	FullName string `json:"fullName"`
}

// Register handles POST /api/v1/auth/register.
func (h *AuthHandler) Register(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondWithError(c, domainErrors.NewValidationError("invalid request payload", nil), h.logger)
		return
	}

	user, err := h.auth.Register(c.Request.Context(), models.RegisterInput{
		Email:    req.Email,
		Password: req.Password,
		FullName: req.FullName,
	}, clientMeta(c))
	if err != nil {
		metrics.RegistrationAttemptsTotal.WithLabelValues("failure").Inc()
		RespondWithError(c, err, h.logger)
		return
	}
	metrics.RegistrationAttemptsTotal.WithLabelValues("success").Inc()

	if _, err := h.verification.IssueVerificationToken(c.Request.Context(), user); err != nil {
		h.logger.Error("failed to issue verification token after registration",
			zap.String("user_id", user.ID.String()), zap.Error(err))
	}

	RespondWithData(c, http.StatusCreated, gin.H{
		"message": "registered, please check your email to verify your account",
		"user":    models.NewUserInfo(user),
	})
}

type loginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// Login handles POST /api/v1/auth/login.
func (h *AuthHandler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondWithError(c, domainErrors.NewValidationError("invalid request payload", nil), h.logger)
		return
	}

	result, err := h.auth.Login(c.Request.Context(), req.Email, req.Password, clientMeta(c))
	if err != nil {
		metrics.LoginAttemptsTotal.WithLabelValues("failure").Inc()
		RespondWithError(c, err, h.logger)
		return
	}
	metrics.LoginAttemptsTotal.WithLabelValues("success").Inc()

	RespondWithData(c, http.StatusOK, result)
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken" binding:"required"`
}

// Refresh handles POST /api/v1/auth/refresh-token.
func (h *AuthHandler) Refresh(c *gin.Context) {
	var req refreshRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondWithError(c, domainErrors.NewValidationError("invalid request payload", nil), h.logger)
		return
	}

	result, err := h.auth.Refresh(c.Request.Context(), req.RefreshToken, clientMeta(c))
	if err != nil {
		metrics.TokenRefreshTotal.WithLabelValues("failure").Inc()
		RespondWithError(c, err, h.logger)
		return
	}
	metrics.TokenRefreshTotal.WithLabelValues("success").Inc()

	RespondWithData(c, http.StatusOK, result)
}

// Logout handles POST /api/v1/auth/logout. Revoking an already revoked or
// unknown token still returns success.
func (h *AuthHandler) Logout(c *gin.Context) {
	var req refreshRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondWithError(c, domainErrors.NewValidationError("invalid request payload", nil), h.logger)
		return
	}

	if err := h.auth.Logout(c.Request.Context(), req.RefreshToken, clientMeta(c)); err != nil {
		RespondWithError(c, err, h.logger)
		return
	}
	RespondWithMessage(c, http.StatusOK, "logged out")
}

// VerifyEmail handles GET /api/v1/auth/verify-email?token=. Links in
// verification emails point here, so the token rides in the query string.
func (h *AuthHandler) VerifyEmail(c *gin.Context) {
	token := c.Query("token")
	if token == "" {
		RespondWithError(c, domainErrors.NewValidationError("verification token is required", nil), h.logger)
		return
	}

	user, err := h.verification.ConfirmEmail(c.Request.Context(), token, clientMeta(c))
	if err != nil {
		RespondWithError(c, err, h.logger)
		return
	}
	RespondWithData(c, http.StatusOK, gin.H{
		"message": "email verified",
		"user":    models.NewUserInfo(user),
	})
}

type emailRequest struct {
	Email string `json:"email" binding:"required"`
}

// ResendVerification handles POST /api/v1/auth/resend-verification. The
// route requires authentication; the address comes from the account, never
// from the request body. Already-verified accounts get the same success
// response without a send.
func (h *AuthHandler) ResendVerification(c *gin.Context) {
	user, ok := middleware.CurrentUser(c)
	if !ok {
		RespondWithError(c, domainErrors.ErrInvalidToken, h.logger)
		return
	}

	if err := h.verification.RequestVerification(c.Request.Context(), user.Email(), clientMeta(c)); err != nil {
		RespondWithError(c, err, h.logger)
		return
	}
	RespondWithMessage(c, http.StatusOK, "if the account exists, a verification email has been sent")
}

// ForgotPassword handles POST /api/v1/auth/forgot-password. Same silent
// contract as ResendVerification.
func (h *AuthHandler) ForgotPassword(c *gin.Context) {
	var req emailRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondWithError(c, domainErrors.NewValidationError("invalid request payload", nil), h.logger)
		return
	}

	if err := h.verification.RequestPasswordReset(c.Request.Context(), req.Email, clientMeta(c)); err != nil {
		RespondWithError(c, err, h.logger)
		return
	}
	RespondWithMessage(c, http.StatusOK, "if the account exists, a password reset email has been sent")
}

type resetPasswordRequest struct {
	Token       string `json:"token" binding:"required"`
	NewPassword string `json:"newPassword" binding:"required"`
}

// ResetPassword handles POST /api/v1/auth/reset-password.
func (h *AuthHandler) ResetPassword(c *gin.Context) {
	var req resetPasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondWithError(c, domainErrors.NewValidationError("invalid request payload", nil), h.logger)
		return
	}

	if err := h.verification.ResetPassword(c.Request.Context(), req.Token, req.NewPassword, clientMeta(c)); err != nil {
		RespondWithError(c, err, h.logger)
		return
	}
	RespondWithMessage(c, http.StatusOK, "password updated, please log in again")
}

// Me handles GET /api/v1/auth/me.
func (h *AuthHandler) Me(c *gin.Context) {
	user, ok := middleware.CurrentUser(c)
	if !ok {
		RespondWithError(c, domainErrors.ErrUnauthorized, h.logger)
		return
	}
	RespondWithData(c, http.StatusOK, models.NewUserInfo(user))
}
