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

// OAuthHandler serves the authorization-code flow endpoints and identity
// slot management.
type OAuthHandler struct {
	oauth    *service.OAuthService
	identity *service.IdentityService
	logger   *zap.Logger
}

func NewOAuthHandler(
	oauth *service.OAuthService,
	identity *service.IdentityService,
	logger *zap.Logger,
) *OAuthHandler {
	return &OAuthHandler{
		oauth:    oauth,
		identity: identity,
		logger:   logger.Named("oauth_handler"),
	}
}

// BeginLogin handles GET /api/v1/oauth/:provider/login. Responds with a 302
// to the provider's authorization page.
func (h *OAuthHandler) BeginLogin(c *gin.Context) {
	authURL, err := h.oauth.BeginLogin(
		c.Param("provider"),
		c.Query("redirect_url"),
		c.Query("frontend"),
	)
	if err != nil {
		RespondWithError(c, err, h.logger)
		return
	}
	c.Redirect(http.StatusFound, authURL)
}

// BeginLink handles GET /api/v1/oauth/:provider/link. The caller's access
// token rides in the state because the provider redirect cannot carry it.
func (h *OAuthHandler) BeginLink(c *gin.Context) {
	token := c.Query("access_token")
	if token == "" {
		RespondWithError(c, domainErrors.ErrUnauthorized, h.logger)
		return
	}

	authURL, err := h.oauth.BeginLink(
		c.Param("provider"),
		token,
		c.Query("redirect_url"),
		c.Query("frontend"),
	)
	if err != nil {
		RespondWithError(c, err, h.logger)
		return
	}
	c.Redirect(http.StatusFound, authURL)
}

// Callback handles GET /api/v1/oauth/:provider/callback. The service always
// produces a redirect; success and failure both land on the frontend.
func (h *OAuthHandler) Callback(c *gin.Context) {
	provider := c.Param("provider")
	metrics.OAuthCallbacksTotal.WithLabelValues(provider).Inc()

	redirect := h.oauth.HandleCallback(
		c.Request.Context(),
		provider,
		c.Query("code"),
		c.Query("state"),
		clientMeta(c),
	)
	c.Redirect(http.StatusFound, redirect)
}

// Unlink handles DELETE /api/v1/oauth/:provider. Requires authentication.
func (h *OAuthHandler) Unlink(c *gin.Context) {
	user, ok := middleware.CurrentUser(c)
	if !ok {
		RespondWithError(c, domainErrors.ErrUnauthorized, h.logger)
		return
	}

	kind := models.IdentityKind(c.Param("provider"))
	if err := h.identity.UnlinkIdentity(c.Request.Context(), user.ID, kind, clientMeta(c)); err != nil {
		RespondWithError(c, err, h.logger)
		return
	}
	RespondWithMessage(c, http.StatusOK, "identity unlinked")
}
