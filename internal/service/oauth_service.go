package service

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	domainErrors "github.com/todoapp/auth-service/internal/domain/errors"
	"github.com/todoapp/auth-service/internal/domain/models"
	domainService "github.com/todoapp/auth-service/internal/domain/service"
	"github.com/todoapp/auth-service/internal/events/kafka"
	"github.com/todoapp/auth-service/internal/infrastructure/oauth"
	"github.com/todoapp/auth-service/internal/infrastructure/security"
)

const providerExchangeTimeout = 15 * time.Second

// OAuthService drives the authorization-code flow: building provider
// redirects with signed state and handling the two callback branches
// (login and link).
type OAuthService struct {
	providers map[models.IdentityKind]oauth.Provider
	state     *security.OAuthStateCodec
	tokens    domainService.TokenService
	identity  *IdentityService
	auth      *AuthService
	audit     *AuditService
	events    kafka.Publisher

	defaultRedirectURL string
	logger             *zap.Logger
}

func NewOAuthService(
	providers map[models.IdentityKind]oauth.Provider,
	state *security.OAuthStateCodec,
	tokens domainService.TokenService,
	identity *IdentityService,
	auth *AuthService,
	audit *AuditService,
	events kafka.Publisher,
	defaultRedirectURL string,
	logger *zap.Logger,
) *OAuthService {
	return &OAuthService{
		providers:          providers,
		state:              state,
		tokens:             tokens,
		identity:           identity,
		auth:               auth,
		audit:              audit,
		events:             events,
		defaultRedirectURL: defaultRedirectURL,
		logger:             logger,
	}
}

// BeginLogin returns the provider authorization URL for a login flow.
func (s *OAuthService) BeginLogin(providerName, redirectURL, frontendTag string) (string, error) {
	provider, err := s.provider(providerName)
	if err != nil {
		return "", err
	}

	state, err := s.state.Encode(security.OAuthState{
		RedirectURL: redirectURL,
		FrontendTag: frontendTag,
		Mode:        security.StateModeLogin,
	})
	if err != nil {
		return "", err
	}
	return provider.AuthCodeURL(state), nil
}

// BeginLink returns the provider authorization URL for a link flow. The
// caller's identity is established from the presented access token now and
// embedded in the state, because the browser redirect back from the
// provider cannot carry an Authorization header.
func (s *OAuthService) BeginLink(providerName, accessToken, redirectURL, frontendTag string) (string, error) {
	provider, err := s.provider(providerName)
	if err != nil {
		return "", err
	}

	claims, err := s.tokens.ParseAccessToken(accessToken)
	if err != nil {
		return "", err
	}
	userID, err := uuid.Parse(claims.Subject)
	if err != nil {
		return "", fmt.Errorf("%w: malformed subject", domainErrors.ErrInvalidToken)
	}

	state, err := s.state.Encode(security.OAuthState{
		RedirectURL:   redirectURL,
		FrontendTag:   frontendTag,
		Mode:          security.StateModeLink,
		CurrentUserID: &userID,
	})
	if err != nil {
		return "", err
	}
	return provider.AuthCodeURL(state), nil
}

// HandleCallback processes the provider redirect and always produces a
// browser redirect URL. Tokens and errors alike travel in the URL fragment:
// fragments are never sent to servers, so they stay out of access logs, and
// the caller is a browser mid-redirect with no other recovery path, so a
// bare error page is never an option.
func (s *OAuthService) HandleCallback(ctx context.Context, providerName, code, rawState string, meta ClientMeta) string {
	state, err := s.state.Decode(rawState)
	if err != nil {
		// With no trustworthy state there is no caller-chosen redirect
		// either; fall back to the configured default.
		return errorRedirect(s.defaultRedirectURL, "invalid_state", "sign-in flow expired or tampered, please retry")
	}

	redirectURL := state.RedirectURL
	if redirectURL == "" {
		redirectURL = s.defaultRedirectURL
	}

	provider, err := s.provider(providerName)
	if err != nil {
		return errorRedirect(redirectURL, "unknown_provider", "unknown identity provider")
	}
	if code == "" {
		return errorRedirect(redirectURL, "missing_code", "provider returned no authorization code")
	}

	exchangeCtx, cancel := context.WithTimeout(ctx, providerExchangeTimeout)
	defer cancel()
	profile, err := provider.ExchangeProfile(exchangeCtx, code)
	if err != nil {
		s.logger.Warn("provider exchange failed",
			zap.String("provider", providerName), zap.Error(err))
		return errorRedirect(redirectURL, "exchange_failed", "could not verify identity with provider")
	}

	switch state.Mode {
	case security.StateModeLink:
		return s.completeLink(ctx, state, profile, redirectURL, meta)
	default:
		return s.completeLogin(ctx, profile, redirectURL, meta)
	}
}

func (s *OAuthService) completeLogin(ctx context.Context, profile *models.ProviderIdentity, redirectURL string, meta ClientMeta) string {
	user, created, err := s.identity.FindOrCreateFromProvider(ctx, profile, meta)
	if err != nil {
		s.logger.Error("oauth find-or-create failed", zap.Error(err))
		return errorRedirect(redirectURL, "login_failed", "could not sign you in")
	}

	result, err := s.auth.IssueTokenPair(ctx, user, meta)
	if err != nil {
		s.logger.Error("oauth token issuance failed", zap.Error(err))
		return errorRedirect(redirectURL, "login_failed", "could not sign you in")
	}

	s.audit.Record(&user.ID, models.AuditOAuthLoginSuccess,
		map[string]any{"provider": profile.Provider, "new_user": created}, meta.IP, meta.UserAgent)
	s.events.Publish(ctx, kafka.EventUserLoggedIn, user.ID.String(),
		map[string]any{"user_id": user.ID, "method": string(profile.Provider)})

	fragment := url.Values{}
	fragment.Set("accessToken", result.AccessToken)
	fragment.Set("refreshToken", result.RefreshToken)
	if created {
		fragment.Set("newUser", "true")
	}
	return redirectURL + "#" + fragment.Encode()
}

func (s *OAuthService) completeLink(ctx context.Context, state *security.OAuthState, profile *models.ProviderIdentity, redirectURL string, meta ClientMeta) string {
	if state.CurrentUserID == nil {
		return errorRedirect(redirectURL, "invalid_state", "link flow lost its user")
	}

	if err := s.identity.LinkIdentity(ctx, *state.CurrentUserID, profile, meta); err != nil {
		code := "link_failed"
		message := "could not link the account"
		switch {
		case domainErrors.IsConflict(err):
			code = "identity_conflict"
			message = "this provider account is already linked"
		case domainErrors.IsNotFound(err):
			code = "unknown_user"
			message = "account no longer exists"
		}
		s.logger.Warn("oauth link failed",
			zap.String("user_id", state.CurrentUserID.String()), zap.Error(err))
		return errorRedirect(redirectURL, code, message)
	}

	fragment := url.Values{}
	fragment.Set("link", "success")
	fragment.Set("provider", string(profile.Provider))
	return redirectURL + "#" + fragment.Encode()
}

func (s *OAuthService) provider(name string) (oauth.Provider, error) {
	kind := models.IdentityKind(name)
	provider, ok := s.providers[kind]
	if !ok {
		return nil, domainErrors.ErrUnknownProvider
	}
	return provider, nil
}

// errorRedirect encodes a sanitized error into the redirect fragment. The
// message is fixed text chosen here, never raw error output, so internals
// and provider responses cannot leak to the browser.
func errorRedirect(redirectURL, code, message string) string {
	fragment := url.Values{}
	fragment.Set("error", code)
	fragment.Set("message", message)
	return redirectURL + "#" + fragment.Encode()
}
