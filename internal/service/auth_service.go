package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/todoapp/auth-service/internal/config"
	domainErrors "github.com/todoapp/auth-service/internal/domain/errors"
	"github.com/todoapp/auth-service/internal/domain/models"
	"github.com/todoapp/auth-service/internal/domain/repository"
	domainService "github.com/todoapp/auth-service/internal/domain/service"
	"github.com/todoapp/auth-service/internal/events/kafka"
	"github.com/todoapp/auth-service/internal/infrastructure/security"
)

// ClientMeta carries the request attribution captured at the transport
// layer. Empty fields are stored as NULL.
type ClientMeta struct {
	IP        string
	UserAgent string
}

// AuthService implements registration, local login, token rotation and
// logout.
type AuthService struct {
	users    repository.UserRepository
	sessions repository.SessionRepository
	password domainService.PasswordService
	tokens   domainService.TokenService
	audit    *AuditService
	events   kafka.Publisher
	limiter  domainService.RateLimiter
	rates    config.RateLimitConfig
	logger   *zap.Logger
}

func NewAuthService(
	users repository.UserRepository,
	sessions repository.SessionRepository,
	password domainService.PasswordService,
	tokens domainService.TokenService,
	audit *AuditService,
	events kafka.Publisher,
	limiter domainService.RateLimiter,
	rates config.RateLimitConfig,
	logger *zap.Logger,
) *AuthService {
	return &AuthService{
		users:    users,
		sessions: sessions,
		password: password,
		tokens:   tokens,
		audit:    audit,
		events:   events,
		limiter:  limiter,
		rates:    rates,
		logger:   logger,
	}
}

// Register creates a user with a local identity. The password is validated
// against the full policy before hashing; every violated rule is reported.
// When input.AutoVerify is false the caller is expected to follow up with
// the verification flow before the user can log in.
func (s *AuthService) Register(ctx context.Context, input models.RegisterInput, meta ClientMeta) (*models.User, error) {
	allowed, err := s.limiter.Allow(ctx, "register_ip:"+meta.IP, s.rates.RegisterIP)
	if err != nil {
		s.logger.Error("rate limiter failed for registration", zap.Error(err))
	}
	if !allowed {
		return nil, fmt.Errorf("%w: too many registration attempts", domainErrors.ErrInvalidInput)
	}

	email := strings.ToLower(strings.TrimSpace(input.Email))
	if email == "" || !strings.Contains(email, "@") {
		return nil, domainErrors.NewValidationError("invalid registration input", []string{"email must be a valid address"})
	}

	role := input.Role
	if role == "" {
		role = models.RoleGuest
	}
	if !role.Valid() {
		return nil, domainErrors.NewValidationError("invalid registration input", []string{"unknown role"})
	}

	if err := domainService.ValidatePassword(input.Password, email); err != nil {
		return nil, err
	}

	hash, err := s.password.HashPassword(input.Password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	now := time.Now()
	user := &models.User{
		ID:                uuid.New(),
		FullName:          strings.TrimSpace(input.FullName),
		Role:              role,
		LocalEnabled:      true,
		LocalUsername:     &email,
		LocalPasswordHash: &hash,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	if input.AutoVerify {
		user.EmailVerifiedAt = &now
	}

	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, domainErrors.ErrUsernameExists) {
			s.audit.Record(nil, models.AuditRegister,
				map[string]any{"email": email, "error": "username taken"}, meta.IP, meta.UserAgent)
		}
		return nil, err
	}

	s.audit.Record(&user.ID, models.AuditRegister,
		map[string]any{"email": email, "auto_verified": input.AutoVerify}, meta.IP, meta.UserAgent)
	s.events.Publish(ctx, kafka.EventUserRegistered, user.ID.String(),
		map[string]any{"user_id": user.ID, "email": email})

	return user, nil
}

// Login authenticates a local identity and issues a token pair. Failures
// are audited with the precise reason, but the caller sees a single
// indistinct credentials error for every case except an unverified email,
// which is deliberately distinguishable so the client can offer to resend
// the verification mail.
func (s *AuthService) Login(ctx context.Context, username, password string, meta ClientMeta) (*models.AuthResult, error) {
	username = strings.ToLower(strings.TrimSpace(username))

	loginKey := fmt.Sprintf("login:%s:%s", username, meta.IP)
	allowed, err := s.limiter.Allow(ctx, loginKey, s.rates.LoginEmailIP)
	if err != nil {
		s.logger.Error("rate limiter failed for login", zap.Error(err))
	}
	if !allowed {
		return nil, fmt.Errorf("%w: too many login attempts", domainErrors.ErrUnauthorized)
	}

	user, err := s.users.GetByLocalUsername(ctx, username)
	if err != nil {
		if errors.Is(err, domainErrors.ErrUserNotFound) {
			s.audit.Record(nil, models.AuditLoginFailure,
				map[string]any{"email": username, "reason": "unknown user"}, meta.IP, meta.UserAgent)
			return nil, domainErrors.ErrInvalidCredentials
		}
		return nil, err
	}

	if !user.HasLocal() || !user.LocalEnabled {
		s.audit.Record(&user.ID, models.AuditLoginFailure,
			map[string]any{"reason": "local identity disabled"}, meta.IP, meta.UserAgent)
		return nil, domainErrors.ErrInvalidCredentials
	}
	if user.LocalPasswordHash == nil {
		s.audit.Record(&user.ID, models.AuditLoginFailure,
			map[string]any{"reason": "no password set"}, meta.IP, meta.UserAgent)
		return nil, domainErrors.ErrInvalidCredentials
	}

	match, err := s.password.CheckPasswordHash(password, *user.LocalPasswordHash)
	if err != nil {
		return nil, fmt.Errorf("failed to verify password: %w", err)
	}
	if !match {
		s.audit.Record(&user.ID, models.AuditLoginFailure,
			map[string]any{"reason": "wrong password"}, meta.IP, meta.UserAgent)
		return nil, domainErrors.ErrInvalidCredentials
	}

	if !user.EmailVerified() {
		s.audit.Record(&user.ID, models.AuditLoginFailure,
			map[string]any{"reason": "email not verified"}, meta.IP, meta.UserAgent)
		return nil, domainErrors.ErrEmailNotVerified
	}

	result, err := s.IssueTokenPair(ctx, user, meta)
	if err != nil {
		return nil, err
	}

	// A successful login forgives earlier failed attempts in the window.
	if err := s.limiter.Reset(ctx, loginKey); err != nil {
		s.logger.Warn("failed to reset login rate window", zap.Error(err))
	}

	s.audit.Record(&user.ID, models.AuditLoginSuccess,
		map[string]any{"method": "local"}, meta.IP, meta.UserAgent)
	s.events.Publish(ctx, kafka.EventUserLoggedIn, user.ID.String(),
		map[string]any{"user_id": user.ID, "method": "local"})

	return result, nil
}

// IssueTokenPair mints an access and refresh token for the user and records
// the refresh session. Shared by local login and the OAuth login callback.
func (s *AuthService) IssueTokenPair(ctx context.Context, user *models.User, meta ClientMeta) (*models.AuthResult, error) {
	sessionID := uuid.New()

	refreshToken, err := s.tokens.GenerateRefreshToken(user.ID, sessionID)
	if err != nil {
		return nil, err
	}
	accessToken, err := s.tokens.GenerateAccessToken(user)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	session := &models.RefreshSession{
		ID:               sessionID,
		UserID:           user.ID,
		RefreshTokenHash: security.HashToken(refreshToken),
		ExpiresAt:        now.Add(s.tokens.RefreshTokenTTL()),
		CreatedAt:        now,
	}
	if meta.IP != "" {
		session.IPAddress = &meta.IP
	}
	if meta.UserAgent != "" {
		session.UserAgent = &meta.UserAgent
	}

	if err := s.sessions.Create(ctx, session); err != nil {
		return nil, err
	}

	return &models.AuthResult{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		User:         models.NewUserInfo(user),
	}, nil
}

// Refresh rotates a refresh token. The old token is unconditionally revoked
// in the same transaction that records the new session, so a replay of the
// old token fails immediately with no grace window.
func (s *AuthService) Refresh(ctx context.Context, rawRefreshToken string, meta ClientMeta) (*models.AuthResult, error) {
	claims, err := s.tokens.ParseRefreshToken(rawRefreshToken)
	if err != nil {
		return nil, err
	}
	userID, err := uuid.Parse(claims.Subject)
	if err != nil {
		return nil, fmt.Errorf("%w: malformed subject", domainErrors.ErrInvalidToken)
	}

	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, domainErrors.ErrUserNotFound) {
			return nil, domainErrors.ErrRevokedToken
		}
		return nil, err
	}

	sessionID := uuid.New()
	newRefreshToken, err := s.tokens.GenerateRefreshToken(user.ID, sessionID)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	next := &models.RefreshSession{
		ID:               sessionID,
		UserID:           user.ID,
		RefreshTokenHash: security.HashToken(newRefreshToken),
		ExpiresAt:        now.Add(s.tokens.RefreshTokenTTL()),
		CreatedAt:        now,
	}
	if meta.IP != "" {
		next.IPAddress = &meta.IP
	}
	if meta.UserAgent != "" {
		next.UserAgent = &meta.UserAgent
	}

	revoked, err := s.sessions.Rotate(ctx, security.HashToken(rawRefreshToken), next)
	if err != nil {
		if errors.Is(err, domainErrors.ErrSessionNotFound) {
			s.audit.Record(&user.ID, models.AuditLoginFailure,
				map[string]any{"reason": "refresh token replayed or revoked"}, meta.IP, meta.UserAgent)
			return nil, domainErrors.ErrRevokedToken
		}
		return nil, err
	}
	if revoked.UserID != user.ID {
		return nil, domainErrors.ErrRevokedToken
	}

	accessToken, err := s.tokens.GenerateAccessToken(user)
	if err != nil {
		return nil, err
	}

	s.audit.Record(&user.ID, models.AuditRefreshTokenRotated,
		map[string]any{"old_session_id": revoked.ID, "new_session_id": sessionID}, meta.IP, meta.UserAgent)

	return &models.AuthResult{
		AccessToken:  accessToken,
		RefreshToken: newRefreshToken,
		User:         models.NewUserInfo(user),
	}, nil
}

// Logout revokes the session behind the presented refresh token. Revoking
// an unknown or already-revoked token succeeds silently.
func (s *AuthService) Logout(ctx context.Context, rawRefreshToken string, meta ClientMeta) error {
	claims, err := s.tokens.ParseRefreshToken(rawRefreshToken)
	if err != nil {
		// An expired or malformed token has nothing left to revoke.
		return nil
	}

	if err := s.sessions.Revoke(ctx, security.HashToken(rawRefreshToken)); err != nil {
		return err
	}

	if userID, parseErr := uuid.Parse(claims.Subject); parseErr == nil {
		s.audit.Record(&userID, models.AuditLogout, nil, meta.IP, meta.UserAgent)
	}
	return nil
}
