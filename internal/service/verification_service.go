package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
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
	"github.com/todoapp/auth-service/internal/utils/email"
	"github.com/todoapp/auth-service/internal/utils/random"
)

const (
	oneTimeTokenBytes = 32

	// mailSendTimeout bounds a single SMTP delivery attempt.
	mailSendTimeout = 10 * time.Second
)

// VerificationService implements the email-verification and password-reset
// flows. Both use single-use hashed tokens with at most one live token per
// purpose per user.
type VerificationService struct {
	users    repository.UserRepository
	tokens   repository.OneTimeTokenRepository
	sessions repository.SessionRepository
	password domainService.PasswordService
	mailer   email.Mailer
	audit    *AuditService
	events   kafka.Publisher
	limiter  domainService.RateLimiter
	rates    config.RateLimitConfig

	verificationTTL time.Duration
	resetTTL        time.Duration
	logger          *zap.Logger

	mailWG sync.WaitGroup
}

func NewVerificationService(
	users repository.UserRepository,
	tokens repository.OneTimeTokenRepository,
	sessions repository.SessionRepository,
	password domainService.PasswordService,
	mailer email.Mailer,
	audit *AuditService,
	events kafka.Publisher,
	limiter domainService.RateLimiter,
	rates config.RateLimitConfig,
	verificationTTL, resetTTL time.Duration,
	logger *zap.Logger,
) *VerificationService {
	if verificationTTL <= 0 {
		verificationTTL = 24 * time.Hour
	}
	if resetTTL <= 0 {
		resetTTL = time.Hour
	}
	return &VerificationService{
		users:           users,
		tokens:          tokens,
		sessions:        sessions,
		password:        password,
		mailer:          mailer,
		audit:           audit,
		events:          events,
		limiter:         limiter,
		rates:           rates,
		verificationTTL: verificationTTL,
		resetTTL:        resetTTL,
		logger:          logger,
	}
}

// IssueVerificationToken creates a fresh verification token for the user,
// invalidating any previous one, and mails it. The raw token is returned for
// flows that deliver it out of band.
func (s *VerificationService) IssueVerificationToken(ctx context.Context, user *models.User) (string, error) {
	raw, err := s.issueToken(ctx, user.ID, models.PurposeEmailVerification, s.verificationTTL)
	if err != nil {
		return "", err
	}
	if to := user.Email(); to != "" {
		s.dispatchMail(user.ID, "verification", func(ctx context.Context) error {
			return s.mailer.SendVerificationEmail(ctx, to, raw)
		})
	}
	return raw, nil
}

// dispatchMail hands a send off to a background goroutine. Delivery is
// best-effort relative to the request: failures are logged, never surfaced,
// and the caller does not wait for the SMTP round trip.
func (s *VerificationService) dispatchMail(userID uuid.UUID, kind string, send func(context.Context) error) {
	s.mailWG.Add(1)
	go func() {
		defer s.mailWG.Done()
		ctx, cancel := context.WithTimeout(context.Background(), mailSendTimeout)
		defer cancel()
		if err := send(ctx); err != nil {
			s.logger.Error("failed to send "+kind+" email",
				zap.String("user_id", userID.String()), zap.Error(err))
		}
	}()
}

// Flush blocks until every dispatched email send has finished. Graceful
// shutdown calls it so in-flight tokens still reach the mailbox.
func (s *VerificationService) Flush() {
	s.mailWG.Wait()
}

// RequestVerification re-issues the verification token for an unverified
// account. The response is identical whether the address exists, is already
// verified, or is unknown, so the endpoint cannot be used to probe accounts.
func (s *VerificationService) RequestVerification(ctx context.Context, emailAddr string, meta ClientMeta) error {
	emailAddr = strings.ToLower(strings.TrimSpace(emailAddr))

	allowed, err := s.limiter.Allow(ctx, "resend_verification:"+emailAddr, s.rates.ResendVerificationEmail)
	if err != nil {
		s.logger.Error("rate limiter failed for resend verification", zap.Error(err))
	}
	if !allowed {
		return nil
	}

	user, err := s.users.GetByLocalUsername(ctx, emailAddr)
	if err != nil {
		if errors.Is(err, domainErrors.ErrUserNotFound) {
			return nil
		}
		return err
	}
	if user.EmailVerified() {
		return nil
	}

	_, err = s.IssueVerificationToken(ctx, user)
	return err
}

// ConfirmEmail consumes a verification token and marks the user verified.
// A token that was already consumed still resolves to success when the user
// is verified, so double-clicking the mail link is harmless.
func (s *VerificationService) ConfirmEmail(ctx context.Context, rawToken string, meta ClientMeta) (*models.User, error) {
	token, err := s.tokens.GetByHash(ctx, models.PurposeEmailVerification, security.HashToken(rawToken))
	if err != nil {
		if errors.Is(err, domainErrors.ErrNotFound) {
			return nil, domainErrors.ErrInvalidToken
		}
		return nil, err
	}

	user, err := s.users.GetByID(ctx, token.UserID)
	if err != nil {
		return nil, err
	}

	if token.Consumed() {
		if user.EmailVerified() {
			return user, nil
		}
		return nil, domainErrors.ErrTokenConsumed
	}
	if token.Expired(time.Now()) {
		return nil, domainErrors.ErrExpiredToken
	}

	now := time.Now()
	if err := s.tokens.MarkConsumed(ctx, token.ID, now); err != nil {
		return nil, err
	}
	user.EmailVerifiedAt = &now
	if err := s.users.Update(ctx, user); err != nil {
		return nil, err
	}

	s.audit.Record(&user.ID, models.AuditEmailVerified, nil, meta.IP, meta.UserAgent)
	s.events.Publish(ctx, kafka.EventEmailVerified, user.ID.String(),
		map[string]any{"user_id": user.ID})

	return user, nil
}

// RequestPasswordReset issues a reset token for a local account. Unknown
// addresses and accounts without a local identity get the same silent
// success as real ones.
func (s *VerificationService) RequestPasswordReset(ctx context.Context, emailAddr string, meta ClientMeta) error {
	emailAddr = strings.ToLower(strings.TrimSpace(emailAddr))

	allowedEmail, err := s.limiter.Allow(ctx, "password_reset_email:"+emailAddr, s.rates.PasswordResetPerEmail)
	if err != nil {
		s.logger.Error("rate limiter failed for password reset", zap.Error(err))
	}
	allowedIP, err := s.limiter.Allow(ctx, "password_reset_ip:"+meta.IP, s.rates.PasswordResetPerIP)
	if err != nil {
		s.logger.Error("rate limiter failed for password reset", zap.Error(err))
	}
	if !allowedEmail || !allowedIP {
		return nil
	}

	user, err := s.users.GetByLocalUsername(ctx, emailAddr)
	if err != nil {
		if errors.Is(err, domainErrors.ErrUserNotFound) {
			return nil
		}
		return err
	}
	if !user.HasLocal() {
		return nil
	}

	raw, err := s.issueToken(ctx, user.ID, models.PurposePasswordReset, s.resetTTL)
	if err != nil {
		return err
	}
	s.dispatchMail(user.ID, "reset", func(ctx context.Context) error {
		return s.mailer.SendPasswordResetEmail(ctx, emailAddr, raw)
	})

	s.audit.Record(&user.ID, models.AuditPasswordResetReq, nil, meta.IP, meta.UserAgent)
	return nil
}

// ResetPassword consumes a reset token and sets the new password. Unlike
// verification there is no idempotent replay: a consumed token always
// fails. Every existing session is revoked so a password change locks out
// whoever held the old credential.
func (s *VerificationService) ResetPassword(ctx context.Context, rawToken, newPassword string, meta ClientMeta) error {
	token, err := s.tokens.GetByHash(ctx, models.PurposePasswordReset, security.HashToken(rawToken))
	if err != nil {
		if errors.Is(err, domainErrors.ErrNotFound) {
			return domainErrors.ErrInvalidToken
		}
		return err
	}
	if token.Consumed() {
		return domainErrors.ErrTokenConsumed
	}
	if token.Expired(time.Now()) {
		return domainErrors.ErrExpiredToken
	}

	user, err := s.users.GetByID(ctx, token.UserID)
	if err != nil {
		return err
	}
	if !user.HasLocal() {
		return fmt.Errorf("%w: account has no local identity", domainErrors.ErrInvalidInput)
	}

	if err := domainService.ValidatePassword(newPassword, user.Email()); err != nil {
		return err
	}
	hash, err := s.password.HashPassword(newPassword)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}

	now := time.Now()
	if err := s.tokens.MarkConsumed(ctx, token.ID, now); err != nil {
		return err
	}
	user.LocalPasswordHash = &hash
	if err := s.users.Update(ctx, user); err != nil {
		return err
	}

	revoked, err := s.sessions.RevokeAll(ctx, user.ID)
	if err != nil {
		s.logger.Error("failed to revoke sessions after password reset",
			zap.String("user_id", user.ID.String()), zap.Error(err))
	}

	s.audit.Record(&user.ID, models.AuditPasswordReset,
		map[string]any{"sessions_revoked": revoked}, meta.IP, meta.UserAgent)
	s.events.Publish(ctx, kafka.EventPasswordReset, user.ID.String(),
		map[string]any{"user_id": user.ID, "sessions_revoked": revoked})

	return nil
}

func (s *VerificationService) issueToken(ctx context.Context, userID uuid.UUID, purpose models.TokenPurpose, ttl time.Duration) (string, error) {
	raw, err := random.GenerateSecureToken(oneTimeTokenBytes)
	if err != nil {
		return "", err
	}

	now := time.Now()
	token := &models.OneTimeToken{
		ID:        uuid.New(),
		UserID:    userID,
		Purpose:   purpose,
		TokenHash: security.HashToken(raw),
		ExpiresAt: now.Add(ttl),
		CreatedAt: now,
	}
	if err := s.tokens.Replace(ctx, token); err != nil {
		return "", err
	}
	return raw, nil
}
