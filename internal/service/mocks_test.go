package service_test

import (
	"context"
	"sort"
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
	"github.com/todoapp/auth-service/internal/service"
	"github.com/todoapp/auth-service/internal/utils/email"
)

// memUserRepo is an in-memory UserRepository enforcing the same uniqueness
// rules as the Postgres schema.
type memUserRepo struct {
	mu    sync.Mutex
	users map[uuid.UUID]*models.User
}

func newMemUserRepo() *memUserRepo {
	return &memUserRepo{users: make(map[uuid.UUID]*models.User)}
}

func cloneUser(u *models.User) *models.User {
	c := *u
	return &c
}

func (r *memUserRepo) uniqueViolation(candidate *models.User) error {
	for _, u := range r.users {
		if u.ID == candidate.ID {
			continue
		}
		if candidate.LocalUsername != nil && u.LocalUsername != nil && *candidate.LocalUsername == *u.LocalUsername {
			return domainErrors.ErrUsernameExists
		}
		if candidate.GoogleSub != nil && u.GoogleSub != nil && *candidate.GoogleSub == *u.GoogleSub {
			return domainErrors.ErrIdentityExists
		}
		if candidate.MSObjectID != nil && u.MSObjectID != nil && candidate.MSTenantID != nil && u.MSTenantID != nil &&
			*candidate.MSObjectID == *u.MSObjectID && *candidate.MSTenantID == *u.MSTenantID {
			return domainErrors.ErrIdentityExists
		}
	}
	return nil
}

func (r *memUserRepo) Create(_ context.Context, user *models.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.uniqueViolation(user); err != nil {
		return err
	}
	r.users[user.ID] = cloneUser(user)
	return nil
}

func (r *memUserRepo) GetByID(_ context.Context, id uuid.UUID) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return nil, domainErrors.ErrUserNotFound
	}
	return cloneUser(u), nil
}

func (r *memUserRepo) GetByLocalUsername(_ context.Context, username string) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.LocalUsername != nil && *u.LocalUsername == username {
			return cloneUser(u), nil
		}
	}
	return nil, domainErrors.ErrUserNotFound
}

func (r *memUserRepo) GetByGoogleSub(_ context.Context, sub string) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.GoogleSub != nil && *u.GoogleSub == sub {
			return cloneUser(u), nil
		}
	}
	return nil, domainErrors.ErrUserNotFound
}

func (r *memUserRepo) GetByMicrosoftID(_ context.Context, tenantID, objectID uuid.UUID) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.MSTenantID != nil && u.MSObjectID != nil && *u.MSTenantID == tenantID && *u.MSObjectID == objectID {
			return cloneUser(u), nil
		}
	}
	return nil, domainErrors.ErrUserNotFound
}

func (r *memUserRepo) Update(_ context.Context, user *models.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.users[user.ID]; !ok {
		return domainErrors.ErrUserNotFound
	}
	if err := r.uniqueViolation(user); err != nil {
		return err
	}
	r.users[user.ID] = cloneUser(user)
	return nil
}

func (r *memUserRepo) Delete(_ context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.users[id]; !ok {
		return domainErrors.ErrUserNotFound
	}
	delete(r.users, id)
	return nil
}

func (r *memUserRepo) List(_ context.Context, limit, offset int) ([]*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var all []*models.User
	for _, u := range r.users {
		all = append(all, cloneUser(u))
	}
	sort.Slice(all, func(i, j int) bool { return all[i].CreatedAt.After(all[j].CreatedAt) })
	if offset >= len(all) {
		return nil, nil
	}
	all = all[offset:]
	if limit < len(all) {
		all = all[:limit]
	}
	return all, nil
}

func (r *memUserRepo) Merge(_ context.Context, destination *models.User, sourceID uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.users[sourceID]; !ok {
		return domainErrors.ErrUserNotFound
	}
	if _, ok := r.users[destination.ID]; !ok {
		return domainErrors.ErrUserNotFound
	}
	delete(r.users, sourceID)
	if err := r.uniqueViolation(destination); err != nil {
		return err
	}
	r.users[destination.ID] = cloneUser(destination)
	return nil
}

// memSessionRepo is an in-memory SessionRepository keyed by token hash.
type memSessionRepo struct {
	mu       sync.Mutex
	sessions map[string]*models.RefreshSession
}

func newMemSessionRepo() *memSessionRepo {
	return &memSessionRepo{sessions: make(map[string]*models.RefreshSession)}
}

func cloneSession(s *models.RefreshSession) *models.RefreshSession {
	c := *s
	return &c
}

func (r *memSessionRepo) Create(_ context.Context, session *models.RefreshSession) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[session.RefreshTokenHash] = cloneSession(session)
	return nil
}

func (r *memSessionRepo) LookupActive(_ context.Context, tokenHash string) (*models.RefreshSession, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[tokenHash]
	if !ok || !s.Active(time.Now()) {
		return nil, domainErrors.ErrSessionNotFound
	}
	return cloneSession(s), nil
}

func (r *memSessionRepo) Revoke(_ context.Context, tokenHash string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.sessions[tokenHash]; ok && s.RevokedAt == nil {
		now := time.Now()
		s.RevokedAt = &now
	}
	return nil
}

func (r *memSessionRepo) RevokeAll(_ context.Context, userID uuid.UUID) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	now := time.Now()
	for _, s := range r.sessions {
		if s.UserID == userID && s.Active(now) {
			s.RevokedAt = &now
			n++
		}
	}
	return n, nil
}

func (r *memSessionRepo) Rotate(_ context.Context, oldTokenHash string, next *models.RefreshSession) (*models.RefreshSession, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	old, ok := r.sessions[oldTokenHash]
	if !ok || !old.Active(time.Now()) {
		return nil, domainErrors.ErrSessionNotFound
	}
	now := time.Now()
	old.RevokedAt = &now
	r.sessions[next.RefreshTokenHash] = cloneSession(next)
	return cloneSession(old), nil
}

func (r *memSessionRepo) DeleteExpired(_ context.Context, cutoff time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for hash, s := range r.sessions {
		if s.ExpiresAt.Before(cutoff) {
			delete(r.sessions, hash)
			n++
		}
	}
	return n, nil
}

func (r *memSessionRepo) activeCount(userID uuid.UUID) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	now := time.Now()
	for _, s := range r.sessions {
		if s.UserID == userID && s.Active(now) {
			n++
		}
	}
	return n
}

// memTokenRepo is an in-memory OneTimeTokenRepository.
type memTokenRepo struct {
	mu     sync.Mutex
	tokens map[uuid.UUID]*models.OneTimeToken
}

func newMemTokenRepo() *memTokenRepo {
	return &memTokenRepo{tokens: make(map[uuid.UUID]*models.OneTimeToken)}
}

func cloneToken(t *models.OneTimeToken) *models.OneTimeToken {
	c := *t
	return &c
}

func (r *memTokenRepo) Replace(_ context.Context, token *models.OneTimeToken) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, t := range r.tokens {
		if t.UserID == token.UserID && t.Purpose == token.Purpose {
			delete(r.tokens, id)
		}
	}
	r.tokens[token.ID] = cloneToken(token)
	return nil
}

func (r *memTokenRepo) GetByHash(_ context.Context, purpose models.TokenPurpose, tokenHash string) (*models.OneTimeToken, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, t := range r.tokens {
		if t.Purpose == purpose && t.TokenHash == tokenHash {
			return cloneToken(t), nil
		}
	}
	return nil, domainErrors.ErrNotFound
}

func (r *memTokenRepo) MarkConsumed(_ context.Context, id uuid.UUID, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.tokens[id]
	if !ok || t.ConsumedAt != nil {
		return domainErrors.ErrTokenConsumed
	}
	t.ConsumedAt = &at
	return nil
}

func (r *memTokenRepo) DeleteExpired(_ context.Context, cutoff time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for id, t := range r.tokens {
		if t.ExpiresAt.Before(cutoff) {
			delete(r.tokens, id)
			n++
		}
	}
	return n, nil
}

// capturingMailer records outgoing tokens so tests can consume them.
type capturingMailer struct {
	mu                 sync.Mutex
	verificationTokens map[string]string
	resetTokens        map[string]string
}

func newCapturingMailer() *capturingMailer {
	return &capturingMailer{
		verificationTokens: make(map[string]string),
		resetTokens:        make(map[string]string),
	}
}

func (m *capturingMailer) SendVerificationEmail(_ context.Context, to, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.verificationTokens[to] = token
	return nil
}

func (m *capturingMailer) SendPasswordResetEmail(_ context.Context, to, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.resetTokens[to] = token
	return nil
}

// gatedMailer blocks every send until release is closed. Tests use it to
// check that callers do not wait on delivery.
type gatedMailer struct {
	release chan struct{}
	sent    chan string
}

func newGatedMailer() *gatedMailer {
	return &gatedMailer{release: make(chan struct{}), sent: make(chan string, 4)}
}

func (m *gatedMailer) SendVerificationEmail(ctx context.Context, to, _ string) error {
	return m.deliver(ctx, to)
}

func (m *gatedMailer) SendPasswordResetEmail(ctx context.Context, to, _ string) error {
	return m.deliver(ctx, to)
}

func (m *gatedMailer) deliver(ctx context.Context, to string) error {
	select {
	case <-m.release:
	case <-ctx.Done():
		return ctx.Err()
	}
	m.sent <- to
	return nil
}

// allowAllLimiter never limits.
type allowAllLimiter struct{}

func (allowAllLimiter) Allow(context.Context, string, config.RateLimitRule) (bool, error) {
	return true, nil
}

func (allowAllLimiter) Reset(context.Context, string) error { return nil }

// recordingLimiter allows everything and remembers which windows were reset.
type recordingLimiter struct {
	mu        sync.Mutex
	resetKeys []string
}

func (l *recordingLimiter) Allow(context.Context, string, config.RateLimitRule) (bool, error) {
	return true, nil
}

func (l *recordingLimiter) Reset(_ context.Context, key string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.resetKeys = append(l.resetKeys, key)
	return nil
}

var _ domainService.RateLimiter = allowAllLimiter{}
var _ domainService.RateLimiter = (*recordingLimiter)(nil)

var _ repository.UserRepository = (*memUserRepo)(nil)
var _ repository.SessionRepository = (*memSessionRepo)(nil)
var _ repository.OneTimeTokenRepository = (*memTokenRepo)(nil)

// testEnv wires the full service graph over the in-memory stores.
type testEnv struct {
	users    *memUserRepo
	sessions *memSessionRepo
	tokens   *memTokenRepo
	auditLog *recordingAuditRepo
	mailer   *capturingMailer

	password     domainService.PasswordService
	audit        *service.AuditService
	auth         *service.AuthService
	identity     *service.IdentityService
	verification *service.VerificationService
	userAdmin    *service.UserService
	tokenSvc     domainService.TokenService
}

func newTestEnv(t interface {
	Helper()
	Fatalf(string, ...any)
	Cleanup(func())
}) *testEnv {
	t.Helper()

	users := newMemUserRepo()
	sessions := newMemSessionRepo()
	tokens := newMemTokenRepo()
	auditLog := &recordingAuditRepo{}
	mailer := newCapturingMailer()
	logger := zap.NewNop()

	password, err := security.NewArgon2idPasswordService(security.Argon2idParams{
		Memory: 8 * 1024, Iterations: 1, Parallelism: 1, SaltLength: 16, KeyLength: 32,
	})
	if err != nil {
		t.Fatalf("password service: %v", err)
	}
	tokenSvc, err := security.NewJWTService(security.JWTServiceConfig{
		AccessTokenSecret:  "test-access-secret",
		RefreshTokenSecret: "test-refresh-secret",
		AccessTokenTTL:     15 * time.Minute,
		RefreshTokenTTL:    7 * 24 * time.Hour,
		Issuer:             "auth-service-test",
	})
	if err != nil {
		t.Fatalf("token service: %v", err)
	}

	audit := service.NewAuditService(auditLog, logger)
	t.Cleanup(audit.Close)

	events := kafka.NoopPublisher{}
	limiter := allowAllLimiter{}
	rates := config.RateLimitConfig{}

	auth := service.NewAuthService(users, sessions, password, tokenSvc, audit, events, limiter, rates, logger)
	identity := service.NewIdentityService(users, audit, events, logger)
	verification := service.NewVerificationService(
		users, tokens, sessions, password, mailer, audit, events, limiter, rates,
		24*time.Hour, time.Hour, logger)
	userAdmin := service.NewUserService(users, domainService.NewAuthzService(), audit, logger)

	return &testEnv{
		users:        users,
		sessions:     sessions,
		tokens:       tokens,
		auditLog:     auditLog,
		mailer:       mailer,
		password:     password,
		audit:        audit,
		auth:         auth,
		identity:     identity,
		verification: verification,
		userAdmin:    userAdmin,
		tokenSvc:     tokenSvc,
	}
}

// withLimiter rebuilds the auth service around a different rate limiter,
// sharing the env's stores.
func (env *testEnv) withLimiter(l domainService.RateLimiter) *service.AuthService {
	return service.NewAuthService(env.users, env.sessions, env.password, env.tokenSvc,
		env.audit, kafka.NoopPublisher{}, l, config.RateLimitConfig{}, zap.NewNop())
}

// withMailer rebuilds the verification service around a different mailer,
// sharing the env's stores.
func (env *testEnv) withMailer(m email.Mailer) *service.VerificationService {
	return service.NewVerificationService(
		env.users, env.tokens, env.sessions, env.password, m, env.audit,
		kafka.NoopPublisher{}, allowAllLimiter{}, config.RateLimitConfig{},
		24*time.Hour, time.Hour, zap.NewNop())
}
