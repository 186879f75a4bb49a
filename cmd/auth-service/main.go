package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/todoapp/auth-service/internal/config"
	"github.com/todoapp/auth-service/internal/domain/models"
	domainService "github.com/todoapp/auth-service/internal/domain/service"
	"github.com/todoapp/auth-service/internal/events/kafka"
	httpHandler "github.com/todoapp/auth-service/internal/handler/http"
	"github.com/todoapp/auth-service/internal/infrastructure/database"
	infraPostgres "github.com/todoapp/auth-service/internal/infrastructure/database/postgres"
	"github.com/todoapp/auth-service/internal/infrastructure/oauth"
	"github.com/todoapp/auth-service/internal/infrastructure/ratelimit"
	"github.com/todoapp/auth-service/internal/infrastructure/security"
	"github.com/todoapp/auth-service/internal/service"
	"github.com/todoapp/auth-service/internal/utils/email"
	"github.com/todoapp/auth-service/internal/utils/logger"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		panic(fmt.Sprintf("failed to load config: %v", err))
	}

	log, err := logger.NewLogger(cfg.Logging.Level, cfg.Logging.Format)
	if err != nil {
		panic(fmt.Sprintf("failed to initialize logger: %v", err))
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.Database.AutoMigrate {
		if err := runMigrations(cfg.Database, log); err != nil {
			log.Fatal("failed to apply migrations", zap.Error(err))
		}
	}

	// Postgres.
	dbPool, err := infraPostgres.NewDBPool(ctx, cfg.Database)
	if err != nil {
		log.Fatal("failed to connect to postgres", zap.Error(err))
	}
	defer dbPool.Close()

	userRepo := database.NewPgxUserRepository(dbPool)
	sessionRepo := database.NewPgxSessionRepository(dbPool)
	tokenRepo := database.NewPgxOneTimeTokenRepository(dbPool)
	auditRepo := database.NewPgxAuditLogRepository(dbPool)

	// Redis backs the rate limiter only; the service stays up without it.
	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr(),
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer redisClient.Close()
	if err := redisClient.Ping(ctx).Err(); err != nil {
		log.Warn("redis unreachable at startup, rate limiting degrades to fail-open", zap.Error(err))
	}
	limiter := ratelimit.NewRedisLimiter(redisClient, log, cfg.Security.RateLimiting.Enabled)

	// Kafka.
	var events kafka.Publisher = kafka.NoopPublisher{}
	if cfg.Kafka.Enabled {
		producer, err := kafka.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.Producer.Topic,
			cfg.Telemetry.ServiceName, log)
		if err != nil {
			log.Error("failed to initialize kafka producer, events disabled", zap.Error(err))
		} else {
			events = producer
			defer producer.Close()
		}
	}

	// Mail.
	var mailer email.Mailer = email.NoopMailer{Logger: log}
	if cfg.SMTP.Enabled {
		mailer = email.NewClient(cfg.SMTP, log)
	}

	// Security primitives.
	passwordService, err := security.NewArgon2idPasswordService(security.Argon2idParams{
		Memory:      cfg.Security.PasswordHash.Memory,
		Iterations:  cfg.Security.PasswordHash.Iterations,
		Parallelism: cfg.Security.PasswordHash.Parallelism,
		SaltLength:  cfg.Security.PasswordHash.SaltLength,
		KeyLength:   cfg.Security.PasswordHash.KeyLength,
	})
	if err != nil {
		log.Fatal("failed to initialize password service", zap.Error(err))
	}

	tokenService, err := security.NewJWTService(security.JWTServiceConfig{
		AccessTokenSecret:  cfg.JWT.AccessTokenSecret,
		RefreshTokenSecret: cfg.JWT.RefreshTokenSecret,
		AccessTokenTTL:     cfg.JWT.AccessTokenTTL,
		RefreshTokenTTL:    cfg.JWT.RefreshTokenTTL,
		Issuer:             cfg.JWT.Issuer,
	})
	if err != nil {
		log.Fatal("failed to initialize token service", zap.Error(err))
	}

	stateCodec, err := security.NewOAuthStateCodec(cfg.JWT.OAuthStateSecret, cfg.JWT.OAuthStateTTL)
	if err != nil {
		log.Fatal("failed to initialize oauth state codec", zap.Error(err))
	}

	providers := buildProviders(cfg, log)

	// Services.
	auditService := service.NewAuditService(auditRepo, log)
	defer auditService.Close()

	authService := service.NewAuthService(userRepo, sessionRepo, passwordService, tokenService,
		auditService, events, limiter, cfg.Security.RateLimiting, log)
	identityService := service.NewIdentityService(userRepo, auditService, events, log)
	verificationService := service.NewVerificationService(userRepo, tokenRepo, sessionRepo,
		passwordService, mailer, auditService, events, limiter, cfg.Security.RateLimiting,
		cfg.JWT.EmailVerificationToken.ExpiresIn, cfg.JWT.PasswordResetToken.ExpiresIn, log)
	oauthService := service.NewOAuthService(providers, stateCodec, tokenService, identityService,
		authService, auditService, events, cfg.Frontend.DefaultRedirectURL, log)
	userService := service.NewUserService(userRepo, domainService.NewAuthzService(), auditService, log)

	sweeper := service.NewSweeper(sessionRepo, tokenRepo, time.Hour, log)
	go sweeper.Run(ctx)

	router := httpHandler.SetupRouter(httpHandler.RouterDeps{
		Auth:         authService,
		Verification: verificationService,
		Identity:     identityService,
		OAuth:        oauthService,
		Users:        userService,
		Tokens:       tokenService,
		UserRepo:     userRepo,
		AuditLog:     auditRepo,
		Limiter:      limiter,
		Health:       httpHandler.NewHealthHandler(dbPool, redisClient),
		Config:       cfg,
		Logger:       log,
	})

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		log.Info("http server listening", zap.Int("port", cfg.Server.Port))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("http server failed", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("http server shutdown failed", zap.Error(err))
		os.Exit(1)
	}
	verificationService.Flush()
	log.Info("shutdown complete")
}

func runMigrations(cfg config.DatabaseConfig, log *zap.Logger) error {
	m, err := migrate.New("file://"+cfg.MigrationsPath, cfg.DSN())
	if err != nil {
		return fmt.Errorf("failed to create migrator: %w", err)
	}
	defer m.Close()

	if err := m.Up(); err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			log.Info("no migrations to apply")
			return nil
		}
		return err
	}
	log.Info("migrations applied")
	return nil
}

func buildProviders(cfg *config.Config, log *zap.Logger) map[models.IdentityKind]oauth.Provider {
	providers := make(map[models.IdentityKind]oauth.Provider)
	for name, providerCfg := range cfg.OAuthProviders {
		if !providerCfg.Enabled {
			continue
		}
		switch models.IdentityKind(name) {
		case models.IdentityGoogle:
			providers[models.IdentityGoogle] = oauth.NewGoogleProvider(providerCfg)
		case models.IdentityMicrosoft:
			providers[models.IdentityMicrosoft] = oauth.NewMicrosoftProvider(providerCfg)
		default:
			log.Warn("unknown oauth provider in config, skipping", zap.String("provider", name))
		}
	}
	return providers
}
