package http

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/todoapp/auth-service/internal/config"
	"github.com/todoapp/auth-service/internal/domain/models"
	"github.com/todoapp/auth-service/internal/domain/repository"
	domainService "github.com/todoapp/auth-service/internal/domain/service"
	"github.com/todoapp/auth-service/internal/handler/http/middleware"
	"github.com/todoapp/auth-service/internal/service"
)

// RouterDeps bundles everything SetupRouter wires together.
type RouterDeps struct {
	Auth         *service.AuthService
	Verification *service.VerificationService
	Identity     *service.IdentityService
	OAuth        *service.OAuthService
	Users        *service.UserService
	Tokens       domainService.TokenService
	UserRepo     repository.UserRepository
	AuditLog     repository.AuditLogRepository
	Limiter      domainService.RateLimiter
	Health       *HealthHandler
	Config       *config.Config
	Logger       *zap.Logger
}

// SetupRouter builds the gin engine with all middleware and routes.
func SetupRouter(deps RouterDeps) *gin.Engine {
	router := gin.New()

	router.Use(middleware.RecoveryMiddleware(deps.Logger))
	router.Use(middleware.LoggingMiddleware(deps.Logger))
	router.Use(middleware.CorsMiddleware(deps.Config.Frontend.AllowedOrigins))
	if deps.Config.Telemetry.Metrics.Enabled {
		router.Use(middleware.MetricsMiddleware())
	}

	authHandler := NewAuthHandler(deps.Auth, deps.Verification, deps.Logger)
	oauthHandler := NewOAuthHandler(deps.OAuth, deps.Identity, deps.Logger)
	adminHandler := NewAdminHandler(deps.Users, deps.Identity, deps.AuditLog, deps.Logger)

	if deps.Config.Telemetry.Metrics.Enabled {
		router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	}
	router.GET("/health", deps.Health.Live)
	router.GET("/readiness", deps.Health.Ready)

	requireAuth := middleware.AuthMiddleware(deps.Tokens, deps.UserRepo, deps.Logger)
	generalLimit := middleware.RateLimitMiddleware(deps.Limiter,
		deps.Config.Security.RateLimiting.GeneralAuth, deps.Logger)

	api := router.Group("/api/v1")
	{
		auth := api.Group("/auth")
		auth.Use(generalLimit)
		{
			auth.POST("/register", authHandler.Register)
			auth.POST("/login", authHandler.Login)
			auth.POST("/refresh-token", authHandler.Refresh)
			auth.POST("/logout", authHandler.Logout)
			auth.GET("/verify-email", authHandler.VerifyEmail)
			auth.POST("/resend-verification", requireAuth, authHandler.ResendVerification)
			auth.POST("/forgot-password", authHandler.ForgotPassword)
			auth.POST("/reset-password", authHandler.ResetPassword)

			auth.GET("/me", requireAuth, authHandler.Me)
		}

		oauth := api.Group("/oauth")
		{
			oauth.GET("/:provider/login", oauthHandler.BeginLogin)
			oauth.GET("/:provider/link", oauthHandler.BeginLink)
			oauth.GET("/:provider/callback", oauthHandler.Callback)
			oauth.DELETE("/:provider", requireAuth, oauthHandler.Unlink)
		}

		admin := api.Group("/admin")
		admin.Use(requireAuth)
		admin.Use(middleware.RequireRole(models.RoleAdmin))
		{
			admin.GET("/users", adminHandler.ListUsers)
			admin.GET("/users/:user_id", adminHandler.GetUser)
			admin.PUT("/users/:user_id/role", adminHandler.UpdateRole)
			admin.DELETE("/users/:user_id", adminHandler.DeleteUser)
			admin.GET("/users/:user_id/audit-log", adminHandler.UserAuditLog)

			admin.POST("/users/merge",
				middleware.RequireRole(models.RoleSysadmin), adminHandler.MergeUsers)
		}
	}

	return router
}
