package config

import (
	"fmt"
	"time"
)

type Config struct {
	Server         ServerConfig                   `mapstructure:"server"`
	Database       DatabaseConfig                 `mapstructure:"database"`
	Redis          RedisConfig                    `mapstructure:"redis"`
	Kafka          KafkaConfig                    `mapstructure:"kafka"`
	JWT            JWTConfig                      `mapstructure:"jwt"`
	Security       SecurityConfig                 `mapstructure:"security"`
	SMTP           SMTPConfig                     `mapstructure:"smtp"`
	Logging        LoggingConfig                  `mapstructure:"logging"`
	Telemetry      TelemetryConfig                `mapstructure:"telemetry"`
	OAuthProviders map[string]OAuthProviderConfig `mapstructure:"oauth_providers"`
	Frontend       FrontendConfig                 `mapstructure:"frontend"`
}

type ServerConfig struct {
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

type DatabaseConfig struct {
	Host           string `mapstructure:"host"`
	Port           int    `mapstructure:"port"`
	User           string `mapstructure:"user"`
	Password       string `mapstructure:"password"`
	DBName         string `mapstructure:"dbname"`
	SSLMode        string `mapstructure:"sslmode"`
	AutoMigrate    bool   `mapstructure:"auto_migrate"`
	MigrationsPath string `mapstructure:"migrations_path"`
}

// DSN assembles a pgx connection string from the individual fields.
func (c DatabaseConfig) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.DBName, c.SSLMode)
}

type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

func (c RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

type KafkaProducerConfig struct {
	Topic string `mapstructure:"topic"`
}

type KafkaConfig struct {
	Enabled  bool                `mapstructure:"enabled"`
	Brokers  []string            `mapstructure:"brokers"`
	Producer KafkaProducerConfig `mapstructure:"producer"`
}

type TokenConfig struct {
	ExpiresIn time.Duration `mapstructure:"expires_in"`
}

type JWTConfig struct {
	AccessTokenSecret      string        `mapstructure:"access_token_secret"`
	RefreshTokenSecret     string        `mapstructure:"refresh_token_secret"`
	AccessTokenTTL         time.Duration `mapstructure:"access_token_ttl"`
	RefreshTokenTTL        time.Duration `mapstructure:"refresh_token_ttl"`
	EmailVerificationToken TokenConfig   `mapstructure:"email_verification_token"`
	PasswordResetToken     TokenConfig   `mapstructure:"password_reset_token"`
	Issuer                 string        `mapstructure:"issuer"`
	OAuthStateSecret       string        `mapstructure:"oauth_state_secret"`
	OAuthStateTTL          time.Duration `mapstructure:"oauth_state_ttl"`
}

type PasswordHashConfig struct {
	Memory      uint32 `mapstructure:"memory"`
	Iterations  uint32 `mapstructure:"iterations"`
	Parallelism uint8  `mapstructure:"parallelism"`
	SaltLength  uint32 `mapstructure:"salt_length"`
	KeyLength   uint32 `mapstructure:"key_length"`
}

// RateLimitRule defines the configuration for a specific rate limit.
type RateLimitRule struct {
	Enabled bool          `mapstructure:"enabled"`
	Limit   int           `mapstructure:"limit"`
	Window  time.Duration `mapstructure:"window"`
}

// RateLimitConfig holds all rate limiting configurations.
type RateLimitConfig struct {
	Enabled                 bool          `mapstructure:"enabled"`
	RegisterIP              RateLimitRule `mapstructure:"register_ip"`
	LoginEmailIP            RateLimitRule `mapstructure:"login_email_ip"`
	PasswordResetPerEmail   RateLimitRule `mapstructure:"password_reset_per_email"`
	PasswordResetPerIP      RateLimitRule `mapstructure:"password_reset_per_ip"`
	ResendVerificationEmail RateLimitRule `mapstructure:"resend_verification_email"`
	GeneralAuth             RateLimitRule `mapstructure:"general_auth"`
}

type SecurityConfig struct {
	PasswordHash PasswordHashConfig `mapstructure:"password_hash"`
	RateLimiting RateLimitConfig    `mapstructure:"rate_limiting"`
}

type SMTPConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	Host      string `mapstructure:"host"`
	Port      int    `mapstructure:"port"`
	Username  string `mapstructure:"username"`
	Password  string `mapstructure:"password"`
	FromEmail string `mapstructure:"from_email"`
	FromName  string `mapstructure:"from_name"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type MetricsConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

type TelemetryConfig struct {
	ServiceName string        `mapstructure:"service_name"`
	Metrics     MetricsConfig `mapstructure:"metrics"`
}

type OAuthProviderConfig struct {
	Enabled      bool     `mapstructure:"enabled"`
	ClientID     string   `mapstructure:"client_id"`
	ClientSecret string   `mapstructure:"client_secret"`
	RedirectURL  string   `mapstructure:"redirect_url"`
	AuthURL      string   `mapstructure:"auth_url"`
	TokenURL     string   `mapstructure:"token_url"`
	Scopes       []string `mapstructure:"scopes"`
	// TenantID narrows the Microsoft authority; ignored by other providers.
	TenantID string `mapstructure:"tenant_id"`
}

type FrontendConfig struct {
	// DefaultRedirectURL is where OAuth callbacks land when the state
	// carries no explicit destination.
	DefaultRedirectURL string   `mapstructure:"default_redirect_url"`
	AllowedOrigins     []string `mapstructure:"allowed_origins"`
}
