package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"
)

// LoadConfig reads configuration from a yaml file and environment variables.
// Environment variables use the AUTH_ prefix with dots replaced by
// underscores, e.g. AUTH_JWT_ACCESS_TOKEN_SECRET.
func LoadConfig() (*Config, error) {
	setDefaults()

	env := strings.ToLower(os.Getenv("APP_ENV"))
	if env == "" {
		env = "development"
	}

	if path := os.Getenv("CONFIG_PATH"); path != "" {
		viper.SetConfigFile(path)
	} else {
		viper.SetConfigName(fmt.Sprintf("config.%s", env))
		viper.SetConfigType("yaml")
		viper.AddConfigPath("./configs")
		viper.AddConfigPath(".")
		viper.AddConfigPath("/etc/auth-service")
	}

	viper.SetEnvPrefix("AUTH")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		// Missing file is fine, environment variables can carry everything.
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := validate(&config); err != nil {
		return nil, err
	}

	return &config, nil
}

func setDefaults() {
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.read_timeout", "10s")
	viper.SetDefault("server.write_timeout", "10s")
	viper.SetDefault("server.idle_timeout", "60s")
	viper.SetDefault("server.shutdown_timeout", "15s")

	viper.SetDefault("database.host", "localhost")
	viper.SetDefault("database.port", 5432)
	viper.SetDefault("database.sslmode", "disable")
	viper.SetDefault("database.migrations_path", "migrations")

	viper.SetDefault("redis.host", "localhost")
	viper.SetDefault("redis.port", 6379)

	viper.SetDefault("jwt.access_token_ttl", "15m")
	viper.SetDefault("jwt.refresh_token_ttl", "168h")
	viper.SetDefault("jwt.email_verification_token.expires_in", "24h")
	viper.SetDefault("jwt.password_reset_token.expires_in", "1h")
	viper.SetDefault("jwt.oauth_state_ttl", "5m")
	viper.SetDefault("jwt.issuer", "auth-service")

	viper.SetDefault("security.password_hash.memory", 19456)
	viper.SetDefault("security.password_hash.iterations", 2)
	viper.SetDefault("security.password_hash.parallelism", 1)
	viper.SetDefault("security.password_hash.salt_length", 16)
	viper.SetDefault("security.password_hash.key_length", 32)

	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.format", "json")

	viper.SetDefault("telemetry.service_name", "auth-service")
	viper.SetDefault("telemetry.metrics.enabled", true)
}

func validate(cfg *Config) error {
	if cfg.JWT.AccessTokenSecret == "" {
		return fmt.Errorf("jwt.access_token_secret is required")
	}
	if cfg.JWT.RefreshTokenSecret == "" {
		return fmt.Errorf("jwt.refresh_token_secret is required")
	}
	if cfg.JWT.OAuthStateSecret == "" {
		return fmt.Errorf("jwt.oauth_state_secret is required")
	}
	return nil
}
