package config

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/sethvargo/go-envconfig"
)

// Config holds all configuration for the application
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Auth     AuthConfig
	Uploads  UploadConfig
	Jobs     JobsConfig
	Admin    AdminConfig
	Logging  LoggingConfig
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port        string   `env:"PORT, default=8080"`
	PublicURL   string   `env:"PUBLIC_URL, default=http://localhost:8080"`
	FrontendURL string   `env:"FRONTEND_URL, default=http://localhost:5173"`
	CORSOrigins []string `env:"CORS_ORIGINS"`
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	URL string `env:"DATABASE_URL, default=investly.sqlite"` // sqlite path or postgres:// URL
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Address string `env:"REDIS_ADDRESS, default=localhost:6379"`
}

// AuthConfig holds token and signin configuration
type AuthConfig struct {
	JWTSecret       string        `env:"JWT_SECRET"`
	TokenTTL        time.Duration `env:"JWT_TTL, default=72h"`
	SigninRateLimit int           `env:"SIGNIN_RATE_LIMIT, default=10"` // attempts per minute per client, 0 disables
}

// UploadConfig holds file upload configuration
type UploadConfig struct {
	Dir      string `env:"UPLOAD_DIR, default=uploads"`
	MaxBytes int64  `env:"UPLOAD_MAX_BYTES, default=5242880"`
}

// JobsConfig holds background job configuration
type JobsConfig struct {
	SettlementSchedule string `env:"SETTLEMENT_SCHEDULE, default=*/15 * * * *"`
}

// AdminConfig holds the credentials seeded by `dbtool setup`
type AdminConfig struct {
	Email    string `env:"ADMIN_EMAIL, default=admin@investly.local"`
	Password string `env:"ADMIN_PASSWORD"`
	Name     string `env:"ADMIN_NAME, default=Platform Admin"`
}

// LoggingConfig holds logging-related configuration
type LoggingConfig struct {
	Level  string `env:"LOG_LEVEL, default=info"`
	Format string `env:"LOG_FORMAT, default=json"` // json, console
}

// Load loads configuration from .env files and environment variables
func Load() (*Config, error) {
	// Load .env files (fails silently if files don't exist)
	_ = godotenv.Load(".env")
	_ = godotenv.Load(".env.local")

	return LoadFrom(context.Background(), envconfig.OsLookuper())
}

// LoadFrom decodes configuration from the given lookuper
func LoadFrom(ctx context.Context, lookuper envconfig.Lookuper) (*Config, error) {
	var cfg Config
	if err := envconfig.ProcessWith(ctx, &envconfig.Config{
		Target:   &cfg,
		Lookuper: lookuper,
	}); err != nil {
		return nil, fmt.Errorf("failed to process environment: %w", err)
	}

	if len(cfg.Server.CORSOrigins) == 0 {
		cfg.Server.CORSOrigins = []string{cfg.Server.FrontendURL}
	}
	cfg.Server.PublicURL = strings.TrimRight(cfg.Server.PublicURL, "/")
	cfg.Server.FrontendURL = strings.TrimRight(cfg.Server.FrontendURL, "/")

	return &cfg, nil
}

// ValidateServer checks the settings the API server cannot run without
func (c *Config) ValidateServer() error {
	if len(c.Auth.JWTSecret) < 32 {
		return fmt.Errorf("JWT_SECRET must be at least 32 characters")
	}
	if c.Auth.TokenTTL <= 0 {
		return fmt.Errorf("JWT_TTL must be positive")
	}
	return nil
}
