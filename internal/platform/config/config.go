package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Storage drivers.
const (
	StoragePostgres = "postgres"
	StorageMemory   = "memory"
)

const defaultJWTSecret = "a-very-secret-key-should-be-longer-and-random"

// Config holds application configuration.
type Config struct {
	DatabaseURL       string
	StorageDriver     string
	MigrationsPath    string
	Port              string
	IsProduction      bool
	JWTSecret         string
	JWTExpiryDuration time.Duration // lifetime of tokens minted by the token command
	JWTIssuer         string
	RateLimit         string
	FrontendBaseURL   string
	PosthogAPIKey     string
	PosthogEndpoint   string
	RedisURL          string

	// Recurrence sweep
	SweepCron       string
	SweepBatchSize  int
	SweepClaimLease time.Duration
}

// LoadConfig loads configuration from environment variables and .env file if present.
func LoadConfig() (*Config, error) {
	// Attempt to load .env file, ignore error if it doesn't exist
	_ = godotenv.Load()

	v := viper.New()
	v.SetDefault("PGSQL_URL", "")
	v.SetDefault("STORAGE_DRIVER", StoragePostgres)
	v.SetDefault("MIGRATIONS_PATH", "migrations")
	v.SetDefault("PORT", "8080")
	v.SetDefault("IS_PRODUCTION", false)
	v.SetDefault("JWT_SECRET", defaultJWTSecret)
	v.SetDefault("JWT_EXPIRY_DURATION", "1h")
	v.SetDefault("JWT_ISSUER", "pfm-backend")
	v.SetDefault("RATE_LIMIT", "100-M")
	v.SetDefault("FRONTEND_BASE_URL", "http://localhost:3000")
	v.SetDefault("POSTHOG_API_KEY", "")
	v.SetDefault("POSTHOG_ENDPOINT", "")
	v.SetDefault("REDIS_URL", "")
	v.SetDefault("SWEEP_CRON", "0 2 * * *")
	v.SetDefault("SWEEP_BATCH_SIZE", 100)
	v.SetDefault("SWEEP_CLAIM_LEASE", "15m")

	// Environment variables override the defaults and anything loaded from .env.
	v.AutomaticEnv()

	cfg := &Config{
		DatabaseURL:     v.GetString("PGSQL_URL"),
		StorageDriver:   strings.ToLower(strings.TrimSpace(v.GetString("STORAGE_DRIVER"))),
		MigrationsPath:  v.GetString("MIGRATIONS_PATH"),
		Port:            v.GetString("PORT"),
		IsProduction:    v.GetBool("IS_PRODUCTION"),
		JWTSecret:       v.GetString("JWT_SECRET"),
		JWTIssuer:       v.GetString("JWT_ISSUER"),
		RateLimit:       v.GetString("RATE_LIMIT"),
		FrontendBaseURL: v.GetString("FRONTEND_BASE_URL"),
		PosthogAPIKey:   v.GetString("POSTHOG_API_KEY"),
		PosthogEndpoint: v.GetString("POSTHOG_ENDPOINT"),
		RedisURL:        v.GetString("REDIS_URL"),
		SweepCron:       v.GetString("SWEEP_CRON"),
		SweepBatchSize:  v.GetInt("SWEEP_BATCH_SIZE"),
	}

	if cfg.Port == "" {
		cfg.Port = "8080"
		slog.Warn("PORT not set, using default", slog.String("port", cfg.Port))
	}

	var err error
	cfg.JWTExpiryDuration, err = time.ParseDuration(v.GetString("JWT_EXPIRY_DURATION"))
	if err != nil || cfg.JWTExpiryDuration <= 0 {
		cfg.JWTExpiryDuration = time.Hour
		slog.Warn("Invalid JWT_EXPIRY_DURATION, using default", slog.String("value", v.GetString("JWT_EXPIRY_DURATION")))
	}

	cfg.SweepClaimLease, err = time.ParseDuration(v.GetString("SWEEP_CLAIM_LEASE"))
	if err != nil {
		return nil, fmt.Errorf("invalid SWEEP_CLAIM_LEASE %q: %w", v.GetString("SWEEP_CLAIM_LEASE"), err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	var errs []error

	switch c.StorageDriver {
	case StoragePostgres:
		if c.DatabaseURL == "" {
			errs = append(errs, errors.New("PGSQL_URL is required when STORAGE_DRIVER is postgres"))
		}
	case StorageMemory:
		if c.IsProduction {
			errs = append(errs, errors.New("STORAGE_DRIVER memory is not allowed in production"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown STORAGE_DRIVER %q", c.StorageDriver))
	}

	if c.JWTSecret == "" {
		errs = append(errs, errors.New("JWT_SECRET must not be empty"))
	} else if c.JWTSecret == defaultJWTSecret {
		if c.IsProduction {
			errs = append(errs, errors.New("JWT_SECRET must be set in production"))
		} else {
			slog.Warn("JWT_SECRET not set, using default insecure key")
		}
	}

	if c.SweepBatchSize <= 0 {
		errs = append(errs, fmt.Errorf("SWEEP_BATCH_SIZE must be positive, got %d", c.SweepBatchSize))
	}
	if c.SweepClaimLease <= 0 {
		errs = append(errs, fmt.Errorf("SWEEP_CLAIM_LEASE must be positive, got %s", c.SweepClaimLease))
	}

	if len(errs) > 0 {
		return fmt.Errorf("invalid configuration: %w", errors.Join(errs...))
	}
	return nil
}
