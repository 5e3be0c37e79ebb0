// internal/config/config.go
// Centralized configuration management
// Loads from environment variables with sensible defaults

package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds all application configuration
type Config struct {
	// Server
	Port        string
	Environment string // "dev" or "prod"

	// Database
	DatabaseURL string
	RedisURL    string

	// Security
	JWTSecret          string
	BCryptCost         int
	AccessTokenExpiry  time.Duration
	RefreshTokenExpiry time.Duration

	// Media storage (C11)
	AWSRegion          string
	AWSAccessKeyID     string
	AWSSecretAccessKey string
	S3Bucket           string

	// Metrics (C12)
	MetricsEnabled bool
}

// Load reads configuration from the environment, applying defaults for
// everything except DatabaseURL and JWTSecret.
func Load() *Config {
	return &Config{
		Port:        getEnv("PORT", "3000"),
		Environment: getEnv("NODE_ENV", "dev"),

		DatabaseURL: getEnv("DATABASE_URL", ""),
		RedisURL:    getEnv("REDIS_URL", "redis://localhost:6379/0"),

		JWTSecret:          getEnv("JWT_SECRET", ""),
		BCryptCost:         getEnvInt("BCRYPT_COST", 10),
		AccessTokenExpiry:  getEnvDuration("ACCESS_TOKEN_EXPIRY", "15m"),
		RefreshTokenExpiry: getEnvDuration("REFRESH_TOKEN_EXPIRY", "168h"), // 7 days

		AWSRegion:          getEnv("AWS_REGION", ""),
		AWSAccessKeyID:     getEnv("AWS_ACCESS_KEY_ID", ""),
		AWSSecretAccessKey: getEnv("AWS_SECRET_ACCESS_KEY", ""),
		S3Bucket:           getEnv("S3_BUCKET", ""),

		MetricsEnabled: getEnvBool("METRICS_ENABLED", true),
	}
}

// Validate enforces the required options of SPEC_FULL.md §6: missing
// DatabaseURL or JWTSecret must fail startup fast.
func (c *Config) Validate() error {
	if c.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}
	if c.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is required")
	}
	return nil
}

// HasMediaStorage reports whether S3 credentials were supplied; when false,
// the media package falls back to a local no-op store (SPEC_FULL.md §6.3).
func (c *Config) HasMediaStorage() bool {
	return c.AWSRegion != "" && c.AWSAccessKeyID != "" && c.AWSSecretAccessKey != "" && c.S3Bucket != ""
}

// IsProduction returns true if running in production
func (c *Config) IsProduction() bool {
	return c.Environment == "prod"
}

// IsDevelopment returns true if running in development
func (c *Config) IsDevelopment() bool {
	return c.Environment == "dev"
}

// Helper functions

// getEnv gets a string value from environment with a default
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt gets an integer value from environment with a default
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// getEnvDuration gets a duration value from environment with a default
func getEnvDuration(key string, defaultValue string) time.Duration {
	value := getEnv(key, defaultValue)
	duration, err := time.ParseDuration(value)
	if err != nil {
		duration, _ = time.ParseDuration(defaultValue)
	}
	return duration
}

// getEnvBool gets a boolean value from environment with a default
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}
