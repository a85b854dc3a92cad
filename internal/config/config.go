// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

// Package config handles application configuration loading from environment
// variables. It provides a centralized Config struct used across the application.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds all application configuration values loaded from the environment.
type Config struct {
	// Server settings
	Host string
	Port string
	Env  string // "development", "production", "testing"

	// PostgreSQL connection
	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string

	// Valkey (Redis-compatible cache)
	ValkeyHost     string
	ValkeyPort     string
	ValkeyPassword string

	// S3-compatible object storage for uploads and previews
	S3Endpoint     string
	S3Region       string
	S3AccessKey    string
	S3SecretKey    string
	S3BucketPublic string
	S3PublicURL    string

	// OperatorTokenHash is the bcrypt hash of the operator bearer token.
	// Empty disables the operator API outside development.
	OperatorTokenHash string

	// Customer drafts
	DraftBackend    string // "valkey", "sqlite", "memory"
	DraftSQLitePath string
	DraftQuotaBytes int64
	DraftTTL        time.Duration
	DraftRetain     int

	// Editing sessions
	AutoSaveDelay time.Duration
	SessionIdle   time.Duration

	// Rendering
	ExportMultiplier  float64
	ExportConcurrency int
	FontDir           string

	MaxUploadMB int64
}

// Load reads configuration from environment variables, applying defaults
// for development where appropriate. Returns an error if critical values
// are missing or malformed.
func Load() (*Config, error) {
	cfg := &Config{
		Host: envOrDefault("APP_HOST", "0.0.0.0"),
		Port: envOrDefault("APP_PORT", "8080"),
		Env:  envOrDefault("APP_ENV", "development"),

		DBHost:     envOrDefault("POSTGRES_HOST", "localhost"),
		DBPort:     envOrDefault("POSTGRES_PORT", "5432"),
		DBUser:     envOrDefault("POSTGRES_USER", "mockupstudio"),
		DBPassword: envOrDefault("POSTGRES_PASSWORD", "changeme"),
		DBName:     envOrDefault("POSTGRES_DB", "mockupstudio"),

		ValkeyHost:     envOrDefault("VALKEY_HOST", "localhost"),
		ValkeyPort:     envOrDefault("VALKEY_PORT", "6379"),
		ValkeyPassword: os.Getenv("VALKEY_PASSWORD"),

		S3Endpoint:     os.Getenv("S3_ENDPOINT"),
		S3Region:       envOrDefault("S3_REGION", "fsn1"),
		S3AccessKey:    os.Getenv("S3_ACCESS_KEY"),
		S3SecretKey:    os.Getenv("S3_SECRET_KEY"),
		S3BucketPublic: envOrDefault("S3_BUCKET_PUBLIC", "mockupstudio-public"),
		S3PublicURL:    os.Getenv("S3_PUBLIC_URL"),

		OperatorTokenHash: os.Getenv("OPERATOR_TOKEN_HASH"),

		DraftBackend:    envOrDefault("DRAFT_BACKEND", "valkey"),
		DraftSQLitePath: envOrDefault("DRAFT_SQLITE_PATH", "drafts.db"),

		FontDir: os.Getenv("FONT_DIR"),
	}

	var err error
	if cfg.DraftQuotaBytes, err = envInt64("DRAFT_QUOTA_BYTES", 5<<20); err != nil {
		return nil, err
	}
	if cfg.DraftTTL, err = envDuration("DRAFT_TTL", 24*time.Hour); err != nil {
		return nil, err
	}
	if cfg.DraftRetain, err = envInt("DRAFT_RETAIN", 5); err != nil {
		return nil, err
	}
	if cfg.AutoSaveDelay, err = envDuration("AUTOSAVE_DELAY", 3*time.Second); err != nil {
		return nil, err
	}
	if cfg.SessionIdle, err = envDuration("SESSION_IDLE", 30*time.Minute); err != nil {
		return nil, err
	}
	if cfg.ExportMultiplier, err = envFloat("EXPORT_MULTIPLIER", 4); err != nil {
		return nil, err
	}
	if cfg.ExportConcurrency, err = envInt("EXPORT_CONCURRENCY", 2); err != nil {
		return nil, err
	}
	if cfg.MaxUploadMB, err = envInt64("MAX_UPLOAD_MB", 10); err != nil {
		return nil, err
	}

	switch cfg.DraftBackend {
	case "valkey", "sqlite", "memory":
	default:
		return nil, fmt.Errorf("DRAFT_BACKEND must be valkey, sqlite or memory, got %q", cfg.DraftBackend)
	}
	if cfg.ExportMultiplier < 1 || cfg.ExportMultiplier > 10 {
		return nil, fmt.Errorf("EXPORT_MULTIPLIER must be between 1 and 10, got %v", cfg.ExportMultiplier)
	}
	if cfg.ExportConcurrency < 1 {
		return nil, fmt.Errorf("EXPORT_CONCURRENCY must be at least 1, got %d", cfg.ExportConcurrency)
	}

	if cfg.Env == "production" {
		if cfg.DBPassword == "changeme" {
			return nil, fmt.Errorf("POSTGRES_PASSWORD must be set in production")
		}
		if cfg.OperatorTokenHash == "" {
			return nil, fmt.Errorf("OPERATOR_TOKEN_HASH must be set in production")
		}
	}

	return cfg, nil
}

// DSN returns the PostgreSQL connection string.
func (c *Config) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s?sslmode=disable",
		c.DBUser, c.DBPassword, c.DBHost, c.DBPort, c.DBName,
	)
}

// Addr returns the server listen address (host:port).
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%s", c.Host, c.Port)
}

// IsDev returns true if the application is running in development mode.
func (c *Config) IsDev() bool {
	return c.Env == "development"
}

// MaxUploadBytes returns the upload size limit in bytes.
func (c *Config) MaxUploadBytes() int64 {
	return c.MaxUploadMB << 20
}

// envOrDefault reads an environment variable, returning a fallback if unset or empty.
func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid integer %q", key, v)
	}
	return n, nil
}

func envInt64(key string, fallback int64) (int64, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid integer %q", key, v)
	}
	return n, nil
}

func envFloat(key string, fallback float64) (float64, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid number %q", key, v)
	}
	return f, nil
}

func envDuration(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid duration %q", key, v)
	}
	return d, nil
}
