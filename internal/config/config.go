// Package config defines service configuration structures and loading hooks.
//
// Conventions:
// - Provide New(ctx) to build a Config with defaults.
// - Load layers defaults, an optional .env file, an optional YAML file and
//   NEBULA_* environment variables.
// - Validation failures wrap ErrInvalidConfig.
package config

import (
	"context"
	"fmt"
	"runtime"
	"strings"
)

// Store drivers.
const (
	DriverMemory = "memory"
	DriverSQLite = "sqlite"
)

// DefaultJWTSecret is the development signing secret. Production refuses it.
const DefaultJWTSecret = "change-me"

// Config contains process configuration.
type Config struct {
	// Env names the deployment environment; "production" tightens validation.
	Env string `koanf:"env"`

	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// LogFormat selects the slog handler: text or json.
	LogFormat string `koanf:"log_format"`

	// Addr configures the HTTP listen address, e.g. ":8080".
	Addr string `koanf:"addr"`

	// StoreDriver selects the score store and connection registry backend.
	StoreDriver string `koanf:"store_driver"`

	// SQLitePath is the database file used by the sqlite driver.
	SQLitePath string `koanf:"sqlite_path"`

	// HighScoreThreshold is the exclusive lower bound that triggers a notification.
	HighScoreThreshold float64 `koanf:"high_score_threshold"`

	// NotifyQueueSize bounds the detached notification queue.
	NotifyQueueSize int `koanf:"notify_queue_size"`

	// NotifyWorkers sets the number of goroutines draining the queue.
	NotifyWorkers int `koanf:"notify_workers"`

	// FanoutTargeted restricts high-score pushes to the scoring user's own
	// connections. Off by default: every live connection receives every push.
	FanoutTargeted bool `koanf:"fanout_targeted"`

	// CORSOrigins is the allow-list of browser origins.
	CORSOrigins []string `koanf:"cors_origins"`

	// JWTSecret signs tokens issued by the local identity provider.
	JWTSecret string `koanf:"jwt_secret"`

	// TokenTTLSeconds is the access token lifetime.
	TokenTTLSeconds int `koanf:"token_ttl_seconds"`

	// TokenCacheSize bounds the introspection cache.
	TokenCacheSize int `koanf:"token_cache_size"`

	// AuthRatePerSecond and AuthRateBurst throttle the public auth endpoints.
	AuthRatePerSecond float64 `koanf:"auth_rate_per_second"`
	AuthRateBurst     int     `koanf:"auth_rate_burst"`

	// MinPasswordStrength is the minimum zxcvbn score (0-4) accepted at registration.
	MinPasswordStrength int `koanf:"min_password_strength"`
}

// New returns a Config populated with defaults.
func New(_ context.Context) *Config {
	return &Config{
		Env:                 "development",
		LogLevel:            "info",
		LogFormat:           "text",
		Addr:                ":3001",
		StoreDriver:         DriverSQLite,
		SQLitePath:          "nebula.db",
		HighScoreThreshold:  1000,
		NotifyQueueSize:     1024,
		NotifyWorkers:       runtime.NumCPU(),
		FanoutTargeted:      false,
		CORSOrigins:         []string{"http://localhost:3000", "https://nebula-challenge-frontend.vercel.app"},
		JWTSecret:           DefaultJWTSecret,
		TokenTTLSeconds:     3600,
		TokenCacheSize:      10_000,
		AuthRatePerSecond:   5,
		AuthRateBurst:       10,
		MinPasswordStrength: 2,
	}
}

// Validate checks cross-field constraints.
func (c *Config) Validate() error {
	switch {
	case strings.TrimSpace(c.Addr) == "":
		return fmt.Errorf("%w: addr must not be empty", ErrInvalidConfig)
	case c.StoreDriver != DriverMemory && c.StoreDriver != DriverSQLite:
		return fmt.Errorf("%w: unknown store_driver %q", ErrInvalidConfig, c.StoreDriver)
	case c.StoreDriver == DriverSQLite && strings.TrimSpace(c.SQLitePath) == "":
		return fmt.Errorf("%w: sqlite_path must not be empty", ErrInvalidConfig)
	case c.HighScoreThreshold < 0:
		return fmt.Errorf("%w: high_score_threshold must be >= 0", ErrInvalidConfig)
	case c.NotifyQueueSize < 1:
		return fmt.Errorf("%w: notify_queue_size must be >= 1", ErrInvalidConfig)
	case c.NotifyWorkers < 1:
		return fmt.Errorf("%w: notify_workers must be >= 1", ErrInvalidConfig)
	case strings.TrimSpace(c.JWTSecret) == "":
		return fmt.Errorf("%w: jwt_secret must not be empty", ErrInvalidConfig)
	case c.IsProduction() && c.JWTSecret == DefaultJWTSecret:
		return fmt.Errorf("%w: jwt_secret must be set in production", ErrInvalidConfig)
	case c.TokenTTLSeconds < 1:
		return fmt.Errorf("%w: token_ttl_seconds must be >= 1", ErrInvalidConfig)
	case c.MinPasswordStrength < 0 || c.MinPasswordStrength > 4:
		return fmt.Errorf("%w: min_password_strength must be within 0..4", ErrInvalidConfig)
	}
	return nil
}

// IsProduction reports whether Env is production.
func (c *Config) IsProduction() bool {
	return strings.EqualFold(strings.TrimSpace(c.Env), "production")
}
