package config

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

const (
	envPrefix     = "NEBULA_"
	envConfigFile = "NEBULA_CONFIG"
	envDotenvFile = "NEBULA_DOTENV"
	envMode       = "NEBULA_ENV"
	defaultDotenv = ".env"
)

// Load builds a Config by layering sources. Order of precedence (low -> high):
//  1. defaults (New(ctx))
//  2. .env file (only outside production; never overrides the real environment)
//  3. YAML file if NEBULA_CONFIG is set
//  4. env (prefix NEBULA_)
func Load(ctx context.Context) (*Config, error) {
	base := New(ctx)

	if err := loadDotenv(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLoadConfig, err)
	}

	k := koanf.New(".")

	if path := os.Getenv(envConfigFile); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrLoadConfig, err)
		}
	}

	// NEBULA_SQLITE_PATH -> sqlite_path. Keys stay flat to match koanf tags.
	envProvider := env.ProviderWithValue(envPrefix, ".", envValue)
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLoadConfig, err)
	}

	cfg := *base
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLoadConfig, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// listKeys are comma-separated in the environment.
var listKeys = map[string]struct{}{
	"cors_origins": {},
}

// envValue maps NEBULA_SQLITE_PATH to sqlite_path and splits list values.
func envValue(key, value string) (string, any) {
	key = strings.TrimPrefix(strings.ToLower(key), strings.ToLower(envPrefix))
	if _, ok := listKeys[key]; !ok {
		return key, value
	}
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return key, out
}

// loadDotenv populates the process environment from a .env file. A missing
// default file is not an error; an explicitly named one is.
func loadDotenv() error {
	if strings.EqualFold(os.Getenv(envMode), "production") {
		return nil
	}
	path := os.Getenv(envDotenvFile)
	explicit := path != ""
	if !explicit {
		path = defaultDotenv
	}
	if err := godotenv.Load(path); err != nil {
		if !explicit && errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return err
	}
	return nil
}
