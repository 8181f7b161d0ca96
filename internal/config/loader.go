package config

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	"github.com/robfig/cron/v3"
)

// Environment variables read by Load.
const (
	envPrefix     = "SCOUT_"
	envConfigPath = "SCOUT_CONFIG"
)

// Load builds a Config by layering defaults, optional file, and env vars.
// Order of precedence (low -> high):
//  1. defaults (New(ctx))
//  2. file (YAML) if SCOUT_CONFIG is set
//  3. env (prefix SCOUT_)
func Load(ctx context.Context) (*Config, error) {
	base := New(ctx)

	k := koanf.New(".")

	if path := os.Getenv(envConfigPath); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("%w: read %s: %w", ErrLoadConfig, path, err)
		}
	}

	// SCOUT_QUEUE_SIZE -> queue_size (flat keys, underscores preserved).
	envProvider := env.Provider(envPrefix, ".", func(s string) string {
		return strings.TrimPrefix(strings.ToLower(s), strings.ToLower(envPrefix))
	})
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("%w: environment: %w", ErrLoadConfig, err)
	}

	cfg := *base
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fmt.Errorf("%w: decode: %w", ErrLoadConfig, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks that the selected data source is usable and numeric
// settings are in range.
func (c *Config) Validate() error {
	if c.Addr == "" {
		return fmt.Errorf("%w: addr must not be empty", ErrInvalidConfig)
	}
	switch c.DataSource {
	case SourceLocal:
	case SourcePostgres:
		if c.PostgresDSN == "" {
			return fmt.Errorf("%w: postgres_dsn is required for data_source=postgres", ErrInvalidConfig)
		}
	case SourcePostgREST:
		if c.PostgRESTURL == "" {
			return fmt.Errorf("%w: postgrest_url is required for data_source=postgrest", ErrInvalidConfig)
		}
		if _, err := url.ParseRequestURI(c.PostgRESTURL); err != nil {
			return fmt.Errorf("%w: postgrest_url: %w", ErrInvalidConfig, err)
		}
	default:
		return fmt.Errorf("%w: unknown data_source %q", ErrInvalidConfig, c.DataSource)
	}
	if c.PageSize < 1 {
		return fmt.Errorf("%w: page_size must be positive", ErrInvalidConfig)
	}
	if c.SeedCount < 0 {
		return fmt.Errorf("%w: seed_count must not be negative", ErrInvalidConfig)
	}
	if c.DebounceMS < 0 {
		return fmt.Errorf("%w: debounce_ms must not be negative", ErrInvalidConfig)
	}
	if c.RegenerateCron != "" {
		if _, err := cron.ParseStandard(c.RegenerateCron); err != nil {
			return fmt.Errorf("%w: regenerate_cron: %w", ErrInvalidConfig, err)
		}
	}
	return nil
}
