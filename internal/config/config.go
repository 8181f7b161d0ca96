// Package config defines service configuration structures and loading hooks.
//
// Conventions:
// - Provide New(ctx) to build a Config with defaults.
// - Load layers a YAML file and SCOUT_* environment variables on top.
// - External errors are wrapped with this package's sentinel errors.
package config

import (
	"context"
	"runtime"
)

// Data source names accepted by DataSource.
const (
	SourceLocal     = "local"
	SourcePostgres  = "postgres"
	SourcePostgREST = "postgrest"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// LogFormat selects text or json output.
	LogFormat string `koanf:"log_format"`

	// LogFile, when set, also writes logs to a rotated file.
	LogFile string `koanf:"log_file"`

	// Addr configures the HTTP listen address, e.g. ":8080".
	Addr string `koanf:"addr"`

	// DataSource selects the discovery query strategy: local, postgres or postgrest.
	DataSource string `koanf:"data_source"`

	// PostgresDSN is the connection string for the postgres source.
	PostgresDSN string `koanf:"postgres_dsn"`

	// PostgRESTURL is the REST endpoint base, e.g. https://xyz.supabase.co/rest/v1.
	PostgRESTURL string `koanf:"postgrest_url"`

	// PostgRESTAPIKey is sent as apikey and bearer token.
	PostgRESTAPIKey string `koanf:"postgrest_api_key"`

	// PostgRESTTimeoutMS bounds a single REST request.
	PostgRESTTimeoutMS int `koanf:"postgrest_timeout_ms"`

	// PostgRESTRPS caps requests per second to the REST endpoint; 0 disables the limit.
	PostgRESTRPS float64 `koanf:"postgrest_rps"`

	// RedisURL enables the page cache when set.
	RedisURL string `koanf:"redis_url"`

	// CacheTTLSeconds is how long cached pages live.
	CacheTTLSeconds int `koanf:"cache_ttl_seconds"`

	// PageSize is the number of rows per discovery page.
	PageSize int `koanf:"page_size"`

	// DebounceMS coalesces filter edits before a refresh starts.
	DebounceMS int `koanf:"debounce_ms"`

	// QueueSize bounds the fetch job queue.
	QueueSize int `koanf:"queue_size"`

	// WorkerCount sets the number of fetch workers.
	WorkerCount int `koanf:"worker_count"`

	// MaxSessions caps concurrently open discovery sessions.
	MaxSessions int `koanf:"max_sessions"`

	// SessionIdleSeconds expires sessions that saw no activity for this long.
	SessionIdleSeconds int `koanf:"session_idle_seconds"`

	// IdempotencySize bounds remembered Idempotency-Key values.
	IdempotencySize int `koanf:"idempotency_size"`

	// SeedCount is the number of synthetic affiliates loaded when no dataset is given.
	SeedCount int `koanf:"seed_count"`

	// DatasetPath loads the local affiliate collection from a JSON file.
	DatasetPath string `koanf:"dataset_path"`

	// RegenerateCron, when set, re-evaluates dynamic segments on this schedule.
	RegenerateCron string `koanf:"regenerate_cron"`
}

// New creates a Config with defaults. Context is accepted first to satisfy
// the project-wide convention.
func New(_ context.Context) *Config {
	return &Config{
		LogLevel:           "info",
		LogFormat:          "text",
		Addr:               ":9080",
		DataSource:         SourceLocal,
		PostgRESTTimeoutMS: 10_000,
		CacheTTLSeconds:    30,
		PageSize:           50,
		DebounceMS:         400,
		QueueSize:          1_024,
		WorkerCount:        runtime.NumCPU() * 2,
		MaxSessions:        1_000,
		SessionIdleSeconds: 900,
		IdempotencySize:    10_000,
		SeedCount:          80,
	}
}
