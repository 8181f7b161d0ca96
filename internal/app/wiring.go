package service

import (
	"context"
	"fmt"
	"time"

	"github.com/okian/scout/internal/adapters/cache"
	"github.com/okian/scout/internal/adapters/source"
	"github.com/okian/scout/internal/config"
	"github.com/okian/scout/internal/domain/affiliate"
	"github.com/okian/scout/internal/seed"
	"github.com/okian/scout/pkg/logger"
)

// FromConfig validates cfg and builds a stopped Service from it: the
// affiliate collection, the selected data source and, when redis_url is set,
// the page cache.
// Connections opened here are closed by Stop.
func FromConfig(ctx context.Context, cfg *config.Config, opts ...Option) (*Service, error) {
	log := logger.Get().Named("service")

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	records, err := LoadRecords(cfg, time.Now().UTC())
	if err != nil {
		return nil, err
	}

	options := []Option{
		WithLogger(log),
		WithRecords(records),
		WithWorkerCount(cfg.WorkerCount),
		WithQueueSize(cfg.QueueSize),
		WithIdempotencySize(cfg.IdempotencySize),
		WithPageSize(cfg.PageSize),
		WithDebounce(time.Duration(cfg.DebounceMS) * time.Millisecond),
		WithMaxSessions(cfg.MaxSessions),
		WithSessionIdleTimeout(time.Duration(cfg.SessionIdleSeconds) * time.Second),
		WithRegenerateSchedule(cfg.RegenerateCron),
	}
	var cleanup []func() error
	closeAll := func() {
		for _, fn := range cleanup {
			_ = fn()
		}
	}

	switch cfg.DataSource {
	case config.SourcePostgres:
		db, err := source.OpenPostgres(ctx, cfg.PostgresDSN)
		if err != nil {
			return nil, err
		}
		sqlDB, err := db.DB()
		if err != nil {
			return nil, fmt.Errorf("postgres handle: %w", err)
		}
		cleanup = append(cleanup, sqlDB.Close)
		options = append(options, WithSource(source.NewPostgresSource(db, source.WithPageSize(cfg.PageSize))))
	case config.SourcePostgREST:
		ds, err := source.NewPostgRESTSource(cfg.PostgRESTURL,
			source.WithPageSize(cfg.PageSize),
			source.WithAPIKey(cfg.PostgRESTAPIKey),
			source.WithTimeout(time.Duration(cfg.PostgRESTTimeoutMS)*time.Millisecond),
			source.WithRateLimit(cfg.PostgRESTRPS),
		)
		if err != nil {
			return nil, err
		}
		options = append(options, WithSource(ds))
	}

	if cfg.RedisURL != "" {
		client, err := cache.NewClient(ctx, cfg.RedisURL)
		if err != nil {
			closeAll()
			return nil, err
		}
		cleanup = append(cleanup, client.Close)
		options = append(options, WithPageCache(client, time.Duration(cfg.CacheTTLSeconds)*time.Second))
	}

	for _, fn := range cleanup {
		options = append(options, WithCleanup(fn))
	}
	log.Info(ctx, "service configured",
		logger.String("data_source", cfg.DataSource),
		logger.Bool("page_cache", cfg.RedisURL != ""),
		logger.Int("affiliates", len(records)),
	)
	return New(append(options, opts...)...), nil
}

// LoadRecords returns the affiliate collection named by cfg: the dataset
// file when dataset_path is set, the fixed demo directory when seed_count
// equals its size, otherwise seed_count generated records.
func LoadRecords(cfg *config.Config, now time.Time) ([]affiliate.Record, error) {
	switch {
	case cfg.DatasetPath != "":
		return seed.LoadFile(cfg.DatasetPath)
	case cfg.SeedCount == seed.MockCount:
		return seed.Mock(now), nil
	default:
		gc := seed.DefaultGeneratorConfig()
		gc.Now = now
		return seed.NewGenerator(gc).Generate(cfg.SeedCount), nil
	}
}
