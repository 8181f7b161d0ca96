// Package service provides the core business service that implements
// the dependencies required by the HTTP API.
package service

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"
	"time"

	"github.com/okian/scout/internal/adapters/mq/queue"
	"github.com/okian/scout/internal/adapters/mq/worker"
	"github.com/okian/scout/internal/adapters/repository"
	"github.com/okian/scout/internal/adapters/source"
	"github.com/okian/scout/internal/discovery"
	"github.com/okian/scout/internal/domain/affiliate"
	"github.com/okian/scout/internal/domain/dedupe"
	"github.com/okian/scout/internal/domain/filter"
	"github.com/okian/scout/internal/domain/scoring"
	"github.com/okian/scout/internal/jobs"
	"github.com/okian/scout/pkg/logger"
	"github.com/okian/scout/pkg/metrics"
)

const (
	defaultQueueSize       = 1_024
	defaultIdempotencySize = 10_000
	defaultDebounce        = 400 * time.Millisecond
	defaultMaxSessions     = 1_000
	defaultSessionIdle     = 15 * time.Minute
	shutdownTimeout        = 30 * time.Second
)

// Service implements the API dependencies for discovery and segments.
type Service struct {
	mu sync.RWMutex

	// Core components
	affiliates *repository.MemoryAffiliates
	segments   *repository.MemorySegmentStore
	source     source.DataSource
	queue      *queue.InMemoryQueue
	pool       *worker.Pool
	sessions   *discovery.Manager
	deduper    dedupe.Deduper
	aggregator *scoring.Aggregator
	regen      *jobs.Regenerator

	// Configuration
	records         []affiliate.Record
	base            source.DataSource
	cache           source.Cache
	cacheTTL        time.Duration
	workerCount     int
	queueSize       int
	idempotencySize int
	pageSize        int
	debounce        time.Duration
	maxSessions     int
	sessionIdle     time.Duration
	regenerateCron  string
	now             func() time.Time
	cleanup         []func() error

	// State
	started bool
	stop    context.CancelFunc

	logger logger.Logger
}

// New constructs a new Service with default configuration.
func New(opts ...Option) *Service {
	s := &Service{
		workerCount:     runtime.NumCPU() * 2,
		queueSize:       defaultQueueSize,
		idempotencySize: defaultIdempotencySize,
		pageSize:        filter.PageSize,
		debounce:        defaultDebounce,
		maxSessions:     defaultMaxSessions,
		sessionIdle:     defaultSessionIdle,
		now:             time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start builds and starts every component. Calling Start twice is a no-op.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}
	if s.logger == nil {
		s.logger = logger.Get().Named("service")
	}
	s.logger.Info(ctx, "starting scout service...")

	affiliates, err := repository.NewMemoryAffiliates(ctx, s.records)
	if err != nil {
		return fmt.Errorf("load affiliates: %w", err)
	}
	s.affiliates = affiliates
	s.segments = repository.NewMemorySegmentStore(affiliates, repository.WithClock(s.now))

	ds := s.base
	if ds == nil {
		ds = source.NewLocalSource(affiliates, source.WithPageSize(s.pageSize), source.WithClock(s.now))
	}
	if s.cache != nil {
		ds = source.NewCachedSource(ds, s.cache, source.WithPageSize(s.pageSize), source.WithTTL(s.cacheTTL))
	}
	s.source = ds

	var regen *jobs.Regenerator
	if s.regenerateCron != "" {
		regen, err = jobs.NewRegenerator(s.segments, s.regenerateCron, jobs.WithLogger(s.logger.Named("regenerate")))
		if err != nil {
			return err
		}
	}

	s.deduper = dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(s.idempotencySize))
	s.aggregator = scoring.NewAggregator(scoring.WithClock(s.now))
	s.queue = queue.NewInMemoryQueue(queue.WithCapacity(s.queueSize))
	s.sessions = discovery.NewManager(s.queue,
		discovery.WithDebounce(s.debounce),
		discovery.WithPageSize(s.pageSize),
		discovery.WithMaxSessions(s.maxSessions),
		discovery.WithIdleTimeout(s.sessionIdle),
		discovery.WithClock(s.now),
		discovery.WithLogger(s.logger.Named("discovery")),
	)

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	s.stop = cancel
	s.pool = worker.NewPool(s.workerCount, s.queue, ds, s.sessions)
	s.pool.Start(runCtx)
	go s.sessions.Run(runCtx)
	if regen != nil {
		if err := regen.Start(runCtx); err != nil {
			cancel()
			return err
		}
		s.regen = regen
	}

	s.started = true
	s.logger.Info(ctx, "scout service started",
		logger.String("source", ds.Name()),
		logger.Int("affiliates", affiliates.Count(ctx)),
		logger.Int("workers", s.workerCount),
		logger.Int("queueSize", s.queueSize),
		logger.Int("pageSize", s.pageSize),
		logger.Duration("debounce", s.debounce),
		logger.Bool("regenerate", regen != nil),
	)
	return nil
}

// Stop gracefully shuts down the service.
func (s *Service) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return nil
	}
	s.logger.Info(ctx, "stopping scout service...")

	ctx, cancel := context.WithTimeout(ctx, shutdownTimeout)
	defer cancel()

	var errs []error
	if s.regen != nil {
		errs = append(errs, s.regen.Stop(ctx))
	}
	s.sessions.Shutdown(ctx)
	errs = append(errs, s.pool.Shutdown(ctx))
	s.stop()
	for _, fn := range s.cleanup {
		errs = append(errs, fn())
	}

	s.started = false
	s.logger.Info(ctx, "scout service stopped")
	return errors.Join(errs...)
}

// running returns ErrNotStarted until Start has completed.
func (s *Service) running() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.started {
		return ErrNotStarted
	}
	return nil
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats() map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ctx := context.Background()
	stats := map[string]interface{}{
		"started":         s.started,
		"workerCount":     s.workerCount,
		"queueSize":       s.queueSize,
		"pageSize":        s.pageSize,
		"idempotencySize": s.idempotencySize,
	}

	if s.started {
		queueLen := s.queue.Len(ctx)
		stats["source"] = s.source.Name()
		stats["queueLength"] = queueLen
		stats["affiliates"] = s.affiliates.Count(ctx)
		stats["segments"] = s.segments.Count(ctx)
		stats["sessions"] = s.sessions.Len()
		stats["idempotencyKeys"] = s.deduper.Size()

		metrics.UpdateQueueSize(queueLen)
		metrics.UpdateWorkerCount(s.workerCount)
		metrics.UpdateSessionsActive(s.sessions.Len())
	}

	return stats
}

// PageSize returns the number of rows per discovery page.
func (s *Service) PageSize() int { return s.pageSize }

// ReplaceAffiliates swaps the affiliate collection and drops cached pages.
// Existing segments keep their snapshots.
func (s *Service) ReplaceAffiliates(ctx context.Context, records []affiliate.Record) error {
	if err := s.running(); err != nil {
		return err
	}
	if err := s.affiliates.Replace(ctx, records); err != nil {
		return err
	}
	if c, ok := s.source.(*source.CachedSource); ok {
		if err := c.Invalidate(ctx); err != nil {
			s.logger.Warn(ctx, "page cache invalidation failed", logger.Error(err))
		}
	}
	s.logger.Info(ctx, "affiliate collection replaced", logger.Int("count", len(records)))
	return nil
}
