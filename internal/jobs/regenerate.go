// Package jobs runs scheduled maintenance over the segment store.
package jobs

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/okian/scout/internal/adapters/repository"
	"github.com/okian/scout/internal/domain/segment"
	"github.com/okian/scout/pkg/logger"
	"github.com/okian/scout/pkg/metrics"
)

// Segments is the part of the segment store the regeneration job needs.
type Segments interface {
	List(ctx context.Context) []segment.Segment
	Regenerate(ctx context.Context, id string) (segment.Segment, error)
}

// Regenerator re-evaluates every dynamic segment on a cron schedule.
type Regenerator struct {
	store    Segments
	schedule string
	log      logger.Logger

	mu   sync.Mutex
	cron *cron.Cron
}

// Option configures a Regenerator.
type Option func(*Regenerator)

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option {
	return func(r *Regenerator) {
		if l != nil {
			r.log = l
		}
	}
}

// NewRegenerator validates schedule (standard five field syntax or a
// descriptor such as @hourly) and returns a stopped job.
func NewRegenerator(store Segments, schedule string, opts ...Option) (*Regenerator, error) {
	if _, err := cron.ParseStandard(schedule); err != nil {
		return nil, fmt.Errorf("%w: %q: %w", ErrInvalidSchedule, schedule, err)
	}
	r := &Regenerator{
		store:    store,
		schedule: schedule,
		log:      logger.Get().Named("regenerate"),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// RunOnce regenerates all dynamic segments and returns how many were
// refreshed. Segments deleted while the pass runs are skipped.
func (r *Regenerator) RunOnce(ctx context.Context) (int, error) {
	start := time.Now()
	refreshed := 0
	var errs []error
	for _, seg := range r.store.List(ctx) {
		if err := ctx.Err(); err != nil {
			return refreshed, err
		}
		if seg.Type != segment.TypeDynamic {
			continue
		}
		if _, err := r.store.Regenerate(ctx, seg.ID); err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				continue
			}
			metrics.RecordErrorByComponent("regenerate", "segment")
			errs = append(errs, fmt.Errorf("segment %s: %w", seg.ID, err))
			continue
		}
		refreshed++
	}
	r.log.Info(ctx, "dynamic segments regenerated",
		logger.Int("refreshed", refreshed),
		logger.Int("failed", len(errs)),
		logger.Duration("took", time.Since(start)),
	)
	return refreshed, errors.Join(errs...)
}

// Start schedules the job. Calling Start twice is a no-op.
func (r *Regenerator) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cron != nil {
		return nil
	}
	c := cron.New(cron.WithLogger(cronLogger{log: r.log}))
	if _, err := c.AddFunc(r.schedule, func() {
		if _, err := r.RunOnce(ctx); err != nil {
			r.log.Error(ctx, "regeneration pass failed", logger.Error(err))
		}
	}); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidSchedule, err)
	}
	c.Start()
	r.cron = c
	r.log.Info(ctx, "regeneration scheduled", logger.String("schedule", r.schedule))
	return nil
}

// Stop unschedules the job and waits for a running pass to finish or ctx
// to expire.
func (r *Regenerator) Stop(ctx context.Context) error {
	r.mu.Lock()
	c := r.cron
	r.cron = nil
	r.mu.Unlock()
	if c == nil {
		return nil
	}
	select {
	case <-c.Stop().Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// cronLogger routes cron's own messages into the service logger.
type cronLogger struct {
	log logger.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.log.Debug(context.Background(), msg, pairs(keysAndValues)...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.log.Error(context.Background(), msg, append(pairs(keysAndValues), logger.Error(err))...)
}

func pairs(kv []any) []logger.Field {
	fields := make([]logger.Field, 0, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		fields = append(fields, logger.Any(fmt.Sprint(kv[i]), kv[i+1]))
	}
	return fields
}
