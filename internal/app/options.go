package service

import (
	"time"

	"github.com/okian/scout/internal/adapters/source"
	"github.com/okian/scout/internal/domain/affiliate"
	"github.com/okian/scout/pkg/logger"
)

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithWorkerCount sets the number of fetch workers.
func WithWorkerCount(count int) Option {
	return func(s *Service) {
		if count > 0 {
			s.workerCount = count
		}
	}
}

// WithQueueSize sets the capacity of the fetch job queue.
func WithQueueSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.queueSize = size
		}
	}
}

// WithIdempotencySize bounds the remembered Idempotency-Key values.
func WithIdempotencySize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.idempotencySize = size
		}
	}
}

// WithPageSize sets rows per discovery page.
func WithPageSize(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.pageSize = n
		}
	}
}

// WithDebounce sets the delay that coalesces session filter edits.
func WithDebounce(d time.Duration) Option {
	return func(s *Service) {
		if d >= 0 {
			s.debounce = d
		}
	}
}

// WithMaxSessions caps live discovery sessions.
func WithMaxSessions(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.maxSessions = n
		}
	}
}

// WithSessionIdleTimeout expires sessions unused for d.
func WithSessionIdleTimeout(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.sessionIdle = d
		}
	}
}

// WithRecords sets the affiliate collection segments are evaluated against.
func WithRecords(records []affiliate.Record) Option {
	return func(s *Service) {
		s.records = records
	}
}

// WithSource overrides the discovery query strategy. Without it the service
// queries its own affiliate collection.
func WithSource(ds source.DataSource) Option {
	return func(s *Service) {
		s.base = ds
	}
}

// WithPageCache wraps the query strategy in a read-through page cache.
func WithPageCache(c source.Cache, ttl time.Duration) Option {
	return func(s *Service) {
		s.cache = c
		s.cacheTTL = ttl
	}
}

// WithRegenerateSchedule enables periodic regeneration of dynamic segments.
func WithRegenerateSchedule(spec string) Option {
	return func(s *Service) {
		s.regenerateCron = spec
	}
}

// WithCleanup registers fn to run on Stop, after every component is down.
func WithCleanup(fn func() error) Option {
	return func(s *Service) {
		if fn != nil {
			s.cleanup = append(s.cleanup, fn)
		}
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}
