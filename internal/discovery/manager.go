// Package discovery runs debounced, paginated affiliate discovery sessions
// on top of the fetch queue and worker pool.
package discovery

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/okian/scout/internal/domain/filter"
	"github.com/okian/scout/internal/domain/model"
	"github.com/okian/scout/pkg/logger"
	"github.com/okian/scout/pkg/metrics"
)

// Dispatcher accepts fetch jobs without blocking.
type Dispatcher interface {
	Enqueue(ctx context.Context, j model.FetchJob) error
}

// Manager owns the live sessions and routes fetch results to them. It
// implements the worker pool's Deliverer.
type Manager struct {
	dispatch    Dispatcher
	debounce    time.Duration
	pageSize    int
	maxSessions int
	idleTimeout time.Duration
	now         func() time.Time
	newID       func() string
	logger      logger.Logger

	baseCtx  context.Context //nolint:containedctx // parent of every generation context, cancelled on Shutdown
	stop     context.CancelFunc
	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewManager creates a manager that sends fetch jobs to dispatch.
func NewManager(dispatch Dispatcher, opts ...Option) *Manager {
	m := &Manager{
		dispatch:    dispatch,
		debounce:    defaultDebounce,
		pageSize:    filter.PageSize,
		maxSessions: defaultMaxSessions,
		idleTimeout: defaultIdleTimeout,
		now:         time.Now,
		newID:       uuid.NewString,
		logger:      logger.Get().Named("discovery"),
		sessions:    make(map[string]*Session),
	}
	for _, opt := range opts {
		opt(m)
	}
	m.baseCtx, m.stop = context.WithCancel(context.Background())
	return m
}

// Create starts a session and immediately requests page 0 of initial, or of
// the default filter when initial is nil.
func (m *Manager) Create(ctx context.Context, initial *filter.Spec) (*Session, error) {
	spec := filter.Default()
	if initial != nil {
		if err := filter.Validate(initial); err != nil {
			return nil, err
		}
		spec = initial.Clone()
	}

	m.mu.Lock()
	if len(m.sessions) >= m.maxSessions {
		m.mu.Unlock()
		return nil, fmt.Errorf("%w: limit %d", ErrTooManySessions, m.maxSessions)
	}
	s := newSession(m, m.newID(), spec)
	m.sessions[s.id] = s
	n := len(m.sessions)
	m.mu.Unlock()

	metrics.UpdateSessionsActive(n)
	s.mu.Lock()
	s.startGenerationLocked(ctx)
	s.mu.Unlock()
	m.logger.Info(ctx, "discovery session created", logger.String("session_id", s.id))
	return s, nil
}

// Get returns a live session and marks it used.
func (m *Manager) Get(id string) (*Session, error) {
	m.mu.RLock()
	s, ok := m.sessions[id]
	m.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	s.touch()
	return s, nil
}

// Close stops and forgets a session.
func (m *Manager) Close(ctx context.Context, id string) error {
	m.mu.Lock()
	s, ok := m.sessions[id]
	delete(m.sessions, id)
	n := len(m.sessions)
	m.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	s.Close()
	metrics.UpdateSessionsActive(n)
	m.logger.Info(ctx, "discovery session closed", logger.String("session_id", id))
	return nil
}

// Len returns the number of live sessions.
func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// Deliver routes a fetch result to its session. Results for sessions that
// no longer exist count as stale.
func (m *Manager) Deliver(_ context.Context, r model.FetchResult) { //nolint:gocritic // hugeParam: matches worker.Deliverer
	m.mu.RLock()
	s, ok := m.sessions[r.SessionID]
	m.mu.RUnlock()
	if !ok {
		metrics.RecordStaleResult()
		return
	}
	s.deliver(&r)
}

// Sweep closes sessions unused for longer than the idle timeout and
// returns how many it closed.
func (m *Manager) Sweep(ctx context.Context) int {
	cutoff := m.now().Add(-m.idleTimeout)
	m.mu.Lock()
	var expired []*Session
	for id, s := range m.sessions {
		if s.idleSince().Before(cutoff) {
			expired = append(expired, s)
			delete(m.sessions, id)
		}
	}
	n := len(m.sessions)
	m.mu.Unlock()

	for _, s := range expired {
		s.Close()
	}
	if len(expired) > 0 {
		metrics.UpdateSessionsActive(n)
		m.logger.Info(ctx, "expired idle discovery sessions", logger.Int("count", len(expired)))
	}
	return len(expired)
}

// Run sweeps idle sessions until ctx is done.
func (m *Manager) Run(ctx context.Context) {
	ticker := time.NewTicker(max(m.idleTimeout/4, time.Second))
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.Sweep(ctx)
		}
	}
}

// Shutdown closes every session and cancels all in-flight generations.
func (m *Manager) Shutdown(ctx context.Context) {
	m.mu.Lock()
	sessions := m.sessions
	m.sessions = make(map[string]*Session)
	m.mu.Unlock()

	for _, s := range sessions {
		s.Close()
	}
	m.stop()
	metrics.UpdateSessionsActive(0)
	m.logger.Info(ctx, "discovery manager stopped", logger.Int("sessions", len(sessions)))
}
