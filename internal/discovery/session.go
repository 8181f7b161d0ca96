package discovery

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/okian/scout/internal/adapters/mq/queue"
	"github.com/okian/scout/internal/domain/affiliate"
	"github.com/okian/scout/internal/domain/filter"
	"github.com/okian/scout/internal/domain/model"
	"github.com/okian/scout/pkg/logger"
	"github.com/okian/scout/pkg/metrics"
)

// State is a point-in-time view of a session.
type State struct {
	ID             string             `json:"id"`
	Filters        filter.Spec        `json:"filters"`
	PendingFilters *filter.Spec       `json:"pendingFilters,omitempty"`
	Generation     uint64             `json:"generation"`
	Rows           []affiliate.Record `json:"rows"`
	TotalCount     *int               `json:"totalCount"`
	HasMore        bool               `json:"hasMore"`
	Loading        bool               `json:"loading"`
	Error          string             `json:"error,omitempty"`
	Err            error              `json:"-"`
}

// Session is one discovery view: a filter that refreshes after a debounce
// and accumulates pages. Each refresh starts a new generation; results
// tagged with an older generation are dropped, and the older generation's
// context is cancelled so its fetch aborts.
type Session struct {
	id string
	m  *Manager

	mu          sync.Mutex
	filters     filter.Spec
	pending     *filter.Spec
	timer       *time.Timer
	debounceSeq uint64
	generation  uint64
	cancel      context.CancelFunc
	genCtx      context.Context //nolint:containedctx // per-generation context handed to fetch jobs
	rows        []affiliate.Record
	total       *int
	nextPage    int
	hasMore     bool
	inflight    bool
	err         error
	lastUsed    time.Time
	closed      bool
	changed     chan struct{}
}

func newSession(m *Manager, id string, initial filter.Spec) *Session { //nolint:gocritic // hugeParam: spec is stored by value
	return &Session{
		id:       id,
		m:        m,
		filters:  initial,
		lastUsed: m.now(),
		changed:  make(chan struct{}),
	}
}

// ID returns the session id.
func (s *Session) ID() string { return s.id }

// SetFilters schedules a refresh with spec. Edits arriving within the
// debounce delay are coalesced; only the last one is applied.
func (s *Session) SetFilters(ctx context.Context, spec *filter.Spec) error {
	if err := filter.Validate(spec); err != nil {
		return err
	}
	next := spec.Clone()

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrSessionClosed
	}
	s.lastUsed = s.m.now()
	s.pending = &next
	if s.timer != nil {
		s.timer.Stop()
	}
	s.debounceSeq++
	seq := s.debounceSeq
	if s.m.debounce <= 0 {
		s.timer = nil
		s.startGenerationLocked(ctx)
		return nil
	}
	fireCtx := context.WithoutCancel(ctx)
	s.timer = time.AfterFunc(s.m.debounce, func() { s.fire(fireCtx, seq) })
	s.broadcastLocked()
	return nil
}

func (s *Session) fire(ctx context.Context, seq uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || seq != s.debounceSeq {
		return
	}
	s.timer = nil
	s.startGenerationLocked(ctx)
}

// startGenerationLocked applies the pending filters, cancels the previous
// generation and requests page 0.
func (s *Session) startGenerationLocked(ctx context.Context) {
	if s.pending != nil {
		s.filters = *s.pending
		s.pending = nil
	}
	if s.cancel != nil {
		s.cancel()
	}
	s.generation++
	s.genCtx, s.cancel = context.WithCancel(s.m.baseCtx)
	s.rows = nil
	s.total = nil
	s.nextPage = 0
	s.hasMore = true
	s.inflight = false
	s.err = nil

	if err := s.dispatchLocked(ctx); err != nil {
		s.err = err
	}
	s.broadcastLocked()
	s.m.logger.Debug(ctx, "discovery generation started",
		logger.String("session_id", s.id),
		logger.Uint64("generation", s.generation))
}

// LoadMore requests the next page of the current generation.
func (s *Session) LoadMore(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrSessionClosed
	}
	s.lastUsed = s.m.now()
	switch {
	case s.inflight:
		return ErrBusy
	case !s.hasMore:
		return ErrNoMorePages
	}
	if err := s.dispatchLocked(ctx); err != nil {
		s.err = err
		s.broadcastLocked()
		return err
	}
	return nil
}

func (s *Session) dispatchLocked(ctx context.Context) error {
	job := model.FetchJob{
		Ctx:        s.genCtx,
		SessionID:  s.id,
		Generation: s.generation,
		Page:       s.nextPage,
		Filters:    s.filters.Clone(),
		EnqueuedAt: time.Now(),
	}
	if err := s.m.dispatch.Enqueue(ctx, job); err != nil {
		if errors.Is(err, queue.ErrFull) || errors.Is(err, queue.ErrClosed) {
			return fmt.Errorf("%w: %w", ErrBackpressure, err)
		}
		return err
	}
	s.inflight = true
	s.broadcastLocked()
	return nil
}

// deliver applies r if it belongs to the current generation.
func (s *Session) deliver(r *model.FetchResult) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || r.Generation != s.generation || r.Page != s.nextPage || !s.inflight {
		metrics.RecordStaleResult()
		return
	}
	s.inflight = false
	if r.Err != nil {
		s.err = r.Err
		s.broadcastLocked()
		return
	}
	s.rows = append(s.rows, r.Rows...)
	if r.Page == 0 {
		s.total = r.TotalCount
	}
	s.nextPage++
	s.hasMore = !r.Last(s.m.pageSize)
	s.err = nil
	s.broadcastLocked()
}

// State returns a snapshot of the session.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := State{
		ID:         s.id,
		Filters:    s.filters.Clone(),
		Generation: s.generation,
		Rows:       slices.Clone(s.rows),
		HasMore:    s.hasMore,
		Loading:    s.inflight || s.timer != nil,
		Err:        s.err,
	}
	if st.Rows == nil {
		st.Rows = []affiliate.Record{}
	}
	if s.total != nil {
		v := *s.total
		st.TotalCount = &v
	}
	if s.pending != nil {
		p := s.pending.Clone()
		st.PendingFilters = &p
	}
	if s.err != nil {
		st.Error = s.err.Error()
	}
	return st
}

// Wait blocks until no refresh is pending and no page is in flight.
func (s *Session) Wait(ctx context.Context) error {
	for {
		s.mu.Lock()
		if s.closed {
			s.mu.Unlock()
			return ErrSessionClosed
		}
		if !s.inflight && s.timer == nil {
			s.mu.Unlock()
			return nil
		}
		ch := s.changed
		s.mu.Unlock()

		select {
		case <-ch:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Close cancels any in-flight fetch and stops the session.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	if s.cancel != nil {
		s.cancel()
	}
	s.broadcastLocked()
}

func (s *Session) idleSince() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastUsed
}

func (s *Session) touch() {
	s.mu.Lock()
	s.lastUsed = s.m.now()
	s.mu.Unlock()
}

// broadcastLocked wakes every Wait caller.
func (s *Session) broadcastLocked() {
	close(s.changed)
	s.changed = make(chan struct{})
}
