package repository

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/okian/scout/internal/domain/filter"
	"github.com/okian/scout/internal/domain/segment"
	"github.com/okian/scout/pkg/logger"
	"github.com/okian/scout/pkg/metrics"
)

// entry guards one segment. deleted is set under mu so a mutation that
// raced a Delete reports ErrNotFound instead of editing a dropped segment.
type entry struct {
	mu      sync.Mutex
	seg     segment.Segment
	deleted bool
}

// MemorySegmentStore is a SegmentStore kept in process memory. Each segment
// has its own lock; the map lock is held only to find or insert entries.
type MemorySegmentStore struct {
	affiliates AffiliateStore
	now        func() time.Time
	newID      func() string

	mu      sync.RWMutex
	entries map[string]*entry
	order   []string
}

// NewMemorySegmentStore creates a segment store that evaluates rules
// against affiliates.
func NewMemorySegmentStore(affiliates AffiliateStore, opts ...Option) *MemorySegmentStore {
	s := &MemorySegmentStore{
		affiliates: affiliates,
		now:        time.Now,
		newID:      uuid.NewString,
		entries:    make(map[string]*entry),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *MemorySegmentStore) ActivateTemplate(ctx context.Context, t segment.Template) (segment.Segment, error) { //nolint:gocritic // hugeParam: template is copied into the segment anyway
	rules := t.FilterRules.Clone()
	if err := filter.Validate(&rules); err != nil {
		return segment.Segment{}, fmt.Errorf("template %s: %w", t.ID, err)
	}
	seg := s.dynamic(ctx, t.Name, &rules)
	seg.TemplateID = t.ID
	s.insert(&seg)
	metrics.RecordSegmentMutation("activate")
	logger.Get().Named("segments").Info(ctx, "segment activated",
		logger.String("segment_id", seg.ID),
		logger.String("template_id", t.ID),
		logger.Int("members", len(seg.MemberIDs)))
	return seg.Clone(), nil
}

func (s *MemorySegmentStore) CreateDynamic(ctx context.Context, name string, rules *filter.Spec) (segment.Segment, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return segment.Segment{}, fmt.Errorf("%w: name is required", ErrInvalidSegment)
	}
	if err := filter.Validate(rules); err != nil {
		return segment.Segment{}, err
	}
	own := rules.Clone()
	seg := s.dynamic(ctx, name, &own)
	s.insert(&seg)
	metrics.RecordSegmentMutation("create")
	logger.Get().Named("segments").Info(ctx, "segment saved from filter",
		logger.String("segment_id", seg.ID),
		logger.Int("members", len(seg.MemberIDs)))
	return seg.Clone(), nil
}

// dynamic snapshots the matches of rules into a new, not yet stored segment.
func (s *MemorySegmentStore) dynamic(ctx context.Context, name string, rules *filter.Spec) segment.Segment {
	now := s.now()
	return segment.Segment{
		ID:          s.newID(),
		Name:        name,
		Type:        segment.TypeDynamic,
		FilterRules: rules,
		MemberIDs:   s.evaluate(ctx, rules, now),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

func (s *MemorySegmentStore) CreateManual(ctx context.Context, name string, ids []string) (segment.Segment, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return segment.Segment{}, fmt.Errorf("%w: name is required", ErrInvalidSegment)
	}
	known := make([]string, 0, len(ids))
	for _, r := range s.affiliates.Resolve(ctx, segment.Union(nil, ids)) {
		known = append(known, r.ID)
	}
	now := s.now()
	seg := segment.Segment{
		ID:        s.newID(),
		Name:      name,
		Type:      segment.TypeManual,
		MemberIDs: known,
		CreatedAt: now,
		UpdatedAt: now,
	}
	s.insert(&seg)
	metrics.RecordSegmentMutation("create")
	return seg.Clone(), nil
}

func (s *MemorySegmentStore) Get(_ context.Context, id string) (segment.Segment, error) {
	e, err := s.lookup(id)
	if err != nil {
		return segment.Segment{}, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.deleted {
		return segment.Segment{}, notFound(id)
	}
	return e.seg.Clone(), nil
}

func (s *MemorySegmentStore) List(_ context.Context) []segment.Segment {
	s.mu.RLock()
	entries := make([]*entry, 0, len(s.order))
	for _, id := range s.order {
		entries = append(entries, s.entries[id])
	}
	s.mu.RUnlock()

	out := make([]segment.Segment, 0, len(entries))
	for _, e := range entries {
		e.mu.Lock()
		if !e.deleted {
			out = append(out, e.seg.Clone())
		}
		e.mu.Unlock()
	}
	return out
}

func (s *MemorySegmentStore) RemoveMembers(_ context.Context, id string, ids []string) (segment.Segment, error) {
	e, err := s.lookup(id)
	if err != nil {
		return segment.Segment{}, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.deleted {
		return segment.Segment{}, notFound(id)
	}
	e.seg.MemberIDs = segment.Without(e.seg.MemberIDs, ids)
	e.seg.UpdatedAt = s.now()
	metrics.RecordSegmentMutation("remove")
	return e.seg.Clone(), nil
}

// MoveMembers moves the requested ids that the source segment holds. It locks
// both segments in id order so concurrent moves between the same pair cannot
// deadlock.
func (s *MemorySegmentStore) MoveMembers(_ context.Context, fromID, toID string, ids []string) (from, to segment.Segment, err error) {
	if fromID == toID {
		return segment.Segment{}, segment.Segment{}, ErrSameSegment
	}
	src, err := s.lookup(fromID)
	if err != nil {
		return segment.Segment{}, segment.Segment{}, err
	}
	dst, err := s.lookup(toID)
	if err != nil {
		return segment.Segment{}, segment.Segment{}, err
	}
	first, second := src, dst
	if toID < fromID {
		first, second = dst, src
	}
	first.mu.Lock()
	defer first.mu.Unlock()
	second.mu.Lock()
	defer second.mu.Unlock()

	if src.deleted {
		return segment.Segment{}, segment.Segment{}, notFound(fromID)
	}
	if dst.deleted {
		return segment.Segment{}, segment.Segment{}, notFound(toID)
	}
	// Only ids the source holds move; anything else is ignored.
	moved := segment.Intersect(segment.Union(nil, ids), src.seg.MemberIDs)
	now := s.now()
	src.seg.MemberIDs = segment.Without(src.seg.MemberIDs, moved)
	src.seg.UpdatedAt = now
	dst.seg.MemberIDs = segment.Union(dst.seg.MemberIDs, moved)
	dst.seg.UpdatedAt = now
	metrics.RecordSegmentMutation("move")
	return src.seg.Clone(), dst.seg.Clone(), nil
}

func (s *MemorySegmentStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	e, ok := s.entries[id]
	if !ok {
		s.mu.Unlock()
		return notFound(id)
	}
	delete(s.entries, id)
	for i, v := range s.order {
		if v == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	total := len(s.entries)
	s.mu.Unlock()

	e.mu.Lock()
	e.deleted = true
	e.mu.Unlock()

	metrics.RecordSegmentMutation("delete")
	metrics.UpdateSegmentsTotal(total)
	logger.Get().Named("segments").Info(ctx, "segment deleted", logger.String("segment_id", id))
	return nil
}

func (s *MemorySegmentStore) Regenerate(ctx context.Context, id string) (segment.Segment, error) {
	e, err := s.lookup(id)
	if err != nil {
		return segment.Segment{}, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.deleted {
		return segment.Segment{}, notFound(id)
	}
	if e.seg.Type != segment.TypeDynamic || e.seg.FilterRules == nil {
		return segment.Segment{}, fmt.Errorf("segment %s: %w", id, ErrNotDynamic)
	}
	now := s.now()
	e.seg.MemberIDs = s.evaluate(ctx, e.seg.FilterRules, now)
	e.seg.UpdatedAt = now
	metrics.RecordSegmentMutation("regenerate")
	return e.seg.Clone(), nil
}

func (s *MemorySegmentStore) Count(_ context.Context) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// evaluate returns the matching ids ordered by the rules' sort key.
func (s *MemorySegmentStore) evaluate(ctx context.Context, rules *filter.Spec, now time.Time) []string {
	matched := filter.Select(s.affiliates.All(ctx), rules, now)
	filter.SortRecords(matched, rules.Sort)
	ids := make([]string, len(matched))
	for i := range matched {
		ids[i] = matched[i].ID
	}
	return ids
}

func (s *MemorySegmentStore) insert(seg *segment.Segment) {
	s.mu.Lock()
	s.entries[seg.ID] = &entry{seg: seg.Clone()}
	s.order = append(s.order, seg.ID)
	total := len(s.entries)
	s.mu.Unlock()
	metrics.UpdateSegmentsTotal(total)
}

func (s *MemorySegmentStore) lookup(id string) (*entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entries[id]
	if !ok {
		return nil, notFound(id)
	}
	return e, nil
}

func notFound(id string) error {
	return fmt.Errorf("segment %q: %w", id, ErrNotFound)
}
