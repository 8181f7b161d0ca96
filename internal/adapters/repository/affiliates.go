package repository

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/okian/scout/internal/domain/affiliate"
	"github.com/okian/scout/pkg/metrics"
)

// collection is an immutable view of the affiliates; Replace publishes a new one.
type collection struct {
	records []affiliate.Record
	byID    map[string]int
}

// MemoryAffiliates is an AffiliateStore over an atomically swapped snapshot,
// so readers never block and always see a consistent collection.
type MemoryAffiliates struct {
	current atomic.Pointer[collection]
}

// NewMemoryAffiliates creates a store holding records.
func NewMemoryAffiliates(ctx context.Context, records []affiliate.Record) (*MemoryAffiliates, error) {
	s := &MemoryAffiliates{}
	if err := s.Replace(ctx, records); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *MemoryAffiliates) load() *collection {
	if c := s.current.Load(); c != nil {
		return c
	}
	return &collection{}
}

func (s *MemoryAffiliates) All(_ context.Context) []affiliate.Record {
	return s.load().records
}

func (s *MemoryAffiliates) Get(_ context.Context, id string) (affiliate.Record, error) {
	c := s.load()
	i, ok := c.byID[id]
	if !ok {
		return affiliate.Record{}, fmt.Errorf("affiliate %q: %w", id, ErrNotFound)
	}
	return c.records[i], nil
}

func (s *MemoryAffiliates) Resolve(_ context.Context, ids []string) []affiliate.Record {
	c := s.load()
	out := make([]affiliate.Record, 0, len(ids))
	for _, id := range ids {
		if i, ok := c.byID[id]; ok {
			out = append(out, c.records[i])
		}
	}
	return out
}

// Replace validates id uniqueness and publishes a copy of records.
func (s *MemoryAffiliates) Replace(_ context.Context, records []affiliate.Record) error {
	c := &collection{
		records: make([]affiliate.Record, len(records)),
		byID:    make(map[string]int, len(records)),
	}
	copy(c.records, records)
	for i := range c.records {
		id := c.records[i].ID
		if _, dup := c.byID[id]; dup {
			return fmt.Errorf("%w: %s", ErrDuplicateID, id)
		}
		c.byID[id] = i
	}
	s.current.Store(c)
	metrics.UpdateAffiliatesTotal(len(c.records))
	return nil
}

func (s *MemoryAffiliates) Count(_ context.Context) int {
	return len(s.load().records)
}
