// Package repository holds the in-memory affiliate collection and the
// segment store built on top of it.
package repository

import (
	"context"

	"github.com/okian/scout/internal/domain/affiliate"
	"github.com/okian/scout/internal/domain/filter"
	"github.com/okian/scout/internal/domain/segment"
)

// AffiliateStore provides read access to the affiliate collection.
type AffiliateStore interface {
	// All returns every record. The slice is shared and must not be modified.
	All(ctx context.Context) []affiliate.Record

	// Get returns one record or ErrNotFound.
	Get(ctx context.Context, id string) (affiliate.Record, error)

	// Resolve returns the records for ids in the given order, skipping ids
	// that are not in the collection.
	Resolve(ctx context.Context, ids []string) []affiliate.Record

	// Replace swaps the whole collection atomically.
	Replace(ctx context.Context, records []affiliate.Record) error

	// Count returns the number of records.
	Count(ctx context.Context) int
}

// SegmentStore keeps named segments. Mutations of one segment are
// serialized; unknown segment ids yield ErrNotFound from every operation.
type SegmentStore interface {
	// ActivateTemplate evaluates the template against the full collection
	// and stores the matches as a new dynamic segment.
	ActivateTemplate(ctx context.Context, t segment.Template) (segment.Segment, error)

	// CreateManual stores a hand-picked segment. Ids outside the collection are dropped.
	CreateManual(ctx context.Context, name string, ids []string) (segment.Segment, error)

	// CreateDynamic evaluates rules against the full collection and stores
	// the matches as a new dynamic segment called name.
	CreateDynamic(ctx context.Context, name string, rules *filter.Spec) (segment.Segment, error)

	Get(ctx context.Context, id string) (segment.Segment, error)

	// List returns segments in creation order.
	List(ctx context.Context) []segment.Segment

	// RemoveMembers drops ids from a segment.
	RemoveMembers(ctx context.Context, id string, ids []string) (segment.Segment, error)

	// MoveMembers moves the ids the source holds into the destination; other
	// ids are ignored.
	MoveMembers(ctx context.Context, fromID, toID string, ids []string) (from, to segment.Segment, err error)

	Delete(ctx context.Context, id string) error

	// Regenerate re-evaluates a dynamic segment's rules and replaces its snapshot.
	Regenerate(ctx context.Context, id string) (segment.Segment, error)

	Count(ctx context.Context) int
}
