// Package model contains messages passed between the discovery layers.
package model

import (
	"context"
	"time"

	"github.com/okian/scout/internal/domain/affiliate"
	"github.com/okian/scout/internal/domain/filter"
)

// FetchJob asks a worker for one page of a session's current query.
type FetchJob struct {
	// Ctx is cancelled when the generation that issued the job is superseded.
	Ctx        context.Context //nolint:containedctx // carried per generation so superseded fetches abort
	SessionID  string
	Generation uint64
	Page       int
	Filters    filter.Spec
	EnqueuedAt time.Time
}

// Context returns the job context, falling back to Background.
func (j *FetchJob) Context() context.Context {
	if j.Ctx == nil {
		return context.Background()
	}
	return j.Ctx
}

// FetchResult is a fetched page, or the error that prevented it, tagged
// with the generation that requested it.
type FetchResult struct {
	SessionID  string
	Generation uint64
	Page       int
	Rows       []affiliate.Record
	TotalCount *int
	Err        error
	Latency    time.Duration
}

// Last reports whether this page ends the result set: a short or empty page
// means no further page exists.
func (r *FetchResult) Last(pageSize int) bool {
	return len(r.Rows) == 0 || len(r.Rows) < pageSize
}
