// Package source implements the query strategies that turn a filter into
// pages of affiliates: in-memory, Postgres, PostgREST and a Redis cache
// decorator.
package source

import (
	"context"
	"fmt"
	"time"

	"github.com/okian/scout/internal/domain/affiliate"
	"github.com/okian/scout/internal/domain/filter"
	"github.com/okian/scout/pkg/metrics"
)

// Page is one slice of a filtered, sorted result.
type Page struct {
	Rows []affiliate.Record `json:"rows"`
	// TotalCount is the size of the whole result, nil when the backend
	// could not tell.
	TotalCount *int `json:"totalCount"`
}

// DataSource fetches page index page (zero based) of the records matching spec.
type DataSource interface {
	FetchPage(ctx context.Context, spec *filter.Spec, page int) (Page, error)
	Name() string
}

// Collection is the in-memory affiliate set a LocalSource reads from.
type Collection interface {
	All(ctx context.Context) []affiliate.Record
}

func checkPage(page int) error {
	if page < 0 {
		return fmt.Errorf("%w: %d", ErrInvalidPage, page)
	}
	return nil
}

func observe(name string, start time.Time, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	metrics.RecordFetch(name, outcome, float64(time.Since(start).Microseconds())/1000)
}

func intPtr(v int) *int { return &v }
