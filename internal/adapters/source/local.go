package source

import (
	"context"
	"time"

	"github.com/okian/scout/internal/domain/filter"
)

// LocalSource filters, sorts and slices an in-memory collection. Its total
// count is always known.
type LocalSource struct {
	records Collection
	cfg     settings
}

// NewLocalSource creates a source over records.
func NewLocalSource(records Collection, opts ...Option) *LocalSource {
	return &LocalSource{records: records, cfg: newSettings(opts)}
}

// Name implements DataSource.
func (s *LocalSource) Name() string { return "local" }

// FetchPage implements DataSource.
func (s *LocalSource) FetchPage(ctx context.Context, spec *filter.Spec, page int) (p Page, err error) {
	if err = checkPage(page); err != nil {
		return Page{}, err
	}
	defer func(start time.Time) { observe(s.Name(), start, err) }(time.Now())

	matched := filter.Select(s.records.All(ctx), spec, s.cfg.now())
	filter.SortRecords(matched, spec.Sort)

	from := min(page*s.cfg.pageSize, len(matched))
	to := min(from+s.cfg.pageSize, len(matched))
	return Page{Rows: matched[from:to], TotalCount: intPtr(len(matched))}, nil
}
