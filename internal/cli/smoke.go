package cli

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"runtime"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/okian/scout/internal/adapters/http/api"
	service "github.com/okian/scout/internal/app"
	"github.com/okian/scout/internal/discovery"
	"github.com/okian/scout/internal/domain/affiliate"
	"github.com/okian/scout/internal/domain/filter"
	"github.com/okian/scout/internal/domain/segment"
	"github.com/okian/scout/internal/export"
	"github.com/okian/scout/pkg/logger"
)

// maxSmokePages caps how many pages the discovery check loads.
const maxSmokePages = 3

type smokeOptions struct {
	baseURL string
	workers int
	timeout time.Duration
	keep    bool
}

// smokeStats is collected while a smoke run progresses.
type smokeStats struct {
	Templates        int
	Activated        int64
	Replayed         int64
	SegmentsVerified int
	PagesLoaded      int
	Generations      uint64
	ExportBytes      int
	StartTime        time.Time
	Duration         time.Duration
}

func newSmokeCommand() *cobra.Command {
	opts := &smokeOptions{}
	cmd := &cobra.Command{
		Use:   "smoke",
		Short: "Exercise a running server end to end",
		Long: `Smoke checks a running server: it activates every template concurrently,
replays each activation with the same Idempotency-Key, verifies member
ordering, drives a discovery session through paging and a filter change,
and downloads a CSV export. Segments it created are deleted afterwards
unless --keep is set.`,
		Example: `  scoutctl smoke --url http://localhost:9080 --workers 8`,
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			stats, err := opts.run(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "smoke ok: %d templates, %d segments verified, %d pages, %s\n",
				stats.Templates, stats.SegmentsVerified, stats.PagesLoaded, stats.Duration.Round(time.Millisecond))
			return nil
		},
	}
	flags := cmd.Flags()
	flags.StringVar(&opts.baseURL, "url", "http://localhost:9080", "Base URL of the server")
	flags.IntVar(&opts.workers, "workers", runtime.NumCPU(), "Concurrent activation workers")
	flags.DurationVar(&opts.timeout, "timeout", 30*time.Second, "HTTP request timeout")
	flags.BoolVar(&opts.keep, "keep", false, "Keep the segments created by the run")
	return cmd
}

// run executes every check in order and stops at the first failure.
func (o *smokeOptions) run(ctx context.Context) (*smokeStats, error) {
	if o.workers < 1 {
		return nil, fmt.Errorf("%w: --workers must be positive", ErrUsage)
	}
	if _, err := url.ParseRequestURI(o.baseURL); err != nil {
		return nil, fmt.Errorf("%w: --url: %w", ErrUsage, err)
	}

	log := logger.Get().Named("smoke")
	client := newAPIClient(o.baseURL, o.timeout)
	stats := &smokeStats{StartTime: time.Now()}

	log.Info(ctx, "starting smoke run",
		logger.String("baseURL", o.baseURL),
		logger.Int("workers", o.workers),
		logger.Duration("timeout", o.timeout))

	if _, _, err := client.do(ctx, call{method: http.MethodGet, path: "/healthz", want: http.StatusOK}); err != nil {
		return nil, fmt.Errorf("service health check failed: %w", err)
	}
	log.Info(ctx, "service is healthy")

	var templates []segment.Template
	if _, _, err := client.do(ctx, call{method: http.MethodGet, path: "/templates", want: http.StatusOK, out: &templates}); err != nil {
		return nil, fmt.Errorf("template listing failed: %w", err)
	}
	if len(templates) == 0 {
		return nil, fmt.Errorf("%w: server lists no templates", ErrSmoke)
	}
	stats.Templates = len(templates)

	segs, err := o.activateAll(ctx, client, templates, stats)
	if !o.keep {
		defer o.cleanup(client, segs)
	}
	if err != nil {
		return nil, fmt.Errorf("template activation failed: %w", err)
	}

	for _, seg := range segs {
		if err := verifySegment(ctx, client, seg); err != nil {
			return nil, fmt.Errorf("segment verification failed: %w", err)
		}
		stats.SegmentsVerified++
	}
	log.Info(ctx, "segments verified", logger.Int("segments", stats.SegmentsVerified))

	if err := checkDiscovery(ctx, client, templates[0].FilterRules, stats); err != nil {
		return nil, fmt.Errorf("discovery check failed: %w", err)
	}
	log.Info(ctx, "discovery session verified",
		logger.Int("pages", stats.PagesLoaded),
		logger.Uint64("generation", stats.Generations))

	n, err := checkExport(ctx, client, segs[0].ID)
	if err != nil {
		return nil, fmt.Errorf("export check failed: %w", err)
	}
	stats.ExportBytes = n

	stats.Duration = time.Since(stats.StartTime)
	log.Info(ctx, "smoke run completed",
		logger.Int("templates", stats.Templates),
		logger.Int64("activated", stats.Activated),
		logger.Int64("replayed", stats.Replayed),
		logger.Int("segmentsVerified", stats.SegmentsVerified),
		logger.Int("pagesLoaded", stats.PagesLoaded),
		logger.Int("exportBytes", stats.ExportBytes),
		logger.String("duration", stats.Duration.String()))
	return stats, nil
}

// activateAll activates every template with a worker pool, then replays
// each activation under the same key. Created segments are returned in
// template order, including on failure so they can be cleaned up.
func (o *smokeOptions) activateAll(ctx context.Context, client *apiClient, templates []segment.Template, stats *smokeStats) ([]service.SegmentSummary, error) {
	results := make([]service.SegmentSummary, len(templates))
	errs := make([]error, len(templates))

	jobs := make(chan int, o.workers*2)
	var wg sync.WaitGroup
	for w := 0; w < o.workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				seg, err := activateTwice(ctx, client, templates[i].ID, stats)
				results[i], errs[i] = seg, err
			}
		}()
	}

	go func() {
		defer close(jobs)
		for i := range templates {
			select {
			case <-ctx.Done():
				return
			case jobs <- i:
			}
		}
	}()
	wg.Wait()

	created := make([]service.SegmentSummary, 0, len(results))
	for _, seg := range results {
		if seg.ID != "" {
			created = append(created, seg)
		}
	}
	if err := errors.Join(errs...); err != nil {
		return created, err
	}
	if err := ctx.Err(); err != nil {
		return created, err
	}
	return created, nil
}

func activateTwice(ctx context.Context, client *apiClient, templateID string, stats *smokeStats) (service.SegmentSummary, error) {
	key := uuid.NewString()
	req := call{
		method: http.MethodPost,
		path:   "/segments/activate",
		body:   map[string]string{"templateId": templateID},
		header: map[string]string{api.IdempotencyKeyHeader: key},
	}

	var first service.SegmentSummary
	req.want, req.out = http.StatusCreated, &first
	if _, _, err := client.do(ctx, req); err != nil {
		return service.SegmentSummary{}, err
	}
	atomic.AddInt64(&stats.Activated, 1)

	var again service.SegmentSummary
	req.want, req.out = http.StatusOK, &again
	resp, _, err := client.do(ctx, req)
	if err != nil {
		return first, err
	}
	if resp.Header.Get(api.ReplayedHeader) != "true" {
		return first, fmt.Errorf("%w: replay of %s not marked with %s", ErrSmoke, templateID, api.ReplayedHeader)
	}
	if again.ID != first.ID {
		return first, fmt.Errorf("%w: replay of %s returned segment %s, want %s", ErrSmoke, templateID, again.ID, first.ID)
	}
	atomic.AddInt64(&stats.Replayed, 1)
	return first, nil
}

// verifySegment checks that a segment's members agree with its summary and
// come back sorted by followers, largest first.
func verifySegment(ctx context.Context, client *apiClient, seg service.SegmentSummary) error {
	var detail service.SegmentDetail
	path := "/segments/" + url.PathEscape(seg.ID) + "?sort=followers&dir=desc"
	if _, _, err := client.do(ctx, call{method: http.MethodGet, path: path, want: http.StatusOK, out: &detail}); err != nil {
		return err
	}
	if detail.Type != segment.TypeDynamic {
		return fmt.Errorf("%w: segment %s has type %q", ErrSmoke, seg.ID, detail.Type)
	}
	if len(detail.Members) != detail.Summary.Count || len(detail.MemberIDs) != detail.Summary.Count {
		return fmt.Errorf("%w: segment %s lists %d members but counts %d", ErrSmoke, seg.ID, len(detail.Members), detail.Summary.Count)
	}
	for i := 1; i < len(detail.Members); i++ {
		if detail.Members[i].FollowerCount > detail.Members[i-1].FollowerCount {
			return fmt.Errorf("%w: segment %s members not sorted by followers at %d", ErrSmoke, seg.ID, i)
		}
	}
	return nil
}

// checkDiscovery opens a session, pages through it and changes its filter.
func checkDiscovery(ctx context.Context, client *apiClient, spec filter.Spec, stats *smokeStats) error {
	var st discovery.State
	if _, _, err := client.do(ctx, call{method: http.MethodPost, path: "/discover/sessions", body: spec, want: http.StatusCreated, out: &st}); err != nil {
		return err
	}
	path := "/discover/sessions/" + url.PathEscape(st.ID)
	defer func() {
		_, _, _ = client.do(context.WithoutCancel(ctx), call{method: http.MethodDelete, path: path, want: http.StatusNoContent})
	}()

	settled := func() (discovery.State, error) {
		var s discovery.State
		if _, _, err := client.do(ctx, call{method: http.MethodGet, path: path + "?wait=1", want: http.StatusOK, out: &s}); err != nil {
			return s, err
		}
		if s.Error != "" {
			return s, fmt.Errorf("%w: session %s failed: %s", ErrSmoke, s.ID, s.Error)
		}
		return s, uniqueRows(s.Rows)
	}

	st, err := settled()
	if err != nil {
		return err
	}
	stats.PagesLoaded = 1
	for stats.PagesLoaded < maxSmokePages && st.HasMore {
		before := len(st.Rows)
		if _, _, err := client.do(ctx, call{method: http.MethodPost, path: path + "/more", want: http.StatusAccepted}); err != nil {
			return err
		}
		if st, err = settled(); err != nil {
			return err
		}
		if len(st.Rows) <= before {
			return fmt.Errorf("%w: load more did not grow the session (%d rows)", ErrSmoke, before)
		}
		stats.PagesLoaded++
	}

	previous := st.Generation
	next := spec.Clone()
	next.Sort = filter.SortEngagement
	if _, _, err := client.do(ctx, call{method: http.MethodPut, path: path + "/filters", body: next, want: http.StatusAccepted}); err != nil {
		return err
	}
	if st, err = settled(); err != nil {
		return err
	}
	if st.Generation <= previous {
		return fmt.Errorf("%w: filter change kept generation %d", ErrSmoke, st.Generation)
	}
	if !slices.IsSortedFunc(st.Rows, func(a, b affiliate.Record) int {
		return filter.Compare(&a, &b, filter.SortEngagement)
	}) {
		return fmt.Errorf("%w: rows not sorted by engagement after filter change", ErrSmoke)
	}
	stats.Generations = st.Generation
	return nil
}

// checkExport downloads a CSV export and checks its header row.
func checkExport(ctx context.Context, client *apiClient, segmentID string) (int, error) {
	path := "/segments/" + url.PathEscape(segmentID) + "/export?format=csv"
	resp, body, err := client.do(ctx, call{method: http.MethodGet, path: path, want: http.StatusOK})
	if err != nil {
		return 0, err
	}
	if !strings.HasPrefix(resp.Header.Get("Content-Disposition"), "attachment") {
		return 0, fmt.Errorf("%w: export is not an attachment", ErrSmoke)
	}
	header, err := csv.NewReader(bytes.NewReader(body)).Read()
	if err != nil {
		return 0, fmt.Errorf("%w: export header: %w", ErrSmoke, err)
	}
	if !slices.Equal(header, export.Header) {
		return 0, fmt.Errorf("%w: export header %v", ErrSmoke, header)
	}
	return len(body), nil
}

func (o *smokeOptions) cleanup(client *apiClient, segs []service.SegmentSummary) {
	ctx, cancel := context.WithTimeout(context.Background(), o.timeout)
	defer cancel()
	for _, seg := range segs {
		if _, _, err := client.do(ctx, call{method: http.MethodDelete, path: "/segments/" + url.PathEscape(seg.ID), want: http.StatusNoContent}); err != nil {
			logger.Get().Warn(ctx, "failed to delete smoke segment", logger.String("segment", seg.ID), logger.Error(err))
		}
	}
}

func uniqueRows(rows []affiliate.Record) error {
	seen := make(map[string]struct{}, len(rows))
	for i := range rows {
		if _, dup := seen[rows[i].ID]; dup {
			return fmt.Errorf("%w: affiliate %s listed twice", ErrSmoke, rows[i].ID)
		}
		seen[rows[i].ID] = struct{}{}
	}
	return nil
}
