package source

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/okian/scout/internal/domain/affiliate"
	"github.com/okian/scout/internal/domain/filter"
)

const maxErrorBody = 512

// PostgRESTSource queries a hosted PostgREST endpoint for the affiliates
// table. gmv ordering relies on gmv_tier being an enum declared in tier order.
type PostgRESTSource struct {
	endpoint string
	cfg      settings
	limiter  *rate.Limiter
}

// NewPostgRESTSource creates a source for baseURL, the REST root
// (for example https://db.example.com/rest/v1).
func NewPostgRESTSource(baseURL string, opts ...Option) (*PostgRESTSource, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("%w: invalid postgrest url %q", ErrFetch, baseURL)
	}
	s := &PostgRESTSource{endpoint: u.String() + "/affiliates", cfg: newSettings(opts)}
	if s.cfg.rps > 0 {
		s.limiter = rate.NewLimiter(rate.Limit(s.cfg.rps), max(1, int(s.cfg.rps)))
	}
	return s, nil
}

// Name implements DataSource.
func (s *PostgRESTSource) Name() string { return "postgrest" }

// FetchPage implements DataSource. The total is read from Content-Range and
// is nil when the server reports "*".
func (s *PostgRESTSource) FetchPage(ctx context.Context, spec *filter.Spec, page int) (p Page, err error) {
	if err = checkPage(page); err != nil {
		return Page{}, err
	}
	defer func(start time.Time) { observe(s.Name(), start, err) }(time.Now())

	if s.limiter != nil {
		if err = s.limiter.Wait(ctx); err != nil {
			return Page{}, fmt.Errorf("%w: rate limit: %w", ErrFetch, err)
		}
	}
	params := s.Query(spec, page, s.cfg.now())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.endpoint+"?"+params.Encode(), http.NoBody)
	if err != nil {
		return Page{}, fmt.Errorf("%w: build request: %w", ErrFetch, err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Prefer", "count=exact")
	if s.cfg.apiKey != "" {
		req.Header.Set("apikey", s.cfg.apiKey)
		req.Header.Set("Authorization", "Bearer "+s.cfg.apiKey)
	}

	resp, err := s.cfg.client.Do(req)
	if err != nil {
		return Page{}, fmt.Errorf("%w: %w", ErrFetch, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return Page{}, fmt.Errorf("%w: status %d: %s", ErrFetch, resp.StatusCode, strings.TrimSpace(string(body)))
	}
	var rows []affiliate.Record
	if err = json.NewDecoder(resp.Body).Decode(&rows); err != nil {
		return Page{}, fmt.Errorf("%w: decode rows: %w", ErrFetch, err)
	}
	if rows == nil {
		rows = []affiliate.Record{}
	}
	return Page{Rows: rows, TotalCount: parseContentRange(resp.Header.Get("Content-Range"))}, nil
}

// Query renders spec as PostgREST query parameters for page.
func (s *PostgRESTSource) Query(spec *filter.Spec, page int, now time.Time) url.Values {
	q := url.Values{}
	q.Set("select", "*")
	if spec.Platform != filter.PlatformAll && spec.Platform != "" {
		q.Add("platform", "eq."+string(spec.Platform))
	}
	q.Add("follower_count", "gte."+strconv.FormatInt(spec.FollowerRange.Min, 10))
	q.Add("follower_count", "lte."+strconv.FormatInt(spec.FollowerRange.Max, 10))

	var groups []string
	lo := affiliate.EngagementFraction(spec.EngagementRange.Min)
	hi := formatFloat(affiliate.EngagementFraction(spec.EngagementRange.Max))
	if lo <= 0 {
		// A null rate reads as 0 and passes a zero lower bound.
		groups = append(groups, "or(engagement_rate.is.null,engagement_rate.lte."+hi+")")
	} else {
		q.Add("engagement_rate", "gte."+formatFloat(lo))
		q.Add("engagement_rate", "lte."+hi)
	}
	if len(spec.GMVTiers) > 0 {
		tiers := make([]string, len(spec.GMVTiers))
		for i, t := range spec.GMVTiers {
			tiers[i] = string(t)
		}
		q.Add("gmv_tier", "in.("+strings.Join(tiers, ",")+")")
	}
	if len(spec.Niches) > 0 {
		quoted := make([]string, len(spec.Niches))
		for i, n := range spec.Niches {
			quoted[i] = quote(n)
		}
		q.Add("niche", "ov.{"+strings.Join(quoted, ",")+"}")
	}
	if c, ok := spec.CountryFilter(); ok {
		q.Add("country", "eq."+c)
	}
	if spec.RequiresEmail() {
		q.Add("email", "not.is.null")
		q.Add("email", "neq.")
	}
	if days, ok := spec.ActiveWithinDays(); ok {
		q.Add("last_active", "gte."+filter.Cutoff(now, days).UTC().Format(time.RFC3339))
	}
	if term := filter.SearchTerm(spec.Search); term != "" {
		pattern := quote("*" + term + "*")
		groups = append(groups, "or(handle.ilike."+pattern+",full_name.ilike."+pattern+",bio.ilike."+pattern+")")
	}
	if len(groups) > 0 {
		q.Set("and", "("+strings.Join(groups, ",")+")")
	}

	o := spec.Sort.Order()
	dir := "asc"
	if o.Descending {
		dir = "desc"
	}
	q.Set("order", o.Column+"."+dir+".nullslast,id.asc")
	q.Set("limit", strconv.Itoa(s.cfg.pageSize))
	q.Set("offset", strconv.Itoa(page*s.cfg.pageSize))
	return q
}

// parseContentRange reads the total from "0-49/123" or "*/0".
func parseContentRange(h string) *int {
	i := strings.LastIndexByte(h, '/')
	if i < 0 {
		return nil
	}
	n, err := strconv.Atoi(h[i+1:])
	if err != nil || n < 0 {
		return nil
	}
	return &n
}

func formatFloat(f float64) string { return strconv.FormatFloat(f, 'f', -1, 64) }

var quoteEscaper = strings.NewReplacer(`\`, `\\`, `"`, `\"`)

// quote wraps a value for PostgREST logic trees and array literals so
// commas and parentheses in user input stay literal.
func quote(s string) string { return `"` + quoteEscaper.Replace(s) + `"` }
