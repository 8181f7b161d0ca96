package source

import (
	"net/http"
	"time"

	"github.com/okian/scout/internal/domain/filter"
)

const (
	defaultTimeout   = 10 * time.Second
	defaultCacheTTL  = 30 * time.Second
	defaultKeyPrefix = "scout:page:"
)

type settings struct {
	pageSize  int
	now       func() time.Time
	client    *http.Client
	apiKey    string
	rps       float64
	ttl       time.Duration
	keyPrefix string
}

func newSettings(opts []Option) settings {
	s := settings{
		pageSize:  filter.PageSize,
		now:       time.Now,
		client:    &http.Client{Timeout: defaultTimeout},
		ttl:       defaultCacheTTL,
		keyPrefix: defaultKeyPrefix,
	}
	for _, opt := range opts {
		opt(&s)
	}
	return s
}

// Option configures a data source. Options that do not apply to a given
// source are ignored by it.
type Option func(*settings)

// WithPageSize sets the number of rows per page.
func WithPageSize(n int) Option {
	return func(s *settings) {
		if n > 0 {
			s.pageSize = n
		}
	}
}

// WithClock sets the time source anchoring lastActiveDays windows.
func WithClock(now func() time.Time) Option {
	return func(s *settings) {
		if now != nil {
			s.now = now
		}
	}
}

// WithHTTPClient sets the client used by PostgRESTSource.
func WithHTTPClient(c *http.Client) Option {
	return func(s *settings) {
		if c != nil {
			s.client = c
		}
	}
}

// WithTimeout sets the request timeout of the default PostgREST client.
func WithTimeout(d time.Duration) Option {
	return func(s *settings) {
		if d > 0 {
			s.client = &http.Client{Timeout: d}
		}
	}
}

// WithAPIKey sets the PostgREST API key.
func WithAPIKey(key string) Option {
	return func(s *settings) { s.apiKey = key }
}

// WithRateLimit caps PostgREST requests per second. Zero disables the limit.
func WithRateLimit(rps float64) Option {
	return func(s *settings) {
		if rps >= 0 {
			s.rps = rps
		}
	}
}

// WithTTL sets how long CachedSource keeps a page.
func WithTTL(d time.Duration) Option {
	return func(s *settings) {
		if d > 0 {
			s.ttl = d
		}
	}
}

// WithKeyPrefix sets the Redis key prefix used by CachedSource.
func WithKeyPrefix(prefix string) Option {
	return func(s *settings) {
		if prefix != "" {
			s.keyPrefix = prefix
		}
	}
}
