package source

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"strconv"
	"time"

	"github.com/okian/scout/internal/domain/filter"
	"github.com/okian/scout/pkg/logger"
	"github.com/okian/scout/pkg/metrics"
)

// Cache is the key/value store behind CachedSource.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, expiration time.Duration) error
	DeletePattern(ctx context.Context, pattern string) (int, error)
}

// CachedSource is a read-through cache in front of another source. Cache
// failures are logged and fall back to the wrapped source.
type CachedSource struct {
	next  DataSource
	cache Cache
	cfg   settings
}

// NewCachedSource wraps next with cache.
func NewCachedSource(next DataSource, cache Cache, opts ...Option) *CachedSource {
	return &CachedSource{next: next, cache: cache, cfg: newSettings(opts)}
}

// Name implements DataSource.
func (s *CachedSource) Name() string { return "cached_" + s.next.Name() }

// FetchPage implements DataSource.
func (s *CachedSource) FetchPage(ctx context.Context, spec *filter.Spec, page int) (Page, error) {
	if err := checkPage(page); err != nil {
		return Page{}, err
	}
	log := logger.Get().Named("source.cache")
	key, err := s.key(spec, page)
	if err != nil {
		log.Warn(ctx, "cache key failed", logger.Error(err))
		return s.next.FetchPage(ctx, spec, page)
	}

	raw, ok, err := s.cache.Get(ctx, key)
	switch {
	case err != nil:
		metrics.RecordCacheResult("error")
		log.Warn(ctx, "cache read failed", logger.String("key", key), logger.Error(err))
	case ok:
		var p Page
		if err := json.Unmarshal(raw, &p); err == nil {
			metrics.RecordCacheResult("hit")
			return p, nil
		}
		metrics.RecordCacheResult("error")
		log.Warn(ctx, "cached page undecodable", logger.String("key", key))
	default:
		metrics.RecordCacheResult("miss")
	}

	p, err := s.next.FetchPage(ctx, spec, page)
	if err != nil {
		return Page{}, err
	}
	if raw, err := json.Marshal(p); err == nil {
		if err := s.cache.Set(ctx, key, raw, s.cfg.ttl); err != nil {
			log.Warn(ctx, "cache write failed", logger.String("key", key), logger.Error(err))
		}
	}
	return p, nil
}

// Invalidate drops every cached page, used after the collection is replaced.
func (s *CachedSource) Invalidate(ctx context.Context) error {
	n, err := s.cache.DeletePattern(ctx, s.cfg.keyPrefix+"*")
	if err != nil {
		return err
	}
	logger.Get().Named("source.cache").Info(ctx, "cache invalidated", logger.Int("keys", n))
	return nil
}

// key hashes the wrapped source, the spec, the page size and the page index.
func (s *CachedSource) key(spec *filter.Spec, page int) (string, error) {
	b, err := json.Marshal(spec)
	if err != nil {
		return "", err
	}
	h := sha256.New()
	h.Write([]byte(s.next.Name()))
	h.Write([]byte{0})
	h.Write(b)
	h.Write([]byte{0})
	h.Write([]byte(strconv.Itoa(s.cfg.pageSize)))
	return s.cfg.keyPrefix + hex.EncodeToString(h.Sum(nil)) + ":" + strconv.Itoa(page), nil
}
