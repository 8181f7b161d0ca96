package source

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/okian/scout/internal/adapters/cache"
	"github.com/okian/scout/internal/domain/filter"
)

type countingSource struct {
	DataSource
	calls atomic.Int32
	err   error
}

func (c *countingSource) FetchPage(ctx context.Context, spec *filter.Spec, page int) (Page, error) {
	c.calls.Add(1)
	if c.err != nil {
		return Page{}, c.err
	}
	return c.DataSource.FetchPage(ctx, spec, page)
}

func setupCached(t *testing.T) (*CachedSource, *countingSource, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := &cache.Client{Redis: redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})}
	t.Cleanup(func() { _ = client.Close() })
	inner := &countingSource{DataSource: NewLocalSource(dataset(60), WithClock(clock))}
	return NewCachedSource(inner, client, WithTTL(time.Minute)), inner, mr
}

func TestCachedSource_HitAndMiss(t *testing.T) {
	src, inner, mr := setupCached(t)
	ctx := context.Background()
	spec := filter.Default()

	first, err := src.FetchPage(ctx, &spec, 0)
	require.NoError(t, err)
	second, err := src.FetchPage(ctx, &spec, 0)
	require.NoError(t, err)

	assert.Equal(t, int32(1), inner.calls.Load())
	assert.Equal(t, len(first.Rows), len(second.Rows))
	assert.Equal(t, first.Rows[0].ID, second.Rows[0].ID)
	assert.Equal(t, *first.TotalCount, *second.TotalCount)
	assert.Len(t, mr.Keys(), 1)

	_, err = src.FetchPage(ctx, &spec, 1)
	require.NoError(t, err)
	spec.Search = "creator1"
	_, err = src.FetchPage(ctx, &spec, 0)
	require.NoError(t, err)
	assert.Equal(t, int32(3), inner.calls.Load())
}

func TestCachedSource_Expiry(t *testing.T) {
	src, inner, mr := setupCached(t)
	ctx := context.Background()
	spec := filter.Default()

	_, err := src.FetchPage(ctx, &spec, 0)
	require.NoError(t, err)
	mr.FastForward(2 * time.Minute)
	_, err = src.FetchPage(ctx, &spec, 0)
	require.NoError(t, err)
	assert.Equal(t, int32(2), inner.calls.Load())
}

func TestCachedSource_RedisDown(t *testing.T) {
	src, inner, mr := setupCached(t)
	ctx := context.Background()
	spec := filter.Default()
	mr.Close()

	p, err := src.FetchPage(ctx, &spec, 0)
	require.NoError(t, err)
	assert.NotEmpty(t, p.Rows)
	assert.Equal(t, int32(1), inner.calls.Load())
}

func TestCachedSource_ErrorsAreNotCached(t *testing.T) {
	src, inner, mr := setupCached(t)
	ctx := context.Background()
	spec := filter.Default()
	inner.err = ErrFetch

	_, err := src.FetchPage(ctx, &spec, 0)
	assert.True(t, errors.Is(err, ErrFetch))
	assert.Empty(t, mr.Keys())
}

func TestCachedSource_Invalidate(t *testing.T) {
	src, inner, mr := setupCached(t)
	ctx := context.Background()
	spec := filter.Default()
	require.NoError(t, mr.Set("unrelated", "x"))

	_, err := src.FetchPage(ctx, &spec, 0)
	require.NoError(t, err)
	require.NoError(t, src.Invalidate(ctx))
	assert.Equal(t, []string{"unrelated"}, mr.Keys())

	_, err = src.FetchPage(ctx, &spec, 0)
	require.NoError(t, err)
	assert.Equal(t, int32(2), inner.calls.Load())
	assert.Equal(t, "cached_local", src.Name())
}
