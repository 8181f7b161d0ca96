package cache

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/okian/scout/pkg/logger"
)

func init() {
	if err := logger.Init(logger.WithWriter(io.Discard)); err != nil {
		panic(err)
	}
}

func setupTestRedis(t *testing.T) (*Client, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := &Client{Redis: redis.NewClient(&redis.Options{Addr: mr.Addr()})}
	t.Cleanup(func() { _ = client.Close() })
	return client, mr
}

func TestNewClient(t *testing.T) {
	mr := miniredis.RunT(t)
	ctx := context.Background()

	c, err := NewClient(ctx, mr.Addr())
	require.NoError(t, err)
	require.NoError(t, c.Close())

	c, err = NewClient(ctx, "redis://"+mr.Addr()+"/0")
	require.NoError(t, err)
	require.NoError(t, c.Close())

	addr := mr.Addr()
	mr.Close()
	_, err = NewClient(ctx, addr)
	assert.True(t, errors.Is(err, ErrConnect))
}

func TestClient_SetGet(t *testing.T) {
	client, _ := setupTestRedis(t)
	ctx := context.Background()

	require.NoError(t, client.Set(ctx, "scout:page:1", []byte(`{"rows":[]}`), time.Minute))

	val, ok, err := client.Get(ctx, "scout:page:1")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, `{"rows":[]}`, string(val))
}

func TestClient_GetMiss(t *testing.T) {
	client, _ := setupTestRedis(t)

	val, ok, err := client.Get(context.Background(), "absent")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Nil(t, val)
}

func TestClient_Expiry(t *testing.T) {
	client, mr := setupTestRedis(t)
	ctx := context.Background()

	require.NoError(t, client.Set(ctx, "k", []byte("v"), 30*time.Second))
	ttl, err := client.TTL(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, 30*time.Second, ttl)

	mr.FastForward(31 * time.Second)
	_, ok, err := client.Get(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestClient_DeletePattern(t *testing.T) {
	client, _ := setupTestRedis(t)
	ctx := context.Background()

	for _, k := range []string{"scout:page:a", "scout:page:b", "other:c"} {
		require.NoError(t, client.Set(ctx, k, []byte("x"), time.Hour))
	}

	n, err := client.DeletePattern(ctx, "scout:page:*")
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	_, ok, err := client.Get(ctx, "other:c")
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, client.Delete(ctx, "other:c"))
	_, ok, _ = client.Get(ctx, "other:c")
	assert.False(t, ok)
}
