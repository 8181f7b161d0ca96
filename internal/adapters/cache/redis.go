// Package cache wraps the Redis client used for read-through page caching.
package cache

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/okian/scout/pkg/logger"
)

const pingTimeout = 5 * time.Second

// Client holds the Redis client.
type Client struct {
	Redis *redis.Client
}

// NewClient connects to redisURL, which may be a redis:// URL or a bare
// host:port, and pings the server before returning.
func NewClient(ctx context.Context, redisURL string) (*Client, error) {
	opts := &redis.Options{Addr: redisURL}
	if strings.HasPrefix(redisURL, "redis://") || strings.HasPrefix(redisURL, "rediss://") {
		parsed, err := redis.ParseURL(redisURL)
		if err != nil {
			return nil, fmt.Errorf("%w: parse url: %w", ErrConnect, err)
		}
		opts = parsed
	}
	c := &Client{Redis: redis.NewClient(opts)}

	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if err := c.Redis.Ping(pingCtx).Err(); err != nil {
		_ = c.Redis.Close()
		return nil, fmt.Errorf("%w: %w", ErrConnect, err)
	}
	logger.Get().Named("cache").Info(ctx, "redis connected", logger.String("addr", opts.Addr))
	return c, nil
}

// Close closes the Redis connection.
func (c *Client) Close() error {
	return c.Redis.Close()
}

// Get returns the value for key. A missing key is reported as ok=false with
// a nil error.
func (c *Client) Get(ctx context.Context, key string) (val []byte, ok bool, err error) {
	val, err = c.Redis.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return val, true, nil
}

// Set stores value under key with the given expiration.
func (c *Client) Set(ctx context.Context, key string, value []byte, expiration time.Duration) error {
	return c.Redis.Set(ctx, key, value, expiration).Err()
}

// Delete deletes keys.
func (c *Client) Delete(ctx context.Context, keys ...string) error {
	return c.Redis.Del(ctx, keys...).Err()
}

// DeletePattern deletes every key matching pattern using SCAN and returns
// how many were removed.
func (c *Client) DeletePattern(ctx context.Context, pattern string) (int, error) {
	var (
		cursor  uint64
		deleted int
	)
	for {
		keys, next, err := c.Redis.Scan(ctx, cursor, pattern, 100).Result()
		if err != nil {
			return deleted, fmt.Errorf("scan %s: %w", pattern, err)
		}
		if len(keys) > 0 {
			if err := c.Redis.Del(ctx, keys...).Err(); err != nil {
				return deleted, fmt.Errorf("delete keys: %w", err)
			}
			deleted += len(keys)
		}
		if next == 0 {
			return deleted, nil
		}
		cursor = next
	}
}

// TTL returns the remaining time to live of key.
func (c *Client) TTL(ctx context.Context, key string) (time.Duration, error) {
	return c.Redis.TTL(ctx, key).Result()
}
