// Package cache holds the tracker's Redis-backed lookups: offer links,
// affiliate profiles, active redirect domains and the tracking rate limiter.
package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// PoolConfig sizes the Redis connection pool. Zero values keep the defaults.
type PoolConfig struct {
	Size        int           // default 10
	MinIdle     int           // default 2
	Timeout     time.Duration // wait for a free connection, default 4s
	MaxIdleTime time.Duration // default 5m
}

// Cache wraps the Redis client used by the tracking path.
type Cache struct {
	client *redis.Client
}

// Options parses redisURL and applies the pool settings.
func Options(redisURL string, pool PoolConfig) (*redis.Options, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	opt.PoolSize = 10
	if pool.Size > 0 {
		opt.PoolSize = pool.Size
	}
	opt.MinIdleConns = 2
	if pool.MinIdle > 0 {
		opt.MinIdleConns = min(pool.MinIdle, opt.PoolSize)
	}
	opt.PoolTimeout = 4 * time.Second
	if pool.Timeout > 0 {
		opt.PoolTimeout = pool.Timeout
	}
	opt.ConnMaxIdleTime = 5 * time.Minute
	if pool.MaxIdleTime > 0 {
		opt.ConnMaxIdleTime = pool.MaxIdleTime
	}
	return opt, nil
}

// New connects to Redis and verifies the connection.
func New(ctx context.Context, redisURL string, pool PoolConfig) (*Cache, error) {
	opt, err := Options(redisURL, pool)
	if err != nil {
		return nil, err
	}

	client := redis.NewClient(opt)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to ping Redis: %w", err)
	}

	return &Cache{client: client}, nil
}

// Ping checks Redis connectivity for /readyz.
func (c *Cache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// Close closes the Redis client.
func (c *Cache) Close() error {
	return c.client.Close()
}

// Client returns the underlying client for the click stream publisher and worker.
func (c *Cache) Client() *redis.Client {
	return c.client
}
