// Package redis implements the store interfaces on a shared Redis
// backing store. Each store receives the shared client handle and key
// scheme explicitly; there is no package-level connection state.
package redis

import (
	"context"
	"fmt"

	goredis "github.com/redis/go-redis/v9"

	"github.com/kanna-karuppasamy/solar-site-monitoring/internal/config"
	"github.com/kanna-karuppasamy/solar-site-monitoring/internal/keys"
)

// Client wraps the Redis connection together with the key scheme that
// namespaces everything the application stores.
type Client struct {
	rdb  *goredis.Client
	keys keys.Scheme
}

// NewClient connects to Redis and verifies connectivity before returning.
func NewClient(ctx context.Context, cfg config.RedisConfig) (*Client, error) {
	rdb := goredis.NewClient(&goredis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", cfg.Addr, err)
	}

	return &Client{rdb: rdb, keys: keys.New(cfg.KeyPrefix)}, nil
}

// Wrap builds a Client around an existing connection. Used by tests to
// run the stores against an in-process server.
func Wrap(rdb *goredis.Client, keyPrefix string) *Client {
	return &Client{rdb: rdb, keys: keys.New(keyPrefix)}
}

// FlushDB erases the current database. Used by the loader to reset a
// deployment before seeding.
func (c *Client) FlushDB(ctx context.Context) error {
	return c.rdb.FlushDB(ctx).Err()
}

// Keys exposes the client's key scheme.
func (c *Client) Keys() keys.Scheme {
	return c.keys
}

// Close releases the underlying connection pool.
func (c *Client) Close() error {
	return c.rdb.Close()
}
