// Package kv holds the shared key-value session store client and everything
// keyed into it: the token allow-list ledger, in-flight handshake records and
// the identity resolution lock. All liveness state lives here so every
// gateway instance sees the same truth; nothing is cached in-process.
//
// Key namespaces share one flat key space and are kept apart by fixed
// prefixes: "allow:<kind>:<tokenId>", "state:<state>" and
// "lock:auth:<provider>:<subject>".
package kv

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

var (
	// ErrNotFound reports a key that is absent, expired or already consumed.
	ErrNotFound = errors.New("kv: not found")
)

// Options configures the store connection.
type Options struct {
	Addr     string
	Password string
	DB       int
}

// Client wraps the redis connection shared by the ledger, handshake records
// and locks.
type Client struct {
	rdb *redis.Client
}

// New creates a store client. Connection and request timeouts come from
// go-redis defaults; transient failures surface to callers untouched.
func New(opts Options) *Client {
	return &Client{
		rdb: redis.NewClient(&redis.Options{
			Addr:     opts.Addr,
			Password: opts.Password,
			DB:       opts.DB,
		}),
	}
}

// NewFromRedis wraps an existing redis client, used by tests with miniredis.
func NewFromRedis(rdb *redis.Client) *Client {
	return &Client{rdb: rdb}
}

// Ping verifies the store connection is alive.
func (c *Client) Ping(ctx context.Context) error {
	if err := c.rdb.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("kv: ping: %w", err)
	}
	return nil
}

// Close releases the underlying connection pool.
func (c *Client) Close() error {
	return c.rdb.Close()
}
