package kv

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Handshake stores in-flight OAuth state/nonce records. One record exists per
// login attempt, bounded by a TTL so abandoned flows clean themselves up.
type Handshake struct {
	client *Client
}

// NewHandshake creates the handshake record store.
func NewHandshake(client *Client) *Handshake {
	return &Handshake{client: client}
}

func stateKey(state string) string {
	return "state:" + state
}

// Put records state -> nonce for a new login attempt.
func (h *Handshake) Put(ctx context.Context, state, nonce string, ttl time.Duration) error {
	if err := h.client.rdb.Set(ctx, stateKey(state), nonce, ttl).Err(); err != nil {
		return fmt.Errorf("kv: store handshake record: %w", err)
	}
	return nil
}

// Take returns the nonce for state and deletes the record in the same
// operation. The atomic GETDEL is what makes the record single-use: a second
// Take for the same state sees ErrNotFound even under concurrent callbacks.
func (h *Handshake) Take(ctx context.Context, state string) (string, error) {
	nonce, err := h.client.rdb.GetDel(ctx, stateKey(state)).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("kv: take handshake record: %w", err)
	}
	return nonce, nil
}
