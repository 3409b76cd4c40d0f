package kv

import (
	"context"
	"fmt"
	"time"
)

// Lock is the identity resolution lock: a distributed mutex over one external
// identity, held only while creating a first-time account. The TTL bounds how
// long a crashed holder can block retries; normal paths release explicitly.
type Lock struct {
	client *Client
}

// NewLock creates the lock primitive on the shared store client.
func NewLock(client *Client) *Lock {
	return &Lock{client: client}
}

func lockKey(provider, subject string) string {
	return fmt.Sprintf("lock:auth:%s:%s", provider, subject)
}

// TryAcquire attempts an atomic set-if-not-exists. It returns false when
// another account-creation attempt for this identity is already in flight.
func (l *Lock) TryAcquire(ctx context.Context, provider, subject string, ttl time.Duration) (bool, error) {
	ok, err := l.client.rdb.SetNX(ctx, lockKey(provider, subject), "1", ttl).Result()
	if err != nil {
		return false, fmt.Errorf("kv: acquire identity lock: %w", err)
	}
	return ok, nil
}

// Release deletes the lock so a fast retry isn't blocked by the TTL.
// Releasing an unheld lock is a no-op.
func (l *Lock) Release(ctx context.Context, provider, subject string) error {
	if err := l.client.rdb.Del(ctx, lockKey(provider, subject)).Err(); err != nil {
		return fmt.Errorf("kv: release identity lock: %w", err)
	}
	return nil
}
