package kv

import (
	"context"
	"fmt"
	"time"

	"github.com/sundog-labs/authgate/pkg/jwtx"
)

// Ledger is the token allow-list. An entry's existence means the token is
// live; deleting it revokes the token immediately even though the JWT
// signature stays valid until natural expiry. Entries carry a TTL equal to
// the token's remaining validity, so expiry cleanup is the store's eviction.
type Ledger struct {
	client *Client
}

// NewLedger creates a ledger on the shared store client.
func NewLedger(client *Client) *Ledger {
	return &Ledger{client: client}
}

func ledgerKey(kind jwtx.TokenKind, tokenID string) string {
	return fmt.Sprintf("allow:%s:%s", kind, tokenID)
}

// Entry is one allow-list registration, used for pair registration.
type Entry struct {
	Kind    jwtx.TokenKind
	TokenID string
	Subject string
	TTL     time.Duration
}

// Register stores a single entry. The TTL must match the signed expiry of the
// token it backs; the two must never drift.
func (l *Ledger) Register(ctx context.Context, e Entry) error {
	if err := l.client.rdb.Set(ctx, ledgerKey(e.Kind, e.TokenID), e.Subject, e.TTL).Err(); err != nil {
		return fmt.Errorf("kv: register %s token: %w", e.Kind, err)
	}
	return nil
}

// RegisterPair stores both legs of a token pair in one pipelined round trip
// executed as a MULTI/EXEC transaction. Either both entries land or the whole
// issue operation fails; a pair with only one leg allow-listed must never be
// handed to a caller.
func (l *Ledger) RegisterPair(ctx context.Context, entries ...Entry) error {
	pipe := l.client.rdb.TxPipeline()
	for _, e := range entries {
		pipe.Set(ctx, ledgerKey(e.Kind, e.TokenID), e.Subject, e.TTL)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("kv: register token pair: %w", err)
	}
	return nil
}

// IsAllowed reports whether the token is still on the allow-list.
func (l *Ledger) IsAllowed(ctx context.Context, kind jwtx.TokenKind, tokenID string) (bool, error) {
	n, err := l.client.rdb.Exists(ctx, ledgerKey(kind, tokenID)).Result()
	if err != nil {
		return false, fmt.Errorf("kv: check %s token: %w", kind, err)
	}
	return n == 1, nil
}

// Revoke deletes the entry. Deleting an absent key is not an error, so
// revocation is idempotent.
func (l *Ledger) Revoke(ctx context.Context, kind jwtx.TokenKind, tokenID string) error {
	if err := l.client.rdb.Del(ctx, ledgerKey(kind, tokenID)).Err(); err != nil {
		return fmt.Errorf("kv: revoke %s token: %w", kind, err)
	}
	return nil
}
