package service

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/sundog-labs/authgate/internal/gateway/kv"
	"github.com/sundog-labs/authgate/pkg/cryptox"
)

// ErrInvalidState marks a callback whose state parameter is unknown, expired,
// already consumed, or tampered with. Handlers treat it as a failed login,
// never as a server error.
var ErrInvalidState = errors.New("invalid_state")

// DefaultHandshakeTTL bounds how long a login attempt may sit between the
// redirect to the provider and the callback.
const DefaultHandshakeTTL = 10 * time.Minute

// Guard protects the OAuth redirect round trip. Begin opens a login attempt
// and returns the state to send to the provider plus the nonce to embed in
// the id token request; Complete redeems the state from the callback and
// returns that nonce.
type Guard interface {
	Begin(ctx context.Context) (state, nonce string, err error)
	Complete(ctx context.Context, state string) (nonce string, err error)
}

// StoreGuard keeps handshake records in the shared key-value store. Records
// are strictly single-use: redeeming deletes atomically, so a replayed
// callback with the same state always fails.
type StoreGuard struct {
	Records *kv.Handshake
	TTL     time.Duration
}

func (g *StoreGuard) ttl() time.Duration {
	if g.TTL > 0 {
		return g.TTL
	}
	return DefaultHandshakeTTL
}

func (g *StoreGuard) Begin(ctx context.Context) (string, string, error) {
	state, err := cryptox.GenerateToken(cryptox.TokenSize128)
	if err != nil {
		return "", "", err
	}
	nonce, err := cryptox.GenerateToken(cryptox.TokenSize128)
	if err != nil {
		return "", "", err
	}
	if err := g.Records.Put(ctx, state, nonce, g.ttl()); err != nil {
		return "", "", err
	}
	return state, nonce, nil
}

func (g *StoreGuard) Complete(ctx context.Context, state string) (string, error) {
	nonce, err := g.Records.Take(ctx, state)
	if errors.Is(err, kv.ErrNotFound) {
		return "", ErrInvalidState
	}
	if err != nil {
		return "", err
	}
	return nonce, nil
}

// SealedGuard carries the handshake inside the state value itself: the state
// is "<nonce>.<expiry>.<mac>" under an HMAC key, so no server-side record is
// needed. Unlike StoreGuard it cannot make states single-use; the expiry
// window bounds replay instead. Intended for deployments that want login to
// survive a store outage.
type SealedGuard struct {
	Key []byte
	TTL time.Duration
}

func (g *SealedGuard) ttl() time.Duration {
	if g.TTL > 0 {
		return g.TTL
	}
	return DefaultHandshakeTTL
}

func (g *SealedGuard) Begin(_ context.Context) (string, string, error) {
	nonce, err := cryptox.GenerateToken(cryptox.TokenSize128)
	if err != nil {
		return "", "", err
	}

	expiry := strconv.FormatInt(time.Now().Add(g.ttl()).Unix(), 10)
	payload := nonce + "." + expiry
	state := payload + "." + base64.RawURLEncoding.EncodeToString(g.seal(payload))
	return state, nonce, nil
}

func (g *SealedGuard) Complete(_ context.Context, state string) (string, error) {
	nonce, expiry, macPart, ok := splitSealed(state)
	if !ok {
		return "", ErrInvalidState
	}

	mac, err := base64.RawURLEncoding.DecodeString(macPart)
	if err != nil {
		return "", ErrInvalidState
	}
	if !hmac.Equal(mac, g.seal(nonce+"."+expiry)) {
		return "", ErrInvalidState
	}

	exp, err := strconv.ParseInt(expiry, 10, 64)
	if err != nil || !time.Now().Before(time.Unix(exp, 0)) {
		return "", fmt.Errorf("%w: expired", ErrInvalidState)
	}

	return nonce, nil
}

func (g *SealedGuard) seal(payload string) []byte {
	mac := hmac.New(sha256.New, g.Key)
	mac.Write([]byte(payload))
	return mac.Sum(nil)
}

func splitSealed(state string) (nonce, expiry, mac string, ok bool) {
	parts := strings.Split(state, ".")
	if len(parts) != 3 || parts[0] == "" || parts[1] == "" || parts[2] == "" {
		return "", "", "", false
	}
	return parts[0], parts[1], parts[2], true
}
