// Package provider talks to external identity providers. The gateway never
// sees user credentials; it exchanges an authorization code for the
// provider's signed id token and verifies that assertion locally.
package provider

import (
	"context"
	"errors"
)

var (
	// ErrExchange reports a failed authorization-code exchange.
	ErrExchange = errors.New("provider: code exchange failed")
	// ErrIDToken reports an id token that failed signature, claim or nonce
	// verification.
	ErrIDToken = errors.New("provider: invalid id token")
)

// Identity is the verified external identity extracted from an id token.
type Identity struct {
	Subject       string
	Email         string
	EmailVerified bool
	Name          string
	Picture       string
}

// Provider is one external OAuth/OIDC identity provider.
type Provider interface {
	// Name is the stable provider key used in store keys and user rows.
	Name() string

	// AuthURL builds the provider authorization URL carrying state and nonce.
	AuthURL(state, nonce string) string

	// Exchange swaps an authorization code for the provider's raw id token.
	Exchange(ctx context.Context, code string) (string, error)

	// Identity verifies the id token (signature, issuer, audience, expiry and
	// the nonce binding it to this login attempt) and extracts the identity.
	Identity(ctx context.Context, rawIDToken, nonce string) (Identity, error)
}
