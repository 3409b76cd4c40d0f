package provider

import (
	"context"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"math/big"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"
)

// jwk is a public key in JSON Web Key format (RFC 7517), limited to the RSA
// fields Google publishes on its certs endpoint.
type jwk struct {
	Kty string `json:"kty"`
	Use string `json:"use,omitempty"`
	Alg string `json:"alg,omitempty"`
	Kid string `json:"kid,omitempty"`

	N string `json:"n,omitempty"` // modulus (base64url)
	E string `json:"e,omitempty"` // exponent (base64url)
}

type jwks struct {
	Keys []jwk `json:"keys"`
}

// remoteKeys fetches and caches a provider's JWKS. Google rotates keys and
// signals the refresh window via Cache-Control max-age.
type remoteKeys struct {
	url    string
	client *http.Client

	mu      sync.RWMutex
	keys    map[string]*rsa.PublicKey
	staleAt time.Time
}

func newRemoteKeys(url string, client *http.Client) *remoteKeys {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &remoteKeys{url: url, client: client}
}

// Get returns the verification key for kid, refreshing the set when the cache
// is stale or the kid is unknown (a rotation we haven't seen yet).
func (r *remoteKeys) Get(ctx context.Context, kid string) (*rsa.PublicKey, error) {
	r.mu.RLock()
	key, ok := r.keys[kid]
	fresh := time.Now().Before(r.staleAt)
	r.mu.RUnlock()

	if ok && fresh {
		return key, nil
	}

	if err := r.refresh(ctx); err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()
	key, ok = r.keys[kid]
	if !ok {
		return nil, fmt.Errorf("provider: unknown signing key %q", kid)
	}
	return key, nil
}

func (r *remoteKeys) refresh(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.url, nil)
	if err != nil {
		return fmt.Errorf("provider: build jwks request: %w", err)
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return fmt.Errorf("provider: fetch jwks: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("provider: fetch jwks: unexpected status %d", resp.StatusCode)
	}

	var set jwks
	if err := json.NewDecoder(resp.Body).Decode(&set); err != nil {
		return fmt.Errorf("provider: decode jwks: %w", err)
	}

	keys := make(map[string]*rsa.PublicKey, len(set.Keys))
	for _, k := range set.Keys {
		if k.Kty != "RSA" || k.Kid == "" {
			continue
		}
		pub, err := k.rsaPublicKey()
		if err != nil {
			return err
		}
		keys[k.Kid] = pub
	}
	if len(keys) == 0 {
		return fmt.Errorf("provider: jwks contains no usable RSA keys")
	}

	r.mu.Lock()
	r.keys = keys
	r.staleAt = time.Now().Add(cacheMaxAge(resp.Header.Get("Cache-Control")))
	r.mu.Unlock()
	return nil
}

func (k jwk) rsaPublicKey() (*rsa.PublicKey, error) {
	nb, err := base64.RawURLEncoding.DecodeString(k.N)
	if err != nil {
		return nil, fmt.Errorf("provider: decode jwk modulus: %w", err)
	}
	eb, err := base64.RawURLEncoding.DecodeString(k.E)
	if err != nil {
		return nil, fmt.Errorf("provider: decode jwk exponent: %w", err)
	}
	return &rsa.PublicKey{
		N: new(big.Int).SetBytes(nb),
		E: int(new(big.Int).SetBytes(eb).Int64()),
	}, nil
}

// cacheMaxAge extracts max-age from a Cache-Control header, defaulting to an
// hour when absent or unparsable.
func cacheMaxAge(header string) time.Duration {
	const fallback = time.Hour

	for directive := range strings.SplitSeq(header, ",") {
		directive = strings.TrimSpace(directive)
		if rest, ok := strings.CutPrefix(directive, "max-age="); ok {
			secs, err := strconv.Atoi(rest)
			if err != nil || secs <= 0 {
				return fallback
			}
			return time.Duration(secs) * time.Second
		}
	}
	return fallback
}
