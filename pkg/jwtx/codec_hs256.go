package jwtx

import (
	"errors"

	"github.com/golang-jwt/jwt/v5"
)

// HS256Codec signs and verifies tokens with a symmetric HMAC-SHA256 key.
// This is the default for single-service deployments where nothing outside
// the gateway needs to verify tokens.
type HS256Codec struct {
	key    []byte
	issuer string
}

// NewHS256 creates a symmetric codec. The key should be derived material of
// at least 32 bytes, never a raw passphrase.
func NewHS256(issuer string, key []byte) (*HS256Codec, error) {
	if len(key) < 32 {
		return nil, errors.New("jwtx: hs256 key must be at least 32 bytes")
	}
	return &HS256Codec{key: key, issuer: issuer}, nil
}

func (c *HS256Codec) Sign(claims Claims) (string, error) {
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.key)
}

func (c *HS256Codec) Verify(tokenStr string) (Claims, error) {
	return verify(tokenStr, jwt.SigningMethodHS256.Alg(), func(t *jwt.Token) (any, error) {
		return c.key, nil
	}, c.issuer)
}
