package jwtx

import (
	"crypto/ed25519"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
)

// EdDSACodec signs and verifies tokens with an Ed25519 keypair. Use this when
// other services need to verify gateway tokens without the signing secret.
type EdDSACodec struct {
	key    ed25519.PrivateKey
	pub    ed25519.PublicKey
	issuer string
}

// NewEdDSA loads an Ed25519 private key from PEM bytes. The key must be in
// PKCS8 format; the public half is extracted from it.
func NewEdDSA(issuer string, pemKey []byte) (*EdDSACodec, error) {
	block, _ := pem.Decode(pemKey)
	if block == nil {
		return nil, errors.New("jwtx: invalid PEM for Ed25519 key")
	}
	if block.Type != "PRIVATE KEY" {
		return nil, fmt.Errorf("jwtx: expected PRIVATE KEY, got %q (Ed25519 requires PKCS8)", block.Type)
	}

	priv, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("jwtx: parse PKCS8: %w", err)
	}

	key, ok := priv.(ed25519.PrivateKey)
	if !ok {
		return nil, errors.New("jwtx: not an Ed25519 private key")
	}

	return &EdDSACodec{
		key:    key,
		pub:    key.Public().(ed25519.PublicKey),
		issuer: issuer,
	}, nil
}

func (c *EdDSACodec) Sign(claims Claims) (string, error) {
	return jwt.NewWithClaims(jwt.SigningMethodEdDSA, claims).SignedString(c.key)
}

func (c *EdDSACodec) Verify(tokenStr string) (Claims, error) {
	return verify(tokenStr, jwt.SigningMethodEdDSA.Alg(), func(t *jwt.Token) (any, error) {
		return c.pub, nil
	}, c.issuer)
}

// PublicKey exposes the verification key for anything that wants to publish it.
func (c *EdDSACodec) PublicKey() ed25519.PublicKey { return c.pub }
