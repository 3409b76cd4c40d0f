package jwtx

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Default token TTLs for the login gateway. Short access tokens keep the
// revocation window small; the refresh token carries the session.
const (
	DefaultAccessTokenTTL  = 15 * time.Minute
	DefaultRefreshTokenTTL = 7 * 24 * time.Hour
)

// TokenKind distinguishes the two halves of an issued pair. The kind is baked
// into the signed claims and is immutable once signed.
type TokenKind string

const (
	KindAccess  TokenKind = "access"
	KindRefresh TokenKind = "refresh"
)

// Valid reports whether k is one of the known kinds.
func (k TokenKind) Valid() bool {
	return k == KindAccess || k == KindRefresh
}

// Claims are the signed token claims. The registered "jti" doubles as the
// allow-list ledger key, so it must be unique per issued token.
type Claims struct {
	jwt.RegisteredClaims

	Kind TokenKind `json:"kind"`
}

// NewClaims builds claims for one token of a pair. Expiry is always strictly
// after issuance.
func NewClaims(subject, jti string, kind TokenKind, issuer string, ttl time.Duration, now time.Time) Claims {
	return Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   subject,
			ID:        jti,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		Kind: kind,
	}
}

// validate runs the claim checks shared by every codec. Expiry uses an
// exclusive boundary: a token whose exp equals the current instant is already
// expired.
func (c *Claims) validate(issuer string, now time.Time) error {
	if !c.Kind.Valid() {
		return ErrKind
	}
	if c.Subject == "" || c.ID == "" || c.ExpiresAt == nil {
		return ErrInvalidClaims
	}
	if issuer != "" && c.Issuer != issuer {
		return ErrIssuer
	}
	if !now.Before(c.ExpiresAt.Time) {
		return ErrExpired
	}
	return nil
}
