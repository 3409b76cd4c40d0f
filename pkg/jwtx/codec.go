package jwtx

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrMalformed     = errors.New("jwtx: malformed token")
	ErrInvalidSig    = errors.New("jwtx: invalid signature")
	ErrExpired       = errors.New("jwtx: token expired")
	ErrIssuer        = errors.New("jwtx: issuer mismatch")
	ErrKind          = errors.New("jwtx: unknown token kind")
	ErrInvalidClaims = errors.New("jwtx: invalid claims")
)

// Codec signs and verifies token claims. Both operations are pure: no store
// access, no side effects. A verified token is cryptographically sound and
// unexpired, nothing more; callers still consult the allow-list ledger.
type Codec interface {
	Sign(c Claims) (string, error)
	Verify(token string) (Claims, error)
}

// verify parses and validates a token with the given algorithm and key
// function. Claim validation is done by us rather than the parser so the
// expiry boundary is exclusive and errors map onto our sentinels.
func verify(tokenStr, alg string, keyfunc jwt.Keyfunc, issuer string) (Claims, error) {
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{alg}),
		jwt.WithoutClaimsValidation(),
	)

	token, err := parser.ParseWithClaims(tokenStr, &Claims{}, keyfunc)
	if err != nil {
		switch {
		case errors.Is(err, jwt.ErrTokenSignatureInvalid):
			return Claims{}, ErrInvalidSig
		default:
			return Claims{}, ErrMalformed
		}
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return Claims{}, ErrInvalidClaims
	}

	if err := claims.validate(issuer, time.Now().UTC()); err != nil {
		return Claims{}, err
	}

	return *claims, nil
}
