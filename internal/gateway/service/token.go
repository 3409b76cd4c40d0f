package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/sundog-labs/authgate/internal/gateway/domain"
	"github.com/sundog-labs/authgate/internal/gateway/kv"
	"github.com/sundog-labs/authgate/pkg/idx"
	"github.com/sundog-labs/authgate/pkg/jwtx"
	"github.com/sundog-labs/authgate/pkg/slogx"
)

var ErrUnauthorized = errors.New("unauthorized")

// TokenService owns the token lifecycle: issuing pairs, validating presented
// tokens, rotating access tokens off a refresh token, and revoking pairs.
//
// A token is live only while both its signature verifies AND its allow-list
// entry exists. The codec alone never decides; the ledger alone never decides.
type TokenService struct {
	Codec      jwtx.Codec
	Ledger     *kv.Ledger
	Issuer     string
	AccessTTL  time.Duration
	RefreshTTL time.Duration
}

// IssuePair mints a fresh access/refresh pair for subject and registers both
// legs on the allow-list in one transaction. Nothing is returned unless both
// entries landed.
func (s *TokenService) IssuePair(ctx context.Context, subject string) (*domain.TokenPair, error) {
	now := time.Now().UTC()

	accessClaims := jwtx.NewClaims(subject, idx.New().String(), jwtx.KindAccess, s.Issuer, s.AccessTTL, now)
	refreshClaims := jwtx.NewClaims(subject, idx.New().String(), jwtx.KindRefresh, s.Issuer, s.RefreshTTL, now)

	accessToken, err := s.Codec.Sign(accessClaims)
	if err != nil {
		return nil, err
	}
	refreshToken, err := s.Codec.Sign(refreshClaims)
	if err != nil {
		return nil, err
	}

	err = s.Ledger.RegisterPair(ctx,
		kv.Entry{Kind: jwtx.KindAccess, TokenID: accessClaims.ID, Subject: subject, TTL: s.AccessTTL},
		kv.Entry{Kind: jwtx.KindRefresh, TokenID: refreshClaims.ID, Subject: subject, TTL: s.RefreshTTL},
	)
	if err != nil {
		return nil, err
	}

	return &domain.TokenPair{
		AccessToken:      accessToken,
		RefreshToken:     refreshToken,
		AccessExpiresIn:  s.AccessTTL,
		RefreshExpiresIn: s.RefreshTTL,
	}, nil
}

// Validate checks a presented token end to end: signature, expiry, issuer,
// and finally the allow-list. Every signature failure collapses into
// ErrUnauthorized so callers cannot probe which check tripped.
func (s *TokenService) Validate(ctx context.Context, token string) (jwtx.Claims, error) {
	claims, err := s.Codec.Verify(token)
	if err != nil {
		return jwtx.Claims{}, ErrUnauthorized
	}

	allowed, err := s.Ledger.IsAllowed(ctx, claims.Kind, claims.ID)
	if err != nil {
		return jwtx.Claims{}, err
	}
	if !allowed {
		return jwtx.Claims{}, ErrUnauthorized
	}

	return claims, nil
}

// Rotate exchanges a live refresh token for a new access token. The refresh
// token itself is untouched: it keeps its original expiry and stays on the
// allow-list, so a session's total lifetime is bounded by the refresh TTL no
// matter how often the client rotates.
func (s *TokenService) Rotate(ctx context.Context, refreshToken string) (*domain.TokenPair, error) {
	claims, err := s.Validate(ctx, refreshToken)
	if err != nil {
		return nil, err
	}
	if claims.Kind != jwtx.KindRefresh {
		return nil, ErrUnauthorized
	}

	now := time.Now().UTC()
	accessClaims := jwtx.NewClaims(claims.Subject, idx.New().String(), jwtx.KindAccess, s.Issuer, s.AccessTTL, now)

	accessToken, err := s.Codec.Sign(accessClaims)
	if err != nil {
		return nil, err
	}

	err = s.Ledger.Register(ctx, kv.Entry{
		Kind:    jwtx.KindAccess,
		TokenID: accessClaims.ID,
		Subject: claims.Subject,
		TTL:     s.AccessTTL,
	})
	if err != nil {
		return nil, err
	}

	return &domain.TokenPair{
		AccessToken:      accessToken,
		RefreshToken:     refreshToken,
		AccessExpiresIn:  s.AccessTTL,
		RefreshExpiresIn: time.Until(claims.ExpiresAt.Time),
	}, nil
}

// RevokePair pulls both legs of a pair off the allow-list. Tokens that no
// longer verify (expired, garbage, foreign issuer) have nothing live to
// revoke and are skipped, so logging out with a stale pair still succeeds.
// Store failures do surface: a logout that silently leaves tokens live would
// be worse than one the client retries.
func (s *TokenService) RevokePair(ctx context.Context, accessToken, refreshToken string) error {
	l := slogx.FromContext(ctx)

	for _, t := range []struct {
		kind  jwtx.TokenKind
		token string
	}{
		{jwtx.KindAccess, accessToken},
		{jwtx.KindRefresh, refreshToken},
	} {
		if t.token == "" {
			continue
		}
		claims, err := s.Codec.Verify(t.token)
		if err != nil {
			l.Debug("skipping revocation of unverifiable token", slog.String("kind", string(t.kind)))
			continue
		}
		if err := s.Ledger.Revoke(ctx, claims.Kind, claims.ID); err != nil {
			return err
		}
	}
	return nil
}
