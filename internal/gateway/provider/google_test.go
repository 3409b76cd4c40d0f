package provider

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
)

const (
	testClientID = "client-123.apps.example"
	testIssuer   = "https://accounts.example.test"
	testKid      = "key-1"
)

type jwksServer struct {
	*httptest.Server

	key      *rsa.PrivateKey
	cacheAge string
	hits     int
}

func newJWKSServer(t *testing.T) *jwksServer {
	t.Helper()

	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	s := &jwksServer{key: key}
	s.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.hits++
		if s.cacheAge != "" {
			w.Header().Set("Cache-Control", s.cacheAge)
		}
		set := jwks{Keys: []jwk{{
			Kty: "RSA",
			Alg: "RS256",
			Kid: testKid,
			N:   base64.RawURLEncoding.EncodeToString(key.N.Bytes()),
			E:   base64.RawURLEncoding.EncodeToString(big.NewInt(int64(key.E)).Bytes()),
		}}}
		require.NoError(t, json.NewEncoder(w).Encode(set))
	}))
	t.Cleanup(s.Close)
	return s
}

func (s *jwksServer) signIDToken(t *testing.T, claims idTokenClaims) string {
	t.Helper()

	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	token.Header["kid"] = testKid
	raw, err := token.SignedString(s.key)
	require.NoError(t, err)
	return raw
}

func defaultIDClaims() idTokenClaims {
	return idTokenClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    testIssuer,
			Subject:   "108201234567890",
			Audience:  jwt.ClaimStrings{testClientID},
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
		Nonce:         "nonce-abc",
		Email:         "jane@example.com",
		EmailVerified: true,
		Name:          "Jane Doe",
		Picture:       "https://example.com/jane.png",
	}
}

func newTestGoogle(t *testing.T, jwksURL string) *Google {
	t.Helper()
	return NewGoogle(GoogleConfig{
		ClientID:     testClientID,
		ClientSecret: "hush",
		RedirectURL:  "https://gateway.example.com/v1/auth/callback",
		CertsURL:     jwksURL,
		Issuers:      []string{testIssuer},
		Endpoint: oauth2.Endpoint{
			AuthURL:  testIssuer + "/authorize",
			TokenURL: testIssuer + "/token",
		},
	})
}

func TestGoogleAuthURL(t *testing.T) {
	g := newTestGoogle(t, "http://unused")

	u, err := url.Parse(g.AuthURL("state-1", "nonce-1"))
	require.NoError(t, err)

	q := u.Query()
	require.Equal(t, "state-1", q.Get("state"))
	require.Equal(t, "nonce-1", q.Get("nonce"))
	require.Equal(t, "consent", q.Get("prompt"))
	require.Equal(t, "offline", q.Get("access_type"))
	require.Equal(t, testClientID, q.Get("client_id"))
	require.Contains(t, q.Get("scope"), "openid")
}

func TestGoogleIdentity(t *testing.T) {
	srv := newJWKSServer(t)
	g := newTestGoogle(t, srv.URL)

	t.Run("valid token", func(t *testing.T) {
		raw := srv.signIDToken(t, defaultIDClaims())

		id, err := g.Identity(context.Background(), raw, "nonce-abc")
		require.NoError(t, err)
		require.Equal(t, "108201234567890", id.Subject)
		require.Equal(t, "jane@example.com", id.Email)
		require.True(t, id.EmailVerified)
		require.Equal(t, "Jane Doe", id.Name)
	})

	t.Run("nonce mismatch", func(t *testing.T) {
		raw := srv.signIDToken(t, defaultIDClaims())

		_, err := g.Identity(context.Background(), raw, "some-other-nonce")
		require.ErrorIs(t, err, ErrIDToken)
	})

	t.Run("wrong audience", func(t *testing.T) {
		claims := defaultIDClaims()
		claims.Audience = jwt.ClaimStrings{"another-client"}
		raw := srv.signIDToken(t, claims)

		_, err := g.Identity(context.Background(), raw, "nonce-abc")
		require.ErrorIs(t, err, ErrIDToken)
	})

	t.Run("wrong issuer", func(t *testing.T) {
		claims := defaultIDClaims()
		claims.Issuer = "https://evil.example.com"
		raw := srv.signIDToken(t, claims)

		_, err := g.Identity(context.Background(), raw, "nonce-abc")
		require.ErrorIs(t, err, ErrIDToken)
	})

	t.Run("expired token", func(t *testing.T) {
		claims := defaultIDClaims()
		claims.ExpiresAt = jwt.NewNumericDate(time.Now().Add(-time.Minute))
		raw := srv.signIDToken(t, claims)

		_, err := g.Identity(context.Background(), raw, "nonce-abc")
		require.ErrorIs(t, err, ErrIDToken)
	})

	t.Run("missing email", func(t *testing.T) {
		claims := defaultIDClaims()
		claims.Email = ""
		raw := srv.signIDToken(t, claims)

		_, err := g.Identity(context.Background(), raw, "nonce-abc")
		require.ErrorIs(t, err, ErrIDToken)
	})

	t.Run("wrong signing key", func(t *testing.T) {
		other, err := rsa.GenerateKey(rand.Reader, 2048)
		require.NoError(t, err)
		token := jwt.NewWithClaims(jwt.SigningMethodRS256, defaultIDClaims())
		token.Header["kid"] = testKid
		raw, err := token.SignedString(other)
		require.NoError(t, err)

		_, err = g.Identity(context.Background(), raw, "nonce-abc")
		require.ErrorIs(t, err, ErrIDToken)
	})
}

func TestGoogleExchange(t *testing.T) {
	t.Run("returns id token", func(t *testing.T) {
		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			_ = json.NewEncoder(w).Encode(map[string]any{
				"access_token": "at-1",
				"token_type":   "Bearer",
				"expires_in":   3600,
				"id_token":     "raw.id.token",
			})
		}))
		defer ts.Close()

		g := NewGoogle(GoogleConfig{
			ClientID: testClientID,
			CertsURL: "http://unused",
			Endpoint: oauth2.Endpoint{AuthURL: ts.URL + "/auth", TokenURL: ts.URL + "/token"},
		})

		raw, err := g.Exchange(context.Background(), "code-1")
		require.NoError(t, err)
		require.Equal(t, "raw.id.token", raw)
	})

	t.Run("missing id token", func(t *testing.T) {
		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			_ = json.NewEncoder(w).Encode(map[string]any{
				"access_token": "at-1",
				"token_type":   "Bearer",
			})
		}))
		defer ts.Close()

		g := NewGoogle(GoogleConfig{
			ClientID: testClientID,
			CertsURL: "http://unused",
			Endpoint: oauth2.Endpoint{AuthURL: ts.URL + "/auth", TokenURL: ts.URL + "/token"},
		})

		_, err := g.Exchange(context.Background(), "code-1")
		require.ErrorIs(t, err, ErrExchange)
	})

	t.Run("provider rejects code", func(t *testing.T) {
		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, `{"error":"invalid_grant"}`, http.StatusBadRequest)
		}))
		defer ts.Close()

		g := NewGoogle(GoogleConfig{
			ClientID: testClientID,
			CertsURL: "http://unused",
			Endpoint: oauth2.Endpoint{AuthURL: ts.URL + "/auth", TokenURL: ts.URL + "/token"},
		})

		_, err := g.Exchange(context.Background(), "bad-code")
		require.ErrorIs(t, err, ErrExchange)
	})
}

func TestRemoteKeysCaching(t *testing.T) {
	srv := newJWKSServer(t)
	srv.cacheAge = "public, max-age=3600"

	keys := newRemoteKeys(srv.URL, nil)

	_, err := keys.Get(context.Background(), testKid)
	require.NoError(t, err)
	_, err = keys.Get(context.Background(), testKid)
	require.NoError(t, err)
	require.Equal(t, 1, srv.hits, "fresh cache should not refetch")

	_, err = keys.Get(context.Background(), "unknown-kid")
	require.Error(t, err)
	require.Equal(t, 2, srv.hits, "unknown kid forces a refetch")
}

func TestCacheMaxAge(t *testing.T) {
	require.Equal(t, 300*time.Second, cacheMaxAge("public, max-age=300, must-revalidate"))
	require.Equal(t, time.Hour, cacheMaxAge(""))
	require.Equal(t, time.Hour, cacheMaxAge("no-store"))
	require.Equal(t, time.Hour, cacheMaxAge("max-age=banana"))
}
