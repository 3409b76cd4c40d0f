package provider

import (
	"context"
	"fmt"
	"net/http"
	"slices"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

const googleCertsURL = "https://www.googleapis.com/oauth2/v3/certs"

// Google's id tokens use either issuer form depending on the flow.
var googleIssuers = []string{"https://accounts.google.com", "accounts.google.com"}

// GoogleConfig carries the OAuth client registration for Google sign-in.
type GoogleConfig struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string

	// CertsURL and Endpoint override Google's real endpoints in tests.
	CertsURL string
	Endpoint oauth2.Endpoint

	// HTTPClient is used for JWKS fetches; nil means a default with timeout.
	HTTPClient *http.Client

	// Issuers overrides the accepted id token issuers in tests.
	Issuers []string
}

// Google implements Provider for Google sign-in using the OIDC
// authorization-code flow.
type Google struct {
	oauth   *oauth2.Config
	keys    *remoteKeys
	issuers []string
}

func NewGoogle(cfg GoogleConfig) *Google {
	certsURL := cfg.CertsURL
	if certsURL == "" {
		certsURL = googleCertsURL
	}
	endpoint := cfg.Endpoint
	if endpoint.AuthURL == "" {
		endpoint = google.Endpoint
	}
	issuers := cfg.Issuers
	if len(issuers) == 0 {
		issuers = googleIssuers
	}

	return &Google{
		oauth: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Endpoint:     endpoint,
			Scopes:       []string{"openid", "email", "profile"},
		},
		keys:    newRemoteKeys(certsURL, cfg.HTTPClient),
		issuers: issuers,
	}
}

func (g *Google) Name() string { return "google" }

// AuthURL builds the consent-screen URL. The nonce rides along as an extra
// parameter and comes back inside the signed id token.
func (g *Google) AuthURL(state, nonce string) string {
	return g.oauth.AuthCodeURL(state,
		oauth2.AccessTypeOffline,
		oauth2.SetAuthURLParam("nonce", nonce),
		oauth2.SetAuthURLParam("prompt", "consent"),
	)
}

// Exchange swaps the authorization code for tokens and returns the raw id
// token from the response.
func (g *Google) Exchange(ctx context.Context, code string) (string, error) {
	tok, err := g.oauth.Exchange(ctx, code)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrExchange, err)
	}

	raw, ok := tok.Extra("id_token").(string)
	if !ok || raw == "" {
		return "", fmt.Errorf("%w: response carried no id_token", ErrExchange)
	}
	return raw, nil
}

// idTokenClaims are the subset of Google's id token claims the gateway reads.
type idTokenClaims struct {
	jwt.RegisteredClaims

	Nonce         string `json:"nonce"`
	Email         string `json:"email"`
	EmailVerified bool   `json:"email_verified"`
	Name          string `json:"name"`
	Picture       string `json:"picture"`
}

// Identity verifies the id token against Google's published keys and the
// expected nonce, returning the external identity.
func (g *Google) Identity(ctx context.Context, rawIDToken, nonce string) (Identity, error) {
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodRS256.Alg()}),
		jwt.WithAudience(g.oauth.ClientID),
		jwt.WithExpirationRequired(),
	)

	token, err := parser.ParseWithClaims(rawIDToken, &idTokenClaims{}, func(t *jwt.Token) (any, error) {
		kid, _ := t.Header["kid"].(string)
		if kid == "" {
			return nil, fmt.Errorf("provider: id token missing kid")
		}
		return g.keys.Get(ctx, kid)
	})
	if err != nil {
		return Identity{}, fmt.Errorf("%w: %w", ErrIDToken, err)
	}

	claims, ok := token.Claims.(*idTokenClaims)
	if !ok || !token.Valid {
		return Identity{}, ErrIDToken
	}

	if !slices.Contains(g.issuers, claims.Issuer) {
		return Identity{}, fmt.Errorf("%w: unexpected issuer %q", ErrIDToken, claims.Issuer)
	}

	// The nonce binds this assertion to the login attempt that started it; a
	// mismatch means a replayed or spliced token.
	if claims.Nonce == "" || claims.Nonce != nonce {
		return Identity{}, fmt.Errorf("%w: nonce mismatch", ErrIDToken)
	}

	if claims.Subject == "" || claims.Email == "" {
		return Identity{}, fmt.Errorf("%w: missing required claims", ErrIDToken)
	}

	return Identity{
		Subject:       claims.Subject,
		Email:         claims.Email,
		EmailVerified: claims.EmailVerified,
		Name:          claims.Name,
		Picture:       claims.Picture,
	}, nil
}
