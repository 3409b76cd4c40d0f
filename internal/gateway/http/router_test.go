package http

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/sundog-labs/authgate/internal/gateway/kv"
	"github.com/sundog-labs/authgate/internal/gateway/provider"
	"github.com/sundog-labs/authgate/internal/gateway/service"
	"github.com/sundog-labs/authgate/internal/gateway/store/drivers/sqlite"
	"github.com/sundog-labs/authgate/pkg/jwtx"
)

const testFrontend = "https://app.example.com"

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// stubProvider satisfies provider.Provider without talking to Google.
type stubProvider struct {
	identity    provider.Identity
	exchangeErr error

	issuedNonce string
}

func (p *stubProvider) Name() string { return "google" }

func (p *stubProvider) AuthURL(state, nonce string) string {
	p.issuedNonce = nonce
	return fmt.Sprintf("https://provider.test/authorize?state=%s&nonce=%s", state, nonce)
}

func (p *stubProvider) Exchange(_ context.Context, code string) (string, error) {
	if p.exchangeErr != nil {
		return "", p.exchangeErr
	}
	return "idtoken-for-" + code, nil
}

func (p *stubProvider) Identity(_ context.Context, _, nonce string) (provider.Identity, error) {
	if nonce != p.issuedNonce {
		return provider.Identity{}, provider.ErrIDToken
	}
	return p.identity, nil
}

type testEnv struct {
	router *Router
	stub   *stubProvider
	mr     *miniredis.Miniredis
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	mr := miniredis.RunT(t)
	client := kv.NewFromRedis(redis.NewClient(&redis.Options{Addr: mr.Addr()}))
	t.Cleanup(func() { _ = client.Close() })

	st, err := sqlite.NewStore(":memory:")
	require.NoError(t, err)
	require.NoError(t, st.ApplyMigrations())
	t.Cleanup(func() { _ = st.Close() })

	codec, err := jwtx.NewHS256("authgate-test", []byte("0123456789abcdef0123456789abcdef"))
	require.NoError(t, err)

	tokens := &service.TokenService{
		Codec:      codec,
		Ledger:     kv.NewLedger(client),
		Issuer:     "authgate-test",
		AccessTTL:  jwtx.DefaultAccessTokenTTL,
		RefreshTTL: jwtx.DefaultRefreshTokenTTL,
	}

	stub := &stubProvider{identity: provider.Identity{
		Subject:       "sub-12345",
		Email:         "jane@example.com",
		EmailVerified: true,
		Name:          "Jane Doe",
	}}

	login := &service.LoginService{
		Provider: stub,
		Guard:    &service.StoreGuard{Records: kv.NewHandshake(client), TTL: time.Minute},
		Users:    st.Users(),
		Locks:    kv.NewLock(client),
		Tokens:   tokens,
		LockTTL:  time.Second,
	}

	router := NewRouter("test", testFrontend, false, st, client, testLogger())
	router.LoginService = login
	router.UserService = &service.UserService{Users: st.Users(), Tokens: tokens}
	router.TokenService = tokens
	router.ApplyRoutes()

	return &testEnv{router: router, stub: stub, mr: mr}
}

func (e *testEnv) do(t *testing.T, req *http.Request) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

// runLogin drives the begin + callback redirects the way a browser would and
// returns the callback response.
func (e *testEnv) runLogin(t *testing.T) *httptest.ResponseRecorder {
	t.Helper()

	rec := e.do(t, httptest.NewRequest(http.MethodGet, "/v1/auth/google", nil))
	require.Equal(t, http.StatusFound, rec.Code)

	loc, err := url.Parse(rec.Header().Get("Location"))
	require.NoError(t, err)
	state := loc.Query().Get("state")
	require.NotEmpty(t, state)

	callback := fmt.Sprintf("/v1/auth/callback?state=%s&code=code-1", url.QueryEscape(state))
	return e.do(t, httptest.NewRequest(http.MethodGet, callback, nil))
}

func cookieByName(t *testing.T, rec *httptest.ResponseRecorder, name string) *http.Cookie {
	t.Helper()
	for _, c := range rec.Result().Cookies() {
		if c.Name == name {
			return c
		}
	}
	t.Fatalf("cookie %q not set", name)
	return nil
}

// acceptTerms completes a first login through the terms endpoint and returns
// the issued cookies.
func (e *testEnv) acceptTerms(t *testing.T, userID string) *httptest.ResponseRecorder {
	t.Helper()

	body := strings.NewReader(fmt.Sprintf(`{"user_id":%q}`, userID))
	req := httptest.NewRequest(http.MethodPost, "/v1/users/terms", body)
	req.Header.Set("Content-Type", "application/json")

	rec := e.do(t, req)
	require.Equal(t, http.StatusOK, rec.Code)
	return rec
}

// loginAndAcceptTerms runs the whole first-login flow and returns live
// access/refresh cookies.
func (e *testEnv) loginAndAcceptTerms(t *testing.T) (access, refresh *http.Cookie) {
	t.Helper()

	rec := e.runLogin(t)
	require.Equal(t, http.StatusFound, rec.Code)

	loc, err := url.Parse(rec.Header().Get("Location"))
	require.NoError(t, err)
	userID := loc.Query().Get("user_id")
	require.NotEmpty(t, userID)

	termsRec := e.acceptTerms(t, userID)
	return cookieByName(t, termsRec, AccessTokenCookie), cookieByName(t, termsRec, RefreshTokenCookie)
}

func TestLoginFlow(t *testing.T) {
	t.Run("begin redirects to the provider", func(t *testing.T) {
		e := newTestEnv(t)

		rec := e.do(t, httptest.NewRequest(http.MethodGet, "/v1/auth/google", nil))
		require.Equal(t, http.StatusFound, rec.Code)
		require.True(t, strings.HasPrefix(rec.Header().Get("Location"), "https://provider.test/authorize?"))
	})

	t.Run("first login redirects to the terms page without tokens", func(t *testing.T) {
		e := newTestEnv(t)

		rec := e.runLogin(t)
		require.Equal(t, http.StatusFound, rec.Code)
		require.True(t, strings.HasPrefix(rec.Header().Get("Location"), testFrontend+"/terms?user_id="))
		require.Empty(t, rec.Result().Cookies())
	})

	t.Run("accepting terms issues cookies", func(t *testing.T) {
		e := newTestEnv(t)

		access, refresh := e.loginAndAcceptTerms(t)
		require.NotEmpty(t, access.Value)
		require.NotEmpty(t, refresh.Value)
		require.True(t, access.HttpOnly)
		require.True(t, refresh.HttpOnly)
		require.Equal(t, refreshCookiePath, refresh.Path)
	})

	t.Run("returning user lands on the dashboard", func(t *testing.T) {
		e := newTestEnv(t)
		e.loginAndAcceptTerms(t)

		rec := e.runLogin(t)
		require.Equal(t, http.StatusFound, rec.Code)
		require.Equal(t, testFrontend+"/dashboard", rec.Header().Get("Location"))
		cookieByName(t, rec, AccessTokenCookie)
	})

	t.Run("forged state bounces back to login", func(t *testing.T) {
		e := newTestEnv(t)

		rec := e.do(t, httptest.NewRequest(http.MethodGet, "/v1/auth/callback?state=forged&code=x", nil))
		require.Equal(t, http.StatusFound, rec.Code)
		require.Equal(t, testFrontend+"/login?error=auth_failed", rec.Header().Get("Location"))
	})

	t.Run("missing parameters bounce back to login", func(t *testing.T) {
		e := newTestEnv(t)

		rec := e.do(t, httptest.NewRequest(http.MethodGet, "/v1/auth/callback", nil))
		require.Equal(t, http.StatusFound, rec.Code)
		require.Equal(t, testFrontend+"/login?error=auth_failed", rec.Header().Get("Location"))
	})
}

func TestTermsEndpoint(t *testing.T) {
	e := newTestEnv(t)

	t.Run("unknown user", func(t *testing.T) {
		body := strings.NewReader(`{"user_id":"01ARZ3NDEKTSV4RRFFQ69G5FAV"}`)
		req := httptest.NewRequest(http.MethodPost, "/v1/users/terms", body)
		req.Header.Set("Content-Type", "application/json")

		rec := e.do(t, req)
		require.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("missing user id", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/v1/users/terms", strings.NewReader(`{}`))
		req.Header.Set("Content-Type", "application/json")

		rec := e.do(t, req)
		require.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestRefreshEndpoint(t *testing.T) {
	t.Run("refresh cookie rotates the access token", func(t *testing.T) {
		e := newTestEnv(t)
		access, refresh := e.loginAndAcceptTerms(t)

		req := httptest.NewRequest(http.MethodPost, "/v1/auth/refresh", nil)
		req.AddCookie(refresh)

		rec := e.do(t, req)
		require.Equal(t, http.StatusOK, rec.Code)

		var res tokenResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
		require.NotEmpty(t, res.AccessToken)
		require.NotEqual(t, access.Value, res.AccessToken)
		require.Equal(t, "Bearer", res.TokenType)

		newAccess := cookieByName(t, rec, AccessTokenCookie)
		require.Equal(t, res.AccessToken, newAccess.Value)
	})

	t.Run("form field works without a cookie", func(t *testing.T) {
		e := newTestEnv(t)
		_, refresh := e.loginAndAcceptTerms(t)

		form := url.Values{"refresh_token": {refresh.Value}}
		req := httptest.NewRequest(http.MethodPost, "/v1/auth/refresh", strings.NewReader(form.Encode()))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

		rec := e.do(t, req)
		require.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("missing token", func(t *testing.T) {
		e := newTestEnv(t)

		rec := e.do(t, httptest.NewRequest(http.MethodPost, "/v1/auth/refresh", nil))
		require.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("access token is rejected", func(t *testing.T) {
		e := newTestEnv(t)
		access, _ := e.loginAndAcceptTerms(t)

		form := url.Values{"refresh_token": {access.Value}}
		req := httptest.NewRequest(http.MethodPost, "/v1/auth/refresh", strings.NewReader(form.Encode()))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

		rec := e.do(t, req)
		require.Equal(t, http.StatusUnauthorized, rec.Code)
	})
}

func TestLogoutEndpoint(t *testing.T) {
	t.Run("revokes the pair and clears cookies", func(t *testing.T) {
		e := newTestEnv(t)
		access, refresh := e.loginAndAcceptTerms(t)

		req := httptest.NewRequest(http.MethodPost, "/v1/auth/logout", nil)
		req.AddCookie(access)
		req.AddCookie(refresh)

		rec := e.do(t, req)
		require.Equal(t, http.StatusOK, rec.Code)

		for _, c := range rec.Result().Cookies() {
			require.Less(t, c.MaxAge, 0, "cookie %q should be cleared", c.Name)
		}

		// The revoked access token no longer authenticates.
		me := httptest.NewRequest(http.MethodGet, "/v1/users/me", nil)
		me.AddCookie(access)
		require.Equal(t, http.StatusUnauthorized, e.do(t, me).Code)

		// And the refresh token can no longer rotate.
		form := url.Values{"refresh_token": {refresh.Value}}
		rot := httptest.NewRequest(http.MethodPost, "/v1/auth/refresh", strings.NewReader(form.Encode()))
		rot.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		require.Equal(t, http.StatusUnauthorized, e.do(t, rot).Code)
	})

	t.Run("logout without tokens still succeeds", func(t *testing.T) {
		e := newTestEnv(t)

		rec := e.do(t, httptest.NewRequest(http.MethodPost, "/v1/auth/logout", nil))
		require.Equal(t, http.StatusOK, rec.Code)
	})
}

func TestProfileEndpoint(t *testing.T) {
	t.Run("cookie authentication", func(t *testing.T) {
		e := newTestEnv(t)
		access, _ := e.loginAndAcceptTerms(t)

		req := httptest.NewRequest(http.MethodGet, "/v1/users/me", nil)
		req.AddCookie(access)

		rec := e.do(t, req)
		require.Equal(t, http.StatusOK, rec.Code)

		var res profileResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
		require.Equal(t, "jane@example.com", res.Email)
		require.Equal(t, "google", res.Provider)
		require.True(t, res.TermsAgreed)
	})

	t.Run("bearer authentication", func(t *testing.T) {
		e := newTestEnv(t)
		access, _ := e.loginAndAcceptTerms(t)

		req := httptest.NewRequest(http.MethodGet, "/v1/users/me", nil)
		req.Header.Set("Authorization", "Bearer "+access.Value)

		require.Equal(t, http.StatusOK, e.do(t, req).Code)
	})

	t.Run("refresh token cannot authenticate", func(t *testing.T) {
		e := newTestEnv(t)
		_, refresh := e.loginAndAcceptTerms(t)

		req := httptest.NewRequest(http.MethodGet, "/v1/users/me", nil)
		req.Header.Set("Authorization", "Bearer "+refresh.Value)

		require.Equal(t, http.StatusUnauthorized, e.do(t, req).Code)
	})

	t.Run("unauthenticated", func(t *testing.T) {
		e := newTestEnv(t)

		require.Equal(t, http.StatusUnauthorized,
			e.do(t, httptest.NewRequest(http.MethodGet, "/v1/users/me", nil)).Code)
	})
}

func TestHealthEndpoints(t *testing.T) {
	e := newTestEnv(t)

	t.Run("livez", func(t *testing.T) {
		rec := e.do(t, httptest.NewRequest(http.MethodGet, "/livez", nil))
		require.Equal(t, http.StatusOK, rec.Code)

		var res healthResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
		require.Equal(t, "ok", res.Status)
		require.Equal(t, "test", res.Version)
	})

	t.Run("readyz", func(t *testing.T) {
		rec := e.do(t, httptest.NewRequest(http.MethodGet, "/readyz", nil))
		require.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("readyz reports a down kv store", func(t *testing.T) {
		e.mr.Close()

		rec := e.do(t, httptest.NewRequest(http.MethodGet, "/readyz", nil))
		require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	})
}
