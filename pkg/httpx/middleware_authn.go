package httpx

import (
	"context"
	"net/http"
	"strings"

	"github.com/sundog-labs/authgate/pkg/jwtx"
	"github.com/sundog-labs/authgate/pkg/slogx"
)

// TokenValidator is the full validation contract: signature plus allow-list.
// A token that verifies cryptographically but has no ledger entry fails here.
type TokenValidator interface {
	Validate(ctx context.Context, token string) (jwtx.Claims, error)
}

// AuthnMiddleware authenticates requests from the named access-token cookie,
// falling back to an Authorization bearer header for non-browser callers.
func AuthnMiddleware(v TokenValidator, cookieName string) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			log := slogx.FromContext(ctx)

			raw := tokenFromRequest(r, cookieName)
			if raw == "" {
				writeBearerError(w, "missing access token")
				return
			}

			claims, err := v.Validate(ctx, raw)
			if err != nil {
				log.Warn("access token rejected", "err", err)
				writeBearerError(w, "token validation failed")
				return
			}

			if claims.Kind != jwtx.KindAccess {
				writeBearerError(w, "not an access token")
				return
			}

			ctx = context.WithValue(ctx, CtxKeySubject, claims.Subject)
			ctx = context.WithValue(ctx, CtxKeyClaims, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func tokenFromRequest(r *http.Request, cookieName string) string {
	if c, err := r.Cookie(cookieName); err == nil && c.Value != "" {
		return c.Value
	}
	if authz := r.Header.Get("Authorization"); strings.HasPrefix(authz, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(authz, "Bearer"))
	}
	return ""
}

// RFC 6750-compliant error response for bearer auth.
func writeBearerError(w http.ResponseWriter, desc string) {
	w.Header().Set("WWW-Authenticate", `Bearer error="invalid_token", error_description="`+desc+`"`)
	w.WriteHeader(http.StatusUnauthorized)
}
