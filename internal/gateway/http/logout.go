package http

import (
	"log/slog"
	"net/http"

	"github.com/sundog-labs/authgate/internal/gateway/service"
	"github.com/sundog-labs/authgate/pkg/httpx"
	"github.com/sundog-labs/authgate/pkg/slogx"
)

// LogoutHandler serves POST /v1/auth/logout. It revokes whatever pair the
// request carries and clears the cookies. The endpoint never fails: a client
// logging out with stale or garbage tokens still ends up logged out.
type LogoutHandler struct {
	TokenService *service.TokenService
	CookieSecure bool
}

// ServeHTTP godoc
//
//	@Summary		Logout
//	@Description	Revokes the presented token pair and clears the auth cookies.
//	@Description	Always returns 200, even when the tokens are already expired or revoked.
//	@Tags			Auth
//	@Produce		json
//	@Success		200	"Logged out"
//	@Router			/v1/auth/logout [post].
func (h *LogoutHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	accessToken := cookieValue(r, AccessTokenCookie)
	refreshToken := cookieValue(r, RefreshTokenCookie)

	if err := h.TokenService.RevokePair(ctx, accessToken, refreshToken); err != nil {
		// The cookies are cleared regardless; the ledger entries will age out
		// on their own TTLs if the store was unreachable.
		log.Warn("revocation during logout failed", slog.Any("error", err))
	}

	clearTokenCookies(w, h.CookieSecure)
	httpx.NoCache(w)
	httpx.WriteJSON(w, http.StatusOK, map[string]string{"status": "logged_out"})
}
