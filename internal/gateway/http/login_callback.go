package http

import (
	"errors"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/sundog-labs/authgate/internal/gateway/service"
	"github.com/sundog-labs/authgate/pkg/slogx"
)

// LoginCallbackHandler serves GET /v1/auth/callback, the provider's redirect
// target. Every outcome is a redirect back to the frontend: the browser is
// mid-navigation here, not making an API call.
type LoginCallbackHandler struct {
	LoginService *service.LoginService
	FrontendURL  string
	CookieSecure bool
}

// ServeHTTP godoc
//
//	@Summary		Google Sign-In Callback
//	@Description	Finishes a login attempt: redeems the state, exchanges the code, and resolves
//	@Description	the account. On success the token pair is set as httpOnly cookies and the
//	@Description	browser is redirected to the frontend. First-time users are redirected to the
//	@Description	terms page before any tokens are issued.
//	@Tags			Auth
//	@Param			state	query	string	true	"Opaque state issued at login start"
//	@Param			code	query	string	true	"Authorization code from the provider"
//	@Success		302		"Redirect to the frontend dashboard, terms page, or login page with an error"
//	@Router			/v1/auth/callback [get].
func (h *LoginCallbackHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	state := r.URL.Query().Get("state")
	code := r.URL.Query().Get("code")
	if state == "" || code == "" {
		http.Redirect(w, r, h.FrontendURL+"/login?error=auth_failed", http.StatusFound)
		return
	}

	res, err := h.LoginService.HandleCallback(ctx, state, code)
	switch {
	case errors.Is(err, service.ErrLoginFailed):
		http.Redirect(w, r, h.FrontendURL+"/login?error=auth_failed", http.StatusFound)
		return
	case errors.Is(err, service.ErrLoginInProgress):
		http.Redirect(w, r, h.FrontendURL+"/login?error=login_in_progress", http.StatusFound)
		return
	case err != nil:
		log.Error("login callback failed", slog.Any("error", err))
		http.Redirect(w, r, h.FrontendURL+"/login?error=server_error", http.StatusFound)
		return
	}

	if res.TermsPending {
		http.Redirect(w, r,
			h.FrontendURL+"/terms?user_id="+url.QueryEscape(res.User.ID),
			http.StatusFound,
		)
		return
	}

	setTokenCookies(w, res.Pair, h.CookieSecure)
	http.Redirect(w, r, h.FrontendURL+"/dashboard", http.StatusFound)
}
