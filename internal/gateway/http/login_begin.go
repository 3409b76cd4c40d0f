package http

import (
	"log/slog"
	"net/http"

	"github.com/sundog-labs/authgate/internal/gateway/service"
	"github.com/sundog-labs/authgate/pkg/slogx"
)

// LoginBeginHandler serves GET /v1/auth/google. It opens a login attempt and
// redirects the browser to the provider's consent screen.
type LoginBeginHandler struct {
	LoginService *service.LoginService
	FrontendURL  string
}

// ServeHTTP godoc
//
//	@Summary		Start Google Sign-In
//	@Description	Opens a login attempt and redirects the browser to Google's consent screen.
//	@Description	The state and nonce protecting the round trip are generated here.
//	@Tags			Auth
//	@Success		302	"Redirect to the provider consent screen"
//	@Router			/v1/auth/google [get].
func (h *LoginBeginHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	authURL, err := h.LoginService.Begin(ctx)
	if err != nil {
		log.Error("failed to open login attempt", slog.Any("error", err))
		http.Redirect(w, r, h.FrontendURL+"/login?error=auth_failed", http.StatusFound)
		return
	}

	http.Redirect(w, r, authURL, http.StatusFound)
}
