package http

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/sundog-labs/authgate/internal/gateway/service"
	"github.com/sundog-labs/authgate/pkg/httpx"
	"github.com/sundog-labs/authgate/pkg/slogx"
)

// RefreshHandler serves POST /v1/auth/refresh. It exchanges a live refresh
// token for a new access token; the refresh token itself is never rotated and
// keeps its original expiry.
type RefreshHandler struct {
	TokenService *service.TokenService
	CookieSecure bool
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int64  `json:"expires_in"`
}

// ServeHTTP godoc
//
//	@Summary		Rotate Access Token
//	@Description	Exchanges a live refresh token (cookie or form field) for a new access token.
//	@Description	The refresh token keeps its original expiry; only the access leg is reissued.
//	@Tags			Auth
//	@Accept			application/x-www-form-urlencoded
//	@Produce		json
//	@Param			refresh_token	formData	string	false	"Refresh token, when not sent as a cookie"
//	@Success		200				{object}	tokenResponse
//	@Failure		401				{object}	map[string]string	"error, error_description"
//	@Router			/v1/auth/refresh [post].
func (h *RefreshHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	refreshToken := cookieValue(r, RefreshTokenCookie)
	if refreshToken == "" {
		if err := r.ParseForm(); err == nil {
			refreshToken = r.Form.Get("refresh_token")
		}
	}
	if refreshToken == "" {
		httpx.WriteError(w, http.StatusUnauthorized, "invalid_request", "missing refresh token")
		return
	}

	pair, err := h.TokenService.Rotate(ctx, refreshToken)
	if errors.Is(err, service.ErrUnauthorized) {
		httpx.WriteError(w, http.StatusUnauthorized, "invalid_token", "refresh token is not valid")
		return
	}
	if err != nil {
		log.Error("token rotation failed", slog.Any("error", err))
		httpx.WriteError(w, http.StatusBadGateway, "server_error", "token rotation failed")
		return
	}

	setAccessCookie(w, pair, h.CookieSecure)
	httpx.NoCache(w)
	httpx.WriteJSON(w, http.StatusOK, tokenResponse{
		AccessToken: pair.AccessToken,
		TokenType:   "Bearer",
		ExpiresIn:   int64(pair.AccessExpiresIn.Seconds()),
	})
}
