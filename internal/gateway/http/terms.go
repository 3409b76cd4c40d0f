package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/sundog-labs/authgate/internal/gateway/service"
	"github.com/sundog-labs/authgate/pkg/httpx"
	"github.com/sundog-labs/authgate/pkg/slogx"
)

// TermsHandler serves POST /v1/users/terms. First-time users land here after
// the callback redirect; accepting the terms is what finally issues their
// first token pair.
type TermsHandler struct {
	UserService  *service.UserService
	CookieSecure bool
}

type termsRequest struct {
	UserID string `json:"user_id"`
}

// ServeHTTP godoc
//
//	@Summary		Accept Terms of Service
//	@Description	Records the user's agreement and issues their first token pair as httpOnly cookies.
//	@Tags			Users
//	@Accept			json
//	@Produce		json
//	@Param			body	body		termsRequest	true	"User accepting the terms"
//	@Success		200		{object}	tokenResponse
//	@Failure		400		{object}	map[string]string	"error, error_description"
//	@Failure		404		{object}	map[string]string	"error, error_description"
//	@Router			/v1/users/terms [post].
func (h *TermsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	var req termsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.UserID == "" {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_request", "missing user_id")
		return
	}

	_, pair, err := h.UserService.AcceptTerms(ctx, req.UserID)
	if errors.Is(err, service.ErrUnknownUser) {
		httpx.WriteError(w, http.StatusNotFound, "unknown_user", "no such user")
		return
	}
	if err != nil {
		log.Error("terms acceptance failed", slog.Any("error", err), slog.String("user_id", req.UserID))
		httpx.WriteError(w, http.StatusBadGateway, "server_error", "terms acceptance failed")
		return
	}

	setTokenCookies(w, pair, h.CookieSecure)
	httpx.NoCache(w)
	httpx.WriteJSON(w, http.StatusOK, tokenResponse{
		AccessToken: pair.AccessToken,
		TokenType:   "Bearer",
		ExpiresIn:   int64(pair.AccessExpiresIn.Seconds()),
	})
}
