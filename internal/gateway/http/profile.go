package http

import (
	"errors"
	"net/http"
	"time"

	"github.com/sundog-labs/authgate/internal/gateway/service"
	"github.com/sundog-labs/authgate/pkg/httpx"
)

// ProfileHandler serves GET /v1/users/me for authenticated requests. The
// authentication middleware has already validated the access token and put
// the subject on the context.
type ProfileHandler struct {
	UserService *service.UserService
}

type profileResponse struct {
	ID          string     `json:"id"`
	Email       string     `json:"email"`
	Provider    string     `json:"provider"`
	TermsAgreed bool       `json:"terms_agreed"`
	AgreedAt    *time.Time `json:"agreed_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}

// ServeHTTP godoc
//
//	@Summary		Current User Profile
//	@Description	Returns the account behind the presented access token.
//	@Tags			Users
//	@Produce		json
//	@Security		BearerAuth
//	@Success		200	{object}	profileResponse
//	@Failure		401	{object}	map[string]string	"error, error_description"
//	@Failure		404	{object}	map[string]string	"error, error_description"
//	@Router			/v1/users/me [get].
func (h *ProfileHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	subject := httpx.SubjectFromContext(ctx)
	if subject == "" {
		httpx.WriteError(w, http.StatusUnauthorized, "invalid_token", "no authenticated subject")
		return
	}

	u, err := h.UserService.Profile(ctx, subject)
	if errors.Is(err, service.ErrUnknownUser) {
		httpx.WriteError(w, http.StatusNotFound, "unknown_user", "account no longer exists")
		return
	}
	if err != nil {
		httpx.WriteError(w, http.StatusBadGateway, "server_error", "profile lookup failed")
		return
	}

	httpx.WriteJSON(w, http.StatusOK, profileResponse{
		ID:          u.ID,
		Email:       u.Email,
		Provider:    u.Provider,
		TermsAgreed: u.TermsAgreed,
		AgreedAt:    u.AgreedAt,
		CreatedAt:   u.CreatedAt,
	})
}
