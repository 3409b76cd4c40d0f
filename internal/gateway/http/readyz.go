package http

import (
	"context"
	"net/http"
	"time"

	"github.com/sundog-labs/authgate/internal/gateway/kv"
	"github.com/sundog-labs/authgate/internal/gateway/store"
	"github.com/sundog-labs/authgate/pkg/httpx"
)

type readyResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}

// ReadyzHandler godoc
//
//	@Summary		Readiness Check Endpoint
//	@Description	Readiness probe verifying both backing stores are reachable.
//	@Description	Returns 503 when either the database or the key-value store is down.
//	@Tags			Health
//	@Produce		json
//	@Success		200	{object}	readyResponse
//	@Failure		503	{object}	readyResponse
//	@Router			/readyz [get].
func ReadyzHandler(st store.Store, kvClient *kv.Client) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		checks := map[string]string{"database": "ok", "kv": "ok"}
		healthy := true

		if err := st.Ping(ctx); err != nil {
			checks["database"] = err.Error()
			healthy = false
		}
		if err := kvClient.Ping(ctx); err != nil {
			checks["kv"] = err.Error()
			healthy = false
		}

		status, code := "ready", http.StatusOK
		if !healthy {
			status, code = "unavailable", http.StatusServiceUnavailable
		}
		httpx.WriteJSON(w, code, readyResponse{Status: status, Checks: checks})
	}
}
