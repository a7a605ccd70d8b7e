package httpapi

import (
	"context"
	"net/http"
	"time"
)

const readinessTimeout = 2 * time.Second

type healthResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
}

// HealthLive answers 200 while the process is up.
func (h *Handler) HealthLive(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, "ok", healthResponse{Status: "ok", Timestamp: time.Now().UTC().Format(time.RFC3339)})
}

// HealthReady answers 503 when the database does not respond.
func (h *Handler) HealthReady(w http.ResponseWriter, r *http.Request) {
	if h.ready != nil {
		ctx, cancel := context.WithTimeout(r.Context(), readinessTimeout)
		defer cancel()

		if err := h.ready.PingContext(ctx); err != nil {
			h.logger.Warn(r.Context(), "readiness check failed", "error", err)
			writeJSON(w, http.StatusServiceUnavailable, "database unavailable",
				healthResponse{Status: "fail", Timestamp: time.Now().UTC().Format(time.RFC3339)})
			return
		}
	}
	writeJSON(w, http.StatusOK, "ok", healthResponse{Status: "ok", Timestamp: time.Now().UTC().Format(time.RFC3339)})
}
