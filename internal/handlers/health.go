package handlers

import (
	"net/http"
	"time"
)

// HealthHandler responds with service health information.
type HealthHandler struct {
	NowFunc func() time.Time
}

// Handle implements GET /health.
func (h HealthHandler) Handle(w http.ResponseWriter, r *http.Request) {
	now := time.Now
	if h.NowFunc != nil {
		now = h.NowFunc
	}

	respondJSON(r.Context(), w, http.StatusOK, map[string]any{
		"status":    "ok",
		"timestamp": now().UnixMilli(),
	})
}
