package handle

import (
	"context"
	"net/http"
	"time"
)

type pinger interface {
	IsAlive(ctx context.Context) error
}

// Health handles GET /health.
func Health(db pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		if err := db.IsAlive(ctx); err != nil {
			jsonResponse(w, http.StatusServiceUnavailable, map[string]any{"status": "unavailable", "database": err.Error()})
			return
		}
		jsonResponse(w, http.StatusOK, map[string]any{"status": "ok"})
	}
}
