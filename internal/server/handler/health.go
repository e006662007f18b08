// Package handler implements the ops API endpoints: health, engine status,
// the premium matrix, and the execution/recovery history.
package handler

import (
	"log/slog"
	"net/http"
	"time"
)

// HealthHandler serves the liveness probe.
type HealthHandler struct {
	logger    *slog.Logger
	startedAt time.Time
}

// NewHealthHandler creates a HealthHandler.
func NewHealthHandler(logger *slog.Logger) *HealthHandler {
	return &HealthHandler{logger: logger, startedAt: time.Now()}
}

// HealthCheck reports the process is alive and for how long.
// GET /api/health
func (h *HealthHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":     "ok",
		"uptime_sec": int64(time.Since(h.startedAt).Seconds()),
		"time":       time.Now().UTC().Format(time.RFC3339),
	})
}
