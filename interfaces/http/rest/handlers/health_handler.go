package handlers

import (
	"context"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// HealthChecker reports whether the graph database answers.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// HealthHandler serves the liveness and readiness checks
type HealthHandler struct {
	checker HealthChecker
	timeout time.Duration
	logger  *zap.Logger
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(checker HealthChecker, timeout time.Duration, logger *zap.Logger) *HealthHandler {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &HealthHandler{checker: checker, timeout: timeout, logger: logger}
}

// Live handles GET /health. It never touches the database.
func (h *HealthHandler) Live(w http.ResponseWriter, r *http.Request) {
	respondJSON(h.logger, w, http.StatusOK, map[string]string{"status": "ok"})
}

// Ready handles GET /ready
func (h *HealthHandler) Ready(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	if err := h.checker.HealthCheck(ctx); err != nil {
		h.logger.Warn("Readiness check failed", zap.Error(err))
		respondJSON(h.logger, w, http.StatusServiceUnavailable, map[string]string{
			"status": "degraded",
			"error":  "graph database unavailable",
		})
		return
	}
	respondJSON(h.logger, w, http.StatusOK, map[string]string{"status": "ok"})
}
