package handlers

import (
	"net/http"

	"go.uber.org/zap"

	"wisdom-backend/infrastructure/telemetry"
	"wisdom-backend/pkg/errors"
)

// SlowQueryStats ranks recorded queries.
type SlowQueryStats interface {
	SlowestByName(topN int) []telemetry.Stat
	Dropped() int64
}

// SlowQueryResponse is the body of GET /admin/slow-queries
type SlowQueryResponse struct {
	Results []telemetry.Stat `json:"results"`
	Top     int              `json:"top"`
	Dropped int64            `json:"dropped_sink_records"`
}

// AdminHandler serves operator endpoints
type AdminHandler struct {
	stats        SlowQueryStats
	logger       *zap.Logger
	errorHandler *errors.ErrorHandler
}

// NewAdminHandler creates a new admin handler
func NewAdminHandler(stats SlowQueryStats, logger *zap.Logger, errorHandler *errors.ErrorHandler) *AdminHandler {
	return &AdminHandler{
		stats:        stats,
		logger:       logger,
		errorHandler: errorHandler,
	}
}

// SlowQueries handles GET /admin/slow-queries?top=
func (h *AdminHandler) SlowQueries(w http.ResponseWriter, r *http.Request) {
	top, err := intParam(r, "top")
	if err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}
	if top == 0 {
		top = 10
	}
	if top < 0 || top > 1000 {
		h.errorHandler.Handle(w, r, errors.NewValidation("top must be between 1 and 1000").WithCode("INVALID_PARAMETER"))
		return
	}

	stats := h.stats.SlowestByName(top)
	if stats == nil {
		stats = []telemetry.Stat{}
	}
	respondJSON(h.logger, w, http.StatusOK, SlowQueryResponse{
		Results: stats,
		Top:     top,
		Dropped: h.stats.Dropped(),
	})
}
