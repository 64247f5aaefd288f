package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"wisdom-backend/application/queries"
	apperrors "wisdom-backend/pkg/errors"
)

func respondJSON(logger *zap.Logger, w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		logger.Error("Failed to encode response", zap.Error(err))
	}
}

// parsePage reads page and page_size. Missing values take the defaults.
func parsePage(r *http.Request) (queries.Page, error) {
	var page queries.Page
	var err error
	if page.Number, err = intParam(r, "page"); err != nil {
		return page, err
	}
	if page.Size, err = intParam(r, "page_size"); err != nil {
		return page, err
	}
	return page.Normalize(), nil
}

func intParam(r *http.Request, name string) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, apperrors.NewValidation(name + " must be an integer").WithCode("INVALID_PARAMETER")
	}
	return n, nil
}
