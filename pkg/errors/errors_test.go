package errors

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestAppError(t *testing.T) {
	t.Run("Should unwrap to the cause", func(t *testing.T) {
		cause := errors.New("bolt connection reset")
		err := NewUnavailable("graph database unavailable", cause)

		assert.ErrorIs(t, err, cause)
		assert.Equal(t, http.StatusServiceUnavailable, err.HTTPStatus)
		assert.Contains(t, err.Error(), "bolt connection reset")
	})

	t.Run("Should be found through wrapping", func(t *testing.T) {
		err := fmt.Errorf("handler: %w", NewNotFound("Item not found"))

		assert.True(t, IsNotFound(err))
		assert.False(t, IsValidation(err))
		assert.NotNil(t, GetAppError(err))
	})

	t.Run("Should keep the type when wrapped again", func(t *testing.T) {
		err := Wrap(NewValidation("bad page").WithCode("INVALID_PAGE"), "list quotes")

		appErr := GetAppError(err)
		require.NotNil(t, appErr)
		assert.Equal(t, ErrorTypeValidation, appErr.Type)
		assert.Equal(t, "INVALID_PAGE", appErr.Code)
		assert.Equal(t, "list quotes: bad page", appErr.Message)
	})

	t.Run("Should wrap plain errors as internal", func(t *testing.T) {
		assert.True(t, IsInternal(Wrap(errors.New("boom"), "decode")))
		assert.Nil(t, Wrap(nil, "nothing"))
	})
}

func TestErrorHandler_Handle(t *testing.T) {
	errGraph := errors.New("Neo.ClientError.Security.Unauthorized: secret detail")
	classify := func(err error) *AppError {
		if errors.Is(err, errGraph) {
			return NewExternal("Graph database rejected the request", err)
		}
		return nil
	}

	tests := []struct {
		name        string
		debug       bool
		err         error
		wantStatus  int
		wantType    string
		wantMessage string
	}{
		{"app error", false, NewNotFound("Item not found"), http.StatusNotFound, "NOT_FOUND", "Item not found"},
		{"classified error", false, errGraph, http.StatusBadGateway, "EXTERNAL", "Graph database rejected the request"},
		{"unknown error hides details", false, errors.New("secret detail"), http.StatusInternalServerError, "INTERNAL", "An internal error occurred"},
		{"unknown error in debug", true, errors.New("secret detail"), http.StatusInternalServerError, "INTERNAL", "secret detail"},
	}

	for _, tt := range tests {
		t.Run("Should render "+tt.name, func(t *testing.T) {
			h := NewErrorHandler(zap.NewNop(), tt.debug, classify)
			rec := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodGet, "/api/v1/quotes", nil)

			h.Handle(rec, req, tt.err)

			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

			var body ErrorResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.True(t, body.Error)
			assert.Equal(t, tt.wantType, body.Type)
			assert.Equal(t, tt.wantMessage, body.Message)
			assert.NotContains(t, rec.Body.String(), "Neo.ClientError")
		})
	}
}
