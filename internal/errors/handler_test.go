package errors

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tradeledger/internal/normalize"
	"tradeledger/internal/strategy"
	"tradeledger/internal/taxlot"
	"tradeledger/internal/tradebook"
)

func newTestHandler() *ErrorHandler {
	return NewErrorHandler(slog.New(slog.NewTextHandler(io.Discard, nil)), false)
}

func TestErrorToProblemDomainSentinels(t *testing.T) {
	h := newTestHandler()
	req := httptest.NewRequest(http.MethodPost, "/api/trades/commit", nil)

	tests := []struct {
		name        string
		err         error
		status      int
		problemType string
	}{
		{"empty leg set", strategy.ErrEmptyLegSet, http.StatusBadRequest, TypeEmptyLegSet},
		{"trade conflict", tradebook.ErrTradeNumConflict, http.StatusConflict, TypeTradeConflict},
		{"over close", tradebook.ErrOverClose, http.StatusUnprocessableEntity, TypeOverClose},
		{"nothing to uncommit", tradebook.ErrNothingToUncommit, http.StatusConflict, TypeNothingToUncommit},
		{"ambiguous action", normalize.ErrAmbiguousLegAction, http.StatusUnprocessableEntity, TypeAmbiguousAction},
		{"insufficient lots", taxlot.ErrInsufficientLots, http.StatusUnprocessableEntity, TypeInsufficientLots},
		{"timeout", context.DeadlineExceeded, http.StatusGatewayTimeout, TypeTimeout},
		{"unknown", fmt.Errorf("boom"), http.StatusInternalServerError, TypeInternal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			problem := h.ErrorToProblem(tt.err, req)
			assert.Equal(t, tt.status, problem.Status)
			assert.Equal(t, tt.problemType, problem.Type)
			assert.Equal(t, "/api/trades/commit", problem.Instance)
		})
	}

	t.Run("wrapped sentinel still matches", func(t *testing.T) {
		wrapped := fmt.Errorf("leg c1: %w", tradebook.ErrOverClose)
		problem := h.ErrorToProblem(wrapped, req)
		assert.Equal(t, http.StatusUnprocessableEntity, problem.Status)
		assert.Equal(t, wrapped.Error(), problem.Detail)
	})
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
	}{
		{"api error keeps its code", ErrTradeNotFound, http.StatusNotFound},
		{"empty leg set", fmt.Errorf("x: %w", strategy.ErrEmptyLegSet), http.StatusBadRequest},
		{"conflict", tradebook.ErrTradeNumConflict, http.StatusConflict},
		{"nothing to uncommit", tradebook.ErrNothingToUncommit, http.StatusConflict},
		{"over close", tradebook.ErrOverClose, http.StatusUnprocessableEntity},
		{"ambiguous", normalize.ErrAmbiguousLegAction, http.StatusUnprocessableEntity},
		{"insufficient", taxlot.ErrInsufficientLots, http.StatusUnprocessableEntity},
		{"unknown", fmt.Errorf("boom"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.status, StatusFor(tt.err))
		})
	}
}

func TestHandleErrorRendersProblemJSON(t *testing.T) {
	h := newTestHandler()
	req := httptest.NewRequest(http.MethodPost, "/api/trades/commit", nil)
	rec := httptest.NewRecorder()

	h.HandleError(rec, req, tradebook.ErrOverClose)

	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, TypeOverClose, body["type"])
	assert.Equal(t, float64(http.StatusUnprocessableEntity), body["status"])
	assert.Contains(t, body, "trace_id")
}

func TestProblemDetailsMarshalMergesExtensions(t *testing.T) {
	problem := NewProblemDetails(
		http.StatusBadRequest,
		TypeValidation,
		"Validation Failed",
		"bad input",
		"/api/lots",
	).WithExtension("error_code", "VALIDATION_FAILED")

	data, err := json.Marshal(problem)
	require.NoError(t, err)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &body))
	assert.Equal(t, TypeValidation, body["type"])
	assert.Equal(t, "bad input", body["detail"])
	assert.Equal(t, "VALIDATION_FAILED", body["error_code"])
}

func TestNotFoundHandler(t *testing.T) {
	h := newTestHandler()
	req := httptest.NewRequest(http.MethodGet, "/nope", nil)
	rec := httptest.NewRecorder()

	h.NotFound(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}
