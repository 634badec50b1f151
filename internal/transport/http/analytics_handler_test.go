package http

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tradeledger/internal/analytics"
	"tradeledger/internal/services"
	"tradeledger/internal/tradebook"
	"tradeledger/pkg/contracts/domain"
)

func setupAnalyticsRouter(t *testing.T) http.Handler {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	book := tradebook.NewBook(logger)

	// One round-trip trade: buy 100 shares, sell them for a 1000 profit.
	book.AddToPool(
		domain.Leg{
			ID: "o1", Underlying: "AAPL", Action: domain.ActionBuy,
			Quantity: 100, Amount: decimal.NewFromInt(-15000),
			Date: time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC),
		},
		domain.Leg{
			ID: "c1", Underlying: "AAPL", Action: domain.ActionSell,
			Quantity: -100, Amount: decimal.NewFromInt(16000),
			Date: time.Date(2024, 4, 9, 0, 0, 0, 0, time.UTC),
		},
	)
	_, err := book.Commit("1", "", []string{"o1", "c1"}, "", "")
	require.NoError(t, err)

	svc := services.NewAnalyticsService(book, logger)
	handler := NewAnalyticsHandler(svc, logger)

	r := chi.NewRouter()
	r.Route("/api", handler.RegisterRoutes)
	return r
}

func TestAnalyticsSummaryEndpoint(t *testing.T) {
	router := setupAnalyticsRouter(t)

	t.Run("summary over all trades", func(t *testing.T) {
		rec := doJSON(t, router, http.MethodGet, "/api/analytics/summary", nil)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		var sum analytics.Summary
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &sum))
		assert.Equal(t, 1, sum.ClosedTrades)
		assert.True(t, sum.RealizedPL.Equal(decimal.NewFromInt(1000)), sum.RealizedPL.String())
		assert.Equal(t, 100, sum.WinRate)
		require.Len(t, sum.EquityCurve, 1)
	})

	t.Run("date filter excludes the trade", func(t *testing.T) {
		rec := doJSON(t, router, http.MethodGet, "/api/analytics/summary?from=2024-05-01", nil)
		require.Equal(t, http.StatusOK, rec.Code)

		var sum analytics.Summary
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &sum))
		assert.Equal(t, 0, sum.ClosedTrades)
	})

	t.Run("bad date is rejected", func(t *testing.T) {
		rec := doJSON(t, router, http.MethodGet, "/api/analytics/summary?from=May2024", nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}
