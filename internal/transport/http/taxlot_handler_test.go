package http

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tradeledger/internal/services"
	"tradeledger/internal/taxlot"
	v1 "tradeledger/pkg/contracts/api/v1"
	"tradeledger/pkg/contracts/domain"
)

func setupTaxLotRouter(t *testing.T) http.Handler {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	store := taxlot.NewStore(taxlot.DefaultTaxRates(), logger)
	svc := services.NewTaxLotService(store, nil, logger)
	handler := NewTaxLotHandler(svc, logger)

	r := chi.NewRouter()
	r.Route("/api", handler.RegisterRoutes)
	return r
}

func createLot(t *testing.T, router http.Handler, acquired string, qty int64, cost string) domain.StockLot {
	t.Helper()
	rec := doJSON(t, router, http.MethodPost, "/api/lots", v1.LotCreateRequest{
		Symbol:       "AAPL",
		AcquiredDate: acquired,
		Quantity:     qty,
		CostPerShare: cost,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var lot domain.StockLot
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &lot))
	return lot
}

func TestCreateAndListLots(t *testing.T) {
	router := setupTaxLotRouter(t)

	lot := createLot(t, router, "2023-01-10", 100, "150")
	assert.NotEmpty(t, lot.ID)
	assert.Equal(t, int64(100), lot.RemainingQuantity)

	rec := doJSON(t, router, http.MethodGet, "/api/lots/AAPL", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp v1.LotListResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "AAPL", resp.Symbol)
	require.Len(t, resp.Lots, 1)
	assert.Equal(t, lot.ID, resp.Lots[0].ID)
}

func TestCreateLotValidation(t *testing.T) {
	router := setupTaxLotRouter(t)

	t.Run("missing fields", func(t *testing.T) {
		rec := doJSON(t, router, http.MethodPost, "/api/lots", v1.LotCreateRequest{Symbol: "AAPL"})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("bad cost", func(t *testing.T) {
		rec := doJSON(t, router, http.MethodPost, "/api/lots", v1.LotCreateRequest{
			Symbol:       "AAPL",
			AcquiredDate: "2023-01-10",
			Quantity:     10,
			CostPerShare: "lots",
		})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestSaleMatchEndpoint(t *testing.T) {
	router := setupTaxLotRouter(t)
	createLot(t, router, "2021-01-04", 50, "100")
	createLot(t, router, "2023-12-01", 50, "120")

	t.Run("previews all four methods", func(t *testing.T) {
		rec := doJSON(t, router, http.MethodPost, "/api/sales/match", v1.SaleMatchRequest{
			Symbol:       "AAPL",
			SaleQuantity: 60,
			SalePrice:    "130",
			SaleDate:     "2024-03-01",
		})
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		var resp v1.SaleMatchResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		for _, method := range []string{"fifo", "lifo", "hifo", "minTax"} {
			require.Contains(t, resp.Scenarios, method)
			assert.NotEmpty(t, resp.Scenarios[method].Consumptions, method)
		}
		assert.NotEmpty(t, resp.BestMethod)

		// FIFO: 50 long @ +30, 10 short @ +10.
		fifo := resp.Scenarios["fifo"].Summary
		assert.Equal(t, "1600", fifo.TotalGainLoss)
		assert.Equal(t, "1500", fifo.LongTermGain)
		assert.Equal(t, "100", fifo.ShortTermGain)
	})

	t.Run("match never mutates", func(t *testing.T) {
		rec := doJSON(t, router, http.MethodGet, "/api/lots/AAPL", nil)
		require.Equal(t, http.StatusOK, rec.Code)
		var resp v1.LotListResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		for _, lot := range resp.Lots {
			assert.Equal(t, lot.OriginalQuantity, lot.RemainingQuantity)
		}
	})

	t.Run("insufficient lots is a 422 problem", func(t *testing.T) {
		rec := doJSON(t, router, http.MethodPost, "/api/sales/match", v1.SaleMatchRequest{
			Symbol:       "AAPL",
			SaleQuantity: 500,
			SalePrice:    "130",
			SaleDate:     "2024-03-01",
		})
		assert.Equal(t, http.StatusUnprocessableEntity, rec.Code, rec.Body.String())
	})
}

func TestSaleCommitEndpoint(t *testing.T) {
	router := setupTaxLotRouter(t)
	createLot(t, router, "2021-01-04", 50, "100")

	t.Run("commit decrements lots", func(t *testing.T) {
		rec := doJSON(t, router, http.MethodPost, "/api/sales/commit", v1.SaleCommitRequest{
			SaleTxnID:      "s1",
			Symbol:         "AAPL",
			SaleQuantity:   20,
			SalePrice:      "130",
			SaleDate:       "2024-03-01",
			MatchingMethod: "fifo",
		})
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		var resp v1.SaleCommitResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.True(t, resp.Success)
		require.NotNil(t, resp.Summary)
		assert.Equal(t, "600", resp.Summary.TotalGainLoss)
		assert.Equal(t, "600", resp.Summary.LongTermGain)

		listRec := doJSON(t, router, http.MethodGet, "/api/lots/AAPL", nil)
		var lots v1.LotListResponse
		require.NoError(t, json.Unmarshal(listRec.Body.Bytes(), &lots))
		require.Len(t, lots.Lots, 1)
		assert.Equal(t, int64(30), lots.Lots[0].RemainingQuantity)
	})

	t.Run("oversell returns 422 envelope and mutates nothing", func(t *testing.T) {
		rec := doJSON(t, router, http.MethodPost, "/api/sales/commit", v1.SaleCommitRequest{
			SaleTxnID:      "s2",
			Symbol:         "AAPL",
			SaleQuantity:   100,
			SalePrice:      "130",
			SaleDate:       "2024-03-01",
			MatchingMethod: "fifo",
		})
		assert.Equal(t, http.StatusUnprocessableEntity, rec.Code, rec.Body.String())

		var resp v1.SaleCommitResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.False(t, resp.Success)
		assert.Contains(t, resp.Error, "insufficient lot quantity")

		listRec := doJSON(t, router, http.MethodGet, "/api/lots/AAPL", nil)
		var lots v1.LotListResponse
		require.NoError(t, json.Unmarshal(listRec.Body.Bytes(), &lots))
		assert.Equal(t, int64(30), lots.Lots[0].RemainingQuantity)
	})

	t.Run("unknown method fails validation", func(t *testing.T) {
		rec := doJSON(t, router, http.MethodPost, "/api/sales/commit", v1.SaleCommitRequest{
			SaleTxnID:      "s3",
			Symbol:         "AAPL",
			SaleQuantity:   5,
			SalePrice:      "130",
			SaleDate:       "2024-03-01",
			MatchingMethod: "average",
		})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}
