package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/go-playground/validator/v10"

	apierrors "tradeledger/internal/errors"
	"tradeledger/internal/services"
	v1 "tradeledger/pkg/contracts/api/v1"
	"tradeledger/pkg/contracts/domain"
)

// TaxLotHandler handles lot and sale matching HTTP requests
type TaxLotHandler struct {
	service      *services.TaxLotService
	logger       *slog.Logger
	errorHandler *apierrors.ErrorHandler
	validate     *validator.Validate
}

// NewTaxLotHandler creates a new tax lot handler
func NewTaxLotHandler(service *services.TaxLotService, logger *slog.Logger) *TaxLotHandler {
	return &TaxLotHandler{
		service:      service,
		logger:       logger.With(slog.String("handler", "taxlot")),
		errorHandler: apierrors.NewErrorHandler(logger, false),
		validate:     newValidator(),
	}
}

// RegisterRoutes registers the lot and sale routes
func (h *TaxLotHandler) RegisterRoutes(r chi.Router) {
	r.Route("/lots", func(r chi.Router) {
		r.Post("/", h.CreateLot)
		r.Get("/{symbol}", h.ListLots)
	})
	r.Route("/sales", func(r chi.Router) {
		r.Post("/match", h.Match)
		r.Post("/commit", h.Commit)
	})
}

// CreateLot handles POST /api/lots
func (h *TaxLotHandler) CreateLot(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req v1.LotCreateRequest
	if apiErr := decodeAndValidate(r, h.validate, &req); apiErr != nil {
		h.errorHandler.HandleError(w, r, apiErr)
		return
	}

	acquired, apiErr := parseDate("acquiredDate", req.AcquiredDate)
	if apiErr != nil {
		h.errorHandler.HandleError(w, r, apiErr)
		return
	}
	cost, apiErr := parseDecimal("costPerShare", req.CostPerShare)
	if apiErr != nil {
		h.errorHandler.HandleError(w, r, apiErr)
		return
	}

	lot, err := h.service.AddLot(ctx, req.Symbol, acquired, req.Quantity, cost)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	render.Status(r, http.StatusCreated)
	render.JSON(w, r, lot)
}

// ListLots handles GET /api/lots/{symbol}
func (h *TaxLotHandler) ListLots(w http.ResponseWriter, r *http.Request) {
	symbol := chi.URLParam(r, "symbol")
	lots := h.service.Lots(r.Context(), symbol)

	render.JSON(w, r, v1.LotListResponse{Symbol: symbol, Lots: lots})
}

// Match handles POST /api/sales/match
func (h *TaxLotHandler) Match(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req v1.SaleMatchRequest
	if apiErr := decodeAndValidate(r, h.validate, &req); apiErr != nil {
		h.errorHandler.HandleError(w, r, apiErr)
		return
	}

	saleDate, apiErr := parseDate("saleDate", req.SaleDate)
	if apiErr != nil {
		h.errorHandler.HandleError(w, r, apiErr)
		return
	}
	salePrice, apiErr := parseDecimal("salePrice", req.SalePrice)
	if apiErr != nil {
		h.errorHandler.HandleError(w, r, apiErr)
		return
	}

	prop, err := h.service.Match(ctx, req.Symbol, req.SaleQuantity, salePrice, saleDate)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	render.JSON(w, r, v1.SaleMatchResponse{
		Scenarios: map[string]v1.SaleScenario{
			"fifo":   toScenario(prop.FIFO),
			"lifo":   toScenario(prop.LIFO),
			"hifo":   toScenario(prop.HIFO),
			"minTax": toScenario(prop.MinTax),
		},
		BestMethod: string(prop.BestMethod),
	})
}

// Commit handles POST /api/sales/commit
func (h *TaxLotHandler) Commit(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req v1.SaleCommitRequest
	if apiErr := decodeAndValidate(r, h.validate, &req); apiErr != nil {
		h.errorHandler.HandleError(w, r, apiErr)
		return
	}

	saleDate, apiErr := parseDate("saleDate", req.SaleDate)
	if apiErr != nil {
		h.errorHandler.HandleError(w, r, apiErr)
		return
	}
	salePrice, apiErr := parseDecimal("salePrice", req.SalePrice)
	if apiErr != nil {
		h.errorHandler.HandleError(w, r, apiErr)
		return
	}

	match, err := h.service.CommitSale(ctx, req.Symbol, req.SaleQuantity, salePrice, saleDate,
		domain.MatchMethod(req.MatchingMethod))
	if err != nil {
		h.logger.WarnContext(ctx, "sale commit rejected",
			slog.String("symbol", req.Symbol),
			slog.String("sale_txn_id", req.SaleTxnID),
			slog.String("error", err.Error()))

		render.Status(r, apierrors.StatusFor(err))
		render.JSON(w, r, v1.SaleCommitResponse{
			Success: false,
			Error:   err.Error(),
		})
		return
	}

	render.JSON(w, r, v1.SaleCommitResponse{
		Success: true,
		Summary: &v1.SaleCommitSummary{
			TotalGainLoss: match.TotalGainLoss.String(),
			ShortTermGain: match.ShortTermGain.String(),
			LongTermGain:  match.LongTermGain.String(),
		},
	})
}

// toScenario converts a sale match to the API scenario shape.
func toScenario(m domain.SaleMatch) v1.SaleScenario {
	return v1.SaleScenario{
		Consumptions: m.Consumptions,
		Summary: v1.SaleScenarioSummary{
			TotalGainLoss: m.TotalGainLoss.String(),
			ShortTermGain: m.ShortTermGain.String(),
			LongTermGain:  m.LongTermGain.String(),
			EstimatedTax:  m.EstimatedTax.String(),
		},
	}
}
