package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	apierrors "tradeledger/internal/errors"
	"tradeledger/internal/normalize"
	"tradeledger/internal/services"
	v1 "tradeledger/pkg/contracts/api/v1"
)

// TradeHandler handles transaction and trade HTTP requests
type TradeHandler struct {
	service      *services.TradeService
	logger       *slog.Logger
	errorHandler *apierrors.ErrorHandler
	validate     *validator.Validate
}

// NewTradeHandler creates a new trade handler
func NewTradeHandler(service *services.TradeService, logger *slog.Logger) *TradeHandler {
	return &TradeHandler{
		service:      service,
		logger:       logger.With(slog.String("handler", "trade")),
		errorHandler: apierrors.NewErrorHandler(logger, false),
		validate:     newValidator(),
	}
}

// RegisterRoutes registers the transaction and trade routes
func (h *TradeHandler) RegisterRoutes(r chi.Router) {
	r.Route("/transactions", func(r chi.Router) {
		r.Post("/", h.Ingest)
		r.Get("/pool", h.Pool)
	})
	r.Route("/trades", func(r chi.Router) {
		r.Get("/", h.List)
		r.Post("/commit", h.Commit)
		r.Route("/{tradeNum}", func(r chi.Router) {
			r.Get("/", h.Get)
			r.Post("/uncommit", h.Uncommit)
		})
	})
}

// Ingest handles POST /api/transactions
func (h *TradeHandler) Ingest(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req v1.TransactionIngestRequest
	if apiErr := decodeAndValidate(r, h.validate, &req); apiErr != nil {
		h.errorHandler.HandleError(w, r, apiErr)
		return
	}

	raws := make([]normalize.RawTransaction, 0, len(req.Transactions))
	var badInputs []v1.SkippedItem
	for _, in := range req.Transactions {
		raw, reason := toRawTransaction(in)
		if reason != "" {
			badInputs = append(badInputs, v1.SkippedItem{ID: in.ID, Reason: reason})
			continue
		}
		raws = append(raws, raw)
	}

	result, err := h.service.Ingest(ctx, raws)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	resp := v1.TransactionIngestResponse{
		Accepted: result.Accepted,
		Skipped:  badInputs,
		PoolSize: result.PoolSize,
	}
	for _, s := range result.Skipped {
		resp.Skipped = append(resp.Skipped, v1.SkippedItem{ID: s.ID, Reason: s.Reason})
	}

	render.JSON(w, r, resp)
}

// toRawTransaction converts one API input to the normalizer's input,
// returning a skip reason when a field cannot be parsed.
func toRawTransaction(in v1.RawTransactionInput) (normalize.RawTransaction, string) {
	date, err := time.Parse("2006-01-02", in.Date)
	if err != nil {
		return normalize.RawTransaction{}, "invalid date"
	}

	amount, err := decimal.NewFromString(in.Amount)
	if err != nil {
		return normalize.RawTransaction{}, "invalid amount"
	}

	price := decimal.Zero
	if in.Price != "" {
		if price, err = decimal.NewFromString(in.Price); err != nil {
			return normalize.RawTransaction{}, "invalid price"
		}
	}

	fees := decimal.Zero
	if in.Fees != "" {
		if fees, err = decimal.NewFromString(in.Fees); err != nil {
			return normalize.RawTransaction{}, "invalid fees"
		}
	}

	raw := normalize.RawTransaction{
		ID:           in.ID,
		Date:         date,
		Symbol:       in.Symbol,
		Name:         in.Name,
		Subtype:      in.Subtype,
		ActionCode:   in.ActionCode,
		Quantity:     in.Quantity,
		Price:        price,
		Amount:       amount,
		Fees:         fees,
		OptionSymbol: in.OptionSymbol,
	}

	if in.Option != nil {
		strike, err := decimal.NewFromString(in.Option.Strike)
		if err != nil {
			return normalize.RawTransaction{}, "invalid option strike"
		}
		expiration, err := time.Parse("2006-01-02", in.Option.Expiration)
		if err != nil {
			return normalize.RawTransaction{}, "invalid option expiration"
		}
		raw.Option = &normalize.RawOption{
			Type:       in.Option.Type,
			Strike:     strike,
			Expiration: expiration,
		}
	}

	return raw, ""
}

// Pool handles GET /api/transactions/pool
func (h *TradeHandler) Pool(w http.ResponseWriter, r *http.Request) {
	legs := h.service.PoolLegs(r.Context())
	render.JSON(w, r, map[string]interface{}{
		"legs":  legs,
		"total": len(legs),
	})
}

// Commit handles POST /api/trades/commit
func (h *TradeHandler) Commit(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req v1.CommitLegsRequest
	if apiErr := decodeAndValidate(r, h.validate, &req); apiErr != nil {
		h.errorHandler.HandleError(w, r, apiErr)
		return
	}

	tradeNum, result, err := h.service.CommitLegs(ctx, services.CommitLegsInput{
		TransactionIDs: req.TransactionIDs,
		TradeNum:       req.TradeNum,
		Strategy:       req.Strategy,
		AccountCode:    req.AccountCode,
		SubAccount:     req.SubAccount,
	})
	if err != nil {
		h.logger.WarnContext(ctx, "commit rejected",
			slog.String("trade_num", req.TradeNum),
			slog.String("error", err.Error()))

		render.Status(r, apierrors.StatusFor(err))
		render.JSON(w, r, v1.CommitLegsResponse{
			Success: false,
			Error:   err.Error(),
		})
		return
	}

	resp := v1.CommitLegsResponse{
		Success:   true,
		Committed: result.Committed,
		TradeNum:  tradeNum,
		Details: &v1.CommitLegsDetails{
			Results: make([]v1.CommitActionResult, 0, len(result.Results)),
			Skipped: result.Skipped,
		},
	}
	for _, a := range result.Results {
		out := v1.CommitActionResult{Action: a.Action}
		if a.RealizedPL != nil {
			pl := a.RealizedPL.String()
			out.RealizedPL = &pl
		}
		resp.Details.Results = append(resp.Details.Results, out)
	}

	render.JSON(w, r, resp)
}

// Uncommit handles POST /api/trades/{tradeNum}/uncommit
func (h *TradeHandler) Uncommit(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tradeNum := chi.URLParam(r, "tradeNum")

	restored, removed, err := h.service.Uncommit(ctx, tradeNum)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	render.JSON(w, r, v1.UncommitResponse{
		Success:  true,
		TradeNum: tradeNum,
		Restored: len(restored),
		Removed:  removed,
	})
}

// List handles GET /api/trades
func (h *TradeHandler) List(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	status := r.URL.Query().Get("status")
	if status != "" && status != "open" && status != "partial" && status != "closed" {
		h.errorHandler.HandleError(w, r, apierrors.ErrValidation("status", "must be open, partial, or closed"))
		return
	}

	trades, err := h.service.ListTrades(ctx, status, r.URL.Query().Get("underlying"))
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	render.JSON(w, r, v1.TradeListResponse{Trades: trades, Total: len(trades)})
}

// Get handles GET /api/trades/{tradeNum}
func (h *TradeHandler) Get(w http.ResponseWriter, r *http.Request) {
	tradeNum := chi.URLParam(r, "tradeNum")

	trade, ok := h.service.Trade(r.Context(), tradeNum)
	if !ok {
		h.errorHandler.HandleError(w, r, apierrors.NotFoundError("trade"))
		return
	}

	render.JSON(w, r, trade)
}
