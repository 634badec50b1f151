package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	apierrors "tradeledger/internal/errors"
	"tradeledger/internal/services"
)

// AnalyticsHandler handles performance summary HTTP requests
type AnalyticsHandler struct {
	service      *services.AnalyticsService
	logger       *slog.Logger
	errorHandler *apierrors.ErrorHandler
}

// NewAnalyticsHandler creates a new analytics handler
func NewAnalyticsHandler(service *services.AnalyticsService, logger *slog.Logger) *AnalyticsHandler {
	return &AnalyticsHandler{
		service:      service,
		logger:       logger.With(slog.String("handler", "analytics")),
		errorHandler: apierrors.NewErrorHandler(logger, false),
	}
}

// RegisterRoutes registers the analytics routes
func (h *AnalyticsHandler) RegisterRoutes(r chi.Router) {
	r.Route("/analytics", func(r chi.Router) {
		r.Get("/summary", h.Summary)
	})
}

// Summary handles GET /api/analytics/summary
func (h *AnalyticsHandler) Summary(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	from, apiErr := parseOptionalDate("from", r.URL.Query().Get("from"))
	if apiErr != nil {
		h.errorHandler.HandleError(w, r, apiErr)
		return
	}
	to, apiErr := parseOptionalDate("to", r.URL.Query().Get("to"))
	if apiErr != nil {
		h.errorHandler.HandleError(w, r, apiErr)
		return
	}

	summary, err := h.service.Summary(ctx, from, to)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	render.JSON(w, r, summary)
}
