package errors

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"runtime"
	"runtime/debug"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"

	"tradeledger/internal/normalize"
	"tradeledger/internal/strategy"
	"tradeledger/internal/taxlot"
	"tradeledger/internal/tradebook"
)

// Common error types following RFC 7807
const (
	TypeValidation  = "/errors/validation"
	TypeNotFound    = "/errors/not-found"
	TypeInternal    = "/errors/internal"
	TypeServiceDown = "/errors/service-unavailable"
	TypeTimeout     = "/errors/timeout"
	TypeConflict    = "/errors/conflict"
)

// Domain-specific error types
const (
	TypeEmptyLegSet       = "/errors/trade/empty-leg-set"
	TypeTradeConflict     = "/errors/trade/number-conflict"
	TypeOverClose         = "/errors/trade/over-close"
	TypeNothingToUncommit = "/errors/trade/nothing-to-uncommit"
	TypeAmbiguousAction   = "/errors/transaction/ambiguous-action"
	TypeInsufficientLots  = "/errors/lots/insufficient"
)

// ErrorHandler provides centralized error handling
type ErrorHandler struct {
	logger       *slog.Logger
	includeStack bool
}

// NewErrorHandler creates a new error handler
func NewErrorHandler(logger *slog.Logger, includeStack bool) *ErrorHandler {
	return &ErrorHandler{
		logger:       logger.With(slog.String("component", "error_handler")),
		includeStack: includeStack,
	}
}

// HandleError converts any error to RFC 7807 format and responds
func (h *ErrorHandler) HandleError(w http.ResponseWriter, r *http.Request, err error) {
	if err == nil {
		return
	}

	// Get request ID for tracing
	reqID := middleware.GetReqID(r.Context())

	// Log the error with full context
	h.logger.ErrorContext(r.Context(), "request failed",
		slog.String("error", err.Error()),
		slog.String("request_id", reqID),
		slog.String("method", r.Method),
		slog.String("path", r.URL.Path),
		slog.String("remote_addr", r.RemoteAddr),
	)

	// Convert to problem details
	problem := h.ErrorToProblem(err, r)
	problem.WithExtension("trace_id", reqID)

	// Add stack trace in development
	if h.includeStack {
		problem.WithExtension("stack", getStackTrace())
	}

	// Render the error response
	render.Render(w, r, problem)
}

// ErrorToProblem converts an error to RFC 7807 Problem Details
func (h *ErrorHandler) ErrorToProblem(err error, r *http.Request) *ProblemDetails {
	// Check for context errors first
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return NewProblemDetails(
			http.StatusGatewayTimeout,
			TypeTimeout,
			"Request Timeout",
			"The request took too long to process and was cancelled",
			r.URL.Path,
		)
	}

	// Check for our custom API errors
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return h.apiErrorToProblem(apiErr, r)
	}

	// Domain sentinel error handling
	switch {
	case errors.Is(err, strategy.ErrEmptyLegSet):
		return NewProblemDetails(
			http.StatusBadRequest,
			TypeEmptyLegSet,
			"Empty Leg Set",
			err.Error(),
			r.URL.Path,
		)

	case errors.Is(err, tradebook.ErrTradeNumConflict):
		return NewProblemDetails(
			http.StatusConflict,
			TypeTradeConflict,
			"Trade Number Conflict",
			err.Error(),
			r.URL.Path,
		)

	case errors.Is(err, tradebook.ErrOverClose):
		return NewProblemDetails(
			http.StatusUnprocessableEntity,
			TypeOverClose,
			"Over Close",
			err.Error(),
			r.URL.Path,
		)

	case errors.Is(err, tradebook.ErrNothingToUncommit):
		return NewProblemDetails(
			http.StatusConflict,
			TypeNothingToUncommit,
			"Nothing To Uncommit",
			err.Error(),
			r.URL.Path,
		)

	case errors.Is(err, normalize.ErrAmbiguousLegAction):
		return NewProblemDetails(
			http.StatusUnprocessableEntity,
			TypeAmbiguousAction,
			"Ambiguous Transaction Action",
			err.Error(),
			r.URL.Path,
		)

	case errors.Is(err, taxlot.ErrInsufficientLots):
		return NewProblemDetails(
			http.StatusUnprocessableEntity,
			TypeInsufficientLots,
			"Insufficient Lots",
			err.Error(),
			r.URL.Path,
		)

	default:
		// Generic internal error
		return NewProblemDetails(
			http.StatusInternalServerError,
			TypeInternal,
			"Internal Server Error",
			"An unexpected error occurred while processing your request",
			r.URL.Path,
		)
	}
}

// apiErrorToProblem converts APIError to ProblemDetails
func (h *ErrorHandler) apiErrorToProblem(apiErr *APIError, r *http.Request) *ProblemDetails {
	// Map error codes to problem types
	problemType := TypeInternal
	switch apiErr.ErrorCode {
	case "VALIDATION_FAILED", "INVALID_REQUEST":
		problemType = TypeValidation
	case "NOT_FOUND", "TRADE_NOT_FOUND":
		problemType = TypeNotFound
	case "EMPTY_LEG_SET":
		problemType = TypeEmptyLegSet
	case "TRADE_CONFLICT":
		problemType = TypeTradeConflict
	case "NOTHING_TO_UNCOMMIT":
		problemType = TypeNothingToUncommit
	case "OVER_CLOSE":
		problemType = TypeOverClose
	case "INSUFFICIENT_LOTS":
		problemType = TypeInsufficientLots
	case "AMBIGUOUS_LEG_ACTION":
		problemType = TypeAmbiguousAction
	case "SERVICE_UNAVAILABLE":
		problemType = TypeServiceDown
	}

	problem := NewProblemDetails(
		apiErr.StatusCode,
		problemType,
		http.StatusText(apiErr.StatusCode),
		apiErr.Message,
		r.URL.Path,
	).WithExtension("error_code", apiErr.ErrorCode)

	// Add details if present
	if apiErr.Details != nil {
		problem.WithExtension("details", apiErr.Details)
	}

	return problem
}

// HandlePanic recovers from panics and returns RFC 7807 error
func (h *ErrorHandler) HandlePanic(w http.ResponseWriter, r *http.Request, recovered interface{}) {
	reqID := middleware.GetReqID(r.Context())

	// Log the panic
	h.logger.ErrorContext(r.Context(), "panic recovered",
		slog.Any("panic", recovered),
		slog.String("request_id", reqID),
		slog.String("method", r.Method),
		slog.String("path", r.URL.Path),
		slog.String("stack", string(debug.Stack())),
	)

	// Create problem details
	problem := NewProblemDetails(
		http.StatusInternalServerError,
		TypeInternal,
		"Internal Server Error",
		"An unexpected error occurred",
		r.URL.Path,
	).WithExtension("trace_id", reqID)

	// Add panic details in development
	if h.includeStack {
		problem.WithExtension("panic", fmt.Sprintf("%v", recovered))
		problem.WithExtension("stack", getStackTrace())
	}

	render.Render(w, r, problem)
}

// NotFound returns a standard 404 error
func (h *ErrorHandler) NotFound(w http.ResponseWriter, r *http.Request) {
	problem := NewProblemDetails(
		http.StatusNotFound,
		TypeNotFound,
		"Not Found",
		"The requested resource was not found",
		r.URL.Path,
	).WithExtension("trace_id", middleware.GetReqID(r.Context()))

	render.Render(w, r, problem)
}

// MethodNotAllowed returns a standard 405 error
func (h *ErrorHandler) MethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	problem := NewProblemDetails(
		http.StatusMethodNotAllowed,
		TypeInternal,
		"Method Not Allowed",
		fmt.Sprintf("Method %s is not allowed for this endpoint", r.Method),
		r.URL.Path,
	).WithExtension("trace_id", middleware.GetReqID(r.Context()))

	render.Render(w, r, problem)
}

// StatusFor maps an error to its HTTP status code using the same
// sentinel rules as ErrorToProblem.
func StatusFor(err error) int {
	var apiErr *APIError
	switch {
	case errors.As(err, &apiErr):
		return apiErr.StatusCode
	case errors.Is(err, strategy.ErrEmptyLegSet):
		return http.StatusBadRequest
	case errors.Is(err, tradebook.ErrTradeNumConflict),
		errors.Is(err, tradebook.ErrNothingToUncommit):
		return http.StatusConflict
	case errors.Is(err, tradebook.ErrOverClose),
		errors.Is(err, normalize.ErrAmbiguousLegAction),
		errors.Is(err, taxlot.ErrInsufficientLots):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

// getStackTrace returns the current stack trace
func getStackTrace() string {
	buf := make([]byte, 1024*8)
	n := runtime.Stack(buf, false)
	return string(buf[:n])
}

// JSON helper for consistent JSON error responses
func (h *ErrorHandler) JSON(w http.ResponseWriter, r *http.Request, status int, v interface{}) {
	render.Status(r, status)
	render.JSON(w, r, v)
}
