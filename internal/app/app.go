package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/shopspring/decimal"

	"tradeledger/internal/config"
	apierrors "tradeledger/internal/errors"
	"tradeledger/internal/infrastructure"
	customMiddleware "tradeledger/internal/middleware"
	"tradeledger/internal/services"
	"tradeledger/internal/taxlot"
	"tradeledger/internal/tradebook"
	handlers "tradeledger/internal/transport/http"
)

// Version is set at build time via -ldflags.
var Version = "dev"

// Application is the top-level dependency container.
type Application struct {
	Config        *config.Config
	Router        *chi.Mux
	Server        *http.Server
	Logger        *slog.Logger
	OTelProviders *infrastructure.OTelProviders
	Services      *ServiceContainer
}

// ServiceContainer holds all application services.
type ServiceContainer struct {
	Trade     *services.TradeService
	TaxLot    *services.TaxLotService
	Analytics *services.AnalyticsService
	Health    *services.HealthService
}

// New builds a fully wired application from environment configuration.
func New() (*Application, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	logger, err := infrastructure.InitializeLogger(cfg.Logging)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	logger.Info("application starting",
		slog.String("version", Version),
		slog.Int("port", cfg.Server.Port))

	otelProviders, err := infrastructure.InitializeOTel(infrastructure.DefaultOTelConfig(), logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize OpenTelemetry: %w", err)
	}

	app := &Application{
		Config:        cfg,
		Logger:        logger,
		OTelProviders: otelProviders,
	}

	if err := app.initializeServices(); err != nil {
		return nil, fmt.Errorf("failed to initialize services: %w", err)
	}

	app.setupRouter()
	app.createServer()

	return app, nil
}

// initializeServices constructs domain stores and the service layer.
func (a *Application) initializeServices() error {
	metrics, err := infrastructure.CreateBusinessMetrics(a.OTelProviders.Meter)
	if err != nil {
		return fmt.Errorf("failed to create business metrics: %w", err)
	}

	rates := taxlot.TaxRates{
		ShortTerm: decimal.NewFromFloat(a.Config.Tax.ShortTermRate),
		LongTerm:  decimal.NewFromFloat(a.Config.Tax.LongTermRate),
	}

	book := tradebook.NewBook(a.Logger)
	lots := taxlot.NewStore(rates, a.Logger)

	a.Services = &ServiceContainer{
		Trade:     services.NewTradeService(book, lots, metrics, a.Logger),
		TaxLot:    services.NewTaxLotService(lots, metrics, a.Logger),
		Analytics: services.NewAnalyticsService(book, a.Logger),
		Health:    services.NewHealthService(Version, a.Logger),
	}

	return nil
}

// setupRouter configures the HTTP router with the full middleware chain.
func (a *Application) setupRouter() {
	r := chi.NewRouter()

	r.Use(customMiddleware.RequestID)
	r.Use(customMiddleware.RealIP)
	r.Use(customMiddleware.Compress(5))

	r.Group(func(r chi.Router) {
		otelMiddleware, err := customMiddleware.NewOTelMiddleware(a.OTelProviders)
		if err != nil {
			a.Logger.Error("failed to create OpenTelemetry middleware", slog.String("error", err.Error()))
		} else {
			r.Use(otelMiddleware.Handler)
		}

		r.Use(customMiddleware.StructuredLogger(a.Logger))
		r.Use(customMiddleware.Recoverer(a.Logger))
		r.Use(customMiddleware.SecurityHeaders)

		if a.Config.Security.EnableCORS {
			r.Use(customMiddleware.CORS(a.getCORSConfig()))
		}

		r.Use(customMiddleware.Timeout(a.Config.Server.RequestTimeout, a.Logger))

		a.setupAPIRoutes(r)
	})

	// Prometheus scrape endpoint stays outside the middleware group so that
	// scrapes do not show up in request metrics.
	if a.OTelProviders.PrometheusHTTP != nil {
		r.Handle("/metrics", a.OTelProviders.PrometheusHTTP)
	}

	errorHandler := apierrors.NewErrorHandler(a.Logger, a.Config.Logging.Development)
	r.NotFound(errorHandler.NotFound)
	r.MethodNotAllowed(errorHandler.MethodNotAllowed)

	a.Router = r
}

// setupAPIRoutes registers all /api endpoints.
func (a *Application) setupAPIRoutes(r chi.Router) {
	r.Route("/api", func(r chi.Router) {
		r.Use(render.SetContentType(render.ContentTypeJSON))

		tradeHandler := handlers.NewTradeHandler(a.Services.Trade, a.Logger)
		tradeHandler.RegisterRoutes(r)

		taxLotHandler := handlers.NewTaxLotHandler(a.Services.TaxLot, a.Logger)
		taxLotHandler.RegisterRoutes(r)

		analyticsHandler := handlers.NewAnalyticsHandler(a.Services.Analytics, a.Logger)
		analyticsHandler.RegisterRoutes(r)

		healthHandler := handlers.NewHealthHandler(a.Services.Health, a.Logger)
		healthHandler.RegisterRoutes(r)
	})
}

// getCORSConfig builds the CORS policy from configuration.
func (a *Application) getCORSConfig() customMiddleware.CORSConfig {
	return customMiddleware.CORSConfig{
		AllowedOrigins: a.Config.Security.AllowedOrigins,
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{
			"Accept",
			"Authorization",
			"Content-Type",
			"X-Request-ID",
			"X-Requested-With",
		},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
		Logger:           a.Logger,
	}
}

// createServer builds the HTTP server from configured timeouts.
func (a *Application) createServer() {
	a.Server = &http.Server{
		Addr:           fmt.Sprintf(":%d", a.Config.Server.Port),
		Handler:        a.Router,
		ReadTimeout:    a.Config.Server.ReadTimeout,
		WriteTimeout:   a.Config.Server.WriteTimeout,
		IdleTimeout:    a.Config.Server.IdleTimeout,
		MaxHeaderBytes: a.Config.Server.MaxHeaderBytes,
	}
}

// Start runs the HTTP server. It blocks until the server exits and
// returns nil on graceful shutdown.
func (a *Application) Start(ctx context.Context) error {
	a.Logger.InfoContext(ctx, "HTTP server listening",
		slog.String("addr", a.Server.Addr))

	if err := a.Server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

// Stop gracefully shuts down the server and observability providers.
func (a *Application) Stop(ctx context.Context) error {
	a.Logger.InfoContext(ctx, "shutting down application")

	shutdownCtx, cancel := context.WithTimeout(ctx, a.Config.Server.ShutdownTimeout)
	defer cancel()

	if err := a.Server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown error: %w", err)
	}

	if a.OTelProviders != nil {
		if err := a.OTelProviders.Shutdown(shutdownCtx); err != nil {
			a.Logger.ErrorContext(ctx, "error shutting down OpenTelemetry",
				slog.String("error", err.Error()))
		}
	}

	a.Logger.InfoContext(ctx, "application shutdown complete",
		slog.Duration("drain_budget", a.Config.Server.ShutdownTimeout))
	return nil
}
