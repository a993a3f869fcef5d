package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	httpSwagger "github.com/swaggo/http-swagger/v2"

	_ "github.com/khanxayitrp/loan-system-sub000/docs"
	"github.com/khanxayitrp/loan-system-sub000/internal/api/handler"
	mw "github.com/khanxayitrp/loan-system-sub000/internal/api/middleware"
	"github.com/khanxayitrp/loan-system-sub000/internal/config"
	"github.com/khanxayitrp/loan-system-sub000/internal/domain/application"
	"github.com/khanxayitrp/loan-system-sub000/internal/domain/payment"
)

func SetupRouter(appService application.ApplicationService, ledger payment.LedgerService, cfg *config.Config, logger *slog.Logger) *chi.Mux {
	router := chi.NewRouter()

	setupMiddleware(router, cfg, logger)
	setupMetricsEndpoint(router, cfg, logger)
	setupApplicationRoutes(router, appService, ledger, cfg, logger)
	router.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok"}`))
	})
	setupSwaggerEndpoint(router, logger)

	return router
}

func setupMiddleware(router *chi.Mux, cfg *config.Config, logger *slog.Logger) {
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(mw.StructuredLogger(logger))
	router.Use(middleware.Recoverer)
	router.Use(middleware.Compress(5))
	router.Use(middleware.Timeout(60 * time.Second))
	router.Use(mw.NewRateLimiterMiddleware(cfg.Server.RateLimit, logger).Middleware)
	router.Use(mw.MetricsMiddleware())
}

func setupMetricsEndpoint(router *chi.Mux, cfg *config.Config, logger *slog.Logger) {
	metricsPath := cfg.Metrics.Path
	if metricsPath == "" {
		metricsPath = "/metrics"
	}
	logger.Info("Setting up Prometheus metrics endpoint", "path", metricsPath)
	router.Handle(metricsPath, promhttp.Handler())
}

func setupSwaggerEndpoint(router *chi.Mux, logger *slog.Logger) {
	logger.Info("Setting up Swagger UI endpoint", "path", "/swagger/")
	router.Get("/swagger/*", httpSwagger.WrapHandler)
	router.Get("/swagger", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/swagger/index.html", http.StatusMovedPermanently)
	})
}

func setupApplicationRoutes(router *chi.Mux, appService application.ApplicationService, ledger payment.LedgerService, cfg *config.Config, logger *slog.Logger) {
	appHandler := handler.NewApplicationHandler(appService, logger)
	paymentHandler := handler.NewPaymentHandler(ledger, logger)
	authHandler := handler.NewAuthHandler(*cfg, logger)

	router.Route("/auth", func(r chi.Router) {
		r.Post("/token", authHandler.GenerateBearerToken)
	})

	router.Route("/applications", func(r chi.Router) {
		r.Use(mw.AuthMiddleware(cfg.Server.Auth, logger))
		r.Post("/", appHandler.CreateApplication)
		r.Route("/{applicationID}", func(r chi.Router) {
			r.Get("/", appHandler.GetApplication)
			r.Patch("/terms", appHandler.ReviseTerms)
			r.Post("/confirm", appHandler.Confirm)
			r.Post("/status", appHandler.ChangeStatus)
			r.Get("/schedule", appHandler.GetSchedule)
			r.Get("/outstanding", paymentHandler.GetOutstanding)
			r.Post("/payments", paymentHandler.RecordPayment)
			r.Get("/payments", paymentHandler.ListPayments)
		})
	})
}
