package server

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"hrpay/internal/platform/config"
	"hrpay/internal/platform/metrics"
	"hrpay/internal/transport/http/api"
	payrollhandler "hrpay/internal/transport/http/handlers/payroll"
	"hrpay/internal/transport/http/middleware"
)

func NewRouter(cfg config.Config, payrollHandler *payrollhandler.Handler, collector *metrics.Collector, ready func(context.Context) error) http.Handler {
	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.Logger(nil, collector))
	router.Use(chimw.Recoverer)
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORSAllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", "X-Request-ID", middleware.IdempotencyHeader},
		ExposedHeaders:   []string{"X-Request-ID", "Content-Disposition"},
		AllowCredentials: false,
		MaxAge:           300,
	}))
	router.Use(middleware.SecureHeaders(cfg.Environment == "production"))
	router.Use(middleware.BodyLimit(cfg.MaxBodyBytes))

	router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	router.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		if ready != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()
			if err := ready(ctx); err != nil {
				http.Error(w, "store not ready", http.StatusServiceUnavailable)
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
	})

	if cfg.MetricsEnabled {
		router.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
			api.Success(w, collector.Snapshot(), middleware.GetRequestID(r.Context()))
		})
	}

	router.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.MutationRateLimit(cfg.RateLimitWrites, cfg.RateLimitWindow))
		payrollHandler.RegisterRoutes(r)
	})
	return router
}
