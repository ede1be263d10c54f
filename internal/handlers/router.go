// Package handlers wires the HTTP surface of the connector.
package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/kevin07696/tsys-connector/internal/handlers/cron"
	"github.com/kevin07696/tsys-connector/internal/handlers/payment"
	"github.com/kevin07696/tsys-connector/internal/handlers/respond"
	"github.com/kevin07696/tsys-connector/pkg/middleware"
	"github.com/kevin07696/tsys-connector/pkg/observability"
	"github.com/kevin07696/tsys-connector/pkg/resilience"
	"go.uber.org/zap"
)

// RouterConfig collects the handlers and middleware the router mounts
type RouterConfig struct {
	Payment     *payment.Handler
	Recurring   *cron.RecurringHandler
	RateLimiter *middleware.RateLimiter // nil disables rate limiting
	APIToken    string                  // bearer token for /api/v1; empty disables the check
	Timeouts    *resilience.TimeoutConfig
	Logger      *zap.Logger
}

// NewRouter builds the chi router:
//
//	POST /api/v1/payments
//	GET  /api/v1/processors/{id}/public-key
//	GET  /api/v1/payments/form-fields
//	POST /cron/process-recurring
func NewRouter(cfg RouterConfig) *chi.Mux {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(observability.HTTPMetrics)

	r.Route("/api/v1", func(api chi.Router) {
		if cfg.RateLimiter != nil {
			api.Use(cfg.RateLimiter.Middleware)
		}
		api.Use(middleware.BearerAuth(cfg.APIToken, cfg.Logger))
		api.Use(middleware.Timeout(cfg.Timeouts))

		api.Post("/payments", cfg.Payment.DoPayment)
		api.Get("/payments/form-fields", cfg.Payment.FormFields)
		api.Get("/processors/{id}/public-key", cfg.Payment.PublicKey)
	})

	// The cron run carries its own, longer timeout.
	r.Post("/cron/process-recurring", cfg.Recurring.ProcessRecurring)

	r.NotFound(func(w http.ResponseWriter, req *http.Request) {
		respond.Error(w, cfg.Logger, http.StatusNotFound, "not found")
	})

	return r
}
