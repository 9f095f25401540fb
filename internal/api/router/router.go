package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	httpSwagger "github.com/swaggo/http-swagger"

	_ "github.com/pratik-mahalle/muscleai/docs"
	"github.com/pratik-mahalle/muscleai/internal/api/handlers"
	"github.com/pratik-mahalle/muscleai/internal/api/middleware"
	"github.com/pratik-mahalle/muscleai/internal/config"
	"github.com/pratik-mahalle/muscleai/internal/pkg/logger"
	"github.com/pratik-mahalle/muscleai/internal/pkg/metrics"
)

type Handlers struct {
	Health   *handlers.HealthHandler
	Analysis *handlers.AnalysisHandler
	Quota    *handlers.QuotaHandler
	Billing  *handlers.BillingHandler
}

func New(cfg *config.Config, log *logger.Logger, h *Handlers) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimiddleware.RequestID)
	r.Use(middleware.RequestID())
	r.Use(metrics.Middleware)
	r.Use(middleware.Logger(log))
	r.Use(middleware.Recovery(log))
	r.Use(middleware.DefaultCORS(cfg.Server.FrontendURL))
	r.Use(middleware.RateLimit(cfg.Server.RequestsPerSecond, cfg.Server.Burst))

	authOpts := middleware.AuthOptions{
		JWTSecret:       cfg.Auth.JWTSecret,
		TrustUserHeader: cfg.Auth.TrustUserHeader,
	}

	// Operational endpoints
	r.Group(func(r chi.Router) {
		r.Get("/swagger/*", httpSwagger.WrapHandler)
		r.Handle("/metrics", metrics.Handler())

		r.Get("/health", h.Health.Healthz)
		r.Get("/healthz", h.Health.Healthz)
		r.Get("/readyz", h.Health.Readyz)
	})

	r.Group(func(r chi.Router) {
		r.Use(middleware.SecurityHeaders(cfg.Server.Environment == "production"))

		// Stripe signs the body; no caller identity
		r.Post("/api/v1/webhooks/stripe", h.Billing.StripeWebhook)

		// Identity is optional: anonymous callers get analyses without metering
		r.Group(func(r chi.Router) {
			r.Use(middleware.OptionalAuthMiddleware(authOpts))

			r.Get("/api/v1/billing/plans", h.Billing.ListPlans)
			r.Get("/api/billing/plans", h.Billing.ListPlans)

			if !cfg.Auth.RequireAuth {
				r.Post("/api/v1/analyze", h.Analysis.Analyze)
				r.Post("/api/analyze", h.Analysis.Analyze)
			}
		})

		// Protected routes (require authentication)
		r.Group(func(r chi.Router) {
			r.Use(middleware.AuthMiddleware(authOpts))

			if cfg.Auth.RequireAuth {
				r.Post("/api/v1/analyze", h.Analysis.Analyze)
				r.Post("/api/analyze", h.Analysis.Analyze)
			}

			r.Get("/api/v1/quota", h.Quota.Get)
			r.Get("/api/quota", h.Quota.Get)

			r.Route("/api/v1/billing", func(r chi.Router) {
				r.Use(middleware.UserRateLimit(cfg.Server.RequestsPerSecond, cfg.Server.Burst))

				r.Get("/subscription", h.Billing.GetSubscription)
				r.Post("/checkout", h.Billing.CreateCheckoutSession)
				r.Post("/cancel", h.Billing.CancelSubscription)
			})
		})
	})

	return r
}
