package handler

import (
	"log/slog"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/offerdesk/tracker/internal/middleware"
)

// RouterConfig wires handlers and middleware settings into the router.
type RouterConfig struct {
	Logger         *slog.Logger
	Base           *Handler
	Health         *HealthHandler
	Metrics        *MetricsHandler // optional
	Track          *TrackHandler
	Clicks         *ClickHandler
	AffiliateLinks *AffiliateLinkHandler
	Jobs           *JobsHandler

	AdminVerifier middleware.TokenVerifier
	RateLimit     middleware.RateLimitConfig
	CORSOrigins   []string
	IsDevelopment bool
	LogClientIP   bool
	MaxBodySize   int64
	TracerName    string
}

// NewRouter configures the chi router with all routes and middleware.
func NewRouter(cfg RouterConfig) *chi.Mux {
	r := chi.NewRouter()

	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestID)
	r.Use(middleware.Tracing(cfg.TracerName))
	r.Use(middleware.Logger(cfg.Logger, cfg.LogClientIP))
	r.Use(middleware.Recoverer(cfg.Logger))
	r.Use(middleware.Security(middleware.SecurityConfig{IsDevelopment: cfg.IsDevelopment}))

	// Health endpoints (no auth required)
	r.Get("/healthz", cfg.Health.Healthz)
	r.Get("/readyz", cfg.Health.Readyz)
	if cfg.Metrics != nil {
		r.Get("/metrics", cfg.Metrics.Metrics)
	}

	r.Get("/", cfg.Base.Hello)

	rateLimit := middleware.RateLimitTrack(cfg.RateLimit)
	adminAuth := middleware.AdminAuth(cfg.AdminVerifier, cfg.Logger)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.CORS(cfg.CORSOrigins))
		r.Use(middleware.MaxBodySize(cfg.MaxBodySize))

		// Server-side click form, public like the tracking links.
		r.With(rateLimit).Post("/clicks", cfg.Clicks.Create)

		r.With(adminAuth).Post("/affiliate-links", cfg.AffiliateLinks.Create)
	})

	r.Route("/internal", func(r chi.Router) {
		r.Use(adminAuth)
		r.Post("/jobs/domain-health", cfg.Jobs.DomainHealth)
	})

	// Public tracking links
	r.Group(func(r chi.Router) {
		r.Use(middleware.TrackHeaders)
		r.Use(rateLimit)

		r.Get("/track/{first}/{second}", cfg.Track.Track)
		r.Get("/go/{affiliateID}/{offerID}", cfg.Track.Delayed)
		r.Get("/{affiliateID}/{offerID}", cfg.Track.OfferLink)
	})

	r.NotFound(cfg.Base.NotFound)
	r.MethodNotAllowed(cfg.Base.MethodNotAllowed)

	return r
}
