package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"hardwarelens-api/internal/handler"
	"hardwarelens-api/internal/middleware"
)

// Config holds the configuration for creating a router.
type Config struct {
	Handler        *handler.Handler
	EnrichHandler  *handler.EnrichHandler
	AdminHandler   *handler.AdminHandler
	RateLimiter    middleware.Checker
	AllowedOrigins []string
	AdminKeys      []string
	Logger         *zap.Logger
}

// New creates and configures the HTTP router.
func New(cfg Config) *chi.Mux {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	r := chi.NewRouter()

	// Global middleware stack (applies to ALL routes)
	r.Use(middleware.Recovery(logger))
	r.Use(middleware.RequestID)
	r.Use(middleware.Logging(logger))

	// Probes
	if cfg.Handler != nil {
		r.Get("/api/status", cfg.Handler.Status)
		r.Get("/api/v1/health", cfg.Handler.Health)
		r.Get("/api/v1/ready", cfg.Handler.Ready)
	}

	// Barcode enrichment. Foreign origins are refused before CORS runs, and
	// preflights are answered before the rate limiter counts them.
	if cfg.EnrichHandler != nil {
		r.Route("/api/enrich", func(r chi.Router) {
			r.Use(middleware.Origin(cfg.AllowedOrigins))
			r.Use(cors.Handler(cors.Options{
				AllowOriginFunc: func(r *http.Request, origin string) bool {
					return middleware.OriginAllowed(r, origin, cfg.AllowedOrigins)
				},
				AllowedMethods: []string{"GET", "POST", "OPTIONS"},
				AllowedHeaders: []string{"Content-Type", middleware.RequestIDHeader},
				ExposedHeaders: []string{middleware.RequestIDHeader},
				MaxAge:         300,
			}))
			if cfg.RateLimiter != nil {
				r.Use(middleware.RateLimit(cfg.RateLimiter, logger))
			}

			r.Get("/", cfg.EnrichHandler.Recent)
			r.Post("/", cfg.EnrichHandler.Submit)
		})
	}

	// Admin endpoints are only mounted when keys are configured.
	if cfg.AdminHandler != nil && len(cfg.AdminKeys) > 0 {
		r.Route("/api/v1/admin", func(r chi.Router) {
			r.Use(middleware.APIKey(cfg.AdminKeys))
			r.Get("/stats", cfg.AdminHandler.GetStats)
			r.Get("/health", cfg.AdminHandler.GetHealth)
		})
	}

	return r
}
