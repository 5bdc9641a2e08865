package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/utafrali/EcommerceGo/pkg/health"
	"github.com/utafrali/EcommerceGo/pkg/middleware"
)

// RouterConfig holds the HTTP concerns configured per deployment.
type RouterConfig struct {
	ServiceName    string
	RequestTimeout time.Duration
	CORS           middleware.CORSConfig
	// PassthroughMaxAge is the client cache lifetime for suggestion, banner
	// and top-search responses. Zero disables caching.
	PassthroughMaxAge time.Duration
	PprofEnabled      bool
	PprofAllowedCIDRs []string
}

// NewRouter creates a chi router with all search service routes registered.
func NewRouter(
	searchHandler *SearchHandler,
	healthHandler *health.Handler,
	cfg RouterConfig,
	logger *slog.Logger,
) http.Handler {
	if cfg.ServiceName == "" {
		cfg.ServiceName = "search"
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 30 * time.Second
	}

	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.CORS(cfg.CORS))
	r.Use(middleware.Recovery(logger))
	r.Use(chimw.Compress(5))
	r.Use(chimw.Timeout(cfg.RequestTimeout))
	r.Use(middleware.RequestLogging(logger))
	r.Use(middleware.RequestLogger(logger))
	r.Use(middleware.Tracing(cfg.ServiceName))
	r.Use(middleware.PrometheusMetrics(cfg.ServiceName))

	// Health check endpoints
	r.Get("/health/live", healthHandler.LivenessHandler())
	r.Get("/health/ready", healthHandler.ReadinessHandler())
	r.Handle("/metrics", promhttp.Handler())

	if cfg.PprofEnabled {
		middleware.RegisterPprof(r, cfg.PprofAllowedCIDRs, logger)
	}

	r.Route("/api/v1/search", func(r chi.Router) {
		r.Get("/products", searchHandler.ProductSearch)
		r.Get("/products/*", searchHandler.ProductSearch)
		r.Get("/facets", searchHandler.Facets)
		r.Get("/facets/*", searchHandler.Facets)

		r.Group(func(r chi.Router) {
			r.Use(middleware.CacheControl(cfg.PassthroughMaxAge))
			r.Get("/banners", searchHandler.Banners)
			r.Get("/banners/*", searchHandler.Banners)
			r.Get("/sponsored", searchHandler.SponsoredProducts)
			r.Get("/sponsored/*", searchHandler.SponsoredProducts)
			r.Get("/suggestions", searchHandler.Suggestions)
			r.Get("/autocomplete", searchHandler.Autocomplete)
			r.Get("/correction", searchHandler.Correction)
			r.Get("/top", searchHandler.TopSearches)
		})
	})

	return r
}
