package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/sony/gobreaker/v2"

	"github.com/utafrali/EcommerceGo/pkg/health"
	"github.com/utafrali/EcommerceGo/pkg/httpclient"
	"github.com/utafrali/EcommerceGo/pkg/middleware"
	"github.com/utafrali/EcommerceGo/pkg/tracing"
	"github.com/utafrali/EcommerceGo/services/search/internal/auction"
	"github.com/utafrali/EcommerceGo/services/search/internal/backend"
	esbackend "github.com/utafrali/EcommerceGo/services/search/internal/backend/elasticsearch"
	"github.com/utafrali/EcommerceGo/services/search/internal/backend/intelligentsearch"
	"github.com/utafrali/EcommerceGo/services/search/internal/backend/memory"
	"github.com/utafrali/EcommerceGo/services/search/internal/config"
	handler "github.com/utafrali/EcommerceGo/services/search/internal/handler/http"
	"github.com/utafrali/EcommerceGo/services/search/internal/merge"
	"github.com/utafrali/EcommerceGo/services/search/internal/service"
	"github.com/utafrali/EcommerceGo/services/search/internal/settings"
)

// App wires together all dependencies and runs the search service.
type App struct {
	cfg            *config.Config
	logger         *slog.Logger
	httpServer     *http.Server
	tracerShutdown func(context.Context) error
}

// NewApp creates a new application instance, initializing all dependencies.
func NewApp(cfg *config.Config, logger *slog.Logger) (*App, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	// Initialize OpenTelemetry tracing.
	tracerShutdown, err := tracing.InitTracer(ctx, cfg.Tracing)
	if err != nil {
		return nil, fmt.Errorf("init tracer: %w", err)
	}

	baseClient := httpclient.New(httpclient.Config{
		Timeout:         cfg.HTTPClient.Timeout,
		MaxRetries:      cfg.HTTPClient.MaxRetries,
		RetryWaitMin:    cfg.HTTPClient.RetryWaitMin,
		RetryWaitMax:    cfg.HTTPClient.RetryWaitMax,
		MaxConnsPerHost: 100,
	})
	// The auction client issues exactly one request per call.
	auctionBase := httpclient.New(httpclient.Config{
		Timeout:         cfg.HTTPClient.Timeout,
		MaxConnsPerHost: 100,
		UserAgent:       cfg.AuctionUserAgent,
	})

	backendBreaker := newBreaker(baseClient, "search-backend", cfg, logger)
	settingsBreaker := newBreaker(baseClient, "settings", cfg, logger)
	auctionBreaker := newBreaker(auctionBase, "auction", cfg, logger)

	healthHandler := health.NewHandler()

	// Initialize the search backend based on configuration.
	var (
		raw    backend.Backend
		extras backend.Extras
	)
	switch cfg.SearchBackend {
	case config.BackendElasticsearch:
		es, err := esbackend.New(cfg.ElasticsearchURL, cfg.ElasticsearchIndex, logger)
		if err != nil {
			return nil, errors.Join(fmt.Errorf("init elasticsearch backend: %w", err), tracerShutdown(ctx))
		}
		raw = es
		logger.Info("elasticsearch search backend initialized",
			slog.String("url", cfg.ElasticsearchURL),
			slog.String("index", cfg.ElasticsearchIndex),
		)
	case config.BackendMemory:
		raw = memory.New()
		logger.Info("in-memory search backend initialized")
	default:
		is := intelligentsearch.New(backendBreaker, cfg.IntelligentSearchURL, logger)
		raw, extras = is, is
		logger.Info("intelligent search backend initialized",
			slog.String("url_template", cfg.IntelligentSearchURL),
		)
	}

	if pinger, ok := raw.(backend.Pinger); ok {
		healthHandler.Register("search_backend", pinger.Ping)
	} else {
		healthHandler.Register("search_backend", breakerCheck(backendBreaker))
	}
	healthHandler.RegisterOptional("auction", breakerCheck(auctionBreaker))
	healthHandler.RegisterOptional("settings", breakerCheck(settingsBreaker))

	if cfg.CatalogSeedPath != "" {
		if err := seedCatalog(ctx, raw, cfg.CatalogSeedPath, logger); err != nil {
			return nil, errors.Join(err, tracerShutdown(ctx))
		}
	}

	// Build the service layer.
	searchService := service.NewSearchService(service.Dependencies{
		Backend:  backend.Instrument(raw, cfg.SearchBackend, cfg.SlowBackendThreshold, logger),
		Extras:   extras,
		Settings: settings.NewFetcher(settingsBreaker, cfg.SettingsURLTemplate, logger),
		Auction: auction.NewClient(auctionBreaker, auction.ClientConfig{
			URL:       cfg.AuctionURL,
			UserAgent: cfg.AuctionUserAgent,
		}, logger),
		Merger: &merge.Merger{
			ShowAdTag:            cfg.SponsoredTagVisible,
			AdTagLabel:           cfg.SponsoredTagLabel,
			MaxConcurrentFetches: cfg.SponsoredMaxFetches,
			Logger:               logger,
		},
		BuildOptions: auction.BuildOptions{
			DefaultSlots:       cfg.SponsoredDefaultSlots,
			ExpandCategoryPath: cfg.SponsoredCategoryPath,
		},
		Logger: logger,
	})
	logger.Info("sponsored products configured",
		slog.String("auction_url", cfg.AuctionURL),
		slog.Int("default_slots", cfg.SponsoredDefaultSlots),
		slog.Bool("category_full_path", cfg.SponsoredCategoryPath),
		slog.Bool("tag_visible", cfg.SponsoredTagVisible),
	)

	// HTTP router.
	corsCfg := middleware.DefaultCORSConfig()
	corsCfg.AllowedOrigins = cfg.CORSAllowedOrigins
	corsCfg.Environment = cfg.Environment

	searchHandler := handler.NewSearchHandler(searchService, cfg.DefaultTenant(), logger)
	router := handler.NewRouter(searchHandler, healthHandler, handler.RouterConfig{
		ServiceName:       "search",
		RequestTimeout:    cfg.RequestTimeout,
		CORS:              corsCfg,
		PassthroughMaxAge: cfg.CacheMaxAge,
		PprofEnabled:      cfg.PprofEnabled,
		PprofAllowedCIDRs: cfg.PprofAllowedCIDRs,
	}, logger)

	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:           router,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      cfg.RequestTimeout + 5*time.Second,
		IdleTimeout:       60 * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
	}

	return &App{
		cfg:            cfg,
		logger:         logger,
		httpServer:     httpServer,
		tracerShutdown: tracerShutdown,
	}, nil
}

func newBreaker(client *httpclient.Client, name string, cfg *config.Config, logger *slog.Logger) *httpclient.CircuitBreakerClient {
	cbCfg := httpclient.CircuitBreakerConfig{
		Name:         name,
		MaxRequests:  cfg.CircuitBreaker.MaxRequests,
		Interval:     cfg.CircuitBreaker.Interval,
		Timeout:      cfg.CircuitBreaker.Timeout,
		FailureRatio: cfg.CircuitBreaker.FailureRatio,
		MinRequests:  cfg.CircuitBreaker.MinRequests,
	}
	logger.Info("circuit breaker initialized",
		slog.String("name", name),
		slog.Uint64("max_requests", uint64(cbCfg.MaxRequests)),
		slog.Duration("timeout", cbCfg.Timeout),
		slog.Uint64("min_requests", uint64(cbCfg.MinRequests)),
	)
	return httpclient.NewCircuitBreakerClient(client, cbCfg, logger)
}

// breakerCheck reports a dependency as down while its circuit is open.
func breakerCheck(cb *httpclient.CircuitBreakerClient) health.Checker {
	return func(context.Context) error {
		if cb.State() == gobreaker.StateOpen {
			return fmt.Errorf("circuit %s is open", cb.Name())
		}
		return nil
	}
}

// seedCatalog loads a JSON catalog file into backends that accept documents.
func seedCatalog(ctx context.Context, b backend.Backend, path string, logger *slog.Logger) error {
	indexer, ok := b.(backend.Indexer)
	if !ok {
		logger.Warn("search backend does not accept catalog documents, skipping seed",
			slog.String("path", path),
		)
		return nil
	}

	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open catalog seed: %w", err)
	}
	defer f.Close()

	items, err := backend.LoadCatalog(f)
	if err != nil {
		return fmt.Errorf("load catalog seed: %w", err)
	}
	if err := indexer.BulkIndex(ctx, items); err != nil {
		return fmt.Errorf("index catalog seed: %w", err)
	}

	logger.Info("catalog seeded",
		slog.String("path", path),
		slog.Int("items", len(items)),
	)
	return nil
}

// Run starts the HTTP server and blocks until the context is canceled.
func (a *App) Run(ctx context.Context) error {
	errCh := make(chan error, 1)

	go func() {
		a.logger.Info("starting HTTP server",
			slog.String("addr", a.httpServer.Addr),
		)
		if err := a.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		a.logger.Info("shutdown signal received")
	case err := <-errCh:
		return errors.Join(err, a.Shutdown())
	}

	return a.Shutdown()
}

// Shutdown gracefully stops all components.
func (a *App) Shutdown() error {
	a.logger.Info("shutting down application...")

	var errs []error

	// Graceful HTTP server shutdown with a 10-second deadline.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := a.httpServer.Shutdown(shutdownCtx); err != nil {
		a.logger.Error("http server shutdown error", slog.String("error", err.Error()))
		errs = append(errs, err)
	}

	if a.tracerShutdown != nil {
		if err := a.tracerShutdown(shutdownCtx); err != nil {
			a.logger.Error("tracer shutdown error", slog.String("error", err.Error()))
			errs = append(errs, err)
		}
	}

	a.logger.Info("application shutdown complete")
	return errors.Join(errs...)
}
