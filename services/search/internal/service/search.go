package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	apperrors "github.com/utafrali/EcommerceGo/pkg/errors"
	"github.com/utafrali/EcommerceGo/pkg/tracing"
	"github.com/utafrali/EcommerceGo/services/search/internal/auction"
	"github.com/utafrali/EcommerceGo/services/search/internal/backend"
	"github.com/utafrali/EcommerceGo/services/search/internal/domain"
	"github.com/utafrali/EcommerceGo/services/search/internal/merge"
	"github.com/utafrali/EcommerceGo/services/search/internal/signal"
)

const tracerName = "github.com/utafrali/EcommerceGo/services/search/internal/service"

// SettingsFetcher returns a tenant's settings, or nil when they cannot be read.
type SettingsFetcher interface {
	Fetch(ctx context.Context, tenant domain.Tenant) *domain.Settings
}

// AuctionClient runs a sponsored listings auction.
type AuctionClient interface {
	Submit(ctx context.Context, req domain.AuctionRequest, apiKey string) ([]domain.Winner, error)
}

// Dependencies are the collaborators of a SearchService. Extras may be nil
// when the backend has no passthrough endpoints.
type Dependencies struct {
	Backend      backend.Backend
	Extras       backend.Extras
	Settings     SettingsFetcher
	Auction      AuctionClient
	Merger       *merge.Merger
	BuildOptions auction.BuildOptions
	Logger       *slog.Logger
}

// SearchService runs product searches and places sponsored products from an
// auction ahead of the organic results.
type SearchService struct {
	backend   backend.Backend
	extras    backend.Extras
	settings  SettingsFetcher
	auction   AuctionClient
	merger    *merge.Merger
	buildOpts auction.BuildOptions
	logger    *slog.Logger
	tracer    trace.Tracer
}

// NewSearchService creates a new search service.
func NewSearchService(deps Dependencies) *SearchService {
	merger := deps.Merger
	if merger == nil {
		merger = &merge.Merger{ShowAdTag: true, Logger: deps.Logger}
	}
	return &SearchService{
		backend:   deps.Backend,
		extras:    deps.Extras,
		settings:  deps.Settings,
		auction:   deps.Auction,
		merger:    merger,
		buildOpts: deps.BuildOptions,
		logger:    deps.Logger,
		tracer:    tracing.Tracer(tracerName),
	}
}

// ProductSearch returns the backend result for args with sponsored products
// merged in. Only a rejected path or a failing baseline search is an error;
// every augmentation failure falls back to the baseline result.
func (s *SearchService) ProductSearch(ctx context.Context, args domain.SearchArgs) (_ *domain.SearchResult, err error) {
	ctx, span := tracing.StartSpan(ctx, s.tracer, "search.ProductSearch",
		attribute.String("search.path", args.Path),
		attribute.String("tenant.account", args.Tenant.Account),
	)
	defer func() { tracing.EndSpan(span, err) }()

	if err := backend.ValidatePath(args.Path); err != nil {
		return nil, err
	}

	baseline, err := s.backend.ProductSearch(ctx, args)
	if err != nil {
		return nil, fmt.Errorf("product search: %w", err)
	}

	return s.augment(ctx, args, baseline), nil
}

func (s *SearchService) augment(ctx context.Context, args domain.SearchArgs, baseline *domain.SearchResult) *domain.SearchResult {
	if len(baseline.Products) == 0 {
		auctionsTotal.WithLabelValues(outcomeSkippedEmpty).Inc()
		return baseline
	}

	settings := s.fetchSettings(ctx, args.Tenant)
	if !settings.HasKey() {
		s.logger.InfoContext(ctx, "sponsored products disabled, api key is not set",
			slog.String("account", args.Tenant.Account),
		)
		auctionsTotal.WithLabelValues(outcomeSkippedNoKey).Inc()
		return baseline
	}

	facets := s.selectedFacets(ctx, args, baseline)
	signals := signal.NormalizeFacets(facets)
	if !signal.HasKind(signals, domain.SignalCategory) {
		signals = append(signals, signal.CategorySignals(args.Path)...)
	}

	ids := make([]string, len(baseline.Products))
	for i, p := range baseline.Products {
		ids[i] = p.ProductID
	}
	qc := domain.NewSearchQueryContext(args, facets)
	req := auction.BuildRequest(qc, signals, ids, s.buildOpts)

	winners, err := s.runAuction(ctx, req, settings.AdvancedAPIKey)
	if err != nil {
		s.logger.WarnContext(ctx, "auction unavailable, returning organic results",
			slog.String("error", err.Error()),
		)
		auctionsTotal.WithLabelValues(outcomeUnavailable).Inc()
		return baseline
	}
	if len(winners) == 0 {
		auctionsTotal.WithLabelValues(outcomeNoWinners).Inc()
		return baseline
	}

	ctx, span := tracing.StartSpan(ctx, s.tracer, "search.merge",
		attribute.Int("auction.winners", len(winners)),
	)
	merged := s.merger.Merge(ctx, baseline.Products, winners, func(ctx context.Context, id string) (*domain.Product, error) {
		return s.backend.ProductByID(ctx, id, args)
	})
	span.SetAttributes(attribute.Int("search.products", len(merged)))
	tracing.EndSpan(span, nil)

	auctionsTotal.WithLabelValues(outcomeAugmented).Inc()
	s.logger.DebugContext(ctx, "sponsored products merged",
		slog.Int("winners", len(winners)),
		slog.Int("products", len(merged)),
	)
	return baseline.WithProducts(merged)
}

func (s *SearchService) fetchSettings(ctx context.Context, tenant domain.Tenant) *domain.Settings {
	if s.settings == nil {
		return nil
	}
	ctx, span := tracing.StartSpan(ctx, s.tracer, "search.settings")
	defer span.End()
	return s.settings.Fetch(ctx, tenant)
}

// selectedFacets prefers the facets the backend echoed, then the ones in the
// request, and only then asks the backend's facets endpoint.
func (s *SearchService) selectedFacets(ctx context.Context, args domain.SearchArgs, baseline *domain.SearchResult) []domain.Facet {
	if baseline.QueryArgs != nil && len(baseline.QueryArgs.SelectedFacets) > 0 {
		return baseline.QueryArgs.SelectedFacets
	}
	if len(args.SelectedFacets) > 0 {
		return args.SelectedFacets
	}

	ctx, span := tracing.StartSpan(ctx, s.tracer, "search.facets")
	res, err := s.backend.Facets(ctx, args)
	tracing.EndSpan(span, err)
	if err != nil {
		s.logger.WarnContext(ctx, "facets unavailable for auction targeting",
			slog.String("error", err.Error()),
		)
		return nil
	}
	return res.SelectedFacets()
}

func (s *SearchService) runAuction(ctx context.Context, req domain.AuctionRequest, apiKey string) (_ []domain.Winner, err error) {
	if s.auction == nil {
		return nil, auction.ErrUnavailable
	}

	ctx, span := tracing.StartSpan(ctx, s.tracer, "search.auction",
		attribute.Int("auction.slots", req.Slots),
		attribute.Int("auction.candidates", len(req.ProductIDs)),
		attribute.Bool("auction.query", req.SearchQuery != ""),
		attribute.Bool("auction.category", req.CategoryID != ""),
	)
	defer func() { tracing.EndSpan(span, err) }()

	start := time.Now()
	winners, err := s.auction.Submit(ctx, req, apiKey)
	auctionDuration.Observe(time.Since(start).Seconds())
	return winners, err
}

// Facets returns the backend facets for args.
func (s *SearchService) Facets(ctx context.Context, args domain.SearchArgs) (*domain.FacetsResult, error) {
	if err := backend.ValidatePath(args.Path); err != nil {
		return nil, err
	}
	res, err := s.backend.Facets(ctx, args)
	if err != nil {
		return nil, fmt.Errorf("facets: %w", err)
	}
	return res, nil
}

// Banners forwards the backend banners for args.
func (s *SearchService) Banners(ctx context.Context, args domain.SearchArgs) (json.RawMessage, error) {
	if err := backend.ValidatePath(args.Path); err != nil {
		return nil, err
	}
	return s.passthrough("banners", func(e backend.Extras) (json.RawMessage, error) {
		return e.Banners(ctx, args)
	})
}

// Suggestions forwards the backend search suggestions for a query.
func (s *SearchService) Suggestions(ctx context.Context, args domain.SearchArgs) (json.RawMessage, error) {
	return s.passthrough("search suggestions", func(e backend.Extras) (json.RawMessage, error) {
		return e.SearchSuggestions(ctx, args)
	})
}

// Autocomplete forwards the backend autocomplete suggestions for a query.
func (s *SearchService) Autocomplete(ctx context.Context, args domain.SearchArgs) (json.RawMessage, error) {
	return s.passthrough("autocomplete", func(e backend.Extras) (json.RawMessage, error) {
		return e.AutocompleteSuggestions(ctx, args)
	})
}

// Correction forwards the backend spelling correction for a query.
func (s *SearchService) Correction(ctx context.Context, args domain.SearchArgs) (json.RawMessage, error) {
	return s.passthrough("correction", func(e backend.Extras) (json.RawMessage, error) {
		return e.Correction(ctx, args)
	})
}

// TopSearches forwards the tenant's most frequent searches.
func (s *SearchService) TopSearches(ctx context.Context, tenant domain.Tenant) (json.RawMessage, error) {
	return s.passthrough("top searches", func(e backend.Extras) (json.RawMessage, error) {
		return e.TopSearches(ctx, tenant)
	})
}

// SponsoredProducts forwards the backend's own sponsored listing for args.
func (s *SearchService) SponsoredProducts(ctx context.Context, args domain.SearchArgs) (json.RawMessage, error) {
	if err := backend.ValidatePath(args.Path); err != nil {
		return nil, err
	}
	return s.passthrough("sponsored products", func(e backend.Extras) (json.RawMessage, error) {
		return e.SponsoredProducts(ctx, args)
	})
}

func (s *SearchService) passthrough(name string, call func(backend.Extras) (json.RawMessage, error)) (json.RawMessage, error) {
	if s.extras == nil {
		return nil, apperrors.ServiceUnavailable(name + " is not supported by the configured search backend")
	}
	res, err := call(s.extras)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	return res, nil
}
