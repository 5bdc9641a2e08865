package http

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/utafrali/EcommerceGo/pkg/health"
	"github.com/utafrali/EcommerceGo/pkg/httpclient"
	"github.com/utafrali/EcommerceGo/pkg/middleware"
	"github.com/utafrali/EcommerceGo/services/search/internal/backend"
	"github.com/utafrali/EcommerceGo/services/search/internal/backend/intelligentsearch"
	"github.com/utafrali/EcommerceGo/services/search/internal/backend/memory"
	"github.com/utafrali/EcommerceGo/services/search/internal/domain"
	"github.com/utafrali/EcommerceGo/services/search/internal/merge"
	"github.com/utafrali/EcommerceGo/services/search/internal/service"
)

type fakeSettings struct{ key string }

func (f fakeSettings) Fetch(context.Context, domain.Tenant) *domain.Settings {
	return &domain.Settings{AdvancedAPIKey: f.key}
}

type fakeAuction struct {
	mu      sync.Mutex
	winners []domain.Winner
	last    domain.AuctionRequest
}

func (f *fakeAuction) Submit(_ context.Context, req domain.AuctionRequest, _ string) ([]domain.Winner, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.last = req
	return f.winners, nil
}

type recordingExtras struct {
	mu     sync.Mutex
	args   domain.SearchArgs
	tenant domain.Tenant
}

func (e *recordingExtras) record(args domain.SearchArgs) (json.RawMessage, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.args = args
	return json.RawMessage(`{"ok":true}`), nil
}

func (e *recordingExtras) Banners(_ context.Context, a domain.SearchArgs) (json.RawMessage, error) {
	return e.record(a)
}

func (e *recordingExtras) SearchSuggestions(_ context.Context, a domain.SearchArgs) (json.RawMessage, error) {
	return e.record(a)
}

func (e *recordingExtras) AutocompleteSuggestions(_ context.Context, a domain.SearchArgs) (json.RawMessage, error) {
	return e.record(a)
}

func (e *recordingExtras) Correction(_ context.Context, a domain.SearchArgs) (json.RawMessage, error) {
	return e.record(a)
}

func (e *recordingExtras) SponsoredProducts(_ context.Context, a domain.SearchArgs) (json.RawMessage, error) {
	return e.record(a)
}

func (e *recordingExtras) TopSearches(_ context.Context, t domain.Tenant) (json.RawMessage, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.tenant = t
	return json.RawMessage(`["shoes"]`), nil
}

var _ backend.Extras = (*recordingExtras)(nil)

type testEnv struct {
	router  http.Handler
	auction *fakeAuction
	extras  *recordingExtras
}

func newTestEnv(t *testing.T, extras bool) *testEnv {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	catalog := memory.New()
	catalog.Add(
		memory.Item{Product: domain.Product{ProductID: "A", ProductName: "Trail Shoe"}, CategoryPath: []string{"shoes"}},
		memory.Item{Product: domain.Product{ProductID: "B", ProductName: "Road Shoe"}, CategoryPath: []string{"shoes"}},
		memory.Item{Product: domain.Product{ProductID: "X", ProductName: "Sun Hat"}, CategoryPath: []string{"apparel"}},
	)

	env := &testEnv{auction: &fakeAuction{}}
	deps := service.Dependencies{
		Backend:  catalog,
		Settings: fakeSettings{key: "key-1"},
		Auction:  env.auction,
		Merger:   &merge.Merger{ShowAdTag: true, AdTagLabel: "Sponsored", MaxConcurrentFetches: 2, Logger: logger},
		Logger:   logger,
	}
	if extras {
		env.extras = &recordingExtras{}
		deps.Extras = env.extras
	}

	svc := service.NewSearchService(deps)
	h := NewSearchHandler(svc, domain.Tenant{Account: "store", Workspace: "master", Locale: "en-US"}, logger)
	env.router = NewRouter(h, health.NewHandler(), RouterConfig{
		CORS:              middleware.DefaultCORSConfig(),
		PassthroughMaxAge: time.Minute,
	}, logger)
	return env
}

func (e *testEnv) get(t *testing.T, target string, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, target, nil)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

type envelope struct {
	Data  json.RawMessage `json:"data"`
	Error *struct {
		Code    string            `json:"code"`
		Message string            `json:"message"`
		Fields  map[string]string `json:"fields"`
	} `json:"error"`
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env), rec.Body.String())
	return env
}

func productIDs(t *testing.T, data json.RawMessage) []string {
	t.Helper()
	var res domain.SearchResult
	require.NoError(t, json.Unmarshal(data, &res))
	out := make([]string, len(res.Products))
	for i, p := range res.Products {
		out[i] = p.ProductID
	}
	return out
}

// ---------------------------------------------------------------------------
// ProductSearch
// ---------------------------------------------------------------------------

func TestProductSearch_PlacesWinnersFirst(t *testing.T) {
	env := newTestEnv(t, false)
	env.auction.winners = []domain.Winner{{ProductID: "X", Rank: 0, ResolvedBidID: "bid-x"}}

	rec := env.get(t, "/api/v1/search/products/c/shoes?query=shoe&sponsoredCount=1", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	body := decode(t, rec)
	assert.Nil(t, body.Error)
	assert.Equal(t, []string{"X", "A", "B"}, productIDs(t, body.Data))
	assert.Equal(t, 1, env.auction.last.Slots)
}

func TestProductSearch_NoWinnersReturnsBaseline(t *testing.T) {
	env := newTestEnv(t, false)

	rec := env.get(t, "/api/v1/search/products?query=shoe", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{"A", "B"}, productIDs(t, decode(t, rec).Data))
}

func TestProductSearch_InvalidParams(t *testing.T) {
	tests := []struct {
		name   string
		target string
		code   string
	}{
		{"page not an integer", "/api/v1/search/products?page=abc", "INVALID_INPUT"},
		{"leap not a boolean", "/api/v1/search/products?leap=maybe", "INVALID_INPUT"},
		{"hideUnavailableItems not a boolean", "/api/v1/search/products?hideUnavailableItems=x", "INVALID_INPUT"},
		{"facet without separator", "/api/v1/search/products?selectedFacets=brand", "INVALID_INPUT"},
		{"count above maximum", "/api/v1/search/products?count=500", "VALIDATION_ERROR"},
		{"negative page", "/api/v1/search/products?page=-1", "VALIDATION_ERROR"},
		{"unknown operator", "/api/v1/search/products?operator=xor", "VALIDATION_ERROR"},
		{"too many sponsored slots", "/api/v1/search/products?sponsoredCount=99", "VALIDATION_ERROR"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t, false)
			rec := env.get(t, tt.target, nil)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			body := decode(t, rec)
			require.NotNil(t, body.Error)
			assert.Equal(t, tt.code, body.Error.Code)
		})
	}
}

func TestProductSearch_ValidationErrorNamesField(t *testing.T) {
	env := newTestEnv(t, false)

	rec := env.get(t, "/api/v1/search/products?count=500", nil)
	body := decode(t, rec)
	require.NotNil(t, body.Error)
	assert.Contains(t, body.Error.Fields, "count")
}

func TestProductSearch_PathTraversalRejected(t *testing.T) {
	env := newTestEnv(t, false)

	rec := env.get(t, "/api/v1/search/products/c/%2E%2E/secret", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

// ---------------------------------------------------------------------------
// Request binding
// ---------------------------------------------------------------------------

func TestBindSearchArgs(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet,
		"/?query=%20red%20shoe%20&page=2&count=10&sort=name:asc&operator=and&fuzzy=auto"+
			"&leap=true&hideUnavailableItems=false&regionId=r1&sponsoredCount=3&deepestCategoryOnly=1"+
			"&selectedFacets=brand:acme&selectedFacets=c:shoes"+
			"&searchState="+"map%3Dc%26priceRange%3D1",
		nil)
	req.Header.Set(middleware.ShippingOptionsHeader, "delivery, pickup-in-point,")

	args, err := bindSearchArgs(req)
	require.NoError(t, err)

	assert.Equal(t, "red shoe", args.Query)
	assert.Equal(t, 2, args.Page)
	assert.Equal(t, 10, args.Count)
	assert.Equal(t, "name:asc", args.Sort)
	assert.Equal(t, "and", args.Operator)
	assert.Equal(t, "auto", args.Fuzzy)
	assert.True(t, args.Leap)
	require.NotNil(t, args.HideUnavailableItems)
	assert.False(t, *args.HideUnavailableItems)
	assert.Equal(t, "r1", args.RegionID)
	assert.Equal(t, 3, args.SponsoredCount)
	assert.True(t, args.DeepestCategoryOnly)
	assert.Equal(t, []domain.Facet{{Key: "brand", Value: "acme"}, {Key: "c", Value: "shoes"}}, args.SelectedFacets)
	assert.Equal(t, map[string]string{"map": "c", "priceRange": "1"}, args.SearchState)
	assert.Equal(t, []string{"delivery", "pickup-in-point"}, args.ShippingOptions)
}

func TestBindSearchArgs_FacetValueMayContainColon(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/?selectedFacets=price:10:20", nil)

	args, err := bindSearchArgs(req)
	require.NoError(t, err)
	assert.Equal(t, []domain.Facet{{Key: "price", Value: "10:20"}}, args.SelectedFacets)
}

func TestTenantOf(t *testing.T) {
	h := &SearchHandler{tenant: domain.Tenant{Account: "store", Workspace: "master", Locale: "en-US"}}

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	assert.Equal(t, domain.Tenant{Account: "store", Workspace: "master", Locale: "en-US"}, h.tenantOf(req))

	req = httptest.NewRequest(http.MethodGet, "/?locale=pt-BR", nil)
	req.Header.Set(middleware.TenantAccountHeader, "other")
	assert.Equal(t, domain.Tenant{Account: "other", Workspace: "master", Locale: "pt-BR"}, h.tenantOf(req))
}

func TestTenantHeaders_RejectHostCharacters(t *testing.T) {
	tests := []struct {
		name   string
		target string
		header string
		value  string
	}{
		{"account with userinfo", "/api/v1/search/top", middleware.TenantAccountHeader, "x@evil/#"},
		{"account with dot", "/api/v1/search/products?query=shoe", middleware.TenantAccountHeader, "evil.com"},
		{"workspace with slash", "/api/v1/search/suggestions?query=sho", middleware.TenantWorkspaceHeader, "a/b"},
		{"workspace with port", "/api/v1/search/banners", middleware.TenantWorkspaceHeader, "host:80"},
		{"account too long", "/api/v1/search/top", middleware.TenantAccountHeader, strings.Repeat("a", 64)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t, true)
			rec := env.get(t, tt.target, map[string]string{tt.header: tt.value})
			assert.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())

			body := decode(t, rec)
			require.NotNil(t, body.Error)
			assert.Equal(t, "VALIDATION_ERROR", body.Error.Code)
			assert.Equal(t, domain.SearchArgs{}, env.extras.args)
			assert.Equal(t, domain.Tenant{}, env.extras.tenant)
			assert.Equal(t, domain.AuctionRequest{}, env.auction.last)
		})
	}
}

func TestTenantHeaders_NeverReachForeignHost(t *testing.T) {
	var foreignHits atomic.Int32
	foreign := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		foreignHits.Add(1)
		_, _ = w.Write([]byte(`{"secret":true}`))
	}))
	t.Cleanup(foreign.Close)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	client := intelligentsearch.New(httpclient.New(httpclient.Config{Timeout: time.Second}),
		"http://{workspace}--{account}.search.invalid/api", logger)
	svc := service.NewSearchService(service.Dependencies{Backend: client, Extras: client, Logger: logger})
	h := NewSearchHandler(svc, domain.Tenant{Account: "store", Workspace: "master"}, logger)
	router := NewRouter(h, health.NewHandler(), RouterConfig{CORS: middleware.DefaultCORSConfig()}, logger)

	hostile := "x@" + strings.TrimPrefix(foreign.URL, "http://") + "/#"
	for _, target := range []string{"/api/v1/search/top", "/api/v1/search/products", "/api/v1/search/correction?query=a"} {
		req := httptest.NewRequest(http.MethodGet, target, nil)
		req.Header.Set(middleware.TenantAccountHeader, hostile)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code, target)
		assert.NotContains(t, rec.Body.String(), "secret", target)
	}
	assert.Zero(t, foreignHits.Load())
}

// ---------------------------------------------------------------------------
// Facets and passthroughs
// ---------------------------------------------------------------------------

func TestFacets(t *testing.T) {
	env := newTestEnv(t, false)

	rec := env.get(t, "/api/v1/search/facets", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var res domain.FacetsResult
	require.NoError(t, json.Unmarshal(decode(t, rec).Data, &res))
	require.Len(t, res.Facets, 1)
	assert.Equal(t, "category-1", res.Facets[0].Values[0].Key)
	assert.Len(t, res.Facets[0].Values, 2)
}

func TestPassthroughs(t *testing.T) {
	tests := []struct {
		name   string
		target string
		query  string
	}{
		{"banners", "/api/v1/search/banners/c/shoes?query=sale", "sale"},
		{"sponsored", "/api/v1/search/sponsored?query=hat", "hat"},
		{"suggestions", "/api/v1/search/suggestions?query=sho", "sho"},
		{"autocomplete", "/api/v1/search/autocomplete?query=tr", "tr"},
		{"correction", "/api/v1/search/correction?query=shoo", "shoo"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t, true)
			rec := env.get(t, tt.target, map[string]string{middleware.TenantWorkspaceHeader: "beta"})
			require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

			assert.JSONEq(t, `{"ok":true}`, string(decode(t, rec).Data))
			assert.Equal(t, "public, max-age=60", rec.Header().Get("Cache-Control"))
			assert.Equal(t, tt.query, env.extras.args.Query)
			assert.Equal(t, "beta", env.extras.args.Tenant.Workspace)
		})
	}
}

func TestTopSearches(t *testing.T) {
	env := newTestEnv(t, true)

	rec := env.get(t, "/api/v1/search/top", map[string]string{middleware.TenantAccountHeader: "other"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `["shoes"]`, string(decode(t, rec).Data))
	assert.Equal(t, "other", env.extras.tenant.Account)
}

func TestPassthroughs_UnsupportedBackend(t *testing.T) {
	env := newTestEnv(t, false)

	rec := env.get(t, "/api/v1/search/suggestions?query=sho", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	body := decode(t, rec)
	require.NotNil(t, body.Error)
	assert.Equal(t, "SERVICE_UNAVAILABLE", body.Error.Code)
}

// ---------------------------------------------------------------------------
// Router
// ---------------------------------------------------------------------------

func TestRouter_HealthAndMetrics(t *testing.T) {
	env := newTestEnv(t, false)

	assert.Equal(t, http.StatusOK, env.get(t, "/health/live", nil).Code)
	assert.Equal(t, http.StatusOK, env.get(t, "/health/ready", nil).Code)
	assert.Equal(t, http.StatusOK, env.get(t, "/metrics", nil).Code)
}

func TestRouter_PprofDisabledByDefault(t *testing.T) {
	env := newTestEnv(t, false)

	assert.Equal(t, http.StatusNotFound, env.get(t, "/debug/pprof/", nil).Code)
}
