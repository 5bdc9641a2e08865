package app

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/utafrali/EcommerceGo/services/search/internal/config"
	"github.com/utafrali/EcommerceGo/services/search/internal/domain"
)

const flowCatalog = `[
	{"product": {"productId": "A", "productName": "Trail Shoe", "cacheId": "sp-A"}, "categoryPath": ["shoes", "running"]},
	{"product": {"productId": "B", "productName": "Road Shoe", "cacheId": "sp-B"}, "categoryPath": ["shoes", "running"]},
	{"product": {"productId": "X", "productName": "Sun Hat", "cacheId": "sp-X"}, "categoryPath": ["apparel"]}
]`

type flowEnv struct {
	handler      http.Handler
	auctionCalls atomic.Int32
	auctionBody  atomic.Value
}

func newFlowEnv(t *testing.T, apiKey string, auctionStatus int) *flowEnv {
	t.Helper()
	env := &flowEnv{}

	settingsSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]string{"advancedAPIKey": apiKey})
	}))
	t.Cleanup(settingsSrv.Close)

	auctionSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		env.auctionCalls.Add(1)
		var body map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)
		env.auctionBody.Store(body)

		if auctionStatus != http.StatusOK {
			w.WriteHeader(auctionStatus)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"results":[{"resultType":"listings","error":false,"winners":[
			{"rank":1,"type":"product","id":"X","resolvedBidId":"bid-x"}]}]}`))
	}))
	t.Cleanup(auctionSrv.Close)

	cfg := &config.Config{
		SearchBackend:         config.BackendMemory,
		CatalogSeedPath:       writeCatalog(t, flowCatalog),
		TenantAccount:         "store",
		TenantWorkspace:       "master",
		SettingsURLTemplate:   settingsSrv.URL,
		AuctionURL:            auctionSrv.URL,
		AuctionUserAgent:      "search-test",
		SponsoredDefaultSlots: 2,
		SponsoredTagVisible:   true,
		SponsoredTagLabel:     "Sponsored",
		SponsoredMaxFetches:   2,
		CircuitBreaker:        config.CircuitBreakerConfig{MaxRequests: 1, FailureRatio: 0.5, MinRequests: 5},
	}

	a, err := NewApp(cfg, testLogger())
	require.NoError(t, err)
	env.handler = a.httpServer.Handler
	return env
}

func (e *flowEnv) search(t *testing.T, target string) []domain.Product {
	t.Helper()
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var envelope struct {
		Data domain.SearchResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	return envelope.Data.Products
}

func names(products []domain.Product) []string {
	out := make([]string, len(products))
	for i, p := range products {
		out[i] = p.ProductName
	}
	return out
}

func TestFlow_SponsoredProductPlacedFirst(t *testing.T) {
	env := newFlowEnv(t, "key-1", http.StatusOK)

	products := env.search(t, "/api/v1/search/products/c/shoes/running")

	assert.Equal(t, []string{"Sun Hat (Sponsored)", "Trail Shoe", "Road Shoe"}, names(products))
	assert.Equal(t, "sp-X-sponsored-bid-x", products[0].CacheID)
	assert.Equal(t, int32(1), env.auctionCalls.Load())

	body := env.auctionBody.Load().(map[string]any)
	auctions := body["auctions"].([]any)
	require.Len(t, auctions, 1)
	spec := auctions[0].(map[string]any)
	assert.Equal(t, "listings", spec["type"])
	assert.Equal(t, map[string]any{"id": "running"}, spec["category"])
	assert.Equal(t, map[string]any{"ids": []any{"A", "B"}}, spec["products"])
}

func TestFlow_NoKeySkipsAuction(t *testing.T) {
	env := newFlowEnv(t, "", http.StatusOK)

	products := env.search(t, "/api/v1/search/products/c/shoes/running")

	assert.Equal(t, []string{"Trail Shoe", "Road Shoe"}, names(products))
	assert.Zero(t, env.auctionCalls.Load())
}

func TestFlow_AuctionFailureReturnsBaseline(t *testing.T) {
	env := newFlowEnv(t, "key-1", http.StatusInternalServerError)

	products := env.search(t, "/api/v1/search/products/c/shoes/running")

	assert.Equal(t, []string{"Trail Shoe", "Road Shoe"}, names(products))
	assert.Equal(t, int32(1), env.auctionCalls.Load())
}

func TestFlow_TraversalRejected(t *testing.T) {
	env := newFlowEnv(t, "key-1", http.StatusOK)

	rec := httptest.NewRecorder()
	env.handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/search/products/c/%2E%2E/admin", nil))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Zero(t, env.auctionCalls.Load())
}
