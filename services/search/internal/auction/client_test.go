package auction

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/utafrali/EcommerceGo/pkg/httpclient"
	"github.com/utafrali/EcommerceGo/services/search/internal/domain"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	doer := httpclient.New(httpclient.Config{Timeout: 2 * time.Second, MaxConnsPerHost: 4})
	return NewClient(doer, ClientConfig{URL: srv.URL, UserAgent: "search-service"}, testLogger())
}

func respond(body string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(body))
	}
}

var categoryRequest = domain.AuctionRequest{
	Kind:       domain.AuctionKindListings,
	ProductIDs: []string{"A", "B"},
	Slots:      2,
	CategoryID: "shoes/running",
}

func TestSubmit_SendsRequest(t *testing.T) {
	var got map[string]any
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "Bearer key-1", r.Header.Get("Authorization"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.Equal(t, "application/json", r.Header.Get("Accept"))
		assert.Equal(t, "search-service", r.Header.Get("X-UA"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		respond(`{"results":[{"resultType":"listings","error":false,"winners":[{"rank":1,"type":"product","id":"A","resolvedBidId":"bid-a"}]}]}`)(w, r)
	})

	winners, err := client.Submit(context.Background(), categoryRequest, "key-1")
	require.NoError(t, err)
	assert.Len(t, winners, 1)

	want := `{"auctions":[{"type":"listings","slots":2,"products":{"ids":["A","B"]},"category":{"id":"shoes/running"}}]}`
	raw, _ := json.Marshal(got)
	assert.JSONEq(t, want, string(raw))
}

func TestSubmit_SearchQueryPayload(t *testing.T) {
	body := newRequestBody(domain.AuctionRequest{Slots: 3, SearchQuery: "boots", CategoryID: "ignored"})
	raw, err := json.Marshal(body)
	require.NoError(t, err)
	assert.JSONEq(t, `{"auctions":[{"type":"listings","slots":3,"products":{"ids":[]},"searchQuery":"boots"}]}`, string(raw))
}

func TestSubmit_WinnersInResponseOrder(t *testing.T) {
	client := newTestClient(t, respond(`{"results":[{"resultType":"listings","error":false,"winners":[
		{"rank":2,"type":"product","id":"B","resolvedBidId":"bid-b"},
		{"rank":1,"type":"product","id":"X","resolvedBidId":"bid-x"}]}]}`))

	winners, err := client.Submit(context.Background(), categoryRequest, "k")
	require.NoError(t, err)
	assert.Equal(t, []domain.Winner{
		{ProductID: "B", Rank: 0, ResolvedBidID: "bid-b"},
		{ProductID: "X", Rank: 1, ResolvedBidID: "bid-x"},
	}, winners)
}

func TestSubmit_Unavailable(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{"server error", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusInternalServerError) }},
		{"unauthorized", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusUnauthorized) }},
		{"not json", respond(`<html>`)},
		{"no results", respond(`{}`)},
		{"empty results", respond(`{"results":[]}`)},
		{"flagged error", respond(`{"results":[{"error":true,"winners":[]}]}`)},
		{"missing winners", respond(`{"results":[{"error":false}]}`)},
		{"empty winners", respond(`{"results":[{"error":false,"winners":[]}]}`)},
		{"null winners", respond(`{"results":[{"error":false,"winners":null}]}`)},
		{"winner without id", respond(`{"results":[{"winners":[{"resolvedBidId":"b"}]}]}`)},
		{"winner without bid", respond(`{"results":[{"winners":[{"id":"A"}]}]}`)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newTestClient(t, tt.handler)
			winners, err := client.Submit(context.Background(), categoryRequest, "k")
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrUnavailable), "got %v", err)
			assert.Nil(t, winners)
		})
	}
}

func TestSubmit_TransportFailure(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	client := NewClient(httpclient.New(httpclient.Config{Timeout: time.Second}), ClientConfig{URL: url}, testLogger())
	_, err := client.Submit(context.Background(), categoryRequest, "k")
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestSubmit_EmptyKeySendsNothing(t *testing.T) {
	var calls atomic.Int32
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) { calls.Add(1) })

	_, err := client.Submit(context.Background(), categoryRequest, "")
	assert.ErrorIs(t, err, ErrUnavailable)
	assert.Zero(t, calls.Load())
}

func TestSubmit_OpenCircuit(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	cbCfg := httpclient.DefaultCircuitBreakerConfig("auction-test-open")
	cbCfg.MinRequests = 1
	doer := httpclient.NewCircuitBreakerClient(httpclient.New(httpclient.Config{Timeout: time.Second}), cbCfg, testLogger())
	client := NewClient(doer, ClientConfig{URL: srv.URL}, testLogger())

	_, err := client.Submit(context.Background(), categoryRequest, "k")
	require.ErrorIs(t, err, ErrUnavailable)

	_, err = client.Submit(context.Background(), categoryRequest, "k")
	assert.ErrorIs(t, err, ErrUnavailable)
	assert.ErrorIs(t, err, httpclient.ErrCircuitOpen)
	assert.Equal(t, int32(1), calls.Load())
}

func TestNewClient_DefaultURL(t *testing.T) {
	c := NewClient(httpclient.New(httpclient.DefaultConfig()), ClientConfig{}, testLogger())
	assert.Equal(t, DefaultURL, c.url)
}
