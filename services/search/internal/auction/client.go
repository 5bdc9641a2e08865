package auction

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/utafrali/EcommerceGo/pkg/httpclient"
	"github.com/utafrali/EcommerceGo/pkg/validator"
	"github.com/utafrali/EcommerceGo/services/search/internal/domain"
)

// ErrUnavailable is returned for every failure to obtain winners. Callers
// fall back to the unaugmented result.
var ErrUnavailable = errors.New("auction unavailable")

// DefaultURL is the public auctions endpoint.
const DefaultURL = "https://api.topsort.com/v2/auctions"

// ClientConfig configures the auction client.
type ClientConfig struct {
	URL       string
	UserAgent string
}

// Client submits listing auctions. It issues exactly one request per call.
type Client struct {
	doer      httpclient.HTTPDoer
	url       string
	userAgent string
	logger    *slog.Logger
}

// NewClient creates a new auction client.
func NewClient(doer httpclient.HTTPDoer, cfg ClientConfig, logger *slog.Logger) *Client {
	url := cfg.URL
	if url == "" {
		url = DefaultURL
	}
	return &Client{
		doer:      doer,
		url:       url,
		userAgent: cfg.UserAgent,
		logger:    logger,
	}
}

type requestBody struct {
	Auctions []auctionSpec `json:"auctions"`
}

type auctionSpec struct {
	Type        string        `json:"type"`
	Slots       int           `json:"slots"`
	Products    productsSpec  `json:"products"`
	SearchQuery string        `json:"searchQuery,omitempty"`
	Category    *categorySpec `json:"category,omitempty"`
}

type productsSpec struct {
	IDs []string `json:"ids"`
}

type categorySpec struct {
	ID string `json:"id"`
}

type responseBody struct {
	Results []resultBody `json:"results" validate:"required,min=1,dive"`
}

type resultBody struct {
	ResultType string       `json:"resultType"`
	Error      bool         `json:"error"`
	Winners    []winnerBody `json:"winners" validate:"required,min=1,dive"`
}

type winnerBody struct {
	Rank          int    `json:"rank"`
	Type          string `json:"type"`
	ID            string `json:"id" validate:"required"`
	ResolvedBidID string `json:"resolvedBidId" validate:"required"`
}

func newRequestBody(req domain.AuctionRequest) requestBody {
	ids := req.ProductIDs
	if ids == nil {
		ids = []string{}
	}
	spec := auctionSpec{
		Type:        req.Kind,
		Slots:       req.Slots,
		Products:    productsSpec{IDs: ids},
		SearchQuery: req.SearchQuery,
	}
	if spec.Type == "" {
		spec.Type = domain.AuctionKindListings
	}
	if req.SearchQuery == "" && req.CategoryID != "" {
		spec.Category = &categorySpec{ID: req.CategoryID}
	}
	return requestBody{Auctions: []auctionSpec{spec}}
}

// Submit runs the auction and returns its winners in response order. A result
// without winners is reported as ErrUnavailable.
func (c *Client) Submit(ctx context.Context, req domain.AuctionRequest, apiKey string) ([]domain.Winner, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("%w: missing api key", ErrUnavailable)
	}

	payload, err := json.Marshal(newRequestBody(req))
	if err != nil {
		return nil, fmt.Errorf("%w: encode request: %w", ErrUnavailable, err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("%w: create request: %w", ErrUnavailable, err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+apiKey)
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")
	if c.userAgent != "" {
		httpReq.Header.Set("X-UA", c.userAgent)
	}

	resp, err := c.doer.Do(ctx, httpReq)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("%w: %w", ErrUnavailable, httpclient.ParseResponseError(resp, "auction"))
	}
	defer func() { _ = resp.Body.Close() }()

	var body responseBody
	if err := validator.DecodeAndValidate(resp.Body, &body); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnavailable, err)
	}

	result := body.Results[0]
	if result.Error {
		return nil, fmt.Errorf("%w: auction result flagged as error", ErrUnavailable)
	}

	winners := make([]domain.Winner, len(result.Winners))
	for i, w := range result.Winners {
		winners[i] = domain.Winner{
			ProductID:     w.ID,
			Rank:          i,
			ResolvedBidID: w.ResolvedBidID,
		}
	}

	c.logger.DebugContext(ctx, "auction completed",
		slog.Int("slots", req.Slots),
		slog.Int("candidates", len(req.ProductIDs)),
		slog.Int("winners", len(winners)),
	)
	return winners, nil
}
