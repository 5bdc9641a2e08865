// Package intelligentsearch is the backend for the hosted intelligent-search
// API. Payloads are decoded into records that keep every field the API sends.
package intelligentsearch

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/utafrali/EcommerceGo/pkg/httpclient"
	"github.com/utafrali/EcommerceGo/services/search/internal/backend"
	"github.com/utafrali/EcommerceGo/services/search/internal/domain"
	"github.com/utafrali/EcommerceGo/services/search/internal/signal"
)

// DefaultURLTemplate is expanded with the tenant's workspace and account.
const DefaultURLTemplate = "http://{workspace}--{account}.myvtex.com/_v/api/intelligent-search"

// ShippingOptionsHeader carries the shopper's shipping options downstream.
const ShippingOptionsHeader = "x-vtex-shipping-options"

const (
	serviceName = "intelligent-search"
	maxBody     = 16 << 20
)

// Client talks to the intelligent-search API.
type Client struct {
	doer        httpclient.HTTPDoer
	urlTemplate string
	logger      *slog.Logger
}

var (
	_ backend.Backend = (*Client)(nil)
	_ backend.Extras  = (*Client)(nil)
)

// New creates an intelligent-search client. An empty template uses
// DefaultURLTemplate.
func New(doer httpclient.HTTPDoer, urlTemplate string, logger *slog.Logger) *Client {
	if urlTemplate == "" {
		urlTemplate = DefaultURLTemplate
	}
	return &Client{
		doer:        doer,
		urlTemplate: strings.TrimRight(urlTemplate, "/"),
		logger:      logger,
	}
}

// ProductSearch runs /product_search/{path}.
func (c *Client) ProductSearch(ctx context.Context, args domain.SearchArgs) (*domain.SearchResult, error) {
	if err := backend.ValidatePath(args.Path); err != nil {
		return nil, err
	}
	var res domain.SearchResult
	if err := c.get(ctx, args.Tenant, joinPath("product_search", args.Path), searchParams(args), args.ShippingOptions, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// Facets runs /facets/{path}.
func (c *Client) Facets(ctx context.Context, args domain.SearchArgs) (*domain.FacetsResult, error) {
	if err := backend.ValidatePath(args.Path); err != nil {
		return nil, err
	}
	var res domain.FacetsResult
	if err := c.get(ctx, args.Tenant, joinPath("facets", args.Path), searchParams(args), args.ShippingOptions, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// ProductByID looks a product up with a "product:<id>" query.
func (c *Client) ProductByID(ctx context.Context, id string, args domain.SearchArgs) (*domain.Product, error) {
	lookup := domain.SearchArgs{
		Query:                "product:" + id,
		Page:                 1,
		Count:                1,
		HideUnavailableItems: args.HideUnavailableItems,
		RegionID:             args.RegionID,
		ShippingOptions:      args.ShippingOptions,
		Tenant:               args.Tenant,
	}

	var res domain.SearchResult
	if err := c.get(ctx, args.Tenant, "/product_search", searchParams(lookup), lookup.ShippingOptions, &res); err != nil {
		return nil, fmt.Errorf("product %s: %w", id, err)
	}
	for i := range res.Products {
		if res.Products[i].ProductID == id {
			p := res.Products[i]
			return &p, nil
		}
	}
	return nil, nil
}

// Banners runs /banners/{path}.
func (c *Client) Banners(ctx context.Context, args domain.SearchArgs) (json.RawMessage, error) {
	if err := backend.ValidatePath(args.Path); err != nil {
		return nil, err
	}
	return c.raw(ctx, args.Tenant, joinPath("banners", args.Path), queryParams(args), nil)
}

// SearchSuggestions runs /search_suggestions.
func (c *Client) SearchSuggestions(ctx context.Context, args domain.SearchArgs) (json.RawMessage, error) {
	return c.raw(ctx, args.Tenant, "/search_suggestions", queryParams(args), nil)
}

// AutocompleteSuggestions runs /autocomplete_suggestions.
func (c *Client) AutocompleteSuggestions(ctx context.Context, args domain.SearchArgs) (json.RawMessage, error) {
	return c.raw(ctx, args.Tenant, "/autocomplete_suggestions", queryParams(args), nil)
}

// Correction runs /correction_search.
func (c *Client) Correction(ctx context.Context, args domain.SearchArgs) (json.RawMessage, error) {
	return c.raw(ctx, args.Tenant, "/correction_search", queryParams(args), nil)
}

// TopSearches runs /top_searches.
func (c *Client) TopSearches(ctx context.Context, tenant domain.Tenant) (json.RawMessage, error) {
	params := url.Values{}
	if tenant.Locale != "" {
		params.Set("locale", tenant.Locale)
	}
	return c.raw(ctx, tenant, "/top_searches", params, nil)
}

// SponsoredProducts runs /sponsored_products/{path}, the API's own
// sponsored listing.
func (c *Client) SponsoredProducts(ctx context.Context, args domain.SearchArgs) (json.RawMessage, error) {
	if err := backend.ValidatePath(args.Path); err != nil {
		return nil, err
	}
	return c.raw(ctx, args.Tenant, joinPath("sponsored_products", args.Path), searchParams(args), args.ShippingOptions)
}

// BaseURL returns the API root for a tenant.
func (c *Client) BaseURL(tenant domain.Tenant) string {
	return strings.NewReplacer(
		"{workspace}", tenant.Workspace,
		"{account}", tenant.Account,
	).Replace(c.urlTemplate)
}

func (c *Client) raw(ctx context.Context, tenant domain.Tenant, path string, params url.Values, shipping []string) (json.RawMessage, error) {
	var msg json.RawMessage
	if err := c.get(ctx, tenant, path, params, shipping, &msg); err != nil {
		return nil, err
	}
	return msg, nil
}

func (c *Client) get(ctx context.Context, tenant domain.Tenant, path string, params url.Values, shipping []string, dst any) error {
	target := c.BaseURL(tenant) + path
	if len(params) > 0 {
		target += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, http.NoBody)
	if err != nil {
		return fmt.Errorf("create %s request: %w", serviceName, err)
	}
	req.Header.Set("Accept", "application/json")
	if shipping != nil {
		req.Header.Set(ShippingOptionsHeader, strings.Join(shipping, ","))
	}

	resp, err := c.doer.Do(ctx, req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", serviceName, path, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return httpclient.ParseResponseError(resp, serviceName)
	}
	defer func() { _ = resp.Body.Close() }()

	if err := json.NewDecoder(io.LimitReader(resp.Body, maxBody)).Decode(dst); err != nil {
		return fmt.Errorf("%s %s: decode response: %w", serviceName, path, err)
	}

	c.logger.DebugContext(ctx, "intelligent search call completed",
		slog.String("path", path),
		slog.Int("status", resp.StatusCode),
	)
	return nil
}

// joinPath builds "/<route>/<path>" escaping each path segment.
func joinPath(route, path string) string {
	segments := strings.Split(strings.Trim(path, "/"), "/")
	escaped := make([]string, 0, len(segments)+1)
	escaped = append(escaped, route)
	for _, s := range segments {
		if s != "" {
			escaped = append(escaped, url.PathEscape(s))
		}
	}
	return "/" + strings.Join(escaped, "/")
}

// queryParams holds the parameters shared by the text-only endpoints.
func queryParams(args domain.SearchArgs) url.Values {
	params := url.Values{}
	if args.Query != "" {
		params.Set("query", signal.DecodeQuery(args.Query))
	}
	if args.Tenant.Locale != "" {
		params.Set("locale", args.Tenant.Locale)
	}
	return params
}

// searchParams builds the product search and facets parameters. Raw facet
// state goes first so explicit arguments win.
func searchParams(args domain.SearchArgs) url.Values {
	params := url.Values{}
	for k, v := range args.SearchState {
		params.Set(k, v)
	}
	for k, v := range queryParams(args) {
		params[k] = v
	}
	if args.Page > 0 {
		params.Set("page", strconv.Itoa(args.Page))
	}
	if args.Count > 0 {
		params.Set("count", strconv.Itoa(args.Count))
	}
	if args.Sort != "" {
		params.Set("sort", args.Sort)
	}
	if args.Operator != "" {
		params.Set("operator", args.Operator)
	}
	if args.Fuzzy != "" {
		params.Set("fuzzy", args.Fuzzy)
	}
	if args.Leap {
		params.Set("bgy_leap", "true")
	}
	if args.HideUnavailableItems != nil {
		params.Set("hideUnavailableItems", strconv.FormatBool(*args.HideUnavailableItems))
	}
	if args.RegionID != "" {
		params.Set("regionId", args.RegionID)
	}
	return params
}
