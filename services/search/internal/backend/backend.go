// Package backend defines the search backends the sponsored pipeline reads
// products and facets from.
package backend

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	apperrors "github.com/utafrali/EcommerceGo/pkg/errors"
	"github.com/utafrali/EcommerceGo/pkg/pagination"
	"github.com/utafrali/EcommerceGo/services/search/internal/domain"
)

// Backend runs product searches. Implementations may use the hosted
// intelligent-search API, Elasticsearch, or in-memory storage.
type Backend interface {
	// ProductSearch returns the baseline result for a search.
	ProductSearch(ctx context.Context, args domain.SearchArgs) (*domain.SearchResult, error)

	// Facets returns the facet groups for a search.
	Facets(ctx context.Context, args domain.SearchArgs) (*domain.FacetsResult, error)

	// ProductByID looks up one product. It returns nil, nil when the product
	// does not exist.
	ProductByID(ctx context.Context, id string, args domain.SearchArgs) (*domain.Product, error)
}

// Extras are passthrough operations only the hosted API offers. Their
// payloads are forwarded to the client unchanged.
type Extras interface {
	Banners(ctx context.Context, args domain.SearchArgs) (json.RawMessage, error)
	SearchSuggestions(ctx context.Context, args domain.SearchArgs) (json.RawMessage, error)
	AutocompleteSuggestions(ctx context.Context, args domain.SearchArgs) (json.RawMessage, error)
	Correction(ctx context.Context, args domain.SearchArgs) (json.RawMessage, error)
	TopSearches(ctx context.Context, tenant domain.Tenant) (json.RawMessage, error)
	SponsoredProducts(ctx context.Context, args domain.SearchArgs) (json.RawMessage, error)
}

// Pinger is implemented by backends that can report their own reachability.
type Pinger interface {
	Ping(ctx context.Context) error
}

// ValidatePath rejects paths that try to climb out of the backend route.
func ValidatePath(path string) error {
	if strings.Contains(path, "..") {
		return apperrors.InvalidInput("malformed URL")
	}
	return nil
}

// CatalogItem is a product plus the attributes the self-hosted backends
// filter and aggregate on. CategoryPath runs from the top-level category
// down, e.g. ["shoes", "running"].
type CatalogItem struct {
	Product      domain.Product `json:"product"`
	Description  string         `json:"description,omitempty"`
	Brand        string         `json:"brand,omitempty"`
	CategoryPath []string       `json:"categoryPath"`
}

// Pagination is the paging summary the indexed backends attach to results.
type Pagination struct {
	Current    int `json:"current"`
	PerPage    int `json:"perPage"`
	TotalPages int `json:"totalPages"`
}

// PageInfo summarizes page p over total matching products.
func PageInfo(p pagination.Params, total int) Pagination {
	return Pagination{
		Current:    p.Page,
		PerPage:    p.PerPage,
		TotalPages: p.TotalPages(total),
	}
}

// Indexer is implemented by backends that can be seeded with a catalog.
type Indexer interface {
	BulkIndex(ctx context.Context, items []CatalogItem) error
}

// LoadCatalog reads a JSON array of catalog items.
func LoadCatalog(r io.Reader) ([]CatalogItem, error) {
	var items []CatalogItem
	if err := json.NewDecoder(r).Decode(&items); err != nil {
		return nil, fmt.Errorf("decode catalog: %w", err)
	}
	return items, nil
}
