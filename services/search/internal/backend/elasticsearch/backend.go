package elasticsearch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/elastic/go-elasticsearch/v8"

	"github.com/utafrali/EcommerceGo/pkg/pagination"
	"github.com/utafrali/EcommerceGo/services/search/internal/backend"
	"github.com/utafrali/EcommerceGo/services/search/internal/domain"
	"github.com/utafrali/EcommerceGo/services/search/internal/signal"
)

const (
	facetSize = 50

	categoryFacetKey = "category"
	brandFacetKey    = "brand"
)

// Backend is an Elasticsearch-backed implementation of backend.Backend.
type Backend struct {
	client    *elasticsearch.Client
	indexName string
	logger    *slog.Logger
}

var (
	_ backend.Backend = (*Backend)(nil)
	_ backend.Indexer = (*Backend)(nil)
)

// document is the indexed form of a catalog item.
type document struct {
	ProductID    string         `json:"productId"`
	Name         string         `json:"name"`
	Description  string         `json:"description,omitempty"`
	Brand        string         `json:"brand,omitempty"`
	Categories   []string       `json:"categories"`
	CategoryPath string         `json:"categoryPath"`
	Product      domain.Product `json:"product"`
}

func newDocument(it backend.CatalogItem) document {
	categories := it.CategoryPath
	if categories == nil {
		categories = []string{}
	}
	return document{
		ProductID:    it.Product.ProductID,
		Name:         it.Product.ProductName,
		Description:  it.Description,
		Brand:        it.Brand,
		Categories:   categories,
		CategoryPath: strings.Join(categories, "/"),
		Product:      it.Product,
	}
}

// esSearchResponse is the structure used to decode Elasticsearch search responses.
type esSearchResponse struct {
	Took int `json:"took"`
	Hits struct {
		Total struct {
			Value int `json:"value"`
		} `json:"total"`
		Hits []struct {
			Source document `json:"_source"`
		} `json:"hits"`
	} `json:"hits"`
	Aggregations map[string]struct {
		Buckets []struct {
			Key      string `json:"key"`
			DocCount int    `json:"doc_count"`
		} `json:"buckets"`
	} `json:"aggregations"`
}

// esBulkResponse is the structure used to decode Elasticsearch bulk responses.
type esBulkResponse struct {
	Errors bool `json:"errors"`
	Items  []struct {
		Index struct {
			ID     string `json:"_id"`
			Status int    `json:"status"`
			Error  struct {
				Type   string `json:"type"`
				Reason string `json:"reason"`
			} `json:"error"`
		} `json:"index"`
	} `json:"items"`
}

// esErrorResponse is used to decode Elasticsearch error responses.
type esErrorResponse struct {
	Error struct {
		Type   string `json:"type"`
		Reason string `json:"reason"`
	} `json:"error"`
	Status int `json:"status"`
}

// New creates a new Elasticsearch backend connected to the given URL.
// It ensures the catalog index exists, creating it if necessary.
// If indexName is empty, DefaultIndexName is used.
func New(esURL string, indexName string, logger *slog.Logger) (*Backend, error) {
	if indexName == "" {
		indexName = DefaultIndexName
	}

	client, err := elasticsearch.NewClient(elasticsearch.Config{
		Addresses: []string{esURL},
	})
	if err != nil {
		return nil, fmt.Errorf("elasticsearch: failed to create client: %w", err)
	}

	b := &Backend{
		client:    client,
		indexName: indexName,
		logger:    logger,
	}

	if err := b.ensureIndex(); err != nil {
		return nil, fmt.Errorf("elasticsearch: failed to ensure index: %w", err)
	}

	return b, nil
}

// Ping checks whether the Elasticsearch cluster is reachable.
func (b *Backend) Ping(ctx context.Context) error {
	res, err := b.client.Ping(b.client.Ping.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("elasticsearch ping: %w", err)
	}
	defer func() { _ = res.Body.Close() }()

	if res.IsError() {
		return fmt.Errorf("elasticsearch ping: unexpected status %s", res.Status())
	}
	return nil
}

// ensureIndex checks whether the catalog index exists and creates it if not.
func (b *Backend) ensureIndex() error {
	res, err := b.client.Indices.Exists([]string{b.indexName})
	if err != nil {
		return fmt.Errorf("check index exists: %w", err)
	}
	defer func() { _ = res.Body.Close() }()

	if res.StatusCode == http.StatusOK {
		b.logger.Info("elasticsearch index already exists", "index", b.indexName)
		return nil
	}

	res, err = b.client.Indices.Create(
		b.indexName,
		b.client.Indices.Create.WithBody(strings.NewReader(buildIndexMapping())),
	)
	if err != nil {
		return fmt.Errorf("create index: %w", err)
	}
	defer func() { _ = res.Body.Close() }()

	if res.IsError() {
		return responseError("create index", res.Status(), res.Body)
	}

	b.logger.Info("elasticsearch index created", "index", b.indexName)
	return nil
}

// ProductSearch runs a multi-match query filtered by the category and brand
// the request selects.
func (b *Backend) ProductSearch(ctx context.Context, args domain.SearchArgs) (*domain.SearchResult, error) {
	if err := backend.ValidatePath(args.Path); err != nil {
		return nil, err
	}

	f := newFilter(args)
	page := pagination.New(args.Page, args.Count)

	esQuery := map[string]any{
		"query":            b.buildQuery(f),
		"from":             page.Offset,
		"size":             page.PerPage,
		"track_total_hits": true,
		"sort":             buildSort(args.Sort),
	}

	esResp, err := b.search(ctx, "search", esQuery)
	if err != nil {
		return nil, err
	}

	products := make([]domain.Product, 0, len(esResp.Hits.Hits))
	for _, hit := range esResp.Hits.Hits {
		products = append(products, hit.Source.Product)
	}

	res := &domain.SearchResult{
		Products:  products,
		QueryArgs: &domain.QueryArgs{Query: args.Query, SelectedFacets: f.selected},
	}
	if err := res.SetField("recordsFiltered", esResp.Hits.Total.Value); err != nil {
		return nil, err
	}
	if err := res.SetField("pagination", backend.PageInfo(page, esResp.Hits.Total.Value)); err != nil {
		return nil, err
	}
	return res, nil
}

// Facets aggregates categories and brands over the matching documents.
func (b *Backend) Facets(ctx context.Context, args domain.SearchArgs) (*domain.FacetsResult, error) {
	if err := backend.ValidatePath(args.Path); err != nil {
		return nil, err
	}

	f := newFilter(args)
	esQuery := map[string]any{
		"query": b.buildQuery(f),
		"size":  0,
		"aggs": map[string]any{
			categoryFacetKey: map[string]any{"terms": map[string]any{"field": "categories", "size": facetSize}},
			brandFacetKey:    map[string]any{"terms": map[string]any{"field": "brand.keyword", "size": facetSize}},
		},
	}

	esResp, err := b.search(ctx, "facets", esQuery)
	if err != nil {
		return nil, err
	}

	selected := make(map[string]bool, len(f.selected))
	for _, fc := range f.selected {
		selected[strings.ToLower(fc.Value)] = true
	}

	var groups []domain.FacetGroup
	for _, agg := range []struct{ key, name string }{
		{categoryFacetKey, "Category"},
		{brandFacetKey, "Brand"},
	} {
		buckets := esResp.Aggregations[agg.key].Buckets
		if len(buckets) == 0 {
			continue
		}
		values := make([]domain.FacetValue, 0, len(buckets))
		for _, bucket := range buckets {
			values = append(values, domain.FacetValue{
				Key:      agg.key,
				Value:    bucket.Key,
				Name:     bucket.Key,
				Quantity: bucket.DocCount,
				Selected: selected[strings.ToLower(bucket.Key)],
			})
		}
		groups = append(groups, domain.FacetGroup{Name: agg.name, Type: "TEXT", Values: values})
	}

	return &domain.FacetsResult{
		Facets:    groups,
		QueryArgs: &domain.QueryArgs{Query: args.Query, SelectedFacets: f.selected},
	}, nil
}

// ProductByID fetches one document by product id. A missing document
// returns nil, nil.
func (b *Backend) ProductByID(ctx context.Context, id string, _ domain.SearchArgs) (*domain.Product, error) {
	res, err := b.client.Get(b.indexName, id, b.client.Get.WithContext(ctx))
	if err != nil {
		return nil, fmt.Errorf("elasticsearch get: %w", err)
	}
	defer func() { _ = res.Body.Close() }()

	if res.StatusCode == http.StatusNotFound {
		return nil, nil
	}
	if res.IsError() {
		return nil, responseError("elasticsearch get", res.Status(), res.Body)
	}

	var doc struct {
		Found  bool     `json:"found"`
		Source document `json:"_source"`
	}
	if err := json.NewDecoder(res.Body).Decode(&doc); err != nil {
		return nil, fmt.Errorf("elasticsearch get: decode response: %w", err)
	}
	if !doc.Found {
		return nil, nil
	}
	p := doc.Source.Product
	return &p, nil
}

// BulkIndex adds or updates catalog items using the bulk NDJSON API.
func (b *Backend) BulkIndex(ctx context.Context, items []backend.CatalogItem) error {
	if len(items) == 0 {
		return nil
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	for _, it := range items {
		action := map[string]any{
			"index": map[string]any{
				"_index": b.indexName,
				"_id":    it.Product.ProductID,
			},
		}
		if err := enc.Encode(action); err != nil {
			return fmt.Errorf("elasticsearch bulk index: encode action: %w", err)
		}
		if err := enc.Encode(newDocument(it)); err != nil {
			return fmt.Errorf("elasticsearch bulk index: encode document: %w", err)
		}
	}

	res, err := b.client.Bulk(
		bytes.NewReader(buf.Bytes()),
		b.client.Bulk.WithIndex(b.indexName),
		b.client.Bulk.WithRefresh("true"),
		b.client.Bulk.WithContext(ctx),
	)
	if err != nil {
		return fmt.Errorf("elasticsearch bulk index: %w", err)
	}
	defer func() { _ = res.Body.Close() }()

	if res.IsError() {
		return responseError("elasticsearch bulk index", res.Status(), res.Body)
	}

	var bulkResp esBulkResponse
	if err := json.NewDecoder(res.Body).Decode(&bulkResp); err != nil {
		return fmt.Errorf("elasticsearch bulk index: decode response: %w", err)
	}

	if bulkResp.Errors {
		var errMsgs []string
		for _, item := range bulkResp.Items {
			if item.Index.Error.Type != "" {
				errMsgs = append(errMsgs, fmt.Sprintf("id=%s: %s: %s", item.Index.ID, item.Index.Error.Type, item.Index.Error.Reason))
			}
		}
		return fmt.Errorf("elasticsearch bulk index: partial errors: %s", strings.Join(errMsgs, "; "))
	}

	b.logger.Info("bulk indexed catalog items", "count", len(items))
	return nil
}

// DeleteIndex removes the entire index. A 404 response is treated as success.
func (b *Backend) DeleteIndex(ctx context.Context) error {
	res, err := b.client.Indices.Delete(
		[]string{b.indexName},
		b.client.Indices.Delete.WithContext(ctx),
	)
	if err != nil {
		return fmt.Errorf("elasticsearch delete index: %w", err)
	}
	defer func() { _ = res.Body.Close() }()

	if res.IsError() && res.StatusCode != http.StatusNotFound {
		return responseError("elasticsearch delete index", res.Status(), res.Body)
	}

	b.logger.Info("elasticsearch index deleted", "index", b.indexName)
	return nil
}

func (b *Backend) search(ctx context.Context, op string, esQuery map[string]any) (*esSearchResponse, error) {
	data, err := json.Marshal(esQuery)
	if err != nil {
		return nil, fmt.Errorf("elasticsearch %s: marshal query: %w", op, err)
	}

	res, err := b.client.Search(
		b.client.Search.WithIndex(b.indexName),
		b.client.Search.WithBody(bytes.NewReader(data)),
		b.client.Search.WithContext(ctx),
	)
	if err != nil {
		return nil, fmt.Errorf("elasticsearch %s: %w", op, err)
	}
	defer func() { _ = res.Body.Close() }()

	if res.IsError() {
		return nil, responseError("elasticsearch "+op, res.Status(), res.Body)
	}

	var esResp esSearchResponse
	if err := json.NewDecoder(res.Body).Decode(&esResp); err != nil {
		return nil, fmt.Errorf("elasticsearch %s: decode response: %w", op, err)
	}
	b.logger.DebugContext(ctx, "elasticsearch query completed",
		slog.String("operation", op),
		slog.Int("took_ms", esResp.Took),
		slog.Int("hits", esResp.Hits.Total.Value),
	)
	return &esResp, nil
}

func responseError(op, status string, body io.Reader) error {
	var errResp esErrorResponse
	if decErr := json.NewDecoder(body).Decode(&errResp); decErr == nil && errResp.Error.Type != "" {
		return fmt.Errorf("%s: %s: %s", op, errResp.Error.Type, errResp.Error.Reason)
	}
	return fmt.Errorf("%s: unexpected status %s", op, status)
}

// filter is the parsed form of the search arguments.
type filter struct {
	query      string
	categories []string
	brand      string
	selected   []domain.Facet
}

func newFilter(args domain.SearchArgs) filter {
	f := filter{
		query:    signal.Normalize(signal.DecodeQuery(args.Query)),
		selected: args.SelectedFacets,
	}

	signals := signal.NormalizeFacets(args.SelectedFacets)
	f.categories = signal.Values(signals, domain.SignalCategory)
	if len(f.categories) == 0 {
		f.categories = signal.CategoriesFromPath(args.Path)
		for _, c := range f.categories {
			f.selected = append(f.selected, domain.Facet{Key: domain.CategorySegment, Value: c})
		}
	}
	for _, fc := range args.SelectedFacets {
		if strings.EqualFold(fc.Key, brandFacetKey) || strings.EqualFold(fc.Key, "b") {
			f.brand = signal.Normalize(signal.DecodeQuery(fc.Value))
		}
	}
	return f
}

// buildQuery constructs the bool query for a filter.
func (b *Backend) buildQuery(f filter) map[string]any {
	var must any
	if f.query != "" {
		must = map[string]any{
			"multi_match": map[string]any{
				"query":         f.query,
				"fields":        []string{"name^3", "name.autocomplete^2", "description", "brand"},
				"type":          "best_fields",
				"fuzziness":     "AUTO",
				"prefix_length": 1,
			},
		}
	} else {
		must = map[string]any{"match_all": map[string]any{}}
	}

	boolQuery := map[string]any{
		"must": []any{must},
	}
	if filters := buildFilters(f); len(filters) > 0 {
		boolQuery["filter"] = filters
	}
	return map[string]any{"bool": boolQuery}
}

// buildFilters restricts results to the selected category subtree and brand.
func buildFilters(f filter) []any {
	var filters []any

	if len(f.categories) > 0 {
		path := strings.ToLower(strings.Join(f.categories, "/"))
		filters = append(filters, map[string]any{
			"bool": map[string]any{
				"should": []any{
					map[string]any{"term": map[string]any{"categoryPath": path}},
					map[string]any{"prefix": map[string]any{"categoryPath": path + "/"}},
				},
				"minimum_should_match": 1,
			},
		})
	}

	if f.brand != "" {
		filters = append(filters, map[string]any{
			"match": map[string]any{
				"brand": map[string]any{"query": f.brand, "operator": "and"},
			},
		})
	}

	return filters
}

// buildSort constructs the sort clause. Unknown values fall back to score.
func buildSort(sortBy string) []any {
	switch sortBy {
	case "name:asc":
		return []any{map[string]any{"name.keyword": "asc"}}
	case "name:desc":
		return []any{map[string]any{"name.keyword": "desc"}}
	default:
		return []any{map[string]any{"_score": "desc"}}
	}
}
