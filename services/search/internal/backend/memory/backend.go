package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/utafrali/EcommerceGo/pkg/pagination"
	"github.com/utafrali/EcommerceGo/services/search/internal/backend"
	"github.com/utafrali/EcommerceGo/services/search/internal/domain"
	"github.com/utafrali/EcommerceGo/services/search/internal/signal"
)

const brandFacetKey = "brand"

// Item is one catalog entry.
type Item = backend.CatalogItem

// Backend is an in-memory implementation of backend.Backend for local
// development and tests. It matches queries by substring on the product name.
// Thread-safe via sync.RWMutex.
type Backend struct {
	mu    sync.RWMutex
	items map[string]Item
	order []string
}

var (
	_ backend.Backend = (*Backend)(nil)
	_ backend.Indexer = (*Backend)(nil)
)

// New creates an empty in-memory backend.
func New() *Backend {
	return &Backend{
		items: make(map[string]Item),
	}
}

// Add adds or replaces catalog items, keeping first-insertion order.
func (b *Backend) Add(items ...Item) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, it := range items {
		id := it.Product.ProductID
		if id == "" {
			continue
		}
		if _, ok := b.items[id]; !ok {
			b.order = append(b.order, id)
		}
		b.items[id] = it
	}
}

// Delete removes a product by its ID.
func (b *Backend) Delete(id string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, ok := b.items[id]; !ok {
		return
	}
	delete(b.items, id)
	for i, existing := range b.order {
		if existing == id {
			b.order = append(b.order[:i], b.order[i+1:]...)
			break
		}
	}
}

// BulkIndex adds or replaces catalog items.
func (b *Backend) BulkIndex(_ context.Context, items []Item) error {
	b.Add(items...)
	return nil
}

// Len returns the number of catalog items.
func (b *Backend) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.items)
}

// Ping always succeeds.
func (b *Backend) Ping(context.Context) error {
	return nil
}

// ProductSearch returns one page of the matching products.
func (b *Backend) ProductSearch(_ context.Context, args domain.SearchArgs) (*domain.SearchResult, error) {
	if err := backend.ValidatePath(args.Path); err != nil {
		return nil, err
	}

	f := newFilter(args)

	b.mu.RLock()
	matched := b.match(f)
	b.mu.RUnlock()

	sortItems(matched, args.Sort)

	total := len(matched)
	page := pagination.New(args.Page, args.Count)
	start, end := page.Window(total)

	products := make([]domain.Product, 0, end-start)
	for _, it := range matched[start:end] {
		products = append(products, it.Product.Clone())
	}

	res := &domain.SearchResult{
		Products:  products,
		QueryArgs: &domain.QueryArgs{Query: args.Query, SelectedFacets: f.selected},
	}
	if err := res.SetField("recordsFiltered", total); err != nil {
		return nil, err
	}
	if err := res.SetField("pagination", backend.PageInfo(page, total)); err != nil {
		return nil, err
	}
	return res, nil
}

// Facets counts the next category level and the brands over the matching
// products.
func (b *Backend) Facets(_ context.Context, args domain.SearchArgs) (*domain.FacetsResult, error) {
	if err := backend.ValidatePath(args.Path); err != nil {
		return nil, err
	}

	f := newFilter(args)

	b.mu.RLock()
	matched := b.match(f)
	b.mu.RUnlock()

	level := len(f.categories)
	categoryKey := fmt.Sprintf("category-%d", level+1)
	categories := newCounter()
	brands := newCounter()
	for _, it := range matched {
		if level < len(it.CategoryPath) {
			categories.add(it.CategoryPath[level])
		}
		if it.Brand != "" {
			brands.add(it.Brand)
		}
	}

	var groups []domain.FacetGroup
	if len(categories.order) > 0 {
		groups = append(groups, categories.group("Category", categoryKey, nil))
	}
	if len(brands.order) > 0 || f.brand != "" {
		groups = append(groups, brands.group("Brand", brandFacetKey, func(v string) bool {
			return strings.EqualFold(v, f.brand)
		}))
	}

	return &domain.FacetsResult{
		Facets:    groups,
		QueryArgs: &domain.QueryArgs{Query: args.Query, SelectedFacets: f.selected},
	}, nil
}

// ProductByID returns a copy of the product, or nil when absent.
func (b *Backend) ProductByID(_ context.Context, id string, _ domain.SearchArgs) (*domain.Product, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	it, ok := b.items[id]
	if !ok {
		return nil, nil
	}
	p := it.Product.Clone()
	return &p, nil
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
		query:    strings.ToLower(signal.Normalize(signal.DecodeQuery(args.Query))),
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

// match returns the items passing f in insertion order. Callers hold b.mu.
func (b *Backend) match(f filter) []Item {
	matched := make([]Item, 0)
	for _, id := range b.order {
		it := b.items[id]
		if matches(it, f) {
			matched = append(matched, it)
		}
	}
	return matched
}

func matches(it Item, f filter) bool {
	if f.query != "" && !strings.Contains(strings.ToLower(it.Product.ProductName), f.query) {
		return false
	}

	if len(f.categories) > len(it.CategoryPath) {
		return false
	}
	for i, c := range f.categories {
		if !strings.EqualFold(it.CategoryPath[i], c) {
			return false
		}
	}

	if f.brand != "" && !strings.EqualFold(it.Brand, f.brand) {
		return false
	}
	return true
}

// sortItems sorts by product name for "name:asc" and "name:desc". Any other
// value keeps insertion order.
func sortItems(items []Item, sortBy string) {
	switch sortBy {
	case "name:asc":
		sort.SliceStable(items, func(i, j int) bool {
			return items[i].Product.ProductName < items[j].Product.ProductName
		})
	case "name:desc":
		sort.SliceStable(items, func(i, j int) bool {
			return items[i].Product.ProductName > items[j].Product.ProductName
		})
	}
}

type counter struct {
	counts map[string]int
	order  []string
}

func newCounter() *counter {
	return &counter{counts: make(map[string]int)}
}

func (c *counter) add(v string) {
	if _, ok := c.counts[v]; !ok {
		c.order = append(c.order, v)
	}
	c.counts[v]++
}

func (c *counter) group(name, key string, selected func(string) bool) domain.FacetGroup {
	values := make([]domain.FacetValue, 0, len(c.order))
	for _, v := range c.order {
		values = append(values, domain.FacetValue{
			Key:      key,
			Value:    v,
			Name:     v,
			Quantity: c.counts[v],
			Selected: selected != nil && selected(v),
		})
	}
	return domain.FacetGroup{Name: name, Type: "TEXT", Values: values}
}
