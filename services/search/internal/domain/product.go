package domain

import (
	"encoding/json"
	"fmt"
	"maps"
	"slices"
)

// presence records which typed members a decoded object carried, so that
// encoding writes them back even when they hold zero values.
type presence uint8

const (
	hasName presence = 1 << iota
	hasValues
	hasProductID
	hasProductName
	hasCacheID
	hasProperties
	hasQuery
	hasSelectedFacets
)

// Property is a named, multi-valued product attribute. Members other than
// name and values are kept and written back unchanged.
type Property struct {
	Name   string
	Values []string

	present presence
	extra   map[string]json.RawMessage
}

const (
	fieldName   = "name"
	fieldValues = "values"
)

func (p Property) clone() Property {
	out := p
	out.Values = slices.Clone(p.Values)
	out.extra = maps.Clone(p.extra)
	return out
}

func (p *Property) UnmarshalJSON(data []byte) error {
	fields, err := decodeObject(data)
	if err != nil {
		return fmt.Errorf("decode property: %w", err)
	}
	*p = Property{}
	if err := takeField(fields, fieldName, &p.Name, &p.present, hasName); err != nil {
		return err
	}
	if err := takeField(fields, fieldValues, &p.Values, &p.present, hasValues); err != nil {
		return err
	}
	if len(fields) > 0 {
		p.extra = fields
	}
	return nil
}

func (p Property) MarshalJSON() ([]byte, error) {
	out := rawMembers(p.extra, 2)
	if p.present&hasName != 0 || p.Name != "" {
		out[fieldName] = p.Name
	}
	if p.present&hasValues != 0 || p.Values != nil {
		out[fieldValues] = p.Values
	}
	return json.Marshal(out)
}

// Product is a backend product. Only the fields the augmentation touches are
// typed; everything else the backend sent is kept and written back unchanged.
type Product struct {
	ProductID   string
	ProductName string
	CacheID     string
	Properties  []Property

	present presence
	extra   map[string]json.RawMessage
}

const (
	fieldProductID   = "productId"
	fieldProductName = "productName"
	fieldCacheID     = "cacheId"
	fieldProperties  = "properties"
)

// Clone returns a copy that shares no mutable state with p.
func (p Product) Clone() Product {
	out := p
	if p.Properties != nil {
		out.Properties = make([]Property, len(p.Properties))
		for i, prop := range p.Properties {
			out.Properties[i] = prop.clone()
		}
	}
	out.extra = maps.Clone(p.extra)
	return out
}

// Field returns a raw backend field that has no typed counterpart.
func (p Product) Field(name string) (json.RawMessage, bool) {
	raw, ok := p.extra[name]
	return raw, ok
}

// SetField stores a raw backend field. Typed fields cannot be set this way.
func (p *Product) SetField(name string, value any) error {
	switch name {
	case fieldProductID, fieldProductName, fieldCacheID, fieldProperties:
		return fmt.Errorf("field %q is typed", name)
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("marshal field %q: %w", name, err)
	}
	if p.extra == nil {
		p.extra = make(map[string]json.RawMessage)
	}
	p.extra[name] = raw
	return nil
}

func (p *Product) UnmarshalJSON(data []byte) error {
	fields, err := decodeObject(data)
	if err != nil {
		return fmt.Errorf("decode product: %w", err)
	}
	*p = Product{}
	if err := takeField(fields, fieldProductID, &p.ProductID, &p.present, hasProductID); err != nil {
		return err
	}
	if err := takeField(fields, fieldProductName, &p.ProductName, &p.present, hasProductName); err != nil {
		return err
	}
	if err := takeField(fields, fieldCacheID, &p.CacheID, &p.present, hasCacheID); err != nil {
		return err
	}
	if err := takeField(fields, fieldProperties, &p.Properties, &p.present, hasProperties); err != nil {
		return err
	}
	if len(fields) > 0 {
		p.extra = fields
	}
	return nil
}

func (p Product) MarshalJSON() ([]byte, error) {
	out := rawMembers(p.extra, 4)
	if p.present&hasProductID != 0 || p.ProductID != "" {
		out[fieldProductID] = p.ProductID
	}
	if p.present&hasProductName != 0 || p.ProductName != "" {
		out[fieldProductName] = p.ProductName
	}
	if p.present&hasCacheID != 0 || p.CacheID != "" {
		out[fieldCacheID] = p.CacheID
	}
	if p.present&hasProperties != 0 || p.Properties != nil {
		out[fieldProperties] = p.Properties
	}
	return json.Marshal(out)
}

// QueryArgs echoes how the backend interpreted the search.
type QueryArgs struct {
	Query          string
	SelectedFacets []Facet

	present presence
	extra   map[string]json.RawMessage
}

const (
	fieldQuery          = "query"
	fieldSelectedFacets = "selectedFacets"
)

func (q *QueryArgs) UnmarshalJSON(data []byte) error {
	fields, err := decodeObject(data)
	if err != nil {
		return fmt.Errorf("decode queryArgs: %w", err)
	}
	*q = QueryArgs{}
	if err := takeField(fields, fieldQuery, &q.Query, &q.present, hasQuery); err != nil {
		return err
	}
	if err := takeField(fields, fieldSelectedFacets, &q.SelectedFacets, &q.present, hasSelectedFacets); err != nil {
		return err
	}
	if len(fields) > 0 {
		q.extra = fields
	}
	return nil
}

func (q QueryArgs) MarshalJSON() ([]byte, error) {
	out := rawMembers(q.extra, 2)
	if q.present&hasQuery != 0 || q.Query != "" {
		out[fieldQuery] = q.Query
	}
	if q.present&hasSelectedFacets != 0 || q.SelectedFacets != nil {
		out[fieldSelectedFacets] = q.SelectedFacets
	}
	return json.Marshal(out)
}

// SearchResult is a backend product-search response. The augmentation only
// rewrites Products; all other fields pass through untouched.
type SearchResult struct {
	Products  []Product
	QueryArgs *QueryArgs

	extra map[string]json.RawMessage
}

const (
	fieldProducts  = "products"
	fieldQueryArgs = "queryArgs"
)

// WithProducts returns a shallow copy of r carrying products instead.
func (r *SearchResult) WithProducts(products []Product) *SearchResult {
	out := *r
	out.Products = products
	out.extra = maps.Clone(r.extra)
	return &out
}

// Field returns a raw backend field that has no typed counterpart.
func (r *SearchResult) Field(name string) (json.RawMessage, bool) {
	raw, ok := r.extra[name]
	return raw, ok
}

// SetField stores a raw backend field such as recordsFiltered.
func (r *SearchResult) SetField(name string, value any) error {
	switch name {
	case fieldProducts, fieldQueryArgs:
		return fmt.Errorf("field %q is typed", name)
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("marshal field %q: %w", name, err)
	}
	if r.extra == nil {
		r.extra = make(map[string]json.RawMessage)
	}
	r.extra[name] = raw
	return nil
}

func (r *SearchResult) UnmarshalJSON(data []byte) error {
	fields, err := decodeObject(data)
	if err != nil {
		return fmt.Errorf("decode search result: %w", err)
	}
	*r = SearchResult{}
	if err := takeField(fields, fieldProducts, &r.Products, nil, 0); err != nil {
		return err
	}
	if err := takeField(fields, fieldQueryArgs, &r.QueryArgs, nil, 0); err != nil {
		return err
	}
	if len(fields) > 0 {
		r.extra = fields
	}
	return nil
}

func (r SearchResult) MarshalJSON() ([]byte, error) {
	out := rawMembers(r.extra, 2)
	products := r.Products
	if products == nil {
		products = []Product{}
	}
	out[fieldProducts] = products
	if r.QueryArgs != nil {
		out[fieldQueryArgs] = r.QueryArgs
	}
	return json.Marshal(out)
}

// FacetValue is one selectable value of a facet group.
type FacetValue struct {
	Key      string `json:"key"`
	Value    string `json:"value"`
	Name     string `json:"name"`
	Quantity int    `json:"quantity"`
	Selected bool   `json:"selected"`
}

// FacetGroup is one facet dimension such as brand or category level.
type FacetGroup struct {
	Name   string       `json:"name"`
	Type   string       `json:"type,omitempty"`
	Values []FacetValue `json:"values"`
}

// FacetsResult is a backend facets response.
type FacetsResult struct {
	Facets    []FacetGroup
	QueryArgs *QueryArgs

	extra map[string]json.RawMessage
}

const fieldFacets = "facets"

func (f *FacetsResult) UnmarshalJSON(data []byte) error {
	fields, err := decodeObject(data)
	if err != nil {
		return fmt.Errorf("decode facets: %w", err)
	}
	*f = FacetsResult{}
	if err := takeField(fields, fieldFacets, &f.Facets, nil, 0); err != nil {
		return err
	}
	if err := takeField(fields, fieldQueryArgs, &f.QueryArgs, nil, 0); err != nil {
		return err
	}
	if len(fields) > 0 {
		f.extra = fields
	}
	return nil
}

func (f FacetsResult) MarshalJSON() ([]byte, error) {
	out := rawMembers(f.extra, 2)
	groups := f.Facets
	if groups == nil {
		groups = []FacetGroup{}
	}
	out[fieldFacets] = groups
	if f.QueryArgs != nil {
		out[fieldQueryArgs] = f.QueryArgs
	}
	return json.Marshal(out)
}

// SelectedFacets returns the facets the backend reports as applied.
func (f *FacetsResult) SelectedFacets() []Facet {
	if f == nil {
		return nil
	}
	if f.QueryArgs != nil && len(f.QueryArgs.SelectedFacets) > 0 {
		return f.QueryArgs.SelectedFacets
	}
	var out []Facet
	for _, g := range f.Facets {
		for _, v := range g.Values {
			if v.Selected {
				out = append(out, Facet{Key: v.Key, Value: v.Value})
			}
		}
	}
	return out
}

// decodeObject splits a JSON object into its raw members. A JSON null
// decodes into an empty map.
func decodeObject(data []byte) (map[string]json.RawMessage, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return nil, err
	}
	if fields == nil {
		fields = make(map[string]json.RawMessage)
	}
	return fields, nil
}

// takeField decodes and removes fields[name] into dst when present, and
// marks bit in seen.
func takeField(fields map[string]json.RawMessage, name string, dst any, seen *presence, bit presence) error {
	raw, ok := fields[name]
	if !ok {
		return nil
	}
	delete(fields, name)
	if seen != nil {
		*seen |= bit
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return fmt.Errorf("decode %s: %w", name, err)
	}
	return nil
}

// rawMembers starts an encoding map from the kept raw members.
func rawMembers(extra map[string]json.RawMessage, typed int) map[string]any {
	out := make(map[string]any, len(extra)+typed)
	for k, v := range extra {
		out[k] = v
	}
	return out
}
