package domain

import "strings"

// CategorySegment marks the start of the category run in a search path
// ("/c/shoes/running"). FullTextSegment is the facet key for free text.
const (
	CategorySegment = "c"
	FullTextSegment = "ft"
)

// Tenant identifies the storefront a request is served for. Account and
// Workspace are substituted into backend host names, so they are restricted
// to ASCII letters and digits.
type Tenant struct {
	Account   string `json:"account" validate:"required,max=63,alphanum"`
	Workspace string `json:"workspace" validate:"required,max=63,alphanum"`
	Locale    string `json:"locale" validate:"omitempty,bcp47_language_tag"`
}

// Facet is one selected facet as received from the client, in order.
type Facet struct {
	Key   string `json:"key" validate:"required,max=128"`
	Value string `json:"value" validate:"max=512"`
}

// SearchArgs carries everything a backend needs to run a product search.
// The query tags name the HTTP parameters the fields are bound from.
type SearchArgs struct {
	// Path is the backend path below /product_search, e.g. "c/shoes".
	Path                 string
	Query                string `query:"query" validate:"max=512"`
	Page                 int    `query:"page" validate:"gte=0"`
	Count                int    `query:"count" validate:"gte=0,lte=100"`
	Sort                 string `query:"sort" validate:"max=64"`
	Operator             string `query:"operator" validate:"omitempty,oneof=and or"`
	Fuzzy                string `query:"fuzzy" validate:"max=8"`
	Leap                 bool   `query:"leap"`
	HideUnavailableItems *bool  `query:"hideUnavailableItems"`
	RegionID             string `query:"regionId" validate:"max=128"`
	// SearchState holds opaque facet state forwarded verbatim as query params.
	SearchState    map[string]string `query:"searchState"`
	SelectedFacets []Facet           `query:"selectedFacets" validate:"max=50,dive"`

	SponsoredCount      int  `query:"sponsoredCount" validate:"gte=0,lte=20"`
	DeepestCategoryOnly bool `query:"deepestCategoryOnly"`

	ShippingOptions []string
	Tenant          Tenant
}

// SearchQueryContext is the per-request view of a search used to target an
// auction. It is built fresh for each request and never stored.
type SearchQueryContext struct {
	FreeTextQuery          string
	SelectedFacets         []Facet
	PathSegments           []string
	SponsoredSlotCount     int
	UseDeepestCategoryOnly bool
}

// NewSearchQueryContext derives the auction context from the request and the
// facets the backend reports as selected.
func NewSearchQueryContext(args SearchArgs, facets []Facet) SearchQueryContext {
	var segments []string
	if args.Path != "" {
		segments = strings.Split(strings.Trim(args.Path, "/"), "/")
	}
	return SearchQueryContext{
		FreeTextQuery:          args.Query,
		SelectedFacets:         facets,
		PathSegments:           segments,
		SponsoredSlotCount:     args.SponsoredCount,
		UseDeepestCategoryOnly: args.DeepestCategoryOnly,
	}
}

// SignalKind classifies a normalized facet.
type SignalKind int

const (
	SignalNone SignalKind = iota
	SignalQuery
	SignalCategory
)

func (k SignalKind) String() string {
	switch k {
	case SignalQuery:
		return "query"
	case SignalCategory:
		return "category"
	default:
		return "none"
	}
}

// Signal is one auction intent derived from a facet or the path.
type Signal struct {
	Kind  SignalKind
	Value string
}

// Settings is the tenant's sponsored-search configuration.
type Settings struct {
	AdvancedAPIKey string `json:"advancedAPIKey"`
}

// HasKey reports whether sponsored augmentation is enabled for the tenant.
func (s *Settings) HasKey() bool {
	return s != nil && strings.TrimSpace(s.AdvancedAPIKey) != ""
}
