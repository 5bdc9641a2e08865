// Package auction builds sponsored-listing auctions and submits them to the
// auction service.
package auction

import (
	"strings"

	"github.com/utafrali/EcommerceGo/services/search/internal/domain"
	"github.com/utafrali/EcommerceGo/services/search/internal/signal"
)

// defaultSlots applies when neither the request nor the config sets a count.
const defaultSlots = 2

// BuildOptions are the tenant-independent knobs of request building.
type BuildOptions struct {
	DefaultSlots int
	// ExpandCategoryPath targets the full category path instead of the
	// deepest category.
	ExpandCategoryPath bool
}

// BuildRequest derives the auction for a search. Free text wins over
// categories; with neither, the auction runs over the candidate pool alone.
func BuildRequest(qc domain.SearchQueryContext, signals []domain.Signal, productIDs []string, opts BuildOptions) domain.AuctionRequest {
	req := domain.AuctionRequest{
		Kind:       domain.AuctionKindListings,
		ProductIDs: dedupe(productIDs),
		Slots:      slots(qc.SponsoredSlotCount, opts.DefaultSlots),
	}

	if q := freeText(qc, signals); q != "" {
		req.SearchQuery = q
		return req
	}

	categories := signal.Values(signals, domain.SignalCategory)
	if len(categories) == 0 {
		return req
	}
	if opts.ExpandCategoryPath && !qc.UseDeepestCategoryOnly {
		req.CategoryID = strings.Join(categories, "/")
	} else {
		req.CategoryID = categories[len(categories)-1]
	}
	return req
}

func slots(requested, configured int) int {
	switch {
	case requested > 0:
		return requested
	case configured > 0:
		return configured
	default:
		return defaultSlots
	}
}

// freeText prefers the request's query text and falls back to query-kind
// facets such as ft.
func freeText(qc domain.SearchQueryContext, signals []domain.Signal) string {
	if q := signal.Normalize(signal.DecodeQuery(qc.FreeTextQuery)); !signal.IsContaminated(q) {
		return q
	}
	return strings.Join(signal.Values(signals, domain.SignalQuery), " ")
}

func dedupe(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
