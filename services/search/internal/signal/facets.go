package signal

import (
	"strings"

	"github.com/utafrali/EcommerceGo/services/search/internal/domain"
)

// denied holds values that leak from broken storefront clients and must never
// reach an auction.
var denied = map[string]struct{}{
	"undefined":       {},
	"null":            {},
	"nan":             {},
	"[object object]": {},
	"__webpack_hmr":   {},
	"webpack":         {},
}

var queryKeys = map[string]struct{}{
	domain.FullTextSegment: {},
	"query":                {},
	"b":                    {},
	"brand":                {},
}

// IsContaminated reports whether v is empty or a known client artifact.
func IsContaminated(v string) bool {
	v = strings.ToLower(strings.TrimSpace(v))
	if v == "" {
		return true
	}
	_, ok := denied[v]
	return ok
}

// NormalizeFacets classifies facets into signals in input order. Contaminated
// values are dropped; unrecognised keys yield SignalNone.
func NormalizeFacets(facets []domain.Facet) []domain.Signal {
	signals := make([]domain.Signal, 0, len(facets))
	for _, f := range facets {
		if IsContaminated(f.Value) {
			continue
		}
		value := Normalize(DecodeQuery(f.Value))
		if IsContaminated(value) {
			continue
		}
		signals = append(signals, domain.Signal{Kind: kindOf(f.Key), Value: value})
	}
	return signals
}

func kindOf(key string) domain.SignalKind {
	key = strings.ToLower(strings.TrimSpace(key))
	if _, ok := queryKeys[key]; ok {
		return domain.SignalQuery
	}
	if isCategoryKey(key) {
		return domain.SignalCategory
	}
	return domain.SignalNone
}

// isCategoryKey accepts "c", "category" and "category-<n>".
func isCategoryKey(key string) bool {
	if key == domain.CategorySegment || key == "category" {
		return true
	}
	level, ok := strings.CutPrefix(key, "category-")
	if !ok || level == "" {
		return false
	}
	for _, r := range level {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// HasKind reports whether any signal is of kind k.
func HasKind(signals []domain.Signal, k domain.SignalKind) bool {
	for _, s := range signals {
		if s.Kind == k {
			return true
		}
	}
	return false
}

// Values returns the values of signals of kind k, in order.
func Values(signals []domain.Signal, k domain.SignalKind) []string {
	var out []string
	for _, s := range signals {
		if s.Kind == k {
			out = append(out, s.Value)
		}
	}
	return out
}
