package signal

import (
	"strings"

	"github.com/utafrali/EcommerceGo/services/search/internal/domain"
)

// CategoriesFromPath returns the category tokens that follow the first "c"
// segment of path, decoded and in order. Any query string is ignored.
func CategoriesFromPath(path string) []string {
	path, _, _ = strings.Cut(path, "?")

	segments := strings.Split(path, "/")
	start := -1
	for i, seg := range segments {
		if strings.EqualFold(seg, domain.CategorySegment) {
			start = i + 1
			break
		}
	}
	if start < 0 {
		return []string{}
	}

	categories := make([]string, 0, len(segments)-start)
	for _, seg := range segments[start:] {
		token := Normalize(DecodeQuery(seg))
		if IsContaminated(token) {
			continue
		}
		categories = append(categories, token)
	}
	return categories
}

// CategorySignals wraps path categories as category signals.
func CategorySignals(path string) []domain.Signal {
	categories := CategoriesFromPath(path)
	signals := make([]domain.Signal, len(categories))
	for i, c := range categories {
		signals[i] = domain.Signal{Kind: domain.SignalCategory, Value: c}
	}
	return signals
}
