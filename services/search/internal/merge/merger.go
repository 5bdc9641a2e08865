// Package merge places auction winners ahead of organic search results.
package merge

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"golang.org/x/sync/errgroup"

	"github.com/utafrali/EcommerceGo/services/search/internal/domain"
)

// BidPropertyName is the property carrying the winning bid on sponsored products.
const BidPropertyName = "resolvedBidId"

const (
	defaultAdTagLabel           = "Sponsored"
	defaultMaxConcurrentFetches = 4
)

var winnersDropped = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "search_sponsored_winners_dropped_total",
		Help: "Auction winners left out of the result because they could not be resolved",
	},
	[]string{"reason"},
)

// ProductFetcher resolves a product by id. It returns (nil, nil) when the
// product does not exist.
type ProductFetcher func(ctx context.Context, id string) (*domain.Product, error)

// Merger combines a baseline result list with auction winners.
type Merger struct {
	ShowAdTag            bool
	AdTagLabel           string
	MaxConcurrentFetches int
	Logger               *slog.Logger
}

// Merge returns the winners, annotated and in rank order, followed by the
// remaining baseline products in their original order. Winners missing from
// the baseline are fetched; those that cannot be fetched are dropped. The
// baseline slice and its products are never modified.
func (m *Merger) Merge(ctx context.Context, baseline []domain.Product, winners []domain.Winner, fetch ProductFetcher) []domain.Product {
	if len(winners) == 0 {
		return baseline
	}

	index := make(map[string]int, len(baseline))
	for i, p := range baseline {
		if _, ok := index[p.ProductID]; !ok {
			index[p.ProductID] = i
		}
	}

	ordered := uniqueByRank(winners)

	var missing []string
	for _, w := range ordered {
		if _, ok := index[w.ProductID]; !ok {
			missing = append(missing, w.ProductID)
		}
	}
	fetched := m.fetchAll(ctx, missing, fetch)

	out := make([]domain.Product, 0, len(baseline)+len(missing))
	placed := make(map[string]struct{}, len(ordered))
	for _, w := range ordered {
		var product domain.Product
		if i, ok := index[w.ProductID]; ok {
			product = baseline[i]
		} else if p, ok := fetched[w.ProductID]; ok {
			product = *p
		} else {
			continue
		}
		out = append(out, m.annotate(product, w))
		placed[w.ProductID] = struct{}{}
	}

	for _, p := range baseline {
		if _, ok := placed[p.ProductID]; ok {
			continue
		}
		placed[p.ProductID] = struct{}{}
		out = append(out, p)
	}
	return out
}

// uniqueByRank keeps the first occurrence of each product id, sorted by rank.
func uniqueByRank(winners []domain.Winner) []domain.Winner {
	seen := make(map[string]struct{}, len(winners))
	out := make([]domain.Winner, 0, len(winners))
	for _, w := range winners {
		if w.ProductID == "" {
			continue
		}
		if _, ok := seen[w.ProductID]; ok {
			continue
		}
		seen[w.ProductID] = struct{}{}
		out = append(out, w)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Rank < out[j].Rank })
	return out
}

// fetchAll resolves ids concurrently and waits for every fetch. Failed or
// absent products, and products carrying a different id than requested, are
// left out of the returned map.
func (m *Merger) fetchAll(ctx context.Context, ids []string, fetch ProductFetcher) map[string]*domain.Product {
	if len(ids) == 0 {
		return nil
	}

	results := make([]*domain.Product, len(ids))
	limit := m.MaxConcurrentFetches
	if limit <= 0 {
		limit = defaultMaxConcurrentFetches
	}

	var g errgroup.Group
	g.SetLimit(limit)
	for i, id := range ids {
		g.Go(func() error {
			if fetch == nil {
				m.drop(ctx, id, "no_fetcher", nil)
				return nil
			}
			p, err := fetch(ctx, id)
			switch {
			case err != nil:
				m.drop(ctx, id, "fetch_failed", err)
			case p == nil:
				m.drop(ctx, id, "not_found", nil)
			case p.ProductID != id:
				m.drop(ctx, id, "id_mismatch", nil)
			default:
				results[i] = p
			}
			return nil
		})
	}
	_ = g.Wait()

	fetched := make(map[string]*domain.Product, len(ids))
	for i, p := range results {
		if p != nil {
			fetched[ids[i]] = p
		}
	}
	return fetched
}

func (m *Merger) drop(ctx context.Context, id, reason string, err error) {
	winnersDropped.WithLabelValues(reason).Inc()
	if m.Logger == nil {
		return
	}
	attrs := []any{slog.String("product_id", id), slog.String("reason", reason)}
	if err != nil {
		attrs = append(attrs, slog.String("error", err.Error()))
	}
	m.Logger.WarnContext(ctx, "dropping auction winner", attrs...)
}

// annotate returns a sponsored copy of p.
func (m *Merger) annotate(p domain.Product, w domain.Winner) domain.Product {
	out := p.Clone()
	if m.ShowAdTag {
		label := m.AdTagLabel
		if label == "" {
			label = defaultAdTagLabel
		}
		out.ProductName = fmt.Sprintf("%s (%s)", out.ProductName, label)
	}

	base := out.CacheID
	if base == "" {
		base = out.ProductID
	}
	out.CacheID = fmt.Sprintf("%s-sponsored-%s", base, w.ResolvedBidID)

	out.Properties = append(out.Properties, domain.Property{
		Name:   BidPropertyName,
		Values: []string{w.ResolvedBidID},
	})
	return out
}
