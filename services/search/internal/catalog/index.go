package catalog

import (
	"context"
	"fmt"

	"github.com/utafrali/EcommerceGo/services/search/internal/backend"
)

// DefaultBatchSize keeps bulk requests well under the cluster's body limit.
const DefaultBatchSize = 500

// Index writes items to idx in batches and returns how many were written.
// It stops at the first failing batch.
func Index(ctx context.Context, idx backend.Indexer, items []backend.CatalogItem, batchSize int) (int, error) {
	if batchSize < 1 {
		batchSize = DefaultBatchSize
	}

	written := 0
	for start := 0; start < len(items); start += batchSize {
		end := min(start+batchSize, len(items))
		if err := idx.BulkIndex(ctx, items[start:end]); err != nil {
			return written, fmt.Errorf("index batch %d-%d: %w", start, end, err)
		}
		written = end
	}
	return written, nil
}
