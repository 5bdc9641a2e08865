package elasticsearch_test

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/utafrali/EcommerceGo/services/search/internal/backend"
	esbackend "github.com/utafrali/EcommerceGo/services/search/internal/backend/elasticsearch"
	"github.com/utafrali/EcommerceGo/services/search/internal/domain"
)

// newTestBackend creates an Elasticsearch backend for integration tests.
// It skips the test if ELASTICSEARCH_URL is not set.
func newTestBackend(t *testing.T) *esbackend.Backend {
	t.Helper()

	esURL := os.Getenv("ELASTICSEARCH_URL")
	if esURL == "" {
		t.Skip("ELASTICSEARCH_URL not set, skipping Elasticsearch integration tests")
	}

	indexName := fmt.Sprintf("test_search_catalog_%d", time.Now().UnixNano())

	b, err := esbackend.New(esURL, indexName, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err, "failed to create Elasticsearch backend")

	t.Cleanup(func() {
		_ = b.DeleteIndex(context.Background())
	})

	return b
}

func newTestItem(name, brand string, categories ...string) backend.CatalogItem {
	id := uuid.New().String()
	p := domain.Product{ProductID: id, ProductName: name, CacheID: "sp-" + id}
	_ = p.SetField("link", "/"+id+"/p")
	return backend.CatalogItem{Product: p, Brand: brand, CategoryPath: categories}
}

func TestES_Ping(t *testing.T) {
	b := newTestBackend(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	assert.NoError(t, b.Ping(ctx))
}

func TestES_SearchByTextAndCategory(t *testing.T) {
	b := newTestBackend(t)
	ctx := context.Background()

	trail := newTestItem("Trail Running Shoe", "Acme", "shoes", "running")
	boot := newTestItem("Leather Boot", "Acme", "shoes", "boots")
	shorts := newTestItem("Running Shorts", "Zoom", "apparel")
	require.NoError(t, b.BulkIndex(ctx, []backend.CatalogItem{trail, boot, shorts}))

	res, err := b.ProductSearch(ctx, domain.SearchArgs{Query: "running"})
	require.NoError(t, err)
	assert.Len(t, res.Products, 2)

	res, err = b.ProductSearch(ctx, domain.SearchArgs{Path: "c/shoes"})
	require.NoError(t, err)
	assert.Len(t, res.Products, 2)

	res, err = b.ProductSearch(ctx, domain.SearchArgs{Path: "c/shoes/boots"})
	require.NoError(t, err)
	require.Len(t, res.Products, 1)
	assert.Equal(t, boot.Product.ProductID, res.Products[0].ProductID)

	link, ok := res.Products[0].Field("link")
	require.True(t, ok)
	assert.JSONEq(t, `"/`+boot.Product.ProductID+`/p"`, string(link))
}

func TestES_Facets(t *testing.T) {
	b := newTestBackend(t)
	ctx := context.Background()

	require.NoError(t, b.BulkIndex(ctx, []backend.CatalogItem{
		newTestItem("Trail Running Shoe", "Acme", "shoes", "running"),
		newTestItem("Road Running Shoe", "Zoom", "shoes", "running"),
	}))

	res, err := b.Facets(ctx, domain.SearchArgs{Path: "c/shoes"})
	require.NoError(t, err)
	require.NotEmpty(t, res.Facets)
	assert.Equal(t, "Category", res.Facets[0].Name)
}

func TestES_ProductByID(t *testing.T) {
	b := newTestBackend(t)
	ctx := context.Background()

	item := newTestItem("Leather Boot", "Acme", "shoes")
	require.NoError(t, b.BulkIndex(ctx, []backend.CatalogItem{item}))

	p, err := b.ProductByID(ctx, item.Product.ProductID, domain.SearchArgs{})
	require.NoError(t, err)
	require.NotNil(t, p)
	assert.Equal(t, "Leather Boot", p.ProductName)

	missing, err := b.ProductByID(ctx, uuid.New().String(), domain.SearchArgs{})
	require.NoError(t, err)
	assert.Nil(t, missing)
}
