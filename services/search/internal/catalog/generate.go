// Package catalog generates synthetic catalogs for seeding the indexed search
// backends in development and load tests.
package catalog

import (
	"fmt"
	"math/rand"
	"strconv"

	"github.com/google/uuid"

	"github.com/utafrali/EcommerceGo/pkg/slug"
	"github.com/utafrali/EcommerceGo/services/search/internal/backend"
	"github.com/utafrali/EcommerceGo/services/search/internal/domain"
)

// productNamespace makes generated product ids stable across runs.
var productNamespace = uuid.MustParse("6f1c1f5e-8d2b-4f57-9a55-3c0f1d2e7a10")

type leafCategory struct {
	Name  string
	Types []string
}

type topCategory struct {
	Name   string
	Weight float64 // share of total products (sums to 1.0)
	Leaves []leafCategory
}

var topCategories = []topCategory{
	{
		Name:   "Dresses",
		Weight: 0.25,
		Leaves: []leafCategory{
			{"Maxi Dresses", []string{"Maxi Dress", "Wrap Maxi Dress", "Pleated Maxi Dress"}},
			{"Knit Dresses", []string{"Knit Dress", "Sweater Dress", "Ribbed Dress"}},
			{"Evening Dresses", []string{"Evening Gown", "Satin Gown", "Sequin Dress"}},
		},
	},
	{
		Name:   "Outerwear",
		Weight: 0.20,
		Leaves: []leafCategory{
			{"Coats", []string{"Wool Coat", "Trench Coat", "Parka"}},
			{"Jackets", []string{"Blazer", "Bomber Jacket", "Leather Jacket"}},
		},
	},
	{
		Name:   "Shoes",
		Weight: 0.25,
		Leaves: []leafCategory{
			{"Running", []string{"Trail Shoe", "Road Shoe", "Racing Flat"}},
			{"Boots", []string{"Chelsea Boot", "Hiking Boot", "Ankle Boot"}},
			{"Sneakers", []string{"Canvas Sneaker", "Leather Sneaker", "Tênis Casual"}},
		},
	},
	{
		Name:   "Accessories",
		Weight: 0.30,
		Leaves: []leafCategory{
			{"Bags", []string{"Tote Bag", "Crossbody Bag", "Backpack"}},
			{"Jewelry", []string{"Pendant Necklace", "Hoop Earrings", "Charm Bracelet"}},
			{"Scarves", []string{"Silk Scarf", "Wool Scarf", "Cotton Shawl"}},
		},
	},
}

var brands = []string{"Acme", "Northwind", "Contoso", "Fabrikam", "Tailspin", "Lumière", "Wingtip", "Adatum"}

var prefixes = []string{
	"Classic", "Striped", "Floral", "Pleated", "Embroidered",
	"Quilted", "Lightweight", "Oversized", "Slim", "Vintage",
}

var colors = []string{
	"Black", "Navy", "Ecru", "Pink", "Grey",
	"Khaki", "Burgundy", "Blue", "Beige", "Olive",
}

var descriptionTemplates = []string{
	"A comfortable %s for everyday wear, made to last.",
	"Elegant %s that works for both casual days and special occasions.",
	"Modern cut %s with careful finishing details.",
	"Our best-selling %s, now in new seasonal colors.",
}

// Generate returns n catalog items. The same seed always yields the same
// catalog, ids included.
func Generate(n int, seed int64) []backend.CatalogItem {
	if n <= 0 {
		return []backend.CatalogItem{}
	}
	rng := rand.New(rand.NewSource(seed))
	items := make([]backend.CatalogItem, 0, n)

	remaining := n
	for i, top := range topCategories {
		count := int(float64(n) * top.Weight)
		if i == len(topCategories)-1 {
			count = remaining
		}
		remaining -= count

		for j := 0; j < count; j++ {
			leaf := top.Leaves[j%len(top.Leaves)]
			items = append(items, newItem(rng, len(items), top.Name, leaf))
		}
	}
	return items
}

func newItem(rng *rand.Rand, idx int, top string, leaf leafCategory) backend.CatalogItem {
	productType := leaf.Types[rng.Intn(len(leaf.Types))]
	color := colors[rng.Intn(len(colors))]
	name := fmt.Sprintf("%s %s - %s", prefixes[rng.Intn(len(prefixes))], productType, color)
	brand := brands[idx%len(brands)]

	id := uuid.NewSHA1(productNamespace, []byte(strconv.Itoa(idx))).String()
	linkText := fmt.Sprintf("%s-%d", slug.Generate(name), idx)

	// Prices in cents, rounded to whole units.
	price := (9900 + rng.Intn(490000)) / 100

	p := domain.Product{
		ProductID:   id,
		ProductName: name,
		CacheID:     "sp-" + id,
		Properties:  []domain.Property{{Name: "Color", Values: []string{color}}},
	}
	// The fields are plain values; SetField only fails on typed names.
	_ = p.SetField("brand", brand)
	_ = p.SetField("linkText", linkText)
	_ = p.SetField("link", "/"+linkText+"/p")
	_ = p.SetField("categories", []string{"/" + top + "/" + leaf.Name + "/", "/" + top + "/"})
	_ = p.SetField("priceRange", map[string]any{
		"sellingPrice": map[string]int{"highPrice": price, "lowPrice": price},
	})

	return backend.CatalogItem{
		Product:      p,
		Description:  fmt.Sprintf(descriptionTemplates[rng.Intn(len(descriptionTemplates))], productType),
		Brand:        brand,
		CategoryPath: []string{slug.Generate(top), slug.Generate(leaf.Name)},
	}
}
