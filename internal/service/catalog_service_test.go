package service

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"price-tracker/internal/models"
	"price-tracker/internal/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memoryCatalogStore struct {
	products []models.Product
}

func (m *memoryCatalogStore) ListProducts(_ context.Context, p store.ListProductsParams) ([]models.Product, int, error) {
	var matched []models.Product
	for _, prod := range m.products {
		if p.Search != "" && !strings.Contains(strings.ToLower(prod.Name), strings.ToLower(p.Search)) {
			continue
		}
		if p.MarketID != "" && prod.MarketID != p.MarketID {
			continue
		}
		if p.City != "" && (prod.City == nil || *prod.City != p.City) {
			continue
		}
		if p.MinPriceCents > 0 && prod.PriceCents < p.MinPriceCents {
			continue
		}
		if p.MaxPriceCents > 0 && prod.PriceCents > p.MaxPriceCents {
			continue
		}
		matched = append(matched, prod)
	}

	total := len(matched)
	start := (p.Page - 1) * p.Limit
	if start > total {
		start = total
	}
	end := start + p.Limit
	if end > total {
		end = total
	}
	return matched[start:end], total, nil
}

func (m *memoryCatalogStore) GetProductByID(_ context.Context, id int64) (*models.Product, error) {
	for i := range m.products {
		if m.products[i].ID == id {
			return &m.products[i], nil
		}
	}
	return nil, fmt.Errorf("product not found: %d", id)
}

func (m *memoryCatalogStore) GetPriceHistory(_ context.Context, _ int64) ([]models.PriceHistoryRecord, error) {
	return nil, nil
}

func catalogFixture() *memoryCatalogStore {
	madrid := "Madrid"
	ms := &memoryCatalogStore{}
	for i := 0; i < 25; i++ {
		ms.products = append(ms.products, models.Product{
			ID:         int64(i + 1),
			Name:       fmt.Sprintf("Product %02d", i),
			MarketID:   "lidl",
			PriceCents: int64(100 + i*10),
		})
	}
	ms.products = append(ms.products, models.Product{
		ID: 100, Name: "Jamón", MarketID: "carrefour", City: &madrid, PriceCents: 999,
	})
	return ms
}

func TestListProductsPagination(t *testing.T) {
	svc := NewCatalogService(catalogFixture())
	ctx := context.Background()

	page, err := svc.ListProducts(ctx, store.ListProductsParams{Page: 1, Limit: 10})
	require.NoError(t, err)
	assert.Len(t, page.Products, 10)
	assert.Equal(t, 26, page.Total)
	assert.True(t, page.HasNext)
	assert.False(t, page.HasPrev)

	page, err = svc.ListProducts(ctx, store.ListProductsParams{Page: 3, Limit: 10})
	require.NoError(t, err)
	assert.Len(t, page.Products, 6)
	assert.False(t, page.HasNext)
	assert.True(t, page.HasPrev)
}

func TestListProductsDefaults(t *testing.T) {
	svc := NewCatalogService(catalogFixture())

	page, err := svc.ListProducts(context.Background(), store.ListProductsParams{})
	require.NoError(t, err)
	assert.Equal(t, 1, page.Page)
	assert.Equal(t, 20, page.Limit)
}

func TestListProductsCityFallback(t *testing.T) {
	svc := NewCatalogService(catalogFixture())
	ctx := context.Background()

	// A city with no rows falls back to the unfiltered listing and says so.
	page, err := svc.ListProducts(ctx, store.ListProductsParams{City: "Bilbao", Page: 1, Limit: 10})
	require.NoError(t, err)
	assert.True(t, page.CityFallback)
	assert.Equal(t, 26, page.Total)

	// A city with rows does not fall back.
	page, err = svc.ListProducts(ctx, store.ListProductsParams{City: "Madrid", Page: 1, Limit: 10})
	require.NoError(t, err)
	assert.False(t, page.CityFallback)
	assert.Equal(t, 1, page.Total)
}

func TestListProductsFilters(t *testing.T) {
	svc := NewCatalogService(catalogFixture())
	ctx := context.Background()

	page, err := svc.ListProducts(ctx, store.ListProductsParams{Search: "jamón", Page: 1, Limit: 10})
	require.NoError(t, err)
	require.Len(t, page.Products, 1)
	assert.Equal(t, "Jamón", page.Products[0].Name)

	page, err = svc.ListProducts(ctx, store.ListProductsParams{
		MarketID: "lidl", MinPriceCents: 300, MaxPriceCents: 320, Page: 1, Limit: 10,
	})
	require.NoError(t, err)
	assert.Len(t, page.Products, 3)
}
