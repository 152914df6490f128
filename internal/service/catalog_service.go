package service

import (
	"context"

	"price-tracker/internal/models"
	"price-tracker/internal/store"
	"price-tracker/internal/util"

	"go.uber.org/zap"
)

// CatalogStore is the read surface the catalog service queries.
type CatalogStore interface {
	ListProducts(ctx context.Context, p store.ListProductsParams) ([]models.Product, int, error)
	GetProductByID(ctx context.Context, id int64) (*models.Product, error)
	GetPriceHistory(ctx context.Context, productID int64) ([]models.PriceHistoryRecord, error)
}

// CatalogService serves the public read surface: paginated, filterable
// product listings and per-product price history.
type CatalogService struct {
	store  CatalogStore
	logger *zap.Logger
}

func NewCatalogService(store CatalogStore) *CatalogService {
	return &CatalogService{store: store, logger: util.GetLogger()}
}

// ProductPage is one page of products plus pagination metadata.
type ProductPage struct {
	Products []models.Product `json:"products"`
	Page     int              `json:"page"`
	Limit    int              `json:"limit"`
	Total    int              `json:"total"`
	HasNext  bool             `json:"has_next"`
	HasPrev  bool             `json:"has_prev"`
	// CityFallback is set when a city filter matched nothing and the
	// results were re-fetched without it.
	CityFallback bool `json:"city_fallback,omitempty"`
}

// ListProducts returns a page of products. When a city filter yields zero
// rows but unfiltered data exists, it falls back to the unfiltered listing
// and flags the page accordingly.
func (s *CatalogService) ListProducts(ctx context.Context, params store.ListProductsParams) (*ProductPage, error) {
	ctx, span := util.StartSpan(ctx, "CatalogService.ListProducts")
	defer span.End()

	if params.Page <= 0 {
		params.Page = 1
	}
	if params.Limit <= 0 {
		params.Limit = 20
	}

	products, total, err := s.store.ListProducts(ctx, params)
	if err != nil {
		return nil, err
	}

	fallback := false
	if total == 0 && params.City != "" {
		unfiltered := params
		unfiltered.City = ""
		products, total, err = s.store.ListProducts(ctx, unfiltered)
		if err != nil {
			return nil, err
		}
		if total > 0 {
			fallback = true
			s.logger.Debug("City filter matched nothing, returning unfiltered results",
				zap.String("city", params.City))
		}
	}

	return &ProductPage{
		Products:     products,
		Page:         params.Page,
		Limit:        params.Limit,
		Total:        total,
		HasNext:      params.Page*params.Limit < total,
		HasPrev:      params.Page > 1,
		CityFallback: fallback,
	}, nil
}

// ProductHistory returns a product together with its price history.
func (s *CatalogService) ProductHistory(ctx context.Context, productID int64) (*models.Product, []models.PriceHistoryRecord, error) {
	product, err := s.store.GetProductByID(ctx, productID)
	if err != nil {
		return nil, nil, err
	}

	history, err := s.store.GetPriceHistory(ctx, productID)
	if err != nil {
		return nil, nil, err
	}

	return product, history, nil
}
