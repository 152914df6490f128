package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"price-tracker/internal/models"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
)

type Store struct {
	db *sqlx.DB
}

// NewStore creates a new database store
func NewStore(databaseURL string) (*Store, error) {
	db, err := sqlx.Connect("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.db.Close()
}

// GetProductByID retrieves a product by ID
func (s *Store) GetProductByID(ctx context.Context, id int64) (*models.Product, error) {
	var product models.Product
	err := s.db.GetContext(ctx, &product, "SELECT * FROM products WHERE id = $1", id)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("product not found: %d", id)
	}
	if err != nil {
		return nil, err
	}
	return &product, nil
}

// GetProductByIdentity retrieves a product by its (market, city, name)
// identity. Returns nil without error when no such product exists; names
// are not globally unique, the full tuple is the key.
func (s *Store) GetProductByIdentity(ctx context.Context, marketID string, city *string, name string) (*models.Product, error) {
	var product models.Product
	err := s.db.GetContext(ctx, &product,
		"SELECT * FROM products WHERE market_id = $1 AND name = $2 AND city IS NOT DISTINCT FROM $3",
		marketID, name, city)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &product, nil
}

// ListProductsParams are the filters and paging for the public listing.
type ListProductsParams struct {
	Search        string
	MarketID      string
	City          string
	MinPriceCents int64
	MaxPriceCents int64
	Page          int
	Limit         int
}

// ListProducts returns one page of products plus the total row count for
// the given filters.
func (s *Store) ListProducts(ctx context.Context, p ListProductsParams) ([]models.Product, int, error) {
	where := "WHERE 1=1"
	args := []interface{}{}
	n := 0

	addArg := func(clause string, val interface{}) {
		n++
		where += fmt.Sprintf(" AND "+clause, n)
		args = append(args, val)
	}

	if p.Search != "" {
		addArg("name ILIKE '%%' || $%d || '%%'", p.Search)
	}
	if p.MarketID != "" {
		addArg("market_id = $%d", p.MarketID)
	}
	if p.City != "" {
		addArg("city = $%d", p.City)
	}
	if p.MinPriceCents > 0 {
		addArg("price_cents >= $%d", p.MinPriceCents)
	}
	if p.MaxPriceCents > 0 {
		addArg("price_cents <= $%d", p.MaxPriceCents)
	}

	var total int
	if err := s.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM products "+where, args...); err != nil {
		return nil, 0, err
	}

	limit := p.Limit
	if limit <= 0 {
		limit = 20
	}
	page := p.Page
	if page <= 0 {
		page = 1
	}
	offset := (page - 1) * limit

	query := fmt.Sprintf("SELECT * FROM products %s ORDER BY name, id LIMIT %d OFFSET %d", where, limit, offset)
	var products []models.Product
	if err := s.db.SelectContext(ctx, &products, query, args...); err != nil {
		return nil, 0, err
	}

	return products, total, nil
}

// GetPriceHistory returns the append-only history for a product, oldest
// first.
func (s *Store) GetPriceHistory(ctx context.Context, productID int64) ([]models.PriceHistoryRecord, error) {
	var records []models.PriceHistoryRecord
	err := s.db.SelectContext(ctx, &records,
		"SELECT * FROM price_history WHERE product_id = $1 ORDER BY recorded_at, id", productID)
	return records, err
}

// GetRecentFailures returns the latest terminal scrape failures.
func (s *Store) GetRecentFailures(ctx context.Context, limit int) ([]models.ScrapeFailure, error) {
	if limit <= 0 {
		limit = 50
	}
	var failures []models.ScrapeFailure
	err := s.db.SelectContext(ctx, &failures,
		"SELECT * FROM scrape_failures ORDER BY recorded_at DESC LIMIT $1", limit)
	return failures, err
}
