package store

import (
	"context"
	"database/sql"
	"fmt"

	"price-tracker/internal/auth"
	"price-tracker/internal/models"
	"price-tracker/internal/util"
)

// ReconcileResult describes what a reconciliation did.
type ReconcileResult struct {
	Product       models.Product
	Created       bool
	Changed       bool
	OldPriceCents int64
}

// ApplyObservation reconciles one observation against current state in a
// single transaction: create the product on first sight, no-op when the
// price is unchanged, otherwise update the price and append exactly one
// history record. The product row is locked FOR UPDATE so concurrent
// reconciliations of the same product cannot produce lost updates or
// duplicate history rows.
func (s *Store) ApplyObservation(ctx context.Context, obs models.Observation) (*ReconcileResult, error) {
	if err := auth.Check(ctx, auth.OpWriteProduct); err != nil {
		util.AccessDeniedTotal.WithLabelValues(string(auth.OpWriteProduct)).Inc()
		return nil, err
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	var product models.Product
	err = tx.GetContext(ctx, &product,
		"SELECT * FROM products WHERE market_id = $1 AND name = $2 AND city IS NOT DISTINCT FROM $3 FOR UPDATE",
		obs.MarketID, obs.Name, obs.City)

	if err == sql.ErrNoRows {
		// First observation: create the product, no history row. There is
		// no previous price to diff against.
		query := `
			INSERT INTO products (name, category, market_id, city, price_cents, quantity, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $7)
			RETURNING *`
		if err := tx.GetContext(ctx, &product, query,
			obs.Name, obs.Category, obs.MarketID, obs.City, obs.PriceCents, obs.Quantity, obs.ObservedAt); err != nil {
			return nil, fmt.Errorf("failed to insert product: %w", err)
		}
		if err := tx.Commit(); err != nil {
			return nil, err
		}
		return &ReconcileResult{Product: product, Created: true}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to lock product row: %w", err)
	}

	if product.PriceCents == obs.PriceCents {
		// Unchanged price, including duplicates replayed by a retried job.
		if err := tx.Commit(); err != nil {
			return nil, err
		}
		return &ReconcileResult{Product: product}, nil
	}

	if err := auth.Check(ctx, auth.OpWritePriceHistory); err != nil {
		util.AccessDeniedTotal.WithLabelValues(string(auth.OpWritePriceHistory)).Inc()
		return nil, err
	}

	oldPrice := product.PriceCents
	_, err = tx.ExecContext(ctx,
		"UPDATE products SET price_cents = $1, quantity = $2, updated_at = $3 WHERE id = $4",
		obs.PriceCents, obs.Quantity, obs.ObservedAt, product.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to update price: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		"INSERT INTO price_history (product_id, old_price_cents, new_price_cents, recorded_at) VALUES ($1, $2, $3, $4)",
		product.ID, oldPrice, obs.PriceCents, obs.ObservedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to insert history record: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}

	product.PriceCents = obs.PriceCents
	product.Quantity = obs.Quantity
	product.UpdatedAt = obs.ObservedAt
	return &ReconcileResult{Product: product, Changed: true, OldPriceCents: oldPrice}, nil
}

// DeleteProduct removes a product and its history. Gated like every other
// mutation; only the pipeline identity may call it.
func (s *Store) DeleteProduct(ctx context.Context, productID int64) error {
	if err := auth.Check(ctx, auth.OpDeleteProduct); err != nil {
		util.AccessDeniedTotal.WithLabelValues(string(auth.OpDeleteProduct)).Inc()
		return err
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM price_history WHERE product_id = $1", productID); err != nil {
		return fmt.Errorf("failed to delete history: %w", err)
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM products WHERE id = $1", productID); err != nil {
		return fmt.Errorf("failed to delete product: %w", err)
	}

	return tx.Commit()
}

// RecordScrapeFailure persists a terminal job failure for operators.
func (s *Store) RecordScrapeFailure(ctx context.Context, f *models.ScrapeFailure) error {
	if err := auth.Check(ctx, auth.OpWriteScrapeFailure); err != nil {
		util.AccessDeniedTotal.WithLabelValues(string(auth.OpWriteScrapeFailure)).Inc()
		return err
	}

	query := `
		INSERT INTO scrape_failures (market_id, city, reason, attempts, recorded_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id`
	return s.db.GetContext(ctx, &f.ID, query, f.MarketID, f.City, f.Reason, f.Attempts, f.RecordedAt)
}
