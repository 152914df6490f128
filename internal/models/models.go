package models

import "time"

// Market represents a retailer whose prices are collected. Markets are
// immutable reference data loaded at process start by the registry.
type Market struct {
	ID                string `json:"id"`
	Name              string `json:"name"`
	CityScoped        bool   `json:"city_scoped"`
	MaxCategories     int    `json:"max_categories"`
	MaxProductsPerRun int    `json:"max_products_per_run"`
	// DefaultTimeSlot is the preferred daily start time in "HH:MM" form.
	DefaultTimeSlot string `json:"default_time_slot"`
}

// City is a geographic scrape target.
type City struct {
	ID         string  `json:"id"`
	Name       string  `json:"name"`
	Region     string  `json:"region"`
	Lat        float64 `json:"lat"`
	Lng        float64 `json:"lng"`
	Population int     `json:"population,omitempty"`
}

// Product is one (market, city, name) priced item. Prices are integer cents.
type Product struct {
	ID         int64     `db:"id" json:"id"`
	Name       string    `db:"name" json:"name"`
	Category   string    `db:"category" json:"category"`
	MarketID   string    `db:"market_id" json:"market_id"`
	City       *string   `db:"city" json:"city,omitempty"`
	PriceCents int64     `db:"price_cents" json:"price_cents"`
	Quantity   string    `db:"quantity" json:"quantity,omitempty"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time `db:"updated_at" json:"updated_at"`
}

// PriceHistoryRecord is one detected price change. Rows are append-only and
// for a given product old_price_cents of row n equals new_price_cents of
// row n-1.
type PriceHistoryRecord struct {
	ID            int64     `db:"id" json:"id"`
	ProductID     int64     `db:"product_id" json:"product_id"`
	OldPriceCents int64     `db:"old_price_cents" json:"old_price_cents"`
	NewPriceCents int64     `db:"new_price_cents" json:"new_price_cents"`
	RecordedAt    time.Time `db:"recorded_at" json:"recorded_at"`
}

// Observation is one raw (product, price) fact reported by a market scraper.
type Observation struct {
	MarketID   string    `json:"market_id"`
	City       *string   `json:"city,omitempty"`
	Name       string    `json:"name"`
	Category   string    `json:"category"`
	PriceCents int64     `json:"price_cents"`
	Quantity   string    `json:"quantity,omitempty"`
	ObservedAt time.Time `json:"observed_at"`
}

// ScrapeJob is one unit of dispatched work for a (market, city-or-null) pair.
type ScrapeJob struct {
	ID          string    `json:"id"`
	MarketID    string    `json:"market_id"`
	City        *City     `json:"city,omitempty"`
	RequestedAt time.Time `json:"requested_at"`
	Status      string    `json:"status"`
	Attempts    int       `json:"attempts"`
	FullSweep   bool      `json:"full_sweep"`
}

// Job statuses
const (
	JobStatusPending   = "PENDING"
	JobStatusRunning   = "RUNNING"
	JobStatusSucceeded = "SUCCEEDED"
	JobStatusFailed    = "FAILED"
	JobStatusRetrying  = "RETRYING"
)

// ScrapeFailure records a job that exhausted its retry budget so operators
// can see which (market, city) pairs are not being covered.
type ScrapeFailure struct {
	ID         int64     `db:"id" json:"id"`
	MarketID   string    `db:"market_id" json:"market_id"`
	City       *string   `db:"city" json:"city,omitempty"`
	Reason     string    `db:"reason" json:"reason"`
	Attempts   int       `db:"attempts" json:"attempts"`
	RecordedAt time.Time `db:"recorded_at" json:"recorded_at"`
}
