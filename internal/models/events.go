package models

import "time"

// Event types
const (
	EventTypePriceChanged      = "PRICE_CHANGED"
	EventTypeProductDiscovered = "PRODUCT_DISCOVERED"
	EventTypeJobFailed         = "JOB_FAILED"
	EventTypeSweepCompleted    = "SWEEP_COMPLETED"
)

// BaseEvent contains common fields for all events
type BaseEvent struct {
	EventID   string    `json:"event_id"`
	EventType string    `json:"event_type"`
	Timestamp time.Time `json:"timestamp"`
}

// PriceChangedEvent published when a reconciliation detects a real price
// change and writes a history record.
type PriceChangedEvent struct {
	BaseEvent
	ProductID     int64   `json:"product_id"`
	MarketID      string  `json:"market_id"`
	City          *string `json:"city,omitempty"`
	ProductName   string  `json:"product_name"`
	OldPriceCents int64   `json:"old_price_cents"`
	NewPriceCents int64   `json:"new_price_cents"`
}

// ProductDiscoveredEvent published on the first observation of a product.
type ProductDiscoveredEvent struct {
	BaseEvent
	ProductID  int64   `json:"product_id"`
	MarketID   string  `json:"market_id"`
	City       *string `json:"city,omitempty"`
	Name       string  `json:"name"`
	PriceCents int64   `json:"price_cents"`
}

// JobFailedEvent published when a scrape job exhausts its retry budget.
type JobFailedEvent struct {
	BaseEvent
	JobID    string  `json:"job_id"`
	MarketID string  `json:"market_id"`
	City     *string `json:"city,omitempty"`
	Reason   string  `json:"reason"`
	Attempts int     `json:"attempts"`
}

// SweepCompletedEvent published after a weekly full sweep finishes.
type SweepCompletedEvent struct {
	BaseEvent
	JobsTotal     int `json:"jobs_total"`
	JobsSucceeded int `json:"jobs_succeeded"`
	JobsFailed    int `json:"jobs_failed"`
}
