package scraper

import (
	"context"
	"errors"
	"fmt"

	"price-tracker/internal/models"
)

// ErrMarketUnavailable signals that a market is permanently unavailable for
// the rest of the cycle. The orchestrator does not retry a job that fails
// with this error; every other failure is treated as transient.
var ErrMarketUnavailable = errors.New("market unavailable")

// Scraper is the external per-market collaborator. Implementations fetch
// raw product observations for a (market, city) pair; the core treats them
// as opaque capabilities.
type Scraper interface {
	// Fetch returns raw observations for the market, limited to
	// maxCategories categories and maxProducts products. city is nil for
	// single-location markets.
	Fetch(ctx context.Context, market models.Market, city *models.City, maxCategories, maxProducts int) ([]models.Observation, error)
}

// Registry maps market IDs to their scraper implementations.
type Registry struct {
	scrapers map[string]Scraper
}

func NewRegistry() *Registry {
	return &Registry{scrapers: make(map[string]Scraper)}
}

// Register binds a scraper to a market ID. Later registrations replace
// earlier ones.
func (r *Registry) Register(marketID string, s Scraper) {
	r.scrapers[marketID] = s
}

// For returns the scraper for a market.
func (r *Registry) For(marketID string) (Scraper, error) {
	s, ok := r.scrapers[marketID]
	if !ok {
		return nil, fmt.Errorf("no scraper registered for market %s", marketID)
	}
	return s, nil
}

// Unavailable returns a scraper that always fails with
// ErrMarketUnavailable, for markets with no working endpoint.
func Unavailable(marketID string) Scraper {
	return Func(func(ctx context.Context, market models.Market, city *models.City, maxCategories, maxProducts int) ([]models.Observation, error) {
		return nil, fmt.Errorf("%w: no endpoint for %s", ErrMarketUnavailable, marketID)
	})
}

// Func adapts a plain function to the Scraper interface.
type Func func(ctx context.Context, market models.Market, city *models.City, maxCategories, maxProducts int) ([]models.Observation, error)

func (f Func) Fetch(ctx context.Context, market models.Market, city *models.City, maxCategories, maxProducts int) ([]models.Observation, error) {
	return f(ctx, market, city, maxCategories, maxProducts)
}
