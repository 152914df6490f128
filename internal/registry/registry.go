package registry

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"

	"price-tracker/internal/models"
)

// Registry is the static catalog of markets and cities. It is loaded once at
// process start and read-only afterwards.
type Registry struct {
	markets map[string]models.Market
	order   []string
	cities  []models.City
}

type marketsFile struct {
	Markets []models.Market `json:"markets"`
	// Schedules optionally overrides the preferred time slot per market.
	Schedules map[string]string `json:"schedules,omitempty"`
}

// New loads the registry from the given JSON files. Empty paths fall back to
// the built-in default catalog. Any schedule override referencing an unknown
// market, or a duplicate market ID, is an error: the scheduler must not run
// against an inconsistent registry.
func New(marketsPath, citiesPath string, prioritizeByPopulation bool) (*Registry, error) {
	mf, err := loadMarkets(marketsPath)
	if err != nil {
		return nil, err
	}

	cities, err := loadCities(citiesPath)
	if err != nil {
		return nil, err
	}

	r := &Registry{markets: make(map[string]models.Market, len(mf.Markets))}
	for _, m := range mf.Markets {
		if _, dup := r.markets[m.ID]; dup {
			return nil, fmt.Errorf("duplicate market id %q in registry", m.ID)
		}
		r.markets[m.ID] = m
		r.order = append(r.order, m.ID)
	}

	for id, slot := range mf.Schedules {
		m, ok := r.markets[id]
		if !ok {
			return nil, fmt.Errorf("schedule references unknown market %q", id)
		}
		m.DefaultTimeSlot = slot
		r.markets[id] = m
	}

	if prioritizeByPopulation {
		sort.SliceStable(cities, func(i, j int) bool {
			return cities[i].Population > cities[j].Population
		})
	}
	r.cities = cities

	return r, nil
}

// Markets returns all markets in registration order.
func (r *Registry) Markets() []models.Market {
	out := make([]models.Market, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.markets[id])
	}
	return out
}

// MarketsFor returns the markets matching the given city-scoping flag, in
// registration order.
func (r *Registry) MarketsFor(cityScoped bool) []models.Market {
	var out []models.Market
	for _, id := range r.order {
		if m := r.markets[id]; m.CityScoped == cityScoped {
			out = append(out, m)
		}
	}
	return out
}

// Config returns the configuration of a single market.
func (r *Registry) Config(marketID string) (models.Market, error) {
	m, ok := r.markets[marketID]
	if !ok {
		return models.Market{}, fmt.Errorf("unknown market: %s", marketID)
	}
	return m, nil
}

// Cities returns the full city list, ordered by population descending when
// prioritization was enabled at load time.
func (r *Registry) Cities() []models.City {
	return r.cities
}

func loadMarkets(path string) (*marketsFile, error) {
	if path == "" {
		return &marketsFile{Markets: defaultMarkets()}, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read markets file: %w", err)
	}
	var mf marketsFile
	if err := json.Unmarshal(data, &mf); err != nil {
		return nil, fmt.Errorf("failed to parse markets file: %w", err)
	}
	if len(mf.Markets) == 0 {
		return nil, fmt.Errorf("markets file %s defines no markets", path)
	}
	return &mf, nil
}

func loadCities(path string) ([]models.City, error) {
	if path == "" {
		return defaultCities(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read cities file: %w", err)
	}
	var cities []models.City
	if err := json.Unmarshal(data, &cities); err != nil {
		return nil, fmt.Errorf("failed to parse cities file: %w", err)
	}
	if len(cities) == 0 {
		return nil, fmt.Errorf("cities file %s defines no cities", path)
	}
	return cities, nil
}
