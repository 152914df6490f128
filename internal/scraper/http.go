package scraper

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"price-tracker/internal/models"

	"github.com/PuerkitoBio/goquery"
)

const defaultUserAgent = "price-tracker/1.0"

// catalogItem is one product entry as the storefront APIs return it.
// Prices come back as decimal euro strings ("1,25") or numbers.
type catalogItem struct {
	Name     string          `json:"name"`
	Category string          `json:"category"`
	Price    json.RawMessage `json:"price"`
	Quantity string          `json:"quantity"`
}

// APIScraper collects observations from a market's JSON catalog endpoint.
// City-scoped markets get the city ID as a query parameter.
type APIScraper struct {
	client  *http.Client
	baseURL string
}

func NewAPIScraper(client *http.Client, baseURL string) *APIScraper {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &APIScraper{client: client, baseURL: baseURL}
}

func (s *APIScraper) Fetch(ctx context.Context, market models.Market, city *models.City, maxCategories, maxProducts int) ([]models.Observation, error) {
	u, err := url.Parse(s.baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid catalog URL for %s: %w", market.ID, err)
	}
	if city != nil {
		q := u.Query()
		q.Set("city", city.ID)
		u.RawQuery = q.Encode()
	}

	body, err := s.get(ctx, u.String())
	if err != nil {
		return nil, err
	}
	defer body.Close()

	var items []catalogItem
	if err := json.NewDecoder(body).Decode(&items); err != nil {
		return nil, fmt.Errorf("failed to decode catalog for %s: %w", market.ID, err)
	}

	return buildObservations(market, city, items, maxCategories, maxProducts)
}

func (s *APIScraper) get(ctx context.Context, rawURL string) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", defaultUserAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, err
	}
	if err := checkStatus(resp.StatusCode); err != nil {
		resp.Body.Close()
		return nil, err
	}
	return resp.Body, nil
}

// Selectors describe where product data lives on a market's listing page.
type Selectors struct {
	Product  string
	Name     string
	Price    string
	Category string
	Quantity string
}

// HTMLScraper collects observations from markets without a catalog API by
// walking their listing pages.
type HTMLScraper struct {
	client    *http.Client
	baseURL   string
	selectors Selectors
}

func NewHTMLScraper(client *http.Client, baseURL string, selectors Selectors) *HTMLScraper {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &HTMLScraper{client: client, baseURL: baseURL, selectors: selectors}
}

func (s *HTMLScraper) Fetch(ctx context.Context, market models.Market, city *models.City, maxCategories, maxProducts int) ([]models.Observation, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", defaultUserAgent)

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if err := checkStatus(resp.StatusCode); err != nil {
		return nil, err
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to parse listing for %s: %w", market.ID, err)
	}

	var items []catalogItem
	doc.Find(s.selectors.Product).Each(func(_ int, sel *goquery.Selection) {
		name := strings.TrimSpace(sel.Find(s.selectors.Name).Text())
		price := strings.TrimSpace(sel.Find(s.selectors.Price).Text())
		if name == "" || price == "" {
			return
		}
		item := catalogItem{
			Name:  name,
			Price: json.RawMessage(strconv.Quote(price)),
		}
		if s.selectors.Category != "" {
			item.Category = strings.TrimSpace(sel.Find(s.selectors.Category).Text())
		}
		if s.selectors.Quantity != "" {
			item.Quantity = strings.TrimSpace(sel.Find(s.selectors.Quantity).Text())
		}
		items = append(items, item)
	})

	return buildObservations(market, city, items, maxCategories, maxProducts)
}

// checkStatus maps HTTP status codes to fetch outcomes. A gone or blocked
// storefront is not worth retrying this cycle; everything else non-2xx is
// treated as transient.
func checkStatus(code int) error {
	switch {
	case code >= 200 && code < 300:
		return nil
	case code == http.StatusNotFound, code == http.StatusGone, code == http.StatusForbidden:
		return fmt.Errorf("%w: status %d", ErrMarketUnavailable, code)
	default:
		return fmt.Errorf("unexpected status %d", code)
	}
}

func buildObservations(market models.Market, city *models.City, items []catalogItem, maxCategories, maxProducts int) ([]models.Observation, error) {
	var cityName *string
	if city != nil {
		cityName = &city.Name
	}

	now := time.Now()
	seen := make(map[string]bool)
	observations := make([]models.Observation, 0, len(items))

	for _, item := range items {
		if maxProducts > 0 && len(observations) >= maxProducts {
			break
		}
		if item.Name == "" {
			continue
		}
		if item.Category != "" && !seen[item.Category] {
			if maxCategories > 0 && len(seen) >= maxCategories {
				continue
			}
			seen[item.Category] = true
		}
		cents, err := parsePriceCents(item.Price)
		if err != nil {
			continue
		}
		observations = append(observations, models.Observation{
			MarketID:   market.ID,
			City:       cityName,
			Name:       item.Name,
			Category:   item.Category,
			PriceCents: cents,
			Quantity:   item.Quantity,
			ObservedAt: now,
		})
	}

	return observations, nil
}

// parsePriceCents converts a scraped price into integer cents. Accepts JSON
// numbers ("1.25") and display strings ("1,25 €", "1.25 EUR").
func parsePriceCents(raw json.RawMessage) (int64, error) {
	s := strings.TrimSpace(string(raw))
	s = strings.Trim(s, `"`)
	s = strings.TrimSuffix(s, "€")
	s = strings.TrimSuffix(s, "EUR")
	s = strings.TrimSpace(s)
	s = strings.ReplaceAll(s, ",", ".")
	if s == "" {
		return 0, fmt.Errorf("empty price")
	}

	whole, frac, _ := strings.Cut(s, ".")
	euros, err := strconv.ParseInt(whole, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("bad price %q: %w", raw, err)
	}

	var cents int64
	if frac != "" {
		if len(frac) > 2 {
			frac = frac[:2]
		}
		for len(frac) < 2 {
			frac += "0"
		}
		cents, err = strconv.ParseInt(frac, 10, 64)
		if err != nil {
			return 0, fmt.Errorf("bad price %q: %w", raw, err)
		}
	}
	if euros < 0 {
		return 0, fmt.Errorf("negative price %q", raw)
	}
	return euros*100 + cents, nil
}
