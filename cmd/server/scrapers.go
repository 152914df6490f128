package main

import (
	"net/http"
	"time"

	"price-tracker/internal/registry"
	"price-tracker/internal/scraper"
)

// Per-market storefront endpoints. Markets with a JSON catalog API use the
// API scraper; the rest are scraped from their listing pages.
var apiEndpoints = map[string]string{
	"carrefour":  "https://www.carrefour.es/cloud-api/plp-food/v1/catalog",
	"mercadona":  "https://tienda.mercadona.es/api/categories",
	"lidl":       "https://www.lidl.es/p/api/gridboxes/ES/es",
	"elcorte":    "https://www.elcorteingles.es/alimentacion/api/catalog",
	"condisline": "https://www.condisline.com/api/catalog",
	"bonpreu":    "https://www.compraonline.bonpreuesclat.cat/api/v5/products",
	"consum":     "https://tienda.consum.es/api/rest/V1.0/catalog",
}

var htmlEndpoints = map[string]struct {
	url       string
	selectors scraper.Selectors
}{
	"dia": {
		url: "https://www.dia.es/compra-online/productos",
		selectors: scraper.Selectors{
			Product:  ".product-card",
			Name:     ".details .description",
			Price:    ".price",
			Quantity: ".average-price",
		},
	},
	"alcampo": {
		url: "https://www.compraonline.alcampo.es/categories",
		selectors: scraper.Selectors{
			Product: "[data-test='fop-wrapper']",
			Name:    "[data-test='fop-title']",
			Price:   "[data-test='fop-price']",
		},
	},
	"bonarea": {
		url: "https://www.bonarea-online.com/es/shop",
		selectors: scraper.Selectors{
			Product: ".product-item",
			Name:    ".product-name",
			Price:   ".product-price",
		},
	},
	"aldi": {
		url: "https://www.aldi.es/productos.html",
		selectors: scraper.Selectors{
			Product:  ".mod-article-tile",
			Name:     ".mod-article-tile__title",
			Price:    ".price__wrapper",
			Quantity: ".price__unit",
		},
	},
}

// registerScrapers binds a scraper to every market in the registry. Markets
// without a known endpoint are registered as unavailable so their jobs fail
// fast instead of burning the retry budget.
func registerScrapers(scrapers *scraper.Registry, reg *registry.Registry) {
	client := &http.Client{Timeout: 30 * time.Second}

	for _, m := range reg.Markets() {
		if base, ok := apiEndpoints[m.ID]; ok {
			scrapers.Register(m.ID, scraper.NewAPIScraper(client, base))
			continue
		}
		if site, ok := htmlEndpoints[m.ID]; ok {
			scrapers.Register(m.ID, scraper.NewHTMLScraper(client, site.url, site.selectors))
			continue
		}
		scrapers.Register(m.ID, scraper.Unavailable(m.ID))
	}
}
