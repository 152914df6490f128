package api

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"price-tracker/internal/orchestrator"
	"price-tracker/internal/service"
	"price-tracker/internal/store"
	"price-tracker/internal/util"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Handler contains HTTP handlers
type Handler struct {
	catalog      *service.CatalogService
	store        *store.Store
	orchestrator *orchestrator.Orchestrator
}

// NewHandler creates a new HTTP handler
func NewHandler(catalog *service.CatalogService, st *store.Store, o *orchestrator.Orchestrator) *Handler {
	return &Handler{
		catalog:      catalog,
		store:        st,
		orchestrator: o,
	}
}

// SetupRoutes sets up HTTP routes
func (h *Handler) SetupRoutes(router *gin.Engine) {
	router.Use(gin.Recovery())
	router.Use(prometheusMiddleware())
	router.Use(gin.Logger())

	router.GET("/health", h.healthCheck)
	router.GET("/ready", h.readinessCheck)

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := router.Group("/api/v1")
	{
		v1.GET("/products", h.listProducts)
		v1.GET("/products/:id/history", h.productHistory)
		v1.GET("/failures", h.recentFailures)
		v1.POST("/scrape/run", h.triggerScrape)
	}
}

// healthCheck handles health check requests
func (h *Handler) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "healthy",
		"time":   time.Now().Unix(),
	})
}

// readinessCheck handles readiness check requests
func (h *Handler) readinessCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ready",
		"time":   time.Now().Unix(),
	})
}

// listProducts serves the paginated public product listing. All callers
// are read-only here; no identity is attached.
func (h *Handler) listProducts(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	minPrice, _ := strconv.ParseInt(c.DefaultQuery("min_price_cents", "0"), 10, 64)
	maxPrice, _ := strconv.ParseInt(c.DefaultQuery("max_price_cents", "0"), 10, 64)

	params := store.ListProductsParams{
		Search:        c.Query("search"),
		MarketID:      c.Query("market"),
		City:          c.Query("city"),
		MinPriceCents: minPrice,
		MaxPriceCents: maxPrice,
		Page:          page,
		Limit:         limit,
	}

	result, err := h.catalog.ListProducts(c.Request.Context(), params)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "Failed to list products",
			"details": err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, result)
}

// productHistory serves a product and its append-only price history.
func (h *Handler) productHistory(c *gin.Context) {
	idStr := c.Param("id")
	productID, err := strconv.ParseInt(idStr, 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid product ID",
		})
		return
	}

	product, history, err := h.catalog.ProductHistory(c.Request.Context(), productID)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{
			"error":   "Product not found",
			"details": err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"product": product,
		"history": history,
	})
}

// recentFailures lists the latest terminal scrape failures for operators.
func (h *Handler) recentFailures(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))

	failures, err := h.store.GetRecentFailures(c.Request.Context(), limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "Failed to list failures",
			"details": err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{"failures": failures})
}

// triggerScrape kicks off a due-work evaluation outside the normal tick,
// for manual catch-up runs.
func (h *Handler) triggerScrape(c *gin.Context) {
	// Detached from the request context: the run outlives the response.
	now := time.Now()
	go h.orchestrator.RunDueWork(context.Background(), now)

	c.JSON(http.StatusAccepted, gin.H{
		"status":       "scheduled",
		"requested_at": now.Unix(),
	})
}

// prometheusMiddleware collects HTTP metrics
func prometheusMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(c.Writer.Status())

		util.HTTPRequestDuration.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			status,
		).Observe(duration)

		util.HTTPRequestsTotal.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			status,
		).Inc()
	}
}
