package util

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	JobsDispatchedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "scrape_jobs_dispatched_total",
		Help: "Total number of scrape jobs dispatched",
	}, []string{"market"})

	JobsSucceededTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "scrape_jobs_succeeded_total",
		Help: "Total number of scrape jobs that succeeded",
	}, []string{"market"})

	JobsFailedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "scrape_jobs_failed_total",
		Help: "Total number of scrape jobs that exhausted their retry budget",
	}, []string{"market", "reason"})

	JobRetriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "scrape_job_retries_total",
		Help: "Total number of scrape job retry attempts",
	}, []string{"market"})

	JobDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "scrape_job_duration_seconds",
		Help:    "Duration of scrape job execution",
		Buckets: prometheus.DefBuckets,
	}, []string{"market"})

	FullSweepsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "full_sweeps_total",
		Help: "Total number of comprehensive full-sweep runs",
	})

	ProductsDiscoveredTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "products_discovered_total",
		Help: "Total number of products created on first observation",
	})

	PriceChangesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "price_changes_total",
		Help: "Total number of price changes recorded in history",
	})

	ReconcileNoopTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "reconcile_noop_total",
		Help: "Total number of observations with unchanged price",
	})

	ReconcileErrorsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "reconcile_errors_total",
		Help: "Total number of failed reconciliations",
	})

	ReconcileLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "reconcile_latency_seconds",
		Help:    "Latency of observation reconciliation",
		Buckets: prometheus.DefBuckets,
	})

	AccessDeniedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "access_denied_total",
		Help: "Total number of rejected non-service mutation attempts",
	}, []string{"operation"})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "HTTP request latency",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})
)
