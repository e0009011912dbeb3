package server

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus metrics for the cardfetch service.
var (
	httpRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "cardfetch_http_requests_total",
		Help: "Total HTTP requests by endpoint and status",
	}, []string{"endpoint", "status"})

	cacheHitsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "cardfetch_cache_hits_total",
		Help: "Total card cache hits",
	})

	cacheMissesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "cardfetch_cache_misses_total",
		Help: "Total card cache misses",
	})

	cacheSizeCards = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "cardfetch_cache_size_cards",
		Help: "Current number of cached cards",
	})

	queueDepth = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "cardfetch_queue_depth",
		Help: "Current number of card names waiting in the lookup queue",
	})

	queueRejectsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "cardfetch_queue_rejects_total",
		Help: "Total enqueue attempts rejected because the queue was full",
	})

	rateLimitedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "cardfetch_rate_limited_total",
		Help: "Total requests rejected by the rate limiter",
	})

	upstreamLookupsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "cardfetch_upstream_lookups_total",
		Help: "Total upstream card lookups by outcome",
	}, []string{"outcome"})

	upstreamRetriesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "cardfetch_upstream_retries_total",
		Help: "Total upstream lookup retry attempts",
	})

	upstreamLookupDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "cardfetch_upstream_lookup_duration_seconds",
		Help:    "Upstream lookup duration in seconds",
		Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30},
	})
)
