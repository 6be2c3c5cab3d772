// Package metrics exposes Prometheus collectors for the crawlchat service.
package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	pagesScrapedTotal          prometheus.Counter
	pagesFailedTotal           prometheus.Counter
	activeFetches              prometheus.Gauge
	embedBatchesTotal          *prometheus.CounterVec
	upsertBatchesTotal         *prometheus.CounterVec
	crawlRunsTotal             *prometheus.CounterVec
	httpRequestsTotal          *prometheus.CounterVec
	httpRequestDurationSeconds *prometheus.HistogramVec

	once sync.Once
)

// Init initializes the Prometheus metrics collectors.
// It is safe to call this function multiple times.
func Init() {
	once.Do(func() {
		pagesScrapedTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "crawlchat_pages_scraped_total",
				Help: "Total number of pages scraped successfully.",
			},
		)

		pagesFailedTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "crawlchat_pages_failed_total",
				Help: "Total number of page fetches that failed terminally.",
			},
		)

		activeFetches = promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "crawlchat_active_fetches",
				Help: "Number of in-flight page fetches.",
			},
		)

		embedBatchesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "crawlchat_embed_batches_total",
				Help: "Total number of embedding batches, labeled by outcome.",
			},
			[]string{"outcome"},
		)

		upsertBatchesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "crawlchat_upsert_batches_total",
				Help: "Total number of vector upsert batches, labeled by outcome.",
			},
			[]string{"outcome"},
		)

		crawlRunsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "crawlchat_runs_total",
				Help: "Total number of crawl runs, labeled by result.",
			},
			[]string{"result"},
		)

		httpRequestsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests, labeled by method and code.",
			},
			[]string{"method", "code"},
		)

		httpRequestDurationSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "Histogram of HTTP request latencies, labeled by method and route.",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5},
			},
			[]string{"method", "route"},
		)
	})
}

// PageScraped increments the scraped page counter.
func PageScraped() {
	if pagesScrapedTotal != nil {
		pagesScrapedTotal.Inc()
	}
}

// PageFailed increments the failed page counter.
func PageFailed() {
	if pagesFailedTotal != nil {
		pagesFailedTotal.Inc()
	}
}

// FetchStarted marks a fetch as in flight.
func FetchStarted() {
	if activeFetches != nil {
		activeFetches.Inc()
	}
}

// FetchFinished marks a fetch as done.
func FetchFinished() {
	if activeFetches != nil {
		activeFetches.Dec()
	}
}

// EmbedBatch records an embedding batch outcome ("ok" or "error").
func EmbedBatch(outcome string) {
	if embedBatchesTotal != nil {
		embedBatchesTotal.WithLabelValues(outcome).Inc()
	}
}

// UpsertBatch records a vector upsert batch outcome ("ok" or "error").
func UpsertBatch(outcome string) {
	if upsertBatchesTotal != nil {
		upsertBatchesTotal.WithLabelValues(outcome).Inc()
	}
}

// CrawlRun records a completed crawl run ("success" or "error").
func CrawlRun(result string) {
	if crawlRunsTotal != nil {
		crawlRunsTotal.WithLabelValues(result).Inc()
	}
}

// ObserveHTTPRequest records one served HTTP request.
func ObserveHTTPRequest(method, route string, code string, dur time.Duration) {
	if httpRequestsTotal != nil {
		httpRequestsTotal.WithLabelValues(method, code).Inc()
	}
	if httpRequestDurationSeconds != nil {
		httpRequestDurationSeconds.WithLabelValues(method, route).Observe(dur.Seconds())
	}
}
