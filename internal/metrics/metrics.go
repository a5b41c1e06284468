// Package metrics exposes Prometheus collectors for the matcher service.
package metrics

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	crawlPagesTotal            *prometheus.CounterVec
	crawlRunsTotal             *prometheus.CounterVec
	crawlRecordsLast           prometheus.Gauge
	cacheRefreshTotal          *prometheus.CounterVec
	embeddingBatchesTotal      *prometheus.CounterVec
	searchRequestsTotal        *prometheus.CounterVec
	httpRequestsTotal          *prometheus.CounterVec
	httpRequestDurationSeconds *prometheus.HistogramVec

	once sync.Once
)

// Init initializes the Prometheus collectors. Safe to call multiple times.
func Init() {
	once.Do(func() {
		crawlPagesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "matcher_crawl_pages_total",
				Help: "Directory pages fetched, labeled by outcome.",
			},
			[]string{"outcome"},
		)
		crawlRunsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "matcher_crawl_runs_total",
				Help: "Crawl cycles executed, labeled by final status.",
			},
			[]string{"status"},
		)
		crawlRecordsLast = promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "matcher_crawl_records_last",
				Help: "Record count produced by the most recent crawl.",
			},
		)
		cacheRefreshTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "matcher_cache_refresh_total",
				Help: "Cache refreshes, labeled by trigger (scheduled, forced, stale).",
			},
			[]string{"trigger"},
		)
		embeddingBatchesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "matcher_embedding_batches_total",
				Help: "Embedding batches sent upstream, labeled by status.",
			},
			[]string{"status"},
		)
		searchRequestsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "matcher_search_requests_total",
				Help: "Need-matching requests, labeled by mode (keyword, semantic, combine).",
			},
			[]string{"mode"},
		)
		httpRequestsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "HTTP requests, labeled by method and code.",
			},
			[]string{"method", "code"},
		)
		httpRequestDurationSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "HTTP request latencies, labeled by method and route.",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5},
			},
			[]string{"method", "route"},
		)
	})
}

// ObserveCrawlPage records one page fetch outcome ("ok" or "failed").
func ObserveCrawlPage(outcome string) {
	if crawlPagesTotal != nil {
		crawlPagesTotal.WithLabelValues(outcome).Inc()
	}
}

// ObserveCrawlRun records a finished crawl cycle and its record yield.
func ObserveCrawlRun(status string, records int) {
	if crawlRunsTotal != nil {
		crawlRunsTotal.WithLabelValues(status).Inc()
	}
	if crawlRecordsLast != nil {
		crawlRecordsLast.Set(float64(records))
	}
}

// ObserveCacheRefresh records what caused a cache refresh.
func ObserveCacheRefresh(trigger string) {
	if cacheRefreshTotal != nil {
		cacheRefreshTotal.WithLabelValues(trigger).Inc()
	}
}

// ObserveEmbeddingBatch records one upstream embedding call.
func ObserveEmbeddingBatch(status string) {
	if embeddingBatchesTotal != nil {
		embeddingBatchesTotal.WithLabelValues(status).Inc()
	}
}

// ObserveSearch records a matching request by mode.
func ObserveSearch(mode string) {
	if searchRequestsTotal != nil {
		searchRequestsTotal.WithLabelValues(mode).Inc()
	}
}

// ObserveHTTPRequest records a served HTTP request.
func ObserveHTTPRequest(method, route string, code int, duration time.Duration) {
	if httpRequestsTotal != nil {
		httpRequestsTotal.WithLabelValues(method, strconv.Itoa(code)).Inc()
	}
	if httpRequestDurationSeconds != nil {
		httpRequestDurationSeconds.WithLabelValues(method, route).Observe(duration.Seconds())
	}
}
