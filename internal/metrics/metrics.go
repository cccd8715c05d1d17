// Package metrics provides Prometheus metrics for ghimg.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/dl-alexandre/ghimg/internal/types"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Remote store metrics
	remoteRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ghimg_remote_requests_total",
			Help: "Total number of requests to the remote tree store",
		},
		[]string{"backend", "status"},
	)

	remoteRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ghimg_remote_request_duration_seconds",
			Help:    "Remote tree store request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"backend"},
	)

	// Cache metrics
	cacheHitsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ghimg_cache_hits_total",
			Help: "Total cache hits",
		},
		[]string{"cache"},
	)

	cacheMissesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ghimg_cache_misses_total",
			Help: "Total cache misses, including expired records",
		},
		[]string{"cache"},
	)

	cacheEntries = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "ghimg_cache_entries",
			Help: "Number of records held by a cache",
		},
		[]string{"cache"},
	)

	// Transfer metrics
	transferItemsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ghimg_transfer_items_total",
			Help: "Total bulk transfer items by outcome",
		},
		[]string{"state"},
	)

	transferBytesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "ghimg_transfer_bytes_total",
			Help: "Total bytes packaged into transfer archives",
		},
	)

	// Search metrics
	searchDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "ghimg_search_duration_seconds",
			Help:    "Search duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	searchResults = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "ghimg_search_results",
			Help:    "Number of results returned per search",
			Buckets: []float64{0, 1, 5, 10, 25, 50, 100, 250, 1000},
		},
	)

	// HTTP API metrics
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ghimg_http_requests_total",
			Help: "Total number of HTTP API requests",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ghimg_http_request_duration_seconds",
			Help:    "HTTP API request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)
)

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// RecordHTTPRequest records an HTTP API request metric.
func RecordHTTPRequest(method, path string, status int, duration time.Duration) {
	httpRequestsTotal.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
	httpRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// RecordSearch records the duration and size of a completed search.
func RecordSearch(duration time.Duration, results int) {
	searchDuration.Observe(duration.Seconds())
	searchResults.Observe(float64(results))
}

// Observer forwards engine notifications to the package collectors. It
// satisfies types.RequestObserver, cache.Observer and transfer.Observer.
type Observer struct{}

var _ types.RequestObserver = Observer{}

// ObserveRequest records one remote store request. Status 0 means no
// response was received.
func (Observer) ObserveRequest(backend string, status int, duration time.Duration) {
	label := "error"
	if status > 0 {
		label = strconv.Itoa(status)
	}
	remoteRequestsTotal.WithLabelValues(backend, label).Inc()
	remoteRequestDuration.WithLabelValues(backend).Observe(duration.Seconds())
}

func (Observer) CacheHit(name string) {
	cacheHitsTotal.WithLabelValues(name).Inc()
}

func (Observer) CacheMiss(name string) {
	cacheMissesTotal.WithLabelValues(name).Inc()
}

func (Observer) CacheSize(name string, size int) {
	cacheEntries.WithLabelValues(name).Set(float64(size))
}

// ObserveTask records a transfer item reaching a terminal state.
func (Observer) ObserveTask(state types.TaskState, size int64) {
	transferItemsTotal.WithLabelValues(string(state)).Inc()
	if state == types.TaskSucceeded {
		transferBytesTotal.Add(float64(size))
	}
}
