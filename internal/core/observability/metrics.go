// Package observability registers and exposes the service's Prometheus
// metrics.
package observability

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"method", "route", "status"},
	)

	httpRequestDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds.",
			Buckets: prometheus.ExponentialBuckets(0.005, 2, 12), // 5ms to ~20s
		},
		[]string{"method", "route", "status"},
	)

	backendOpDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "backend_op_duration_seconds",
			Help:    "Latency of storage backend operations in seconds.",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 14),
		},
		[]string{"op", "index", "outcome"},
	)

	backendScannedRowsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "backend_scanned_rows_total",
			Help: "Rows scanned by the storage backend across all queries.",
		},
	)

	backendConsumedCapacityTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "backend_consumed_capacity_total",
			Help: "Capacity units consumed by the storage backend.",
		},
	)

	cacheOpDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "cache_op_duration_seconds",
			Help:    "Latency of cache operations in seconds.",
			Buckets: prometheus.ExponentialBuckets(0.0005, 2, 12),
		},
		[]string{"op", "outcome"},
	)

	cacheResultsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cache_results_total",
			Help: "Cache lookups by outcome.",
		},
		[]string{"outcome"},
	)

	bboxPrefixFanout = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "bbox_prefix_fanout",
			Help:    "Number of prefix sub-queries issued per bounding-box query.",
			Buckets: prometheus.LinearBuckets(1, 1, 9),
		},
	)

	invalidationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "invalidations_total",
			Help: "Processed feature-update events by op and outcome.",
		},
		[]string{"op", "outcome"},
	)

	invalidationKeysTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "invalidation_keys_total",
			Help: "Cache keys deleted by the invalidation consumer.",
		},
	)

	buildInfo = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "app_build_info",
			Help: "Build information for the binary.",
		},
		[]string{"version"},
	)
)

func ObserveHTTP(method, route string, status int, durationSeconds float64) {
	st := strconv.Itoa(status)
	httpRequestsTotal.WithLabelValues(method, route, st).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route, st).Observe(durationSeconds)
}

func ObserveBackendOp(op, index string, err error, durationSeconds float64) {
	backendOpDurationSeconds.WithLabelValues(op, index, outcome(err)).Observe(durationSeconds)
}

func AddScannedRows(n int) {
	if n > 0 {
		backendScannedRowsTotal.Add(float64(n))
	}
}

func AddConsumedCapacity(units float64) {
	if units > 0 {
		backendConsumedCapacityTotal.Add(units)
	}
}

func ObserveCacheOp(op string, err error, durationSeconds float64) {
	cacheOpDurationSeconds.WithLabelValues(op, outcome(err)).Observe(durationSeconds)
}

func IncCacheHit()  { cacheResultsTotal.WithLabelValues("hit").Inc() }
func IncCacheMiss() { cacheResultsTotal.WithLabelValues("miss").Inc() }

func ObservePrefixFanout(n int) {
	bboxPrefixFanout.Observe(float64(n))
}

func ObserveInvalidation(op string, keys int, err error) {
	invalidationsTotal.WithLabelValues(op, outcome(err)).Inc()
	if keys > 0 {
		invalidationKeysTotal.Add(float64(keys))
	}
}

func ExposeBuildInfo(version string) {
	if version == "" {
		version = "dev"
	}
	buildInfo.WithLabelValues(version).Set(1)
}

func outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
