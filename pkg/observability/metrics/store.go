// Package metrics provides Prometheus metrics for catalog queries and store access.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	OutcomeOK    = "ok"
	OutcomeError = "error"
)

var (
	// storeOperationDuration tracks document store round trips in seconds.
	// Labels: collection, operation, outcome
	storeOperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "movieship_store_operation_duration_seconds",
			Help:    "Document store operation duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"collection", "operation", "outcome"},
	)

	// storeOperationsTotal counts document store operations.
	// Labels: collection, operation, outcome
	storeOperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "movieship_store_operations_total",
			Help: "Total number of document store operations",
		},
		[]string{"collection", "operation", "outcome"},
	)

	// pagesServedTotal counts list pages produced per resource.
	// Labels: resource, has_cursor
	pagesServedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "movieship_pages_served_total",
			Help: "Total number of list pages served",
		},
		[]string{"resource", "has_cursor"},
	)

	// enhancerWriteBacksTotal counts documents persisted back by enhancers.
	// Labels: collection
	enhancerWriteBacksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "movieship_enhancer_write_backs_total",
			Help: "Total number of documents written back by enhancers",
		},
		[]string{"collection"},
	)

	// posterLookupsTotal counts poster provider lookups.
	// Labels: outcome
	posterLookupsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "movieship_poster_lookups_total",
			Help: "Total number of poster provider lookups",
		},
		[]string{"outcome"},
	)

	posterCacheTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "movieship_poster_cache_requests_total",
			Help: "Total number of poster cache reads by result",
		},
		[]string{"result"},
	)
)

// RecordStoreOperation records the duration and outcome of one store round trip.
func RecordStoreOperation(collection, operation string, err error, duration time.Duration) {
	outcome := OutcomeOK
	if err != nil {
		outcome = OutcomeError
	}
	storeOperationDuration.WithLabelValues(collection, operation, outcome).Observe(duration.Seconds())
	storeOperationsTotal.WithLabelValues(collection, operation, outcome).Inc()
}

func RecordPage(resource string, hasCursor bool) {
	pagesServedTotal.WithLabelValues(resource, strconv.FormatBool(hasCursor)).Inc()
}

func RecordWriteBacks(collection string, count int64) {
	if count <= 0 {
		return
	}
	enhancerWriteBacksTotal.WithLabelValues(collection).Add(float64(count))
}

// RecordPosterLookup counts a poster lookup by outcome ("found", "missing", "unavailable", "error", "rejected").
func RecordPosterLookup(outcome string) {
	posterLookupsTotal.WithLabelValues(outcome).Inc()
}

// RecordPosterCache counts a poster cache read as "hit", "miss" or "error".
func RecordPosterCache(result string) {
	posterCacheTotal.WithLabelValues(result).Inc()
}
