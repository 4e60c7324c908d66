// Package metrics exposes Prometheus collectors for the ingestion service.
package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	linksDiscoveredTotal *prometheus.CounterVec
	linksEnqueuedTotal   prometheus.Counter
	itemsProcessedTotal  *prometheus.CounterVec
	fetchRetriesTotal    prometheus.Counter
	itemDurationSeconds  prometheus.Histogram

	once sync.Once
)

// Init initializes the Prometheus metrics collectors.
// It is safe to call this function multiple times.
func Init() {
	once.Do(func() {
		linksDiscoveredTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ingest_links_discovered_total",
				Help: "Total number of candidate links found, labeled by category.",
			},
			[]string{"category"},
		)
		linksEnqueuedTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "ingest_links_enqueued_total",
				Help: "Total number of links newly added to the queue.",
			},
		)
		itemsProcessedTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ingest_items_processed_total",
				Help: "Total number of queue items processed, labeled by outcome.",
			},
			[]string{"outcome"},
		)
		fetchRetriesTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "ingest_fetch_retries_total",
				Help: "Total number of fetch retry attempts.",
			},
		)
		itemDurationSeconds = promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "ingest_item_duration_seconds",
				Help:    "Wall time spent processing one queue item.",
				Buckets: prometheus.DefBuckets,
			},
		)
	})
}

// LinksDiscovered records candidate links found for a category.
func LinksDiscovered(category string, n int) {
	if linksDiscoveredTotal != nil {
		linksDiscoveredTotal.WithLabelValues(category).Add(float64(n))
	}
}

// LinkEnqueued records one link newly added to the queue.
func LinkEnqueued() {
	if linksEnqueuedTotal != nil {
		linksEnqueuedTotal.Inc()
	}
}

// ItemProcessed records one processed queue item by outcome.
func ItemProcessed(outcome string) {
	if itemsProcessedTotal != nil {
		itemsProcessedTotal.WithLabelValues(outcome).Inc()
	}
}

// FetchRetry records one fetch retry attempt.
func FetchRetry() {
	if fetchRetriesTotal != nil {
		fetchRetriesTotal.Inc()
	}
}

// ObserveItemDuration records the processing time of one queue item.
func ObserveItemDuration(d time.Duration) {
	if itemDurationSeconds != nil {
		itemDurationSeconds.Observe(d.Seconds())
	}
}
