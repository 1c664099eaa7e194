// Package metrics exposes Prometheus collectors for the crawler.
package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	pagesTotal           *prometheus.CounterVec
	retriesTotal         *prometheus.CounterVec
	anchorsCompleted     prometheus.Counter
	itemsExtracted       prometheus.Counter
	rateLimitDelaySecs   *prometheus.HistogramVec
	checkpointSavesTotal prometheus.Counter

	once sync.Once
)

// Init initializes the Prometheus collectors. Safe to call multiple times.
func Init() {
	once.Do(func() {
		pagesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "treatycrawl_pages_total",
				Help: "Pages fetched, labeled by kind (country, detail, probe) and outcome.",
			},
			[]string{"kind", "outcome"},
		)
		retriesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "treatycrawl_retries_total",
				Help: "Retry attempts, labeled by operation.",
			},
			[]string{"op"},
		)
		anchorsCompleted = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "treatycrawl_countries_completed_total",
				Help: "Country pages fully extracted and committed.",
			},
		)
		itemsExtracted = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "treatycrawl_items_extracted_total",
				Help: "Raw treaty rows extracted, pre-deduplication.",
			},
		)
		rateLimitDelaySecs = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "treatycrawl_rate_limit_delay_seconds",
				Help:    "Delay introduced by the politeness limiter, per phase.",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5},
			},
			[]string{"phase"},
		)
		checkpointSavesTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "treatycrawl_checkpoint_saves_total",
				Help: "Checkpoint snapshots written to disk.",
			},
		)
	})
}

// PageFetched records the outcome of one fetch.
func PageFetched(kind, outcome string) {
	if pagesTotal != nil {
		pagesTotal.WithLabelValues(kind, outcome).Inc()
	}
}

// RetryRecorded counts one retry of the named operation.
func RetryRecorded(op string) {
	if retriesTotal != nil {
		retriesTotal.WithLabelValues(op).Inc()
	}
}

// AnchorCompleted counts one committed country page.
func AnchorCompleted() {
	if anchorsCompleted != nil {
		anchorsCompleted.Inc()
	}
}

// ItemsExtracted counts raw rows pulled out of a country table.
func ItemsExtracted(n int) {
	if itemsExtracted != nil {
		itemsExtracted.Add(float64(n))
	}
}

// ObserveRateLimitDelay records the time spent waiting on the limiter.
func ObserveRateLimitDelay(phase string, d time.Duration) {
	if rateLimitDelaySecs != nil {
		rateLimitDelaySecs.WithLabelValues(phase).Observe(d.Seconds())
	}
}

// CheckpointSaved counts one durable checkpoint write.
func CheckpointSaved() {
	if checkpointSavesTotal != nil {
		checkpointSavesTotal.Inc()
	}
}
