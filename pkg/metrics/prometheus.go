// Package metrics exposes prometheus instruments for the sync engine.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all prometheus metrics for the service.
type Metrics struct {
	SyncRuns        *prometheus.CounterVec
	BookingsCreated prometheus.Counter
	BookingsUpdated prometheus.Counter
	Conflicts       *prometheus.CounterVec
	SyncErrors      *prometheus.CounterVec
	SyncDuration    prometheus.Histogram
}

// NewMetrics registers and returns the service metrics.
func NewMetrics(namespace string) *Metrics {
	return &Metrics{
		SyncRuns: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sync_runs_total",
			Help:      "Sync runs by platform and outcome",
		}, []string{"platform", "status"}),
		BookingsCreated: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "bookings_created_total",
			Help:      "Bookings created from platform syncs",
		}),
		BookingsUpdated: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "bookings_updated_total",
			Help:      "Bookings updated from platform syncs",
		}),
		Conflicts: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "booking_conflicts_total",
			Help:      "Booking conflicts detected during sync",
		}, []string{"reason"}),
		SyncErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sync_errors_total",
			Help:      "Sync errors by kind",
		}, []string{"kind"}),
		SyncDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "sync_duration_seconds",
			Help:      "Time taken by one platform sync run",
			Buckets:   prometheus.DefBuckets,
		}),
	}
}
