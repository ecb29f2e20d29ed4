// Package inbound drains the durable inbound update queue.
//
// This file exposes Prometheus instrumentation for the queue worker. The
// counters give DEAD updates operational visibility; they are invisible to
// end users but represent dropped interactions.
package inbound

import "github.com/prometheus/client_golang/prometheus"

var (
	// updatesEnqueued counts accepted inbound updates by transport source.
	updatesEnqueued = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relay_inbound_enqueued_total",
			Help: "Inbound updates accepted into the queue.",
		},
		[]string{"source"},
	)

	// updatesProcessed counts worker outcomes per update attempt.
	updatesProcessed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relay_inbound_processed_total",
			Help: "Inbound update attempts by outcome.",
		},
		[]string{"outcome"}, // processed | retried | dead
	)

	// batchDuration records how long one ProcessOnce pass takes.
	batchDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "relay_inbound_batch_seconds",
			Help:    "Duration of one inbound worker pass.",
			Buckets: prometheus.DefBuckets,
		},
	)
)

func init() {
	prometheus.MustRegister(updatesEnqueued, updatesProcessed, batchDuration)
}

// MarkEnqueued records an accepted update for the given transport source
// ("webhook" or "poll"). Exposed so the HTTP handler can share the counter.
func MarkEnqueued(source string) {
	updatesEnqueued.WithLabelValues(source).Inc()
}
