// Package outbox delivers persisted outbound messages to the provider.
//
// This file exposes Prometheus instrumentation for the delivery worker.
// FAILED rows are invisible to end users, so the failed counter is the
// primary operational signal for silently dropped notifications.
package outbox

import "github.com/prometheus/client_golang/prometheus"

var (
	// sendsTotal counts delivery attempts by outcome.
	sendsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relay_outbox_sends_total",
			Help: "Outbox delivery attempts by outcome.",
		},
		[]string{"outcome"}, // sent | throttled | retried | failed
	)

	// rateWait records time spent waiting on the local rate limiter.
	rateWait = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "relay_outbox_rate_wait_seconds",
			Help:    "Time spent waiting for local rate-limit admission.",
			Buckets: prometheus.DefBuckets,
		},
	)

	// batchDuration records how long one ProcessOnce pass takes.
	batchDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "relay_outbox_batch_seconds",
			Help:    "Duration of one outbox worker pass.",
			Buckets: prometheus.DefBuckets,
		},
	)
)

func init() {
	prometheus.MustRegister(sendsTotal, rateWait, batchDuration)
}
