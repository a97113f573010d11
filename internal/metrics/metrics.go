// Package metrics declares the Prometheus collectors shared across
// components, generalizing the teacher's HTTP-only request vectors to
// cover the send pipeline, broadcast fan-out, history writer, and
// presence registry.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	// HTTPRequestDuration and HTTPRequestsTotal are the teacher's original
	// pair, kept for the gin middleware.
	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "chatify_http_request_duration_seconds",
			Help: "HTTP request latencies in seconds",
		},
		[]string{"method", "path", "status"},
	)
	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chatify_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	SendsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chatify_sends_total",
			Help: "Total Send Pipeline invocations by outcome",
		},
		[]string{"outcome"},
	)
	RateLimitRejectionsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "chatify_rate_limit_rejections_total",
			Help: "Total sends rejected by the rate limiter",
		},
	)
	BroadcastDeliveriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chatify_broadcast_deliveries_total",
			Help: "Total per-subscriber broadcast deliveries by outcome",
		},
		[]string{"outcome"},
	)
	HistoryWriterRetriesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "chatify_history_writer_retries_total",
			Help: "Total transient-error retries performed by the history writer",
		},
	)
	HistoryWriterPoisonSkipsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "chatify_history_writer_poison_skips_total",
			Help: "Total malformed records skipped (offset committed) by the history writer",
		},
	)
	PresenceHeartbeatsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "chatify_presence_heartbeats_total",
			Help: "Total presence heartbeats recorded",
		},
	)
	PublishLatencySeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "chatify_publish_latency_seconds",
			Help:    "Latency of producer publish calls",
			Buckets: prometheus.DefBuckets,
		},
	)
	AppendLatencySeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "chatify_append_latency_seconds",
			Help:    "Latency of columnar-store append calls",
			Buckets: prometheus.DefBuckets,
		},
	)
)

func init() {
	prometheus.MustRegister(
		HTTPRequestDuration,
		HTTPRequestsTotal,
		SendsTotal,
		RateLimitRejectionsTotal,
		BroadcastDeliveriesTotal,
		HistoryWriterRetriesTotal,
		HistoryWriterPoisonSkipsTotal,
		PresenceHeartbeatsTotal,
		PublishLatencySeconds,
		AppendLatencySeconds,
	)
}

// ObservePublishLatency records how long a single producer publish call
// took, measured from start.
func ObservePublishLatency(start time.Time) {
	PublishLatencySeconds.Observe(time.Since(start).Seconds())
}

// ObserveAppendLatency records how long a single columnar-store append
// took, measured from start.
func ObserveAppendLatency(start time.Time) {
	AppendLatencySeconds.Observe(time.Since(start).Seconds())
}
