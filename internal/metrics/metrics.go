// Package metrics defines Prometheus metrics for the gateway.
//
// Metric naming follows Prometheus conventions:
//   - synapse_ prefix for all custom metrics
//   - _total suffix for counters
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// ActiveConnections tracks currently registered WebSocket connections.
	ActiveConnections = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "synapse_active_connections",
			Help: "Current number of registered WebSocket connections.",
		},
	)

	// BroadcastsTotal counts broadcast fan-outs by channel.
	BroadcastsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "synapse_broadcasts_total",
			Help: "Total broadcasts dispatched, by channel.",
		},
		[]string{"channel"},
	)

	// DeliveriesTotal counts per-member broadcast deliveries by channel.
	DeliveriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "synapse_deliveries_total",
			Help: "Total per-subscriber broadcast deliveries, by channel.",
		},
		[]string{"channel"},
	)

	// SendFailuresTotal counts outbound frame failures that evicted a
	// connection.
	SendFailuresTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "synapse_send_failures_total",
			Help: "Total send failures that triggered a disconnect.",
		},
	)

	// StreamChunksTotal counts emitted streaming query chunks by type.
	StreamChunksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "synapse_stream_chunks_total",
			Help: "Total intelligence stream chunks emitted, by chunk type.",
		},
		[]string{"chunk_type"},
	)

	// StaleEvictionsTotal counts connections evicted by the heartbeat
	// monitor.
	StaleEvictionsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "synapse_stale_evictions_total",
			Help: "Total connections evicted for missed heartbeats.",
		},
	)

	// DecodeErrorsTotal counts malformed or invalid inbound frames.
	DecodeErrorsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "synapse_decode_errors_total",
			Help: "Total inbound frames rejected by the codec.",
		},
	)
)

var registry = prometheus.NewRegistry()

func init() {
	registry.MustRegister(
		ActiveConnections,
		BroadcastsTotal,
		DeliveriesTotal,
		SendFailuresTotal,
		StreamChunksTotal,
		StaleEvictionsTotal,
		DecodeErrorsTotal,
	)
}

// Handler serves the gateway's metrics in Prometheus text format.
func Handler() http.Handler {
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
}
