// Package metrics provides Prometheus instrumentation for the chat server:
// live connection count, persisted message throughput, and fanout delivery
// outcomes.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Delivery paths used as label values.
const (
	PathChannel = "channel"
	PathDirect  = "direct"
)

var (
	// ConnectionsActive tracks the current number of open websocket connections.
	ConnectionsActive = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "duochat_connections_active",
		Help: "Current number of open websocket connections",
	})

	// MessagesPersisted counts stored messages, labeled by kind ("direct" or "room").
	MessagesPersisted = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "duochat_messages_persisted_total",
		Help: "Total number of messages persisted",
	}, []string{"kind"})

	// Deliveries counts live pushes, labeled by path ("channel" or "direct").
	Deliveries = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "duochat_fanout_deliveries_total",
		Help: "Total number of live message deliveries",
	}, []string{"path"})

	// DirectSkipped counts direct deliveries not attempted, labeled by reason.
	DirectSkipped = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "duochat_fanout_direct_skipped_total",
		Help: "Direct deliveries skipped, by reason",
	}, []string{"reason"})

	// SessionsReplaced counts registrations that displaced an existing session of record.
	SessionsReplaced = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "duochat_sessions_replaced_total",
		Help: "Registrations that replaced a previous session for the same user",
	})
)

func init() {
	prometheus.MustRegister(
		ConnectionsActive,
		MessagesPersisted,
		Deliveries,
		DirectSkipped,
		SessionsReplaced,
	)
}

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}
