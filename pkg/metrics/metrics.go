package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	ConnectionsActive = prometheus.NewGauge(
		prometheus.GaugeOpts{Namespace: "mingle", Name: "ws_connections_active", Help: "Number of live authenticated WebSocket connections."},
	)
	HandshakeFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "mingle", Name: "ws_handshake_failures_total", Help: "Number of failed WebSocket handshakes by reason."},
		[]string{"reason"},
	)
	MessagesRelayed = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "mingle", Name: "ws_messages_relayed_total", Help: "Number of relayed inbound messages by target kind."},
		[]string{"target"},
	)
	DeliveriesDropped = prometheus.NewCounter(
		prometheus.CounterOpts{Namespace: "mingle", Name: "ws_deliveries_dropped_total", Help: "Number of per-recipient deliveries dropped (full queue or closed transport)."},
	)
	ForcedDisconnects = prometheus.NewCounter(
		prometheus.CounterOpts{Namespace: "mingle", Name: "ws_forced_disconnects_total", Help: "Number of connections force-closed after repeated delivery failures."},
	)
	RateLimitAllowed = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "mingle", Name: "rate_limit_allowed_total", Help: "Number of allowed requests by limiter type."},
		[]string{"limiter"},
	)
	RateLimitRejected = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "mingle", Name: "rate_limit_rejected_total", Help: "Number of rejected requests by limiter type."},
		[]string{"limiter"},
	)
)

func RegisterCollectors(reg prometheus.Registerer) {
	reg.MustRegister(
		ConnectionsActive,
		HandshakeFailures,
		MessagesRelayed,
		DeliveriesDropped,
		ForcedDisconnects,
		RateLimitAllowed,
		RateLimitRejected,
	)
}
