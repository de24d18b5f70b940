// internal/common/metrics/metrics.go
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	EventsReceived = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notification_events_received_total",
			Help: "Total number of real-time events received",
		},
		[]string{"event"},
	)

	EventsDropped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notification_events_dropped_total",
			Help: "Total number of malformed events dropped",
		},
		[]string{"event", "reason"},
	)

	DeliveriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notification_deliveries_total",
			Help: "Total number of delivery attempts by channel and status",
		},
		[]string{"channel", "status"},
	)

	DeliveryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "notification_delivery_duration_seconds",
			Help: "Duration of delivery dispatch in seconds",
		},
		[]string{"channel"},
	)

	ReconnectAttempts = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "notification_reconnect_attempts_total",
			Help: "Total number of websocket reconnect attempts",
		},
	)

	ConnectedClients = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "notification_connected_clients",
			Help: "Number of websocket clients currently connected to the hub",
		},
	)
)
