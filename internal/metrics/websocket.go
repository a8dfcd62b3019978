package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// WebSocket Metrics
//
// These track the optional live-progress WebSocket stream consumed by the
// Progress Reporter (spec §2 item 6).

var (
	// ActiveWebSocketConnections tracks currently connected progress viewers.
	ActiveWebSocketConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "websocket_connections_active",
			Help: "Number of active WebSocket connections",
		},
	)

	// WebSocketMessagesTotal counts messages sent over WebSocket connections.
	// Labels: type (progress)
	WebSocketMessagesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "websocket_messages_total",
			Help: "Total number of WebSocket messages sent",
		},
		[]string{"type"},
	)
)

// WebSocketConnected increments the active connection counter.
func WebSocketConnected() {
	ActiveWebSocketConnections.Inc()
}

// WebSocketDisconnected decrements the active connection counter.
func WebSocketDisconnected() {
	ActiveWebSocketConnections.Dec()
}

// RecordProgressMessage records a progress update message.
func RecordProgressMessage() {
	WebSocketMessagesTotal.WithLabelValues("progress").Inc()
}
