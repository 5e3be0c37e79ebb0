// internal/metrics/metrics.go
// Process-wide counters and gauges (SPEC_FULL.md C12), grounded on the
// teacher's internal/dating/metrics.go promauto style.

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	wsConnectionsGauge = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "realtime_ws_connections",
		Help: "Current number of open WebSocket connections",
	})

	onlineUsersGauge = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "realtime_online_users",
		Help: "Current number of distinct users with at least one open connection",
	})

	framesProcessedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "realtime_frames_processed_total",
			Help: "Total number of WebSocket frames processed, by type",
		},
		[]string{"type"},
	)

	messagesPersistedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "realtime_messages_persisted_total",
		Help: "Total number of chat messages persisted",
	})
)

// ConnectionOpened/ConnectionClosed track C5's connection count.
func ConnectionOpened() { wsConnectionsGauge.Inc() }
func ConnectionClosed() { wsConnectionsGauge.Dec() }

// SetOnlineUsers reports the hub's current distinct-online-user count.
func SetOnlineUsers(n int) { onlineUsersGauge.Set(float64(n)) }

// FrameProcessed records one dispatched inbound frame, labeled by its type.
func FrameProcessed(frameType string) { framesProcessedTotal.WithLabelValues(frameType).Inc() }

// MessagePersisted records one chat message successfully written to the store.
func MessagePersisted() { messagesPersistedTotal.Inc() }

// Snapshot pairs the two figures GET /health reports (spec.md §6.1). The
// health handler does not use it; it builds api.HealthResponse from the hub.
type Snapshot struct {
	WSConnections int `json:"wsConnections"`
	OnlineUsers   int `json:"onlineUsers"`
}
