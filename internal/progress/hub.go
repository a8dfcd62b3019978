// Package progress implements the optional live-progress WebSocket stream
// (spec §2 item 6, Progress Reporter). It is consumed by the Progress
// Reporter external component, not part of the core chunked-transfer
// protocol itself. Grounded on the teacher's handleProgressWebSocket
// (internal/server/websocket.go) and ProgressTracker
// (internal/server/ratelimit.go), generalized from a single-transfer
// tracker map to one keyed by upload id.
package progress

import (
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/resiliome/upload/internal/logging"
	"github.com/resiliome/upload/internal/metrics"
	"github.com/resiliome/upload/internal/protocol"
)

// tracker mirrors one in-flight upload's progress, updated by chunk writes
// and read by the WebSocket broadcast loop.
type tracker struct {
	filename     string
	totalSize    int64
	bytesWritten int64 // atomic
	startTime    time.Time
}

func (t *tracker) snapshot(uploadID string) map[string]any {
	written := atomic.LoadInt64(&t.bytesWritten)
	elapsed := time.Since(t.startTime).Seconds()

	var mbps float64
	if elapsed > 0 {
		mbps = (float64(written) * 8) / (elapsed * 1_000_000)
	}
	var pct float64
	if t.totalSize > 0 {
		pct = (float64(written) / float64(t.totalSize)) * 100
	}

	return map[string]any{
		"uploadId":        uploadID,
		"filename":        t.filename,
		"totalSize":       t.totalSize,
		"bytesWritten":    written,
		"percentage":      pct,
		"throughputMbps":  mbps,
		"elapsedSeconds":  elapsed,
	}
}

// Hub tracks active uploads and serves /ws/progress.
type Hub struct {
	active   sync.Map // uploadID -> *tracker
	upgrader websocket.Upgrader
}

// NewHub creates an empty progress Hub.
func NewHub() *Hub {
	return &Hub{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin: func(r *http.Request) bool {
				// CORS is open for browser clients (spec §6); the progress
				// stream carries no credentials, so any origin may connect.
				return true
			},
		},
	}
}

// ReportChunk records that bytesWritten more bytes have landed for
// uploadID, creating a tracker on first use.
func (h *Hub) ReportChunk(uploadID, filename string, totalSize, bytesWritten int64) {
	val, _ := h.active.LoadOrStore(uploadID, &tracker{
		filename:  filename,
		totalSize: totalSize,
		startTime: time.Now(),
	})
	t := val.(*tracker)
	atomic.AddInt64(&t.bytesWritten, bytesWritten)
}

// Finish removes uploadID's tracker once it reaches a terminal state.
func (h *Hub) Finish(uploadID string) {
	h.active.Delete(uploadID)
}

// HandleWebSocket upgrades the connection and streams periodic progress
// snapshots of every tracked upload until the client disconnects.
func (h *Hub) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logging.Error("websocket upgrade failed", zap.Error(err))
		return
	}
	defer func() { _ = conn.Close() }()

	metrics.WebSocketConnected()
	defer metrics.WebSocketDisconnected()

	ticker := time.NewTicker(protocol.WebSocketUpdateInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			snapshots := make([]map[string]any, 0)
			h.active.Range(func(key, value any) bool {
				t := value.(*tracker)
				snapshots = append(snapshots, t.snapshot(key.(string)))
				return true
			})
			if len(snapshots) == 0 {
				continue
			}
			metrics.RecordProgressMessage()
			if err := conn.WriteJSON(map[string]any{
				"type":      "progress",
				"uploads":   snapshots,
				"timestamp": time.Now().Unix(),
			}); err != nil {
				return
			}
		case <-r.Context().Done():
			return
		}
	}
}
