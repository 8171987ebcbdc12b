// Package diagnostics is a read-only WebSocket mirror of the acquisition
// engine's live state, generalized from the teacher's internal/gateway
// Hub/Client/Broadcaster trio. Unlike the teacher's gateway, which accepts
// per-client SUBSCRIBE/UNSUBSCRIBE messages and routes Redis PubSub
// channels to matching clients, this hub has exactly one topic (the
// current ScanResult and CalibrationStatus) and no inbound command path:
// a connected client is a passive observer, never a source of commands
// into the acquisition engine.
package diagnostics

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/roboticsmick/ORCA-open-spectrometer-sub000/internal/model"
	"github.com/roboticsmick/ORCA-open-spectrometer-sub000/internal/telemetry"
)

// Hub fans the most recent ScanResult out to every connected WebSocket
// client. There is no per-client filtering: every client sees every scan.
type Hub struct {
	log     *slog.Logger
	metrics *telemetry.Metrics

	mu      sync.RWMutex
	clients map[*Client]bool
	latest  json.RawMessage

	upgrader websocket.Upgrader
}

// NewHub creates an empty Hub.
func NewHub(log *slog.Logger, metrics *telemetry.Metrics) *Hub {
	return &Hub{
		log:     log,
		metrics: metrics,
		clients: make(map[*Client]bool),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			// Diagnostics is a local-network read-only mirror, not a
			// public endpoint; any origin may observe it.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// envelope is the JSON shape pushed to every client.
type envelope struct {
	Type        string                  `json:"type"`
	Result      model.ScanResult        `json:"result,omitempty"`
	Calibration model.CalibrationStatus `json:"calibration,omitempty"`
	TS          string                  `json:"ts"`
}

// Broadcast marshals result and fans it out to every connected client.
// A client whose send buffer is full is skipped rather than blocked on,
// matching the teacher broadcaster's non-blocking select/default fan-out;
// a slow diagnostics viewer must never stall acquisition.
func (h *Hub) Broadcast(result model.ScanResult) {
	env := envelope{
		Type:        "scan",
		Result:      result,
		Calibration: result.Calibration,
		TS:          time.Now().UTC().Format(time.RFC3339Nano),
	}
	buf, err := json.Marshal(env)
	if err != nil {
		h.log.Error("diagnostics: marshal envelope failed", "err", err)
		return
	}

	h.mu.Lock()
	h.latest = buf
	h.mu.Unlock()

	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.clients {
		select {
		case c.send <- buf:
		default:
		}
	}
}

// ServeHTTP upgrades the request to a WebSocket and registers the client
// for the lifetime of the connection.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("diagnostics: upgrade failed", "err", err)
		return
	}

	c := &Client{conn: conn, send: make(chan []byte, 16), hub: h}
	h.addClient(c)

	h.mu.RLock()
	snapshot := h.latest
	h.mu.RUnlock()
	if snapshot != nil {
		select {
		case c.send <- snapshot:
		default:
		}
	}

	go c.writePump()
	go c.readPump()
}

func (h *Hub) addClient(c *Client) {
	h.mu.Lock()
	h.clients[c] = true
	n := len(h.clients)
	h.mu.Unlock()
	h.metrics.DiagnosticsClients.Set(float64(n))
}

// RemoveClient drops a disconnected client. Safe to call more than once.
func (h *Hub) RemoveClient(c *Client) {
	h.mu.Lock()
	_, ok := h.clients[c]
	if ok {
		delete(h.clients, c)
		close(c.send)
	}
	n := len(h.clients)
	h.mu.Unlock()
	if ok {
		h.metrics.DiagnosticsClients.Set(float64(n))
	}
}
