package diagnostics

import (
	"encoding/json"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/roboticsmick/ORCA-open-spectrometer-sub000/internal/model"
	"github.com/roboticsmick/ORCA-open-spectrometer-sub000/internal/telemetry"
)

var (
	testMetricsOnce sync.Once
	testMetricsVal  *telemetry.Metrics
)

func newTestMetrics() *telemetry.Metrics {
	testMetricsOnce.Do(func() { testMetricsVal = telemetry.NewMetrics() })
	return testMetricsVal
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// newTestClient builds a Client with no underlying connection, sufficient
// for exercising Hub's registration and fan-out logic without a real socket.
func newTestClient(buf int) *Client {
	return &Client{send: make(chan []byte, buf)}
}

func TestHub_BroadcastFansOutToAllClients(t *testing.T) {
	h := NewHub(testLogger(), newTestMetrics())
	c1, c2 := newTestClient(4), newTestClient(4)
	h.addClient(c1)
	h.addClient(c2)

	h.Broadcast(model.ScanResult{SpectraType: model.SpectraRaw})

	for i, c := range []*Client{c1, c2} {
		select {
		case msg := <-c.send:
			var env envelope
			if err := json.Unmarshal(msg, &env); err != nil {
				t.Fatalf("client %d: invalid JSON: %v", i, err)
			}
			if env.Type != "scan" {
				t.Errorf("client %d: expected type scan, got %q", i, env.Type)
			}
		default:
			t.Errorf("client %d: expected a queued message", i)
		}
	}
}

func TestHub_BroadcastSkipsFullClientWithoutBlocking(t *testing.T) {
	h := NewHub(testLogger(), newTestMetrics())
	slow := newTestClient(1)
	h.addClient(slow)

	h.Broadcast(model.ScanResult{})
	// buffer now full (size 1); a second broadcast must not block
	done := make(chan struct{})
	go func() {
		h.Broadcast(model.ScanResult{})
		close(done)
	}()
	<-done // would hang forever if Broadcast blocked on a full client channel
}

func TestHub_NewClientReceivesLatestSnapshot(t *testing.T) {
	h := NewHub(testLogger(), newTestMetrics())
	h.Broadcast(model.ScanResult{SpectraType: model.SpectraReflectance})

	h.mu.RLock()
	snapshot := h.latest
	h.mu.RUnlock()
	if snapshot == nil {
		t.Fatal("expected a latest snapshot to be retained after Broadcast")
	}
}

func TestHub_AddRemoveClientUpdatesGauge(t *testing.T) {
	h := NewHub(testLogger(), newTestMetrics())
	c := newTestClient(1)

	h.addClient(c)
	h.mu.RLock()
	n := len(h.clients)
	h.mu.RUnlock()
	if n != 1 {
		t.Fatalf("expected 1 registered client, got %d", n)
	}

	h.RemoveClient(c)
	h.mu.RLock()
	n = len(h.clients)
	h.mu.RUnlock()
	if n != 0 {
		t.Fatalf("expected 0 registered clients after removal, got %d", n)
	}
}

func TestHub_RemoveClientIsIdempotent(t *testing.T) {
	h := NewHub(testLogger(), newTestMetrics())
	c := newTestClient(1)
	h.addClient(c)
	h.RemoveClient(c)
	h.RemoveClient(c) // must not double-close c.send
}
