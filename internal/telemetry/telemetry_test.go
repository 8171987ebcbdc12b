package telemetry

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestHealthStatus_DefaultsHealthy(t *testing.T) {
	h := NewHealthStatus()
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var body struct {
		Status string `json:"status"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("invalid JSON body: %v", err)
	}
	if body.Status != "healthy" {
		t.Errorf("expected status healthy, got %q", body.Status)
	}
}

func TestHealthStatus_LeakDetectedReportsUnavailable(t *testing.T) {
	h := NewHealthStatus()
	h.SetLeakDetected(true)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rec.Code)
	}
	var body struct {
		Status string `json:"status"`
	}
	json.Unmarshal(rec.Body.Bytes(), &body)
	if body.Status != "shutting_down" {
		t.Errorf("expected status shutting_down, got %q", body.Status)
	}
}

func TestHealthStatus_DegradedWhenDeviceUnhealthy(t *testing.T) {
	h := NewHealthStatus()
	h.SetDeviceHealthy(false)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 (degraded is not an error code), got %d", rec.Code)
	}
	var body struct {
		Status string `json:"status"`
	}
	json.Unmarshal(rec.Body.Bytes(), &body)
	if body.Status != "degraded" {
		t.Errorf("expected status degraded, got %q", body.Status)
	}
}

func TestRedisMirror_NilWhenAddrEmpty(t *testing.T) {
	m := NewMetrics()
	rm := NewRedisMirror("", "", m)
	if rm != nil {
		t.Fatal("expected nil RedisMirror when addr is empty")
	}
	// A nil RedisMirror must be safe to use as a no-op.
	rm.Publish(nil, map[string]int{"x": 1})
	if rm.Ping(nil) {
		t.Fatal("expected nil mirror Ping to report false")
	}
	if err := rm.Close(); err != nil {
		t.Fatalf("expected nil mirror Close to be a no-op, got %v", err)
	}
}
