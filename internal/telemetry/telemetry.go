// Package telemetry exposes Prometheus metrics and a liveness/health
// endpoint for the instrument process, and optionally mirrors scan
// telemetry to Redis so a shore-side dashboard can watch a dive in
// progress without touching the command path.
package telemetry

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	goredis "github.com/go-redis/redis/v8"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the instrument.
type Metrics struct {
	ScansTotal         *prometheus.CounterVec // labels: spectra_type
	ScanFailuresTotal  prometheus.Counter
	DeviceHealthy      prometheus.Gauge
	ResultQueueDropped prometheus.Counter
	SaveQueueBlockedMs prometheus.Histogram
	SaveFailuresTotal  prometheus.Counter

	AutoIntegIterations prometheus.Histogram
	AutoIntegOutcomes   *prometheus.CounterVec // labels: outcome

	LeakDetected prometheus.Gauge
	TemperatureC prometheus.Gauge
	TempSensorOK prometheus.Gauge
	FanOn        prometheus.Gauge

	CSVWriteDur prometheus.Histogram
	PNGWriteDur prometheus.Histogram

	RedisCircuitBreakerState prometheus.Gauge
	RedisCircuitBreakerTrips prometheus.Counter
	RedisMirrorWritesTotal   prometheus.Counter
	RedisMirrorDropped       prometheus.Counter

	DiagnosticsClients prometheus.Gauge
}

// NewMetrics registers and returns all Prometheus metrics.
func NewMetrics() *Metrics {
	m := &Metrics{
		ScansTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "spectro_scans_total",
			Help: "Total ScanResults emitted by the acquisition engine, by spectra type",
		}, []string{"spectra_type"}),
		ScanFailuresTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "spectro_scan_failures_total",
			Help: "USB read failures (timeouts and I/O errors) during capture",
		}),
		DeviceHealthy: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "spectro_device_healthy",
			Help: "1 if the spectrometer is healthy, 0 if marked unhealthy after consecutive failures",
		}),
		ResultQueueDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "spectro_result_queue_dropped_total",
			Help: "Results dropped (oldest-first) because the result queue was full",
		}),
		SaveQueueBlockedMs: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "spectro_save_queue_blocked_ms",
			Help:    "Time the UI spent blocked enqueueing a SaveRequest",
			Buckets: []float64{1, 5, 25, 100, 500, 2000},
		}),
		SaveFailuresTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "spectro_save_failures_total",
			Help: "SaveRequests that timed out enqueueing or failed to persist",
		}),
		AutoIntegIterations: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "spectro_autointeg_iterations",
			Help:    "Iterations consumed per auto-integration run",
			Buckets: prometheus.LinearBuckets(1, 2, 10),
		}),
		AutoIntegOutcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "spectro_autointeg_outcomes_total",
			Help: "Auto-integration terminal outcomes, by reason",
		}, []string{"outcome"}),
		LeakDetected: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "spectro_leak_detected",
			Help: "1 if the leak sensor has latched, 0 otherwise",
		}),
		TemperatureC: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "spectro_temperature_celsius",
			Help: "Last good enclosure temperature reading",
		}),
		TempSensorOK: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "spectro_temp_sensor_ok",
			Help: "1 if the temperature sensor is available, 0 if permanently failed",
		}),
		FanOn: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "spectro_fan_on",
			Help: "1 if the cooling fan GPIO is currently driven high",
		}),
		CSVWriteDur: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "spectro_csv_write_duration_seconds",
			Help:    "CSV row append latency",
			Buckets: prometheus.DefBuckets,
		}),
		PNGWriteDur: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "spectro_png_write_duration_seconds",
			Help:    "PNG plot render+write latency",
			Buckets: prometheus.DefBuckets,
		}),
		RedisCircuitBreakerState: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "spectro_redis_circuit_breaker_state",
			Help: "Telemetry mirror circuit breaker state (0=closed, 1=open, 2=half-open)",
		}),
		RedisCircuitBreakerTrips: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "spectro_redis_circuit_breaker_trips_total",
			Help: "Times the telemetry mirror circuit breaker tripped open",
		}),
		RedisMirrorWritesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "spectro_redis_mirror_writes_total",
			Help: "Scan telemetry messages published to the Redis mirror",
		}),
		RedisMirrorDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "spectro_redis_mirror_dropped_total",
			Help: "Scan telemetry messages dropped while the mirror circuit breaker was open",
		}),
		DiagnosticsClients: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "spectro_diagnostics_clients",
			Help: "Currently connected read-only diagnostics WebSocket clients",
		}),
	}

	prometheus.MustRegister(
		m.ScansTotal,
		m.ScanFailuresTotal,
		m.DeviceHealthy,
		m.ResultQueueDropped,
		m.SaveQueueBlockedMs,
		m.SaveFailuresTotal,
		m.AutoIntegIterations,
		m.AutoIntegOutcomes,
		m.LeakDetected,
		m.TemperatureC,
		m.TempSensorOK,
		m.FanOn,
		m.CSVWriteDur,
		m.PNGWriteDur,
		m.RedisCircuitBreakerState,
		m.RedisCircuitBreakerTrips,
		m.RedisMirrorWritesTotal,
		m.RedisMirrorDropped,
		m.DiagnosticsClients,
	)

	return m
}

// HealthStatus is the JSON body served at /healthz.
type HealthStatus struct {
	mu sync.RWMutex

	DeviceHealthy bool      `json:"device_healthy"`
	LastScanTime  time.Time `json:"last_scan_time"`
	LeakDetected  bool      `json:"leak_detected"`
	TempSensorOK  bool      `json:"temp_sensor_ok"`
	RedisEnabled  bool      `json:"redis_enabled"`
	RedisOK       bool      `json:"redis_ok"`
	StartedAt     time.Time `json:"started_at"`
}

// NewHealthStatus returns a default health status.
func NewHealthStatus() *HealthStatus {
	return &HealthStatus{StartedAt: time.Now(), DeviceHealthy: true, TempSensorOK: true}
}

func (h *HealthStatus) SetDeviceHealthy(v bool) {
	h.mu.Lock()
	h.DeviceHealthy = v
	h.mu.Unlock()
}

func (h *HealthStatus) SetLastScanTime(t time.Time) {
	h.mu.Lock()
	h.LastScanTime = t
	h.mu.Unlock()
}

func (h *HealthStatus) SetLeakDetected(v bool) {
	h.mu.Lock()
	h.LeakDetected = v
	h.mu.Unlock()
}

func (h *HealthStatus) SetTempSensorOK(v bool) {
	h.mu.Lock()
	h.TempSensorOK = v
	h.mu.Unlock()
}

func (h *HealthStatus) SetRedis(enabled, ok bool) {
	h.mu.Lock()
	h.RedisEnabled = enabled
	h.RedisOK = ok
	h.mu.Unlock()
}

// ServeHTTP handles the /healthz endpoint.
func (h *HealthStatus) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	status := "healthy"
	code := http.StatusOK
	if !h.DeviceHealthy || !h.TempSensorOK {
		status = "degraded"
	}
	if h.LeakDetected {
		status = "shutting_down"
		code = http.StatusServiceUnavailable
	}

	body := struct {
		Status        string `json:"status"`
		Uptime        string `json:"uptime"`
		DeviceHealthy bool   `json:"device_healthy"`
		LastScanTime  string `json:"last_scan_time"`
		LeakDetected  bool   `json:"leak_detected"`
		TempSensorOK  bool   `json:"temp_sensor_ok"`
		RedisEnabled  bool   `json:"redis_enabled"`
		RedisOK       bool   `json:"redis_ok"`
	}{
		Status:        status,
		Uptime:        time.Since(h.StartedAt).Round(time.Second).String(),
		DeviceHealthy: h.DeviceHealthy,
		LastScanTime:  h.LastScanTime.Format(time.RFC3339),
		LeakDetected:  h.LeakDetected,
		TempSensorOK:  h.TempSensorOK,
		RedisEnabled:  h.RedisEnabled,
		RedisOK:       h.RedisOK,
	}

	w.Header().Set("Content-Type", "application/json")
	if code != http.StatusOK {
		w.WriteHeader(code)
	}
	json.NewEncoder(w).Encode(body)
}

// Server runs an HTTP server exposing /metrics and /healthz.
type Server struct {
	health *HealthStatus
	addr   string
	srv    *http.Server
}

// NewServer creates a metrics and health server.
func NewServer(addr string, health *HealthStatus) *Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", health.ServeHTTP)

	return &Server{
		health: health,
		addr:   addr,
		srv:    &http.Server{Addr: addr, Handler: mux},
	}
}

// Start launches the HTTP server in a goroutine.
func (s *Server) Start() {
	go func() {
		log.Printf("[telemetry] server listening on %s", s.addr)
		if err := s.srv.ListenAndServe(); err != http.ErrServerClosed {
			log.Printf("[telemetry] server error: %v", err)
		}
	}()
}

// Stop gracefully shuts down the metrics server.
func (s *Server) Stop(ctx context.Context) {
	s.srv.Shutdown(ctx)
}

// RedisMirror publishes a JSON-encoded scan summary to a Redis channel,
// guarded by a circuit breaker so a dead or unreachable Redis never blocks
// or slows capture. Disabled entirely when addr is empty.
type RedisMirror struct {
	rdb     *goredis.Client
	cb      *CircuitBreaker
	channel string
	metrics *Metrics
}

// NewRedisMirror connects to addr (if non-empty) and returns a mirror.
// A nil RedisMirror is valid and Publish becomes a no-op.
func NewRedisMirror(addr, password string, m *Metrics) *RedisMirror {
	if addr == "" {
		return nil
	}
	rdb := goredis.NewClient(&goredis.Options{Addr: addr, Password: password})
	return &RedisMirror{
		rdb:     rdb,
		cb:      NewCircuitBreaker(5, 10*time.Second),
		channel: "spectro:scans",
		metrics: m,
	}
}

// Publish mirrors a scan summary. Never blocks capture: on circuit-open it
// returns immediately having counted a drop.
func (r *RedisMirror) Publish(ctx context.Context, payload any) {
	if r == nil {
		return
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return
	}
	err = r.cb.Execute(func() error {
		pctx, cancel := context.WithTimeout(ctx, 500*time.Millisecond)
		defer cancel()
		return r.rdb.Publish(pctx, r.channel, data).Err()
	})
	if err == ErrCircuitOpen {
		r.metrics.RedisMirrorDropped.Inc()
		return
	}
	if err != nil {
		r.metrics.RedisMirrorDropped.Inc()
		return
	}
	r.metrics.RedisMirrorWritesTotal.Inc()
}

// Ping reports whether the Redis connection is reachable right now.
func (r *RedisMirror) Ping(ctx context.Context) bool {
	if r == nil {
		return false
	}
	return r.rdb.Ping(ctx).Err() == nil
}

// Close releases the Redis client.
func (r *RedisMirror) Close() error {
	if r == nil {
		return nil
	}
	return r.rdb.Close()
}
