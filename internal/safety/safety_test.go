package safety

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/roboticsmick/ORCA-open-spectrometer-sub000/internal/flags"
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

// fakeGpioInput lets a test script a single edge event (or a timeout) for
// WaitForEdge, mirroring a real interrupt-backed GPIO line closely enough
// for LeakMonitor's single-edge-then-latch behavior.
type fakeGpioInput struct {
	mu      sync.Mutex
	edges   []bool
	waitErr error
}

func (f *fakeGpioInput) WaitForEdge(ctx context.Context) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.waitErr != nil {
		return false, f.waitErr
	}
	if len(f.edges) == 0 {
		<-ctx.Done()
		return false, ctx.Err()
	}
	e := f.edges[0]
	f.edges = f.edges[1:]
	return e, nil
}

func (f *fakeGpioInput) Read() (bool, error) { return false, nil }

type fakeGpioOutput struct {
	mu    sync.Mutex
	calls []bool
}

func (f *fakeGpioOutput) Set(high bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, high)
	return nil
}

func (f *fakeGpioOutput) last() (bool, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.calls) == 0 {
		return false, false
	}
	return f.calls[len(f.calls)-1], true
}

type fakeTempSensor struct {
	mu      sync.Mutex
	temps   []float64
	readErr error
}

func (f *fakeTempSensor) ReadCelsius(ctx context.Context) (float64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.readErr != nil {
		return 0, f.readErr
	}
	if len(f.temps) == 0 {
		return 0, errors.New("no more scripted readings")
	}
	v := f.temps[0]
	f.temps = f.temps[1:]
	return v, nil
}

func (f *fakeTempSensor) Close() error { return nil }

func TestLeakMonitor_NilPinReturnsImmediately(t *testing.T) {
	m := NewLeakMonitor(nil, &flags.Signals{}, newTestMetrics(), testLogger())
	done := make(chan struct{})
	go func() {
		m.Run(context.Background())
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run with a nil pin should return immediately")
	}
}

func TestLeakMonitor_LatchesOnFallingEdge(t *testing.T) {
	pin := &fakeGpioInput{edges: []bool{true}}
	signals := &flags.Signals{}
	m := NewLeakMonitor(pin, signals, newTestMetrics(), testLogger())

	done := make(chan struct{})
	go func() {
		m.Run(context.Background())
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after a detected edge")
	}

	if !signals.LeakDetected.IsSet() {
		t.Fatal("expected LeakDetected to latch")
	}
	if signals.Shutdown.IsSet() {
		t.Fatal("the monitor must not latch shutdown itself; that is the UI's decision after its warning hold")
	}
}

func TestLeakMonitor_TimeoutDoesNotLatch(t *testing.T) {
	pin := &fakeGpioInput{edges: []bool{false}}
	signals := &flags.Signals{}
	m := NewLeakMonitor(pin, signals, newTestMetrics(), testLogger())

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	m.Run(ctx)

	if signals.LeakDetected.IsSet() {
		t.Fatal("a timeout (no edge) should not latch LeakDetected")
	}
}

func TestTempFanController_FanOnAboveThreshold(t *testing.T) {
	sensor := &fakeTempSensor{temps: []float64{30}}
	fan := &fakeGpioOutput{}
	c := NewTempFanController(sensor, fan, newTestMetrics(), testLogger())
	c.SetThresholdC(25)

	c.tick(context.Background())

	on, called := fan.last()
	if !called || !on {
		t.Fatalf("expected fan driven on above threshold, got on=%v called=%v", on, called)
	}
	if c.LastTemperatureC() == nil || *c.LastTemperatureC() != 30 {
		t.Fatalf("expected last good temperature 30, got %v", c.LastTemperatureC())
	}
}

func TestTempFanController_FanOffBelowThreshold(t *testing.T) {
	sensor := &fakeTempSensor{temps: []float64{10}}
	fan := &fakeGpioOutput{}
	c := NewTempFanController(sensor, fan, newTestMetrics(), testLogger())
	c.SetThresholdC(25)

	c.tick(context.Background())

	on, called := fan.last()
	if !called || on {
		t.Fatalf("expected fan driven off below threshold, got on=%v called=%v", on, called)
	}
}

func TestTempFanController_HoldsLastStateOnReadFailure(t *testing.T) {
	sensor := &fakeTempSensor{readErr: errors.New("i2c nack")}
	fan := &fakeGpioOutput{}
	c := NewTempFanController(sensor, fan, newTestMetrics(), testLogger())
	c.SetThresholdC(25)
	c.fanOn = true // simulate fan already running from a prior good reading

	c.tick(context.Background())

	on, called := fan.last()
	if !called || !on {
		t.Fatalf("expected fan to hold its prior on state through a read failure, got on=%v called=%v", on, called)
	}
}

func TestTempFanController_AlwaysOnThreshold(t *testing.T) {
	sensor := &fakeTempSensor{readErr: errors.New("i2c nack")}
	fan := &fakeGpioOutput{}
	c := NewTempFanController(sensor, fan, newTestMetrics(), testLogger())
	c.SetThresholdC(0) // "always on"

	c.tick(context.Background())

	on, called := fan.last()
	if !called || !on {
		t.Fatalf("expected threshold<=0 to force the fan on even on a read failure, got on=%v called=%v", on, called)
	}
}

func TestTempFanController_GivesUpAfterMaxFailures(t *testing.T) {
	sensor := &fakeTempSensor{readErr: errors.New("i2c nack")}
	c := NewTempFanController(sensor, &fakeGpioOutput{}, newTestMetrics(), testLogger())

	for i := 0; i < 10; i++ {
		c.readTemp(context.Background())
	}

	c.mu.RLock()
	gaveUp := c.sensorGaveUp
	c.mu.RUnlock()
	if !gaveUp {
		t.Fatal("expected the controller to give up after exceeding max consecutive failures")
	}
}

func TestTempFanController_NilSensorAndFanRunIsNoop(t *testing.T) {
	c := NewTempFanController(nil, nil, newTestMetrics(), testLogger())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	done := make(chan struct{})
	go func() {
		c.Run(ctx)
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run with nil sensor and fan should return immediately")
	}
}
