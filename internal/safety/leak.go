// Package safety runs the two hardware watchdogs that protect the
// instrument when it is submerged: a leak sensor that latches the
// leak-detected flag, and a temperature-driven fan controller. Both are
// dedicated goroutines; neither touches the spectrometer.
package safety

import (
	"context"
	"log/slog"

	"github.com/roboticsmick/ORCA-open-spectrometer-sub000/internal/flags"
	"github.com/roboticsmick/ORCA-open-spectrometer-sub000/internal/model"
	"github.com/roboticsmick/ORCA-open-spectrometer-sub000/internal/telemetry"
)

// LeakMonitor watches a single digital input wired to a leak probe and
// latches flags.Signals.LeakDetected on the first falling edge. The pin
// is expected to be configured pull-up with the probe pulling it low on
// contact with water; debounce is the concrete GpioInput implementation's
// concern, not this monitor's.
type LeakMonitor struct {
	pin     model.GpioInput
	signals *flags.Signals
	metrics *telemetry.Metrics
	log     *slog.Logger
}

// NewLeakMonitor wires a monitor around a GpioInput. pin may be nil when
// the leak sensor is disabled in config, in which case Run returns
// immediately.
func NewLeakMonitor(pin model.GpioInput, signals *flags.Signals, metrics *telemetry.Metrics, log *slog.Logger) *LeakMonitor {
	return &LeakMonitor{pin: pin, signals: signals, metrics: metrics, log: log}
}

// Run blocks on edge events until ctx is cancelled, latching LeakDetected
// the first time an edge is observed. There is no polling loop: the
// underlying GpioInput is expected to block in WaitForEdge using the
// platform's interrupt mechanism, the same model as the original
// leak_sensor.py callback registered against GPIO.FALLING. Shutdown is
// not latched here: the UI owns the decision of when to escalate a
// detected leak to a process shutdown, after holding its warning screen
// for config.LeakWarningHold (see uiapp.App.handleLeak), the same
// division of responsibility leak_sensor.py's callback has with its
// caller.
func (m *LeakMonitor) Run(ctx context.Context) {
	if m.pin == nil {
		return
	}

	for {
		if ctx.Err() != nil {
			return
		}
		edge, err := m.pin.WaitForEdge(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			m.log.Error("leak sensor wait failed", "err", err)
			continue
		}
		if !edge {
			continue // timeout, not a detection; re-arm
		}

		if m.signals.LeakDetected.Set() {
			m.log.Error("leak detected")
			m.metrics.LeakDetected.Set(1)
		}
		return // one-way latch: nothing left to watch for
	}
}
