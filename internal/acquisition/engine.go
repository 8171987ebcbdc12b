// Package acquisition owns the spectrometer USB device and turns commands
// from the UI into a stream of ScanResults: capture, averaging,
// reflectance math, and session-based freshness stamping.
package acquisition

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/roboticsmick/ORCA-open-spectrometer-sub000/config"
	"github.com/roboticsmick/ORCA-open-spectrometer-sub000/internal/calibration"
	"github.com/roboticsmick/ORCA-open-spectrometer-sub000/internal/flags"
	"github.com/roboticsmick/ORCA-open-spectrometer-sub000/internal/model"
	"github.com/roboticsmick/ORCA-open-spectrometer-sub000/internal/telemetry"
)

// Engine is the single dedicated worker that owns the Spectrometer. Only
// Run's goroutine ever calls into the device.
type Engine struct {
	device   model.Spectrometer
	settings *SettingsStore
	refs     *calibration.Store
	signals  *flags.Signals
	metrics  *telemetry.Metrics
	log      *slog.Logger

	commandCh <-chan model.Command
	results   *ResultQueue

	session         atomic.Uint64
	capturing       atomic.Bool
	hwIntegrationUS int

	consecutiveFailures int
	lastSentinel        time.Time
	unhealthy           bool
}

// NewEngine wires an engine around a Spectrometer implementation.
func NewEngine(
	device model.Spectrometer,
	settings *SettingsStore,
	refs *calibration.Store,
	signals *flags.Signals,
	metrics *telemetry.Metrics,
	log *slog.Logger,
	commandCh <-chan model.Command,
	results *ResultQueue,
) *Engine {
	return &Engine{
		device:    device,
		settings:  settings,
		refs:      refs,
		signals:   signals,
		metrics:   metrics,
		log:       log,
		commandCh: commandCh,
		results:   results,
	}
}

// Run opens the device and services commands until ctx is cancelled or the
// shutdown flag latches. It is the engine's dedicated goroutine.
func (e *Engine) Run(ctx context.Context) {
	if err := e.device.Open(ctx); err != nil {
		e.log.Error("failed to open spectrometer", "err", err)
		e.markUnhealthy()
	}
	defer e.device.Close()

	for {
		if e.signals.Shutdown.IsSet() {
			return
		}
		select {
		case <-ctx.Done():
			return
		case cmd := <-e.commandCh:
			e.handleCommand(ctx, cmd)
		default:
		}

		if e.capturing.Load() && !e.signals.Shutdown.IsSet() {
			e.captureCycle(ctx)
		} else {
			// idle: still observe new commands promptly without busy-spinning
			select {
			case <-ctx.Done():
				return
			case cmd := <-e.commandCh:
				e.handleCommand(ctx, cmd)
			case <-time.After(20 * time.Millisecond):
			}
		}
	}
}

func (e *Engine) handleCommand(ctx context.Context, cmd model.Command) {
	switch cmd.Kind {
	case model.CmdStartSession:
		e.session.Add(1)
		e.capturing.Store(true)
		if e.unhealthy {
			if err := e.device.Open(ctx); err == nil {
				e.unhealthy = false
				e.consecutiveFailures = 0
				e.metrics.DeviceHealthy.Set(1)
			}
		}

	case model.CmdStopSession:
		e.capturing.Store(false)

	case model.CmdUpdateSettings:
		prev := e.settings.Snapshot()
		next := prev
		next.IntegrationTimeMS = cmd.IntegrationTimeMS
		next.ScansToAverage = cmd.ScansToAverage
		e.settings.Update(next)
		if next.IntegrationTimeMS != prev.IntegrationTimeMS || next.ScansToAverage != prev.ScansToAverage {
			e.refs.InvalidateForIntegrationChange()
		}

	case model.CmdSetCollectionMode:
		next := e.settings.Snapshot()
		next.CollectionMode = cmd.CollectionMode
		e.settings.Update(next)

	case model.CmdCaptureDarkRef:
		e.captureReference(ctx, model.SpectraDark)

	case model.CmdCaptureWhiteRef:
		e.captureReference(ctx, model.SpectraWhite)

	case model.CmdAutoIntegCapture:
		e.captureAutoInteg(ctx, cmd.TestIntegrationUS)
	}
}

// captureCycle runs one normal (non-one-shot) capture: settings snapshot,
// averaging, reflectance, session stamping.
func (e *Engine) captureCycle(ctx context.Context) {
	settings := e.settings.Snapshot()
	sessionAtStart := e.session.Load()

	if err := e.ensureIntegration(settings.IntegrationTimeMS); err != nil {
		e.log.Debug("set integration time failed", "err", err)
	}

	raw, ok := e.averagedRead(ctx, model.ScansOrSingle(settings.ScansToAverage))
	if !ok {
		return
	}

	now := time.Now()
	base := model.ScanResult{
		Wavelengths:       e.device.Wavelengths(),
		Timestamp:         now,
		IntegrationTimeMS: settings.IntegrationTimeMS,
		SessionID:         sessionAtStart,
		IsValid:           sessionAtStart == e.session.Load(),
		Calibration:       e.refs.Status(),
	}

	if settings.CollectionMode == model.ModeReflectance {
		if !e.refs.ValidForReflectance(settings.IntegrationTimeMS) {
			return // no RAW fallback, per SPEC_FULL.md §9 decided open question
		}
		refl := calibration.Reflectance(raw, e.refs.Dark(), e.refs.White(), config.DivisionEpsilon, config.ReflectanceMaxCeiling)
		base.Intensities = refl
		base.RawIntensities = raw
		base.SpectraType = model.SpectraReflectance
	} else {
		base.Intensities = raw
		base.SpectraType = model.SpectraRaw
	}

	e.results.Push(base)
	e.metrics.ScansTotal.WithLabelValues(string(base.SpectraType)).Inc()
}

// captureReference performs a single-scan-mode RAW average-of-N capture and
// stores it as the requested reference kind. One-shot: not subject to the
// REFLECTANCE emission gate.
func (e *Engine) captureReference(ctx context.Context, kind model.SpectraType) {
	settings := e.settings.Snapshot()

	if err := e.ensureIntegration(settings.IntegrationTimeMS); err != nil {
		e.log.Debug("set integration time failed", "err", err)
	}

	raw, ok := e.averagedRead(ctx, model.ScansOrSingle(settings.ScansToAverage))
	if !ok {
		return
	}

	switch kind {
	case model.SpectraDark:
		e.refs.SetDark(raw, settings.IntegrationTimeMS)
	case model.SpectraWhite:
		e.refs.SetWhite(raw, settings.IntegrationTimeMS)
	}

	e.results.Push(model.ScanResult{
		Wavelengths:       e.device.Wavelengths(),
		Intensities:       raw,
		Timestamp:         time.Now(),
		IntegrationTimeMS: settings.IntegrationTimeMS,
		SpectraType:       kind,
		SessionID:         e.session.Load(),
		IsValid:           true,
		Calibration:       e.refs.Status(),
	})
	e.metrics.ScansTotal.WithLabelValues(string(kind)).Inc()
}

// captureAutoInteg services one AUTO_INTEG_CAPTURE command: always a
// single scan regardless of the averaging setting, always tagged
// AUTO_INTEG, echoing the requested test integration and the peak ADC.
func (e *Engine) captureAutoInteg(ctx context.Context, testUS int) {
	testUS = clampInt(testUS, config.HWIntegrationTimeMinUS, config.HWIntegrationTimeMaxUS)
	if err := e.device.SetIntegrationTimeUS(testUS); err != nil {
		e.log.Debug("auto-integ set integration failed", "err", err)
		return
	}
	e.hwIntegrationUS = testUS

	rctx, cancel := withTimeout(ctx)
	intensities, err := e.device.Read(rctx)
	cancel()
	if err != nil {
		e.recordFailure(err)
		return
	}
	e.recordSuccess()

	peak := maxOf(intensities)
	e.results.Push(model.ScanResult{
		Wavelengths:       e.device.Wavelengths(),
		Intensities:       intensities,
		Timestamp:         time.Now(),
		IntegrationTimeMS: testUS / 1000,
		SpectraType:       model.SpectraAutoInteg,
		SessionID:         e.session.Load(),
		IsValid:           true,
		PeakADCValue:      &peak,
		TestIntegrationUS: &testUS,
		Calibration:       e.refs.Status(),
	})
	e.metrics.ScansTotal.WithLabelValues(string(model.SpectraAutoInteg)).Inc()
}

// ensureIntegration pushes the requested integration time (ms) to the
// device only when it differs from what is currently configured. The value
// is clamped to config.HWIntegrationTimeMinUS/MaxUS; limits reported by the
// device itself are not queried or applied.
func (e *Engine) ensureIntegration(integrationMS int) error {
	wantUS := clampInt(integrationMS*1000, config.HWIntegrationTimeMinUS, config.HWIntegrationTimeMaxUS)
	if wantUS == e.hwIntegrationUS {
		return nil
	}
	if err := e.device.SetIntegrationTimeUS(wantUS); err != nil {
		return err
	}
	e.hwIntegrationUS = wantUS
	return nil
}

// averagedRead acquires n raw spectra and returns their element-wise mean.
// Cooperative: checks for shutdown between scans so a long integration
// doesn't block process exit indefinitely, though an in-flight USB read is
// never interrupted mid-call.
func (e *Engine) averagedRead(ctx context.Context, n int) ([]float64, bool) {
	var sum []float64
	for i := 0; i < n; i++ {
		if e.signals.Shutdown.IsSet() {
			return nil, false
		}
		rctx, cancel := withTimeout(ctx)
		reading, err := e.device.Read(rctx)
		cancel()
		if err != nil {
			e.recordFailure(err)
			return nil, false
		}
		e.recordSuccess()
		if sum == nil {
			sum = make([]float64, len(reading))
		}
		for j, v := range reading {
			sum[j] += v
		}
	}
	for j := range sum {
		sum[j] /= float64(n)
	}
	return sum, true
}

func (e *Engine) recordFailure(err error) {
	e.log.Debug("spectrometer read failed", "err", err)
	e.metrics.ScanFailuresTotal.Inc()
	e.consecutiveFailures++
	if e.consecutiveFailures >= config.AcquisitionMaxFailures {
		e.markUnhealthy()
		if time.Since(e.lastSentinel) >= config.AcquisitionSentinelInterval {
			e.lastSentinel = time.Now()
			e.results.Push(model.ScanResult{DeviceError: true, IsValid: true, SessionID: e.session.Load()})
		}
	}
}

func (e *Engine) recordSuccess() {
	e.consecutiveFailures = 0
	if e.unhealthy {
		e.unhealthy = false
		e.metrics.DeviceHealthy.Set(1)
	}
}

func (e *Engine) markUnhealthy() {
	e.unhealthy = true
	e.metrics.DeviceHealthy.Set(0)
}

func withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, config.USBReadTimeout)
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func maxOf(vs []float64) float64 {
	m := 0.0
	for _, v := range vs {
		if v > m {
			m = v
		}
	}
	return m
}
