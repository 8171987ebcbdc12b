// Package uiapp is the spectrometer screen's cooperative state machine:
// it owns no hardware, blocks on nothing, and talks to the acquisition
// engine and data writer only through the bounded queues and shared
// flags described in SPEC_FULL.md §5. It is the UI actor in the
// fanout/hub sense the teacher's gateway package models for its
// WebSocket clients, generalized here to a single local consumer rather
// than many remote ones.
package uiapp

import (
	"context"
	"log/slog"
	"time"

	"github.com/roboticsmick/ORCA-open-spectrometer-sub000/config"
	"github.com/roboticsmick/ORCA-open-spectrometer-sub000/internal/acquisition"
	"github.com/roboticsmick/ORCA-open-spectrometer-sub000/internal/autointeg"
	"github.com/roboticsmick/ORCA-open-spectrometer-sub000/internal/flags"
	"github.com/roboticsmick/ORCA-open-spectrometer-sub000/internal/model"
	"github.com/roboticsmick/ORCA-open-spectrometer-sub000/internal/telemetry"
)

// App holds the spectrometer screen's complete state. Exactly one
// goroutine (Run's) ever touches it, so no internal locking is needed.
type App struct {
	settings  *acquisition.SettingsStore
	limits    model.Limits
	results   *acquisition.ResultQueue
	commandCh chan<- model.Command
	saveCh    chan<- model.SaveRequest
	journal   model.CommandJournal
	signals   *flags.Signals
	metrics   *telemetry.Metrics
	log       *slog.Logger
	buttons   Source

	state       State
	restoreMode model.CollectionMode
	restoreYMax float64
	timeOffset  model.TimeOffset

	// calibration is the UI's locally-mirrored view of the engine's
	// calibration state, echoed on every ScanResult (SPEC_FULL.md §9:
	// the UI never holds a reference into engine-owned reference data).
	calibration          model.CalibrationStatus
	lastSettingsSnapshot model.Settings

	live      *model.ScanResult // most recent in-session, valid result
	frozen    *model.ScanResult
	frozenRaw []float64 // raw companion for a frozen REFLECTANCE sample

	yMaxRaw         float64
	yMaxReflectance float64
	rescaleArmed    bool

	auto         *autointeg.Controller
	autoOutcome  autointeg.Outcome
	autoProposed int

	leakWarningSince time.Time
	warning          string // transient banner text, cleared each state entry
	exited           bool   // B from LIVE_VIEW: screen should return to the main menu

	// tempProvider supplies the temperature_c field for SaveRequests. Nil
	// (e.g. in tests) means the field is always omitted.
	tempProvider func() *float64

	// onResult, if set, observes every in-session result the UI accepts
	// into its live view. Wired to the read-only diagnostics mirror; a nil
	// observer (tests, a build with diagnostics disabled) is a no-op.
	onResult func(model.ScanResult)
}

// SetResultObserver wires a callback invoked with every valid, live
// ScanResult the UI displays. Intended for the diagnostics WebSocket
// mirror, which observes what the operator sees rather than the engine's
// raw output.
func (a *App) SetResultObserver(f func(model.ScanResult)) {
	a.onResult = f
}

// SetTemperatureProvider wires the enclosure temperature reading used to
// stamp SaveRequests. Optional; omit for a build with no temperature
// sensor configured.
func (a *App) SetTemperatureProvider(f func() *float64) {
	a.tempProvider = f
}

// Exited reports whether the user backed out of the spectrometer screen
// from LIVE_VIEW, per SPEC_FULL.md §4.2 ("B → exit screen").
func (a *App) Exited() bool { return a.exited }

// TimeOffset returns the menu's displayed-clock adjustment, applied to
// every SaveRequest's timestamp (SPEC_FULL.md §4.3: "formed from the
// menu's adjusted time"). The main menu screen (out of scope here) is
// the one that edits it via TimeOffset.BeginEdit/SetField/Commit.
func (a *App) TimeOffset() *model.TimeOffset { return &a.timeOffset }

// New constructs the UI application in its initial LIVE_VIEW state.
func New(
	settings *acquisition.SettingsStore,
	limits model.Limits,
	results *acquisition.ResultQueue,
	commandCh chan<- model.Command,
	saveCh chan<- model.SaveRequest,
	journal model.CommandJournal,
	signals *flags.Signals,
	metrics *telemetry.Metrics,
	log *slog.Logger,
	buttons Source,
) *App {
	a := &App{
		settings:        settings,
		limits:          limits,
		results:         results,
		commandCh:       commandCh,
		saveCh:          saveCh,
		journal:         journal,
		signals:         signals,
		metrics:         metrics,
		log:             log,
		buttons:         buttons,
		state:           StateLiveView,
		yMaxRaw:         config.PlotYAxisDefaultMax,
		yMaxReflectance: config.PlotYAxisReflectanceDefaultMax,
	}
	a.lastSettingsSnapshot = settings.Snapshot()
	a.enterLiveView()
	return a
}

// Run drives the cooperative ~30 FPS loop until ctx is cancelled or the
// shutdown flag latches.
func (a *App) Run(ctx context.Context) {
	ticker := time.NewTicker(config.MainLoopInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			a.Tick(now)
			if a.signals.Shutdown.IsSet() {
				return
			}
		}
	}
}

// Tick runs one frame: drain results, observe the leak flag, poll
// buttons, and dispatch to the active state's handler. Exported so tests
// can drive the state machine deterministically without a ticker.
func (a *App) Tick(now time.Time) {
	a.drainResults()

	if a.signals.LeakDetected.IsSet() {
		a.handleLeak(now)
		return
	}

	ev := a.buttons.Poll()
	if !ev.Any() {
		return
	}

	switch a.state {
	case StateLiveView:
		a.onLiveView(ev)
	case StateFrozen:
		a.onFrozen(ev)
	case StateCalibrationMenu:
		a.onCalibrationMenu(ev)
	case StateLiveDarkRef:
		a.onLiveRef(ev, model.SpectraDark)
	case StateLiveWhiteRef:
		a.onLiveRef(ev, model.SpectraWhite)
	case StateFrozenDarkRef:
		a.onFrozenRef(ev, model.SpectraDark)
	case StateFrozenWhiteRef:
		a.onFrozenRef(ev, model.SpectraWhite)
	case StateAutoIntegSetup:
		a.onAutoIntegSetup(ev)
	case StateAutoIntegRunning:
		a.onAutoIntegRunning(ev)
	case StateAutoIntegConfirm:
		a.onAutoIntegConfirm(ev)
	}
}

// State reports the current screen state, for rendering and tests.
func (a *App) State() State { return a.state }

// Warning returns the transient banner text for the current state, if any.
func (a *App) Warning() string { return a.warning }

// Live returns the most recent valid, in-session result, or nil.
func (a *App) Live() *model.ScanResult { return a.live }

// Frozen returns the held sample in a FROZEN* state, or nil.
func (a *App) Frozen() *model.ScanResult { return a.frozen }

// Calibration returns the UI's locally-mirrored calibration status.
func (a *App) Calibration() model.CalibrationStatus { return a.calibration }

// drainResults applies the freshness filter: only in-session (is_valid)
// results update the live view; everything else is discarded, including
// AUTO_INTEG and reference results which are handled inline by their
// issuing state instead of via the live-plot path. The device-error
// sentinel bypasses the per-scan fields entirely and only ever drives the
// warning banner, since it reports the device's health rather than a scan.
func (a *App) drainResults() {
	for _, r := range a.results.DrainAll() {
		if !r.IsValid {
			continue
		}
		if r.DeviceError {
			a.warning = "SPECTROMETER NOT RESPONDING"
			continue
		}
		a.calibration = r.Calibration
		switch r.SpectraType {
		case model.SpectraRaw, model.SpectraReflectance:
			if a.state.runsSpectrometer() {
				cp := r
				a.live = &cp
				if a.rescaleArmed {
					a.rescale()
					a.rescaleArmed = false
				}
				if a.onResult != nil {
					a.onResult(cp)
				}
			}
		case model.SpectraAutoInteg:
			if a.state == StateAutoIntegRunning {
				a.stepAutoInteg(r)
			}
		case model.SpectraDark, model.SpectraWhite:
			if a.state == StateLiveDarkRef || a.state == StateLiveWhiteRef {
				cp := r
				a.live = &cp
			}
		}
	}
}

func (a *App) send(cmd model.Command) {
	a.commandCh <- cmd
	if a.journal != nil {
		a.journal.Record(cmd)
	}
}

// handleLeak transitions to the full-screen warning on first observation
// and, after the hold window, latches process shutdown (SPEC_FULL.md
// §4.4, invariant 9: shutdown begins within ~6s of the leak edge).
func (a *App) handleLeak(now time.Time) {
	if a.state != StateLeakWarning {
		a.state = StateLeakWarning
		a.leakWarningSince = now
		a.metrics.LeakDetected.Set(1)
		a.log.Error("leak detected, entering warning screen")
		return
	}
	if now.Sub(a.leakWarningSince) >= config.LeakWarningHold {
		a.signals.Shutdown.Set()
	}
}
