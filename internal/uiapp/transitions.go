package uiapp

import (
	"time"

	"github.com/roboticsmick/ORCA-open-spectrometer-sub000/config"
	"github.com/roboticsmick/ORCA-open-spectrometer-sub000/internal/autointeg"
	"github.com/roboticsmick/ORCA-open-spectrometer-sub000/internal/model"
)

// ── LIVE_VIEW ──

func (a *App) onLiveView(ev Events) {
	switch {
	case ev.Enter:
		if a.live != nil {
			a.freeze()
		}
	case ev.Up:
		a.enterCalibrationMenu()
	case ev.Down:
		a.rescale()
	case ev.Back:
		a.send(model.Command{Kind: model.CmdStopSession})
		a.exited = true
	}
}

// enterLiveView applies the settings-change detection and reference
// validity gate from SPEC_FULL.md §4.2, then starts (or withholds) the
// session.
func (a *App) enterLiveView() {
	a.state = StateLiveView
	a.warning = ""
	a.live = nil

	next := a.settings.Snapshot()
	if next.IntegrationTimeMS != a.lastSettingsSnapshot.IntegrationTimeMS ||
		next.ScansToAverage != a.lastSettingsSnapshot.ScansToAverage {
		a.calibration.HasDarkRef = false
		a.calibration.HasWhiteRef = false
	}
	a.lastSettingsSnapshot = next
	a.send(model.Command{
		Kind:              model.CmdUpdateSettings,
		IntegrationTimeMS: next.IntegrationTimeMS,
		ScansToAverage:    next.ScansToAverage,
	})

	if next.CollectionMode == model.ModeReflectance && !a.calibration.ValidForReflectance(next.IntegrationTimeMS) {
		a.warning = "CALIBRATE REQUIRED"
		return
	}
	a.send(model.Command{Kind: model.CmdStartSession})
}

func (a *App) freeze() {
	cp := *a.live
	a.frozen = &cp
	a.frozenRaw = cp.RawIntensities
	a.send(model.Command{Kind: model.CmdStopSession})
	a.state = StateFrozen
}

// ── FROZEN ──

func (a *App) onFrozen(ev Events) {
	switch {
	case ev.Enter:
		a.saveFrozen()
		a.frozen = nil
		a.enterLiveView()
	case ev.Back:
		a.frozen = nil
		a.enterLiveView()
	}
}

func (a *App) saveFrozen() {
	if a.frozen == nil {
		return
	}
	settings := a.settings.Snapshot()
	temp := a.readTemperature()

	if a.frozen.SpectraType == model.SpectraReflectance {
		a.enqueueSave(model.SaveRequest{
			ScanResult:     withIntensities(*a.frozen, a.frozen.Intensities),
			CollectionMode: settings.CollectionMode,
			LensType:       settings.LensType,
			TemperatureC:   temp,
		})
		raw := *a.frozen
		raw.SpectraType = model.SpectraRawReflectance
		a.enqueueSave(model.SaveRequest{
			ScanResult:     withIntensities(raw, a.frozenRaw),
			CollectionMode: settings.CollectionMode,
			LensType:       settings.LensType,
			TemperatureC:   temp,
		})
		return
	}

	a.enqueueSave(model.SaveRequest{
		ScanResult:     *a.frozen,
		CollectionMode: settings.CollectionMode,
		LensType:       settings.LensType,
		TemperatureC:   temp,
	})
}

func withIntensities(r model.ScanResult, intensities []float64) model.ScanResult {
	r.Intensities = intensities
	r.RawIntensities = nil
	return r
}

// enqueueSave blocks briefly (SaveQueueTimeout) rather than drop a CSV
// row, per SPEC_FULL.md §4.3; a timeout surfaces as a transient banner
// and a metrics counter rather than crashing the UI loop.
func (a *App) enqueueSave(req model.SaveRequest) {
	req.Timestamp = a.timeOffset.Displayed(req.Timestamp)
	timer := time.NewTimer(config.SaveQueueTimeout)
	defer timer.Stop()
	select {
	case a.saveCh <- req:
	case <-timer.C:
		a.metrics.SaveFailuresTotal.Inc()
		a.warning = "SAVE FAILED"
		a.log.Warn("save queue timed out enqueueing request")
	}
}

func (a *App) readTemperature() *float64 {
	if a.tempProvider == nil {
		return nil
	}
	return a.tempProvider()
}

// ── CALIBRATION_MENU ──

func (a *App) enterCalibrationMenu() {
	settings := a.settings.Snapshot()
	a.restoreMode = settings.CollectionMode
	a.restoreYMax = a.currentYMax(settings.CollectionMode)
	a.send(model.Command{Kind: model.CmdStopSession})
	a.state = StateCalibrationMenu
	a.warning = ""
}

func (a *App) onCalibrationMenu(ev Events) {
	switch {
	case ev.Enter:
		a.enterLiveRef(StateLiveWhiteRef)
	case ev.Up:
		a.enterLiveRef(StateLiveDarkRef)
	case ev.Down:
		a.enterAutoIntegSetup()
	case ev.Back:
		a.restoreSettingsMode()
		a.enterLiveView()
	}
}

func (a *App) restoreSettingsMode() {
	settings := a.settings.Snapshot()
	if settings.CollectionMode != a.restoreMode {
		settings.CollectionMode = a.restoreMode
		a.settings.Update(settings)
	}
	a.setYMax(a.restoreMode, a.restoreYMax)
}

// ── LIVE_DARK_REF / LIVE_WHITE_REF ──

func (a *App) enterLiveRef(state State) {
	settings := a.settings.Snapshot()
	settings.CollectionMode = model.ModeRaw // mode forced to RAW during reference capture
	a.settings.Update(settings)
	a.send(model.Command{Kind: model.CmdSetCollectionMode, CollectionMode: model.ModeRaw})
	a.send(model.Command{Kind: model.CmdStartSession})
	a.state = state
	a.live = nil
	a.warning = ""
}

func (a *App) onLiveRef(ev Events, kind model.SpectraType) {
	switch {
	case ev.Enter:
		if a.live != nil {
			a.freezeRef(kind)
		}
	case ev.Down:
		a.rescale()
	case ev.Back:
		a.send(model.Command{Kind: model.CmdStopSession})
		a.state = StateCalibrationMenu
	}
}

func (a *App) freezeRef(kind model.SpectraType) {
	cp := *a.live
	cp.SpectraType = kind
	a.frozen = &cp
	a.send(model.Command{Kind: model.CmdStopSession})
	if kind == model.SpectraDark {
		a.state = StateFrozenDarkRef
	} else {
		a.state = StateFrozenWhiteRef
	}
}

// ── FROZEN_DARK_REF / FROZEN_WHITE_REF ──

func (a *App) onFrozenRef(ev Events, kind model.SpectraType) {
	switch {
	case ev.Enter:
		if kind == model.SpectraDark {
			a.send(model.Command{Kind: model.CmdCaptureDarkRef})
		} else {
			a.send(model.Command{Kind: model.CmdCaptureWhiteRef})
		}
		a.saveFrozenReference(kind)
		a.frozen = nil
		a.restoreSettingsMode()
		a.enterLiveView()
	case ev.Back:
		a.frozen = nil
		if kind == model.SpectraDark {
			a.enterLiveRef(StateLiveDarkRef)
		} else {
			a.enterLiveRef(StateLiveWhiteRef)
		}
	}
}

func (a *App) saveFrozenReference(kind model.SpectraType) {
	if a.frozen == nil {
		return
	}
	settings := a.settings.Snapshot()
	r := *a.frozen
	r.SpectraType = kind
	a.enqueueSave(model.SaveRequest{
		ScanResult:     r,
		CollectionMode: model.ModeRaw,
		LensType:       settings.LensType,
		TemperatureC:   a.readTemperature(),
	})
}

// ── AUTO_INTEG_SETUP / RUNNING / CONFIRM ──

func (a *App) enterAutoIntegSetup() {
	a.state = StateAutoIntegSetup
	a.warning = ""
}

func (a *App) onAutoIntegSetup(ev Events) {
	switch {
	case ev.Enter:
		a.startAutoInteg()
	case ev.Back:
		a.state = StateCalibrationMenu
	}
}

func (a *App) startAutoInteg() {
	settings := a.settings.Snapshot()
	params := autointeg.Params{
		MaxADC:            config.HWMaxADCCount,
		TargetLowPercent:  config.AutoIntegTargetLowPercent,
		TargetHighPercent: config.AutoIntegTargetHighPercent,
		MaxIterations:     config.AutoIntegMaxIterations,
		Gain:              config.AutoIntegProportionalGain,
		MinStepUS:         config.AutoIntegMinAdjustmentUS,
		DampingFactor:     config.AutoIntegDampingFactor,
		HWMinUS:           config.HWIntegrationTimeMinUS,
		HWMaxUS:           config.HWIntegrationTimeMaxUS,
	}
	a.auto = autointeg.NewController(params, settings.IntegrationTimeMS*1000)
	a.state = StateAutoIntegRunning
	a.send(model.Command{Kind: model.CmdAutoIntegCapture, TestIntegrationUS: a.auto.NextTestUS()})
}

func (a *App) onAutoIntegRunning(ev Events) {
	if ev.Back {
		a.auto = nil
		a.setYMax(model.ModeRaw, a.restoreYMax)
		a.state = StateCalibrationMenu
	}
}

func (a *App) stepAutoInteg(r model.ScanResult) {
	if a.auto == nil || r.PeakADCValue == nil {
		return
	}
	done, outcome, proposedMS := a.auto.Step(*r.PeakADCValue)
	if !done {
		a.send(model.Command{Kind: model.CmdAutoIntegCapture, TestIntegrationUS: a.auto.NextTestUS()})
		return
	}
	a.autoOutcome = outcome
	a.autoProposed = proposedMS
	a.metrics.AutoIntegOutcomes.WithLabelValues(string(outcome)).Inc()
	a.metrics.AutoIntegIterations.Observe(float64(a.auto.Iterations()))
	a.state = StateAutoIntegConfirm
}

func (a *App) onAutoIntegConfirm(ev Events) {
	switch {
	case ev.Enter:
		a.applyAutoInteg()
	case ev.Back:
		a.state = StateCalibrationMenu
	}
}

func (a *App) applyAutoInteg() {
	settings := a.settings.Snapshot()
	settings.IntegrationTimeMS = model.ClampIntegrationMS(a.autoProposed, a.limits)
	a.settings.Update(settings)
	a.send(model.Command{
		Kind:              model.CmdUpdateSettings,
		IntegrationTimeMS: settings.IntegrationTimeMS,
		ScansToAverage:    settings.ScansToAverage,
	})
	a.calibration.HasDarkRef = false
	a.calibration.HasWhiteRef = false
	a.rescaleArmed = true
	a.enterLiveView()
}

// ── Y-axis rescale ──

func (a *App) rescale() {
	if a.live == nil {
		return
	}
	mode := model.ModeRaw
	if a.live.SpectraType == model.SpectraReflectance {
		mode = model.ModeReflectance
	}
	peak := 0.0
	for _, v := range a.live.Intensities {
		if v > peak {
			peak = v
		}
	}
	a.setYMax(mode, peak*config.PlotYAxisRescaleFactor)
}

func (a *App) currentYMax(mode model.CollectionMode) float64 {
	if mode == model.ModeReflectance {
		return a.yMaxReflectance
	}
	return a.yMaxRaw
}

func (a *App) setYMax(mode model.CollectionMode, v float64) {
	if mode == model.ModeReflectance {
		if v < config.PlotYAxisReflectanceMinCeiling {
			v = config.PlotYAxisReflectanceMinCeiling
		}
		if v > config.PlotYAxisReflectanceMaxCeiling {
			v = config.PlotYAxisReflectanceMaxCeiling
		}
		a.yMaxReflectance = v
		return
	}
	if v < config.PlotYAxisMinCeiling {
		v = config.PlotYAxisMinCeiling
	}
	if v > config.HWMaxADCCount {
		v = config.HWMaxADCCount
	}
	a.yMaxRaw = v
}

// YMax returns the Y-axis ceiling for the currently displayed spectra
// type, for the renderer trait.
func (a *App) YMax() float64 {
	if a.live != nil && a.live.SpectraType == model.SpectraReflectance {
		return a.yMaxReflectance
	}
	return a.yMaxRaw
}
