package uiapp

// State is one node of the spectrometer screen's state machine.
type State int

const (
	StateLiveView State = iota
	StateFrozen
	StateCalibrationMenu
	StateLiveDarkRef
	StateLiveWhiteRef
	StateFrozenDarkRef
	StateFrozenWhiteRef
	StateAutoIntegSetup
	StateAutoIntegRunning
	StateAutoIntegConfirm
	StateLeakWarning
)

func (s State) String() string {
	switch s {
	case StateLiveView:
		return "LIVE_VIEW"
	case StateFrozen:
		return "FROZEN"
	case StateCalibrationMenu:
		return "CALIBRATION_MENU"
	case StateLiveDarkRef:
		return "LIVE_DARK_REF"
	case StateLiveWhiteRef:
		return "LIVE_WHITE_REF"
	case StateFrozenDarkRef:
		return "FROZEN_DARK_REF"
	case StateFrozenWhiteRef:
		return "FROZEN_WHITE_REF"
	case StateAutoIntegSetup:
		return "AUTO_INTEG_SETUP"
	case StateAutoIntegRunning:
		return "AUTO_INTEG_RUNNING"
	case StateAutoIntegConfirm:
		return "AUTO_INTEG_CONFIRM"
	case StateLeakWarning:
		return "LEAK_WARNING"
	default:
		return "UNKNOWN"
	}
}

// runsSpectrometer reports whether the engine session should be active
// while in this state, per the table in SPEC_FULL.md §4.2. REFLECTANCE
// live view additionally depends on reference validity, handled by the
// caller, not this table.
func (s State) runsSpectrometer() bool {
	switch s {
	case StateLiveView, StateLiveDarkRef, StateLiveWhiteRef, StateAutoIntegRunning:
		return true
	default:
		return false
	}
}
