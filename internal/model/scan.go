package model

import "time"

// SpectraType tags what a ScanResult (or a saved row) represents.
type SpectraType string

const (
	SpectraRaw            SpectraType = "RAW"
	SpectraReflectance    SpectraType = "REFLECTANCE"
	SpectraDark           SpectraType = "DARK"
	SpectraWhite          SpectraType = "WHITE"
	SpectraRawReflectance SpectraType = "RAW_REFLECTANCE"
	SpectraAutoInteg      SpectraType = "AUTO_INTEG"
)

// ScanResult is produced by the acquisition engine and consumed by the UI.
// Optional fields use pointers rather than sentinel values so absence is
// explicit at the type level (see SPEC_FULL.md §9 on modeling absence).
type ScanResult struct {
	Wavelengths       []float64
	Intensities       []float64
	RawIntensities    []float64 // present iff CollectionMode == REFLECTANCE
	Timestamp         time.Time
	IntegrationTimeMS int
	SpectraType       SpectraType
	SessionID         uint64
	IsValid           bool

	PeakADCValue      *float64 // AUTO_INTEG only
	TestIntegrationUS *int     // AUTO_INTEG only

	// Calibration is a compact snapshot piggybacked on every result so the
	// UI never needs a reference to the engine's internal reference data.
	Calibration CalibrationStatus

	// DeviceError is set on a sentinel "device unhealthy" result; apart
	// from IsValid (true) and SessionID, all other fields are zero-valued
	// in that case.
	DeviceError bool
}

// WavelengthsIntensitiesMatch reports invariant 1 from SPEC_FULL.md §8: the
// wavelength and intensity (and, if present, raw-intensity) slices are the
// same length.
func (r ScanResult) WavelengthsIntensitiesMatch() bool {
	if len(r.Wavelengths) != len(r.Intensities) {
		return false
	}
	if r.RawIntensities != nil && len(r.RawIntensities) != len(r.Wavelengths) {
		return false
	}
	return true
}

// Reference is a stored dark or white calibration spectrum.
type Reference struct {
	Intensities       []float64
	IntegrationTimeMS int
}

// References holds both calibration spectra. Owned exclusively by the
// acquisition engine; the UI only ever sees a CalibrationStatus summary.
type References struct {
	Dark  *Reference
	White *Reference
}

// ValidForReflectance reports whether both references exist and match the
// given integration time, per the validity predicate in SPEC_FULL.md §4.5.
func (r References) ValidForReflectance(integrationTimeMS int) bool {
	if r.Dark == nil || r.White == nil {
		return false
	}
	return r.Dark.IntegrationTimeMS == integrationTimeMS && r.White.IntegrationTimeMS == integrationTimeMS
}

// CalibrationStatus is the compact, UI-facing snapshot of calibration
// state, echoed on every ScanResult so the UI can render validity without
// holding a reference into engine-owned memory.
type CalibrationStatus struct {
	HasDarkRef         bool
	DarkIntegrationMS  int // meaningful only if HasDarkRef
	HasWhiteRef        bool
	WhiteIntegrationMS int // meaningful only if HasWhiteRef

	AutoIntegCompleted     bool
	AutoIntegIntegrationMS int // meaningful only if AutoIntegCompleted
}

// ValidForReflectance mirrors References.ValidForReflectance using only the
// UI-visible snapshot fields, per the "identical on both sides" requirement
// in SPEC_FULL.md §4.5.
func (c CalibrationStatus) ValidForReflectance(settingsIntegrationMS int) bool {
	return c.HasDarkRef && c.HasWhiteRef &&
		c.DarkIntegrationMS == settingsIntegrationMS &&
		c.WhiteIntegrationMS == settingsIntegrationMS
}
