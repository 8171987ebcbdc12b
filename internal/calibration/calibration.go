// Package calibration owns the acquisition engine's dark/white reference
// spectra and the validity predicate used both to gate REFLECTANCE
// emission and to drive the UI's calibration status display.
package calibration

import (
	"sync"

	"github.com/roboticsmick/ORCA-open-spectrometer-sub000/internal/model"
)

// Store holds the two reference spectra. It is owned exclusively by the
// acquisition engine; nothing outside that goroutine calls its mutating
// methods. Status() is safe to call from any goroutine.
type Store struct {
	mu   sync.RWMutex
	refs model.References

	autoIntegCompleted bool
	autoIntegMS         int
}

// NewStore returns an empty calibration store.
func NewStore() *Store {
	return &Store{}
}

// SetDark stores a new dark reference, stamped with the integration time it
// was captured at. Storing a new reference invalidates nothing else.
func (s *Store) SetDark(intensities []float64, integrationMS int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.refs.Dark = &model.Reference{Intensities: intensities, IntegrationTimeMS: integrationMS}
}

// SetWhite stores a new white reference.
func (s *Store) SetWhite(intensities []float64, integrationMS int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.refs.White = &model.Reference{Intensities: intensities, IntegrationTimeMS: integrationMS}
}

// InvalidateForIntegrationChange drops both references. Called whenever
// integration_time_ms or scans_to_average changes.
func (s *Store) InvalidateForIntegrationChange() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.refs.Dark = nil
	s.refs.White = nil
}

// SetAutoIntegCompleted records that an auto-integration run was applied,
// for UI display only; it does not gate anything.
func (s *Store) SetAutoIntegCompleted(integrationMS int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.autoIntegCompleted = true
	s.autoIntegMS = integrationMS
}

// ValidForReflectance reports whether both references exist and match the
// given integration time.
func (s *Store) ValidForReflectance(integrationTimeMS int) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.refs.ValidForReflectance(integrationTimeMS)
}

// Dark returns the stored dark reference intensities, or nil if unset.
// The returned slice must not be mutated by the caller.
func (s *Store) Dark() []float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.refs.Dark == nil {
		return nil
	}
	return s.refs.Dark.Intensities
}

// White returns the stored white reference intensities, or nil if unset.
func (s *Store) White() []float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.refs.White == nil {
		return nil
	}
	return s.refs.White.Intensities
}

// Status returns the compact, UI-facing snapshot piggybacked on every
// ScanResult.
func (s *Store) Status() model.CalibrationStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st := model.CalibrationStatus{
		AutoIntegCompleted:     s.autoIntegCompleted,
		AutoIntegIntegrationMS: s.autoIntegMS,
	}
	if s.refs.Dark != nil {
		st.HasDarkRef = true
		st.DarkIntegrationMS = s.refs.Dark.IntegrationTimeMS
	}
	if s.refs.White != nil {
		st.HasWhiteRef = true
		st.WhiteIntegrationMS = s.refs.White.IntegrationTimeMS
	}
	return st
}

// Reflectance computes refl[i] = (raw[i]-dark[i])/(white[i]-dark[i]),
// clipped to [0, ceiling]. Indices where |white[i]-dark[i]| <= epsilon
// yield 0, per SPEC_FULL.md §4.1.
func Reflectance(raw, dark, white []float64, epsilon, ceiling float64) []float64 {
	out := make([]float64, len(raw))
	for i := range raw {
		denom := white[i] - dark[i]
		if denom < 0 {
			denom = -denom
		}
		if denom <= epsilon {
			out[i] = 0
			continue
		}
		v := (raw[i] - dark[i]) / (white[i] - dark[i])
		if v < 0 {
			v = 0
		}
		if v > ceiling {
			v = ceiling
		}
		out[i] = v
	}
	return out
}
