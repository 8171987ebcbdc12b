package acquisition

import (
	"sync/atomic"

	"github.com/roboticsmick/ORCA-open-spectrometer-sub000/internal/model"
)

// SettingsStore holds the shared SpectrometerSettings: the UI is the sole
// writer, the acquisition engine the sole reader, snapshotting once per
// capture cycle. Implemented as an atomic pointer swap (read-copy-update)
// rather than a mutex, since model.Settings is a small value type copied
// wholesale on every write.
type SettingsStore struct {
	v atomic.Pointer[model.Settings]
}

// NewSettingsStore creates a store seeded with the given initial settings.
func NewSettingsStore(initial model.Settings) *SettingsStore {
	s := &SettingsStore{}
	s.v.Store(&initial)
	return s
}

// Snapshot returns a value copy of the current settings. Safe to call from
// any goroutine at any rate.
func (s *SettingsStore) Snapshot() model.Settings {
	return *s.v.Load()
}

// Update replaces the settings wholesale. Only the UI goroutine calls this.
func (s *SettingsStore) Update(next model.Settings) {
	s.v.Store(&next)
}
