// Package spectro holds the one concrete model.Spectrometer this build
// ships: a stand-in that always reports the device as absent. No USB
// device library exists anywhere in the example corpus this repo was
// built from (no gousb, no libusb cgo binding, nothing), and the spec
// treats the Ocean-family USB driver itself as an external trait, not
// something this codebase implements. Rather than fabricate a USB
// dependency, Open always fails with the same error the "device not
// found" edge case names, so the rest of the system — and main's wiring —
// runs end to end against a real trait boundary, with the acquisition
// engine's unhealthy-after-N-failures path doing exactly what it would do
// against a real device that was never plugged in. Swapping in a real
// driver later means writing one package behind model.Spectrometer; no
// other code changes.
package spectro

import (
	"context"
	"errors"
)

// ErrDeviceNotFound is returned by every Open call.
var ErrDeviceNotFound = errors.New("spectro: spectrometer not found")

// Unavailable implements model.Spectrometer for a build with no USB
// device attached or driven.
type Unavailable struct {
	wavelengths []float64
}

// New returns an Unavailable spectrometer reporting the given wavelength
// axis (used only so SpectralRenderer callers have something to plot
// against before a real device is wired in).
func New(wavelengths []float64) *Unavailable {
	return &Unavailable{wavelengths: wavelengths}
}

func (u *Unavailable) Open(ctx context.Context) error { return ErrDeviceNotFound }

func (u *Unavailable) Wavelengths() []float64 { return u.wavelengths }

func (u *Unavailable) SetIntegrationTimeUS(us int) error { return ErrDeviceNotFound }

func (u *Unavailable) Read(ctx context.Context) ([]float64, error) {
	return nil, ErrDeviceNotFound
}

func (u *Unavailable) Close() error { return nil }
