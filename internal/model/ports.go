package model

import (
	"context"
	"image"
)

// ── Hardware Port Interfaces ──
// These interfaces decouple business logic from concrete hardware
// implementations (the USB spectrometer, GPIO pins, the I2C temperature
// sensor). Each implementation satisfies one or more of these interfaces;
// tests substitute fakes.

// Spectrometer is the USB acquisition device. A single goroutine owns the
// Spectrometer at a time; the underlying driver is not expected to be
// safe for concurrent calls.
type Spectrometer interface {
	// Open claims the device. Safe to call once before the first Read.
	Open(ctx context.Context) error

	// Wavelengths returns the device's fixed wavelength axis.
	Wavelengths() []float64

	// SetIntegrationTimeUS configures the exposure time in microseconds.
	SetIntegrationTimeUS(us int) error

	// Read performs one exposure and returns raw intensities aligned with
	// Wavelengths(). Blocks for roughly the configured integration time.
	Read(ctx context.Context) ([]float64, error)

	// Close releases the underlying USB handle.
	Close() error
}

// GpioInput is a single digital input pin, used for the leak sensor.
type GpioInput interface {
	// WaitForEdge blocks until the pin transitions or the timeout elapses,
	// returning true on a transition and false on timeout.
	WaitForEdge(ctx context.Context) (bool, error)

	// Read returns the pin's current logic level.
	Read() (bool, error)
}

// GpioOutput is a single digital output pin, used for fan control.
type GpioOutput interface {
	// Set drives the pin high (true) or low (false).
	Set(high bool) error
}

// I2cTempSensor reads a temperature sensor over I2C (MCP9808 in production).
type I2cTempSensor interface {
	// ReadCelsius returns the current ambient temperature.
	ReadCelsius(ctx context.Context) (float64, error)

	// Close releases the underlying I2C bus handle.
	Close() error
}

// SpectralRenderer draws a scan onto a framebuffer-sized image for the
// on-device display and for the archived PNG plot. Implementations must not
// retain the returned image past the next call.
type SpectralRenderer interface {
	Render(result ScanResult, title string) (*image.RGBA, error)
}

// ScanWriter persists save requests to durable storage (CSV rows plus a
// PNG plot per scan). CSV writes block briefly rather than drop; PNG
// writes are best-effort.
type ScanWriter interface {
	// Run reads requests from saveCh and writes them until ctx is
	// cancelled or saveCh is closed.
	Run(ctx context.Context, saveCh <-chan SaveRequest)

	// Close flushes any buffered state and releases resources.
	Close() error
}

// CommandJournal records an append-only audit trail of commands accepted
// by the acquisition engine.
type CommandJournal interface {
	// Record appends one command to the journal. Never blocks the caller
	// on I/O errors; failures are logged, not returned.
	Record(cmd Command)

	// Close flushes and releases the underlying file handle.
	Close() error
}
