// Package periphgpio implements model.GpioInput and model.GpioOutput on
// top of periph.io's gpio package, the same pin abstraction the
// google-periph cmd/gpio-read and cmd/gpio-write tools use.
package periphgpio

import (
	"context"
	"fmt"
	"time"

	"periph.io/x/periph/conn/gpio"
	"periph.io/x/periph/conn/gpio/gpioreg"
	"periph.io/x/periph/host"
)

// Init loads the host drivers once for the process. Safe to call more
// than once; periph's host.Init is itself idempotent.
func Init() error {
	_, err := host.Init()
	return err
}

// edgeWaitPoll is the interval WaitForEdge re-checks ctx cancellation
// against periph's blocking, timeout-based WaitForEdge call.
const edgeWaitPoll = 250 * time.Millisecond

// Input is a leak-sensor-style digital input pin, pulled up and armed
// for falling-edge detection to match the original leak_sensor.py wiring
// (GPIO.PUD_UP, GPIO.FALLING).
type Input struct {
	pin gpio.PinIO
}

// OpenInput resolves pinName (a BCM number as a string, e.g. "26") to a
// periph pin and arms it for falling-edge detection with an internal
// pull-up, mirroring RPi.GPIO's pull_up_down=GPIO.PUD_UP setup.
func OpenInput(pinName string) (*Input, error) {
	p := gpioreg.ByName(pinName)
	if p == nil {
		return nil, fmt.Errorf("periphgpio: unknown pin %q", pinName)
	}
	if err := p.In(gpio.PullUp, gpio.Falling); err != nil {
		return nil, fmt.Errorf("periphgpio: configure pin %q as input: %w", pinName, err)
	}
	return &Input{pin: p}, nil
}

// WaitForEdge blocks until a falling edge is observed or ctx is
// cancelled. Periph's WaitForEdge takes a timeout rather than a context,
// so this polls in edgeWaitPoll slices to stay responsive to
// cancellation without busy-spinning.
func (i *Input) WaitForEdge(ctx context.Context) (bool, error) {
	for {
		if ctx.Err() != nil {
			return false, ctx.Err()
		}
		if i.pin.WaitForEdge(edgeWaitPoll) {
			return true, nil
		}
	}
}

// Read returns the pin's current logic level (true = high).
func (i *Input) Read() (bool, error) {
	return bool(i.pin.Read()), nil
}

// Output is a digital output pin, used for fan control.
type Output struct {
	pin gpio.PinIO
}

// OpenOutput resolves pinName to a periph pin and drives it low
// initially, matching temp_sensor.py's GPIO.setup(..., initial=GPIO.LOW).
func OpenOutput(pinName string) (*Output, error) {
	p := gpioreg.ByName(pinName)
	if p == nil {
		return nil, fmt.Errorf("periphgpio: unknown pin %q", pinName)
	}
	if err := p.Out(gpio.Low); err != nil {
		return nil, fmt.Errorf("periphgpio: configure pin %q as output: %w", pinName, err)
	}
	return &Output{pin: p}, nil
}

// Set drives the pin high or low.
func (o *Output) Set(high bool) error {
	return o.pin.Out(gpio.Level(high))
}
