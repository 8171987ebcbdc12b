package uiapp

import (
	"time"

	"github.com/roboticsmick/ORCA-open-spectrometer-sub000/config"
	"github.com/roboticsmick/ORCA-open-spectrometer-sub000/internal/model"
)

// Button is one of the four logical buttons the UI state machine reacts
// to, regardless of whether the underlying source is GPIO or a keyboard.
type Button int

const (
	ButtonUp Button = iota
	ButtonDown
	ButtonEnter
	ButtonBack
)

// Events is one frame's worth of button presses, each latched and
// consumed-on-read: a press recorded between two Poll calls is reported
// exactly once.
type Events struct {
	Up, Down, Enter, Back bool
}

// Any reports whether at least one button fired this frame.
func (e Events) Any() bool {
	return e.Up || e.Down || e.Enter || e.Back
}

// Source produces one frame's worth of consumed-on-read button events.
// Implementations debounce internally; callers poll once per frame.
type Source interface {
	Poll() Events
}

// GpioSource polls four level-triggered, pull-up GPIO inputs and applies
// a software debounce window, the same shape as button_handler.py's
// GPIO callback path minus the interrupt: periph's gpio package does not
// expose a portable press callback, so this adapts the level-read +
// debounce pattern to a polled read instead.
type GpioSource struct {
	up, down, enter, back model.GpioInput
	debounce              time.Duration

	lastPress map[Button]time.Time
}

// NewGpioSource wires a polled GPIO button source. Any pin may be nil, in
// which case that logical button never fires.
func NewGpioSource(up, down, enter, back model.GpioInput) *GpioSource {
	return &GpioSource{
		up:        up,
		down:      down,
		enter:     enter,
		back:      back,
		debounce:  config.ButtonDebounce,
		lastPress: make(map[Button]time.Time),
	}
}

// Poll reads each configured pin's current level (pins are pull-up, so a
// press reads low) and reports a press if the debounce window has
// elapsed since the last one accepted for that button.
func (s *GpioSource) Poll() Events {
	now := time.Now()
	return Events{
		Up:    s.pressed(ButtonUp, s.up, now),
		Down:  s.pressed(ButtonDown, s.down, now),
		Enter: s.pressed(ButtonEnter, s.enter, now),
		Back:  s.pressed(ButtonBack, s.back, now),
	}
}

func (s *GpioSource) pressed(b Button, pin model.GpioInput, now time.Time) bool {
	if pin == nil {
		return false
	}
	level, err := pin.Read()
	if err != nil || level {
		return false // pull-up: high means not pressed
	}
	if last, ok := s.lastPress[b]; ok && now.Sub(last) < s.debounce {
		return false
	}
	s.lastPress[b] = now
	return true
}

// ManualSource is a test/keyboard-style source: the caller sets pending
// presses directly and Poll drains and clears them. Safe for single
// goroutine use only, matching the UI's single-threaded cooperative loop.
type ManualSource struct {
	pending Events
}

// Press latches a button press to be reported on the next Poll.
func (s *ManualSource) Press(b Button) {
	switch b {
	case ButtonUp:
		s.pending.Up = true
	case ButtonDown:
		s.pending.Down = true
	case ButtonEnter:
		s.pending.Enter = true
	case ButtonBack:
		s.pending.Back = true
	}
}

// Poll returns and clears the pending events.
func (s *ManualSource) Poll() Events {
	e := s.pending
	s.pending = Events{}
	return e
}
