// Package flags provides the two process-wide latching signals observed by
// every actor in the system: shutdown and leak-detected. Both are one-way —
// once set they are never cleared during a run — so a single atomic bool
// with explicit Set/IsSet semantics is sufficient; no mutex is needed.
package flags

import "sync/atomic"

// Latch is a one-way boolean signal. Set is idempotent; IsSet is safe to
// call from any goroutine at any rate.
type Latch struct {
	v atomic.Bool
}

// Set latches the flag. Returns true if this call was the one that set it
// (i.e. it was previously unset), false if it was already set.
func (l *Latch) Set() bool {
	return l.v.CompareAndSwap(false, true)
}

// IsSet reports whether the flag has been latched.
func (l *Latch) IsSet() bool {
	return l.v.Load()
}

// Signals bundles the two process-wide flags so they can be passed around
// as a single value instead of two separate pointers.
type Signals struct {
	Shutdown     Latch
	LeakDetected Latch
}
