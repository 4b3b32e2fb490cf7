// Package clock abstracts wall-clock access so that time-sensitive logic
// (daily quota boundaries, trial expiry) can be tested deterministically.
package clock

import "time"

// Clock supplies the current time. Production code uses System(); tests
// inject a fixed or stepping implementation.
type Clock interface {
	Now() time.Time
}

// Func adapts a plain function to the Clock interface.
type Func func() time.Time

// Now implements Clock.
func (f Func) Now() time.Time { return f() }

// System returns a Clock backed by time.Now.
func System() Clock { return Func(time.Now) }
