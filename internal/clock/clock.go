// Package clock abstracts the tracker's time source so tick accounting can
// be driven deterministically in tests.
package clock

import "time"

// Clock provides the current time to the tracker core.
type Clock interface {
	Now() time.Time
}

// System returns the real wall-clock time.
type System struct{}

// Now returns the current system time.
func (System) Now() time.Time {
	return time.Now()
}

// Fixed is a manually advanced clock for tests.
type Fixed struct {
	Current time.Time
}

// Now returns the fixed time.
func (f *Fixed) Now() time.Time {
	return f.Current
}

// Advance moves the fixed time forward by d.
func (f *Fixed) Advance(d time.Duration) {
	f.Current = f.Current.Add(d)
}
