// Package idle classifies each polling tick as active or idle based on the
// time elapsed since the last observed user input.
//
// Input arrives from whatever the host can provide: some hosts deliver
// pointer/keyboard callbacks, others only menu or tool invocations. Every
// observation reduces to "activity seen at time T", which overwrites a
// single timestamp. When a host can provide nothing at all the detector
// degrades to always-active: every tick counts as active time. That is a
// documented approximation, not a failure.
package idle

import (
	"log/slog"
	"sync/atomic"
	"time"
)

// ///////////////////////////////////////////////
// Detector
// ///////////////////////////////////////////////

// Detector turns raw input observations into a binary active/idle answer.
// Touch and IsIdle are safe to call from different goroutines.
type Detector struct {
	// threshold is how long input may be absent before a tick counts as idle.
	threshold time.Duration
	// lastActivity holds the Unix-nano timestamp of the most recent input.
	lastActivity atomic.Int64
	// degraded is true when no input source is attached; IsIdle always
	// reports false in that mode.
	degraded bool
}

// New creates a Detector with the given idle threshold. The initial
// last-activity timestamp is now, so a freshly started session begins active.
func New(threshold time.Duration, now time.Time) *Detector {
	d := &Detector{threshold: threshold}
	d.lastActivity.Store(now.UnixNano())
	return d
}

// NewDegraded creates a Detector for hosts with no input hooks. Every tick
// is classified active.
func NewDegraded() *Detector {
	slog.Info("no input source available, classifying all time as active")
	return &Detector{degraded: true}
}

// Touch records that user input was observed at time now.
func (d *Detector) Touch(now time.Time) {
	if d.degraded {
		return
	}
	d.lastActivity.Store(now.UnixNano())
}

// IsIdle reports whether the interval since the last observed input exceeds
// the threshold at time now.
func (d *Detector) IsIdle(now time.Time) bool {
	if d.degraded {
		return false
	}
	last := time.Unix(0, d.lastActivity.Load())
	return now.Sub(last) > d.threshold
}

// LastActivity returns the time input was most recently observed.
// In degraded mode the zero time is returned.
func (d *Detector) LastActivity() time.Time {
	if d.degraded {
		return time.Time{}
	}
	return time.Unix(0, d.lastActivity.Load())
}

// ///////////////////////////////////////////////
// Source
// ///////////////////////////////////////////////

// Source is an optional input-listener collaborator. Implementations emit
// a value on Activity for each observed user input; the payload is the
// observation time.
type Source interface {
	// Activity returns the channel of input observation times.
	Activity() <-chan time.Time
	// Close stops the source and releases its resources.
	Close() error
}

// Pump forwards observations from src into the detector until src's channel
// closes or done is closed. It is intended to run as a goroutine.
func Pump(d *Detector, src Source, done <-chan struct{}) {
	for {
		select {
		case <-done:
			return
		case t, ok := <-src.Activity():
			if !ok {
				return
			}
			d.Touch(t)
		}
	}
}
