package monitor

import (
	"fmt"
	"sync"
)

// Plugin hosts load the package once per process and drive a single
// monitor through Init and Shutdown. The handle exists so host-side glue
// code does not have to thread a *Monitor through its callback plumbing.

var (
	activeMu sync.Mutex
	active   *Monitor
)

// Init builds and starts the process-wide monitor. It fails if one is
// already running; call [Shutdown] first to replace it.
func Init(opts Options) (*Monitor, error) {
	activeMu.Lock()
	defer activeMu.Unlock()

	if active != nil {
		return nil, fmt.Errorf("monitor: already initialized")
	}

	m, err := New(opts)
	if err != nil {
		return nil, err
	}
	m.Run()
	active = m
	return m, nil
}

// Active returns the process-wide monitor, or nil when none is running.
func Active() *Monitor {
	activeMu.Lock()
	defer activeMu.Unlock()
	return active
}

// Shutdown stops and clears the process-wide monitor. No-op when none
// is running.
func Shutdown() {
	activeMu.Lock()
	m := active
	active = nil
	activeMu.Unlock()

	if m != nil {
		m.Shutdown()
	}
}
