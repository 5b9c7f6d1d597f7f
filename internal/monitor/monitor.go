// Package monitor ties the session tracker, idle detector, and host
// adapter together into a running activity monitor.
//
// A Monitor owns one [session.Tracker]. It runs the periodic activity
// check in its own goroutine, routes host events into the tracker, and
// feeds input activity into the idle detector. Hosts that cannot report
// input activity run degraded: every check interval counts as active.
package monitor

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"tools.velia/pipeline/timekeep/internal/clock"
	"tools.velia/pipeline/timekeep/internal/host"
	"tools.velia/pipeline/timekeep/internal/idle"
	"tools.velia/pipeline/timekeep/internal/session"
)

// ///////////////////////////////////////////////
// Options
// ///////////////////////////////////////////////

// Options configures a Monitor.
type Options struct {
	// Application is the label recorded in every session (e.g. "maya").
	Application string
	// Store is the session store records are written to.
	Store *session.Store
	// Host supplies file events and the currently open file.
	Host host.Host
	// Input is an optional source of input activity timestamps. When nil
	// the monitor runs degraded and every check counts as active time.
	Input idle.Source
	// Clock supplies time. Nil means the system clock.
	Clock clock.Clock
	// IdleThreshold is the inactivity duration before checks count as idle.
	IdleThreshold time.Duration
	// Quantum is the interval between activity checks.
	Quantum time.Duration
	// PersistEvery is how often the open session is flushed to disk.
	PersistEvery time.Duration
	// Untracked reports whether a file must never be tracked, typically
	// the config's IsUntracked matcher. Nil tracks everything.
	Untracked func(path string) bool
}

// ///////////////////////////////////////////////
// Monitor
// ///////////////////////////////////////////////

// Monitor routes host events and periodic activity checks into a tracker.
type Monitor struct {
	app       string
	tracker   *session.Tracker
	detector  *idle.Detector
	hst       host.Host
	input     idle.Source
	clk       clock.Clock
	quantum   time.Duration
	untracked func(string) bool

	done chan struct{}
	wg   sync.WaitGroup
	once sync.Once
}

// New builds a Monitor from opts. The monitor does not start tracking
// until [Monitor.Run] is called.
func New(opts Options) (*Monitor, error) {
	if opts.Store == nil {
		return nil, fmt.Errorf("monitor: nil store")
	}
	if opts.Host == nil {
		return nil, fmt.Errorf("monitor: nil host")
	}
	if opts.Application == "" {
		return nil, fmt.Errorf("monitor: empty application")
	}

	clk := opts.Clock
	if clk == nil {
		clk = clock.System{}
	}

	var detector *idle.Detector
	if opts.Input != nil {
		detector = idle.New(opts.IdleThreshold, clk.Now())
	} else {
		detector = idle.NewDegraded()
	}

	cfg := session.TrackerConfig{
		Quantum:      opts.Quantum,
		PersistEvery: opts.PersistEvery,
	}
	if cfg.Quantum <= 0 {
		cfg.Quantum = session.DefaultQuantum
	}
	if cfg.PersistEvery <= 0 {
		cfg.PersistEvery = session.DefaultPersistEvery
	}
	tracker := session.NewTracker(opts.Store, detector, clk, cfg)

	return &Monitor{
		app:       opts.Application,
		tracker:   tracker,
		detector:  detector,
		hst:       opts.Host,
		input:     opts.Input,
		clk:       clk,
		quantum:   cfg.Quantum,
		untracked: opts.Untracked,
		done:      make(chan struct{}),
	}, nil
}

// Tracker exposes the underlying session tracker.
func (m *Monitor) Tracker() *session.Tracker {
	return m.tracker
}

// Run starts the periodic activity check and the host event loop.
// If the host already has a file open, a session is started for it
// immediately. Run returns once the goroutines are launched; call
// [Monitor.Shutdown] to stop.
func (m *Monitor) Run() {
	if path := m.hst.CurrentFilePath(); path != "" && !m.ignored(path) {
		m.tracker.Start(m.app, path)
	}

	if m.input != nil {
		m.wg.Add(1)
		go func() {
			defer m.wg.Done()
			idle.Pump(m.detector, m.input, m.done)
		}()
	}

	m.wg.Add(1)
	go m.tickLoop()

	m.wg.Add(1)
	go m.eventLoop()

	slog.Info("monitor running", "application", m.app, "host_version", m.hst.Version())
}

// Shutdown stops the monitor, ends the open session, and waits for
// its goroutines to exit. Safe to call more than once.
func (m *Monitor) Shutdown() {
	m.once.Do(func() {
		close(m.done)
		if err := m.hst.Close(); err != nil {
			slog.Warn("host close failed", "error", err)
		}
		if m.input != nil {
			if err := m.input.Close(); err != nil {
				slog.Warn("input source close failed", "error", err)
			}
		}
	})
	m.wg.Wait()
	m.tracker.End()
}

// ///////////////////////////////////////////////
// Periodic Activity Check
// ///////////////////////////////////////////////

func (m *Monitor) tickLoop() {
	defer m.wg.Done()

	ticker := time.NewTicker(m.quantum)
	defer ticker.Stop()

	for {
		select {
		case <-m.done:
			return
		case <-ticker.C:
			m.tracker.Tick()
		}
	}
}

// ///////////////////////////////////////////////
// Host Events
// ///////////////////////////////////////////////

func (m *Monitor) eventLoop() {
	defer m.wg.Done()

	for {
		select {
		case <-m.done:
			return
		case ev, ok := <-m.hst.Events():
			if !ok {
				return
			}
			m.dispatch(ev)
			if ev.Kind == host.Exit {
				return
			}
		}
	}
}

// dispatch routes one host event. Any host event is evidence the user
// is present, so the idle detector is touched before the event is applied.
func (m *Monitor) dispatch(ev host.Event) {
	m.detector.Touch(m.clk.Now())
	slog.Debug("host event", "kind", ev.Kind, "path", ev.Path)

	switch ev.Kind {
	case host.FileOpened:
		m.OnFileOpened(ev.Path)
	case host.NewFile:
		m.OnNewFile()
	case host.BeforeSave:
		m.OnBeforeSave()
	case host.FileSaved:
		m.OnFileSaved(ev.Path)
	case host.Exit:
		m.OnExit()
	}
}

// OnFileOpened starts (or resumes) a session for path. Files matching
// an ignore pattern end the current session instead.
func (m *Monitor) OnFileOpened(path string) {
	if m.ignored(path) {
		slog.Debug("untracked file opened, ending session", "path", path)
		m.tracker.End()
		return
	}
	m.tracker.Start(m.app, path)
}

// OnNewFile starts a session for an unsaved document.
func (m *Monitor) OnNewFile() {
	m.tracker.Start(m.app, "")
}

// OnBeforeSave flushes the open session so its totals are on disk
// before the host writes the project file.
func (m *Monitor) OnBeforeSave() {
	m.tracker.Flush()
}

// OnFileSaved records path as the session's latest file. A save that
// gives an unsaved document its first real path also backfills the
// session's start file.
func (m *Monitor) OnFileSaved(path string) {
	if m.ignored(path) {
		slog.Debug("untracked file saved, ending session", "path", path)
		m.tracker.End()
		return
	}
	if !m.tracker.IsOpen() {
		m.tracker.Start(m.app, path)
		return
	}
	m.tracker.BackfillStartFile(path)
	m.tracker.UpdateEndFile(path)
}

// OnExit ends the open session.
func (m *Monitor) OnExit() {
	m.tracker.End()
}

// ignored reports whether path is excluded from tracking by the
// configured Untracked matcher.
func (m *Monitor) ignored(path string) bool {
	if path == "" || m.untracked == nil {
		return false
	}
	return m.untracked(path)
}
