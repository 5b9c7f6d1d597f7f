package session

import (
	"log/slog"
	"sync"
	"time"

	"tools.velia/pipeline/timekeep/internal/clock"
	"tools.velia/pipeline/timekeep/internal/idle"
)

// ///////////////////////////////////////////////
// Tracker Config
// ///////////////////////////////////////////////

// Default accounting intervals, overridable per host via configuration.
const (
	// DefaultQuantum is the fixed number of seconds credited per tick.
	DefaultQuantum = 5 * time.Second
	// DefaultPersistEvery bounds crash data loss to one persistence interval.
	DefaultPersistEvery = 5 * time.Second
)

// TrackerConfig holds the accounting intervals for a [Tracker].
type TrackerConfig struct {
	// Quantum is the fixed amount credited to the active or idle accumulator
	// on each tick. Accounting uses this quantum, not the literal elapsed
	// wall time, so a delayed tick under-counts instead of inventing time.
	Quantum time.Duration
	// PersistEvery is the minimum interval between periodic store saves
	// driven by ticks.
	PersistEvery time.Duration
}

// withDefaults fills zero fields with the package defaults.
func (c TrackerConfig) withDefaults() TrackerConfig {
	if c.Quantum <= 0 {
		c.Quantum = DefaultQuantum
	}
	if c.PersistEvery <= 0 {
		c.PersistEvery = DefaultPersistEvery
	}
	return c
}

// ///////////////////////////////////////////////
// Tracker
// ///////////////////////////////////////////////

// Tracker is the session lifecycle state machine: no session open, or one
// session open and accumulating. At most one session per Tracker is ever
// open; starting while open ends the previous session first.
//
// The periodic tick goroutine and host-driven callbacks both land here, so
// every transition and every save is serialized behind one mutex. Nothing
// else may mutate the open record.
type Tracker struct {
	mu sync.Mutex

	store    *Store
	detector *idle.Detector
	clk      clock.Clock
	cfg      TrackerConfig
	username string

	// current is the open session record, nil when closed. It points into
	// the store's collection, so saves always carry live totals.
	current *Record
	// active and idleAcc mirror the open record's accumulators in raw
	// seconds, restored from the stored values on resume.
	active  Seconds
	idleAcc Seconds
	// lastPersist is when the store was last saved from a tick.
	lastPersist time.Time
}

// NewTracker creates a Tracker over the given store. The detector decides
// active vs. idle per tick; clk supplies time so tests can drive ticks
// deterministically.
func NewTracker(store *Store, detector *idle.Detector, clk clock.Clock, cfg TrackerConfig) *Tracker {
	return &Tracker{
		store:    store,
		detector: detector,
		clk:      clk,
		cfg:      cfg.withDefaults(),
		username: CurrentUsername(),
	}
}

// IsOpen reports whether a session is currently accumulating.
func (t *Tracker) IsOpen() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.current != nil
}

// Current returns the open session record, or nil. The returned pointer is
// live; callers must treat it as read-only.
func (t *Tracker) Current() *Record {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.current
}

// ///////////////////////////////////////////////
// Transitions
// ///////////////////////////////////////////////

// Start opens a session for (application, file). An already-open session is
// ended first, so sessions never overlap. If a matching session from today
// exists it is resumed and its stored accumulators carry forward; otherwise
// a fresh record is appended to the store.
func (t *Tracker) Start(application, file string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.startLocked(application, file, t.clk.Now())
}

func (t *Tracker) startLocked(application, file string, now time.Time) {
	if t.current != nil {
		t.endLocked(now)
	}
	if file == "" {
		file = Untitled
	}

	rec, isNew := t.store.FindOpenOrNew(Key{
		Username:    t.username,
		LogDate:     now.Format(DateLayout),
		Application: application,
		StartFile:   file,
	}, now)

	t.current = rec
	t.active = rec.ActiveTime
	t.idleAcc = rec.IdleTime
	t.lastPersist = now
	t.detector.Touch(now)

	if isNew {
		slog.Info("tracking session started", "application", application, "file", file)
	} else {
		slog.Info("tracking session resumed",
			"application", application,
			"file", file,
			"active", t.active.String(),
			"idle", t.idleAcc.String(),
		)
	}
}

// Tick classifies the interval since the previous tick and credits one
// quantum to the matching accumulator. No-op when no session is open.
// A tick that lands on a new calendar day first closes the session and
// reopens it for the new date, so no row ever spans days; the quantum that
// straddles midnight is dropped.
func (t *Tracker) Tick() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.current == nil {
		return
	}
	now := t.clk.Now()

	if today := now.Format(DateLayout); today != t.current.LogDate {
		application, file := t.current.Application, t.current.EndFile
		slog.Info("day rollover, reopening session", "date", today, "file", file)
		t.endLocked(now)
		t.startLocked(application, file, now)
		return
	}

	quantum := Seconds(t.cfg.Quantum / time.Second)
	if t.detector.IsIdle(now) {
		t.idleAcc += quantum
	} else {
		t.active += quantum
	}
	t.syncLocked(now)

	if now.Sub(t.lastPersist) >= t.cfg.PersistEvery {
		t.persistLocked(now)
	}
}

// Flush writes the current timestamps and persists without crediting time.
// Hosts call this from before-save notifications so the document on disk is
// current when the user's file hits disk.
func (t *Tracker) Flush() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.current == nil {
		return
	}
	now := t.clk.Now()
	t.syncLocked(now)
	t.persistLocked(now)
}

// UpdateEndFile records the file name observed at save time on the open
// session without touching accumulated time, and persists immediately.
func (t *Tracker) UpdateEndFile(file string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.current == nil || file == "" {
		return
	}
	t.current.EndFile = file
	t.persistLocked(t.clk.Now())
	slog.Debug("end file updated", "file", file)
}

// BackfillStartFile replaces a sentinel start_file once a real file name is
// known. This is not a new session: hosts that only expose the project path
// by polling may open a session before the first real name appears.
func (t *Tracker) BackfillStartFile(file string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.current == nil || file == "" || file == Untitled {
		return
	}
	if t.current.StartFile != "" && t.current.StartFile != Untitled {
		return
	}
	t.current.StartFile = file
	t.current.EndFile = file
	slog.Debug("start file backfilled", "file", file)
}

// End closes the open session: final timestamps are written, the store is
// persisted, and the tracker returns to the no-session state. No-op when
// nothing is open.
func (t *Tracker) End() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.endLocked(t.clk.Now())
}

func (t *Tracker) endLocked(now time.Time) {
	if t.current == nil {
		return
	}
	t.syncLocked(now)
	t.persistLocked(now)
	slog.Info("tracking session ended",
		"file", t.current.EndFile,
		"active", t.active.String(),
		"idle", t.idleAcc.String(),
	)
	t.current = nil
	t.active = 0
	t.idleAcc = 0
}

// ///////////////////////////////////////////////
// Internal
// ///////////////////////////////////////////////

// syncLocked copies the accumulators onto the open record and stamps
// end_time, keeping total == active + idle.
func (t *Tracker) syncLocked(now time.Time) {
	t.current.ActiveTime = t.active
	t.current.IdleTime = t.idleAcc
	t.current.TotalTime = t.active + t.idleAcc
	t.current.EndTime = now.Format(TimeLayout)
}

// persistLocked saves the store, logging failures instead of propagating
// them. The next periodic persist retries; a write error must never reach
// the host application.
func (t *Tracker) persistLocked(now time.Time) {
	if err := t.store.Save(); err != nil {
		slog.Warn("persist failed, will retry next interval", "error", err)
		return
	}
	t.lastPersist = now
}
