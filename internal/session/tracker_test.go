// Tests for the tracking state machine: tick accounting, the
// total == active + idle invariant, session resumption, overlap prevention,
// and day rollover.
package session

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"tools.velia/pipeline/timekeep/internal/clock"
	"tools.velia/pipeline/timekeep/internal/idle"
)

// newTestTracker wires a tracker with a fixed clock and a 60s idle
// threshold over a store in a temp dir.
func newTestTracker(t *testing.T, start time.Time) (*Tracker, *Store, *clock.Fixed, *idle.Detector) {
	t.Helper()
	store := Open(filepath.Join(t.TempDir(), "host_time_tracking.json"))
	clk := &clock.Fixed{Current: start}
	det := idle.New(60*time.Second, start)
	tr := NewTracker(store, det, clk, TrackerConfig{Quantum: 5 * time.Second, PersistEvery: 5 * time.Second})
	return tr, store, clk, det
}

var testStart = time.Date(2026, 3, 14, 10, 0, 0, 0, time.Local)

// ///////////////////////////////////////////////
// Invariant Tests
// ///////////////////////////////////////////////

func TestTotalEqualsActivePlusIdleAfterEveryTick(t *testing.T) {
	tr, _, clk, det := newTestTracker(t, testStart)
	tr.Start("HostApp 1.0", "scene.ma")

	// Mix of active and idle ticks: input observed on even iterations only.
	for i := 0; i < 20; i++ {
		clk.Advance(5 * time.Second)
		if i%2 == 0 {
			det.Touch(clk.Now())
		}
		tr.Tick()

		r := tr.Current()
		if r.TotalTime != r.ActiveTime+r.IdleTime {
			t.Fatalf("tick %d: total %d != active %d + idle %d", i, r.TotalTime, r.ActiveTime, r.IdleTime)
		}
	}
}

func TestTickNoOpWhenClosed(t *testing.T) {
	tr, store, clk, _ := newTestTracker(t, testStart)
	clk.Advance(5 * time.Second)
	tr.Tick() // must not panic or create records
	if store.Len() != 0 {
		t.Errorf("Len = %d, want 0", store.Len())
	}
}

// ///////////////////////////////////////////////
// Classification Tests
// ///////////////////////////////////////////////

func TestActiveTickAccounting(t *testing.T) {
	tr, _, clk, det := newTestTracker(t, testStart)
	tr.Start("HostApp 1.0", "scene.ma")

	clk.Advance(5 * time.Second)
	det.Touch(clk.Now())
	tr.Tick()

	r := tr.Current()
	if r.ActiveTime != 5 || r.IdleTime != 0 {
		t.Errorf("active/idle = %d/%d, want 5/0", r.ActiveTime, r.IdleTime)
	}
}

func TestIdleTickAccounting(t *testing.T) {
	tr, _, clk, _ := newTestTracker(t, testStart)
	tr.Start("HostApp 1.0", "scene.ma")

	// No input for longer than the 60s threshold: the next tick counts idle.
	clk.Advance(90 * time.Second)
	tr.Tick()

	r := tr.Current()
	if r.IdleTime != 5 || r.ActiveTime != 0 {
		t.Errorf("active/idle = %d/%d, want 0/5", r.ActiveTime, r.IdleTime)
	}
}

func TestEndToEndFifteenActiveSeconds(t *testing.T) {
	tr, store, clk, det := newTestTracker(t, testStart)
	tr.Start("HostApp 1.0", "scene.ma")

	for i := 0; i < 3; i++ {
		clk.Advance(5 * time.Second)
		det.Touch(clk.Now())
		tr.Tick()
	}
	tr.End()

	if tr.IsOpen() {
		t.Fatal("tracker still open after End")
	}
	if store.Len() != 1 {
		t.Fatalf("Len = %d, want 1", store.Len())
	}
	r := store.Records()[0]
	if got := r.ActiveTime.String(); got != "00:00:15" {
		t.Errorf("active = %q, want 00:00:15", got)
	}
	if got := r.IdleTime.String(); got != "00:00:00" {
		t.Errorf("idle = %q, want 00:00:00", got)
	}
	if got := r.TotalTime.String(); got != "00:00:15" {
		t.Errorf("total = %q, want 00:00:15", got)
	}
	if r.StartFile != "scene.ma" || r.EndFile != "scene.ma" {
		t.Errorf("files = %q -> %q, want scene.ma both", r.StartFile, r.EndFile)
	}
	if r.EndTime < r.StartTime {
		t.Errorf("end_time %q before start_time %q", r.EndTime, r.StartTime)
	}

	// The closed record survives a reload.
	reloaded := Open(store.Path())
	if reloaded.Len() != 1 || reloaded.Records()[0].ActiveTime != 15 {
		t.Error("persisted record did not round-trip")
	}
}

// ///////////////////////////////////////////////
// Resumption Tests
// ///////////////////////////////////////////////

func TestResumeContinuesStoredAccumulators(t *testing.T) {
	tr, store, clk, det := newTestTracker(t, testStart)

	// A same-day session closed earlier with 10m active, 2m idle.
	prior := NewRecord(tr.username, "HostApp 1.0", "scene.ma", testStart.Add(-time.Hour))
	prior.ActiveTime, _ = ParseHMS("00:10:00")
	prior.IdleTime, _ = ParseHMS("00:02:00")
	prior.TotalTime = prior.ActiveTime + prior.IdleTime
	store.Append(prior)

	tr.Start("HostApp 1.0", "scene.ma")
	if store.Len() != 1 {
		t.Fatalf("Len = %d, want 1 (resumed, not recreated)", store.Len())
	}

	clk.Advance(5 * time.Second)
	det.Touch(clk.Now())
	tr.Tick()

	r := tr.Current()
	if got := r.ActiveTime.String(); got != "00:10:05" {
		t.Errorf("active = %q, want 00:10:05", got)
	}
	if got := r.IdleTime.String(); got != "00:02:00" {
		t.Errorf("idle = %q, want 00:02:00 unchanged", got)
	}
}

func TestResumePicksMostRecentMatch(t *testing.T) {
	tr, store, _, _ := newTestTracker(t, testStart)

	older := NewRecord(tr.username, "HostApp 1.0", "scene.ma", testStart.Add(-2*time.Hour))
	older.ActiveTime = 100
	intervening := NewRecord(tr.username, "HostApp 1.0", "other.ma", testStart.Add(-time.Hour))
	newer := NewRecord(tr.username, "HostApp 1.0", "scene.ma", testStart.Add(-30*time.Minute))
	newer.ActiveTime = 300
	store.Append(older)
	store.Append(intervening)
	store.Append(newer)

	tr.Start("HostApp 1.0", "scene.ma")
	if got := tr.Current(); got != newer {
		t.Errorf("resumed %+v, want the most recent matching record", got)
	}
}

// ///////////////////////////////////////////////
// Overlap Tests
// ///////////////////////////////////////////////

func TestStartWhileOpenEndsPreviousFirst(t *testing.T) {
	tr, store, clk, det := newTestTracker(t, testStart)

	tr.Start("HostApp 1.0", "scene_a.ma")
	clk.Advance(5 * time.Second)
	det.Touch(clk.Now())
	tr.Tick()

	tr.Start("HostApp 1.0", "scene_b.ma")

	if store.Len() != 2 {
		t.Fatalf("Len = %d, want 2", store.Len())
	}
	first := store.Records()[0]
	if first.StartFile != "scene_a.ma" || first.ActiveTime != 5 {
		t.Errorf("first session = %q/%d, want scene_a.ma with 5s", first.StartFile, first.ActiveTime)
	}
	if cur := tr.Current(); cur.StartFile != "scene_b.ma" || cur.ActiveTime != 0 {
		t.Errorf("current = %q/%d, want scene_b.ma at zero", cur.StartFile, cur.ActiveTime)
	}
}

func TestEndIsIdempotent(t *testing.T) {
	tr, _, _, _ := newTestTracker(t, testStart)
	tr.Start("HostApp 1.0", "scene.ma")
	tr.End()
	tr.End() // second end is a no-op
	if tr.IsOpen() {
		t.Error("tracker open after double End")
	}
}

// ///////////////////////////////////////////////
// File Identity Tests
// ///////////////////////////////////////////////

func TestUpdateEndFile(t *testing.T) {
	tr, store, _, _ := newTestTracker(t, testStart)
	tr.Start("HostApp 1.0", "scene.ma")

	tr.UpdateEndFile("scene_v2.ma")

	r := tr.Current()
	if r.EndFile != "scene_v2.ma" {
		t.Errorf("EndFile = %q", r.EndFile)
	}
	if r.StartFile != "scene.ma" {
		t.Errorf("StartFile changed to %q", r.StartFile)
	}
	if r.ActiveTime != 0 || r.IdleTime != 0 {
		t.Error("UpdateEndFile must not alter accumulated time")
	}

	// Persisted immediately.
	reloaded := Open(store.Path())
	if reloaded.Len() != 1 || reloaded.Records()[0].EndFile != "scene_v2.ma" {
		t.Error("end file update was not persisted")
	}
}

func TestEmptyStartFileBecomesUntitled(t *testing.T) {
	tr, _, _, _ := newTestTracker(t, testStart)
	tr.Start("HostApp 1.0", "")
	if got := tr.Current().StartFile; got != Untitled {
		t.Errorf("StartFile = %q, want %q", got, Untitled)
	}
}

func TestBackfillStartFile(t *testing.T) {
	tr, store, _, _ := newTestTracker(t, testStart)
	tr.Start("HostApp 1.0", Untitled)

	tr.BackfillStartFile("shot010.3de")

	r := tr.Current()
	if r.StartFile != "shot010.3de" || r.EndFile != "shot010.3de" {
		t.Errorf("backfill = %q -> %q", r.StartFile, r.EndFile)
	}
	if store.Len() != 1 {
		t.Errorf("backfill created a new session: Len = %d", store.Len())
	}

	// A real start file is never overwritten.
	tr.BackfillStartFile("other.3de")
	if tr.Current().StartFile != "shot010.3de" {
		t.Error("backfill replaced a real start file")
	}
}

// ///////////////////////////////////////////////
// Persistence Cadence Tests
// ///////////////////////////////////////////////

func TestPeriodicPersistDuringTicks(t *testing.T) {
	tr, store, clk, det := newTestTracker(t, testStart)
	tr.Start("HostApp 1.0", "scene.ma")

	clk.Advance(5 * time.Second)
	det.Touch(clk.Now())
	tr.Tick() // 5s elapsed since start >= persist interval, saves

	if _, err := os.Stat(store.Path()); err != nil {
		t.Fatalf("document not written by periodic persist: %v", err)
	}
	reloaded := Open(store.Path())
	if reloaded.Len() != 1 || reloaded.Records()[0].ActiveTime != 5 {
		t.Error("periodic persist did not carry live totals")
	}
}

func TestFlushWritesWithoutAccumulating(t *testing.T) {
	tr, store, clk, _ := newTestTracker(t, testStart)
	tr.Start("HostApp 1.0", "scene.ma")

	clk.Advance(2 * time.Second)
	tr.Flush()

	r := tr.Current()
	if r.ActiveTime != 0 || r.IdleTime != 0 {
		t.Error("Flush credited time")
	}
	if r.EndTime != clk.Now().Format(TimeLayout) {
		t.Errorf("EndTime = %q, want flushed timestamp", r.EndTime)
	}
	if _, err := os.Stat(store.Path()); err != nil {
		t.Errorf("Flush did not persist: %v", err)
	}
}

// ///////////////////////////////////////////////
// Day Rollover Tests
// ///////////////////////////////////////////////

func TestDayRolloverSplitsSession(t *testing.T) {
	lateNight := time.Date(2026, 3, 14, 23, 59, 57, 0, time.Local)
	tr, store, clk, det := newTestTracker(t, lateNight)
	tr.Start("HostApp 1.0", "scene.ma")

	clk.Advance(5 * time.Second) // now 00:00:02 the next day
	det.Touch(clk.Now())
	tr.Tick()

	if store.Len() != 2 {
		t.Fatalf("Len = %d, want 2 (yesterday closed, today opened)", store.Len())
	}
	yesterday, today := store.Records()[0], store.Records()[1]
	if yesterday.LogDate != "2026-03-14" {
		t.Errorf("first LogDate = %q", yesterday.LogDate)
	}
	if today.LogDate != "2026-03-15" {
		t.Errorf("second LogDate = %q", today.LogDate)
	}
	if today.StartFile != "scene.ma" {
		t.Errorf("rollover lost the file: %q", today.StartFile)
	}
	if !tr.IsOpen() {
		t.Error("tracker closed after rollover")
	}

	// Subsequent ticks accumulate on the new day's session only.
	clk.Advance(5 * time.Second)
	det.Touch(clk.Now())
	tr.Tick()
	if today.ActiveTime != 5 {
		t.Errorf("today active = %d, want 5", today.ActiveTime)
	}
	if yesterday.TotalTime != yesterday.ActiveTime+yesterday.IdleTime {
		t.Error("closed session invariant broken")
	}
}
