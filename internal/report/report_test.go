package report

import (
	"bytes"
	"encoding/csv"
	"strings"
	"testing"
	"time"

	"tools.velia/pipeline/timekeep/internal/session"
)

func rec(username, date, app string, active, idle session.Seconds) *session.Record {
	return &session.Record{
		Username:    username,
		LogDate:     date,
		Application: app,
		StartFile:   "shot010_v001.ma",
		EndFile:     "shot010_v002.ma",
		StartTime:   date + " 10:00:00",
		ActiveTime:  active,
		IdleTime:    idle,
		TotalTime:   active + idle,
		EndTime:     date + " 11:00:00",
	}
}

func TestFilterMatches(t *testing.T) {
	r := rec("jane.smith", "2026-03-14", "maya", 600, 60)

	day := func(s string) time.Time {
		d, err := time.ParseInLocation(session.DateLayout, s, time.Local)
		if err != nil {
			t.Fatal(err)
		}
		return d
	}

	tests := []struct {
		name   string
		filter Filter
		want   bool
	}{
		{"empty filter", Filter{}, true},
		{"username match", Filter{Username: "jane.smith"}, true},
		{"username mismatch", Filter{Username: "john.doe"}, false},
		{"application match", Filter{Application: "maya"}, true},
		{"application mismatch", Filter{Application: "nuke"}, false},
		{"in range", Filter{From: day("2026-03-10"), To: day("2026-03-20")}, true},
		{"on boundary", Filter{From: day("2026-03-14"), To: day("2026-03-14")}, true},
		{"before range", Filter{From: day("2026-03-15")}, false},
		{"after range", Filter{To: day("2026-03-13")}, false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.filter.Matches(r); got != tc.want {
				t.Errorf("Matches = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestFilterRejectsUnparseableDate(t *testing.T) {
	r := rec("jane.smith", "not-a-date", "maya", 600, 60)
	f := Filter{From: time.Date(2026, 1, 1, 0, 0, 0, 0, time.Local)}
	if f.Matches(r) {
		t.Error("record with bad log_date should not match a date-bounded filter")
	}
	if !(Filter{}).Matches(r) {
		t.Error("record with bad log_date should still match an unbounded filter")
	}
}

func TestFilterApplyPreservesOrder(t *testing.T) {
	records := []*session.Record{
		rec("jane.smith", "2026-03-14", "maya", 600, 60),
		rec("john.doe", "2026-03-14", "nuke", 300, 0),
		rec("jane.smith", "2026-03-15", "nuke", 120, 30),
	}

	got := Filter{Username: "jane.smith"}.Apply(records)
	if len(got) != 2 {
		t.Fatalf("got %d records, want 2", len(got))
	}
	if got[0].Application != "maya" || got[1].Application != "nuke" {
		t.Error("Apply reordered records")
	}
}

func TestRender(t *testing.T) {
	var buf bytes.Buffer
	Render(&buf, []*session.Record{
		rec("jane.smith", "2026-03-14", "maya", 3600, 300),
		rec("john.doe", "2026-03-14", "nuke", 600, 0),
	})
	out := buf.String()

	for _, want := range []string{"jane.smith", "maya", "01:00:00", "00:05:00", "2 sessions"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
	// Totals line sums across records: 4200 active, 300 idle.
	if !strings.Contains(out, "01:10:00") {
		t.Errorf("output missing summed active time:\n%s", out)
	}
}

func TestRenderEmpty(t *testing.T) {
	var buf bytes.Buffer
	Render(&buf, nil)
	if !strings.Contains(buf.String(), "no matching sessions") {
		t.Errorf("empty render = %q", buf.String())
	}
}

func TestWriteCSV(t *testing.T) {
	var buf bytes.Buffer
	err := WriteCSV(&buf, []*session.Record{
		rec("jane.smith", "2026-03-14", "maya", 3600, 300),
	})
	if err != nil {
		t.Fatalf("WriteCSV: %v", err)
	}

	rows, err := csv.NewReader(&buf).ReadAll()
	if err != nil {
		t.Fatalf("parse output: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("got %d rows, want header + 1", len(rows))
	}
	if rows[0][0] != "username" || rows[0][9] != "end_time" {
		t.Errorf("header = %v", rows[0])
	}
	if rows[1][6] != "01:00:00" {
		t.Errorf("active_time cell = %q, want 01:00:00", rows[1][6])
	}
}
