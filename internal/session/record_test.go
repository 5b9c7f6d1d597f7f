// Tests for the session record schema and the HH:MM:SS second encoding.
package session

import (
	"encoding/json"
	"testing"
	"time"
)

// ///////////////////////////////////////////////
// Seconds Tests
// ///////////////////////////////////////////////

func TestSecondsString(t *testing.T) {
	tests := []struct {
		name string
		in   Seconds
		want string
	}{
		{"zero", 0, "00:00:00"},
		{"seconds only", 15, "00:00:15"},
		{"minutes", 600, "00:10:00"},
		{"mixed", 3725, "01:02:05"},
		{"over a day", 90000, "25:00:00"},
		{"negative clamps", -5, "00:00:00"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.in.String(); got != tt.want {
				t.Errorf("String() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestParseHMS(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		want    Seconds
		wantErr bool
	}{
		{"zero", "00:00:00", 0, false},
		{"ten minutes", "00:10:00", 600, false},
		{"mixed", "01:02:05", 3725, false},
		{"hours past 24", "25:00:00", 90000, false},
		{"garbage", "not a time", 0, true},
		{"minutes out of range", "00:61:00", 0, true},
		{"empty", "", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseHMS(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseHMS(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ParseHMS(%q) = %d, want %d", tt.in, got, tt.want)
			}
		})
	}
}

func TestSecondsUnmarshal(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want Seconds
	}{
		{"hms string", `"00:10:00"`, 600},
		{"raw integer variant", `600`, 600},
		{"float seconds", `600.7`, 600},
		{"malformed string treated as zero", `"ten minutes"`, 0},
		{"negative treated as zero", `-30`, 0},
		{"null", `null`, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var s Seconds
			if err := json.Unmarshal([]byte(tt.in), &s); err != nil {
				t.Fatalf("Unmarshal(%s): %v", tt.in, err)
			}
			if s != tt.want {
				t.Errorf("Unmarshal(%s) = %d, want %d", tt.in, s, tt.want)
			}
		})
	}
}

func TestSecondsRoundTrip(t *testing.T) {
	in := Seconds(3725)
	data, err := json.Marshal(in)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	if string(data) != `"01:02:05"` {
		t.Errorf("Marshal = %s", data)
	}
	var out Seconds
	if err := json.Unmarshal(data, &out); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if out != in {
		t.Errorf("round-trip = %d, want %d", out, in)
	}
}

// ///////////////////////////////////////////////
// Record Tests
// ///////////////////////////////////////////////

func TestNewRecord(t *testing.T) {
	now := time.Date(2026, 3, 14, 9, 30, 0, 0, time.Local)
	r := NewRecord("lisa.wang", "Maya 2024", "scene.ma", now)

	if r.LogDate != "2026-03-14" {
		t.Errorf("LogDate = %q", r.LogDate)
	}
	if r.StartTime != "2026-03-14 09:30:00" || r.EndTime != r.StartTime {
		t.Errorf("StartTime = %q, EndTime = %q", r.StartTime, r.EndTime)
	}
	if r.EndFile != "scene.ma" {
		t.Errorf("EndFile = %q, want start file", r.EndFile)
	}
	if r.ActiveTime != 0 || r.IdleTime != 0 || r.TotalTime != 0 {
		t.Error("fresh record must have zeroed accumulators")
	}
}

func TestRecordMatches(t *testing.T) {
	now := time.Date(2026, 3, 14, 9, 30, 0, 0, time.Local)
	r := NewRecord("lisa.wang", "Maya 2024", "scene.ma", now)

	key := Key{Username: "lisa.wang", LogDate: "2026-03-14", Application: "Maya 2024", StartFile: "scene.ma"}
	if !r.Matches(key) {
		t.Error("expected match on full key")
	}

	for name, k := range map[string]Key{
		"different day":  {Username: "lisa.wang", LogDate: "2026-03-15", Application: "Maya 2024", StartFile: "scene.ma"},
		"different user": {Username: "mike.davis", LogDate: "2026-03-14", Application: "Maya 2024", StartFile: "scene.ma"},
		"different app":  {Username: "lisa.wang", LogDate: "2026-03-14", Application: "Nuke 14", StartFile: "scene.ma"},
		"different file": {Username: "lisa.wang", LogDate: "2026-03-14", Application: "Maya 2024", StartFile: "other.ma"},
	} {
		if r.Matches(k) {
			t.Errorf("%s: expected no match", name)
		}
	}
}

func TestRecordJSONFieldNames(t *testing.T) {
	now := time.Date(2026, 3, 14, 9, 30, 0, 0, time.Local)
	data, err := json.Marshal(NewRecord("lisa.wang", "Maya 2024", "scene.ma", now))
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}

	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	for _, field := range []string{
		"username", "log_date", "application", "start_file", "end_file",
		"start_time", "active_time", "idle_time", "total_time", "end_time",
	} {
		if _, ok := m[field]; !ok {
			t.Errorf("missing field %q", field)
		}
	}
	if len(m) != 10 {
		t.Errorf("got %d fields, want 10", len(m))
	}
}

func TestCurrentUsername(t *testing.T) {
	if CurrentUsername() == "" {
		t.Error("CurrentUsername must never be empty")
	}
}
