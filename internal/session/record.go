// Package session implements the tracking core shared by every host plugin:
// the persisted session record, the JSON document store, same-day session
// matching, and the open/closed tracking state machine.
//
// A session is one continuous (possibly resumed) interval of tracked work on
// one file in one application on one calendar day. Records are appended to a
// per-host JSON array and never deleted; completed sessions remain as
// historical rows and can be matched and resumed later the same day.
package session

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"os/user"
	"time"
)

// ///////////////////////////////////////////////
// Constants
// ///////////////////////////////////////////////

const (
	// DateLayout is the calendar-date form of log_date.
	DateLayout = "2006-01-02"
	// TimeLayout is the local-timestamp form of start_time and end_time.
	TimeLayout = "2006-01-02 15:04:05"
	// Untitled is the sentinel file name for sessions that begin before the
	// host has a real file open.
	Untitled = "untitled"
)

// ///////////////////////////////////////////////
// Seconds
// ///////////////////////////////////////////////

// Seconds is an accumulated duration in whole seconds. It serializes as a
// zero-padded "HH:MM:SS" string, the canonical on-disk representation; the
// decoder also accepts bare integer seconds so documents written by the
// raw-seconds variant load cleanly. A malformed stored value decodes as
// zero rather than failing, so session resumption never aborts on a bad
// time field.
type Seconds int64

// String formats the duration as zero-padded "HH:MM:SS".
func (s Seconds) String() string {
	if s < 0 {
		s = 0
	}
	return fmt.Sprintf("%02d:%02d:%02d", s/3600, (s%3600)/60, s%60)
}

// MarshalJSON encodes the duration as a quoted "HH:MM:SS" string.
func (s Seconds) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

// UnmarshalJSON decodes either a quoted "HH:MM:SS" string or a bare number
// of seconds. Unparseable values yield zero, never an error.
func (s *Seconds) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*s = 0
		return nil
	}
	if data[0] == '"' {
		var str string
		if err := json.Unmarshal(data, &str); err != nil {
			*s = 0
			return nil
		}
		parsed, err := ParseHMS(str)
		if err != nil {
			*s = 0
			return nil
		}
		*s = parsed
		return nil
	}
	var n float64
	if err := json.Unmarshal(data, &n); err != nil || n < 0 {
		*s = 0
		return nil
	}
	*s = Seconds(n)
	return nil
}

// ParseHMS parses a zero-padded "HH:MM:SS" string into Seconds.
func ParseHMS(str string) (Seconds, error) {
	var h, m, sec int
	if _, err := fmt.Sscanf(str, "%d:%d:%d", &h, &m, &sec); err != nil {
		return 0, fmt.Errorf("parse %q as HH:MM:SS: %w", str, err)
	}
	if h < 0 || m < 0 || m > 59 || sec < 0 || sec > 59 {
		return 0, fmt.Errorf("parse %q as HH:MM:SS: field out of range", str)
	}
	return Seconds(h*3600 + m*60 + sec), nil
}

// ///////////////////////////////////////////////
// Record
// ///////////////////////////////////////////////

// Record is the unit of persistence: one session row in the per-host JSON
// document. Field names and order match the documents the review UI and the
// relational mirror consume.
type Record struct {
	// Username is the OS account name of the tracked user.
	Username string `json:"username"`
	// LogDate is the local calendar date the session started (YYYY-MM-DD).
	LogDate string `json:"log_date"`
	// Application identifies host and version, e.g. "Maya 2024".
	Application string `json:"application"`
	// StartFile is the file open when the session started, or [Untitled].
	StartFile string `json:"start_file"`
	// EndFile is the most recently observed file; initially equals StartFile.
	EndFile string `json:"end_file"`
	// StartTime is the local timestamp the session started.
	StartTime string `json:"start_time"`
	// ActiveTime is accumulated seconds with input inside the idle threshold.
	ActiveTime Seconds `json:"active_time"`
	// IdleTime is accumulated seconds without qualifying input.
	IdleTime Seconds `json:"idle_time"`
	// TotalTime is always ActiveTime + IdleTime.
	TotalTime Seconds `json:"total_time"`
	// EndTime is the local timestamp of the most recent update.
	EndTime string `json:"end_time"`
}

// NewRecord constructs a fresh session record starting now with zeroed
// accumulators and start_time == end_time.
func NewRecord(username, application, startFile string, now time.Time) *Record {
	ts := now.Format(TimeLayout)
	return &Record{
		Username:    username,
		LogDate:     now.Format(DateLayout),
		Application: application,
		StartFile:   startFile,
		EndFile:     startFile,
		StartTime:   ts,
		EndTime:     ts,
	}
}

// Key identifies the session a tracker may resume: same day, same user,
// same application, same start file.
type Key struct {
	Username    string
	LogDate     string
	Application string
	StartFile   string
}

// Matches reports whether the record carries exactly the lookup key.
func (r *Record) Matches(k Key) bool {
	return r.LogDate == k.LogDate &&
		r.Username == k.Username &&
		r.Application == k.Application &&
		r.StartFile == k.StartFile
}

// ///////////////////////////////////////////////
// Username
// ///////////////////////////////////////////////

// CurrentUsername resolves the OS account name of the running user, falling
// back to the USER/USERNAME environment variables and finally "unknown".
func CurrentUsername() string {
	if u, err := user.Current(); err == nil && u.Username != "" {
		return u.Username
	}
	for _, env := range []string{"USER", "USERNAME"} {
		if v := os.Getenv(env); v != "" {
			return v
		}
	}
	return "unknown"
}
