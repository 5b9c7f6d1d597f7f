package session

import (
	"log/slog"
	"time"
)

// ///////////////////////////////////////////////
// Matcher
// ///////////////////////////////////////////////

// FindOpenOrNew locates the session record a tracker should resume for the
// given key, or appends a fresh one. The scan runs in reverse insertion
// order: today's most recent matching session is the one the user most
// likely intends to resume, and scanning backwards avoids reviving a stale
// same-day session created before an unrelated intervening one.
//
// Returns the resolved record and whether it was newly created.
func (s *Store) FindOpenOrNew(k Key, now time.Time) (*Record, bool) {
	for i := len(s.records) - 1; i >= 0; i-- {
		if s.records[i].Matches(k) {
			slog.Debug("resuming existing session",
				"file", k.StartFile,
				"application", k.Application,
				"active", s.records[i].ActiveTime.String(),
			)
			return s.records[i], false
		}
	}

	r := NewRecord(k.Username, k.Application, k.StartFile, now)
	s.Append(r)
	slog.Debug("created new session", "file", k.StartFile, "application", k.Application)
	return r, true
}
