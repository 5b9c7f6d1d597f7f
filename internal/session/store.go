package session

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"

	"tools.velia/pipeline/timekeep/internal/atomicfile"
)

// ///////////////////////////////////////////////
// Store
// ///////////////////////////////////////////////

// Store owns the in-memory session collection for one tracker and its
// on-disk JSON mirror. The open session is a reference into this same
// collection, so every save reflects live in-progress totals.
//
// Store methods are not internally synchronized: the tracker serializes all
// access behind its own mutex, and each JSON path has exactly one writer
// process (single-writer assumption, no cross-process locking).
type Store struct {
	// path is the JSON document location, fixed for the store's lifetime.
	path string
	// records is the insertion-ordered session collection.
	records []*Record
}

// Open loads the session collection at path. A missing file yields an empty
// collection. A corrupt document is backed up to path+".corrupted" and
// treated as empty. Tracked history is log data; losing it must never take
// the host application down.
func Open(path string) *Store {
	s := &Store{path: path}

	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			slog.Warn("tracking document unreadable, starting empty", "path", path, "error", err)
		}
		return s
	}

	if err := json.Unmarshal(data, &s.records); err != nil {
		slog.Warn("corrupt tracking document, backing up and starting empty", "path", path, "error", err)
		if wErr := os.WriteFile(path+".corrupted", data, 0o600); wErr != nil {
			slog.Warn("failed to back up corrupt document", "error", wErr)
		}
		s.records = nil
		return s
	}

	return s
}

// Path returns the on-disk location of the document.
func (s *Store) Path() string { return s.path }

// Records returns the live collection in insertion order. Callers must not
// reorder it; the matcher depends on insertion order for reverse scanning.
func (s *Store) Records() []*Record { return s.records }

// Len returns the number of session records.
func (s *Store) Len() int { return len(s.records) }

// Append adds a record to the collection. It becomes visible to future
// saves and matches immediately.
func (s *Store) Append(r *Record) {
	s.records = append(s.records, r)
}

// Save serializes the full collection and atomically overwrites the
// document. Callers treat a returned error as log-and-continue; the next
// periodic persist retries.
func (s *Store) Save() error {
	if err := atomicfile.WriteJSON(s.path, s.recordsOrEmpty(), 0o600); err != nil {
		return fmt.Errorf("save tracking document: %w", err)
	}
	return nil
}

// recordsOrEmpty substitutes an empty slice for nil so a fresh store
// serializes as "[]" rather than "null".
func (s *Store) recordsOrEmpty() []*Record {
	if s.records == nil {
		return []*Record{}
	}
	return s.records
}
