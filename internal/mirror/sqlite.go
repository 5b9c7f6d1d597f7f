// Package mirror copies session records into a relational store.
//
// The JSON tracking files remain the source of truth; the SQLite table is
// a queryable mirror refreshed from them. Records can additionally be
// pushed to a remote HTTP collector for studios that aggregate activity
// across workstations.
package mirror

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
	"tools.velia/pipeline/timekeep/internal/session"
)

// ///////////////////////////////////////////////
// Database
// ///////////////////////////////////////////////

// DB wraps the SQLite mirror of session records.
type DB struct {
	db *sql.DB
}

// Open opens (or creates) the mirror database at dbPath and ensures the
// activity_logs table exists.
func Open(dbPath string) (*DB, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create db dir: %w", err)
	}
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	m := &DB{db: db}
	if err := m.ensureSchema(context.Background()); err != nil {
		db.Close()
		return nil, err
	}
	return m, nil
}

// Close closes the underlying database handle.
func (m *DB) Close() error {
	return m.db.Close()
}

func (m *DB) ensureSchema(ctx context.Context) error {
	const ddl = `
CREATE TABLE IF NOT EXISTS activity_logs (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  username TEXT NOT NULL,
  log_date DATE NOT NULL,
  application TEXT NOT NULL,
  start_file TEXT,
  end_file TEXT,
  start_time DATETIME NOT NULL,
  active_time INTEGER NOT NULL,
  idle_time INTEGER NOT NULL,
  total_time INTEGER NOT NULL,
  end_time DATETIME NOT NULL,
  UNIQUE(username, log_date, application, start_file, start_time)
);
`
	if _, err := m.db.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("create activity_logs table: %w", err)
	}
	return nil
}

// ///////////////////////////////////////////////
// Sync
// ///////////////////////////////////////////////

// Sync upserts records into the mirror. A session is identified by
// (username, log_date, application, start_file, start_time); re-syncing
// the same tracking file updates the accumulated times in place instead
// of inserting duplicates. Time columns hold integer seconds.
func (m *DB) Sync(ctx context.Context, records []*session.Record) error {
	const stmt = `
INSERT INTO activity_logs (username, log_date, application, start_file, end_file, start_time, active_time, idle_time, total_time, end_time)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(username, log_date, application, start_file, start_time) DO UPDATE SET
  end_file=excluded.end_file,
  active_time=excluded.active_time,
  idle_time=excluded.idle_time,
  total_time=excluded.total_time,
  end_time=excluded.end_time;
`
	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin sync: %w", err)
	}
	defer tx.Rollback()

	for _, rec := range records {
		_, err := tx.ExecContext(ctx, stmt,
			rec.Username,
			rec.LogDate,
			rec.Application,
			rec.StartFile,
			rec.EndFile,
			rec.StartTime,
			int64(rec.ActiveTime),
			int64(rec.IdleTime),
			int64(rec.TotalTime),
			rec.EndTime,
		)
		if err != nil {
			return fmt.Errorf("upsert session %s/%s: %w", rec.Username, rec.StartTime, err)
		}
	}
	return tx.Commit()
}

// ///////////////////////////////////////////////
// Queries
// ///////////////////////////////////////////////

// Filter selects rows for [DB.List]. Zero-value fields match everything.
type Filter struct {
	// FromDate and ToDate bound log_date, inclusive, in YYYY-MM-DD form.
	FromDate string
	ToDate   string
	// Username matches exactly when non-empty.
	Username string
	// Application matches exactly when non-empty.
	Application string
}

// List returns mirrored records matching f, newest first.
func (m *DB) List(ctx context.Context, f Filter) ([]*session.Record, error) {
	query := `
SELECT username, log_date, application, start_file, end_file, start_time, active_time, idle_time, total_time, end_time
FROM activity_logs
WHERE 1=1`
	var args []any
	if f.FromDate != "" {
		query += " AND log_date >= ?"
		args = append(args, f.FromDate)
	}
	if f.ToDate != "" {
		query += " AND log_date <= ?"
		args = append(args, f.ToDate)
	}
	if f.Username != "" {
		query += " AND username = ?"
		args = append(args, f.Username)
	}
	if f.Application != "" {
		query += " AND application = ?"
		args = append(args, f.Application)
	}
	query += " ORDER BY log_date DESC, start_time DESC"

	rows, err := m.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query activity_logs: %w", err)
	}
	defer rows.Close()

	var records []*session.Record
	for rows.Next() {
		var rec session.Record
		var active, idle, total int64
		err := rows.Scan(
			&rec.Username,
			&rec.LogDate,
			&rec.Application,
			&rec.StartFile,
			&rec.EndFile,
			&rec.StartTime,
			&active,
			&idle,
			&total,
			&rec.EndTime,
		)
		if err != nil {
			return nil, fmt.Errorf("scan activity row: %w", err)
		}
		rec.ActiveTime = session.Seconds(active)
		rec.IdleTime = session.Seconds(idle)
		rec.TotalTime = session.Seconds(total)
		records = append(records, &rec)
	}
	return records, rows.Err()
}

// Count returns the number of mirrored rows.
func (m *DB) Count(ctx context.Context) (int, error) {
	var n int
	if err := m.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM activity_logs`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count activity_logs: %w", err)
	}
	return n, nil
}
