// Package report filters and renders session records for the CLI.
//
// Records come from either a JSON tracking file or the SQLite mirror;
// rendering is the same for both. Terminal output uses lipgloss styling,
// exports are plain CSV.
package report

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"tools.velia/pipeline/timekeep/internal/session"
)

// ///////////////////////////////////////////////
// Filtering
// ///////////////////////////////////////////////

// Filter selects session records. Zero-value fields match everything.
type Filter struct {
	// From and To bound the record's log date, inclusive. Zero times are open.
	From time.Time
	To   time.Time
	// Username matches exactly when non-empty.
	Username string
	// Application matches exactly when non-empty.
	Application string
}

// Matches reports whether rec passes the filter. Records whose log_date
// does not parse never match a date-bounded filter.
func (f Filter) Matches(rec *session.Record) bool {
	if f.Username != "" && rec.Username != f.Username {
		return false
	}
	if f.Application != "" && rec.Application != f.Application {
		return false
	}
	if !f.From.IsZero() || !f.To.IsZero() {
		date, err := time.ParseInLocation(session.DateLayout, rec.LogDate, time.Local)
		if err != nil {
			return false
		}
		if !f.From.IsZero() && date.Before(f.From) {
			return false
		}
		if !f.To.IsZero() && date.After(f.To) {
			return false
		}
	}
	return true
}

// Apply returns the records matching f, preserving input order.
func (f Filter) Apply(records []*session.Record) []*session.Record {
	var out []*session.Record
	for _, rec := range records {
		if f.Matches(rec) {
			out = append(out, rec)
		}
	}
	return out
}

// ///////////////////////////////////////////////
// Terminal Rendering
// ///////////////////////////////////////////////

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4")).
			Padding(0, 1)

	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FFFFFF"))

	activeStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#04B575"))

	idleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF6B6B"))

	totalStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#F7DC6F"))

	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#777777"))
)

// columns are the table headers in display order.
var columns = []string{"DATE", "USER", "APPLICATION", "START FILE", "END FILE", "START", "END", "ACTIVE", "IDLE", "TOTAL"}

// Render writes a styled activity table to w, followed by a totals line.
func Render(w io.Writer, records []*session.Record) {
	fmt.Fprintln(w, titleStyle.Render("Activity Report"))
	fmt.Fprintln(w)

	if len(records) == 0 {
		fmt.Fprintln(w, dimStyle.Render("no matching sessions"))
		return
	}

	widths := columnWidths(records)
	var header []string
	for i, col := range columns {
		header = append(header, pad(col, widths[i]))
	}
	fmt.Fprintln(w, headerStyle.Render(strings.Join(header, "  ")))

	var activeSum, idleSum session.Seconds
	for _, rec := range records {
		cells := rowCells(rec)
		var line []string
		for i, cell := range cells {
			cell = pad(cell, widths[i])
			switch i {
			case 7:
				cell = activeStyle.Render(cell)
			case 8:
				cell = idleStyle.Render(cell)
			case 9:
				cell = totalStyle.Render(cell)
			}
			line = append(line, cell)
		}
		fmt.Fprintln(w, strings.Join(line, "  "))
		activeSum += rec.ActiveTime
		idleSum += rec.IdleTime
	}

	fmt.Fprintln(w)
	fmt.Fprintf(w, "%d sessions  active %s  idle %s  total %s\n",
		len(records),
		activeStyle.Render(activeSum.String()),
		idleStyle.Render(idleSum.String()),
		totalStyle.Render((activeSum + idleSum).String()),
	)
}

// rowCells formats one record in column order. Timestamps show only the
// clock part; the date column already carries the day.
func rowCells(rec *session.Record) []string {
	return []string{
		rec.LogDate,
		rec.Username,
		rec.Application,
		rec.StartFile,
		rec.EndFile,
		clockPart(rec.StartTime),
		clockPart(rec.EndTime),
		rec.ActiveTime.String(),
		rec.IdleTime.String(),
		rec.TotalTime.String(),
	}
}

// clockPart strips the date from a "YYYY-MM-DD HH:MM:SS" timestamp.
func clockPart(ts string) string {
	if i := strings.IndexByte(ts, ' '); i >= 0 {
		return ts[i+1:]
	}
	return ts
}

func columnWidths(records []*session.Record) []int {
	widths := make([]int, len(columns))
	for i, col := range columns {
		widths[i] = len(col)
	}
	for _, rec := range records {
		for i, cell := range rowCells(rec) {
			if len(cell) > widths[i] {
				widths[i] = len(cell)
			}
		}
	}
	return widths
}

func pad(s string, width int) string {
	if len(s) >= width {
		return s
	}
	return s + strings.Repeat(" ", width-len(s))
}

// ///////////////////////////////////////////////
// CSV Export
// ///////////////////////////////////////////////

// csvHeader matches the JSON document field names so exported data lines
// up with the tracking files.
var csvHeader = []string{"username", "log_date", "application", "start_file", "end_file", "start_time", "active_time", "idle_time", "total_time", "end_time"}

// WriteCSV writes records to w as CSV with a header row. Time columns are
// written as HH:MM:SS to match the JSON documents.
func WriteCSV(w io.Writer, records []*session.Record) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	for _, rec := range records {
		row := []string{
			rec.Username,
			rec.LogDate,
			rec.Application,
			rec.StartFile,
			rec.EndFile,
			rec.StartTime,
			rec.ActiveTime.String(),
			rec.IdleTime.String(),
			rec.TotalTime.String(),
			rec.EndTime,
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("write csv row: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}
