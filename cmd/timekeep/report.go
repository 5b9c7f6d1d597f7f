package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"tools.velia/pipeline/timekeep/internal/mirror"
	"tools.velia/pipeline/timekeep/internal/paths"
	"tools.velia/pipeline/timekeep/internal/report"
	"tools.velia/pipeline/timekeep/internal/session"
)

// ///////////////////////////////////////////////
// Record Loading
// ///////////////////////////////////////////////

// recordFlags are the source and filter flags shared by report and export.
type recordFlags struct {
	application string
	username    string
	from        string
	to          string
	fromDB      bool
	file        string
}

func (rf *recordFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&rf.application, "application", "", "Application whose sessions to show")
	cmd.Flags().StringVar(&rf.username, "user", "", "Filter by username")
	cmd.Flags().StringVar(&rf.from, "from", "", "Start date, inclusive (YYYY-MM-DD)")
	cmd.Flags().StringVar(&rf.to, "to", "", "End date, inclusive (YYYY-MM-DD)")
	cmd.Flags().BoolVar(&rf.fromDB, "db", false, "Read from the SQLite mirror instead of a tracking document")
	cmd.Flags().StringVar(&rf.file, "file", "", "Read a specific tracking document (overrides --application)")
}

// parseDay parses a YYYY-MM-DD flag value, allowing empty.
func parseDay(flag, value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, nil
	}
	d, err := time.ParseInLocation(session.DateLayout, value, time.Local)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid --%s date %q: want YYYY-MM-DD", flag, value)
	}
	return d, nil
}

// loadRecords fetches session records per rf, already filtered.
func loadRecords(dataDir string, rf *recordFlags) ([]*session.Record, error) {
	from, err := parseDay("from", rf.from)
	if err != nil {
		return nil, err
	}
	to, err := parseDay("to", rf.to)
	if err != nil {
		return nil, err
	}

	dp := DataPaths{Root: dataDir}

	if rf.fromDB {
		db, err := mirror.Open(dp.Mirror())
		if err != nil {
			return nil, err
		}
		defer db.Close()
		return db.List(context.Background(), mirror.Filter{
			FromDate:    rf.from,
			ToDate:      rf.to,
			Username:    rf.username,
			Application: rf.application,
		})
	}

	path := rf.file
	if path == "" {
		if rf.application == "" {
			return nil, fmt.Errorf("need --application, --file, or --db")
		}
		path = dp.Tracking(rf.application)
		if _, statErr := os.Stat(path); os.IsNotExist(statErr) {
			// Plugins write directly under the home directory, not the data dir.
			if homePath, homeErr := paths.HomeTracking(rf.application); homeErr == nil {
				path = homePath
			}
		}
	}

	store := session.Open(path)
	f := report.Filter{
		From:        from,
		To:          to,
		Username:    rf.username,
		Application: rf.application,
	}
	return f.Apply(store.Records()), nil
}

// ///////////////////////////////////////////////
// report Command
// ///////////////////////////////////////////////

func newReportCmd(dataDir *string) *cobra.Command {
	rf := &recordFlags{}

	cmd := &cobra.Command{
		Use:   "report",
		Short: "Show an activity report for tracked sessions",
		RunE: func(_ *cobra.Command, _ []string) error {
			records, err := loadRecords(*dataDir, rf)
			if err != nil {
				return err
			}
			report.Render(os.Stdout, records)
			return nil
		},
	}
	rf.register(cmd)
	return cmd
}
