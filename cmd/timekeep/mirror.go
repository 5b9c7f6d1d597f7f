package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"tools.velia/pipeline/timekeep/internal/config"
	"tools.velia/pipeline/timekeep/internal/mirror"
	"tools.velia/pipeline/timekeep/internal/paths"
	"tools.velia/pipeline/timekeep/internal/session"
)

// ///////////////////////////////////////////////
// mirror Command
// ///////////////////////////////////////////////

func newMirrorCmd(dataDir *string) *cobra.Command {
	var (
		push    bool
		pushURL string
	)

	cmd := &cobra.Command{
		Use:   "mirror",
		Short: "Sync tracking documents into the SQLite mirror",
		Long: `Mirror reads every *_time_tracking.json document in the data
directory (and the home directory, where host plugins write) and
upserts the sessions into the activity_logs table. Re-running is safe:
existing sessions are updated in place.`,
		RunE: func(_ *cobra.Command, _ []string) error {
			return runMirror(*dataDir, push, pushURL)
		},
	}

	cmd.Flags().BoolVar(&push, "push", false, "Also push synced sessions to the configured remote collector")
	cmd.Flags().StringVar(&pushURL, "push-url", "", "Remote collector URL (overrides config)")
	return cmd
}

func runMirror(dataDir string, push bool, pushURL string) error {
	dp := DataPaths{Root: dataDir}
	ctx := context.Background()

	cfg, err := config.Load(dp.Root)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	dbPath := dp.Mirror()
	if cfg.Mirror.DatabasePath != "" {
		dbPath = cfg.Mirror.DatabasePath
	}

	db, err := mirror.Open(dbPath)
	if err != nil {
		return err
	}
	defer db.Close()

	var all []*session.Record
	for _, doc := range findTrackingDocs(dp) {
		store := session.Open(doc)
		if store.Len() == 0 {
			continue
		}
		fmt.Printf("syncing %s (%d sessions)\n", filepath.Base(doc), store.Len())
		all = append(all, store.Records()...)
	}

	if len(all) == 0 {
		fmt.Println("no sessions to sync")
		return nil
	}

	if err := db.Sync(ctx, all); err != nil {
		return err
	}
	count, err := db.Count(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("mirror now holds %d sessions (%s)\n", count, dbPath)

	if push || pushURL != "" {
		url := pushURL
		if url == "" {
			url = cfg.Mirror.RemoteURL
		}
		pusher, err := mirror.NewPusher(url)
		if err != nil {
			return fmt.Errorf("remote push: %w", err)
		}
		if err := pusher.Push(ctx, all); err != nil {
			return err
		}
		fmt.Printf("pushed %d sessions to %s\n", len(all), url)
	}

	return nil
}

// findTrackingDocs lists tracking documents in the data directory and the
// user's home directory, deduplicated.
func findTrackingDocs(dp DataPaths) []string {
	seen := map[string]bool{}
	var docs []string

	scan := func(dir string) {
		entries, err := os.ReadDir(dir)
		if err != nil {
			return
		}
		for _, e := range entries {
			if e.IsDir() || !strings.HasSuffix(e.Name(), paths.TrackingFileSuffix) {
				continue
			}
			full := filepath.Join(dir, e.Name())
			if !seen[full] {
				seen[full] = true
				docs = append(docs, full)
			}
		}
	}

	scan(dp.Root)
	if home, err := os.UserHomeDir(); err == nil {
		scan(home)
	}
	return docs
}
