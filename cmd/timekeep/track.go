package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"tools.velia/pipeline/timekeep/internal/config"
	"tools.velia/pipeline/timekeep/internal/host"
	"tools.velia/pipeline/timekeep/internal/logger"
	"tools.velia/pipeline/timekeep/internal/monitor"
	"tools.velia/pipeline/timekeep/internal/session"
)

// ///////////////////////////////////////////////
// track Command
// ///////////////////////////////////////////////

func newTrackCmd(dataDir *string) *cobra.Command {
	var (
		watchDir    string
		patterns    []string
		application string
	)

	cmd := &cobra.Command{
		Use:   "track",
		Short: "Track activity on project files in a directory",
		Long: `Track watches a directory for project file activity and records
active and idle time per file, the same way the in-host plugins do.
It runs until interrupted; the tracking document is written to the
data directory as <application>_time_tracking.json.`,
		RunE: func(_ *cobra.Command, _ []string) error {
			return runTrack(*dataDir, watchDir, patterns, application)
		},
	}

	cmd.Flags().StringVar(&watchDir, "watch", ".", "Directory to watch for project files")
	cmd.Flags().StringSliceVar(&patterns, "patterns", []string{"*"}, "Glob patterns for tracked project files")
	cmd.Flags().StringVar(&application, "application", "", "Application label recorded in sessions (default from config)")
	return cmd
}

func runTrack(dataDir, watchDir string, patterns []string, application string) error {
	dp := DataPaths{Root: dataDir}

	if err := os.MkdirAll(dp.Root, 0o755); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}

	if alive, pid := checkStalePID(dp); alive {
		return fmt.Errorf("tracker already running (pid %d)", pid)
	}

	if err := ensureDefaultConfig(dp); err != nil {
		fmt.Fprintf(os.Stderr, "warning: failed to write default config: %v\n", err)
	}

	cfg, err := config.Load(dp.Root)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if application == "" {
		application = cfg.Tracking.Application
	}

	log, logCloser := logger.New(dp.Log(), logger.ParseLevel(cfg.Log.Level), cfg.Log.MaxSizeMB)
	defer logCloser.Close()
	slog.SetDefault(log)

	ver := resolveVersion()
	slog.Info("timekeep starting", "version", ver, "data_dir", dp.Root, "application", application)

	token := pidToken()
	pidFile, err := writePID(dp, token)
	if err != nil {
		slog.Error("failed to write PID file", "error", err)
		return err
	}
	defer removePID(dp, token, pidFile)

	watcher, err := host.NewFileWatcher(watchDir, "timekeep "+ver, patterns)
	if err != nil {
		return fmt.Errorf("watch %s: %w", watchDir, err)
	}
	if watcher.Polling() {
		slog.Info("using polling mode for file watching")
	}

	store := session.Open(dp.Tracking(application))

	_, err = monitor.Init(monitor.Options{
		Application:   application,
		Store:         store,
		Host:          watcher,
		Input:         watcher,
		IdleThreshold: cfg.IdleThreshold(),
		Quantum:       cfg.CheckInterval(),
		PersistEvery:  cfg.PersistInterval(),
		Untracked:     cfg.IsUntracked,
	})
	if err != nil {
		return fmt.Errorf("start monitor: %w", err)
	}

	sig := <-signalChannel()
	slog.Info("shutting down", "signal", sig.String())
	monitor.Shutdown()
	return nil
}

// ensureDefaultConfig writes a default config.toml on first run so users
// have a file to edit. An existing file is left alone.
func ensureDefaultConfig(dp DataPaths) error {
	if _, err := os.Stat(dp.Config()); err == nil || !os.IsNotExist(err) {
		return err
	}
	return config.DefaultConfig().Save(dp.Config())
}
