package host

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/fsnotify/fsnotify"

	"tools.velia/pipeline/timekeep/internal/idle"
)

// ///////////////////////////////////////////////
// FileWatcher
// ///////////////////////////////////////////////

// FileWatcher is a [Host] for applications that expose no plugin callback
// API. It watches a project directory and infers the file lifecycle from
// filesystem changes: a created project file is an open, a written one is a
// save. fsnotify is the primary mechanism, with a stat-based polling
// fallback when native watching is unavailable.
//
// The watcher doubles as an [idle.Source]: each observed filesystem change
// is evidence the user is working, so its timestamp feeds idle detection.
type FileWatcher struct {
	// dir is the watched project directory.
	dir string
	// version is the application string reported to the tracker.
	version string
	// patterns filters project files by base name (doublestar globs,
	// e.g. "*.ma"). Empty means every regular file qualifies.
	patterns []string
	// events delivers the inferred lifecycle notifications. Buffered so a
	// slow consumer cannot stall the watch goroutine indefinitely.
	events chan Event
	// activity delivers observation timestamps for idle detection.
	activity chan time.Time
	// done is closed by [FileWatcher.Close] to stop the goroutines.
	done chan struct{}
	// once ensures Close is idempotent.
	once sync.Once
	// polling is true when the watcher has fallen back to stat polling.
	polling atomic.Bool
	// pollInterval is the duration between scans in polling mode.
	pollInterval time.Duration

	// mu guards current and fsw.
	mu sync.Mutex
	// current is the most recently opened or saved project file.
	current string
	// fsw is the underlying fsnotify watcher; nil when polling. The watch
	// goroutine holds its own reference and never reads this field.
	fsw *fsnotify.Watcher
}

// FileWatcher feeds idle detection with its own filesystem observations.
var _ idle.Source = (*FileWatcher)(nil)

// NewFileWatcher creates a FileWatcher over dir. version is the application
// string it reports; patterns filters which base names count as project
// files. The most recently modified matching file, if any, is taken as the
// currently open file so late attachment does not lose an in-progress
// project.
func NewFileWatcher(dir, version string, patterns []string) (*FileWatcher, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("stat watch dir: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("watch path %s is not a directory", dir)
	}

	w := &FileWatcher{
		dir:          dir,
		version:      version,
		patterns:     patterns,
		events:       make(chan Event, 16),
		activity:     make(chan time.Time, 16),
		done:         make(chan struct{}),
		pollInterval: 2 * time.Second,
	}
	w.current, _ = w.latestProjectFile()

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		slog.Info("fsnotify unavailable, falling back to polling", "error", err)
		w.polling.Store(true)
		go w.poll()
		return w, nil
	}
	if err := fsw.Add(dir); err != nil {
		slog.Info("cannot watch directory, falling back to polling", "dir", dir, "error", err)
		fsw.Close()
		w.polling.Store(true)
		go w.poll()
		return w, nil
	}

	w.fsw = fsw
	go w.watch(fsw)
	return w, nil
}

// CurrentFilePath returns the most recently observed project file, or "".
func (w *FileWatcher) CurrentFilePath() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.current
}

// Version returns the application string given at construction.
func (w *FileWatcher) Version() string { return w.version }

// Events returns the inferred lifecycle notification stream.
func (w *FileWatcher) Events() <-chan Event { return w.events }

// Activity returns the stream of filesystem observation timestamps.
func (w *FileWatcher) Activity() <-chan time.Time { return w.activity }

// Polling reports whether the watcher is using polling instead of fsnotify.
func (w *FileWatcher) Polling() bool { return w.polling.Load() }

// Close stops the watcher and emits a final Exit notification so the
// tracker ends its open session. No further events follow.
func (w *FileWatcher) Close() error {
	var err error
	w.once.Do(func() {
		w.mu.Lock()
		fsw := w.fsw
		w.fsw = nil
		w.mu.Unlock()
		if fsw != nil {
			if closeErr := fsw.Close(); closeErr != nil {
				err = fmt.Errorf("closing fsnotify watcher: %w", closeErr)
			}
		}
		close(w.done)
		w.emit(Event{Kind: Exit})
	})
	return err
}

// ///////////////////////////////////////////////
// Watch Loops
// ///////////////////////////////////////////////

// watch loops over fsnotify events, translating create/write on matching
// project files into lifecycle notifications. On a watcher error it falls
// back to polling.
func (w *FileWatcher) watch(fsw *fsnotify.Watcher) {
	for {
		select {
		case <-w.done:
			return
		case event, ok := <-fsw.Events:
			if !ok {
				return
			}
			if !w.matches(event.Name) {
				continue
			}
			switch {
			case event.Has(fsnotify.Create):
				w.setCurrent(event.Name)
				w.observe()
				w.emit(Event{Kind: FileOpened, Path: event.Name})
			case event.Has(fsnotify.Write):
				w.setCurrent(event.Name)
				w.observe()
				w.emit(Event{Kind: FileSaved, Path: event.Name})
			}
		case err, ok := <-fsw.Errors:
			if !ok {
				return
			}
			slog.Info("fsnotify error, switching to polling", "error", err)
			w.mu.Lock()
			w.fsw = nil
			w.mu.Unlock()
			fsw.Close()
			w.polling.Store(true)
			go w.poll()
			return
		}
	}
}

// poll periodically scans the directory and emits a FileSaved notification
// when the newest matching file's modification time advances, or a
// FileOpened one when a different file becomes the newest.
func (w *FileWatcher) poll() {
	lastPath, lastMod := w.latestProjectFile()

	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-w.done:
			return
		case <-ticker.C:
			path, mod := w.latestProjectFile()
			if path == "" {
				continue
			}
			switch {
			case path != lastPath:
				w.setCurrent(path)
				w.observe()
				w.emit(Event{Kind: FileOpened, Path: path})
			case mod.After(lastMod):
				w.setCurrent(path)
				w.observe()
				w.emit(Event{Kind: FileSaved, Path: path})
			}
			lastPath, lastMod = path, mod
		}
	}
}

// ///////////////////////////////////////////////
// Helpers
// ///////////////////////////////////////////////

// matches reports whether path names a project file under the configured
// patterns. Invalid patterns are skipped, not fatal.
func (w *FileWatcher) matches(path string) bool {
	if len(w.patterns) == 0 {
		return true
	}
	base := filepath.Base(path)
	for _, p := range w.patterns {
		ok, err := doublestar.Match(p, base)
		if err != nil {
			slog.Warn("invalid project file pattern", "pattern", p, "error", err)
			continue
		}
		if ok {
			return true
		}
	}
	return false
}

// latestProjectFile returns the matching file in the watched directory with
// the newest modification time.
func (w *FileWatcher) latestProjectFile() (string, time.Time) {
	var (
		path   string
		latest time.Time
	)
	entries, err := os.ReadDir(w.dir)
	if err != nil {
		return "", latest
	}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		full := filepath.Join(w.dir, e.Name())
		if !w.matches(full) {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		if info.ModTime().After(latest) {
			latest = info.ModTime()
			path = full
		}
	}
	return path, latest
}

func (w *FileWatcher) setCurrent(path string) {
	w.mu.Lock()
	w.current = path
	w.mu.Unlock()
}

// observe timestamps a filesystem change on the activity stream without
// blocking. Dropping under backpressure is fine: the detector only keeps
// the most recent observation anyway.
func (w *FileWatcher) observe() {
	select {
	case w.activity <- time.Now():
	default:
	}
}

// emit delivers a notification without blocking. If the consumer has
// fallen far enough behind to fill the buffer the notification is dropped;
// the tracker self-corrects on its next tick.
func (w *FileWatcher) emit(ev Event) {
	select {
	case w.events <- ev:
	default:
		slog.Debug("dropping host event, consumer behind", "kind", ev.Kind.String())
	}
}
