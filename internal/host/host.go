// Package host abstracts the creative application embedding a tracker.
//
// Every host integration reduces to the same narrow capability surface:
// what file is open, what the application calls itself, and a stream of
// file-lifecycle notifications. In-process plugins implement [Host] over
// their host's callback API; hosts with no callback API at all use
// [FileWatcher], which infers the lifecycle from project-file changes on
// disk.
package host

// Kind enumerates the file-lifecycle notifications a host can deliver.
type Kind int

const (
	// FileOpened: an existing file was opened.
	FileOpened Kind = iota + 1
	// NewFile: a new unsaved file was created.
	NewFile
	// BeforeSave: the host is about to write the current file.
	BeforeSave
	// FileSaved: the current file was written (possibly under a new name).
	FileSaved
	// Exit: the host application is shutting down.
	Exit
)

// String returns the notification name for logging.
func (k Kind) String() string {
	switch k {
	case FileOpened:
		return "file_opened"
	case NewFile:
		return "new_file"
	case BeforeSave:
		return "before_save"
	case FileSaved:
		return "file_saved"
	case Exit:
		return "exit"
	default:
		return "unknown"
	}
}

// Event is one lifecycle notification. Path is empty for kinds that carry
// no file identity (NewFile, BeforeSave, Exit).
type Event struct {
	Kind Kind
	Path string
}

// Host is the capability interface a tracker needs from its embedding
// application.
type Host interface {
	// CurrentFilePath returns the file currently open in the host, or ""
	// when nothing is open or the host cannot say.
	CurrentFilePath() string
	// Version identifies host and version, e.g. "Maya 2024".
	Version() string
	// Events returns the lifecycle notification stream. An Exit
	// notification is the final event; implementations need not close the
	// channel afterwards.
	Events() <-chan Event
	// Close releases host resources and stops the event stream.
	Close() error
}
