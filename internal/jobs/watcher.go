package jobs

// EventKind narrows every underlying filesystem-notification event down
// to the kinds the mirror kernel cares about (spec.md §3).
type EventKind int

const (
	EventOther EventKind = iota
	EventCreate
	EventModifyName
	EventRemove
)

// WatchEvent carries one filesystem change plus the paths it affected.
type WatchEvent struct {
	Kind  EventKind
	Paths []string
}

// WatchCloser stops a watch started by Watcher.Watch. The mirror kernel
// closes it once its loop has exited; job cancellation itself uses the
// sentinel-file trick (spec.md §4.3), never WatchCloser.
type WatchCloser interface {
	Close() error
}

// Watcher produces a lazy, blocking, cancel-on-demand stream of change
// events for a root path, watched recursively.
type Watcher interface {
	Watch(root string) (events <-chan WatchEvent, errs <-chan error, closer WatchCloser, err error)
}

// IsNotFound reports whether err is the watcher's NotFound signal, which
// the mirror kernel redirects to the deletion-inference path
// (spec.md §4.3) instead of logging it as an ordinary watcher error.
func IsNotFound(err error) bool {
	type notFounder interface{ NotFound() bool }
	nf, ok := err.(notFounder)
	return ok && nf.NotFound()
}
