// Package watch implements jobs.Watcher against github.com/fsnotify/fsnotify,
// adding new subdirectories to the watch set as they appear since
// fsnotify itself watches only the directories it is explicitly told
// about.
package watch

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"

	"bmu/internal/jobs"
)

// FS is a jobs.Watcher backed by fsnotify.
type FS struct{}

func New() FS { return FS{} }

func (FS) Watch(root string) (<-chan jobs.WatchEvent, <-chan error, jobs.WatchCloser, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, nil, nil, err
	}

	if err := addRecursive(w, root); err != nil {
		_ = w.Close()
		return nil, nil, nil, err
	}

	events := make(chan jobs.WatchEvent)
	errs := make(chan error)

	go pump(w, events, errs)

	return events, errs, w, nil
}

func addRecursive(w *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			if os.IsNotExist(err) {
				return notFoundError{path: p}
			}
			return err
		}
		if d.IsDir() {
			return w.Add(p)
		}
		return nil
	})
}

func pump(w *fsnotify.Watcher, events chan<- jobs.WatchEvent, errs chan<- error) {
	defer close(events)
	defer close(errs)

	for {
		select {
		case evt, ok := <-w.Events:
			if !ok {
				return
			}
			if evt.Op&(fsnotify.Create) != 0 {
				if info, statErr := os.Stat(evt.Name); statErr == nil && info.IsDir() {
					_ = addRecursive(w, evt.Name)
				}
			}
			events <- jobs.WatchEvent{Kind: mapOp(evt.Op), Paths: []string{evt.Name}}
		case err, ok := <-w.Errors:
			if !ok {
				return
			}
			if errors.Is(err, fsnotify.ErrEventOverflow) {
				continue
			}
			errs <- err
		}
	}
}

func mapOp(op fsnotify.Op) jobs.EventKind {
	switch {
	case op&fsnotify.Remove != 0:
		return jobs.EventRemove
	case op&fsnotify.Create != 0:
		return jobs.EventCreate
	case op&(fsnotify.Write|fsnotify.Rename) != 0:
		return jobs.EventModifyName
	default:
		return jobs.EventOther
	}
}

// notFoundError is returned by addRecursive, and so by Watch, when the
// root or a directory under it disappears during the walk; it satisfies
// jobs.IsNotFound's duck-typed interface. Errors from fsnotify itself
// are forwarded on the error channel unchanged.
type notFoundError struct{ path string }

func (e notFoundError) Error() string  { return "watch: path not found: " + e.path }
func (e notFoundError) NotFound() bool { return true }
