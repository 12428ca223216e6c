package fswatch

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/afero"

	"github.com/sidkik/reposync/pkg/errors"
)

// fs is used for mock tests. It will be overridden by afero.NewMemMapFs()
// in the tests.
var fs = afero.NewOsFs()

// Native watches repositories with fsnotify. Because fsnotify doesn't watch
// directories recursively, every directory is added individually.
type Native struct {
	roots []string
	log   log.FieldLogger
}

// NewNative returns a fsnotify-backed source for roots.
func NewNative(roots []string, logger log.FieldLogger) *Native {
	return &Native{roots: roots, log: logger}
}

// Start adds a watch for every directory under the roots, and keeps adding
// directories as they are created.
func (w *Native) Start(ctx context.Context) (<-chan Event, error) {
	var paths []string
	for _, root := range w.roots {
		dirs, err := getDirsToWatch(root)
		if err != nil {
			return nil, errors.WithContext(err, "get paths")
		}
		paths = append(paths, dirs...)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, errors.WithContext(err, "create watcher")
	}

	for _, path := range paths {
		if err := watcher.Add(path); err != nil {
			// Close the watcher so that we release the file handlers for the
			// previously added paths.
			if err := watcher.Close(); err != nil {
				w.log.WithError(err).Warn("Failed to close file watcher")
			}
			return nil, errors.WithContext(err, "watch "+path)
		}
	}

	events := make(chan Event)
	go w.forward(ctx, watcher, events)
	return events, nil
}

func (w *Native) forward(ctx context.Context, watcher *fsnotify.Watcher, events chan<- Event) {
	defer close(events)
	defer func() {
		if err := watcher.Close(); err != nil {
			w.log.WithError(err).Warn("Failed to close file watcher")
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			w.log.WithError(err).Warn("File watcher error")
		case raw, ok := <-watcher.Events:
			if !ok {
				return
			}

			event, ok := convertEvent(raw)
			if !ok {
				continue
			}
			if event.Has("CREATE") && event.Has("ISDIR") {
				w.addTree(watcher, event.Path())
			}

			select {
			case events <- event:
			case <-ctx.Done():
				return
			}
		}
	}
}

func (w *Native) addTree(watcher *fsnotify.Watcher, dir string) {
	dirs, err := getDirsToWatch(dir)
	if err != nil {
		w.log.WithError(err).WithField("dir", dir).Debug("Failed to list new directory")
		return
	}
	for _, d := range dirs {
		if err := watcher.Add(d); err != nil {
			w.log.WithError(err).WithField("dir", d).Debug("Failed to watch new directory")
		}
	}
}

// convertEvent maps an fsnotify event onto the inotifywait flag names.
func convertEvent(raw fsnotify.Event) (Event, bool) {
	var flags []string
	switch {
	case raw.Has(fsnotify.Create):
		flags = append(flags, "CREATE")
	case raw.Has(fsnotify.Write):
		flags = append(flags, "CLOSE_WRITE")
	case raw.Has(fsnotify.Remove):
		flags = append(flags, "DELETE")
	case raw.Has(fsnotify.Rename):
		flags = append(flags, "MOVED_FROM")
	default:
		// Chmod only.
		return Event{}, false
	}

	if fi, err := fs.Stat(raw.Name); err == nil && fi.IsDir() {
		flags = append(flags, "ISDIR")
	}
	return Event{
		Dir:   filepath.Dir(raw.Name),
		Flags: flags,
		Name:  filepath.Base(raw.Name),
	}, true
}

// getDirsToWatch returns root and every directory below it. Inside a .git
// directory only the directory itself and its refs tree are watched, which
// is enough to notice commits, checkouts, fetches and pushes.
func getDirsToWatch(root string) (paths []string, err error) {
	err = afero.Walk(fs, root, func(path string, fi os.FileInfo, err error) error {
		if err != nil {
			if os.IsNotExist(err) {
				return nil
			}
			return errors.WithContext(err, "walk error")
		}
		if !fi.IsDir() {
			return nil
		}
		if !isWatchedDir(path) {
			return filepath.SkipDir
		}

		paths = append(paths, path)
		return nil
	})
	return paths, err
}

// isWatchedDir decides by the path alone, so that directories created later
// are held to the same rule as the initial walk.
func isWatchedDir(path string) bool {
	parts := strings.Split(filepath.ToSlash(filepath.Clean(path)), "/")
	for i := len(parts) - 1; i >= 0; i-- {
		if parts[i] != ".git" {
			continue
		}
		return i == len(parts)-1 || parts[i+1] == "refs"
	}
	return true
}
