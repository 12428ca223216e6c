package sync

import (
	"context"
	"path/filepath"
	"strings"

	"github.com/jonboulle/clockwork"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/afero"

	"github.com/sidkik/reposync/pkg/fswatch"
	"github.com/sidkik/reposync/pkg/repo"
)

// Dispatcher routes change events to the repository that owns them.
type Dispatcher struct {
	fs       afero.Fs
	pending  *Pending
	clock    clockwork.Clock
	log      log.FieldLogger
	isMarker func(name string) bool
}

// NewDispatcher returns a Dispatcher that records into pending. Events for
// marker files at a repository root are dropped, since those are written by
// reposync itself. isMarker is given the file's base name.
func NewDispatcher(fs afero.Fs, pending *Pending, clock clockwork.Clock,
	logger log.FieldLogger, isMarker func(string) bool) *Dispatcher {
	return &Dispatcher{
		fs:       fs,
		pending:  pending,
		clock:    clock,
		log:      logger,
		isMarker: isMarker,
	}
}

// Dispatch records event against the owning repository. It returns false if
// the event was dropped.
func (d *Dispatcher) Dispatch(event fswatch.Event) (string, bool) {
	path := repo.Canonical(event.Path())
	root, ok := repo.FindRoot(d.fs, path)
	if !ok {
		d.log.WithField("path", path).Debug("Event outside of any repository")
		return "", false
	}

	if d.selfInflicted(root, path) {
		return "", false
	}

	d.pending.RecordEvent(root, d.clock.Now())
	return root, true
}

// selfInflicted reports whether path is one that resyncing root writes: a
// marker file directly in root, or git's lock files and FETCH_HEAD.
func (d *Dispatcher) selfInflicted(root, path string) bool {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return false
	}

	if filepath.Dir(rel) == "." {
		return d.isMarker != nil && d.isMarker(rel)
	}

	gitDir := ".git" + string(filepath.Separator)
	if !strings.HasPrefix(rel, gitDir) {
		return false
	}
	name := filepath.Base(rel)
	return strings.HasSuffix(name, ".lock") || name == "FETCH_HEAD"
}

// Run dispatches events until the channel closes or ctx is cancelled.
func (d *Dispatcher) Run(ctx context.Context, events <-chan fswatch.Event) {
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-events:
			if !ok {
				return
			}
			if root, ok := d.Dispatch(event); ok {
				d.log.WithField("repo", root).WithField("flags", event.Flags).
					Debug("Queued change")
			}
		}
	}
}
