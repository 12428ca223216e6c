// Package annotate writes the per-directory desktop entry that tells the file
// manager which icon to draw for a repository.
package annotate

import (
	"fmt"
	"path/filepath"

	"github.com/jonboulle/clockwork"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/afero"

	"github.com/sidkik/reposync/pkg/config"
	"github.com/sidkik/reposync/pkg/errors"
	"github.com/sidkik/reposync/pkg/status"
)

const markerTemplate = "[Desktop Entry]\nIcon=%s\n"

// Annotator writes status markers.
type Annotator struct {
	fs    afero.Fs
	clock clockwork.Clock
	cfg   config.Config
	log   log.FieldLogger
}

// New returns an Annotator that writes cfg.MarkerFile using the tokens in
// cfg.Icons.
func New(fs afero.Fs, clock clockwork.Clock, cfg config.Config, logger log.FieldLogger) Annotator {
	return Annotator{fs: fs, clock: clock, cfg: cfg, log: logger}
}

// Marker returns the marker file contents for state.
func (a Annotator) Marker(state status.SyncState) string {
	return fmt.Sprintf(markerTemplate, a.cfg.Icon(state.IconKey()))
}

// WriteStatusMarker writes the marker into root, and then bumps the
// modification time of root and its parent so that file managers which
// cache directory listings pick up the change.
func (a Annotator) WriteStatusMarker(root string, state status.SyncState) error {
	path := filepath.Join(root, a.cfg.MarkerFile)
	if err := afero.WriteFile(a.fs, path, []byte(a.Marker(state)), 0644); err != nil {
		return errors.WithContext(err, "write marker")
	}

	now := a.clock.Now()
	for _, dir := range []string{root, filepath.Dir(root)} {
		if err := a.fs.Chtimes(dir, now, now); err != nil {
			a.log.WithError(err).WithField("dir", dir).Debug("Failed to touch directory")
		}
	}
	return nil
}
