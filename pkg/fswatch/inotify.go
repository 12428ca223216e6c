package fswatch

import (
	"bufio"
	"context"
	"os/exec"

	log "github.com/sirupsen/logrus"

	"github.com/sidkik/reposync/pkg/errors"
)

// InotifyBinary is the executable used by the Inotify source.
const InotifyBinary = "inotifywait"

// InotifyEvents are the inotify events that can change a repository's
// status. Attribute changes are left out because the annotator's own
// timestamp updates would otherwise trigger another flush.
const InotifyEvents = "close_write,create,delete,move"

// lookPath will be overridden in mock tests
var lookPath = exec.LookPath

// Inotify streams events from a recursive `inotifywait -m` subprocess.
type Inotify struct {
	binary string
	args   []string
	log    log.FieldLogger
}

// NewInotify returns a source watching every root recursively. It fails if
// inotifywait is not installed.
func NewInotify(roots []string, logger log.FieldLogger) (*Inotify, error) {
	binary, err := lookPath(InotifyBinary)
	if err != nil {
		return nil, errors.NewFriendlyError("%s was not found in your PATH. "+
			"Please install inotify-tools, or run with `--watcher fsnotify`.",
			InotifyBinary)
	}

	args := []string{"-m", "-r", "-q", "-e", InotifyEvents}
	args = append(args, roots...)
	return &Inotify{binary: binary, args: args, log: logger}, nil
}

// Start launches the subprocess. It is killed when ctx is cancelled.
func (w *Inotify) Start(ctx context.Context) (<-chan Event, error) {
	cmd := exec.CommandContext(ctx, w.binary, w.args...)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, errors.WithContext(err, "stdout pipe")
	}
	if err := cmd.Start(); err != nil {
		return nil, errors.WithContext(err, "start "+w.binary)
	}

	events := make(chan Event)
	go func() {
		defer close(events)

		scanner := bufio.NewScanner(stdout)
		scanner.Buffer(make([]byte, 64*1024), 1024*1024)
		for scanner.Scan() {
			event, ok := ParseEvent(scanner.Text())
			if !ok {
				w.log.WithField("line", scanner.Text()).Debug("Ignoring unparsable event")
				continue
			}

			select {
			case events <- event:
			case <-ctx.Done():
			}
		}
		scanErr := scanner.Err()
		if scanErr != nil {
			w.log.WithError(scanErr).Warn("Failed to read events")
			// Nothing drains the pipe anymore, so the process would block
			// forever on its next write.
			if err := cmd.Process.Kill(); err != nil {
				w.log.WithError(err).Debug("Failed to kill event source")
			}
		}

		if err := cmd.Wait(); err != nil && ctx.Err() == nil && scanErr == nil {
			w.log.WithError(err).Warn("Event source exited")
		}
	}()
	return events, nil
}
