// Package notify asks the desktop file manager to repaint directories whose
// icon marker changed. Each mechanism is a Probe, and probes are tried in
// order until one works.
package notify

import (
	"context"
	"os/exec"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/sidkik/reposync/pkg/errors"
)

// Probe is one way of telling the file manager about changed directories.
type Probe interface {
	Name() string
	Notify(ctx context.Context, paths []string) bool
}

// FirstSuccess tries each probe in order, and stops at the first one that
// reports success.
func FirstSuccess(ctx context.Context, probes []Probe, paths []string) (Probe, bool) {
	for _, probe := range probes {
		if probe.Notify(ctx, paths) {
			return probe, true
		}
	}
	return nil, false
}

// Notifier notifies through an ordered list of probes.
type Notifier struct {
	probes []Probe
	log    log.FieldLogger
}

// New returns a Notifier that tries KDirNotify and then a Dolphin refresh.
// Each IPC call is bounded by timeout.
func New(timeout time.Duration, logger log.FieldLogger) *Notifier {
	cmd := commander{lookPath: exec.LookPath, run: runCommand, timeout: timeout}
	return NewWithProbes(logger, KDirNotify{cmd}, DolphinRefresh{cmd})
}

// NewWithProbes returns a Notifier over the given probes.
func NewWithProbes(logger log.FieldLogger, probes ...Probe) *Notifier {
	return &Notifier{probes: probes, log: logger}
}

// NotifyChanged reports whether any probe succeeded. It never fails loudly:
// a desktop without a supported file manager simply gets no repaint.
func (n *Notifier) NotifyChanged(ctx context.Context, paths []string) bool {
	if len(paths) == 0 {
		return false
	}

	probe, ok := FirstSuccess(ctx, n.probes, paths)
	if !ok {
		n.log.WithError(errors.ErrNotifierUnavailable).Debug("Failed to notify file manager")
		return false
	}
	n.log.WithField("probe", probe.Name()).WithField("paths", len(paths)).
		Debug("Notified file manager")
	return true
}

// commander runs short-lived IPC commands.
type commander struct {
	lookPath func(string) (string, error)
	run      func(ctx context.Context, timeout time.Duration, name string, args ...string) error
	timeout  time.Duration
}

func (c commander) find(names ...string) (string, bool) {
	for _, name := range names {
		if path, err := c.lookPath(name); err == nil {
			return path, true
		}
	}
	return "", false
}

func runCommand(ctx context.Context, timeout time.Duration, name string, args ...string) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return exec.CommandContext(ctx, name, args...).Run()
}

// KDirNotify emits the KDirNotify.DirectoryChanged D-Bus signal for each
// directory. KIO-based file managers listen for it.
type KDirNotify struct {
	cmd commander
}

// Name implements Probe.
func (KDirNotify) Name() string {
	return "kdirnotify"
}

// Notify implements Probe. It succeeds if the signal was sent for at least
// one directory.
func (p KDirNotify) Notify(ctx context.Context, paths []string) bool {
	dbusSend, ok := p.cmd.find("dbus-send")
	if !ok {
		return false
	}

	success := false
	sent := map[string]struct{}{}
	for _, path := range paths {
		if _, ok := sent[path]; ok {
			continue
		}
		sent[path] = struct{}{}

		err := p.cmd.run(ctx, p.cmd.timeout, dbusSend, "--session",
			"--dest=org.kde.KDirNotify", "/KDirNotify",
			"org.kde.KDirNotify.DirectoryChanged", "string:"+DirectoryURL(path))
		if err == nil {
			success = true
		}
	}
	return success
}

// DirectoryURL returns the file:// URL of dir with a trailing slash.
func DirectoryURL(dir string) string {
	return "file://" + strings.TrimRight(dir, "/") + "/"
}

// DolphinRefresh asks a running Dolphin window to refresh itself.
type DolphinRefresh struct {
	cmd commander
}

// Name implements Probe.
func (DolphinRefresh) Name() string {
	return "dolphin"
}

// Notify implements Probe. The paths are ignored since Dolphin refreshes
// its whole view.
func (p DolphinRefresh) Notify(ctx context.Context, _ []string) bool {
	qdbus, ok := p.cmd.find("qdbus", "qdbus6")
	if !ok {
		return false
	}

	for _, method := range []string{"refresh", "org.qtproject.Qt.QWidget.update"} {
		err := p.cmd.run(ctx, p.cmd.timeout, qdbus, "org.kde.dolphin",
			"/dolphin/Dolphin_1", method)
		if err == nil {
			return true
		}
	}
	return false
}
