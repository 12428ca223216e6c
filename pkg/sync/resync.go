package sync

import (
	"context"
	"fmt"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/sidkik/reposync/pkg/config"
	"github.com/sidkik/reposync/pkg/status"
)

// Classifier computes the status of a repository.
type Classifier interface {
	Classify(ctx context.Context, root string) status.SyncState
}

// Annotator records a status where the file manager can see it.
type Annotator interface {
	WriteStatusMarker(root string, state status.SyncState) error
}

// Notifier asks the file manager to repaint the given directories.
type Notifier interface {
	NotifyChanged(ctx context.Context, paths []string) bool
}

// HookInstaller keeps a repository's git hooks up to date. It returns true
// if the hooks were (re)installed.
type HookInstaller interface {
	Ensure(root string, force bool) (bool, error)
}

// Result is the outcome of resyncing one repository.
type Result struct {
	Root           string
	State          status.SyncState
	HooksInstalled bool
}

// ResyncOptions configures a Resyncer.
type ResyncOptions struct {
	// Hooks is only used when EnsureHooks is set.
	Hooks       HookInstaller
	EnsureHooks bool
	ForceHooks  bool

	// Report is called after each repository is resynced. It may be called
	// from several goroutines at once.
	Report func(Result)
}

// Resyncer refreshes the icon of a repository.
type Resyncer struct {
	classifier Classifier
	annotator  Annotator
	notifier   Notifier
	opts       ResyncOptions
	log        log.FieldLogger
}

// NewResyncer returns a Resyncer.
func NewResyncer(classifier Classifier, annotator Annotator, notifier Notifier,
	opts ResyncOptions, logger log.FieldLogger) *Resyncer {
	return &Resyncer{
		classifier: classifier,
		annotator:  annotator,
		notifier:   notifier,
		opts:       opts,
		log:        logger,
	}
}

// Resync classifies root and writes its marker. Failures are logged, never
// returned, so that one broken repository never stops the others.
func (r *Resyncer) Resync(ctx context.Context, root string) Result {
	logger := r.log.WithField("repo", root)
	result := Result{Root: root}

	if r.opts.EnsureHooks && r.opts.Hooks != nil {
		installed, err := r.opts.Hooks.Ensure(root, r.opts.ForceHooks)
		if err != nil {
			logger.WithError(err).Warn("Failed to install git hooks")
		}
		result.HooksInstalled = installed
	}

	result.State = r.classifier.Classify(ctx, root)
	logger.WithField("state", result.State.String()).Debug("Classified repository")

	if err := r.annotator.WriteStatusMarker(root, result.State); err != nil {
		logger.WithError(err).Warn("Failed to write status marker")
	}

	if r.opts.Report != nil {
		r.opts.Report(result)
	}
	return result
}

// Flush resyncs root and notifies the file manager about it. It is the
// FlushFunc used in watch mode.
func (r *Resyncer) Flush(ctx context.Context, root string) {
	r.Resync(ctx, root)
	r.Notify(ctx, []string{root})
}

// Sweep resyncs every root with at most `parallelism` running at once, and
// then sends a single notification for all of them. The results are in the
// same order as roots.
func (r *Resyncer) Sweep(ctx context.Context, roots []string, parallelism int) []Result {
	if parallelism <= 0 {
		parallelism = 1
	}

	results := make([]Result, len(roots))
	var group errgroup.Group
	group.SetLimit(parallelism)
	for i, root := range roots {
		i, root := i, root
		group.Go(func() error {
			results[i] = r.Resync(ctx, root)
			return nil
		})
	}
	_ = group.Wait()

	r.Notify(ctx, roots)
	return results
}

// Notify asks the file manager to repaint paths.
func (r *Resyncer) Notify(ctx context.Context, paths []string) bool {
	if len(paths) == 0 || r.notifier == nil {
		return false
	}
	if !r.notifier.NotifyChanged(ctx, paths) {
		r.log.WithField("paths", len(paths)).Debug("No file manager was notified")
		return false
	}
	return true
}

// Summary counts resynced repositories by icon key.
type Summary struct {
	Processed int
	Counts    map[string]int
}

// Summarize builds a Summary from results.
func Summarize(results []Result) Summary {
	summary := Summary{Counts: map[string]int{}}
	for _, key := range config.IconKeys {
		summary.Counts[key] = 0
	}
	for _, result := range results {
		summary.Processed++
		summary.Counts[result.State.IconKey()]++
	}
	return summary
}

// Line formats the summary as a single log line stamped with `at`.
func (s Summary) Line(at time.Time) string {
	parts := []string{fmt.Sprintf("processed=%d", s.Processed)}
	for _, key := range config.IconKeys {
		parts = append(parts, fmt.Sprintf("%s=%d", key, s.Counts[key]))
	}
	return fmt.Sprintf("[%s] %s", at.Format("2006-01-02T15:04:05"),
		strings.Join(parts, " "))
}
