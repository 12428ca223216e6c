// Package status classifies how a repository's working tree and branch
// relate to its remote.
package status

import (
	"context"
	"fmt"
	"path/filepath"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/afero"

	"github.com/sidkik/reposync/pkg/config"
	"github.com/sidkik/reposync/pkg/errors"
	"github.com/sidkik/reposync/pkg/git"
)

// Classifier produces a SyncState for a repository. It holds no state
// between calls, so one Classifier may be shared by concurrent flushes.
type Classifier struct {
	git   git.Client
	fs    afero.Fs
	log   log.FieldLogger
	cfg   config.Config
	fetch bool
}

// NewClassifier returns a Classifier that queries repositories with client.
// If fetch is true, remotes are fetched before the upstream comparison.
func NewClassifier(client git.Client, fs afero.Fs, cfg config.Config,
	logger log.FieldLogger, fetch bool) Classifier {
	return Classifier{git: client, fs: fs, log: logger, cfg: cfg, fetch: fetch}
}

// Classify never fails. Errors from git are folded into the returned state.
func (c Classifier) Classify(ctx context.Context, root string) SyncState {
	logger := c.log.WithField("repo", root)

	if _, err := c.fs.Stat(filepath.Join(root, ".git")); err != nil {
		return SyncState{Kind: NotARepo, Reason: "no .git entry"}
	}

	entries, err := c.git.Status(ctx, root)
	if err != nil {
		logger.WithError(err).Debug("git status failed")
		return SyncState{Kind: NotARepo, Reason: "status failed"}
	}
	if kind, changed := c.localChanges(entries); changed {
		return SyncState{Kind: kind}
	}

	if c.fetch {
		if err := c.git.Fetch(ctx, root); err != nil {
			logger.WithError(err).Debug("git fetch failed")
		}
	}

	upstream, err := c.git.Upstream(ctx, root)
	switch {
	case err == nil:
		return c.compare(ctx, logger, root, upstream, SyncState{})
	case errors.Is(err, errors.ErrSubprocessTimeout):
		logger.WithError(err).Debug("upstream query timed out")
		return SyncState{Kind: Diverged, Reason: "upstream query timed out"}
	default:
		logger.WithError(err).Debug("no upstream configured")
		return c.fallback(ctx, logger, root)
	}
}

func (c Classifier) localChanges(entries []git.StatusEntry) (Kind, bool) {
	untracked := false
	for _, entry := range entries {
		if !entry.Untracked() {
			return LocalCommitted, true
		}
		if !c.isMarker(entry.Path) {
			untracked = true
		}
	}
	if untracked {
		return LocalUntracked, true
	}
	return 0, false
}

// isMarker matches only markers at the repository root, which is where our
// own writes land.
func (c Classifier) isMarker(path string) bool {
	if path == c.cfg.MarkerFile {
		return true
	}
	for _, marker := range c.cfg.IgnoreMarkers {
		if path == marker {
			return true
		}
	}
	return false
}

// fallback compares HEAD against the first candidate branch that exists on
// the first remote.
func (c Classifier) fallback(ctx context.Context, logger log.FieldLogger,
	root string) SyncState {
	remotes, err := c.git.Remotes(ctx, root)
	if err != nil {
		logger.WithError(err).Debug("failed to list remotes")
	}
	if len(remotes) == 0 {
		return SyncState{Kind: NoUpstreamUnresolved, Reason: "no remote"}
	}

	remote := remotes[0]
	for _, branch := range c.cfg.CandidateBranches {
		ref := fmt.Sprintf("%s/%s", remote, branch)
		exists, err := c.git.RefExists(ctx, root, ref)
		if err != nil {
			logger.WithError(err).WithField("ref", ref).Debug("ref lookup failed")
			return SyncState{Kind: Diverged, Reason: "ref lookup failed"}
		}
		if !exists {
			continue
		}

		matched := SyncState{Kind: NoUpstreamMatched, Remote: remote, Branch: branch}
		return c.compare(ctx, logger, root, ref, matched)
	}
	return SyncState{Kind: NoUpstreamUnresolved, Reason: "no candidate branch"}
}

// compare fills in the ahead and behind counts against ref. A zero-valued
// base means ref is the configured upstream.
func (c Classifier) compare(ctx context.Context, logger log.FieldLogger,
	root, ref string, base SyncState) SyncState {
	ahead, behind, err := c.git.AheadBehind(ctx, root, ref)
	if err != nil {
		logger.WithError(err).WithField("ref", ref).Debug("failed to count commits")
		return SyncState{Kind: Diverged, Reason: "count failed"}
	}

	base.Ahead, base.Behind = ahead, behind
	if base.Kind == NoUpstreamMatched {
		return base
	}
	if ahead == 0 && behind == 0 {
		base.Kind = UpToDate
	} else {
		base.Kind = Diverged
	}
	return base
}
