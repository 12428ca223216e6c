package status

import (
	"fmt"

	"github.com/sidkik/reposync/pkg/config"
)

// Kind is the coarse synchronization state of a repository.
type Kind int

const (
	// NotARepo means the directory has no readable git state.
	NotARepo Kind = iota
	// LocalCommitted means tracked files have staged or unstaged changes.
	LocalCommitted
	// LocalUntracked means the only changes are untracked files.
	LocalUntracked
	// NoUpstreamUnresolved means there is no upstream and no fallback
	// remote branch to compare against.
	NoUpstreamUnresolved
	// NoUpstreamMatched means there is no upstream, but a candidate branch on
	// the first remote was compared against instead.
	NoUpstreamMatched
	// UpToDate means HEAD and its upstream point at the same history.
	UpToDate
	// Diverged means HEAD is ahead of or behind its upstream, or the
	// comparison could not be completed.
	Diverged
)

var kindNames = map[Kind]string{
	NotARepo:             "NotARepo",
	LocalCommitted:       "LocalCommitted",
	LocalUntracked:       "LocalUntracked",
	NoUpstreamUnresolved: "NoUpstreamUnresolved",
	NoUpstreamMatched:    "NoUpstreamMatched",
	UpToDate:             "UpToDate",
	Diverged:             "Diverged",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// SyncState is the result of classifying one repository.
type SyncState struct {
	Kind Kind

	// Ahead and Behind are the commit counts from the comparison, if one ran.
	Ahead, Behind int

	// Remote and Branch name the fallback ref for NoUpstreamMatched.
	Remote, Branch string

	// Reason explains failure-derived states. It is only used for logging.
	Reason string
}

// Synced reports whether the repository needs no push or pull.
func (s SyncState) Synced() bool {
	switch s.Kind {
	case UpToDate:
		return true
	case NoUpstreamMatched:
		return s.Ahead == 0 && s.Behind == 0
	}
	return false
}

// IconKey maps the state to one of the config.Icon* keys.
func (s SyncState) IconKey() string {
	switch s.Kind {
	case LocalCommitted:
		return config.IconCommit
	case LocalUntracked:
		return config.IconUntracked
	case NoUpstreamUnresolved:
		return config.IconNoRemote
	case UpToDate, NoUpstreamMatched, Diverged:
		if s.Synced() {
			return config.IconSynced
		}
		return config.IconPendingSync
	}
	return config.IconNotInit
}

func (s SyncState) String() string {
	switch s.Kind {
	case NoUpstreamMatched:
		return fmt.Sprintf("%s(%s/%s +%d -%d)", s.Kind, s.Remote, s.Branch,
			s.Ahead, s.Behind)
	case UpToDate, Diverged:
		if s.Reason != "" {
			return fmt.Sprintf("%s(%s)", s.Kind, s.Reason)
		}
		return fmt.Sprintf("%s(+%d -%d)", s.Kind, s.Ahead, s.Behind)
	}
	if s.Reason != "" {
		return fmt.Sprintf("%s(%s)", s.Kind, s.Reason)
	}
	return s.Kind.String()
}
