// Package version holds the build-time identity of the reposync binary.
package version

// EmptyValue is the value used when running a binary that wasn't built with
// `-ldflags "-X ..."`. Unit tests always see this value.
const EmptyValue = "set-by-make"

// Version is the release tag, or a commit hash for development builds.
var Version = EmptyValue

// HookVersion is stamped into every git hook that reposync installs. Hooks
// carrying an older version are replaced by `--ensure-hooks`. Bump it whenever
// the hook script template changes.
const HookVersion = "0.3.0"

// String returns a printable version, substituting "dev" for unset builds.
func String() string {
	if Version == EmptyValue {
		return "dev"
	}
	return Version
}
