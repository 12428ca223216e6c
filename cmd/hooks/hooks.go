package hooks

import (
	"fmt"
	"io"
	"os"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/sidkik/reposync/cmd/util"
	"github.com/sidkik/reposync/pkg/errors"
)

// stdout is overridden in tests.
var stdout io.Writer = os.Stdout

// ensurer is the part of hooks.Installer used by this command.
type ensurer interface {
	Ensure(root string, force bool) (bool, error)
	RequiredVersion() string
}

// New creates a new `hooks` command.
func New() *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "hooks [target] ...",
		Short: "Install the git hooks that refresh icons after commits",
		Long: `Install post-commit, post-merge and post-checkout hooks that run
"reposync sync" on the repository in the background.

Hooks that are already at the current version are left alone unless --force
is set.`,
		Run: func(_ *cobra.Command, args []string) {
			e, err := util.NewEngine(util.SyncFlags{})
			if err != nil {
				util.HandleFatalError(errors.WithContext(err, "load config"))
			}

			repos, err := e.Repos(args)
			if err != nil {
				util.HandleFatalError(errors.WithContext(err, "find repositories"))
			}
			if failed := install(e.Hooks, repos, force); failed > 0 {
				util.HandleFatalError(errors.NewFriendlyError(
					"Failed to install hooks in %d repositories", failed))
			}
		},
	}
	cmd.Flags().BoolVarP(&force, "force", "f", false,
		"Reinstall hooks even if they are up to date")
	return cmd
}

// install returns the number of repositories that failed.
func install(installer ensurer, repos []string, force bool) int {
	failed := 0
	for _, repo := range repos {
		installed, err := installer.Ensure(repo, force)
		switch {
		case err != nil:
			log.WithError(err).WithField("repo", repo).Error("Failed to install hooks")
			failed++
		case installed:
			fmt.Fprintf(stdout, "%s: installed hooks %s\n", repo, installer.RequiredVersion())
		default:
			fmt.Fprintf(stdout, "%s: up to date\n", repo)
		}
	}
	return failed
}
