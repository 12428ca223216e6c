package onsave

import (
	"context"
	"sort"
	"strings"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	syncCmd "github.com/sidkik/reposync/cmd/sync"
	"github.com/sidkik/reposync/cmd/util"
	"github.com/sidkik/reposync/pkg/errors"
	"github.com/sidkik/reposync/pkg/repo"
)

// New creates a new `on-save` command.
func New() *cobra.Command {
	return &cobra.Command{
		Use:   "on-save <file> ...",
		Short: "Refresh the repositories that own the given files",
		Long: `Refresh only the repositories containing the given files. It is meant to
be run by an editor's on-save hook, and so it prints nothing unless
--verbose is set. Hooks are installed if they are missing or outdated.`,
		// Editors sometimes pass stray flags along with the file name, so
		// flags are picked out by hand and everything else is ignored.
		DisableFlagParsing: true,
		Run: func(_ *cobra.Command, args []string) {
			flags := util.SyncFlags{Quiet: !hasVerbose(args), EnsureHooks: true}
			flags.ConfigureLogging()

			e, err := util.NewEngine(flags)
			if err != nil {
				util.HandleFatalError(errors.WithContext(err, "load config"))
			}

			repos := OwningRepos(e.Fs, args)
			log.WithField("repos", repos).Debug("Refreshing saved repositories")

			printer := util.NewPrinter(flags.Quiet)
			for _, result := range syncCmd.Sweep(context.Background(), e, repos) {
				printer.Result(result)
			}
		},
	}
}

func hasVerbose(args []string) bool {
	for _, arg := range args {
		if arg == "-v" || arg == "--verbose" {
			return true
		}
	}
	return false
}

// OwningRepos maps files to the repositories containing them. Files outside
// of any repository are skipped. The result is sorted and deduplicated.
func OwningRepos(fs afero.Fs, files []string) []string {
	seen := map[string]struct{}{}
	for _, file := range files {
		if strings.TrimSpace(file) == "" || strings.HasPrefix(file, "-") {
			continue
		}
		if root, ok := repo.FindRoot(fs, file); ok {
			seen[root] = struct{}{}
		}
	}

	repos := make([]string, 0, len(seen))
	for root := range seen {
		repos = append(repos, root)
	}
	sort.Strings(repos)
	return repos
}
