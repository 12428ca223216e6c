package sync

import (
	"context"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/sidkik/reposync/cmd/util"
	"github.com/sidkik/reposync/pkg/errors"
	engine "github.com/sidkik/reposync/pkg/sync"
)

// New creates a new `sync` command.
func New() *cobra.Command {
	var flags util.SyncFlags
	cmd := &cobra.Command{
		Use:   "sync [target] ...",
		Short: "Update the folder icon of every repository",
		Long: `Classify each repository and write its folder icon.

Each target is either a repository, or a directory whose immediate children
are scanned for repositories. With no targets, the base directories from
~/.reposync.yaml are scanned.`,
		Run: func(_ *cobra.Command, args []string) {
			flags.ConfigureLogging()
			if err := run(context.Background(), flags, args); err != nil {
				util.HandleFatalError(err)
			}
		},
	}
	flags.Register(cmd)
	return cmd
}

func run(ctx context.Context, flags util.SyncFlags, targets []string) error {
	e, err := util.NewEngine(flags)
	if err != nil {
		return errors.WithContext(err, "load config")
	}

	repos, err := e.Repos(targets)
	if err != nil {
		return errors.WithContext(err, "find repositories")
	}

	printer := util.NewPrinter(flags.Quiet)
	results := Sweep(ctx, e, repos)
	for _, result := range results {
		printer.Result(result)
	}
	printer.Total(len(results))
	return nil
}

// Sweep resyncs repos, logs a summary if requested, and notifies the file
// manager once. It is shared with the commands that resync on demand.
func Sweep(ctx context.Context, e *util.Engine, repos []string) []engine.Result {
	if len(repos) == 0 {
		log.Warn("No repositories found")
		return nil
	}

	results := e.Resyncer(nil).Sweep(ctx, repos, e.Config.MaxConcurrentFlushes)
	e.WriteSummary(results)
	return results
}
