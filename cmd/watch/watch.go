package watch

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	syncCmd "github.com/sidkik/reposync/cmd/sync"
	"github.com/sidkik/reposync/cmd/util"
	"github.com/sidkik/reposync/pkg/config"
	"github.com/sidkik/reposync/pkg/errors"
	"github.com/sidkik/reposync/pkg/fswatch"
	"github.com/sidkik/reposync/pkg/sync"
)

type watchFlags struct {
	util.SyncFlags
	debounceMs  int
	watcher     string
	initialSync bool
}

// New creates a new `watch` command.
func New() *cobra.Command {
	var flags watchFlags
	cobraCmd := &cobra.Command{
		Use:   "watch [target] ...",
		Short: "Keep folder icons up to date as repositories change",
		Long: `Watch repositories for changes and refresh their folder icons.

Changes are debounced per repository: a repository is refreshed once it has
been quiet for the debounce window. The window defaults to debounceMs from
~/.reposync.yaml, and can be overridden by DEBOUNCE_MS or --debounce.`,
		Run: func(cmd *cobra.Command, args []string) {
			flags.ConfigureLogging()

			cfg, err := config.Parse()
			if err != nil {
				util.HandleFatalError(errors.WithContext(err, "load config"))
			}
			if cmd.Flags().Changed("debounce") {
				cfg.DebounceMs = flags.debounceMs
			}
			if cmd.Flags().Changed("watcher") {
				cfg.Watcher = flags.watcher
			}
			if err := cfg.Validate(); err != nil {
				util.HandleFatalError(err)
			}

			if err := run(cfg, flags, args); err != nil {
				util.HandleFatalError(err)
			}
		},
	}
	flags.Register(cobraCmd)
	cobraCmd.Flags().IntVar(&flags.debounceMs, "debounce", 0,
		"Milliseconds a repository must be quiet before it is refreshed")
	cobraCmd.Flags().StringVar(&flags.watcher, "watcher", config.WatcherInotify,
		"Event source to use: inotifywait or fsnotify")
	cobraCmd.Flags().BoolVar(&flags.initialSync, "initial-sync", false,
		"Refresh every repository once before watching")
	return cobraCmd
}

func run(cfg config.Config, flags watchFlags, targets []string) error {
	if flags.Log {
		logFile := util.OpenLogFile(cfg.LogPath)
		defer logFile.Close()
		log.SetFormatter(&log.TextFormatter{
			FullTimestamp: true,
			// Disable colors since we'll be logging to a file.
			DisableColors: true,
		})
		log.SetOutput(logFile)
	}

	e := util.NewEngineWithConfig(cfg, flags.SyncFlags)
	repos, err := e.Repos(targets)
	if err != nil {
		return errors.WithContext(err, "find repositories")
	}
	if len(repos) == 0 {
		log.Warn("No repositories found")
		return nil
	}

	source, err := newSource(cfg.Watcher, repos, e.Log)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if flags.initialSync {
		syncCmd.Sweep(ctx, e, repos)
	}

	events, err := source.Start(ctx)
	if err != nil {
		return errors.WithContext(err, "start watcher")
	}

	log.WithField("repos", len(repos)).
		WithField("debounce", cfg.DebounceWindow()).
		WithField("watcher", cfg.Watcher).
		Info("Watching repositories")
	watchLoop(ctx, e, events)
	return nil
}

func newSource(watcher string, repos []string, logger log.FieldLogger) (fswatch.Source, error) {
	if watcher == config.WatcherFsnotify {
		return fswatch.NewNative(repos, logger), nil
	}
	return fswatch.NewInotify(repos, logger)
}

// watchLoop dispatches events until the stream ends or ctx is cancelled, and
// then waits for running flushes to finish.
func watchLoop(ctx context.Context, e *util.Engine, events <-chan fswatch.Event) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	pending := sync.NewPending()
	resyncer := e.Resyncer(func(result sync.Result) {
		e.Log.WithField("repo", result.Root).
			WithField("icon", result.State.IconKey()).
			Info("Refreshed repository")
	})

	dispatcher := sync.NewDispatcher(e.Fs, pending, e.Clock, e.Log,
		e.Config.IsIgnorableMarker)
	scheduler := sync.NewScheduler(pending, e.Clock, resyncer.Flush,
		sync.SchedulerConfig{
			Window:        e.Config.DebounceWindow(),
			Tick:          e.Config.Tick(),
			MaxConcurrent: e.Config.MaxConcurrentFlushes,
		}, e.Log)

	var group errgroup.Group
	group.Go(func() error {
		scheduler.Run(ctx)
		return nil
	})

	dispatcher.Run(ctx, events)
	if ctx.Err() == nil {
		log.Info("Event stream ended")
	}
	cancel()
	_ = group.Wait()
}
