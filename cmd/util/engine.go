package util

import (
	"fmt"
	"io"
	"os"

	"github.com/buger/goterm"
	"github.com/jonboulle/clockwork"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/sidkik/reposync/pkg/annotate"
	"github.com/sidkik/reposync/pkg/config"
	"github.com/sidkik/reposync/pkg/git"
	"github.com/sidkik/reposync/pkg/hooks"
	"github.com/sidkik/reposync/pkg/notify"
	"github.com/sidkik/reposync/pkg/repo"
	"github.com/sidkik/reposync/pkg/status"
	"github.com/sidkik/reposync/pkg/sync"
)

// SyncFlags are the flags shared by every command that resyncs repositories.
type SyncFlags struct {
	Quiet        bool
	Log          bool
	EnsureHooks  bool
	ForceHooks   bool
	FetchRemotes bool
}

// Register adds the flags to cmd.
func (f *SyncFlags) Register(cmd *cobra.Command) {
	flags := cmd.Flags()
	flags.BoolVarP(&f.Quiet, "quiet", "q", false, "Only print warnings and errors")
	flags.BoolVarP(&f.Log, "log", "l", false, "Append a summary line to the log file")
	flags.BoolVarP(&f.EnsureHooks, "ensure-hooks", "e", false,
		"Install or upgrade the git hooks of each repository")
	flags.BoolVarP(&f.ForceHooks, "force-hooks", "F", false,
		"Reinstall the git hooks even if they are up to date (implies --ensure-hooks)")
	flags.BoolVar(&f.FetchRemotes, "fetch-remotes", false,
		"Fetch remotes before comparing against them")
}

// ConfigureLogging applies the verbosity implied by the flags.
func (f SyncFlags) ConfigureLogging() {
	if f.Quiet && log.GetLevel() != log.DebugLevel {
		log.SetLevel(log.WarnLevel)
	}
}

// Engine bundles the components used to resync repositories.
type Engine struct {
	Config     config.Config
	Fs         afero.Fs
	Clock      clockwork.Clock
	Git        git.Client
	Classifier status.Classifier
	Annotator  annotate.Annotator
	Notifier   *notify.Notifier
	Hooks      hooks.Installer
	Log        log.FieldLogger

	flags SyncFlags
}

// fs is used for mock tests.
var fs = afero.NewOsFs()

// isTerminal will be overridden in mock tests
var isTerminal = term.IsTerminal

// NewEngine parses the user's config and builds an Engine.
func NewEngine(flags SyncFlags) (*Engine, error) {
	cfg, err := config.Parse()
	if err != nil {
		return nil, err
	}
	return NewEngineWithConfig(cfg, flags), nil
}

// NewEngineWithConfig builds an Engine from an already parsed config.
func NewEngineWithConfig(cfg config.Config, flags SyncFlags) *Engine {
	if flags.ForceHooks {
		flags.EnsureHooks = true
	}

	logger := log.StandardLogger()
	clock := clockwork.NewRealClock()
	client := git.New(git.ExecRunner{}, git.Timeouts{
		Status: cfg.StatusTimeout(),
		Query:  cfg.QueryTimeout(),
		Count:  cfg.CountTimeout(),
		Fetch:  cfg.FetchTimeout(),
	})

	return &Engine{
		Config:     cfg,
		Fs:         fs,
		Clock:      clock,
		Git:        client,
		Classifier: status.NewClassifier(client, fs, cfg, logger, flags.FetchRemotes),
		Annotator:  annotate.New(fs, clock, cfg, logger),
		Notifier:   notify.New(cfg.NotifyTimeout(), logger),
		Hooks:      hooks.New(fs, executable(), logger),
		Log:        logger,
		flags:      flags,
	}
}

// Resyncer returns a Resyncer that calls report after every repository.
func (e *Engine) Resyncer(report func(sync.Result)) *sync.Resyncer {
	return sync.NewResyncer(e.Classifier, e.Annotator, e.Notifier, sync.ResyncOptions{
		Hooks:       e.Hooks,
		EnsureHooks: e.flags.EnsureHooks,
		ForceHooks:  e.flags.ForceHooks,
		Report:      report,
	}, e.Log)
}

// Repos resolves the command line targets into repositories. With no
// targets the configured base directories are scanned.
func (e *Engine) Repos(targets []string) ([]string, error) {
	if len(targets) == 0 {
		return repo.ListRepos(e.Fs, e.Config.BaseDirs)
	}
	return repo.CollectTargets(e.Fs, targets)
}

// WriteSummary appends the summary of results to the configured log file
// if --log was given.
func (e *Engine) WriteSummary(results []sync.Result) {
	if !e.flags.Log {
		return
	}
	line := sync.Summarize(results).Line(e.Clock.Now())
	if err := AppendLogLine(e.Config.LogPath, line); err != nil {
		e.Log.WithError(err).Warn("Failed to write summary log")
	}
}

func executable() string {
	path, err := os.Executable()
	if err != nil {
		return "reposync"
	}
	return path
}

var iconColors = map[string]int{
	config.IconNotInit:     goterm.BLACK,
	config.IconCommit:      goterm.YELLOW,
	config.IconUntracked:   goterm.RED,
	config.IconNoRemote:    goterm.MAGENTA,
	config.IconSynced:      goterm.GREEN,
	config.IconPendingSync: goterm.BLUE,
}

// Printer writes per-repository results for humans.
type Printer struct {
	Out   io.Writer
	Quiet bool
	Color bool
}

// NewPrinter returns a Printer writing to stdout. Output is colored only
// when stdout is a terminal.
func NewPrinter(quiet bool) Printer {
	return Printer{
		Out:   os.Stdout,
		Quiet: quiet,
		Color: isTerminal(int(os.Stdout.Fd())),
	}
}

// Result prints `<repo>: <icon key>`.
func (p Printer) Result(result sync.Result) {
	if p.Quiet {
		return
	}
	if result.HooksInstalled {
		fmt.Fprintf(p.Out, "[hooks] updated in %s\n", result.Root)
	}

	key := result.State.IconKey()
	if p.Color {
		key = goterm.Color(key, iconColors[key])
	}
	fmt.Fprintf(p.Out, "%s: %s\n", result.Root, key)
}

// Total prints the number of repositories processed.
func (p Printer) Total(n int) {
	if p.Quiet {
		return
	}
	fmt.Fprintf(p.Out, "Total: %d repos\n", n)
}
