package cmd

import (
	"os"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	hooksCmd "github.com/sidkik/reposync/cmd/hooks"
	"github.com/sidkik/reposync/cmd/onsave"
	syncCmd "github.com/sidkik/reposync/cmd/sync"
	"github.com/sidkik/reposync/cmd/util"
	"github.com/sidkik/reposync/cmd/version"
	"github.com/sidkik/reposync/cmd/watch"
)

// verboseLogKey is the environment variable used to enable verbose logging.
// When it's set to `true`, Debug events are logged, rather than just Info and
// above.
const verboseLogKey = "REPOSYNC_LOG_VERBOSE"

// Execute runs the main CLI process.
func Execute() {
	if err := newRootCommand().Execute(); err != nil {
		util.HandleFatalError(err)
	}
}

func newRootCommand() *cobra.Command {
	var verbose bool
	rootCmd := &cobra.Command{
		Use:   "reposync",
		Short: "Keep folder icons in sync with git status",
		Long: `reposync marks every repository folder with an icon describing its git
state: uncommitted changes, untracked files, no remote, in sync, or waiting
to be pushed or pulled.`,
		SilenceUsage: true,

		// The call to rootCmd.Execute prints the error, so we silence errors
		// here to avoid double printing.
		SilenceErrors: true,
		PersistentPreRun: func(_ *cobra.Command, _ []string) {
			if verbose || os.Getenv(verboseLogKey) == "true" {
				log.SetLevel(log.DebugLevel)
			}
		},
	}
	rootCmd.PersistentFlags().BoolVar(&verbose, "verbose", false, "Log debug messages")
	rootCmd.AddCommand(
		syncCmd.New(),
		watch.New(),
		onsave.New(),
		hooksCmd.New(),
		version.New(),
	)
	return rootCmd
}
