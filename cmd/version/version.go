package version

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/sidkik/reposync/pkg/git"
	"github.com/sidkik/reposync/pkg/version"
)

// stdout is overridden in tests.
var stdout io.Writer = os.Stdout

// New creates a new `version` command.
func New() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version of reposync and git",
		Run: func(_ *cobra.Command, _ []string) {
			run(context.Background(), git.New(git.ExecRunner{}, git.DefaultTimeouts))
		},
	}
}

type versioner interface {
	Version(ctx context.Context) (string, error)
}

func run(ctx context.Context, client versioner) {
	fmt.Fprintf(stdout, "reposync version: %s\n", version.String())
	fmt.Fprintf(stdout, "hook version:     %s\n", version.HookVersion)

	gitVersion, err := client.Version(ctx)
	if err != nil {
		gitVersion = fmt.Sprintf("unavailable (%s)", err)
	}
	fmt.Fprintf(stdout, "git:              %s\n", gitVersion)
}
