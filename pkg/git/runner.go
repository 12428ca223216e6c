package git

//go:generate mockery -name Runner

import (
	"bytes"
	"context"
	"os/exec"
	"strings"
	"time"

	"github.com/sidkik/reposync/pkg/errors"
)

// Runner executes a git subprocess in dir and returns its stdout. A run that
// exceeds timeout fails with an error wrapping errors.ErrSubprocessTimeout,
// and a non-zero exit fails with errors.SubprocessFailure.
type Runner interface {
	Run(ctx context.Context, timeout time.Duration, dir string, args ...string) ([]byte, error)
}

// ExecRunner runs the git binary found on PATH.
type ExecRunner struct {
	// Binary defaults to "git".
	Binary string
}

// Run implements Runner.
func (r ExecRunner) Run(ctx context.Context, timeout time.Duration, dir string,
	args ...string) ([]byte, error) {
	binary := r.Binary
	if binary == "" {
		binary = "git"
	}

	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(ctx, binary, args...)
	cmd.Dir = dir
	// Never block on a credential prompt, and never take index.lock for a
	// read-only command so that watchers don't see our own queries.
	cmd.Env = append(cmd.Environ(), "GIT_TERMINAL_PROMPT=0", "GIT_OPTIONAL_LOCKS=0")

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	if ctx.Err() == context.DeadlineExceeded {
		return nil, errors.WithContext(errors.ErrSubprocessTimeout,
			strings.Join(append([]string{binary}, args...), " "))
	}
	if err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			return nil, errors.SubprocessFailure{
				Args:     append([]string{binary}, args...),
				ExitCode: exitErr.ExitCode(),
				Stderr:   strings.TrimSpace(stderr.String()),
			}
		}
		return nil, errors.WithContext(err, "run "+binary)
	}
	return stdout.Bytes(), nil
}
