package errors

import (
	"fmt"
	"strings"
)

// ErrSubprocessTimeout is returned when an external command is killed after
// exceeding its deadline.
var ErrSubprocessTimeout = New("subprocess timed out")

// ErrNotifierUnavailable is returned when none of the file manager IPC
// mechanisms exist on this host.
var ErrNotifierUnavailable = New("no file manager notification mechanism available")

// SubprocessFailure represents an external command that exited non-zero.
type SubprocessFailure struct {
	Args     []string
	ExitCode int
	Stderr   string
}

func (err SubprocessFailure) Error() string {
	msg := fmt.Sprintf("%s exited with status %d", strings.Join(err.Args, " "), err.ExitCode)
	if err.Stderr != "" {
		msg += ": " + err.Stderr
	}
	return msg
}

// FileNotFound represents when we were unable to access a file
// because the path didn't exist.
type FileNotFound struct {
	Path string
}

func (err FileNotFound) Error() string {
	return fmt.Sprintf("%q does not exist", err.Path)
}
