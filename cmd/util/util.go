package util

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime/debug"

	log "github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/sidkik/reposync/pkg/errors"
)

// exit and stderr are overridden in tests.
var (
	exit             = os.Exit
	stderr io.Writer = os.Stderr
)

// HandleFatalError prints err and exits. Errors created with
// errors.NewFriendlyError are printed as is, without the context chain.
func HandleFatalError(err error) {
	if friendly, ok := errors.RootCause(err).(errors.Friendly); ok {
		fmt.Fprintln(stderr, friendly.FriendlyMessage())
	} else {
		log.WithError(err).Error("Fatal error")
	}
	exit(1)
}

// HandlePanic logs the stack trace of a panic before exiting. It must be
// deferred.
func HandlePanic() {
	if r := recover(); r != nil {
		log.WithField("panic", r).WithField("stack", string(debug.Stack())).
			Error("Unexpected panic")
		exit(1)
	}
}

// OpenLogFile returns a rotating writer for path. The parent directory is
// created on the first write.
func OpenLogFile(path string) io.WriteCloser {
	return &lumberjack.Logger{
		Filename:   path,
		MaxSize:    10, // megabytes
		MaxBackups: 3,
		MaxAge:     28, // days
	}
}

// AppendLogLine appends line to the log file at path.
func AppendLogLine(path, line string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return errors.WithContext(err, "create log dir")
	}

	w := OpenLogFile(path)
	defer w.Close()
	if _, err := fmt.Fprintln(w, line); err != nil {
		return errors.WithContext(err, "write log")
	}
	return nil
}
