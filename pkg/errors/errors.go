// Package errors contains the error helpers used throughout reposync. Errors
// are annotated with context as they travel up the call stack so that a
// failure deep inside a git invocation still reads like a sentence by the
// time it reaches the user.
package errors

import (
	goErrors "errors"
	"fmt"
)

// New returns an error with the given message.
func New(msg string) error {
	return goErrors.New(msg)
}

// Is is a convenience wrapper around the standard library's errors.Is.
func Is(err, target error) bool {
	return goErrors.Is(err, target)
}

// As is a convenience wrapper around the standard library's errors.As.
func As(err error, target interface{}) bool {
	return goErrors.As(err, target)
}

type withContext struct {
	context string
	err     error
}

// WithContext annotates `err` with a description of what was being attempted
// when it occurred. Returns nil if `err` is nil.
func WithContext(err error, context string) error {
	if err == nil {
		return nil
	}
	return withContext{context: context, err: err}
}

func (err withContext) Error() string {
	return fmt.Sprintf("%s: %s", err.context, err.err)
}

func (err withContext) Unwrap() error {
	return err.err
}

// RootCause strips all the context added by WithContext and returns the
// original error.
func RootCause(err error) error {
	for {
		ctxErr, ok := err.(withContext)
		if !ok {
			return err
		}
		err = ctxErr.err
	}
}

// Friendly is implemented by errors whose message is meant to be shown to the
// user as is.
type Friendly interface {
	FriendlyMessage() string
}

type friendlyError struct {
	msg string
}

// NewFriendlyError creates an error whose message is presented directly to
// the user, without the context chain.
func NewFriendlyError(format string, args ...interface{}) error {
	return friendlyError{fmt.Sprintf(format, args...)}
}

func (err friendlyError) Error() string {
	return err.msg
}

func (err friendlyError) FriendlyMessage() string {
	return err.msg
}
