// Package fswatch turns filesystem change notifications into Event records.
// Two sources are supported: an inotifywait subprocess and the native
// fsnotify watcher.
package fswatch

import (
	"context"
	"path/filepath"
	"regexp"
	"strings"
)

// Source produces change events until ctx is cancelled or the underlying
// watcher stops. The returned channel is closed when the source is done.
type Source interface {
	Start(ctx context.Context) (<-chan Event, error)
}

// Event is one change notification. Dir is the directory the change happened
// in, and Name is the affected entry within it. Name is empty when the event
// is about Dir itself.
type Event struct {
	Dir   string
	Flags []string
	Name  string
}

// Path returns the full path of the affected entry.
func (e Event) Path() string {
	if e.Name == "" {
		return filepath.Clean(e.Dir)
	}
	return filepath.Join(e.Dir, e.Name)
}

// Has reports whether the event carries flag, e.g. "ISDIR".
func (e Event) Has(flag string) bool {
	for _, f := range e.Flags {
		if f == flag {
			return true
		}
	}
	return false
}

var flagsPattern = regexp.MustCompile(`^[A-Z_]+(,[A-Z_]+)*$`)

// ParseEvent parses one line of `inotifywait -m` output, which has the form
// `<dir> <FLAG,FLAG> [<name>]`. Both dir and name may contain spaces.
func ParseEvent(line string) (Event, bool) {
	line = strings.TrimRight(line, "\r\n")
	if strings.TrimSpace(line) == "" {
		return Event{}, false
	}

	fields := strings.Split(line, " ")
	flagsIdx := -1
	for i := 1; i < len(fields); i++ {
		if !flagsPattern.MatchString(fields[i]) {
			continue
		}
		// inotifywait prints watched directories with a trailing slash, so
		// prefer the flags token that directly follows one.
		if strings.HasSuffix(fields[i-1], "/") {
			flagsIdx = i
			break
		}
		if flagsIdx == -1 {
			flagsIdx = i
		}
	}
	if flagsIdx == -1 {
		return Event{}, false
	}

	dir := strings.Join(fields[:flagsIdx], " ")
	if dir == "" {
		return Event{}, false
	}
	return Event{
		Dir:   dir,
		Flags: strings.Split(fields[flagsIdx], ","),
		Name:  strings.Join(fields[flagsIdx+1:], " "),
	}, true
}
