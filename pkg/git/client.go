// Package git wraps the git command line. Every call carries an explicit
// timeout so that one wedged repository cannot stall the others.
package git

import (
	"bytes"
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/sidkik/reposync/pkg/errors"
)

// Timeouts bounds each class of git invocation.
type Timeouts struct {
	Status time.Duration
	Query  time.Duration
	Count  time.Duration
	Fetch  time.Duration
}

// DefaultTimeouts are the timeouts used when none are configured.
var DefaultTimeouts = Timeouts{
	Status: 15 * time.Second,
	Query:  5 * time.Second,
	Count:  10 * time.Second,
	Fetch:  60 * time.Second,
}

// Client runs git queries against a repository directory.
type Client struct {
	runner   Runner
	timeouts Timeouts
}

// New returns a Client that runs git through runner.
func New(runner Runner, timeouts Timeouts) Client {
	return Client{runner: runner, timeouts: timeouts}
}

// StatusEntry is one record of `git status --porcelain`.
type StatusEntry struct {
	X, Y byte
	Path string
}

// Untracked reports whether the entry is an untracked file.
func (e StatusEntry) Untracked() bool {
	return e.X == '?' && e.Y == '?'
}

// Status lists the working tree changes of the repository at dir.
func (c Client) Status(ctx context.Context, dir string) ([]StatusEntry, error) {
	out, err := c.runner.Run(ctx, c.timeouts.Status, dir,
		"status", "--porcelain", "-z")
	if err != nil {
		return nil, err
	}
	return ParseStatus(out), nil
}

// ParseStatus parses the NUL separated output of `git status --porcelain -z`.
func ParseStatus(out []byte) []StatusEntry {
	var entries []StatusEntry
	fields := bytes.Split(out, []byte{0})
	for i := 0; i < len(fields); i++ {
		field := fields[i]
		if len(field) < 4 {
			continue
		}

		entry := StatusEntry{X: field[0], Y: field[1], Path: string(field[3:])}
		entries = append(entries, entry)

		// Renames and copies are followed by the original path.
		if entry.X == 'R' || entry.X == 'C' {
			i++
		}
	}
	return entries
}

// Upstream returns the upstream of the current branch, such as
// "origin/main". A branch without an upstream fails with a
// errors.SubprocessFailure.
func (c Client) Upstream(ctx context.Context, dir string) (string, error) {
	out, err := c.runner.Run(ctx, c.timeouts.Query, dir,
		"rev-parse", "--abbrev-ref", "--symbolic-full-name", "@{u}")
	if err != nil {
		return "", err
	}

	upstream := strings.TrimSpace(string(out))
	if upstream == "" {
		return "", errors.New("empty upstream")
	}
	return upstream, nil
}

// Remotes lists the configured remotes in the order git reports them.
func (c Client) Remotes(ctx context.Context, dir string) ([]string, error) {
	out, err := c.runner.Run(ctx, c.timeouts.Query, dir, "remote")
	if err != nil {
		return nil, err
	}
	return strings.Fields(string(out)), nil
}

// RefExists reports whether ref resolves to a commit.
func (c Client) RefExists(ctx context.Context, dir, ref string) (bool, error) {
	_, err := c.runner.Run(ctx, c.timeouts.Query, dir,
		"rev-parse", "--verify", "--quiet", ref)
	if err == nil {
		return true, nil
	}
	if _, ok := errors.RootCause(err).(errors.SubprocessFailure); ok {
		return false, nil
	}
	return false, err
}

// AheadBehind counts the commits only on HEAD and only on ref.
func (c Client) AheadBehind(ctx context.Context, dir, ref string) (ahead, behind int, err error) {
	out, err := c.runner.Run(ctx, c.timeouts.Count, dir,
		"rev-list", "--left-right", "--count", "HEAD..."+ref)
	if err != nil {
		return 0, 0, err
	}
	return parseCounts(out)
}

func parseCounts(out []byte) (ahead, behind int, err error) {
	fields := strings.Fields(string(out))
	if len(fields) != 2 {
		return 0, 0, errors.New("unexpected rev-list output: " +
			strconv.Quote(string(out)))
	}

	ahead, err = strconv.Atoi(fields[0])
	if err != nil {
		return 0, 0, errors.WithContext(err, "parse ahead count")
	}
	behind, err = strconv.Atoi(fields[1])
	if err != nil {
		return 0, 0, errors.WithContext(err, "parse behind count")
	}
	return ahead, behind, nil
}

// Fetch updates the remote tracking refs of every remote.
func (c Client) Fetch(ctx context.Context, dir string) error {
	_, err := c.runner.Run(ctx, c.timeouts.Fetch, dir,
		"fetch", "--all", "--quiet", "--prune")
	return err
}

// Version returns the output of `git --version`.
func (c Client) Version(ctx context.Context) (string, error) {
	out, err := c.runner.Run(ctx, c.timeouts.Query, "", "--version")
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(out)), nil
}
