package util

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"io/ioutil"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"syscall"
	"testing"
	"time"

	"github.com/ghodss/yaml"
	"github.com/stretchr/testify/require"

	"github.com/sidkik/reposync/pkg/config"
	"github.com/sidkik/reposync/pkg/errors"
)

// TestHelper runs the reposync binary against repositories in a scratch
// home directory.
type TestHelper struct {
	Home    string
	BaseDir string
	Binary  string
}

// NewTestHelper creates a scratch home containing a reposync config whose
// only base directory is `<home>/git`.
func NewTestHelper(binary string) (*TestHelper, error) {
	home, err := ioutil.TempDir("", "reposync-ci")
	if err != nil {
		return nil, errors.WithContext(err, "create home")
	}

	helper := &TestHelper{Home: home, BaseDir: filepath.Join(home, "git"), Binary: binary}
	if err := os.MkdirAll(helper.BaseDir, 0755); err != nil {
		return nil, errors.WithContext(err, "create base dir")
	}

	cfg := config.Config{
		Version:  config.SupportedConfigVersion,
		BaseDirs: []string{helper.BaseDir},
		// Keep the watch tests fast.
		DebounceMs: 300,
		TickMs:     50,
	}
	cfgBytes, err := yaml.Marshal(cfg)
	if err != nil {
		return nil, errors.WithContext(err, "marshal config")
	}
	if err := ioutil.WriteFile(filepath.Join(home, ".reposync.yaml"), cfgBytes, 0644); err != nil {
		return nil, errors.WithContext(err, "write config")
	}
	return helper, nil
}

// Close removes the scratch home.
func (helper *TestHelper) Close() error {
	return os.RemoveAll(helper.Home)
}

func (helper *TestHelper) env() []string {
	return append(os.Environ(),
		"HOME="+helper.Home,
		"GIT_AUTHOR_NAME=reposync", "GIT_AUTHOR_EMAIL=ci@reposync.invalid",
		"GIT_COMMITTER_NAME=reposync", "GIT_COMMITTER_EMAIL=ci@reposync.invalid",
		"GIT_CONFIG_NOSYSTEM=1")
}

// Start starts the given reposync command. It returns a reader for stdout,
// and a channel for obtaining any errors after starting the command. The
// command is stopped with SIGTERM when ctx is cancelled.
func (helper *TestHelper) Start(ctx context.Context, args ...string) (
	io.Reader, chan error, error) {

	cmd := exec.Command(helper.Binary, args...)
	cmd.Env = helper.env()

	stdoutReader, err := cmd.StdoutPipe()
	if err != nil {
		return nil, nil, err
	}

	stderr := bytes.NewBuffer(nil)
	cmd.Stderr = stderr

	if err := cmd.Start(); err != nil {
		return nil, nil, err
	}

	errChan := make(chan error, 1)
	go func() {
		waitErr := make(chan error)
		go func() {
			waitErr <- cmd.Wait()
			close(waitErr)
		}()

		defer close(errChan)
		select {
		case <-ctx.Done():
			if err := cmd.Process.Signal(syscall.SIGTERM); err != nil {
				errChan <- errors.WithContext(err, "kill")
				return
			}
			if err := <-waitErr; err != nil {
				errChan <- fmt.Errorf("unclean exit (%s): stderr: %s", err, stderr)
			}
		case err := <-waitErr:
			if err != nil {
				errChan <- fmt.Errorf("crashed (%s): stderr: %s", err, stderr)
			}
		}
	}()
	return stdoutReader, errChan, nil
}

// Run runs the given reposync command, and returns its stdout.
func (helper *TestHelper) Run(ctx context.Context, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, helper.Binary, args...)
	cmd.Env = helper.env()
	out, err := cmd.Output()
	return string(out), err
}

// Git runs git in dir, failing the test on error.
func (helper *TestHelper) Git(t *testing.T, dir string, args ...string) string {
	cmd := exec.Command("git", args...)
	cmd.Dir = dir
	cmd.Env = helper.env()
	out, err := cmd.CombinedOutput()
	require.NoError(t, err, "git %s: %s", strings.Join(args, " "), out)
	return string(out)
}

// NewRepo creates a repository with one commit under the base directory.
func (helper *TestHelper) NewRepo(t *testing.T, name string) string {
	dir := filepath.Join(helper.BaseDir, name)
	require.NoError(t, os.MkdirAll(dir, 0755))
	helper.Git(t, dir, "init", "--quiet", "--initial-branch=main")
	helper.WriteFile(t, filepath.Join(dir, "README.md"), "# "+name+"\n")
	helper.Git(t, dir, "add", "README.md")
	helper.Git(t, dir, "commit", "--quiet", "-m", "Initial commit")
	return dir
}

// NewRemote creates a bare repository outside the base directory and
// pushes dir's current branch to it as `origin`.
func (helper *TestHelper) NewRemote(t *testing.T, dir, branch string, setUpstream bool) {
	remote := filepath.Join(helper.Home, "remotes", filepath.Base(dir)+".git")
	require.NoError(t, os.MkdirAll(remote, 0755))
	helper.Git(t, remote, "init", "--quiet", "--bare")
	helper.Git(t, dir, "remote", "add", "origin", remote)

	args := []string{"push", "--quiet", "origin", "HEAD:" + branch}
	if setUpstream {
		args = []string{"push", "--quiet", "-u", "origin", "HEAD:" + branch}
	}
	helper.Git(t, dir, args...)
}

// WriteFile writes contents to path, failing the test on error.
func (helper *TestHelper) WriteFile(t *testing.T, path, contents string) {
	require.NoError(t, ioutil.WriteFile(path, []byte(contents), 0644))
}

// Icon returns the icon token recorded in dir's marker file.
func Icon(dir string) (string, error) {
	contents, err := ioutil.ReadFile(filepath.Join(dir, ".directory"))
	if err != nil {
		return "", err
	}
	for _, line := range strings.Split(string(contents), "\n") {
		if strings.HasPrefix(line, "Icon=") {
			return strings.TrimPrefix(line, "Icon="), nil
		}
	}
	return "", errors.New("no Icon line")
}

// WaitForIcon polls dir's marker until it shows exp.
func WaitForIcon(dir, exp string, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	var last string
	for time.Now().Before(deadline) {
		last, _ = Icon(dir)
		if last == exp {
			return nil
		}
		time.Sleep(50 * time.Millisecond)
	}
	return fmt.Errorf("icon of %s is %q, expected %q", dir, last, exp)
}
