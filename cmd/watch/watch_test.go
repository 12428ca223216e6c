package watch

import (
	"context"
	"fmt"
	"io/ioutil"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	logrusTest "github.com/sirupsen/logrus/hooks/test"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/sidkik/reposync/cmd/util"
	"github.com/sidkik/reposync/pkg/annotate"
	"github.com/sidkik/reposync/pkg/config"
	"github.com/sidkik/reposync/pkg/fswatch"
	"github.com/sidkik/reposync/pkg/git"
	"github.com/sidkik/reposync/pkg/git/mocks"
	"github.com/sidkik/reposync/pkg/hooks"
	"github.com/sidkik/reposync/pkg/notify"
	"github.com/sidkik/reposync/pkg/status"
)

const repoDir = "/git/r"

func newTestEngine(t *testing.T, runner git.Runner) (*util.Engine, afero.Fs, clockwork.FakeClock) {
	fs := afero.NewMemMapFs()
	require.NoError(t, fs.MkdirAll(repoDir+"/.git", 0755))

	cfg := config.Default()
	cfg.BaseDirs = []string{"/git"}
	logger, _ := logrusTest.NewNullLogger()
	clock := clockwork.NewFakeClock()
	client := git.New(runner, git.DefaultTimeouts)

	return &util.Engine{
		Config:     cfg,
		Fs:         fs,
		Clock:      clock,
		Git:        client,
		Classifier: status.NewClassifier(client, fs, cfg, logger, false),
		Annotator:  annotate.New(fs, clock, cfg, logger),
		Notifier:   notify.NewWithProbes(logger),
		Hooks:      hooks.New(fs, "reposync", logger),
		Log:        logger,
	}, fs, clock
}

func TestWatchLoopFlushesAfterDebounce(t *testing.T) {
	runner := &mocks.Runner{}
	runner.On("Run", mock.Anything, mock.Anything, repoDir,
		"status", "--porcelain", "-z").Return(nil, nil)
	runner.On("Run", mock.Anything, mock.Anything, repoDir,
		"rev-parse", "--abbrev-ref", "--symbolic-full-name", "@{u}").
		Return([]byte("origin/main\n"), nil)
	runner.On("Run", mock.Anything, mock.Anything, repoDir,
		"rev-list", "--left-right", "--count", "HEAD...origin/main").
		Return([]byte("0\t0\n"), nil)

	e, fs, clock := newTestEngine(t, runner)
	events := make(chan fswatch.Event)
	done := make(chan struct{})
	go func() {
		watchLoop(context.Background(), e, events)
		close(done)
	}()

	events <- fswatch.Event{Dir: repoDir + "/", Flags: []string{"CLOSE_WRITE"}, Name: "main.go"}

	marker := repoDir + "/" + e.Config.MarkerFile
	expIcon := "Icon=" + e.Config.Icon(config.IconSynced)
	assert.Eventually(t, func() bool {
		clock.Advance(e.Config.Tick())
		contents, err := afero.ReadFile(fs, marker)
		return err == nil && strings.Contains(string(contents), expIcon)
	}, 5*time.Second, time.Millisecond)

	close(events)
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("watch loop did not stop after the event stream ended")
	}
}

func TestWatchLoopDropsMarkerEvents(t *testing.T) {
	runner := &mocks.Runner{}
	e, _, clock := newTestEngine(t, runner)

	events := make(chan fswatch.Event, 1)
	events <- fswatch.Event{Dir: repoDir + "/", Flags: []string{"CLOSE_WRITE"},
		Name: e.Config.MarkerFile}
	close(events)

	watchLoop(context.Background(), e, events)
	clock.Advance(10 * e.Config.DebounceWindow())
	runner.AssertNumberOfCalls(t, "Run", 0)
}

func TestNewSourceFsnotify(t *testing.T) {
	logger, _ := logrusTest.NewNullLogger()
	source, err := newSource(config.WatcherFsnotify, []string{repoDir}, logger)
	require.NoError(t, err)
	assert.IsType(t, &fswatch.Native{}, source)
}

func TestWatchLoopSettlesOnRealRepo(t *testing.T) {
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not installed")
	}

	for _, fetch := range []bool{false, true} {
		fetch := fetch
		t.Run(fmt.Sprintf("fetch=%t", fetch), func(t *testing.T) {
			tmp, err := ioutil.TempDir("", "reposync-watch")
			require.NoError(t, err)
			defer os.RemoveAll(tmp)

			root := newPushedRepo(t, tmp)

			cfg := config.Default()
			cfg.BaseDirs = []string{tmp}
			cfg.DebounceMs = 200
			cfg.TickMs = 20
			e := util.NewEngineWithConfig(cfg, util.SyncFlags{FetchRemotes: fetch})
			logger, hook := logrusTest.NewNullLogger()
			e.Log = logger

			ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
			defer cancel()
			events, err := fswatch.NewNative([]string{root}, logger).Start(ctx)
			require.NoError(t, err)

			done := make(chan struct{})
			go func() {
				watchLoop(ctx, e, events)
				close(done)
			}()

			require.NoError(t, ioutil.WriteFile(filepath.Join(root, "notes.txt"),
				[]byte("draft\n"), 0644))
			<-done

			var flushes int
			for _, entry := range hook.AllEntries() {
				if entry.Message == "Refreshed repository" {
					flushes++
					assert.Equal(t, config.IconUntracked, entry.Data["icon"])
				}
			}
			assert.Equal(t, 1, flushes)
		})
	}
}

// newPushedRepo creates a repository under dir whose branch tracks a bare
// remote and is up to date with it.
func newPushedRepo(t *testing.T, dir string) string {
	remote := filepath.Join(dir, "remote.git")
	root := filepath.Join(dir, "repo")
	require.NoError(t, os.MkdirAll(remote, 0755))
	require.NoError(t, os.MkdirAll(root, 0755))

	git := func(dir string, args ...string) {
		args = append([]string{"-c", "user.name=reposync", "-c", "user.email=ci@reposync.invalid"}, args...)
		cmd := exec.Command("git", args...)
		cmd.Dir = dir
		out, err := cmd.CombinedOutput()
		require.NoError(t, err, "git %v: %s", args, out)
	}
	git(remote, "init", "--quiet", "--bare")
	git(root, "init", "--quiet")
	git(root, "commit", "--quiet", "--allow-empty", "-m", "first")
	git(root, "remote", "add", "origin", remote)
	git(root, "push", "--quiet", "-u", "origin", "HEAD")
	return root
}
