package sync

import (
	"context"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	logrusTest "github.com/sirupsen/logrus/hooks/test"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sidkik/reposync/pkg/config"
	"github.com/sidkik/reposync/pkg/fswatch"
)

func newTestDispatcher(t *testing.T) (*Dispatcher, *Pending, clockwork.FakeClock) {
	fs := afero.NewMemMapFs()
	require.NoError(t, fs.MkdirAll("/git/alpha/.git", 0755))
	require.NoError(t, fs.MkdirAll("/git/alpha/src", 0755))
	require.NoError(t, fs.MkdirAll("/git/beta/.git", 0755))

	pending := NewPending()
	clock := clockwork.NewFakeClockAt(epoch)
	logger, _ := logrusTest.NewNullLogger()
	cfg := config.Default()
	return NewDispatcher(fs, pending, clock, logger, cfg.IsIgnorableMarker), pending, clock
}

func TestDispatch(t *testing.T) {
	dispatcher, pending, clock := newTestDispatcher(t)

	tests := []struct {
		name    string
		event   fswatch.Event
		expRoot string
		expOk   bool
	}{
		{
			name:    "NestedFile",
			event:   fswatch.Event{Dir: "/git/alpha/src/", Flags: []string{"CLOSE_WRITE"}, Name: "main.go"},
			expRoot: "/git/alpha",
			expOk:   true,
		},
		{
			name:    "InsideGitDir",
			event:   fswatch.Event{Dir: "/git/beta/.git/", Flags: []string{"MOVED_TO"}, Name: "HEAD"},
			expRoot: "/git/beta",
			expOk:   true,
		},
		{
			name:    "DeletedDirectory",
			event:   fswatch.Event{Dir: "/git/alpha/gone/deeper/", Flags: []string{"DELETE"}, Name: "x"},
			expRoot: "/git/alpha",
			expOk:   true,
		},
		{
			name:  "Marker",
			event: fswatch.Event{Dir: "/git/alpha/", Flags: []string{"CLOSE_WRITE"}, Name: ".directory"},
		},
		{
			name:    "MarkerBelowRoot",
			event:   fswatch.Event{Dir: "/git/alpha/src/", Flags: []string{"CREATE"}, Name: ".directory"},
			expRoot: "/git/alpha",
			expOk:   true,
		},
		{
			name:  "IndexLock",
			event: fswatch.Event{Dir: "/git/alpha/.git/", Flags: []string{"CREATE"}, Name: "index.lock"},
		},
		{
			name:  "FetchHead",
			event: fswatch.Event{Dir: "/git/beta/.git/", Flags: []string{"CLOSE_WRITE"}, Name: "FETCH_HEAD"},
		},
		{
			name:  "RefLock",
			event: fswatch.Event{Dir: "/git/beta/.git/refs/remotes/origin/", Flags: []string{"CREATE"}, Name: "main.lock"},
		},
		{
			name:    "RefUpdate",
			event:   fswatch.Event{Dir: "/git/beta/.git/refs/remotes/origin/", Flags: []string{"MOVED_TO"}, Name: "main"},
			expRoot: "/git/beta",
			expOk:   true,
		},
		{
			name:    "LockNameInWorkTree",
			event:   fswatch.Event{Dir: "/git/alpha/", Flags: []string{"CLOSE_WRITE"}, Name: "Cargo.lock"},
			expRoot: "/git/alpha",
			expOk:   true,
		},
		{
			name:  "OutsideRepos",
			event: fswatch.Event{Dir: "/tmp/", Flags: []string{"CREATE"}, Name: "scratch"},
		},
	}

	for _, test := range tests {
		test := test
		t.Run(test.name, func(t *testing.T) {
			root, ok := dispatcher.Dispatch(test.event)
			assert.Equal(t, test.expOk, ok)
			assert.Equal(t, test.expRoot, root)
		})
	}

	assert.Equal(t, 2, pending.Len())
	last, ok := pending.LastEvent("/git/alpha")
	assert.True(t, ok)
	assert.Equal(t, clock.Now(), last)
}

func TestDispatchMarkerNeverSchedules(t *testing.T) {
	dispatcher, pending, _ := newTestDispatcher(t)

	for i := 0; i < 10; i++ {
		dispatcher.Dispatch(fswatch.Event{Dir: "/git/alpha/", Name: ".directory",
			Flags: []string{"CLOSE_WRITE", "CLOSE"}})
	}
	assert.Equal(t, 0, pending.Len())
}

func TestDispatcherRun(t *testing.T) {
	dispatcher, pending, clock := newTestDispatcher(t)

	events := make(chan fswatch.Event)
	done := make(chan struct{})
	go func() {
		dispatcher.Run(context.Background(), events)
		close(done)
	}()

	events <- fswatch.Event{Dir: "/git/alpha/", Name: "a"}
	clock.Advance(time.Second)
	events <- fswatch.Event{Dir: "/git/alpha/", Name: "b"}
	events <- fswatch.Event{Dir: "/git/beta/", Name: "c"}
	close(events)

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after the stream closed")
	}

	assert.Equal(t, 2, pending.Len())
	last, _ := pending.LastEvent("/git/alpha")
	assert.Equal(t, epoch.Add(time.Second), last)
}

func TestDispatcherRunCancel(t *testing.T) {
	dispatcher, _, _ := newTestDispatcher(t)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		dispatcher.Run(ctx, make(chan fswatch.Event))
		close(done)
	}()
	cancel()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
