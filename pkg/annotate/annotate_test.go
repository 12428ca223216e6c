package annotate

import (
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	logrusTest "github.com/sirupsen/logrus/hooks/test"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sidkik/reposync/pkg/config"
	"github.com/sidkik/reposync/pkg/status"
)

func TestWriteStatusMarker(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, fs.MkdirAll("/git/r1/.git", 0755))

	now := time.Date(2026, 10, 14, 12, 0, 0, 0, time.UTC)
	logger, _ := logrusTest.NewNullLogger()
	annotator := New(fs, clockwork.NewFakeClockAt(now), config.Default(), logger)

	tests := []struct {
		state      status.SyncState
		expContent string
	}{
		{status.SyncState{Kind: status.LocalCommitted}, "[Desktop Entry]\nIcon=folder-yellow\n"},
		{status.SyncState{Kind: status.UpToDate}, "[Desktop Entry]\nIcon=folder-green\n"},
		{status.SyncState{Kind: status.NoUpstreamMatched, Ahead: 1}, "[Desktop Entry]\nIcon=folder-violet\n"},
		{status.SyncState{Kind: status.NoUpstreamUnresolved}, "[Desktop Entry]\nIcon=folder-orange\n"},
	}

	for _, test := range tests {
		require.NoError(t, annotator.WriteStatusMarker("/git/r1", test.state))

		content, err := afero.ReadFile(fs, "/git/r1/.directory")
		require.NoError(t, err)
		assert.Equal(t, test.expContent, string(content))
	}

	for _, dir := range []string{"/git/r1", "/git"} {
		fi, err := fs.Stat(dir)
		require.NoError(t, err)
		assert.True(t, fi.ModTime().Equal(now), dir)
	}
}

func TestWriteStatusMarkerCustomIcons(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, fs.MkdirAll("/git/r1", 0755))

	cfg := config.Default()
	cfg.MarkerFile = ".icon"
	cfg.Icons[config.IconUntracked] = "emblem-new"
	logger, _ := logrusTest.NewNullLogger()
	annotator := New(fs, clockwork.NewFakeClock(), cfg, logger)

	require.NoError(t, annotator.WriteStatusMarker("/git/r1",
		status.SyncState{Kind: status.LocalUntracked}))
	content, err := afero.ReadFile(fs, "/git/r1/.icon")
	require.NoError(t, err)
	assert.Equal(t, "[Desktop Entry]\nIcon=emblem-new\n", string(content))
}

func TestWriteStatusMarkerReadOnly(t *testing.T) {
	fs := afero.NewReadOnlyFs(afero.NewMemMapFs())
	logger, _ := logrusTest.NewNullLogger()
	annotator := New(fs, clockwork.NewFakeClock(), config.Default(), logger)

	err := annotator.WriteStatusMarker("/git/r1", status.SyncState{Kind: status.UpToDate})
	assert.Error(t, err)
}
