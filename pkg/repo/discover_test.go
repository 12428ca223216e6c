package repo

import (
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestFs(t *testing.T) afero.Fs {
	fs := afero.NewMemMapFs()
	for _, dir := range []string{
		"/home/user/git/alpha/.git",
		"/home/user/git/beta/.git/objects",
		"/home/user/git/alpha/sub/pkg",
		"/home/user/git/plain",
		"/opt/work/gamma/.git",
	} {
		require.NoError(t, fs.MkdirAll(dir, 0755))
	}
	// A worktree, where .git is a file.
	require.NoError(t, afero.WriteFile(fs, "/home/user/git/worktree/.git",
		[]byte("gitdir: /home/user/git/alpha/.git/worktrees/wt\n"), 0644))
	require.NoError(t, afero.WriteFile(fs, "/home/user/git/README", []byte("hi"), 0644))
	return fs
}

func TestListRepos(t *testing.T) {
	fs := newTestFs(t)

	repos, err := ListRepos(fs, []string{"/opt/work", "/home/user/git", "/missing", "/home/user/git/"})
	require.NoError(t, err)
	assert.Equal(t, []string{
		"/home/user/git/alpha",
		"/home/user/git/beta",
		"/home/user/git/worktree",
		"/opt/work/gamma",
	}, repos)
}

func TestCollectTargets(t *testing.T) {
	fs := newTestFs(t)

	repos, err := CollectTargets(fs, []string{"/home/user/git/alpha", "/opt/work", "/home/user/git/plain"})
	require.NoError(t, err)
	assert.Equal(t, []string{"/home/user/git/alpha", "/opt/work/gamma"}, repos)
}

func TestFindRoot(t *testing.T) {
	fs := newTestFs(t)

	tests := []struct {
		path    string
		expRoot string
		expOk   bool
	}{
		{"/home/user/git/alpha/sub/pkg/file.go", "/home/user/git/alpha", true},
		{"/home/user/git/alpha/sub/deleted/file.go", "/home/user/git/alpha", true},
		{"/home/user/git/alpha", "/home/user/git/alpha", true},
		{"/home/user/git/beta/.git/objects", "/home/user/git/beta", true},
		{"/home/user/git/beta/.git", "/home/user/git/beta", true},
		{"/home/user/git/worktree/x", "/home/user/git/worktree", true},
		{"/home/user/git/plain/file", "", false},
		{"/nowhere/at/all", "", false},
	}

	for _, test := range tests {
		root, ok := FindRoot(fs, test.path)
		assert.Equal(t, test.expOk, ok, test.path)
		assert.Equal(t, test.expRoot, root, test.path)
	}
}

func TestIsRepo(t *testing.T) {
	fs := newTestFs(t)
	assert.True(t, IsRepo(fs, "/home/user/git/alpha"))
	assert.True(t, IsRepo(fs, "/home/user/git/worktree"))
	assert.False(t, IsRepo(fs, "/home/user/git/plain"))
}
