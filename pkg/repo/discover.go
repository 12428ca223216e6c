// Package repo locates git repositories on disk.
package repo

import (
	"os"
	"path/filepath"
	"sort"

	"github.com/spf13/afero"

	"github.com/sidkik/reposync/pkg/errors"
)

// Canonical returns the absolute, cleaned form of path. Repositories are
// identified by this form everywhere.
func Canonical(path string) string {
	abs, err := filepath.Abs(path)
	if err != nil {
		return filepath.Clean(path)
	}
	return abs
}

// IsRepo reports whether dir has a .git entry. The entry may be a file for
// worktrees and submodules.
func IsRepo(fs afero.Fs, dir string) bool {
	_, err := fs.Stat(filepath.Join(dir, ".git"))
	return err == nil
}

// ListRepos scans the immediate children of each base directory for
// repositories. Missing base directories are skipped. The result is sorted
// and free of duplicates.
func ListRepos(fs afero.Fs, baseDirs []string) ([]string, error) {
	seen := map[string]struct{}{}
	for _, base := range baseDirs {
		children, err := afero.ReadDir(fs, base)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return nil, errors.WithContext(err, "read "+base)
		}

		for _, child := range children {
			if !child.IsDir() {
				continue
			}
			dir := Canonical(filepath.Join(base, child.Name()))
			if IsRepo(fs, dir) {
				seen[dir] = struct{}{}
			}
		}
	}
	return sortedKeys(seen), nil
}

// CollectTargets expands each target into repositories. A target that is
// itself a repository is kept, and any other directory is scanned like a
// base directory.
func CollectTargets(fs afero.Fs, targets []string) ([]string, error) {
	seen := map[string]struct{}{}
	for _, target := range targets {
		target = Canonical(target)
		if IsRepo(fs, target) {
			seen[target] = struct{}{}
			continue
		}

		children, err := ListRepos(fs, []string{target})
		if err != nil {
			return nil, err
		}
		for _, child := range children {
			seen[child] = struct{}{}
		}
	}
	return sortedKeys(seen), nil
}

// FindRoot walks up from path to the closest directory containing a .git
// entry. The path itself does not need to exist.
func FindRoot(fs afero.Fs, path string) (string, bool) {
	dir := Canonical(path)
	for {
		if filepath.Base(dir) == ".git" {
			// Events inside .git belong to the repository that owns it.
			dir = filepath.Dir(dir)
			continue
		}
		if IsRepo(fs, dir) {
			return dir, true
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return "", false
		}
		dir = parent
	}
}

func sortedKeys(set map[string]struct{}) []string {
	keys := make([]string, 0, len(set))
	for key := range set {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}
