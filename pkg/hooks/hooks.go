// Package hooks installs the git hooks that re-sync a repository's icon after
// commits, merges and checkouts.
package hooks

import (
	"bufio"
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	goversion "github.com/hashicorp/go-version"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/afero"

	"github.com/sidkik/reposync/pkg/errors"
	"github.com/sidkik/reposync/pkg/version"
)

// Names are the hooks that reposync manages.
var Names = []string{"post-commit", "post-merge", "post-checkout"}

// versionPrefix marks the line carrying the version of an installed hook.
const versionPrefix = "# hook-version:"

const scriptTemplate = `#!/bin/sh
# Installed by reposync. Changes will be overwritten.
%s %s
( %s sync %s --quiet >/dev/null 2>&1 & )
`

// Installer manages the hooks of repositories.
type Installer struct {
	fs       afero.Fs
	binary   string
	required *goversion.Version
	log      log.FieldLogger
}

// New returns an Installer whose hooks run `binary sync`.
func New(fs afero.Fs, binary string, logger log.FieldLogger) Installer {
	return Installer{
		fs:       fs,
		binary:   binary,
		required: goversion.Must(goversion.NewVersion(version.HookVersion)),
		log:      logger,
	}
}

// RequiredVersion is the hook version this binary installs.
func (i Installer) RequiredVersion() string {
	return i.required.String()
}

// CurrentVersion returns the version recorded in root's post-commit hook. It
// returns false if the hook is missing or carries no version.
func (i Installer) CurrentVersion(root string) (string, bool) {
	contents, err := afero.ReadFile(i.fs, hookPath(root, Names[0]))
	if err != nil {
		return "", false
	}

	scanner := bufio.NewScanner(bytes.NewReader(contents))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if strings.HasPrefix(line, versionPrefix) {
			return strings.TrimSpace(strings.TrimPrefix(line, versionPrefix)), true
		}
	}
	return "", false
}

// UpToDate reports whether every managed hook exists and the installed
// version is at least RequiredVersion.
func (i Installer) UpToDate(root string) bool {
	for _, name := range Names {
		if _, err := i.fs.Stat(hookPath(root, name)); err != nil {
			return false
		}
	}

	current, ok := i.CurrentVersion(root)
	if !ok {
		return false
	}
	installed, err := goversion.NewVersion(current)
	if err != nil {
		i.log.WithField("repo", root).WithField("version", current).
			Debug("Unparsable hook version")
		return false
	}
	return !installed.LessThan(i.required)
}

// Ensure installs the hooks unless they are already up to date. When force
// is set the hooks are always rewritten. It returns whether anything was
// written.
func (i Installer) Ensure(root string, force bool) (bool, error) {
	fi, err := i.fs.Stat(filepath.Join(root, ".git"))
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, errors.WithContext(err, "stat .git")
	}
	if !fi.IsDir() {
		// Worktrees and submodules share the hooks of their parent repository.
		return false, nil
	}

	if !force && i.UpToDate(root) {
		return false, nil
	}
	if err := i.Install(root); err != nil {
		return false, err
	}
	return true, nil
}

// Install writes every managed hook into root.
func (i Installer) Install(root string) error {
	dir := filepath.Join(root, ".git", "hooks")
	if err := i.fs.MkdirAll(dir, 0755); err != nil {
		return errors.WithContext(err, "create hooks dir")
	}

	script := fmt.Sprintf(scriptTemplate, versionPrefix, i.RequiredVersion(),
		shellQuote(i.binary), shellQuote(root))
	for _, name := range Names {
		path := hookPath(root, name)
		if err := afero.WriteFile(i.fs, path, []byte(script), 0755); err != nil {
			return errors.WithContext(err, fmt.Sprintf("write %s", name))
		}
		// WriteFile only applies the mode to new files.
		if err := i.fs.Chmod(path, 0755); err != nil {
			return errors.WithContext(err, fmt.Sprintf("chmod %s", name))
		}
	}

	i.log.WithField("repo", root).WithField("version", i.RequiredVersion()).
		Debug("Installed git hooks")
	return nil
}

// shellQuote quotes s as a single sh word with no expansion.
func shellQuote(s string) string {
	return "'" + strings.Replace(s, "'", `'\''`, -1) + "'"
}

func hookPath(root, name string) string {
	return filepath.Join(root, ".git", "hooks", name)
}
