package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/ghodss/yaml"
	homedir "github.com/mitchellh/go-homedir"
	"github.com/spf13/afero"

	"github.com/sidkik/reposync/pkg/errors"
)

const (
	// DefaultConfigPath is the default path to the reposync config.
	DefaultConfigPath = "~/.reposync.yaml"

	// InitialConfigVersion is the first version of the reposync config.
	// Config files that do not specify a version default to this version.
	InitialConfigVersion = "v1alpha1"

	// SupportedConfigVersion is the config version understood by this binary.
	SupportedConfigVersion = "v1alpha1"

	// DebounceEnvVar overrides DebounceMs when set to a positive integer.
	DebounceEnvVar = "DEBOUNCE_MS"
)

// The icon keys that a repository status maps to.
const (
	IconNotInit     = "not_init"
	IconCommit      = "commit"
	IconUntracked   = "untracked"
	IconNoRemote    = "no_remote"
	IconSynced      = "synced"
	IconPendingSync = "pending_sync"
)

// IconKeys lists every icon key in display order.
var IconKeys = []string{IconNotInit, IconCommit, IconUntracked, IconNoRemote,
	IconSynced, IconPendingSync}

// Watcher backends.
const (
	WatcherInotify  = "inotifywait"
	WatcherFsnotify = "fsnotify"
)

// DefaultIcons returns the icon token for every known icon key.
func DefaultIcons() map[string]string {
	return map[string]string{
		IconNotInit:     "folder-black",
		IconCommit:      "folder-yellow",
		IconUntracked:   "folder-red",
		IconNoRemote:    "folder-orange",
		IconSynced:      "folder-green",
		IconPendingSync: "folder-violet",
	}
}

// Config is the explicit configuration shared by every reposync component.
type Config struct {
	Version              string            `json:"version,omitempty"`
	BaseDirs             []string          `json:"baseDirs,omitempty"`
	DebounceMs           int               `json:"debounceMs,omitempty"`
	TickMs               int               `json:"tickMs,omitempty"`
	MaxConcurrentFlushes int               `json:"maxConcurrentFlushes,omitempty"`
	StatusTimeoutSec     int               `json:"statusTimeoutSec,omitempty"`
	QueryTimeoutSec      int               `json:"queryTimeoutSec,omitempty"`
	CountTimeoutSec      int               `json:"countTimeoutSec,omitempty"`
	FetchTimeoutSec      int               `json:"fetchTimeoutSec,omitempty"`
	NotifyTimeoutMs      int               `json:"notifyTimeoutMs,omitempty"`
	MarkerFile           string            `json:"markerFile,omitempty"`
	IgnoreMarkers        []string          `json:"ignoreMarkers,omitempty"`
	CandidateBranches    []string          `json:"candidateBranches,omitempty"`
	Icons                map[string]string `json:"icons,omitempty"`
	Watcher              string            `json:"watcher,omitempty"`
	LogPath              string            `json:"logPath,omitempty"`
}

// Default returns the configuration used when no config file exists.
func Default() Config {
	return Config{
		Version:              SupportedConfigVersion,
		BaseDirs:             []string{"~/git"},
		DebounceMs:           2000,
		TickMs:               200,
		MaxConcurrentFlushes: 4,
		StatusTimeoutSec:     15,
		QueryTimeoutSec:      5,
		CountTimeoutSec:      10,
		FetchTimeoutSec:      60,
		NotifyTimeoutMs:      1000,
		MarkerFile:           ".directory",
		IgnoreMarkers:        []string{".directory"},
		CandidateBranches:    []string{"main", "master"},
		Icons:                DefaultIcons(),
		Watcher:              WatcherInotify,
		LogPath:              "~/.cache/reposync.log",
	}
}

// fs is used for mock tests. It will be overridden by afero.NewMemMapFs()
// in the tests.
var fs = afero.NewOsFs()

// homedirExpand will be overridden in mock tests
var homedirExpand = homedir.Expand

// getenv will be overridden in mock tests
var getenv = os.Getenv

// Parse reads the config at the default path. A missing file yields the
// defaults.
func Parse() (Config, error) {
	path, err := homedirExpand(DefaultConfigPath)
	if err != nil {
		return Config{}, errors.WithContext(err, "expand config path")
	}
	return ParseFile(path)
}

// ParseFile reads the config at path, fills unset fields with defaults, and
// applies the environment overrides.
func ParseFile(path string) (Config, error) {
	config, err := decode(path)
	if err != nil {
		return Config{}, errors.WithContext(err, "parse")
	}

	if raw := getenv(DebounceEnvVar); raw != "" {
		ms, err := strconv.Atoi(raw)
		if err != nil || ms <= 0 {
			return Config{}, errors.NewFriendlyError(
				"%s must be a positive integer, got %q", DebounceEnvVar, raw)
		}
		config.DebounceMs = ms
	}

	if err := config.expandPaths(); err != nil {
		return Config{}, err
	}
	if err := config.Validate(); err != nil {
		return Config{}, errors.WithContext(err, "validate")
	}
	return config, nil
}

// decodeErrTemplate is used when the config file is not valid YAML for
// Config. The yaml library loses the field context, so only its message can
// be passed on.
const decodeErrTemplate = "The reposync config %q could not be parsed.\n" +
	"Common pitfalls include:\n" +
	" - Giving timeouts and windows as durations (they are plain integers)\n" +
	" - Misspelling a field name\n\n" +
	"For reference, here is the error from the parser:\n" +
	"%s"

type incompatibleVersionError struct {
	path, actual string
}

func (err incompatibleVersionError) Error() string {
	return err.FriendlyMessage()
}

func (err incompatibleVersionError) FriendlyMessage() string {
	return fmt.Sprintf("The reposync config %q has version %q, but this "+
		"version of reposync only understands %q.",
		err.path, err.actual, SupportedConfigVersion)
}

// decode layers the file at path over Default(). A missing file decodes to
// the defaults. Lists in the file replace the defaults, and icons are merged
// per key.
func decode(path string) (Config, error) {
	configBytes, err := afero.ReadFile(fs, path)
	if os.IsNotExist(err) {
		return Default(), nil
	}
	if err != nil {
		return Config{}, errors.WithContext(err, "read file")
	}

	config := Default()
	config.Version = InitialConfigVersion
	config.Icons = nil

	// The lenient pass reports a version mismatch before any unknown field
	// from a newer schema.
	if err := yaml.Unmarshal(configBytes, &config); err != nil {
		return Config{}, errors.NewFriendlyError(decodeErrTemplate, path, err)
	}
	if config.Version != SupportedConfigVersion {
		return Config{}, incompatibleVersionError{path, config.Version}
	}
	err = yaml.UnmarshalStrict(configBytes, &config, yaml.DisallowUnknownFields)
	if err != nil {
		return Config{}, errors.NewFriendlyError(decodeErrTemplate, path, err)
	}

	icons := DefaultIcons()
	for key, token := range config.Icons {
		if _, ok := icons[key]; !ok {
			return Config{}, errors.NewFriendlyError(
				"Unknown icon key %q in %q. Valid keys are %v.",
				key, path, IconKeys)
		}
		icons[key] = token
	}
	config.Icons = icons
	return config, nil
}

// Write writes the given config to path.
func Write(path string, cfg Config) error {
	cfg.Version = SupportedConfigVersion
	yamlBytes, err := yaml.Marshal(cfg)
	if err != nil {
		return errors.WithContext(err, "marshal")
	}

	if err := afero.WriteFile(fs, path, yamlBytes, 0644); err != nil {
		return errors.WithContext(err, "write")
	}
	return nil
}

func (c *Config) expandPaths() error {
	for i, dir := range c.BaseDirs {
		expanded, err := homedirExpand(dir)
		if err != nil {
			return errors.WithContext(err, "expand base dir")
		}
		c.BaseDirs[i] = filepath.Clean(expanded)
	}

	logPath, err := homedirExpand(c.LogPath)
	if err != nil {
		return errors.WithContext(err, "expand log path")
	}
	c.LogPath = logPath
	return nil
}

// Validate checks that every numeric setting is positive and that the
// watcher is known.
func (c Config) Validate() error {
	positive := []struct {
		name  string
		value int
	}{
		{"debounceMs", c.DebounceMs},
		{"tickMs", c.TickMs},
		{"maxConcurrentFlushes", c.MaxConcurrentFlushes},
		{"statusTimeoutSec", c.StatusTimeoutSec},
		{"queryTimeoutSec", c.QueryTimeoutSec},
		{"countTimeoutSec", c.CountTimeoutSec},
		{"fetchTimeoutSec", c.FetchTimeoutSec},
		{"notifyTimeoutMs", c.NotifyTimeoutMs},
	}
	for _, field := range positive {
		if field.value <= 0 {
			return errors.NewFriendlyError(
				"%s must be positive, got %d", field.name, field.value)
		}
	}

	switch c.Watcher {
	case WatcherInotify, WatcherFsnotify:
	default:
		return errors.NewFriendlyError("unknown watcher %q (expected %q or %q)",
			c.Watcher, WatcherInotify, WatcherFsnotify)
	}

	if c.MarkerFile == "" {
		return errors.New("markerFile is required")
	}
	return nil
}

// DebounceWindow is how long a repository must be quiet before it is
// flushed.
func (c Config) DebounceWindow() time.Duration {
	return time.Duration(c.DebounceMs) * time.Millisecond
}

// Tick is the flush scheduler's polling interval.
func (c Config) Tick() time.Duration {
	return time.Duration(c.TickMs) * time.Millisecond
}

// NotifyTimeout bounds each file manager IPC call.
func (c Config) NotifyTimeout() time.Duration {
	return time.Duration(c.NotifyTimeoutMs) * time.Millisecond
}

// StatusTimeout bounds `git status`.
func (c Config) StatusTimeout() time.Duration {
	return seconds(c.StatusTimeoutSec)
}

// QueryTimeout bounds rev-parse and remote listing.
func (c Config) QueryTimeout() time.Duration {
	return seconds(c.QueryTimeoutSec)
}

// CountTimeout bounds rev-list counts.
func (c Config) CountTimeout() time.Duration {
	return seconds(c.CountTimeoutSec)
}

// FetchTimeout bounds `git fetch`.
func (c Config) FetchTimeout() time.Duration {
	return seconds(c.FetchTimeoutSec)
}

// Icon returns the token for an icon key.
func (c Config) Icon(key string) string {
	if token, ok := c.Icons[key]; ok {
		return token
	}
	return DefaultIcons()[key]
}

// IsIgnorableMarker reports whether name is a file that reposync writes
// itself and so must never schedule a flush.
func (c Config) IsIgnorableMarker(name string) bool {
	if name == "" {
		return false
	}
	base := filepath.Base(name)
	if base == c.MarkerFile {
		return true
	}
	for _, marker := range c.IgnoreMarkers {
		if base == marker {
			return true
		}
	}
	return false
}

func seconds(n int) time.Duration {
	return time.Duration(n) * time.Second
}

func (c Config) String() string {
	return fmt.Sprintf("Config{baseDirs=%v debounce=%s tick=%s watcher=%s}",
		c.BaseDirs, c.DebounceWindow(), c.Tick(), c.Watcher)
}
