// Package settings loads the user's TOML settings file and tracks changes.
//
// The file has two sections:
//
//	[library]
//	sources = ["drm-free", "keys", "trove"]
//	show_revealed_keys = true
//
//	[installed]
//	search_dirs = ["~/Games"]
//
// [Settings.Reload] re-parses the file when its modification time changes.
// Each section remembers the value last observed by its consumer, so
// [Settings.LibraryChanged] and [Settings.InstalledChanged] report true only
// when content actually differs. Invalid content is logged and ignored; the
// last good values stay in effect.
package settings

import (
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/charmbracelet/log"
	"github.com/spf13/afero"

	"github.com/matzehuels/humbleplugin/pkg/errors"
)

// Source is a library source that can be enabled in settings.
type Source string

const (
	SourceDRMFree Source = "drm-free"
	SourceKeys    Source = "keys"
	SourceTrove   Source = "trove"
)

// DefaultSources is the source list used when none is configured.
var DefaultSources = []Source{SourceDRMFree, SourceKeys, SourceTrove}

func (s Source) valid() bool {
	return s == SourceDRMFree || s == SourceKeys || s == SourceTrove
}

// Library is the [library] section.
type Library struct {
	Sources          []Source
	ShowRevealedKeys bool
}

// Has reports whether src is enabled.
func (l Library) Has(src Source) bool { return slices.Contains(l.Sources, src) }

func (l Library) equal(o Library) bool {
	return l.ShowRevealedKeys == o.ShowRevealedKeys && slices.Equal(l.Sources, o.Sources)
}

// Installed is the [installed] section. SearchDirs holds expanded paths of
// directories that existed when the file was read.
type Installed struct {
	SearchDirs []string
}

func (i Installed) equal(o Installed) bool { return slices.Equal(i.SearchDirs, o.SearchDirs) }

// DefaultLibrary returns the [library] defaults.
func DefaultLibrary() Library {
	return Library{Sources: slices.Clone(DefaultSources), ShowRevealedKeys: true}
}

type rawFile struct {
	Library   *rawLibrary   `toml:"library"`
	Installed *rawInstalled `toml:"installed"`
}

type rawLibrary struct {
	Sources          *[]string `toml:"sources"`
	ShowRevealedKeys *bool     `toml:"show_revealed_keys"`
}

type rawInstalled struct {
	SearchDirs []string `toml:"search_dirs"`
}

// DefaultContent is written when the settings file does not exist.
const DefaultContent = `# Humble Bundle plugin settings.
# Changes are picked up automatically while the launcher is running.

[library]
# Which parts of your Humble library to import:
#   "drm-free" - games with direct downloads
#   "keys"     - Steam, Origin, Uplay, Epic, Battle.net and GOG keys
#   "trove"    - Humble Vault (Trove) games, for subscribers
sources = ["drm-free", "keys", "trove"]

# Keep keys that were already revealed on the Humble website.
show_revealed_keys = true

[installed]
# Extra directories scanned for installed games, one level deep.
# search_dirs = ["~/Games", "D:\\Games"]
search_dirs = []
`

// section holds a value and the snapshot last handed to its consumer.
type section[T any] struct {
	value    T
	snapshot T
	seen     bool
	equal    func(a, b T) bool
}

func (s *section[T]) changed() bool {
	c := !s.seen || !s.equal(s.value, s.snapshot)
	s.seen = true
	s.snapshot = s.value
	return c
}

// Settings is the live view of the settings file.
type Settings struct {
	fs     afero.Fs
	path   string
	logger *log.Logger

	mu        sync.Mutex
	mtime     time.Time
	library   section[Library]
	installed section[Installed]
}

// DefaultPath returns <user config dir>/humbleplugin/settings.toml.
func DefaultPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", errors.Wrap(errors.ErrCodeInternal, err, "locate config dir")
	}
	return filepath.Join(dir, "humbleplugin", "settings.toml"), nil
}

// New creates Settings backed by path on fs, writes the default file if
// it does not exist, and loads it. Both sections report a change on their
// first check.
func New(fs afero.Fs, path string, logger *log.Logger) *Settings {
	if logger == nil {
		logger = log.Default()
	}
	s := &Settings{
		fs:     fs,
		path:   path,
		logger: logger,
		library: section[Library]{
			value: DefaultLibrary(),
			equal: Library.equal,
		},
		installed: section[Installed]{
			equal: Installed.equal,
		},
	}
	if err := s.ensureFile(); err != nil {
		logger.Warn("cannot create settings file", "path", path, "err", err)
	}
	s.Reload()
	return s
}

// Path returns the settings file location.
func (s *Settings) Path() string { return s.path }

func (s *Settings) ensureFile() error {
	if _, err := s.fs.Stat(s.path); err == nil {
		return nil
	}
	if err := s.fs.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return err
	}
	return afero.WriteFile(s.fs, s.path, []byte(DefaultContent), 0o644)
}

// Reload re-parses the file if its modification time changed since the last
// successful read. It reports whether the file was parsed.
func (s *Settings) Reload() bool {
	info, err := s.fs.Stat(s.path)
	if err != nil {
		s.logger.Debug("settings file unavailable", "path", s.path, "err", err)
		return false
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if info.ModTime().Equal(s.mtime) {
		return false
	}
	data, err := afero.ReadFile(s.fs, s.path)
	if err != nil {
		s.logger.Error("reading settings failed", "path", s.path, "err", err)
		return false
	}
	s.mtime = info.ModTime()
	s.apply(data)
	return true
}

func (s *Settings) apply(data []byte) {
	var raw rawFile
	if _, err := toml.Decode(string(data), &raw); err != nil {
		s.logger.Error("invalid settings file, keeping previous values", "path", s.path, "err", err)
		return
	}

	if lib, err := parseLibrary(raw.Library); err != nil {
		s.logger.Error("invalid [library] section, keeping previous values", "err", err)
	} else {
		s.library.value = lib
	}
	s.installed.value = s.parseInstalled(raw.Installed)
}

func parseLibrary(raw *rawLibrary) (Library, error) {
	lib := DefaultLibrary()
	if raw == nil {
		return lib, nil
	}
	if raw.Sources != nil {
		lib.Sources = make([]Source, 0, len(*raw.Sources))
		for _, name := range *raw.Sources {
			src := Source(strings.ToLower(strings.TrimSpace(name)))
			if !src.valid() {
				return Library{}, errors.New(errors.ErrCodeInvalidInput, "unknown source %q", name)
			}
			if !slices.Contains(lib.Sources, src) {
				lib.Sources = append(lib.Sources, src)
			}
		}
	}
	if raw.ShowRevealedKeys != nil {
		lib.ShowRevealedKeys = *raw.ShowRevealedKeys
	}
	return lib, nil
}

func (s *Settings) parseInstalled(raw *rawInstalled) Installed {
	var inst Installed
	if raw == nil {
		return inst
	}
	for _, dir := range raw.SearchDirs {
		p := expandPath(dir)
		if p == "" {
			continue
		}
		info, err := s.fs.Stat(p)
		if err != nil || !info.IsDir() {
			s.logger.Warn("ignoring search dir", "dir", dir, "reason", "not an existing directory")
			continue
		}
		if !slices.Contains(inst.SearchDirs, p) {
			inst.SearchDirs = append(inst.SearchDirs, p)
		}
	}
	return inst
}

func expandPath(p string) string {
	p = os.ExpandEnv(strings.TrimSpace(p))
	if p == "~" || strings.HasPrefix(p, "~/") || strings.HasPrefix(p, `~\`) {
		if home, err := os.UserHomeDir(); err == nil {
			p = filepath.Join(home, p[1:])
		}
	}
	if p == "" {
		return ""
	}
	return filepath.Clean(p)
}

// Library returns the current [library] section.
func (s *Settings) Library() Library {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Library{Sources: slices.Clone(s.library.value.Sources), ShowRevealedKeys: s.library.value.ShowRevealedKeys}
}

// Installed returns the current [installed] section.
func (s *Settings) Installed() Installed {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Installed{SearchDirs: slices.Clone(s.installed.value.SearchDirs)}
}

// LibraryChanged reports whether [library] differs from the value seen at
// the previous call.
func (s *Settings) LibraryChanged() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.library.changed()
}

// InstalledChanged reports whether [installed] differs from the value seen
// at the previous call.
func (s *Settings) InstalledChanged() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.installed.changed()
}
