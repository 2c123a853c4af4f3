package settings

import (
	"bytes"
	"os"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"
)

const settingsPath = "/config/humbleplugin/settings.toml"

func writeSettings(t *testing.T, fs afero.Fs, content string, mtime time.Time) {
	t.Helper()
	require.NoError(t, fs.MkdirAll("/config/humbleplugin", 0o755))
	require.NoError(t, afero.WriteFile(fs, settingsPath, []byte(content), 0o644))
	require.NoError(t, fs.Chtimes(settingsPath, mtime, mtime))
}

// flakyFs fails opens while failing is set.
type flakyFs struct {
	afero.Fs
	failing bool
}

func (f *flakyFs) Open(name string) (afero.File, error) {
	if f.failing {
		return nil, &os.PathError{Op: "open", Path: name, Err: os.ErrPermission}
	}
	return f.Fs.Open(name)
}

func quietLogger() (*log.Logger, *bytes.Buffer) {
	var buf bytes.Buffer
	return log.New(&buf), &buf
}

func TestNew_WritesDefaultFile(t *testing.T) {
	fs := afero.NewMemMapFs()
	logger, _ := quietLogger()

	s := New(fs, settingsPath, logger)

	data, err := afero.ReadFile(fs, settingsPath)
	require.NoError(t, err)
	require.Equal(t, DefaultContent, string(data))
	require.Equal(t, DefaultLibrary(), s.Library())
	require.Empty(t, s.Installed().SearchDirs)
	require.True(t, s.LibraryChanged(), "first check reports a change")
	require.False(t, s.LibraryChanged())
}

func TestReload_TracksSectionChanges(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, fs.MkdirAll("/games", 0o755))
	logger, _ := quietLogger()
	t0 := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	writeSettings(t, fs, `
[library]
sources = ["drm-free", "keys"]
show_revealed_keys = false

[installed]
search_dirs = ["/games", "/missing"]
`, t0)

	s := New(fs, settingsPath, logger)
	require.Equal(t, Library{Sources: []Source{SourceDRMFree, SourceKeys}}, s.Library())
	require.Equal(t, []string{"/games"}, s.Installed().SearchDirs)
	require.True(t, s.LibraryChanged())
	require.True(t, s.InstalledChanged())

	// Same mtime: no reparse.
	require.False(t, s.Reload())

	// Only [library] changes.
	writeSettings(t, fs, `
[library]
sources = ["keys"]
show_revealed_keys = false

[installed]
search_dirs = ["/games"]
`, t0.Add(time.Minute))
	require.True(t, s.Reload())
	require.True(t, s.LibraryChanged())
	require.False(t, s.InstalledChanged())
	require.Equal(t, []Source{SourceKeys}, s.Library().Sources)

	// Touch without content change.
	writeSettings(t, fs, `
[library]
sources = ["keys"]
show_revealed_keys = false

[installed]
search_dirs = ["/games"]
`, t0.Add(2*time.Minute))
	require.True(t, s.Reload())
	require.False(t, s.LibraryChanged())
	require.False(t, s.InstalledChanged())
}

func TestReload_RetriesAfterReadError(t *testing.T) {
	fs := &flakyFs{Fs: afero.NewMemMapFs()}
	logger, buf := quietLogger()
	t0 := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	writeSettings(t, fs, "[library]\nsources = [\"trove\"]\n", t0)
	s := New(fs, settingsPath, logger)

	writeSettings(t, fs, "[library]\nsources = [\"keys\"]\n", t0.Add(time.Minute))
	fs.failing = true
	require.False(t, s.Reload())
	require.Contains(t, buf.String(), "reading settings failed")
	require.Equal(t, []Source{SourceTrove}, s.Library().Sources)

	fs.failing = false
	require.True(t, s.Reload(), "an unchanged mtime must not hide the unread file")
	require.Equal(t, []Source{SourceKeys}, s.Library().Sources)
}

func TestReload_InvalidContentKeepsLastGood(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"not toml", `[library\nsources = `},
		{"unknown source", "[library]\nsources = [\"keys\", \"steam\"]\n"},
		{"wrong type", "[library]\nsources = \"keys\"\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fs := afero.NewMemMapFs()
			logger, buf := quietLogger()
			t0 := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
			writeSettings(t, fs, "[library]\nsources = [\"trove\"]\n", t0)

			s := New(fs, settingsPath, logger)
			require.Equal(t, []Source{SourceTrove}, s.Library().Sources)
			s.LibraryChanged()

			writeSettings(t, fs, tt.content, t0.Add(time.Minute))
			s.Reload()
			require.Equal(t, []Source{SourceTrove}, s.Library().Sources)
			require.False(t, s.LibraryChanged())
			require.Contains(t, buf.String(), "keeping previous values")
		})
	}
}

func TestParseLibrary_Defaults(t *testing.T) {
	lib, err := parseLibrary(&rawLibrary{})
	require.NoError(t, err)
	require.Equal(t, DefaultLibrary(), lib)

	empty := []string{}
	lib, err = parseLibrary(&rawLibrary{Sources: &empty})
	require.NoError(t, err)
	require.Empty(t, lib.Sources)
	require.True(t, lib.ShowRevealedKeys)

	dup := []string{"Keys", "keys", " trove "}
	lib, err = parseLibrary(&rawLibrary{Sources: &dup})
	require.NoError(t, err)
	require.Equal(t, []Source{SourceKeys, SourceTrove}, lib.Sources)
}

func TestLibrary_Has(t *testing.T) {
	lib := Library{Sources: []Source{SourceKeys}}
	require.True(t, lib.Has(SourceKeys))
	require.False(t, lib.Has(SourceTrove))
}
