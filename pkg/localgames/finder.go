// Package localgames finds owned games installed on this machine.
//
// On Windows the uninstall registry is watched for new entries which are
// matched against owned titles. On every OS the configured search
// directories are scanned for folders named after owned titles. In both
// cases the executable is chosen by [Picker].
package localgames

import (
	"context"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/spf13/afero"

	"github.com/matzehuels/humbleplugin/pkg/model"
)

// LocalGame is an installed owned game.
type LocalGame struct {
	GameID       string
	Executable   string
	UninstallCmd string
	InstallDir   string
}

// AppFinder matches registry uninstall entries to owned games.
type AppFinder struct {
	watcher *Watcher
	picker  *Picker
	logger  *log.Logger
}

// NewAppFinder creates an AppFinder.
func NewAppFinder(w *Watcher, p *Picker, logger *log.Logger) *AppFinder {
	if logger == nil {
		logger = log.Default()
	}
	return &AppFinder{watcher: w, picker: p, logger: logger}
}

// Refresh picks up new uninstall entries.
func (f *AppFinder) Refresh(ctx context.Context) error {
	return f.watcher.Refresh(ctx)
}

// FindLocalGames consumes the pending uninstall entries and returns those
// matching an owned game with a usable executable. On error every taken
// entry is returned to the watcher, so a later call sees them again.
func (f *AppFinder) FindLocalGames(ctx context.Context, owned []model.Game) ([]LocalGame, error) {
	keys := f.watcher.take()
	var found []LocalGame
	for _, uk := range keys {
		if err := ctx.Err(); err != nil {
			f.watcher.restore(keys)
			return nil, err
		}
		for _, g := range owned {
			if !Matches(g.Title(), uk) {
				continue
			}
			exe, err := f.picker.Executable(ctx, g.Title(), uk)
			if err != nil {
				f.watcher.restore(keys)
				return nil, err
			}
			if exe == "" {
				f.logger.Debug("no executable for installed game", "game", g.ID(), "key", uk.KeyName)
				break
			}
			found = append(found, LocalGame{
				GameID:       g.ID(),
				Executable:   exe,
				UninstallCmd: uk.UninstallString,
				InstallDir:   uk.InstallLocationPath(),
			})
			break
		}
	}
	return found, nil
}

// FindInDirs scans the immediate subdirectories of dirs for folders named
// like an owned game. Each game is reported at most once, from the first
// directory it is found in.
func (p *Picker) FindInDirs(ctx context.Context, dirs []string, owned []model.Game) ([]LocalGame, error) {
	var found []LocalGame
	done := make(map[string]bool)
	for _, dir := range dirs {
		entries, err := afero.ReadDir(p.fs, dir)
		if err != nil {
			p.logger.Warn("cannot read search directory", "dir", dir, "err", err)
			continue
		}
		for _, e := range entries {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			if !e.IsDir() {
				continue
			}
			for _, g := range owned {
				if done[g.ID()] || !sameTitle(g.Title(), e.Name()) {
					continue
				}
				installDir := filepath.Join(dir, e.Name())
				exe, err := p.Executable(ctx, g.Title(), UninstallKey{DisplayName: g.Title(), InstallLocation: installDir})
				if err != nil {
					return nil, err
				}
				if exe == "" {
					continue
				}
				done[g.ID()] = true
				found = append(found, LocalGame{GameID: g.ID(), Executable: exe, InstallDir: installDir})
				break
			}
		}
	}
	return found, nil
}

// HumbleAppPath returns the Humble App executable registered as the
// humble:// URI handler, or "" when it is not installed.
func HumbleAppPath(fs afero.Fs) string {
	cmd, err := uriHandlerCommand()
	if err != nil {
		return ""
	}
	exe := parseOpenCommand(cmd)
	if exe == "" {
		return ""
	}
	if ok, _ := afero.Exists(fs, exe); !ok {
		return ""
	}
	return exe
}

// parseOpenCommand extracts the executable from a shell open command such
// as `"C:\Program Files\Humble App\Humble App.exe" "%1"`.
func parseOpenCommand(cmd string) string {
	cmd = strings.TrimSpace(cmd)
	if rest, ok := strings.CutPrefix(cmd, `"`); ok {
		exe, _, _ := strings.Cut(rest, `"`)
		return exe
	}
	if i := strings.Index(strings.ToLower(cmd), ".exe"); i >= 0 {
		return cmd[:i+len(".exe")]
	}
	exe, _, _ := strings.Cut(cmd, " ")
	return exe
}
