package plugin

import (
	"context"
	"net/url"
	"path"
	"path/filepath"
	"strings"

	"github.com/matzehuels/humbleplugin/pkg/errors"
	"github.com/matzehuels/humbleplugin/pkg/httputil"
	"github.com/matzehuels/humbleplugin/pkg/model"
)

const keyPageURL = "https://www.humblebundle.com/downloads?key="

func humbleURI(action, id string) string { return "humble://" + action + "/" + id }

// InstallGame opens the download for a game. The download is resolved and
// opened after the double-click delay; a second call for the same game
// within that delay cancels it and opens the settings file instead.
func (p *Plugin) InstallGame(ctx context.Context, id string) error {
	if p.clicks.second(id) {
		p.logger.Debug("double click, opening settings", "game", id)
		return p.open(p.settings.Path())
	}
	if _, ok := p.game(id); !ok {
		return errors.New(errors.ErrCodeNotFound, "unknown game %s", id)
	}
	// The request is answered before the timer fires.
	ctx = context.WithoutCancel(ctx)
	p.clicks.schedule(id, func() {
		target, err := p.InstallURL(ctx, id)
		if err != nil {
			p.logger.Error("resolving download failed", "game", id, "err", err)
			return
		}
		if err := p.open(target); err != nil {
			p.logger.Error("opening download failed", "game", id, "err", err)
		}
	})
	return nil
}

// InstallURL returns what installing a game opens: a signed download, a
// humble:// URI, a key page or a subscription page.
func (p *Plugin) InstallURL(ctx context.Context, id string) (string, error) {
	g, ok := p.game(id)
	if !ok {
		return "", errors.New(errors.ErrCodeNotFound, "unknown game %s", id)
	}
	return p.installTarget(ctx, g)
}

func (p *Plugin) installTarget(ctx context.Context, g model.Game) (string, error) {
	switch g := g.(type) {
	case model.Subproduct:
		dl, ok := g.Downloads[model.CurrentPlatform()]
		if !ok {
			return "", unsupported(g)
		}
		s, ok := model.PickStruct(dl.Structs, model.Is64BitHost())
		if !ok {
			return "", unsupported(g)
		}
		filename, err := downloadFilename(s.URL.Web)
		if err != nil {
			return "", err
		}
		return signed(ctx, func() (string, error) {
			return p.api.SignURLSubproduct(ctx, dl.MachineName, filename)
		})
	case model.TroveGame:
		if p.humbleApp() != "" {
			return humbleURI("download", g.ID()), nil
		}
		s, ok := g.Downloads[model.CurrentPlatform()]
		if !ok {
			return "", unsupported(g)
		}
		return signed(ctx, func() (string, error) {
			return p.api.SignURLTrove(ctx, s, g.MachineName)
		})
	case model.KeyGame:
		return keyPageURL + url.QueryEscape(g.Key.Gamekey), nil
	case model.ChoiceGame:
		return g.PageURL(), nil
	}
	return "", errors.New(errors.ErrCodeInternal, "cannot install %T", g)
}

// signed retries transient failures of a signing request.
func signed(ctx context.Context, sign func() (string, error)) (string, error) {
	var out string
	err := httputil.RetryWithBackoff(ctx, func() error {
		var err error
		out, err = sign()
		return err
	})
	return out, err
}

func unsupported(g model.Game) error {
	return errors.New(errors.ErrCodePlatformNotSupported, "%s has no %s download", g.Title(), model.CurrentPlatform())
}

func downloadFilename(raw string) (string, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", errors.Wrap(errors.ErrCodeUnknownBackend, err, "bad download url")
	}
	name := path.Base(u.Path)
	if name == "." || name == "/" {
		return "", errors.New(errors.ErrCodeUnknownBackend, "download url %q has no file name", raw)
	}
	return name, nil
}

// LaunchGame starts a locally found game, or asks the Humble App to.
func (p *Plugin) LaunchGame(ctx context.Context, id string) error {
	p.mu.Lock()
	lg, found := p.local[id]
	var exe string
	if found {
		exe = lg.Executable
	}
	p.mu.Unlock()

	if exe == "" {
		if p.humbleApp() != "" {
			return p.open(humbleURI("launch", id))
		}
		return errors.New(errors.ErrCodeNotFound, "game %s is not installed", id)
	}

	proc, err := p.start(exe, nil, filepath.Dir(exe))
	if err != nil {
		return errors.Wrap(errors.ErrCodeInternal, err, "start %s", exe)
	}
	p.setState(id, StateInstalled|StateRunning)
	go func() {
		if err := proc.Wait(); err != nil {
			p.logger.Debug("game exited", "game", id, "err", err)
		}
		p.setState(id, StateInstalled)
	}()
	return nil
}

// UninstallGame runs the game's uninstaller. Without one the Humble App
// is asked, and failing that the install directory is opened.
func (p *Plugin) UninstallGame(ctx context.Context, id string) error {
	p.mu.Lock()
	var cmd, dir string
	if lg, ok := p.local[id]; ok {
		cmd, dir = lg.UninstallCmd, lg.InstallDir
	}
	p.mu.Unlock()

	if exe, args := splitCommand(cmd); exe != "" {
		proc, err := p.start(exe, args, "")
		if err != nil {
			return errors.Wrap(errors.ErrCodeInternal, err, "start uninstaller for %s", id)
		}
		go func() {
			if err := proc.Wait(); err != nil {
				p.logger.Warn("uninstaller failed", "game", id, "err", err)
			}
		}()
		return nil
	}
	if p.humbleApp() != "" {
		return p.open(humbleURI("uninstall", id))
	}
	if dir != "" {
		return p.open(dir)
	}
	return errors.New(errors.ErrCodeNotFound, "game %s has no uninstaller", id)
}

// setState records a state transition of a local game and reports it.
func (p *Plugin) setState(id string, state LocalGameState) {
	p.mu.Lock()
	lg, ok := p.local[id]
	if ok {
		if lg.state == state {
			ok = false
		}
		lg.state = state
	}
	p.mu.Unlock()
	if ok {
		p.notifyState(id, state)
	}
}

func (p *Plugin) notifyState(id string, state LocalGameState) {
	p.notify("local_game_status_changed", map[string]LocalGame{
		"local_game": {GameID: id, LocalGameState: state},
	})
}

// splitCommand splits a registry command line into the executable and its
// arguments. The executable may be quoted or end in ".exe".
func splitCommand(cmd string) (string, []string) {
	cmd = strings.TrimSpace(cmd)
	if cmd == "" {
		return "", nil
	}
	var exe, rest string
	if after, ok := strings.CutPrefix(cmd, `"`); ok {
		exe, rest, _ = strings.Cut(after, `"`)
	} else if i := strings.Index(strings.ToLower(cmd), ".exe"); i >= 0 {
		exe, rest = cmd[:i+len(".exe")], cmd[i+len(".exe"):]
	} else {
		exe, rest, _ = strings.Cut(cmd, " ")
	}
	return exe, strings.Fields(rest)
}
