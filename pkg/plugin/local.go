package plugin

import (
	"context"
	"sort"

	"github.com/spf13/afero"

	"github.com/matzehuels/humbleplugin/pkg/localgames"
	"github.com/matzehuels/humbleplugin/pkg/model"
)

// ImportLocalGames scans for installed owned games and returns every game
// known to be installed.
func (p *Plugin) ImportLocalGames(ctx context.Context) ([]LocalGame, error) {
	if _, err := p.scanLocal(ctx); err != nil {
		return nil, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]LocalGame, 0, len(p.local))
	for id, lg := range p.local {
		out = append(out, LocalGame{GameID: id, LocalGameState: lg.state})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].GameID < out[j].GameID })
	return out, nil
}

// scanLocal looks for newly installed games and returns their ids.
// Nothing is matched before the owned games have been imported.
func (p *Plugin) scanLocal(ctx context.Context) ([]string, error) {
	if err := p.finder.Refresh(ctx); err != nil {
		return nil, err
	}

	p.mu.Lock()
	imported := p.imported
	var candidates []model.Game
	for _, g := range p.owned {
		if _, ok := p.local[g.ID()]; ok {
			continue
		}
		switch g.(type) {
		case model.Subproduct, model.TroveGame:
			candidates = append(candidates, g)
		}
	}
	p.mu.Unlock()
	if !imported || len(candidates) == 0 {
		return nil, nil
	}

	found, err := p.finder.FindLocalGames(ctx, candidates)
	if err != nil {
		return nil, err
	}
	inDirs, err := p.picker.FindInDirs(ctx, p.settings.Installed().SearchDirs, candidates)
	if err != nil {
		return nil, err
	}
	found = append(found, inDirs...)

	p.mu.Lock()
	var added []string
	for _, lg := range found {
		if _, ok := p.local[lg.GameID]; ok {
			continue
		}
		p.local[lg.GameID] = &localGame{LocalGame: lg, state: StateInstalled}
		added = append(added, lg.GameID)
	}
	p.mu.Unlock()
	for _, id := range added {
		p.logger.Info("found installed game", "game", id)
	}
	return added, nil
}

// checkRemoved drops local games whose executable is gone.
func (p *Plugin) checkRemoved() []string {
	p.mu.Lock()
	games := make([]localgames.LocalGame, 0, len(p.local))
	for _, lg := range p.local {
		games = append(games, lg.LocalGame)
	}
	p.mu.Unlock()

	var removed []string
	for _, lg := range games {
		if ok, _ := afero.Exists(p.fs, lg.Executable); ok {
			continue
		}
		removed = append(removed, lg.GameID)
	}
	if len(removed) == 0 {
		return nil
	}
	p.mu.Lock()
	for _, id := range removed {
		delete(p.local, id)
	}
	p.mu.Unlock()
	sort.Strings(removed)
	return removed
}

// Tick reloads settings and refreshes the install state of games.
func (p *Plugin) Tick(ctx context.Context) {
	p.settings.Reload()

	p.mu.Lock()
	imported := p.imported
	p.mu.Unlock()
	if p.settings.LibraryChanged() && imported {
		if err := p.applyLibrarySettings(ctx, p.settings.Library()); err != nil {
			p.logger.Error("applying library settings failed", "err", err)
		}
	}
	if p.settings.InstalledChanged() {
		p.logger.Debug("search directories changed", "dirs", p.settings.Installed().SearchDirs)
	}

	added, err := p.scanLocal(ctx)
	if err != nil {
		if ctx.Err() == nil {
			p.logger.Error("local game scan failed", "err", err)
		}
		return
	}
	for _, id := range added {
		p.notifyState(id, StateInstalled)
	}
	for _, id := range p.checkRemoved() {
		p.logger.Info("installed game removed", "game", id)
		p.notifyState(id, StateNone)
	}
}
