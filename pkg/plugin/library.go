package plugin

import (
	"context"
	"encoding/json"

	"github.com/matzehuels/humbleplugin/pkg/errors"
	"github.com/matzehuels/humbleplugin/pkg/library"
	"github.com/matzehuels/humbleplugin/pkg/model"
	"github.com/matzehuels/humbleplugin/pkg/session"
	"github.com/matzehuels/humbleplugin/pkg/settings"
)

// InitAuthentication restores a session from stored credentials, or asks
// for a browser login when there are none.
func (p *Plugin) InitAuthentication(ctx context.Context, stored json.RawMessage) (any, error) {
	creds, err := session.Parse(stored)
	if err != nil {
		return loginStep, nil
	}
	if _, err := creds.SessionCookie(); err != nil {
		return loginStep, nil
	}
	res, err := p.authenticate(ctx, creds)
	if err != nil {
		return nil, err
	}
	return res, nil
}

// PassLoginCredentials finishes a browser login.
func (p *Plugin) PassLoginCredentials(ctx context.Context, cookies []session.Cookie) (*AuthResult, error) {
	return p.authenticate(ctx, session.FromBrowser(cookies))
}

func (p *Plugin) authenticate(ctx context.Context, creds *session.Credentials) (*AuthResult, error) {
	cookie, err := creds.SessionCookie()
	if err != nil {
		return nil, err
	}
	p.api.SetCookies(creds.Cookies)
	userID, err := p.api.Authenticate(ctx, cookie)
	if err != nil {
		return nil, err
	}
	p.mu.Lock()
	p.userID = userID
	p.mu.Unlock()

	p.notify("store_credentials", session.New(p.api.Cookies()))
	p.logger.Info("authenticated", "user_id", userID)
	// The API exposes no display name; the id doubles as one.
	return &AuthResult{UserID: userID, UserName: userID}, nil
}

// ImportOwnedGames resolves the library over the network. When the network
// resolve fails for a reason other than authentication, the cached library
// is returned instead.
func (p *Plugin) ImportOwnedGames(ctx context.Context) ([]OwnedGame, error) {
	lib := p.settings.Library()
	games, c, err := p.library.Resolve(ctx, p.cacheSnapshot(), lib, false)
	if err != nil {
		if errors.Is(err, errors.ErrCodeAuthRequired) || ctx.Err() != nil {
			return nil, err
		}
		p.logger.Error("library refresh failed, using cached library", "err", err)
		games, c, err = p.library.Resolve(ctx, p.cacheSnapshot(), lib, true)
		if err != nil {
			return nil, err
		}
	}
	p.setOwned(games, c)

	out := make([]OwnedGame, 0, len(games))
	for _, g := range games {
		out = append(out, ownedGame(g))
	}
	return out, nil
}

func (p *Plugin) setOwned(games []model.Game, c *library.Cache) {
	byID := make(map[string]model.Game, len(games))
	for _, g := range games {
		byID[g.ID()] = g
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.owned = games
	p.ownedByID = byID
	p.cache = c
	p.imported = true
}

// applyLibrarySettings reassembles the owned games from the cache after
// the [library] settings changed and reports the difference.
func (p *Plugin) applyLibrarySettings(ctx context.Context, lib settings.Library) error {
	p.mu.Lock()
	before := p.owned
	p.mu.Unlock()

	games, c, err := p.library.Resolve(ctx, p.cacheSnapshot(), lib, true)
	if err != nil {
		return err
	}
	p.setOwned(games, c)

	now := make(map[string]bool, len(games))
	for _, g := range games {
		now[g.ID()] = true
	}
	was := make(map[string]bool, len(before))
	for _, g := range before {
		was[g.ID()] = true
		if !now[g.ID()] {
			p.notify("remove_game", map[string]string{"game_id": g.ID()})
		}
	}
	for _, g := range games {
		if !was[g.ID()] {
			p.notify("add_game", map[string]OwnedGame{"owned_game": ownedGame(g)})
		}
	}
	return nil
}

// GetOSCompatibility returns the launcher OS bitmask, or nil when unknown.
func (p *Plugin) GetOSCompatibility(id string) (*int, error) {
	g, ok := p.game(id)
	if !ok {
		return nil, errors.New(errors.ErrCodeNotFound, "unknown game %s", id)
	}
	c := int(g.OSCompatibility())
	if c == 0 {
		return nil, nil
	}
	return &c, nil
}

// GetGameLibrarySettings returns the library tags of a game.
func (p *Plugin) GetGameLibrarySettings(id string) (*GameLibrarySettings, error) {
	g, ok := p.game(id)
	if !ok {
		return nil, errors.New(errors.ErrCodeNotFound, "unknown game %s", id)
	}
	return &GameLibrarySettings{GameID: id, Tags: model.Tags(g), Hidden: false}, nil
}
