package plugin

import (
	"context"

	"github.com/matzehuels/humbleplugin/pkg/errors"
	"github.com/matzehuels/humbleplugin/pkg/model"
	"github.com/matzehuels/humbleplugin/pkg/settings"
)

// ImportSubscriptions lists the user's subscriptions.
func (p *Plugin) ImportSubscriptions(ctx context.Context) ([]Subscription, error) {
	subs, err := p.subs.Resolve(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]Subscription, 0, len(subs))
	for _, s := range subs {
		out = append(out, Subscription{
			SubscriptionName:      s.Name,
			Owned:                 s.Owned,
			SubscriptionDiscovery: discoveredAutomatically,
		})
	}
	return out, nil
}

// GetSubscriptionGames lists the games of one subscription. Games
// Collection titles are only available in the Humble App and yield none.
func (p *Plugin) GetSubscriptionGames(ctx context.Context, name string) ([]SubscriptionGame, error) {
	switch {
	case name == model.GamesCollection:
		return []SubscriptionGame{}, nil
	case name == model.Vault:
		return p.vaultGames(ctx)
	case model.IsChoiceLabel(name):
		games, err := p.subs.Games(ctx, name)
		if err != nil {
			return nil, err
		}
		p.mu.Lock()
		for _, g := range games {
			p.choiceGames[g.ID()] = g
		}
		p.mu.Unlock()
		out := make([]SubscriptionGame, 0, len(games))
		for _, g := range games {
			out = append(out, SubscriptionGame{GameTitle: g.Title(), GameID: g.ID()})
		}
		return out, nil
	}
	return nil, errors.New(errors.ErrCodeInvalidInput, "unknown subscription %q", name)
}

// vaultGames returns the cached Vault games, fetching the catalogue when
// the cache has none.
func (p *Plugin) vaultGames(ctx context.Context) ([]SubscriptionGame, error) {
	lib := settings.Library{Sources: []settings.Source{settings.SourceTrove}}
	games, _, err := p.library.Resolve(ctx, p.cacheSnapshot(), lib, true)
	if err != nil {
		return nil, err
	}
	if len(games) == 0 {
		var c = p.cacheSnapshot()
		games, c, err = p.library.Resolve(ctx, c, lib, false)
		if err != nil {
			return nil, err
		}
		p.mu.Lock()
		p.cache = c
		p.mu.Unlock()
	}
	out := make([]SubscriptionGame, 0, len(games))
	for _, g := range games {
		out = append(out, SubscriptionGame{GameTitle: g.Title(), GameID: g.ID()})
	}
	return out, nil
}
