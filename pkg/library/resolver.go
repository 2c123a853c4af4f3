// Package library resolves the user's owned games from Humble orders and
// the Trove catalogue.
//
// A resolve fetches as little as possible: inside the refresh window only
// new orders and orders that may still change are requested, and Trove
// chunks continue from where the cache ends. Results are assembled from the
// raw JSON in a fixed order (orders in cache order, sources in settings
// order) and deduplicated by title, first entry wins.
package library

import (
	"context"
	"encoding/json"
	"iter"
	"slices"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/errgroup"

	"github.com/matzehuels/humbleplugin/pkg/errors"
	"github.com/matzehuels/humbleplugin/pkg/humble"
	"github.com/matzehuels/humbleplugin/pkg/model"
	"github.com/matzehuels/humbleplugin/pkg/observability"
	"github.com/matzehuels/humbleplugin/pkg/settings"
)

// DefaultRefreshInterval is the time between full refreshes.
const DefaultRefreshInterval = 14 * 24 * time.Hour

// fetchConcurrency bounds parallel order requests.
const fetchConcurrency = 4

// API is the subset of the Humble API the resolver uses.
type API interface {
	GetGamekeys(ctx context.Context) ([]string, error)
	GetOrderDetails(ctx context.Context, gamekey string) (json.RawMessage, error)
	GetOrdersBulkDetails(ctx context.Context, gamekeys []string) (map[string]json.RawMessage, error)
	HadTroveSubscription(ctx context.Context) (bool, error)
	TroveChunks(ctx context.Context, from int) iter.Seq2[[]json.RawMessage, error]
}

// SaveFunc receives the cache after a resolve changed it.
type SaveFunc func(*Cache)

// Resolver builds the owned-games list.
type Resolver struct {
	api     API
	save    SaveFunc
	logger  *log.Logger
	refresh time.Duration
	now     func() time.Time
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithRefreshInterval overrides DefaultRefreshInterval.
func WithRefreshInterval(d time.Duration) Option {
	return func(r *Resolver) { r.refresh = d }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(r *Resolver) { r.now = now }
}

// NewResolver creates a Resolver. save may be nil.
func NewResolver(api API, save SaveFunc, logger *log.Logger, opts ...Option) *Resolver {
	if logger == nil {
		logger = log.Default()
	}
	r := &Resolver{
		api:     api,
		save:    save,
		logger:  logger,
		refresh: DefaultRefreshInterval,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve returns the owned games for lib and the updated cache.
//
// The input cache is not modified. With onlyCache set no network request is
// made and the games are assembled from the cache alone. The save callback
// runs when network work changed the cache.
func (r *Resolver) Resolve(ctx context.Context, cache *Cache, lib settings.Library, onlyCache bool) ([]model.Game, *Cache, error) {
	hooks := observability.Resolve()
	hooks.OnResolveStart(ctx, "library")
	start := time.Now()

	c := cache.Clone()
	var err error
	if !onlyCache {
		err = r.fetch(ctx, c, lib)
	}
	var games []model.Game
	if err == nil {
		games = r.assemble(c, lib)
	}
	hooks.OnResolveComplete(ctx, "library", len(games), time.Since(start), err)
	if err != nil {
		return nil, cache, err
	}
	return games, c, nil
}

func (r *Resolver) fetch(ctx context.Context, c *Cache, lib settings.Library) error {
	var ordersChanged, trovesChanged bool
	if lib.Has(settings.SourceDRMFree) || lib.Has(settings.SourceKeys) {
		var err error
		if ordersChanged, err = r.fetchOrders(ctx, c); err != nil {
			return err
		}
	}
	if lib.Has(settings.SourceTrove) {
		var err error
		if trovesChanged, err = r.fetchTroves(ctx, c); err != nil {
			return err
		}
	}
	if (ordersChanged || trovesChanged) && r.save != nil {
		r.save(c)
	}
	return nil
}

// fetchOrders updates c.Orders and reports whether the cache changed.
func (r *Resolver) fetchOrders(ctx context.Context, c *Cache) (bool, error) {
	gamekeys, err := r.api.GetGamekeys(ctx)
	if err != nil {
		return false, err
	}
	now := r.now()
	full := due(c.NextFetchOrders, now)

	var todo []string
	if full {
		todo = gamekeys
	} else {
		for _, gk := range gamekeys {
			raw, ok := c.Orders.Get(gk)
			if !ok {
				todo = append(todo, gk)
				continue
			}
			if o, err := model.ParseOrder(raw); err != nil || !o.IsConst() {
				todo = append(todo, gk)
			}
		}
	}
	if len(todo) == 0 {
		return false, nil
	}
	r.logger.Debug("fetching orders", "count", len(todo), "full", full)

	fetched, err := r.fetchOrderDetails(ctx, todo)
	if err != nil {
		return false, err
	}

	if full {
		next := Orders{}
		for _, gk := range gamekeys {
			if raw, ok := fetched[gk]; ok {
				next.Set(gk, raw)
			} else if raw, ok := c.Orders.Get(gk); ok {
				next.Set(gk, raw)
			}
		}
		c.Orders = next
		c.NextFetchOrders = now.Add(r.refresh).Unix()
		return true, nil
	}
	for _, gk := range todo {
		if raw, ok := fetched[gk]; ok {
			c.Orders.Set(gk, raw)
		}
	}
	return len(fetched) > 0, nil
}

type orderFailure struct {
	gamekey string
	err     error
}

// fetchOrderDetails fetches gamekeys through the bulk endpoint, falling back
// to per-order requests for rejected batches and for gamekeys the bulk
// response omitted. Individual failures are logged; an error is returned
// only when nothing succeeded.
func (r *Resolver) fetchOrderDetails(ctx context.Context, gamekeys []string) (map[string]json.RawMessage, error) {
	var (
		mu       sync.Mutex
		fetched  = make(map[string]json.RawMessage, len(gamekeys))
		failures []orderFailure
		authErr  error
	)

	var bulk errgroup.Group
	bulk.SetLimit(fetchConcurrency)
	for batch := range slices.Chunk(gamekeys, humble.BulkBatchSize) {
		bulk.Go(func() error {
			if ctx.Err() != nil {
				return nil
			}
			got, err := r.api.GetOrdersBulkDetails(ctx, batch)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				if errors.Is(err, errors.ErrCodeAuthRequired) {
					authErr = err
				}
				r.logger.Debug("bulk order request failed, falling back to single orders", "batch", len(batch), "err", err)
				return nil
			}
			for gk, raw := range got {
				fetched[gk] = raw
			}
			return nil
		})
	}
	bulk.Wait()
	if authErr != nil {
		return nil, authErr
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var missing []string
	for _, gk := range gamekeys {
		if _, ok := fetched[gk]; !ok {
			missing = append(missing, gk)
		}
	}
	var single errgroup.Group
	single.SetLimit(fetchConcurrency)
	for _, gk := range missing {
		single.Go(func() error {
			if ctx.Err() != nil {
				return nil
			}
			raw, err := r.api.GetOrderDetails(ctx, gk)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				failures = append(failures, orderFailure{gk, err})
				return nil
			}
			fetched[gk] = raw
			return nil
		})
	}
	single.Wait()
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if len(failures) == 0 {
		return fetched, nil
	}
	slices.SortFunc(failures, func(a, b orderFailure) int {
		return slices.Index(gamekeys, a.gamekey) - slices.Index(gamekeys, b.gamekey)
	})
	if len(fetched) == 0 {
		return nil, failures[0].err
	}
	for _, f := range failures {
		r.logger.Error("fetching order failed", "gamekey", f.gamekey, "err", f.err)
	}
	return fetched, nil
}

// fetchTroves updates c.Troves and reports whether the cache changed.
// Chunk failures other than AUTH_REQUIRED keep whatever was already cached.
func (r *Resolver) fetchTroves(ctx context.Context, c *Cache) (bool, error) {
	now := r.now()
	full := due(c.NextFetchTroves, now)

	var troves []json.RawMessage
	from := 0
	if full {
		had, err := r.api.HadTroveSubscription(ctx)
		if errors.Is(err, errors.ErrCodeAuthRequired) {
			return false, err
		}
		if err != nil {
			r.logger.Warn("cannot check trove subscription, fetching anyway", "err", err)
			had = true
		}
		if !had {
			c.Troves = nil
			c.NextFetchTroves = now.Add(r.refresh).Unix()
			return true, nil
		}
	} else {
		from = len(c.Troves) / humble.TroveChunkSize
		troves = slices.Clone(c.Troves[:from*humble.TroveChunkSize])
	}

	fetched, index := 0, from
	for chunk, err := range r.api.TroveChunks(ctx, from) {
		if err != nil {
			if errors.Is(err, errors.ErrCodeAuthRequired) || ctx.Err() != nil {
				return false, err
			}
			r.logger.Error("fetching trove chunk failed", "index", index, "err", err)
			if fetched == 0 {
				return false, nil
			}
			break
		}
		troves = append(troves, chunk...)
		fetched += len(chunk)
		index++
	}

	if !full && fetched == 0 {
		return false, nil
	}
	c.Troves = troves
	if full {
		c.NextFetchTroves = now.Add(r.refresh).Unix()
	}
	return true, nil
}

// assemble builds the game list from the cache.
func (r *Resolver) assemble(c *Cache, lib settings.Library) []model.Game {
	var orders []*model.Order
	for _, gk := range c.Orders.Keys() {
		raw, _ := c.Orders.Get(gk)
		o, err := model.ParseOrder(raw)
		if err != nil {
			r.logger.Warn("skipping cached order", "gamekey", gk, "err", err)
			continue
		}
		if o.IsNonGame() {
			continue
		}
		for _, err := range o.Invalid {
			r.logger.Warn("skipping invalid entry", "gamekey", gk, "err", err)
		}
		orders = append(orders, o)
	}

	d := newDeduper()
	for _, src := range lib.Sources {
		switch src {
		case settings.SourceDRMFree:
			for _, o := range orders {
				for _, sub := range o.Subproducts {
					if sub.HasGameDownload() {
						d.add(sub)
					}
				}
			}
		case settings.SourceKeys:
			for _, o := range orders {
				for _, key := range o.Keys {
					if key.Revealed() && !lib.ShowRevealedKeys {
						continue
					}
					for _, kg := range key.KeyGames(o.Product) {
						d.add(kg)
					}
				}
			}
		case settings.SourceTrove:
			for _, raw := range c.Troves {
				tg, err := model.ParseTroveGame(raw)
				if err != nil {
					r.logger.Warn("skipping invalid trove entry", "err", err)
					continue
				}
				d.add(tg)
			}
		}
	}
	return d.games
}

type deduper struct {
	titles map[string]bool
	ids    map[string]bool
	games  []model.Game
}

func newDeduper() *deduper {
	return &deduper{titles: make(map[string]bool), ids: make(map[string]bool)}
}

func (d *deduper) add(g model.Game) {
	if d.titles[g.Title()] || d.ids[g.ID()] {
		return
	}
	d.titles[g.Title()] = true
	d.ids[g.ID()] = true
	d.games = append(d.games, g)
}
