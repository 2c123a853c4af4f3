// Package subscription works out which Humble subscription products the user
// owns.
//
// Choice months come from the paged subscription product list. The active
// month is not always in that list, so it is looked up separately: from the
// subscriber hub while perks are active, otherwise (or when the hub page has
// drifted) from the public marketing page.
package subscription

import (
	"context"
	"iter"
	"slices"
	"time"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/humbleplugin/pkg/errors"
	"github.com/matzehuels/humbleplugin/pkg/model"
	"github.com/matzehuels/humbleplugin/pkg/observability"
)

// API is the subset of the Humble API the resolver uses.
type API interface {
	GetUserSubscriptionState(ctx context.Context) (*model.UserSubscriptionState, error)
	SubscriptionProducts(ctx context.Context) iter.Seq2[model.SubscriptionProduct, error]
	GetSubscriberHubData(ctx context.Context) (*model.SubscriberHubData, error)
	GetChoiceMarketingData(ctx context.Context) (*model.ChoiceMarketingData, error)
	GetChoiceContentData(ctx context.Context, productURLPath string) (*model.ChoiceMonth, error)
}

// ActiveMonth is the month currently on offer.
type ActiveMonth struct {
	MachineName string
	Owned       bool
}

// Resolver builds the subscription list.
type Resolver struct {
	api    API
	logger *log.Logger
}

// NewResolver creates a Resolver.
func NewResolver(api API, logger *log.Logger) *Resolver {
	if logger == nil {
		logger = log.Default()
	}
	return &Resolver{api: api, logger: logger}
}

// Resolve returns Choice months in chronological order followed by the
// perk subscriptions when perks are active.
//
// Only AUTH_REQUIRED and BACKEND_UNAVAILABLE fail the call. Other failures
// are logged and leave the affected part out.
func (r *Resolver) Resolve(ctx context.Context) ([]model.Subscription, error) {
	hooks := observability.Resolve()
	hooks.OnResolveStart(ctx, "subscriptions")
	start := time.Now()

	subs, err := r.resolve(ctx)
	hooks.OnResolveComplete(ctx, "subscriptions", len(subs), time.Since(start), err)
	return subs, err
}

func (r *Resolver) resolve(ctx context.Context) ([]model.Subscription, error) {
	state, err := r.api.GetUserSubscriptionState(ctx)
	if err != nil {
		if fatal(err) {
			return nil, err
		}
		r.logger.Warn("subscription state unavailable, assuming no perks", "err", err)
		state = &model.UserSubscriptionState{}
	}

	months := newMonthSet()
	for p, err := range r.api.SubscriptionProducts(ctx) {
		if err != nil {
			if fatal(err) {
				return nil, err
			}
			r.logger.Error("listing subscription products failed", "err", err)
			break
		}
		if !p.IsChoice() {
			r.logger.Debug("skipping non-choice subscription product", "product", p.ProductMachineName)
			continue
		}
		label, err := model.MonthLabel(p.ProductMachineName)
		if err != nil {
			r.logger.Warn("skipping subscription product", "product", p.ProductMachineName, "err", err)
			continue
		}
		months.add(label, p.Gamekey != "")
	}

	active, err := r.ActiveMonth(ctx, state)
	switch {
	case err == nil:
		label, lerr := model.MonthLabel(active.MachineName)
		if lerr != nil {
			r.logger.Warn("unrecognized active month", "product", active.MachineName, "err", lerr)
			break
		}
		months.addIfAbsent(label, active.Owned)
	case fatal(err):
		return nil, err
	default:
		r.logger.Warn("active month unavailable", "err", err)
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	subs := months.sorted()
	if state.PerksActive() {
		subs = append(subs,
			model.Subscription{Name: model.GamesCollection, Owned: true},
			model.Subscription{Name: model.Vault, Owned: true},
		)
	}
	return subs, nil
}

// ActiveMonth determines the active Choice month and whether the user owns
// it. With active perks the subscriber hub is authoritative, except that the
// Lite tier does not include the monthly games. Without perks, or when the
// hub cannot be read, the marketing page names the month and it is reported
// as not owned.
func (r *Resolver) ActiveMonth(ctx context.Context, state *model.UserSubscriptionState) (ActiveMonth, error) {
	if state != nil && state.PerksActive() {
		hub, err := r.api.GetSubscriberHubData(ctx)
		switch {
		case err == nil && hub.PayEarly.ProductMachineName != "":
			return ActiveMonth{
				MachineName: hub.PayEarly.ProductMachineName,
				Owned:       !hub.Plan.IsLite(),
			}, nil
		case err == nil:
			r.logger.Debug("subscriber hub has no active product, using marketing data")
		case errors.Is(err, errors.ErrCodeAuthRequired):
			return ActiveMonth{}, err
		default:
			r.logger.Debug("subscriber hub unusable, using marketing data", "err", err)
		}
	}

	data, err := r.api.GetChoiceMarketingData(ctx)
	if err != nil {
		return ActiveMonth{}, err
	}
	return ActiveMonth{MachineName: data.ActiveContentMachineName}, nil
}

// Games returns the launcher entries of a Choice month given its label,
// e.g. "Humble Choice 2020-05".
func (r *Resolver) Games(ctx context.Context, label string) ([]model.ChoiceGame, error) {
	urlPath, err := model.URLPathFromLabel(label)
	if err != nil {
		return nil, err
	}
	month, err := r.api.GetChoiceContentData(ctx, urlPath)
	if err != nil {
		return nil, err
	}
	return month.Games(), nil
}

func fatal(err error) bool {
	return errors.Is(err, errors.ErrCodeAuthRequired) || errors.Is(err, errors.ErrCodeBackendUnavailable)
}

// monthSet collects months by label. A month listed more than once among
// the products is owned if any listing has a gamekey.
type monthSet struct {
	owned map[string]bool
}

func newMonthSet() *monthSet { return &monthSet{owned: make(map[string]bool)} }

func (s *monthSet) add(label string, owned bool) {
	s.owned[label] = s.owned[label] || owned
}

// addIfAbsent leaves a month the products already listed untouched.
func (s *monthSet) addIfAbsent(label string, owned bool) {
	if _, ok := s.owned[label]; !ok {
		s.owned[label] = owned
	}
}

// sorted returns the months oldest first. Labels are "Humble Choice
// YYYY-MM", so lexical order is chronological.
func (s *monthSet) sorted() []model.Subscription {
	labels := make([]string, 0, len(s.owned))
	for l := range s.owned {
		labels = append(labels, l)
	}
	slices.Sort(labels)
	subs := make([]model.Subscription, 0, len(labels)+2)
	for _, l := range labels {
		subs = append(subs, model.Subscription{Name: l, Owned: s.owned[l]})
	}
	return subs
}
