// Package humble implements the typed Humble Bundle web API used by the
// plugin: session handling, orders, subscriptions, Trove chunks and
// download signing.
//
// All calls go through [Client], which classifies failures into the
// plugin's error codes. [API] adds endpoint knowledge on top of it and
// caches Choice month pages that can no longer change.
package humble

import (
	"context"
	"encoding/json"
	"iter"
	"net/http"
	"net/url"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/humbleplugin/pkg/cache"
	"github.com/matzehuels/humbleplugin/pkg/errors"
	"github.com/matzehuels/humbleplugin/pkg/model"
	"github.com/matzehuels/humbleplugin/pkg/observability"
	"github.com/matzehuels/humbleplugin/pkg/webpack"
)

// Endpoint paths relative to the Humble authority.
const (
	PathUserOrders           = "/api/v1/user/order"
	PathOrder                = "/api/v1/order/"
	PathOrders               = "/api/v1/orders"
	PathSubscriberHub        = "/monthly/subscriber"
	PathSubscriptionHome     = "/subscription/home"
	PathSubscription         = "/subscription"
	PathSubscriptionProducts = "/api/v1/subscriptions/humble_monthly/subscription_products_with_gamekeys/"
	PathTroveChunk           = "/api/v1/trove/chunk"
	PathSign                 = "/api/v1/user/download/sign"
	PathRedeemDownload       = "/humbler/redeemdownload"
)

const (
	// BulkBatchSize is the number of gamekeys sent in one bulk order request.
	BulkBatchSize = 40

	// TroveChunkSize is the number of games per Trove chunk.
	TroveChunkSize = 20

	// ChoicePageTTL is how long pages of past Choice months are cached.
	ChoicePageTTL = 30 * 24 * time.Hour

	redeemOK = "{'success': True}"
)

// API is the typed Humble web API.
type API struct {
	client *Client
	pages  cache.Cache
	logger *log.Logger
}

// NewAPI creates an API over client. pages caches Choice month content; pass
// cache.NewNullCache() to disable it.
func NewAPI(client *Client, pages cache.Cache, logger *log.Logger) *API {
	if pages == nil {
		pages = cache.NewNullCache()
	}
	if logger == nil {
		logger = log.Default()
	}
	return &API{client: client, pages: pages, logger: logger}
}

// SetCookies installs session cookies, e.g. restored credentials.
func (a *API) SetCookies(cookies map[string]string) { a.client.SetCookies(cookies) }

// Cookies returns the current session cookies, including any the backend
// refreshed.
func (a *API) Cookies() map[string]string { return a.client.Cookies() }

// Close releases the HTTP session and the page cache.
func (a *API) Close() error {
	a.client.Close()
	return a.pages.Close()
}

// Authenticate installs the session cookie, derives the user id from it and
// verifies the session with an authenticated request.
func (a *API) Authenticate(ctx context.Context, sessionCookie string) (string, error) {
	userID, err := DecodeUserID(sessionCookie)
	if err != nil {
		return "", err
	}
	a.client.SetCookies(map[string]string{SessionCookie: sessionCookie})
	if _, err := a.GetGamekeys(ctx); err != nil {
		return "", err
	}
	return userID, nil
}

// GetGamekeys lists the gamekeys of all orders.
func (a *API) GetGamekeys(ctx context.Context) ([]string, error) {
	var orders []struct {
		Gamekey string `json:"gamekey"`
	}
	if err := a.client.GetJSON(ctx, PathUserOrders, nil, &orders); err != nil {
		return nil, err
	}
	keys := make([]string, 0, len(orders))
	for _, o := range orders {
		if o.Gamekey != "" {
			keys = append(keys, o.Gamekey)
		}
	}
	return keys, nil
}

// GetOrderDetails fetches one order with all its keys.
func (a *API) GetOrderDetails(ctx context.Context, gamekey string) (json.RawMessage, error) {
	if err := errors.ValidateGamekey(gamekey); err != nil {
		return nil, err
	}
	var raw json.RawMessage
	q := url.Values{"all_tpkds": {"true"}}
	if err := a.client.GetJSON(ctx, PathOrder+gamekey, q, &raw); err != nil {
		return nil, err
	}
	return raw, nil
}

// GetOrdersBulkDetails fetches several orders at once, in batches of
// BulkBatchSize. The result is keyed by gamekey; gamekeys the backend does
// not return are absent. The backend answers either with an object keyed by
// gamekey or with an array of orders; both are accepted.
func (a *API) GetOrdersBulkDetails(ctx context.Context, gamekeys []string) (map[string]json.RawMessage, error) {
	out := make(map[string]json.RawMessage, len(gamekeys))
	for start := 0; start < len(gamekeys); start += BulkBatchSize {
		batch := gamekeys[start:min(start+BulkBatchSize, len(gamekeys))]
		q := url.Values{"all_tpkds": {"true"}}
		for _, gk := range batch {
			if err := errors.ValidateGamekey(gk); err != nil {
				return nil, err
			}
			q.Add("gamekeys", gk)
		}

		var raw json.RawMessage
		if err := a.client.GetJSON(ctx, PathOrders, q, &raw); err != nil {
			return nil, err
		}
		if err := collectOrders(raw, out); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func collectOrders(raw json.RawMessage, out map[string]json.RawMessage) error {
	var byKey map[string]json.RawMessage
	if err := json.Unmarshal(raw, &byKey); err == nil {
		for gk, o := range byKey {
			if string(o) != "null" {
				out[gk] = o
			}
		}
		return nil
	}
	var list []json.RawMessage
	if err := json.Unmarshal(raw, &list); err != nil {
		return errors.Wrap(errors.ErrCodeUnknownBackend, err, "bulk orders response")
	}
	for _, o := range list {
		var peek struct {
			Gamekey string `json:"gamekey"`
		}
		if json.Unmarshal(o, &peek) == nil && peek.Gamekey != "" {
			out[peek.Gamekey] = o
		}
	}
	return nil
}

// GetSubscriberHubData scrapes the subscriber hub page. The plan and the
// pay-early options are required; the content options are optional.
func (a *API) GetSubscriberHubData(ctx context.Context) (*model.SubscriberHubData, error) {
	page, err := a.client.GetPage(ctx, PathSubscriberHub)
	if err != nil {
		return nil, err
	}
	var hub model.SubscriberHubData
	if err := webpack.ExtractInto(page, webpack.UserSubscriptionPlan, &hub.Plan); err != nil {
		return nil, err
	}
	if err := webpack.ExtractInto(page, webpack.PayEarlyOptions, &hub.PayEarly); err != nil {
		return nil, err
	}
	if raw, err := webpack.Extract(page, webpack.ContentChoiceOptions); err == nil {
		hub.Content = raw
	}
	return &hub, nil
}

// GetUserSubscriptionState scrapes the user's subscription state.
func (a *API) GetUserSubscriptionState(ctx context.Context) (*model.UserSubscriptionState, error) {
	page, err := a.client.GetPage(ctx, PathSubscriptionHome)
	if err != nil {
		return nil, err
	}
	var state model.UserSubscriptionState
	if err := webpack.ExtractInto(page, webpack.UserSubscriptionState, &state); err != nil {
		return nil, err
	}
	return &state, nil
}

// SubscriptionProducts iterates the paged subscription products, newest
// first. Iteration ends on an empty page or a 404; any other error is
// yielded once and ends the sequence.
func (a *API) SubscriptionProducts(ctx context.Context) iter.Seq2[model.SubscriptionProduct, error] {
	return func(yield func(model.SubscriptionProduct, error) bool) {
		for page := 1; ; page++ {
			var products []model.SubscriptionProduct
			err := a.client.GetJSON(ctx, PathSubscriptionProducts+strconv.Itoa(page), nil, &products)
			if errors.Is(err, errors.ErrCodeNotFound) {
				return
			}
			if err != nil {
				yield(model.SubscriptionProduct{}, err)
				return
			}
			if len(products) == 0 {
				return
			}
			for _, p := range products {
				if !yield(p, nil) {
					return
				}
			}
		}
	}
}

// GetChoiceMarketingData scrapes the public subscription page.
func (a *API) GetChoiceMarketingData(ctx context.Context) (*model.ChoiceMarketingData, error) {
	page, err := a.client.GetPage(ctx, PathSubscription)
	if err != nil {
		return nil, err
	}
	var data model.ChoiceMarketingData
	if err := webpack.ExtractInto(page, webpack.ChoiceMarketingData, &data); err != nil {
		return nil, err
	}
	if data.ActiveContentMachineName == "" {
		return nil, errors.New(errors.ErrCodeWebpackParse, "choiceMarketingData has no activeContentMachineName")
	}
	return &data, nil
}

// GetChoiceContentData returns the month page model for productURLPath,
// e.g. "may-2020". Months that are no longer active are served from the
// page cache when possible.
func (a *API) GetChoiceContentData(ctx context.Context, productURLPath string) (*model.ChoiceMonth, error) {
	if productURLPath == "" || strings.ContainsAny(productURLPath, "/?#") {
		return nil, errors.New(errors.ErrCodeInvalidInput, "invalid month path %q", productURLPath)
	}
	key := "choice:" + productURLPath
	hooks := observability.Cache()

	if data, ok, err := a.pages.Get(ctx, key); err == nil && ok {
		if month, err := model.ParseChoiceMonth(data); err == nil {
			hooks.OnCacheHit(ctx, "choice")
			return month, nil
		}
		_ = a.pages.Delete(ctx, key)
	}
	hooks.OnCacheMiss(ctx, "choice")

	page, err := a.client.GetPage(ctx, path.Join(PathSubscription, productURLPath))
	if err != nil {
		return nil, err
	}
	raw, err := webpack.Extract(page, webpack.ContentChoiceOptions)
	if err != nil {
		return nil, err
	}
	month, err := model.ParseChoiceMonth(raw)
	if err != nil {
		return nil, err
	}
	if !month.IsActiveContent {
		if err := a.pages.Set(ctx, key, raw, ChoicePageTTL); err != nil {
			a.logger.Warn("caching choice page failed", "month", productURLPath, "err", err)
		} else {
			hooks.OnCacheSet(ctx, "choice", len(raw))
		}
	}
	return month, nil
}

// HadTroveSubscription reports whether the user was ever a subscriber:
// the hub answers 200 for them and redirects everyone else.
func (a *API) HadTroveSubscription(ctx context.Context) (bool, error) {
	resp, err := a.client.Do(ctx, Request{Path: PathSubscriberHub, Query: url.Values{}, NoRedirect: true})
	if err != nil {
		return false, err
	}
	resp.Body.Close()
	return resp.StatusCode == http.StatusOK, nil
}

// GetTroveDetails fetches one Trove chunk. An empty result marks the end.
func (a *API) GetTroveDetails(ctx context.Context, index int) ([]json.RawMessage, error) {
	q := url.Values{
		"property":  {"popularity"},
		"direction": {"desc"},
		"index":     {strconv.Itoa(index)},
	}
	var chunk []json.RawMessage
	if err := a.client.GetJSON(ctx, PathTroveChunk, q, &chunk); err != nil {
		return nil, err
	}
	return chunk, nil
}

// TroveChunks iterates Trove chunks starting at index from until an empty
// chunk. Errors are yielded once and end the sequence.
func (a *API) TroveChunks(ctx context.Context, from int) iter.Seq2[[]json.RawMessage, error] {
	return Chunks(ctx, from, a.GetTroveDetails)
}

// Chunks pages through an index-addressed endpoint such as the Trove
// catalogue. It stops at the first empty chunk, and yields the first error,
// including a cancelled context, before stopping.
func Chunks(ctx context.Context, from int, fetch func(context.Context, int) ([]json.RawMessage, error)) iter.Seq2[[]json.RawMessage, error] {
	return func(yield func([]json.RawMessage, error) bool) {
		for index := from; ; index++ {
			if err := ctx.Err(); err != nil {
				yield(nil, err)
				return
			}
			chunk, err := fetch(ctx, index)
			if err != nil {
				yield(nil, err)
				return
			}
			if len(chunk) == 0 {
				return
			}
			if !yield(chunk, nil) {
				return
			}
		}
	}
}

type signResponse struct {
	SignedURL string `json:"signed_url"`
}

// SignURLSubproduct returns a signed download URL for a subproduct download.
func (a *API) SignURLSubproduct(ctx context.Context, downloadMachineName, filename string) (string, error) {
	return a.sign(ctx, downloadMachineName, filename)
}

// SignURLTrove returns a signed download URL for a Trove download and
// registers the download with the redeem endpoint.
func (a *API) SignURLTrove(ctx context.Context, download model.DownloadStruct, productMachineName string) (string, error) {
	filename := path.Base(download.URL.Web)
	if u, err := url.Parse(download.URL.Web); err == nil {
		filename = path.Base(u.Path)
	}
	signed, err := a.sign(ctx, download.MachineName, filename)
	if err != nil {
		return "", err
	}
	body, err := a.client.PostForm(ctx, PathRedeemDownload, url.Values{
		"download":      {download.MachineName},
		"download_page": {"false"},
		"product":       {productMachineName},
	})
	if err != nil {
		return "", err
	}
	// The backend answers with a Python dict literal, not JSON.
	if strings.TrimSpace(string(body)) != redeemOK {
		return "", errors.UnknownBackend("unexpected redeem response %q", string(body))
	}
	return signed, nil
}

func (a *API) sign(ctx context.Context, machineName, filename string) (string, error) {
	if machineName == "" {
		return "", errors.New(errors.ErrCodeInvalidInput, "download has no machine name")
	}
	body, err := a.client.PostForm(ctx, PathSign, url.Values{
		"machine_name": {machineName},
		"filename":     {filename},
	})
	if err != nil {
		return "", err
	}
	var resp signResponse
	if err := json.Unmarshal(body, &resp); err != nil || resp.SignedURL == "" {
		return "", errors.UnknownBackend("unexpected sign response for %s", machineName)
	}
	return resp.SignedURL, nil
}
