package humble

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/spf13/afero"

	"github.com/matzehuels/humbleplugin/pkg/cache"
	"github.com/matzehuels/humbleplugin/pkg/errors"
	"github.com/matzehuels/humbleplugin/pkg/model"
)

const testCookie = `eyJ1c2VyX2lkIjogMTIzfQ==|sig`

func newTestAPI(t *testing.T, r chi.Router, pages cache.Cache) *API {
	t.Helper()
	server := httptest.NewServer(r)
	t.Cleanup(server.Close)
	u, _ := url.Parse(server.URL)
	return NewAPI(NewClient(WithBaseURL(u)), pages, nil)
}

func page(models map[string]string) string {
	var b strings.Builder
	b.WriteString("<html><head><script>\nwindow.models = window.models || {};\n")
	for id, literal := range models {
		fmt.Fprintf(&b, "  window.models.%s = %s;\n", id, literal)
	}
	b.WriteString("</script></head><body></body></html>")
	return b.String()
}

func TestAuthenticate(t *testing.T) {
	r := chi.NewRouter()
	r.Get(PathUserOrders, func(w http.ResponseWriter, r *http.Request) {
		if _, err := r.Cookie(SessionCookie); err != nil {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Write([]byte(`[{"gamekey": "a"}]`))
	})
	api := newTestAPI(t, r, nil)

	id, err := api.Authenticate(context.Background(), testCookie)
	if err != nil {
		t.Fatalf("Authenticate() error: %v", err)
	}
	if id != "123" {
		t.Errorf("user id = %q, want 123", id)
	}
}

func TestAuthenticate_Rejected(t *testing.T) {
	r := chi.NewRouter()
	r.Get(PathUserOrders, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	})
	api := newTestAPI(t, r, nil)

	_, err := api.Authenticate(context.Background(), testCookie)
	if !errors.Is(err, errors.ErrCodeAuthRequired) {
		t.Errorf("error = %v, want AUTH_REQUIRED", err)
	}
}

func TestGetGamekeysAndOrder(t *testing.T) {
	r := chi.NewRouter()
	r.Get(PathUserOrders, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[{"gamekey": "k1"}, {"gamekey": "k2"}, {}]`))
	})
	r.Get(PathOrder+"{gamekey}", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("all_tpkds") != "true" {
			t.Errorf("all_tpkds missing: %s", r.URL.RawQuery)
		}
		fmt.Fprintf(w, `{"gamekey": %q, "product": {"category": "storefront"}}`, chi.URLParam(r, "gamekey"))
	})
	api := newTestAPI(t, r, nil)
	ctx := context.Background()

	keys, err := api.GetGamekeys(ctx)
	if err != nil {
		t.Fatalf("GetGamekeys() error: %v", err)
	}
	if len(keys) != 2 || keys[0] != "k1" || keys[1] != "k2" {
		t.Errorf("GetGamekeys() = %v", keys)
	}

	raw, err := api.GetOrderDetails(ctx, "k2")
	if err != nil {
		t.Fatalf("GetOrderDetails() error: %v", err)
	}
	o, err := model.ParseOrder(raw)
	if err != nil || o.Gamekey != "k2" {
		t.Errorf("order = %+v, %v", o, err)
	}

	if _, err := api.GetOrderDetails(ctx, "../etc"); !errors.Is(err, errors.ErrCodeInvalidInput) {
		t.Errorf("GetOrderDetails(bad key) error = %v, want INVALID_INPUT", err)
	}
}

func TestGetOrdersBulkDetails(t *testing.T) {
	for _, shape := range []string{"object", "array"} {
		t.Run(shape, func(t *testing.T) {
			var requests atomic.Int32
			r := chi.NewRouter()
			r.Get(PathOrders, func(w http.ResponseWriter, r *http.Request) {
				requests.Add(1)
				keys := r.URL.Query()["gamekeys"]
				if len(keys) > BulkBatchSize {
					t.Errorf("batch of %d keys exceeds %d", len(keys), BulkBatchSize)
				}
				orders := make(map[string]json.RawMessage)
				var list []json.RawMessage
				for _, k := range keys {
					if k == "missing" {
						continue
					}
					o := json.RawMessage(fmt.Sprintf(`{"gamekey": %q, "product": {"category": "storefront"}}`, k))
					orders[k] = o
					list = append(list, o)
				}
				if shape == "object" {
					json.NewEncoder(w).Encode(orders)
				} else {
					json.NewEncoder(w).Encode(list)
				}
			})
			api := newTestAPI(t, r, nil)

			keys := []string{"missing"}
			for i := range BulkBatchSize + 5 {
				keys = append(keys, fmt.Sprintf("key%d", i))
			}
			got, err := api.GetOrdersBulkDetails(context.Background(), keys)
			if err != nil {
				t.Fatalf("GetOrdersBulkDetails() error: %v", err)
			}
			if len(got) != BulkBatchSize+5 {
				t.Errorf("len = %d, want %d", len(got), BulkBatchSize+5)
			}
			if _, ok := got["missing"]; ok {
				t.Error("missing gamekey should be absent")
			}
			if requests.Load() != 2 {
				t.Errorf("requests = %d, want 2", requests.Load())
			}
		})
	}
}

func TestSubscriptionProducts(t *testing.T) {
	tests := []struct {
		name string
		end  func(w http.ResponseWriter)
	}{
		{"empty page", func(w http.ResponseWriter) { w.Write([]byte(`[]`)) }},
		{"not found", func(w http.ResponseWriter) { w.WriteHeader(http.StatusNotFound) }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := chi.NewRouter()
			r.Get(PathSubscriptionProducts+"{page}", func(w http.ResponseWriter, r *http.Request) {
				switch chi.URLParam(r, "page") {
				case "1":
					w.Write([]byte(`[{"productMachineName": "may_2020_choice", "contentChoiceData": {}, "gamekey": "g"},
					                 {"productMachineName": "april_2020_choice", "contentChoiceData": {}}]`))
				case "2":
					w.Write([]byte(`[{"productMachineName": "march_2019_monthly"}]`))
				default:
					tt.end(w)
				}
			})
			api := newTestAPI(t, r, nil)

			var names []string
			for p, err := range api.SubscriptionProducts(context.Background()) {
				if err != nil {
					t.Fatalf("SubscriptionProducts() error: %v", err)
				}
				names = append(names, p.ProductMachineName)
			}
			want := []string{"may_2020_choice", "april_2020_choice", "march_2019_monthly"}
			if strings.Join(names, ",") != strings.Join(want, ",") {
				t.Errorf("products = %v, want %v", names, want)
			}
		})
	}
}

func TestSubscriptionProducts_Error(t *testing.T) {
	r := chi.NewRouter()
	r.Get(PathSubscriptionProducts+"{page}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	})
	api := newTestAPI(t, r, nil)

	var errs int
	for _, err := range api.SubscriptionProducts(context.Background()) {
		if !errors.Is(err, errors.ErrCodeBackendUnavailable) {
			t.Errorf("error = %v, want BACKEND_UNAVAILABLE", err)
		}
		errs++
	}
	if errs != 1 {
		t.Errorf("yielded %d errors, want 1", errs)
	}
}

func TestTroveChunks(t *testing.T) {
	r := chi.NewRouter()
	r.Get(PathTroveChunk, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Query().Get("index") {
		case "0", "1":
			fmt.Fprintf(w, `[{"machine_name": "t%s", "human-name": "T"}]`, r.URL.Query().Get("index"))
		default:
			w.Write([]byte(`[]`))
		}
	})
	api := newTestAPI(t, r, nil)

	var chunks int
	for chunk, err := range api.TroveChunks(context.Background(), 0) {
		if err != nil {
			t.Fatalf("TroveChunks() error: %v", err)
		}
		if len(chunk) != 1 {
			t.Errorf("chunk size = %d", len(chunk))
		}
		chunks++
	}
	if chunks != 2 {
		t.Errorf("chunks = %d, want 2", chunks)
	}
}

func TestChunks_StopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	var calls []int
	fetch := func(_ context.Context, index int) ([]json.RawMessage, error) {
		calls = append(calls, index)
		if index == 3 {
			cancel()
		}
		return []json.RawMessage{json.RawMessage(`{}`)}, nil
	}

	var chunks int
	var last error
	for _, err := range Chunks(ctx, 2, fetch) {
		if err != nil {
			last = err
			continue
		}
		chunks++
	}
	if chunks != 2 || last != context.Canceled {
		t.Errorf("chunks = %d, err = %v, want 2 chunks then context.Canceled", chunks, last)
	}
	if len(calls) != 2 || calls[0] != 2 {
		t.Errorf("fetched indexes %v, want [2 3]", calls)
	}
}

func TestHadTroveSubscription(t *testing.T) {
	for _, tt := range []struct {
		name string
		ever bool
	}{{"subscriber", true}, {"never", false}} {
		t.Run(tt.name, func(t *testing.T) {
			r := chi.NewRouter()
			r.Get(PathSubscriberHub, func(w http.ResponseWriter, r *http.Request) {
				if !tt.ever {
					http.Redirect(w, r, PathSubscription, http.StatusFound)
					return
				}
				w.Write([]byte("<html></html>"))
			})
			r.Get(PathSubscription, func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte("<html></html>"))
			})
			api := newTestAPI(t, r, nil)

			got, err := api.HadTroveSubscription(context.Background())
			if err != nil {
				t.Fatalf("HadTroveSubscription() error: %v", err)
			}
			if got != tt.ever {
				t.Errorf("HadTroveSubscription() = %v, want %v", got, tt.ever)
			}
		})
	}
}

func TestSubscriberPages(t *testing.T) {
	r := chi.NewRouter()
	r.Get(PathSubscriberHub, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(page(map[string]string{
			"userSubscriptionPlan": `{"tier": "premium", "human_name": "Premium"}`,
			"payEarlyOptions":      `{"productMachineName": "may_2020_choice"}`,
		})))
	})
	r.Get(PathSubscriptionHome, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(page(map[string]string{
			"userSubscriptionState": `{"perksStatus": "active", "monthlyOwnsActiveContent": false, "willReceiveFutureMonths": true}`,
		})))
	})
	r.Get(PathSubscription, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(page(map[string]string{
			"choiceMarketingData": `{"activeContentMachineName": "june_2020_choice"}`,
		})))
	})
	api := newTestAPI(t, r, nil)
	ctx := context.Background()

	hub, err := api.GetSubscriberHubData(ctx)
	if err != nil {
		t.Fatalf("GetSubscriberHubData() error: %v", err)
	}
	if hub.Plan.Tier != "premium" || hub.PayEarly.ProductMachineName != "may_2020_choice" {
		t.Errorf("hub = %+v", hub)
	}
	if hub.Content != nil {
		t.Errorf("Content = %s, want nil", hub.Content)
	}

	state, err := api.GetUserSubscriptionState(ctx)
	if err != nil {
		t.Fatalf("GetUserSubscriptionState() error: %v", err)
	}
	if !state.PerksActive() || !state.WillReceiveFutureMonths {
		t.Errorf("state = %+v", state)
	}

	mkt, err := api.GetChoiceMarketingData(ctx)
	if err != nil {
		t.Fatalf("GetChoiceMarketingData() error: %v", err)
	}
	if mkt.ActiveContentMachineName != "june_2020_choice" {
		t.Errorf("active = %q", mkt.ActiveContentMachineName)
	}
}

func TestSubscriberHub_MissingModel(t *testing.T) {
	r := chi.NewRouter()
	r.Get(PathSubscriberHub, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(page(map[string]string{"userSubscriptionPlan": `{"tier": "lite"}`})))
	})
	api := newTestAPI(t, r, nil)

	_, err := api.GetSubscriberHubData(context.Background())
	if !errors.Is(err, errors.ErrCodeWebpackParse) {
		t.Errorf("error = %v, want WEBPACK_PARSE", err)
	}
}

func TestGetChoiceContentData_CachesPastMonths(t *testing.T) {
	var hits atomic.Int32
	r := chi.NewRouter()
	r.Get(PathSubscription+"/{month}", func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		month := chi.URLParam(r, "month")
		active := month == "june-2020"
		name := strings.Replace(month, "-", "_", 1) + "_choice"
		w.Write([]byte(page(map[string]string{
			"contentChoiceOptions": fmt.Sprintf(`{"productMachineName": %q, "productUrlPath": %q, "isActiveContent": %v,
				"contentChoiceData": {"game_data": {"g1": {"title": "Game One"}}}}`, name, month, active),
		})))
	})
	pages, err := cache.NewFileCache(afero.NewMemMapFs(), "/cache")
	if err != nil {
		t.Fatal(err)
	}
	api := newTestAPI(t, r, pages)
	ctx := context.Background()

	for range 2 {
		m, err := api.GetChoiceContentData(ctx, "may-2020")
		if err != nil {
			t.Fatalf("GetChoiceContentData() error: %v", err)
		}
		if len(m.ContentChoices) != 1 || m.ContentChoices[0].Title != "Game One" {
			t.Errorf("choices = %+v", m.ContentChoices)
		}
	}
	if hits.Load() != 1 {
		t.Errorf("past month fetched %d times, want 1", hits.Load())
	}

	for range 2 {
		if _, err := api.GetChoiceContentData(ctx, "june-2020"); err != nil {
			t.Fatalf("GetChoiceContentData() error: %v", err)
		}
	}
	if hits.Load() != 3 {
		t.Errorf("active month should not be cached, total fetches %d, want 3", hits.Load())
	}
}

func TestSignURLTrove(t *testing.T) {
	tests := []struct {
		name   string
		redeem string
		ok     bool
	}{
		{"success literal", "{'success': True}", true},
		{"json success", `{"success": true}`, false},
		{"failure literal", "{'success': False}", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := chi.NewRouter()
			r.Post(PathSign, func(w http.ResponseWriter, r *http.Request) {
				r.ParseForm()
				if r.Form.Get("machine_name") != "tg_windows" || r.Form.Get("filename") != "tg.zip" {
					t.Errorf("sign form = %v", r.Form)
				}
				w.Write([]byte(`{"signed_url": "https://dl.example/tg.zip?sig=1"}`))
			})
			r.Post(PathRedeemDownload, func(w http.ResponseWriter, r *http.Request) {
				r.ParseForm()
				if r.Form.Get("download_page") != "false" || r.Form.Get("product") != "tg" {
					t.Errorf("redeem form = %v", r.Form)
				}
				w.Write([]byte(tt.redeem))
			})
			api := newTestAPI(t, r, nil)

			dl := model.DownloadStruct{MachineName: "tg_windows", URL: model.DownloadURL{Web: "https://dl.example/files/tg.zip"}}
			got, err := api.SignURLTrove(context.Background(), dl, "tg")
			if tt.ok {
				if err != nil || got != "https://dl.example/tg.zip?sig=1" {
					t.Errorf("SignURLTrove() = %q, %v", got, err)
				}
				return
			}
			if !errors.Is(err, errors.ErrCodeUnknownBackend) {
				t.Errorf("error = %v, want UNKNOWN_BACKEND", err)
			}
		})
	}
}

func TestSignURLSubproduct(t *testing.T) {
	r := chi.NewRouter()
	r.Post(PathSign, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"signed_url": "https://dl.example/anna.zip?sig=2"}`))
	})
	api := newTestAPI(t, r, nil)

	got, err := api.SignURLSubproduct(context.Background(), "annasquest_windows", "anna.zip")
	if err != nil || got != "https://dl.example/anna.zip?sig=2" {
		t.Errorf("SignURLSubproduct() = %q, %v", got, err)
	}
}
