package model

import (
	"encoding/json"
	"testing"

	"github.com/matzehuels/humbleplugin/pkg/errors"
)

const bundleOrder = `{
  "gamekey": "AbC123",
  "product": {"machine_name": "indiebundle_2019_bundle", "category": "bundle", "human_name": "Indie Bundle"},
  "subproducts": [
    {
      "machine_name": "annasquest",
      "human_name": "Anna's Quest",
      "downloads": [
        {"machine_name": "annasquest_windows", "platform": "windows",
         "download_struct": [{"name": "Download", "url": {"web": "https://dl.example/anna.zip"}, "human_size": "1 GB"}]},
        {"machine_name": "annasquest_mac", "platform": "mac",
         "download_struct": [{"name": "Download", "url": {"web": "https://dl.example/anna.dmg"}}]}
      ]
    },
    {
      "machine_name": "webtoy",
      "human_name": "Web Toy",
      "downloads": [{"machine_name": "webtoy_asmjs", "platform": "asmjs", "download_struct": []}]
    },
    {"machine_name": "", "human_name": "Broken"}
  ],
  "tpkd_dict": {"all_tpks": [
    {"machine_name": "ab_steam", "human_name": "A, and B", "key_type": "steam",
     "key_type_human_name": "Steam", "redeemed_key_val": "XXXX-YYYY"},
    {"machine_name": "weird", "human_name": "Weird", "key_type": "psn"}
  ]}
}`

func TestParseOrder(t *testing.T) {
	o, err := ParseOrder(json.RawMessage(bundleOrder))
	if err != nil {
		t.Fatalf("ParseOrder() error: %v", err)
	}
	if o.Gamekey != "AbC123" {
		t.Errorf("Gamekey = %q", o.Gamekey)
	}
	if got := o.Product.BundleType(); got != "bundle" {
		t.Errorf("BundleType() = %q, want bundle", got)
	}
	if len(o.Subproducts) != 2 {
		t.Fatalf("len(Subproducts) = %d, want 2", len(o.Subproducts))
	}
	if len(o.Keys) != 1 {
		t.Fatalf("len(Keys) = %d, want 1", len(o.Keys))
	}
	if len(o.Invalid) != 2 {
		t.Errorf("len(Invalid) = %d, want 2", len(o.Invalid))
	}
	for _, err := range o.Invalid {
		if !errors.Is(err, errors.ErrCodeInvalidHumbleGame) {
			t.Errorf("invalid entry error = %v, want INVALID_HUMBLE_GAME", err)
		}
	}

	anna := o.Subproducts[0]
	if !anna.HasGameDownload() {
		t.Error("Anna's Quest should have a game download")
	}
	if got := anna.OSCompatibility(); got != OSWindows|OSMac {
		t.Errorf("OSCompatibility() = %d, want %d", got, OSWindows|OSMac)
	}
	if got := anna.Downloads[PlatformWindows].MachineName; got != "annasquest_windows" {
		t.Errorf("windows download machine name = %q", got)
	}
	if o.Subproducts[1].HasGameDownload() {
		t.Error("asmjs-only subproduct should not have a game download")
	}
	if o.Keys[0].Gamekey != "AbC123" {
		t.Errorf("key gamekey = %q, want order gamekey", o.Keys[0].Gamekey)
	}
}

func TestParseOrder_Rejects(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"not an object", `[1, 2]`},
		{"no gamekey", `{"product": {"machine_name": "x", "category": "storefront"}}`},
		{"no product", `{"gamekey": "k"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseOrder(json.RawMessage(tt.raw))
			if !errors.Is(err, errors.ErrCodeUnknownBackend) {
				t.Errorf("ParseOrder() error = %v, want UNKNOWN_BACKEND", err)
			}
		})
	}
}

func TestOrder_IsConst(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want bool
	}{
		{
			name: "no keys no choices",
			raw:  `{"gamekey": "k", "product": {"category": "storefront"}}`,
			want: true,
		},
		{
			name: "choices remaining",
			raw:  `{"gamekey": "k", "product": {"category": "subscriptioncontent"}, "choices_remaining": 3}`,
			want: false,
		},
		{
			name: "choices exhausted",
			raw:  `{"gamekey": "k", "product": {"category": "subscriptioncontent"}, "choices_remaining": 0}`,
			want: true,
		},
		{
			name: "unrevealed key",
			raw: `{"gamekey": "k", "product": {"category": "bundle"},
			       "tpkd_dict": {"all_tpks": [{"machine_name": "a", "human_name": "A", "key_type": "steam"}]}}`,
			want: false,
		},
		{
			name: "choices exhausted but unrevealed key",
			raw: `{"gamekey": "k", "product": {"category": "bundle"}, "choices_remaining": 0,
			       "tpkd_dict": {"all_tpks": [{"machine_name": "a", "human_name": "A", "key_type": "steam"}]}}`,
			want: false,
		},
		{
			name: "unrevealed key of unsupported type",
			raw: `{"gamekey": "k", "product": {"category": "bundle"},
			       "tpkd_dict": {"all_tpks": [{"machine_name": "a", "human_name": "A", "key_type": "psn"}]}}`,
			want: false,
		},
		{
			name: "all revealed",
			raw: `{"gamekey": "k", "product": {"category": "bundle"},
			       "tpkd_dict": {"all_tpks": [{"machine_name": "a", "human_name": "A", "key_type": "steam", "redeemed_key_val": "X"}]}}`,
			want: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o, err := ParseOrder(json.RawMessage(tt.raw))
			if err != nil {
				t.Fatalf("ParseOrder() error: %v", err)
			}
			if got := o.IsConst(); got != tt.want {
				t.Errorf("IsConst() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestProduct_BundleType(t *testing.T) {
	tests := []struct {
		product Product
		want    string
		nonGame bool
	}{
		{Product{MachineName: "humblebookbundle_2020_bookbundle", Category: "bundle"}, "bookbundle", true},
		{Product{MachineName: "humblesoftwarebundle_softwarebundle", Category: "bundle"}, "softwarebundle", true},
		{Product{MachineName: "indiebundle_2019_bundle", Category: "bundle"}, "bundle", false},
		{Product{MachineName: "some_storefront_item", Category: "storefront"}, "", false},
	}
	for _, tt := range tests {
		t.Run(tt.product.MachineName, func(t *testing.T) {
			if got := tt.product.BundleType(); got != tt.want {
				t.Errorf("BundleType() = %q, want %q", got, tt.want)
			}
			o := &Order{Product: tt.product}
			if got := o.IsNonGame(); got != tt.nonGame {
				t.Errorf("IsNonGame() = %v, want %v", got, tt.nonGame)
			}
		})
	}
}
