package model

import (
	"encoding/json"
	"sort"
	"strings"

	"github.com/matzehuels/humbleplugin/pkg/errors"
)

// NonGameBundleTypes are bundle types whose orders never contain games.
var NonGameBundleTypes = map[string]bool{
	"mobilebundle":    true,
	"softwarebundle":  true,
	"bookbundle":      true,
	"audiobookbundle": true,
	"comicsbundle":    true,
	"mangabundle":     true,
	"rpgbundle":       true,
	"musicbundle":     true,
	"videobundle":     true,
}

// Product describes what an order was for.
type Product struct {
	MachineName string `json:"machine_name"`
	Category    string `json:"category"`
	HumanName   string `json:"human_name,omitempty"`
}

// IsBundle reports whether the product is a bundle.
func (p Product) IsBundle() bool { return p.Category == "bundle" }

// BundleType returns the last "_" segment of the machine name for bundles,
// e.g. "humblebookbundle_2020_bookbundle" -> "bookbundle". Empty otherwise.
func (p Product) BundleType() string {
	if !p.IsBundle() || p.MachineName == "" {
		return ""
	}
	parts := strings.Split(p.MachineName, "_")
	return parts[len(parts)-1]
}

// Order is a typed view over a /api/v1/order response.
//
// Malformed subproducts and keys do not fail parsing; they are collected in
// Invalid so the caller can log and skip them.
type Order struct {
	Gamekey          string
	Product          Product
	ChoicesRemaining *int
	Subproducts      []Subproduct
	Keys             []Key
	Invalid          []error

	allKeysRevealed bool
}

type rawOrder struct {
	Gamekey          string            `json:"gamekey"`
	Product          *Product          `json:"product"`
	ChoicesRemaining *int              `json:"choices_remaining"`
	Subproducts      []json.RawMessage `json:"subproducts"`
	TpkdDict         struct {
		AllTpks []json.RawMessage `json:"all_tpks"`
	} `json:"tpkd_dict"`
}

// ParseOrder builds an Order view from raw order JSON.
// It fails with UNKNOWN_BACKEND when the order lacks a gamekey or product.
func ParseOrder(raw json.RawMessage) (*Order, error) {
	var r rawOrder
	if err := json.Unmarshal(raw, &r); err != nil {
		return nil, errors.Wrap(errors.ErrCodeUnknownBackend, err, "order is not an object")
	}
	if r.Gamekey == "" || r.Product == nil {
		return nil, errors.UnknownBackend("order without gamekey or product")
	}

	o := &Order{
		Gamekey:          r.Gamekey,
		Product:          *r.Product,
		ChoicesRemaining: r.ChoicesRemaining,
		allKeysRevealed:  true,
	}
	for _, sub := range r.Subproducts {
		s, err := ParseSubproduct(sub)
		if err != nil {
			o.Invalid = append(o.Invalid, err)
			continue
		}
		o.Subproducts = append(o.Subproducts, s)
	}
	for _, tpk := range r.TpkdDict.AllTpks {
		var peek struct {
			Redeemed *string `json:"redeemed_key_val"`
		}
		if json.Unmarshal(tpk, &peek) != nil || peek.Redeemed == nil {
			o.allKeysRevealed = false
		}
		k, err := ParseKey(tpk, r.Gamekey)
		if err != nil {
			o.Invalid = append(o.Invalid, err)
			continue
		}
		o.Keys = append(o.Keys, k)
	}
	return o, nil
}

// IsConst reports whether the order can no longer change: no Choice picks
// remain and every key has been revealed. Non-const orders are refreshed
// even inside the refresh window.
func (o *Order) IsConst() bool {
	if o.ChoicesRemaining != nil && *o.ChoicesRemaining != 0 {
		return false
	}
	return o.allKeysRevealed
}

// IsNonGame reports whether the order is a bundle of a non-game type.
func (o *Order) IsNonGame() bool {
	return NonGameBundleTypes[o.Product.BundleType()]
}

// Subproduct is a DRM-free item inside an order.
type Subproduct struct {
	MachineName string
	HumanName   string
	Downloads   map[Platform]Download
}

type rawSubproduct struct {
	MachineName string `json:"machine_name"`
	HumanName   string `json:"human_name"`
	Downloads   []struct {
		MachineName string           `json:"machine_name"`
		Platform    string           `json:"platform"`
		Structs     []DownloadStruct `json:"download_struct"`
	} `json:"downloads"`
}

// ParseSubproduct builds a Subproduct from raw subproduct JSON.
func ParseSubproduct(raw json.RawMessage) (Subproduct, error) {
	var r rawSubproduct
	if err := json.Unmarshal(raw, &r); err != nil {
		return Subproduct{}, errors.Wrap(errors.ErrCodeInvalidHumbleGame, err, "subproduct is malformed")
	}
	if r.MachineName == "" || r.HumanName == "" {
		return Subproduct{}, errors.InvalidGame("subproduct %q has no machine or human name", r.MachineName)
	}
	s := Subproduct{
		MachineName: r.MachineName,
		HumanName:   r.HumanName,
		Downloads:   make(map[Platform]Download, len(r.Downloads)),
	}
	for _, d := range r.Downloads {
		p := ParsePlatform(d.Platform)
		dl := s.Downloads[p]
		dl.Platform = p
		if dl.MachineName == "" {
			dl.MachineName = d.MachineName
		}
		dl.Structs = append(dl.Structs, d.Structs...)
		s.Downloads[p] = dl
	}
	return s, nil
}

// HasGameDownload reports whether the subproduct offers a windows, mac or
// linux download.
func (s Subproduct) HasGameDownload() bool {
	for p := range s.Downloads {
		if p.IsGame() {
			return true
		}
	}
	return false
}

// GamePlatforms returns the game platforms the subproduct supports, sorted.
func (s Subproduct) GamePlatforms() []Platform {
	var ps []Platform
	for p := range s.Downloads {
		if p.IsGame() {
			ps = append(ps, p)
		}
	}
	sort.Slice(ps, func(i, j int) bool { return ps[i] < ps[j] })
	return ps
}

func (s Subproduct) ID() string    { return s.MachineName }
func (s Subproduct) Title() string { return s.HumanName }
func (s Subproduct) OSCompatibility() OSCompatibility {
	return compatibilityOf(s.GamePlatforms())
}
func (s Subproduct) License() LicenseType { return LicenseSinglePurchase }
func (Subproduct) sealed()                {}
