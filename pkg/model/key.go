package model

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/matzehuels/humbleplugin/pkg/errors"
)

// KeyType is the platform a key redeems on.
type KeyType string

// Supported key types.
const (
	KeySteam     KeyType = "steam"
	KeyOrigin    KeyType = "origin"
	KeyUplay     KeyType = "uplay"
	KeyEpic      KeyType = "epic"
	KeyBattlenet KeyType = "battlenet"
	KeyGOG       KeyType = "gog"
)

var knownKeyTypes = map[KeyType]bool{
	KeySteam: true, KeyOrigin: true, KeyUplay: true,
	KeyEpic: true, KeyBattlenet: true, KeyGOG: true,
}

// CommaSplitBlacklist lists titles that contain ", " but name one game.
// A key whose human name contains any of these is never split.
var CommaSplitBlacklist = []string{
	"Warhammer 40,000",
	"Oh, Sir",
	"Hey, Listen",
	"Yes, Your Grace",
}

// Key is a redeemable third-party platform key from an order's tpkd_dict.
type Key struct {
	MachineName      string  `json:"machine_name"`
	HumanName        string  `json:"human_name"`
	KeyType          KeyType `json:"key_type"`
	KeyTypeHumanName string  `json:"key_type_human_name"`
	RedeemedKeyVal   *string `json:"redeemed_key_val,omitempty"`
	Gamekey          string  `json:"gamekey,omitempty"`
}

// ParseKey builds a Key from raw tpk JSON. orderGamekey fills in the
// gamekey when the tpk does not carry one.
func ParseKey(raw json.RawMessage, orderGamekey string) (Key, error) {
	var k Key
	if err := json.Unmarshal(raw, &k); err != nil {
		return Key{}, errors.Wrap(errors.ErrCodeInvalidHumbleGame, err, "key is malformed")
	}
	if k.MachineName == "" || k.HumanName == "" {
		return Key{}, errors.InvalidGame("key %q has no machine or human name", k.MachineName)
	}
	k.KeyType = KeyType(strings.ToLower(string(k.KeyType)))
	if !knownKeyTypes[k.KeyType] {
		return Key{}, errors.InvalidGame("key %s has unsupported type %q", k.MachineName, k.KeyType)
	}
	if k.Gamekey == "" {
		k.Gamekey = orderGamekey
	}
	return k, nil
}

// Revealed reports whether the key value has been shown to the user.
func (k Key) Revealed() bool { return k.RedeemedKeyVal != nil }

// KeyGame is a launcher entry derived from a Key. One key may yield several
// KeyGames when its human name lists several titles.
type KeyGame struct {
	Key       Key
	GameID    string
	GameTitle string
}

// KeyGames derives launcher entries from k.
//
// When the order product is a bundle, the name contains ", " and no
// blacklisted title, the name is split into one entry per title with ids
// "<machine_name>_<i>". A leading "and " is stripped from the last title.
func (k Key) KeyGames(product Product) []KeyGame {
	if !product.IsBundle() || !strings.Contains(k.HumanName, ", ") || blacklisted(k.HumanName) {
		return []KeyGame{{Key: k, GameID: k.MachineName, GameTitle: k.HumanName}}
	}
	parts := strings.Split(k.HumanName, ", ")
	last := len(parts) - 1
	parts[last] = strings.TrimPrefix(parts[last], "and ")

	games := make([]KeyGame, 0, len(parts))
	for i, title := range parts {
		games = append(games, KeyGame{
			Key:       k,
			GameID:    fmt.Sprintf("%s_%d", k.MachineName, i),
			GameTitle: strings.TrimSpace(title),
		})
	}
	return games
}

func blacklisted(name string) bool {
	for _, b := range CommaSplitBlacklist {
		if strings.Contains(name, b) {
			return true
		}
	}
	return false
}

func (g KeyGame) ID() string                       { return g.GameID }
func (g KeyGame) Title() string                    { return g.GameTitle }
func (g KeyGame) OSCompatibility() OSCompatibility { return 0 }
func (g KeyGame) License() LicenseType             { return LicenseSinglePurchase }
func (KeyGame) sealed()                            {}
