package model

import (
	"encoding/json"
	"testing"
)

func TestKey_KeyGames(t *testing.T) {
	bundle := Product{MachineName: "x_bundle", Category: "bundle"}
	store := Product{MachineName: "x", Category: "storefront"}

	tests := []struct {
		name      string
		key       Key
		product   Product
		wantIDs   []string
		wantNames []string
	}{
		{
			name:      "three titles",
			key:       Key{MachineName: "mn", HumanName: "A, B, and C"},
			product:   bundle,
			wantIDs:   []string{"mn_0", "mn_1", "mn_2"},
			wantNames: []string{"A", "B", "C"},
		},
		{
			name:      "two titles with and",
			key:       Key{MachineName: "ab_steam", HumanName: "A, and B"},
			product:   bundle,
			wantIDs:   []string{"ab_steam_0", "ab_steam_1"},
			wantNames: []string{"A", "B"},
		},
		{
			name:      "not a bundle",
			key:       Key{MachineName: "mn", HumanName: "A, B"},
			product:   store,
			wantIDs:   []string{"mn"},
			wantNames: []string{"A, B"},
		},
		{
			name:      "blacklisted title",
			key:       Key{MachineName: "wh", HumanName: "Warhammer 40,000: Dawn of War, Chapter Pack"},
			product:   bundle,
			wantIDs:   []string{"wh"},
			wantNames: []string{"Warhammer 40,000: Dawn of War, Chapter Pack"},
		},
		{
			name:      "single title",
			key:       Key{MachineName: "solo", HumanName: "Solo"},
			product:   bundle,
			wantIDs:   []string{"solo"},
			wantNames: []string{"Solo"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			games := tt.key.KeyGames(tt.product)
			if len(games) != len(tt.wantIDs) {
				t.Fatalf("len = %d, want %d", len(games), len(tt.wantIDs))
			}
			for i, g := range games {
				if g.ID() != tt.wantIDs[i] {
					t.Errorf("[%d] ID() = %q, want %q", i, g.ID(), tt.wantIDs[i])
				}
				if g.Title() != tt.wantNames[i] {
					t.Errorf("[%d] Title() = %q, want %q", i, g.Title(), tt.wantNames[i])
				}
				if g.Key.MachineName != tt.key.MachineName {
					t.Errorf("[%d] source key = %q", i, g.Key.MachineName)
				}
			}
		})
	}
}

func TestParseKey(t *testing.T) {
	k, err := ParseKey(json.RawMessage(`{"machine_name": "g_steam", "human_name": "G", "key_type": "Steam", "key_type_human_name": "Steam"}`), "order1")
	if err != nil {
		t.Fatalf("ParseKey() error: %v", err)
	}
	if k.KeyType != KeySteam {
		t.Errorf("KeyType = %q, want steam", k.KeyType)
	}
	if k.Revealed() {
		t.Error("Revealed() = true for key without redeemed_key_val")
	}
	if k.Gamekey != "order1" {
		t.Errorf("Gamekey = %q, want order1", k.Gamekey)
	}

	if _, err := ParseKey(json.RawMessage(`{"machine_name": "x", "human_name": "X", "key_type": "generic"}`), ""); err == nil {
		t.Error("ParseKey() accepted unsupported key type")
	}
}
