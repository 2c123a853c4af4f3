package model

import (
	"encoding/json"
	"reflect"
	"testing"
)

func TestPickStruct(t *testing.T) {
	ds := func(names ...string) []DownloadStruct {
		out := make([]DownloadStruct, len(names))
		for i, n := range names {
			out[i] = DownloadStruct{Name: n, URL: DownloadURL{Web: "https://dl/" + n}}
		}
		return out
	}

	tests := []struct {
		name    string
		structs []DownloadStruct
		is64    bool
		want    string
		wantOK  bool
	}{
		{"prefers Download", ds("64-bit", "Download"), true, "Download", true},
		{"64-bit on 64-bit host", ds("32-bit", "64-bit"), true, "64-bit", true},
		{"32-bit on 32-bit host", ds("64-bit", "32-bit"), false, "32-bit", true},
		{"first otherwise", ds("Installer", "Patch"), true, "Installer", true},
		{"empty", nil, true, "", false},
		{"no urls", []DownloadStruct{{Name: "Download"}}, true, "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := PickStruct(tt.structs, tt.is64)
			if ok != tt.wantOK || got.Name != tt.want {
				t.Errorf("PickStruct() = %q, %v, want %q, %v", got.Name, ok, tt.want, tt.wantOK)
			}
		})
	}
}

func TestParsePlatform(t *testing.T) {
	tests := map[string]Platform{
		"windows": PlatformWindows,
		"Mac":     PlatformMac,
		"linux":   PlatformLinux,
		"asmjs":   PlatformAsmjs,
		"ps5":     PlatformUnrecognized,
	}
	for in, want := range tests {
		if got := ParsePlatform(in); got != want {
			t.Errorf("ParsePlatform(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestParseTroveGame(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"dash key", `{"machine_name": "tg", "human-name": "Trove Game", "downloads": {"windows": {"machine_name": "tg_windows", "name": "Download", "url": {"web": "tg.zip"}, "file_size": 10, "uploaded_at": 1589000000}, "linux": {"machine_name": "tg_linux", "url": {"web": "tg.tar"}}}}`},
		{"underscore key", `{"machine_name": "tg", "human_name": "Trove Game", "downloads": {"windows": {"machine_name": "tg_windows", "url": {"web": "tg.zip"}}, "linux": {"machine_name": "tg_linux", "url": {"web": "tg.tar"}}}}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g, err := ParseTroveGame(json.RawMessage(tt.raw))
			if err != nil {
				t.Fatalf("ParseTroveGame() error: %v", err)
			}
			if g.Title() != "Trove Game" {
				t.Errorf("Title() = %q", g.Title())
			}
			if want := []Platform{PlatformLinux, PlatformWindows}; !reflect.DeepEqual(g.GamePlatforms(), want) {
				t.Errorf("GamePlatforms() = %v, want %v", g.GamePlatforms(), want)
			}
			if g.OSCompatibility() != OSWindows|OSLinux {
				t.Errorf("OSCompatibility() = %d", g.OSCompatibility())
			}
			if g.Downloads[PlatformWindows].MachineName != "tg_windows" {
				t.Errorf("windows download = %+v", g.Downloads[PlatformWindows])
			}
		})
	}

	if _, err := ParseTroveGame(json.RawMessage(`{"machine_name": "nameless"}`)); err == nil {
		t.Error("ParseTroveGame() accepted entry without a name")
	}
}

func TestTags(t *testing.T) {
	val := "K"
	tests := []struct {
		name string
		game Game
		want []string
	}{
		{"revealed key", KeyGame{Key: Key{KeyTypeHumanName: "Steam", RedeemedKeyVal: &val}}, []string{"Steam"}},
		{"unrevealed key", KeyGame{Key: Key{KeyType: KeyGOG}}, []string{"gog", "Unrevealed"}},
		{"trove", TroveGame{}, []string{"Vault"}},
		{"subproduct", Subproduct{}, []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Tags(tt.game); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Tags() = %v, want %v", got, tt.want)
			}
		})
	}
}
