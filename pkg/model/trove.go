package model

import (
	"encoding/json"
	"sort"

	"github.com/matzehuels/humbleplugin/pkg/errors"
)

// TroveGame is a Humble Vault (formerly Trove) game. Each platform carries
// a single download.
type TroveGame struct {
	MachineName string
	HumanName   string
	Downloads   map[Platform]DownloadStruct
}

type rawTroveGame struct {
	MachineName   string                    `json:"machine_name"`
	HumanName     string                    `json:"human-name"`
	HumanNameAlt  string                    `json:"human_name"`
	Downloads     map[string]DownloadStruct `json:"downloads"`
	DateAdded     json.RawMessage           `json:"date-added,omitempty"`
	Popularity    json.RawMessage           `json:"popularity,omitempty"`
	TroveCategory string                    `json:"trove-category,omitempty"`
}

// ParseTroveGame builds a TroveGame from one entry of a trove chunk.
func ParseTroveGame(raw json.RawMessage) (TroveGame, error) {
	var r rawTroveGame
	if err := json.Unmarshal(raw, &r); err != nil {
		return TroveGame{}, errors.Wrap(errors.ErrCodeInvalidHumbleGame, err, "trove game is malformed")
	}
	name := r.HumanName
	if name == "" {
		name = r.HumanNameAlt
	}
	if r.MachineName == "" || name == "" {
		return TroveGame{}, errors.InvalidGame("trove game %q has no machine or human name", r.MachineName)
	}
	g := TroveGame{
		MachineName: r.MachineName,
		HumanName:   name,
		Downloads:   make(map[Platform]DownloadStruct, len(r.Downloads)),
	}
	for p, d := range r.Downloads {
		g.Downloads[ParsePlatform(p)] = d
	}
	return g, nil
}

// GamePlatforms returns the game platforms with a download, sorted.
func (g TroveGame) GamePlatforms() []Platform {
	var ps []Platform
	for p := range g.Downloads {
		if p.IsGame() {
			ps = append(ps, p)
		}
	}
	sort.Slice(ps, func(i, j int) bool { return ps[i] < ps[j] })
	return ps
}

func (g TroveGame) ID() string    { return g.MachineName }
func (g TroveGame) Title() string { return g.HumanName }
func (g TroveGame) OSCompatibility() OSCompatibility {
	return compatibilityOf(g.GamePlatforms())
}
func (g TroveGame) License() LicenseType { return LicenseOtherUserLicense }
func (TroveGame) sealed()                {}
