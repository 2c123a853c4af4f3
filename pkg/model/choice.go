package model

import (
	"encoding/json"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/matzehuels/humbleplugin/pkg/errors"
)

// ChoicePrefix is the label prefix of every Choice month subscription.
const ChoicePrefix = "Humble Choice "

var choiceMachineRE = regexp.MustCompile(`^([a-z]+)_(\d{4})_choice$`)

// MonthLabel converts a Choice product machine name such as
// "may_2020_choice" to its subscription label "Humble Choice 2020-05".
func MonthLabel(machineName string) (string, error) {
	y, m, err := parseChoiceMachineName(machineName)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s%04d-%02d", ChoicePrefix, y, int(m)), nil
}

// MonthURLPath converts "may_2020_choice" to the page path "may-2020".
func MonthURLPath(machineName string) (string, error) {
	y, m, err := parseChoiceMachineName(machineName)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s-%d", strings.ToLower(m.String()), y), nil
}

// URLPathFromLabel converts "Humble Choice 2020-05" to "may-2020".
func URLPathFromLabel(label string) (string, error) {
	rest, ok := strings.CutPrefix(label, ChoicePrefix)
	if !ok {
		return "", errors.New(errors.ErrCodeInvalidInput, "%q is not a Choice month", label)
	}
	t, err := time.Parse("2006-01", rest)
	if err != nil {
		return "", errors.Wrap(errors.ErrCodeInvalidInput, err, "%q is not a Choice month", label)
	}
	return fmt.Sprintf("%s-%d", strings.ToLower(t.Month().String()), t.Year()), nil
}

// IsChoiceLabel reports whether label names a Choice month.
func IsChoiceLabel(label string) bool {
	_, err := URLPathFromLabel(label)
	return err == nil
}

func parseChoiceMachineName(name string) (int, time.Month, error) {
	m := choiceMachineRE.FindStringSubmatch(name)
	if m == nil {
		return 0, 0, errors.UnknownBackend("unexpected choice machine name %q", name)
	}
	month, ok := monthsByName[m[1]]
	if !ok {
		return 0, 0, errors.UnknownBackend("unexpected month in %q", name)
	}
	year, _ := strconv.Atoi(m[2])
	return year, month, nil
}

var monthsByName = func() map[string]time.Month {
	out := make(map[string]time.Month, 12)
	for m := time.January; m <= time.December; m++ {
		out[strings.ToLower(m.String())] = m
	}
	return out
}()

// ContentChoice is one pickable game of a Choice month.
type ContentChoice struct {
	ID    string
	Title string
}

// Extra is a bonus item of a Choice month. Only extras of type "game" are
// exposed as games.
type Extra struct {
	MachineName string   `json:"machine_name"`
	HumanName   string   `json:"human_name"`
	Types       []string `json:"types"`
	Class       string   `json:"class,omitempty"`
}

// IsGame reports whether the extra is a game.
func (e Extra) IsGame() bool {
	for _, t := range e.Types {
		if t == "game" {
			return true
		}
	}
	return false
}

// ChoiceMonth is a typed view over the contentChoiceOptions webpack model of
// a Choice month page.
type ChoiceMonth struct {
	ProductMachineName string
	Title              string
	ProductURLPath     string
	ContentChoices     []ContentChoice
	Extras             []Extra
	TotalChoices       *int
	ChoicesMade        []string
	IsActiveContent    bool
	Gamekey            string
}

type rawChoiceGroup struct {
	ContentChoices map[string]struct {
		Title string `json:"title"`
	} `json:"content_choices"`
	DisplayOrder []string `json:"display_order"`
}

type rawContentChoiceOptions struct {
	ProductMachineName string `json:"productMachineName"`
	Title              string `json:"title"`
	ProductURLPath     string `json:"productUrlPath"`
	Gamekey            string `json:"gamekey"`
	IsActiveContent    bool   `json:"isActiveContent"`
	TotalChoices       *int   `json:"totalChoices"`
	ContentChoiceData  struct {
		GameData map[string]struct {
			Title string `json:"title"`
		} `json:"game_data"`
		DisplayOrder        []string        `json:"display_order"`
		Initial             *rawChoiceGroup `json:"initial"`
		InitialWithoutOrder *rawChoiceGroup `json:"initial-without-order"`
		Extras              []Extra         `json:"extras"`
	} `json:"contentChoiceData"`
	Extras             []Extra `json:"extras"`
	ContentChoicesMade map[string]struct {
		ChoicesMade []string `json:"choices_made"`
	} `json:"contentChoicesMade"`
}

// ParseChoiceMonth builds a ChoiceMonth from a contentChoiceOptions model.
//
// Months differ in where the choices live: older pages use
// contentChoiceData.game_data, newer ones contentChoiceData.initial or
// contentChoiceData.initial-without-order. The first non-empty source wins.
func ParseChoiceMonth(raw json.RawMessage) (*ChoiceMonth, error) {
	var r rawContentChoiceOptions
	if err := json.Unmarshal(raw, &r); err != nil {
		return nil, errors.Wrap(errors.ErrCodeUnknownBackend, err, "contentChoiceOptions has unexpected shape")
	}
	if r.ProductMachineName == "" {
		return nil, errors.UnknownBackend("contentChoiceOptions without productMachineName")
	}
	m := &ChoiceMonth{
		ProductMachineName: r.ProductMachineName,
		Title:              r.Title,
		ProductURLPath:     r.ProductURLPath,
		TotalChoices:       r.TotalChoices,
		IsActiveContent:    r.IsActiveContent,
		Gamekey:            r.Gamekey,
	}
	if m.ProductURLPath == "" {
		m.ProductURLPath, _ = MonthURLPath(r.ProductMachineName)
	}

	data := r.ContentChoiceData
	switch {
	case len(data.GameData) > 0:
		titles := make(map[string]string, len(data.GameData))
		for id, g := range data.GameData {
			titles[id] = g.Title
		}
		m.ContentChoices = orderedChoices(titles, data.DisplayOrder)
	case data.Initial != nil && len(data.Initial.ContentChoices) > 0:
		m.ContentChoices = data.Initial.choices()
	case data.InitialWithoutOrder != nil && len(data.InitialWithoutOrder.ContentChoices) > 0:
		m.ContentChoices = data.InitialWithoutOrder.choices()
	}

	m.Extras = data.Extras
	if len(m.Extras) == 0 {
		m.Extras = r.Extras
	}

	groups := make([]string, 0, len(r.ContentChoicesMade))
	for g := range r.ContentChoicesMade {
		groups = append(groups, g)
	}
	sort.Strings(groups)
	for _, g := range groups {
		m.ChoicesMade = append(m.ChoicesMade, r.ContentChoicesMade[g].ChoicesMade...)
	}
	return m, nil
}

func (g *rawChoiceGroup) choices() []ContentChoice {
	titles := make(map[string]string, len(g.ContentChoices))
	for id, c := range g.ContentChoices {
		titles[id] = c.Title
	}
	return orderedChoices(titles, g.DisplayOrder)
}

// orderedChoices lists titles by displayOrder, then any remaining ids sorted.
func orderedChoices(titles map[string]string, displayOrder []string) []ContentChoice {
	out := make([]ContentChoice, 0, len(titles))
	seen := make(map[string]bool, len(titles))
	for _, id := range displayOrder {
		if t, ok := titles[id]; ok && !seen[id] {
			out = append(out, ContentChoice{ID: id, Title: t})
			seen[id] = true
		}
	}
	rest := make([]string, 0, len(titles))
	for id := range titles {
		if !seen[id] {
			rest = append(rest, id)
		}
	}
	sort.Strings(rest)
	for _, id := range rest {
		out = append(out, ContentChoice{ID: id, Title: titles[id]})
	}
	return out
}

// Owned reports whether the month was purchased.
func (m *ChoiceMonth) Owned() bool { return m.Gamekey != "" }

// RemainingChoices returns how many picks are left, or -1 when the month
// has no choice limit.
func (m *ChoiceMonth) RemainingChoices() int {
	if m.TotalChoices == nil {
		return -1
	}
	return max(*m.TotalChoices-len(m.ChoicesMade), 0)
}

// Games returns the month's content choices followed by its game extras.
func (m *ChoiceMonth) Games() []ChoiceGame {
	games := make([]ChoiceGame, 0, len(m.ContentChoices)+len(m.Extras))
	for _, c := range m.ContentChoices {
		games = append(games, ChoiceGame{GameID: c.ID, GameTitle: c.Title, Slug: m.ProductURLPath})
	}
	for _, e := range m.Extras {
		if e.IsGame() && e.MachineName != "" {
			games = append(games, ChoiceGame{GameID: e.MachineName, GameTitle: e.HumanName, Slug: m.ProductURLPath, IsExtras: true})
		}
	}
	return games
}

// ChoiceGame is a game offered by a Choice month. Slug is the month page path.
type ChoiceGame struct {
	GameID    string
	GameTitle string
	Slug      string
	IsExtras  bool
}

// PageURL returns the Choice month page where the game can be claimed.
func (g ChoiceGame) PageURL() string {
	return "https://www.humblebundle.com/subscription/" + g.Slug
}

func (g ChoiceGame) ID() string                       { return g.GameID }
func (g ChoiceGame) Title() string                    { return g.GameTitle }
func (g ChoiceGame) OSCompatibility() OSCompatibility { return 0 }
func (g ChoiceGame) License() LicenseType             { return LicenseOtherUserLicense }
func (ChoiceGame) sealed()                            {}
