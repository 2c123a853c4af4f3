package plugin

import "github.com/matzehuels/humbleplugin/pkg/model"

// LocalGameState is the launcher bitmask for installed games.
type LocalGameState int

const (
	StateNone      LocalGameState = 0
	StateInstalled LocalGameState = 1
	StateRunning   LocalGameState = 2
)

// AuthResult identifies the authenticated user.
type AuthResult struct {
	UserID   string `json:"user_id"`
	UserName string `json:"user_name"`
}

// NextStep asks the launcher to show the login page.
type NextStep struct {
	NextStep   string     `json:"next_step"`
	AuthParams AuthParams `json:"auth_params"`
}

// AuthParams configures the launcher login window.
type AuthParams struct {
	WindowTitle  string `json:"window_title"`
	WindowWidth  int    `json:"window_width"`
	WindowHeight int    `json:"window_height"`
	StartURI     string `json:"start_uri"`
	EndURIRegex  string `json:"end_uri_regex"`
}

var loginStep = NextStep{
	NextStep: "web_session",
	AuthParams: AuthParams{
		WindowTitle:  "Login to HumbleBundle",
		WindowWidth:  560,
		WindowHeight: 610,
		StartURI:     "https://www.humblebundle.com/login?goto=/home/library",
		EndURIRegex:  `^https://www\.humblebundle\.com/home/library.*`,
	},
}

// LicenseInfo describes how a game is licensed.
type LicenseInfo struct {
	LicenseType model.LicenseType `json:"license_type"`
}

// OwnedGame is a library entry.
type OwnedGame struct {
	GameID      string      `json:"game_id"`
	GameTitle   string      `json:"game_title"`
	DLCs        []any       `json:"dlcs"`
	LicenseInfo LicenseInfo `json:"license_info"`
}

func ownedGame(g model.Game) OwnedGame {
	return OwnedGame{
		GameID:      g.ID(),
		GameTitle:   g.Title(),
		DLCs:        []any{},
		LicenseInfo: LicenseInfo{LicenseType: g.License()},
	}
}

// LocalGame is an installed game and its state.
type LocalGame struct {
	GameID         string         `json:"game_id"`
	LocalGameState LocalGameState `json:"local_game_state"`
}

// Subscription is a subscription entry.
type Subscription struct {
	SubscriptionName      string `json:"subscription_name"`
	Owned                 bool   `json:"owned"`
	SubscriptionDiscovery int    `json:"subscription_discovery"`
}

// discoveredAutomatically is the launcher's "found by plugin" discovery flag.
const discoveredAutomatically = 1

// SubscriptionGame is a game offered by a subscription.
type SubscriptionGame struct {
	GameTitle string `json:"game_title"`
	GameID    string `json:"game_id"`
}

// GameLibrarySettings are launcher library tags for a game.
type GameLibrarySettings struct {
	GameID string   `json:"game_id"`
	Tags   []string `json:"tags"`
	Hidden bool     `json:"hidden"`
}
