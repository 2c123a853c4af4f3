package model

// LicenseType is the launcher license kind of a game.
type LicenseType string

const (
	LicenseSinglePurchase   LicenseType = "SinglePurchase"
	LicenseOtherUserLicense LicenseType = "OtherUserLicense"
	LicenseUnknown          LicenseType = "Unknown"
)

// Game is an owned or subscription game. It is implemented only by
// Subproduct, KeyGame, TroveGame and ChoiceGame.
type Game interface {
	ID() string
	Title() string
	OSCompatibility() OSCompatibility
	License() LicenseType
	sealed()
}

// Tags returns the launcher library tags for g.
func Tags(g Game) []string {
	switch g := g.(type) {
	case KeyGame:
		tags := []string{g.Key.KeyTypeHumanName}
		if tags[0] == "" {
			tags[0] = string(g.Key.KeyType)
		}
		if !g.Key.Revealed() {
			tags = append(tags, "Unrevealed")
		}
		return tags
	case TroveGame:
		return []string{"Vault"}
	}
	return []string{}
}
