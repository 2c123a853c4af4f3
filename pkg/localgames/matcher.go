package localgames

import (
	"strings"

	"golang.org/x/text/cases"
)

func fold(s string) string {
	return cases.Fold().String(strings.TrimSpace(s))
}

func escape(s string) string { return strings.ReplaceAll(s, ":", "") }

// sameTitle compares folded titles, also ignoring colons.
func sameTitle(a, b string) bool {
	a, b = fold(a), fold(b)
	if a == "" || b == "" {
		return false
	}
	return a == b || escape(a) == escape(b)
}

var romanNumerals = strings.NewReplacer(" iii", " 3", " ii", " 2")

// Matches reports whether uk is an installation of the game titled title.
//
// In order: the display name, a key name starting with the title, the leaf
// of the install location (or, without one, the folder of the uninstaller
// or icon), and finally the display name with II and III written as digits.
func Matches(title string, uk UninstallKey) bool {
	t := fold(title)
	if t == "" {
		return false
	}
	if sameTitle(t, uk.DisplayName) || strings.HasPrefix(fold(uk.KeyName), t) {
		return true
	}
	if loc := uk.InstallLocationPath(); loc != "" {
		if sameTitle(t, leafName(loc)) {
			return true
		}
	} else {
		for _, p := range []string{uk.UninstallStringPath(), uk.DisplayIconPath()} {
			if p != "" && sameTitle(t, leafName(parentDir(p))) {
				return true
			}
		}
	}
	return sameTitle(romanNumerals.Replace(t), romanNumerals.Replace(fold(uk.DisplayName)))
}
