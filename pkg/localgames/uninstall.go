package localgames

import (
	"regexp"
	"strings"
)

// UninstallKey is one program entry under a registry Uninstall key.
type UninstallKey struct {
	KeyName         string
	DisplayName     string
	UninstallString string
	InstallLocation string
	DisplayIcon     string
}

// InstallLocationPath returns InstallLocation without surrounding quotes.
func (k UninstallKey) InstallLocationPath() string {
	return unquote(k.InstallLocation)
}

// DisplayIconPath returns the file part of DisplayIcon, dropping the icon
// index after the first comma.
func (k UninstallKey) DisplayIconPath() string {
	icon, _, _ := strings.Cut(k.DisplayIcon, ",")
	return unquote(icon)
}

// UninstallStringPath returns the executable of UninstallString: the first
// quoted token, else the whole string. MSI uninstallers have no executable
// of their own and yield "".
func (k UninstallKey) UninstallStringPath() string {
	s := strings.TrimSpace(k.UninstallString)
	if s == "" || strings.HasPrefix(strings.ToLower(s), "msiexec.exe") {
		return ""
	}
	if rest, ok := strings.CutPrefix(s, `"`); ok {
		quoted, _, _ := strings.Cut(rest, `"`)
		return quoted
	}
	return s
}

func unquote(s string) string {
	return strings.Trim(strings.TrimSpace(s), `"`)
}

var gogKeyRE = regexp.MustCompile(`^\d{10}_is1$`)

// ignored reports whether the entry belongs to another launcher.
func ignored(keyName string) bool {
	return strings.Contains(keyName, "Steam App") || gogKeyRE.MatchString(keyName)
}

// splitPath splits a Windows or POSIX path into its parent and leaf.
func splitPath(p string) (dir, leaf string) {
	p = strings.TrimRight(p, `\/`)
	i := strings.LastIndexAny(p, `\/`)
	if i < 0 {
		return "", p
	}
	return p[:i], p[i+1:]
}

func parentDir(p string) string {
	if p == "" {
		return ""
	}
	dir, _ := splitPath(p)
	return dir
}

func leafName(p string) string {
	_, leaf := splitPath(p)
	return leaf
}
