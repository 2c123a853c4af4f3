package localgames

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/agnivade/levenshtein"
	"github.com/charmbracelet/log"
	"github.com/spf13/afero"
)

// Picker chooses the executable of an installed game.
type Picker struct {
	fs     afero.Fs
	logger *log.Logger
}

// NewPicker creates a Picker reading from fs.
func NewPicker(fs afero.Fs, logger *log.Logger) *Picker {
	if logger == nil {
		logger = log.Default()
	}
	return &Picker{fs: fs, logger: logger}
}

// Executable returns the most plausible executable for title installed as
// uk, or "" when there is none.
//
// An .exe display icon that is not the uninstaller wins outright. Otherwise
// the first existing directory among the install location and the folders
// of the uninstaller and icon is searched recursively, and the executable
// whose name is closest to title is chosen.
func (p *Picker) Executable(ctx context.Context, title string, uk UninstallKey) (string, error) {
	uninstaller := uk.UninstallStringPath()
	icon := uk.DisplayIconPath()
	if hasExeSuffix(icon) && !samePath(icon, uninstaller) && !strings.Contains(strings.ToLower(icon), "unins") {
		return icon, nil
	}

	dir := ""
	for _, d := range []string{uk.InstallLocationPath(), parentDir(uninstaller), parentDir(icon)} {
		if d == "" {
			continue
		}
		if ok, _ := afero.DirExists(p.fs, d); ok {
			dir = d
			break
		}
	}
	if dir == "" {
		return "", nil
	}

	var candidates []string
	err := afero.Walk(p.fs, dir, func(path string, info os.FileInfo, err error) error {
		if cerr := ctx.Err(); cerr != nil {
			return cerr
		}
		if err != nil {
			return nil
		}
		if !info.IsDir() && hasExeSuffix(path) && !samePath(path, uninstaller) {
			candidates = append(candidates, path)
		}
		return nil
	})
	if err != nil {
		return "", err
	}
	return p.closest(title, candidates), nil
}

// closest returns the candidate whose file stem has the smallest edit
// distance to title. Ties keep the earlier candidate.
func (p *Picker) closest(title string, candidates []string) string {
	if len(candidates) == 0 {
		return ""
	}
	want := strings.ToLower(title)
	best, bestDist := "", -1
	for _, c := range candidates {
		stem := strings.ToLower(strings.TrimSuffix(leafName(c), filepath.Ext(c)))
		d := levenshtein.ComputeDistance(stem, want)
		if bestDist < 0 || d < bestDist {
			best, bestDist = c, d
		}
	}
	if bestDist > len(want)/2 {
		p.logger.Info("low confidence executable match", "title", title, "exe", leafName(best), "distance", bestDist)
	}
	return best
}

func hasExeSuffix(p string) bool {
	return strings.HasSuffix(strings.ToLower(p), ".exe")
}

func samePath(a, b string) bool {
	if a == "" || b == "" {
		return false
	}
	norm := func(s string) string { return strings.ToLower(strings.ReplaceAll(s, `\`, "/")) }
	return norm(a) == norm(b)
}
