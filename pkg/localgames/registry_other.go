//go:build !windows

package localgames

import "github.com/matzehuels/humbleplugin/pkg/errors"

// SystemHives returns nil: only Windows has an uninstall registry.
func SystemHives() []Hive { return nil }

func uriHandlerCommand() (string, error) {
	return "", errors.New(errors.ErrCodePlatformNotSupported, "humble URI handler lookup needs the Windows registry")
}
