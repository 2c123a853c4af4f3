//go:build windows

package localgames

import (
	"runtime"
	"strings"

	"golang.org/x/sys/windows/registry"

	"github.com/matzehuels/humbleplugin/pkg/errors"
)

const uninstallPath = `Software\Microsoft\Windows\CurrentVersion\Uninstall`

type registryHive struct {
	root     registry.Key
	rootName string
	access   uint32
	arch     string
}

// SystemHives returns the HKCU and HKLM Uninstall keys, in both the 32-bit
// and the 64-bit view on 64-bit hosts.
func SystemHives() []Hive {
	views := []struct {
		access uint32
		arch   string
	}{{0, "native"}}
	if runtime.GOARCH == "amd64" || runtime.GOARCH == "arm64" {
		views = []struct {
			access uint32
			arch   string
		}{{registry.WOW64_64KEY, "64"}, {registry.WOW64_32KEY, "32"}}
	}
	var hives []Hive
	for _, root := range []struct {
		key  registry.Key
		name string
	}{{registry.CURRENT_USER, "HKCU"}, {registry.LOCAL_MACHINE, "HKLM"}} {
		for _, v := range views {
			hives = append(hives, registryHive{root: root.key, rootName: root.name, access: v.access, arch: v.arch})
		}
	}
	return hives
}

func (h registryHive) Name() string { return h.rootName + "|" + h.arch }

func (h registryHive) open(path string) (registry.Key, error) {
	return registry.OpenKey(h.root, path, registry.READ|h.access)
}

func (h registryHive) SubKeyCount() (int, error) {
	k, err := h.open(uninstallPath)
	if err != nil {
		return 0, err
	}
	defer k.Close()
	info, err := k.Stat()
	if err != nil {
		return 0, err
	}
	return int(info.SubKeyCount), nil
}

func (h registryHive) SubKeyNames() ([]string, error) {
	k, err := h.open(uninstallPath)
	if err != nil {
		return nil, err
	}
	defer k.Close()
	return k.ReadSubKeyNames(0)
}

func (h registryHive) ReadValues(subkey string, names ...string) (map[string]string, error) {
	k, err := h.open(uninstallPath + `\` + subkey)
	if err != nil {
		return nil, err
	}
	defer k.Close()
	out := make(map[string]string, len(names))
	for _, name := range names {
		v, _, err := k.GetStringValue(name)
		if err == registry.ErrNotExist {
			continue
		}
		if err != nil {
			return nil, err
		}
		out[name] = strings.TrimSpace(v)
	}
	return out, nil
}

func uriHandlerCommand() (string, error) {
	k, err := registry.OpenKey(registry.CLASSES_ROOT, `humble\shell\open\command`, registry.QUERY_VALUE)
	if err != nil {
		return "", errors.Wrap(errors.ErrCodeNotFound, err, "humble URI handler not registered")
	}
	defer k.Close()
	cmd, _, err := k.GetStringValue("")
	if err != nil {
		return "", errors.Wrap(errors.ErrCodeNotFound, err, "humble URI handler has no command")
	}
	return cmd, nil
}
