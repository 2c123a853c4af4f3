package localgames

// Uninstall entry value names.
const (
	valueDisplayName     = "DisplayName"
	valueUninstallString = "UninstallString"
	valueInstallLocation = "InstallLocation"
	valueDisplayIcon     = "DisplayIcon"
)

// Hive is one view of an Uninstall registry key, e.g. HKLM in its 64-bit
// view. Name identifies the view across refreshes.
type Hive interface {
	Name() string
	SubKeyCount() (int, error)
	SubKeyNames() ([]string, error)
	// ReadValues returns the string values of subkey. Missing values are
	// absent from the map.
	ReadValues(subkey string, names ...string) (map[string]string, error)
}

func readUninstallKey(h Hive, name string) (UninstallKey, bool, error) {
	v, err := h.ReadValues(name, valueDisplayName, valueUninstallString, valueInstallLocation, valueDisplayIcon)
	if err != nil {
		return UninstallKey{}, false, err
	}
	uk := UninstallKey{
		KeyName:         name,
		DisplayName:     v[valueDisplayName],
		UninstallString: v[valueUninstallString],
		InstallLocation: v[valueInstallLocation],
		DisplayIcon:     v[valueDisplayIcon],
	}
	if uk.DisplayName == "" || uk.UninstallString == "" {
		return UninstallKey{}, false, nil
	}
	return uk, true, nil
}
