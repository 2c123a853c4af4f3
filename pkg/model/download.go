// Package model provides typed views over Humble API JSON.
//
// The API JSON is the source of truth: orders and trove entries are cached
// verbatim and the types in this package are built from them on read. Views
// are immutable once constructed.
//
// Owned games are exposed through the sealed [Game] interface, implemented by
// [Subproduct], [KeyGame], [TroveGame] and [ChoiceGame]. Callers dispatch on
// the concrete type with a type switch.
package model

import (
	"encoding/json"
	"runtime"
	"strings"
)

// Platform is a Humble download platform.
type Platform string

// Platforms reported by the API. Anything else parses as PlatformUnrecognized.
const (
	PlatformWindows      Platform = "windows"
	PlatformMac          Platform = "mac"
	PlatformLinux        Platform = "linux"
	PlatformAndroid      Platform = "android"
	PlatformAudio        Platform = "audio"
	PlatformEbook        Platform = "ebook"
	PlatformAsmjs        Platform = "asmjs"
	PlatformVideo        Platform = "video"
	PlatformOther        Platform = "other"
	PlatformUnrecognized Platform = "UNRECOGNIZED"
)

// GamePlatforms are the platforms a launcher can install from.
var GamePlatforms = []Platform{PlatformWindows, PlatformMac, PlatformLinux}

// ParsePlatform maps an API platform string to a Platform.
func ParsePlatform(s string) Platform {
	switch p := Platform(strings.ToLower(s)); p {
	case PlatformWindows, PlatformMac, PlatformLinux, PlatformAndroid,
		PlatformAudio, PlatformEbook, PlatformAsmjs, PlatformVideo, PlatformOther:
		return p
	}
	return PlatformUnrecognized
}

// IsGame reports whether p is one of GamePlatforms.
func (p Platform) IsGame() bool {
	return p == PlatformWindows || p == PlatformMac || p == PlatformLinux
}

// CurrentPlatform returns the platform of the running OS.
func CurrentPlatform() Platform {
	switch runtime.GOOS {
	case "windows":
		return PlatformWindows
	case "darwin":
		return PlatformMac
	default:
		return PlatformLinux
	}
}

// OSCompatibility is the launcher's OS bitmask.
type OSCompatibility int

// OS compatibility flags.
const (
	OSWindows OSCompatibility = 1 << iota
	OSMac
	OSLinux
)

// compatibilityOf folds the game platforms in ps into a bitmask.
func compatibilityOf(ps []Platform) OSCompatibility {
	var c OSCompatibility
	for _, p := range ps {
		switch p {
		case PlatformWindows:
			c |= OSWindows
		case PlatformMac:
			c |= OSMac
		case PlatformLinux:
			c |= OSLinux
		}
	}
	return c
}

// DownloadURL holds the direct and torrent links of a download.
type DownloadURL struct {
	Web        string `json:"web,omitempty"`
	BitTorrent string `json:"bittorrent,omitempty"`
}

// Known DownloadStruct names used to pick a build.
const (
	StructDownload = "Download"
	Struct64Bit    = "64-bit"
	Struct32Bit    = "32-bit"
)

// DownloadStruct is a single downloadable file.
// MachineName is only present on trove downloads.
type DownloadStruct struct {
	MachineName string          `json:"machine_name,omitempty"`
	Name        string          `json:"name,omitempty"`
	URL         DownloadURL     `json:"url"`
	HumanSize   string          `json:"human_size,omitempty"`
	FileSize    int64           `json:"file_size,omitempty"`
	MD5         string          `json:"md5,omitempty"`
	UploadedAt  json.RawMessage `json:"uploaded_at,omitempty"`
}

// Download groups the structs a subproduct offers for one platform.
type Download struct {
	MachineName string
	Platform    Platform
	Structs     []DownloadStruct
}

// PickStruct chooses the build to install from structs.
//
// Preference: "Download", then "64-bit" on 64-bit hosts, then "32-bit",
// then the first struct with a web URL. Returns false if none has a URL.
func PickStruct(structs []DownloadStruct, is64 bool) (DownloadStruct, bool) {
	byName := make(map[string]DownloadStruct, len(structs))
	for _, s := range structs {
		if s.URL.Web == "" {
			continue
		}
		if _, dup := byName[s.Name]; !dup {
			byName[s.Name] = s
		}
	}
	order := []string{StructDownload, Struct32Bit}
	if is64 {
		order = []string{StructDownload, Struct64Bit, Struct32Bit}
	}
	for _, name := range order {
		if s, ok := byName[name]; ok {
			return s, true
		}
	}
	for _, s := range structs {
		if s.URL.Web != "" {
			return s, true
		}
	}
	return DownloadStruct{}, false
}

// Is64BitHost reports whether the running architecture is 64-bit.
func Is64BitHost() bool {
	switch runtime.GOARCH {
	case "amd64", "arm64", "ppc64", "ppc64le", "s390x", "riscv64", "loong64", "mips64", "mips64le":
		return true
	}
	return false
}
