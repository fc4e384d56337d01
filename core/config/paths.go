package config

import (
	"os"
	"path/filepath"
	"runtime"
	"strings"
)

// AppDir names the directory that holds opendmp config files under each
// platform's config root.
const AppDir = "opendmp"

// Locations are the host facts that decide where config files live.
type Locations struct {
	GOOS        string
	Home        string
	ProgramData string
	// Override replaces the platform directory entirely (OPENDMP_CONFIG_DIR).
	Override string
}

// HostLocations reads the locations of the running host.
func HostLocations() Locations {
	home, _ := os.UserHomeDir()
	return Locations{
		GOOS:        runtime.GOOS,
		Home:        home,
		ProgramData: env("ProgramData"),
		Override:    env("OPENDMP_CONFIG_DIR"),
	}
}

// Dir is the directory config files are read from.
func (l Locations) Dir() string {
	if l.Override != "" {
		return filepath.Clean(l.Override)
	}
	switch l.GOOS {
	case "darwin":
		return filepath.Join(l.Home, "Library", "Application Support", AppDir)
	case "windows":
		root := strings.TrimRight(l.ProgramData, `\/`)
		if root == "" {
			root = "C:/ProgramData"
		}
		return filepath.Join(root, AppDir)
	}
	return filepath.Join("/etc", AppDir)
}

// File joins name onto Dir.
func (l Locations) File(name string) string { return filepath.Join(l.Dir(), name) }

// DefaultConfigPath is the host path of the config file called name,
// e.g. "python-script-processor.yaml".
func DefaultConfigPath(name string) string { return HostLocations().File(name) }
