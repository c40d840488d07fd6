package config

import (
	"path/filepath"

	"github.com/adrg/xdg"
)

const appName = "dextra"

// ProjectConfigFile is read from the working directory.
const ProjectConfigFile = "dextra.json"

// DefaultDatabasePath uses XDG_STATE_HOME for runtime state data
func DefaultDatabasePath() string {
	return filepath.Join(xdg.StateHome, appName, "dextra.db")
}

// UserConfigPath is the per-user config file under XDG_CONFIG_HOME.
func UserConfigPath() string {
	return filepath.Join(xdg.ConfigHome, appName, "config.json")
}
