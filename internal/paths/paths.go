// Package paths locates the stockpile config directory, its config file, and
// the data directory that holds the snapshot stores.
package paths

import (
	"os"
	"path/filepath"
	"runtime"
)

const (
	appName = "stockpile"

	// ConfigFileName is the file loaded from the config directory.
	ConfigFileName = "config.yaml"
	// DataDirName is the data directory created under the working directory
	// when nothing else names one.
	DataDirName = ".stockpile-db"

	EnvConfigDir = "STOCKPILE_CONFIG_DIR"
	EnvDataDir   = "STOCKPILE_DATA_DIR"
)

// lookup is swapped in tests to fake the user's home and config dirs.
var lookup = struct {
	home   func() (string, error)
	config func() (string, error)
	getwd  func() (string, error)
}{
	home:   os.UserHomeDir,
	config: os.UserConfigDir,
	getwd:  os.Getwd,
}

// PlatformConfigDir returns the per-user config directory for stockpile:
// $XDG_CONFIG_HOME/stockpile or ~/.config/stockpile on Linux, and the
// os.UserConfigDir location elsewhere.
func PlatformConfigDir() (string, error) {
	if runtime.GOOS != "linux" {
		dir, err := lookup.config()
		if err != nil {
			return "", err
		}
		return filepath.Join(dir, appName), nil
	}
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, appName), nil
	}
	home, err := lookup.home()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", appName), nil
}

// ConfigDir resolves the config directory: the --config-dir flag, then
// STOCKPILE_CONFIG_DIR, then PlatformConfigDir.
func ConfigDir(flag string) (string, error) {
	if dir, ok := first(flag, os.Getenv(EnvConfigDir)); ok {
		return filepath.Abs(dir)
	}
	return PlatformConfigDir()
}

// DataDir resolves the data directory: the --data-dir flag, then the
// data_dir value from config.yaml, then STOCKPILE_DATA_DIR, then
// ./.stockpile-db.
func DataDir(flag, configured string) (string, error) {
	if dir, ok := first(flag, configured, os.Getenv(EnvDataDir)); ok {
		return filepath.Abs(dir)
	}
	cwd, err := lookup.getwd()
	if err != nil {
		return "", err
	}
	return filepath.Join(cwd, DataDirName), nil
}

// ConfigFile is the config.yaml path inside configDir.
func ConfigFile(configDir string) string {
	return filepath.Join(configDir, ConfigFileName)
}

func first(candidates ...string) (string, bool) {
	for _, c := range candidates {
		if c != "" {
			return c, true
		}
	}
	return "", false
}
