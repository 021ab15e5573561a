// Package paths resolves where apexdraft keeps its configuration and its
// local database.
package paths

import (
	"os"
	"path/filepath"
	"runtime"
)

// AppDirName is the directory name used under platform config and data roots.
const AppDirName = "apexdraft"

// DefaultDataDirName is the CWD-relative data directory used when nothing
// else selects one.
const DefaultDataDirName = ".apexdraft-db"

// Environment variables that override the directories.
const (
	EnvConfigDir = "APEXDRAFT_CONFIG_DIR"
	EnvDataDir   = "APEXDRAFT_DATA_DIR"
)

// platform holds OS lookups that tests replace.
var platform = struct {
	goos          string
	homeDir       func() (string, error)
	userConfigDir func() (string, error)
}{
	goos:          runtime.GOOS,
	homeDir:       os.UserHomeDir,
	userConfigDir: os.UserConfigDir,
}

// appDir returns <root>/apexdraft. On Linux root is $xdgVar, falling back to
// ~/<linuxFallback...>; elsewhere it is os.UserConfigDir
// (~/Library/Application Support on macOS, %APPDATA% on Windows).
func appDir(xdgVar string, linuxFallback ...string) (string, error) {
	if platform.goos != "linux" {
		dir, err := platform.userConfigDir()
		if err != nil {
			return "", err
		}
		return filepath.Join(dir, AppDirName), nil
	}
	if xdg := os.Getenv(xdgVar); xdg != "" {
		return filepath.Join(xdg, AppDirName), nil
	}
	home, err := platform.homeDir()
	if err != nil {
		return "", err
	}
	parts := append([]string{home}, linuxFallback...)
	return filepath.Join(append(parts, AppDirName)...), nil
}

// DefaultConfigDir returns the platform configuration directory:
// $XDG_CONFIG_HOME/apexdraft or ~/.config/apexdraft on Linux.
func DefaultConfigDir() (string, error) {
	return appDir("XDG_CONFIG_HOME", ".config")
}

// DefaultDataDir returns the platform data directory:
// $XDG_DATA_HOME/apexdraft or ~/.local/share/apexdraft on Linux.
func DefaultDataDir() (string, error) {
	return appDir("XDG_DATA_HOME", ".local", "share")
}

// ResolveConfigDir applies flag > APEXDRAFT_CONFIG_DIR > DefaultConfigDir.
// Explicit values are made absolute.
func ResolveConfigDir(flag string) (string, error) {
	if flag != "" {
		return filepath.Abs(flag)
	}
	if env := os.Getenv(EnvConfigDir); env != "" {
		return filepath.Abs(env)
	}
	return DefaultConfigDir()
}

// ResolveDataDir applies flag > config.yaml data_dir > APEXDRAFT_DATA_DIR >
// $(CWD)/.apexdraft-db. The platform data directory is not consulted so a
// server started from a project directory keeps its data next to it.
func ResolveDataDir(flag, configValue string) (string, error) {
	for _, v := range []string{flag, configValue, os.Getenv(EnvDataDir)} {
		if v != "" {
			return filepath.Abs(v)
		}
	}
	cwd, err := os.Getwd()
	if err != nil {
		return "", err
	}
	return filepath.Join(cwd, DefaultDataDirName), nil
}
