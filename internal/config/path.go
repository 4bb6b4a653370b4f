// Package config loads escrow client settings from viper, the environment
// and an optional .env file.
package config

import (
	"os"
	"path/filepath"
	"strings"
)

// AppName names the config directory and env prefix root.
const AppName = "escrow"

// ExpandPath expands a leading ~ and $VAR references in path.
func ExpandPath(path string) string {
	if path == "" {
		return path
	}

	switch {
	case path == "~":
		if home, err := os.UserHomeDir(); err == nil {
			path = home
		}
	case strings.HasPrefix(path, "~/"):
		if home, err := os.UserHomeDir(); err == nil {
			path = filepath.Join(home, path[2:])
		}
	}

	return os.ExpandEnv(path)
}

// Dir returns the directory holding the config file, token and journal.
func Dir() string {
	if dir, err := os.UserConfigDir(); err == nil {
		return filepath.Join(dir, AppName)
	}
	return ExpandPath(filepath.Join("~", "."+AppName))
}
