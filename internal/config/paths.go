// Package config provides configuration management for simplevm.
package config

import (
	"os"
	"path/filepath"
	"runtime"
)

// Paths holds platform-specific directory paths for simplevm.
type Paths struct {
	// ConfigDir is the directory for configuration files.
	// macOS: ~/Library/Application Support/simplevm
	// Linux: ~/.config/simplevm (or XDG_CONFIG_HOME)
	ConfigDir string

	// ConfigFile is the path to the main config file.
	ConfigFile string
}

// GetPaths returns platform-aware paths for simplevm.
func GetPaths() (*Paths, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, err
	}

	p := &Paths{}

	switch runtime.GOOS {
	case "darwin":
		p.ConfigDir = filepath.Join(home, "Library", "Application Support", "simplevm")
	default:
		// Respect XDG_CONFIG_HOME if set
		if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
			p.ConfigDir = filepath.Join(xdgConfig, "simplevm")
		} else {
			p.ConfigDir = filepath.Join(home, ".config", "simplevm")
		}
	}

	p.ConfigFile = filepath.Join(p.ConfigDir, "config.yaml")

	return p, nil
}

// EnsureDirectories creates the config directory if it doesn't exist.
func (p *Paths) EnsureDirectories() error {
	return os.MkdirAll(p.ConfigDir, 0755)
}
