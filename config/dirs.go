// ABOUTME: XDG-based config and state directory resolution for mdtview.
// ABOUTME: Checks XDG_CONFIG_HOME / XDG_STATE_HOME, falls back to ~/.config/mdtview and ~/.local/state/mdtview.
package config

import (
	"fmt"
	"os"
	"path/filepath"
)

const appName = "mdtview"

// DefaultConfigDir returns the directory holding config.yaml.
func DefaultConfigDir() (string, error) {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, appName), nil
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home directory: %w", err)
	}

	return filepath.Join(home, ".config", appName), nil
}

// DefaultConfigPath returns the default config file path.
func DefaultConfigPath() (string, error) {
	dir, err := DefaultConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.yaml"), nil
}

// DefaultStateDir returns the directory for logs and saved reports.
func DefaultStateDir() (string, error) {
	if xdg := os.Getenv("XDG_STATE_HOME"); xdg != "" {
		return filepath.Join(xdg, appName), nil
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home directory: %w", err)
	}

	return filepath.Join(home, ".local", "state", appName), nil
}
