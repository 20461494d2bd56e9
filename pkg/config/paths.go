package config

import (
	"fmt"
	"os"
	"path/filepath"
)

// DefaultFileName is the config file looked up when no path is given.
const DefaultFileName = "embark.yaml"

// ConfigDir returns the path to the user config directory (~/.embark).
func ConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to determine home directory: %w", err)
	}
	return filepath.Join(home, ".embark"), nil
}

// DefaultPath resolves the config file to load.
// An explicit path is returned as-is. Otherwise ./embark.yaml wins over
// ~/.embark/embark.yaml; if neither exists the empty string is returned and
// callers fall back to DefaultConfig.
func DefaultPath(explicit string) (string, error) {
	if explicit != "" {
		return explicit, nil
	}

	if _, err := os.Stat(DefaultFileName); err == nil {
		return DefaultFileName, nil
	}

	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	userPath := filepath.Join(dir, DefaultFileName)
	if _, err := os.Stat(userPath); err == nil {
		return userPath, nil
	}

	return "", nil
}
