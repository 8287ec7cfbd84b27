package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// EnsureConfigFile makes sure the config file exists.
//
// If the file does not exist, it writes the default config so the binary can
// boot without requiring a hand-written file first. It never overwrites an
// existing file.
func EnsureConfigFile(path string) error {
	if path == "" {
		return nil
	}
	if _, err := os.Stat(path); err == nil {
		return nil
	} else if !os.IsNotExist(err) {
		return err
	}

	// Make parent dir.
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}

	cfg := Default()
	cfg.Mount.Enabled = false

	b, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}
	b = append(b, '\n')

	// Write with restrictive perms; user can loosen on host side if desired.
	if err := os.WriteFile(path, b, 0o600); err != nil {
		return fmt.Errorf("write default config: %w", err)
	}
	return nil
}
