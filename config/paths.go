// Copyright © 2025 Orbit contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
//
// File: config/paths.go
// Summary: Path helpers for orbit configuration and state.

package config

import (
	"os"
	"path/filepath"
)

func configRoot() (string, error) {
	configDir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(configDir, "orbit"), nil
}

func systemConfigPath() (string, error) {
	if p := os.Getenv(PathEnv); p != "" {
		return filepath.Clean(p), nil
	}
	root, err := configRoot()
	if err != nil {
		return "", err
	}
	return filepath.Join(root, systemConfigName), nil
}

// LogDir returns the directory command-line tools write their logs to.
func LogDir() (string, error) {
	root, err := configRoot()
	if err != nil {
		return "", err
	}
	return filepath.Join(root, "logs"), nil
}

// JournalPath resolves the journal database location. An empty configured
// path selects journal.db next to the config file; a relative one is taken
// relative to the config file's directory.
func JournalPath(cfg Config) (string, error) {
	p := cfg.GetString("journal", "path", "")
	if filepath.IsAbs(p) {
		return p, nil
	}
	cfgPath, err := systemConfigPath()
	if err != nil {
		return "", err
	}
	if p == "" {
		p = "journal.db"
	}
	return filepath.Join(filepath.Dir(cfgPath), p), nil
}
