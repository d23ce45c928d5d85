// Copyright © 2025 Orbit contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
//
// File: config/config.go
// Summary: System configuration store for orbit.

package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
)

const systemConfigName = "orbit.json"

// PathEnv names an environment variable that points orbit at a specific
// config file instead of <user config dir>/orbit/orbit.json.
const PathEnv = "ORBIT_CONFIG"

// ErrInvalidDocking reports docking geometry that cannot produce feedback:
// the accept radius must be positive and closer than the far feedback edge,
// and panels must have a positive width and thickness.
var ErrInvalidDocking = errors.New("config: invalid docking geometry")

// Config stores configuration sections as JSON-compatible data.
type Config map[string]interface{}

// Section stores key/value pairs for a configuration section.
type Section map[string]interface{}

var (
	mu      sync.RWMutex
	once    sync.Once
	system  Config
	loadErr error
)

// Err returns the most recent system config load error.
func Err() error {
	once.Do(initStore)
	mu.RLock()
	defer mu.RUnlock()
	return loadErr
}

// System returns the system configuration (orbit.json).
func System() Config {
	once.Do(initStore)
	mu.RLock()
	defer mu.RUnlock()
	return system
}

// Reload refreshes the system config from disk. A file that cannot be read
// or parsed leaves the previously loaded config in place, so a running
// simulator keeps its docking geometry while the file is being edited.
// Invalid docking geometry is replaced by the defaults and reported with
// ErrInvalidDocking.
func Reload() error {
	once.Do(initStore)
	mu.Lock()
	defer mu.Unlock()
	prev := system
	loadErr = loadSystemLocked()
	if loadErr != nil && !errors.Is(loadErr, ErrInvalidDocking) && len(prev) > 0 {
		log.Printf("Config: Keeping previous config after failed reload: %v", loadErr)
		system = prev
	}
	return loadErr
}

// SaveSystem persists the current system config to disk.
func SaveSystem() error {
	once.Do(initStore)
	mu.Lock()
	defer mu.Unlock()
	path, err := systemConfigPath()
	if err != nil {
		return err
	}
	return writeConfig(path, system)
}

// SetSystem replaces the in-memory system config with the provided config.
// Missing sections are filled from the defaults.
func SetSystem(cfg Config) {
	once.Do(initStore)
	mu.Lock()
	defer mu.Unlock()
	if cfg == nil {
		cfg = make(Config)
	}
	system = Clone(cfg)
	applySystemDefaults(system)
	if err := normalizeDocking(system); err != nil {
		log.Printf("Config: %v", err)
	}
}

// Path returns the location of the config file: the file named by
// ORBIT_CONFIG when set, else orbit.json in the user config directory.
func Path() (string, error) {
	return systemConfigPath()
}

// normalizeDocking resets docking geometry that would make the feedback
// domain empty or inverted. It returns ErrInvalidDocking when it had to.
func normalizeDocking(cfg Config) error {
	near := cfg.GetFloat("docking", "max_accept_distance", defaultMaxAccept)
	far := cfg.GetFloat("feedback", "far_distance", defaultFarDistance)
	width := cfg.GetFloat("docking", "panel_width", defaultPanelWidth)
	thickness := cfg.GetFloat("docking", "panel_thickness", defaultPanelThickness)

	var err error
	if near <= 0 || far <= near {
		err = fmt.Errorf("%w: max_accept_distance %v, far_distance %v", ErrInvalidDocking, near, far)
		cfg.Set("docking", "max_accept_distance", defaultMaxAccept)
		cfg.Set("feedback", "far_distance", defaultFarDistance)
	}
	if width <= 0 || thickness <= 0 {
		err = errors.Join(err, fmt.Errorf("%w: panel_width %v, panel_thickness %v", ErrInvalidDocking, width, thickness))
		cfg.Set("docking", "panel_width", defaultPanelWidth)
		cfg.Set("docking", "panel_thickness", defaultPanelThickness)
	}
	return err
}

func initStore() {
	mu.Lock()
	defer mu.Unlock()
	system = make(Config)
	loadErr = loadSystemLocked()
}

func readConfig(path string) (Config, bool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, false, nil
		}
		return nil, false, err
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, true, err
	}
	return cfg, true, nil
}

func writeConfig(path string, cfg Config) error {
	if cfg == nil {
		cfg = make(Config)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}
