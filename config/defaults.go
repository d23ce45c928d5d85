// Copyright © 2025 Orbit contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
//
// File: config/defaults.go
// Summary: Default values for the system configuration file.
// The embedded defaults/orbit.json is written on first run; the sections
// below backfill keys missing from older files.

package config

import (
	"encoding/json"
	"sync"

	"github.com/StardustXR/orbit/defaults"
)

const (
	defaultPanelWidth     = 0.1
	defaultPanelThickness = 0.01
	defaultMaxAccept      = 0.05
	defaultFarDistance    = 0.25
)

var (
	embeddedOnce sync.Once
	embedded     Config
	embeddedErr  error
)

func embeddedSystemDefaults() (Config, error) {
	embeddedOnce.Do(func() {
		data, err := defaults.SystemConfig()
		if err != nil {
			embeddedErr = err
			return
		}
		var cfg Config
		if err := json.Unmarshal(data, &cfg); err != nil {
			embeddedErr = err
			return
		}
		embedded = cfg
	})
	return embedded, embeddedErr
}

// defaultSystemConfig returns a copy of the embedded defaults.
func defaultSystemConfig() Config {
	cfg, err := embeddedSystemDefaults()
	if err != nil || cfg == nil {
		return nil
	}
	return Clone(cfg)
}

func applySystemDefaults(cfg Config) {
	if cfg == nil {
		return
	}
	cfg.RegisterDefaults("docking", Section{
		"panel_width":         defaultPanelWidth,
		"panel_thickness":     defaultPanelThickness,
		"max_accept_distance": defaultMaxAccept,
	})
	cfg.RegisterDefaults("feedback", Section{
		"gradient":      "magma",
		"far_distance":  defaultFarDistance,
		"neutral_color": "#ffffff",
	})
	cfg.RegisterDefaults("driver", Section{
		"frame_interval_ms": 16,
		"inbound_buffer":    64,
		"log_every":         0,
	})
	cfg.RegisterDefaults("journal", Section{
		"enabled":          false,
		"path":             "",
		"batch_size":       64,
		"batch_timeout_ms": 1000,
	})
	cfg.RegisterDefaults("sim", Section{
		"acceptors":        3,
		"move_step":        0.01,
		"throw_speed":      0.2,
		"friction":         2.0,
		"pixels_per_metre": 200,
	})
}
