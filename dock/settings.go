// Copyright © 2025 Orbit contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
//
// File: dock/settings.go
// Summary: Tunables for panel geometry, capture threshold and feedback.

package dock

import (
	"log"

	"github.com/StardustXR/orbit/config"
)

const (
	DefaultPanelWidth        float32 = 0.1
	DefaultPanelThickness    float32 = 0.01
	DefaultMaxAcceptDistance float32 = 0.05
	DefaultFeedbackFar       float32 = 0.25
)

// Settings configures every controller owned by an item registry.
type Settings struct {
	PanelWidth        float32
	PanelThickness    float32
	MaxAcceptDistance float32
	FeedbackFar       float32
	Gradient          string
	NeutralColor      Color
	// SamplePoint is the origin of distance queries in panel space.
	SamplePoint Vec3
}

// DefaultSettings returns the stock panel dimensions and thresholds.
func DefaultSettings() Settings {
	return Settings{
		PanelWidth:        DefaultPanelWidth,
		PanelThickness:    DefaultPanelThickness,
		MaxAcceptDistance: DefaultMaxAcceptDistance,
		FeedbackFar:       DefaultFeedbackFar,
		Gradient:          DefaultGradientName,
		NeutralColor:      White,
	}
}

// SettingsFromConfig reads the docking and feedback sections. Invalid
// values fall back to the defaults.
func SettingsFromConfig(cfg config.Config) Settings {
	s := DefaultSettings()
	if cfg == nil {
		return s
	}
	if v := float32(cfg.GetFloat("docking", "panel_width", float64(s.PanelWidth))); v > 0 {
		s.PanelWidth = v
	}
	if v := float32(cfg.GetFloat("docking", "panel_thickness", float64(s.PanelThickness))); v > 0 {
		s.PanelThickness = v
	}
	if v := float32(cfg.GetFloat("docking", "max_accept_distance", float64(s.MaxAcceptDistance))); v > 0 {
		s.MaxAcceptDistance = v
	}
	s.FeedbackFar = float32(cfg.GetFloat("feedback", "far_distance", float64(s.FeedbackFar)))
	name := cfg.GetString("feedback", "gradient", s.Gradient)
	if _, err := NewGradient(name); err != nil {
		log.Printf("Dock: %v, using %s", err, DefaultGradientName)
	} else {
		s.Gradient = name
	}
	if hex := cfg.GetString("feedback", "neutral_color", ""); hex != "" {
		c, err := ParseColor(hex)
		if err != nil {
			log.Printf("Dock: %v, using white", err)
		} else {
			s.NeutralColor = c
		}
	}
	return s
}

// PanelScale returns the model scale and field size for a toplevel aspect ratio.
func (s Settings) PanelScale(aspect float32) Vec3 {
	return Vec3{s.PanelWidth, s.PanelWidth * aspect, s.PanelThickness}
}
