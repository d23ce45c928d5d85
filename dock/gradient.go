// Copyright © 2025 Orbit contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
//
// File: dock/gradient.go
// Summary: Perceptual colour gradients used for proximity feedback.
// Notes: Stops are 11 evenly spaced samples of the matplotlib colormaps, so the
// curve only approximates the full tables.

package dock

import (
	"fmt"
	"math"
	"strings"

	"github.com/lucasb-eyer/go-colorful"
)

// Gradient maps a position in [0,1] to a colour by blending evenly spaced
// stops. Blending interpolates the sRGB-encoded components directly.
type Gradient struct {
	name  string
	stops []colorful.Color
}

var palettes = map[string][]string{
	"magma": {
		"#000004", "#140e36", "#3b0f70", "#641a80", "#8c2981", "#b73779",
		"#de4968", "#f7705c", "#fe9f6d", "#fecf92", "#fcfdbf",
	},
	"inferno": {
		"#000004", "#160b39", "#420a68", "#6a176e", "#932667", "#bc3754",
		"#dd513a", "#f37819", "#fca50a", "#f6d746", "#fcffa4",
	},
	"viridis": {
		"#440154", "#482475", "#414487", "#355f8d", "#2a788e", "#21918c",
		"#22a884", "#44bf70", "#7ad151", "#bddf26", "#fde725",
	},
	"plasma": {
		"#0d0887", "#41049d", "#6a00a8", "#8f0da4", "#b12a90", "#cc4778",
		"#e16462", "#f2844b", "#fca636", "#fcce25", "#f0f921",
	},
}

// DefaultGradientName is the palette used when none is configured.
const DefaultGradientName = "magma"

// NewGradient builds a named palette. Names are case-insensitive.
func NewGradient(name string) (Gradient, error) {
	key := strings.ToLower(strings.TrimSpace(name))
	if key == "" {
		key = DefaultGradientName
	}
	hexes, ok := palettes[key]
	if !ok {
		return Gradient{}, fmt.Errorf("dock: unknown gradient %q", name)
	}
	stops := make([]colorful.Color, len(hexes))
	for i, h := range hexes {
		c, err := colorful.Hex(h)
		if err != nil {
			return Gradient{}, fmt.Errorf("dock: gradient %s stop %d: %w", key, i, err)
		}
		stops[i] = c
	}
	return Gradient{name: key, stops: stops}, nil
}

// Magma returns the default feedback palette.
func Magma() Gradient {
	g, _ := NewGradient("magma")
	return g
}

// Name returns the palette name.
func (g Gradient) Name() string { return g.name }

// At returns the opaque colour at position t. Positions outside [0,1] clamp
// to the end stops.
func (g Gradient) At(t float64) Color {
	if len(g.stops) == 0 {
		return White
	}
	if math.IsNaN(t) || t <= 0 {
		return toColor(g.stops[0])
	}
	if t >= 1 {
		return toColor(g.stops[len(g.stops)-1])
	}
	pos := t * float64(len(g.stops)-1)
	i := int(pos)
	frac := pos - float64(i)
	return toColor(g.stops[i].BlendRgb(g.stops[i+1], frac).Clamped())
}

func toColor(c colorful.Color) Color {
	return Color{float32(c.R), float32(c.G), float32(c.B), 1}
}

// ParseColor reads a #rrggbb or #rrggbbaa hex string.
func ParseColor(s string) (Color, error) {
	s = strings.TrimSpace(s)
	alpha := float32(1)
	if len(s) == 9 {
		var a uint8
		if _, err := fmt.Sscanf(s[7:], "%02x", &a); err != nil {
			return Color{}, fmt.Errorf("dock: invalid alpha in %q: %w", s, err)
		}
		alpha = float32(a) / 255
		s = s[:7]
	}
	c, err := colorful.Hex(s)
	if err != nil {
		return Color{}, fmt.Errorf("dock: invalid colour %q: %w", s, err)
	}
	return Color{float32(c.R), float32(c.G), float32(c.B), alpha}, nil
}

// Hex formats the colour as #rrggbb, dropping alpha.
func (c Color) Hex() string {
	return colorful.Color{R: float64(c[0]), G: float64(c[1]), B: float64(c[2])}.Clamped().Hex()
}
