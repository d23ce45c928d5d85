// Copyright © 2025 Orbit contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
//
// File: dock/types.go
// Summary: Value types shared by the docking controller and its collaborators.

package dock

import "fmt"

// Vec3 is a point or extent in panel space, in metres.
type Vec3 [3]float32

// Quat is a rotation quaternion stored as x, y, z, w.
type Quat [4]float32

// Transform places a spatial node relative to another node.
type Transform struct {
	Position Vec3
	Rotation Quat
	Scale    Vec3
}

// Identity returns the transform that leaves a node at its reference origin.
func Identity() Transform {
	return Transform{
		Rotation: Quat{0, 0, 0, 1},
		Scale:    Vec3{1, 1, 1},
	}
}

// Size is a toplevel surface size in pixels.
type Size struct {
	Width  uint32
	Height uint32
}

func (s Size) String() string {
	return fmt.Sprintf("%dx%d", s.Width, s.Height)
}

// Color is an RGBA colour with sRGB-encoded components in [0,1].
type Color [4]float32

// White is the neutral edge colour shown when no acceptor is in range.
var White = Color{1, 1, 1, 1}

// FrameInfo carries frame timing reported by the spatial engine.
type FrameInfo struct {
	Delta   float64 // seconds since the previous frame
	Elapsed float64 // seconds since the client connected
}

// PanelState is the docking state of a single panel.
type PanelState int

const (
	StateFree PanelState = iota
	StateGrabbed
	StateCaptured
)

func (s PanelState) String() string {
	switch s {
	case StateFree:
		return "free"
	case StateGrabbed:
		return "grabbed"
	case StateCaptured:
		return "captured"
	default:
		return "unknown"
	}
}
