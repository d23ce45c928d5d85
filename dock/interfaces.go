// Copyright © 2025 Orbit contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
//
// File: dock/interfaces.go
// Summary: Capabilities the docking core consumes from the spatial engine.
// Usage: Implemented by the engine bindings and by internal/sim for tests and tooling.
// Notes: Every method may be called from a sampling goroutine unless noted otherwise.

package dock

import (
	"context"
	"errors"
)

// ErrNoDistance is returned by a ProximityField that has no distance to report.
var ErrNoDistance = errors.New("dock: no distance")

// Spatial is a node in the engine's transform graph.
type Spatial interface {
	// SetTransform places the node relative to another node. A nil
	// relativeTo means the node's own spatial parent.
	SetTransform(relativeTo Spatial, t Transform) error
}

// PanelItem is the engine-side handle of an application surface.
type PanelItem interface {
	Spatial
	ID() string
}

// PanelSetup is implemented by panel items that need one-time wiring to
// their model and grabbable when a controller is created.
type PanelSetup interface {
	AutoSizeToplevel() error
	ApplySurfaceMaterial(model Model) error
	SetSpatialParentInPlace(parent Spatial) error
}

// ProximityField reports the distance from a point to the field's surface.
// Implementations must tolerate concurrent calls for different fields.
type ProximityField interface {
	Distance(ctx context.Context, from Spatial, point Vec3) (float32, error)
}

// Acceptor is a docking target. Capture is a request; the engine answers
// with an ItemCaptured notification when it succeeds.
type Acceptor interface {
	ProximityField
	Capture(ctx context.Context, item PanelItem) error
}

// Grabbable is the gesture recognizer attached to a panel.
type Grabbable interface {
	Update(info FrameInfo) error
	GrabStarted() bool
	GrabActive() bool
	GrabStopped() bool
	// LinearSpeed reports the current throw speed; false when the panel is
	// not moving under its own momentum.
	LinearSpeed() (float32, bool)
	CancelLinearVelocity()
	CancelAngularVelocity()
	SetEnabled(enabled bool) error
	ContentParent() Spatial
}

// Model is the visual representation of a panel.
type Model interface {
	SetScale(scale Vec3) error
	SetEnabled(enabled bool) error
	SetEdgeColor(c Color) error
}

// BoxField is the panel's own interaction volume.
type BoxField interface {
	SetSize(size Vec3) error
}

// Destroyer is implemented by resources that hold engine-side nodes.
type Destroyer interface {
	Destroy() error
}

// Resources groups the per-panel nodes a controller drives.
type Resources struct {
	Model     Model
	Field     BoxField
	Grabbable Grabbable
}

// ResourceFactory creates the visual and interactive nodes for a new panel.
type ResourceFactory interface {
	NewPanelResources(item PanelItem, settings Settings) (Resources, error)
}
