// Copyright © 2025 Orbit contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
//
// File: dock/notifications.go
// Summary: Lifecycle notifications delivered by the spatial engine.
// Usage: Posted to a Driver or handed straight to ItemUI.Handle.

package dock

// Notification is one of the lifecycle message variants below.
type Notification interface {
	notification()
}

// ItemCreated announces a new panel item with its initial toplevel size.
type ItemCreated struct {
	ID   string
	Item PanelItem
	Init Size
}

// ItemCaptured acknowledges that an acceptor took the panel.
type ItemCaptured struct {
	ID         string
	AcceptorID string
}

// ItemReleased acknowledges that an acceptor let go of the panel.
type ItemReleased struct {
	ID         string
	AcceptorID string
}

// ItemDestroyed removes a panel item.
type ItemDestroyed struct {
	ID string
}

// AcceptorCreated announces a docking target.
type AcceptorCreated struct {
	ID     string
	Handle Acceptor
}

// AcceptorDestroyed removes a docking target.
type AcceptorDestroyed struct {
	ID string
}

// ToplevelSizeChanged reports a new toplevel surface size.
type ToplevelSizeChanged struct {
	ID   string
	Size Size
}

func (ItemCreated) notification()         {}
func (ItemCaptured) notification()        {}
func (ItemReleased) notification()        {}
func (ItemDestroyed) notification()       {}
func (AcceptorCreated) notification()     {}
func (AcceptorDestroyed) notification()   {}
func (ToplevelSizeChanged) notification() {}
