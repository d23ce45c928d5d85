// Copyright © 2025 Orbit contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
//
// File: dock/dispatcher.go
// Summary: Broadcasts docking transitions to subscribed listeners.
// Usage: The item registry and acceptor registry publish here; the journal and tooling listen.

package dock

import (
	"sync"
	"time"
)

// EventType defines the type of an event.
type EventType int

const (
	// Acceptor Events
	EventAcceptorAdded EventType = iota
	EventAcceptorRemoved
	// Panel Events
	EventPanelCreated
	EventPanelDestroyed
	EventCaptureRequested
	EventCaptureFailed
	EventPanelCaptured
	EventPanelReleased
)

func (t EventType) String() string {
	switch t {
	case EventAcceptorAdded:
		return "acceptor_added"
	case EventAcceptorRemoved:
		return "acceptor_removed"
	case EventPanelCreated:
		return "panel_created"
	case EventPanelDestroyed:
		return "panel_destroyed"
	case EventCaptureRequested:
		return "capture_requested"
	case EventCaptureFailed:
		return "capture_failed"
	case EventPanelCaptured:
		return "panel_captured"
	case EventPanelReleased:
		return "panel_released"
	default:
		return "unknown"
	}
}

// Event represents a message passed through the system.
type Event struct {
	Type    EventType
	Time    time.Time
	Payload interface{}
}

// TransitionPayload is carried by every event the core emits.
type TransitionPayload struct {
	PanelID    string
	AcceptorID string
	Distance   float32 // only set for capture requests
	Err        error   // only set for failures
}

// Listener is an interface that any component can implement to receive events.
type Listener interface {
	// OnEvent is called synchronously on the publishing goroutine.
	OnEvent(event Event)
}

// EventDispatcher manages a list of listeners and broadcasts events to them.
type EventDispatcher struct {
	mu        sync.RWMutex
	listeners []Listener
}

// NewEventDispatcher creates a new dispatcher.
func NewEventDispatcher() *EventDispatcher {
	return &EventDispatcher{
		listeners: make([]Listener, 0),
	}
}

// Subscribe adds a new listener to receive events.
func (d *EventDispatcher) Subscribe(listener Listener) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.listeners = append(d.listeners, listener)
}

// Unsubscribe removes a listener.
func (d *EventDispatcher) Unsubscribe(listener Listener) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for i, l := range d.listeners {
		if l == listener {
			d.listeners = append(d.listeners[:i], d.listeners[i+1:]...)
			break
		}
	}
}

// Broadcast sends an event to all subscribed listeners. A nil dispatcher
// drops the event.
func (d *EventDispatcher) Broadcast(event Event) {
	if d == nil {
		return
	}
	if event.Time.IsZero() {
		event.Time = time.Now()
	}
	d.mu.RLock()
	listeners := append([]Listener(nil), d.listeners...)
	d.mu.RUnlock()
	for _, l := range listeners {
		l.OnEvent(event)
	}
}

func (d *EventDispatcher) publish(t EventType, payload TransitionPayload) {
	d.Broadcast(Event{Type: t, Payload: payload})
}
