// Copyright © 2025 Orbit contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
//
// File: dock/items.go
// Summary: Maps panel item ids to controllers and routes lifecycle traffic.
// Usage: Owned by the frame loop; Handle and Frame are called from that goroutine.

package dock

import (
	"log"
	"sort"
	"sync"
)

// ItemUI is the item registry for panel items.
type ItemUI struct {
	factory   ResourceFactory
	settings  Settings
	acceptors *AcceptorRegistry
	events    *EventDispatcher
	observer  PassObserver

	mu    sync.RWMutex
	items map[string]*Controller
	order []string
}

// Option customises an ItemUI.
type Option func(*ItemUI)

// WithSettings overrides DefaultSettings.
func WithSettings(s Settings) Option {
	return func(u *ItemUI) { u.settings = s }
}

// WithObserver attaches a sampling pass observer.
func WithObserver(o PassObserver) Option {
	return func(u *ItemUI) { u.observer = o }
}

// WithDispatcher shares an existing dispatcher instead of creating one.
func WithDispatcher(d *EventDispatcher) Option {
	return func(u *ItemUI) { u.events = d }
}

// NewItemUI creates an empty registry that builds panel resources with factory.
func NewItemUI(factory ResourceFactory, opts ...Option) *ItemUI {
	u := &ItemUI{
		factory:  factory,
		settings: DefaultSettings(),
		items:    make(map[string]*Controller),
	}
	for _, opt := range opts {
		opt(u)
	}
	if u.events == nil {
		u.events = NewEventDispatcher()
	}
	u.acceptors = NewAcceptorRegistry(u.events)
	return u
}

// Events returns the dispatcher transitions are published on.
func (u *ItemUI) Events() *EventDispatcher { return u.events }

// Acceptors returns the acceptor registry.
func (u *ItemUI) Acceptors() *AcceptorRegistry { return u.acceptors }

// Settings returns the settings controllers are created with.
func (u *ItemUI) Settings() Settings { return u.settings }

// Handle dispatches a lifecycle notification.
func (u *ItemUI) Handle(n Notification) {
	switch msg := n.(type) {
	case ItemCreated:
		u.itemCreated(msg)
	case ItemCaptured:
		if c := u.Controller(msg.ID); c != nil {
			c.Captured(msg.AcceptorID)
		}
	case ItemReleased:
		if c := u.Controller(msg.ID); c != nil {
			c.Released(msg.AcceptorID)
		}
	case ItemDestroyed:
		u.itemDestroyed(msg.ID)
	case AcceptorCreated:
		u.acceptors.Add(msg.ID, msg.Handle)
	case AcceptorDestroyed:
		u.acceptors.Remove(msg.ID)
	case ToplevelSizeChanged:
		if c := u.Controller(msg.ID); c != nil {
			c.Resize(msg.Size)
		}
	case nil:
	default:
		log.Printf("Dock: Unhandled notification %T", n)
	}
}

func (u *ItemUI) itemCreated(msg ItemCreated) {
	if msg.Item == nil || u.factory == nil {
		log.Printf("Dock: Cannot create panel %q without an item and factory", msg.ID)
		return
	}
	res, err := u.factory.NewPanelResources(msg.Item, u.settings)
	if err != nil {
		log.Printf("Dock: Failed to create resources for panel %s: %v", msg.ID, err)
		return
	}
	c, err := NewController(msg.Item, msg.Init, res, ControllerOptions{
		Settings:  u.settings,
		Acceptors: u.acceptors,
		Events:    u.events,
		Observer:  u.observer,
	})
	if err != nil {
		log.Printf("Dock: Failed to set up panel %s: %v", msg.ID, err)
		destroyResources(msg.ID, res)
		return
	}
	// The notification id is authoritative; the controller keeps the
	// item's own id for logging.
	u.mu.Lock()
	if old, ok := u.items[msg.ID]; ok {
		log.Printf("Dock: Panel %s recreated, replacing previous controller", msg.ID)
		old.Destroy()
	} else {
		u.order = append(u.order, msg.ID)
		sort.Strings(u.order)
	}
	u.items[msg.ID] = c
	u.mu.Unlock()

	u.events.publish(EventPanelCreated, TransitionPayload{PanelID: msg.ID})
}

func (u *ItemUI) itemDestroyed(id string) {
	u.mu.Lock()
	c, ok := u.items[id]
	if ok {
		delete(u.items, id)
		i := sort.SearchStrings(u.order, id)
		if i < len(u.order) && u.order[i] == id {
			u.order = append(u.order[:i], u.order[i+1:]...)
		}
	}
	u.mu.Unlock()
	if !ok {
		return
	}
	c.Destroy()
	u.events.publish(EventPanelDestroyed, TransitionPayload{PanelID: id})
}

// Frame ticks every controller in id order.
func (u *ItemUI) Frame(info FrameInfo) {
	for _, c := range u.Controllers() {
		c.Frame(info)
	}
}

// Controller returns the controller for id, or nil.
func (u *ItemUI) Controller(id string) *Controller {
	u.mu.RLock()
	defer u.mu.RUnlock()
	return u.items[id]
}

// Controllers returns the live controllers in id order.
func (u *ItemUI) Controllers() []*Controller {
	u.mu.RLock()
	defer u.mu.RUnlock()
	out := make([]*Controller, 0, len(u.order))
	for _, id := range u.order {
		out = append(out, u.items[id])
	}
	return out
}

// Len returns the number of live panels.
func (u *ItemUI) Len() int {
	u.mu.RLock()
	defer u.mu.RUnlock()
	return len(u.items)
}

// Wait blocks until in-flight sampling passes of live panels finish.
func (u *ItemUI) Wait() {
	for _, c := range u.Controllers() {
		c.Wait()
	}
}

// Close destroys every panel.
func (u *ItemUI) Close() {
	u.mu.Lock()
	items := u.items
	u.items = make(map[string]*Controller)
	u.order = nil
	u.mu.Unlock()
	for id, c := range items {
		c.Destroy()
		c.Wait()
		u.events.publish(EventPanelDestroyed, TransitionPayload{PanelID: id})
	}
}

func destroyResources(id string, res Resources) {
	for _, node := range []interface{}{res.Grabbable, res.Field, res.Model} {
		if d, ok := node.(Destroyer); ok {
			if err := d.Destroy(); err != nil {
				log.Printf("Dock: Panel %s teardown: %v", id, err)
			}
		}
	}
}
