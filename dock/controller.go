// Copyright © 2025 Orbit contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
//
// File: dock/controller.go
// Summary: Per-panel docking state machine.
// Usage: Created by ItemUI for every panel item; ticked once per frame.
// Notes: The frame tick never waits on the engine. Sampling passes run on their
// own goroutines and re-check state before touching the panel.

package dock

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
)

var (
	ErrNilItem          = errors.New("dock: panel item is nil")
	ErrMissingResources = errors.New("dock: panel resources incomplete")
)

// ControllerOptions carries the collaborators shared by all controllers.
type ControllerOptions struct {
	Settings  Settings
	Acceptors SnapshotSource
	Events    *EventDispatcher
	Observer  PassObserver
}

// Controller drives one panel through Free, Grabbed and Captured.
type Controller struct {
	id        string
	item      PanelItem
	res       Resources
	settings  Settings
	feedback  FeedbackMapper
	sampler   Sampler
	acceptors SnapshotSource
	events    *EventDispatcher
	observer  PassObserver

	mu             sync.Mutex
	state          PanelState
	capturedBy     string
	size           Size
	aspect         float32
	enabled        bool
	destroyed      bool
	dispatched     uint64 // sequence number of the newest sampling pass
	applied        uint64 // passes at or below this number are stale
	capturePending bool

	inflight sync.WaitGroup
}

// NewController wires a panel item to its resources and applies the initial
// toplevel size.
func NewController(item PanelItem, initial Size, res Resources, opts ControllerOptions) (*Controller, error) {
	if item == nil {
		return nil, ErrNilItem
	}
	if res.Model == nil || res.Field == nil || res.Grabbable == nil {
		return nil, ErrMissingResources
	}
	if opts.Acceptors == nil {
		opts.Acceptors = NewAcceptorRegistry(nil)
	}
	if setup, ok := item.(PanelSetup); ok {
		if err := setup.AutoSizeToplevel(); err != nil {
			return nil, fmt.Errorf("auto size toplevel: %w", err)
		}
		if err := setup.ApplySurfaceMaterial(res.Model); err != nil {
			return nil, fmt.Errorf("apply surface material: %w", err)
		}
		if err := setup.SetSpatialParentInPlace(res.Grabbable.ContentParent()); err != nil {
			return nil, fmt.Errorf("reparent panel: %w", err)
		}
	}

	c := &Controller{
		id:        item.ID(),
		item:      item,
		res:       res,
		settings:  opts.Settings,
		feedback:  NewFeedbackMapper(opts.Settings),
		acceptors: opts.Acceptors,
		events:    opts.Events,
		observer:  opts.Observer,
		enabled:   true,
	}
	c.Resize(initial)
	return c, nil
}

// ID returns the panel item id.
func (c *Controller) ID() string { return c.id }

// State returns the current docking state.
func (c *Controller) State() PanelState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// CapturedBy returns the acceptor holding the panel, if any.
func (c *Controller) CapturedBy() (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.capturedBy, c.state == StateCaptured
}

// Size returns the last toplevel size applied.
func (c *Controller) Size() Size {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.size
}

// AspectRatio returns height over width of the toplevel.
func (c *Controller) AspectRatio() float32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.aspect
}

// Enabled reports whether the model and grabbable are active.
func (c *Controller) Enabled() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.enabled
}

// Frame advances the grabbable and dispatches a sampling pass. It returns
// without waiting for the pass.
func (c *Controller) Frame(info FrameInfo) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.destroyed || c.state == StateCaptured {
		return
	}

	g := c.res.Grabbable
	if err := g.Update(info); err != nil {
		log.Printf("Dock: Panel %s grabbable update failed: %v", c.id, err)
		return
	}
	if g.GrabStarted() {
		c.capturePending = false
	}
	if g.GrabActive() {
		c.state = StateGrabbed
	} else {
		c.state = StateFree
	}
	_, moving := g.LinearSpeed()
	accept := (!g.GrabActive() && moving) || g.GrabStopped()

	snap := c.acceptors.Snapshot()
	if snap.Len() == 0 {
		c.applied = c.dispatched
		c.applyColorLocked(c.feedback.Neutral())
		return
	}

	c.dispatched++
	c.inflight.Add(1)
	go c.runPass(c.dispatched, snap, accept)
}

func (c *Controller) runPass(seq uint64, snap *AcceptorSnapshot, accept bool) {
	defer c.inflight.Done()

	result := c.sampler.Sample(context.Background(), c.item, c.settings.SamplePoint, snap)
	if c.observer != nil {
		c.observer.ObservePass(c.id, result)
	}

	c.mu.Lock()
	if c.destroyed || c.state == StateCaptured || seq <= c.applied {
		c.mu.Unlock()
		return
	}
	c.applied = seq
	c.applyColorLocked(c.feedback.For(result))

	if !accept || !result.Found || c.capturePending || result.Winner.Distance >= c.settings.MaxAcceptDistance {
		c.mu.Unlock()
		return
	}
	acceptor, ok := c.acceptors.Snapshot().Lookup(result.Winner.AcceptorID)
	if !ok {
		c.mu.Unlock()
		return
	}
	c.capturePending = true
	c.mu.Unlock()

	c.requestCapture(result.Winner, acceptor)
}

func (c *Controller) requestCapture(winner DistanceSample, acceptor Acceptor) {
	c.events.publish(EventCaptureRequested, TransitionPayload{
		PanelID:    c.id,
		AcceptorID: winner.AcceptorID,
		Distance:   winner.Distance,
	})
	if err := acceptor.Capture(context.Background(), c.item); err != nil {
		log.Printf("Dock: Capture of %s by %s failed: %v", c.id, winner.AcceptorID, err)
		c.mu.Lock()
		c.capturePending = false
		c.mu.Unlock()
		c.events.publish(EventCaptureFailed, TransitionPayload{
			PanelID:    c.id,
			AcceptorID: winner.AcceptorID,
			Err:        err,
		})
	}
}

// Captured applies the engine's capture acknowledgment.
func (c *Controller) Captured(acceptorID string) {
	c.mu.Lock()
	if c.destroyed {
		c.mu.Unlock()
		return
	}
	log.Printf("Dock: Panel %s captured by %s", c.id, acceptorID)
	c.state = StateCaptured
	c.capturedBy = acceptorID
	c.capturePending = false
	c.applied = c.dispatched
	c.setEnabledLocked(false)
	c.res.Grabbable.CancelLinearVelocity()
	c.res.Grabbable.CancelAngularVelocity()
	c.mu.Unlock()

	c.events.publish(EventPanelCaptured, TransitionPayload{PanelID: c.id, AcceptorID: acceptorID})
}

// Released applies the engine's release acknowledgment. The panel snaps back
// onto its grabbable so the next grab does not jump.
func (c *Controller) Released(acceptorID string) {
	c.mu.Lock()
	if c.destroyed {
		c.mu.Unlock()
		return
	}
	if c.state != StateCaptured {
		log.Printf("Dock: Ignoring release of %s by %s, panel is %s", c.id, acceptorID, c.state)
		c.mu.Unlock()
		return
	}
	if acceptorID != c.capturedBy {
		log.Printf("Dock: Panel %s released by %s but captured by %s", c.id, acceptorID, c.capturedBy)
	}
	log.Printf("Dock: Panel %s released", c.id)
	c.state = StateFree
	c.capturedBy = ""
	c.capturePending = false
	c.applied = c.dispatched
	c.setEnabledLocked(true)
	parent := c.res.Grabbable.ContentParent()
	if parent != nil {
		if err := parent.SetTransform(c.item, Identity()); err != nil {
			log.Printf("Dock: Panel %s grabbable reset failed: %v", c.id, err)
		}
	}
	if err := c.item.SetTransform(nil, Identity()); err != nil {
		log.Printf("Dock: Panel %s transform reset failed: %v", c.id, err)
	}
	c.mu.Unlock()

	c.events.publish(EventPanelReleased, TransitionPayload{PanelID: c.id, AcceptorID: acceptorID})
}

// Resize rescales the model and interaction field to the toplevel's aspect
// ratio. A zero width is ignored.
func (c *Controller) Resize(size Size) {
	if size.Width == 0 {
		log.Printf("Dock: Ignoring zero-width toplevel size %s for %s", size, c.id)
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.destroyed {
		return
	}
	c.size = size
	c.aspect = float32(size.Height) / float32(size.Width)
	scale := c.settings.PanelScale(c.aspect)
	if err := c.res.Model.SetScale(scale); err != nil {
		log.Printf("Dock: Panel %s model rescale failed: %v", c.id, err)
	}
	if err := c.res.Field.SetSize(scale); err != nil {
		log.Printf("Dock: Panel %s field resize failed: %v", c.id, err)
	}
}

// Destroy tears the panel down from any state. In-flight passes finish
// without effect.
func (c *Controller) Destroy() {
	c.mu.Lock()
	if c.destroyed {
		c.mu.Unlock()
		return
	}
	c.destroyed = true
	c.applied = c.dispatched
	res := c.res
	c.mu.Unlock()

	destroyResources(c.id, res)
}

// Wait blocks until every dispatched sampling pass has finished.
func (c *Controller) Wait() {
	c.inflight.Wait()
}

func (c *Controller) applyColorLocked(color Color) {
	if err := c.res.Model.SetEdgeColor(color); err != nil {
		log.Printf("Dock: Panel %s edge colour failed: %v", c.id, err)
	}
}

func (c *Controller) setEnabledLocked(enabled bool) {
	c.enabled = enabled
	if err := c.res.Model.SetEnabled(enabled); err != nil {
		log.Printf("Dock: Panel %s model enable=%t failed: %v", c.id, enabled, err)
	}
	if err := c.res.Grabbable.SetEnabled(enabled); err != nil {
		log.Printf("Dock: Panel %s grabbable enable=%t failed: %v", c.id, enabled, err)
	}
}
