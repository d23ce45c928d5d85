// Copyright © 2025 Orbit contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
//
// File: internal/sim/world.go
// Summary: Simulated spatial engine for exercising the docking controller.
// Usage: Construct with NewWorld, pass it to dock.NewItemUI as the resource
//   factory, and feed user input through the exported input methods.
// Notes: World positions ignore rotation; every node is a translation.

package sim

import (
	"errors"
	"fmt"
	"log"
	"sync"

	"github.com/StardustXR/orbit/config"
	"github.com/StardustXR/orbit/dock"
	"github.com/StardustXR/orbit/protocol"
)

var (
	ErrUnknownPanel    = errors.New("sim: unknown panel")
	ErrUnknownAcceptor = errors.New("sim: unknown acceptor")
	ErrDuplicateID     = errors.New("sim: duplicate id")
	ErrQueryFailed     = errors.New("sim: injected query failure")
)

// Poster receives notifications produced by the world. dock.Driver satisfies it.
type Poster interface {
	Post(n dock.Notification)
}

// Params tunes the simulated physics and input.
type Params struct {
	Acceptors      int
	MoveStep       float32
	ThrowSpeed     float32
	Friction       float32
	MinSpeed       float32
	PixelsPerMetre float32
}

// DefaultParams mirrors the sim section of the embedded defaults.
func DefaultParams() Params {
	return Params{
		Acceptors:      3,
		MoveStep:       0.01,
		ThrowSpeed:     0.2,
		Friction:       2.0,
		MinSpeed:       0.001,
		PixelsPerMetre: 200,
	}
}

// ParamsFromConfig reads the sim section of cfg.
func ParamsFromConfig(cfg config.Config) Params {
	p := DefaultParams()
	p.Acceptors = cfg.GetInt("sim", "acceptors", p.Acceptors)
	p.MoveStep = float32(cfg.GetFloat("sim", "move_step", float64(p.MoveStep)))
	p.ThrowSpeed = float32(cfg.GetFloat("sim", "throw_speed", float64(p.ThrowSpeed)))
	p.Friction = float32(cfg.GetFloat("sim", "friction", float64(p.Friction)))
	p.PixelsPerMetre = float32(cfg.GetFloat("sim", "pixels_per_metre", float64(p.PixelsPerMetre)))
	if p.Friction < 0 {
		p.Friction = 0
	}
	if p.PixelsPerMetre <= 0 {
		p.PixelsPerMetre = DefaultParams().PixelsPerMetre
	}
	return p
}

// World owns every simulated node. All node state is guarded by mu; the
// controller may call into nodes from its pass goroutines.
type World struct {
	mu     sync.Mutex
	post   Poster
	params Params
	rec    *Recorder

	panels     map[string]*panel
	panelOrder []string

	acceptors     map[string]*acceptor
	acceptorOrder []string
}

// NewWorld creates an empty world posting notifications to post.
func NewWorld(post Poster, params Params) *World {
	return &World{
		post:      post,
		params:    params,
		panels:    make(map[string]*panel),
		acceptors: make(map[string]*acceptor),
	}
}

// SetPoster replaces the notification sink. It lets the world be created
// before the driver that consumes it.
func (w *World) SetPoster(post Poster) {
	w.mu.Lock()
	w.post = post
	w.mu.Unlock()
}

// SetRecorder records every successful input to r. Nil stops recording.
func (w *World) SetRecorder(r *Recorder) {
	w.mu.Lock()
	w.rec = r
	w.mu.Unlock()
}

// Params returns the physics parameters.
func (w *World) Params() Params { return w.params }

func (w *World) emit(n dock.Notification) {
	w.mu.Lock()
	post := w.post
	w.mu.Unlock()
	if post == nil {
		log.Printf("Sim: Dropping %T, no poster attached", n)
		return
	}
	post.Post(n)
}

func (w *World) record(msg protocol.Message) {
	w.mu.Lock()
	rec := w.rec
	w.mu.Unlock()
	if rec == nil {
		return
	}
	if err := rec.Record(msg); err != nil {
		log.Printf("Sim: Trace write failed: %v", err)
	}
}

// SpawnPanel creates a panel item at pos with a toplevel of size pixels.
func (w *World) SpawnPanel(id string, size dock.Size, pos dock.Vec3) error {
	w.mu.Lock()
	if _, ok := w.panels[id]; ok || id == "" {
		w.mu.Unlock()
		return fmt.Errorf("%w: panel %q", ErrDuplicateID, id)
	}
	p := &panel{w: w, id: id, size: size, local: pos}
	w.panels[id] = p
	w.panelOrder = append(w.panelOrder, id)
	w.mu.Unlock()

	w.record(protocol.SpawnPanel{PanelID: id, Width: size.Width, Height: size.Height, Position: protocol.Vec3(pos)})
	w.emit(dock.ItemCreated{ID: id, Item: p, Init: size})
	return nil
}

// SpawnAcceptor creates an acceptor with a box field centred on center.
func (w *World) SpawnAcceptor(id, label string, center, halfExtents dock.Vec3) error {
	w.mu.Lock()
	if _, ok := w.acceptors[id]; ok || id == "" {
		w.mu.Unlock()
		return fmt.Errorf("%w: acceptor %q", ErrDuplicateID, id)
	}
	a := &acceptor{w: w, id: id, label: label, center: center, half: halfExtents}
	w.acceptors[id] = a
	w.acceptorOrder = append(w.acceptorOrder, id)
	w.mu.Unlock()

	w.record(protocol.SpawnAcceptor{AcceptorID: id, Label: label, Center: protocol.Vec3(center), HalfExtents: protocol.Vec3(halfExtents)})
	w.emit(dock.AcceptorCreated{ID: id, Handle: a})
	return nil
}

// RemoveAcceptor withdraws an acceptor, releasing every panel it holds.
func (w *World) RemoveAcceptor(id string) error {
	w.mu.Lock()
	a, ok := w.acceptors[id]
	if !ok {
		w.mu.Unlock()
		return fmt.Errorf("%w: %q", ErrUnknownAcceptor, id)
	}
	a.removed = true
	delete(w.acceptors, id)
	w.acceptorOrder = removeID(w.acceptorOrder, id)
	var held []string
	for _, pid := range w.panelOrder {
		if p := w.panels[pid]; p.dockedTo == id {
			p.dockedTo = ""
			held = append(held, pid)
		}
	}
	w.mu.Unlock()

	w.record(protocol.RemoveAcceptor{AcceptorID: id})
	for _, pid := range held {
		w.emit(dock.ItemReleased{ID: pid, AcceptorID: id})
	}
	w.emit(dock.AcceptorDestroyed{ID: id})
	return nil
}

// SetAcceptorFault makes every distance query and capture on an acceptor fail.
func (w *World) SetAcceptorFault(id string, failing bool) error {
	w.mu.Lock()
	a, ok := w.acceptors[id]
	if ok {
		a.failing = failing
	}
	w.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownAcceptor, id)
	}
	w.record(protocol.AcceptorFault{AcceptorID: id, Failing: failing})
	return nil
}

// Grab begins a grab on the next frame.
func (w *World) Grab(id string) error {
	return w.withGrabbable(id, protocol.Grab{PanelID: id}, func(g *grabbable) {
		g.pendingGrab = true
	})
}

// Move displaces a held panel on the next frame.
func (w *World) Move(id string, delta dock.Vec3) error {
	return w.withGrabbable(id, protocol.Move{PanelID: id, Delta: protocol.Vec3(delta)}, func(g *grabbable) {
		g.pendingMove = add(g.pendingMove, delta)
	})
}

// Drop ends a grab on the next frame. A non-zero velocity throws the panel.
func (w *World) Drop(id string, velocity dock.Vec3) error {
	return w.withGrabbable(id, protocol.Drop{PanelID: id, Velocity: protocol.Vec3(velocity)}, func(g *grabbable) {
		g.pendingDrop = true
		g.throw = velocity
	})
}

func (w *World) withGrabbable(id string, msg protocol.Message, fn func(*grabbable)) error {
	w.mu.Lock()
	p, ok := w.panels[id]
	if !ok || p.grab == nil {
		w.mu.Unlock()
		return fmt.Errorf("%w: %q", ErrUnknownPanel, id)
	}
	fn(p.grab)
	w.mu.Unlock()
	w.record(msg)
	return nil
}

// Release asks the acceptor holding a panel to let go of it.
func (w *World) Release(id string) error {
	w.mu.Lock()
	p, ok := w.panels[id]
	if !ok {
		w.mu.Unlock()
		return fmt.Errorf("%w: %q", ErrUnknownPanel, id)
	}
	acceptorID := p.dockedTo
	p.dockedTo = ""
	w.mu.Unlock()

	w.record(protocol.Release{PanelID: id})
	if acceptorID == "" {
		return nil
	}
	w.emit(dock.ItemReleased{ID: id, AcceptorID: acceptorID})
	return nil
}

// Resize changes a panel's toplevel size.
func (w *World) Resize(id string, size dock.Size) error {
	w.mu.Lock()
	p, ok := w.panels[id]
	if ok {
		p.size = size
	}
	w.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownPanel, id)
	}
	w.record(protocol.Resize{PanelID: id, Width: size.Width, Height: size.Height})
	w.emit(dock.ToplevelSizeChanged{ID: id, Size: size})
	return nil
}

// ClosePanel destroys a panel item.
func (w *World) ClosePanel(id string) error {
	w.mu.Lock()
	p, ok := w.panels[id]
	if ok {
		p.closed = true
		delete(w.panels, id)
		w.panelOrder = removeID(w.panelOrder, id)
	}
	w.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownPanel, id)
	}
	w.record(protocol.ClosePanel{PanelID: id})
	w.emit(dock.ItemDestroyed{ID: id})
	return nil
}

// Apply performs a recorded input. Frame records are not inputs and are
// rejected.
func (w *World) Apply(msg protocol.Message) error {
	switch m := msg.(type) {
	case protocol.SpawnPanel:
		return w.SpawnPanel(m.PanelID, dock.Size{Width: m.Width, Height: m.Height}, dock.Vec3(m.Position))
	case protocol.SpawnAcceptor:
		return w.SpawnAcceptor(m.AcceptorID, m.Label, dock.Vec3(m.Center), dock.Vec3(m.HalfExtents))
	case protocol.RemoveAcceptor:
		return w.RemoveAcceptor(m.AcceptorID)
	case protocol.AcceptorFault:
		return w.SetAcceptorFault(m.AcceptorID, m.Failing)
	case protocol.Grab:
		return w.Grab(m.PanelID)
	case protocol.Move:
		return w.Move(m.PanelID, dock.Vec3(m.Delta))
	case protocol.Drop:
		return w.Drop(m.PanelID, dock.Vec3(m.Velocity))
	case protocol.Release:
		return w.Release(m.PanelID)
	case protocol.Resize:
		return w.Resize(m.PanelID, dock.Size{Width: m.Width, Height: m.Height})
	case protocol.ClosePanel:
		return w.ClosePanel(m.PanelID)
	default:
		return fmt.Errorf("sim: %s is not an input", msg.Type())
	}
}

// NewPanelResources implements dock.ResourceFactory. The grabbable starts
// where the panel currently is.
func (w *World) NewPanelResources(item dock.PanelItem, _ dock.Settings) (dock.Resources, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	p, ok := w.panels[item.ID()]
	if !ok || p.closed {
		return dock.Resources{}, fmt.Errorf("%w: %q", ErrUnknownPanel, item.ID())
	}
	g := &grabbable{w: w, enabled: true}
	g.parent = contentParent{w: w, pos: p.worldPosLocked()}
	p.model = &model{w: w, enabled: true, color: dock.White}
	p.field = &boxField{w: w}
	p.grab = g
	return dock.Resources{Model: p.model, Field: p.field, Grabbable: g}, nil
}

// PanelView is a read-only copy of a panel's state.
type PanelView struct {
	ID       string
	Position dock.Vec3
	Size     dock.Size
	Scale    dock.Vec3
	Color    dock.Color
	Enabled  bool
	Held     bool
	Moving   bool
	DockedTo string
}

// AcceptorView is a read-only copy of an acceptor's state.
type AcceptorView struct {
	ID          string
	Label       string
	Center      dock.Vec3
	HalfExtents dock.Vec3
	Failing     bool
}

// Panels returns every panel in spawn order.
func (w *World) Panels() []PanelView {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make([]PanelView, 0, len(w.panelOrder))
	for _, id := range w.panelOrder {
		p := w.panels[id]
		v := PanelView{ID: id, Position: p.worldPosLocked(), Size: p.size, DockedTo: p.dockedTo, Color: dock.White}
		if p.model != nil {
			v.Scale = p.model.scale
			v.Color = p.model.color
			v.Enabled = p.model.enabled
		}
		if p.grab != nil {
			v.Held = p.grab.held
			v.Moving = length(p.grab.velocity) > 0
		}
		out = append(out, v)
	}
	return out
}

// Panel returns one panel's view.
func (w *World) Panel(id string) (PanelView, bool) {
	for _, v := range w.Panels() {
		if v.ID == id {
			return v, true
		}
	}
	return PanelView{}, false
}

// Acceptors returns every acceptor in creation order.
func (w *World) Acceptors() []AcceptorView {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make([]AcceptorView, 0, len(w.acceptorOrder))
	for _, id := range w.acceptorOrder {
		a := w.acceptors[id]
		out = append(out, AcceptorView{ID: id, Label: a.label, Center: a.center, HalfExtents: a.half, Failing: a.failing})
	}
	return out
}

func removeID(ids []string, id string) []string {
	for i, v := range ids {
		if v == id {
			return append(ids[:i], ids[i+1:]...)
		}
	}
	return ids
}
