package sim

import (
	"context"
	"fmt"
	"math"

	"github.com/StardustXR/orbit/dock"
)

// node is a simulated spatial with a world position.
type node interface {
	worldPosLocked() dock.Vec3
}

func worldOf(s dock.Spatial) (dock.Vec3, error) {
	if s == nil {
		return dock.Vec3{}, nil
	}
	n, ok := s.(node)
	if !ok {
		return dock.Vec3{}, fmt.Errorf("sim: %T is not a simulated spatial", s)
	}
	return n.worldPosLocked(), nil
}

// panel is the simulated panel item. Until it is parented, local is its
// world position.
type panel struct {
	w    *World
	id   string
	size dock.Size

	local    dock.Vec3
	parent   *contentParent
	dockedTo string
	closed   bool

	autoSized bool
	material  dock.Model
	model     *model
	field     *boxField
	grab      *grabbable
}

func (p *panel) ID() string { return p.id }

func (p *panel) worldPosLocked() dock.Vec3 {
	if p.parent == nil {
		return p.local
	}
	return add(p.parent.pos, p.local)
}

func (p *panel) SetTransform(relativeTo dock.Spatial, t dock.Transform) error {
	p.w.mu.Lock()
	defer p.w.mu.Unlock()
	if relativeTo == nil {
		p.local = t.Position
		return nil
	}
	ref, err := worldOf(relativeTo)
	if err != nil {
		return err
	}
	target := add(ref, t.Position)
	if p.parent != nil {
		target = sub(target, p.parent.pos)
	}
	p.local = target
	return nil
}

func (p *panel) AutoSizeToplevel() error {
	p.w.mu.Lock()
	p.autoSized = true
	p.w.mu.Unlock()
	return nil
}

func (p *panel) ApplySurfaceMaterial(m dock.Model) error {
	p.w.mu.Lock()
	p.material = m
	p.w.mu.Unlock()
	return nil
}

func (p *panel) SetSpatialParentInPlace(parent dock.Spatial) error {
	cp, ok := parent.(*contentParent)
	if !ok {
		return fmt.Errorf("sim: cannot parent panel to %T", parent)
	}
	p.w.mu.Lock()
	defer p.w.mu.Unlock()
	world := p.worldPosLocked()
	p.parent = cp
	p.local = sub(world, cp.pos)
	return nil
}

// contentParent is the node a grabbable moves; the panel hangs off it.
type contentParent struct {
	w   *World
	pos dock.Vec3
}

func (c *contentParent) worldPosLocked() dock.Vec3 { return c.pos }

func (c *contentParent) SetTransform(relativeTo dock.Spatial, t dock.Transform) error {
	c.w.mu.Lock()
	defer c.w.mu.Unlock()
	ref, err := worldOf(relativeTo)
	if err != nil {
		return err
	}
	c.pos = add(ref, t.Position)
	return nil
}

type model struct {
	w         *World
	scale     dock.Vec3
	enabled   bool
	color     dock.Color
	destroyed bool
}

func (m *model) SetScale(v dock.Vec3) error {
	m.w.mu.Lock()
	defer m.w.mu.Unlock()
	m.scale = v
	return nil
}

func (m *model) SetEnabled(enabled bool) error {
	m.w.mu.Lock()
	defer m.w.mu.Unlock()
	m.enabled = enabled
	return nil
}

func (m *model) SetEdgeColor(c dock.Color) error {
	m.w.mu.Lock()
	defer m.w.mu.Unlock()
	m.color = c
	return nil
}

func (m *model) Destroy() error {
	m.w.mu.Lock()
	defer m.w.mu.Unlock()
	m.destroyed = true
	return nil
}

type boxField struct {
	w    *World
	size dock.Vec3
}

func (f *boxField) SetSize(v dock.Vec3) error {
	f.w.mu.Lock()
	defer f.w.mu.Unlock()
	f.size = v
	return nil
}

// grabbable turns queued input into per-frame grab flags and momentum.
type grabbable struct {
	w       *World
	parent  contentParent
	enabled bool

	pendingGrab bool
	pendingDrop bool
	pendingMove dock.Vec3
	throw       dock.Vec3

	held                     bool
	started, active, stopped bool
	velocity                 dock.Vec3
	destroyed                bool
}

func (g *grabbable) Update(info dock.FrameInfo) error {
	g.w.mu.Lock()
	defer g.w.mu.Unlock()
	if g.destroyed {
		return fmt.Errorf("sim: grabbable destroyed")
	}
	dt := float32(info.Delta)
	g.started, g.stopped = false, false

	if g.pendingGrab && g.enabled && !g.held {
		g.held = true
		g.started = true
		g.velocity = dock.Vec3{}
	}
	g.pendingGrab = false

	if g.held {
		g.parent.pos = add(g.parent.pos, g.pendingMove)
		if dt > 0 {
			g.velocity = scale(g.pendingMove, 1/dt)
		} else {
			g.velocity = dock.Vec3{}
		}
	}
	g.pendingMove = dock.Vec3{}

	if g.pendingDrop && g.held {
		g.held = false
		g.stopped = true
		g.velocity = g.throw
	}
	g.pendingDrop = false
	g.throw = dock.Vec3{}

	if !g.held && !g.stopped {
		g.parent.pos = add(g.parent.pos, scale(g.velocity, dt))
		decay := 1 - g.w.params.Friction*dt
		if decay < 0 {
			decay = 0
		}
		g.velocity = scale(g.velocity, decay)
		if length(g.velocity) < g.w.params.MinSpeed {
			g.velocity = dock.Vec3{}
		}
	}
	g.active = g.held
	return nil
}

func (g *grabbable) GrabStarted() bool { return g.flag(&g.started) }
func (g *grabbable) GrabActive() bool  { return g.flag(&g.active) }
func (g *grabbable) GrabStopped() bool { return g.flag(&g.stopped) }

func (g *grabbable) flag(f *bool) bool {
	g.w.mu.Lock()
	defer g.w.mu.Unlock()
	return *f
}

// LinearSpeed reports momentum after a release; held panels have none.
func (g *grabbable) LinearSpeed() (float32, bool) {
	g.w.mu.Lock()
	defer g.w.mu.Unlock()
	if g.held {
		return 0, false
	}
	s := length(g.velocity)
	return s, s > 0
}

func (g *grabbable) CancelLinearVelocity() {
	g.w.mu.Lock()
	g.velocity = dock.Vec3{}
	g.w.mu.Unlock()
}

// CancelAngularVelocity is a no-op; simulated panels do not rotate.
func (g *grabbable) CancelAngularVelocity() {}

func (g *grabbable) SetEnabled(enabled bool) error {
	g.w.mu.Lock()
	defer g.w.mu.Unlock()
	g.enabled = enabled
	if !enabled {
		g.held = false
		g.pendingGrab = false
		g.pendingDrop = false
	}
	return nil
}

func (g *grabbable) ContentParent() dock.Spatial { return &g.parent }

func (g *grabbable) Destroy() error {
	g.w.mu.Lock()
	defer g.w.mu.Unlock()
	g.destroyed = true
	return nil
}

// acceptor is an axis-aligned box that captures panels.
type acceptor struct {
	w       *World
	id      string
	label   string
	center  dock.Vec3
	half    dock.Vec3
	failing bool
	removed bool
}

// Distance is the signed distance from point, offset from the origin of
// from, to the box surface. It is negative inside the box.
func (a *acceptor) Distance(ctx context.Context, from dock.Spatial, point dock.Vec3) (float32, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	a.w.mu.Lock()
	defer a.w.mu.Unlock()
	if a.removed {
		return 0, fmt.Errorf("%w: %q", ErrUnknownAcceptor, a.id)
	}
	if a.failing {
		return 0, ErrQueryFailed
	}
	origin, err := worldOf(from)
	if err != nil {
		return 0, err
	}
	return boxDistance(add(origin, point), a.center, a.half), nil
}

// Capture docks the panel onto the acceptor and acknowledges through the
// world's poster.
func (a *acceptor) Capture(ctx context.Context, item dock.PanelItem) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	a.w.mu.Lock()
	if a.removed || a.failing {
		a.w.mu.Unlock()
		return fmt.Errorf("sim: acceptor %q refused capture", a.id)
	}
	p, ok := a.w.panels[item.ID()]
	if !ok || p.closed {
		a.w.mu.Unlock()
		return fmt.Errorf("%w: %q", ErrUnknownPanel, item.ID())
	}
	p.dockedTo = a.id
	if p.parent != nil {
		p.local = sub(a.center, p.parent.pos)
	} else {
		p.local = a.center
	}
	a.w.mu.Unlock()

	a.w.emit(dock.ItemCaptured{ID: item.ID(), AcceptorID: a.id})
	return nil
}

func boxDistance(p, center, half dock.Vec3) float32 {
	var sq float32
	inside := float32(-math.MaxFloat32)
	for i := 0; i < 3; i++ {
		q := abs(p[i]-center[i]) - half[i]
		if q > 0 {
			sq += q * q
		}
		if q > inside {
			inside = q
		}
	}
	outside := float32(math.Sqrt(float64(sq)))
	if inside > 0 {
		inside = 0
	}
	return outside + inside
}

func add(a, b dock.Vec3) dock.Vec3 { return dock.Vec3{a[0] + b[0], a[1] + b[1], a[2] + b[2]} }
func sub(a, b dock.Vec3) dock.Vec3 { return dock.Vec3{a[0] - b[0], a[1] - b[1], a[2] - b[2]} }

func scale(a dock.Vec3, s float32) dock.Vec3 {
	return dock.Vec3{a[0] * s, a[1] * s, a[2] * s}
}

func length(a dock.Vec3) float32 {
	return float32(math.Sqrt(float64(a[0]*a[0] + a[1]*a[1] + a[2]*a[2])))
}

func abs(v float32) float32 {
	if v < 0 {
		return -v
	}
	return v
}
