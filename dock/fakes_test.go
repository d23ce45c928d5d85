package dock

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
)

type transformCall struct {
	relativeTo Spatial
	t          Transform
}

type fakeSpatial struct {
	mu    sync.Mutex
	calls []transformCall
}

func (s *fakeSpatial) SetTransform(relativeTo Spatial, t Transform) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, transformCall{relativeTo: relativeTo, t: t})
	return nil
}

func (s *fakeSpatial) transforms() []transformCall {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]transformCall(nil), s.calls...)
}

type fakeItem struct {
	fakeSpatial
	id string

	autoSized bool
	material  Model
	parent    Spatial
	setupErr  error
}

func newFakeItem(id string) *fakeItem { return &fakeItem{id: id} }

func (i *fakeItem) ID() string { return i.id }

func (i *fakeItem) AutoSizeToplevel() error {
	i.autoSized = true
	return i.setupErr
}

func (i *fakeItem) ApplySurfaceMaterial(m Model) error {
	i.material = m
	return nil
}

func (i *fakeItem) SetSpatialParentInPlace(parent Spatial) error {
	i.parent = parent
	return nil
}

type fakeModel struct {
	mu        sync.Mutex
	scales    []Vec3
	enabled   bool
	colors    []Color
	destroyed bool
}

func newFakeModel() *fakeModel { return &fakeModel{enabled: true} }

func (m *fakeModel) SetScale(v Vec3) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.scales = append(m.scales, v)
	return nil
}

func (m *fakeModel) SetEnabled(enabled bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.enabled = enabled
	return nil
}

func (m *fakeModel) SetEdgeColor(c Color) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.colors = append(m.colors, c)
	return nil
}

func (m *fakeModel) Destroy() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.destroyed = true
	return nil
}

func (m *fakeModel) lastColor() (Color, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.colors) == 0 {
		return Color{}, false
	}
	return m.colors[len(m.colors)-1], true
}

func (m *fakeModel) colorCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.colors)
}

func (m *fakeModel) lastScale() Vec3 {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.scales) == 0 {
		return Vec3{}
	}
	return m.scales[len(m.scales)-1]
}

func (m *fakeModel) isEnabled() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.enabled
}

type fakeField struct {
	mu    sync.Mutex
	sizes []Vec3
}

func (f *fakeField) SetSize(v Vec3) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sizes = append(f.sizes, v)
	return nil
}

func (f *fakeField) lastSize() Vec3 {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.sizes) == 0 {
		return Vec3{}
	}
	return f.sizes[len(f.sizes)-1]
}

// fakeGrabbable reports whatever the test scripted for the next frame.
type fakeGrabbable struct {
	started, active, stopped bool
	speed                    float32
	moving                   bool

	updates          int
	enabled          bool
	linearCancelled  int
	angularCancelled int
	updateErr        error
	parent           fakeSpatial
}

func newFakeGrabbable() *fakeGrabbable { return &fakeGrabbable{enabled: true} }

func (g *fakeGrabbable) Update(FrameInfo) error {
	g.updates++
	return g.updateErr
}
func (g *fakeGrabbable) GrabStarted() bool { return g.started }
func (g *fakeGrabbable) GrabActive() bool  { return g.active }
func (g *fakeGrabbable) GrabStopped() bool { return g.stopped }
func (g *fakeGrabbable) LinearSpeed() (float32, bool) {
	return g.speed, g.moving
}
func (g *fakeGrabbable) CancelLinearVelocity()  { g.linearCancelled++; g.moving = false }
func (g *fakeGrabbable) CancelAngularVelocity() { g.angularCancelled++ }
func (g *fakeGrabbable) SetEnabled(enabled bool) error {
	g.enabled = enabled
	return nil
}
func (g *fakeGrabbable) ContentParent() Spatial { return &g.parent }

// drop puts the grabbable in the frame where a grab has just ended.
func (g *fakeGrabbable) drop() {
	g.started, g.active, g.stopped = false, false, true
}

// hold puts the grabbable in an active grab.
func (g *fakeGrabbable) hold() {
	g.started, g.active, g.stopped = false, true, false
}

// rest leaves the grabbable idle with no momentum.
func (g *fakeGrabbable) rest() {
	g.started, g.active, g.stopped, g.moving = false, false, false, false
}

var errQueryFailed = errors.New("query failed")

type fakeAcceptor struct {
	distance float32
	err      error
	gate     chan struct{}

	queries    atomic.Int32
	captures   atomic.Int32
	captureErr error
	captured   chan PanelItem
}

func newFakeAcceptor(distance float32) *fakeAcceptor {
	return &fakeAcceptor{distance: distance, captured: make(chan PanelItem, 16)}
}

func (a *fakeAcceptor) Distance(ctx context.Context, from Spatial, point Vec3) (float32, error) {
	a.queries.Add(1)
	if a.gate != nil {
		<-a.gate
	}
	if a.err != nil {
		return 0, a.err
	}
	return a.distance, nil
}

func (a *fakeAcceptor) Capture(ctx context.Context, item PanelItem) error {
	a.captures.Add(1)
	if a.captureErr != nil {
		return a.captureErr
	}
	a.captured <- item
	return nil
}

type fakeFactory struct {
	err       error
	models    map[string]*fakeModel
	grabbable map[string]*fakeGrabbable
	fields    map[string]*fakeField
}

func newFakeFactory() *fakeFactory {
	return &fakeFactory{
		models:    make(map[string]*fakeModel),
		grabbable: make(map[string]*fakeGrabbable),
		fields:    make(map[string]*fakeField),
	}
}

func (f *fakeFactory) NewPanelResources(item PanelItem, _ Settings) (Resources, error) {
	if f.err != nil {
		return Resources{}, f.err
	}
	m, g, fl := newFakeModel(), newFakeGrabbable(), &fakeField{}
	f.models[item.ID()] = m
	f.grabbable[item.ID()] = g
	f.fields[item.ID()] = fl
	return Resources{Model: m, Field: fl, Grabbable: g}, nil
}

type recordingListener struct {
	mu     sync.Mutex
	events []Event
}

func (l *recordingListener) OnEvent(e Event) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, e)
}

func (l *recordingListener) types() []EventType {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]EventType, len(l.events))
	for i, e := range l.events {
		out[i] = e.Type
	}
	return out
}

type panelFixture struct {
	item      *fakeItem
	model     *fakeModel
	field     *fakeField
	grabbable *fakeGrabbable
	acceptors *AcceptorRegistry
	events    *recordingListener
	ctrl      *Controller
}

func newPanelFixture(t interface{ Fatalf(string, ...interface{}) }) *panelFixture {
	f := &panelFixture{
		item:      newFakeItem("panel-1"),
		model:     newFakeModel(),
		field:     &fakeField{},
		grabbable: newFakeGrabbable(),
		events:    &recordingListener{},
	}
	d := NewEventDispatcher()
	d.Subscribe(f.events)
	f.acceptors = NewAcceptorRegistry(d)
	ctrl, err := NewController(f.item, Size{Width: 1000, Height: 500}, Resources{
		Model:     f.model,
		Field:     f.field,
		Grabbable: f.grabbable,
	}, ControllerOptions{
		Settings:  DefaultSettings(),
		Acceptors: f.acceptors,
		Events:    d,
	})
	if err != nil {
		t.Fatalf("NewController: %v", err)
	}
	f.ctrl = ctrl
	return f
}

// frame runs one tick and waits for the dispatched pass.
func (f *panelFixture) frame() {
	f.ctrl.Frame(FrameInfo{Delta: 1.0 / 60})
	f.ctrl.Wait()
}
