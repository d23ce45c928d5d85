// Copyright © 2025 Orbit contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
//
// File: dock/controller_test.go
// Summary: Exercises the panel state machine against scripted grabbables and acceptors.

package dock

import (
	"context"
	"errors"
	"runtime"
	"sync"
	"testing"
)

func TestCaptureRequestedOnNearestWithinThreshold(t *testing.T) {
	f := newPanelFixture(t)
	a, b := newFakeAcceptor(0.03), newFakeAcceptor(0.10)
	f.acceptors.Add("A", a)
	f.acceptors.Add("B", b)

	f.grabbable.drop()
	f.frame()

	if got := a.captures.Load(); got != 1 {
		t.Fatalf("expected one capture request on A, got %d", got)
	}
	if got := b.captures.Load(); got != 0 {
		t.Fatalf("B must not be asked to capture, got %d", got)
	}
	if item := <-a.captured; item != PanelItem(f.item) {
		t.Fatalf("capture requested for the wrong item")
	}
	if f.ctrl.State() == StateCaptured {
		t.Fatalf("panel must not be captured before the acknowledgment")
	}
	var requested bool
	for _, e := range f.events.events {
		if e.Type == EventCaptureRequested {
			p := e.Payload.(TransitionPayload)
			requested = p.AcceptorID == "A" && p.PanelID == "panel-1"
		}
	}
	if !requested {
		t.Fatalf("expected capture_requested event for A, got %v", f.events.types())
	}
}

func TestNoCaptureBeyondThreshold(t *testing.T) {
	f := newPanelFixture(t)
	a := newFakeAcceptor(0.20)
	f.acceptors.Add("A", a)

	f.grabbable.drop()
	f.frame()

	if got := a.captures.Load(); got != 0 {
		t.Fatalf("expected no capture beyond threshold, got %d", got)
	}
	got, ok := f.model.lastColor()
	if !ok {
		t.Fatalf("expected an edge colour")
	}
	if want := NewFeedbackMapper(DefaultSettings()).Map(0.20); got != want {
		t.Fatalf("edge colour %v, want %v", got, want)
	}
}

func TestZeroAcceptorsShowsNeutral(t *testing.T) {
	f := newPanelFixture(t)
	f.grabbable.drop()
	f.frame()

	got, ok := f.model.lastColor()
	if !ok || got != White {
		t.Fatalf("expected white edge, got %v (set=%v)", got, ok)
	}
}

func TestAllQueriesFailingShowsNeutral(t *testing.T) {
	f := newPanelFixture(t)
	a := newFakeAcceptor(0.01)
	a.err = errQueryFailed
	f.acceptors.Add("A", a)

	f.grabbable.drop()
	f.frame()

	if got, _ := f.model.lastColor(); got != White {
		t.Fatalf("expected white edge, got %v", got)
	}
	if a.captures.Load() != 0 {
		t.Fatalf("failed query must not trigger capture")
	}
}

func TestAcceptFlag(t *testing.T) {
	cases := []struct {
		name    string
		script  func(g *fakeGrabbable)
		state   PanelState
		capture bool
	}{
		{"held", func(g *fakeGrabbable) { g.hold() }, StateGrabbed, false},
		{"held and moving", func(g *fakeGrabbable) { g.hold(); g.moving = true }, StateGrabbed, false},
		{"resting", func(g *fakeGrabbable) { g.rest() }, StateFree, false},
		{"thrown", func(g *fakeGrabbable) { g.rest(); g.moving, g.speed = true, 0.3 }, StateFree, true},
		{"dropped", func(g *fakeGrabbable) { g.drop() }, StateFree, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := newPanelFixture(t)
			a := newFakeAcceptor(0.01)
			f.acceptors.Add("A", a)
			tc.script(f.grabbable)
			f.frame()

			if got := f.ctrl.State(); got != tc.state {
				t.Fatalf("state %s, want %s", got, tc.state)
			}
			if got := a.captures.Load() == 1; got != tc.capture {
				t.Fatalf("capture requested=%v, want %v", got, tc.capture)
			}
			if f.model.colorCount() != 1 {
				t.Fatalf("edge colour should update every pass")
			}
		})
	}
}

func TestCapturedPanelStopsSampling(t *testing.T) {
	f := newPanelFixture(t)
	a := newFakeAcceptor(0.01)
	f.acceptors.Add("A", a)

	f.ctrl.Captured("A")
	if f.model.isEnabled() || f.grabbable.enabled || f.ctrl.Enabled() {
		t.Fatalf("captured panel must be disabled")
	}
	if f.grabbable.linearCancelled != 1 || f.grabbable.angularCancelled != 1 {
		t.Fatalf("expected velocities cancelled once, got %d/%d",
			f.grabbable.linearCancelled, f.grabbable.angularCancelled)
	}
	if id, ok := f.ctrl.CapturedBy(); !ok || id != "A" {
		t.Fatalf("CapturedBy = %q, %v", id, ok)
	}

	f.grabbable.hold()
	for i := 0; i < 3; i++ {
		f.frame()
	}
	if got := a.queries.Load(); got != 0 {
		t.Fatalf("captured panel issued %d distance queries", got)
	}
	if f.grabbable.updates != 0 {
		t.Fatalf("captured panel must not follow grab input")
	}
}

func TestReleaseResetsTransforms(t *testing.T) {
	f := newPanelFixture(t)
	f.ctrl.Captured("A")
	f.ctrl.Released("A")

	if f.ctrl.State() != StateFree || !f.model.isEnabled() || !f.grabbable.enabled {
		t.Fatalf("released panel must be free and enabled")
	}
	parentCalls := f.grabbable.parent.transforms()
	if len(parentCalls) != 1 {
		t.Fatalf("expected one grabbable reset, got %d", len(parentCalls))
	}
	if parentCalls[0].relativeTo != Spatial(f.item) || parentCalls[0].t != Identity() {
		t.Fatalf("grabbable must be reset to identity relative to the panel, got %+v", parentCalls[0])
	}
	itemCalls := f.item.transforms()
	if len(itemCalls) != 1 || itemCalls[0].relativeTo != nil || itemCalls[0].t != Identity() {
		t.Fatalf("panel must be reset to identity relative to its parent, got %+v", itemCalls)
	}

	a := newFakeAcceptor(0.2)
	f.acceptors.Add("A", a)
	f.grabbable.hold()
	f.frame()
	if a.queries.Load() != 1 {
		t.Fatalf("released panel should sample again")
	}
}

func TestReleaseWithoutCaptureIgnored(t *testing.T) {
	f := newPanelFixture(t)
	f.ctrl.Released("A")
	if len(f.item.transforms()) != 0 || len(f.grabbable.parent.transforms()) != 0 {
		t.Fatalf("release of a free panel must not move it")
	}
}

func TestResizeIsIdempotent(t *testing.T) {
	f := newPanelFixture(t)
	if got, want := f.model.lastScale(), (Vec3{0.1, 0.05, 0.01}); got != want {
		t.Fatalf("initial scale %v, want %v", got, want)
	}

	f.ctrl.Resize(Size{Width: 800, Height: 600})
	once, onceField := f.model.lastScale(), f.field.lastSize()
	f.ctrl.Resize(Size{Width: 800, Height: 600})
	if f.model.lastScale() != once || f.field.lastSize() != onceField {
		t.Fatalf("resize not idempotent")
	}
	if want := (Vec3{0.1, 0.1 * 0.75, 0.01}); once != want || onceField != want {
		t.Fatalf("scale %v field %v, want %v", once, onceField, want)
	}
	if f.ctrl.AspectRatio() != 0.75 || f.ctrl.Size() != (Size{800, 600}) {
		t.Fatalf("unexpected size bookkeeping %v %v", f.ctrl.Size(), f.ctrl.AspectRatio())
	}
}

func TestResizeIgnoresZeroWidth(t *testing.T) {
	f := newPanelFixture(t)
	before := f.model.lastScale()
	f.ctrl.Resize(Size{Width: 0, Height: 600})
	if f.model.lastScale() != before {
		t.Fatalf("zero width must not rescale")
	}
}

func TestResizeWhileCaptured(t *testing.T) {
	f := newPanelFixture(t)
	f.ctrl.Captured("A")
	f.ctrl.Resize(Size{Width: 100, Height: 200})
	if got := f.field.lastSize(); got != (Vec3{0.1, 0.2, 0.01}) {
		t.Fatalf("resize while captured gave %v", got)
	}
}

func TestDestroyDuringPassIsNoop(t *testing.T) {
	f := newPanelFixture(t)
	a := newFakeAcceptor(0.01)
	a.gate = make(chan struct{})
	f.acceptors.Add("A", a)

	f.grabbable.drop()
	f.ctrl.Frame(FrameInfo{})
	f.ctrl.Destroy()
	close(a.gate)
	f.ctrl.Wait()

	if a.captures.Load() != 0 {
		t.Fatalf("destroyed panel requested capture")
	}
	if f.model.colorCount() != 0 {
		t.Fatalf("destroyed panel changed colour")
	}
	if !f.model.destroyed {
		t.Fatalf("model not torn down")
	}
	f.ctrl.Frame(FrameInfo{})
	f.ctrl.Captured("A")
	if f.ctrl.State() == StateCaptured {
		t.Fatalf("destroyed panel accepted a capture")
	}
}

func TestStaleCaptureAfterAckIgnored(t *testing.T) {
	f := newPanelFixture(t)
	a := newFakeAcceptor(0.01)
	a.gate = make(chan struct{})
	f.acceptors.Add("A", a)

	f.grabbable.drop()
	f.ctrl.Frame(FrameInfo{})
	f.ctrl.Captured("A")
	close(a.gate)
	f.ctrl.Wait()

	if a.captures.Load() != 0 {
		t.Fatalf("stale pass requested capture after acknowledgment")
	}
	if f.model.colorCount() != 0 {
		t.Fatalf("stale pass recoloured a captured panel")
	}
}

// sequencedAcceptor answers the nth query with distances[n] once gates[n] closes.
type sequencedAcceptor struct {
	mu        sync.Mutex
	calls     int
	distances []float32
	gates     []chan struct{}
}

func (s *sequencedAcceptor) Distance(ctx context.Context, from Spatial, point Vec3) (float32, error) {
	s.mu.Lock()
	n := s.calls
	s.calls++
	s.mu.Unlock()
	<-s.gates[n]
	return s.distances[n], nil
}

func (s *sequencedAcceptor) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func (s *sequencedAcceptor) Capture(context.Context, PanelItem) error { return nil }

func TestOlderPassCompletingLateIsDiscarded(t *testing.T) {
	f := newPanelFixture(t)
	seq := &sequencedAcceptor{
		distances: []float32{0.20, 0.10},
		gates:     []chan struct{}{make(chan struct{}), make(chan struct{})},
	}
	f.acceptors.Add("A", seq)
	f.grabbable.hold()

	f.ctrl.Frame(FrameInfo{})
	for seq.callCount() < 1 {
		runtime.Gosched()
	}
	f.ctrl.Frame(FrameInfo{})
	close(seq.gates[1])
	for f.model.colorCount() == 0 {
		runtime.Gosched()
	}
	close(seq.gates[0])
	f.ctrl.Wait()

	mapper := NewFeedbackMapper(DefaultSettings())
	if got, _ := f.model.lastColor(); got != mapper.Map(0.10) {
		t.Fatalf("late pass overwrote newer feedback: %v", got)
	}
	if f.model.colorCount() != 1 {
		t.Fatalf("expected only the newer pass to apply, got %d colours", f.model.colorCount())
	}
}

func TestCaptureFailureAllowsRetry(t *testing.T) {
	f := newPanelFixture(t)
	a := newFakeAcceptor(0.01)
	a.captureErr = errors.New("acceptor busy")
	f.acceptors.Add("A", a)

	f.grabbable.drop()
	f.frame()
	f.frame()

	if got := a.captures.Load(); got != 2 {
		t.Fatalf("expected a fresh request after failure, got %d", got)
	}
	failed := 0
	for _, typ := range f.events.types() {
		if typ == EventCaptureFailed {
			failed++
		}
	}
	if failed != 2 {
		t.Fatalf("expected two capture_failed events, got %d", failed)
	}
	if f.ctrl.State() == StateCaptured || !f.ctrl.Enabled() {
		t.Fatalf("failed capture must leave the panel interactable")
	}
}

func TestPendingCaptureSuppressesDuplicates(t *testing.T) {
	f := newPanelFixture(t)
	a := newFakeAcceptor(0.01)
	f.acceptors.Add("A", a)

	f.grabbable.drop()
	f.frame()
	f.frame()
	if got := a.captures.Load(); got != 1 {
		t.Fatalf("expected a single outstanding request, got %d", got)
	}

	f.grabbable.started, f.grabbable.active, f.grabbable.stopped = true, true, false
	f.frame()
	f.grabbable.drop()
	f.frame()
	if got := a.captures.Load(); got != 2 {
		t.Fatalf("a new grab should allow another request, got %d", got)
	}
}

func TestGrabbableUpdateErrorSkipsFrame(t *testing.T) {
	f := newPanelFixture(t)
	a := newFakeAcceptor(0.01)
	f.acceptors.Add("A", a)
	f.grabbable.updateErr = errors.New("node gone")
	f.grabbable.drop()
	f.frame()
	if a.queries.Load() != 0 {
		t.Fatalf("frame should be skipped after grabbable error")
	}
}

func TestControllerSetupWiresPanel(t *testing.T) {
	f := newPanelFixture(t)
	if !f.item.autoSized {
		t.Fatalf("toplevel should be auto-sized")
	}
	if f.item.material != Model(f.model) {
		t.Fatalf("surface material should be applied to the panel model")
	}
	if f.item.parent != f.grabbable.ContentParent() {
		t.Fatalf("panel should be parented to the grabbable")
	}
}

func TestControllerSetupFailure(t *testing.T) {
	item := newFakeItem("bad")
	item.setupErr = errors.New("no toplevel")
	_, err := NewController(item, Size{Width: 10, Height: 10}, Resources{
		Model: newFakeModel(), Field: &fakeField{}, Grabbable: newFakeGrabbable(),
	}, ControllerOptions{Settings: DefaultSettings()})
	if err == nil {
		t.Fatalf("expected setup error")
	}
	if _, err := NewController(item, Size{}, Resources{}, ControllerOptions{}); !errors.Is(err, ErrMissingResources) {
		t.Fatalf("expected ErrMissingResources, got %v", err)
	}
	if _, err := NewController(nil, Size{}, Resources{}, ControllerOptions{}); !errors.Is(err, ErrNilItem) {
		t.Fatalf("expected ErrNilItem, got %v", err)
	}
}
