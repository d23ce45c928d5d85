package dock

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"testing"
	"time"
)

func TestItemUILifecycle(t *testing.T) {
	factory := newFakeFactory()
	ui := NewItemUI(factory)
	l := &recordingListener{}
	ui.Events().Subscribe(l)

	item := newFakeItem("p1")
	ui.Handle(ItemCreated{ID: "p1", Item: item, Init: Size{Width: 200, Height: 100}})
	if ui.Len() != 1 {
		t.Fatalf("expected one panel, got %d", ui.Len())
	}
	c := ui.Controller("p1")
	if c == nil || c.AspectRatio() != 0.5 {
		t.Fatalf("controller missing or initial size not applied")
	}

	ui.Handle(ToplevelSizeChanged{ID: "p1", Size: Size{Width: 100, Height: 100}})
	if c.AspectRatio() != 1 {
		t.Fatalf("resize not routed, aspect %v", c.AspectRatio())
	}

	ui.Handle(ItemCaptured{ID: "p1", AcceptorID: "dock"})
	if c.State() != StateCaptured {
		t.Fatalf("capture not routed")
	}
	ui.Handle(ItemReleased{ID: "p1", AcceptorID: "dock"})
	if c.State() != StateFree {
		t.Fatalf("release not routed")
	}

	ui.Handle(ItemDestroyed{ID: "p1"})
	if ui.Len() != 0 || ui.Controller("p1") != nil {
		t.Fatalf("destroyed panel still registered")
	}
	if !factory.models["p1"].destroyed {
		t.Fatalf("resources not torn down")
	}

	want := []EventType{EventPanelCreated, EventPanelCaptured, EventPanelReleased, EventPanelDestroyed}
	got := l.types()
	if len(got) != len(want) {
		t.Fatalf("events %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("events %v, want %v", got, want)
		}
	}
}

func TestItemUICreationFailureNotRegistered(t *testing.T) {
	factory := newFakeFactory()
	factory.err = errors.New("model asset missing")
	ui := NewItemUI(factory)
	ui.Handle(ItemCreated{ID: "p1", Item: newFakeItem("p1"), Init: Size{Width: 1, Height: 1}})
	if ui.Len() != 0 {
		t.Fatalf("failed panel must not be registered")
	}

	factory.err = nil
	bad := newFakeItem("p2")
	bad.setupErr = errors.New("no toplevel")
	ui.Handle(ItemCreated{ID: "p2", Item: bad, Init: Size{Width: 1, Height: 1}})
	if ui.Len() != 0 {
		t.Fatalf("panel with failed setup must not be registered")
	}
	if !factory.models["p2"].destroyed {
		t.Fatalf("resources of a failed setup should be released")
	}
}

func TestItemUIIgnoresUnknownIDs(t *testing.T) {
	ui := NewItemUI(newFakeFactory())
	ui.Handle(ItemCaptured{ID: "ghost", AcceptorID: "a"})
	ui.Handle(ItemReleased{ID: "ghost", AcceptorID: "a"})
	ui.Handle(ToplevelSizeChanged{ID: "ghost", Size: Size{Width: 1, Height: 1}})
	ui.Handle(ItemDestroyed{ID: "ghost"})
	ui.Handle(nil)
	if ui.Len() != 0 {
		t.Fatalf("unexpected panels")
	}
}

func TestItemUIFrameFansOutToEveryPanel(t *testing.T) {
	factory := newFakeFactory()
	ui := NewItemUI(factory)
	for _, id := range []string{"c", "a", "b"} {
		ui.Handle(ItemCreated{ID: id, Item: newFakeItem(id), Init: Size{Width: 10, Height: 10}})
	}
	acceptor := newFakeAcceptor(0.5)
	ui.Handle(AcceptorCreated{ID: "dock", Handle: acceptor})

	ui.Frame(FrameInfo{Delta: 0.016})
	ui.Wait()

	if got := acceptor.queries.Load(); got != 3 {
		t.Fatalf("expected one query per panel, got %d", got)
	}
	ids := []string{}
	for _, c := range ui.Controllers() {
		ids = append(ids, c.ID())
	}
	if strings.Join(ids, ",") != "a,b,c" {
		t.Fatalf("controllers not in id order: %v", ids)
	}

	ui.Handle(AcceptorDestroyed{ID: "dock"})
	if ui.Acceptors().Snapshot().Len() != 0 {
		t.Fatalf("acceptor not removed")
	}
}

func TestItemUIDestroyWhilePassInFlight(t *testing.T) {
	factory := newFakeFactory()
	ui := NewItemUI(factory)
	ui.Handle(ItemCreated{ID: "p", Item: newFakeItem("p"), Init: Size{Width: 10, Height: 10}})
	acceptor := newFakeAcceptor(0.01)
	acceptor.gate = make(chan struct{})
	ui.Handle(AcceptorCreated{ID: "dock", Handle: acceptor})

	c := ui.Controller("p")
	factory.grabbable["p"].drop()
	ui.Frame(FrameInfo{})
	ui.Handle(ItemDestroyed{ID: "p"})
	close(acceptor.gate)
	c.Wait()

	if ui.Len() != 0 {
		t.Fatalf("residual registry entry")
	}
	if acceptor.captures.Load() != 0 {
		t.Fatalf("destroyed panel requested capture")
	}
}

func TestItemUIRecreateReplacesController(t *testing.T) {
	factory := newFakeFactory()
	ui := NewItemUI(factory)
	ui.Handle(ItemCreated{ID: "p", Item: newFakeItem("p"), Init: Size{Width: 10, Height: 10}})
	first := factory.models["p"]
	ui.Handle(ItemCreated{ID: "p", Item: newFakeItem("p"), Init: Size{Width: 10, Height: 20}})
	if ui.Len() != 1 {
		t.Fatalf("expected one panel after recreate, got %d", ui.Len())
	}
	if !first.destroyed {
		t.Fatalf("previous controller resources should be torn down")
	}
	if ui.Controller("p").AspectRatio() != 2 {
		t.Fatalf("new controller not installed")
	}
}

func TestDriverAppliesNotificationsBeforeFrame(t *testing.T) {
	factory := newFakeFactory()
	ui := NewItemUI(factory)
	d := NewDriver(ui, time.Millisecond, 8)

	frames := 0
	d.OnFrame(func(FrameInfo) { frames++ })
	d.Post(ItemCreated{ID: "p", Item: newFakeItem("p"), Init: Size{Width: 10, Height: 10}})
	d.Post(AcceptorCreated{ID: "dock", Handle: newFakeAcceptor(0.3)})
	d.Tick(FrameInfo{Delta: 0.016})
	ui.Wait()

	if ui.Len() != 1 || frames != 1 {
		t.Fatalf("len=%d frames=%d", ui.Len(), frames)
	}
	if factory.grabbable["p"].updates != 1 {
		t.Fatalf("panel created in the same turn should be ticked")
	}
}

func TestDriverRunStopsOnCancel(t *testing.T) {
	ui := NewItemUI(newFakeFactory())
	d := NewDriver(ui, time.Millisecond, 8)
	ticked := make(chan struct{}, 1)
	d.OnFrame(func(FrameInfo) {
		select {
		case ticked <- struct{}{}:
		default:
		}
	})
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- d.Run(ctx) }()

	<-ticked
	d.Post(ItemCreated{ID: "p", Item: newFakeItem("p"), Init: Size{Width: 10, Height: 10}})
	cancel()
	if err := <-done; !errors.Is(err, context.Canceled) {
		t.Fatalf("Run returned %v", err)
	}
	if ui.Len() != 1 {
		t.Fatalf("queued notification should be drained on shutdown")
	}
}

func TestDriverPostGrowsPastBuffer(t *testing.T) {
	ui := NewItemUI(newFakeFactory())
	d := NewDriver(ui, time.Millisecond, 2)

	done := make(chan struct{})
	go func() {
		for i := 0; i < 10; i++ {
			id := fmt.Sprintf("p%d", i)
			d.Post(ItemCreated{ID: id, Item: newFakeItem(id), Init: Size{Width: 10, Height: 10}})
		}
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("Post blocked with no consumer running")
	}
	if d.Pending() != 10 {
		t.Fatalf("pending %d, want 10", d.Pending())
	}
	d.Drain()
	if ui.Len() != 10 || d.Pending() != 0 {
		t.Fatalf("len=%d pending=%d after drain", ui.Len(), d.Pending())
	}

	d.Post(ItemDestroyed{ID: "p0"})
	d.Post(ItemCreated{ID: "p0", Item: newFakeItem("p0"), Init: Size{Width: 10, Height: 30}})
	d.Drain()
	if c := ui.Controller("p0"); c == nil || c.AspectRatio() != 3 {
		t.Fatalf("notifications applied out of order")
	}
}

func TestDriverStepDerivesTiming(t *testing.T) {
	d := NewDriver(NewItemUI(newFakeFactory()), 0, 0)
	start := time.Unix(100, 0)
	if info := d.Step(start); info.Delta != 0 || info.Elapsed != 0 {
		t.Fatalf("first step should have zero timing, got %+v", info)
	}
	info := d.Step(start.Add(20 * time.Millisecond))
	if info.Delta != 0.02 || info.Elapsed != 0.02 {
		t.Fatalf("unexpected timing %+v", info)
	}
}

func TestPassLoggerSamplesEveryN(t *testing.T) {
	var buf bytes.Buffer
	p := NewPassLogger(log.New(&buf, "", 0), 2)
	for i := 0; i < 4; i++ {
		p.ObservePass("p", PassResult{Queried: 1})
	}
	if p.Count() != 4 {
		t.Fatalf("count %d", p.Count())
	}
	if lines := strings.Count(buf.String(), "\n"); lines != 2 {
		t.Fatalf("expected 2 log lines, got %d: %q", lines, buf.String())
	}
	if !strings.Contains(buf.String(), "winner=none") {
		t.Fatalf("missing winner field: %q", buf.String())
	}
}
