package main

import (
	"context"
	"fmt"
	"log"
	"math"

	"github.com/gdamore/tcell/v2"

	"github.com/StardustXR/orbit/dock"
	"github.com/StardustXR/orbit/internal/sim"
)

const helpLine = "←↑↓→ drag  space throw  g grab/drop  r release  n new  tab next  +/- resize  a/x acceptor  f fault  c close  q quit"

type app struct {
	screen tcell.Screen
	world  *sim.World
	ui     *dock.ItemUI
	driver *dock.Driver
	params sim.Params

	selected string
	lastDir  dock.Vec3
	redraw   chan struct{}
	message  string
}

func newApp(world *sim.World, ui *dock.ItemUI, driver *dock.Driver, params sim.Params) (*app, error) {
	screen, err := tcell.NewScreen()
	if err != nil {
		return nil, fmt.Errorf("create screen: %w", err)
	}
	if err := screen.Init(); err != nil {
		return nil, fmt.Errorf("init screen: %w", err)
	}
	a := &app{
		screen: screen,
		world:  world,
		ui:     ui,
		driver: driver,
		params: params,
		redraw: make(chan struct{}, 1),
	}
	driver.OnFrame(func(dock.FrameInfo) {
		select {
		case a.redraw <- struct{}{}:
		default:
		}
	})
	return a, nil
}

func (a *app) run(ctx context.Context, cancel context.CancelFunc) error {
	defer a.screen.Fini()

	events := make(chan tcell.Event, 16)
	go func() {
		for {
			ev := a.screen.PollEvent()
			if ev == nil {
				return
			}
			events <- ev
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-a.redraw:
			a.draw()
		case ev := <-events:
			switch ev := ev.(type) {
			case *tcell.EventResize:
				a.screen.Sync()
				a.draw()
			case *tcell.EventKey:
				if a.handleKey(ev) {
					cancel()
					return nil
				}
			}
		}
	}
}

// handleKey applies one key press and reports whether the user asked to quit.
func (a *app) handleKey(ev *tcell.EventKey) bool {
	step := a.params.MoveStep
	switch ev.Key() {
	case tcell.KeyEscape, tcell.KeyCtrlC:
		return true
	case tcell.KeyLeft:
		a.drag(dock.Vec3{-step, 0, 0})
	case tcell.KeyRight:
		a.drag(dock.Vec3{step, 0, 0})
	case tcell.KeyUp:
		a.drag(dock.Vec3{0, step, 0})
	case tcell.KeyDown:
		a.drag(dock.Vec3{0, -step, 0})
	case tcell.KeyTab:
		a.selectNext()
	case tcell.KeyRune:
		switch ev.Rune() {
		case 'q':
			return true
		case ' ':
			a.throw()
		case 'g':
			a.toggleGrab()
		case 'r':
			a.report(a.world.Release(a.current()))
		case 'n':
			id := shortID()
			a.report(a.world.SpawnPanel(id, dock.Size{Width: 1280, Height: 720}, dock.Vec3{0, 0.15, 0}))
			a.selected = id
		case '+', '=':
			a.resize(1.25)
		case '-':
			a.resize(0.8)
		case 'a':
			a.addAcceptor()
		case 'x':
			a.removeAcceptor()
		case 'f':
			a.toggleFault()
		case 'c':
			a.report(a.world.ClosePanel(a.current()))
			a.selected = ""
		}
	}
	a.draw()
	return false
}

func (a *app) report(err error) {
	if err != nil {
		a.message = err.Error()
		log.Printf("orbit-sim: %v", err)
		return
	}
	a.message = ""
}

// current returns the selected panel, falling back to the first one.
func (a *app) current() string {
	panels := a.world.Panels()
	for _, p := range panels {
		if p.ID == a.selected {
			return p.ID
		}
	}
	if len(panels) == 0 {
		return ""
	}
	a.selected = panels[0].ID
	return a.selected
}

func (a *app) selectNext() {
	panels := a.world.Panels()
	if len(panels) == 0 {
		return
	}
	cur := a.current()
	for i, p := range panels {
		if p.ID == cur {
			a.selected = panels[(i+1)%len(panels)].ID
			return
		}
	}
}

func (a *app) drag(delta dock.Vec3) {
	id := a.current()
	v, ok := a.world.Panel(id)
	if !ok {
		return
	}
	if !v.Held {
		if err := a.world.Grab(id); err != nil {
			a.report(err)
			return
		}
	}
	a.lastDir = delta
	a.report(a.world.Move(id, delta))
}

func (a *app) toggleGrab() {
	id := a.current()
	v, ok := a.world.Panel(id)
	if !ok {
		return
	}
	if v.Held {
		a.report(a.world.Drop(id, dock.Vec3{}))
		return
	}
	a.report(a.world.Grab(id))
}

func (a *app) throw() {
	id := a.current()
	if id == "" {
		return
	}
	n := float32(math.Sqrt(float64(a.lastDir[0]*a.lastDir[0] + a.lastDir[1]*a.lastDir[1])))
	if n == 0 {
		a.report(a.world.Drop(id, dock.Vec3{}))
		return
	}
	s := a.params.ThrowSpeed / n
	a.report(a.world.Drop(id, dock.Vec3{a.lastDir[0] * s, a.lastDir[1] * s, 0}))
}

func (a *app) resize(factor float32) {
	v, ok := a.world.Panel(a.current())
	if !ok {
		return
	}
	h := uint32(float32(v.Size.Height) * factor)
	if h == 0 {
		h = 1
	}
	a.report(a.world.Resize(v.ID, dock.Size{Width: v.Size.Width, Height: h}))
}

func (a *app) addAcceptor() {
	v, ok := a.world.Panel(a.current())
	center := dock.Vec3{0, -0.2, 0}
	if ok {
		center = dock.Vec3{v.Position[0], v.Position[1] - 0.15, 0}
	}
	label := fmt.Sprintf("Dock %d", len(a.world.Acceptors())+1)
	a.report(a.world.SpawnAcceptor(shortID(), label, center, dock.Vec3{0.05, 0.03, 0.01}))
}

func (a *app) removeAcceptor() {
	acc := a.world.Acceptors()
	if len(acc) == 0 {
		return
	}
	a.report(a.world.RemoveAcceptor(acc[len(acc)-1].ID))
}

// toggleFault flips query failure injection on the acceptor nearest the
// selected panel.
func (a *app) toggleFault() {
	v, ok := a.world.Panel(a.current())
	acc := a.world.Acceptors()
	if !ok || len(acc) == 0 {
		return
	}
	best, bestD := acc[0], float32(math.MaxFloat32)
	for _, c := range acc {
		dx, dy := c.Center[0]-v.Position[0], c.Center[1]-v.Position[1]
		if d := dx*dx + dy*dy; d < bestD {
			best, bestD = c, d
		}
	}
	a.report(a.world.SetAcceptorFault(best.ID, !best.Failing))
}
