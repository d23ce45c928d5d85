package main

import (
	"fmt"

	"github.com/gdamore/tcell/v2"
	"github.com/mattn/go-runewidth"

	"github.com/StardustXR/orbit/dock"
)

var (
	styleBase     = tcell.StyleDefault
	styleAcceptor = tcell.StyleDefault.Foreground(tcell.ColorTeal)
	styleFaulty   = tcell.StyleDefault.Foreground(tcell.ColorRed)
	styleStatus   = tcell.StyleDefault.Reverse(true)
)

func (a *app) draw() {
	s := a.screen
	s.Clear()
	w, h := s.Size()
	if w < 10 || h < 4 {
		s.Show()
		return
	}

	for _, acc := range a.world.Acceptors() {
		x0, y0 := a.toScreen(w, h, acc.Center[0]-acc.HalfExtents[0], acc.Center[1]+acc.HalfExtents[1])
		x1, y1 := a.toScreen(w, h, acc.Center[0]+acc.HalfExtents[0], acc.Center[1]-acc.HalfExtents[1])
		style := styleAcceptor
		if acc.Failing {
			style = styleFaulty
		}
		drawBox(s, x0, y0, x1, y1, style, '░')
		drawText(s, x0, y1+1, x1-x0+1, style, acc.Label)
	}

	for _, p := range a.world.Panels() {
		hw, hh := p.Scale[0]/2, p.Scale[1]/2
		x0, y0 := a.toScreen(w, h, p.Position[0]-hw, p.Position[1]+hh)
		x1, y1 := a.toScreen(w, h, p.Position[0]+hw, p.Position[1]-hh)
		edge := styleBase.Foreground(toTcell(p.Color))
		if !p.Enabled && p.DockedTo == "" {
			edge = edge.Dim(true)
		}
		drawBox(s, x0, y0, x1, y1, edge, 0)
		title := p.ID
		if p.ID == a.selected {
			title = "*" + title
		}
		drawText(s, x0+1, y0, x1-x0-1, edge.Bold(true), title)
	}

	a.drawStatus(w, h)
	s.Show()
}

// toScreen maps world metres to cells. Cells are about twice as tall as
// they are wide.
func (a *app) toScreen(w, h int, x, y float32) (int, int) {
	ppm := a.params.PixelsPerMetre
	cx := w/2 + int(x*ppm)
	cy := (h-2)/2 - int(y*ppm/2)
	return cx, cy
}

func (a *app) drawStatus(w, h int) {
	line := fmt.Sprintf(" panels %d  acceptors %d", a.ui.Len(), a.ui.Acceptors().Snapshot().Len())
	if id := a.current(); id != "" {
		if c := a.ui.Controller(id); c != nil {
			v, _ := a.world.Panel(id)
			line += fmt.Sprintf("  │ %s %s %s edge %s", id, c.State(), c.Size(), v.Color.Hex())
			if by, ok := c.CapturedBy(); ok {
				line += " on " + by
			}
		}
	}
	if a.message != "" {
		line += "  │ " + a.message
	}
	fillRow(a.screen, 0, h-2, w, styleStatus)
	drawText(a.screen, 0, h-2, w, styleStatus, line)
	drawText(a.screen, 0, h-1, w, styleBase.Dim(true), helpLine)
}

func toTcell(c dock.Color) tcell.Color {
	return tcell.NewRGBColor(int32(c[0]*255+0.5), int32(c[1]*255+0.5), int32(c[2]*255+0.5))
}

func fillRow(s tcell.Screen, x, y, w int, style tcell.Style) {
	for i := x; i < x+w; i++ {
		s.SetContent(i, y, ' ', nil, style)
	}
}

// drawText writes text clipped to width cells.
func drawText(s tcell.Screen, x, y, width int, style tcell.Style, text string) {
	if width <= 0 {
		return
	}
	text = runewidth.Truncate(text, width, "…")
	for _, r := range text {
		s.SetContent(x, y, r, nil, style)
		x += runewidth.RuneWidth(r)
	}
}

// drawBox outlines a rectangle and fills it with fill when non-zero.
func drawBox(s tcell.Screen, x0, y0, x1, y1 int, style tcell.Style, fill rune) {
	if x1 < x0 {
		x0, x1 = x1, x0
	}
	if y1 < y0 {
		y0, y1 = y1, y0
	}
	if x1 == x0 {
		x1++
	}
	if y1 == y0 {
		y1++
	}
	for x := x0 + 1; x < x1; x++ {
		s.SetContent(x, y0, '─', nil, style)
		s.SetContent(x, y1, '─', nil, style)
	}
	for y := y0 + 1; y < y1; y++ {
		s.SetContent(x0, y, '│', nil, style)
		s.SetContent(x1, y, '│', nil, style)
		if fill != 0 {
			for x := x0 + 1; x < x1; x++ {
				s.SetContent(x, y, fill, nil, style)
			}
		}
	}
	s.SetContent(x0, y0, '┌', nil, style)
	s.SetContent(x1, y0, '┐', nil, style)
	s.SetContent(x0, y1, '└', nil, style)
	s.SetContent(x1, y1, '┘', nil, style)
}
