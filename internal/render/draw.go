// Package render paints office scene nodes onto a tcell screen.
package render

import (
	"math"
	"strings"

	"github.com/gdamore/tcell/v2"
	"github.com/mattn/go-runewidth"

	"agent_office/internal/geom"
	"agent_office/internal/scene"
)

// Viewport maps scene pixels onto terminal cells.
type Viewport struct {
	X, Y, W, H   int
	CellW, CellH float64
	// ScrollY is the first scene row shown, in cells.
	ScrollY int
}

func (v Viewport) cell(p geom.Point) (int, int) {
	return v.X + int(math.Floor(p.X/v.CellW)), v.Y + int(math.Floor(p.Y/v.CellH)) - v.ScrollY
}

// Point converts a screen cell back to the scene point at its centre.
func (v Viewport) Point(x, y int) geom.Point {
	return geom.Point{
		X: (float64(x-v.X) + 0.5) * v.CellW,
		Y: (float64(y-v.Y+v.ScrollY) + 0.5) * v.CellH,
	}
}

func (v Viewport) inside(x, y int) bool {
	return x >= v.X && x < v.X+v.W && y >= v.Y && y < v.Y+v.H
}

// Paint draws nodes in slice order; callers pass them layer-sorted.
func Paint(screen tcell.Screen, vp Viewport, nodes []*scene.Node) {
	for _, n := range nodes {
		if !n.Visible() {
			continue
		}
		switch n.Kind {
		case scene.KindFill:
			fill(screen, vp, n)
		case scene.KindOutline:
			outline(screen, vp, n)
		case scene.KindSprite:
			if n.Texture != nil {
				sprite(screen, vp, n)
				continue
			}
			text(screen, vp, n.Pos, n.Text, n)
		default:
			text(screen, vp, n.Pos, n.Text, n)
		}
	}
}

func color(hex string) tcell.Color {
	if hex == "" {
		return tcell.ColorDefault
	}
	return tcell.GetColor(hex)
}

func fill(screen tcell.Screen, vp Viewport, n *scene.Node) {
	x0, y0 := vp.cell(geom.Point{X: n.Rect.X, Y: n.Rect.Y})
	x1, y1 := vp.cell(geom.Point{X: n.Rect.Right(), Y: n.Rect.Bottom()})
	bg := color(n.Color)
	for y := y0; y < y1; y++ {
		for x := x0; x < x1; x++ {
			if !vp.inside(x, y) {
				continue
			}
			_, _, st, _ := screen.GetContent(x, y)
			screen.SetContent(x, y, ' ', nil, st.Background(bg))
		}
	}
}

func outline(screen tcell.Screen, vp Viewport, n *scene.Node) {
	x0, y0 := vp.cell(geom.Point{X: n.Rect.X, Y: n.Rect.Y})
	x1, y1 := vp.cell(geom.Point{X: n.Rect.Right(), Y: n.Rect.Bottom()})
	x1, y1 = x1-1, y1-1
	if x1 <= x0 || y1 <= y0 {
		return
	}
	put := func(x, y int, r rune) {
		if !vp.inside(x, y) {
			return
		}
		_, _, st, _ := screen.GetContent(x, y)
		screen.SetContent(x, y, r, nil, style(st, n))
	}
	for x := x0 + 1; x < x1; x++ {
		put(x, y0, hline)
		put(x, y1, hline)
	}
	for y := y0 + 1; y < y1; y++ {
		put(x0, y, vline)
		put(x1, y, vline)
	}
	put(x0, y0, '┌')
	put(x1, y0, '┐')
	put(x0, y1, '└')
	put(x1, y1, '┘')
}

const (
	hline = '─'
	vline = '│'
)

func sprite(screen tcell.Screen, vp Viewport, n *scene.Node) {
	lines := n.Texture.Lines
	if n.Mirror {
		lines = mirrorLines(lines)
	}
	cx, cy := vp.cell(n.Pos)
	top := cy - len(lines)/2
	for i, line := range lines {
		w := runewidth.StringWidth(line)
		putString(screen, vp, cx-w/2, top+i, line, n, true)
	}
}

func text(screen tcell.Screen, vp Viewport, at geom.Point, s string, n *scene.Node) {
	if s == "" {
		return
	}
	cx, cy := vp.cell(at)
	w := runewidth.StringWidth(s)
	putString(screen, vp, cx-w/2, cy, s, n, false)
}

func putString(screen tcell.Screen, vp Viewport, x, y int, s string, n *scene.Node, transparent bool) {
	for _, r := range s {
		rw := runewidth.RuneWidth(r)
		if rw == 0 {
			continue
		}
		if transparent && r == ' ' {
			x += rw
			continue
		}
		if vp.inside(x, y) && vp.inside(x+rw-1, y) {
			_, _, st, _ := screen.GetContent(x, y)
			screen.SetContent(x, y, r, nil, style(st, n))
		}
		x += rw
	}
}

func style(base tcell.Style, n *scene.Node) tcell.Style {
	st := base
	if n.Color != "" {
		st = st.Foreground(color(n.Color))
	} else {
		st = st.Foreground(tcell.ColorWhite)
	}
	if n.Alpha < 0.5 {
		st = st.Dim(true)
	} else {
		st = st.Dim(false)
	}
	return st
}

var mirrored = map[rune]rune{
	'/': '\\', '\\': '/',
	'(': ')', ')': '(',
	'<': '>', '>': '<',
	'[': ']', ']': '[',
	'{': '}', '}': '{',
	'd': 'b', 'b': 'd',
}

func mirrorLines(lines []string) []string {
	width := 0
	for _, l := range lines {
		width = max(width, runewidth.StringWidth(l))
	}
	out := make([]string, len(lines))
	for i, l := range lines {
		padded := l + strings.Repeat(" ", width-runewidth.StringWidth(l))
		rs := []rune(padded)
		for a, b := 0, len(rs)-1; a < b; a, b = a+1, b-1 {
			rs[a], rs[b] = rs[b], rs[a]
		}
		for j, r := range rs {
			if m, ok := mirrored[r]; ok {
				rs[j] = m
			}
		}
		out[i] = string(rs)
	}
	return out
}
