package render

import (
	"testing"

	"github.com/gdamore/tcell/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"agent_office/internal/assets"
	"agent_office/internal/geom"
	"agent_office/internal/scene"
)

func newScreen(t *testing.T, w, h int) tcell.SimulationScreen {
	t.Helper()
	s := tcell.NewSimulationScreen("UTF-8")
	require.NoError(t, s.Init())
	s.SetSize(w, h)
	t.Cleanup(s.Fini)
	return s
}

func runeAt(s tcell.Screen, x, y int) rune {
	r, _, _, _ := s.GetContent(x, y)
	return r
}

var testViewport = Viewport{W: 40, H: 10, CellW: 8, CellH: 16}

func TestPaintTextCentresOnCell(t *testing.T) {
	s := newScreen(t, 40, 10)
	Paint(s, testViewport, []*scene.Node{
		{Kind: scene.KindText, Pos: geom.Point{X: 84, Y: 40}, Text: "hi", Alpha: 1},
	})
	assert.Equal(t, 'h', runeAt(s, 9, 2))
	assert.Equal(t, 'i', runeAt(s, 10, 2))
}

func TestPaintSkipsInvisibleNodes(t *testing.T) {
	s := newScreen(t, 40, 10)
	disposed := &scene.Node{Kind: scene.KindText, Pos: geom.Point{X: 84, Y: 40}, Text: "x", Alpha: 1}
	disposed.Dispose()
	Paint(s, testViewport, []*scene.Node{
		disposed,
		{Kind: scene.KindText, Pos: geom.Point{X: 84, Y: 72}, Text: "y", Alpha: 1, Hidden: true},
		{Kind: scene.KindText, Pos: geom.Point{X: 84, Y: 104}, Text: "z", Alpha: 0},
	})
	for y := 0; y < 10; y++ {
		for x := 0; x < 40; x++ {
			r := runeAt(s, x, y)
			assert.True(t, r == ' ' || r == 0, "unexpected %q at %d,%d", r, x, y)
		}
	}
}

func TestPaintOutline(t *testing.T) {
	s := newScreen(t, 40, 10)
	Paint(s, testViewport, []*scene.Node{
		{Kind: scene.KindOutline, Rect: geom.Rect{W: 80, H: 64}, Alpha: 1},
	})
	assert.Equal(t, '┌', runeAt(s, 0, 0))
	assert.Equal(t, '┐', runeAt(s, 9, 0))
	assert.Equal(t, '└', runeAt(s, 0, 3))
	assert.Equal(t, '┘', runeAt(s, 9, 3))
	assert.Equal(t, hline, runeAt(s, 5, 0))
	assert.Equal(t, vline, runeAt(s, 0, 1))
}

func TestPaintFillSetsBackground(t *testing.T) {
	s := newScreen(t, 40, 10)
	Paint(s, testViewport, []*scene.Node{
		{Kind: scene.KindFill, Rect: geom.Rect{X: 16, Y: 16, W: 32, H: 32}, Color: "#ff0000", Alpha: 1},
	})
	_, _, st, _ := s.GetContent(3, 1)
	_, bg, _ := st.Decompose()
	assert.Equal(t, tcell.GetColor("#ff0000"), bg)

	_, _, st, _ = s.GetContent(10, 1)
	_, bg, _ = st.Decompose()
	assert.NotEqual(t, tcell.GetColor("#ff0000"), bg)
}

func TestPaintDimsFadedNodes(t *testing.T) {
	s := newScreen(t, 40, 10)
	Paint(s, testViewport, []*scene.Node{
		{Kind: scene.KindText, Pos: geom.Point{X: 84, Y: 40}, Text: "a", Alpha: 0.3},
		{Kind: scene.KindText, Pos: geom.Point{X: 84, Y: 72}, Text: "b", Alpha: 0.9},
	})
	_, _, st, _ := s.GetContent(10, 2)
	_, _, attr := st.Decompose()
	assert.NotZero(t, attr&tcell.AttrDim)

	_, _, st, _ = s.GetContent(10, 4)
	_, _, attr = st.Decompose()
	assert.Zero(t, attr&tcell.AttrDim)
}

func TestPaintSpriteTransparentAndMirrored(t *testing.T) {
	s := newScreen(t, 40, 10)
	tex := assets.NewTexture("k", "(>\nd ")
	Paint(s, testViewport, []*scene.Node{
		{Kind: scene.KindText, Pos: geom.Point{X: 84, Y: 56}, Text: "##", Alpha: 1},
		{Kind: scene.KindSprite, Pos: geom.Point{X: 84, Y: 56}, Texture: &tex, Alpha: 1, Mirror: true},
	})
	// Cell (10,3) is the centre; two lines start one row up.
	assert.Equal(t, '<', runeAt(s, 9, 2))
	assert.Equal(t, ')', runeAt(s, 10, 2))
	assert.Equal(t, '#', runeAt(s, 9, 3))
	assert.Equal(t, 'b', runeAt(s, 10, 3))
}

func TestPaintClipsToViewport(t *testing.T) {
	s := newScreen(t, 40, 10)
	vp := Viewport{X: 2, Y: 1, W: 5, H: 3, CellW: 8, CellH: 16}
	Paint(s, vp, []*scene.Node{
		{Kind: scene.KindText, Pos: geom.Point{X: 4, Y: 8}, Text: "abcdefgh", Alpha: 1},
	})
	assert.NotEqual(t, 'a', runeAt(s, 0, 1))
	assert.Equal(t, 'e', runeAt(s, 2, 1))
	assert.Equal(t, 'h', runeAt(s, 5, 1))
	r := runeAt(s, 6, 1)
	assert.True(t, r == ' ' || r == 0)
}

func TestViewportPointRoundTrip(t *testing.T) {
	vp := Viewport{X: 1, Y: 1, W: 20, H: 10, CellW: 8, CellH: 16, ScrollY: 3}
	p := vp.Point(3, 2)
	assert.Equal(t, geom.Point{X: 20, Y: 72}, p)
	x, y := vp.cell(p)
	assert.Equal(t, 3, x)
	assert.Equal(t, 2, y)
}

func TestMirrorLinesPadsAndSwaps(t *testing.T) {
	assert.Equal(t, []string{"<)", " b"}, mirrorLines([]string{"(>", "d"}))
}
