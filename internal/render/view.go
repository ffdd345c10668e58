package render

import (
	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"

	"agent_office/internal/controller"
	"agent_office/internal/geom"
)

// OfficeView is the tview primitive hosting the office scene. It forwards
// keys, clicks and width changes to the controller and paints whatever the
// controller's current scene holds.
type OfficeView struct {
	*tview.Box

	ctrl         *controller.Controller
	cellW, cellH float64
	lastWidth    int
	vp           Viewport
}

func NewOfficeView(ctrl *controller.Controller, cellW, cellH float64) *OfficeView {
	if cellW <= 0 {
		cellW = 8
	}
	if cellH <= 0 {
		cellH = 16
	}
	return &OfficeView{
		Box:   tview.NewBox(),
		ctrl:  ctrl,
		cellW: cellW,
		cellH: cellH,
	}
}

func (v *OfficeView) Draw(screen tcell.Screen) {
	v.Box.DrawForSubclass(screen, v)
	x, y, w, h := v.GetInnerRect()
	if w != v.lastWidth {
		v.lastWidth = w
		v.ctrl.Resize(float64(w) * v.cellW)
	}

	v.vp = Viewport{X: x, Y: y, W: w, H: h, CellW: v.cellW, CellH: v.cellH}
	v.vp.ScrollY = v.scroll(h)
	Paint(screen, v.vp, v.ctrl.Nodes())
}

// scroll keeps the CEO vertically in view when the office is taller than
// the terminal.
func (v *OfficeView) scroll(rows int) int {
	s := v.ctrl.Scene()
	if s == nil {
		return 0
	}
	total := int(s.Bounds().H / v.cellH)
	if total <= rows {
		return 0
	}
	ceoRow := int(v.ctrl.Ceo().Y / v.cellH)
	return int(geom.Clamp(float64(ceoRow-rows/2), 0, float64(total-rows)))
}

func (v *OfficeView) InputHandler() func(event *tcell.EventKey, setFocus func(p tview.Primitive)) {
	return v.WrapInputHandler(func(event *tcell.EventKey, _ func(p tview.Primitive)) {
		switch event.Key() {
		case tcell.KeyUp:
			v.ctrl.PressDirection(controller.DirUp)
		case tcell.KeyDown:
			v.ctrl.PressDirection(controller.DirDown)
		case tcell.KeyLeft:
			v.ctrl.PressDirection(controller.DirLeft)
		case tcell.KeyRight:
			v.ctrl.PressDirection(controller.DirRight)
		case tcell.KeyEnter:
			v.ctrl.Interact()
		case tcell.KeyRune:
			switch event.Rune() {
			case 'w', 'W':
				v.ctrl.PressDirection(controller.DirUp)
			case 's', 'S':
				v.ctrl.PressDirection(controller.DirDown)
			case 'a', 'A':
				v.ctrl.PressDirection(controller.DirLeft)
			case 'd', 'D':
				v.ctrl.PressDirection(controller.DirRight)
			case 'e', 'E', ' ':
				v.ctrl.Interact()
			}
		}
	})
}

func (v *OfficeView) MouseHandler() func(action tview.MouseAction, event *tcell.EventMouse, setFocus func(p tview.Primitive)) (consumed bool, capture tview.Primitive) {
	return v.WrapMouseHandler(func(action tview.MouseAction, event *tcell.EventMouse, setFocus func(p tview.Primitive)) (bool, tview.Primitive) {
		x, y := event.Position()
		if !v.InRect(x, y) {
			return false, nil
		}
		if action != tview.MouseLeftClick {
			return false, nil
		}
		setFocus(v)
		v.ctrl.Click(v.vp.Point(x, y))
		return true, nil
	})
}
