// Package choreo turns observed backend events into transient animated
// entities: task hand-offs, cross-department walks and meeting attendance.
package choreo

import (
	"math"
	"time"

	"agent_office/internal/assets"
	"agent_office/internal/config"
	"agent_office/internal/geom"
	"agent_office/internal/scene"
)

type MotionKind int

const (
	// MotionArcThrow flies along an eased line lifted by a sine arc.
	MotionArcThrow MotionKind = iota
	// MotionLinearWalk walks an eased straight line with footstep bounce.
	MotionLinearWalk
)

func (k MotionKind) String() string {
	if k == MotionLinearWalk {
		return "linear-walk"
	}
	return "arc-throw"
}

type State int

const (
	StateCreated State = iota
	StateAdvancing
	StateHolding
	StateDisposed
)

func (s State) String() string {
	switch s {
	case StateCreated:
		return "created"
	case StateAdvancing:
		return "advancing"
	case StateHolding:
		return "holding"
	default:
		return "disposed"
	}
}

// Fade windows, as fractions of progress.
const (
	// ArcFadeOut is the tail of an arc throw over which it fades to nothing.
	ArcFadeOut = 0.15
	// WalkFadeIn is the head of a walk over which the walker fades in.
	WalkFadeIn = 0.05
	// WalkFadeOut is the tail of a non-holding walk over which it fades out.
	WalkFadeOut = 0.10
)

// Profile carries the tunable motion parameters.
type Profile struct {
	ArcHeight float64
	Bounce    float64
	Steps     float64
	SeatBob   float64
}

func ProfileFrom(cfg config.Scene) Profile {
	return Profile{
		ArcHeight: cfg.ThrowArc,
		Bounce:    cfg.WalkBounce,
		Steps:     cfg.WalkSteps,
		SeatBob:   cfg.SeatBob,
	}
}

type Delivery struct {
	ID       string
	EventID  string
	Node     *scene.Node
	Extras   []*scene.Node
	From     geom.Point
	To       geom.Point
	Progress float64
	Speed    float64
	Kind     MotionKind
	// Hold, when set, keeps the entity at To for that long after it
	// arrives. HoldUntil is stamped on arrival.
	Hold      time.Duration
	HoldUntil time.Time
	AgentID   string
	Arrived   bool

	// frames are walk-cycle textures; nil entries fall back to the glyph.
	frames []*assets.Texture
	state  State
}

func (d *Delivery) State() State { return d.state }

func (d *Delivery) Holding() bool { return d.Hold > 0 }

func (d *Delivery) Position() geom.Point {
	if d.Node == nil {
		return d.From
	}
	return d.Node.Pos
}

func (d *Delivery) Dispose() {
	if d.state == StateDisposed {
		return
	}
	d.state = StateDisposed
	d.Node.Dispose()
	for _, n := range d.Extras {
		n.Dispose()
	}
}

// Step advances the entity by one frame.
func (d *Delivery) Step(now time.Time, frame int, p Profile) {
	switch d.state {
	case StateDisposed:
		return
	case StateHolding:
		if now.After(d.HoldUntil) {
			d.Dispose()
			return
		}
		d.place(d.To.Add(0, math.Sin(float64(frame)*0.15)*p.SeatBob), 1)
		return
	}

	d.state = StateAdvancing
	d.Progress = math.Min(1, d.Progress+d.Speed)
	if d.Progress >= 1 {
		if !d.Holding() {
			d.Dispose()
			return
		}
		d.Arrived = true
		d.HoldUntil = now.Add(d.Hold)
		d.state = StateHolding
		d.place(d.To, 1)
		return
	}

	switch d.Kind {
	case MotionArcThrow:
		d.stepArc(p)
	default:
		d.stepWalk(p)
	}
}

func (d *Delivery) stepArc(p Profile) {
	t := d.Progress
	pos := geom.LerpPoint(d.From, d.To, geom.EaseInOutQuad(t))
	pos.Y -= math.Sin(t*math.Pi) * p.ArcHeight
	alpha := 1.0
	if t > 1-ArcFadeOut {
		alpha = (1 - t) / ArcFadeOut
	}
	d.place(pos, alpha)
}

func (d *Delivery) stepWalk(p Profile) {
	t := d.Progress
	pos := geom.LerpPoint(d.From, d.To, geom.EaseInOutQuad(t))
	pos.Y -= math.Abs(math.Sin(t*math.Pi*p.Steps)) * p.Bounce

	alpha := 1.0
	if t < WalkFadeIn {
		alpha = t / WalkFadeIn
	}
	if !d.Holding() && t > 1-WalkFadeOut {
		alpha = math.Min(alpha, (1-t)/WalkFadeOut)
	}
	if d.Node != nil {
		d.Node.Mirror = d.To.X < d.From.X
		if len(d.frames) > 0 {
			d.Node.Texture = d.frames[int(t*p.Steps)%len(d.frames)]
		}
	}
	d.place(pos, alpha)
}

func (d *Delivery) place(pos geom.Point, alpha float64) {
	if d.Node.Disposed() {
		return
	}
	dx, dy := pos.X-d.Node.Pos.X, pos.Y-d.Node.Pos.Y
	d.Node.Pos = pos
	d.Node.Alpha = alpha
	for _, n := range d.Extras {
		if n.Disposed() {
			continue
		}
		n.Pos = n.Pos.Add(dx, dy)
		n.Alpha = alpha
	}
}
