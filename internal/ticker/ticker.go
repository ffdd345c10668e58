// Package ticker runs the per-frame animation pass over an already built
// scene. It never creates structure; it only moves, fades and disposes.
package ticker

import (
	"math"
	"math/rand/v2"
	"time"

	"agent_office/internal/choreo"
	"agent_office/internal/config"
	"agent_office/internal/domain"
	"agent_office/internal/geom"
	"agent_office/internal/scene"
	"agent_office/internal/seed"
)

const (
	particleGlyph = "·"
	particleColor = "#d5dbdb"
)

// Input is the held-direction state for one frame.
type Input struct {
	Up, Down, Left, Right bool
}

func (in Input) Vector() (dx, dy float64) {
	if in.Left {
		dx--
	}
	if in.Right {
		dx++
	}
	if in.Up {
		dy--
	}
	if in.Down {
		dy++
	}
	return dx, dy
}

// CeoState is the player avatar. Only the ticker moves it.
type CeoState struct {
	Pos geom.Point
}

// Frame is everything one tick needs. The controller hands over the current
// scene each frame so nothing stale is ever captured.
type Frame struct {
	Scene  *scene.Scene
	Choreo *choreo.Choreographer
	Ceo    *CeoState
	Input  Input
	Now    time.Time
	No     int
}

// Result reports what the frame found, for the host's benefit.
type Result struct {
	// Room is the index of the room holding the CEO, or -1.
	Room int
}

type Ticker struct {
	cfg config.Scene
	rng *rand.Rand
}

func New(cfg config.Scene, rng *rand.Rand) *Ticker {
	if rng == nil {
		rng = rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), 0x0ff1ce))
	}
	return &Ticker{cfg: cfg, rng: rng}
}

func (t *Ticker) Tick(f Frame) Result {
	res := Result{Room: -1}
	s := f.Scene
	if s == nil {
		if f.Choreo != nil {
			f.Choreo.Advance(f.Now, f.No)
		}
		return res
	}

	if f.Ceo != nil {
		t.moveCeo(s, f.Ceo, f.Input)
		res.Room = t.highlight(s, f.Ceo.Pos, f.No)
	}
	for _, a := range s.Actors {
		t.particles(s, a, f.No)
	}
	for _, a := range s.BreakActors {
		t.sway(a, f.No)
	}
	if f.Choreo != nil {
		f.Choreo.Advance(f.Now, f.No)
	}
	s.Sweep()
	return res
}

func (t *Ticker) moveCeo(s *scene.Scene, ceo *CeoState, in Input) {
	dx, dy := in.Vector()
	if dx != 0 && dy != 0 {
		dx, dy = dx/math.Sqrt2, dy/math.Sqrt2
	}
	b := s.Bounds()
	m := t.cfg.CeoMargin
	ceo.Pos.X = geom.Clamp(ceo.Pos.X+dx*t.cfg.CeoSpeed, b.X+m, b.Right()-m)
	ceo.Pos.Y = geom.Clamp(ceo.Pos.Y+dy*t.cfg.CeoSpeed, b.Y+m, b.Bottom()-m)

	if n := s.Ceo; !n.Disposed() {
		n.Pos = ceo.Pos
		if dx < 0 {
			n.Mirror = true
		} else if dx > 0 {
			n.Mirror = false
		}
	}
}

func (t *Ticker) highlight(s *scene.Scene, at geom.Point, frame int) int {
	h := s.Highlight
	i, ok := s.RoomAt(at)
	if h.Disposed() {
		if ok {
			return i
		}
		return -1
	}
	if !ok {
		h.Hidden = true
		h.Alpha = 0
		return -1
	}
	h.Hidden = false
	h.Rect = s.Rooms[i].Rect
	h.Alpha = 0.6 + 0.4*math.Sin(float64(frame)*t.cfg.PulseFrequency)
	return i
}

func (t *Ticker) particles(s *scene.Scene, a *scene.Actor, frame int) {
	live := a.Particles[:0]
	for _, p := range a.Particles {
		p.Age++
		if p.Age > t.cfg.ParticleMaxAge || p.Node.Disposed() {
			p.Node.Dispose()
			continue
		}
		p.Node.Pos.Y -= p.VY
		p.Node.Alpha = 1 - float64(p.Age)/float64(t.cfg.ParticleMaxAge)
		live = append(live, p)
	}
	a.Particles = live

	if a.Status != domain.AgentStatusWorking || a.Node.Disposed() {
		return
	}
	cadence := max(t.cfg.ParticleCadence, 1)
	if frame%cadence != 0 || t.rng.Float64() >= t.cfg.ParticleChance {
		return
	}
	jitter := (t.rng.Float64() - 0.5) * 16
	node := s.Add(&scene.Node{
		Kind:  scene.KindText,
		Layer: scene.LayerEffects,
		Tag:   "particle",
		Pos:   a.Anchor.Add(jitter, -18),
		Text:  particleGlyph,
		Color: particleColor,
		Alpha: 1,
	})
	a.Particles = append(a.Particles, &scene.Particle{Node: node, VY: t.cfg.ParticleRise * (0.5 + t.rng.Float64())})
}

func (t *Ticker) sway(a *scene.Actor, frame int) {
	if a.Node.Disposed() {
		return
	}
	phase := seed.Phase(a.Seed)
	off := math.Sin(float64(frame)*t.cfg.SwayFrequency+phase) * t.cfg.SwayAmplitude
	pos := a.Anchor.Add(off, 0)
	dx := pos.X - a.Node.Pos.X
	a.Node.Pos = pos
	for _, n := range a.Extras {
		if !n.Disposed() {
			n.Pos.X += dx
		}
	}
}
