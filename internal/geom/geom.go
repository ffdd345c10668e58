// Package geom holds the scene-space primitives shared by the layout,
// scene and choreography packages.
package geom

import "math"

type Point struct {
	X, Y float64
}

func (p Point) Add(dx, dy float64) Point {
	return Point{X: p.X + dx, Y: p.Y + dy}
}

type Rect struct {
	X, Y, W, H float64
}

func (r Rect) Contains(p Point) bool {
	return p.X >= r.X && p.X < r.X+r.W && p.Y >= r.Y && p.Y < r.Y+r.H
}

func (r Rect) Overlaps(o Rect) bool {
	return r.X < o.X+o.W && o.X < r.X+r.W && r.Y < o.Y+o.H && o.Y < r.Y+r.H
}

func (r Rect) Center() Point {
	return Point{X: r.X + r.W/2, Y: r.Y + r.H/2}
}

func (r Rect) Right() float64  { return r.X + r.W }
func (r Rect) Bottom() float64 { return r.Y + r.H }

func Lerp(a, b, t float64) float64 {
	return a + (b-a)*t
}

func LerpPoint(a, b Point, t float64) Point {
	return Point{X: Lerp(a.X, b.X, t), Y: Lerp(a.Y, b.Y, t)}
}

func Clamp(v, lo, hi float64) float64 {
	if hi < lo {
		return lo
	}
	return math.Max(lo, math.Min(hi, v))
}

// EaseInOutQuad maps linear progress onto an accelerate-then-decelerate
// curve. Both ends are fixed: 0 → 0, 1 → 1.
func EaseInOutQuad(t float64) float64 {
	t = Clamp(t, 0, 1)
	if t < 0.5 {
		return 2 * t * t
	}
	return 1 - math.Pow(-2*t+2, 2)/2
}

// EaseOutCubic decelerates towards the end.
func EaseOutCubic(t float64) float64 {
	t = Clamp(t, 0, 1)
	return 1 - math.Pow(1-t, 3)
}
