package scene

import (
	"agent_office/internal/domain"
	"agent_office/internal/geom"
	"agent_office/internal/layout"
)

type RoomRect struct {
	DepartmentID string
	Name         string
	Rect         geom.Rect
}

type Placard struct {
	DepartmentID string
	Rect         geom.Rect
	Node         *Node
}

// Particle is a decorative puff rising from a working desk.
type Particle struct {
	Node *Node
	VY   float64
	Age  int
}

// Actor is an agent's avatar plus the animation bookkeeping the ticker
// needs. Actors are created by the same Build that creates their nodes.
type Actor struct {
	AgentID      string
	DepartmentID string
	Status       domain.AgentStatus
	Anchor       geom.Point
	Seed         uint64
	Node         *Node
	Extras       []*Node
	HitRect      geom.Rect
	Particles    []*Particle
}

// Scene is the output of one rebuild.
type Scene struct {
	Layout   layout.Layout
	Locale   string
	Registry *Registry

	Rooms       []RoomRect
	Placards    []Placard
	Actors      []*Actor
	BreakActors []*Actor
	Ceo         *Node
	Highlight   *Node

	looks map[string]Look
	nodes []*Node
}

// Look is how an agent is drawn, for entities that borrow its avatar.
type Look struct {
	Sprite int
	Glyph  string
}

func (s *Scene) Look(agentID string) (Look, bool) {
	if s == nil {
		return Look{}, false
	}
	l, ok := s.looks[agentID]
	return l, ok
}

func (s *Scene) Add(n *Node) *Node {
	s.nodes = append(s.nodes, n)
	return n
}

// Nodes returns the live nodes in draw order.
func (s *Scene) Nodes() []*Node {
	if s == nil {
		return nil
	}
	out := make([]*Node, 0, len(s.nodes))
	for _, n := range s.nodes {
		if !n.Disposed() {
			out = append(out, n)
		}
	}
	SortByLayer(out)
	return out
}

// Sweep drops disposed nodes from the scene's node list.
func (s *Scene) Sweep() {
	live := s.nodes[:0]
	for _, n := range s.nodes {
		if !n.Disposed() {
			live = append(live, n)
		}
	}
	for i := len(live); i < len(s.nodes); i++ {
		s.nodes[i] = nil
	}
	s.nodes = live
}

// Dispose marks every node of the scene disposed. Called when a rebuild
// replaces it.
func (s *Scene) Dispose() {
	if s == nil {
		return
	}
	for _, n := range s.nodes {
		n.Dispose()
	}
}

func (s *Scene) AgentAt(p geom.Point) (string, bool) {
	if s == nil {
		return "", false
	}
	for _, group := range [][]*Actor{s.Actors, s.BreakActors} {
		for _, a := range group {
			if a.HitRect.Contains(p) {
				return a.AgentID, true
			}
		}
	}
	return "", false
}

func (s *Scene) PlacardAt(p geom.Point) (string, bool) {
	if s == nil {
		return "", false
	}
	for _, pl := range s.Placards {
		if pl.Rect.Contains(p) {
			return pl.DepartmentID, true
		}
	}
	return "", false
}

// RoomAt returns the index into Rooms of the room containing p.
func (s *Scene) RoomAt(p geom.Point) (int, bool) {
	if s == nil {
		return -1, false
	}
	for i, r := range s.Rooms {
		if r.Rect.Contains(p) {
			return i, true
		}
	}
	return -1, false
}

func (s *Scene) Bounds() geom.Rect {
	if s == nil {
		return geom.Rect{}
	}
	return s.Layout.Bounds()
}
