package scene

import (
	"sort"

	"agent_office/internal/geom"
)

type Role int

const (
	RoleDesk Role = iota
	RoleBreak
)

func (r Role) String() string {
	if r == RoleBreak {
		return "break"
	}
	return "desk"
}

type Anchor struct {
	Point        geom.Point
	Role         Role
	DepartmentID string
}

// Registry maps agent ids to where they currently stand. It is rebuilt by
// every Build and read by the choreography layer.
type Registry struct {
	entries map[string]Anchor
}

func NewRegistry() *Registry {
	return &Registry{entries: make(map[string]Anchor)}
}

func (r *Registry) set(agentID string, a Anchor) {
	r.entries[agentID] = a
}

func (r *Registry) Lookup(agentID string) (Anchor, bool) {
	if r == nil {
		return Anchor{}, false
	}
	a, ok := r.entries[agentID]
	return a, ok
}

func (r *Registry) Point(agentID string) (geom.Point, bool) {
	a, ok := r.Lookup(agentID)
	return a.Point, ok
}

func (r *Registry) Len() int {
	if r == nil {
		return 0
	}
	return len(r.entries)
}

func (r *Registry) IDs() []string {
	if r == nil {
		return nil
	}
	ids := make([]string, 0, len(r.entries))
	for id := range r.entries {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// InRole lists the agents anchored with role, sorted by id.
func (r *Registry) InRole(role Role) []string {
	var ids []string
	for _, id := range r.IDs() {
		if r.entries[id].Role == role {
			ids = append(ids, id)
		}
	}
	return ids
}
