package choreo

import (
	"time"

	"agent_office/internal/scene"
)

// Queue holds the live delivery entities. It survives rebuilds, so an
// in-flight walk is not cut short by a snapshot update.
type Queue struct {
	items []*Delivery
}

func (q *Queue) Add(d *Delivery) {
	q.items = append(q.items, d)
}

func (q *Queue) Len() int {
	return len(q.items)
}

func (q *Queue) Items() []*Delivery {
	return append([]*Delivery(nil), q.items...)
}

// ForAgent returns the live entity owned by agentID, if any.
func (q *Queue) ForAgent(agentID string) (*Delivery, bool) {
	if agentID == "" {
		return nil, false
	}
	for _, d := range q.items {
		if d.AgentID == agentID && d.state != StateDisposed {
			return d, true
		}
	}
	return nil, false
}

// DisposeAgent disposes every entity owned by agentID and reports how many
// there were.
func (q *Queue) DisposeAgent(agentID string) int {
	n := 0
	for _, d := range q.items {
		if agentID != "" && d.AgentID == agentID && d.state != StateDisposed {
			d.Dispose()
			n++
		}
	}
	q.compact()
	return n
}

// Advance steps every entity and drops the ones that finished.
func (q *Queue) Advance(now time.Time, frame int, p Profile) {
	for _, d := range q.items {
		d.Step(now, frame, p)
	}
	q.compact()
}

func (q *Queue) Nodes() []*scene.Node {
	var out []*scene.Node
	for _, d := range q.items {
		if d.state == StateDisposed {
			continue
		}
		out = append(out, d.Node)
		out = append(out, d.Extras...)
	}
	return out
}

func (q *Queue) Clear() {
	for _, d := range q.items {
		d.Dispose()
	}
	q.items = nil
}

func (q *Queue) compact() {
	live := q.items[:0]
	for _, d := range q.items {
		if d.state != StateDisposed {
			live = append(live, d)
		}
	}
	for i := len(live); i < len(q.items); i++ {
		q.items[i] = nil
	}
	q.items = live
}
