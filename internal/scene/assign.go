package scene

import (
	"sort"
	"strings"

	"agent_office/internal/domain"
)

// Handoff is a task that became in-progress under an assignee since the
// previous rebuild.
type Handoff struct {
	TaskID  string
	AgentID string
	Title   string
}

// AssignmentTracker remembers the in-progress assignments seen by the last
// rebuild. It lives outside the scene so a rebuild never resets it.
type AssignmentTracker struct {
	prev   map[string]string
	seeded bool
}

func NewAssignmentTracker() *AssignmentTracker {
	return &AssignmentTracker{prev: map[string]string{}}
}

// Diff records the current assignments and returns those that are new. The
// first call only seeds the tracker, so mounting the office does not replay
// every existing assignment.
func (t *AssignmentTracker) Diff(tasks []domain.Task) []Handoff {
	current := make(map[string]string)
	titles := make(map[string]string)
	for _, task := range tasks {
		if task.Status != domain.TaskStatusInProgress {
			continue
		}
		assignee := strings.TrimSpace(task.AssignedAgentID)
		if assignee == "" {
			continue
		}
		current[task.ID] = assignee
		titles[task.ID] = task.Title
	}

	var out []Handoff
	if t.seeded {
		for taskID, agentID := range current {
			if t.prev[taskID] == agentID {
				continue
			}
			out = append(out, Handoff{TaskID: taskID, AgentID: agentID, Title: titles[taskID]})
		}
		sort.Slice(out, func(i, j int) bool { return out[i].TaskID < out[j].TaskID })
	}
	t.prev = current
	t.seeded = true
	return out
}
