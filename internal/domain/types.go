package domain

import (
	"time"
)

type AgentStatus string

const (
	AgentStatusIdle    AgentStatus = "idle"
	AgentStatusWorking AgentStatus = "working"
	AgentStatusBreak   AgentStatus = "break"
	AgentStatusOffline AgentStatus = "offline"
)

type TaskStatus string

const (
	TaskStatusInbox      TaskStatus = "inbox"
	TaskStatusPlanned    TaskStatus = "planned"
	TaskStatusInProgress TaskStatus = "in_progress"
	TaskStatusReview     TaskStatus = "review"
	TaskStatusDone       TaskStatus = "done"
	TaskStatusCancelled  TaskStatus = "cancelled"
)

type Department struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Icon      string `json:"icon,omitempty"`
	Color     string `json:"color,omitempty"`
	SortOrder int    `json:"sort_order"`
}

type Agent struct {
	ID            string      `json:"id"`
	Name          string      `json:"name"`
	DepartmentID  string      `json:"department_id"`
	Role          string      `json:"role,omitempty"`
	Status        AgentStatus `json:"status"`
	SpriteIndex   int         `json:"sprite_index,omitempty"`
	AvatarEmoji   string      `json:"avatar_emoji,omitempty"`
	CurrentTaskID string      `json:"current_task_id,omitempty"`
}

type Task struct {
	ID              string     `json:"id"`
	Title           string     `json:"title"`
	DepartmentID    string     `json:"department_id,omitempty"`
	AssignedAgentID string     `json:"assigned_agent_id,omitempty"`
	Status          TaskStatus `json:"status"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

type SubAgent struct {
	ID            string `json:"id"`
	ParentAgentID string `json:"parent_agent_id"`
	Task          string `json:"task,omitempty"`
	Status        string `json:"status"`
}

// CrossDeptDelivery is an unresolved hand-off of work between two agents
// that usually sit in different departments.
type CrossDeptDelivery struct {
	ID          string `json:"id"`
	FromAgentID string `json:"from_agent_id"`
	ToAgentID   string `json:"to_agent_id"`
}

type MeetingAction string

const (
	MeetingActionArrive  MeetingAction = "arrive"
	MeetingActionSpeak   MeetingAction = "speak"
	MeetingActionDismiss MeetingAction = "dismiss"
)

type MeetingPhase string

const (
	MeetingPhaseKickoff MeetingPhase = "kickoff"
	MeetingPhaseReview  MeetingPhase = "review"
	MeetingPhaseClosing MeetingPhase = "closing"
)

// MeetingCall summons an agent to the executive meeting table, or makes an
// agent already seated say something.
type MeetingCall struct {
	ID          string        `json:"id"`
	FromAgentID string        `json:"from_agent_id"`
	SeatIndex   int           `json:"seat_index"`
	Phase       MeetingPhase  `json:"phase"`
	Action      MeetingAction `json:"action"`
	Line        string        `json:"line,omitempty"`
}

// Snapshot is the read-only view of the backend the viewer renders. It is
// replaced wholesale on every update.
type Snapshot struct {
	Departments  []Department        `json:"departments"`
	Agents       []Agent             `json:"agents"`
	Tasks        []Task              `json:"tasks"`
	SubAgents    []SubAgent          `json:"sub_agents"`
	Unread       []string            `json:"unread_agent_ids"`
	Locale       string              `json:"locale"`
	Deliveries   []CrossDeptDelivery `json:"cross_dept_deliveries"`
	MeetingCalls []MeetingCall       `json:"meeting_calls"`
	Version      int64               `json:"version"`
}

func (s Snapshot) UnreadSet() map[string]bool {
	out := make(map[string]bool, len(s.Unread))
	for _, id := range s.Unread {
		out[id] = true
	}
	return out
}

func (s Snapshot) TaskByID(id string) (Task, bool) {
	for _, t := range s.Tasks {
		if t.ID == id {
			return t, true
		}
	}
	return Task{}, false
}
