package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"agent_office/internal/domain"

	_ "modernc.org/sqlite"
)

var ErrNotFound = errors.New("not found")

const schema = `
CREATE TABLE IF NOT EXISTS departments (
	id TEXT PRIMARY KEY,
	name TEXT NOT NULL,
	icon TEXT NOT NULL DEFAULT '',
	color TEXT NOT NULL DEFAULT '',
	sort_order INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS agents (
	id TEXT PRIMARY KEY,
	name TEXT NOT NULL,
	department_id TEXT NOT NULL DEFAULT '',
	role TEXT NOT NULL DEFAULT '',
	status TEXT NOT NULL,
	sprite_index INTEGER NOT NULL DEFAULT 0,
	avatar_emoji TEXT NOT NULL DEFAULT '',
	current_task_id TEXT NOT NULL DEFAULT '',
	updated_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_agents_department ON agents(department_id);

CREATE TABLE IF NOT EXISTS tasks (
	id TEXT PRIMARY KEY,
	title TEXT NOT NULL,
	department_id TEXT NOT NULL DEFAULT '',
	assigned_agent_id TEXT NOT NULL DEFAULT '',
	status TEXT NOT NULL,
	created_at INTEGER NOT NULL,
	updated_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_tasks_status ON tasks(status, updated_at);

CREATE TABLE IF NOT EXISTS sub_agents (
	id TEXT PRIMARY KEY,
	parent_agent_id TEXT NOT NULL,
	task TEXT NOT NULL DEFAULT '',
	status TEXT NOT NULL,
	created_at INTEGER NOT NULL,
	FOREIGN KEY(parent_agent_id) REFERENCES agents(id) ON DELETE CASCADE
);

CREATE TABLE IF NOT EXISTS unread (
	agent_id TEXT PRIMARY KEY,
	created_at INTEGER NOT NULL,
	FOREIGN KEY(agent_id) REFERENCES agents(id) ON DELETE CASCADE
);

CREATE TABLE IF NOT EXISTS office_events (
	seq INTEGER PRIMARY KEY AUTOINCREMENT,
	id TEXT NOT NULL UNIQUE,
	kind TEXT NOT NULL,
	payload TEXT NOT NULL,
	resolved INTEGER NOT NULL DEFAULT 0,
	created_at INTEGER NOT NULL,
	resolved_at INTEGER NULL
);
CREATE INDEX IF NOT EXISTS idx_office_events_pending ON office_events(resolved, seq);

CREATE TABLE IF NOT EXISTS revision (
	id INTEGER PRIMARY KEY CHECK (id = 1),
	version INTEGER NOT NULL
);
INSERT OR IGNORE INTO revision(id, version) VALUES(1, 0);
`

type Store struct {
	db *sql.DB
}

func Open(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA foreign_keys=ON;",
		"PRAGMA busy_timeout=5000;",
	}
	for _, stmt := range pragmas {
		if _, err := db.Exec(stmt); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("set sqlite pragma %q: %w", stmt, err)
		}
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("migrate schema: %w", err)
	}
	return nil
}

// Version increases with every mutation; viewers use it to skip identical
// snapshots.
func (s *Store) Version(ctx context.Context) (int64, error) {
	var v int64
	if err := s.db.QueryRowContext(ctx, `SELECT version FROM revision WHERE id = 1`).Scan(&v); err != nil {
		return 0, fmt.Errorf("read version: %w", err)
	}
	return v, nil
}

func (s *Store) bump(ctx context.Context, tx *sql.Tx) error {
	if _, err := tx.ExecContext(ctx, `UPDATE revision SET version = version + 1 WHERE id = 1`); err != nil {
		return fmt.Errorf("bump version: %w", err)
	}
	return nil
}

// mutate runs fn in a transaction and bumps the version on success.
func (s *Store) mutate(ctx context.Context, what string, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx %s: %w", what, err)
	}
	defer func() {
		_ = tx.Rollback()
	}()
	if err := fn(tx); err != nil {
		return err
	}
	if err := s.bump(ctx, tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit %s: %w", what, err)
	}
	return nil
}

func (s *Store) UpsertDepartment(ctx context.Context, d domain.Department) error {
	return s.mutate(ctx, "upsert department", func(tx *sql.Tx) error {
		_, err := tx.ExecContext(
			ctx,
			`INSERT INTO departments(id, name, icon, color, sort_order) VALUES(?, ?, ?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET name = excluded.name, icon = excluded.icon,
				color = excluded.color, sort_order = excluded.sort_order`,
			d.ID, d.Name, d.Icon, d.Color, d.SortOrder,
		)
		if err != nil {
			return fmt.Errorf("upsert department: %w", err)
		}
		return nil
	})
}

func (s *Store) UpsertAgent(ctx context.Context, a domain.Agent) error {
	if a.Status == "" {
		a.Status = domain.AgentStatusIdle
	}
	return s.mutate(ctx, "upsert agent", func(tx *sql.Tx) error {
		_, err := tx.ExecContext(
			ctx,
			`INSERT INTO agents(id, name, department_id, role, status, sprite_index, avatar_emoji, current_task_id, updated_at)
			VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET name = excluded.name, department_id = excluded.department_id,
				role = excluded.role, status = excluded.status, sprite_index = excluded.sprite_index,
				avatar_emoji = excluded.avatar_emoji, current_task_id = excluded.current_task_id,
				updated_at = excluded.updated_at`,
			a.ID, a.Name, a.DepartmentID, a.Role, string(a.Status), a.SpriteIndex, a.AvatarEmoji,
			a.CurrentTaskID, time.Now().UTC().Unix(),
		)
		if err != nil {
			return fmt.Errorf("upsert agent: %w", err)
		}
		return nil
	})
}

func (s *Store) SetAgentStatus(ctx context.Context, agentID string, status domain.AgentStatus) error {
	return s.mutate(ctx, "set agent status", func(tx *sql.Tx) error {
		res, err := tx.ExecContext(
			ctx,
			`UPDATE agents SET status = ?, updated_at = ? WHERE id = ?`,
			string(status), time.Now().UTC().Unix(), agentID,
		)
		if err != nil {
			return fmt.Errorf("set agent status: %w", err)
		}
		return expectOne(res, "agent "+agentID)
	})
}

func (s *Store) CreateTask(ctx context.Context, task domain.Task) error {
	now := time.Now().UTC()
	if task.UpdatedAt.IsZero() {
		task.UpdatedAt = now
	}
	if task.Status == "" {
		task.Status = domain.TaskStatusInbox
	}
	return s.mutate(ctx, "create task", func(tx *sql.Tx) error {
		_, err := tx.ExecContext(
			ctx,
			`INSERT INTO tasks(id, title, department_id, assigned_agent_id, status, created_at, updated_at)
			VALUES(?, ?, ?, ?, ?, ?, ?)`,
			task.ID, task.Title, task.DepartmentID, task.AssignedAgentID, string(task.Status),
			now.Unix(), task.UpdatedAt.Unix(),
		)
		if err != nil {
			return fmt.Errorf("create task: %w", err)
		}
		return nil
	})
}

// AssignTask hands a task to an agent and starts it.
func (s *Store) AssignTask(ctx context.Context, taskID, agentID string) error {
	return s.mutate(ctx, "assign task", func(tx *sql.Tx) error {
		now := time.Now().UTC().Unix()
		res, err := tx.ExecContext(
			ctx,
			`UPDATE tasks SET assigned_agent_id = ?, status = ?, updated_at = ? WHERE id = ?`,
			agentID, string(domain.TaskStatusInProgress), now, taskID,
		)
		if err != nil {
			return fmt.Errorf("assign task: %w", err)
		}
		if err := expectOne(res, "task "+taskID); err != nil {
			return err
		}
		res, err = tx.ExecContext(
			ctx,
			`UPDATE agents SET current_task_id = ?, status = ?, updated_at = ? WHERE id = ?`,
			taskID, string(domain.AgentStatusWorking), now, agentID,
		)
		if err != nil {
			return fmt.Errorf("update assignee: %w", err)
		}
		return expectOne(res, "agent "+agentID)
	})
}

// UpdateTaskStatus moves a task along the board. Leaving in_progress frees
// the assignee.
func (s *Store) UpdateTaskStatus(ctx context.Context, taskID string, status domain.TaskStatus) error {
	return s.mutate(ctx, "update task status", func(tx *sql.Tx) error {
		now := time.Now().UTC().Unix()
		res, err := tx.ExecContext(ctx, `UPDATE tasks SET status = ?, updated_at = ? WHERE id = ?`, string(status), now, taskID)
		if err != nil {
			return fmt.Errorf("update task status: %w", err)
		}
		if err := expectOne(res, "task "+taskID); err != nil {
			return err
		}
		if status == domain.TaskStatusInProgress {
			return nil
		}
		if _, err := tx.ExecContext(
			ctx,
			`UPDATE agents SET current_task_id = '', status = ?, updated_at = ?
			WHERE current_task_id = ? AND status = ?`,
			string(domain.AgentStatusIdle), now, taskID, string(domain.AgentStatusWorking),
		); err != nil {
			return fmt.Errorf("release assignee: %w", err)
		}
		return nil
	})
}

func (s *Store) AddSubAgent(ctx context.Context, sub domain.SubAgent) error {
	if sub.Status == "" {
		sub.Status = "working"
	}
	return s.mutate(ctx, "add sub-agent", func(tx *sql.Tx) error {
		_, err := tx.ExecContext(
			ctx,
			`INSERT INTO sub_agents(id, parent_agent_id, task, status, created_at) VALUES(?, ?, ?, ?, ?)`,
			sub.ID, sub.ParentAgentID, sub.Task, sub.Status, time.Now().UTC().Unix(),
		)
		if err != nil {
			return fmt.Errorf("add sub-agent: %w", err)
		}
		return nil
	})
}

func (s *Store) FinishSubAgent(ctx context.Context, id string) error {
	return s.mutate(ctx, "finish sub-agent", func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `UPDATE sub_agents SET status = 'done' WHERE id = ?`, id)
		if err != nil {
			return fmt.Errorf("finish sub-agent: %w", err)
		}
		return expectOne(res, "sub-agent "+id)
	})
}

func (s *Store) SetUnread(ctx context.Context, agentID string, unread bool) error {
	return s.mutate(ctx, "set unread", func(tx *sql.Tx) error {
		var err error
		if unread {
			_, err = tx.ExecContext(ctx, `INSERT OR IGNORE INTO unread(agent_id, created_at) VALUES(?, ?)`, agentID, time.Now().UTC().Unix())
		} else {
			_, err = tx.ExecContext(ctx, `DELETE FROM unread WHERE agent_id = ?`, agentID)
		}
		if err != nil {
			return fmt.Errorf("set unread: %w", err)
		}
		return nil
	})
}

// RecordEvent queues a delivery or meeting call for viewers. It stays in
// every snapshot until resolved.
func (s *Store) RecordEvent(ctx context.Context, ev domain.Event) error {
	var id string
	var payload any
	switch e := ev.(type) {
	case domain.DeliveryEvent:
		id, payload = e.Delivery.ID, e.Delivery
	case domain.MeetingCallEvent:
		id, payload = e.Call.ID, e.Call
	default:
		return fmt.Errorf("record event %s: %w", ev.Kind(), domain.ErrUnknownEventKind)
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	return s.mutate(ctx, "record event", func(tx *sql.Tx) error {
		_, err := tx.ExecContext(
			ctx,
			`INSERT INTO office_events(id, kind, payload, created_at) VALUES(?, ?, ?, ?)`,
			id, string(ev.Kind()), string(raw), time.Now().UTC().Unix(),
		)
		if err != nil {
			return fmt.Errorf("record event: %w", err)
		}
		return nil
	})
}

// ResolveEvent drains an event. Resolving twice is not an error.
func (s *Store) ResolveEvent(ctx context.Context, id string) error {
	return s.mutate(ctx, "resolve event", func(tx *sql.Tx) error {
		res, err := tx.ExecContext(
			ctx,
			`UPDATE office_events SET resolved = 1, resolved_at = COALESCE(resolved_at, ?) WHERE id = ?`,
			time.Now().UTC().Unix(), id,
		)
		if err != nil {
			return fmt.Errorf("resolve event: %w", err)
		}
		return expectOne(res, "event "+id)
	})
}

// PendingEvents counts unresolved events.
func (s *Store) PendingEvents(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM office_events WHERE resolved = 0`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count pending events: %w", err)
	}
	return n, nil
}

func (s *Store) ListDepartments(ctx context.Context) ([]domain.Department, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, name, icon, color, sort_order FROM departments ORDER BY sort_order ASC, id ASC`)
	if err != nil {
		return nil, fmt.Errorf("list departments: %w", err)
	}
	defer rows.Close()

	result := make([]domain.Department, 0)
	for rows.Next() {
		var d domain.Department
		if err := rows.Scan(&d.ID, &d.Name, &d.Icon, &d.Color, &d.SortOrder); err != nil {
			return nil, fmt.Errorf("scan department: %w", err)
		}
		result = append(result, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate departments: %w", err)
	}
	return result, nil
}

func (s *Store) ListAgents(ctx context.Context) ([]domain.Agent, error) {
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT id, name, department_id, role, status, sprite_index, avatar_emoji, current_task_id
		FROM agents ORDER BY department_id ASC, id ASC`,
	)
	if err != nil {
		return nil, fmt.Errorf("list agents: %w", err)
	}
	defer rows.Close()

	result := make([]domain.Agent, 0)
	for rows.Next() {
		var a domain.Agent
		var status string
		if err := rows.Scan(&a.ID, &a.Name, &a.DepartmentID, &a.Role, &status, &a.SpriteIndex, &a.AvatarEmoji, &a.CurrentTaskID); err != nil {
			return nil, fmt.Errorf("scan agent: %w", err)
		}
		a.Status = domain.AgentStatus(status)
		result = append(result, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate agents: %w", err)
	}
	return result, nil
}

func (s *Store) GetTask(ctx context.Context, taskID string) (domain.Task, error) {
	row := s.db.QueryRowContext(
		ctx,
		`SELECT id, title, department_id, assigned_agent_id, status, updated_at FROM tasks WHERE id = ?`,
		taskID,
	)
	t, err := scanTask(row)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Task{}, fmt.Errorf("get task %s: %w", taskID, ErrNotFound)
	}
	if err != nil {
		return domain.Task{}, fmt.Errorf("get task: %w", err)
	}
	return t, nil
}

// ListTasks returns the tasks still on the board; done and cancelled tasks
// older than the cut-off are left out.
func (s *Store) ListTasks(ctx context.Context) ([]domain.Task, error) {
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT id, title, department_id, assigned_agent_id, status, updated_at
		FROM tasks
		WHERE status NOT IN (?, ?) OR updated_at >= ?
		ORDER BY updated_at DESC, id ASC`,
		string(domain.TaskStatusDone), string(domain.TaskStatusCancelled), time.Now().UTC().Add(-time.Hour).Unix(),
	)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	defer rows.Close()

	result := make([]domain.Task, 0)
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("scan task: %w", err)
		}
		result = append(result, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate tasks: %w", err)
	}
	return result, nil
}

func (s *Store) listSubAgents(ctx context.Context) ([]domain.SubAgent, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, parent_agent_id, task, status FROM sub_agents WHERE status != 'done' ORDER BY created_at ASC, id ASC`)
	if err != nil {
		return nil, fmt.Errorf("list sub-agents: %w", err)
	}
	defer rows.Close()

	result := make([]domain.SubAgent, 0)
	for rows.Next() {
		var sub domain.SubAgent
		if err := rows.Scan(&sub.ID, &sub.ParentAgentID, &sub.Task, &sub.Status); err != nil {
			return nil, fmt.Errorf("scan sub-agent: %w", err)
		}
		result = append(result, sub)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sub-agents: %w", err)
	}
	return result, nil
}

func (s *Store) listUnread(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT agent_id FROM unread ORDER BY agent_id ASC`)
	if err != nil {
		return nil, fmt.Errorf("list unread: %w", err)
	}
	defer rows.Close()

	result := make([]string, 0)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan unread: %w", err)
		}
		result = append(result, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate unread: %w", err)
	}
	return result, nil
}

func (s *Store) listPendingEvents(ctx context.Context) ([]domain.CrossDeptDelivery, []domain.MeetingCall, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT kind, payload FROM office_events WHERE resolved = 0 ORDER BY seq ASC`)
	if err != nil {
		return nil, nil, fmt.Errorf("list pending events: %w", err)
	}
	defer rows.Close()

	deliveries := make([]domain.CrossDeptDelivery, 0)
	calls := make([]domain.MeetingCall, 0)
	for rows.Next() {
		var kind, payload string
		if err := rows.Scan(&kind, &payload); err != nil {
			return nil, nil, fmt.Errorf("scan event: %w", err)
		}
		switch domain.EventKind(kind) {
		case domain.EventKindDelivery:
			var d domain.CrossDeptDelivery
			if err := json.Unmarshal([]byte(payload), &d); err != nil {
				return nil, nil, fmt.Errorf("decode delivery: %w", err)
			}
			deliveries = append(deliveries, d)
		case domain.EventKindMeetingCall:
			var c domain.MeetingCall
			if err := json.Unmarshal([]byte(payload), &c); err != nil {
				return nil, nil, fmt.Errorf("decode meeting call: %w", err)
			}
			calls = append(calls, c)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, nil, fmt.Errorf("iterate events: %w", err)
	}
	return deliveries, calls, nil
}

// Snapshot assembles the full viewer snapshot with only unresolved events.
func (s *Store) Snapshot(ctx context.Context, locale string) (domain.Snapshot, error) {
	snap := domain.Snapshot{Locale: locale}
	var err error
	if snap.Version, err = s.Version(ctx); err != nil {
		return domain.Snapshot{}, err
	}
	if snap.Departments, err = s.ListDepartments(ctx); err != nil {
		return domain.Snapshot{}, err
	}
	if snap.Agents, err = s.ListAgents(ctx); err != nil {
		return domain.Snapshot{}, err
	}
	if snap.Tasks, err = s.ListTasks(ctx); err != nil {
		return domain.Snapshot{}, err
	}
	if snap.SubAgents, err = s.listSubAgents(ctx); err != nil {
		return domain.Snapshot{}, err
	}
	if snap.Unread, err = s.listUnread(ctx); err != nil {
		return domain.Snapshot{}, err
	}
	if snap.Deliveries, snap.MeetingCalls, err = s.listPendingEvents(ctx); err != nil {
		return domain.Snapshot{}, err
	}
	return snap, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanTask(row scanner) (domain.Task, error) {
	var t domain.Task
	var status string
	var updated int64
	if err := row.Scan(&t.ID, &t.Title, &t.DepartmentID, &t.AssignedAgentID, &status, &updated); err != nil {
		return domain.Task{}, err
	}
	t.Status = domain.TaskStatus(status)
	t.UpdatedAt = unixToTime(updated)
	return t, nil
}

func expectOne(res sql.Result, what string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%s: %w", what, ErrNotFound)
	}
	return nil
}

func unixToTime(v int64) time.Time {
	return time.Unix(v, 0).UTC()
}
