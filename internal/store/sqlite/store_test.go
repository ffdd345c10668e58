package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"agent_office/internal/domain"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "office.db"))
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = store.Close()
	})
	require.NoError(t, store.Migrate(context.Background()))
	return store
}

func seedOffice(t *testing.T, store *Store) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, store.UpsertDepartment(ctx, domain.Department{ID: "dev", Name: "Development", SortOrder: 2}))
	require.NoError(t, store.UpsertDepartment(ctx, domain.Department{ID: "design", Name: "Design", SortOrder: 1}))
	require.NoError(t, store.UpsertAgent(ctx, domain.Agent{ID: "ada", Name: "Ada", DepartmentID: "dev"}))
	require.NoError(t, store.UpsertAgent(ctx, domain.Agent{ID: "bo", Name: "Bo", DepartmentID: "design"}))
}

func TestMigrateIsIdempotent(t *testing.T) {
	store := newTestStore(t)
	require.NoError(t, store.Migrate(context.Background()))

	v, err := store.Version(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(0), v)
}

func TestMutationsBumpVersion(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	seedOffice(t, store)

	v1, err := store.Version(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(4), v1)

	require.NoError(t, store.SetAgentStatus(ctx, "ada", domain.AgentStatusBreak))
	v2, err := store.Version(ctx)
	require.NoError(t, err)
	assert.Greater(t, v2, v1)
}

func TestFailedMutationKeepsVersion(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	seedOffice(t, store)
	before, err := store.Version(ctx)
	require.NoError(t, err)

	err = store.SetAgentStatus(ctx, "ghost", domain.AgentStatusWorking)
	require.ErrorIs(t, err, ErrNotFound)

	after, err := store.Version(ctx)
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func TestDepartmentsAreOrdered(t *testing.T) {
	store := newTestStore(t)
	seedOffice(t, store)

	depts, err := store.ListDepartments(context.Background())
	require.NoError(t, err)
	require.Len(t, depts, 2)
	assert.Equal(t, "design", depts[0].ID)
	assert.Equal(t, "dev", depts[1].ID)
}

func TestAssignAndFinishTask(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	seedOffice(t, store)

	require.NoError(t, store.CreateTask(ctx, domain.Task{ID: "t1", Title: "Ship login", DepartmentID: "dev"}))
	task, err := store.GetTask(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, domain.TaskStatusInbox, task.Status)

	require.NoError(t, store.AssignTask(ctx, "t1", "ada"))
	task, err = store.GetTask(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, domain.TaskStatusInProgress, task.Status)
	assert.Equal(t, "ada", task.AssignedAgentID)

	agents, err := store.ListAgents(ctx)
	require.NoError(t, err)
	ada := findAgent(t, agents, "ada")
	assert.Equal(t, domain.AgentStatusWorking, ada.Status)
	assert.Equal(t, "t1", ada.CurrentTaskID)

	require.NoError(t, store.UpdateTaskStatus(ctx, "t1", domain.TaskStatusReview))
	agents, err = store.ListAgents(ctx)
	require.NoError(t, err)
	ada = findAgent(t, agents, "ada")
	assert.Equal(t, domain.AgentStatusIdle, ada.Status)
	assert.Empty(t, ada.CurrentTaskID)

	_, err = store.GetTask(ctx, "missing")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestListTasksDropsStaleFinishedWork(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	old := time.Now().UTC().Add(-2 * time.Hour)
	require.NoError(t, store.CreateTask(ctx, domain.Task{ID: "old", Title: "old", Status: domain.TaskStatusDone, UpdatedAt: old}))
	require.NoError(t, store.CreateTask(ctx, domain.Task{ID: "old-open", Title: "still open", Status: domain.TaskStatusPlanned, UpdatedAt: old}))
	require.NoError(t, store.CreateTask(ctx, domain.Task{ID: "fresh", Title: "fresh", Status: domain.TaskStatusDone}))

	tasks, err := store.ListTasks(ctx)
	require.NoError(t, err)
	ids := make([]string, 0, len(tasks))
	for _, task := range tasks {
		ids = append(ids, task.ID)
	}
	assert.ElementsMatch(t, []string{"old-open", "fresh"}, ids)
}

func TestEventsStayPendingUntilResolved(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	seedOffice(t, store)

	require.NoError(t, store.RecordEvent(ctx, domain.DeliveryEvent{Delivery: domain.CrossDeptDelivery{ID: "d1", FromAgentID: "ada", ToAgentID: "bo"}}))
	require.NoError(t, store.RecordEvent(ctx, domain.MeetingCallEvent{Call: domain.MeetingCall{
		ID: "m1", FromAgentID: "bo", SeatIndex: 2, Phase: domain.MeetingPhaseKickoff, Action: domain.MeetingActionArrive,
	}}))

	snap, err := store.Snapshot(ctx, "en")
	require.NoError(t, err)
	require.Len(t, snap.Deliveries, 1)
	require.Len(t, snap.MeetingCalls, 1)
	assert.Equal(t, "d1", snap.Deliveries[0].ID)
	assert.Equal(t, 2, snap.MeetingCalls[0].SeatIndex)
	assert.Equal(t, "en", snap.Locale)

	pending, err := store.PendingEvents(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, pending)

	require.NoError(t, store.ResolveEvent(ctx, "d1"))
	require.NoError(t, store.ResolveEvent(ctx, "d1"))
	require.ErrorIs(t, store.ResolveEvent(ctx, "nope"), ErrNotFound)

	snap, err = store.Snapshot(ctx, "en")
	require.NoError(t, err)
	assert.Empty(t, snap.Deliveries)
	assert.Len(t, snap.MeetingCalls, 1)
}

func TestRecordEventRejectsSnapshots(t *testing.T) {
	store := newTestStore(t)
	err := store.RecordEvent(context.Background(), domain.SnapshotEvent{})
	require.ErrorIs(t, err, domain.ErrUnknownEventKind)
}

func TestSnapshotCarriesSubAgentsAndUnread(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	seedOffice(t, store)

	require.NoError(t, store.AddSubAgent(ctx, domain.SubAgent{ID: "s1", ParentAgentID: "ada", Task: "lint"}))
	require.NoError(t, store.AddSubAgent(ctx, domain.SubAgent{ID: "s2", ParentAgentID: "ada", Task: "test"}))
	require.NoError(t, store.FinishSubAgent(ctx, "s2"))
	require.NoError(t, store.SetUnread(ctx, "bo", true))
	require.NoError(t, store.SetUnread(ctx, "bo", true))

	snap, err := store.Snapshot(ctx, "ko")
	require.NoError(t, err)
	require.Len(t, snap.SubAgents, 1)
	assert.Equal(t, "s1", snap.SubAgents[0].ID)
	assert.Equal(t, []string{"bo"}, snap.Unread)

	require.NoError(t, store.SetUnread(ctx, "bo", false))
	snap, err = store.Snapshot(ctx, "ko")
	require.NoError(t, err)
	assert.Empty(t, snap.Unread)
}

func findAgent(t *testing.T, agents []domain.Agent, id string) domain.Agent {
	t.Helper()
	for _, a := range agents {
		if a.ID == id {
			return a
		}
	}
	t.Fatalf("agent %s not found", id)
	return domain.Agent{}
}
