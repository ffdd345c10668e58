package scene

import (
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"agent_office/internal/assets"
	"agent_office/internal/config"
	"agent_office/internal/domain"
	"agent_office/internal/i18n"
)

func testSnapshot() domain.Snapshot {
	return domain.Snapshot{
		Locale: "en",
		Departments: []domain.Department{
			{ID: "dev", Name: "Development", SortOrder: 2},
			{ID: "design", Name: "Design", SortOrder: 1},
		},
		Agents: []domain.Agent{
			{ID: "ada", Name: "Ada", DepartmentID: "dev", Status: domain.AgentStatusWorking, CurrentTaskID: "t1"},
			{ID: "bo", Name: "Bo", DepartmentID: "design", Status: domain.AgentStatusIdle},
			{ID: "cy", Name: "Cy", DepartmentID: "dev", Status: domain.AgentStatusBreak},
		},
		Tasks: []domain.Task{
			{ID: "t1", Title: "Ship the login page redesign", AssignedAgentID: "ada", Status: domain.TaskStatusInProgress},
		},
	}
}

func newTestBuilder() *Builder {
	return NewBuilder(config.Default().Scene, i18n.Default())
}

func TestBuildRegistersEveryAgent(t *testing.T) {
	b := newTestBuilder()
	s, _ := b.Build(BuildInput{Snapshot: testSnapshot(), Width: 800})

	require.Equal(t, 3, s.Registry.Len())
	assert.Equal(t, []string{"ada", "bo"}, s.Registry.InRole(RoleDesk))
	assert.Equal(t, []string{"cy"}, s.Registry.InRole(RoleBreak))

	cy, ok := s.Registry.Lookup("cy")
	require.True(t, ok)
	assert.True(t, s.Layout.BreakRoom.Contains(cy.Point))
	assert.Equal(t, "dev", cy.DepartmentID)

	require.Len(t, s.Rooms, 2)
	assert.Equal(t, "design", s.Rooms[0].DepartmentID)
	assert.Equal(t, "dev", s.Rooms[1].DepartmentID)

	ada, ok := s.Registry.Lookup("ada")
	require.True(t, ok)
	assert.True(t, s.Rooms[1].Rect.Contains(ada.Point))
}

func TestBuildIsDeterministic(t *testing.T) {
	b := newTestBuilder()
	a, _ := b.Build(BuildInput{Snapshot: testSnapshot(), Width: 800, Rand: rand.New(rand.NewPCG(1, 2))})
	c, _ := b.Build(BuildInput{Snapshot: testSnapshot(), Width: 800, Rand: rand.New(rand.NewPCG(99, 7))})

	for _, id := range a.Registry.IDs() {
		pa, _ := a.Registry.Lookup(id)
		pc, ok := c.Registry.Lookup(id)
		require.True(t, ok)
		assert.Equal(t, pa, pc, "anchor for %s", id)
	}
}

func TestOrphansGetUnassignedRoom(t *testing.T) {
	snap := testSnapshot()
	snap.Agents = append(snap.Agents, domain.Agent{ID: "zed", Name: "Zed", DepartmentID: "gone"})

	s, _ := newTestBuilder().Build(BuildInput{Snapshot: snap, Width: 800})
	require.Len(t, s.Rooms, 3)
	assert.Equal(t, UnassignedDepartmentID, s.Rooms[2].DepartmentID)
	zed, ok := s.Registry.Lookup("zed")
	require.True(t, ok)
	assert.Equal(t, UnassignedDepartmentID, zed.DepartmentID)
}

func TestActorFallsBackToGlyphWithoutAssets(t *testing.T) {
	snap := testSnapshot()
	snap.Agents[1].AvatarEmoji = "🦊"

	s, _ := newTestBuilder().Build(BuildInput{Snapshot: snap, Width: 800})
	for _, a := range s.Actors {
		assert.Nil(t, a.Node.Texture)
		assert.NotEmpty(t, a.Node.Text)
	}
	look, ok := s.Look("bo")
	require.True(t, ok)
	assert.Equal(t, "🦊", look.Glyph)
}

func TestActorUsesLoadedTexture(t *testing.T) {
	snap := testSnapshot()
	snap.Agents[0].SpriteIndex = 2
	reg := assets.NewRegistry()
	reg.Put(assets.NewTexture(assets.Key(2, assets.DirectionDown, 1), " o \n/|\\\n/ \\"))

	s, _ := newTestBuilder().Build(BuildInput{Snapshot: snap, Width: 800, Assets: reg})
	var found bool
	for _, a := range s.Actors {
		if a.AgentID == "ada" {
			found = true
			require.NotNil(t, a.Node.Texture)
			assert.Equal(t, 3, a.Node.Texture.Height)
		}
	}
	assert.True(t, found)
}

func TestTaskBubbleIsTruncated(t *testing.T) {
	s, _ := newTestBuilder().Build(BuildInput{Snapshot: testSnapshot(), Width: 800})
	var bubble *Node
	for _, n := range s.Nodes() {
		if n.Tag == "task-bubble" {
			bubble = n
		}
	}
	require.NotNil(t, bubble)
	limit := config.Default().Scene.TaskTitleMax
	assert.LessOrEqual(t, len([]rune(bubble.Text)), limit+2)
	assert.Contains(t, bubble.Text, "…")
}

func TestHandoffsAfterFirstBuild(t *testing.T) {
	b := newTestBuilder()
	tracker := NewAssignmentTracker()
	snap := testSnapshot()

	_, first := b.Build(BuildInput{Snapshot: snap, Width: 800, Tracker: tracker})
	assert.Empty(t, first)

	snap.Tasks = append(snap.Tasks, domain.Task{ID: "t2", Title: "Icons", AssignedAgentID: "bo", Status: domain.TaskStatusInProgress})
	_, second := b.Build(BuildInput{Snapshot: snap, Width: 800, Tracker: tracker})
	require.Len(t, second, 1)
	assert.Equal(t, Handoff{TaskID: "t2", AgentID: "bo", Title: "Icons"}, second[0])

	_, third := b.Build(BuildInput{Snapshot: snap, Width: 800, Tracker: tracker})
	assert.Empty(t, third)
}

func TestReassignmentIsAHandoff(t *testing.T) {
	tracker := NewAssignmentTracker()
	tasks := []domain.Task{{ID: "t1", AssignedAgentID: "ada", Status: domain.TaskStatusInProgress}}
	assert.Empty(t, tracker.Diff(tasks))

	tasks[0].AssignedAgentID = "bo"
	got := tracker.Diff(tasks)
	require.Len(t, got, 1)
	assert.Equal(t, "bo", got[0].AgentID)

	tasks[0].Status = domain.TaskStatusReview
	assert.Empty(t, tracker.Diff(tasks))
}

func TestHitTesting(t *testing.T) {
	s, _ := newTestBuilder().Build(BuildInput{Snapshot: testSnapshot(), Width: 800})

	bo, _ := s.Registry.Point("bo")
	id, ok := s.AgentAt(bo)
	require.True(t, ok)
	assert.Equal(t, "bo", id)

	placard := s.Placards[1].Rect
	dept, ok := s.PlacardAt(placard.Center())
	require.True(t, ok)
	assert.Equal(t, "dev", dept)

	i, ok := s.RoomAt(s.Rooms[0].Rect.Center())
	require.True(t, ok)
	assert.Equal(t, 0, i)

	_, ok = s.RoomAt(s.Layout.CeoZone.Center())
	assert.False(t, ok)
}

func TestDisposeAndSweep(t *testing.T) {
	s, _ := newTestBuilder().Build(BuildInput{Snapshot: testSnapshot(), Width: 800})
	before := len(s.Nodes())
	require.NotZero(t, before)

	extra := s.Add(&Node{Kind: KindText, Layer: LayerEffects, Text: "x", Alpha: 1})
	assert.Len(t, s.Nodes(), before+1)
	extra.Dispose()
	s.Sweep()
	assert.Len(t, s.Nodes(), before)

	s.Dispose()
	assert.Empty(t, s.Nodes())
}

func TestNodesAreLayerOrdered(t *testing.T) {
	s, _ := newTestBuilder().Build(BuildInput{Snapshot: testSnapshot(), Width: 800})
	nodes := s.Nodes()
	for i := 1; i < len(nodes); i++ {
		assert.LessOrEqual(t, int(nodes[i-1].Layer), int(nodes[i].Layer))
	}
}
