package ticker

import (
	"math/rand/v2"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"agent_office/internal/config"
	"agent_office/internal/domain"
	"agent_office/internal/geom"
	"agent_office/internal/i18n"
	"agent_office/internal/scene"
)

func buildScene(t *testing.T, cfg config.Scene) *scene.Scene {
	t.Helper()
	snap := domain.Snapshot{
		Locale: "en",
		Departments: []domain.Department{
			{ID: "dev", Name: "Development", SortOrder: 1},
			{ID: "ops", Name: "Operations", SortOrder: 2},
		},
		Agents: []domain.Agent{
			{ID: "ada", Name: "Ada", DepartmentID: "dev", Status: domain.AgentStatusWorking},
			{ID: "bo", Name: "Bo", DepartmentID: "ops", Status: domain.AgentStatusBreak},
		},
	}
	s, _ := scene.NewBuilder(cfg, i18n.Default()).Build(scene.BuildInput{Snapshot: snap, Width: 900})
	return s
}

func newTicker(cfg config.Scene) *Ticker {
	return New(cfg, rand.New(rand.NewPCG(7, 11)))
}

func TestInputVector(t *testing.T) {
	dx, dy := Input{Left: true, Right: true, Down: true}.Vector()
	assert.Equal(t, 0.0, dx)
	assert.Equal(t, 1.0, dy)
}

func TestCeoMovesAndStaysInBounds(t *testing.T) {
	cfg := config.Default().Scene
	s := buildScene(t, cfg)
	tk := newTicker(cfg)
	ceo := &CeoState{Pos: s.Layout.CeoStart()}

	start := ceo.Pos
	tk.Tick(Frame{Scene: s, Ceo: ceo, Input: Input{Right: true}, Now: time.Now(), No: 1})
	assert.InDelta(t, start.X+cfg.CeoSpeed, ceo.Pos.X, 1e-9)
	assert.Equal(t, ceo.Pos, s.Ceo.Pos)
	assert.False(t, s.Ceo.Mirror)

	tk.Tick(Frame{Scene: s, Ceo: ceo, Input: Input{Left: true}, Now: time.Now(), No: 2})
	assert.True(t, s.Ceo.Mirror)

	for i := 0; i < 2000; i++ {
		tk.Tick(Frame{Scene: s, Ceo: ceo, Input: Input{Up: true, Left: true}, Now: time.Now(), No: i})
	}
	b := s.Bounds()
	assert.InDelta(t, b.X+cfg.CeoMargin, ceo.Pos.X, 1e-9)
	assert.InDelta(t, b.Y+cfg.CeoMargin, ceo.Pos.Y, 1e-9)
}

func TestDiagonalIsNormalised(t *testing.T) {
	cfg := config.Default().Scene
	s := buildScene(t, cfg)
	tk := newTicker(cfg)
	start := geom.Point{X: 300, Y: 300}
	ceo := &CeoState{Pos: start}

	tk.Tick(Frame{Scene: s, Ceo: ceo, Input: Input{Down: true, Right: true}, No: 1})
	dx, dy := ceo.Pos.X-start.X, ceo.Pos.Y-start.Y
	assert.InDelta(t, cfg.CeoSpeed*cfg.CeoSpeed, dx*dx+dy*dy, 1e-9)
}

func TestHighlightFollowsRoom(t *testing.T) {
	cfg := config.Default().Scene
	s := buildScene(t, cfg)
	tk := newTicker(cfg)

	ceo := &CeoState{Pos: s.Rooms[1].Rect.Center()}
	res := tk.Tick(Frame{Scene: s, Ceo: ceo, No: 3})
	assert.Equal(t, 1, res.Room)
	assert.False(t, s.Highlight.Hidden)
	assert.Equal(t, s.Rooms[1].Rect, s.Highlight.Rect)
	assert.GreaterOrEqual(t, s.Highlight.Alpha, 0.2)
	assert.LessOrEqual(t, s.Highlight.Alpha, 1.0)

	ceo.Pos = s.Layout.CeoZone.Center()
	res = tk.Tick(Frame{Scene: s, Ceo: ceo, No: 4})
	assert.Equal(t, -1, res.Room)
	assert.True(t, s.Highlight.Hidden)
}

func TestBreakActorsSway(t *testing.T) {
	cfg := config.Default().Scene
	s := buildScene(t, cfg)
	tk := newTicker(cfg)
	require.Len(t, s.BreakActors, 1)
	a := s.BreakActors[0]

	for frame := 1; frame <= 200; frame++ {
		tk.Tick(Frame{Scene: s, No: frame})
		assert.InDelta(t, a.Anchor.X, a.Node.Pos.X, cfg.SwayAmplitude+1e-9)
		assert.Equal(t, a.Anchor.Y, a.Node.Pos.Y)
	}
}

func TestWorkingActorsEmitParticlesThatExpire(t *testing.T) {
	cfg := config.Default().Scene
	cfg.ParticleChance = 1
	cfg.ParticleCadence = 1
	cfg.ParticleMaxAge = 5
	s := buildScene(t, cfg)
	tk := newTicker(cfg)
	require.Len(t, s.Actors, 1)
	a := s.Actors[0]

	tk.Tick(Frame{Scene: s, No: 1})
	require.Len(t, a.Particles, 1)
	first := a.Particles[0].Node
	y0 := first.Pos.Y

	tk.Tick(Frame{Scene: s, No: 2})
	assert.Less(t, first.Pos.Y, y0)
	assert.Less(t, first.Alpha, 1.0)

	for frame := 3; frame <= 12; frame++ {
		tk.Tick(Frame{Scene: s, No: frame})
	}
	assert.True(t, first.Disposed())
	assert.LessOrEqual(t, len(a.Particles), cfg.ParticleMaxAge+1)
}

func TestNilSceneOnlyAdvancesChoreography(t *testing.T) {
	tk := newTicker(config.Default().Scene)
	res := tk.Tick(Frame{No: 1})
	assert.Equal(t, -1, res.Room)
}
