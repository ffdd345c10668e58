package scene

import (
	"fmt"
	"math/rand/v2"
	"sort"
	"strings"

	"agent_office/internal/assets"
	"agent_office/internal/config"
	"agent_office/internal/domain"
	"agent_office/internal/geom"
	"agent_office/internal/i18n"
	"agent_office/internal/layout"
	"agent_office/internal/seed"
)

// UnassignedDepartmentID groups agents whose department is not in the
// snapshot, so every agent still gets a desk.
const UnassignedDepartmentID = "_unassigned"

const (
	colorFloor     = "#2b2d42"
	colorCeoZone   = "#3d2c4f"
	colorBreakRoom = "#2f4f3f"
	colorRoom      = "#34495e"
	colorTable     = "#8d6e63"
	colorDesk      = "#a1887f"
	colorText      = "#ecf0f1"
	colorMuted     = "#95a5a6"
	colorBubble    = "#f7dc6f"
	colorHighlight = "#f1c40f"
	colorUnread    = "#e74c3c"
	colorSubAgent  = "#5dade2"
	defaultAvatar  = "🤖"
	ceoGlyph       = "👔"
	breakGlyph     = "☕"
	unreadGlyph    = "✉"
	subAgentGlyph  = "⚇"
	emptyDeskGlyph = "·"
	deskGlyph      = "▭▭▭"
	seatGlyph      = "▫"
)

var statusGlyphs = map[domain.AgentStatus]string{
	domain.AgentStatusIdle:    "💤",
	domain.AgentStatusWorking: "⚙",
	domain.AgentStatusBreak:   breakGlyph,
	domain.AgentStatusOffline: "⏻",
}

var flavorGlyphs = []string{"🌿", "🪴", "📚", "☕", "🖨"}

type BuildInput struct {
	Snapshot domain.Snapshot
	Width    float64
	Assets   *assets.Registry
	Tracker  *AssignmentTracker
	CeoPos   geom.Point
	// Rand drives cosmetic choices only; placement never depends on it.
	Rand *rand.Rand
}

type Builder struct {
	cfg     config.Scene
	catalog *i18n.Catalog
}

func NewBuilder(cfg config.Scene, catalog *i18n.Catalog) *Builder {
	if catalog == nil {
		catalog = i18n.Default()
	}
	return &Builder{cfg: cfg, catalog: catalog}
}

type deptGroup struct {
	dept   domain.Department
	agents []domain.Agent
}

// Build creates a complete scene from the snapshot. It does not modify its
// inputs apart from advancing the assignment tracker, and returns the
// hand-offs that tracker detected.
func (b *Builder) Build(in BuildInput) (*Scene, []Handoff) {
	rng := in.Rand
	if rng == nil {
		rng = rand.New(rand.NewPCG(1, 2))
	}
	snap := in.Snapshot
	locale := b.catalog.Match(snap.Locale)
	groups := b.groupAgents(snap, locale)

	counts := make([]int, len(groups))
	for i, g := range groups {
		counts[i] = len(g.agents)
	}
	lay := layout.Compute(counts, in.Width, b.cfg.Layout)

	s := &Scene{Layout: lay, Locale: locale, Registry: NewRegistry(), looks: make(map[string]Look)}
	b.buildFloor(s, lay, locale)

	unread := snap.UnreadSet()
	subAgents := activeSubAgents(snap.SubAgents)
	breakIndex := 0
	for i, g := range groups {
		room := lay.Rooms[i]
		b.buildRoom(s, g, room, locale, rng)
		for j, agent := range g.agents {
			slot := room.Slots[j]
			s.Add(&Node{Kind: KindText, Layer: LayerFurniture, Tag: "desk", Pos: slot.Add(0, 14), Text: deskGlyph, Color: colorDesk, Alpha: 1})

			if agent.Status == domain.AgentStatusBreak {
				spot := lay.BreakSpot(breakIndex)
				breakIndex++
				s.Add(&Node{Kind: KindText, Layer: LayerFurniture, Tag: "vacant", Pos: slot, Text: emptyDeskGlyph, Color: colorMuted, Alpha: 1})
				actor := b.buildActor(s, in.Assets, agent, spot, unread[agent.ID], subAgents[agent.ID])
				actor.Extras = append(actor.Extras, s.Add(&Node{Kind: KindText, Layer: LayerEffects, Tag: "status", Pos: spot.Add(14, -14), Text: breakGlyph, Alpha: 1}))
				s.BreakActors = append(s.BreakActors, actor)
				s.Registry.set(agent.ID, Anchor{Point: spot, Role: RoleBreak, DepartmentID: g.dept.ID})
				continue
			}

			actor := b.buildActor(s, in.Assets, agent, slot, unread[agent.ID], subAgents[agent.ID])
			if glyph, ok := statusGlyphs[agent.Status]; ok {
				actor.Extras = append(actor.Extras, s.Add(&Node{Kind: KindText, Layer: LayerEffects, Tag: "status", Pos: slot.Add(14, -14), Text: glyph, Alpha: 1}))
			}
			if task, ok := currentTask(snap, agent); ok {
				title := truncate(task.Title, b.cfg.TaskTitleMax)
				actor.Extras = append(actor.Extras, s.Add(&Node{Kind: KindText, Layer: LayerOverlay, Tag: "task-bubble", Pos: slot.Add(0, -30), Text: "💬 " + title, Color: colorBubble, Alpha: 1}))
			}
			s.Actors = append(s.Actors, actor)
			s.Registry.set(agent.ID, Anchor{Point: slot, Role: RoleDesk, DepartmentID: g.dept.ID})
		}
	}

	s.Ceo = s.Add(SpriteNode(in.Assets, assets.CeoKey, ceoGlyph, in.CeoPos, LayerActors))
	s.Ceo.Tag = "ceo"
	s.Highlight = s.Add(&Node{Kind: KindOutline, Layer: LayerOverlay, Tag: "highlight", Color: colorHighlight, Alpha: 0, Hidden: true})

	var handoffs []Handoff
	if in.Tracker != nil {
		handoffs = in.Tracker.Diff(snap.Tasks)
	}
	return s, handoffs
}

func (b *Builder) groupAgents(snap domain.Snapshot, locale string) []deptGroup {
	depts := append([]domain.Department(nil), snap.Departments...)
	sort.SliceStable(depts, func(i, j int) bool { return depts[i].SortOrder < depts[j].SortOrder })

	index := make(map[string]int, len(depts))
	groups := make([]deptGroup, len(depts))
	for i, d := range depts {
		index[d.ID] = i
		groups[i] = deptGroup{dept: d}
	}
	var orphans []domain.Agent
	for _, a := range snap.Agents {
		if i, ok := index[a.DepartmentID]; ok {
			groups[i].agents = append(groups[i].agents, a)
			continue
		}
		orphans = append(orphans, a)
	}
	if len(orphans) > 0 {
		groups = append(groups, deptGroup{
			dept:   domain.Department{ID: UnassignedDepartmentID, Name: b.catalog.Label(locale, "unassigned"), Icon: "❔"},
			agents: orphans,
		})
	}
	return groups
}

func (b *Builder) buildFloor(s *Scene, lay layout.Layout, locale string) {
	s.Add(&Node{Kind: KindFill, Layer: LayerFloor, Tag: "floor", Rect: lay.Bounds(), Color: colorFloor, Alpha: 1})

	zone := lay.CeoZone
	s.Add(&Node{Kind: KindFill, Layer: LayerFloor, Tag: "ceo-zone", Rect: zone, Color: colorCeoZone, Alpha: 1})
	s.Add(&Node{Kind: KindText, Layer: LayerFurniture, Tag: "label", Pos: geom.Point{X: zone.Center().X, Y: zone.Y + 10}, Text: "👑 " + b.catalog.Label(locale, "ceo_office"), Color: colorText, Alpha: 1})

	table := lay.MeetingTable
	s.Add(&Node{Kind: KindFill, Layer: LayerFurniture, Tag: "meeting-table", Rect: table, Color: colorTable, Alpha: 1})
	s.Add(&Node{Kind: KindText, Layer: LayerFurniture, Tag: "label", Pos: table.Center(), Text: b.catalog.Label(locale, "meeting_table"), Color: colorText, Alpha: 1})
	for _, seat := range lay.Seats {
		s.Add(&Node{Kind: KindText, Layer: LayerFurniture, Tag: "seat", Pos: seat, Text: seatGlyph, Color: colorMuted, Alpha: 1})
	}

	br := lay.BreakRoom
	s.Add(&Node{Kind: KindFill, Layer: LayerFloor, Tag: "break-room", Rect: br, Color: colorBreakRoom, Alpha: 1})
	s.Add(&Node{Kind: KindOutline, Layer: LayerFurniture, Tag: "break-room", Rect: br, Color: colorMuted, Alpha: 1})
	s.Add(&Node{Kind: KindText, Layer: LayerFurniture, Tag: "label", Pos: geom.Point{X: br.Center().X, Y: br.Y + 10}, Text: breakGlyph + " " + b.catalog.Label(locale, "break_room"), Color: colorText, Alpha: 1})
}

func (b *Builder) buildRoom(s *Scene, g deptGroup, room layout.Room, locale string, rng *rand.Rand) {
	rect := room.Rect
	color := g.dept.Color
	if color == "" {
		color = colorRoom
	}
	s.Add(&Node{Kind: KindFill, Layer: LayerFloor, Tag: "room", Rect: rect, Color: color, Alpha: 0.6})
	s.Add(&Node{Kind: KindOutline, Layer: LayerFurniture, Tag: "room", Rect: rect, Color: colorMuted, Alpha: 1})
	s.Rooms = append(s.Rooms, RoomRect{DepartmentID: g.dept.ID, Name: g.dept.Name, Rect: rect})

	label := strings.TrimSpace(g.dept.Icon + " " + g.dept.Name)
	label = fmt.Sprintf("%s (%d)", label, len(g.agents))
	placardRect := geom.Rect{X: rect.X, Y: rect.Y, W: rect.W, H: b.cfg.Layout.RoomHeader}
	node := s.Add(&Node{Kind: KindText, Layer: LayerFurniture, Tag: "placard", Pos: geom.Point{X: rect.Center().X, Y: rect.Y + b.cfg.Layout.RoomHeader/2}, Text: label, Color: colorText, Alpha: 1})
	s.Placards = append(s.Placards, Placard{DepartmentID: g.dept.ID, Rect: placardRect, Node: node})

	// Flavour props: position and choice are cosmetic.
	prop := flavorGlyphs[rng.IntN(len(flavorGlyphs))]
	px := rect.X + 10 + rng.Float64()*nonNegative(rect.W-20)
	s.Add(&Node{Kind: KindText, Layer: LayerFurniture, Tag: "prop", Pos: geom.Point{X: px, Y: rect.Bottom() - 8}, Text: prop, Alpha: 1})

	if len(g.agents) == 0 {
		s.Add(&Node{Kind: KindText, Layer: LayerFurniture, Tag: "empty", Pos: rect.Center(), Text: b.catalog.Label(locale, "empty_department"), Color: colorMuted, Alpha: 1})
	}
}

func (b *Builder) buildActor(s *Scene, reg *assets.Registry, agent domain.Agent, at geom.Point, unread bool, subs int) *Actor {
	glyph := agent.AvatarEmoji
	if glyph == "" {
		glyph = defaultAvatar
	}
	sprite := b.spriteIndex(agent)
	s.looks[agent.ID] = Look{Sprite: sprite, Glyph: glyph}
	node := s.Add(SpriteNode(reg, assets.Key(sprite, assets.DirectionDown, 1), glyph, at, LayerActors))
	node.Tag = "actor"
	if agent.Status == domain.AgentStatusOffline {
		node.Alpha = 0.4
	}

	actor := &Actor{
		AgentID:      agent.ID,
		DepartmentID: agent.DepartmentID,
		Status:       agent.Status,
		Anchor:       at,
		Seed:         seed.Of(agent.ID),
		Node:         node,
		HitRect:      geom.Rect{X: at.X - 20, Y: at.Y - 20, W: 40, H: 44},
	}
	actor.Extras = append(actor.Extras, s.Add(&Node{Kind: KindText, Layer: LayerEffects, Tag: "name", Pos: at.Add(0, 28), Text: agent.Name, Color: colorText, Alpha: 1}))
	if unread {
		actor.Extras = append(actor.Extras, s.Add(&Node{Kind: KindText, Layer: LayerEffects, Tag: "unread", Pos: at.Add(-16, -14), Text: unreadGlyph, Color: colorUnread, Alpha: 1}))
	}
	if subs > 0 {
		actor.Extras = append(actor.Extras, s.Add(&Node{Kind: KindText, Layer: LayerEffects, Tag: "sub-agents", Pos: at.Add(22, 8), Text: fmt.Sprintf("%s%d", subAgentGlyph, subs), Color: colorSubAgent, Alpha: 1}))
	}
	return actor
}

// spriteIndex uses the agent's configured sprite or derives one from its id.
func (b *Builder) spriteIndex(agent domain.Agent) int {
	count := max(b.cfg.SpriteCount, 1)
	if agent.SpriteIndex >= 1 && agent.SpriteIndex <= count {
		return agent.SpriteIndex
	}
	return int(seed.Of(agent.ID)%uint64(count)) + 1
}

func currentTask(snap domain.Snapshot, agent domain.Agent) (domain.Task, bool) {
	if agent.CurrentTaskID != "" {
		if t, ok := snap.TaskByID(agent.CurrentTaskID); ok && t.Status == domain.TaskStatusInProgress {
			return t, true
		}
	}
	for _, t := range snap.Tasks {
		if t.AssignedAgentID == agent.ID && t.Status == domain.TaskStatusInProgress {
			return t, true
		}
	}
	return domain.Task{}, false
}

func activeSubAgents(subs []domain.SubAgent) map[string]int {
	out := make(map[string]int)
	for _, s := range subs {
		if s.Status == "done" || s.ParentAgentID == "" {
			continue
		}
		out[s.ParentAgentID]++
	}
	return out
}

func truncate(s string, limit int) string {
	r := []rune(strings.TrimSpace(s))
	if limit <= 0 || len(r) <= limit {
		return string(r)
	}
	return string(r[:limit-1]) + "…"
}

func nonNegative(v float64) float64 {
	if v < 0 {
		return 0
	}
	return v
}
