// Package layout turns department/agent counts and a viewport width into
// office geometry. Compute is a pure function of its inputs.
package layout

import (
	"math"

	"agent_office/internal/config"
	"agent_office/internal/geom"
)

type Room struct {
	Index int
	Rect  geom.Rect
	// Slots are desk anchors, one per agent in snapshot order.
	Slots []geom.Point
}

type Layout struct {
	Width     float64
	Height    float64
	Columns   int
	RoomWidth float64
	RowHeight float64

	Rooms        []Room
	CeoZone      geom.Rect
	MeetingTable geom.Rect
	Seats        []geom.Point
	BreakRoom    geom.Rect

	cfg config.Layout
}

func withDefaults(c config.Layout) config.Layout {
	d := config.Default().Scene.Layout
	if c.MinWidth <= 0 {
		c.MinWidth = d.MinWidth
	}
	if c.Gap < 0 {
		c.Gap = d.Gap
	}
	if c.SlotWidth <= 0 {
		c.SlotWidth = d.SlotWidth
	}
	if c.SlotHeight <= 0 {
		c.SlotHeight = d.SlotHeight
	}
	if c.AgentsPerRow <= 0 {
		c.AgentsPerRow = d.AgentsPerRow
	}
	if c.MaxColumns <= 0 {
		c.MaxColumns = d.MaxColumns
	}
	if c.BreakSpacing <= 0 {
		c.BreakSpacing = d.BreakSpacing
	}
	if c.MeetingSeats <= 0 {
		c.MeetingSeats = d.MeetingSeats
	}
	return c
}

// Compute lays out len(counts) department rooms, where counts[i] is the
// number of agents in department i.
func Compute(counts []int, width float64, cfg config.Layout) Layout {
	cfg = withDefaults(cfg)
	width = math.Max(width, cfg.MinWidth)
	gap := cfg.Gap

	maxCount := 0
	for _, c := range counts {
		if c > maxCount {
			maxCount = c
		}
	}
	gridCols := min(max(maxCount, 1), cfg.AgentsPerRow)
	agentRows := max(1, ceilDiv(maxCount, cfg.AgentsPerRow))
	minRoomWidth := float64(gridCols)*cfg.SlotWidth + 2*cfg.RoomPadding
	rowHeight := cfg.RoomHeader + float64(agentRows)*cfg.SlotHeight + cfg.RoomPadding

	cols := 1
	for c := min(cfg.MaxColumns, 3, max(len(counts), 1)); c >= 1; c-- {
		if float64(c)*minRoomWidth+float64(c+1)*gap <= width {
			cols = c
			break
		}
	}
	roomWidth := (width - float64(cols+1)*gap) / float64(cols)

	l := Layout{
		Width:     width,
		Columns:   cols,
		RoomWidth: roomWidth,
		RowHeight: rowHeight,
		cfg:       cfg,
	}

	l.CeoZone = geom.Rect{X: gap, Y: gap, W: width - 2*gap, H: cfg.CeoZoneHeight}
	l.MeetingTable, l.Seats = meetingTable(l.CeoZone, cfg.MeetingSeats)

	top := l.CeoZone.Bottom() + gap
	l.Rooms = make([]Room, len(counts))
	for i, count := range counts {
		col, row := i%cols, i/cols
		rect := geom.Rect{
			X: gap + float64(col)*(roomWidth+gap),
			Y: top + float64(row)*(rowHeight+gap),
			W: roomWidth,
			H: rowHeight,
		}
		l.Rooms[i] = Room{Index: i, Rect: rect, Slots: deskSlots(rect, count, cfg)}
	}

	roomRows := ceilDiv(len(counts), cols)
	breakTop := top + float64(roomRows)*(rowHeight+gap)
	l.BreakRoom = geom.Rect{X: gap, Y: breakTop, W: width - 2*gap, H: cfg.BreakRoomHeight}
	l.Height = l.BreakRoom.Bottom() + gap
	return l
}

func deskSlots(room geom.Rect, count int, cfg config.Layout) []geom.Point {
	if count <= 0 {
		return nil
	}
	perRow := min(count, cfg.AgentsPerRow)
	slotWidth := math.Min(cfg.SlotWidth, (room.W-2*cfg.RoomPadding)/float64(perRow))
	startX := room.X + (room.W-float64(perRow)*slotWidth)/2

	slots := make([]geom.Point, count)
	for i := range slots {
		c, r := i%cfg.AgentsPerRow, i/cfg.AgentsPerRow
		slots[i] = geom.Point{
			X: startX + float64(c)*slotWidth + slotWidth/2,
			Y: room.Y + cfg.RoomHeader + float64(r)*cfg.SlotHeight + cfg.SlotHeight/2,
		}
	}
	return slots
}

func meetingTable(zone geom.Rect, seats int) (geom.Rect, []geom.Point) {
	w := math.Min(240, zone.W*0.5)
	h := 28.0
	table := geom.Rect{
		X: zone.X + (zone.W-w)/2,
		Y: zone.Y + (zone.H-h)/2,
		W: w,
		H: h,
	}
	perSide := ceilDiv(seats, 2)
	points := make([]geom.Point, seats)
	for k := range points {
		pos := k / 2
		x := table.X + (float64(pos)+0.5)*table.W/float64(perSide)
		y := table.Y - 18
		if k%2 == 1 {
			y = table.Bottom() + 18
		}
		points[k] = geom.Point{X: x, Y: y}
	}
	return table, points
}

// BreakSpot returns the i-th standing spot in the break room. Spots wrap
// onto further rows and are clamped inside the room.
func (l Layout) BreakSpot(i int) geom.Point {
	pad := l.cfg.RoomPadding
	spacing := l.cfg.BreakSpacing
	perRow := max(1, int((l.BreakRoom.W-2*pad)/spacing))
	c, r := i%perRow, i/perRow
	y := l.BreakRoom.Y + l.cfg.RoomHeader + float64(r)*spacing*0.75
	return geom.Point{
		X: l.BreakRoom.X + pad + float64(c)*spacing + spacing/2,
		Y: math.Min(y, l.BreakRoom.Bottom()-pad),
	}
}

// Seat returns the anchor of a meeting seat; ok is false when the index is
// outside the table.
func (l Layout) Seat(index int) (geom.Point, bool) {
	if index < 0 || index >= len(l.Seats) {
		return geom.Point{}, false
	}
	return l.Seats[index], true
}

// CeoStart is where the CEO avatar appears on first mount.
func (l Layout) CeoStart() geom.Point {
	return geom.Point{X: l.CeoZone.X + l.CeoZone.W*0.12, Y: l.CeoZone.Y + l.CeoZone.H/2}
}

func (l Layout) Bounds() geom.Rect {
	return geom.Rect{W: l.Width, H: l.Height}
}

func ceilDiv(a, b int) int {
	if b <= 0 || a <= 0 {
		return 0
	}
	return (a + b - 1) / b
}
