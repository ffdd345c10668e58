package choreo

import (
	"log"
	"strings"
	"time"

	"github.com/google/uuid"

	"agent_office/internal/assets"
	"agent_office/internal/clock"
	"agent_office/internal/config"
	"agent_office/internal/domain"
	"agent_office/internal/geom"
	"agent_office/internal/i18n"
	"agent_office/internal/scene"
	"agent_office/internal/seed"
)

const (
	documentGlyph = "📄"
	parcelGlyph   = "📦"
	bubbleColor   = "#fdfefe"
	bubbleLift    = -26
)

// Bubble is a floating speech line. It expires on the clock, not on the
// frame ticker.
type Bubble struct {
	EventID string
	AgentID string
	Text    string
	Node    *scene.Node

	// owner is the walker the bubble rides above, if the agent was moving
	// when it spoke.
	owner   *Delivery
	timer   clock.Timer
	expired bool
}

func (b *Bubble) Expired() bool { return b.expired }

type Deps struct {
	Clock   clock.Clock
	Catalog *i18n.Catalog
	// Post runs f on the goroutine that owns the scene. Defaults to calling
	// f directly.
	Post        func(f func())
	OnProcessed func(eventID string)
	Logger      *log.Logger
}

type Choreographer struct {
	cfg     config.Scene
	profile Profile
	clock   clock.Clock
	catalog *i18n.Catalog
	post    func(func())
	onDone  func(string)
	logger  *log.Logger
	assets  *assets.Registry

	queue   Queue
	bubbles []*Bubble

	// Append-only; ids are unique per session.
	doneDeliveries map[string]struct{}
	doneMeetings   map[string]struct{}
}

func New(cfg config.Scene, deps Deps) *Choreographer {
	if deps.Clock == nil {
		deps.Clock = clock.Real()
	}
	if deps.Catalog == nil {
		deps.Catalog = i18n.Default()
	}
	if deps.Post == nil {
		deps.Post = func(f func()) { f() }
	}
	if deps.OnProcessed == nil {
		deps.OnProcessed = func(string) {}
	}
	if deps.Logger == nil {
		deps.Logger = log.Default()
	}
	return &Choreographer{
		cfg:            cfg,
		profile:        ProfileFrom(cfg),
		clock:          deps.Clock,
		catalog:        deps.Catalog,
		post:           deps.Post,
		onDone:         deps.OnProcessed,
		logger:         deps.Logger,
		doneDeliveries: make(map[string]struct{}),
		doneMeetings:   make(map[string]struct{}),
	}
}

func (c *Choreographer) SetAssets(reg *assets.Registry) {
	c.assets = reg
}

func (c *Choreographer) Queue() *Queue {
	return &c.queue
}

func (c *Choreographer) DeliveryProcessed(id string) bool {
	_, ok := c.doneDeliveries[id]
	return ok
}

func (c *Choreographer) MeetingProcessed(id string) bool {
	_, ok := c.doneMeetings[id]
	return ok
}

// ObserveDeliveries plays each cross-department delivery not seen before.
// The whole list is redelivered on every update; ids already processed are
// skipped. It returns the number of entities spawned.
func (c *Choreographer) ObserveDeliveries(events []domain.CrossDeptDelivery, s *scene.Scene) int {
	spawned := 0
	for _, ev := range events {
		if err := ev.Validate(); err != nil {
			c.logger.Printf("ignore delivery: %v", err)
			continue
		}
		if _, done := c.doneDeliveries[ev.ID]; done {
			continue
		}
		if c.spawnDelivery(ev, s) {
			spawned++
		}
		c.markDelivery(ev.ID)
	}
	return spawned
}

func (c *Choreographer) spawnDelivery(ev domain.CrossDeptDelivery, s *scene.Scene) bool {
	from, okFrom := s.Registry.Point(ev.FromAgentID)
	to, okTo := s.Registry.Point(ev.ToAgentID)
	if !okFrom || !okTo {
		c.logger.Printf("drop delivery id=%s: agent not placed from=%t to=%t", ev.ID, okFrom, okTo)
		return false
	}
	d := c.walker(s, ev.FromAgentID, from, to)
	d.EventID = ev.ID
	d.Extras = append(d.Extras, &scene.Node{Kind: scene.KindText, Layer: scene.LayerEffects, Tag: "parcel", Pos: from.Add(10, -6), Text: parcelGlyph, Alpha: 0})
	c.queue.Add(d)
	return true
}

// ObserveMeetings applies each executive-meeting call not seen before.
func (c *Choreographer) ObserveMeetings(calls []domain.MeetingCall, s *scene.Scene) int {
	spawned := 0
	for _, call := range calls {
		if err := call.Validate(); err != nil {
			// Left unmarked so a corrected redelivery can still play.
			c.logger.Printf("ignore meeting call: %v", err)
			continue
		}
		if _, done := c.doneMeetings[call.ID]; done {
			continue
		}
		var ok bool
		switch call.Action {
		case domain.MeetingActionArrive:
			ok = c.arrive(call, s)
		case domain.MeetingActionSpeak:
			ok = c.speak(call, s)
		case domain.MeetingActionDismiss:
			ok = c.queue.DisposeAgent(call.FromAgentID) > 0
		}
		if ok {
			spawned++
		}
		c.markMeeting(call.ID)
	}
	return spawned
}

func (c *Choreographer) arrive(call domain.MeetingCall, s *scene.Scene) bool {
	from, ok := s.Registry.Point(call.FromAgentID)
	if !ok {
		c.logger.Printf("drop meeting call id=%s: agent %s not placed", call.ID, call.FromAgentID)
		return false
	}
	seat, ok := s.Layout.Seat(call.SeatIndex)
	if !ok {
		c.logger.Printf("drop meeting call id=%s: no seat %d", call.ID, call.SeatIndex)
		return false
	}
	// A newer call supersedes whatever this agent was doing.
	c.queue.DisposeAgent(call.FromAgentID)

	d := c.walker(s, call.FromAgentID, from, seat)
	d.EventID = call.ID
	d.AgentID = call.FromAgentID
	d.Hold = c.cfg.MeetingHold.Duration
	c.queue.Add(d)
	return true
}

func (c *Choreographer) speak(call domain.MeetingCall, s *scene.Scene) bool {
	var at geom.Point
	owner, moving := c.queue.ForAgent(call.FromAgentID)
	if moving {
		at = owner.Position()
	} else if p, ok := s.Registry.Point(call.FromAgentID); ok {
		at = p
	} else {
		c.logger.Printf("drop meeting speech id=%s: agent %s not placed", call.ID, call.FromAgentID)
		return false
	}

	text := strings.TrimSpace(call.Line)
	if text == "" {
		text = c.catalog.Pick(s.Locale, string(call.Phase), seed.Of(call.FromAgentID, call.ID))
	}
	b := &Bubble{
		EventID: call.ID,
		AgentID: call.FromAgentID,
		Text:    text,
		Node:    &scene.Node{Kind: scene.KindText, Layer: scene.LayerOverlay, Tag: "speech", Pos: at.Add(0, bubbleLift), Text: "💬 " + text, Color: bubbleColor, Alpha: 1},
	}
	if moving {
		b.owner = owner
	}
	b.timer = c.clock.AfterFunc(c.cfg.SpeechTimeout.Duration, func() {
		c.post(func() { c.expire(b) })
	})
	c.bubbles = append(c.bubbles, b)
	return true
}

func (c *Choreographer) expire(b *Bubble) {
	if b.expired {
		return
	}
	b.expired = true
	b.Node.Dispose()
	live := c.bubbles[:0]
	for _, other := range c.bubbles {
		if other != b {
			live = append(live, other)
		}
	}
	c.bubbles = live
}

func (c *Choreographer) Bubbles() []*Bubble {
	return append([]*Bubble(nil), c.bubbles...)
}

// Handoffs throws a document from the CEO to each new assignee.
func (c *Choreographer) Handoffs(handoffs []scene.Handoff, from geom.Point, s *scene.Scene) int {
	spawned := 0
	for _, h := range handoffs {
		to, ok := s.Registry.Point(h.AgentID)
		if !ok {
			continue
		}
		c.queue.Add(&Delivery{
			ID:    uuid.NewString(),
			Node:  &scene.Node{Kind: scene.KindText, Layer: scene.LayerEffects, Tag: "document", Pos: from, Text: documentGlyph, Alpha: 1},
			From:  from,
			To:    to,
			Speed: c.cfg.ThrowSpeed,
			Kind:  MotionArcThrow,
		})
		spawned++
	}
	return spawned
}

// Advance steps every live entity by one frame.
func (c *Choreographer) Advance(now time.Time, frame int) {
	c.queue.Advance(now, frame, c.profile)
	for _, b := range c.bubbles {
		if b.owner == nil {
			continue
		}
		if b.owner.State() == StateDisposed {
			// Keep the last spot; the bubble's own timer removes it.
			b.owner = nil
			continue
		}
		b.Node.Pos = b.owner.Position().Add(0, bubbleLift)
	}
}

// Nodes lists every node the choreography layer draws on top of the scene.
func (c *Choreographer) Nodes() []*scene.Node {
	out := c.queue.Nodes()
	for _, b := range c.bubbles {
		out = append(out, b.Node)
	}
	return out
}

// Stop cancels pending bubble timers and drops all entities.
func (c *Choreographer) Stop() {
	for _, b := range c.bubbles {
		if b.timer != nil {
			b.timer.Stop()
		}
		b.Node.Dispose()
	}
	c.bubbles = nil
	c.queue.Clear()
}

func (c *Choreographer) walker(s *scene.Scene, agentID string, from, to geom.Point) *Delivery {
	glyph := "🚶"
	var frames []*assets.Texture
	if look, ok := s.Look(agentID); ok {
		glyph = look.Glyph
		// Walk frames are drawn facing right and mirrored for leftward walks.
		for f := 1; f <= assets.FramesPerDirection; f++ {
			if t, ok := c.assets.Lookup(assets.Key(look.Sprite, assets.DirectionRight, f)); ok {
				frames = append(frames, &t)
			}
		}
		if len(frames) < assets.FramesPerDirection {
			frames = nil
		}
	}
	node := &scene.Node{Kind: scene.KindSprite, Layer: scene.LayerEffects, Tag: "walker", Pos: from, Text: glyph, Alpha: 0}
	if len(frames) > 0 {
		node.Texture = frames[0]
	}
	return &Delivery{
		ID:     uuid.NewString(),
		Node:   node,
		From:   from,
		To:     to,
		Speed:  c.cfg.WalkSpeed,
		Kind:   MotionLinearWalk,
		frames: frames,
	}
}

func (c *Choreographer) markDelivery(id string) {
	c.doneDeliveries[id] = struct{}{}
	c.onDone(id)
}

func (c *Choreographer) markMeeting(id string) {
	c.doneMeetings[id] = struct{}{}
	c.onDone(id)
}
