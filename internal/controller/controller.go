// Package controller decides when the office scene is rebuilt and when only
// the per-frame ticker runs. Every method must be called from the goroutine
// that owns the scene; asynchronous sources go through Options.Post.
package controller

import (
	"io"
	"log"
	"math"
	"math/rand/v2"
	"time"

	"agent_office/internal/assets"
	"agent_office/internal/choreo"
	"agent_office/internal/clock"
	"agent_office/internal/config"
	"agent_office/internal/domain"
	"agent_office/internal/geom"
	"agent_office/internal/i18n"
	"agent_office/internal/scene"
	"agent_office/internal/ticker"
)

type Direction int

const (
	DirUp Direction = iota
	DirDown
	DirLeft
	DirRight
)

type Callbacks struct {
	OnAgentSelected      func(agentID string)
	OnDepartmentSelected func(departmentID string)
	// OnEventProcessed fires once per consumed delivery or meeting-call id.
	OnEventProcessed func(eventID string)
}

type Options struct {
	Config  config.Scene
	Clock   clock.Clock
	Catalog *i18n.Catalog
	// Post hands f to the scene goroutine. Timers use it; defaults to a
	// direct call, which is only safe when the clock is fake.
	Post   func(f func())
	Logger *log.Logger
	Rand   *rand.Rand
	Width  float64
	Callbacks
}

type Controller struct {
	cfg     config.Scene
	clock   clock.Clock
	post    func(func())
	logger  *log.Logger
	cb      Callbacks
	builder *scene.Builder
	ticker  *ticker.Ticker
	choreo  *choreo.Choreographer
	tracker *scene.AssignmentTracker
	rng     *rand.Rand

	assets      *assets.Registry
	assetsReady bool

	snapshot    domain.Snapshot
	hasSnapshot bool
	locale      string

	scene     *scene.Scene
	ceo       ticker.CeoState
	ceoPlaced bool
	room      int
	frameNo   int

	width       float64
	resizeTimer clock.Timer

	pressed   map[Direction]time.Time
	textFocus bool
	unmounted bool
	rebuilds  int
}

func New(opts Options) *Controller {
	if opts.Clock == nil {
		opts.Clock = clock.Real()
	}
	if opts.Catalog == nil {
		opts.Catalog = i18n.Default()
	}
	if opts.Post == nil {
		opts.Post = func(f func()) { f() }
	}
	if opts.Logger == nil {
		opts.Logger = log.New(io.Discard, "", 0)
	}
	if opts.Rand == nil {
		opts.Rand = rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), 7))
	}
	c := &Controller{
		cfg:     opts.Config,
		clock:   opts.Clock,
		post:    opts.Post,
		logger:  opts.Logger,
		cb:      opts.Callbacks,
		builder: scene.NewBuilder(opts.Config, opts.Catalog),
		ticker:  ticker.New(opts.Config, opts.Rand),
		tracker: scene.NewAssignmentTracker(),
		rng:     opts.Rand,
		width:   opts.Width,
		room:    -1,
		pressed: make(map[Direction]time.Time),
	}
	c.choreo = choreo.New(opts.Config, choreo.Deps{
		Clock:       opts.Clock,
		Catalog:     opts.Catalog,
		Post:        opts.Post,
		OnProcessed: c.processed,
		Logger:      opts.Logger,
	})
	return c
}

// AttachAssets delivers the settled asset batch. The first scene is built
// only once this has happened.
func (c *Controller) AttachAssets(reg *assets.Registry) {
	if c.unmounted {
		return
	}
	c.assets = reg
	c.assetsReady = true
	c.choreo.SetAssets(reg)
	if c.hasSnapshot {
		c.apply()
	}
}

// Update replaces the domain snapshot: full rebuild, then event playback.
func (c *Controller) Update(snap domain.Snapshot) {
	if c.unmounted {
		return
	}
	c.snapshot = snap
	c.hasSnapshot = true
	if c.assetsReady {
		c.apply()
	}
}

// SetLocale overrides the snapshot's locale. A change rebuilds the scene.
func (c *Controller) SetLocale(locale string) {
	if c.unmounted || locale == c.locale {
		return
	}
	c.locale = locale
	if c.ready() {
		c.rebuild()
	}
}

// Resize reports whether the width change was large enough to schedule a
// rebuild. The rebuild itself runs after the debounce interval.
func (c *Controller) Resize(width float64) bool {
	if c.unmounted {
		return false
	}
	if math.Abs(width-c.width) < c.cfg.ResizeThreshold {
		c.cancelResize()
		return false
	}
	c.cancelResize()
	c.resizeTimer = c.clock.AfterFunc(c.cfg.ResizeDebounce.Duration, func() {
		c.post(func() { c.applyResize(width) })
	})
	return true
}

func (c *Controller) applyResize(width float64) {
	if c.unmounted {
		return
	}
	c.resizeTimer = nil
	c.width = width
	if c.ready() {
		c.rebuild()
	}
}

func (c *Controller) cancelResize() {
	if c.resizeTimer != nil {
		c.resizeTimer.Stop()
		c.resizeTimer = nil
	}
}

// Frame runs one animation tick.
func (c *Controller) Frame(now time.Time) {
	if c.unmounted {
		return
	}
	c.frameNo++
	res := c.ticker.Tick(ticker.Frame{
		Scene:  c.scene,
		Choreo: c.choreo,
		Ceo:    &c.ceo,
		Input:  c.input(now),
		Now:    now,
		No:     c.frameNo,
	})
	c.room = res.Room
}

// PressDirection registers a key press. Terminals report no key-up, so a
// direction counts as held for KeyHold after its latest press.
func (c *Controller) PressDirection(d Direction) {
	if c.unmounted || c.textFocus {
		return
	}
	c.pressed[d] = c.clock.Now()
}

func (c *Controller) ReleaseDirection(d Direction) {
	delete(c.pressed, d)
}

func (c *Controller) input(now time.Time) ticker.Input {
	if c.textFocus {
		return ticker.Input{}
	}
	held := func(d Direction) bool {
		at, ok := c.pressed[d]
		return ok && now.Sub(at) < c.cfg.KeyHold.Duration
	}
	return ticker.Input{Up: held(DirUp), Down: held(DirDown), Left: held(DirLeft), Right: held(DirRight)}
}

// Interact selects the department whose room holds the CEO.
func (c *Controller) Interact() bool {
	if c.unmounted || c.textFocus || c.scene == nil {
		return false
	}
	i, ok := c.scene.RoomAt(c.ceo.Pos)
	if !ok {
		return false
	}
	dept := c.scene.Rooms[i].DepartmentID
	if dept == scene.UnassignedDepartmentID {
		return false
	}
	if c.cb.OnDepartmentSelected != nil {
		c.cb.OnDepartmentSelected(dept)
	}
	return true
}

// Click hit-tests agents first, then placards.
func (c *Controller) Click(p geom.Point) bool {
	if c.unmounted || c.scene == nil {
		return false
	}
	if id, ok := c.scene.AgentAt(p); ok {
		if c.cb.OnAgentSelected != nil {
			c.cb.OnAgentSelected(id)
		}
		return true
	}
	if dept, ok := c.scene.PlacardAt(p); ok && dept != scene.UnassignedDepartmentID {
		if c.cb.OnDepartmentSelected != nil {
			c.cb.OnDepartmentSelected(dept)
		}
		return true
	}
	return false
}

// SetTextEntryFocus suppresses keyboard handling while another control
// takes text input.
func (c *Controller) SetTextEntryFocus(focused bool) {
	c.textFocus = focused
	if focused {
		clear(c.pressed)
	}
}

// Unmount abandons pending work. Later asset results and updates are
// dropped.
func (c *Controller) Unmount() {
	if c.unmounted {
		return
	}
	c.unmounted = true
	c.cancelResize()
	c.choreo.Stop()
	c.scene.Dispose()
	c.scene = nil
}

func (c *Controller) Scene() *scene.Scene { return c.scene }
func (c *Controller) Choreographer() *choreo.Choreographer { return c.choreo }
func (c *Controller) Ceo() geom.Point { return c.ceo.Pos }
func (c *Controller) RebuildCount() int { return c.rebuilds }
func (c *Controller) Width() float64 { return c.width }
func (c *Controller) Unmounted() bool { return c.unmounted }

// CurrentRoom is the room index the last frame found the CEO in, or -1.
func (c *Controller) CurrentRoom() int { return c.room }

// Nodes returns everything to draw this frame: scene nodes followed by the
// choreography overlay, both in layer order.
func (c *Controller) Nodes() []*scene.Node {
	out := c.scene.Nodes()
	overlay := make([]*scene.Node, 0)
	for _, n := range c.choreo.Nodes() {
		if !n.Disposed() {
			overlay = append(overlay, n)
		}
	}
	scene.SortByLayer(overlay)
	return append(out, overlay...)
}

func (c *Controller) ready() bool {
	return c.assetsReady && c.hasSnapshot
}

func (c *Controller) apply() {
	c.rebuild()
	s := c.scene
	c.choreo.ObserveDeliveries(c.snapshot.Deliveries, s)
	c.choreo.ObserveMeetings(c.snapshot.MeetingCalls, s)
}

func (c *Controller) rebuild() {
	snap := c.snapshot
	if c.locale != "" {
		snap.Locale = c.locale
	}
	next, handoffs := c.builder.Build(scene.BuildInput{
		Snapshot: snap,
		Width:    c.width,
		Assets:   c.assets,
		Tracker:  c.tracker,
		CeoPos:   c.ceo.Pos,
		Rand:     c.rng,
	})
	if !c.ceoPlaced {
		c.ceo.Pos = next.Layout.CeoStart()
		c.ceoPlaced = true
	}
	b := next.Bounds()
	m := c.cfg.CeoMargin
	c.ceo.Pos.X = geom.Clamp(c.ceo.Pos.X, b.X+m, b.Right()-m)
	c.ceo.Pos.Y = geom.Clamp(c.ceo.Pos.Y, b.Y+m, b.Bottom()-m)
	next.Ceo.Pos = c.ceo.Pos

	c.scene.Dispose()
	c.scene = next
	c.rebuilds++
	if n := c.choreo.Handoffs(handoffs, c.ceo.Pos, next); n > 0 {
		c.logger.Printf("scene: %d task hand-off(s)", n)
	}
}

func (c *Controller) processed(id string) {
	if c.cb.OnEventProcessed != nil {
		c.cb.OnEventProcessed(id)
	}
}
