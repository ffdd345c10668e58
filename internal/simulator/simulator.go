// Package simulator keeps a demo office busy: agents pick up and finish
// tasks, hand work across departments, take lunch and get called into
// executive meetings.
package simulator

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"

	"agent_office/internal/domain"
)

type Store interface {
	ListAgents(ctx context.Context) ([]domain.Agent, error)
	ListTasks(ctx context.Context) ([]domain.Task, error)
	SetAgentStatus(ctx context.Context, agentID string, status domain.AgentStatus) error
	CreateTask(ctx context.Context, task domain.Task) error
	AssignTask(ctx context.Context, taskID, agentID string) error
	UpdateTaskStatus(ctx context.Context, taskID string, status domain.TaskStatus) error
	AddSubAgent(ctx context.Context, sub domain.SubAgent) error
	FinishSubAgent(ctx context.Context, id string) error
	SetUnread(ctx context.Context, agentID string, unread bool) error
	RecordEvent(ctx context.Context, ev domain.Event) error
}

type Publisher interface {
	Publish(ev domain.Event) error
}

var ErrEmptyOffice = errors.New("office has no agents")

// cronParser accepts standard 5-field expressions.
var cronParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

type Config struct {
	Interval      time.Duration
	BreakSchedule string
	BreakLength   time.Duration
	MeetingSeats  int
	// SpeakDelay separates a meeting's arrivals from its speeches so the
	// attendees are seated before they talk.
	SpeakDelay time.Duration
}

func (c Config) withDefaults() Config {
	if c.Interval <= 0 {
		c.Interval = 3 * time.Second
	}
	if c.BreakLength <= 0 {
		c.BreakLength = 20 * time.Second
	}
	if c.MeetingSeats <= 0 {
		c.MeetingSeats = 6
	}
	if c.SpeakDelay <= 0 {
		c.SpeakDelay = 7 * time.Second
	}
	return c
}

type Service struct {
	store  Store
	pub    Publisher
	cfg    Config
	logger *log.Logger

	mu  sync.Mutex
	rng *rand.Rand

	wg   sync.WaitGroup
	cron *cron.Cron
}

func New(store Store, pub Publisher, cfg Config, logger *log.Logger) *Service {
	if logger == nil {
		logger = log.Default()
	}
	return &Service{
		store:  store,
		pub:    pub,
		cfg:    cfg.withDefaults(),
		logger: logger,
		rng:    rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), 42)),
	}
}

// WithRand replaces the random source; tests use it for repeatable runs.
func (s *Service) WithRand(rng *rand.Rand) *Service {
	s.rng = rng
	return s
}

func (s *Service) Start(ctx context.Context) error {
	if s.cfg.BreakSchedule != "" {
		sched, err := cronParser.Parse(s.cfg.BreakSchedule)
		if err != nil {
			return fmt.Errorf("parse break schedule %q: %w", s.cfg.BreakSchedule, err)
		}
		s.cron = cron.New(cron.WithParser(cronParser))
		s.cron.Schedule(sched, cron.FuncJob(func() {
			if err := s.LunchBreak(ctx); err != nil {
				s.logger.Printf("lunch break error: %v", err)
			}
		}))
		s.cron.Start()
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.churnLoop(ctx)
	}()
	return nil
}

// Wait stops the scheduler, then blocks until background work has drained.
func (s *Service) Wait() {
	if s.cron != nil {
		<-s.cron.Stop().Done()
	}
	s.wg.Wait()
}

// after runs fn once d has elapsed, unless ctx ends first.
func (s *Service) after(ctx context.Context, d time.Duration, fn func(context.Context)) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		t := time.NewTimer(d)
		defer t.Stop()
		select {
		case <-ctx.Done():
			return
		case <-t.C:
		}
		fn(ctx)
	}()
}

func (s *Service) churnLoop(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := s.Step(ctx); err != nil && !errors.Is(err, ErrEmptyOffice) {
				s.logger.Printf("simulator step error: %v", err)
			}
		}
	}
}

type action func(ctx context.Context, agents []domain.Agent) error

// Step performs one random change to the office.
func (s *Service) Step(ctx context.Context) error {
	agents, err := s.store.ListAgents(ctx)
	if err != nil {
		return err
	}
	if len(agents) == 0 {
		return ErrEmptyOffice
	}
	actions := []struct {
		weight int
		run    action
	}{
		{4, s.assignWork},
		{3, s.finishWork},
		{2, s.deliverAcross},
		{1, s.toggleUnread},
		{1, s.spawnSubAgent},
		{1, s.flipPresence},
		{1, func(ctx context.Context, _ []domain.Agent) error { return s.CallMeeting(ctx) }},
	}
	total := 0
	for _, a := range actions {
		total += a.weight
	}
	pick := s.intN(total)
	for _, a := range actions {
		if pick < a.weight {
			return a.run(ctx, agents)
		}
		pick -= a.weight
	}
	return nil
}

func (s *Service) assignWork(ctx context.Context, agents []domain.Agent) error {
	free := filter(agents, func(a domain.Agent) bool {
		return a.Status == domain.AgentStatusIdle && a.CurrentTaskID == ""
	})
	if len(free) == 0 {
		return nil
	}
	agent := free[s.intN(len(free))]
	task := domain.Task{
		ID:           uuid.NewString(),
		Title:        taskTitles[s.intN(len(taskTitles))],
		DepartmentID: agent.DepartmentID,
		Status:       domain.TaskStatusPlanned,
	}
	if err := s.store.CreateTask(ctx, task); err != nil {
		return err
	}
	if err := s.store.AssignTask(ctx, task.ID, agent.ID); err != nil {
		return err
	}
	s.logger.Printf("simulator assigned task=%s agent=%s", task.ID, agent.ID)
	s.notify(domain.SnapshotEvent{})
	return nil
}

func (s *Service) finishWork(ctx context.Context, _ []domain.Agent) error {
	tasks, err := s.store.ListTasks(ctx)
	if err != nil {
		return err
	}
	active := make([]domain.Task, 0)
	for _, t := range tasks {
		if t.Status == domain.TaskStatusInProgress {
			active = append(active, t)
		}
	}
	if len(active) == 0 {
		return nil
	}
	task := active[s.intN(len(active))]
	next := domain.TaskStatusReview
	if s.intN(2) == 0 {
		next = domain.TaskStatusDone
	}
	if err := s.store.UpdateTaskStatus(ctx, task.ID, next); err != nil {
		return err
	}
	s.notify(domain.SnapshotEvent{})
	return nil
}

// deliverAcross records a hand-off between two agents in different
// departments.
func (s *Service) deliverAcross(ctx context.Context, agents []domain.Agent) error {
	present := filter(agents, func(a domain.Agent) bool { return a.Status != domain.AgentStatusOffline })
	if len(present) < 2 {
		return nil
	}
	from := present[s.intN(len(present))]
	others := filter(present, func(a domain.Agent) bool {
		return a.ID != from.ID && a.DepartmentID != from.DepartmentID
	})
	if len(others) == 0 {
		return nil
	}
	to := others[s.intN(len(others))]
	ev := domain.DeliveryEvent{Delivery: domain.CrossDeptDelivery{ID: uuid.NewString(), FromAgentID: from.ID, ToAgentID: to.ID}}
	if err := s.store.RecordEvent(ctx, ev); err != nil {
		return err
	}
	s.notify(ev)
	return nil
}

func (s *Service) toggleUnread(ctx context.Context, agents []domain.Agent) error {
	agent := agents[s.intN(len(agents))]
	if err := s.store.SetUnread(ctx, agent.ID, s.intN(2) == 0); err != nil {
		return err
	}
	s.notify(domain.SnapshotEvent{})
	return nil
}

func (s *Service) spawnSubAgent(ctx context.Context, agents []domain.Agent) error {
	working := filter(agents, func(a domain.Agent) bool { return a.Status == domain.AgentStatusWorking })
	if len(working) == 0 {
		return nil
	}
	parent := working[s.intN(len(working))]
	sub := domain.SubAgent{ID: uuid.NewString(), ParentAgentID: parent.ID, Task: "research", Status: "working"}
	if err := s.store.AddSubAgent(ctx, sub); err != nil {
		return err
	}
	time.AfterFunc(s.cfg.Interval*3, func() {
		if ctx.Err() != nil {
			return
		}
		if err := s.store.FinishSubAgent(ctx, sub.ID); err != nil {
			s.logger.Printf("finish sub-agent %s: %v", sub.ID, err)
			return
		}
		s.notify(domain.SnapshotEvent{})
	})
	s.notify(domain.SnapshotEvent{})
	return nil
}

func (s *Service) flipPresence(ctx context.Context, agents []domain.Agent) error {
	candidates := filter(agents, func(a domain.Agent) bool {
		return a.Status == domain.AgentStatusIdle || a.Status == domain.AgentStatusOffline
	})
	if len(candidates) == 0 {
		return nil
	}
	agent := candidates[s.intN(len(candidates))]
	next := domain.AgentStatusOffline
	if agent.Status == domain.AgentStatusOffline {
		next = domain.AgentStatusIdle
	}
	if err := s.store.SetAgentStatus(ctx, agent.ID, next); err != nil {
		return err
	}
	s.notify(domain.SnapshotEvent{})
	return nil
}

// LunchBreak sends every idle agent to the break room and brings them back
// after BreakLength.
func (s *Service) LunchBreak(ctx context.Context) error {
	agents, err := s.store.ListAgents(ctx)
	if err != nil {
		return err
	}
	idle := filter(agents, func(a domain.Agent) bool { return a.Status == domain.AgentStatusIdle })
	for _, a := range idle {
		if err := s.store.SetAgentStatus(ctx, a.ID, domain.AgentStatusBreak); err != nil {
			return err
		}
	}
	if len(idle) == 0 {
		return nil
	}
	s.logger.Printf("simulator lunch break agents=%d", len(idle))
	s.notify(domain.SnapshotEvent{})

	s.after(ctx, s.cfg.BreakLength, func(ctx context.Context) {
		if err := s.EndBreak(ctx); err != nil {
			s.logger.Printf("end break error: %v", err)
		}
	})
	return nil
}

func (s *Service) EndBreak(ctx context.Context) error {
	agents, err := s.store.ListAgents(ctx)
	if err != nil {
		return err
	}
	changed := false
	for _, a := range agents {
		if a.Status != domain.AgentStatusBreak {
			continue
		}
		if err := s.store.SetAgentStatus(ctx, a.ID, domain.AgentStatusIdle); err != nil {
			return err
		}
		changed = true
	}
	if changed {
		s.notify(domain.SnapshotEvent{})
		return nil
	}
	return nil
}

// CallMeeting seats one agent per department (up to the seat count) at the
// executive table. Once SpeakDelay has passed each of them says a line.
func (s *Service) CallMeeting(ctx context.Context) error {
	agents, err := s.store.ListAgents(ctx)
	if err != nil {
		return err
	}
	seen := make(map[string]bool)
	var attendees []domain.Agent
	for _, a := range agents {
		if a.Status == domain.AgentStatusOffline || seen[a.DepartmentID] {
			continue
		}
		seen[a.DepartmentID] = true
		attendees = append(attendees, a)
		if len(attendees) == s.cfg.MeetingSeats {
			break
		}
	}
	if len(attendees) == 0 {
		return nil
	}
	phases := []domain.MeetingPhase{domain.MeetingPhaseKickoff, domain.MeetingPhaseReview, domain.MeetingPhaseClosing}
	phase := phases[s.intN(len(phases))]

	arrivals := make([]domain.MeetingCall, 0, len(attendees))
	speeches := make([]domain.MeetingCall, 0, len(attendees))
	for i, a := range attendees {
		arrivals = append(arrivals, domain.MeetingCall{ID: uuid.NewString(), FromAgentID: a.ID, SeatIndex: i, Phase: phase, Action: domain.MeetingActionArrive})
		speeches = append(speeches, domain.MeetingCall{ID: uuid.NewString(), FromAgentID: a.ID, Phase: phase, Action: domain.MeetingActionSpeak})
	}
	if err := s.recordCalls(ctx, arrivals); err != nil {
		return err
	}
	s.logger.Printf("simulator meeting phase=%s attendees=%d", phase, len(attendees))

	s.after(ctx, s.cfg.SpeakDelay, func(ctx context.Context) {
		if err := s.recordCalls(ctx, speeches); err != nil {
			s.logger.Printf("meeting speeches error: %v", err)
		}
	})
	return nil
}

func (s *Service) recordCalls(ctx context.Context, calls []domain.MeetingCall) error {
	for _, c := range calls {
		ev := domain.MeetingCallEvent{Call: c}
		if err := s.store.RecordEvent(ctx, ev); err != nil {
			return err
		}
		s.notify(ev)
	}
	return nil
}

func (s *Service) notify(ev domain.Event) {
	if s.pub == nil {
		return
	}
	if err := s.pub.Publish(ev); err != nil {
		s.logger.Printf("publish %s: %v", ev.Kind(), err)
	}
}

func (s *Service) intN(n int) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rng.IntN(n)
}

func filter(agents []domain.Agent, keep func(domain.Agent) bool) []domain.Agent {
	out := make([]domain.Agent, 0, len(agents))
	for _, a := range agents {
		if keep(a) {
			out = append(out, a)
		}
	}
	return out
}

var taskTitles = []string{
	"Quarterly roadmap draft",
	"Fix onboarding checklist",
	"Competitor pricing sweep",
	"Refactor billing export",
	"Prepare launch notes",
	"Audit access policies",
	"Customer interview synthesis",
	"Benchmark search latency",
}
