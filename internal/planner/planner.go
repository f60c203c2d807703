// Package planner ties the cadence, timeline, and scheduling engine into one
// stateful object. Every mutation extends the timeline as needed and re-runs
// the scheduler, so callers only ever observe a solved plan.
package planner

import (
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"sync"
	"time"

	"pomplan/internal/cadence"
	"pomplan/internal/eventbus"
	"pomplan/internal/optimize"
	"pomplan/internal/schedule"
	"pomplan/internal/timeline"
	logx "pomplan/pkg/logx"
)

var (
	ErrUnknownTask = errors.New("planner: unknown task")
	ErrInvalidTask = errors.New("planner: invalid task")
)

// Schedule is the engine instantiation the planner works on.
type Schedule = schedule.Schedule[Task, uint32]

// Settings are the cadence and calendar knobs.
type Settings struct {
	Timeslice     time.Duration
	ShortBreak    time.Duration
	LongBreak     time.Duration
	BreakInterval uint32
	Active        timeline.ActiveWindow
	// Location defaults to time.Local.
	Location *time.Location
	// Horizon caps how far past now a housekeeping pass extends the timeline.
	// Inserts and Reschedule always cover the full working period. Zero means
	// 90 days.
	Horizon time.Duration
}

// DefaultSettings: 25 minute slices, 5 minute breaks, a 30 minute break
// every 4 slices, 09:00-17:00.
func DefaultSettings() Settings {
	d := cadence.DefaultDurations()
	return Settings{
		Timeslice:     d.Work,
		ShortBreak:    d.ShortBreak,
		LongBreak:     d.LongBreak,
		BreakInterval: 4,
		Active:        timeline.DefaultActiveWindow(),
	}
}

func (s Settings) horizon() time.Duration {
	if s.Horizon > 0 {
		return s.Horizon
	}
	return 90 * 24 * time.Hour
}

type Option func(*Planner)

// WithClock replaces time.Now for every time-dependent decision.
func WithClock(now func() time.Time) Option { return func(p *Planner) { p.now = now } }

// WithRand seeds the shuffle randomness.
func WithRand(seed int64) Option {
	return func(p *Planner) { p.rng = rand.New(rand.NewSource(seed)) }
}

// WithOptimizeOptions sets the options passed to the optimizer.
func WithOptimizeOptions(o optimize.Options) Option { return func(p *Planner) { p.opt = o } }

// Planner is safe for concurrent use.
type Planner struct {
	mu       sync.Mutex
	settings Settings
	sched    *Schedule
	log      timeline.Log

	now    func() time.Time
	rng    *rand.Rand
	opt    optimize.Options
	logger logx.Logger
	bus    eventbus.Bus
}

func New(settings Settings, log logx.Logger, bus eventbus.Bus, opts ...Option) *Planner {
	if log.IsZero() {
		log = logx.Nop()
	}
	p := &Planner{
		settings: settings,
		sched:    schedule.New[Task, uint32](settings.Timeslice),
		now:      time.Now,
		rng:      rand.New(rand.NewSource(time.Now().UnixNano())),
		logger:   log,
		bus:      bus,
	}
	for _, o := range opts {
		o(p)
	}
	return p
}

// Settings returns the active settings.
func (p *Planner) Settings() Settings {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.settings
}

// Apply switches to new settings and re-solves. Existing slots and timeline
// entries are kept; use Reschedule to rebuild them.
func (p *Planner) Apply(settings Settings) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.settings = settings
	p.sched.TimesliceLength = settings.Timeslice
	p.solveLocked()
}

func (p *Planner) generator() timeline.Generator {
	s := p.settings
	return timeline.Generator{
		Durations:     cadence.Durations{Work: s.Timeslice, ShortBreak: s.ShortBreak, LongBreak: s.LongBreak},
		BreakInterval: s.BreakInterval,
		Active:        s.Active,
		Location:      s.Location,
		Now:           p.now,
	}
}

// CreateSlotsUpTo extends the timeline until it covers t and returns the
// number of slots opened.
func (p *Planner) CreateSlotsUpTo(t time.Time) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.createSlotsUpToLocked(t)
}

func (p *Planner) createSlotsUpToLocked(t time.Time) int {
	n := p.generator().CreateSlotsUpTo(&p.log, p.sched, t)
	if n > 0 {
		p.logger.Debug("slots opened", logx.Int("count", n), logx.Time("until", t))
	}
	return n
}

// InsertTask adds or replaces the task under id and re-solves.
func (p *Planner) InsertTask(id string, t Task) error {
	id = strings.TrimSpace(id)
	if id == "" {
		return fmt.Errorf("%w: empty id", ErrInvalidTask)
	}
	if t.Window.End.Before(t.Window.Start) {
		return fmt.Errorf("%w: %q ends before it starts", ErrInvalidTask, id)
	}
	t = t.Normalize()

	p.mu.Lock()
	defer p.mu.Unlock()
	p.createSlotsUpToLocked(t.Window.End)
	_, replaced := p.sched.Tasks[id]
	p.sched.Tasks[id] = t
	p.logger.Info("task inserted",
		logx.String("id", id),
		logx.String("name", t.Name),
		logx.Bool("replaced", replaced),
		logx.Duration("remaining", t.Remaining()),
	)
	p.solveLocked()
	return nil
}

// RemoveTask deletes the task, frees its slots, and re-solves.
func (p *Planner) RemoveTask(id string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.sched.Tasks[id]; !ok {
		return fmt.Errorf("%w: %q", ErrUnknownTask, id)
	}
	freed := p.sched.Slots.Release(id)
	delete(p.sched.Tasks, id)
	p.logger.Info("task removed", logx.String("id", id), logx.Int("freed", freed))
	p.solveLocked()
	return nil
}

// LogWork credits d of effort to the task, clamped to its estimate, and
// re-solves. It returns the remaining effort.
func (p *Planner) LogWork(id string, d time.Duration) (time.Duration, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	t, ok := p.sched.Tasks[id]
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrUnknownTask, id)
	}
	t.Worked += d
	t = t.Normalize()
	p.sched.Tasks[id] = t
	p.logger.Info("work logged", logx.String("id", id), logx.Duration("worked", d), logx.Duration("remaining", t.Remaining()))
	p.solveLocked()
	return t.Remaining(), nil
}

// Housekeeping extends the timeline to the latest working period end, drops
// elapsed slots and timeline entries, and re-solves.
func (p *Planner) Housekeeping() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	now := p.now()
	if id, end, ok := p.latestEndLocked(); ok {
		if limit := now.Add(p.settings.horizon()); end.After(limit) {
			p.logger.Warn("housekeeping horizon reached; timeline not extended to working period end",
				logx.String("task", id),
				logx.Time("working_period_end", end),
				logx.Time("horizon_end", limit),
			)
			end = limit
		}
		p.createSlotsUpToLocked(end)
	}
	slots := p.sched.RemoveOldSlots(now)
	entries := p.log.Prune(now)
	p.logger.Debug("housekeeping", logx.Int("expired_slots", slots), logx.Int("expired_entries", entries))
	return p.solveLocked()
}

// Reschedule throws away every slot and timeline entry and rebuilds them from
// now, then re-solves.
func (p *Planner) Reschedule() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.sched.Slots.Clear()
	p.log.Clear()
	if _, end, ok := p.latestEndLocked(); ok {
		p.createSlotsUpToLocked(end)
	}
	p.logger.Info("timeline rebuilt", logx.Int("slots", p.sched.Slots.Len()))
	return p.solveLocked()
}

// latestEndLocked is the task whose working period ends last. Ties go to
// the smaller ID.
func (p *Planner) latestEndLocked() (string, time.Time, bool) {
	var (
		id    string
		end   time.Time
		found bool
	)
	for tid, t := range p.sched.Tasks {
		if !found || t.Window.End.After(end) || (t.Window.End.Equal(end) && tid < id) {
			id, end, found = tid, t.Window.End, true
		}
	}
	return id, end, found
}

// ShuffleMaximizing hill-climbs the current plan against obj for budget and
// commits the best layout found.
func (p *Planner) ShuffleMaximizing(obj optimize.Objective[*Schedule], budget time.Duration) optimize.Result[*Schedule] {
	p.mu.Lock()
	defer p.mu.Unlock()
	next := func(s *Schedule) *Schedule {
		c := s.Clone()
		c.Shuffle(p.rng)
		return c
	}
	res := optimize.ShuffleMaximizing(p.sched, next, obj, budget, p.opt)
	p.sched = res.Best
	return res
}

// Optimize runs ShuffleMaximizing with a named strategy scored relative to now.
func (p *Planner) Optimize(strategy optimize.Strategy, budget time.Duration) optimize.Result[*Schedule] {
	now := p.clock()
	res := p.ShuffleMaximizing(func(s *Schedule) float64 {
		return strategy.Score(s.Slots.All(), now)
	}, budget)
	p.logger.Info("plan optimized",
		logx.String("strategy", strategy.Name),
		logx.Float64("score", res.Score),
		logx.Int("iterations", res.Iterations),
	)
	p.publish(eventbus.TypePlanOptimized, eventbus.OptimizedEvent{
		Strategy:   strategy.Name,
		Score:      res.Score,
		Iterations: res.Iterations,
	})
	return res
}

func (p *Planner) clock() time.Time {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.now()
}

func (p *Planner) solveLocked() []string {
	unsat := p.sched.Schedule()
	if len(unsat) > 0 {
		p.logger.Debug("plan solved with unsatisfied tasks", logx.Strings("unsatisfied", unsat))
	}
	p.publish(eventbus.TypePlanSolved, eventbus.SolvedEvent{
		Unsatisfied: unsat,
		Slots:       p.sched.Slots.Len(),
		Tasks:       len(p.sched.Tasks),
	})
	return unsat
}

func (p *Planner) publish(typ string, data any) {
	if p.bus == nil {
		return
	}
	p.bus.Publish(eventbus.Event{Type: typ, Time: p.now(), Data: data})
}
