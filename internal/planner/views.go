package planner

import (
	"maps"
	"time"

	"pomplan/internal/cadence"
	"pomplan/internal/schedule"
	"pomplan/internal/timeline"
)

// PlanEntry is one slot with its occupant and the cadence state it falls in.
type PlanEntry struct {
	At     time.Time `json:"at"`
	TaskID string    `json:"task,omitempty"`
	Name   string    `json:"name,omitempty"`
	// State is nil when the timeline no longer covers the slot.
	State *cadence.State `json:"state,omitempty"`
}

// Current is what should be happening at an instant.
type Current struct {
	Entry  timeline.Entry `json:"entry"`
	TaskID string         `json:"task,omitempty"`
}

func (p *Planner) Tasks() map[string]Task {
	p.mu.Lock()
	defer p.mu.Unlock()
	return maps.Clone(p.sched.Tasks)
}

func (p *Planner) Task(id string) (Task, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	t, ok := p.sched.Tasks[id]
	return t, ok
}

// Plan lists every slot in time order.
func (p *Planner) Plan() []PlanEntry {
	p.mu.Lock()
	defer p.mu.Unlock()
	slots := p.sched.Slots.All()
	out := make([]PlanEntry, 0, len(slots))
	for _, sl := range slots {
		e := PlanEntry{At: sl.At, TaskID: sl.TaskID}
		if entry, ok := p.log.At(sl.At); ok {
			st := entry.State
			e.State = &st
		}
		if t, ok := p.sched.Tasks[sl.TaskID]; ok {
			e.Name = t.Name
		}
		out = append(out, e)
	}
	return out
}

// Current reports the timeline entry covering now and, during work, the task
// assigned to it.
func (p *Planner) Current(now time.Time) (Current, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	entry, ok := p.log.At(now)
	if !ok {
		return Current{}, false
	}
	c := Current{Entry: entry}
	if entry.State.IsWork() {
		c.TaskID, _ = p.sched.Slots.Get(entry.Interval.Start)
	}
	return c, true
}

func (p *Planner) Unsatisfied() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.sched.UnsatisfiedTasks()
}

func (p *Planner) TimelineEntries() []timeline.Entry {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.log.All()
}

// Occupancy counts slots per task.
func (p *Planner) Occupancy() map[string]int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.sched.Occupancy()
}

// Check verifies the structural invariants of the current plan.
func (p *Planner) Check() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.sched.CheckContainment(); err != nil {
		return err
	}
	return p.sched.CheckCapacity()
}

// State is the persistent part of a Planner.
type State struct {
	Tasks    map[string]Task `json:"tasks"`
	Slots    schedule.Slots  `json:"slots"`
	Timeline timeline.Log    `json:"timeline"`
}

// Export snapshots the planner.
func (p *Planner) Export() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	var log timeline.Log
	for _, e := range p.log.All() {
		log.Append(e)
	}
	return State{
		Tasks:    maps.Clone(p.sched.Tasks),
		Slots:    p.sched.Slots.Clone(),
		Timeline: log,
	}
}

// Import replaces the planner contents with st and re-solves.
func (p *Planner) Import(st State) []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	tasks := make(map[string]Task, len(st.Tasks))
	for id, t := range st.Tasks {
		if id != "" {
			tasks[id] = t.Normalize()
		}
	}
	p.sched.Tasks = tasks
	p.sched.Slots = st.Slots.Clone()
	p.log = timeline.Log{}
	for _, e := range st.Timeline.All() {
		p.log.Append(e)
	}
	p.log.Sort()
	return p.solveLocked()
}
