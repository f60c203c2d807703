package planner

import (
	"encoding/json"
	"errors"
	"math"
	"testing"
	"time"

	"pomplan/internal/eventbus"
	"pomplan/internal/optimize"
	"pomplan/internal/period"
	logx "pomplan/pkg/logx"
)

type clock struct{ t time.Time }

func (c *clock) now() time.Time { return c.t }

var day1 = time.Date(2024, 3, 30, 8, 0, 0, 0, time.UTC)

func newTestPlanner(t *testing.T, bus eventbus.Bus) (*Planner, *clock) {
	t.Helper()
	c := &clock{t: day1}
	s := DefaultSettings()
	s.Location = time.UTC
	p := New(s, logx.Nop(), bus,
		WithClock(c.now),
		WithRand(1),
		WithOptimizeOptions(optimize.Options{MaxIterations: 50}),
	)
	return p, c
}

func window(start time.Time, d time.Duration) period.Interval { return period.New(start, start.Add(d)) }

func TestInsertTaskSchedulesInsideActiveWindow(t *testing.T) {
	t.Parallel()
	p, _ := newTestPlanner(t, nil)
	if err := p.InsertTask("report", Task{Name: "Report", Prio: 1, Window: window(day1, 48*time.Hour), Estimated: 2 * time.Hour}); err != nil {
		t.Fatalf("InsertTask: %v", err)
	}
	if got := p.Occupancy()["report"]; got != 5 {
		t.Fatalf("occupancy = %d, want 5", got)
	}
	if u := p.Unsatisfied(); len(u) != 0 {
		t.Fatalf("unsatisfied = %v", u)
	}
	if err := p.Check(); err != nil {
		t.Fatal(err)
	}
	for _, e := range p.Plan() {
		if h := e.At.Hour(); h < 9 || h >= 17 {
			t.Fatalf("slot at %v outside 09:00-17:00", e.At)
		}
		if e.State == nil || !e.State.IsWork() {
			t.Fatalf("slot at %v has state %v", e.At, e.State)
		}
	}
	plan := p.Plan()
	if !plan[0].At.Equal(time.Date(2024, 3, 30, 9, 0, 0, 0, time.UTC)) || plan[0].TaskID != "report" || plan[0].Name != "Report" {
		t.Fatalf("first plan entry = %+v", plan[0])
	}
}

func TestInsertTaskRejectsInvalid(t *testing.T) {
	t.Parallel()
	p, _ := newTestPlanner(t, nil)
	if err := p.InsertTask(" ", Task{Window: window(day1, time.Hour)}); !errors.Is(err, ErrInvalidTask) {
		t.Fatalf("empty id: %v", err)
	}
	bad := Task{Window: period.New(day1.Add(time.Hour), day1)}
	if err := p.InsertTask("x", bad); !errors.Is(err, ErrInvalidTask) {
		t.Fatalf("reversed window: %v", err)
	}
}

func TestInsertTaskCoversFarWorkingPeriod(t *testing.T) {
	t.Parallel()
	p, _ := newTestPlanner(t, nil)
	start := day1.AddDate(0, 0, 120)
	if err := p.InsertTask("far", Task{Prio: 1, Window: window(start, 24*time.Hour), Estimated: time.Hour}); err != nil {
		t.Fatalf("InsertTask: %v", err)
	}
	if u := p.Unsatisfied(); len(u) != 0 {
		t.Fatalf("unsatisfied = %v", u)
	}
	if got := p.Occupancy()["far"]; got != 3 {
		t.Fatalf("occupancy = %d, want 3", got)
	}
	for _, e := range p.Plan() {
		if e.TaskID == "far" && e.At.Before(start) {
			t.Fatalf("slot %v before working period", e.At)
		}
	}
}

func TestInsertTaskHugeEstimateIsUnsatisfied(t *testing.T) {
	t.Parallel()
	p, _ := newTestPlanner(t, nil)
	if err := p.InsertTask("huge", Task{Prio: 1, Window: window(day1, 24*time.Hour), Estimated: time.Duration(math.MaxInt64)}); err != nil {
		t.Fatalf("InsertTask: %v", err)
	}
	if u := p.Unsatisfied(); len(u) != 1 || u[0] != "huge" {
		t.Fatalf("unsatisfied = %v, want [huge]", u)
	}
}

func TestHousekeepingStopsAtHorizon(t *testing.T) {
	t.Parallel()
	c := &clock{t: day1}
	s := DefaultSettings()
	s.Location = time.UTC
	s.Horizon = 48 * time.Hour
	p := New(s, logx.Nop(), nil, WithClock(c.now), WithRand(1))

	// A restored task with no timeline yet.
	end := day1.AddDate(0, 0, 10)
	p.Import(State{Tasks: map[string]Task{"far": {Prio: 1, Window: period.New(day1, end), Estimated: 40 * time.Hour}}})

	limit := day1.Add(s.Horizon)
	p.Housekeeping()
	for _, e := range p.Plan() {
		if !e.At.Before(limit) {
			t.Fatalf("housekeeping opened slot %v past horizon %v", e.At, limit)
		}
	}
	if u := p.Unsatisfied(); len(u) != 1 || u[0] != "far" {
		t.Fatalf("unsatisfied = %v, want [far]", u)
	}

	// Reschedule covers the whole working period.
	p.Reschedule()
	plan := p.Plan()
	if len(plan) == 0 {
		t.Fatal("reschedule opened no slots")
	}
	if last := plan[len(plan)-1].At; !last.After(day1.AddDate(0, 0, 9)) {
		t.Fatalf("reschedule stopped early; last slot %v", last)
	}
	if u := p.Unsatisfied(); len(u) != 0 {
		t.Fatalf("unsatisfied after reschedule = %v", u)
	}
}

func TestRemoveTaskFreesSlots(t *testing.T) {
	t.Parallel()
	p, _ := newTestPlanner(t, nil)
	_ = p.InsertTask("a", Task{Prio: 1, Window: window(day1, 24*time.Hour), Estimated: time.Hour})
	if err := p.RemoveTask("a"); err != nil {
		t.Fatalf("RemoveTask: %v", err)
	}
	for _, e := range p.Plan() {
		if e.TaskID != "" {
			t.Fatalf("slot %v still held by %q", e.At, e.TaskID)
		}
	}
	if err := p.RemoveTask("a"); !errors.Is(err, ErrUnknownTask) {
		t.Fatalf("second remove: %v", err)
	}
}

func TestLogWorkShrinksRequirement(t *testing.T) {
	t.Parallel()
	p, _ := newTestPlanner(t, nil)
	_ = p.InsertTask("a", Task{Prio: 1, Window: window(day1, 24*time.Hour), Estimated: 2 * time.Hour})

	rem, err := p.LogWork("a", time.Hour)
	if err != nil || rem != time.Hour {
		t.Fatalf("LogWork = %v, %v", rem, err)
	}
	if got := p.Occupancy()["a"]; got != 3 {
		t.Fatalf("occupancy after 1h = %d, want 3", got)
	}

	rem, _ = p.LogWork("a", 5*time.Hour)
	if rem != 0 {
		t.Fatalf("remaining = %v, want 0", rem)
	}
	if task, _ := p.Task("a"); task.Worked != 2*time.Hour {
		t.Fatalf("worked = %v, want clamp to 2h", task.Worked)
	}
	if got := p.Occupancy()["a"]; got != 0 {
		t.Fatalf("occupancy after finishing = %d", got)
	}
	if _, err := p.LogWork("missing", time.Minute); !errors.Is(err, ErrUnknownTask) {
		t.Fatalf("unknown task: %v", err)
	}
}

func TestPriorityWinsNarrowWindow(t *testing.T) {
	t.Parallel()
	p, _ := newTestPlanner(t, nil)
	w := window(time.Date(2024, 3, 30, 9, 0, 0, 0, time.UTC), time.Hour)
	_ = p.InsertTask("low", Task{Prio: 1, Window: w, Estimated: 50 * time.Minute})
	_ = p.InsertTask("high", Task{Prio: 3, Window: w, Estimated: 50 * time.Minute})

	occ := p.Occupancy()
	if occ["high"] != 2 || occ["low"] != 0 {
		t.Fatalf("occupancy = %v", occ)
	}
	if u := p.Unsatisfied(); len(u) != 1 || u[0] != "low" {
		t.Fatalf("unsatisfied = %v", u)
	}
}

func TestHousekeepingExpiresThePast(t *testing.T) {
	t.Parallel()
	p, c := newTestPlanner(t, nil)
	_ = p.InsertTask("a", Task{Prio: 1, Window: window(day1, 72*time.Hour), Estimated: 3 * time.Hour})

	c.t = day1.Add(26 * time.Hour) // 10:00 on day two
	if u := p.Housekeeping(); len(u) != 0 {
		t.Fatalf("unsatisfied = %v", u)
	}
	for _, e := range p.Plan() {
		if e.At.Add(25 * time.Minute).Before(c.t) {
			t.Fatalf("expired slot %v kept", e.At)
		}
	}
	for _, e := range p.TimelineEntries() {
		if !e.Interval.End.After(c.t) {
			t.Fatalf("expired entry %v kept", e.Interval)
		}
	}
	if got := p.Occupancy()["a"]; got != 8 {
		t.Fatalf("occupancy = %d, want 8", got)
	}
}

func TestRescheduleRebuildsFromNow(t *testing.T) {
	t.Parallel()
	p, c := newTestPlanner(t, nil)
	_ = p.InsertTask("a", Task{Prio: 1, Window: window(day1, 48*time.Hour), Estimated: time.Hour})

	c.t = time.Date(2024, 3, 30, 13, 7, 0, 0, time.UTC)
	p.Reschedule()
	plan := p.Plan()
	if len(plan) == 0 || !plan[0].At.Equal(c.t) {
		t.Fatalf("first slot after reschedule = %+v", plan)
	}
	if got := p.Occupancy()["a"]; got != 3 {
		t.Fatalf("occupancy = %d", got)
	}
}

func TestCurrent(t *testing.T) {
	t.Parallel()
	p, _ := newTestPlanner(t, nil)
	_ = p.InsertTask("a", Task{Prio: 1, Window: window(day1, 24*time.Hour), Estimated: time.Hour})

	cur, ok := p.Current(time.Date(2024, 3, 30, 9, 10, 0, 0, time.UTC))
	if !ok || !cur.Entry.State.IsWork() || cur.TaskID != "a" {
		t.Fatalf("Current(09:10) = %+v, %v", cur, ok)
	}
	cur, ok = p.Current(time.Date(2024, 3, 30, 9, 27, 0, 0, time.UTC))
	if !ok || cur.Entry.State.IsWork() || cur.TaskID != "" {
		t.Fatalf("Current(09:27) = %+v, %v", cur, ok)
	}
	if _, ok := p.Current(day1); ok {
		t.Fatal("nothing is scheduled before the active window")
	}
}

func TestOptimizeKeepsInvariantsAndPublishes(t *testing.T) {
	t.Parallel()
	bus := eventbus.New()
	ch, unsub := bus.Subscribe(64)
	defer unsub()

	p, _ := newTestPlanner(t, bus)
	_ = p.InsertTask("a", Task{Prio: 1, Window: window(day1, 24*time.Hour), Estimated: 2 * time.Hour})
	_ = p.InsertTask("b", Task{Prio: 2, Window: window(day1, 24*time.Hour), Estimated: 2 * time.Hour})
	before := p.Occupancy()

	strat, err := optimize.Lookup("hyperfocus")
	if err != nil {
		t.Fatal(err)
	}
	res := p.Optimize(strat, time.Minute)
	if res.Iterations != 50 {
		t.Fatalf("iterations = %d", res.Iterations)
	}
	if err := p.Check(); err != nil {
		t.Fatal(err)
	}
	after := p.Occupancy()
	if after["a"] != before["a"] || after["b"] != before["b"] {
		t.Fatalf("occupancy %v -> %v", before, after)
	}

	var solved, optimized int
	for len(ch) > 0 {
		switch e := <-ch; e.Type {
		case eventbus.TypePlanSolved:
			solved++
		case eventbus.TypePlanOptimized:
			optimized++
			if e.Data.(eventbus.OptimizedEvent).Strategy != "hyperfocus" {
				t.Fatalf("event = %+v", e.Data)
			}
		}
	}
	if solved != 2 || optimized != 1 {
		t.Fatalf("solved=%d optimized=%d", solved, optimized)
	}
}

func TestExportImportRoundTrip(t *testing.T) {
	t.Parallel()
	p, _ := newTestPlanner(t, nil)
	_ = p.InsertTask("a", Task{Name: "A", Prio: 2, Window: window(day1, 24*time.Hour), Estimated: time.Hour, RemoteID: "r-1"})
	_ = p.InsertTask("b", Task{Name: "B", Prio: 1, Window: window(day1, 48*time.Hour), Estimated: 90 * time.Minute, Worked: 10 * time.Minute})

	raw, err := json.Marshal(p.Export())
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var st State
	if err := json.Unmarshal(raw, &st); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	q, _ := newTestPlanner(t, nil)
	q.Import(st)

	pp, qp := p.Plan(), q.Plan()
	if len(pp) != len(qp) {
		t.Fatalf("plan lengths %d vs %d", len(pp), len(qp))
	}
	for i := range pp {
		if !pp[i].At.Equal(qp[i].At) || pp[i].TaskID != qp[i].TaskID {
			t.Fatalf("slot %d: %+v vs %+v", i, pp[i], qp[i])
		}
	}
	if got, _ := q.Task("a"); got.RemoteID != "r-1" || got.Name != "A" {
		t.Fatalf("task a = %+v", got)
	}
	if len(q.TimelineEntries()) != len(p.TimelineEntries()) {
		t.Fatal("timeline lost in round trip")
	}
}

func TestTaskNormalize(t *testing.T) {
	t.Parallel()
	tests := []struct {
		in, want Task
	}{
		{Task{Estimated: time.Hour, Worked: 2 * time.Hour}, Task{Estimated: time.Hour, Worked: time.Hour}},
		{Task{Estimated: time.Hour, Worked: -time.Minute}, Task{Estimated: time.Hour}},
		{Task{Estimated: -time.Hour}, Task{}},
	}
	for _, tt := range tests {
		if got := tt.in.Normalize(); got != tt.want {
			t.Fatalf("Normalize(%+v) = %+v, want %+v", tt.in, got, tt.want)
		}
	}
}
