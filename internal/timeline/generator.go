package timeline

import (
	"time"

	"pomplan/internal/cadence"
	"pomplan/internal/period"
)

// SlotOpener receives the start of every work entry the generator creates.
type SlotOpener interface {
	OpenSlot(at time.Time)
}

// ActiveWindow is the local-time part of each day slots may be created in,
// [Start, End).
type ActiveWindow struct {
	Start period.TimeOfDay
	End   period.TimeOfDay
}

// DefaultActiveWindow is 09:00-17:00.
func DefaultActiveWindow() ActiveWindow {
	return ActiveWindow{Start: period.TimeOfDay{Hour: 9}, End: period.TimeOfDay{Hour: 17}}
}

// Generator extends a Log day by day. All durations must be positive and
// BreakInterval at least 1.
type Generator struct {
	Durations     cadence.Durations
	BreakInterval uint32
	Active        ActiveWindow
	// Location is the zone the active window is evaluated in. Nil means time.Local.
	Location *time.Location
	// Now defaults to time.Now.
	Now func() time.Time
}

func (g Generator) now() time.Time {
	if g.Now != nil {
		return g.Now()
	}
	return time.Now()
}

func (g Generator) loc() *time.Location {
	if g.Location != nil {
		return g.Location
	}
	return time.Local
}

// CreateSlotsUpTo appends entries from the later of now and the end of the
// last entry until the log covers target. Work entries also open a slot at
// their start. Whenever the cursor leaves the active window it jumps to the
// next day's start and the cadence restarts from LongBreak. It returns the
// number of slots opened.
func (g Generator) CreateSlotsUpTo(log *Log, slots SlotOpener, target time.Time) int {
	cursor := g.now()
	state := cadence.LongBreak()
	if last, ok := log.Last(); ok {
		if last.Interval.End.After(cursor) {
			cursor = last.Interval.End
		}
		state = last.State
		if !sameDay(last.Interval.End.In(g.loc()), cursor.In(g.loc())) {
			state = cadence.LongBreak()
		}
	}
	var reset bool
	if cursor, reset = g.clamp(cursor); reset {
		state = cadence.LongBreak()
	}

	opened := 0
	for cursor.Before(target) {
		state = state.Tick(g.BreakInterval)
		d := g.Durations.Of(state)
		log.Append(Entry{Interval: period.New(cursor, cursor.Add(d)), State: state})
		if state.IsWork() {
			slots.OpenSlot(cursor)
			opened++
		}
		cursor = cursor.Add(d)

		if cursor, reset = g.clamp(cursor); reset {
			state = cadence.LongBreak()
		}
	}
	return opened
}

// clamp moves t into the active window: forward to today's start when early,
// to tomorrow's start when at or past today's end. reset reports a move.
func (g Generator) clamp(t time.Time) (time.Time, bool) {
	local := t.In(g.loc())
	start := g.Active.Start.On(local)
	if local.Before(start) {
		return start.In(t.Location()), true
	}
	if !local.Before(g.Active.End.On(local)) {
		return g.Active.Start.On(local.AddDate(0, 0, 1)).In(t.Location()), true
	}
	return t, false
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}
