package schedule

import (
	"cmp"
	"time"

	"pomplan/internal/period"
)

// Task is what the allocator needs to know about a unit of work.
//
// Priority must be totally ordered; higher is more important.
// EstimatedLength is the total expected effort.
type Task[P cmp.Ordered] interface {
	Priority() P
	WorkingPeriod() period.Interval
	EstimatedLength() time.Duration
}

// WorkTracker is implemented by tasks that record effort already spent.
type WorkTracker interface {
	WorkedLength() time.Duration
}

// Remaining is the effort still to be scheduled, never negative.
func Remaining[P cmp.Ordered](t Task[P]) time.Duration {
	rem := t.EstimatedLength()
	if wt, ok := any(t).(WorkTracker); ok {
		rem -= wt.WorkedLength()
	}
	if rem < 0 {
		return 0
	}
	return rem
}

// DividedInto is the number of slots of the given length needed to cover the
// remaining effort (rounded up). slice must be positive; config validation
// guarantees this.
func DividedInto[P cmp.Ordered](t Task[P], slice time.Duration) int {
	rem := Remaining(t)
	if rem <= 0 {
		return 0
	}
	n := rem / slice
	if rem%slice != 0 {
		n++
	}
	return int(n)
}
