package optimize

import (
	"time"

	"pomplan/internal/period"
)

type slotTask struct {
	prio int
	est  time.Duration
	win  period.Interval
}

func (t slotTask) Priority() int                  { return t.prio }
func (t slotTask) WorkingPeriod() period.Interval { return t.win }
func (t slotTask) EstimatedLength() time.Duration { return t.est }

func periodOf(start time.Time, d time.Duration) period.Interval { return period.New(start, start.Add(d)) }
