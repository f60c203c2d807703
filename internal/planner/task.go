package planner

import (
	"time"

	"pomplan/internal/period"
)

// Task is a unit of work the user wants done inside Window.
type Task struct {
	Name      string          `json:"name"`
	Prio      uint32          `json:"priority"`
	Window    period.Interval `json:"working_period"`
	Estimated time.Duration   `json:"estimated_length"`
	Worked    time.Duration   `json:"worked_length"`
	// RemoteID ties the task to an external tracker, if any.
	RemoteID string `json:"remote_id,omitempty"`
}

func (t Task) Priority() uint32               { return t.Prio }
func (t Task) WorkingPeriod() period.Interval { return t.Window }
func (t Task) EstimatedLength() time.Duration { return t.Estimated }
func (t Task) WorkedLength() time.Duration    { return t.Worked }

// Remaining is the effort left, never negative.
func (t Task) Remaining() time.Duration {
	if r := t.Estimated - t.Worked; r > 0 {
		return r
	}
	return 0
}

// Normalize clamps Worked to [0, Estimated] and Estimated to non-negative.
func (t Task) Normalize() Task {
	t.Estimated = max(t.Estimated, 0)
	t.Worked = min(max(t.Worked, 0), t.Estimated)
	return t
}
