package schedule

import (
	"cmp"
	"fmt"
	"maps"
	"slices"
	"time"

	"pomplan/internal/period"
)

// Schedule is the task table plus the slot map.
type Schedule[T Task[P], P cmp.Ordered] struct {
	// Tasks is the canonical owner of every task, including ones holding no slots.
	Tasks map[string]T `json:"tasks"`
	// Slots are the times work can be scheduled in.
	Slots Slots `json:"slots"`
	// TimesliceLength is the length of one unit of work. Must be positive.
	TimesliceLength time.Duration `json:"timeslice_length"`
}

func New[T Task[P], P cmp.Ordered](timeslice time.Duration) *Schedule[T, P] {
	return &Schedule[T, P]{Tasks: map[string]T{}, TimesliceLength: timeslice}
}

// LayoutSlots seeds empty slots across iv every step. Existing slots in the
// range are overwritten with empty ones, so use it only before assignment.
func (s *Schedule[T, P]) LayoutSlots(iv period.Interval, step time.Duration) {
	for cursor := iv.Start; cursor.Before(iv.End); cursor = cursor.Add(step) {
		s.Slots.Set(cursor, "")
	}
}

// OpenSlot adds an empty slot at t unless one exists.
func (s *Schedule[T, P]) OpenSlot(t time.Time) { s.Slots.Open(t) }

// Required is the number of slots the task needs.
func (s *Schedule[T, P]) Required(t T) int {
	return DividedInto[P](t, s.TimesliceLength)
}

// Occupancy counts the slots held per task ID.
func (s *Schedule[T, P]) Occupancy() map[string]int {
	out := make(map[string]int, len(s.Tasks))
	for _, sl := range s.Slots.items {
		if !sl.Empty() {
			out[sl.TaskID]++
		}
	}
	return out
}

// UnsatisfiedTasks lists, in ID order, the tasks holding fewer slots than they
// need.
func (s *Schedule[T, P]) UnsatisfiedTasks() []string {
	occ := s.Occupancy()
	out := make([]string, 0)
	for id, t := range s.Tasks {
		if occ[id] < s.Required(t) {
			out = append(out, id)
		}
	}
	slices.Sort(out)
	return out
}

// RemoveOldSlots drops slots whose coverage ended before t.
func (s *Schedule[T, P]) RemoveOldSlots(before time.Time) int {
	return s.Slots.RemoveBefore(before, s.TimesliceLength)
}

// Clone returns a copy whose slot map can be mutated independently. Task
// values are shared; treat them as immutable.
func (s *Schedule[T, P]) Clone() *Schedule[T, P] {
	return &Schedule[T, P]{
		Tasks:           maps.Clone(s.Tasks),
		Slots:           s.Slots.Clone(),
		TimesliceLength: s.TimesliceLength,
	}
}

// CheckContainment returns an error describing the first occupied slot that
// lies outside its occupant's working period. Slots naming unknown tasks are
// ignored.
func (s *Schedule[T, P]) CheckContainment() error {
	for _, sl := range s.Slots.items {
		if sl.Empty() {
			continue
		}
		t, ok := s.Tasks[sl.TaskID]
		if !ok {
			continue
		}
		if wp := t.WorkingPeriod(); !wp.Contains(sl.At) {
			return fmt.Errorf("slot %s holds %q outside its working period %s", sl.At.Format(time.RFC3339), sl.TaskID, wp)
		}
	}
	return nil
}

// CheckCapacity returns an error if any task holds more slots than it needs.
func (s *Schedule[T, P]) CheckCapacity() error {
	for id, n := range s.Occupancy() {
		t, ok := s.Tasks[id]
		if !ok {
			continue
		}
		if req := s.Required(t); n > req {
			return fmt.Errorf("task %q holds %d slots, needs %d", id, n, req)
		}
	}
	return nil
}

// window is the working period of the slot's occupant, or nothing when the
// slot is empty or names an unknown task.
func (s *Schedule[T, P]) window(taskID string) (period.Interval, bool) {
	if taskID == "" {
		return period.Interval{}, false
	}
	t, ok := s.Tasks[taskID]
	if !ok {
		return period.Interval{}, false
	}
	return t.WorkingPeriod(), true
}
