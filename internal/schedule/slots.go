package schedule

import (
	"encoding/json"
	"slices"
	"time"

	"pomplan/internal/period"
)

// Slot is a slice start and its occupant. An empty TaskID means the slot is free.
type Slot struct {
	At     time.Time `json:"at"`
	TaskID string    `json:"task,omitempty"`
}

func (s Slot) Empty() bool { return s.TaskID == "" }

// Slots is a time-ordered slot map. Lookups and range queries are binary
// searches over a sorted slice; slot times are stored in UTC.
type Slots struct {
	items []Slot
}

func (s *Slots) search(t time.Time) (int, bool) {
	return slices.BinarySearchFunc(s.items, t, func(e Slot, t time.Time) int {
		return e.At.Compare(t)
	})
}

// Open adds an empty slot at t unless one already exists. It reports whether a
// slot was added.
func (s *Slots) Open(t time.Time) bool {
	t = t.UTC()
	i, found := s.search(t)
	if found {
		return false
	}
	s.items = slices.Insert(s.items, i, Slot{At: t})
	return true
}

// Set creates or overwrites the slot at t.
func (s *Slots) Set(t time.Time, taskID string) {
	t = t.UTC()
	i, found := s.search(t)
	if found {
		s.items[i].TaskID = taskID
		return
	}
	s.items = slices.Insert(s.items, i, Slot{At: t, TaskID: taskID})
}

// Get returns the occupant of the slot at t. ok is false when no slot exists.
func (s *Slots) Get(t time.Time) (taskID string, ok bool) {
	i, found := s.search(t.UTC())
	if !found {
		return "", false
	}
	return s.items[i].TaskID, true
}

func (s *Slots) Len() int { return len(s.items) }

// At returns the i-th slot in time order.
func (s *Slots) At(i int) Slot { return s.items[i] }

// All returns a copy of every slot in time order.
func (s *Slots) All() []Slot { return slices.Clone(s.items) }

// Range returns the index bounds [lo, hi) of the slots whose time lies in iv.
func (s *Slots) Range(iv period.Interval) (lo, hi int) {
	lo, _ = s.search(iv.Start)
	hi, _ = s.search(iv.End)
	if hi < lo {
		hi = lo
	}
	return lo, hi
}

// RemoveBefore drops every slot whose coverage (start + length) ends before t.
// It returns the number of slots removed.
func (s *Slots) RemoveBefore(t time.Time, length time.Duration) int {
	n := len(s.items)
	s.items = slices.DeleteFunc(s.items, func(e Slot) bool {
		return e.At.Add(length).Before(t)
	})
	return n - len(s.items)
}

// Clear removes every slot.
func (s *Slots) Clear() { s.items = nil }

// Release empties every slot held by taskID and returns how many were freed.
func (s *Slots) Release(taskID string) int {
	n := 0
	for i := range s.items {
		if s.items[i].TaskID == taskID {
			s.items[i].TaskID = ""
			n++
		}
	}
	return n
}

func (s Slots) Clone() Slots { return Slots{items: slices.Clone(s.items)} }

func (s Slots) MarshalJSON() ([]byte, error) {
	if s.items == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(s.items)
}

func (s *Slots) UnmarshalJSON(b []byte) error {
	var items []Slot
	if err := json.Unmarshal(b, &items); err != nil {
		return err
	}
	s.items = nil
	for _, it := range items {
		s.Set(it.At, it.TaskID)
	}
	return nil
}
