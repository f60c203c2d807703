// Package timeline materializes the day-by-day cadence: a time-ordered log of
// (interval, cadence state) entries and, for work entries, the empty slots
// tasks are later assigned to.
package timeline

import (
	"encoding/json"
	"slices"
	"time"

	"pomplan/internal/cadence"
	"pomplan/internal/period"
)

// Entry is one stretch of work or rest.
type Entry struct {
	Interval period.Interval `json:"interval"`
	State    cadence.State   `json:"state"`
}

// Log is the time-ordered sequence of entries. It grows forward through the
// Generator and shrinks only through Prune.
type Log struct {
	entries []Entry
}

func (l *Log) Append(e Entry) { l.entries = append(l.entries, e) }

func (l *Log) Len() int { return len(l.entries) }

// All returns a copy of the entries in order.
func (l *Log) All() []Entry { return slices.Clone(l.entries) }

func (l *Log) Last() (Entry, bool) {
	if len(l.entries) == 0 {
		return Entry{}, false
	}
	return l.entries[len(l.entries)-1], true
}

// At returns the entry covering t.
func (l *Log) At(t time.Time) (Entry, bool) {
	// First entry starting after t; the candidate is the one before it.
	i, _ := slices.BinarySearchFunc(l.entries, t, func(e Entry, t time.Time) int {
		if e.Interval.Start.After(t) {
			return 1
		}
		return -1
	})
	if i == 0 {
		return Entry{}, false
	}
	e := l.entries[i-1]
	if !e.Interval.Contains(t) {
		return Entry{}, false
	}
	return e, true
}

// Upcoming returns the entries that have not ended by t, in order.
func (l *Log) Upcoming(t time.Time) []Entry {
	out := make([]Entry, 0, len(l.entries))
	for _, e := range l.entries {
		if e.Interval.End.After(t) {
			out = append(out, e)
		}
	}
	return out
}

// Prune drops entries that ended at or before t and returns how many were
// removed.
func (l *Log) Prune(t time.Time) int {
	n := len(l.entries)
	l.entries = slices.DeleteFunc(l.entries, func(e Entry) bool {
		return !e.Interval.End.After(t)
	})
	return n - len(l.entries)
}

// Sort restores start-time order, e.g. after loading entries from storage.
func (l *Log) Sort() {
	slices.SortStableFunc(l.entries, func(a, b Entry) int {
		return a.Interval.Start.Compare(b.Interval.Start)
	})
}

func (l *Log) Clear() { l.entries = nil }

func (l Log) MarshalJSON() ([]byte, error) {
	if l.entries == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(l.entries)
}

func (l *Log) UnmarshalJSON(b []byte) error {
	var entries []Entry
	if err := json.Unmarshal(b, &entries); err != nil {
		return err
	}
	l.entries = entries
	l.Sort()
	return nil
}
