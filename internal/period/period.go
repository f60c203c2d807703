// Package period holds the small time primitives shared by the planner packages:
// half-open intervals and wall-clock times of day.
package period

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Interval is a half-open time range [Start, End).
type Interval struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

func New(start, end time.Time) Interval { return Interval{Start: start, End: end} }

// Unbounded covers every representable instant the planner deals with.
func Unbounded() Interval {
	return Interval{Start: time.Time{}, End: time.Unix(1<<62, 0)}
}

// Contains reports whether t lies in [Start, End).
func (i Interval) Contains(t time.Time) bool {
	return !t.Before(i.Start) && t.Before(i.End)
}

// Len is End-Start, or zero for an empty/inverted interval.
func (i Interval) Len() time.Duration {
	if !i.End.After(i.Start) {
		return 0
	}
	return i.End.Sub(i.Start)
}

func (i Interval) Empty() bool { return !i.End.After(i.Start) }

func (i Interval) String() string {
	return i.Start.Format(time.RFC3339) + ".." + i.End.Format(time.RFC3339)
}

// TimeOfDay is a local wall-clock time with minute precision.
type TimeOfDay struct {
	Hour   int
	Minute int
}

// ParseTimeOfDay parses "HH:MM" (24h clock).
func ParseTimeOfDay(s string) (TimeOfDay, error) {
	s = strings.TrimSpace(s)
	parts := strings.Split(s, ":")
	if len(parts) != 2 {
		return TimeOfDay{}, fmt.Errorf("invalid time %q, expected HH:MM", s)
	}
	h, err := strconv.Atoi(parts[0])
	if err != nil || h < 0 || h > 23 {
		return TimeOfDay{}, fmt.Errorf("invalid hour in %q", s)
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil || m < 0 || m > 59 {
		return TimeOfDay{}, fmt.Errorf("invalid minute in %q", s)
	}
	return TimeOfDay{Hour: h, Minute: m}, nil
}

func MustTimeOfDay(s string) TimeOfDay {
	t, err := ParseTimeOfDay(s)
	if err != nil {
		panic(err)
	}
	return t
}

// On returns the instant this time of day falls on for the calendar day of t,
// evaluated in t's location.
func (d TimeOfDay) On(t time.Time) time.Time {
	y, m, day := t.Date()
	return time.Date(y, m, day, d.Hour, d.Minute, 0, 0, t.Location())
}

// Before reports whether d is strictly earlier in the day than o.
func (d TimeOfDay) Before(o TimeOfDay) bool {
	if d.Hour != o.Hour {
		return d.Hour < o.Hour
	}
	return d.Minute < o.Minute
}

func (d TimeOfDay) String() string { return fmt.Sprintf("%02d:%02d", d.Hour, d.Minute) }

func (d TimeOfDay) MarshalText() ([]byte, error) { return []byte(d.String()), nil }

func (d *TimeOfDay) UnmarshalText(b []byte) error {
	v, err := ParseTimeOfDay(string(b))
	if err != nil {
		return err
	}
	*d = v
	return nil
}
