// Package cadence implements the work/break/long-break cycle that paces the
// day's slots.
//
// The cycle is a pure state machine. Work(n) and Break(n) carry the number of
// short cycles left before the next long break. Starting from the zero value
// (LongBreak) with a break interval of 4, ticking yields:
//
//	Work(3) Break(2) Work(2) Break(1) Work(1) Break(0) Work(0) LongBreak ...
//
// Untick is the exact inverse of Tick for every state reachable from LongBreak.
// A break interval of zero is a caller bug; config validation rejects it.
package cadence

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

type Kind uint8

const (
	KindLongBreak Kind = iota
	KindWork
	KindBreak
)

func (k Kind) String() string {
	switch k {
	case KindWork:
		return "work"
	case KindBreak:
		return "break"
	default:
		return "long_break"
	}
}

// State is one position in the cycle. The zero value is LongBreak.
type State struct {
	Kind Kind
	// N counts remaining short cycles before the next long break.
	// Always zero for LongBreak.
	N uint32
}

func Work(n uint32) State  { return State{Kind: KindWork, N: n} }
func Break(n uint32) State { return State{Kind: KindBreak, N: n} }
func LongBreak() State     { return State{} }

func (s State) IsWork() bool { return s.Kind == KindWork }

// Tick returns the next state.
func (s State) Tick(breakInterval uint32) State {
	switch s.Kind {
	case KindWork:
		if s.N == 0 {
			return LongBreak()
		}
		return Break(s.N - 1)
	case KindBreak:
		return Work(s.N)
	default:
		return Work(breakInterval - 1)
	}
}

// Untick returns the previous state.
func (s State) Untick(breakInterval uint32) State {
	switch s.Kind {
	case KindBreak:
		return Work(s.N + 1)
	case KindWork:
		if s.N >= breakInterval-1 {
			return LongBreak()
		}
		return Break(s.N)
	default:
		return Work(0)
	}
}

func (s State) String() string {
	if s.Kind == KindLongBreak {
		return s.Kind.String()
	}
	return s.Kind.String() + ":" + strconv.FormatUint(uint64(s.N), 10)
}

func (s State) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

func (s *State) UnmarshalText(b []byte) error {
	v, err := Parse(string(b))
	if err != nil {
		return err
	}
	*s = v
	return nil
}

// Parse reads the String form ("work:3", "break:0", "long_break").
func Parse(raw string) (State, error) {
	raw = strings.TrimSpace(strings.ToLower(raw))
	if raw == "long_break" || raw == "" {
		return LongBreak(), nil
	}
	kind, num, ok := strings.Cut(raw, ":")
	if !ok {
		return State{}, fmt.Errorf("invalid cadence state %q", raw)
	}
	n, err := strconv.ParseUint(num, 10, 32)
	if err != nil {
		return State{}, fmt.Errorf("invalid cadence count in %q: %w", raw, err)
	}
	switch kind {
	case "work":
		return Work(uint32(n)), nil
	case "break":
		return Break(uint32(n)), nil
	default:
		return State{}, fmt.Errorf("invalid cadence kind in %q", raw)
	}
}

// Durations maps each state kind to the length of time it lasts.
type Durations struct {
	Work       time.Duration
	ShortBreak time.Duration
	LongBreak  time.Duration
}

// DefaultDurations is the classic 25/5/30 pomodoro split.
func DefaultDurations() Durations {
	return Durations{Work: 25 * time.Minute, ShortBreak: 5 * time.Minute, LongBreak: 30 * time.Minute}
}

func (d Durations) Of(s State) time.Duration {
	switch s.Kind {
	case KindWork:
		return d.Work
	case KindBreak:
		return d.ShortBreak
	default:
		return d.LongBreak
	}
}
