package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"pomplan/internal/period"
)

// ErrInvalid wraps every validation failure.
var ErrInvalid = errors.New("invalid config")

// Planner is PlannerConfig with defaults applied and every field parsed.
type Planner struct {
	Location      *time.Location
	ActiveStart   period.TimeOfDay
	ActiveEnd     period.TimeOfDay
	BreakInterval uint32
	Timeslice     time.Duration
	ShortBreak    time.Duration
	LongBreak     time.Duration
	Horizon       time.Duration
}

// Resolve applies defaults and parses c. Errors wrap ErrInvalid and name
// every offending field.
func (c PlannerConfig) Resolve() (Planner, error) {
	var errs []error
	out := Planner{Location: time.Local, BreakInterval: 4}

	if tz := strings.TrimSpace(c.Timezone); tz != "" {
		loc, err := time.LoadLocation(tz)
		if err != nil {
			errs = append(errs, fmt.Errorf("planner.timezone: %w", err))
		} else {
			out.Location = loc
		}
	}

	tod := func(path, raw, def string) period.TimeOfDay {
		if strings.TrimSpace(raw) == "" {
			raw = def
		}
		t, err := period.ParseTimeOfDay(raw)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", path, err))
		}
		return t
	}
	out.ActiveStart = tod("planner.active_start", c.ActiveStart, "09:00")
	out.ActiveEnd = tod("planner.active_end", c.ActiveEnd, "17:00")
	if !out.ActiveStart.Before(out.ActiveEnd) {
		errs = append(errs, fmt.Errorf("planner: active_start %s must be before active_end %s", out.ActiveStart, out.ActiveEnd))
	}

	if c.BreakInterval != nil {
		if *c.BreakInterval < 1 {
			errs = append(errs, fmt.Errorf("planner.break_interval: must be >= 1, got %d", *c.BreakInterval))
		} else {
			out.BreakInterval = uint32(*c.BreakInterval)
		}
	}

	dur := func(path, raw string, def time.Duration) time.Duration {
		d, err := parseCadenceDuration(path, raw, def)
		if err != nil {
			errs = append(errs, err)
		}
		return d
	}
	out.Timeslice = dur("planner.timeslice", c.Timeslice, 25*time.Minute)
	out.ShortBreak = dur("planner.short_break", c.ShortBreak, 5*time.Minute)
	out.LongBreak = dur("planner.long_break", c.LongBreak, 30*time.Minute)
	out.Horizon = dur("planner.horizon", c.Horizon, 90*24*time.Hour)

	if len(errs) > 0 {
		return Planner{}, fmt.Errorf("%w: %w", ErrInvalid, errors.Join(errs...))
	}
	return out, nil
}

// Budget parses optimize_budget.
func (c HousekeepingConfig) Budget() (time.Duration, error) {
	d, err := ParseDurationOrDefault("housekeeping.optimize_budget", c.OptimizeBudget, 500*time.Millisecond)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrInvalid, err)
	}
	return d, nil
}

// Validate checks everything that can be checked without other packages.
func Validate(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("%w: config is nil", ErrInvalid)
	}
	if _, err := cfg.Planner.Resolve(); err != nil {
		return err
	}
	if _, err := cfg.Housekeeping.Budget(); err != nil {
		return err
	}
	if s := cfg.Storage; s != nil {
		if _, err := ParseDurationField("storage.busy_timeout", s.BusyTimeout); err != nil {
			return fmt.Errorf("%w: %w", ErrInvalid, err)
		}
	}
	return nil
}
