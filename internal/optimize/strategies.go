package optimize

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"pomplan/internal/schedule"
)

// Strategy is a named objective over a slot layout. Scores are means and come
// out NaN when there is nothing to average.
type Strategy struct {
	Name        string
	Description string
	score       func(slots []schedule.Slot, now time.Time) float64
}

// Score evaluates the strategy against slots in time order.
func (s Strategy) Score(slots []schedule.Slot, now time.Time) float64 {
	return s.score(slots, now)
}

func negate(f func([]schedule.Slot, time.Time) float64) func([]schedule.Slot, time.Time) float64 {
	return func(slots []schedule.Slot, now time.Time) float64 { return -f(slots, now) }
}

var strategies = []Strategy{
	{"small-victories", "finish tasks as early as possible", negate(finishTime)},
	{"procrastinator", "finish tasks as late as possible", finishTime},
	{"early-riser", "keep free time late, work early", freeTime},
	{"problem-for-future-me", "keep free time early, work late", negate(freeTime)},
	{"pwm", "spread free time into short gaps", negate(freeRun)},
	{"explosive", "collect free time into long gaps", freeRun},
	{"context-switch", "alternate between tasks", negate(focusRun)},
	{"hyperfocus", "keep working on the same task", focusRun},
}

// Strategies lists the built-in strategies.
func Strategies() []Strategy { return slices.Clone(strategies) }

// Lookup finds a strategy by name, case-insensitively.
func Lookup(name string) (Strategy, error) {
	for _, s := range strategies {
		if strings.EqualFold(s.Name, strings.TrimSpace(name)) {
			return s, nil
		}
	}
	return Strategy{}, fmt.Errorf("unknown strategy %q", name)
}

func mean(sum float64, n int) float64 { return sum / float64(n) }

// finishTime is the mean over tasks of seconds from now to the task's last slot.
func finishTime(slots []schedule.Slot, now time.Time) float64 {
	last := map[string]time.Time{}
	for _, sl := range slots {
		if sl.Empty() {
			continue
		}
		if t, ok := last[sl.TaskID]; !ok || sl.At.After(t) {
			last[sl.TaskID] = sl.At
		}
	}
	var sum float64
	for _, t := range last {
		sum += float64(int64(t.Sub(now) / time.Second))
	}
	return mean(sum, len(last))
}

// freeTime is the mean of seconds from now to each free slot.
func freeTime(slots []schedule.Slot, now time.Time) float64 {
	var sum float64
	n := 0
	for _, sl := range slots {
		if sl.Empty() {
			sum += float64(int64(sl.At.Sub(now) / time.Second))
			n++
		}
	}
	return mean(sum, n)
}

// freeRun is the mean length of runs of consecutive free slots.
func freeRun(slots []schedule.Slot, _ time.Time) float64 {
	total, runs := 0, 0
	inRun := false
	for _, sl := range slots {
		if !sl.Empty() {
			inRun = false
			continue
		}
		if !inRun {
			runs++
			inRun = true
		}
		total++
	}
	return mean(float64(total), runs)
}

// focusRun is the mean length of runs of consecutive slots held by one task.
func focusRun(slots []schedule.Slot, _ time.Time) float64 {
	total, runs := 0, 0
	current := ""
	for _, sl := range slots {
		if sl.Empty() {
			current = ""
			continue
		}
		if sl.TaskID != current {
			runs++
			current = sl.TaskID
		}
		total++
	}
	return mean(float64(total), runs)
}
