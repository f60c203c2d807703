// Package optimize runs time-boxed randomized hill climbing over schedules.
package optimize

import (
	"math"
	"time"
)

// Objective scores a state; larger is better.
type Objective[S any] func(S) float64

// Options tunes ShuffleMaximizing. The zero value is ready to use.
type Options struct {
	// Clock defaults to time.Now.
	Clock func() time.Time
	// MaxIterations stops the search early when positive.
	MaxIterations int
}

func (o Options) now() time.Time {
	if o.Clock != nil {
		return o.Clock()
	}
	return time.Now()
}

// Result is the best state seen and its score.
type Result[S any] struct {
	Best       S
	Score      float64
	Iterations int
}

// Better reports whether candidate should replace best. A NaN candidate never
// wins; a NaN best loses to any number.
func Better(candidate, best float64) bool {
	switch {
	case math.IsNaN(candidate):
		return false
	case math.IsNaN(best):
		return true
	default:
		return candidate > best
	}
}

// ShuffleMaximizing repeatedly derives a candidate from the best state with
// next and keeps it when its score is Better. next must not modify its
// argument. The loop stops once budget has elapsed on the options clock; the
// initial state is always scored, so the result is valid for a zero budget.
func ShuffleMaximizing[S any](state S, next func(S) S, objective Objective[S], budget time.Duration, opts Options) Result[S] {
	res := Result[S]{Best: state, Score: objective(state)}
	deadline := opts.now().Add(budget)
	for opts.now().Before(deadline) {
		if opts.MaxIterations > 0 && res.Iterations >= opts.MaxIterations {
			break
		}
		cand := next(res.Best)
		res.Iterations++
		if score := objective(cand); Better(score, res.Score) {
			res.Best, res.Score = cand, score
		}
	}
	return res
}
