package app

import (
	"context"
	"fmt"

	"pomplan/internal/eventbus"
	logx "pomplan/pkg/logx"
)

// watchEvents logs plan events and mirrors the plan state into the systemd
// status line.
func (a *App) watchEvents(ctx context.Context, events <-chan eventbus.Event) {
	for {
		select {
		case <-ctx.Done():
			return
		case e, ok := <-events:
			if !ok {
				return
			}
			a.handleEvent(e)
		}
	}
}

func (a *App) handleEvent(e eventbus.Event) {
	switch e.Type {
	case eventbus.TypePlanSolved:
		ev, ok := e.Data.(eventbus.SolvedEvent)
		if !ok {
			return
		}
		if len(ev.Unsatisfied) > 0 && a.warn.Allow() {
			a.log.Warn("tasks cannot be fully scheduled",
				logx.Strings("unsatisfied", ev.Unsatisfied),
				logx.Int("slots", ev.Slots),
			)
		} else {
			a.log.Debug("plan solved",
				logx.Int("tasks", ev.Tasks),
				logx.Int("slots", ev.Slots),
				logx.Int("unsatisfied", len(ev.Unsatisfied)),
			)
		}
		a.sdNotify(fmt.Sprintf("STATUS=%d tasks, %d slots, %d unsatisfied", ev.Tasks, ev.Slots, len(ev.Unsatisfied)))
	case eventbus.TypePlanOptimized:
		if ev, ok := e.Data.(eventbus.OptimizedEvent); ok {
			a.log.Debug("plan optimized",
				logx.String("strategy", ev.Strategy),
				logx.Float64("score", ev.Score),
				logx.Int("iterations", ev.Iterations),
			)
		}
	default:
		a.log.Debug("event", logx.String("type", e.Type), logx.Time("time", e.Time))
	}
}
