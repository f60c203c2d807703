package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"pomplan/internal/optimize"
	"pomplan/internal/planner"
	"pomplan/internal/storage"
	logx "pomplan/pkg/logx"
)

// restore imports the last snapshot, if any.
func (a *App) restore(ctx context.Context) error {
	if a.store == nil {
		return nil
	}
	snap, err := a.store.LoadSnapshot(ctx)
	if errors.Is(err, storage.ErrNoSnapshot) {
		a.log.Debug("no saved plan; starting empty")
		return nil
	}
	if err != nil {
		return fmt.Errorf("load snapshot: %w", err)
	}
	a.mu.Lock()
	unsat := a.planner.Import(snap.State)
	a.mu.Unlock()
	a.log.Debug("plan restored",
		logx.Time("saved_at", snap.SavedAt),
		logx.Int("tasks", len(snap.State.Tasks)),
		logx.Int("slots", snap.State.Slots.Len()),
		logx.Strings("unsatisfied", unsat),
	)
	return nil
}

// Mutate runs fn against the planner, saves the resulting plan and records
// an audit entry. fn returns a short human-readable detail for the audit log.
// Plan changes made by fn stay in memory even when saving fails.
func (a *App) Mutate(ctx context.Context, action, taskID string, fn func(p *planner.Planner) (string, error)) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	detail, err := fn(a.planner)
	if err != nil {
		return err
	}
	if err := a.persistLocked(ctx); err != nil {
		return err
	}
	return a.auditLocked(ctx, storage.AuditEntry{
		At:          a.opts.Now(),
		Action:      action,
		TaskID:      taskID,
		Detail:      detail,
		Unsatisfied: len(a.planner.Unsatisfied()),
	})
}

// Housekeep runs one housekeeping pass now, the same job cron triggers.
func (a *App) Housekeep(ctx context.Context) error { return a.hk.RunNow(ctx) }

// housekeep extends, expires and re-solves the plan, optionally optimizes
// it, and saves it. Passes are not audited.
func (a *App) housekeep(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	unsat := a.planner.Housekeeping()
	if strategy, budget, ok := a.optimizer(); ok {
		a.planner.Optimize(strategy, budget)
		unsat = a.planner.Unsatisfied()
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	a.log.Debug("housekeeping pass", logx.Int("unsatisfied", len(unsat)))
	return a.persistLocked(ctx)
}

// optimizer is the configured post-housekeeping strategy, if any.
func (a *App) optimizer() (optimize.Strategy, time.Duration, bool) {
	cfg := a.cfgm.Get()
	name := strings.TrimSpace(cfg.Housekeeping.Optimize)
	if name == "" {
		return optimize.Strategy{}, 0, false
	}
	strategy, err := optimize.Lookup(name)
	if err != nil {
		a.log.Warn("unknown optimize strategy; skipping", logx.String("strategy", name))
		return optimize.Strategy{}, 0, false
	}
	budget, err := cfg.Housekeeping.Budget()
	if err != nil {
		a.log.Warn("invalid optimize budget; skipping", logx.Err(err))
		return optimize.Strategy{}, 0, false
	}
	return strategy, budget, true
}

func (a *App) persistLocked(ctx context.Context) error {
	if a.store == nil {
		return nil
	}
	snap := storage.Snapshot{SavedAt: a.opts.Now(), State: a.planner.Export()}
	if err := a.store.SaveSnapshot(ctx, snap); err != nil {
		return fmt.Errorf("save snapshot: %w", err)
	}
	return nil
}

func (a *App) auditLocked(ctx context.Context, e storage.AuditEntry) error {
	if a.store == nil {
		return nil
	}
	if err := a.store.AppendAudit(ctx, e); err != nil {
		return fmt.Errorf("append audit: %w", err)
	}
	return nil
}

// History returns up to limit audit entries, newest first.
func (a *App) History(ctx context.Context, limit int) ([]storage.AuditEntry, error) {
	if a.store == nil {
		return nil, storage.ErrDisabled
	}
	return a.store.RecentAudit(ctx, limit)
}
