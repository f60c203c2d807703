package app

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"pomplan/internal/config"
	"pomplan/internal/eventbus"
	"pomplan/internal/period"
	"pomplan/internal/planner"
	"pomplan/internal/storage"
)

var day1 = time.Date(2024, 3, 30, 8, 0, 0, 0, time.UTC)

func writeConfig(t *testing.T, dir, driver string) string {
	t.Helper()
	body := `planner:
  timezone: UTC
  active_start: "09:00"
  active_end: "17:00"
housekeeping:
  enabled: true
  schedule: "1h"
  optimize: early-riser
  optimize_budget: 20ms
logging:
  level: error
  console: false
storage:
  driver: ` + driver + `
  path: ` + filepath.Join(dir, "store") + `
`
	path := filepath.Join(dir, "pomplan.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func openTestApp(t *testing.T, path string) *App {
	t.Helper()
	a, err := Open(context.Background(), path, Options{Now: func() time.Time { return day1 }, Seed: 1})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	return a
}

func insert(ctx context.Context, a *App, id string, est time.Duration) error {
	return a.Mutate(ctx, "add", id, func(p *planner.Planner) (string, error) {
		return "inserted", p.InsertTask(id, planner.Task{
			Name:      id,
			Prio:      1,
			Window:    period.New(day1, day1.Add(48*time.Hour)),
			Estimated: est,
		})
	})
}

func TestMutatePersistsAcrossOpen(t *testing.T) {
	for _, driver := range []string{"file", "sqlite"} {
		t.Run(driver, func(t *testing.T) {
			dir := t.TempDir()
			path := writeConfig(t, dir, driver)
			ctx := context.Background()

			a := openTestApp(t, path)
			if err := insert(ctx, a, "report", 2*time.Hour); err != nil {
				t.Fatalf("Mutate: %v", err)
			}
			want := a.Planner().Occupancy()["report"]
			if want != 5 {
				t.Fatalf("occupancy = %d, want 5", want)
			}
			a.Close()

			b := openTestApp(t, path)
			defer b.Close()
			if got := b.Planner().Occupancy()["report"]; got != want {
				t.Fatalf("restored occupancy = %d, want %d", got, want)
			}
			hist, err := b.History(ctx, 10)
			if err != nil {
				t.Fatalf("History: %v", err)
			}
			if len(hist) != 1 || hist[0].Action != "add" || hist[0].TaskID != "report" || hist[0].Detail != "inserted" {
				t.Fatalf("history = %+v", hist)
			}
		})
	}
}

func TestMutateErrorSkipsAudit(t *testing.T) {
	dir := t.TempDir()
	a := openTestApp(t, writeConfig(t, dir, "file"))
	defer a.Close()
	ctx := context.Background()

	err := a.Mutate(ctx, "remove", "ghost", func(p *planner.Planner) (string, error) {
		return "", p.RemoveTask("ghost")
	})
	if !errors.Is(err, planner.ErrUnknownTask) {
		t.Fatalf("err = %v", err)
	}
	hist, err := a.History(ctx, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(hist) != 0 {
		t.Fatalf("history = %+v, want empty", hist)
	}
}

func TestHousekeepSavesWithoutAudit(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, dir, "file")
	a := openTestApp(t, path)
	ctx := context.Background()
	if err := a.Planner().InsertTask("x", planner.Task{Prio: 1, Window: period.New(day1, day1.Add(24*time.Hour)), Estimated: time.Hour}); err != nil {
		t.Fatal(err)
	}
	if err := a.Housekeep(ctx); err != nil {
		t.Fatalf("Housekeep: %v", err)
	}
	if snap := a.hk.Snapshot(); snap.Runs != 1 || snap.LastError != "" {
		t.Fatalf("housekeeping snapshot = %+v", snap)
	}
	hist, _ := a.History(ctx, 10)
	if len(hist) != 0 {
		t.Fatalf("history = %+v, want empty", hist)
	}
	a.Close()

	b := openTestApp(t, path)
	defer b.Close()
	if _, ok := b.Planner().Task("x"); !ok {
		t.Fatal("housekeeping pass did not save the plan")
	}
	if err := b.Planner().Check(); err != nil {
		t.Fatal(err)
	}
}

func TestOpenWithoutConfigUsesDefaults(t *testing.T) {
	dir := t.TempDir()
	wd, _ := os.Getwd()
	if err := os.Chdir(dir); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = os.Chdir(wd) })

	a, err := Open(context.Background(), filepath.Join(dir, "missing.yaml"), Options{LogLevel: "error"})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer a.Close()
	if a.Store() == nil {
		t.Fatal("default config should enable file storage")
	}
	if got := a.Config().Housekeeping.Schedule; got != config.DefaultHousekeepingSchedule {
		t.Fatalf("schedule = %q", got)
	}
}

func TestOpenRejectsInvalidConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.yaml")
	if err := os.WriteFile(path, []byte("planner:\n  timeslice: 0s\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := Open(context.Background(), path, Options{}); !errors.Is(err, config.ErrInvalid) {
		t.Fatalf("Open err = %v, want ErrInvalid", err)
	}
}

func TestValidate(t *testing.T) {
	cfg := config.Default()
	if err := validate(context.Background(), cfg); err != nil {
		t.Fatalf("default config: %v", err)
	}

	bad := config.Default()
	bad.Housekeeping.Optimize = "nope"
	if err := validate(context.Background(), bad); err == nil {
		t.Fatal("unknown strategy accepted")
	}

	bad = config.Default()
	bad.Housekeeping.Schedule = "every tuesday"
	if err := validate(context.Background(), bad); err == nil {
		t.Fatal("bad schedule accepted")
	}

	bad = config.Default()
	bad.Storage = &config.StorageConfig{Driver: "sqlite"}
	if err := validate(context.Background(), bad); err == nil {
		t.Fatal("sqlite without path accepted")
	}
}

func TestMapStorageConfig(t *testing.T) {
	sc, ok, err := mapStorageConfig(&config.Config{Storage: &config.StorageConfig{Driver: "SQLite", Path: "x.db"}})
	if err != nil || !ok {
		t.Fatalf("ok=%v err=%v", ok, err)
	}
	if sc.Driver != "sqlite" || sc.BusyTimeout != time.Second {
		t.Fatalf("config = %+v", sc)
	}
	if _, ok, _ := mapStorageConfig(&config.Config{Storage: &config.StorageConfig{Driver: "none"}}); ok {
		t.Fatal("driver none should disable storage")
	}
	if _, _, err := mapStorageConfig(&config.Config{Storage: &config.StorageConfig{Driver: "redis"}}); err == nil {
		t.Fatal("unknown driver accepted")
	}
}

func TestHistoryWithoutStorage(t *testing.T) {
	dir := t.TempDir()
	a := openTestApp(t, writeConfig(t, dir, "none"))
	defer a.Close()
	if _, err := a.History(context.Background(), 5); !errors.Is(err, storage.ErrDisabled) {
		t.Fatalf("err = %v, want ErrDisabled", err)
	}
	if err := insert(context.Background(), a, "a", time.Hour); err != nil {
		t.Fatalf("Mutate without storage: %v", err)
	}
}

func TestHandleEventRateLimitsWarnings(t *testing.T) {
	dir := t.TempDir()
	a := openTestApp(t, writeConfig(t, dir, "none"))
	defer a.Close()

	ev := eventbus.Event{Type: eventbus.TypePlanSolved, Data: eventbus.SolvedEvent{Unsatisfied: []string{"a"}}}
	a.handleEvent(ev)
	if a.warn.Tokens() >= 1 {
		t.Fatal("first unsatisfied event should consume the warning token")
	}
	a.handleEvent(ev)
	a.handleEvent(eventbus.Event{Type: eventbus.TypePlanOptimized, Data: eventbus.OptimizedEvent{Strategy: "pwm"}})
}

func TestStartStop(t *testing.T) {
	dir := t.TempDir()
	a := openTestApp(t, writeConfig(t, dir, "file"))
	if err := insert(context.Background(), a, "a", time.Hour); err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := a.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	snap := a.hk.Snapshot()
	if !snap.Enabled || snap.Spec != "@every 1h0m0s" || snap.Runs != 1 {
		t.Fatalf("housekeeping = %+v", snap)
	}
	if a.Err() != nil {
		t.Fatalf("Err() = %v", a.Err())
	}

	stopCtx, stopCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer stopCancel()
	if err := a.Stop(stopCtx, StopSIGTERM); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	select {
	case <-a.Done():
	default:
		t.Fatal("Done not closed after Stop")
	}
}
