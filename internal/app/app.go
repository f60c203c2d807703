// Package app wires the planner to its config, storage, housekeeping job and
// HTTP API. The CLI uses Open for one-shot commands; the daemon adds Start
// and Stop.
package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"slices"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"pomplan/internal/config"
	"pomplan/internal/eventbus"
	"pomplan/internal/housekeeping"
	"pomplan/internal/httpapi"
	"pomplan/internal/optimize"
	"pomplan/internal/planner"
	"pomplan/internal/runtime/supervisor"
	"pomplan/internal/storage"
	logx "pomplan/pkg/logx"
)

// Options tune Open. The zero value reads everything from the config file.
type Options struct {
	// LogLevel overrides logging.level when non-empty.
	LogLevel string
	// Now replaces time.Now for the planner and audit timestamps.
	Now func() time.Time
	// Seed fixes the optimizer's randomness when non-zero.
	Seed int64
}

type App struct {
	opts Options

	cfgm *config.ConfigManager
	sup  *supervisor.Supervisor

	log   logx.Logger
	logs  *logx.Service
	bus   *eventbus.MemBus
	store storage.Store

	// mu serializes plan mutations with the snapshot write that follows them.
	mu      sync.Mutex
	planner *planner.Planner
	hk      *housekeeping.Service

	httpMu     sync.Mutex
	httpCancel context.CancelFunc

	// warn limits unsatisfied-task warnings to one per minute.
	warn *rate.Limiter
}

// Open loads the config (or the defaults when the file does not exist),
// opens storage and restores the last saved plan.
func Open(ctx context.Context, cfgPath string, opts Options) (*App, error) {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	cfgm := config.NewConfigManager(cfgPath)
	cfg, err := cfgm.Load()
	if errors.Is(err, os.ErrNotExist) {
		cfg = config.Default()
		cfgm.Commit(cfg)
	} else if err != nil {
		return nil, fmt.Errorf("load config %s: %w", cfgPath, err)
	}

	settings, err := mapPlannerSettings(cfg)
	if err != nil {
		return nil, err
	}
	sc, storageEnabled, err := mapStorageConfig(cfg)
	if err != nil {
		return nil, err
	}

	logSvc, log := logx.New(mapLoggingConfig(cfg, opts.LogLevel))
	log = log.With(logx.String("comp", "app"))

	var store storage.Store
	if storageEnabled {
		store, err = storage.Open(sc, log)
		if err != nil {
			_ = logSvc.Close()
			return nil, err
		}
		log.Debug("storage enabled", logx.String("driver", sc.Driver))
	}

	bus := eventbus.New()
	popts := []planner.Option{planner.WithClock(opts.Now)}
	if opts.Seed != 0 {
		popts = append(popts, planner.WithRand(opts.Seed))
	}

	a := &App{
		opts:    opts,
		cfgm:    cfgm,
		log:     log,
		logs:    logSvc,
		bus:     bus,
		store:   store,
		planner: planner.New(settings, log.With(logx.String("comp", "planner")), bus, popts...),
		warn:    rate.NewLimiter(rate.Every(time.Minute), 1),
	}
	a.hk = housekeeping.New(mapHousekeepingConfig(cfg), a.housekeep, log.With(logx.String("comp", "housekeeping")))

	if err := a.restore(ctx); err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

func (a *App) Planner() *planner.Planner { return a.planner }

func (a *App) Store() storage.Store { return a.store }

func (a *App) Logger() logx.Logger { return a.log }

func (a *App) Config() *config.Config { return a.cfgm.Get() }

// Close releases storage and log sinks. Use it for apps that were never
// started; Stop closes them too.
func (a *App) Close() {
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			a.log.Warn("storage close failed", logx.Err(err))
		}
	}
	if a.logs != nil {
		_ = a.logs.Close()
	}
}

// Done is closed when the daemon context ends (fatal error or Stop).
func (a *App) Done() <-chan struct{} {
	if a.sup == nil {
		ch := make(chan struct{})
		close(ch)
		return ch
	}
	return a.sup.Context().Done()
}

// Err is the first fatal error seen by the daemon, if any.
func (a *App) Err() error {
	if a.sup == nil {
		return nil
	}
	return a.sup.Err()
}

// Start runs the daemon: an immediate housekeeping pass, the cron job, the
// HTTP API, and config hot reload.
func (a *App) Start(ctx context.Context) error {
	a.sup = supervisor.New(ctx, supervisor.WithLogger(a.log), supervisor.WithCancelOnError(true))
	a.cfgm.SetLogger(a.log.With(logx.String("comp", "config")))
	a.cfgm.SetValidator(validate)

	events, unsub := a.bus.Subscribe(64)
	a.sup.Go("events", func(c context.Context) error {
		defer unsub()
		a.watchEvents(c, events)
		return nil
	})

	if err := a.hk.RunNow(ctx); err != nil {
		a.log.Warn("initial housekeeping failed", logx.Err(err))
	}
	if err := a.hk.Start(a.sup.Context()); err != nil {
		return fmt.Errorf("housekeeping: %w", err)
	}

	cfg := a.cfgm.Get()
	a.startHTTP(cfg)

	sub := a.cfgm.Subscribe(8)
	a.sup.Go("config.reload", func(c context.Context) error {
		defer a.cfgm.Unsubscribe(sub)
		a.reloadLoop(c, sub)
		return nil
	})
	a.sup.GoRestart("config.watch", a.cfgm.Watch, time.Second, 30*time.Second)

	a.startWatchdog()
	a.sdNotify(sdReady)
	a.log.Info("app started",
		logx.String("config", a.cfgm.Path()),
		logx.Int("tasks", len(a.planner.Tasks())),
		logx.Bool("http", cfg.HTTP.Enabled),
	)
	return nil
}

func (a *App) startHTTP(cfg *config.Config) {
	a.httpMu.Lock()
	defer a.httpMu.Unlock()
	if a.httpCancel != nil {
		a.httpCancel()
		a.httpCancel = nil
	}
	if !cfg.HTTP.Enabled {
		return
	}
	addr := httpAddr(cfg)
	ctx, cancel := context.WithCancel(a.sup.Context())
	a.httpCancel = cancel

	srv := httpapi.New(a.planner, a.log,
		httpapi.WithClock(a.opts.Now),
		httpapi.WithHealth(a.health),
		httpapi.WithProfiler(cfg.HTTP.Pprof),
	)
	a.sup.GoRestart("http", func(context.Context) error {
		return srv.ListenAndServe(ctx, addr)
	}, time.Second, 30*time.Second)
}

type healthDetails struct {
	Housekeeping housekeeping.Snapshot  `json:"housekeeping"`
	Loops        []supervisor.LoopStats `json:"loops"`
	Storage      string                 `json:"storage"`
	Unsatisfied  int                    `json:"unsatisfied"`
	BusDropped   uint64                 `json:"bus_dropped"`
}

func (a *App) health() any {
	storageState := "disabled"
	if a.store != nil {
		storageState = "enabled"
	}
	return healthDetails{
		Housekeeping: a.hk.Snapshot(),
		Loops:        a.sup.Loops(),
		Storage:      storageState,
		Unsatisfied:  len(a.planner.Unsatisfied()),
		BusDropped:   a.bus.Dropped(),
	}
}

// reloadLoop applies committed config changes to the running components.
func (a *App) reloadLoop(ctx context.Context, sub chan *config.Config) {
	lastApplied := a.cfgm.Get()
	for {
		select {
		case <-ctx.Done():
			return
		case newCfg, ok := <-sub:
			if !ok {
				return
			}
			// Coalesce bursts: keep only the latest config.
		drain:
			for {
				select {
				case newer := <-sub:
					if newer != nil {
						newCfg = newer
					}
				default:
					break drain
				}
			}
			a.applyConfig(lastApplied, newCfg)
			lastApplied = newCfg
		}
	}
}

func (a *App) applyConfig(oldCfg, newCfg *config.Config) {
	sections, attrs := config.SummarizeConfigChange(oldCfg, newCfg)
	if len(sections) == 0 {
		a.log.Info("config reloaded (no changes)")
		return
	}
	changed := func(name string) bool { return slices.Contains(sections, name) }

	if changed("logging") {
		a.logs.Apply(mapLoggingConfig(newCfg, a.opts.LogLevel))
	}
	if changed("planner") {
		settings, err := mapPlannerSettings(newCfg)
		if err != nil {
			a.log.Warn("invalid planner config; keeping previous", logx.Err(err))
		} else {
			a.mu.Lock()
			a.planner.Apply(settings)
			a.mu.Unlock()
			a.log.Info("planner settings applied; run reschedule to rebuild the timeline")
		}
	}
	if changed("planner") || changed("housekeeping") {
		if err := a.hk.Apply(mapHousekeepingConfig(newCfg)); err != nil {
			a.log.Warn("housekeeping reconfigure failed", logx.Err(err))
		}
	}
	if changed("http") {
		a.startHTTP(newCfg)
	}
	if changed("storage") {
		a.log.Warn("storage config changed; restart required for changes to take effect")
	}

	fields := append([]logx.Field{logx.String("changed", strings.Join(sections, ","))}, attrs...)
	a.log.Info("config reloaded", fields...)
}

// validate rejects a reload that would fail to apply.
func validate(_ context.Context, cfg *config.Config) error {
	if err := housekeeping.Validate(mapHousekeepingConfig(cfg)); err != nil {
		return fmt.Errorf("housekeeping: %w", err)
	}
	if name := strings.TrimSpace(cfg.Housekeeping.Optimize); name != "" {
		if _, err := optimize.Lookup(name); err != nil {
			return fmt.Errorf("housekeeping.optimize: %w", err)
		}
	}
	if _, _, err := mapStorageConfig(cfg); err != nil {
		return err
	}
	return nil
}

// Stop shuts the daemon down. Each step is bounded so one component can't
// stall the whole stop.
func (a *App) Stop(ctx context.Context, reason StopReason) error {
	if a.sup == nil {
		a.Close()
		return nil
	}
	if reason == "" {
		reason = StopUnknown
	}
	a.log.Info("stopping", logx.String("reason", string(reason)))
	a.sdNotify(sdStopping)

	step := func(name string, limit time.Duration, fn func(context.Context) error) {
		start := time.Now()
		if dl, ok := ctx.Deadline(); ok {
			limit = min(limit, time.Until(dl))
		}
		stepCtx, cancel := context.WithTimeout(ctx, max(limit, 0))
		defer cancel()

		done := make(chan error, 1)
		go func() {
			defer func() {
				if r := recover(); r != nil {
					done <- fmt.Errorf("panic in stop step %s: %v", name, r)
				}
			}()
			done <- fn(stepCtx)
		}()

		select {
		case err := <-done:
			if err != nil {
				a.log.Warn("stop step error", logx.String("name", name), logx.Err(err))
			}
			a.log.Debug("stop step end", logx.String("name", name), logx.Duration("took", time.Since(start)))
		case <-stepCtx.Done():
			a.log.Warn("stop step deadline reached (continuing)",
				logx.String("name", name),
				logx.Duration("elapsed", time.Since(start)),
			)
		}
	}

	step("housekeeping", 3*time.Second, func(c context.Context) error { a.hk.Stop(c); return nil })
	step("supervisor", 6*time.Second, func(c context.Context) error { return a.sup.Stop(c) })
	step("persist", 2*time.Second, func(c context.Context) error {
		a.mu.Lock()
		defer a.mu.Unlock()
		return a.persistLocked(c)
	})
	step("storage", time.Second, func(context.Context) error {
		if a.store != nil {
			return a.store.Close()
		}
		return nil
	})

	a.log.Info("stopped")
	if a.logs != nil {
		_ = a.logs.Close()
	}
	return nil
}
