// Package housekeeping periodically extends, expires, and re-solves the plan
// on a cron schedule.
package housekeeping

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	logx "pomplan/pkg/logx"
)

type Config struct {
	Enabled  bool
	Schedule string
	// Timezone is an IANA name; empty means local.
	Timezone string
	// Timeout bounds one run. Zero means no limit.
	Timeout time.Duration
}

// Job is one housekeeping pass.
type Job func(ctx context.Context) error

type Service struct {
	mu sync.Mutex

	log    logx.Logger
	cfg    Config
	job    Job
	parser cron.Parser

	c     *cron.Cron
	entry cron.EntryID
	spec  Spec
	ctx   context.Context

	runs     uint64
	lastErr  error
	lastTook time.Duration
}

// Snapshot describes the registered job.
type Snapshot struct {
	Enabled   bool          `json:"enabled"`
	Spec      string        `json:"spec,omitempty"`
	Timezone  string        `json:"timezone"`
	Next      time.Time     `json:"next,omitempty"`
	Prev      time.Time     `json:"prev,omitempty"`
	Runs      uint64        `json:"runs"`
	LastError string        `json:"last_error,omitempty"`
	LastTook  time.Duration `json:"last_took"`
}

func New(cfg Config, job Job, log logx.Logger) *Service {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Service{
		cfg: cfg,
		job: job,
		log: log,
		// Both 5-field and 6-field (with seconds) specs.
		parser: cron.NewParser(cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor),
		ctx:    context.Background(),
	}
}

// Validate checks that cfg would register.
func Validate(cfg Config) error {
	if !cfg.Enabled {
		return nil
	}
	sp, err := ParseSchedule(cfg.Schedule)
	if err != nil {
		return err
	}
	if _, err := loadLocation(cfg.Timezone); err != nil {
		return err
	}
	p := cron.NewParser(cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
	if _, err := p.Parse(sp.CronSpec()); err != nil {
		return fmt.Errorf("schedule %q: %w", cfg.Schedule, err)
	}
	return nil
}

func loadLocation(tz string) (*time.Location, error) {
	tz = strings.TrimSpace(tz)
	if tz == "" {
		return time.Local, nil
	}
	return time.LoadLocation(tz)
}

// Start registers the job and starts triggering. ctx is the parent of every
// run.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.c != nil {
		return nil
	}
	s.ctx = ctx
	return s.startLocked()
}

func (s *Service) startLocked() error {
	loc, err := loadLocation(s.cfg.Timezone)
	if err != nil {
		return err
	}
	s.c = cron.New(
		cron.WithParser(s.parser),
		cron.WithLocation(loc),
		cron.WithChain(cron.Recover(cronLogger{s.log}), cron.SkipIfStillRunning(cronLogger{s.log})),
	)
	s.entry, s.spec = 0, Spec{}
	if s.cfg.Enabled {
		sp, err := ParseSchedule(s.cfg.Schedule)
		if err != nil {
			s.c = nil
			return err
		}
		id, err := s.c.AddFunc(sp.CronSpec(), s.run)
		if err != nil {
			s.c = nil
			return fmt.Errorf("schedule %q: %w", s.cfg.Schedule, err)
		}
		s.entry, s.spec = id, sp
	}
	s.c.Start()
	s.log.Info("housekeeping started",
		logx.Bool("enabled", s.cfg.Enabled),
		logx.String("spec", s.spec.CronSpec()),
		logx.String("tz", loc.String()),
	)
	return nil
}

// Stop stops triggering and waits for a running job, or for ctx.
func (s *Service) Stop(ctx context.Context) {
	s.mu.Lock()
	c := s.c
	s.c = nil
	s.mu.Unlock()
	if c == nil {
		return
	}
	select {
	case <-c.Stop().Done():
	case <-ctx.Done():
	}
	s.log.Info("housekeeping stopped")
}

// Apply swaps the config and re-registers the job when the service is
// running and the schedule changed.
func (s *Service) Apply(cfg Config) error {
	s.mu.Lock()
	old := s.cfg
	s.cfg = cfg
	c := s.c
	s.mu.Unlock()

	if c == nil || old == cfg {
		return nil
	}
	<-c.Stop().Done()

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.c != c {
		// Stopped concurrently.
		return nil
	}
	return s.startLocked()
}

// RunNow runs the job synchronously, outside the schedule.
func (s *Service) RunNow(ctx context.Context) error {
	return s.execute(ctx)
}

func (s *Service) run() {
	s.mu.Lock()
	ctx := s.ctx
	s.mu.Unlock()
	_ = s.execute(ctx)
}

func (s *Service) execute(ctx context.Context) error {
	if s.job == nil {
		return errors.New("housekeeping: no job")
	}
	s.mu.Lock()
	timeout := s.cfg.Timeout
	s.mu.Unlock()
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	start := time.Now()
	err := s.job(ctx)
	took := time.Since(start)

	s.mu.Lock()
	s.runs++
	s.lastErr = err
	s.lastTook = took
	s.mu.Unlock()

	if err != nil {
		s.log.Warn("housekeeping failed", logx.Err(err), logx.Duration("took", took))
	} else {
		s.log.Debug("housekeeping done", logx.Duration("took", took))
	}
	return err
}

func (s *Service) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	tz := strings.TrimSpace(s.cfg.Timezone)
	if tz == "" {
		tz = time.Local.String()
	}
	snap := Snapshot{
		Enabled:  s.cfg.Enabled,
		Timezone: tz,
		Runs:     s.runs,
		LastTook: s.lastTook,
	}
	if s.lastErr != nil {
		snap.LastError = s.lastErr.Error()
	}
	if s.c != nil && s.entry != 0 {
		e := s.c.Entry(s.entry)
		snap.Spec = s.spec.CronSpec()
		snap.Next, snap.Prev = e.Next, e.Prev
	}
	return snap
}

// cronLogger routes cron's own messages into logx.
type cronLogger struct{ log logx.Logger }

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.log.Debug("cron: "+msg, kvFields(keysAndValues)...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.log.Error("cron: "+msg, append(kvFields(keysAndValues), logx.Err(err))...)
}

func kvFields(kv []any) []logx.Field {
	out := make([]logx.Field, 0, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		out = append(out, logx.Any(fmt.Sprint(kv[i]), kv[i+1]))
	}
	return out
}
