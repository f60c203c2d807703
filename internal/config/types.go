package config

// Config is the on-disk configuration. Every section is optional; omitted
// fields fall back to the documented defaults.
type Config struct {
	Planner      PlannerConfig      `json:"planner"`
	Housekeeping HousekeepingConfig `json:"housekeeping"`
	HTTP         HTTPConfig         `json:"http"`
	Logging      LoggingConfig      `json:"logging"`
	Storage      *StorageConfig     `json:"storage,omitempty"`
}

// PlannerConfig shapes the work/break cadence and the daily active period.
//
// All durations are Go duration strings (e.g. "25m", "1h30m").
//
// Defaults (when fields are omitted/empty):
//   - timezone: local
//   - active_start / active_end: "09:00" / "17:00"
//   - break_interval: 4
//   - timeslice / short_break / long_break: "25m" / "5m" / "30m"
//   - horizon: "2160h" (90 days; how far a housekeeping pass extends the timeline)
//
// BreakInterval is a pointer so an explicit 0 is rejected instead of being
// read as "omitted".
type PlannerConfig struct {
	Timezone      string `json:"timezone,omitempty"`
	ActiveStart   string `json:"active_start,omitempty"`
	ActiveEnd     string `json:"active_end,omitempty"`
	BreakInterval *int   `json:"break_interval,omitempty"`
	Timeslice     string `json:"timeslice,omitempty"`
	ShortBreak    string `json:"short_break,omitempty"`
	LongBreak     string `json:"long_break,omitempty"`
	Horizon       string `json:"horizon,omitempty"`
}

// HousekeepingConfig controls the periodic extend/expire/solve job.
//
// Schedule accepts a cron expression ("*/5 * * * *"), a Go duration ("10m"),
// or an "HH:MM" interval. Optimize names a strategy to run after each pass;
// empty disables it.
type HousekeepingConfig struct {
	Enabled        bool   `json:"enabled"`
	Schedule       string `json:"schedule,omitempty"`
	Optimize       string `json:"optimize,omitempty"`
	OptimizeBudget string `json:"optimize_budget,omitempty"`
}

// HTTPConfig controls the read-only plan API.
//
// Prefer binding to localhost; the API has no authentication. Pprof mounts
// the runtime profiler under /debug.
type HTTPConfig struct {
	Enabled bool   `json:"enabled"`
	Addr    string `json:"addr,omitempty"` // default: "127.0.0.1:8787"
	Pprof   bool   `json:"pprof,omitempty"`
}

type LoggingConfig struct {
	Level   string      `json:"level"`
	Console bool        `json:"console"`
	JSON    bool        `json:"json,omitempty"`
	File    LoggingFile `json:"file"`
}

type LoggingFile struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
}

// StorageConfig controls the optional persistence layer.
//
// Example:
//
//	"storage": { "driver": "sqlite", "path": "./pomplan.db" }
type StorageConfig struct {
	Driver      string `json:"driver"`
	Path        string `json:"path"`
	BusyTimeout string `json:"busy_timeout,omitempty"` // Go duration string (sqlite)
}

const (
	DefaultHousekeepingSchedule = "*/5 * * * *"
	DefaultOptimizeBudget       = "500ms"
	DefaultHTTPAddr             = "127.0.0.1:8787"
)

// Default is used when no config file exists.
func Default() *Config {
	return &Config{
		Housekeeping: HousekeepingConfig{Enabled: true, Schedule: DefaultHousekeepingSchedule},
		Logging:      LoggingConfig{Level: "info", Console: true},
		Storage:      &StorageConfig{Driver: "file", Path: "./pomplan_store"},
	}
}
