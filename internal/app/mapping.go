package app

import (
	"fmt"
	"strings"
	"time"

	"pomplan/internal/config"
	"pomplan/internal/housekeeping"
	"pomplan/internal/planner"
	"pomplan/internal/storage"
	"pomplan/internal/timeline"
	logx "pomplan/pkg/logx"
)

func mapStorageConfig(cfg *config.Config) (storage.Config, bool, error) {
	if cfg == nil || cfg.Storage == nil {
		return storage.Config{}, false, nil
	}
	sc := cfg.Storage
	driver := strings.ToLower(strings.TrimSpace(sc.Driver))
	if driver == "" || driver == "none" {
		return storage.Config{}, false, nil
	}
	path := strings.TrimSpace(sc.Path)

	switch driver {
	case "file":
		return storage.Config{Driver: "file", Path: path}, true, nil
	case "sqlite", "sqlite3":
		if path == "" {
			return storage.Config{}, false, fmt.Errorf("storage.path is required when storage.driver=sqlite")
		}
		busy, err := config.ParseDurationOrDefault("storage.busy_timeout", sc.BusyTimeout, time.Second)
		if err != nil {
			return storage.Config{}, false, err
		}
		return storage.Config{Driver: driver, Path: path, BusyTimeout: busy}, true, nil
	default:
		return storage.Config{}, false, fmt.Errorf("unknown storage.driver: %s", sc.Driver)
	}
}

func mapPlannerSettings(cfg *config.Config) (planner.Settings, error) {
	p, err := cfg.Planner.Resolve()
	if err != nil {
		return planner.Settings{}, err
	}
	return planner.Settings{
		Timeslice:     p.Timeslice,
		ShortBreak:    p.ShortBreak,
		LongBreak:     p.LongBreak,
		BreakInterval: p.BreakInterval,
		Active:        timeline.ActiveWindow{Start: p.ActiveStart, End: p.ActiveEnd},
		Location:      p.Location,
		Horizon:       p.Horizon,
	}, nil
}

// mapHousekeepingConfig runs the job in the planner's timezone so HH:MM and
// cron specs read the same as the active window.
func mapHousekeepingConfig(cfg *config.Config) housekeeping.Config {
	schedule := strings.TrimSpace(cfg.Housekeeping.Schedule)
	if schedule == "" {
		schedule = config.DefaultHousekeepingSchedule
	}
	return housekeeping.Config{
		Enabled:  cfg.Housekeeping.Enabled,
		Schedule: schedule,
		Timezone: strings.TrimSpace(cfg.Planner.Timezone),
		Timeout:  30 * time.Second,
	}
}

// mapLoggingConfig applies a non-empty level override on top of the file.
func mapLoggingConfig(cfg *config.Config, level string) logx.Config {
	out := logx.Config{
		Level:   cfg.Logging.Level,
		Console: cfg.Logging.Console,
		JSON:    cfg.Logging.JSON,
		File: logx.FileConfig{
			Enabled: cfg.Logging.File.Enabled,
			Path:    cfg.Logging.File.Path,
		},
	}
	if strings.TrimSpace(level) != "" {
		out.Level = level
	}
	return out
}

func httpAddr(cfg *config.Config) string {
	if addr := strings.TrimSpace(cfg.HTTP.Addr); addr != "" {
		return addr
	}
	return config.DefaultHTTPAddr
}
