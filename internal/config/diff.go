package config

import (
	"reflect"
	"sort"
	"strings"

	logx "pomplan/pkg/logx"
)

// SummarizeConfigChange returns the sorted names of the sections that differ
// and structured fields describing their new values. Paths are reported only
// as set/unset.
func SummarizeConfigChange(oldCfg, newCfg *Config) ([]string, []logx.Field) {
	if oldCfg == nil {
		oldCfg = &Config{}
	}
	if newCfg == nil {
		newCfg = &Config{}
	}

	changed := make([]string, 0, 5)
	attrs := make([]logx.Field, 0, 16)

	if !reflect.DeepEqual(oldCfg.Planner, newCfg.Planner) {
		changed = append(changed, "planner")
		p := newCfg.Planner
		attrs = append(attrs,
			logx.String("planner.timezone", strings.TrimSpace(p.Timezone)),
			logx.String("planner.active", strings.TrimSpace(p.ActiveStart)+"-"+strings.TrimSpace(p.ActiveEnd)),
			logx.String("planner.timeslice", strings.TrimSpace(p.Timeslice)),
		)
		if p.BreakInterval != nil {
			attrs = append(attrs, logx.Int("planner.break_interval", *p.BreakInterval))
		}
	}

	if oldCfg.Housekeeping != newCfg.Housekeeping {
		changed = append(changed, "housekeeping")
		h := newCfg.Housekeeping
		attrs = append(attrs,
			logx.Bool("housekeeping.enabled", h.Enabled),
			logx.String("housekeeping.schedule", strings.TrimSpace(h.Schedule)),
			logx.String("housekeeping.optimize", strings.TrimSpace(h.Optimize)),
		)
	}

	if oldCfg.HTTP != newCfg.HTTP {
		changed = append(changed, "http")
		attrs = append(attrs,
			logx.Bool("http.enabled", newCfg.HTTP.Enabled),
			logx.String("http.addr", strings.TrimSpace(newCfg.HTTP.Addr)),
			logx.Bool("http.pprof", newCfg.HTTP.Pprof),
		)
	}

	if oldCfg.Logging != newCfg.Logging {
		changed = append(changed, "logging")
		attrs = append(attrs,
			logx.String("logx.level", newCfg.Logging.Level),
			logx.Bool("logx.console", newCfg.Logging.Console),
			logx.Bool("logx.file_enabled", newCfg.Logging.File.Enabled),
		)
	}

	// Nil means disabled.
	var oDriver, nDriver, oBusy, nBusy string
	var oPathSet, nPathSet bool
	if s := oldCfg.Storage; s != nil {
		oDriver, oBusy, oPathSet = strings.TrimSpace(s.Driver), strings.TrimSpace(s.BusyTimeout), strings.TrimSpace(s.Path) != ""
	}
	if s := newCfg.Storage; s != nil {
		nDriver, nBusy, nPathSet = strings.TrimSpace(s.Driver), strings.TrimSpace(s.BusyTimeout), strings.TrimSpace(s.Path) != ""
	}
	if oDriver != nDriver || oBusy != nBusy || oPathSet != nPathSet {
		changed = append(changed, "storage")
		attrs = append(attrs,
			logx.String("storage.driver", nDriver),
			logx.Bool("storage.path_set", nPathSet),
			logx.String("storage.busy_timeout", nBusy),
		)
	}

	sort.Strings(changed)
	return changed, attrs
}
