package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"slices"
	"strings"
	"time"

	"pomplan/internal/planner"
)

var whenLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02T15:04",
	"2006-01-02",
}

// parseWhen reads an absolute time in one of whenLayouts (zone-less layouts
// are read in loc) or "+<duration>" relative to now.
func parseWhen(raw string, loc *time.Location, now time.Time) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, fmt.Errorf("time required")
	}
	if rest, ok := strings.CutPrefix(raw, "+"); ok {
		d, err := time.ParseDuration(rest)
		if err != nil {
			return time.Time{}, fmt.Errorf("invalid relative time %q: %w", raw, err)
		}
		return now.Add(d), nil
	}
	if loc == nil {
		loc = time.Local
	}
	for _, layout := range whenLayouts {
		if t, err := time.ParseInLocation(layout, raw, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid time %q (use RFC3339, \"YYYY-MM-DD HH:MM\", or +duration)", raw)
}

// resolveTask accepts a task ID or a case-insensitive unique task name.
func resolveTask(p *planner.Planner, ref string) (string, planner.Task, error) {
	ref = strings.TrimSpace(ref)
	if t, ok := p.Task(ref); ok {
		return ref, t, nil
	}
	var matches []string
	tasks := p.Tasks()
	for id, t := range tasks {
		if strings.EqualFold(t.Name, ref) {
			matches = append(matches, id)
		}
	}
	switch len(matches) {
	case 0:
		return "", planner.Task{}, fmt.Errorf("%w: %q", planner.ErrUnknownTask, ref)
	case 1:
		return matches[0], tasks[matches[0]], nil
	default:
		slices.Sort(matches)
		return "", planner.Task{}, fmt.Errorf("task name %q is ambiguous; use one of the IDs %s", ref, strings.Join(matches, ", "))
	}
}

func taskName(tasks map[string]planner.Task, id string) string {
	if id == "" {
		return "Free"
	}
	if t, ok := tasks[id]; ok && t.Name != "" {
		return t.Name
	}
	return id
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
