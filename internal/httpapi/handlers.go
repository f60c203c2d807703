package httpapi

import (
	"net/http"
	"runtime"
	"slices"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"pomplan/internal/planner"
	"pomplan/internal/timeline"
)

type healthResponse struct {
	Status    string `json:"status"`
	GoVersion string `json:"go_version"`
	Uptime    string `json:"uptime"`
	Details   any    `json:"details,omitempty"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{
		Status:    "healthy",
		GoVersion: runtime.Version(),
		Uptime:    time.Since(s.startTime).Round(time.Second).String(),
	}
	if s.health != nil {
		resp.Details = s.health()
	}
	respondOK(w, RequestIDFromContext(r.Context()), resp)
}

// handlePlan lists slots. Optional query parameters: from and until (RFC3339)
// bound the slot start, task keeps only one occupant, and free=true keeps only
// free slots.
func (s *Server) handlePlan(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())
	q := r.URL.Query()

	from, err := parseTimeParam(q.Get("from"))
	if err != nil {
		respondError(w, reqID, http.StatusBadRequest, "bad_from", err.Error())
		return
	}
	until, err := parseTimeParam(q.Get("until"))
	if err != nil {
		respondError(w, reqID, http.StatusBadRequest, "bad_until", err.Error())
		return
	}
	task := q.Get("task")
	freeOnly := strings.EqualFold(q.Get("free"), "true")

	entries := s.plan.Plan()
	out := make([]planner.PlanEntry, 0, len(entries))
	for _, e := range entries {
		if !from.IsZero() && e.At.Before(from) {
			continue
		}
		if !until.IsZero() && !e.At.Before(until) {
			continue
		}
		if task != "" && e.TaskID != task {
			continue
		}
		if freeOnly && e.TaskID != "" {
			continue
		}
		out = append(out, e)
	}
	respondOK(w, reqID, out)
}

func (s *Server) handleTimeline(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())
	entries := s.plan.TimelineEntries()
	if strings.EqualFold(r.URL.Query().Get("upcoming"), "true") {
		now := s.now()
		entries = slices.DeleteFunc(entries, func(e timeline.Entry) bool { return !e.Interval.End.After(now) })
	}
	respondOK(w, reqID, entries)
}

type nowResponse struct {
	At      time.Time        `json:"at"`
	Current *planner.Current `json:"current,omitempty"`
	Task    *planner.Task    `json:"task,omitempty"`
}

func (s *Server) handleNow(w http.ResponseWriter, r *http.Request) {
	now := s.now()
	resp := nowResponse{At: now}
	if cur, ok := s.plan.Current(now); ok {
		resp.Current = &cur
		if t, ok := s.plan.Task(cur.TaskID); ok {
			resp.Task = &t
		}
	}
	respondOK(w, RequestIDFromContext(r.Context()), resp)
}

func (s *Server) handleUnsatisfied(w http.ResponseWriter, r *http.Request) {
	respondOK(w, RequestIDFromContext(r.Context()), s.plan.Unsatisfied())
}

type taskView struct {
	ID        string        `json:"id"`
	Task      planner.Task  `json:"task"`
	Remaining time.Duration `json:"remaining"`
	Slots     int           `json:"slots"`
	Satisfied bool          `json:"satisfied"`
}

func (s *Server) taskViews() []taskView {
	tasks := s.plan.Tasks()
	occ := s.plan.Occupancy()
	unsat := s.plan.Unsatisfied()
	out := make([]taskView, 0, len(tasks))
	for id, t := range tasks {
		out = append(out, taskView{
			ID:        id,
			Task:      t,
			Remaining: t.Remaining(),
			Slots:     occ[id],
			Satisfied: !slices.Contains(unsat, id),
		})
	}
	slices.SortFunc(out, func(a, b taskView) int { return strings.Compare(a.ID, b.ID) })
	return out
}

func (s *Server) handleListTasks(w http.ResponseWriter, r *http.Request) {
	respondOK(w, RequestIDFromContext(r.Context()), s.taskViews())
}

func (s *Server) handleGetTask(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())
	id := chi.URLParam(r, "id")
	for _, v := range s.taskViews() {
		if v.ID == id {
			respondOK(w, reqID, v)
			return
		}
	}
	respondError(w, reqID, http.StatusNotFound, "not_found", "unknown task "+id)
}

func parseTimeParam(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, nil
	}
	return time.Parse(time.RFC3339, raw)
}
