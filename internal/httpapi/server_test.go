package httpapi

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"pomplan/internal/period"
	"pomplan/internal/planner"
	logx "pomplan/pkg/logx"
)

var day1 = time.Date(2024, 3, 30, 8, 0, 0, 0, time.UTC)

type envelope struct {
	Status    string          `json:"status"`
	RequestID string          `json:"request_id"`
	Data      json.RawMessage `json:"data"`
	Error     *APIError       `json:"error"`
}

func testServer(t *testing.T, now time.Time) *Server {
	t.Helper()
	s := planner.DefaultSettings()
	s.Location = time.UTC
	p := planner.New(s, logx.Nop(), nil, planner.WithClock(func() time.Time { return day1 }), planner.WithRand(1))
	err := p.InsertTask("a", planner.Task{
		Name:      "Write report",
		Prio:      2,
		Window:    period.New(day1, day1.Add(24*time.Hour)),
		Estimated: time.Hour,
	})
	if err != nil {
		t.Fatalf("InsertTask: %v", err)
	}
	return New(p, logx.Nop(),
		WithClock(func() time.Time { return now }),
		WithHealth(func() any { return map[string]string{"housekeeping": "idle"} }),
	)
}

func do(t *testing.T, srv *Server, path string, want int) envelope {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	w := httptest.NewRecorder()
	srv.ServeHTTP(w, req)
	if w.Code != want {
		t.Fatalf("GET %s: status=%d, want %d, body=%s", path, w.Code, want, w.Body.String())
	}
	var env envelope
	if err := json.Unmarshal(w.Body.Bytes(), &env); err != nil {
		t.Fatalf("GET %s: invalid JSON: %v", path, err)
	}
	if env.RequestID == "" {
		t.Errorf("GET %s: empty request_id", path)
	}
	return env
}

func TestHealth(t *testing.T) {
	srv := testServer(t, day1)
	env := do(t, srv, "/healthz", http.StatusOK)
	var data struct {
		Status  string            `json:"status"`
		Details map[string]string `json:"details"`
	}
	if err := json.Unmarshal(env.Data, &data); err != nil {
		t.Fatal(err)
	}
	if data.Status != "healthy" || data.Details["housekeeping"] != "idle" {
		t.Fatalf("health = %+v", data)
	}
}

func TestPlanFilters(t *testing.T) {
	srv := testServer(t, day1)

	var all []planner.PlanEntry
	if err := json.Unmarshal(do(t, srv, "/api/v1/plan", http.StatusOK).Data, &all); err != nil {
		t.Fatal(err)
	}
	if len(all) < 3 {
		t.Fatalf("plan has %d slots, want at least 3", len(all))
	}

	var mine []planner.PlanEntry
	if err := json.Unmarshal(do(t, srv, "/api/v1/plan?task=a", http.StatusOK).Data, &mine); err != nil {
		t.Fatal(err)
	}
	if len(mine) != 3 {
		t.Fatalf("task a holds %d slots, want 3", len(mine))
	}

	var free []planner.PlanEntry
	if err := json.Unmarshal(do(t, srv, "/api/v1/plan?free=true", http.StatusOK).Data, &free); err != nil {
		t.Fatal(err)
	}
	if len(free) != len(all)-3 {
		t.Fatalf("free = %d, want %d", len(free), len(all)-3)
	}

	var window []planner.PlanEntry
	path := "/api/v1/plan?from=2024-03-30T09:00:00Z&until=2024-03-30T10:00:00Z"
	if err := json.Unmarshal(do(t, srv, path, http.StatusOK).Data, &window); err != nil {
		t.Fatal(err)
	}
	for _, e := range window {
		if e.At.Before(day1.Add(time.Hour)) || !e.At.Before(day1.Add(2*time.Hour)) {
			t.Fatalf("slot %v outside filter", e.At)
		}
	}

	env := do(t, srv, "/api/v1/plan?from=yesterday", http.StatusBadRequest)
	if env.Status != "error" || env.Error == nil || env.Error.Code != "bad_from" {
		t.Fatalf("bad from: %+v", env)
	}
}

func TestNowReportsCurrentTask(t *testing.T) {
	srv := testServer(t, day1.Add(70*time.Minute))
	var data nowResponse
	if err := json.Unmarshal(do(t, srv, "/api/v1/now", http.StatusOK).Data, &data); err != nil {
		t.Fatal(err)
	}
	if data.Current == nil || !data.Current.Entry.State.IsWork() {
		t.Fatalf("current = %+v", data.Current)
	}
	if data.Current.TaskID != "a" || data.Task == nil || data.Task.Name != "Write report" {
		t.Fatalf("now = %+v", data)
	}
}

func TestNowBeforeTimeline(t *testing.T) {
	srv := testServer(t, day1.Add(-time.Hour))
	var data nowResponse
	if err := json.Unmarshal(do(t, srv, "/api/v1/now", http.StatusOK).Data, &data); err != nil {
		t.Fatal(err)
	}
	if data.Current != nil {
		t.Fatalf("current = %+v, want none", data.Current)
	}
}

func TestTasks(t *testing.T) {
	srv := testServer(t, day1)
	var list []taskView
	if err := json.Unmarshal(do(t, srv, "/api/v1/tasks", http.StatusOK).Data, &list); err != nil {
		t.Fatal(err)
	}
	if len(list) != 1 || list[0].ID != "a" || list[0].Slots != 3 || !list[0].Satisfied {
		t.Fatalf("tasks = %+v", list)
	}

	var one taskView
	if err := json.Unmarshal(do(t, srv, "/api/v1/tasks/a", http.StatusOK).Data, &one); err != nil {
		t.Fatal(err)
	}
	if one.Remaining != time.Hour {
		t.Fatalf("remaining = %v", one.Remaining)
	}

	do(t, srv, "/api/v1/tasks/missing", http.StatusNotFound)
}

func TestUnsatisfiedAndTimeline(t *testing.T) {
	srv := testServer(t, day1)
	var unsat []string
	if err := json.Unmarshal(do(t, srv, "/api/v1/unsatisfied", http.StatusOK).Data, &unsat); err != nil {
		t.Fatal(err)
	}
	if len(unsat) != 0 {
		t.Fatalf("unsatisfied = %v", unsat)
	}

	env := do(t, srv, "/api/v1/timeline?upcoming=true", http.StatusOK)
	var entries []json.RawMessage
	if err := json.Unmarshal(env.Data, &entries); err != nil {
		t.Fatal(err)
	}
	if len(entries) == 0 {
		t.Fatal("timeline is empty")
	}
}

func TestProfilerMount(t *testing.T) {
	s := planner.DefaultSettings()
	s.Location = time.UTC
	p := planner.New(s, logx.Nop(), nil, planner.WithClock(func() time.Time { return day1 }))

	off := New(p, logx.Nop())
	w := httptest.NewRecorder()
	off.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/debug/pprof/", nil))
	if w.Code != http.StatusNotFound {
		t.Fatalf("profiler disabled: status=%d, want 404", w.Code)
	}

	on := New(p, logx.Nop(), WithProfiler(true))
	w = httptest.NewRecorder()
	on.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/debug/pprof/", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("profiler enabled: status=%d, want 200", w.Code)
	}
}
