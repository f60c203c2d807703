// Package httpapi serves a read-only JSON view of the plan.
package httpapi

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"pomplan/internal/planner"
	"pomplan/internal/timeline"
	logx "pomplan/pkg/logx"
)

// PlanView is the slice of the planner the API reads.
type PlanView interface {
	Plan() []planner.PlanEntry
	TimelineEntries() []timeline.Entry
	Current(now time.Time) (planner.Current, bool)
	Tasks() map[string]planner.Task
	Task(id string) (planner.Task, bool)
	Unsatisfied() []string
	Occupancy() map[string]int
}

type Server struct {
	router    chi.Router
	log       logx.Logger
	plan      PlanView
	health    func() any
	now       func() time.Time
	startTime time.Time
	profiler  bool

	srv *http.Server
}

type Option func(*Server)

// WithHealth adds component details to /healthz.
func WithHealth(fn func() any) Option { return func(s *Server) { s.health = fn } }

// WithProfiler mounts net/http/pprof under /debug.
func WithProfiler(enabled bool) Option { return func(s *Server) { s.profiler = enabled } }

// WithClock replaces time.Now for /now and relative plan filters.
func WithClock(now func() time.Time) Option { return func(s *Server) { s.now = now } }

func New(plan PlanView, log logx.Logger, opts ...Option) *Server {
	if log.IsZero() {
		log = logx.Nop()
	}
	s := &Server{
		router:    chi.NewRouter(),
		log:       log.With(logx.String("comp", "http")),
		plan:      plan,
		now:       time.Now,
		startTime: time.Now(),
	}
	for _, o := range opts {
		o(s)
	}
	s.routes()
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) Handler() http.Handler { return s.router }

func (s *Server) routes() {
	r := s.router
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(requestIDMiddleware)
	r.Use(loggingMiddleware(s.log))

	r.Get("/healthz", s.handleHealth)
	if s.profiler {
		r.Mount("/debug", middleware.Profiler())
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/plan", s.handlePlan)
		r.Get("/timeline", s.handleTimeline)
		r.Get("/now", s.handleNow)
		r.Get("/unsatisfied", s.handleUnsatisfied)
		r.Route("/tasks", func(r chi.Router) {
			r.Get("/", s.handleListTasks)
			r.Get("/{id}", s.handleGetTask)
		})
	})
}

// ListenAndServe binds addr and serves until ctx is cancelled, then shuts
// down gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	s.srv = &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
	}
	s.log.Info("http listening", logx.String("addr", ln.Addr().String()))

	errCh := make(chan error, 1)
	go func() { errCh <- s.srv.Serve(ln) }()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.srv.Shutdown(shutdownCtx); err != nil {
			s.log.Warn("http shutdown", logx.Err(err))
		}
		<-errCh
		return nil
	}
}
