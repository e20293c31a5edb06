package server

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/me/schedsim/internal/store"
	"github.com/me/schedsim/pkg/model"
)

// Version is reported by the health and discovery endpoints.
const Version = "0.1.0"

// Dispatcher is the part of the worker pool the API drives.
type Dispatcher interface {
	Dispatch(ctx context.Context, workload string) (*model.Cycle, error)
	State() model.DispatcherState
	Workers() int
	WorkerStates() []model.WorkerState
	Policies() []model.Policy
	Cycles() int
	Uptime() time.Duration
}

// Server is the schedsim REST API server.
type Server struct {
	router     chi.Router
	logger     *slog.Logger
	dispatcher Dispatcher
	store      store.Store // optional; nil disables history endpoints
	timeout    time.Duration
	roots      []string // accepted workload locations; empty accepts any
}

// Option configures optional Server dependencies.
type Option func(*Server)

// WithStore enables cycle history persistence and the history endpoints.
func WithStore(st store.Store) Option {
	return func(s *Server) {
		s.store = st
	}
}

// WithRequestTimeout bounds how long a request may run.
func WithRequestTimeout(d time.Duration) Option {
	return func(s *Server) {
		s.timeout = d
	}
}

// WithWorkloadRoots restricts submitted workloads to the given directories
// or URL prefixes.
func WithWorkloadRoots(roots ...string) Option {
	return func(s *Server) {
		s.roots = roots
	}
}

// New creates a new Server with all routes registered.
func New(d Dispatcher, logger *slog.Logger, opts ...Option) *Server {
	s := &Server{
		router:     chi.NewRouter(),
		logger:     logger.With("component", "server"),
		dispatcher: d,
		timeout:    60 * time.Second,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.routes()
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Handler returns the http.Handler for this server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) routes() {
	r := s.router

	// Global middleware
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(requestIDMiddleware)
	r.Use(loggingMiddleware(s.logger))
	r.Use(middleware.Timeout(s.timeout))

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/", s.handleDiscovery)
		r.Get("/health", s.handleHealth)

		r.Route("/cycles", func(r chi.Router) {
			r.Get("/", s.handleListCycles)
			r.Post("/", s.handleCreateCycle)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", s.handleGetCycle)
				r.Delete("/", s.handleDeleteCycle)
			})
		})
	})
}
