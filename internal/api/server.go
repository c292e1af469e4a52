// Package api serves the admin HTTP surface of a running hub.
package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"git.home.luguber.info/inful/mobilecore/internal/foundation/errors"
	"git.home.luguber.info/inful/mobilecore/internal/hub"
)

// Queue is the view of a hit queue the API exposes.
type Queue interface {
	Table() string
	Size() int64
	IsSuspended() bool
	DeleteAllHits() bool
}

// Option configures a Server.
type Option func(*Server)

// WithQueues sets the function listing the live hit queues.
func WithQueues(fn func() []Queue) Option {
	return func(s *Server) { s.queues = fn }
}

// WithTokens sets the bearer tokens accepted by mutating endpoints.
func WithTokens(tokens []string) Option {
	return func(s *Server) {
		for _, t := range tokens {
			if t != "" {
				s.tokens[t] = true
			}
		}
	}
}

// WithMetricsHandler serves h on /metrics.
func WithMetricsHandler(h http.Handler) Option {
	return func(s *Server) { s.metrics = h }
}

func WithLogger(l *slog.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

// Server represents the API server.
type Server struct {
	Addr    string
	router  *chi.Mux
	server  *http.Server
	hub     *hub.Hub
	queues  func() []Queue
	tokens  map[string]bool
	metrics http.Handler
	logger  *slog.Logger
	errors  *errors.HTTPErrorAdapter
}

// NewServer creates a new API server for h.
func NewServer(addr string, h *hub.Hub, opts ...Option) *Server {
	s := &Server{
		Addr:   addr,
		router: chi.NewRouter(),
		hub:    h,
		queues: func() []Queue { return nil },
		tokens: make(map[string]bool),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.errors = errors.NewHTTPErrorAdapter(s.logger)

	s.setupRoutes()

	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return s
}

// setupRoutes configures all API routes.
func (s *Server) setupRoutes() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(requestLogger(s.logger))
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.Timeout(30 * time.Second))

	s.router.Get("/health", s.handleHealth)

	s.router.Route("/v1", func(r chi.Router) {
		r.Get("/modules", s.handleModules)
		r.Get("/shared-states", s.handleSharedStateNames)
		r.Get("/shared-states/{name}", s.handleSharedState)
		r.Post("/events", s.handleDispatch)
		r.Get("/queues", s.handleQueues)
		r.With(s.requireAdmin).Delete("/queues/{table}", s.handlePurgeQueue)
	})

	if s.metrics != nil {
		s.router.Method(http.MethodGet, "/metrics", s.metrics)
	}
}

// Handler returns the router, for tests and embedding.
func (s *Server) Handler() http.Handler { return s.router }

// Start serves until Shutdown. It returns nil after a graceful shutdown.
func (s *Server) Start() error {
	s.logger.Info("Admin API listening", slog.String("addr", s.Addr))
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return errors.WrapError(err, errors.CategoryDaemon, "admin API stopped").
			WithContext("addr", s.Addr).
			Build()
	}
	return nil
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

// Response represents a standard API response.
type Response struct {
	Success bool `json:"success"`
	Data    any  `json:"data,omitempty"`
}

// Success writes a success response.
func (s *Server) Success(w http.ResponseWriter, code int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(Response{Success: true, Data: data})
}

// Error writes a classified error response.
func (s *Server) Error(w http.ResponseWriter, r *http.Request, err error) {
	s.errors.WriteErrorResponse(w, r, err)
}
