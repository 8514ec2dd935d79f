// Package server exposes the checker over HTTP: start/submit/cancel for the
// manual flow, check and check-auto for the single-call flows, plus session
// listing and a health probe.
package server

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/ceacwatch/ceacwatch/pkg/checker"
)

// Core is the subset of the orchestrator the handlers need.
type Core interface {
	CheckManual(ctx context.Context, req checker.CheckRequest) (*checker.ManualCheck, error)
	Resume(ctx context.Context, sessionID, answer string) (*checker.StatusResult, error)
	CheckAuto(ctx context.Context, req checker.CheckRequest) (*checker.StatusResult, error)
	Cancel(ctx context.Context, sessionID string) error
	ListSessions() []checker.SessionInfo
}

// Server is the HTTP front end.
type Server struct {
	core   Core
	logger *zap.Logger
	router *chi.Mux
	server *http.Server
	addr   string
}

// New creates a server bound to the given orchestrator. A nil logger means
// no logging.
func New(addr string, core Core, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}

	s := &Server{
		core:   core,
		logger: logger,
		addr:   addr,
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Get("/api/health", s.handleHealth)
	r.Route("/api/visa-status", func(r chi.Router) {
		r.Post("/start", s.handleStart)
		r.Post("/submit", s.handleSubmit)
		r.Post("/cancel", s.handleCancel)
		r.Get("/sessions", s.handleSessions)
		r.Post("/check", s.handleCheck)
		r.Post("/check-auto", s.handleCheckAuto)
	})

	s.router = r
	return s
}

// Start blocks serving HTTP until the listener fails or Shutdown is called.
func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:         s.addr,
		Handler:      s.router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 5 * time.Minute,
		IdleTimeout:  120 * time.Second,
	}

	s.logger.Info("starting HTTP server", zap.String("addr", s.addr))
	return s.server.ListenAndServe()
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	s.logger.Info("shutting down HTTP server")
	return s.server.Shutdown(ctx)
}

// Handler exposes the router for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}
