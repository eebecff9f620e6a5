// Package server exposes the browser sessions over HTTP for the demo UI.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/nkratz/pagepilot/api/schemas"
	"github.com/nkratz/pagepilot/internal/config"
	"github.com/nkratz/pagepilot/internal/session"
)

// SessionProvider is the slice of the session manager the handlers need.
type SessionProvider interface {
	Start(ctx context.Context) (*session.Session, error)
	Get(id string) (*session.Session, error)
	End(id string) error
}

// ActionStore persists session and action history. A nil store disables
// persistence; the server still serves, just without history.
type ActionStore interface {
	CreateSession(ctx context.Context, id string, metadata json.RawMessage) error
	EndSession(ctx context.Context, id string) error
	ListSessions(ctx context.Context) ([]schemas.SessionRecord, error)
	RecordAction(ctx context.Context, rec *schemas.ActionRecord) error
	ListActions(ctx context.Context, sessionID string) ([]schemas.ActionRecord, error)
}

// Server is the demo HTTP server.
type Server struct {
	cfg      config.ServerConfig
	logger   *zap.Logger
	sessions SessionProvider
	store    ActionStore

	http *http.Server
}

// New wires the router and returns a server ready to Run.
func New(cfg config.ServerConfig, sessions SessionProvider, store ActionStore, logger *zap.Logger) *Server {
	s := &Server{
		cfg:      cfg,
		logger:   logger.Named("server"),
		sessions: sessions,
		store:    store,
	}

	s.http = &http.Server{
		Addr:         cfg.Addr,
		Handler:      s.routes(),
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}
	return s
}

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.Recoverer)

	r.Get("/healthz", s.handleHealth)

	r.Route("/v1", func(r chi.Router) {
		if s.cfg.AuthSecret != "" {
			r.Use(s.requireBearerToken)
		}

		r.Post("/sessions", s.handleStartSession)
		r.Get("/sessions", s.handleListSessions)
		r.Route("/sessions/{sessionID}", func(r chi.Router) {
			r.Post("/navigate", s.handleNavigate)
			r.Post("/click", s.handleClick)
			r.Post("/act", s.handleAct)
			r.Post("/extract", s.handleExtract)
			r.Post("/observe", s.handleObserve)
			r.Post("/end", s.handleEndSession)
			r.Get("/actions", s.handleListActions)
		})
	})

	return r
}

// Handler exposes the router for in-process tests.
func (s *Server) Handler() http.Handler {
	return s.http.Handler
}

// Run serves until ctx is canceled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		s.logger.Info("http server listening", zap.String("addr", s.cfg.Addr))
		if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gCtx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
		defer cancel()

		s.logger.Info("shutting down http server")
		return s.http.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
