// Package api serves a live BodyControl session over HTTP and WebSocket.
//
// Clients start and reset the session, send actions or raw key codes, poll
// the current state, stream it over /ws and browse finished-session history
// with their debriefs.
package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/BTreeMap/BodyControl/internal/input"
	"github.com/BTreeMap/BodyControl/internal/scheduler"
	"github.com/BTreeMap/BodyControl/internal/store"
)

// Default settings.
const (
	DefaultAddr            = ":8080"
	DefaultStreamInterval  = 100 * time.Millisecond
	DefaultHistoryLimit    = 50
	DefaultRequestTimeout  = 5 * time.Second
	DefaultShutdownTimeout = 10 * time.Second
)

// Opts holds server configuration.
type Opts struct {
	WebDir         string
	StreamInterval time.Duration
	Keys           *input.Handler
}

// Option configures a Server.
type Option func(*Opts)

// WithWebDir serves static files from dir at /.
func WithWebDir(dir string) Option {
	return func(o *Opts) { o.WebDir = dir }
}

// WithStreamInterval sets how often /ws pushes state.
func WithStreamInterval(d time.Duration) Option {
	return func(o *Opts) {
		if d > 0 {
			o.StreamInterval = d
		}
	}
}

// WithKeyHandler overrides key bindings and repeat filtering.
func WithKeyHandler(h *input.Handler) Option {
	return func(o *Opts) { o.Keys = h }
}

// Server routes requests to the session host and history store.
type Server struct {
	host           *scheduler.Host
	st             store.Store
	keys           *input.Handler
	webDir         string
	streamInterval time.Duration
	upgrader       websocket.Upgrader
	mux            *http.ServeMux
}

// NewServer creates a server. st may be nil, in which case history
// endpoints report that no store is configured.
func NewServer(host *scheduler.Host, st store.Store, opts ...Option) *Server {
	cfg := Opts{StreamInterval: DefaultStreamInterval}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.Keys == nil {
		cfg.Keys = input.NewHandler(nil, nil)
	}
	s := &Server{
		host:           host,
		st:             st,
		keys:           cfg.Keys,
		webDir:         cfg.WebDir,
		streamInterval: cfg.StreamInterval,
		upgrader: websocket.Upgrader{
			// The game page may be opened from a file or another port.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		mux: http.NewServeMux(),
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.mux.HandleFunc("/health", s.healthHandler)
	s.mux.HandleFunc("/session/start", s.startHandler)
	s.mux.HandleFunc("/session/reset", s.resetHandler)
	s.mux.HandleFunc("/action", s.actionHandler)
	s.mux.HandleFunc("/state", s.stateHandler)
	s.mux.HandleFunc("/controls", s.controlsHandler)
	s.mux.HandleFunc("/ws", s.wsHandler)
	s.mux.HandleFunc("/sessions", s.listSessionsHandler)
	s.mux.HandleFunc("/sessions/{id}", s.getSessionHandler)
	s.mux.HandleFunc("/sessions/{id}/debrief", s.getDebriefHandler)
	if s.webDir != "" {
		slog.Info("Server.routes: serving static files", "dir", s.webDir)
		s.mux.Handle("/", http.FileServer(http.Dir(s.webDir)))
	}
}

// Handler returns the root HTTP handler.
func (s *Server) Handler() http.Handler { return s.mux }

// ListenAndServe serves on addr until ctx is done, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	if addr == "" {
		addr = DefaultAddr
	}
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("Server.ListenAndServe: listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		slog.Error("Server.ListenAndServe: server failed", "error", err)
		return err
	case <-ctx.Done():
	}

	slog.Info("Server.ListenAndServe: shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), DefaultShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("Server.ListenAndServe: shutdown failed", "error", err)
		return err
	}
	return nil
}
