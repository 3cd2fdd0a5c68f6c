// Package web serves the phone page and its JSON/WebSocket API.
package web

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"github.com/edgard/aiphone/internal/config"
	"github.com/edgard/aiphone/internal/logger"
	"github.com/edgard/aiphone/internal/session"
)

// StatusSource provides the device status string and its changes.
type StatusSource interface {
	Current() string
	OnChange(fn func(string))
}

// Pinger reports whether the profile store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Server is the HTTP front end.
type Server struct {
	cfg      config.ServerConfig
	sessions *session.Manager
	status   StatusSource
	health   Pinger
	logger   *slog.Logger
	router   *mux.Router
	upgrader websocket.Upgrader

	mu       sync.Mutex
	watchers map[chan string]struct{}
}

// NewServer wires the routes. The status source's changes are pushed to
// every open WebSocket.
func NewServer(cfg config.ServerConfig, sessions *session.Manager, status StatusSource, health Pinger, log *slog.Logger) *Server {
	if log == nil {
		log = logger.Discard()
	}
	s := &Server{
		cfg:      cfg,
		sessions: sessions,
		status:   status,
		health:   health,
		logger:   log.With("component", "web"),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		watchers: make(map[chan string]struct{}),
	}
	status.OnChange(s.broadcastStatus)

	r := mux.NewRouter()
	r.Use(logger.Middleware(s.logger))
	r.HandleFunc("/", s.handleIndex).Methods(http.MethodGet)
	r.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)

	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/status", s.handleStatus).Methods(http.MethodGet)
	api.HandleFunc("/avatar", s.handleAvatar).Methods(http.MethodPost)
	api.HandleFunc("/sessions", s.handleCreateSession).Methods(http.MethodPost)
	api.HandleFunc("/sessions/{id}", s.handleGetSession).Methods(http.MethodGet)
	api.HandleFunc("/sessions/{id}/config", s.handleSubmitConfig).Methods(http.MethodPost)
	api.HandleFunc("/sessions/{id}/messages", s.handleSendMessage).Methods(http.MethodPost)
	api.HandleFunc("/sessions/{id}/messages", s.handleListMessages).Methods(http.MethodGet)
	api.HandleFunc("/sessions/{id}/ws", s.handleWebSocket).Methods(http.MethodGet)
	s.router = r

	return s
}

// Handler returns the root handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run listens on the configured address until ctx is cancelled, then shuts
// down within the configured timeout.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("HTTP server listening", "addr", s.cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	s.logger.Info("Shutting down HTTP server...")
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http server shutdown failed: %w", err)
	}
	s.logger.Info("HTTP server stopped.")
	return nil
}

func (s *Server) watchStatus() (<-chan string, func()) {
	ch := make(chan string, 4)
	s.mu.Lock()
	s.watchers[ch] = struct{}{}
	s.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.watchers, ch)
			s.mu.Unlock()
		})
	}
}

func (s *Server) broadcastStatus(text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for ch := range s.watchers {
		select {
		case ch <- text:
		default:
		}
	}
}
