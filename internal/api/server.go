// Package api provides HTTP handlers and the main API server logic for
// LobbyPipe.
//
// Two clients talk to it: the conversational agent posts classified
// utterances, and the browser kiosk client polls for signals and posts
// capture results and form submissions back.
package api

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/openlobby/LobbyPipe/internal/flow"
	"github.com/openlobby/LobbyPipe/internal/session"
	"github.com/openlobby/LobbyPipe/internal/signal"
	"github.com/openlobby/LobbyPipe/internal/store"
	"github.com/openlobby/LobbyPipe/internal/verify"
)

// DefaultAddr is the default listen address for the API server.
const DefaultAddr = ":8080"

// DefaultShutdownTimeout bounds graceful shutdown on exit.
const DefaultShutdownTimeout = 10 * time.Second

// Opts holds configuration options for the API server.
type Opts struct {
	Addr    string
	Matcher verify.Matcher
}

// Option defines a configuration option for the API server.
type Option func(*Opts)

// WithAddr sets the listen address.
func WithAddr(addr string) Option {
	return func(o *Opts) { o.Addr = addr }
}

// WithMatcher sets the biometric matcher used for raw-image capture callbacks.
func WithMatcher(m verify.Matcher) Option {
	return func(o *Opts) { o.Matcher = m }
}

// Server is the LobbyPipe HTTP surface.
type Server struct {
	addr     string
	registry *session.Registry
	engine   *flow.Engine
	mailbox  *signal.Mailbox
	store    store.Store
	matcher  verify.Matcher
}

// NewServer creates an API server over the coordination core.
func NewServer(registry *session.Registry, engine *flow.Engine, mailbox *signal.Mailbox, st store.Store, opts ...Option) *Server {
	cfg := Opts{Addr: DefaultAddr}
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Server{
		addr:     cfg.Addr,
		registry: registry,
		engine:   engine,
		mailbox:  mailbox,
		store:    st,
		matcher:  cfg.Matcher,
	}
}

// routes builds the request mux.
func (s *Server) routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/flow/utterance", s.utteranceHandler)
	mux.HandleFunc("/flow/capture_result", s.captureResultHandler)
	mux.HandleFunc("/flow/visitor_info", s.visitorInfoHandler)
	mux.HandleFunc("/flow/manual_verification", s.manualVerificationHandler)
	mux.HandleFunc("/flow/end", s.endHandler)
	mux.HandleFunc("/flow/status", s.statusHandler)
	mux.HandleFunc("/signal", s.signalPeekHandler)
	mux.HandleFunc("/signal/consume", s.signalConsumeHandler)
	mux.HandleFunc("/visitor_logs", s.visitorLogsHandler)
	mux.HandleFunc("/health", s.healthHandler)
	return mux
}

// Run serves HTTP until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	httpServer := &http.Server{
		Addr:    s.addr,
		Handler: s.routes(),
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("LobbyPipe API listening", "addr", s.addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("API server failed: %w", err)
	case <-ctx.Done():
		slog.Info("Shutting down API server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), DefaultShutdownTimeout)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("API server shutdown failed: %w", err)
		}
		return nil
	}
}
