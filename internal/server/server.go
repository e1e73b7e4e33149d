// ABOUTME: HTTP server orchestrator wiring store, upstream client, relay, and hub
// ABOUTME: Owns startup checks, the retention sweep, and graceful shutdown

package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/2389/agent-studio/internal/auth"
	"github.com/2389/agent-studio/internal/config"
	"github.com/2389/agent-studio/internal/hub"
	"github.com/2389/agent-studio/internal/relay"
	"github.com/2389/agent-studio/internal/store"
	"github.com/2389/agent-studio/internal/upstream"
)

const (
	shutdownTimeout = 10 * time.Second
	// retentionSweepInterval is how often expired sessions are purged
	// when a retention window is configured.
	retentionSweepInterval = time.Hour
)

// Server hosts the client-facing API: session management over REST and
// the chat channel over websockets.
type Server struct {
	config     *config.Config
	store      store.Store
	upstream   *upstream.Client
	aggregator *relay.Aggregator
	registry   *hub.Registry
	httpServer *http.Server
	logger     *slog.Logger
}

// New wires a server from configuration. The store is opened here and
// closed by Shutdown.
func New(cfg *config.Config, logger *slog.Logger) (*Server, error) {
	if logger == nil {
		logger = slog.Default()
	}

	st, err := store.NewSQLiteStore(cfg.Database.Path)
	if err != nil {
		return nil, fmt.Errorf("opening store: %w", err)
	}

	client := upstream.NewClient(cfg.Upstream.BaseURL, cfg.Upstream.APIKey, logger)

	s := &Server{
		config:     cfg,
		store:      st,
		upstream:   client,
		aggregator: relay.NewAggregator(client, logger),
		registry:   hub.NewRegistry(logger),
		logger:     logger.With("component", "server"),
	}

	var verifier auth.TokenVerifier
	if cfg.Auth.JWTSecret != "" {
		verifier = auth.NewJWTVerifier([]byte(cfg.Auth.JWTSecret))
	}

	s.httpServer = &http.Server{
		Addr:    cfg.Server.HTTPAddr,
		Handler: s.routes(verifier),
	}
	return s, nil
}

// routes builds the full handler tree. Authentication, when configured,
// covers everything except the health probe and the chat page.
func (s *Server) routes(verifier auth.TokenVerifier) http.Handler {
	protected := http.NewServeMux()
	protected.HandleFunc("POST /sessions", s.handleCreateSession)
	protected.HandleFunc("GET /sessions", s.handleListSessions)
	protected.HandleFunc("GET /sessions/{id}/messages", s.handleGetMessages)
	protected.HandleFunc("POST /sessions/{id}/messages", s.handleSendMessage)
	protected.HandleFunc("DELETE /sessions/{id}", s.handleDeleteSession)
	protected.HandleFunc("GET /sessions/{id}/transcript", s.handleTranscript)
	protected.HandleFunc("GET /agents", s.handleListAgents)
	protected.HandleFunc("GET /ws/{id}", s.handleWebSocket)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /{$}", s.handleChatPage)
	mux.Handle("/", auth.Middleware(verifier)(protected))
	return mux
}

// Run starts the server and blocks until the context is canceled or the
// listener fails. The upstream reachability check and retention sweep
// run alongside; neither can prevent startup.
func (s *Server) Run(ctx context.Context) error {
	if s.upstream.CheckConnection(ctx) {
		s.logger.Info("upstream platform reachable", "base_url", s.config.Upstream.BaseURL)
	} else {
		s.logger.Warn("upstream platform unreachable, chat will degrade until it recovers",
			"base_url", s.config.Upstream.BaseURL)
	}

	sweepCtx, stopSweep := context.WithCancel(ctx)
	defer stopSweep()
	if s.config.Chat.SessionRetention > 0 {
		go s.retentionSweep(sweepCtx)
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("http server listening", "addr", s.config.Server.HTTPAddr)
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
		return s.Shutdown()
	}
}

// retentionSweep periodically deletes sessions idle past the configured
// retention window.
func (s *Server) retentionSweep(ctx context.Context) {
	ticker := time.NewTicker(retentionSweepInterval)
	defer ticker.Stop()

	for {
		s.sweepOnce(ctx)
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (s *Server) sweepOnce(ctx context.Context) {
	n, err := s.store.CleanupOldSessions(ctx, s.config.Chat.SessionRetention)
	if err != nil {
		s.logger.Error("retention sweep failed", "error", err)
		return
	}
	if n > 0 {
		s.logger.Info("retention sweep removed sessions", "count", n)
	}
}

// Shutdown stops the listener and releases the store and upstream client.
func (s *Server) Shutdown() error {
	s.logger.Info("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	var errs []error
	if err := s.httpServer.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("http shutdown: %w", err))
	}
	s.upstream.Close()
	if err := s.store.Close(); err != nil {
		errs = append(errs, fmt.Errorf("closing store: %w", err))
	}
	return errors.Join(errs...)
}
