// ABOUTME: HTTP server orchestration for claudebot transports
// ABOUTME: Wires the REST and WebSocket adapters and manages lifecycle

package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/openclaw/claudebot/internal/config"
	"github.com/openclaw/claudebot/internal/relay"
	"github.com/openclaw/claudebot/internal/store"
)

// serverIDKey is the config key under which the instance id persists.
const serverIDKey = "server_id"

// Server hosts the REST and WebSocket transport adapters.
// Store and relay are injected at construction; there are no
// package-level singletons.
type Server struct {
	config     *config.Config
	store      store.Store
	relay      *relay.Relay
	httpServer *http.Server
	logger     *slog.Logger

	// serverID identifies this instance, persisted across restarts
	serverID string
}

// New creates a server with its routes registered.
// The instance id is read from the config table, generated on first boot.
func New(ctx context.Context, cfg *config.Config, st store.Store, rl *relay.Relay, logger *slog.Logger) (*Server, error) {
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{
		config: cfg,
		store:  st,
		relay:  rl,
		logger: logger.With("component", "server"),
	}

	serverID, err := st.GetConfig(ctx, serverIDKey)
	if errors.Is(err, store.ErrNotFound) {
		serverID = uuid.New().String()
		if err := st.SetConfig(ctx, serverIDKey, serverID); err != nil {
			return nil, fmt.Errorf("persisting server id: %w", err)
		}
		s.logger.Info("generated server id", "server_id", serverID)
	} else if err != nil {
		return nil, fmt.Errorf("reading server id: %w", err)
	}
	s.serverID = serverID

	mux := http.NewServeMux()
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/health/ready", s.handleReady)
	mux.HandleFunc("/api/conversations", s.handleConversations)
	mux.HandleFunc("/api/conversations/", s.handleConversationRoutes)
	mux.HandleFunc("/ws", s.handleWebSocket)

	s.httpServer = &http.Server{
		Addr:              cfg.Server.HTTPAddr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	return s, nil
}

// Run starts the HTTP server and blocks until the context is canceled.
// Returns nil on graceful shutdown, or an error if the server fails.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.config.Server.HTTPAddr)
	if err != nil {
		return fmt.Errorf("listening on HTTP address: %w", err)
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("HTTP server listening", "addr", ln.Addr().String())
		if err := s.httpServer.Serve(ln); err != nil && err != http.ErrServerClosed {
			errCh <- fmt.Errorf("HTTP server: %w", err)
		}
	}()

	var serverErr error
	select {
	case <-ctx.Done():
		s.logger.Info("context canceled, initiating shutdown")
	case serverErr = <-errCh:
		s.logger.Error("server error", "error", serverErr)
	}

	shutdownErr := s.gracefulShutdown()
	if serverErr != nil {
		return serverErr
	}
	return shutdownErr
}

// gracefulShutdown performs shutdown with a fresh context and timeout.
// Uses context.Background() intentionally since the original context is already canceled.
func (s *Server) gracefulShutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutting down HTTP server: %w", err)
	}
	return nil
}

// handleHealth handles GET /health liveness checks.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{
		"status":    "ok",
		"server_id": s.serverID,
	})
}

// handleReady handles GET /health/ready readiness checks.
// Ready means the store answers queries.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if _, err := s.store.ListConversations(r.Context(), 1); err != nil {
		s.logger.Error("readiness check failed", "error", err)
		s.sendJSONError(w, http.StatusServiceUnavailable, "store unavailable")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ready"})
}

// sendJSONError writes a JSON error response.
func (s *Server) sendJSONError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}
