package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/stackbound/agentrelay/internal/logging"
)

// shutdownGrace bounds draining of in-flight invocations on shutdown.
const shutdownGrace = 10 * time.Second

// Runner executes one logical request as a finite item stream.
type Runner interface {
	Run(ctx context.Context, prompt string) <-chan StreamItem
}

// ServerConfig holds configuration for creating a Server.
type ServerConfig struct {
	Runner Runner
	Logger *logging.Logger

	// Addr is the listen address, e.g. ":8080".
	Addr string

	// DefaultPrompt is substituted when a payload carries no prompt.
	DefaultPrompt string
}

// Server is the runtime entrypoint. It accepts invocation payloads on
// POST /invocations and relays the orchestrator's item stream back as
// server-sent events; GET /ping reports liveness.
type Server struct {
	runner        Runner
	logger        *logging.Logger
	defaultPrompt string
	httpServer    *http.Server
}

// NewServer creates a Server from a configuration.
func NewServer(cfg ServerConfig) *Server {
	s := &Server{
		runner:        cfg.Runner,
		logger:        cfg.Logger,
		defaultPrompt: cfg.DefaultPrompt,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /ping", s.handlePing)
	mux.HandleFunc("POST /invocations", s.handleInvocations)

	s.httpServer = &http.Server{
		Addr:    cfg.Addr,
		Handler: mux,
	}
	return s
}

// Start serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
		defer cancel()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			s.logger.Error("entrypoint shutdown: %v", err)
		}
	}()

	s.logger.Info("entrypoint listening on %s", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("entrypoint server: %w", err)
	}
	return nil
}

// Handler exposes the entrypoint routes for tests.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

func (s *Server) handlePing(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "healthy"})
}

// invocationPayload is the request body of POST /invocations.
type invocationPayload struct {
	Prompt string `json:"prompt"`
}

func (s *Server) handleInvocations(w http.ResponseWriter, r *http.Request) {
	id := uuid.NewString()[:8]

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")

	var payload invocationPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		// Malformed payloads still produce a well-formed stream with a
		// single terminal item, so callers multiplex one code path.
		s.logger.Error("[%s] invalid invocation payload: %v", id, err)
		s.writeItem(w, flusher, EntrypointErrorItem(fmt.Errorf("decoding invocation payload: %w", err)))
		return
	}

	prompt := payload.Prompt
	if prompt == "" {
		prompt = s.defaultPrompt
	}

	s.logger.Info("[%s] invocation started", id)
	items := 0
	for item := range s.runner.Run(r.Context(), prompt) {
		items++
		s.writeItem(w, flusher, item)
		if item.IsError() {
			s.logger.Warning("[%s] invocation ended with %s", id, item.Type)
		}
	}
	s.logger.Info("[%s] invocation finished, %d items", id, items)
}

func (s *Server) writeItem(w http.ResponseWriter, flusher http.Flusher, item StreamItem) {
	data, err := json.Marshal(item)
	if err != nil {
		s.logger.Error("encoding stream item: %v", err)
		return
	}
	fmt.Fprintf(w, "data: %s\n\n", data)
	flusher.Flush()
}
