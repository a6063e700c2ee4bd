// Package server exposes the event stream and search index over HTTP.
// It carries three routes: an SSE stream of domain events, the
// full-text search endpoint, and a health probe.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/reveriehq/reverie/internal/config"
	"github.com/reveriehq/reverie/internal/core/domain"
	"github.com/reveriehq/reverie/internal/events"
	"github.com/reveriehq/reverie/internal/logger"
	"github.com/reveriehq/reverie/internal/search"
)

const (
	maxQueryLength = 200
	defaultLimit   = 20
	maxLimit       = 50
)

// Server is the HTTP front of the service.
type Server struct {
	cfg   config.Config
	hub   *events.Hub
	bus   *events.Bus
	index *search.Index

	httpServer *http.Server
	listener   net.Listener
}

// New creates an HTTP server over the hub, bus and search index.
func New(cfg config.Config, hub *events.Hub, bus *events.Bus, index *search.Index) *Server {
	return &Server{
		cfg:   cfg,
		hub:   hub,
		bus:   bus,
		index: index,
	}
}

// Handler builds the route table. Exposed for tests.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /search", s.requireKey(s.handleSearch))
	mux.HandleFunc("GET /events/stream", s.requireKey(s.handleStream))
	return mux
}

// Start begins serving on the configured address. Non-blocking; use
// Shutdown to stop.
func (s *Server) Start() error {
	listener, err := net.Listen("tcp", s.cfg.Addr())
	if err != nil {
		return fmt.Errorf("listening on %s: %w", s.cfg.Addr(), err)
	}
	s.listener = listener

	s.httpServer = &http.Server{
		Handler:     s.Handler(),
		ReadTimeout: 10 * time.Second,
		// No WriteTimeout: SSE responses are long-lived.
	}

	go func() {
		if err := s.httpServer.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server: %v", err)
		}
	}()

	logger.Info("server: listening on %s", listener.Addr())
	return nil
}

// Addr returns the bound address once Start has succeeded.
func (s *Server) Addr() string {
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Shutdown drains in-flight requests and stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}

// requireKey enforces the configured API key, when one is set.
func (s *Server) requireKey(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.cfg.APIKey != "" && r.Header.Get("X-API-Key") != s.cfg.APIKey {
			writeError(w, http.StatusUnauthorized, "invalid or missing API key")
			return
		}
		next(w, r)
	}
}

// handleHealth reports liveness plus pipeline counters.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":             "ok",
		"subscribers":        s.bus.SubscriberCount(),
		"active_connections": s.hub.ActiveConnections(),
		"dropped_events":     s.bus.DroppedEvents(),
	})
}

// handleSearch serves full-text search with pagination.
func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")
	if q == "" {
		writeError(w, http.StatusBadRequest, "missing required parameter q")
		return
	}
	if len(q) > maxQueryLength {
		writeError(w, http.StatusBadRequest, "query too long")
		return
	}

	var contentType domain.ContentType
	switch r.URL.Query().Get("type") {
	case "", "all":
		contentType = ""
	case string(domain.ContentThought):
		contentType = domain.ContentThought
	case string(domain.ContentDream):
		contentType = domain.ContentDream
	default:
		writeError(w, http.StatusBadRequest, "type must be all, thought or dream")
		return
	}

	limit, err := intParam(r, "limit", defaultLimit)
	if err != nil || limit < 1 || limit > maxLimit {
		writeError(w, http.StatusBadRequest, "limit must be between 1 and 50")
		return
	}
	offset, err := intParam(r, "offset", 0)
	if err != nil || offset < 0 {
		writeError(w, http.StatusBadRequest, "offset must be non-negative")
		return
	}

	response, err := s.index.Search(q, contentType, limit, offset)
	if err != nil {
		logger.Error("server: search failed: %v", err)
		writeError(w, http.StatusInternalServerError, "search failed")
		return
	}

	writeJSON(w, http.StatusOK, response)
}

// handleStream serves the SSE event stream. A frame is written at
// least every heartbeat interval until the client disconnects.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	topic := domain.Topic(r.URL.Query().Get("topic"))
	if topic == "" {
		topic = domain.TopicAll
	}
	if !topic.Valid() {
		writeError(w, http.StatusBadRequest, "topic must be thoughts, dreams, system or *")
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	stream, err := s.hub.CreateStream(r.Context(), topic)
	if err != nil {
		if errors.Is(err, domain.ErrMaxSubscribers) {
			writeError(w, http.StatusServiceUnavailable, "too many subscribers")
			return
		}
		logger.Error("server: creating stream: %v", err)
		writeError(w, http.StatusInternalServerError, "stream failed")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	for frame := range stream {
		if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", frame.Event, frame.Data); err != nil {
			return
		}
		flusher.Flush()
	}
}

// intParam parses an optional integer query parameter.
func intParam(r *http.Request, name string, fallback int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return fallback, nil
	}
	return strconv.Atoi(raw)
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		logger.Error("server: encoding response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
