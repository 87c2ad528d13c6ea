package server

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/parleyhq/platform/internal/errors"
	"github.com/parleyhq/platform/internal/session"
)

// Message types.
type Message struct {
	Type string `json:"type"`
}

type EventMessage struct {
	Type       string  `json:"type"`
	Text       string  `json:"text,omitempty"`
	PromptKind string  `json:"prompt_kind,omitempty"`
	Progress   float64 `json:"progress,omitempty"`
}

type ErrorMessage struct {
	Type    string `json:"type"`
	Code    string `json:"code,omitempty"`
	Message string `json:"message"`
}

type AckMessage struct {
	Type    string `json:"type"`
	Command string `json:"command"`
}

// rateLimiter tracks command timestamps using a sliding window.
type rateLimiter struct {
	mu         sync.Mutex
	timestamps []time.Time
}

// allow checks if a command is allowed and records the timestamp if so.
func (r *rateLimiter) allow() bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	cutoff := now.Add(-RateLimitWindow)

	valid := r.timestamps[:0]
	for _, t := range r.timestamps {
		if t.After(cutoff) {
			valid = append(valid, t)
		}
	}
	r.timestamps = valid

	if len(r.timestamps) >= RateLimitMessages {
		return false
	}
	r.timestamps = append(r.timestamps, now)
	return true
}

// Server handles HTTP and WebSocket connections.
type Server struct {
	mgr *session.Manager

	mu         sync.RWMutex
	conns      map[*websocket.Conn]struct{}
	rateLimits map[*websocket.Conn]*rateLimiter
}

// New creates a server and starts broadcasting session events.
func New(mgr *session.Manager) *Server {
	s := &Server{
		mgr:        mgr,
		conns:      make(map[*websocket.Conn]struct{}),
		rateLimits: make(map[*websocket.Conn]*rateLimiter),
	}
	go s.broadcastEvents()
	return s
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/ws", s.handleWebSocket)

	mux.HandleFunc("GET /api/status", s.handleStatus)
	mux.HandleFunc("GET /api/transcript", s.handleTranscript)
	mux.HandleFunc("POST /api/interview/start", s.handleStart)
	mux.HandleFunc("POST /api/interview/stop", s.handleStop)

	return corsMiddleware(mux)
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "*")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		slog.Error("websocket accept error", "error", err)
		return
	}
	defer func() { _ = conn.Close(websocket.StatusNormalClosure, "") }()

	s.mu.Lock()
	s.conns[conn] = struct{}{}
	s.rateLimits[conn] = &rateLimiter{}
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		delete(s.conns, conn)
		delete(s.rateLimits, conn)
		s.mu.Unlock()
	}()

	ctx := r.Context()
	slog.Info("websocket connected", "remote", r.RemoteAddr)

	for {
		var raw json.RawMessage
		if err := wsjson.Read(ctx, conn, &raw); err != nil {
			slog.Debug("websocket read ended", "error", err)
			return
		}

		s.mu.RLock()
		rl := s.rateLimits[conn]
		s.mu.RUnlock()

		if !rl.allow() {
			_ = wsjson.Write(ctx, conn, ErrorMessage{Type: "error", Message: "rate limit exceeded"})
			continue
		}

		var base Message
		if err := json.Unmarshal(raw, &base); err != nil {
			continue
		}

		switch base.Type {
		case "start":
			s.startInterview(ctx, conn)
		case "stop":
			s.mgr.Stop()
			_ = wsjson.Write(ctx, conn, AckMessage{Type: "ack", Command: "stop"})
		}
	}
}

func (s *Server) startInterview(ctx context.Context, conn *websocket.Conn) {
	// The interview must outlive this websocket connection.
	if err := s.mgr.Start(context.WithoutCancel(ctx)); err != nil {
		slog.Warn("interview start rejected", "error", err)
		_ = wsjson.Write(ctx, conn, ErrorMessage{
			Type:    "error",
			Code:    string(errors.CodeOf(err)),
			Message: err.Error(),
		})
		return
	}
	_ = wsjson.Write(ctx, conn, AckMessage{Type: "ack", Command: "start"})
}

// broadcastEvents fans session events out to every connected client.
func (s *Server) broadcastEvents() {
	for evt := range s.mgr.Events() {
		msg := EventMessage{
			Type:       string(evt.Kind),
			Text:       evt.Text,
			PromptKind: evt.PromptKind,
			Progress:   evt.Progress,
		}

		s.mu.RLock()
		for conn := range s.conns {
			go func(c *websocket.Conn) {
				_ = wsjson.Write(context.Background(), c, msg)
			}(conn)
		}
		s.mu.RUnlock()
	}
}

func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, map[string]any{
		"supported": s.mgr.Supported(),
		"running":   s.mgr.Running(),
	})
}

func (s *Server) handleTranscript(w http.ResponseWriter, _ *http.Request) {
	entries := s.mgr.Transcript()
	if len(entries) > TranscriptAPILimit {
		entries = entries[len(entries)-TranscriptAPILimit:]
	}
	texts := make([]string, 0, len(entries))
	for _, e := range entries {
		texts = append(texts, e.Text)
	}
	writeJSON(w, map[string]any{"transcript": texts})
}

func (s *Server) handleStart(w http.ResponseWriter, r *http.Request) {
	if err := s.mgr.Start(context.WithoutCancel(r.Context())); err != nil {
		w.WriteHeader(http.StatusConflict)
		writeJSON(w, map[string]string{"error": err.Error(), "code": string(errors.CodeOf(err))})
		return
	}
	writeJSON(w, map[string]string{"status": "interview_started"})
}

func (s *Server) handleStop(w http.ResponseWriter, _ *http.Request) {
	s.mgr.Stop()
	writeJSON(w, map[string]string{"status": "interview_stopped"})
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Debug("response encode failed", "error", err)
	}
}
