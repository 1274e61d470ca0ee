// Package api provides the HTTP and WebSocket API of the keychord daemon.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net"
	"net/http"
	"strconv"
	"sync"

	"keychord/internal/chord"
	"keychord/internal/hotkey"
)

// Engine is the part of hotkey.Engine the API drives
type Engine interface {
	Feed(ev hotkey.KeyEvent) error
	Len() int
	Paused() bool
	SetPaused(paused bool)
}

// Server exposes key injection, status and chord notifications
type Server struct {
	engine Engine
	token  string
	hub    *Hub

	mu   sync.Mutex
	http *http.Server
}

// NewServer creates an API server. An empty token disables authentication.
func NewServer(engine Engine, token string) *Server {
	s := &Server{
		engine: engine,
		token:  token,
	}
	s.hub = newHub(engine)
	go s.hub.run()
	return s
}

// Handler returns the HTTP handler with all middleware applied
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/api/status", s.handleStatus)
	mux.HandleFunc("/api/key", s.handleKey)
	mux.HandleFunc("/api/pause", s.handlePause)
	mux.HandleFunc("/ws", s.hub.handleWebSocket)
	return s.authMiddleware(s.recoverMiddleware(mux))
}

// Start listens on addr and serves until Shutdown. It blocks.
func (s *Server) Start(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		log.Printf("API: failed to listen on %s: %v", addr, err)
		return err
	}
	return s.Serve(ln)
}

// Serve serves on ln until Shutdown. It blocks.
func (s *Server) Serve(ln net.Listener) error {
	srv := &http.Server{Handler: s.Handler()}
	s.mu.Lock()
	s.http = srv
	s.mu.Unlock()

	log.Printf("API: listening on %s", ln.Addr())
	if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Printf("API: server stopped: %v", err)
		return err
	}
	return nil
}

// Shutdown stops the HTTP server and disconnects every WebSocket client
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	srv := s.http
	s.mu.Unlock()

	s.hub.stop()
	if srv == nil {
		return nil
	}
	return srv.Shutdown(ctx)
}

// BroadcastChord notifies every WebSocket client that a chord fired
func (s *Server) BroadcastChord(name string, id chord.ID, origin string) {
	s.hub.BroadcastChord(name, id, origin)
}

// Clients returns the number of connected WebSocket clients
func (s *Server) Clients() int {
	return s.hub.count()
}

// recoverMiddleware prevents panics from crashing the whole server
func (s *Server) recoverMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				log.Printf("API: panic serving %s: %v", r.URL.Path, err)
				http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// authMiddleware checks the API token if configured
func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		log.Printf("API: %s %s from %s", r.Method, r.URL.Path, r.RemoteAddr)

		if r.URL.Path == "/health" || s.token == "" {
			next.ServeHTTP(w, r)
			return
		}
		if r.Header.Get("Authorization") != "Bearer "+s.token {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleStatus handles GET /api/status
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"chords":  s.engine.Len(),
		"paused":  s.engine.Paused(),
		"clients": s.hub.count(),
	})
}

// handleKey handles POST /api/key?key=<name>&state=down|up
func (s *Server) handleKey(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	key := r.URL.Query().Get("key")
	if key == "" {
		http.Error(w, "Missing key parameter", http.StatusBadRequest)
		return
	}
	var down bool
	switch r.URL.Query().Get("state") {
	case "down":
		down = true
	case "up":
	default:
		http.Error(w, "state must be down or up", http.StatusBadRequest)
		return
	}

	ev := hotkey.KeyEvent{Key: key, Down: down, Origin: "http:" + r.RemoteAddr}
	if err := s.engine.Feed(ev); err != nil {
		http.Error(w, err.Error(), http.StatusServiceUnavailable)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

// handlePause handles POST /api/pause?paused=true|false
func (s *Server) handlePause(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	paused, err := strconv.ParseBool(r.URL.Query().Get("paused"))
	if err != nil {
		http.Error(w, "paused must be true or false", http.StatusBadRequest)
		return
	}
	s.engine.SetPaused(paused)
	writeJSON(w, http.StatusOK, map[string]bool{"paused": paused})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("API: failed to write response: %v", err)
	}
}
