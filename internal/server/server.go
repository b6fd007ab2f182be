package server

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"bisca/internal/queue"
	"bisca/internal/room"
	"bisca/internal/session"
)

// Server is the realtime gateway: one websocket endpoint for gameplay plus a
// small HTTP debug surface.
type Server struct {
	mux      *http.ServeMux
	registry *session.Registry
	queue    *queue.Queue
	hub      *room.Hub
	log      *zap.Logger
}

// New creates a server with all routes.
func New(registry *session.Registry, q *queue.Queue, hub *room.Hub, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		mux:      http.NewServeMux(),
		registry: registry,
		queue:    q,
		hub:      hub,
		log:      logger,
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.mux.HandleFunc("GET /healthz", s.handleHealth)
	s.mux.HandleFunc("GET /api/games", s.handleListGames)
	s.mux.HandleFunc("GET /ws", s.handleWebSocket)
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleListGames(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.hub.List())
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
