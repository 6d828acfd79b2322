package gateway

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"strconv"
	"strings"

	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	// The gateway binds on an internal address; origin checks are left
	// to the reverse proxy.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Server serves the REST introspection API and the /ws event stream.
type Server struct {
	core Core
	hub  *Hub
	srv  *http.Server
}

// NewServer wires the routes. The hub must be Run separately.
func NewServer(addr string, core Core, hub *Hub) *Server {
	s := &Server{core: core, hub: hub}

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleWS)
	mux.HandleFunc("/api/agents", s.handleAgents)
	mux.HandleFunc("/api/agents/", s.handleAgent)
	mux.HandleFunc("/api/universe", s.handleUniverse)
	mux.HandleFunc("/api/universe/", s.handleUniverseEntry)
	mux.HandleFunc("/api/candles/", s.handleCandles)
	mux.HandleFunc("/api/drain", s.handleDrain)
	mux.HandleFunc("/api/pause", s.handlePause)

	s.srv = &http.Server{Addr: addr, Handler: mux}
	return s
}

// Start launches the HTTP server in a goroutine.
func (s *Server) Start() {
	go func() {
		log.Printf("[gateway] listening on %s", s.srv.Addr)
		if err := s.srv.ListenAndServe(); err != http.ErrServerClosed {
			log.Printf("[gateway] server error: %v", err)
		}
	}()
}

// Stop gracefully shuts down the server.
func (s *Server) Stop(ctx context.Context) {
	s.srv.Shutdown(ctx)
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[gateway] ws upgrade failed: %v", err)
		return
	}
	s.hub.Register(conn)
}

func (s *Server) handleAgents(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.core.Agents())
}

func (s *Server) handleAgent(w http.ResponseWriter, r *http.Request) {
	symbol := strings.TrimPrefix(r.URL.Path, "/api/agents/")
	info, ok := s.core.AgentInfo(symbol)
	if !ok {
		writeError(w, http.StatusNotFound, "no agent for symbol "+symbol)
		return
	}
	writeJSON(w, http.StatusOK, info)
}

func (s *Server) handleUniverse(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.core.Universe())
}

func (s *Server) handleUniverseEntry(w http.ResponseWriter, r *http.Request) {
	symbol := strings.TrimPrefix(r.URL.Path, "/api/universe/")
	st, ok := s.core.UniverseEntry(symbol)
	if !ok {
		writeError(w, http.StatusNotFound, "no universe entry for symbol "+symbol)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (s *Server) handleCandles(w http.ResponseWriter, r *http.Request) {
	symbol := strings.TrimPrefix(r.URL.Path, "/api/candles/")
	limit := 100
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}
	dump, ok := s.core.CandleDump(symbol, limit)
	if !ok {
		writeError(w, http.StatusNotFound, "no agent for symbol "+symbol)
		return
	}
	writeJSON(w, http.StatusOK, dump)
}

// modeRequest is the body for the drain/pause switches.
type modeRequest struct {
	Enabled bool `json:"enabled"`
}

func (s *Server) handleDrain(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		writeJSON(w, http.StatusOK, map[string]bool{"enabled": s.core.Drained()})
	case http.MethodPost:
		var req modeRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid body: "+err.Error())
			return
		}
		s.core.SetDrain(req.Enabled)
		log.Printf("[gateway] drain mode set to %v", req.Enabled)
		writeJSON(w, http.StatusOK, map[string]bool{"enabled": req.Enabled})
	default:
		writeError(w, http.StatusMethodNotAllowed, "GET or POST only")
	}
}

func (s *Server) handlePause(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		writeJSON(w, http.StatusOK, map[string]bool{"enabled": s.core.Paused()})
	case http.MethodPost:
		var req modeRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid body: "+err.Error())
			return
		}
		s.core.SetPause(req.Enabled)
		log.Printf("[gateway] pause mode set to %v", req.Enabled)
		writeJSON(w, http.StatusOK, map[string]bool{"enabled": req.Enabled})
	default:
		writeError(w, http.StatusMethodNotAllowed, "GET or POST only")
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"error": msg})
}
