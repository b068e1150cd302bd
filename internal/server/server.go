// Package server exposes the wizard API: session CRUD, pipeline triggers,
// artifact access, and a WebSocket event stream.
package server

import (
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/yalochat/capforge/internal/agent"
	"github.com/yalochat/capforge/internal/config"
	"github.com/yalochat/capforge/internal/engine"
	"github.com/yalochat/capforge/internal/store"
)

// engineEntry wraps a session's engine with a per-entry trigger guard.
type engineEntry struct {
	engine  *engine.Engine
	running atomic.Bool
}

// Server serves the wizard API.
type Server struct {
	mu       sync.RWMutex
	sessions map[string]*engineEntry // sessionID -> entry
	store    store.Store
	cfg      *config.Config
	log      *zap.Logger
	mux      *http.ServeMux
	wsHub    *WSHub
}

// New creates a server backed by the given store.
func New(st store.Store, cfg *config.Config, log *zap.Logger) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	s := &Server{
		sessions: make(map[string]*engineEntry),
		store:    st,
		cfg:      cfg,
		log:      log,
		mux:      http.NewServeMux(),
		wsHub:    NewWSHub(),
	}
	s.registerRoutes()
	return s
}

func (s *Server) registerRoutes() {
	s.mux.HandleFunc("/api/sessions", s.handleSessions)
	s.mux.HandleFunc("/api/sessions/", s.handleSessionAction)
	s.mux.HandleFunc("/api/providers", s.handleProviders)
	s.mux.HandleFunc("/api/health", s.handleHealth)

	s.mux.HandleFunc("/ws/events", s.wsHub.HandleWebSocket)
}

// Handler returns the root HTTP handler, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return corsMiddleware(s.mux)
}

// Start begins serving HTTP.
func (s *Server) Start() error {
	go s.wsHub.Run()
	addr := fmt.Sprintf("%s:%d", s.cfg.Server.Host, s.cfg.Server.Port)
	s.log.Info("server listening", zap.String("addr", addr))
	return http.ListenAndServe(addr, s.Handler())
}

// entry returns the engine entry for a session, lazily restoring it from the
// store after a restart.
func (s *Server) entry(sessionID string) (*engineEntry, error) {
	s.mu.RLock()
	e, ok := s.sessions[sessionID]
	s.mu.RUnlock()
	if ok {
		return e, nil
	}

	st, err := s.store.LoadSession(sessionID)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok := s.sessions[sessionID]; ok {
		return e, nil
	}
	e = &engineEntry{engine: s.newEngine(st)}
	s.sessions[sessionID] = e
	return e, nil
}

func (s *Server) newEngine(st *engine.PipelineState) *engine.Engine {
	eng := engine.New(st, s.store, s.log)
	eng.SetParallel(s.cfg.Pipeline.Parallel)
	s.wsHub.AddEventBus(st.SessionID, eng.Events)
	return eng
}

func (s *Server) registerAgents(entry *engineEntry, st *engine.PipelineState) {
	client, err := s.buildClient(st)
	if err != nil {
		// Agents absorb a nil client by taking the template path.
		s.log.Warn("llm client unavailable, runs will use templates",
			zap.String("session_id", st.SessionID), zap.Error(err))
		client = nil
	}
	agent.RegisterAll(entry.engine, client, s.log)
}

// corsMiddleware adds CORS headers for development.
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}
