package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/yalochat/capforge/internal/engine"
	"github.com/yalochat/capforge/internal/llm"
)

// sessionRequest is the wizard payload for creating or reconfiguring a session.
type sessionRequest struct {
	ProjectName        string                          `json:"project_name"`
	ProjectNamespace   string                          `json:"project_namespace"`
	ProjectDescription string                          `json:"project_description"`
	Domain             engine.DomainType               `json:"domain_type"`
	Entities           []engine.EntityDefinition       `json:"entities"`
	Relationships      []engine.RelationshipDefinition `json:"relationships"`
	BusinessRules      []engine.BusinessRule           `json:"business_rules"`
	Provider           string                          `json:"llm_provider"`
	Model              string                          `json:"llm_model"`
	Auth               engine.AuthType                 `json:"auth_type"`
	Target             engine.DeployTarget             `json:"deployment_target"`
	CIEnabled          bool                            `json:"ci_cd_enabled"`
	MainEntity         string                          `json:"main_entity"`
	Theme              string                          `json:"fiori_theme"`
}

func (s *Server) handleSessions(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		sessions, err := s.store.ListSessions()
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{"sessions": sessions})
	case http.MethodPost:
		s.createSession(w, r)
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (s *Server) createSession(w http.ResponseWriter, r *http.Request) {
	var req sessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.ProjectName == "" {
		http.Error(w, "project_name is required", http.StatusBadRequest)
		return
	}

	st := engine.NewState(uuid.New().String(), req.ProjectName)
	applyRequest(st, &req)
	if err := st.Validate(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	if err := s.store.CreateSession(st); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	entry := &engineEntry{engine: s.newEngine(st)}
	s.mu.Lock()
	s.sessions[st.SessionID] = entry
	s.mu.Unlock()

	s.log.Info("session created",
		zap.String("session_id", st.SessionID),
		zap.String("project", st.ProjectName))
	writeJSON(w, http.StatusCreated, entry.engine.State())
}

// handleSessionAction dispatches /api/sessions/{id}[/{action}].
func (s *Server) handleSessionAction(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/api/sessions/")
	parts := strings.SplitN(rest, "/", 2)
	sessionID := parts[0]
	action := ""
	if len(parts) == 2 {
		action = parts[1]
	}
	if sessionID == "" {
		http.Error(w, "session id required", http.StatusBadRequest)
		return
	}

	entry, err := s.entry(sessionID)
	if err != nil {
		http.Error(w, "session not found", http.StatusNotFound)
		return
	}

	switch action {
	case "":
		s.handleSession(w, r, sessionID, entry)
	case "config":
		s.handleConfig(w, r, entry)
	case "generate":
		s.handleGenerate(w, r, entry)
	case "cancel":
		s.handleCancel(w, r, entry)
	case "reset":
		s.handleReset(w, r, entry)
	case "status":
		s.handleStatus(w, r, entry)
	case "artifacts":
		s.handleArtifacts(w, r, entry)
	case "metrics":
		s.handleMetrics(w, r, sessionID, entry)
	default:
		http.Error(w, "unknown action", http.StatusNotFound)
	}
}

func (s *Server) handleSession(w http.ResponseWriter, r *http.Request, sessionID string, entry *engineEntry) {
	switch r.Method {
	case http.MethodGet:
		writeJSON(w, http.StatusOK, entry.engine.State())
	case http.MethodDelete:
		if entry.engine.Running() {
			http.Error(w, engine.ErrRunInProgress.Error(), http.StatusConflict)
			return
		}
		if err := s.store.DeleteSession(sessionID); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		s.mu.Lock()
		delete(s.sessions, sessionID)
		s.mu.Unlock()
		s.wsHub.RemoveEventBus(sessionID)
		writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (s *Server) handleConfig(w http.ResponseWriter, r *http.Request, entry *engineEntry) {
	if r.Method != http.MethodPut {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req sessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	err := entry.engine.UpdateConfig(func(st *engine.PipelineState) {
		applyRequest(st, &req)
	})
	if errors.Is(err, engine.ErrRunInProgress) {
		http.Error(w, err.Error(), http.StatusConflict)
		return
	}
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, entry.engine.State())
}

func (s *Server) handleGenerate(w http.ResponseWriter, r *http.Request, entry *engineEntry) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if !entry.running.CompareAndSwap(false, true) {
		http.Error(w, engine.ErrRunInProgress.Error(), http.StatusConflict)
		return
	}

	st := entry.engine.State()
	s.registerAgents(entry, st)

	go func() {
		defer entry.running.Store(false)
		if err := entry.engine.Generate(context.Background()); err != nil {
			s.log.Warn("generation failed",
				zap.String("session_id", st.SessionID), zap.Error(err))
		}
	}()

	writeJSON(w, http.StatusAccepted, map[string]string{
		"status":     "started",
		"session_id": st.SessionID,
	})
}

func (s *Server) handleCancel(w http.ResponseWriter, r *http.Request, entry *engineEntry) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if !entry.engine.Running() {
		http.Error(w, "no run in progress", http.StatusConflict)
		return
	}
	entry.engine.Cancel()
	writeJSON(w, http.StatusOK, map[string]string{"status": "cancelling"})
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request, entry *engineEntry) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if err := entry.engine.Reset(); err != nil {
		http.Error(w, err.Error(), http.StatusConflict)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "reset"})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request, entry *engineEntry) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, http.StatusOK, entry.engine.Snapshot())
}

func (s *Server) handleArtifacts(w http.ResponseWriter, r *http.Request, entry *engineEntry) {
	switch r.Method {
	case http.MethodGet:
		st := entry.engine.State()
		cat := engine.Category(r.URL.Query().Get("category"))
		var artifacts []engine.Artifact
		if cat != "" {
			artifacts = st.Artifacts.ByCategory(cat)
		} else {
			artifacts = st.Artifacts.All()
		}
		if artifacts == nil {
			artifacts = []engine.Artifact{}
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{"artifacts": artifacts})
	case http.MethodPut:
		var req struct {
			Path    string `json:"path"`
			Content string `json:"content"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid request body", http.StatusBadRequest)
			return
		}
		if req.Path == "" {
			http.Error(w, "path is required", http.StatusBadRequest)
			return
		}
		if err := entry.engine.SaveArtifact(req.Path, req.Content); err != nil {
			http.Error(w, err.Error(), http.StatusNotFound)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "saved", "path": req.Path})
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request, sessionID string, entry *engineEntry) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	// Prefer the persisted aggregate; fall back to the in-memory collector.
	if ms, err := s.store.LoadMetricsAggregate(sessionID); err == nil {
		writeJSON(w, http.StatusOK, ms)
		return
	}
	writeJSON(w, http.StatusOK, entry.engine.Metrics.Snapshot())
}

func (s *Server) handleProviders(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"providers": []string{llm.ProviderOpenAI, llm.ProviderGemini, llm.ProviderDeepSeek, llm.ProviderKimi},
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// buildClient constructs the LLM client for a session, overlaying the
// session's provider selection on the server's credential configuration.
func (s *Server) buildClient(st *engine.PipelineState) (llm.Client, error) {
	cfg := s.cfg.LLM
	if st.Provider != "" {
		cfg.Provider = st.Provider
	}
	if st.Model != "" {
		cfg.Model = st.Model
	}
	return llm.New(context.Background(), cfg)
}

// applyRequest overlays non-empty request fields onto the state.
func applyRequest(st *engine.PipelineState, req *sessionRequest) {
	if req.ProjectName != "" {
		st.ProjectName = req.ProjectName
	}
	if req.ProjectNamespace != "" {
		st.ProjectNamespace = req.ProjectNamespace
	}
	if req.ProjectDescription != "" {
		st.ProjectDescription = req.ProjectDescription
	}
	if req.Domain != "" {
		st.Domain = req.Domain
	}
	if req.Entities != nil {
		st.Entities = req.Entities
	}
	if req.Relationships != nil {
		st.Relationships = req.Relationships
	}
	if req.BusinessRules != nil {
		st.BusinessRules = req.BusinessRules
	}
	if req.Provider != "" {
		st.Provider = req.Provider
	}
	if req.Model != "" {
		st.Model = req.Model
	}
	if req.Auth != "" {
		st.Auth = req.Auth
	}
	if req.Target != "" {
		st.Target = req.Target
	}
	if req.MainEntity != "" {
		st.MainEntity = req.MainEntity
	}
	if req.Theme != "" {
		st.Theme = req.Theme
	}
	st.CIEnabled = req.CIEnabled
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
