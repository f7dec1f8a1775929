package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/armoriq/sentinel/internal/trace"
)

// --- Requests / workflows ---

type processRequestBody struct {
	Action  string                 `json:"action" validate:"required"`
	Payload map[string]interface{} `json:"payload"`
	Context map[string]interface{} `json:"context"`
}

func (s *Server) handleProcessRequest(w http.ResponseWriter, r *http.Request) {
	var body processRequestBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if err := s.validate.Struct(body); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	result := s.gateway.ProcessRequest(r.Context(), body.Action, body.Payload, body.Context)
	writeJSON(w, result)
}

type executeWorkflowBody struct {
	WorkflowID string                 `json:"workflow_id" validate:"required"`
	Parameters map[string]interface{} `json:"parameters"`
}

func (s *Server) handleExecuteWorkflow(w http.ResponseWriter, r *http.Request) {
	var body executeWorkflowBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if err := s.validate.Struct(body); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	result, err := s.gateway.ExecuteWorkflow(r.Context(), body.WorkflowID, body.Parameters)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, result)
}

// --- Agents / TIRS admin ---

func (s *Server) handleListAgents(w http.ResponseWriter, r *http.Request) {
	status := s.gateway.GetSystemStatus()
	writeJSON(w, map[string]interface{}{"agents": status.Agents})
}

func (s *Server) handleAgentStatus(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	a, ok := s.gateway.GetAgent(id)
	if !ok {
		writeError(w, http.StatusNotFound, "agent not found")
		return
	}
	writeJSON(w, a.GetStatus())
}

func (s *Server) handleKillAgent(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	s.gateway.TIRS().Kill(id)
	writeJSON(w, map[string]string{"agent_id": id, "status": "killed"})
}

func (s *Server) handleResumeAgent(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := s.gateway.TIRS().Resume(id); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, map[string]string{"agent_id": id, "status": "active"})
}

type resurrectBody struct {
	Dimension int `json:"dimension"`
}

func (s *Server) handleResurrectAgent(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var body resurrectBody
	_ = json.NewDecoder(r.Body).Decode(&body) // optional body; zero value falls back to the embedding default

	if err := s.gateway.TIRS().Resurrect(id, body.Dimension); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, map[string]string{"agent_id": id, "status": "resurrected"})
}

// --- Forensic snapshots ---

func (s *Server) handleVerifySnapshots(w http.ResponseWriter, r *http.Request) {
	agentID := chi.URLParam(r, "agent_id")
	valid, failureIndex := s.gateway.TIRS().VerifyChain(agentID)
	writeJSON(w, map[string]interface{}{
		"agent_id":      agentID,
		"valid":         valid,
		"failure_index": failureIndex,
	})
}

// --- System status ---

func (s *Server) handleSystemStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.gateway.GetSystemStatus())
}

// --- Policies ---

func (s *Server) handleListPolicies(w http.ResponseWriter, r *http.Request) {
	cfg := s.cfgLoader.Get()
	writeJSON(w, map[string]interface{}{"policies": cfg.Policies})
}

func (s *Server) handleReloadPolicies(w http.ResponseWriter, r *http.Request) {
	if err := s.cfgLoader.Reload(); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to reload: "+err.Error())
		return
	}
	writeJSON(w, map[string]string{"status": "reloaded"})
}

// --- Approvals ---

func (s *Server) handleListApprovals(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]interface{}{"approvals": s.approvals.ListPending()})
}

func (s *Server) handleApproveAction(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := s.approvals.Resolve(id, true, "dashboard"); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, map[string]string{"status": "approved"})
}

func (s *Server) handleDenyAction(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := s.approvals.Resolve(id, false, "dashboard"); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, map[string]string{"status": "denied"})
}

// --- Traces ---

func (s *Server) handleListTraces(w http.ResponseWriter, r *http.Request) {
	filter := trace.TraceFilter{
		SessionID:  r.URL.Query().Get("session_id"),
		AgentID:    r.URL.Query().Get("agent_id"),
		ActionType: trace.ActionType(r.URL.Query().Get("action_type")),
		Status:     trace.TraceStatus(r.URL.Query().Get("status")),
		Limit:      queryInt(r, "limit", 50),
		Offset:     queryInt(r, "offset", 0),
	}

	traces, total, err := s.store.ListTraces(filter)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, map[string]interface{}{
		"traces": traces,
		"total":  total,
	})
}

func (s *Server) handleGetTrace(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	t, err := s.store.GetTrace(id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if t == nil {
		writeError(w, http.StatusNotFound, "trace not found")
		return
	}
	writeJSON(w, t)
}

func (s *Server) handleSearchTraces(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")
	if q == "" {
		writeError(w, http.StatusBadRequest, "query parameter 'q' is required")
		return
	}

	traces, err := s.store.SearchTraces(q, queryInt(r, "limit", 50))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, map[string]interface{}{"traces": traces})
}

// --- System ---

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]string{"status": "ok"})
}

// --- Helpers ---

func writeJSON(w http.ResponseWriter, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}

func queryInt(r *http.Request, key string, defaultVal int) int {
	v := r.URL.Query().Get(key)
	if v == "" {
		return defaultVal
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return n
}
