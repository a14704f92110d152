// Copyright 2025 EA-AURA
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package orchestrator

import (
	"encoding/json"
	"log"
	"net/http"

	"github.com/gorilla/mux"
)

// APIHandler serves the orchestration HTTP surface: job submission,
// read access to agents and audit records, and cache administration.
type APIHandler struct {
	orchestrator *Orchestrator
	registry     *AgentRegistry
	memory       *MemoryStore
	cache        *ContentCache
	tracker      *PerformanceTracker
}

// NewAPIHandler creates the handler.
func NewAPIHandler(orchestrator *Orchestrator, registry *AgentRegistry, memory *MemoryStore,
	cache *ContentCache, tracker *PerformanceTracker) *APIHandler {
	return &APIHandler{
		orchestrator: orchestrator,
		registry:     registry,
		memory:       memory,
		cache:        cache,
		tracker:      tracker,
	}
}

// RegisterRoutes attaches all routes to the router:
//   - POST   /api/v1/run                 - run one orchestration job
//   - GET    /api/v1/agents              - agent tree summary
//   - GET    /api/v1/agents/{id}         - one agent's details
//   - GET    /api/v1/jobs/{id}/memory    - job memory records
//   - GET    /api/v1/jobs/{id}/chain     - job chain step status
//   - DELETE /api/v1/cache               - purge cached entries
//   - GET    /health                     - liveness
func (h *APIHandler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/api/v1/run", h.handleRun).Methods(http.MethodPost)
	r.HandleFunc("/api/v1/agents", h.handleListAgents).Methods(http.MethodGet)
	r.HandleFunc("/api/v1/agents/{id}", h.handleGetAgent).Methods(http.MethodGet)
	r.HandleFunc("/api/v1/jobs/{id}/memory", h.handleJobMemory).Methods(http.MethodGet)
	r.HandleFunc("/api/v1/jobs/{id}/chain", h.handleJobChain).Methods(http.MethodGet)
	r.HandleFunc("/api/v1/cache", h.handlePurgeCache).Methods(http.MethodDelete)
	r.HandleFunc("/health", h.handleHealth).Methods(http.MethodGet)
}

// RunRequest is the job submission payload.
type RunRequest struct {
	Input    string `json:"input"`
	TenantID string `json:"tenant_id"`
}

func (h *APIHandler) handleRun(w http.ResponseWriter, r *http.Request) {
	var req RunRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, CodeValidation, "invalid JSON body")
		return
	}

	result := h.orchestrator.Run(r.Context(), req.Input, req.TenantID)
	status := http.StatusOK
	if result.Error != nil {
		switch result.Error.Code {
		case CodeValidation:
			status = http.StatusBadRequest
		case CodeAgentNotFound:
			status = http.StatusUnprocessableEntity
		default:
			status = http.StatusInternalServerError
		}
	}
	h.writeJSON(w, status, result)
}

// agentSummary is the list-view projection of one agent.
type agentSummary struct {
	AgentID   string   `json:"agent_id"`
	Kind      string   `json:"kind"`
	Keywords  []string `json:"keywords"`
	Enabled   bool     `json:"enabled"`
	SubAgents []string `json:"sub_agents,omitempty"`
	PerfScore float64  `json:"performance_score"`
}

func (h *APIHandler) handleListAgents(w http.ResponseWriter, r *http.Request) {
	var agents []agentSummary
	for _, id := range h.registry.ParentIDs() {
		cfg, _ := h.registry.Get(id)
		subs := make([]string, 0, len(cfg.SubAgents))
		for i := range cfg.SubAgents {
			subs = append(subs, cfg.SubAgents[i].AgentID)
		}
		agents = append(agents, agentSummary{
			AgentID:   cfg.AgentID,
			Kind:      cfg.Kind,
			Keywords:  cfg.Keywords,
			Enabled:   cfg.Enabled,
			SubAgents: subs,
			PerfScore: h.tracker.Score(cfg.AgentID),
		})
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"agents": agents,
		"stats":  h.registry.Stats(),
	})
}

func (h *APIHandler) handleGetAgent(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	cfg, ok := h.registry.Get(id)
	if !ok {
		h.writeError(w, http.StatusNotFound, CodeAgentNotFound, "agent not found: "+id)
		return
	}

	resp := map[string]interface{}{
		"agent":             cfg,
		"performance_score": h.tracker.Score(id),
	}
	if stats, ok := h.tracker.Stats(id); ok {
		resp["stats"] = stats
	}
	h.writeJSON(w, http.StatusOK, resp)
}

func (h *APIHandler) handleJobMemory(w http.ResponseWriter, r *http.Request) {
	jobID := mux.Vars(r)["id"]
	docs, err := h.memory.JobMemory(r.Context(), jobID)
	if err != nil {
		log.Printf("[API] Job memory lookup failed for %s: %v", jobID, err)
		h.writeError(w, http.StatusInternalServerError, CodeInternal, "memory lookup failed")
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]interface{}{"job_id": jobID, "memory": docs})
}

func (h *APIHandler) handleJobChain(w http.ResponseWriter, r *http.Request) {
	jobID := mux.Vars(r)["id"]
	docs, err := h.memory.ChainStatus(r.Context(), jobID)
	if err != nil {
		log.Printf("[API] Chain status lookup failed for %s: %v", jobID, err)
		h.writeError(w, http.StatusInternalServerError, CodeInternal, "chain lookup failed")
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]interface{}{"job_id": jobID, "chain": docs})
}

func (h *APIHandler) handlePurgeCache(w http.ResponseWriter, r *http.Request) {
	tenantID := r.URL.Query().Get("tenant_id")
	subIndex := r.URL.Query().Get("sub_index")

	deleted, err := h.cache.Purge(r.Context(), tenantID, subIndex)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, CodeValidation, err.Error())
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]interface{}{"deleted": deleted})
}

func (h *APIHandler) handleHealth(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

func (h *APIHandler) writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Printf("[API] Failed to encode response: %v", err)
	}
}

func (h *APIHandler) writeError(w http.ResponseWriter, status int, code, message string) {
	h.writeJSON(w, status, map[string]string{"code": code, "error": message})
}
