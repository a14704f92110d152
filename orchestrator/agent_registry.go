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
	"fmt"
	"sort"
)

// AgentRegistry exposes the validated agent tree. It is populated once
// at startup and read-only thereafter, so lookups need no locking.
type AgentRegistry struct {
	parents map[string]*AgentConfig
	// byID indexes every agent, parent and sub alike; ids are globally
	// unique by validation.
	byID     map[string]*AgentConfig
	ordered  []string
	fallback FallbackConfig
}

// RegistryStats summarizes the loaded tree for the agents API.
type RegistryStats struct {
	ParentCount int `json:"parent_count"`
	SubCount    int `json:"sub_count"`
	Enabled     int `json:"enabled"`
}

// NewAgentRegistry builds a registry from a validated configuration.
func NewAgentRegistry(config *AgentConfigFile) (*AgentRegistry, error) {
	if config == nil {
		return nil, fmt.Errorf("agent config is nil")
	}

	r := &AgentRegistry{
		parents:  make(map[string]*AgentConfig),
		byID:     make(map[string]*AgentConfig),
		fallback: config.Spec.Fallback,
	}

	for i := range config.Spec.Agents {
		parent := &config.Spec.Agents[i]
		r.parents[parent.AgentID] = parent
		r.byID[parent.AgentID] = parent
		r.ordered = append(r.ordered, parent.AgentID)
		for j := range parent.SubAgents {
			sub := &parent.SubAgents[j]
			r.byID[sub.AgentID] = sub
		}
	}

	sort.Strings(r.ordered)
	return r, nil
}

// GetAll returns every parent agent keyed by agent_id.
func (r *AgentRegistry) GetAll() map[string]*AgentConfig {
	out := make(map[string]*AgentConfig, len(r.parents))
	for id, cfg := range r.parents {
		out[id] = cfg
	}
	return out
}

// Get returns the agent with the given id, searching both parent and
// nested sub-agents. The second return is false on a lookup miss.
func (r *AgentRegistry) Get(agentID string) (*AgentConfig, bool) {
	cfg, ok := r.byID[agentID]
	return cfg, ok
}

// Parent returns the parent agent owning the given sub-agent id, or nil
// when the id names a parent or is unknown.
func (r *AgentRegistry) Parent(subAgentID string) *AgentConfig {
	for _, parent := range r.parents {
		for i := range parent.SubAgents {
			if parent.SubAgents[i].AgentID == subAgentID {
				return parent
			}
		}
	}
	return nil
}

// ParentIDs returns parent agent ids in stable sorted order.
func (r *AgentRegistry) ParentIDs() []string {
	out := make([]string, len(r.ordered))
	copy(out, r.ordered)
	return out
}

// Fallback returns the generic-agent settings.
func (r *AgentRegistry) Fallback() FallbackConfig {
	return r.fallback
}

// Stats returns registry counts for the agents API.
func (r *AgentRegistry) Stats() RegistryStats {
	stats := RegistryStats{ParentCount: len(r.parents)}
	for _, parent := range r.parents {
		stats.SubCount += len(parent.SubAgents)
		if parent.Enabled {
			stats.Enabled++
		}
	}
	return stats
}
