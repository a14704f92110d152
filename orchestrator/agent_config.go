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
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Agent kinds. Parent agents own sub-agents and a final summarization
// prompt; sub-agents run first and feed their output to the parent.
const (
	AgentKindParent = "parent"
	AgentKindSub    = "sub"
)

// AgentConfigFile is the on-disk agent tree, following the
// apiVersion/kind pattern used across the platform's config files.
type AgentConfigFile struct {
	APIVersion string        `yaml:"apiVersion"`
	Kind       string        `yaml:"kind"`
	Metadata   AgentMetadata `yaml:"metadata"`
	Spec       AgentTreeSpec `yaml:"spec"`
}

// AgentMetadata identifies and describes the agent tree.
type AgentMetadata struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
}

// AgentTreeSpec holds the parent agents plus the fallback settings.
type AgentTreeSpec struct {
	Agents   []AgentConfig  `yaml:"agents"`
	Fallback FallbackConfig `yaml:"fallback"`
}

// FallbackConfig configures the generic agent used when no parent
// clears the selection threshold.
type FallbackConfig struct {
	Model          string  `yaml:"model"`
	Temperature    float64 `yaml:"temperature"`
	MaxTokens      int     `yaml:"max_tokens"`
	PromptTemplate string  `yaml:"prompt_template,omitempty"`
}

// AgentConfig defines one agent. Parent agents carry sub-agents;
// sub-agents never nest further. Immutable for the process lifetime.
type AgentConfig struct {
	AgentID         string        `yaml:"agent_id" json:"agent_id"`
	Kind            string        `yaml:"kind" json:"kind"`
	Description     string        `yaml:"description,omitempty" json:"description,omitempty"`
	Goal            string        `yaml:"goal,omitempty" json:"goal,omitempty"`
	Capabilities    []string      `yaml:"capabilities,omitempty" json:"capabilities,omitempty"`
	Keywords        []string      `yaml:"keywords" json:"keywords"`
	PromptTemplate  string        `yaml:"prompt_template" json:"prompt_template"`
	Model           string        `yaml:"model" json:"model"`
	Temperature     float64       `yaml:"temperature" json:"temperature"`
	MaxTokens       int           `yaml:"max_tokens" json:"max_tokens"`
	TokenBudget     int           `yaml:"token_budget,omitempty" json:"token_budget,omitempty"`
	RetryPolicy     RetryPolicy   `yaml:"retry_policy" json:"retry_policy"`
	SuccessCriteria []string      `yaml:"success_criteria,omitempty" json:"success_criteria,omitempty"`
	SubAgents       []AgentConfig `yaml:"sub_agents,omitempty" json:"sub_agents,omitempty"`
	Enabled         bool          `yaml:"enabled" json:"enabled"`
}

// RetryPolicy bounds re-attempts for one agent stage.
type RetryPolicy struct {
	MaxAttempts  int `yaml:"max_attempts" json:"max_attempts"`
	DelaySeconds int `yaml:"delay_seconds" json:"delay_seconds"`
}

// Configuration constants
const (
	// MaxLLMTemperature is the maximum allowed temperature for LLM calls
	MaxLLMTemperature = 2.0

	// DefaultMaxAttempts applies when a retry policy omits max_attempts
	DefaultMaxAttempts = 1

	// DefaultRetryDelay applies when a retry policy omits delay_seconds
	DefaultRetryDelay = 2 * time.Second
)

// Attempts returns the bounded attempt count, defaulting to one.
func (p RetryPolicy) Attempts() int {
	if p.MaxAttempts <= 0 {
		return DefaultMaxAttempts
	}
	return p.MaxAttempts
}

// Delay returns the inter-attempt sleep.
func (p RetryPolicy) Delay() time.Duration {
	if p.DelaySeconds <= 0 {
		return DefaultRetryDelay
	}
	return time.Duration(p.DelaySeconds) * time.Second
}

// LoadAgentConfig loads and validates an agent configuration file.
// The process cannot start on a missing or malformed file.
func LoadAgentConfig(path string) (*AgentConfigFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read agent config %s: %w", path, err)
	}
	return ParseAgentConfig(data)
}

// ParseAgentConfig parses YAML data into a validated AgentConfigFile.
func ParseAgentConfig(data []byte) (*AgentConfigFile, error) {
	var config AgentConfigFile
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := ValidateAgentConfig(&config); err != nil {
		return nil, fmt.Errorf("validation failed: %w", err)
	}

	return &config, nil
}

// ValidateAgentConfig validates the full agent tree for correctness,
// including global uniqueness of every agent id across parents and
// nested sub-agents.
func ValidateAgentConfig(config *AgentConfigFile) error {
	if config == nil {
		return fmt.Errorf("config is nil")
	}

	if !strings.HasPrefix(config.APIVersion, "ea-aura.io/") {
		return fmt.Errorf("invalid apiVersion: must start with 'ea-aura.io/', got '%s'", config.APIVersion)
	}

	if config.Kind != "AgentTree" {
		return fmt.Errorf("invalid kind: expected 'AgentTree', got '%s'", config.Kind)
	}

	if config.Metadata.Name == "" {
		return fmt.Errorf("metadata.name is required")
	}

	if len(config.Spec.Agents) == 0 {
		return fmt.Errorf("at least one parent agent is required")
	}

	seen := make(map[string]bool)
	for i := range config.Spec.Agents {
		parent := &config.Spec.Agents[i]
		if parent.Kind == "" {
			parent.Kind = AgentKindParent
		}
		if parent.Kind != AgentKindParent {
			return fmt.Errorf("top-level agent %s must have kind '%s', got '%s'",
				parent.AgentID, AgentKindParent, parent.Kind)
		}
		if err := validateAgent(parent, seen); err != nil {
			return fmt.Errorf("agent %d (%s) invalid: %w", i, parent.AgentID, err)
		}

		for j := range parent.SubAgents {
			sub := &parent.SubAgents[j]
			if sub.Kind == "" {
				sub.Kind = AgentKindSub
			}
			if sub.Kind != AgentKindSub {
				return fmt.Errorf("sub-agent %s of %s must have kind '%s', got '%s'",
					sub.AgentID, parent.AgentID, AgentKindSub, sub.Kind)
			}
			if len(sub.SubAgents) > 0 {
				return fmt.Errorf("sub-agent %s of %s must not nest further sub-agents",
					sub.AgentID, parent.AgentID)
			}
			if err := validateAgent(sub, seen); err != nil {
				return fmt.Errorf("sub-agent %s of %s invalid: %w", sub.AgentID, parent.AgentID, err)
			}
		}
	}

	return nil
}

// validateAgent validates one agent definition and records its id in
// the registry-wide uniqueness set.
func validateAgent(agent *AgentConfig, seen map[string]bool) error {
	if agent.AgentID == "" {
		return fmt.Errorf("agent_id is required")
	}
	if seen[agent.AgentID] {
		return fmt.Errorf("duplicate agent_id: %s", agent.AgentID)
	}
	seen[agent.AgentID] = true

	if len(agent.Keywords) == 0 {
		return fmt.Errorf("at least one keyword is required")
	}

	if agent.PromptTemplate == "" {
		return fmt.Errorf("prompt_template is required")
	}

	if agent.Model == "" {
		return fmt.Errorf("model is required")
	}

	if agent.Temperature < 0 || agent.Temperature > MaxLLMTemperature {
		return fmt.Errorf("temperature must be between 0 and %.1f", MaxLLMTemperature)
	}

	if agent.MaxTokens < 0 {
		return fmt.Errorf("max_tokens cannot be negative")
	}

	if agent.TokenBudget < 0 {
		return fmt.Errorf("token_budget cannot be negative")
	}

	if agent.RetryPolicy.MaxAttempts < 0 {
		return fmt.Errorf("retry_policy.max_attempts cannot be negative")
	}

	if agent.RetryPolicy.DelaySeconds < 0 {
		return fmt.Errorf("retry_policy.delay_seconds cannot be negative")
	}

	return nil
}

// MatchText returns the concatenated text an embedding is computed from
// for semantic matching: keywords, description, goal, capabilities, and
// the keywords of every sub-agent.
func (a *AgentConfig) MatchText() []string {
	texts := make([]string, 0, len(a.Keywords)+3+len(a.SubAgents))
	texts = append(texts, a.Keywords...)
	if a.Description != "" {
		texts = append(texts, a.Description)
	}
	if a.Goal != "" {
		texts = append(texts, a.Goal)
	}
	if len(a.Capabilities) > 0 {
		texts = append(texts, strings.Join(a.Capabilities, " "))
	}
	for i := range a.SubAgents {
		texts = append(texts, strings.Join(a.SubAgents[i].Keywords, " "))
	}
	return texts
}
