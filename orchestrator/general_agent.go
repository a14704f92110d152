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
	"context"
	"fmt"
	"log"
	"time"

	"ea-aura/platform/orchestrator/llm"
)

// GeneralAgentID names the generic fallback agent in audit records.
const GeneralAgentID = "GeneralAgent"

// generalAgentPrompt is the fallback system prompt: a startup advisor
// that keeps to business topics and declines general-knowledge
// questions.
const generalAgentPrompt = `You are a pragmatic startup advisor. Help founders reason about their
business: growth, retention, sales, hiring, fundraising, and operations.
If the question is general knowledge unrelated to running a business,
politely decline and ask for a business question instead.`

// Fallback defaults when the configuration omits them.
const (
	fallbackDefaultModel     = "llama-3.3-70b-versatile"
	fallbackDefaultMaxTokens = 1024
)

// GeneralAgent answers queries no configured agent matched. It runs a
// single guarded LLM call with no retrieval augmentation and none of
// the retry/budget machinery, and persists a truncated audit trail.
type GeneralAgent struct {
	provider llm.Provider
	guard    *SafetyGuard
	memory   *MemoryStore
	config   FallbackConfig
}

// NewGeneralAgent creates the fallback agent.
func NewGeneralAgent(provider llm.Provider, guard *SafetyGuard,
	memory *MemoryStore, config FallbackConfig) *GeneralAgent {
	return &GeneralAgent{
		provider: provider,
		guard:    guard,
		memory:   memory,
		config:   config,
	}
}

// Run answers the input directly. Errors degrade to the safe fallback
// message; this path never returns a structured job error.
func (g *GeneralAgent) Run(ctx context.Context, session *ExecutionSession) string {
	model := g.config.Model
	if model == "" {
		model = fallbackDefaultModel
	}
	maxTokens := g.config.MaxTokens
	if maxTokens <= 0 {
		maxTokens = fallbackDefaultMaxTokens
	}
	systemPrompt := g.config.PromptTemplate
	if systemPrompt == "" {
		systemPrompt = generalAgentPrompt
	}

	output := SafeFallbackMessage
	if verdict := g.guard.Check(ctx, session.UserInput, ContentTypePrompt); verdict.Allowed {
		resp, err := g.provider.Complete(ctx, llm.CompletionRequest{
			Model:        model,
			SystemPrompt: systemPrompt,
			UserPrompt:   session.UserInput,
			MaxTokens:    maxTokens,
			Temperature:  g.config.Temperature,
		})
		switch {
		case err != nil:
			log.Printf("[GeneralAgent] Completion failed for job %s: %v", session.JobID, err)
		default:
			if verdict := g.guard.Check(ctx, resp.Content, ContentTypeResponse); verdict.Allowed {
				output = resp.Content
			}
			session.Accountant.TrackCounted(GeneralAgentID, resp.PromptTokens, resp.CompletionTokens, model, 0)
		}
	} else {
		log.Printf("[GeneralAgent] Prompt blocked for job %s: %s", session.JobID, verdict.Reason)
	}

	usage := session.Accountant.JobSummary().Agents[GeneralAgentID]
	g.memory.SaveMemory(ctx, MemoryRecord{
		AgentJobID:   session.JobID,
		AgentID:      GeneralAgentID,
		TenantID:     session.TenantID,
		Timestamp:    time.Now().UTC(),
		Step:         0,
		Input:        session.UserInput,
		Output:       output,
		TokenCount:   usage.TotalTokens,
		InputTokens:  usage.InputTokens,
		OutputTokens: usage.OutputTokens,
		ModelName:    model,
	})
	g.memory.SaveChainStep(ctx, ChainStepRecord{
		JobID:     session.JobID,
		Step:      0,
		AgentName: GeneralAgentID,
		Status:    StatusCompleted,
		Log:       fmt.Sprintf("fallback agent answered (model=%s)", model),
	})

	return output
}
