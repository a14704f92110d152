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
	"strings"
	"sync"
	"time"
	"unicode/utf8"
)

// TokenUsage records one agent invocation's token consumption.
type TokenUsage struct {
	AgentID      string    `json:"agent_id"`
	InputTokens  int       `json:"input_tokens"`
	OutputTokens int       `json:"output_tokens"`
	TotalTokens  int       `json:"total_tokens"`
	ModelName    string    `json:"model_name"`
	Step         int       `json:"step"`
	Timestamp    time.Time `json:"timestamp"`
}

// AgentTotals aggregates usage per agent within one job.
type AgentTotals struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
	TotalTokens  int `json:"total_tokens"`
	Invocations  int `json:"invocations"`
}

// JobTokenSummary is the per-job rollup returned in run results.
type JobTokenSummary struct {
	Agents   map[string]AgentTotals `json:"agents"`
	JobTotal AgentTotals            `json:"job_total"`
}

// Tokenizer counts tokens for a model. The default implementation is a
// character-heuristic estimator; a model-specific tokenizer can be
// substituted per model name.
type Tokenizer interface {
	Count(text string) int
}

// heuristicTokenizer estimates tokens from character and word counts.
// English text averages roughly four characters per token; the word
// blend keeps short, punctuation-heavy inputs from undercounting.
type heuristicTokenizer struct{}

func (heuristicTokenizer) Count(text string) int {
	if text == "" {
		return 0
	}
	chars := utf8.RuneCountInString(text)
	words := len(strings.Fields(text))
	estimate := (chars + 3) / 4
	if words > estimate {
		estimate = words
	}
	return estimate
}

// TokenAccountant tokenizes per model and accumulates per-agent and
// per-job totals for the lifetime of one orchestration call.
type TokenAccountant struct {
	mu         sync.Mutex
	tokenizers map[string]Tokenizer
	fallback   Tokenizer
	usage      []TokenUsage
}

// NewTokenAccountant creates an accountant with the heuristic fallback
// tokenizer.
func NewTokenAccountant() *TokenAccountant {
	return &TokenAccountant{
		tokenizers: make(map[string]Tokenizer),
		fallback:   heuristicTokenizer{},
	}
}

// RegisterTokenizer binds a model-specific tokenizer. Unregistered
// models fall back to the reference estimator.
func (t *TokenAccountant) RegisterTokenizer(model string, tok Tokenizer) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.tokenizers[model] = tok
}

// Count returns the token count of text for the given model.
func (t *TokenAccountant) Count(text, model string) int {
	t.mu.Lock()
	tok, ok := t.tokenizers[model]
	t.mu.Unlock()
	if !ok {
		tok = t.fallback
	}
	return tok.Count(text)
}

// Track records one invocation's input/output token usage.
func (t *TokenAccountant) Track(agentID, inputText, outputText, model string, step int) TokenUsage {
	usage := TokenUsage{
		AgentID:      agentID,
		InputTokens:  t.Count(inputText, model),
		OutputTokens: t.Count(outputText, model),
		ModelName:    model,
		Step:         step,
		Timestamp:    time.Now().UTC(),
	}
	usage.TotalTokens = usage.InputTokens + usage.OutputTokens

	t.mu.Lock()
	t.usage = append(t.usage, usage)
	t.mu.Unlock()

	return usage
}

// TrackCounted records usage with provider-reported token counts, used
// when the LLM response carries exact usage figures.
func (t *TokenAccountant) TrackCounted(agentID string, inputTokens, outputTokens int, model string, step int) TokenUsage {
	usage := TokenUsage{
		AgentID:      agentID,
		InputTokens:  inputTokens,
		OutputTokens: outputTokens,
		TotalTokens:  inputTokens + outputTokens,
		ModelName:    model,
		Step:         step,
		Timestamp:    time.Now().UTC(),
	}

	t.mu.Lock()
	t.usage = append(t.usage, usage)
	t.mu.Unlock()

	return usage
}

// AgentTotal returns the accumulated total tokens for one agent.
func (t *TokenAccountant) AgentTotal(agentID string) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	total := 0
	for _, u := range t.usage {
		if u.AgentID == agentID {
			total += u.TotalTokens
		}
	}
	return total
}

// Entries returns a copy of all recorded usage entries.
func (t *TokenAccountant) Entries() []TokenUsage {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]TokenUsage, len(t.usage))
	copy(out, t.usage)
	return out
}

// JobSummary rolls recorded usage up per agent plus a job total.
func (t *TokenAccountant) JobSummary() JobTokenSummary {
	t.mu.Lock()
	defer t.mu.Unlock()

	summary := JobTokenSummary{Agents: make(map[string]AgentTotals)}
	for _, u := range t.usage {
		totals := summary.Agents[u.AgentID]
		totals.InputTokens += u.InputTokens
		totals.OutputTokens += u.OutputTokens
		totals.TotalTokens += u.TotalTokens
		totals.Invocations++
		summary.Agents[u.AgentID] = totals

		summary.JobTotal.InputTokens += u.InputTokens
		summary.JobTotal.OutputTokens += u.OutputTokens
		summary.JobTotal.TotalTokens += u.TotalTokens
		summary.JobTotal.Invocations++
	}
	return summary
}

// Reset clears accumulated usage at the start of each top-level run.
func (t *TokenAccountant) Reset() {
	t.mu.Lock()
	t.usage = t.usage[:0]
	t.mu.Unlock()
}
