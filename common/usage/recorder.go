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

package usage

import (
	"database/sql"
	"log"
)

// Recorder persists usage events to PostgreSQL. A nil Recorder or one
// constructed without a database records nothing.
type Recorder struct {
	db *sql.DB
}

// NewRecorder creates a recorder. db may be nil to disable metering.
func NewRecorder(db *sql.DB) *Recorder {
	return &Recorder{db: db}
}

// Enabled reports whether events are actually persisted.
func (r *Recorder) Enabled() bool {
	return r != nil && r.db != nil
}

// APICallEvent is one HTTP request against the orchestration surface.
type APICallEvent struct {
	TenantID       string
	InstanceID     string
	HTTPMethod     string
	HTTPPath       string
	HTTPStatusCode int
	LatencyMs      int64
}

// RecordAPICall persists an API call event. Errors are logged, never
// propagated to the request path.
func (r *Recorder) RecordAPICall(event APICallEvent) error {
	if !r.Enabled() {
		return nil
	}

	_, err := r.db.Exec(`
		INSERT INTO usage_events (
			tenant_id, event_type, instance_id,
			http_method, http_path, http_status_code, latency_ms
		) VALUES ($1, 'api_call', $2, $3, $4, $5, $6)
	`, event.TenantID, event.InstanceID, event.HTTPMethod,
		event.HTTPPath, event.HTTPStatusCode, event.LatencyMs)

	if err != nil {
		log.Printf("[Usage] Failed to record API call: %v", err)
	}
	return err
}

// LLMRequestEvent is one model invocation with its token usage.
type LLMRequestEvent struct {
	TenantID         string
	InstanceID       string
	Provider         string
	Model            string
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
	LatencyMs        int64
	Failed           bool
}

// RecordLLMRequest persists an LLM request event along with its
// estimated cost. Errors are logged, never propagated.
func (r *Recorder) RecordLLMRequest(event LLMRequestEvent) error {
	if !r.Enabled() {
		return nil
	}

	cost := EstimateCost(event.Provider, event.Model,
		event.PromptTokens, event.CompletionTokens)

	_, err := r.db.Exec(`
		INSERT INTO usage_events (
			tenant_id, event_type, instance_id,
			llm_provider, llm_model, prompt_tokens, completion_tokens,
			total_tokens, estimated_cost_millicents, latency_ms, failed
		) VALUES ($1, 'llm_request', $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`, event.TenantID, event.InstanceID, event.Provider, event.Model,
		event.PromptTokens, event.CompletionTokens, event.TotalTokens,
		cost, event.LatencyMs, event.Failed)

	if err != nil {
		log.Printf("[Usage] Failed to record LLM request: %v", err)
	}
	return err
}
