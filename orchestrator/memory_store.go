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
	"sort"
	"time"

	"ea-aura/platform/connectors/docstore"
)

// Document-store collections for the audit trail.
const (
	MemoryCollection = "agent_memory"
	ChainCollection  = "sub_agent_chain"
	JobCollection    = "agent_job"
)

// Chain step and job statuses.
const (
	StatusPending   = "PENDING"
	StatusQueued    = "QUEUED"
	StatusRunning   = "RUNNING"
	StatusRetrying  = "RETRYING"
	StatusCompleted = "COMPLETED"
	StatusFailed    = "FAILED"
)

// MemoryRecord is one append-only (job, agent, step) audit entry.
type MemoryRecord struct {
	AgentJobID   string    `json:"agent_job_id"`
	AgentID      string    `json:"agent_id"`
	TenantID     string    `json:"tenant_id"`
	Timestamp    time.Time `json:"timestamp"`
	Step         int       `json:"step"`
	Input        string    `json:"input"`
	Output       string    `json:"output"`
	TokenCount   int       `json:"token_count"`
	InputTokens  int       `json:"input_tokens"`
	OutputTokens int       `json:"output_tokens"`
	ModelName    string    `json:"model_name"`
	MemoryType   string    `json:"memory_type"`
}

// ChainStepRecord tracks one step's lifecycle within a job chain.
type ChainStepRecord struct {
	ChainID     string `json:"chain_id"`
	JobID       string `json:"job_id"`
	Step        int    `json:"step"`
	AgentName   string `json:"agent_name"`
	ParentAgent string `json:"parent_agent"`
	Status      string `json:"status"`
	Log         string `json:"log"`
}

// AgentJobRecord tracks one dispatched job end to end.
type AgentJobRecord struct {
	JobID     string    `json:"job_id"`
	TenantID  string    `json:"tenant_id"`
	Status    string    `json:"status"`
	Input     string    `json:"input"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// MemoryStore persists the per-step audit trail to the document store.
// Writes are best-effort: failures are logged and never fail a job.
type MemoryStore struct {
	store docstore.Store
	now   func() time.Time
}

// NewMemoryStore creates a memory store over the given document store.
func NewMemoryStore(store docstore.Store) *MemoryStore {
	return &MemoryStore{store: store, now: time.Now}
}

// SaveMemory appends one memory record.
func (m *MemoryStore) SaveMemory(ctx context.Context, rec MemoryRecord) {
	if rec.MemoryType == "" {
		rec.MemoryType = "contextual"
	}
	if rec.Timestamp.IsZero() {
		rec.Timestamp = m.now().UTC()
	}

	doc := docstore.Document{
		"agent_job_id":  rec.AgentJobID,
		"agent_id":      rec.AgentID,
		"tenant_id":     rec.TenantID,
		"timestamp":     rec.Timestamp.Format(time.RFC3339Nano),
		"step":          rec.Step,
		"input":         rec.Input,
		"output":        rec.Output,
		"token_count":   rec.TokenCount,
		"input_tokens":  rec.InputTokens,
		"output_tokens": rec.OutputTokens,
		"model_name":    rec.ModelName,
		"memory_type":   rec.MemoryType,
	}
	if _, err := m.store.Index(ctx, MemoryCollection, doc); err != nil {
		log.Printf("[MemoryStore] Failed to save memory record (job=%s, step=%d): %v",
			rec.AgentJobID, rec.Step, err)
	}
}

// SaveChainStep writes or replaces the status record for one (job,
// step). Replacement implements the RUNNING→RETRYING→COMPLETED|FAILED
// transitions; a step never changes once COMPLETED or FAILED is
// written.
func (m *MemoryStore) SaveChainStep(ctx context.Context, rec ChainStepRecord) {
	if rec.ChainID == "" {
		rec.ChainID = fmt.Sprintf("%s_%d", rec.JobID, rec.Step)
	}

	if _, err := m.store.DeleteByFilter(ctx, ChainCollection, docstore.Filter{"chain_id": rec.ChainID}); err != nil {
		log.Printf("[MemoryStore] Failed to clear prior chain step %s: %v", rec.ChainID, err)
	}

	doc := docstore.Document{
		"chain_id":     rec.ChainID,
		"job_id":       rec.JobID,
		"step":         rec.Step,
		"agent_name":   rec.AgentName,
		"parent_agent": rec.ParentAgent,
		"status":       rec.Status,
		"log":          rec.Log,
	}
	if _, err := m.store.Index(ctx, ChainCollection, doc); err != nil {
		log.Printf("[MemoryStore] Failed to save chain step %s: %v", rec.ChainID, err)
	}
}

// SaveJob writes or replaces a job dispatch record.
func (m *MemoryStore) SaveJob(ctx context.Context, rec AgentJobRecord) {
	rec.UpdatedAt = m.now().UTC()
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = rec.UpdatedAt
	}

	if _, err := m.store.DeleteByFilter(ctx, JobCollection, docstore.Filter{"job_id": rec.JobID}); err != nil {
		log.Printf("[MemoryStore] Failed to clear prior job record %s: %v", rec.JobID, err)
	}

	doc := docstore.Document{
		"job_id":     rec.JobID,
		"tenant_id":  rec.TenantID,
		"status":     rec.Status,
		"input":      rec.Input,
		"created_at": rec.CreatedAt.Format(time.RFC3339Nano),
		"updated_at": rec.UpdatedAt.Format(time.RFC3339Nano),
	}
	if _, err := m.store.Index(ctx, JobCollection, doc); err != nil {
		log.Printf("[MemoryStore] Failed to save job record %s: %v", rec.JobID, err)
	}
}

// JobMemory returns all memory records for a job, ordered by step.
func (m *MemoryStore) JobMemory(ctx context.Context, jobID string) ([]docstore.Document, error) {
	docs, err := m.store.Search(ctx, MemoryCollection, docstore.Filter{"agent_job_id": jobID}, 100)
	if err != nil {
		return nil, fmt.Errorf("failed to load memory for job %s: %w", jobID, err)
	}
	sortByStep(docs)
	return docs, nil
}

// ChainStatus returns a job's chain step records, ordered by step.
func (m *MemoryStore) ChainStatus(ctx context.Context, jobID string) ([]docstore.Document, error) {
	docs, err := m.store.Search(ctx, ChainCollection, docstore.Filter{"job_id": jobID}, 100)
	if err != nil {
		return nil, fmt.Errorf("failed to load chain status for job %s: %w", jobID, err)
	}
	sortByStep(docs)
	return docs, nil
}

func sortByStep(docs []docstore.Document) {
	sort.SliceStable(docs, func(i, j int) bool {
		return docStep(docs[i]) < docStep(docs[j])
	})
}

func docStep(doc docstore.Document) int {
	switch v := doc["step"].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	default:
		return 0
	}
}
