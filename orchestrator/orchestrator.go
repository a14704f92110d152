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

	"github.com/google/uuid"

	"ea-aura/platform/common/usage"
)

// Workflow-level cache scoping: the assembled end-to-end result is
// cached separately from per-stage entries.
const (
	workflowCacheMarker = "full_orchestration"
	workflowSubIndex    = "full_orchestration"
)

// summaryPreamble wraps the parent response in the orchestrator
// summary step. The step is pure text transformation, not an LLM call.
const summaryPreamble = "Orchestrator Summary:\n"

// Job states.
const (
	StateSelecting          = "SELECTING"
	StateSubAgentRunning    = "SUB_AGENT_RUNNING"
	StateParentAgentRunning = "PARENT_AGENT_RUNNING"
	StateSummarizing        = "SUMMARIZING"
	StateCompleted          = "COMPLETED"
	StateFailed             = "FAILED"
)

// RunResult is the top-level orchestration outcome. Exactly one of
// FinalResponse or Error is meaningful.
type RunResult struct {
	JobID         string          `json:"job_id"`
	TenantID      string          `json:"tenant_id"`
	ParentAgent   string          `json:"parent_agent,omitempty"`
	SubAgent      string          `json:"sub_agent,omitempty"`
	FinalResponse string          `json:"final_response,omitempty"`
	FromCache     bool            `json:"from_cache"`
	Fallback      bool            `json:"fallback,omitempty"`
	TokenUsage    JobTokenSummary `json:"token_usage"`
	Error         *JobError       `json:"error,omitempty"`
}

// Orchestrator composes selection, execution, caching, accounting, and
// the audit trail to answer one query end to end.
type Orchestrator struct {
	registry      *AgentRegistry
	matcher       *AgentMatcher
	executor      *StageExecutor
	general       *GeneralAgent
	cache         *ContentCache
	memory        *MemoryStore
	emitter       *EventEmitter
	metrics       *MetricsCollector
	minMatchScore float64
}

// NewOrchestrator wires the orchestrator. metrics may be nil.
func NewOrchestrator(registry *AgentRegistry, matcher *AgentMatcher, executor *StageExecutor,
	general *GeneralAgent, cache *ContentCache,
	memory *MemoryStore, emitter *EventEmitter, metrics *MetricsCollector) *Orchestrator {
	return &Orchestrator{
		registry:      registry,
		matcher:       matcher,
		executor:      executor,
		general:       general,
		cache:         cache,
		memory:        memory,
		emitter:       emitter,
		metrics:       metrics,
		minMatchScore: DefaultMinMatchScore,
	}
}

// Run answers one query for one tenant. It never returns an error
// value and never panics past this boundary: every failure becomes a
// structured JobError inside the result.
func (o *Orchestrator) Run(ctx context.Context, inputText, tenantID string) (result RunResult) {
	jobID := uuid.New().String()
	start := time.Now()
	result = RunResult{JobID: jobID, TenantID: tenantID}

	defer func() {
		if r := recover(); r != nil {
			log.Printf("[Orchestrator] Panic recovered for job %s: %v", jobID, r)
			result.Error = &JobError{
				JobID:   jobID,
				Code:    CodeInternal,
				Error:   "Internal server error during orchestration",
				Details: fmt.Sprint(r),
			}
			o.metrics.RecordJob("panic", time.Since(start))
		}
	}()

	if inputText == "" {
		result.Error = &JobError{JobID: jobID, Code: CodeValidation,
			Error: "input text is required"}
		return result
	}
	if tenantID == "" {
		result.Error = &JobError{JobID: jobID, Code: CodeValidation,
			Error: "tenant id is required"}
		return result
	}

	// Downstream LLM calls bill against this tenant.
	ctx = usage.WithTenant(ctx, tenantID)

	// Each job carries its own token ledger; concurrent jobs never
	// observe each other's accumulation.
	session := NewExecutionSession(jobID, tenantID, inputText)
	o.memory.SaveJob(ctx, AgentJobRecord{JobID: jobID, TenantID: tenantID,
		Status: StatusRunning, Input: inputText})

	// Workflow-level cache: a hit short-circuits selection and
	// execution entirely and carries no new token cost.
	workflowKey := inputText + "|" + workflowCacheMarker
	if cached, ok := o.cache.Lookup(ctx, workflowKey, tenantID, workflowSubIndex); ok {
		log.Printf("[Orchestrator] Workflow cache hit for job %s (tenant=%s)", jobID, tenantID)
		result.FinalResponse = cached
		result.FromCache = true
		result.TokenUsage = session.Accountant.JobSummary()
		o.memory.SaveJob(ctx, AgentJobRecord{JobID: jobID, TenantID: tenantID,
			Status: StatusCompleted, Input: inputText})
		o.metrics.RecordJob("cache_hit", time.Since(start))
		return result
	}

	parentCandidate := o.matcher.SelectParent(ctx, inputText, o.minMatchScore, session.Accountant)
	if parentCandidate == nil {
		// No agent cleared the threshold; the generic fallback agent
		// answers instead of failing the request.
		log.Printf("[Orchestrator] No agent matched for job %s, running fallback", jobID)
		o.metrics.RecordFallback()
		result.FinalResponse = o.general.Run(ctx, session)
		result.Fallback = true
		result.TokenUsage = session.Accountant.JobSummary()
		o.memory.SaveJob(ctx, AgentJobRecord{JobID: jobID, TenantID: tenantID,
			Status: StatusCompleted, Input: inputText})
		o.emitter.Emit(EventJobCompleted, jobID, tenantID, GeneralAgentID,
			map[string]interface{}{"fallback": true})
		o.metrics.RecordJob("fallback", time.Since(start))
		return result
	}
	parent := parentCandidate.Config

	sub := o.matcher.SelectSub(ctx, parent, inputText)
	if sub == nil {
		err := &AgentNotFoundError{ParentAgent: parent.AgentID}
		result.Error = &JobError{JobID: jobID, Code: CodeAgentNotFound,
			Error: err.Error(), Details: "parent_agent=" + parent.AgentID}
		o.failJob(ctx, session, parent.AgentID, result.Error)
		o.metrics.RecordJob("failed", time.Since(start))
		return result
	}

	if err := session.LockAgentSelection(parent.AgentID, sub.AgentID); err != nil {
		result.Error = &JobError{JobID: jobID, Code: CodeInternal,
			Error: "failed to lock agent selection", Details: err.Error()}
		o.failJob(ctx, session, parent.AgentID, result.Error)
		o.metrics.RecordJob("failed", time.Since(start))
		return result
	}
	result.ParentAgent = parent.AgentID
	result.SubAgent = sub.AgentID

	// Stage 0: sub-agent. A failure here aborts the whole job; the
	// parent stage is never attempted on sub-agent failure.
	subResult := o.executor.Execute(ctx, session, sub, parent.AgentID, inputText, 0)
	if !subResult.OK() {
		result.Error = o.stageError(jobID, subResult)
		o.failJob(ctx, session, sub.AgentID, result.Error)
		o.metrics.RecordJob("failed", time.Since(start))
		return result
	}

	// Stage 1: parent agent consumes the sub-agent's output.
	parentResult := o.executor.Execute(ctx, session, parent, "", subResult.Response, 1)
	if !parentResult.OK() {
		result.Error = o.stageError(jobID, parentResult)
		o.failJob(ctx, session, parent.AgentID, result.Error)
		o.metrics.RecordJob("failed", time.Since(start))
		return result
	}

	// Stage 2: orchestrator summary, pure text transformation.
	finalResponse := summaryPreamble + parentResult.Response
	o.memory.SaveMemory(ctx, MemoryRecord{
		AgentJobID: jobID,
		AgentID:    "orchestrator",
		TenantID:   tenantID,
		Step:       2,
		Input:      parentResult.Response,
		Output:     finalResponse,
	})
	o.memory.SaveChainStep(ctx, ChainStepRecord{
		JobID:       jobID,
		Step:        2,
		AgentName:   "orchestrator",
		ParentAgent: parent.AgentID,
		Status:      StatusCompleted,
		Log:         "summary assembled",
	})

	result.FinalResponse = finalResponse
	result.TokenUsage = session.Accountant.JobSummary()

	o.cache.Store(ctx, workflowKey, finalResponse, tenantID, workflowSubIndex)
	o.memory.SaveJob(ctx, AgentJobRecord{JobID: jobID, TenantID: tenantID,
		Status: StatusCompleted, Input: inputText})
	o.emitter.Emit(EventJobCompleted, jobID, tenantID, parent.AgentID,
		map[string]interface{}{
			"sub_agent":    sub.AgentID,
			"total_tokens": result.TokenUsage.JobTotal.TotalTokens,
		})
	o.metrics.RecordJob("completed", time.Since(start))

	return result
}

// stageError converts a failed StageResult into the job error payload.
func (o *Orchestrator) stageError(jobID string, result StageResult) *JobError {
	details := fmt.Sprintf("agent=%s attempts=%d", result.AgentID, result.Attempts)
	if result.RetriesExhausted {
		details += " retries_exhausted=true"
	}
	return &JobError{
		JobID:   jobID,
		Code:    result.Code,
		Error:   result.Err.Error(),
		Details: details,
	}
}

// failJob records the terminal failure and emits the critical event.
func (o *Orchestrator) failJob(ctx context.Context, session *ExecutionSession, agentName string, jobErr *JobError) {
	o.memory.SaveJob(ctx, AgentJobRecord{
		JobID:    session.JobID,
		TenantID: session.TenantID,
		Status:   StatusFailed,
		Input:    session.UserInput,
	})
	o.emitter.Emit(EventJobFailed, session.JobID, session.TenantID, agentName,
		map[string]interface{}{"code": jobErr.Code, "error": jobErr.Error})
}
