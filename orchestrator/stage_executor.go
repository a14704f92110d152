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

// StageExecutor runs one agent stage end to end: cache lookup, guard
// checks, the LLM call with retry and budget enforcement, success
// criteria, and the audit trail. Stages within a job run sequentially;
// the parent stage consumes the sub-agent stage's output.
type StageExecutor struct {
	cache    *ContentCache
	guard    *SafetyGuard
	provider llm.Provider
	tracker  *PerformanceTracker
	memory   *MemoryStore
	emitter  *EventEmitter
	enhancer DataEnhancer
	metrics  *MetricsCollector

	// sleep is swappable so retry tests do not wait in real time.
	sleep func(time.Duration)
}

// NewStageExecutor wires a stage executor. enhancer and metrics may be
// nil. Token accounting happens against the session's per-job ledger.
func NewStageExecutor(cache *ContentCache, guard *SafetyGuard, provider llm.Provider,
	tracker *PerformanceTracker, memory *MemoryStore,
	emitter *EventEmitter, enhancer DataEnhancer, metrics *MetricsCollector) *StageExecutor {
	return &StageExecutor{
		cache:    cache,
		guard:    guard,
		provider: provider,
		tracker:  tracker,
		memory:   memory,
		emitter:  emitter,
		enhancer: enhancer,
		metrics:  metrics,
		sleep:    time.Sleep,
	}
}

// Execute runs one stage for the session's job. parentName is empty
// for parent-agent stages and names the owning parent for sub-agent
// stages. The returned StageResult carries either a response or a
// classified failure; nothing is raised.
func (e *StageExecutor) Execute(ctx context.Context, session *ExecutionSession, agent *AgentConfig, parentName, input string, step int) StageResult {
	subIndex := "agent_" + agent.AgentID

	enhancedData := ""
	if e.enhancer != nil {
		if data, err := e.enhancer.EnhancedData(ctx, session.TenantID, agent.AgentID, input); err == nil {
			enhancedData = data
		}
	}
	cacheKey := StageCacheKey(input, agent.AgentID, enhancedData)

	e.memory.SaveChainStep(ctx, ChainStepRecord{
		JobID:       session.JobID,
		Step:        step,
		AgentName:   agent.AgentID,
		ParentAgent: parentName,
		Status:      StatusRunning,
	})

	if cached, ok := e.cache.Lookup(ctx, cacheKey, session.TenantID, subIndex); ok {
		e.tracker.Record(agent.AgentID, true, 0, 0, true)
		e.metrics.RecordCacheHit(agent.AgentID)
		e.memory.SaveChainStep(ctx, ChainStepRecord{
			JobID:       session.JobID,
			Step:        step,
			AgentName:   agent.AgentID,
			ParentAgent: parentName,
			Status:      StatusCompleted,
			Log:         "served from cache",
		})
		e.emitter.Emit(EventAgentCompleted, session.JobID, session.TenantID, agent.AgentID,
			map[string]interface{}{"step": step, "from_cache": true})
		return StageResult{AgentID: agent.AgentID, Response: cached, FromCache: true, Attempts: 0}
	}
	e.metrics.RecordCacheMiss(agent.AgentID)

	e.emitter.Emit(EventAgentStarted, session.JobID, session.TenantID, agent.AgentID,
		map[string]interface{}{"step": step})

	maxAttempts := agent.RetryPolicy.Attempts()
	var lastErr error

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if agent.TokenBudget > 0 {
			used := session.Accountant.AgentTotal(agent.AgentID)
			if used >= agent.TokenBudget {
				budgetErr := &TokenBudgetExceededError{
					AgentID:   agent.AgentID,
					Budget:    agent.TokenBudget,
					Used:      used,
					Remaining: agent.TokenBudget - used,
				}
				return e.fail(ctx, session, agent, parentName, step, StageResult{
					AgentID:  agent.AgentID,
					Kind:     FailureTerminal,
					Code:     CodeTokenBudgetExceeded,
					Err:      budgetErr,
					Attempts: attempt - 1,
				})
			}
		}

		prompt := PrepareAgentPrompt(agent.PromptTemplate, input, enhancedData)

		if verdict := e.guard.Check(ctx, prompt, ContentTypePrompt); !verdict.Allowed {
			// A blocked prompt short-circuits to the safe message
			// without an LLM call; the pipeline continues.
			e.metrics.RecordGuardBlock(ContentTypePrompt, verdict.Reason)
			log.Printf("[StageExecutor] Prompt blocked for agent %s (job=%s): %s",
				agent.AgentID, session.JobID, verdict.Reason)
			return e.succeed(ctx, session, agent, parentName, input, enhancedData, SafeFallbackMessage,
				step, attempt, nil, fmt.Sprintf("prompt blocked: %s", verdict.Reason), false)
		}

		start := time.Now()
		resp, err := e.provider.Complete(ctx, llm.CompletionRequest{
			Model:       agent.Model,
			UserPrompt:  prompt,
			MaxTokens:   agent.MaxTokens,
			Temperature: agent.Temperature,
		})
		latency := time.Since(start)
		e.metrics.RecordLLMCall(agent.Model, latency, err == nil)

		if err == nil {
			output := resp.Content

			if verdict := e.guard.Check(ctx, output, ContentTypeResponse); !verdict.Allowed {
				// A blocked response is replaced, not failed.
				e.metrics.RecordGuardBlock(ContentTypeResponse, verdict.Reason)
				log.Printf("[StageExecutor] Response blocked for agent %s (job=%s): %s",
					agent.AgentID, session.JobID, verdict.Reason)
				return e.succeed(ctx, session, agent, parentName, input, enhancedData, SafeFallbackMessage,
					step, attempt, resp, fmt.Sprintf("response blocked: %s", verdict.Reason), false)
			}

			if err = checkSuccessCriteria(agent.AgentID, agent.SuccessCriteria, output); err == nil {
				e.tracker.Record(agent.AgentID, true, latency.Seconds(), resp.TotalTokens, false)
				return e.succeed(ctx, session, agent, parentName, input, enhancedData, output,
					step, attempt, resp, "", true)
			}
		}

		// The provider billed tokens even when the attempt is discarded
		// (success-criteria rejection); they count against the budget.
		attemptTokens := 0
		if resp != nil && resp.TotalTokens > 0 {
			attemptTokens = resp.TotalTokens
			session.Accountant.TrackCounted(agent.AgentID, resp.PromptTokens, resp.CompletionTokens, agent.Model, step)
		}

		lastErr = err
		kind, code := classifyError(err)
		if kind == FailureTerminal {
			e.tracker.Record(agent.AgentID, false, latency.Seconds(), attemptTokens, false)
			return e.fail(ctx, session, agent, parentName, step, StageResult{
				AgentID:  agent.AgentID,
				Kind:     FailureTerminal,
				Code:     code,
				Err:      err,
				Attempts: attempt,
			})
		}

		e.tracker.Record(agent.AgentID, false, latency.Seconds(), attemptTokens, false)
		if attempt < maxAttempts {
			log.Printf("[StageExecutor] Attempt %d/%d failed for agent %s (job=%s), retrying: %v",
				attempt, maxAttempts, agent.AgentID, session.JobID, err)
			e.memory.SaveChainStep(ctx, ChainStepRecord{
				JobID:       session.JobID,
				Step:        step,
				AgentName:   agent.AgentID,
				ParentAgent: parentName,
				Status:      StatusRetrying,
				Log:         fmt.Sprintf("attempt %d failed: %v", attempt, err),
			})
			e.emitter.Emit(EventAgentRetrying, session.JobID, session.TenantID, agent.AgentID,
				map[string]interface{}{"step": step, "attempt": attempt})
			e.sleep(agent.RetryPolicy.Delay())
		}
	}

	return e.fail(ctx, session, agent, parentName, step, StageResult{
		AgentID:          agent.AgentID,
		Kind:             FailureTerminal,
		Code:             CodeRetriesExhausted,
		Err:              fmt.Errorf("agent %s failed after %d attempts: %w", agent.AgentID, maxAttempts, lastErr),
		Attempts:         maxAttempts,
		RetriesExhausted: true,
	})
}

// succeed finalizes a successful stage: token accounting, cache store,
// memory record, chain completion, and the completion event. Safe
// fallback substitutions skip the cache so a blocked result is never
// replayed to later callers.
func (e *StageExecutor) succeed(ctx context.Context, session *ExecutionSession, agent *AgentConfig,
	parentName, input, enhancedData, output string, step, attempts int, resp *llm.CompletionResponse,
	stepLog string, cacheable bool) StageResult {

	var usage TokenUsage
	if resp != nil && resp.TotalTokens > 0 {
		usage = session.Accountant.TrackCounted(agent.AgentID, resp.PromptTokens, resp.CompletionTokens, agent.Model, step)
	} else if resp != nil {
		usage = session.Accountant.Track(agent.AgentID, input, output, agent.Model, step)
	}

	if cacheable {
		e.cache.Store(ctx, StageCacheKey(input, agent.AgentID, enhancedData), output,
			session.TenantID, "agent_"+agent.AgentID)
	}

	e.memory.SaveMemory(ctx, MemoryRecord{
		AgentJobID:   session.JobID,
		AgentID:      agent.AgentID,
		TenantID:     session.TenantID,
		Step:         step,
		Input:        input,
		Output:       output,
		TokenCount:   usage.TotalTokens,
		InputTokens:  usage.InputTokens,
		OutputTokens: usage.OutputTokens,
		ModelName:    agent.Model,
	})

	e.memory.SaveChainStep(ctx, ChainStepRecord{
		JobID:       session.JobID,
		Step:        step,
		AgentName:   agent.AgentID,
		ParentAgent: parentName,
		Status:      StatusCompleted,
		Log:         stepLog,
	})

	e.emitter.Emit(EventAgentCompleted, session.JobID, session.TenantID, agent.AgentID,
		map[string]interface{}{"step": step, "attempts": attempts, "tokens": usage.TotalTokens})

	return StageResult{AgentID: agent.AgentID, Response: output, Attempts: attempts}
}

// fail finalizes a failed stage: chain record, failure event, and the
// structured result the orchestrator aborts with.
func (e *StageExecutor) fail(ctx context.Context, session *ExecutionSession, agent *AgentConfig,
	parentName string, step int, result StageResult) StageResult {

	e.memory.SaveChainStep(ctx, ChainStepRecord{
		JobID:       session.JobID,
		Step:        step,
		AgentName:   agent.AgentID,
		ParentAgent: parentName,
		Status:      StatusFailed,
		Log:         result.Err.Error(),
	})

	e.emitter.Emit(EventAgentFailed, session.JobID, session.TenantID, agent.AgentID,
		map[string]interface{}{
			"step":              step,
			"code":              result.Code,
			"error":             result.Err.Error(),
			"retries_exhausted": result.RetriesExhausted,
		})

	return result
}
