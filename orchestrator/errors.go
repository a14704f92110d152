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
	"errors"
	"fmt"

	"ea-aura/platform/orchestrator/llm"
)

// Error codes surfaced in structured job error payloads.
const (
	CodeValidation          = "VALIDATION_ERROR"
	CodeAgentNotFound       = "AGENT_NOT_FOUND"
	CodeTokenBudgetExceeded = "TOKEN_BUDGET_EXCEEDED"
	CodeLLMRequest          = "LLM_REQUEST_ERROR"
	CodeLLMTransient        = "LLM_TRANSIENT_ERROR"
	CodeRetriesExhausted    = "RETRIES_EXHAUSTED"
	CodeInternal            = "INTERNAL_ERROR"
)

// ValidationError reports a missing or malformed request field. It is
// surfaced to the caller immediately and never retried.
type ValidationError struct {
	Field  string
	Detail string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed for %s: %s", e.Field, e.Detail)
}

// AgentNotFoundError reports a configuration lookup miss.
type AgentNotFoundError struct {
	AgentID string
	// ParentAgent names the parent whose sub-agents were searched, when
	// the miss happened during sub-agent selection.
	ParentAgent string
}

func (e *AgentNotFoundError) Error() string {
	if e.ParentAgent != "" {
		return fmt.Sprintf("no sub-agent available for parent agent %s", e.ParentAgent)
	}
	return fmt.Sprintf("agent not found: %s", e.AgentID)
}

// TokenBudgetExceededError is terminal for the stage that raises it;
// the retry loop never re-attempts after a budget failure.
type TokenBudgetExceededError struct {
	AgentID   string
	Budget    int
	Used      int
	Remaining int
}

func (e *TokenBudgetExceededError) Error() string {
	return fmt.Sprintf("token budget exceeded for agent %s: budget=%d used=%d remaining=%d",
		e.AgentID, e.Budget, e.Used, e.Remaining)
}

// FailureKind tags a stage failure so the retry loop can operate on the
// tag rather than on error types.
type FailureKind int

const (
	// FailureNone means the stage succeeded.
	FailureNone FailureKind = iota
	// FailureRetryable covers transient LLM errors and unmet success
	// criteria; the retry policy decides how many times to re-attempt.
	FailureRetryable
	// FailureTerminal covers budget exhaustion, bad-request/auth errors
	// when the policy forbids retry, and exhausted retries.
	FailureTerminal
)

func (k FailureKind) String() string {
	switch k {
	case FailureNone:
		return "none"
	case FailureRetryable:
		return "retryable"
	case FailureTerminal:
		return "terminal"
	default:
		return "unknown"
	}
}

// StageResult is the outcome of one agent stage attempt sequence.
// Exactly one of Response or Err is meaningful: Err is nil when Kind is
// FailureNone.
type StageResult struct {
	AgentID          string
	Response         string
	FromCache        bool
	Kind             FailureKind
	Code             string
	Err              error
	Attempts         int
	RetriesExhausted bool
}

// OK reports whether the stage produced a usable response.
func (r StageResult) OK() bool { return r.Kind == FailureNone }

// JobError is the structured error payload returned to callers in place
// of a result. Nothing propagates past Run as a raised error.
type JobError struct {
	JobID   string `json:"job_id"`
	Code    string `json:"code,omitempty"`
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// classifyError maps an error from an LLM-touching stage onto the
// failure taxonomy.
func classifyError(err error) (FailureKind, string) {
	var budgetErr *TokenBudgetExceededError
	if errors.As(err, &budgetErr) {
		return FailureTerminal, CodeTokenBudgetExceeded
	}
	var validationErr *ValidationError
	if errors.As(err, &validationErr) {
		return FailureTerminal, CodeValidation
	}
	var notFoundErr *AgentNotFoundError
	if errors.As(err, &notFoundErr) {
		return FailureTerminal, CodeAgentNotFound
	}
	var criteriaErr *successCriteriaError
	if errors.As(err, &criteriaErr) {
		return FailureRetryable, CodeLLMTransient
	}
	if llm.IsRequestError(err) {
		return FailureRetryable, CodeLLMRequest
	}
	return FailureRetryable, CodeLLMTransient
}

// successCriteriaError triggers a retry when an agent's output fails a
// configured assertion. It never escapes the stage loop.
type successCriteriaError struct {
	AgentID   string
	Criterion string
}

func (e *successCriteriaError) Error() string {
	return fmt.Sprintf("agent %s output failed success criterion %q", e.AgentID, e.Criterion)
}
