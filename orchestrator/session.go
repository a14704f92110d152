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
	"sync"
)

// ExecutionSession tracks one top-level orchestration call. Once the
// agent selection is locked it cannot change for the job's lifetime;
// mid-request agent switching is a hard invariant violation. The
// session owns the job's token ledger so concurrent jobs never read
// or reset each other's accumulation.
type ExecutionSession struct {
	JobID      string
	TenantID   string
	UserInput  string
	Accountant *TokenAccountant

	mu          sync.Mutex
	parentAgent string
	subAgent    string
	locked      bool
}

// NewExecutionSession creates a session for one job with a fresh token
// ledger.
func NewExecutionSession(jobID, tenantID, userInput string) *ExecutionSession {
	return &ExecutionSession{
		JobID:      jobID,
		TenantID:   tenantID,
		UserInput:  userInput,
		Accountant: NewTokenAccountant(),
	}
}

// LockAgentSelection records the (parent, sub) pair and locks it. A
// second call with a different pair fails and leaves the original
// selection unchanged; re-locking the same pair is a no-op.
func (s *ExecutionSession) LockAgentSelection(parentAgent, subAgent string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.locked {
		if s.parentAgent == parentAgent && s.subAgent == subAgent {
			return nil
		}
		return fmt.Errorf("agent selection already locked to (%s, %s) for job %s",
			s.parentAgent, s.subAgent, s.JobID)
	}

	s.parentAgent = parentAgent
	s.subAgent = subAgent
	s.locked = true
	return nil
}

// Selection returns the locked (parent, sub) pair. The third return is
// false before locking.
func (s *ExecutionSession) Selection() (string, string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.parentAgent, s.subAgent, s.locked
}
