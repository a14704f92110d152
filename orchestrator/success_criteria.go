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
	"encoding/json"
	"log"
	"strings"
)

// chartIndicators are the output markers counted for chart criteria.
var chartIndicators = []string{"plot_type", "chart", "graph", "figure"}

// checkSuccessCriteria evaluates an agent's free-text assertions
// against its raw output, returning a retryable error on the first
// unmet criterion. Criteria without a recognized check are logged and
// skipped rather than failing the stage.
func checkSuccessCriteria(agentID string, criteria []string, output string) error {
	for _, criterion := range criteria {
		lower := strings.ToLower(criterion)

		switch {
		case strings.Contains(lower, "json"):
			if !json.Valid([]byte(extractJSONCandidate(output))) {
				return &successCriteriaError{AgentID: agentID, Criterion: criterion}
			}

		case strings.Contains(lower, "chart") || strings.Contains(lower, "graph"):
			if countChartIndicators(output) < 2 {
				return &successCriteriaError{AgentID: agentID, Criterion: criterion}
			}

		default:
			log.Printf("[SuccessCriteria] No check registered for criterion %q on agent %s, skipping",
				criterion, agentID)
		}
	}
	return nil
}

// extractJSONCandidate strips markdown code fences so fenced JSON
// still validates.
func extractJSONCandidate(output string) string {
	trimmed := strings.TrimSpace(output)
	if strings.HasPrefix(trimmed, "```") {
		trimmed = strings.TrimPrefix(trimmed, "```json")
		trimmed = strings.TrimPrefix(trimmed, "```")
		if idx := strings.LastIndex(trimmed, "```"); idx >= 0 {
			trimmed = trimmed[:idx]
		}
		trimmed = strings.TrimSpace(trimmed)
	}
	return trimmed
}

func countChartIndicators(output string) int {
	lower := strings.ToLower(output)
	count := 0
	for _, indicator := range chartIndicators {
		count += strings.Count(lower, indicator)
	}
	return count
}
