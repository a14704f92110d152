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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHeuristicCount(t *testing.T) {
	acc := NewTokenAccountant()

	assert.Equal(t, 0, acc.Count("", "any-model"))
	assert.Greater(t, acc.Count("hello world this is a test", "any-model"), 0)

	// Longer text costs more tokens.
	short := acc.Count("short", "m")
	long := acc.Count("a considerably longer piece of text with many more words in it", "m")
	assert.Greater(t, long, short)
}

type fixedTokenizer int

func (f fixedTokenizer) Count(text string) int { return int(f) }

func TestModelSpecificTokenizer(t *testing.T) {
	acc := NewTokenAccountant()
	acc.RegisterTokenizer("exact-model", fixedTokenizer(42))

	assert.Equal(t, 42, acc.Count("anything", "exact-model"))
	assert.NotEqual(t, 42, acc.Count("anything", "other-model"))
}

func TestTrackAndSummary(t *testing.T) {
	acc := NewTokenAccountant()

	u1 := acc.Track("agent-a", "some input text", "some output text", "m", 0)
	assert.Equal(t, "agent-a", u1.AgentID)
	assert.Equal(t, u1.InputTokens+u1.OutputTokens, u1.TotalTokens)

	acc.TrackCounted("agent-a", 100, 50, "m", 1)
	acc.TrackCounted("agent-b", 10, 5, "m", 0)

	summary := acc.JobSummary()
	require.Contains(t, summary.Agents, "agent-a")
	require.Contains(t, summary.Agents, "agent-b")

	a := summary.Agents["agent-a"]
	assert.Equal(t, 2, a.Invocations)
	assert.Equal(t, u1.TotalTokens+150, a.TotalTokens)

	assert.Equal(t, a.TotalTokens+15, summary.JobTotal.TotalTokens)
	assert.Equal(t, 3, summary.JobTotal.Invocations)
}

func TestAgentTotal(t *testing.T) {
	acc := NewTokenAccountant()
	acc.TrackCounted("agent-a", 100, 50, "m", 0)
	acc.TrackCounted("agent-a", 20, 10, "m", 1)
	acc.TrackCounted("agent-b", 1, 1, "m", 0)

	assert.Equal(t, 180, acc.AgentTotal("agent-a"))
	assert.Equal(t, 2, acc.AgentTotal("agent-b"))
	assert.Equal(t, 0, acc.AgentTotal("agent-c"))
}

func TestReset(t *testing.T) {
	acc := NewTokenAccountant()
	acc.TrackCounted("agent-a", 100, 50, "m", 0)
	require.NotEmpty(t, acc.Entries())

	acc.Reset()
	assert.Empty(t, acc.Entries())
	assert.Equal(t, 0, acc.JobSummary().JobTotal.TotalTokens)
}
