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

func TestRegistryGetSearchesSubAgents(t *testing.T) {
	registry := testAgentTree(t)

	parent, ok := registry.Get("BusinessVitalityAgent")
	require.True(t, ok)
	assert.Equal(t, AgentKindParent, parent.Kind)

	sub, ok := registry.Get("SalesAnalyzerAgent")
	require.True(t, ok)
	assert.Equal(t, AgentKindSub, sub.Kind)

	_, ok = registry.Get("NoSuchAgent")
	assert.False(t, ok)
}

func TestRegistryGetAll(t *testing.T) {
	registry := testAgentTree(t)

	all := registry.GetAll()
	assert.Len(t, all, 2)
	assert.Contains(t, all, "BusinessVitalityAgent")
	assert.Contains(t, all, "MarketResearchAgent")
	// Sub-agents are not top-level entries.
	assert.NotContains(t, all, "SalesAnalyzerAgent")
}

func TestRegistryParentLookup(t *testing.T) {
	registry := testAgentTree(t)

	parent := registry.Parent("SalesAnalyzerAgent")
	require.NotNil(t, parent)
	assert.Equal(t, "BusinessVitalityAgent", parent.AgentID)

	assert.Nil(t, registry.Parent("BusinessVitalityAgent"))
	assert.Nil(t, registry.Parent("NoSuchAgent"))
}

func TestRegistryStats(t *testing.T) {
	registry := testAgentTree(t)

	stats := registry.Stats()
	assert.Equal(t, 2, stats.ParentCount)
	assert.Equal(t, 3, stats.SubCount)
	assert.Equal(t, 2, stats.Enabled)
}

func TestRegistryParentIDsStableOrder(t *testing.T) {
	registry := testAgentTree(t)

	first := registry.ParentIDs()
	second := registry.ParentIDs()
	assert.Equal(t, first, second)
	assert.Equal(t, []string{"BusinessVitalityAgent", "MarketResearchAgent"}, first)
}
