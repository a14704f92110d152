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
	"log"
	"strings"

	"ea-aura/platform/connectors/docstore"
)

// AgentDataCollection holds per-tenant retrieval documents keyed to an
// agent.
const AgentDataCollection = "agent_data"

// enhancerDocLimit bounds how many context documents one stage pulls.
const enhancerDocLimit = 5

// DataEnhancer supplies retrieval-augmented context for a (tenant,
// agent) pair. A nil or empty result means the stage runs without
// extra context.
type DataEnhancer interface {
	EnhancedData(ctx context.Context, tenantID, agentID, input string) (string, error)
}

// DocstoreEnhancer pulls tenant-scoped context documents from the
// document store.
type DocstoreEnhancer struct {
	store docstore.Store
}

// NewDocstoreEnhancer creates an enhancer over the document store.
func NewDocstoreEnhancer(store docstore.Store) *DocstoreEnhancer {
	return &DocstoreEnhancer{store: store}
}

// EnhancedData concatenates the content fields of matching documents.
// Lookup failures degrade to no context rather than failing the stage.
func (e *DocstoreEnhancer) EnhancedData(ctx context.Context, tenantID, agentID, input string) (string, error) {
	filter := docstore.Filter{"tenant_id": tenantID, "agent_id": agentID}
	docs, err := e.store.Search(ctx, AgentDataCollection, filter, enhancerDocLimit)
	if err != nil {
		log.Printf("[DataEnhancer] Context lookup failed (tenant=%s, agent=%s), continuing without: %v",
			tenantID, agentID, err)
		return "", nil
	}
	if len(docs) == 0 {
		return "", nil
	}

	parts := make([]string, 0, len(docs))
	for _, doc := range docs {
		if content, ok := doc["content"].(string); ok && content != "" {
			parts = append(parts, content)
		}
	}
	if len(parts) == 0 {
		return "", nil
	}
	return strings.Join(parts, "\n---\n"), nil
}
