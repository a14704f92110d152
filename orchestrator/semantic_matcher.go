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
	"sync"

	"ea-aura/platform/connectors/docstore"
	"ea-aura/platform/connectors/embeddings"
)

// Semantic blend weights: average similarity vs best single source
// text.
const (
	semanticWeightAvg = 0.7
	semanticWeightMax = 0.3
)

// agentEmbedding holds the precomputed vectors for one agent: the
// per-source-text vectors and their element-wise average.
type agentEmbedding struct {
	sources [][]float32
	average []float32
}

// semanticIndex lazily precomputes an embedding per agent from its
// keywords, description, goal, capabilities, and sub-agent keywords.
// Initialization happens once under a coarse lock on first use; after
// that the index is read-only and safe for concurrent readers.
type semanticIndex struct {
	provider embeddings.Provider
	registry *AgentRegistry

	mu      sync.Mutex
	built   bool
	vectors map[string]agentEmbedding
}

// newSemanticIndex creates an index over the registry. provider may
// report not-ready for a while; callers fall back to keyword matching
// until it is.
func newSemanticIndex(provider embeddings.Provider, registry *AgentRegistry) *semanticIndex {
	return &semanticIndex{provider: provider, registry: registry}
}

// ready reports whether semantic scoring can be used right now,
// building the index on first call after the provider warms up. It
// never blocks on a cold provider.
func (s *semanticIndex) ready(ctx context.Context) bool {
	if s == nil || s.provider == nil || !s.provider.Ready() {
		return false
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.built {
		return s.vectors != nil
	}
	s.built = true
	s.vectors = s.build(ctx)
	return s.vectors != nil
}

// build embeds every agent's match texts. A failure leaves the index
// nil so matching degrades to keywords for the process lifetime.
func (s *semanticIndex) build(ctx context.Context) map[string]agentEmbedding {
	vectors := make(map[string]agentEmbedding)

	embedAgent := func(cfg *AgentConfig) bool {
		texts := cfg.MatchText()
		if len(texts) == 0 {
			return true
		}
		sources, err := s.provider.EmbedMany(ctx, texts)
		if err != nil {
			log.Printf("[SemanticIndex] Failed to embed agent %s, disabling semantic matching: %v",
				cfg.AgentID, err)
			return false
		}
		vectors[cfg.AgentID] = agentEmbedding{
			sources: sources,
			average: averageVector(sources),
		}
		return true
	}

	for _, parent := range s.registry.GetAll() {
		if !embedAgent(parent) {
			return nil
		}
		for i := range parent.SubAgents {
			if !embedAgent(&parent.SubAgents[i]) {
				return nil
			}
		}
	}

	log.Printf("[SemanticIndex] Precomputed embeddings for %d agents", len(vectors))
	return vectors
}

// embedInput embeds the query text once; the resulting vector is
// scored against every candidate agent.
func (s *semanticIndex) embedInput(ctx context.Context, userInput string) ([]float32, bool) {
	inputVec, err := s.provider.Embed(ctx, userInput)
	if err != nil {
		log.Printf("[SemanticIndex] Input embedding failed, falling back to keywords: %v", err)
		return nil, false
	}
	return inputVec, true
}

// score ranks one agent against the embedded input: cosine to the
// averaged agent embedding weighted 0.7, plus the best cosine to any
// single source text weighted 0.3. The second return is false when the
// agent has no vectors.
func (s *semanticIndex) score(inputVec []float32, cfg *AgentConfig) (float64, bool) {
	s.mu.Lock()
	emb, ok := s.vectors[cfg.AgentID]
	s.mu.Unlock()
	if !ok || len(emb.sources) == 0 {
		return 0, false
	}

	avgSim := docstore.CosineSimilarityPlusOne(inputVec, emb.average) - 1.0
	maxSim := 0.0
	for _, src := range emb.sources {
		if sim := docstore.CosineSimilarityPlusOne(inputVec, src) - 1.0; sim > maxSim {
			maxSim = sim
		}
	}

	score := avgSim*semanticWeightAvg + maxSim*semanticWeightMax
	if score < 0 {
		score = 0
	}
	return score, true
}

func averageVector(sources [][]float32) []float32 {
	if len(sources) == 0 {
		return nil
	}
	avg := make([]float32, len(sources[0]))
	for _, src := range sources {
		for i := range src {
			if i < len(avg) {
				avg[i] += src[i]
			}
		}
	}
	for i := range avg {
		avg[i] /= float32(len(sources))
	}
	return avg
}
