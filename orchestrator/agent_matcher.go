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
	"sort"
	"strings"

	"ea-aura/platform/connectors/embeddings"
)

// Matching thresholds.
const (
	// keywordFuzzyThreshold admits a fuzzy keyword match when no
	// verbatim substring matches.
	keywordFuzzyThreshold = 0.6

	// subAgentFuzzyThreshold is the looser acceptance bar used when
	// choosing a sub-agent within an already-chosen parent.
	subAgentFuzzyThreshold = 0.5

	// DefaultMinMatchScore is the floor below which no parent agent is
	// selected and the fallback agent runs instead.
	DefaultMinMatchScore = 0.25
)

// Selection blend weights: match score, performance score, load
// weight, token-budget headroom.
const (
	selectWeightMatch    = 0.5
	selectWeightPerf     = 0.3
	selectWeightLoad     = 0.1
	selectWeightHeadroom = 0.1
)

// MatchCandidate is one ranked agent candidate.
type MatchCandidate struct {
	AgentID string
	Score   float64
	Config  *AgentConfig
}

// AgentMatcher ranks agents for free-text input. The semantic strategy
// is preferred when the embedding provider is ready; otherwise it
// degrades to keyword matching. Selection blends the match score with
// live performance, load, and budget-headroom signals.
type AgentMatcher struct {
	registry *AgentRegistry
	tracker  *PerformanceTracker
	semantic *semanticIndex
}

// NewAgentMatcher creates a matcher. embedder may be nil to disable the
// embedding strategy entirely.
func NewAgentMatcher(registry *AgentRegistry, tracker *PerformanceTracker, embedder embeddings.Provider) *AgentMatcher {
	m := &AgentMatcher{
		registry: registry,
		tracker:  tracker,
	}
	if embedder != nil {
		m.semantic = newSemanticIndex(embedder, registry)
	}
	return m
}

// FindBest returns up to topK enabled parent agents scoring at least
// minScore, ranked by raw match score (no performance blending). The
// ranking is deterministic for a fixed registry and input.
func (m *AgentMatcher) FindBest(ctx context.Context, userInput string, topK int, minScore float64) []MatchCandidate {
	candidates := m.matchParents(ctx, userInput)

	out := candidates[:0]
	for _, c := range candidates {
		if c.Score >= minScore {
			out = append(out, c)
		}
	}
	if topK > 0 && len(out) > topK {
		out = out[:topK]
	}
	return out
}

// SelectParent picks the parent agent for the input, blending match
// score with performance, load, and token-budget headroom. It returns
// nil when no candidate clears minScore; the caller then runs the
// generic fallback agent.
func (m *AgentMatcher) SelectParent(ctx context.Context, userInput string, minScore float64, accountant *TokenAccountant) *MatchCandidate {
	candidates := m.matchParents(ctx, userInput)
	if len(candidates) == 0 {
		return nil
	}

	best := -1
	bestScore := 0.0
	for i, c := range candidates {
		if c.Score < minScore {
			continue
		}
		blended := c.Score*selectWeightMatch +
			m.tracker.Score(c.AgentID)*selectWeightPerf +
			m.tracker.LoadWeight(c.AgentID)*selectWeightLoad +
			budgetHeadroom(c.Config, accountant)*selectWeightHeadroom
		if best < 0 || blended > bestScore {
			best = i
			bestScore = blended
		}
	}
	if best < 0 {
		return nil
	}

	selected := candidates[best]
	log.Printf("[AgentMatcher] Selected parent %s (match=%.3f, blended=%.3f)",
		selected.AgentID, selected.Score, bestScore)
	return &selected
}

// SelectSub picks a sub-agent within the chosen parent using the same
// semantic-or-keyword cascade with a looser threshold. When nothing
// matches, the first enabled sub-agent is returned; nil only when the
// parent has no enabled sub-agents at all.
func (m *AgentMatcher) SelectSub(ctx context.Context, parent *AgentConfig, userInput string) *AgentConfig {
	if len(parent.SubAgents) == 0 {
		return nil
	}

	var inputVec []float32
	useSemantic := false
	if m.semantic != nil && m.semantic.ready(ctx) {
		inputVec, useSemantic = m.semantic.embedInput(ctx, userInput)
	}

	best := -1
	bestScore := 0.0
	for i := range parent.SubAgents {
		sub := &parent.SubAgents[i]
		if !sub.Enabled {
			continue
		}
		score, scored := 0.0, false
		if useSemantic {
			score, scored = m.semantic.score(inputVec, sub)
		}
		if !scored {
			score = subKeywordScore(sub, userInput)
		}
		if score >= subAgentFuzzyThreshold && (best < 0 || score > bestScore) {
			best = i
			bestScore = score
		}
	}
	if best >= 0 {
		return &parent.SubAgents[best]
	}
	for i := range parent.SubAgents {
		if parent.SubAgents[i].Enabled {
			return &parent.SubAgents[i]
		}
	}
	return nil
}

// matchParents runs the preferred available strategy over all enabled
// parent agents and returns candidates sorted by score descending,
// agent id ascending on ties.
func (m *AgentMatcher) matchParents(ctx context.Context, userInput string) []MatchCandidate {
	var candidates []MatchCandidate

	var inputVec []float32
	useSemantic := false
	if m.semantic != nil && m.semantic.ready(ctx) {
		inputVec, useSemantic = m.semantic.embedInput(ctx, userInput)
	}

	for _, id := range m.registry.ParentIDs() {
		cfg, _ := m.registry.Get(id)
		if cfg == nil || !cfg.Enabled {
			continue
		}

		var score float64
		scored := false
		if useSemantic {
			score, scored = m.semantic.score(inputVec, cfg)
		}
		if !scored {
			score = keywordScore(cfg, userInput)
		}

		if score > 0 {
			candidates = append(candidates, MatchCandidate{AgentID: id, Score: score, Config: cfg})
		}
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].Score != candidates[j].Score {
			return candidates[i].Score > candidates[j].Score
		}
		return candidates[i].AgentID < candidates[j].AgentID
	})
	return candidates
}

// subKeywordScore scores a sub-agent with an exact-substring check and
// a token-sort ratio against the whole input.
func subKeywordScore(sub *AgentConfig, userInput string) float64 {
	lower := strings.ToLower(userInput)
	best := 0.0
	for _, keyword := range sub.Keywords {
		kw := strings.ToLower(keyword)
		if strings.Contains(lower, kw) {
			return 1.0
		}
		if r := tokenSortRatio(kw, lower); r > best {
			best = r
		}
	}
	return best
}

// budgetHeadroom scores remaining token budget against the job's own
// ledger: 1.0 for an unlimited or untouched budget, falling linearly
// to 0 at exhaustion.
func budgetHeadroom(cfg *AgentConfig, accountant *TokenAccountant) float64 {
	if cfg.TokenBudget <= 0 {
		return 1.0
	}
	used := accountant.AgentTotal(cfg.AgentID)
	remaining := cfg.TokenBudget - used
	if remaining <= 0 {
		return 0.0
	}
	return float64(remaining) / float64(cfg.TokenBudget)
}

// keywordScore scores one agent against the input: 1.0 per keyword
// found verbatim in the lowercased input, else a fuzzy token ratio
// when above the threshold, summed and normalized by keyword count.
func keywordScore(cfg *AgentConfig, userInput string) float64 {
	if len(cfg.Keywords) == 0 {
		return 0.0
	}

	lower := strings.ToLower(userInput)
	total := 0.0
	for _, keyword := range cfg.Keywords {
		kw := strings.ToLower(keyword)
		if strings.Contains(lower, kw) {
			total += 1.0
			continue
		}
		if r := bestTokenRatio(kw, lower); r > keywordFuzzyThreshold {
			total += r
		}
	}
	return total / float64(len(cfg.Keywords))
}

// bestTokenRatio returns the highest similarity between the keyword
// and any single input token, so one off-spelled word can still match.
func bestTokenRatio(keyword, lowerInput string) float64 {
	best := 0.0
	for _, token := range strings.Fields(lowerInput) {
		if r := similarityRatio(keyword, token); r > best {
			best = r
		}
	}
	return best
}
