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
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"ea-aura/platform/connectors/docstore"
	"ea-aura/platform/connectors/eventbus"
	"ea-aura/platform/orchestrator/llm"
)

// stubLLM is a scripted completion provider. Responses are consumed in
// order; when the script is exhausted the last entry repeats. A nil
// entry produces defaultResponse. A non-zero delay makes every call
// block first so concurrent callers interleave.
type stubLLM struct {
	mu        sync.Mutex
	script    []stubCompletion
	callCount int
	delay     time.Duration
}

type stubCompletion struct {
	content string
	tokens  int
	err     error
}

func (s *stubLLM) Name() string { return "stub" }

func (s *stubLLM) Complete(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	if s.delay > 0 {
		time.Sleep(s.delay)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := s.callCount
	s.callCount++
	if len(s.script) == 0 {
		return &llm.CompletionResponse{Content: "stub response", Model: req.Model,
			PromptTokens: 10, CompletionTokens: 5, TotalTokens: 15}, nil
	}
	if idx >= len(s.script) {
		idx = len(s.script) - 1
	}
	entry := s.script[idx]
	if entry.err != nil {
		return nil, entry.err
	}
	tokens := entry.tokens
	if tokens == 0 {
		tokens = 15
	}
	return &llm.CompletionResponse{
		Content:          entry.content,
		Model:            req.Model,
		PromptTokens:     tokens * 2 / 3,
		CompletionTokens: tokens - tokens*2/3,
		TotalTokens:      tokens,
	}, nil
}

func (s *stubLLM) calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.callCount
}

// stubEmbedder produces a deterministic vector per text so identical
// strings are identical vectors and distinct strings rarely collide.
type stubEmbedder struct {
	ready bool
}

func (s *stubEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vec := make([]float32, 8)
	for i, r := range text {
		vec[i%8] += float32(r%31) / 31.0
	}
	return vec, nil
}

func (s *stubEmbedder) EmbedMany(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		v, err := s.Embed(ctx, t)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func (s *stubEmbedder) Ready() bool { return s.ready }

func (s *stubEmbedder) AwaitReady(ctx context.Context) error { return nil }

// failingStore wraps the in-memory docstore and fails every operation,
// for cache degradation tests.
type failingStore struct{}

func (failingStore) Index(ctx context.Context, collection string, doc docstore.Document) (string, error) {
	return "", fmt.Errorf("store unavailable")
}
func (failingStore) Get(ctx context.Context, collection, id string) (docstore.Document, error) {
	return nil, fmt.Errorf("store unavailable")
}
func (failingStore) Search(ctx context.Context, collection string, filter docstore.Filter, limit int) ([]docstore.Document, error) {
	return nil, fmt.Errorf("store unavailable")
}
func (failingStore) SearchVector(ctx context.Context, collection string, filter docstore.Filter, field string, vector []float32, limit int) ([]docstore.VectorHit, error) {
	return nil, fmt.Errorf("store unavailable")
}
func (failingStore) DeleteByFilter(ctx context.Context, collection string, filter docstore.Filter) (int64, error) {
	return 0, fmt.Errorf("store unavailable")
}
func (failingStore) Close(ctx context.Context) error { return nil }

// testAgentTree is the fixture configuration used across tests.
func testAgentTree(t *testing.T) *AgentRegistry {
	t.Helper()

	tree := &AgentConfigFile{
		APIVersion: "ea-aura.io/v1",
		Kind:       "AgentTree",
		Metadata:   AgentMetadata{Name: "test-tree"},
		Spec: AgentTreeSpec{
			Agents: []AgentConfig{
				{
					AgentID:        "BusinessVitalityAgent",
					Kind:           AgentKindParent,
					Description:    "Analyzes overall business health",
					Keywords:       []string{"sales", "churn", "revenue"},
					PromptTemplate: "Assess the business situation: {{input}}",
					Model:          "test-model",
					MaxTokens:      512,
					RetryPolicy:    RetryPolicy{MaxAttempts: 2, DelaySeconds: 1},
					Enabled:        true,
					SubAgents: []AgentConfig{
						{
							AgentID:        "SalesAnalyzerAgent",
							Kind:           AgentKindSub,
							Keywords:       []string{"sales"},
							PromptTemplate: "Analyze sales data: {{input}}",
							Model:          "test-model",
							MaxTokens:      256,
							RetryPolicy:    RetryPolicy{MaxAttempts: 2, DelaySeconds: 1},
							Enabled:        true,
						},
						{
							AgentID:        "ChurnAnalyzerAgent",
							Kind:           AgentKindSub,
							Keywords:       []string{"churn", "retention"},
							PromptTemplate: "Analyze churn: {{question}}",
							Model:          "test-model",
							MaxTokens:      256,
							RetryPolicy:    RetryPolicy{MaxAttempts: 1},
							Enabled:        true,
						},
					},
				},
				{
					AgentID:        "MarketResearchAgent",
					Kind:           AgentKindParent,
					Description:    "Competitor and market landscape research",
					Keywords:       []string{"market", "competitor"},
					PromptTemplate: "Research the market: {{input}}",
					Model:          "test-model",
					MaxTokens:      512,
					RetryPolicy:    RetryPolicy{MaxAttempts: 1},
					Enabled:        true,
					SubAgents: []AgentConfig{
						{
							AgentID:        "CompetitorScanAgent",
							Kind:           AgentKindSub,
							Keywords:       []string{"competitor"},
							PromptTemplate: "Scan competitors: {{input}}",
							Model:          "test-model",
							MaxTokens:      256,
							RetryPolicy:    RetryPolicy{MaxAttempts: 1},
							Enabled:        true,
						},
					},
				},
			},
			Fallback: FallbackConfig{Model: "test-model", MaxTokens: 256},
		},
	}
	require.NoError(t, ValidateAgentConfig(tree))

	registry, err := NewAgentRegistry(tree)
	require.NoError(t, err)
	return registry
}

// testEnv bundles a fully wired orchestrator over in-memory fakes.
type testEnv struct {
	registry *AgentRegistry
	store    *docstore.MemoryStore
	cache    *ContentCache
	tracker  *PerformanceTracker
	memory   *MemoryStore
	emitter  *EventEmitter
	pool     *WorkerPool
	provider *stubLLM
	executor *StageExecutor
	orch     *Orchestrator
}

// newTestEnv wires the orchestrator with a scripted LLM, in-memory
// docstore, nop event bus, and no semantic index (keyword matching).
func newTestEnv(t *testing.T, provider *stubLLM) *testEnv {
	t.Helper()

	registry := testAgentTree(t)
	store := docstore.NewMemoryStore()
	cache := NewContentCache(store, nil)
	tracker := NewPerformanceTracker(filepath.Join(t.TempDir(), "perf.json"))
	memory := NewMemoryStore(store)
	pool := NewWorkerPool(2)
	t.Cleanup(pool.Close)
	emitter := NewEventEmitter(eventbus.NopBus{}, pool)
	guard := NewSafetyGuard(nil, "")

	matcher := NewAgentMatcher(registry, tracker, nil)
	executor := NewStageExecutor(cache, guard, provider, tracker, memory, emitter, nil, nil)
	executor.sleep = func(time.Duration) {}
	general := NewGeneralAgent(provider, guard, memory, registry.Fallback())
	orch := NewOrchestrator(registry, matcher, executor, general, cache, memory, emitter, nil)

	return &testEnv{
		registry: registry,
		store:    store,
		cache:    cache,
		tracker:  tracker,
		memory:   memory,
		emitter:  emitter,
		pool:     pool,
		provider: provider,
		executor: executor,
		orch:     orch,
	}
}
