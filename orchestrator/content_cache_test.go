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
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ea-aura/platform/connectors/docstore"
)

func TestQueryHash(t *testing.T) {
	h := QueryHash("Sales declined by 30%")

	assert.Len(t, h, 16)
	assert.Regexp(t, regexp.MustCompile(`^[0-9a-f]{16}$`), h)

	// Deterministic, raw-text sensitive.
	assert.Equal(t, h, QueryHash("Sales declined by 30%"))
	assert.NotEqual(t, h, QueryHash("sales declined by 30%"))
	assert.NotEqual(t, h, QueryHash("Sales declined by 30% "))
}

func TestStageCacheKey(t *testing.T) {
	key := StageCacheKey("what happened", "SalesAnalyzerAgent", "q3 report data")
	assert.Contains(t, key, "what happened|SalesAnalyzerAgent|")
	assert.Len(t, ContextFingerprint("q3 report data"), 8)

	// No retrieved context gets a stable marker, not an empty segment.
	assert.Equal(t, "what happened|SalesAnalyzerAgent|none",
		StageCacheKey("what happened", "SalesAnalyzerAgent", ""))
}

func TestCacheStoreAndHashLookup(t *testing.T) {
	cache := NewContentCache(docstore.NewMemoryStore(), nil)
	ctx := context.Background()

	cache.Store(ctx, "why did churn rise", "churn analysis", "tenant-a", "agent_x")

	resp, ok := cache.Lookup(ctx, "why did churn rise", "tenant-a", "agent_x")
	require.True(t, ok)
	assert.Equal(t, "churn analysis", resp)

	_, ok = cache.Lookup(ctx, "a different question", "tenant-a", "agent_x")
	assert.False(t, ok)
}

func TestCacheTenantIsolation(t *testing.T) {
	cache := NewContentCache(docstore.NewMemoryStore(), nil)
	ctx := context.Background()

	cache.Store(ctx, "shared question", "answer for A", "tenant-a", "")
	cache.Store(ctx, "shared question", "answer for B", "tenant-b", "")

	resp, ok := cache.Lookup(ctx, "shared question", "tenant-a", "")
	require.True(t, ok)
	assert.Equal(t, "answer for A", resp)

	resp, ok = cache.Lookup(ctx, "shared question", "tenant-b", "")
	require.True(t, ok)
	assert.Equal(t, "answer for B", resp)

	_, ok = cache.Lookup(ctx, "shared question", "tenant-c", "")
	assert.False(t, ok)
}

func TestCacheSubIndexScoping(t *testing.T) {
	cache := NewContentCache(docstore.NewMemoryStore(), nil)
	ctx := context.Background()

	cache.Store(ctx, "question", "agent x answer", "tenant-a", "agent_x")

	_, ok := cache.Lookup(ctx, "question", "tenant-a", "agent_y")
	assert.False(t, ok)
}

func TestCacheDuplicatesReturnMostRecent(t *testing.T) {
	cache := NewContentCache(docstore.NewMemoryStore(), nil)
	ctx := context.Background()

	base := time.Now().UTC()
	cache.now = func() time.Time { return base }
	cache.Store(ctx, "repeat question", "old answer", "tenant-a", "")

	cache.now = func() time.Time { return base.Add(time.Minute) }
	cache.Store(ctx, "repeat question", "new answer", "tenant-a", "")

	resp, ok := cache.Lookup(ctx, "repeat question", "tenant-a", "")
	require.True(t, ok)
	assert.Equal(t, "new answer", resp)
}

func TestCachePhraseTierToleratesHashChange(t *testing.T) {
	store := docstore.NewMemoryStore()
	cache := NewContentCache(store, nil)
	ctx := context.Background()

	// An entry written under an older hash scheme: the digest no
	// longer matches, but the stored query text does.
	_, err := store.Index(ctx, CacheCollection, docstore.Document{
		"tenant_id":     "tenant-a",
		"sub_index":     "",
		"query_text":    "legacy question",
		"query_hash":    "00000000deadbeef",
		"response_text": "legacy answer",
		"created_at":    time.Now().UTC().Format(time.RFC3339Nano),
	})
	require.NoError(t, err)

	resp, ok := cache.Lookup(ctx, "legacy question", "tenant-a", "")
	require.True(t, ok)
	assert.Equal(t, "legacy answer", resp)
}

func TestCacheSemanticTier(t *testing.T) {
	store := docstore.NewMemoryStore()
	embedder := &stubEmbedder{ready: true}
	cache := NewContentCache(store, embedder)
	ctx := context.Background()

	cache.Store(ctx, "why did churn go up", "semantic answer", "tenant-a", "")

	// Identical text embeds to an identical vector: cosine 1.0 clears
	// the 0.85 threshold even when hash and phrase tiers are bypassed
	// by mutating the stored text fields.
	docs, err := store.Search(ctx, CacheCollection, docstore.Filter{"tenant_id": "tenant-a"}, 10)
	require.NoError(t, err)
	require.Len(t, docs, 1)
	_, err = store.DeleteByFilter(ctx, CacheCollection, docstore.Filter{"tenant_id": "tenant-a"})
	require.NoError(t, err)
	doc := docs[0]
	doc["query_hash"] = "ffffffffffffffff"
	doc["query_text"] = "mutated"
	_, err = store.Index(ctx, CacheCollection, doc)
	require.NoError(t, err)

	resp, ok := cache.Lookup(ctx, "why did churn go up", "tenant-a", "")
	require.True(t, ok)
	assert.Equal(t, "semantic answer", resp)

	// A dissimilar query falls below the threshold.
	_, ok = cache.Lookup(ctx, "zzzz", "tenant-a", "")
	assert.False(t, ok)
}

func TestCacheErrorsDegradeToMiss(t *testing.T) {
	cache := NewContentCache(failingStore{}, nil)
	ctx := context.Background()

	// Store and lookup against a dead store must not panic or error.
	cache.Store(ctx, "question", "answer", "tenant-a", "")
	_, ok := cache.Lookup(ctx, "question", "tenant-a", "")
	assert.False(t, ok)
}

func TestCachePurge(t *testing.T) {
	cache := NewContentCache(docstore.NewMemoryStore(), nil)
	ctx := context.Background()

	cache.Store(ctx, "q1", "a1", "tenant-a", "agent_x")
	cache.Store(ctx, "q2", "a2", "tenant-a", "agent_y")
	cache.Store(ctx, "q3", "a3", "tenant-b", "agent_x")

	deleted, err := cache.Purge(ctx, "tenant-a", "")
	require.NoError(t, err)
	assert.Equal(t, int64(2), deleted)

	_, ok := cache.Lookup(ctx, "q1", "tenant-a", "agent_x")
	assert.False(t, ok)
	_, ok = cache.Lookup(ctx, "q3", "tenant-b", "agent_x")
	assert.True(t, ok)

	// Unscoped purge is rejected.
	_, err = cache.Purge(ctx, "", "")
	require.Error(t, err)
}
