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
	"crypto/sha256"
	"encoding/hex"
	"log"
	"sort"
	"time"

	"ea-aura/platform/connectors/docstore"
	"ea-aura/platform/connectors/embeddings"
)

// CacheCollection is the document-store collection holding cache
// entries.
const CacheCollection = "content_cache"

// DefaultSimilarityThreshold is the minimum cosine similarity for a
// semantic cache hit. The store scores vectors as cosine+1.0, so the
// effective cutoff is threshold+1.0.
const DefaultSimilarityThreshold = 0.85

// semanticCandidates is how many nearest entries tier three retrieves.
const semanticCandidates = 3

// QueryHash returns the cache digest of query text: the first 16 hex
// characters of its SHA-256. The raw text is hashed, no normalization.
func QueryHash(queryText string) string {
	sum := sha256.Sum256([]byte(queryText))
	return hex.EncodeToString(sum[:])[:16]
}

// ContextFingerprint returns the short digest of retrieved context used
// in stage cache keys.
func ContextFingerprint(enhancedData string) string {
	if enhancedData == "" {
		return "none"
	}
	sum := sha256.Sum256([]byte(enhancedData))
	return hex.EncodeToString(sum[:])[:8]
}

// StageCacheKey composes the cache key for one agent stage from the
// stage input, the agent identity, and the retrieved-context
// fingerprint.
func StageCacheKey(input, agentID, enhancedData string) string {
	return input + "|" + agentID + "|" + ContextFingerprint(enhancedData)
}

// ContentCache is a content-addressed, tenant- and sub-index-scoped
// cache over the document store. Lookup runs three tiers in order,
// short-circuiting on the first hit: exact digest, exact phrase, and
// embedding similarity. Every error degrades to a cache miss or a
// dropped write; caching never fails the surrounding request.
type ContentCache struct {
	store     docstore.Store
	embedder  embeddings.Provider
	threshold float64
	now       func() time.Time
}

// NewContentCache creates a cache with the default similarity
// threshold. embedder may be nil; tier three is skipped without it.
func NewContentCache(store docstore.Store, embedder embeddings.Provider) *ContentCache {
	return &ContentCache{
		store:     store,
		embedder:  embedder,
		threshold: DefaultSimilarityThreshold,
		now:       time.Now,
	}
}

// Lookup returns the cached response for queryText, scoped to tenantID
// and, when non-empty, subIndex. The second return is false on a miss.
func (c *ContentCache) Lookup(ctx context.Context, queryText, tenantID, subIndex string) (string, bool) {
	if tenantID == "" {
		return "", false
	}

	if resp, ok := c.lookupByField(ctx, "query_hash", QueryHash(queryText), tenantID, subIndex); ok {
		log.Printf("[ContentCache] Hash hit (tenant=%s, sub_index=%s)", tenantID, subIndex)
		return resp, true
	}

	if resp, ok := c.lookupByField(ctx, "query_text", queryText, tenantID, subIndex); ok {
		log.Printf("[ContentCache] Phrase hit (tenant=%s, sub_index=%s)", tenantID, subIndex)
		return resp, true
	}

	if resp, ok := c.lookupSemantic(ctx, queryText, tenantID, subIndex); ok {
		log.Printf("[ContentCache] Semantic hit (tenant=%s, sub_index=%s)", tenantID, subIndex)
		return resp, true
	}

	return "", false
}

// lookupByField runs one equality-filtered tier and returns the most
// recent matching entry.
func (c *ContentCache) lookupByField(ctx context.Context, field, value, tenantID, subIndex string) (string, bool) {
	filter := c.scopedFilter(tenantID, subIndex)
	filter[field] = value

	docs, err := c.store.Search(ctx, CacheCollection, filter, 10)
	if err != nil {
		log.Printf("[ContentCache] Lookup by %s failed, treating as miss: %v", field, err)
		return "", false
	}
	if len(docs) == 0 {
		return "", false
	}

	// Duplicates share a hash; return the newest entry.
	sort.SliceStable(docs, func(i, j int) bool {
		return docCreatedAt(docs[i]).After(docCreatedAt(docs[j]))
	})

	resp, ok := docs[0]["response_text"].(string)
	return resp, ok && resp != ""
}

// lookupSemantic embeds the query and accepts the nearest stored entry
// when its cosine+1.0 score clears threshold+1.0.
func (c *ContentCache) lookupSemantic(ctx context.Context, queryText, tenantID, subIndex string) (string, bool) {
	if c.embedder == nil || !c.embedder.Ready() {
		return "", false
	}

	vector, err := c.embedder.Embed(ctx, queryText)
	if err != nil {
		log.Printf("[ContentCache] Embedding failed, treating as miss: %v", err)
		return "", false
	}

	hits, err := c.store.SearchVector(ctx, CacheCollection, c.scopedFilter(tenantID, subIndex),
		"embedding", vector, semanticCandidates)
	if err != nil {
		log.Printf("[ContentCache] Vector search failed, treating as miss: %v", err)
		return "", false
	}
	if len(hits) == 0 {
		return "", false
	}

	top := hits[0]
	if top.Score < c.threshold+1.0 {
		return "", false
	}

	resp, ok := top.Doc["response_text"].(string)
	return resp, ok && resp != ""
}

// Store writes a new cache entry. Entries are never upserted: a
// duplicate hash produces a second document, and lookup prefers the
// newest. Errors are logged and dropped.
func (c *ContentCache) Store(ctx context.Context, queryText, responseText, tenantID, subIndex string) {
	if tenantID == "" || queryText == "" || responseText == "" {
		return
	}

	doc := docstore.Document{
		"tenant_id":     tenantID,
		"sub_index":     subIndex,
		"query_text":    queryText,
		"query_hash":    QueryHash(queryText),
		"response_text": responseText,
		"created_at":    c.now().UTC().Format(time.RFC3339Nano),
	}

	if c.embedder != nil && c.embedder.Ready() {
		if vector, err := c.embedder.Embed(ctx, queryText); err == nil {
			doc["embedding"] = vector
		} else {
			log.Printf("[ContentCache] Embedding failed, storing without vector: %v", err)
		}
	}

	if _, err := c.store.Index(ctx, CacheCollection, doc); err != nil {
		log.Printf("[ContentCache] Store failed, dropping entry: %v", err)
	}
}

// Purge removes cached entries for a tenant, optionally restricted to
// one sub-index, returning the number deleted.
func (c *ContentCache) Purge(ctx context.Context, tenantID, subIndex string) (int64, error) {
	filter := c.scopedFilter(tenantID, subIndex)
	if len(filter) == 0 {
		return 0, &ValidationError{Field: "tenant_id", Detail: "purge requires a tenant or sub-index scope"}
	}
	return c.store.DeleteByFilter(ctx, CacheCollection, filter)
}

func (c *ContentCache) scopedFilter(tenantID, subIndex string) docstore.Filter {
	filter := docstore.Filter{}
	if tenantID != "" {
		filter["tenant_id"] = tenantID
	}
	if subIndex != "" {
		filter["sub_index"] = subIndex
	}
	return filter
}

func docCreatedAt(doc docstore.Document) time.Time {
	raw, ok := doc["created_at"].(string)
	if !ok {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return time.Time{}
	}
	return t
}
