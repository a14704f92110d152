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

package docstore

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"
)

// MemoryStore is a thread-safe in-process Store used for tests and
// zero-configuration local runs. Documents are copied on write and read so
// callers cannot mutate stored state through shared maps.
type MemoryStore struct {
	mu          sync.RWMutex
	collections map[string][]memoryDoc
}

type memoryDoc struct {
	id  string
	doc Document
}

// NewMemoryStore creates an empty in-memory document store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		collections: make(map[string][]memoryDoc),
	}
}

// Index stores a copy of the document and returns its generated id.
func (s *MemoryStore) Index(ctx context.Context, collection string, doc Document) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := uuid.New().String()
	s.collections[collection] = append(s.collections[collection], memoryDoc{
		id:  id,
		doc: copyDocument(doc),
	})
	return id, nil
}

// Get returns the document with the given id.
func (s *MemoryStore) Get(ctx context.Context, collection, id string) (Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, entry := range s.collections[collection] {
		if entry.id == id {
			return copyDocument(entry.doc), nil
		}
	}
	return nil, ErrNotFound
}

// Search returns up to limit documents matching every filter field, in
// insertion order.
func (s *MemoryStore) Search(ctx context.Context, collection string, filter Filter, limit int) ([]Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var results []Document
	for _, entry := range s.collections[collection] {
		if !matchesFilter(entry.doc, filter) {
			continue
		}
		results = append(results, copyDocument(entry.doc))
		if limit > 0 && len(results) >= limit {
			break
		}
	}
	return results, nil
}

// SearchVector ranks filtered documents by cosine similarity of the named
// vector field, highest score first.
func (s *MemoryStore) SearchVector(ctx context.Context, collection string, filter Filter, field string, vector []float32, limit int) ([]VectorHit, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var hits []VectorHit
	for _, entry := range s.collections[collection] {
		if !matchesFilter(entry.doc, filter) {
			continue
		}
		candidate := VectorFromDocument(entry.doc, field)
		if candidate == nil {
			continue
		}
		hits = append(hits, VectorHit{
			ID:    entry.id,
			Doc:   copyDocument(entry.doc),
			Score: CosineSimilarityPlusOne(vector, candidate),
		})
	}

	sort.SliceStable(hits, func(i, j int) bool {
		return hits[i].Score > hits[j].Score
	})

	if limit > 0 && len(hits) > limit {
		hits = hits[:limit]
	}
	return hits, nil
}

// DeleteByFilter removes all matching documents and returns the count removed.
func (s *MemoryStore) DeleteByFilter(ctx context.Context, collection string, filter Filter) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var kept []memoryDoc
	var deleted int64
	for _, entry := range s.collections[collection] {
		if matchesFilter(entry.doc, filter) {
			deleted++
			continue
		}
		kept = append(kept, entry)
	}
	s.collections[collection] = kept
	return deleted, nil
}

// Close is a no-op for the in-memory store.
func (s *MemoryStore) Close(ctx context.Context) error {
	return nil
}

func matchesFilter(doc Document, filter Filter) bool {
	for field, want := range filter {
		if doc[field] != want {
			return false
		}
	}
	return true
}

func copyDocument(doc Document) Document {
	out := make(Document, len(doc))
	for k, v := range doc {
		out[k] = v
	}
	return out
}
