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
	"errors"
	"math"
)

// Document is a schemaless record stored in a collection.
type Document map[string]interface{}

// Filter selects documents by exact field equality. All entries must match.
type Filter map[string]interface{}

// VectorHit is a document returned from a similarity search together with its
// score. Scores follow the cosine-plus-one convention (range 0.0 to 2.0) so a
// perfect match scores 2.0 and orthogonal vectors score 1.0.
type VectorHit struct {
	ID    string
	Doc   Document
	Score float64
}

// ErrNotFound is returned by Get when no document has the requested id.
var ErrNotFound = errors.New("docstore: document not found")

// Store is the document-store contract the orchestration core depends on.
// Collections are created implicitly on first write. Writes are at-least-once
// and become visible on a near-real-time basis; callers must not assume
// read-your-writes consistency.
type Store interface {
	// Index stores a new document and returns its generated id.
	Index(ctx context.Context, collection string, doc Document) (string, error)

	// Get returns the document with the given id, or ErrNotFound.
	Get(ctx context.Context, collection, id string) (Document, error)

	// Search returns up to limit documents matching every filter field.
	Search(ctx context.Context, collection string, filter Filter, limit int) ([]Document, error)

	// SearchVector ranks documents matching the filter by cosine similarity of
	// the named vector field against the query vector, highest score first.
	SearchVector(ctx context.Context, collection string, filter Filter, field string, vector []float32, limit int) ([]VectorHit, error)

	// DeleteByFilter removes all documents matching the filter and returns the
	// number removed.
	DeleteByFilter(ctx context.Context, collection string, filter Filter) (int64, error)

	// Close releases the underlying connection.
	Close(ctx context.Context) error
}

// CosineSimilarityPlusOne computes cosine similarity between two vectors and
// shifts it by +1.0. Returns 0 when either vector has zero magnitude or the
// dimensions differ.
func CosineSimilarityPlusOne(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}

	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}

	if normA == 0 || normB == 0 {
		return 0
	}

	return dot/(math.Sqrt(normA)*math.Sqrt(normB)) + 1.0
}

// VectorFromDocument extracts a float32 vector from a document field. Vectors
// round-trip through BSON/JSON as []interface{} of float64, so both in-memory
// and decoded representations are handled.
func VectorFromDocument(doc Document, field string) []float32 {
	switch v := doc[field].(type) {
	case []float32:
		return v
	case []float64:
		out := make([]float32, len(v))
		for i, f := range v {
			out[i] = float32(f)
		}
		return out
	case []interface{}:
		out := make([]float32, 0, len(v))
		for _, raw := range v {
			switch f := raw.(type) {
			case float64:
				out = append(out, float32(f))
			case float32:
				out = append(out, f)
			default:
				return nil
			}
		}
		return out
	default:
		return nil
	}
}
