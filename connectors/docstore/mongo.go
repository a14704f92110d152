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
	"fmt"
	"log"
	"os"
	"sort"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

const (
	// DefaultTimeout is the default per-operation timeout
	DefaultTimeout = 30 * time.Second
	// DefaultConnectTimeout is the default connection timeout
	DefaultConnectTimeout = 10 * time.Second
	// DefaultMaxPoolSize is the default maximum connection pool size
	DefaultMaxPoolSize = 100
	// DefaultMinPoolSize is the default minimum connection pool size
	DefaultMinPoolSize = 10

	// vectorCandidateLimit bounds how many filtered documents are pulled for
	// client-side cosine scoring on a single similarity search.
	vectorCandidateLimit = 500
)

// MongoStore implements Store backed by a MongoDB database. Similarity search
// scores candidates client-side with the cosine-plus-one convention, so it
// works against community MongoDB without an Atlas vector index.
type MongoStore struct {
	client   *mongo.Client
	database *mongo.Database
	logger   *log.Logger
}

// MongoOptions holds connection settings for a MongoStore.
type MongoOptions struct {
	URI         string
	Database    string
	MaxPoolSize uint64
	MinPoolSize uint64
}

// NewMongoStore connects to MongoDB with connection pooling and verifies the
// connection with a primary ping.
func NewMongoStore(ctx context.Context, opts MongoOptions) (*MongoStore, error) {
	if opts.URI == "" {
		return nil, fmt.Errorf("mongo URI is required")
	}
	if opts.Database == "" {
		return nil, fmt.Errorf("mongo database name is required")
	}

	maxPool := opts.MaxPoolSize
	if maxPool == 0 {
		maxPool = DefaultMaxPoolSize
	}
	minPool := opts.MinPoolSize
	if minPool == 0 {
		minPool = DefaultMinPoolSize
	}

	clientOpts := options.Client().
		ApplyURI(opts.URI).
		SetMaxPoolSize(maxPool).
		SetMinPoolSize(minPool).
		SetConnectTimeout(DefaultConnectTimeout)

	connectCtx, cancel := context.WithTimeout(ctx, DefaultConnectTimeout)
	defer cancel()

	client, err := mongo.Connect(connectCtx, clientOpts)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}

	if err := client.Ping(connectCtx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}

	store := &MongoStore{
		client:   client,
		database: client.Database(opts.Database),
		logger:   log.New(os.Stdout, "[DOCSTORE_MONGO] ", log.LstdFlags),
	}

	store.logger.Printf("Connected to MongoDB database %s (pool %d-%d)", opts.Database, minPool, maxPool)
	return store, nil
}

// Index stores a new document with a generated id.
func (s *MongoStore) Index(ctx context.Context, collection string, doc Document) (string, error) {
	opCtx, cancel := context.WithTimeout(ctx, DefaultTimeout)
	defer cancel()

	id := uuid.New().String()
	payload := bson.M{"_id": id}
	for k, v := range doc {
		payload[k] = v
	}

	if _, err := s.database.Collection(collection).InsertOne(opCtx, payload); err != nil {
		return "", fmt.Errorf("failed to index document in %s: %w", collection, err)
	}
	return id, nil
}

// Get returns the document with the given id.
func (s *MongoStore) Get(ctx context.Context, collection, id string) (Document, error) {
	opCtx, cancel := context.WithTimeout(ctx, DefaultTimeout)
	defer cancel()

	var raw bson.M
	err := s.database.Collection(collection).FindOne(opCtx, bson.M{"_id": id}).Decode(&raw)
	if err == mongo.ErrNoDocuments {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get document %s from %s: %w", id, collection, err)
	}
	return documentFromBSON(raw), nil
}

// Search returns up to limit documents matching every filter field.
func (s *MongoStore) Search(ctx context.Context, collection string, filter Filter, limit int) ([]Document, error) {
	opCtx, cancel := context.WithTimeout(ctx, DefaultTimeout)
	defer cancel()

	findOpts := options.Find()
	if limit > 0 {
		findOpts.SetLimit(int64(limit))
	}

	cursor, err := s.database.Collection(collection).Find(opCtx, bsonFilter(filter), findOpts)
	if err != nil {
		return nil, fmt.Errorf("failed to search %s: %w", collection, err)
	}
	defer cursor.Close(opCtx)

	var results []Document
	for cursor.Next(opCtx) {
		var raw bson.M
		if err := cursor.Decode(&raw); err != nil {
			return nil, fmt.Errorf("failed to decode document from %s: %w", collection, err)
		}
		results = append(results, documentFromBSON(raw))
	}
	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("cursor error on %s: %w", collection, err)
	}
	return results, nil
}

// SearchVector pulls filtered candidates and ranks them by cosine similarity
// of the named vector field, highest score first.
func (s *MongoStore) SearchVector(ctx context.Context, collection string, filter Filter, field string, vector []float32, limit int) ([]VectorHit, error) {
	candidates, err := s.Search(ctx, collection, filter, vectorCandidateLimit)
	if err != nil {
		return nil, err
	}

	var hits []VectorHit
	for _, doc := range candidates {
		candidate := VectorFromDocument(doc, field)
		if candidate == nil {
			continue
		}
		id, _ := doc["_id"].(string)
		hits = append(hits, VectorHit{
			ID:    id,
			Doc:   doc,
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

// DeleteByFilter removes all matching documents.
func (s *MongoStore) DeleteByFilter(ctx context.Context, collection string, filter Filter) (int64, error) {
	opCtx, cancel := context.WithTimeout(ctx, DefaultTimeout)
	defer cancel()

	result, err := s.database.Collection(collection).DeleteMany(opCtx, bsonFilter(filter))
	if err != nil {
		return 0, fmt.Errorf("failed to delete from %s: %w", collection, err)
	}
	return result.DeletedCount, nil
}

// Close disconnects from MongoDB.
func (s *MongoStore) Close(ctx context.Context) error {
	if s.client == nil {
		return nil
	}
	if err := s.client.Disconnect(ctx); err != nil {
		return fmt.Errorf("failed to disconnect from MongoDB: %w", err)
	}
	s.logger.Printf("Disconnected from MongoDB")
	return nil
}

func bsonFilter(filter Filter) bson.M {
	out := bson.M{}
	for k, v := range filter {
		out[k] = v
	}
	return out
}

func documentFromBSON(raw bson.M) Document {
	doc := make(Document, len(raw))
	for k, v := range raw {
		switch typed := v.(type) {
		case bson.A:
			doc[k] = []interface{}(typed)
		case int32:
			doc[k] = int(typed)
		case int64:
			doc[k] = int(typed)
		default:
			doc[k] = v
		}
	}
	return doc
}
