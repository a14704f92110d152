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

package eventbus

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/go-redis/redis/v8"
)

const (
	// DefaultPublishTimeout bounds a single publish so lifecycle events can
	// never hang a request.
	DefaultPublishTimeout = 2 * time.Second

	// DefaultMaxStreamLen caps each stream with approximate trimming.
	DefaultMaxStreamLen = 10000
)

// RedisBus publishes events to Redis Streams, one stream per topic.
type RedisBus struct {
	client         *redis.Client
	publishTimeout time.Duration
	maxStreamLen   int64
	logger         *log.Logger
}

// RedisBusOptions holds connection settings for a RedisBus.
type RedisBusOptions struct {
	Addr           string
	Password       string
	DB             int
	PublishTimeout time.Duration
	MaxStreamLen   int64
}

// NewRedisBus connects to Redis and verifies the connection with a ping.
func NewRedisBus(ctx context.Context, opts RedisBusOptions) (*RedisBus, error) {
	if opts.Addr == "" {
		return nil, fmt.Errorf("redis address is required")
	}

	publishTimeout := opts.PublishTimeout
	if publishTimeout <= 0 {
		publishTimeout = DefaultPublishTimeout
	}
	maxStreamLen := opts.MaxStreamLen
	if maxStreamLen <= 0 {
		maxStreamLen = DefaultMaxStreamLen
	}

	client := redis.NewClient(&redis.Options{
		Addr:         opts.Addr,
		Password:     opts.Password,
		DB:           opts.DB,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to ping Redis: %w", err)
	}

	bus := &RedisBus{
		client:         client,
		publishTimeout: publishTimeout,
		maxStreamLen:   maxStreamLen,
		logger:         log.New(os.Stdout, "[EVENTBUS_REDIS] ", log.LstdFlags),
	}
	bus.logger.Printf("Connected to Redis event bus at %s", opts.Addr)
	return bus, nil
}

// Publish appends the event to the topic's stream. The whole operation is
// bounded by the configured publish timeout.
func (b *RedisBus) Publish(ctx context.Context, topic string, event map[string]interface{}) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event for topic %s: %w", topic, err)
	}

	pubCtx, cancel := context.WithTimeout(ctx, b.publishTimeout)
	defer cancel()

	err = b.client.XAdd(pubCtx, &redis.XAddArgs{
		Stream: topic,
		MaxLen: b.maxStreamLen,
		Approx: true,
		Values: map[string]interface{}{"payload": string(payload)},
	}).Err()
	if err != nil {
		return fmt.Errorf("failed to publish to %s: %w", topic, err)
	}
	return nil
}

// Close closes the Redis connection.
func (b *RedisBus) Close() error {
	return b.client.Close()
}
