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

package embeddings

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"sync/atomic"
	"time"
)

const (
	// DefaultRequestTimeout bounds a single encode call.
	DefaultRequestTimeout = 5 * time.Second

	// warmupInterval is how often the background warmup retries until the
	// embedding service answers.
	warmupInterval = 3 * time.Second
)

// HTTPProvider calls an external embedding service (a text-embeddings
// inference server exposing POST /embed). A background warmup goroutine probes
// the service until it answers; until then Ready reports false and callers
// degrade to keyword matching.
type HTTPProvider struct {
	endpoint string
	client   *http.Client
	logger   *log.Logger

	ready   atomic.Bool
	readyCh chan struct{}
	closeCh chan struct{}
}

type embedRequest struct {
	Inputs []string `json:"inputs"`
}

// NewHTTPProvider creates a provider for the given service endpoint and
// starts the background warmup probe.
func NewHTTPProvider(endpoint string) *HTTPProvider {
	p := &HTTPProvider{
		endpoint: endpoint,
		client:   &http.Client{Timeout: DefaultRequestTimeout},
		logger:   log.New(os.Stdout, "[EMBEDDINGS] ", log.LstdFlags),
		readyCh:  make(chan struct{}),
		closeCh:  make(chan struct{}),
	}
	go p.warmup()
	return p
}

// warmup probes the service with a tiny encode until it succeeds.
func (p *HTTPProvider) warmup() {
	ticker := time.NewTicker(warmupInterval)
	defer ticker.Stop()

	for {
		ctx, cancel := context.WithTimeout(context.Background(), DefaultRequestTimeout)
		_, err := p.embed(ctx, []string{"warmup"})
		cancel()

		if err == nil {
			p.ready.Store(true)
			close(p.readyCh)
			p.logger.Printf("Embedding service ready at %s", p.endpoint)
			return
		}

		select {
		case <-p.closeCh:
			return
		case <-ticker.C:
		}
	}
}

// Ready reports whether the embedding service has answered the warmup probe.
func (p *HTTPProvider) Ready() bool {
	return p.ready.Load()
}

// AwaitReady blocks until the service is ready or the context expires.
func (p *HTTPProvider) AwaitReady(ctx context.Context) error {
	select {
	case <-p.readyCh:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("embedding service not ready: %w", ctx.Err())
	}
}

// Close stops the warmup probe.
func (p *HTTPProvider) Close() {
	select {
	case <-p.closeCh:
	default:
		close(p.closeCh)
	}
}

// Embed returns the vector for a single text.
func (p *HTTPProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	vectors, err := p.embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

// EmbedMany returns one vector per input text, in order.
func (p *HTTPProvider) EmbedMany(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	return p.embed(ctx, texts)
}

func (p *HTTPProvider) embed(ctx context.Context, texts []string) ([][]float32, error) {
	body, err := json.Marshal(embedRequest{Inputs: texts})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal embed request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint+"/embed", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build embed request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("embed request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("embed request returned status %d: %s", resp.StatusCode, string(payload))
	}

	var vectors [][]float32
	if err := json.NewDecoder(resp.Body).Decode(&vectors); err != nil {
		return nil, fmt.Errorf("failed to decode embed response: %w", err)
	}

	if len(vectors) != len(texts) {
		return nil, fmt.Errorf("embed response has %d vectors for %d inputs", len(vectors), len(texts))
	}
	for i, v := range vectors {
		if len(v) != Dimensions {
			return nil, fmt.Errorf("embed response vector %d has %d dimensions, want %d", i, len(v), Dimensions)
		}
	}
	return vectors, nil
}
