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
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newEmbedServer(t *testing.T) *httptest.Server {
	t.Helper()

	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req embedRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))

		vectors := make([][]float32, len(req.Inputs))
		for i := range req.Inputs {
			v := make([]float32, Dimensions)
			v[i%Dimensions] = 1
			vectors[i] = v
		}
		require.NoError(t, json.NewEncoder(w).Encode(vectors))
	}))
}

func TestHTTPProviderEmbed(t *testing.T) {
	server := newEmbedServer(t)
	defer server.Close()

	p := NewHTTPProvider(server.URL)
	defer p.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, p.AwaitReady(ctx))
	assert.True(t, p.Ready())

	vector, err := p.Embed(ctx, "sales declined last week")
	require.NoError(t, err)
	assert.Len(t, vector, Dimensions)
}

func TestHTTPProviderEmbedMany(t *testing.T) {
	server := newEmbedServer(t)
	defer server.Close()

	p := NewHTTPProvider(server.URL)
	defer p.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, p.AwaitReady(ctx))

	vectors, err := p.EmbedMany(ctx, []string{"one", "two", "three"})
	require.NoError(t, err)
	require.Len(t, vectors, 3)

	empty, err := p.EmbedMany(ctx, nil)
	require.NoError(t, err)
	assert.Nil(t, empty)
}

func TestHTTPProviderRejectsWrongDimensions(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode([][]float32{{1, 2, 3}})
	}))
	defer server.Close()

	p := &HTTPProvider{
		endpoint: server.URL,
		client:   server.Client(),
	}

	_, err := p.Embed(context.Background(), "text")
	assert.ErrorContains(t, err, "dimensions")
}

func TestHTTPProviderNotReadyWhileServiceDown(t *testing.T) {
	p := NewHTTPProvider("http://127.0.0.1:1")
	defer p.Close()

	assert.False(t, p.Ready())

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	assert.Error(t, p.AwaitReady(ctx))
}
