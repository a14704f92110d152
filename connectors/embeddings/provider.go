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

import "context"

// Dimensions is the vector size every provider must produce. It matches the
// all-MiniLM-L6-v2 model family used by the embedding service.
const Dimensions = 384

// Provider converts text into fixed-size vectors for similarity search.
//
// Callers must treat a provider as optional: when Ready reports false the
// caller falls back to keyword matching instead of blocking on the model.
type Provider interface {
	// Embed returns the vector for a single text.
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedMany returns one vector per input text, in order.
	EmbedMany(ctx context.Context, texts []string) ([][]float32, error)

	// Ready reports whether the provider can serve requests right now.
	Ready() bool

	// AwaitReady blocks until the provider is ready or the context expires.
	AwaitReady(ctx context.Context) error
}
