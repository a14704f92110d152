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

// Package llm provides completion providers for the orchestrator.
//
// Two backends are supported: Groq's OpenAI-compatible chat API and
// Anthropic-family models on AWS Bedrock. Both implement the Provider
// interface, so the orchestrator stays backend-agnostic. Permanent
// request failures (bad auth, malformed payloads) surface as
// *RequestError so callers can distinguish them from transient errors
// worth retrying.
package llm
