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

// Package orchestrator routes free-text user queries to configured
// agents and executes the two-stage sub-agent/parent-agent pipeline.
//
// A job flows through agent selection (keyword, fuzzy, or semantic
// matching blended with live performance and load signals), a
// content-addressed multi-tier cache, safety guard checks on prompts
// and responses, per-agent retry and token-budget enforcement, and an
// append-only audit trail of memory and chain-step records. Lifecycle
// events are published best-effort to the event bus.
//
// Everything is tenant-scoped: cache entries, memory records, and
// retrieval context never cross tenants.
package orchestrator
