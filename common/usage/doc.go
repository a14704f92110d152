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

// Package usage persists per-tenant usage events to PostgreSQL: API
// calls against the orchestration surface and LLM requests with token
// counts and estimated cost.
//
// Recording is best-effort everywhere. A recorder constructed without
// a database is a no-op, and persistence failures are logged without
// surfacing to the request path. Billing must never break a job.
package usage
