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

// Package docstore defines the document-store contract used by the
// orchestration core for the response cache, memory records, and chain-step
// audit trail, together with a MongoDB-backed implementation and an in-memory
// implementation for tests and local runs.
//
// All collections are tenant-partitioned by a tenant_id field inside each
// document; the store itself enforces no cross-tenant isolation, callers must
// always filter by tenant_id.
package docstore
