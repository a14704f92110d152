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

// Command orchestrator runs the EA-AURA orchestration service: a
// multi-tenant HTTP API that selects an agent pair for each query,
// executes the sub-agent/parent-agent pipeline against the configured
// LLM provider, and serves the resulting audit records.
//
// Usage:
//
//	./orchestrator
//
// Environment variables:
//
//	PORT                   HTTP port (default 8080)
//	AGENT_CONFIG_PATH      agent tree YAML (default config/agents.yaml)
//	PERFORMANCE_STATE_PATH performance snapshot file
//	MONGO_URI              MongoDB connection string (in-memory store when unset)
//	MONGO_DATABASE         MongoDB database name (default ea_aura)
//	REDIS_ADDR             Redis address for lifecycle events (no-op when unset)
//	DATABASE_URL           PostgreSQL DSN for usage metering (disabled when unset)
//	EMBEDDINGS_ENDPOINT    embedding service URL (keyword matching when unset)
//	LLM_PROVIDER           "groq" (default) or "bedrock"
//	BEDROCK_REGION         AWS region for Bedrock (default us-east-1)
//	SECRETS_BACKEND        "env" (default) or "aws"
//	EA_AURA_GROQ_API_KEY   Groq API key when SECRETS_BACKEND=env
package main
