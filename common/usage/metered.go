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

package usage

import (
	"context"
	"time"

	"ea-aura/platform/orchestrator/llm"
)

// MeteredProvider wraps an llm.Provider and records every completion
// call, successful or not, through the Recorder. The wrapped provider
// is otherwise transparent.
type MeteredProvider struct {
	inner      llm.Provider
	recorder   *Recorder
	instanceID string
}

// Metered wraps provider with usage recording. With a disabled
// recorder the wrapper still delegates, it just records nothing.
func Metered(provider llm.Provider, recorder *Recorder, instanceID string) *MeteredProvider {
	return &MeteredProvider{inner: provider, recorder: recorder, instanceID: instanceID}
}

// Name returns the wrapped provider's name.
func (m *MeteredProvider) Name() string {
	return m.inner.Name()
}

// Complete delegates to the wrapped provider and records the call.
func (m *MeteredProvider) Complete(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	start := time.Now()
	resp, err := m.inner.Complete(ctx, req)

	event := LLMRequestEvent{
		TenantID:   TenantFromContext(ctx),
		InstanceID: m.instanceID,
		Provider:   m.inner.Name(),
		Model:      req.Model,
		LatencyMs:  time.Since(start).Milliseconds(),
		Failed:     err != nil,
	}
	if resp != nil {
		event.PromptTokens = resp.PromptTokens
		event.CompletionTokens = resp.CompletionTokens
		event.TotalTokens = resp.TotalTokens
	}
	m.recorder.RecordLLMRequest(event)

	return resp, err
}

type tenantKey struct{}

// WithTenant tags ctx with the tenant a request is billed to.
func WithTenant(ctx context.Context, tenantID string) context.Context {
	return context.WithValue(ctx, tenantKey{}, tenantID)
}

// TenantFromContext extracts the billing tenant, empty when untagged.
func TenantFromContext(ctx context.Context) string {
	tenant, _ := ctx.Value(tenantKey{}).(string)
	return tenant
}
