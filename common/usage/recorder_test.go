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
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ea-aura/platform/orchestrator/llm"
)

func newMockRecorder(t *testing.T) (*Recorder, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return NewRecorder(db), mock
}

func TestRecordAPICall(t *testing.T) {
	recorder, mock := newMockRecorder(t)

	mock.ExpectExec("INSERT INTO usage_events").
		WithArgs("tenant-a", "orch-1", "POST", "/api/v1/run", 200, int64(42)).
		WillReturnResult(sqlmock.NewResult(1, 1))

	err := recorder.RecordAPICall(APICallEvent{
		TenantID:       "tenant-a",
		InstanceID:     "orch-1",
		HTTPMethod:     "POST",
		HTTPPath:       "/api/v1/run",
		HTTPStatusCode: 200,
		LatencyMs:      42,
	})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRecordLLMRequestIncludesCost(t *testing.T) {
	recorder, mock := newMockRecorder(t)

	wantCost := EstimateCost("groq", "llama-3.3-70b-versatile", 1000, 500)
	require.Greater(t, wantCost, 0)

	mock.ExpectExec("INSERT INTO usage_events").
		WithArgs("tenant-a", "orch-1", "groq", "llama-3.3-70b-versatile",
			1000, 500, 1500, wantCost, int64(120), false).
		WillReturnResult(sqlmock.NewResult(1, 1))

	err := recorder.RecordLLMRequest(LLMRequestEvent{
		TenantID:         "tenant-a",
		InstanceID:       "orch-1",
		Provider:         "groq",
		Model:            "llama-3.3-70b-versatile",
		PromptTokens:     1000,
		CompletionTokens: 500,
		TotalTokens:      1500,
		LatencyMs:        120,
	})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRecordReturnsDBError(t *testing.T) {
	recorder, mock := newMockRecorder(t)

	mock.ExpectExec("INSERT INTO usage_events").
		WillReturnError(fmt.Errorf("connection refused"))

	err := recorder.RecordAPICall(APICallEvent{TenantID: "tenant-a"})
	assert.Error(t, err)
}

func TestDisabledRecorderIsNoOp(t *testing.T) {
	var nilRecorder *Recorder
	assert.False(t, nilRecorder.Enabled())
	assert.NoError(t, nilRecorder.RecordAPICall(APICallEvent{}))

	noDB := NewRecorder(nil)
	assert.False(t, noDB.Enabled())
	assert.NoError(t, noDB.RecordLLMRequest(LLMRequestEvent{}))
}

type scriptedProvider struct {
	resp *llm.CompletionResponse
	err  error
}

func (p *scriptedProvider) Name() string { return "groq" }

func (p *scriptedProvider) Complete(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	return p.resp, p.err
}

func TestMeteredProviderRecordsSuccess(t *testing.T) {
	recorder, mock := newMockRecorder(t)
	inner := &scriptedProvider{resp: &llm.CompletionResponse{
		Content:          "ok",
		PromptTokens:     100,
		CompletionTokens: 50,
		TotalTokens:      150,
	}}

	mock.ExpectExec("INSERT INTO usage_events").
		WithArgs("tenant-a", "orch-1", "groq", "llama-3.1-8b-instant",
			100, 50, 150, sqlmock.AnyArg(), sqlmock.AnyArg(), false).
		WillReturnResult(sqlmock.NewResult(1, 1))

	metered := Metered(inner, recorder, "orch-1")
	ctx := WithTenant(context.Background(), "tenant-a")

	resp, err := metered.Complete(ctx, llm.CompletionRequest{Model: "llama-3.1-8b-instant"})
	require.NoError(t, err)
	assert.Equal(t, "ok", resp.Content)
	assert.Equal(t, "groq", metered.Name())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestMeteredProviderRecordsFailure(t *testing.T) {
	recorder, mock := newMockRecorder(t)
	inner := &scriptedProvider{err: fmt.Errorf("upstream 500")}

	mock.ExpectExec("INSERT INTO usage_events").
		WithArgs("", "orch-1", "groq", "llama-3.1-8b-instant",
			0, 0, 0, 0, sqlmock.AnyArg(), true).
		WillReturnResult(sqlmock.NewResult(1, 1))

	metered := Metered(inner, recorder, "orch-1")
	_, err := metered.Complete(context.Background(), llm.CompletionRequest{Model: "llama-3.1-8b-instant"})
	assert.Error(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestMiddlewareRecordsRequest(t *testing.T) {
	recorder, mock := newMockRecorder(t)

	mock.ExpectExec("INSERT INTO usage_events").
		WithArgs("tenant-a", "orch-1", "GET", "/health", 204, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	handler := Middleware(recorder, "orch-1")(http.HandlerFunc(
		func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNoContent)
		}))

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("X-Tenant-ID", "tenant-a")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestTenantContext(t *testing.T) {
	ctx := WithTenant(context.Background(), "tenant-a")
	assert.Equal(t, "tenant-a", TenantFromContext(ctx))
	assert.Empty(t, TenantFromContext(context.Background()))
}
