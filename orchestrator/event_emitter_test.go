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

package orchestrator

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingBus struct {
	mu     sync.Mutex
	events []map[string]interface{}
	fail   bool
}

func (b *recordingBus) Publish(ctx context.Context, topic string, event map[string]interface{}) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.fail {
		return fmt.Errorf("bus unavailable")
	}
	b.events = append(b.events, event)
	return nil
}

func (b *recordingBus) Close() error { return nil }

func (b *recordingBus) published() []map[string]interface{} {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]map[string]interface{}, len(b.events))
	copy(out, b.events)
	return out
}

func waitForEvents(t *testing.T, bus *recordingBus, n int) []map[string]interface{} {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if events := bus.published(); len(events) >= n {
			return events
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %d events, got %d", n, len(bus.published()))
	return nil
}

func TestEmitQueuedEvent(t *testing.T) {
	bus := &recordingBus{}
	pool := NewWorkerPool(1)
	defer pool.Close()
	emitter := NewEventEmitter(bus, pool)

	emitter.Emit(EventAgentStarted, "job-1", "tenant-a", "SalesAnalyzerAgent",
		map[string]interface{}{"step": 0})

	events := waitForEvents(t, bus, 1)
	assert.Equal(t, EventAgentStarted, events[0]["event_type"])
	assert.Equal(t, "job-1", events[0]["job_id"])
	assert.Equal(t, "tenant-a", events[0]["tenant_id"])
	assert.Equal(t, "SalesAnalyzerAgent", events[0]["agent_name"])
	assert.Equal(t, 0, events[0]["step"])
	assert.NotEmpty(t, events[0]["timestamp"])
}

func TestEmitFailureEventSynchronous(t *testing.T) {
	bus := &recordingBus{}
	pool := NewWorkerPool(1)
	defer pool.Close()
	emitter := NewEventEmitter(bus, pool)

	// Failure events are published before Emit returns, no waiting.
	emitter.Emit(EventJobFailed, "job-2", "tenant-a", "BusinessVitalityAgent",
		map[string]interface{}{"code": CodeRetriesExhausted})

	events := bus.published()
	require.Len(t, events, 1)
	assert.Equal(t, EventJobFailed, events[0]["event_type"])
	assert.Equal(t, CodeRetriesExhausted, events[0]["code"])
}

func TestEmitSwallowsBusErrors(t *testing.T) {
	bus := &recordingBus{fail: true}
	pool := NewWorkerPool(1)
	defer pool.Close()
	emitter := NewEventEmitter(bus, pool)

	// Neither path panics or surfaces the error.
	emitter.Emit(EventAgentCompleted, "job-3", "tenant-a", "SalesAnalyzerAgent", nil)
	emitter.Emit(EventJobFailed, "job-3", "tenant-a", "SalesAnalyzerAgent", nil)
}

func TestWorkerPoolSubmitAndClose(t *testing.T) {
	pool := NewWorkerPool(2)

	var mu sync.Mutex
	ran := 0
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		ok := pool.Submit(func() {
			defer wg.Done()
			mu.Lock()
			ran++
			mu.Unlock()
		})
		require.True(t, ok)
	}
	wg.Wait()
	pool.Close()

	mu.Lock()
	assert.Equal(t, 10, ran)
	mu.Unlock()

	// Submissions after close are rejected, not executed.
	assert.False(t, pool.Submit(func() { t.Error("task ran after close") }))
}

func TestWorkerPoolDropsWhenFull(t *testing.T) {
	pool := NewWorkerPool(1)
	defer pool.Close()

	block := make(chan struct{})
	require.True(t, pool.Submit(func() { <-block }))

	// Fill the queue past capacity; overflow submissions return false.
	dropped := false
	for i := 0; i < workerQueueDepth+10; i++ {
		if !pool.Submit(func() {}) {
			dropped = true
		}
	}
	close(block)
	assert.True(t, dropped)
}
