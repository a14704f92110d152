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
	"log"
	"time"

	"ea-aura/platform/connectors/eventbus"
)

// LifecycleTopic is the event-bus topic carrying agent lifecycle
// events.
const LifecycleTopic = "agent-lifecycle"

// Lifecycle event types.
const (
	EventAgentStarted   = "AGENT_STARTED"
	EventAgentCompleted = "AGENT_COMPLETED"
	EventAgentFailed    = "AGENT_FAILED"
	EventAgentRetrying  = "AGENT_RETRYING"
	EventJobCompleted   = "JOB_COMPLETED"
	EventJobFailed      = "JOB_FAILED"
)

// criticalEventTimeout bounds synchronous publication of failure
// events.
const criticalEventTimeout = 3 * time.Second

// EventEmitter publishes lifecycle events best-effort. Non-critical
// events go through the background pool; failure events are sent
// synchronously with a short timeout so they are not silently dropped
// with the rest of the queue. Publication never fails the caller.
type EventEmitter struct {
	bus  eventbus.Bus
	pool *WorkerPool
	now  func() time.Time
}

// NewEventEmitter creates an emitter over the given bus and pool.
func NewEventEmitter(bus eventbus.Bus, pool *WorkerPool) *EventEmitter {
	return &EventEmitter{bus: bus, pool: pool, now: time.Now}
}

// Emit publishes a lifecycle event. Failure events are synchronous;
// everything else is queued to the background pool.
func (e *EventEmitter) Emit(eventType, jobID, tenantID, agentName string, details map[string]interface{}) {
	event := map[string]interface{}{
		"event_type": eventType,
		"job_id":     jobID,
		"tenant_id":  tenantID,
		"agent_name": agentName,
		"timestamp":  e.now().UTC().Format(time.RFC3339Nano),
	}
	for k, v := range details {
		event[k] = v
	}

	if eventType == EventAgentFailed || eventType == EventJobFailed {
		ctx, cancel := context.WithTimeout(context.Background(), criticalEventTimeout)
		defer cancel()
		if err := e.bus.Publish(ctx, LifecycleTopic, event); err != nil {
			log.Printf("[EventEmitter] Failed to publish critical event %s for job %s: %v",
				eventType, jobID, err)
		}
		return
	}

	queued := e.pool.Submit(func() {
		if err := e.bus.Publish(context.Background(), LifecycleTopic, event); err != nil {
			log.Printf("[EventEmitter] Failed to publish event %s for job %s: %v",
				eventType, jobID, err)
		}
	})
	if !queued {
		log.Printf("[EventEmitter] Dropped event %s for job %s", eventType, jobID)
	}
}
