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

package eventbus

import "context"

// Bus publishes lifecycle events to a message stream. Delivery is
// at-most-once from the caller's perspective: implementations bound the
// publish with a timeout and report failure through the error return, and
// callers decide whether a failure matters.
type Bus interface {
	// Publish sends a JSON-serializable event to the named topic.
	Publish(ctx context.Context, topic string, event map[string]interface{}) error

	// Close releases the underlying connection.
	Close() error
}

// NopBus discards every event. Used when no message broker is configured.
type NopBus struct{}

// Publish discards the event.
func (NopBus) Publish(ctx context.Context, topic string, event map[string]interface{}) error {
	return nil
}

// Close is a no-op.
func (NopBus) Close() error { return nil }
