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
	"log"
	"sync"
)

// DefaultWorkerCount sizes the background pool used for cache writes,
// stat persistence, and non-critical events.
const DefaultWorkerCount = 3

// workerQueueDepth bounds pending background tasks. When the queue is
// full new tasks are dropped, never blocking the request path.
const workerQueueDepth = 64

// WorkerPool runs best-effort background tasks on a small fixed set of
// goroutines so callers are not blocked on I/O that does not affect
// the response.
type WorkerPool struct {
	tasks   chan func()
	wg      sync.WaitGroup
	mu      sync.Mutex
	closed  bool
	dropped int64
}

// NewWorkerPool starts a pool with the given number of workers.
func NewWorkerPool(workers int) *WorkerPool {
	if workers <= 0 {
		workers = DefaultWorkerCount
	}

	p := &WorkerPool{tasks: make(chan func(), workerQueueDepth)}
	for i := 0; i < workers; i++ {
		p.wg.Add(1)
		go p.worker()
	}
	return p
}

func (p *WorkerPool) worker() {
	defer p.wg.Done()
	for task := range p.tasks {
		task()
	}
}

// Submit enqueues a task. Returns false when the queue is full or the
// pool is closed; the task is dropped in either case.
func (p *WorkerPool) Submit(task func()) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return false
	}
	select {
	case p.tasks <- task:
		return true
	default:
		p.dropped++
		if p.dropped%100 == 1 {
			log.Printf("[WorkerPool] Queue full, dropped %d background tasks so far", p.dropped)
		}
		return false
	}
}

// Close stops accepting tasks and waits for in-flight work to finish.
func (p *WorkerPool) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	close(p.tasks)
	p.mu.Unlock()
	p.wg.Wait()
}
