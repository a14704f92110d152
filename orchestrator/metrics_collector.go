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
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// MetricsCollector exposes orchestration metrics via Prometheus. All
// record methods are nil-safe so subsystems can run unmetered in
// tests.
type MetricsCollector struct {
	jobsTotal    *prometheus.CounterVec
	jobDuration  prometheus.Histogram
	cacheLookups *prometheus.CounterVec
	llmCalls     *prometheus.CounterVec
	llmLatency   *prometheus.HistogramVec
	guardBlocks  *prometheus.CounterVec
	fallbackRuns prometheus.Counter
}

// NewMetricsCollector creates a collector and registers its metrics
// with the given registerer.
func NewMetricsCollector(reg prometheus.Registerer) *MetricsCollector {
	c := &MetricsCollector{
		jobsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "orchestrator_jobs_total",
			Help: "Orchestration jobs by outcome.",
		}, []string{"outcome"}),
		jobDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "orchestrator_job_duration_seconds",
			Help:    "End-to-end orchestration latency.",
			Buckets: prometheus.DefBuckets,
		}),
		cacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "orchestrator_cache_lookups_total",
			Help: "Content cache lookups by agent and result.",
		}, []string{"agent", "result"}),
		llmCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "orchestrator_llm_calls_total",
			Help: "LLM completions by model and outcome.",
		}, []string{"model", "outcome"}),
		llmLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "orchestrator_llm_latency_seconds",
			Help:    "LLM completion latency by model.",
			Buckets: []float64{0.25, 0.5, 1, 2, 5, 10, 20, 30},
		}, []string{"model"}),
		guardBlocks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "orchestrator_guard_blocks_total",
			Help: "Safety guard blocks by content type and reason.",
		}, []string{"content_type", "reason"}),
		fallbackRuns: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "orchestrator_fallback_runs_total",
			Help: "Jobs answered by the generic fallback agent.",
		}),
	}

	reg.MustRegister(c.jobsTotal, c.jobDuration, c.cacheLookups,
		c.llmCalls, c.llmLatency, c.guardBlocks, c.fallbackRuns)
	return c
}

// RecordJob counts one finished job and its duration.
func (c *MetricsCollector) RecordJob(outcome string, duration time.Duration) {
	if c == nil {
		return
	}
	c.jobsTotal.WithLabelValues(outcome).Inc()
	c.jobDuration.Observe(duration.Seconds())
}

// RecordCacheHit counts a cache hit for an agent.
func (c *MetricsCollector) RecordCacheHit(agent string) {
	if c == nil {
		return
	}
	c.cacheLookups.WithLabelValues(agent, "hit").Inc()
}

// RecordCacheMiss counts a cache miss for an agent.
func (c *MetricsCollector) RecordCacheMiss(agent string) {
	if c == nil {
		return
	}
	c.cacheLookups.WithLabelValues(agent, "miss").Inc()
}

// RecordLLMCall counts one completion and its latency.
func (c *MetricsCollector) RecordLLMCall(model string, latency time.Duration, success bool) {
	if c == nil {
		return
	}
	outcome := "success"
	if !success {
		outcome = "error"
	}
	c.llmCalls.WithLabelValues(model, outcome).Inc()
	c.llmLatency.WithLabelValues(model).Observe(latency.Seconds())
}

// RecordGuardBlock counts one safety guard block.
func (c *MetricsCollector) RecordGuardBlock(contentType, reason string) {
	if c == nil {
		return
	}
	c.guardBlocks.WithLabelValues(contentType, reason).Inc()
}

// RecordFallback counts one generic-agent fallback run.
func (c *MetricsCollector) RecordFallback() {
	if c == nil {
		return
	}
	c.fallbackRuns.Inc()
}
