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
	"encoding/json"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// AgentPerformanceStats holds per-agent rolling statistics. Mutated
// after every invocation; persisted periodically.
type AgentPerformanceStats struct {
	SuccessCount      int       `json:"success_count"`
	TotalAttempts     int       `json:"total_attempts"`
	TotalResponseTime float64   `json:"total_response_time"`
	TotalTokens       int       `json:"total_tokens"`
	CacheHits         int       `json:"cache_hits"`
	TotalRequests     int       `json:"total_requests"`
	LastSuccess       time.Time `json:"last_success"`
	LastRequest       time.Time `json:"last_request"`
}

// Scoring constants. Weights sum to 1.0.
const (
	perfWeightSuccess    = 0.4
	perfWeightTime       = 0.2
	perfWeightTokens     = 0.2
	perfWeightCache      = 0.1
	perfWeightRecency    = 0.1
	perfNeutralScore     = 0.7
	perfMinScore         = 0.1
	perfMaxScore         = 1.0
	perfLatencyCeiling   = 30.0 // seconds
	perfTokenCeiling     = 5000.0
	perfRecencyHorizon   = 30.0 // days
	loadIdleRecovery     = 30 * time.Minute
	persistEveryNUpdates = 10
)

// PerformanceTracker maintains per-agent statistics used to bias agent
// selection toward healthy, underloaded agents. State is persisted to a
// local JSON file and reloaded at startup.
type PerformanceTracker struct {
	mu          sync.RWMutex
	stats       map[string]*AgentPerformanceStats
	path        string
	updateCount int
	now         func() time.Time
}

// NewPerformanceTracker creates a tracker persisting to path. Existing
// state at path is loaded; a missing or unreadable file starts fresh.
func NewPerformanceTracker(path string) *PerformanceTracker {
	t := &PerformanceTracker{
		stats: make(map[string]*AgentPerformanceStats),
		path:  path,
		now:   time.Now,
	}
	t.load()
	return t
}

func (t *PerformanceTracker) load() {
	if t.path == "" {
		return
	}
	data, err := os.ReadFile(t.path)
	if err != nil {
		if !os.IsNotExist(err) {
			log.Printf("[PerformanceTracker] Failed to read %s: %v", t.path, err)
		}
		return
	}
	loaded := make(map[string]*AgentPerformanceStats)
	if err := json.Unmarshal(data, &loaded); err != nil {
		log.Printf("[PerformanceTracker] Corrupt stats file %s, starting fresh: %v", t.path, err)
		return
	}
	t.stats = loaded
	log.Printf("[PerformanceTracker] Loaded stats for %d agents from %s", len(loaded), t.path)
}

// persistLocked writes the stats map to disk. Caller holds t.mu.
func (t *PerformanceTracker) persistLocked() {
	if t.path == "" {
		return
	}
	data, err := json.MarshalIndent(t.stats, "", "  ")
	if err != nil {
		log.Printf("[PerformanceTracker] Failed to marshal stats: %v", err)
		return
	}
	tmp := t.path + ".tmp"
	if err := os.MkdirAll(filepath.Dir(t.path), 0o755); err != nil {
		log.Printf("[PerformanceTracker] Failed to create stats dir: %v", err)
		return
	}
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		log.Printf("[PerformanceTracker] Failed to write stats: %v", err)
		return
	}
	if err := os.Rename(tmp, t.path); err != nil {
		log.Printf("[PerformanceTracker] Failed to replace stats file: %v", err)
	}
}

// Record updates an agent's statistics after one invocation. Every
// tenth update flushes the full map to disk to bound I/O.
func (t *PerformanceTracker) Record(agentID string, success bool, latencySeconds float64, tokensUsed int, cacheHit bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	s, ok := t.stats[agentID]
	if !ok {
		s = &AgentPerformanceStats{}
		t.stats[agentID] = s
	}

	now := t.now().UTC()
	s.TotalAttempts++
	s.TotalRequests++
	s.TotalResponseTime += latencySeconds
	s.TotalTokens += tokensUsed
	s.LastRequest = now
	if success {
		s.SuccessCount++
		s.LastSuccess = now
	}
	if cacheHit {
		s.CacheHits++
	}

	t.updateCount++
	if t.updateCount%persistEveryNUpdates == 0 {
		t.persistLocked()
	}
}

// Score returns a composite health score in [0.1, 1.0]. Agents with no
// history score 0.7, neutral-optimistic so new agents are tried.
func (t *PerformanceTracker) Score(agentID string) float64 {
	t.mu.RLock()
	defer t.mu.RUnlock()

	s, ok := t.stats[agentID]
	if !ok || s.TotalAttempts == 0 {
		return perfNeutralScore
	}

	successRate := float64(s.SuccessCount) / float64(s.TotalAttempts)

	avgLatency := s.TotalResponseTime / float64(s.TotalAttempts)
	timeScore := 1.0 - avgLatency/perfLatencyCeiling
	if timeScore < 0 {
		timeScore = 0
	}

	avgTokens := float64(s.TotalTokens) / float64(s.TotalAttempts)
	tokenEfficiency := 1.0 - avgTokens/perfTokenCeiling
	if tokenEfficiency < 0 {
		tokenEfficiency = 0
	}

	cacheHitRate := 0.0
	if s.TotalRequests > 0 {
		cacheHitRate = float64(s.CacheHits) / float64(s.TotalRequests)
	}

	recency := 0.0
	if !s.LastSuccess.IsZero() {
		days := t.now().UTC().Sub(s.LastSuccess).Hours() / 24
		recency = 1.0 - days/perfRecencyHorizon
		if recency < 0 {
			recency = 0
		}
	}

	score := successRate*perfWeightSuccess +
		timeScore*perfWeightTime +
		tokenEfficiency*perfWeightTokens +
		cacheHitRate*perfWeightCache +
		recency*perfWeightRecency

	if score < perfMinScore {
		return perfMinScore
	}
	if score > perfMaxScore {
		return perfMaxScore
	}
	return score
}

// LoadWeight favors agents unused recently: 1.0 for an idle agent,
// decaying linearly toward 0.5 for one that served a request just now,
// recovering to full weight after 30 minutes of idleness.
func (t *PerformanceTracker) LoadWeight(agentID string) float64 {
	t.mu.RLock()
	defer t.mu.RUnlock()

	s, ok := t.stats[agentID]
	if !ok || s.LastRequest.IsZero() {
		return 1.0
	}

	idle := t.now().UTC().Sub(s.LastRequest)
	if idle >= loadIdleRecovery {
		return 1.0
	}
	if idle < 0 {
		idle = 0
	}
	return 0.5 + 0.5*float64(idle)/float64(loadIdleRecovery)
}

// Stats returns a copy of one agent's statistics, if present.
func (t *PerformanceTracker) Stats(agentID string) (AgentPerformanceStats, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	s, ok := t.stats[agentID]
	if !ok {
		return AgentPerformanceStats{}, false
	}
	return *s, true
}

// Flush persists current state immediately, used at shutdown.
func (t *PerformanceTracker) Flush() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.persistLocked()
}
