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
	"regexp"
	"strings"
	"time"

	"ea-aura/platform/orchestrator/llm"
)

// SafeFallbackMessage replaces any prompt or response the guard blocks.
// A blocked response is not a stage failure; the pipeline continues
// with this text.
const SafeFallbackMessage = "Your request cannot be processed as written. Please rephrase or provide more context."

// Guard content types, passed through to the classifier prompt.
const (
	ContentTypePrompt   = "prompt"
	ContentTypeResponse = "response"
)

// GuardReasonUnavailable marks a check that passed only because the
// remote classifier could not be reached.
const GuardReasonUnavailable = "guard_unavailable"

// DefaultGuardTimeout bounds the remote classifier call.
const DefaultGuardTimeout = 20 * time.Second

// GuardVerdict is the outcome of one safety check.
type GuardVerdict struct {
	Allowed bool   `json:"allowed"`
	Reason  string `json:"reason,omitempty"`
}

// guardRule is one local deterministic check.
type guardRule struct {
	name    string
	pattern *regexp.Regexp
}

// Local rule sets: prompt-injection phrasing, PII, toxicity keywords.
// All rules must pass; the first failing rule names the block reason.
var (
	injectionRules = []guardRule{
		{"injection_ignore_instructions", regexp.MustCompile(`(?i)ignore\s+(all\s+)?(previous|prior|above)\s+(instructions|prompts|rules)`)},
		{"injection_system_override", regexp.MustCompile(`(?i)(you\s+are\s+now|pretend\s+to\s+be|act\s+as\s+if\s+you\s+(are|were))\s+.{0,40}(unrestricted|jailbroken|without\s+(rules|restrictions|limits))`)},
		{"injection_reveal_prompt", regexp.MustCompile(`(?i)(reveal|print|show|repeat)\s+(your\s+)?(system\s+prompt|initial\s+instructions|hidden\s+instructions)`)},
		{"injection_disregard_safety", regexp.MustCompile(`(?i)disregard\s+(your\s+)?(safety|content)\s+(guidelines|policies|filters)`)},
	}

	piiRules = []guardRule{
		{"pii_ssn", regexp.MustCompile(`\b\d{3}-\d{2}-\d{4}\b`)},
		{"pii_credit_card", regexp.MustCompile(`\b(?:\d[ -]?){15}\d\b`)},
		{"pii_phone", regexp.MustCompile(`\b(?:\+?1[-.\s]?)?\(?\d{3}\)?[-.\s]\d{3}[-.\s]\d{4}\b`)},
		{"pii_email", regexp.MustCompile(`\b[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}\b`)},
	}

	toxicityKeywords = []string{
		"kill yourself",
		"how to make a bomb",
		"build an explosive",
		"hate speech",
		"racial slur",
	}
)

// SafetyGuard validates prompts and responses against a remote
// moderation classifier plus the local rule sets above. The remote
// call is best-effort: on failure the guard defaults to allow, with
// reason guard_unavailable.
type SafetyGuard struct {
	classifier llm.Provider
	model      string
	timeout    time.Duration
}

// NewSafetyGuard creates a guard. classifier may be nil to run local
// rules only.
func NewSafetyGuard(classifier llm.Provider, model string) *SafetyGuard {
	return &SafetyGuard{
		classifier: classifier,
		model:      model,
		timeout:    DefaultGuardTimeout,
	}
}

// Check validates text, returning allow/block plus the first failing
// rule's reason. contentType is ContentTypePrompt or ContentTypeResponse.
func (g *SafetyGuard) Check(ctx context.Context, text, contentType string) GuardVerdict {
	if verdict := g.checkLocal(text); !verdict.Allowed {
		return verdict
	}
	return g.checkRemote(ctx, text, contentType)
}

// checkLocal runs the deterministic rule sets.
func (g *SafetyGuard) checkLocal(text string) GuardVerdict {
	for _, rule := range injectionRules {
		if rule.pattern.MatchString(text) {
			return GuardVerdict{Allowed: false, Reason: rule.name}
		}
	}
	for _, rule := range piiRules {
		if rule.pattern.MatchString(text) {
			return GuardVerdict{Allowed: false, Reason: rule.name}
		}
	}
	lower := strings.ToLower(text)
	for _, keyword := range toxicityKeywords {
		if strings.Contains(lower, keyword) {
			return GuardVerdict{Allowed: false, Reason: "toxicity_keyword"}
		}
	}
	return GuardVerdict{Allowed: true}
}

// checkRemote asks the moderation classifier for a safe/unsafe verdict.
// Availability wins over strictness: any remote failure allows the
// text through with reason guard_unavailable.
func (g *SafetyGuard) checkRemote(ctx context.Context, text, contentType string) GuardVerdict {
	if g.classifier == nil {
		return GuardVerdict{Allowed: true}
	}

	callCtx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	resp, err := g.classifier.Complete(callCtx, llm.CompletionRequest{
		Model:        g.model,
		SystemPrompt: "You are a content moderation classifier. Answer with exactly one word: 'safe' or 'unsafe'.",
		UserPrompt:   "Classify the following " + contentType + ":\n\n" + text,
		MaxTokens:    8,
		Temperature:  0,
	})
	if err != nil {
		log.Printf("[SafetyGuard] Classifier unavailable, defaulting to allow: %v", err)
		return GuardVerdict{Allowed: true, Reason: GuardReasonUnavailable}
	}

	verdict := strings.ToLower(strings.TrimSpace(resp.Content))
	if strings.HasPrefix(verdict, "unsafe") {
		return GuardVerdict{Allowed: false, Reason: "classifier_unsafe"}
	}
	return GuardVerdict{Allowed: true}
}
