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

import "fmt"

// Prices are stored in millicents per 1K tokens so the cheap models
// do not round to zero. All prices USD, current as of mid 2025.

// ModelPricing holds the per-1K-token rates for one model.
type ModelPricing struct {
	PromptPer1K     int // millicents per 1K prompt tokens
	CompletionPer1K int // millicents per 1K completion tokens
}

var modelPricing = map[string]ModelPricing{
	// Groq-hosted open models
	"groq-llama-3.3-70b-versatile": {59, 79},
	"groq-llama-3.1-8b-instant":    {5, 8},
	"groq-mixtral-8x7b-32768":      {24, 24},
	"groq-gemma2-9b-it":            {20, 20},

	// Bedrock-hosted Anthropic models
	"bedrock-anthropic.claude-3-5-sonnet-20240620-v1:0": {300, 1500},
	"bedrock-anthropic.claude-3-haiku-20240307-v1:0":    {25, 125},
	"bedrock-anthropic.claude-3-opus-20240229-v1:0":     {1500, 7500},

	// Conservative fallback for unknown models
	"default": {300, 1500},
}

// EstimateCost returns the estimated cost in millicents for one LLM
// request. Unknown provider-model pairs use the default rate.
func EstimateCost(provider, model string, promptTokens, completionTokens int) int {
	pricing, ok := modelPricing[provider+"-"+model]
	if !ok {
		pricing = modelPricing["default"]
	}
	return (promptTokens*pricing.PromptPer1K)/1000 +
		(completionTokens*pricing.CompletionPer1K)/1000
}

// PricingFor returns the configured rate for a provider-model pair.
func PricingFor(provider, model string) (ModelPricing, bool) {
	pricing, ok := modelPricing[provider+"-"+model]
	return pricing, ok
}

// FormatMillicents renders a millicent amount as a dollar string,
// e.g. 135000 -> "$1.3500".
func FormatMillicents(millicents int) string {
	return fmt.Sprintf("$%.4f", float64(millicents)/100000.0)
}
