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

import "strings"

// Prompt template placeholders.
const (
	placeholderInput    = "{{input}}"
	placeholderQuestion = "{{question}}"
)

// PrepareAgentPrompt renders an agent's prompt template for one stage.
// Both placeholders substitute the stage input; a template carrying
// neither gets the input appended under a USER QUESTION heading so the
// model always sees it. Retrieved context, when present, is prepended
// as a CONTEXT block.
func PrepareAgentPrompt(template, input, enhancedData string) string {
	prompt := template
	hasPlaceholder := strings.Contains(prompt, placeholderInput) ||
		strings.Contains(prompt, placeholderQuestion)

	prompt = strings.ReplaceAll(prompt, placeholderInput, input)
	prompt = strings.ReplaceAll(prompt, placeholderQuestion, input)

	if !hasPlaceholder {
		prompt = prompt + "\n\nUSER QUESTION: " + input
	}

	if enhancedData != "" {
		prompt = "CONTEXT:\n" + enhancedData + "\n\n" + prompt
	}

	return prompt
}
