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

package llm

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// CompletionRequest describes a single chat completion call.
type CompletionRequest struct {
	Model        string  `json:"model"`
	SystemPrompt string  `json:"system_prompt"`
	UserPrompt   string  `json:"user_prompt"`
	MaxTokens    int     `json:"max_tokens"`
	Temperature  float64 `json:"temperature"`
}

// CompletionResponse is the result of a successful completion call.
type CompletionResponse struct {
	Content          string        `json:"content"`
	Model            string        `json:"model"`
	PromptTokens     int           `json:"prompt_tokens"`
	CompletionTokens int           `json:"completion_tokens"`
	TotalTokens      int           `json:"total_tokens"`
	ResponseTime     time.Duration `json:"response_time"`
}

// Provider is the black-box LLM contract: prompt in, text out. Providers must
// bound every call with a timeout and distinguish request errors (bad
// request, auth, quota misconfiguration) from transient failures.
type Provider interface {
	Name() string
	Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error)
}

// RequestError marks a completion failure caused by the request itself: bad
// payload, invalid or revoked API key, unknown model. Retrying the same
// request cannot succeed.
type RequestError struct {
	Provider   string
	StatusCode int
	Detail     string
}

// Error implements the error interface.
func (e *RequestError) Error() string {
	return fmt.Sprintf("%s request rejected (status %d): %s", e.Provider, e.StatusCode, e.Detail)
}

// IsRequestError reports whether err (or anything it wraps) is a RequestError.
func IsRequestError(err error) bool {
	var reqErr *RequestError
	return errors.As(err, &reqErr)
}
