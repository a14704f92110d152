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
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

const (
	// DefaultGroqBaseURL is the OpenAI-compatible Groq API root.
	DefaultGroqBaseURL = "https://api.groq.com/openai/v1"

	// DefaultRequestTimeout bounds a single completion call.
	DefaultRequestTimeout = 30 * time.Second
)

// GroqProvider calls the Groq chat completions API (OpenAI-compatible wire
// format), the primary completion backend for agent execution.
type GroqProvider struct {
	apiKey  string
	baseURL string
	client  *http.Client
}

// NewGroqProvider creates a Groq provider with the default endpoint and a
// 30 second request timeout.
func NewGroqProvider(apiKey string) *GroqProvider {
	return &GroqProvider{
		apiKey:  apiKey,
		baseURL: DefaultGroqBaseURL,
		client:  &http.Client{Timeout: DefaultRequestTimeout},
	}
}

// NewGroqProviderWithBaseURL creates a Groq provider against a custom
// endpoint, used for tests and OpenAI-compatible proxies.
func NewGroqProviderWithBaseURL(apiKey, baseURL string) *GroqProvider {
	p := NewGroqProvider(apiKey)
	p.baseURL = baseURL
	return p
}

// Name returns the provider identifier.
func (p *GroqProvider) Name() string { return "groq" }

type chatCompletionRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
	Temperature float64       `json:"temperature"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatCompletionResponse struct {
	Model   string `json:"model"`
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage"`
}

// Complete performs a chat completion. Responses with 4xx status codes are
// returned as RequestError; everything else is a transient failure.
func (p *GroqProvider) Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error) {
	start := time.Now()

	messages := make([]chatMessage, 0, 2)
	if req.SystemPrompt != "" {
		messages = append(messages, chatMessage{Role: "system", Content: req.SystemPrompt})
	}
	messages = append(messages, chatMessage{Role: "user", Content: req.UserPrompt})

	body, err := json.Marshal(chatCompletionRequest{
		Model:       req.Model,
		Messages:    messages,
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal completion request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build completion request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+p.apiKey)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("groq request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		if resp.StatusCode >= 400 && resp.StatusCode < 500 {
			return nil, &RequestError{
				Provider:   p.Name(),
				StatusCode: resp.StatusCode,
				Detail:     string(payload),
			}
		}
		return nil, fmt.Errorf("groq returned status %d: %s", resp.StatusCode, string(payload))
	}

	var parsed chatCompletionResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("failed to decode completion response: %w", err)
	}
	if len(parsed.Choices) == 0 {
		return nil, fmt.Errorf("groq returned no choices")
	}

	model := parsed.Model
	if model == "" {
		model = req.Model
	}

	return &CompletionResponse{
		Content:          parsed.Choices[0].Message.Content,
		Model:            model,
		PromptTokens:     parsed.Usage.PromptTokens,
		CompletionTokens: parsed.Usage.CompletionTokens,
		TotalTokens:      parsed.Usage.TotalTokens,
		ResponseTime:     time.Since(start),
	}, nil
}
