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
	"encoding/json"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeBedrockInvoker struct {
	lastInput *bedrockruntime.InvokeModelInput
	output    *bedrockruntime.InvokeModelOutput
	err       error
}

func (f *fakeBedrockInvoker) InvokeModel(ctx context.Context, params *bedrockruntime.InvokeModelInput, optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.InvokeModelOutput, error) {
	f.lastInput = params
	return f.output, f.err
}

func TestBedrockProviderComplete(t *testing.T) {
	fake := &fakeBedrockInvoker{
		output: &bedrockruntime.InvokeModelOutput{
			Body: []byte(`{"content": [{"text": "analysis result"}], "usage": {"input_tokens": 20, "output_tokens": 5}}`),
		},
	}
	provider := &BedrockProvider{client: fake, region: "us-east-1", defaultModel: DefaultBedrockModel}

	resp, err := provider.Complete(context.Background(), CompletionRequest{
		SystemPrompt: "You are an analyst.",
		UserPrompt:   "Summarize the findings.",
		MaxTokens:    512,
		Temperature:  0.3,
	})

	require.NoError(t, err)
	assert.Equal(t, "analysis result", resp.Content)
	assert.Equal(t, 20, resp.PromptTokens)
	assert.Equal(t, 5, resp.CompletionTokens)
	assert.Equal(t, 25, resp.TotalTokens)
	assert.Equal(t, DefaultBedrockModel, resp.Model)

	require.NotNil(t, fake.lastInput)
	assert.Equal(t, DefaultBedrockModel, *fake.lastInput.ModelId)

	var payload map[string]interface{}
	require.NoError(t, json.Unmarshal(fake.lastInput.Body, &payload))
	assert.Equal(t, "bedrock-2023-05-31", payload["anthropic_version"])
	assert.Equal(t, "You are an analyst.", payload["system"])
}

func TestBedrockProviderInvokeError(t *testing.T) {
	fake := &fakeBedrockInvoker{err: errors.New("throttled")}
	provider := &BedrockProvider{client: fake, region: "us-east-1", defaultModel: DefaultBedrockModel}

	_, err := provider.Complete(context.Background(), CompletionRequest{UserPrompt: "hello"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bedrock API error")
}

func TestBedrockProviderEmptyContent(t *testing.T) {
	fake := &fakeBedrockInvoker{
		output: &bedrockruntime.InvokeModelOutput{Body: []byte(`{"content": []}`)},
	}
	provider := &BedrockProvider{client: fake, region: "us-east-1", defaultModel: DefaultBedrockModel}

	_, err := provider.Complete(context.Background(), CompletionRequest{UserPrompt: "hello"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no content blocks")
}
