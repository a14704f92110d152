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

package config

import (
	"context"
	"fmt"
	"io"
	"log"
	"sync"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSecretsAPI struct {
	mu      sync.Mutex
	calls   int
	payload string
	err     error
}

func (f *fakeSecretsAPI) GetSecretValue(ctx context.Context, params *secretsmanager.GetSecretValueInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return &secretsmanager.GetSecretValueOutput{SecretString: aws.String(f.payload)}, nil
}

func newTestAWSProvider(api secretsAPI, ttl time.Duration) *AWSSecretsProvider {
	return &AWSSecretsProvider{
		client: api,
		cache:  make(map[string]*secretCacheEntry),
		ttl:    ttl,
		logger: log.New(io.Discard, "", 0),
	}
}

func TestEnvSecretsProvider(t *testing.T) {
	t.Setenv("EA_AURA_GROQ_API_KEY", "gsk-test")

	p := EnvSecretsProvider{Prefix: "EA_AURA_"}

	value, err := p.GetSecret(context.Background(), "groq", "api_key")
	require.NoError(t, err)
	assert.Equal(t, "gsk-test", value)

	_, err = p.GetSecret(context.Background(), "groq", "missing_key")
	assert.Error(t, err)
}

func TestAWSSecretsProviderFetchAndCache(t *testing.T) {
	api := &fakeSecretsAPI{payload: `{"api_key":"gsk-live"}`}
	p := newTestAWSProvider(api, time.Minute)

	value, err := p.GetSecret(context.Background(), "groq", "api_key")
	require.NoError(t, err)
	assert.Equal(t, "gsk-live", value)

	// Second lookup is served from cache.
	_, err = p.GetSecret(context.Background(), "groq", "api_key")
	require.NoError(t, err)
	assert.Equal(t, 1, api.calls)
}

func TestAWSSecretsProviderMissingKey(t *testing.T) {
	api := &fakeSecretsAPI{payload: `{"other":"x"}`}
	p := newTestAWSProvider(api, time.Minute)

	_, err := p.GetSecret(context.Background(), "groq", "api_key")
	assert.ErrorContains(t, err, "not found")
}

func TestAWSSecretsProviderBadPayload(t *testing.T) {
	api := &fakeSecretsAPI{payload: `not json`}
	p := newTestAWSProvider(api, time.Minute)

	_, err := p.GetSecret(context.Background(), "groq", "api_key")
	assert.Error(t, err)
}

func TestChainSecretsProviderFallsBack(t *testing.T) {
	t.Setenv("EA_AURA_GROQ_API_KEY", "gsk-env")

	failing := newTestAWSProvider(&fakeSecretsAPI{err: fmt.Errorf("access denied")}, time.Minute)
	chain := ChainSecretsProvider{failing, EnvSecretsProvider{Prefix: "EA_AURA_"}}

	value, err := chain.GetSecret(context.Background(), "groq", "api_key")
	require.NoError(t, err)
	assert.Equal(t, "gsk-env", value)
}

func TestChainSecretsProviderAllFail(t *testing.T) {
	chain := ChainSecretsProvider{EnvSecretsProvider{Prefix: "EA_AURA_"}}

	_, err := chain.GetSecret(context.Background(), "nosuch", "key")
	assert.Error(t, err)
}
