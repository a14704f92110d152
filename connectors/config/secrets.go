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
	"encoding/json"
	"fmt"
	"log"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
)

// SecretsProvider retrieves named secrets. A secret lives at a path (one
// stored secret, a JSON object) and exposes string values by key.
type SecretsProvider interface {
	GetSecret(ctx context.Context, path, key string) (string, error)
}

// EnvSecretsProvider resolves secrets from environment variables named
// <PREFIX><PATH>_<KEY>, uppercased with non-alphanumerics mapped to
// underscores. With prefix "EA_AURA_" the path "groq" and key "api_key"
// resolve from EA_AURA_GROQ_API_KEY.
type EnvSecretsProvider struct {
	Prefix string
}

// GetSecret resolves the secret from the environment.
func (p EnvSecretsProvider) GetSecret(ctx context.Context, path, key string) (string, error) {
	name := p.Prefix + envToken(path) + "_" + envToken(key)
	value := os.Getenv(name)
	if value == "" {
		return "", fmt.Errorf("secret %s/%s not found in environment (%s)", path, key, name)
	}
	return value, nil
}

func envToken(s string) string {
	var b strings.Builder
	for _, c := range strings.ToUpper(s) {
		if (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9') {
			b.WriteRune(c)
		} else {
			b.WriteRune('_')
		}
	}
	return b.String()
}

// AWSSecretsProvider implements SecretsProvider using AWS Secrets Manager.
// Secret values are JSON objects with string values; fetched secrets are
// cached with a TTL to bound API traffic.
type AWSSecretsProvider struct {
	client secretsAPI
	cache  map[string]*secretCacheEntry
	mu     sync.RWMutex
	ttl    time.Duration
	logger *log.Logger
}

// secretsAPI is the slice of the Secrets Manager client the provider uses.
type secretsAPI interface {
	GetSecretValue(ctx context.Context, params *secretsmanager.GetSecretValueInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error)
}

type secretCacheEntry struct {
	value     map[string]string
	expiresAt time.Time
}

// AWSSecretsProviderOptions holds options for creating an AWSSecretsProvider.
type AWSSecretsProviderOptions struct {
	Region   string
	CacheTTL time.Duration
	Logger   *log.Logger
}

// NewAWSSecretsProvider creates a Secrets Manager backed provider.
func NewAWSSecretsProvider(ctx context.Context, opts AWSSecretsProviderOptions) (*AWSSecretsProvider, error) {
	logger := opts.Logger
	if logger == nil {
		logger = log.New(os.Stdout, "[SECRETS] ", log.LstdFlags)
	}

	cfgOpts := []func(*awsconfig.LoadOptions) error{}
	if opts.Region != "" {
		cfgOpts = append(cfgOpts, awsconfig.WithRegion(opts.Region))
	}

	cfg, err := awsconfig.LoadDefaultConfig(ctx, cfgOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	ttl := opts.CacheTTL
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}

	return &AWSSecretsProvider{
		client: secretsmanager.NewFromConfig(cfg),
		cache:  make(map[string]*secretCacheEntry),
		ttl:    ttl,
		logger: logger,
	}, nil
}

// GetSecret fetches the secret at path and returns the value under key.
func (p *AWSSecretsProvider) GetSecret(ctx context.Context, path, key string) (string, error) {
	values, err := p.fetch(ctx, path)
	if err != nil {
		return "", err
	}

	value, ok := values[key]
	if !ok {
		return "", fmt.Errorf("key %q not found in secret %q", key, path)
	}
	return value, nil
}

func (p *AWSSecretsProvider) fetch(ctx context.Context, path string) (map[string]string, error) {
	p.mu.RLock()
	entry, exists := p.cache[path]
	p.mu.RUnlock()

	if exists && time.Now().Before(entry.expiresAt) {
		return entry.value, nil
	}

	p.logger.Printf("Fetching secret %s from AWS Secrets Manager", path)

	output, err := p.client.GetSecretValue(ctx, &secretsmanager.GetSecretValueInput{
		SecretId: aws.String(path),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to fetch secret %q: %w", path, err)
	}
	if output.SecretString == nil {
		return nil, fmt.Errorf("secret %q has no string payload", path)
	}

	var values map[string]string
	if err := json.Unmarshal([]byte(*output.SecretString), &values); err != nil {
		return nil, fmt.Errorf("secret %q is not a JSON object of strings: %w", path, err)
	}

	p.mu.Lock()
	p.cache[path] = &secretCacheEntry{
		value:     values,
		expiresAt: time.Now().Add(p.ttl),
	}
	p.mu.Unlock()

	return values, nil
}

// ChainSecretsProvider tries each provider in order and returns the first
// success. Used to fall back from Secrets Manager to environment variables.
type ChainSecretsProvider []SecretsProvider

// GetSecret returns the first provider's successful value; the last error
// wins when every provider fails.
func (c ChainSecretsProvider) GetSecret(ctx context.Context, path, key string) (string, error) {
	var lastErr error
	for _, provider := range c {
		value, err := provider.GetSecret(ctx, path, key)
		if err == nil {
			return value, nil
		}
		lastErr = err
	}
	if lastErr == nil {
		lastErr = fmt.Errorf("no secrets providers configured")
	}
	return "", lastErr
}
