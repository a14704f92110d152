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

package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"

	"ea-aura/platform/common/usage"
	"ea-aura/platform/connectors/config"
	"ea-aura/platform/connectors/docstore"
	"ea-aura/platform/connectors/embeddings"
	"ea-aura/platform/connectors/eventbus"
	"ea-aura/platform/orchestrator"
	"ea-aura/platform/orchestrator/llm"
	"ea-aura/platform/shared/logger"
)

// serverConfig is assembled from the environment at startup.
type serverConfig struct {
	Port            string
	AgentConfigPath string
	PerfStatePath   string
	InstanceID      string

	MongoURI      string
	MongoDatabase string
	RedisAddr     string
	RedisPassword string
	DatabaseURL   string

	EmbeddingsEndpoint string

	LLMProvider   string // "groq" or "bedrock"
	BedrockRegion string
	GuardModel    string

	SecretsBackend string // "env" or "aws"
	SecretsRegion  string
}

func loadServerConfig() serverConfig {
	cfg := serverConfig{
		Port:               envOr("PORT", "8080"),
		AgentConfigPath:    envOr("AGENT_CONFIG_PATH", "config/agents.yaml"),
		PerfStatePath:      envOr("PERFORMANCE_STATE_PATH", "data/performance.json"),
		InstanceID:         envOr("INSTANCE_ID", "orchestrator-1"),
		MongoURI:           os.Getenv("MONGO_URI"),
		MongoDatabase:      envOr("MONGO_DATABASE", "ea_aura"),
		RedisAddr:          os.Getenv("REDIS_ADDR"),
		RedisPassword:      os.Getenv("REDIS_PASSWORD"),
		DatabaseURL:        os.Getenv("DATABASE_URL"),
		EmbeddingsEndpoint: os.Getenv("EMBEDDINGS_ENDPOINT"),
		LLMProvider:        envOr("LLM_PROVIDER", "groq"),
		BedrockRegion:      envOr("BEDROCK_REGION", "us-east-1"),
		GuardModel:         envOr("GUARD_MODEL", "llama-3.1-8b-instant"),
		SecretsBackend:     envOr("SECRETS_BACKEND", "env"),
		SecretsRegion:      os.Getenv("AWS_REGION"),
	}
	return cfg
}

func envOr(name, fallback string) string {
	if v := os.Getenv(name); v != "" {
		return v
	}
	return fallback
}

func main() {
	log := logger.New("orchestrator")
	cfg := loadServerConfig()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Error("", "", "Orchestrator exited with error", map[string]interface{}{"error": err.Error()})
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg serverConfig, log *logger.Logger) error {
	secrets := newSecretsProvider(ctx, cfg, log)

	// Document store: MongoDB when configured, in-memory otherwise.
	// The in-memory store is for local development only; every record
	// is lost on restart.
	var store docstore.Store
	if cfg.MongoURI != "" {
		mongoStore, err := docstore.NewMongoStore(ctx, docstore.MongoOptions{
			URI:      cfg.MongoURI,
			Database: cfg.MongoDatabase,
		})
		if err != nil {
			return fmt.Errorf("mongo connection failed: %w", err)
		}
		defer mongoStore.Close(context.Background())
		store = mongoStore
		log.Info("", "", "Connected to MongoDB", map[string]interface{}{"database": cfg.MongoDatabase})
	} else {
		store = docstore.NewMemoryStore()
		log.Warn("", "", "MONGO_URI not set, using in-memory document store", nil)
	}

	// Event bus: Redis streams when configured, no-op otherwise.
	var bus eventbus.Bus = eventbus.NopBus{}
	if cfg.RedisAddr != "" {
		redisBus, err := eventbus.NewRedisBus(ctx, eventbus.RedisBusOptions{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
		})
		if err != nil {
			return fmt.Errorf("redis connection failed: %w", err)
		}
		defer redisBus.Close()
		bus = redisBus
		log.Info("", "", "Connected to Redis event bus", map[string]interface{}{"addr": cfg.RedisAddr})
	}

	// Usage metering: PostgreSQL when configured.
	var usageDB *sql.DB
	if cfg.DatabaseURL != "" {
		db, err := sql.Open("postgres", cfg.DatabaseURL)
		if err != nil {
			return fmt.Errorf("postgres open failed: %w", err)
		}
		defer db.Close()
		if err := db.PingContext(ctx); err != nil {
			return fmt.Errorf("postgres ping failed: %w", err)
		}
		usageDB = db
		log.Info("", "", "Usage metering enabled", nil)
	}
	recorder := usage.NewRecorder(usageDB)

	var embedder embeddings.Provider
	if cfg.EmbeddingsEndpoint != "" {
		embedder = embeddings.NewHTTPProvider(cfg.EmbeddingsEndpoint)
	}

	provider, err := newLLMProvider(ctx, cfg, secrets)
	if err != nil {
		return err
	}
	metered := usage.Metered(provider, recorder, cfg.InstanceID)

	agentTree, err := orchestrator.LoadAgentConfig(cfg.AgentConfigPath)
	if err != nil {
		return fmt.Errorf("agent config: %w", err)
	}
	registry, err := orchestrator.NewAgentRegistry(agentTree)
	if err != nil {
		return fmt.Errorf("agent registry: %w", err)
	}
	stats := registry.Stats()
	log.Info("", "", "Agent tree loaded", map[string]interface{}{
		"parents": stats.ParentCount,
		"subs":    stats.SubCount,
	})

	metricsRegistry := prometheus.NewRegistry()
	metrics := orchestrator.NewMetricsCollector(metricsRegistry)

	tracker := orchestrator.NewPerformanceTracker(cfg.PerfStatePath)
	defer tracker.Flush()
	cache := orchestrator.NewContentCache(store, embedder)
	memory := orchestrator.NewMemoryStore(store)
	guard := orchestrator.NewSafetyGuard(metered, cfg.GuardModel)
	matcher := orchestrator.NewAgentMatcher(registry, tracker, embedder)
	enhancer := orchestrator.NewDocstoreEnhancer(store)

	pool := orchestrator.NewWorkerPool(orchestrator.DefaultWorkerCount)
	defer pool.Close()
	emitter := orchestrator.NewEventEmitter(bus, pool)

	executor := orchestrator.NewStageExecutor(cache, guard, metered,
		tracker, memory, emitter, enhancer, metrics)
	general := orchestrator.NewGeneralAgent(metered, guard, memory, registry.Fallback())
	orch := orchestrator.NewOrchestrator(registry, matcher, executor, general,
		cache, memory, emitter, metrics)

	router := mux.NewRouter()
	router.Use(usage.Middleware(recorder, cfg.InstanceID))
	handler := orchestrator.NewAPIHandler(orch, registry, memory, cache, tracker)
	handler.RegisterRoutes(router)
	router.Handle("/metrics", promhttp.HandlerFor(metricsRegistry, promhttp.HandlerOpts{}))

	corsHandler := cors.New(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete},
		AllowedHeaders: []string{"Content-Type", "X-Tenant-ID"},
	}).Handler(router)

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      corsHandler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("", "", "Orchestrator listening", map[string]interface{}{"port": cfg.Port})
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info("", "", "Shutting down", nil)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

func newSecretsProvider(ctx context.Context, cfg serverConfig, log *logger.Logger) config.SecretsProvider {
	if cfg.SecretsBackend == "aws" {
		provider, err := config.NewAWSSecretsProvider(ctx, config.AWSSecretsProviderOptions{
			Region: cfg.SecretsRegion,
		})
		if err == nil {
			return provider
		}
		log.Warn("", "", "AWS Secrets Manager unavailable, falling back to environment",
			map[string]interface{}{"error": err.Error()})
	}
	return config.EnvSecretsProvider{Prefix: "EA_AURA_"}
}

func newLLMProvider(ctx context.Context, cfg serverConfig, secrets config.SecretsProvider) (llm.Provider, error) {
	switch cfg.LLMProvider {
	case "bedrock":
		return llm.NewBedrockProvider(ctx, cfg.BedrockRegion, os.Getenv("BEDROCK_MODEL"))
	case "groq":
		apiKey, err := secrets.GetSecret(ctx, "groq", "api_key")
		if err != nil {
			return nil, fmt.Errorf("groq API key: %w", err)
		}
		return llm.NewGroqProvider(apiKey), nil
	default:
		return nil, fmt.Errorf("unknown LLM_PROVIDER %q (want groq or bedrock)", cfg.LLMProvider)
	}
}
