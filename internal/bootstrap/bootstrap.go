// Copyright 2026 KrakLabs
//
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
//
// SPDX-License-Identifier: Apache-2.0

package bootstrap

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/kraklabs/recall/internal/config"
	"github.com/kraklabs/recall/pkg/contentstore"
	"github.com/kraklabs/recall/pkg/embeddings"
	"github.com/kraklabs/recall/pkg/filetype"
	"github.com/kraklabs/recall/pkg/llm"
	"github.com/kraklabs/recall/pkg/partition"
	"github.com/kraklabs/recall/pkg/pipeline"
	"github.com/kraklabs/recall/pkg/queue"
	"github.com/kraklabs/recall/pkg/search"
	"github.com/kraklabs/recall/pkg/tokenizer"
	"github.com/kraklabs/recall/pkg/vectorstore"
)

// Engine is the fully wired memory engine: ingestion orchestrator with all
// handlers attached, search client, and the backends both sides share. The
// HTTP server and the one-shot CLI commands operate through it.
type Engine struct {
	Config       *config.Config
	Logger       *slog.Logger
	Content      contentstore.Store
	Vector       vectorstore.Store
	Queue        queue.Adapter
	Orchestrator *pipeline.Orchestrator
	Search       *search.Client
	Tokenizer    tokenizer.Tokenizer
	StartedAt    time.Time
}

// NewLogger builds the slog logger the whole process shares.
func NewLogger(cfg config.LoggingConfig) *slog.Logger {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		handler = slog.NewTextHandler(os.Stderr, opts)
	}
	return slog.New(handler)
}

// NewEngine assembles an engine from configuration. The returned engine owns
// its backends; call Close when done.
func NewEngine(ctx context.Context, cfg *config.Config) (*Engine, error) {
	logger := NewLogger(cfg.Logging)

	content, err := contentstore.NewFSStore(cfg.ContentStore.Root)
	if err != nil {
		return nil, fmt.Errorf("content store: %w", err)
	}

	vector, err := newVectorStore(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}

	tok := tokenizer.Default()

	provider, err := embeddings.NewProvider(embeddings.ProviderConfig{
		Type:       cfg.Embeddings.Type,
		APIKey:     cfg.Embeddings.APIKey,
		BaseURL:    cfg.Embeddings.BaseURL,
		Model:      cfg.Embeddings.Model,
		Dimensions: cfg.Embeddings.Dimensions,
	})
	if err != nil {
		return nil, fmt.Errorf("embedding provider: %w", err)
	}
	embedder := embeddings.NewGenerator(provider, tok, cfg.Embeddings.Workers, logger)

	generator, err := llm.NewProvider(llm.Config{
		Type:           cfg.Generator.Type,
		BaseURL:        cfg.Generator.BaseURL,
		APIKey:         cfg.Generator.APIKey,
		Model:          cfg.Generator.Model,
		MaxInputTokens: cfg.Generator.MaxInputTokens,
		Timeout:        cfg.Generator.Timeout,
	})
	if err != nil {
		return nil, fmt.Errorf("text generator: %w", err)
	}

	var moderator llm.Moderator
	if cfg.Moderation.Enabled {
		moderator = llm.NewOpenAIModerator(cfg.Moderation.APIKey, cfg.Moderation.BaseURL, "")
	}

	var queues queue.Adapter
	var orch *pipeline.Orchestrator
	if cfg.Pipeline.Orchestration == "distributed" {
		queues, err = newQueue(cfg, logger)
		if err != nil {
			return nil, err
		}
		orch = pipeline.NewDistributedOrchestrator(content, queues, logger)
	} else {
		orch = pipeline.NewInProcessOrchestrator(content, logger)
	}

	if err := attachHandlers(orch, cfg, vector, embedder, generator, tok, logger); err != nil {
		return nil, err
	}

	searchClient := search.NewClient(vector, embedder, generator, moderator, tok, search.Config{
		MaxMatchesCount: cfg.Search.MaxMatchesCount,
		AnswerTokens:    cfg.Search.AnswerTokens,
		Temperature:     cfg.Search.Temperature,
		TopP:            cfg.Search.TopP,
	}, logger)

	logger.Info("engine.ready",
		"vector_store", cfg.VectorStore.Type,
		"queue", cfg.Queue.Type,
		"orchestration", cfg.Pipeline.Orchestration,
		"embeddings", cfg.Embeddings.Type,
		"generator", cfg.Generator.Type)

	return &Engine{
		Config:       cfg,
		Logger:       logger,
		Content:      content,
		Vector:       vector,
		Queue:        queues,
		Orchestrator: orch,
		Search:       searchClient,
		Tokenizer:    tok,
		StartedAt:    time.Now(),
	}, nil
}

func newVectorStore(ctx context.Context, cfg *config.Config, logger *slog.Logger) (vectorstore.Store, error) {
	switch cfg.VectorStore.Type {
	case "qdrant":
		store, err := vectorstore.NewQdrantStore(vectorstore.QdrantConfig{
			Host:   cfg.VectorStore.Qdrant.Host,
			Port:   cfg.VectorStore.Qdrant.Port,
			APIKey: cfg.VectorStore.Qdrant.APIKey,
			UseTLS: cfg.VectorStore.Qdrant.UseTLS,
		}, logger)
		if err != nil {
			return nil, fmt.Errorf("qdrant store: %w", err)
		}
		return store, nil
	case "postgres":
		store, err := vectorstore.NewPostgresStore(ctx, vectorstore.PostgresConfig{
			DSN: cfg.VectorStore.Postgres.DSN,
		}, logger)
		if err != nil {
			return nil, fmt.Errorf("postgres store: %w", err)
		}
		return store, nil
	default:
		return vectorstore.NewMemoryStore(), nil
	}
}

func newQueue(cfg *config.Config, logger *slog.Logger) (queue.Adapter, error) {
	switch cfg.Queue.Type {
	case "pulsar":
		q, err := queue.NewPulsarQueue(queue.PulsarConfig{
			URL:          cfg.Queue.Pulsar.URL,
			TopicPrefix:  cfg.Queue.Pulsar.TopicPrefix,
			Subscription: cfg.Queue.Pulsar.Subscription,
			MaxAttempts:  cfg.Queue.MaxAttempts,
			RetryDelay:   cfg.Queue.RetryDelay,
		}, logger)
		if err != nil {
			return nil, fmt.Errorf("pulsar queue: %w", err)
		}
		return q, nil
	default:
		return queue.NewMemoryQueue(queue.MemoryQueueOptions{
			MaxAttempts: cfg.Queue.MaxAttempts,
			RetryDelay:  cfg.Queue.RetryDelay,
		}, logger), nil
	}
}

// attachHandlers registers the full handler set: the default ingestion steps,
// the optional summarize step, and the two deletion steps.
func attachHandlers(orch *pipeline.Orchestrator, cfg *config.Config, vector vectorstore.Store, embedder *embeddings.Generator, generator llm.Provider, tok tokenizer.Tokenizer, logger *slog.Logger) error {
	stores := []vectorstore.Store{vector}

	splitOpts := partition.Options{
		MaxTokensPerLine:      cfg.Pipeline.MaxTokensPerLine,
		MaxTokensPerParagraph: cfg.Pipeline.MaxTokensPerParagraph,
		OverlapTokens:         cfg.Pipeline.OverlapTokens,
	}

	handlers := []pipeline.Handler{
		pipeline.NewExtractHandler(orch, filetype.NewRegistry(), logger),
		pipeline.NewPartitionHandler(orch, tok, splitOpts, logger),
		pipeline.NewSummarizeHandler(orch, generator, tok, cfg.Pipeline.SummaryMaxTokens, logger),
		pipeline.NewEmbedHandler(orch, embedder, logger),
		pipeline.NewSaveRecordsHandler(orch, stores, logger),
		pipeline.NewDeleteDocumentHandler(orch, stores, logger),
		pipeline.NewDeleteIndexHandler(orch, stores, logger),
	}
	for _, h := range handlers {
		if err := orch.AttachHandler(h); err != nil {
			return fmt.Errorf("attach handler %q: %w", h.StepName(), err)
		}
	}
	return nil
}

// DefaultSteps returns the ingestion plan used when an upload does not name
// its own steps.
func (e *Engine) DefaultSteps() []string {
	if len(e.Config.Pipeline.Steps) > 0 {
		return e.Config.Pipeline.Steps
	}
	return pipeline.DefaultSteps
}

// Close releases the engine's backends.
func (e *Engine) Close() error {
	var firstErr error
	if e.Queue != nil {
		if err := e.Queue.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if closer, ok := e.Vector.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
