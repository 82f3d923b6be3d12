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

// Package embeddings turns text into vectors. Providers wrap remote or local
// embedding APIs; the Generator adds token-aware truncation, classified
// retries with jittered backoff, and a bounded worker pool for batches.
package embeddings

import (
	"context"
	"fmt"
	"math"
	"math/rand/v2"
	"strings"
	"time"

	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/kraklabs/recall/pkg/tokenizer"
)

// Provider generates embeddings for text.
type Provider interface {
	// Embed returns a normalized vector (L2 norm = 1.0) for the text.
	Embed(ctx context.Context, text string) ([]float32, error)

	// Name identifies the provider family, e.g. "openai" or "ollama".
	Name() string

	// Model is the embedding model identifier.
	Model() string

	// Dimensions is the vector size the model produces.
	Dimensions() int

	// MaxTokens is the model's input window; longer texts are truncated.
	MaxTokens() int
}

// RetryConfig controls retry behavior for transient provider failures.
type RetryConfig struct {
	MaxRetries     int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	Multiplier     float64
}

func (c RetryConfig) withDefaults() RetryConfig {
	if c.MaxRetries <= 0 {
		c.MaxRetries = 3
	}
	if c.InitialBackoff <= 0 {
		c.InitialBackoff = 200 * time.Millisecond
	}
	if c.MaxBackoff <= 0 {
		c.MaxBackoff = 2 * time.Second
	}
	if c.Multiplier <= 1.0 {
		c.Multiplier = 2.0
	}
	return c
}

// Generator wraps a Provider with truncation, retries, and concurrency.
type Generator struct {
	provider Provider
	tok      tokenizer.Tokenizer
	workers  int
	retry    RetryConfig
	logger   *slog.Logger
}

// NewGenerator creates a generator. A nil tokenizer falls back to the
// heuristic counter; workers <= 1 means sequential batches.
func NewGenerator(provider Provider, tok tokenizer.Tokenizer, workers int, logger *slog.Logger) *Generator {
	if logger == nil {
		logger = slog.Default()
	}
	if tok == nil {
		tok = tokenizer.Default()
	}
	if workers <= 0 {
		workers = 1
	}
	return &Generator{
		provider: provider,
		tok:      tok,
		workers:  workers,
		retry:    RetryConfig{}.withDefaults(),
		logger:   logger,
	}
}

// SetRetryConfig overrides the retry policy; zero fields keep defaults.
func (g *Generator) SetRetryConfig(cfg RetryConfig) {
	g.retry = cfg.withDefaults()
}

// Provider exposes the wrapped provider for naming and sizing decisions.
func (g *Generator) Provider() Provider { return g.provider }

// Embed embeds one text with truncation and retries. Unlike batch code paths
// that tolerate partial failure, an exhausted retry budget is a hard error:
// a record without a vector cannot be stored.
func (g *Generator) Embed(ctx context.Context, text string) ([]float32, bool, error) {
	text, truncated := g.truncate(text)

	var vector []float32
	var err error
	for attempt := 0; attempt < g.retry.MaxRetries; attempt++ {
		vector, err = g.provider.Embed(ctx, text)
		if err == nil {
			return vector, truncated, nil
		}
		if !IsRetryable(err) || attempt == g.retry.MaxRetries-1 {
			break
		}
		sleep := backoffWithJitter(g.retry, attempt)
		g.logger.Warn("embeddings.retry",
			"provider", g.provider.Name(), "model", g.provider.Model(),
			"attempt", attempt+1, "sleep_ms", sleep.Milliseconds(), "err", err)
		select {
		case <-ctx.Done():
			return nil, truncated, ctx.Err()
		case <-time.After(sleep):
		}
	}
	return nil, truncated, fmt.Errorf("embed with %s/%s: %w", g.provider.Name(), g.provider.Model(), err)
}

// EmbedBatch embeds texts concurrently, preserving order. The first hard
// failure cancels the batch.
func (g *Generator) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	vectors := make([][]float32, len(texts))
	truncations := make([]bool, len(texts))

	grp, ctx := errgroup.WithContext(ctx)
	grp.SetLimit(g.workers)
	for i, text := range texts {
		grp.Go(func() error {
			vector, truncated, err := g.Embed(ctx, text)
			if err != nil {
				return err
			}
			vectors[i] = vector
			truncations[i] = truncated
			return nil
		})
	}
	if err := grp.Wait(); err != nil {
		return nil, err
	}

	truncatedCount := 0
	for _, t := range truncations {
		if t {
			truncatedCount++
		}
	}
	if truncatedCount > 0 {
		g.logger.Info("embeddings.batch.summary",
			"provider", g.provider.Name(),
			"texts", len(texts),
			"truncated", truncatedCount,
			"workers", g.workers)
	}
	return vectors, nil
}

// truncate cuts text to the provider's token window.
func (g *Generator) truncate(text string) (string, bool) {
	limit := g.provider.MaxTokens()
	if limit <= 0 || g.tok.CountTokens(text) <= limit {
		return text, false
	}
	ids := g.tok.Encode(text)
	if len(ids) <= limit {
		return text, false
	}
	return g.tok.Decode(ids[:limit]), true
}

// IsRetryable classifies provider errors: network hiccups, timeouts, and
// HTTP 429/5xx are retryable; everything else fails fast.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, s := range []string{
		"timeout", "temporarily unavailable", "connection refused",
		"connection reset", "deadline exceeded", "eof",
		"status 429", "status 500", "status 502", "status 503", "status 504",
	} {
		if strings.Contains(msg, s) {
			return true
		}
	}
	return false
}

// backoffWithJitter returns base*mult^attempt capped at max, with full jitter.
func backoffWithJitter(cfg RetryConfig, attempt int) time.Duration {
	exp := float64(cfg.InitialBackoff)
	for i := 0; i < attempt; i++ {
		exp *= cfg.Multiplier
	}
	d := time.Duration(exp)
	if d > cfg.MaxBackoff {
		d = cfg.MaxBackoff
	}
	if d <= 0 {
		return cfg.InitialBackoff
	}
	return rand.N(d + 1)
}

// normalizeVector scales a vector to unit length (L2 norm = 1).
func normalizeVector(vector []float32) []float32 {
	var norm float64
	for _, v := range vector {
		norm += float64(v) * float64(v)
	}
	norm = math.Sqrt(norm)
	if norm == 0 {
		return vector
	}
	normf := float32(norm)
	for i := range vector {
		vector[i] /= normf
	}
	return vector
}
