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

// Package llm provides a unified interface for text generation providers.
// Supports OpenAI-compatible APIs, local Ollama servers, and a mock for
// tests, plus an optional content moderation gate.
package llm

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// Provider defines the interface for LLM text generation.
type Provider interface {
	// Generate produces a full completion for the request.
	Generate(ctx context.Context, req GenerateRequest) (*GenerateResponse, error)

	// GenerateStream produces a completion incrementally, invoking onToken
	// for each text chunk as it arrives. A non-nil return from onToken
	// aborts the stream. The final response carries the assembled text and
	// token usage.
	GenerateStream(ctx context.Context, req GenerateRequest, onToken func(chunk string) error) (*GenerateResponse, error)

	// Name returns the provider identifier.
	Name() string

	// MaxInputTokens is the context window available for prompts.
	MaxInputTokens() int
}

// GenerateRequest represents a text generation request.
type GenerateRequest struct {
	// SystemPrompt frames the assistant's role; may be empty.
	SystemPrompt string

	// Prompt is the user-facing request, typically facts plus a question.
	Prompt string

	Model       string
	MaxTokens   int
	Temperature float64
	TopP        float64
	Stop        []string
}

// GenerateResponse contains the completion and its accounting.
type GenerateResponse struct {
	Text         string
	Model        string
	PromptTokens int
	OutputTokens int
	TotalTokens  int
	Duration     time.Duration
}

// Config holds configuration for creating providers.
type Config struct {
	// Type is one of "mock", "openai", "ollama".
	Type string

	// BaseURL overrides the provider endpoint.
	BaseURL string

	// APIKey authenticates remote providers.
	APIKey string

	// Model is the default model for requests that leave Model empty.
	Model string

	// MaxInputTokens caps the prompt budget (default 8192).
	MaxInputTokens int

	// Timeout bounds a single API request (default 120s).
	Timeout time.Duration
}

func (c Config) withDefaults() Config {
	if c.MaxInputTokens <= 0 {
		c.MaxInputTokens = 8192
	}
	if c.Timeout <= 0 {
		c.Timeout = 120 * time.Second
	}
	return c
}

// NewProvider creates a Provider based on configuration.
func NewProvider(cfg Config) (Provider, error) {
	cfg = cfg.withDefaults()
	switch strings.ToLower(cfg.Type) {
	case "mock", "test", "":
		return NewMockProvider(cfg.Model), nil
	case "openai", "openai-compatible":
		return newOpenAIProvider(cfg), nil
	case "ollama", "local":
		return newOllamaProvider(cfg), nil
	default:
		return nil, fmt.Errorf("unknown LLM provider type: %s (supported: mock, openai, ollama)", cfg.Type)
	}
}
