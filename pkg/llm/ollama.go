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

package llm

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

type ollamaProvider struct {
	baseURL        string
	defaultModel   string
	maxInputTokens int
	client         *http.Client
}

func newOllamaProvider(cfg Config) *ollamaProvider {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = "http://localhost:11434"
	}
	model := cfg.Model
	if model == "" {
		model = "llama3.2"
	}
	return &ollamaProvider{
		baseURL:        strings.TrimSuffix(baseURL, "/"),
		defaultModel:   model,
		maxInputTokens: cfg.MaxInputTokens,
		client:         &http.Client{Timeout: cfg.Timeout},
	}
}

func (p *ollamaProvider) Name() string        { return "ollama" }
func (p *ollamaProvider) MaxInputTokens() int { return p.maxInputTokens }

func (p *ollamaProvider) payload(req GenerateRequest, stream bool) map[string]any {
	model := req.Model
	if model == "" {
		model = p.defaultModel
	}

	payload := map[string]any{
		"model":  model,
		"prompt": req.Prompt,
		"stream": stream,
	}
	if req.SystemPrompt != "" {
		payload["system"] = req.SystemPrompt
	}
	options := map[string]any{}
	if req.MaxTokens > 0 {
		options["num_predict"] = req.MaxTokens
	}
	if req.Temperature > 0 {
		options["temperature"] = req.Temperature
	}
	if req.TopP > 0 {
		options["top_p"] = req.TopP
	}
	if len(req.Stop) > 0 {
		options["stop"] = req.Stop
	}
	if len(options) > 0 {
		payload["options"] = options
	}
	return payload
}

func (p *ollamaProvider) post(ctx context.Context, payload map[string]any) (*http.Response, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/api/generate", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("ollama generate (is Ollama running at %s?): %w", p.baseURL, err)
	}
	if resp.StatusCode != http.StatusOK {
		bodyBytes, _ := io.ReadAll(resp.Body)
		_ = resp.Body.Close()
		return nil, fmt.Errorf("ollama generate error (status %d): %s", resp.StatusCode, string(bodyBytes))
	}
	return resp, nil
}

func (p *ollamaProvider) Generate(ctx context.Context, req GenerateRequest) (*GenerateResponse, error) {
	start := time.Now()
	resp, err := p.post(ctx, p.payload(req, false))
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var result struct {
		Response        string `json:"response"`
		Model           string `json:"model"`
		PromptEvalCount int    `json:"prompt_eval_count"`
		EvalCount       int    `json:"eval_count"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("parse response: %w", err)
	}

	return &GenerateResponse{
		Text:         result.Response,
		Model:        result.Model,
		PromptTokens: result.PromptEvalCount,
		OutputTokens: result.EvalCount,
		TotalTokens:  result.PromptEvalCount + result.EvalCount,
		Duration:     time.Since(start),
	}, nil
}

// GenerateStream consumes the ndjson stream Ollama emits with stream=true.
func (p *ollamaProvider) GenerateStream(ctx context.Context, req GenerateRequest, onToken func(chunk string) error) (*GenerateResponse, error) {
	start := time.Now()
	resp, err := p.post(ctx, p.payload(req, true))
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var text strings.Builder
	var model string
	var promptTokens, outputTokens int

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		var chunk struct {
			Response        string `json:"response"`
			Model           string `json:"model"`
			Done            bool   `json:"done"`
			PromptEvalCount int    `json:"prompt_eval_count"`
			EvalCount       int    `json:"eval_count"`
		}
		if err := json.Unmarshal([]byte(line), &chunk); err != nil {
			return nil, fmt.Errorf("parse stream chunk: %w", err)
		}
		if chunk.Model != "" {
			model = chunk.Model
		}
		if chunk.Response != "" {
			text.WriteString(chunk.Response)
			if err := onToken(chunk.Response); err != nil {
				return nil, err
			}
		}
		if chunk.Done {
			promptTokens = chunk.PromptEvalCount
			outputTokens = chunk.EvalCount
			break
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read stream: %w", err)
	}

	return &GenerateResponse{
		Text:         text.String(),
		Model:        model,
		PromptTokens: promptTokens,
		OutputTokens: outputTokens,
		TotalTokens:  promptTokens + outputTokens,
		Duration:     time.Since(start),
	}, nil
}
