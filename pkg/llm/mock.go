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
	"context"
	"fmt"
	"strings"
	"time"
)

// MockProvider is a test provider that returns predictable responses.
// GenerateFunc, when set, overrides the default canned reply.
type MockProvider struct {
	model        string
	GenerateFunc func(ctx context.Context, req GenerateRequest) (*GenerateResponse, error)
}

// NewMockProvider creates a mock text generator.
func NewMockProvider(model string) *MockProvider {
	if model == "" {
		model = "mock-model"
	}
	return &MockProvider{model: model}
}

func (p *MockProvider) Name() string        { return "mock" }
func (p *MockProvider) MaxInputTokens() int { return 8192 }

func (p *MockProvider) Generate(ctx context.Context, req GenerateRequest) (*GenerateResponse, error) {
	if p.GenerateFunc != nil {
		return p.GenerateFunc(ctx, req)
	}
	return &GenerateResponse{
		Text:         fmt.Sprintf("[mock] Generated response for: %.50s", req.Prompt),
		Model:        p.model,
		PromptTokens: len(req.Prompt) / 4,
		OutputTokens: 20,
		TotalTokens:  len(req.Prompt)/4 + 20,
		Duration:     time.Millisecond,
	}, nil
}

// GenerateStream emits the canned response word by word.
func (p *MockProvider) GenerateStream(ctx context.Context, req GenerateRequest, onToken func(chunk string) error) (*GenerateResponse, error) {
	resp, err := p.Generate(ctx, req)
	if err != nil {
		return nil, err
	}
	words := strings.SplitAfter(resp.Text, " ")
	for _, w := range words {
		if w == "" {
			continue
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if err := onToken(w); err != nil {
			return nil, err
		}
	}
	return resp, nil
}
