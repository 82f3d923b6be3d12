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
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Moderator screens generated text before it reaches users.
type Moderator interface {
	// IsSafe reports whether the text passes content moderation.
	IsSafe(ctx context.Context, text string) (bool, error)
}

// OpenAIModerator screens text through the OpenAI moderations endpoint.
type OpenAIModerator struct {
	baseURL string
	apiKey  string
	model   string
	client  *http.Client
}

// NewOpenAIModerator creates a moderation client. Defaults:
// api.openai.com, omni-moderation-latest.
func NewOpenAIModerator(apiKey, baseURL, model string) *OpenAIModerator {
	if baseURL == "" {
		baseURL = "https://api.openai.com/v1"
	}
	if model == "" {
		model = "omni-moderation-latest"
	}
	return &OpenAIModerator{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		apiKey:  apiKey,
		model:   model,
		client:  &http.Client{Timeout: 30 * time.Second},
	}
}

// IsSafe returns false when the moderation endpoint flags the text.
func (m *OpenAIModerator) IsSafe(ctx context.Context, text string) (bool, error) {
	body, err := json.Marshal(map[string]any{
		"model": m.model,
		"input": text,
	})
	if err != nil {
		return false, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.baseURL+"/moderations", bytes.NewReader(body))
	if err != nil {
		return false, err
	}
	req.Header.Set("Content-Type", "application/json")
	if m.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+m.apiKey)
	}

	resp, err := m.client.Do(req)
	if err != nil {
		return false, fmt.Errorf("moderation request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		bodyBytes, _ := io.ReadAll(resp.Body)
		return false, fmt.Errorf("moderation error (status %d): %s", resp.StatusCode, string(bodyBytes))
	}

	var result struct {
		Results []struct {
			Flagged bool `json:"flagged"`
		} `json:"results"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return false, fmt.Errorf("parse response: %w", err)
	}
	if len(result.Results) == 0 {
		return false, fmt.Errorf("moderation returned no results")
	}
	return !result.Results[0].Flagged, nil
}

// MockModerator flags text containing any of the given substrings.
// An empty list passes everything.
type MockModerator struct {
	FlagSubstrings []string
}

func (m *MockModerator) IsSafe(ctx context.Context, text string) (bool, error) {
	lower := strings.ToLower(text)
	for _, s := range m.FlagSubstrings {
		if strings.Contains(lower, strings.ToLower(s)) {
			return false, nil
		}
	}
	return true, nil
}
