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

package embeddings

import "context"

// MockProvider generates deterministic embeddings from a text hash. Not
// semantically meaningful; for local mode and tests only.
type MockProvider struct {
	dimensions int
}

// NewMockProvider creates a mock provider with the given vector size.
func NewMockProvider(dimensions int) *MockProvider {
	if dimensions <= 0 {
		dimensions = 384
	}
	return &MockProvider{dimensions: dimensions}
}

func (m *MockProvider) Name() string    { return "mock" }
func (m *MockProvider) Model() string   { return "mock-embed" }
func (m *MockProvider) Dimensions() int { return m.dimensions }
func (m *MockProvider) MaxTokens() int  { return 8192 }

// Embed derives a unit vector from a djb2 hash of the text.
func (m *MockProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var hash uint64 = 5381
	for _, c := range text {
		hash = ((hash << 5) + hash) + uint64(c)
	}

	vector := make([]float32, m.dimensions)
	for i := 0; i < m.dimensions; i++ {
		val := float32((hash+uint64(i)*7919)%10000) / 10000.0
		vector[i] = val*2.0 - 1.0
	}
	return normalizeVector(vector), nil
}
