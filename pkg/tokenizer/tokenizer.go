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

// Package tokenizer provides deterministic token counting and encoding for
// prompt budgeting and text partitioning.
package tokenizer

import (
	"fmt"
	"unicode/utf8"

	"github.com/pkoukk/tiktoken-go"
)

// Tokenizer counts and encodes tokens deterministically.
// The same input always produces the same count, so partition boundaries and
// prompt budgets are stable across executions.
type Tokenizer interface {
	// CountTokens returns the number of tokens in text.
	CountTokens(text string) int

	// Encode returns the token ids for text.
	Encode(text string) []int

	// Decode reconstructs text from token ids.
	Decode(tokens []int) string
}

// TiktokenTokenizer wraps a tiktoken encoding (cl100k_base by default), the
// tokenizer family used by OpenAI embedding and chat models.
type TiktokenTokenizer struct {
	enc *tiktoken.Tiktoken
}

// NewTiktoken creates a tokenizer for the given encoding name.
// Common encodings: "cl100k_base" (gpt-3.5/4, text-embedding-3), "o200k_base".
func NewTiktoken(encoding string) (*TiktokenTokenizer, error) {
	if encoding == "" {
		encoding = "cl100k_base"
	}
	enc, err := tiktoken.GetEncoding(encoding)
	if err != nil {
		return nil, fmt.Errorf("get encoding %q: %w", encoding, err)
	}
	return &TiktokenTokenizer{enc: enc}, nil
}

// CountTokens returns the number of tokens in text.
func (t *TiktokenTokenizer) CountTokens(text string) int {
	return len(t.enc.Encode(text, nil, nil))
}

// Encode returns the token ids for text.
func (t *TiktokenTokenizer) Encode(text string) []int {
	return t.enc.Encode(text, nil, nil)
}

// Decode reconstructs text from token ids.
func (t *TiktokenTokenizer) Decode(tokens []int) string {
	return t.enc.Decode(tokens)
}

// HeuristicTokenizer approximates token counts as ceil(chars/4), the common
// rule of thumb for English text. Used when the tiktoken vocabulary cannot be
// loaded (offline environments) and in tests that only need stable counts.
//
// Encode/Decode operate on runes, so Decode(Encode(s)) == s holds, which is
// what the partitioning round-trip relies on.
type HeuristicTokenizer struct{}

// NewHeuristic creates a character-based approximate tokenizer.
func NewHeuristic() *HeuristicTokenizer {
	return &HeuristicTokenizer{}
}

// CountTokens approximates the token count as ceil(runes/4).
func (h *HeuristicTokenizer) CountTokens(text string) int {
	n := utf8.RuneCountInString(text)
	return (n + 3) / 4
}

// Encode maps each rune to its code point.
func (h *HeuristicTokenizer) Encode(text string) []int {
	runes := []rune(text)
	tokens := make([]int, len(runes))
	for i, r := range runes {
		tokens[i] = int(r)
	}
	return tokens
}

// Decode reconstructs text from code points.
func (h *HeuristicTokenizer) Decode(tokens []int) string {
	runes := make([]rune, len(tokens))
	for i, t := range tokens {
		runes[i] = rune(t)
	}
	return string(runes)
}

// Default returns the preferred tokenizer: tiktoken cl100k_base when the
// vocabulary is available, the heuristic tokenizer otherwise.
func Default() Tokenizer {
	tok, err := NewTiktoken("cl100k_base")
	if err != nil {
		return NewHeuristic()
	}
	return tok
}
