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

package tokenizer

import (
	"strings"
	"testing"
)

func TestHeuristicCountTokens(t *testing.T) {
	tok := NewHeuristic()

	tests := []struct {
		name string
		text string
		want int
	}{
		{"empty", "", 0},
		{"one_char", "a", 1},
		{"four_chars", "abcd", 1},
		{"five_chars", "abcde", 2},
		{"sentence", strings.Repeat("word ", 20), 25},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tok.CountTokens(tt.text); got != tt.want {
				t.Errorf("CountTokens(%q) = %d, want %d", tt.text, got, tt.want)
			}
		})
	}
}

func TestHeuristicEncodeDecodeRoundtrip(t *testing.T) {
	tok := NewHeuristic()

	texts := []string{
		"plain ascii text",
		"unicode: ¡hola! ünïcödé 日本語",
		"",
	}
	for _, text := range texts {
		if got := tok.Decode(tok.Encode(text)); got != text {
			t.Errorf("roundtrip mismatch: got %q, want %q", got, text)
		}
	}
}

func TestHeuristicDeterministic(t *testing.T) {
	tok := NewHeuristic()
	text := "the same text counted twice"
	if a, b := tok.CountTokens(text), tok.CountTokens(text); a != b {
		t.Errorf("non-deterministic count: %d vs %d", a, b)
	}
}

func TestDefaultNonNil(t *testing.T) {
	if Default() == nil {
		t.Fatal("Default() returned nil tokenizer")
	}
}
