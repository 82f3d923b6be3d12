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
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestNewProviderFactory(t *testing.T) {
	tests := []struct {
		typ     string
		wantErr bool
	}{
		{"mock", false},
		{"", false},
		{"openai", false},
		{"ollama", false},
		{"gemini", true},
	}
	for _, tt := range tests {
		_, err := NewProvider(Config{Type: tt.typ})
		if tt.wantErr && err == nil {
			t.Errorf("NewProvider(%q): expected error", tt.typ)
		}
		if !tt.wantErr && err != nil {
			t.Errorf("NewProvider(%q) failed: %v", tt.typ, err)
		}
	}
}

func TestOpenAIGenerate(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		fmt.Fprint(w, `{
			"choices":[{"message":{"content":"Paris is the capital."}}],
			"model":"gpt-4o-mini",
			"usage":{"prompt_tokens":12,"completion_tokens":5,"total_tokens":17}
		}`)
	}))
	defer server.Close()

	p := newOpenAIProvider(Config{BaseURL: server.URL, APIKey: "k"}.withDefaults())
	resp, err := p.Generate(context.Background(), GenerateRequest{Prompt: "capital of France?"})
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	if resp.Text != "Paris is the capital." {
		t.Errorf("unexpected text: %q", resp.Text)
	}
	if resp.TotalTokens != 17 {
		t.Errorf("unexpected token usage: %d", resp.TotalTokens)
	}
}

func TestOpenAIGenerateStream(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		chunks := []string{
			`data: {"model":"gpt-4o-mini","choices":[{"delta":{"content":"Hel"}}]}`,
			`data: {"choices":[{"delta":{"content":"lo"}}]}`,
			`data: {"choices":[{"delta":{}}]}`,
			`data: [DONE]`,
		}
		for _, c := range chunks {
			fmt.Fprintf(w, "%s\n\n", c)
		}
	}))
	defer server.Close()

	p := newOpenAIProvider(Config{BaseURL: server.URL}.withDefaults())

	var tokens []string
	resp, err := p.GenerateStream(context.Background(), GenerateRequest{Prompt: "hi"}, func(chunk string) error {
		tokens = append(tokens, chunk)
		return nil
	})
	if err != nil {
		t.Fatalf("GenerateStream failed: %v", err)
	}
	if resp.Text != "Hello" {
		t.Errorf("assembled text = %q, want Hello", resp.Text)
	}
	if len(tokens) != 2 || tokens[0] != "Hel" || tokens[1] != "lo" {
		t.Errorf("unexpected token sequence: %v", tokens)
	}
}

func TestOpenAIStreamAbortsOnCallbackError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		for i := 0; i < 10; i++ {
			fmt.Fprintf(w, "data: {\"choices\":[{\"delta\":{\"content\":\"x\"}}]}\n\n")
		}
		fmt.Fprint(w, "data: [DONE]\n\n")
	}))
	defer server.Close()

	p := newOpenAIProvider(Config{BaseURL: server.URL}.withDefaults())

	calls := 0
	_, err := p.GenerateStream(context.Background(), GenerateRequest{Prompt: "hi"}, func(chunk string) error {
		calls++
		if calls == 3 {
			return errors.New("client went away")
		}
		return nil
	})
	if err == nil {
		t.Fatal("expected callback error to propagate")
	}
	if calls != 3 {
		t.Errorf("stream continued after abort: %d calls", calls)
	}
}

func TestOllamaGenerateStream(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/generate" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		lines := []string{
			`{"model":"llama3.2","response":"The ","done":false}`,
			`{"response":"answer","done":false}`,
			`{"response":"","done":true,"prompt_eval_count":9,"eval_count":2}`,
		}
		for _, l := range lines {
			fmt.Fprintln(w, l)
		}
	}))
	defer server.Close()

	p := newOllamaProvider(Config{BaseURL: server.URL}.withDefaults())

	var got strings.Builder
	resp, err := p.GenerateStream(context.Background(), GenerateRequest{Prompt: "q"}, func(chunk string) error {
		got.WriteString(chunk)
		return nil
	})
	if err != nil {
		t.Fatalf("GenerateStream failed: %v", err)
	}
	if resp.Text != "The answer" || got.String() != "The answer" {
		t.Errorf("unexpected text: %q / %q", resp.Text, got.String())
	}
	if resp.TotalTokens != 11 {
		t.Errorf("unexpected token usage: %d", resp.TotalTokens)
	}
}

func TestMockProviderStreamMatchesGenerate(t *testing.T) {
	p := NewMockProvider("")
	p.GenerateFunc = func(ctx context.Context, req GenerateRequest) (*GenerateResponse, error) {
		return &GenerateResponse{Text: "one two three", Model: "mock-model"}, nil
	}

	var streamed strings.Builder
	resp, err := p.GenerateStream(context.Background(), GenerateRequest{}, func(chunk string) error {
		streamed.WriteString(chunk)
		return nil
	})
	if err != nil {
		t.Fatalf("GenerateStream failed: %v", err)
	}
	if streamed.String() != resp.Text {
		t.Errorf("streamed %q != generated %q", streamed.String(), resp.Text)
	}
}

func TestOpenAIModerator(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/moderations" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		fmt.Fprint(w, `{"results":[{"flagged":true}]}`)
	}))
	defer server.Close()

	m := NewOpenAIModerator("k", server.URL, "")
	safe, err := m.IsSafe(context.Background(), "bad text")
	if err != nil {
		t.Fatalf("IsSafe failed: %v", err)
	}
	if safe {
		t.Error("flagged text reported safe")
	}
}

func TestMockModerator(t *testing.T) {
	m := &MockModerator{FlagSubstrings: []string{"forbidden"}}

	safe, _ := m.IsSafe(context.Background(), "a perfectly fine answer")
	if !safe {
		t.Error("clean text flagged")
	}
	safe, _ = m.IsSafe(context.Background(), "contains FORBIDDEN content")
	if safe {
		t.Error("flagged substring missed")
	}
}
