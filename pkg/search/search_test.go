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

package search

import (
	"context"
	"strings"
	"testing"

	"github.com/kraklabs/recall/pkg/embeddings"
	"github.com/kraklabs/recall/pkg/llm"
	"github.com/kraklabs/recall/pkg/tokenizer"
	"github.com/kraklabs/recall/pkg/vectorstore"
)

// stubStore serves canned hits so tests control relevance ordering exactly.
type stubStore struct {
	hits    []vectorstore.SearchHit
	records []*vectorstore.MemoryRecord
}

func (s *stubStore) CreateIndex(ctx context.Context, index string, vectorSize int) error { return nil }
func (s *stubStore) DeleteIndex(ctx context.Context, index string) error                 { return nil }
func (s *stubStore) ListIndexes(ctx context.Context) ([]vectorstore.IndexDetails, error) {
	return []vectorstore.IndexDetails{{Name: "default", Records: int64(len(s.records))}}, nil
}
func (s *stubStore) Upsert(ctx context.Context, index string, record *vectorstore.MemoryRecord) error {
	return nil
}
func (s *stubStore) DeleteByID(ctx context.Context, index, id string) error { return nil }
func (s *stubStore) DeleteByFilter(ctx context.Context, index string, filters ...vectorstore.MemoryFilter) error {
	return nil
}
func (s *stubStore) Search(ctx context.Context, index string, vector []float32, filters []vectorstore.MemoryFilter, minRelevance float64, limit int) ([]vectorstore.SearchHit, error) {
	if len(s.hits) > limit {
		return s.hits[:limit], nil
	}
	return s.hits, nil
}
func (s *stubStore) List(ctx context.Context, index string, filters []vectorstore.MemoryFilter, limit int) ([]*vectorstore.MemoryRecord, error) {
	var out []*vectorstore.MemoryRecord
	for _, r := range s.records {
		if vectorstore.AnyMatches(filters, r) {
			out = append(out, r)
		}
	}
	return out, nil
}
func (s *stubStore) Close() error { return nil }

func record(id, docID, fileID, fileName, text string) *vectorstore.MemoryRecord {
	return &vectorstore.MemoryRecord{
		ID:     id,
		Vector: []float32{1, 0},
		Tags: map[string][]string{
			vectorstore.TagDocumentID: {docID},
			vectorstore.TagFileID:     {fileID},
			"user":                    {"hulk"},
		},
		Payload: map[string]any{
			vectorstore.PayloadFileName: fileName,
			vectorstore.PayloadText:     text,
		},
	}
}

func setupClient(t *testing.T, store vectorstore.Store, gen llm.Provider, mod llm.Moderator, cfg Config) *Client {
	t.Helper()
	tok := tokenizer.NewHeuristic()
	embedder := embeddings.NewGenerator(embeddings.NewMockProvider(8), tok, 1, nil)
	return NewClient(store, embedder, gen, mod, tok, cfg, nil)
}

func TestSearchFilterOnlyDegrade(t *testing.T) {
	store := &stubStore{records: []*vectorstore.MemoryRecord{
		record("r1", "doc1", "f1", "a.txt", "green is a great color"),
		record("r2", "doc2", "f2", "b.txt", "red is a great color"),
	}}
	c := setupClient(t, store, llm.NewMockProvider(""), nil, Config{})

	filter := vectorstore.MemoryFilter{}.ByDocument("doc1")
	res, err := c.Search(context.Background(), SearchRequest{
		Index:   "default",
		Filters: []vectorstore.MemoryFilter{filter},
	})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if res.NoResult {
		t.Fatalf("unexpected NoResult: %s", res.NoResultReason)
	}
	if len(res.Results) != 1 || res.Results[0].DocumentID != "doc1" {
		t.Errorf("wrong citations: %+v", res.Results)
	}
}

func TestSearchRequiresQueryOrFilters(t *testing.T) {
	c := setupClient(t, &stubStore{}, llm.NewMockProvider(""), nil, Config{})
	if _, err := c.Search(context.Background(), SearchRequest{Index: "default"}); err == nil {
		t.Error("expected an error for empty query without filters")
	}
}

func TestSearchGroupsHitsByFile(t *testing.T) {
	store := &stubStore{hits: []vectorstore.SearchHit{
		{Record: record("r1", "doc1", "f1", "a.txt", "first chunk"), Relevance: 0.9},
		{Record: record("r2", "doc1", "f1", "a.txt", "second chunk"), Relevance: 0.8},
		{Record: record("r3", "doc2", "f2", "b.txt", "other doc"), Relevance: 0.7},
	}}
	c := setupClient(t, store, llm.NewMockProvider(""), nil, Config{})

	res, err := c.Search(context.Background(), SearchRequest{Index: "default", Query: "chunks"})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(res.Results) != 2 {
		t.Fatalf("got %d citations, want 2", len(res.Results))
	}
	first := res.Results[0]
	if first.DocumentID != "doc1" || len(first.Partitions) != 2 {
		t.Errorf("first citation wrong: %+v", first)
	}
	if first.Partitions[0].Relevance < first.Partitions[1].Relevance {
		t.Error("partitions not in relevance order")
	}
	if first.Partitions[0].Tags[vectorstore.TagDocumentID] != nil {
		t.Error("reserved tags leaked into citation")
	}
	if res.Results[1].DocumentID != "doc2" {
		t.Errorf("second citation wrong: %+v", res.Results[1])
	}
}

func TestCitationsCarryPartitionAndSectionNumbers(t *testing.T) {
	numbered := func(id string, partitionNumber, sectionNumber int) *vectorstore.MemoryRecord {
		r := record(id, "doc1", "f1", "a.txt", "chunk "+id)
		r.Payload[vectorstore.PayloadPartitionNumber] = partitionNumber
		r.Payload[vectorstore.PayloadSectionNumber] = sectionNumber
		return r
	}
	store := &stubStore{hits: []vectorstore.SearchHit{
		{Record: numbered("r1", 3, 1), Relevance: 0.9},
		{Record: numbered("r2", 7, 2), Relevance: 0.8},
	}}
	c := setupClient(t, store, llm.NewMockProvider(""), nil, Config{})

	res, err := c.Search(context.Background(), SearchRequest{Index: "default", Query: "chunks"})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(res.Results) != 1 {
		t.Fatalf("got %d citations, want 1", len(res.Results))
	}
	parts := res.Results[0].Partitions
	if len(parts) != 2 {
		t.Fatalf("got %d partitions, want 2", len(parts))
	}
	if parts[0].PartitionNumber != 3 || parts[0].SectionNumber != 1 {
		t.Errorf("first partition numbers = (%d, %d), want (3, 1)",
			parts[0].PartitionNumber, parts[0].SectionNumber)
	}
	if parts[1].PartitionNumber != 7 || parts[1].SectionNumber != 2 {
		t.Errorf("second partition numbers = (%d, %d), want (7, 2)",
			parts[1].PartitionNumber, parts[1].SectionNumber)
	}
}

func TestSearchNoHits(t *testing.T) {
	c := setupClient(t, &stubStore{}, llm.NewMockProvider(""), nil, Config{})
	res, err := c.Search(context.Background(), SearchRequest{Index: "default", Query: "anything"})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if !res.NoResult || res.NoResultReason != ReasonNoFacts {
		t.Errorf("got %+v, want NoResult with %q", res, ReasonNoFacts)
	}
}

func TestAskNoFacts(t *testing.T) {
	c := setupClient(t, &stubStore{}, llm.NewMockProvider(""), nil, Config{})
	answer, err := c.Ask(context.Background(), AskRequest{Index: "default", Question: "what color"})
	if err != nil {
		t.Fatalf("Ask: %v", err)
	}
	if !answer.NoResult || answer.NoResultReason != ReasonNoFacts {
		t.Errorf("got %+v, want NoFacts", answer)
	}
	if answer.StreamState != StreamReset {
		t.Errorf("StreamState = %q, want %q", answer.StreamState, StreamReset)
	}
}

func TestAskInsufficientTokens(t *testing.T) {
	store := &stubStore{hits: []vectorstore.SearchHit{
		{Record: record("r1", "doc1", "f1", "a.txt", strings.Repeat("long fact ", 100)), Relevance: 0.9},
	}}
	// Budget so small no fact can ever fit.
	c := setupClient(t, store, llm.NewMockProvider(""), nil, Config{
		MaxAskPromptSize: 40,
		AnswerTokens:     10,
		AnswerPrompt:     "{{$facts}}Q: {{$input}} ({{$notFound}})",
		FactTemplate:     "{{$content}}\n",
	})

	answer, err := c.Ask(context.Background(), AskRequest{Index: "default", Question: "what"})
	if err != nil {
		t.Fatalf("Ask: %v", err)
	}
	if !answer.NoResult || answer.NoResultReason != ReasonInsufficientTokens {
		t.Errorf("got %+v, want InsufficientTokens", answer)
	}
}

func TestAskStopsPackingAtFirstOverflow(t *testing.T) {
	store := &stubStore{hits: []vectorstore.SearchHit{
		{Record: record("r1", "doc1", "f1", "a.txt", "green is a great color"), Relevance: 0.9},
		{Record: record("r2", "doc2", "f2", "b.txt", strings.Repeat("filler text ", 50)), Relevance: 0.8},
		{Record: record("r3", "doc3", "f3", "c.txt", "red"), Relevance: 0.7},
	}}

	var prompt string
	mock := llm.NewMockProvider("")
	mock.GenerateFunc = func(ctx context.Context, req llm.GenerateRequest) (*llm.GenerateResponse, error) {
		prompt = req.Prompt
		return &llm.GenerateResponse{Text: "green"}, nil
	}

	c := setupClient(t, store, mock, nil, Config{
		// Budget fits the top fact only; the second overflows, and
		// packing must stop there even though the third would fit.
		MaxAskPromptSize: 31,
		AnswerTokens:     10,
		AnswerPrompt:     "{{$facts}}Q: {{$input}} ({{$notFound}})",
		FactTemplate:     "{{$content}}\n",
	})

	answer, err := c.Ask(context.Background(), AskRequest{Index: "default", Question: "pick a color"})
	if err != nil {
		t.Fatalf("Ask: %v", err)
	}
	if answer.NoResult {
		t.Fatalf("unexpected NoResult: %s", answer.NoResultReason)
	}
	if !strings.Contains(prompt, "green is a great color") {
		t.Error("top fact missing from prompt")
	}
	if strings.Contains(prompt, "filler text") || strings.Contains(prompt, "red") {
		t.Errorf("facts past the overflow leaked into prompt:\n%s", prompt)
	}
	if len(answer.RelevantSources) != 1 || answer.RelevantSources[0].DocumentID != "doc1" {
		t.Errorf("citations should cover packed facts only: %+v", answer.RelevantSources)
	}
}

func TestAskDeduplicatesIdenticalFacts(t *testing.T) {
	store := &stubStore{hits: []vectorstore.SearchHit{
		{Record: record("r1", "doc1", "f1", "a.txt", "green is a great color"), Relevance: 0.9},
		{Record: record("r2", "doc2", "f2", "b.txt", "green is a great color"), Relevance: 0.8},
	}}

	var prompt string
	mock := llm.NewMockProvider("")
	mock.GenerateFunc = func(ctx context.Context, req llm.GenerateRequest) (*llm.GenerateResponse, error) {
		prompt = req.Prompt
		return &llm.GenerateResponse{Text: "green"}, nil
	}
	c := setupClient(t, store, mock, nil, Config{FactTemplate: "{{$content}}\n"})

	answer, err := c.Ask(context.Background(), AskRequest{Index: "default", Question: "pick a color"})
	if err != nil {
		t.Fatalf("Ask: %v", err)
	}
	if got := strings.Count(prompt, "green is a great color"); got != 1 {
		t.Errorf("duplicate fact packed %d times", got)
	}
	if len(answer.RelevantSources) != 1 {
		t.Errorf("got %d citations, want 1", len(answer.RelevantSources))
	}
}

func TestAskStreamAssemblesChunks(t *testing.T) {
	store := &stubStore{hits: []vectorstore.SearchHit{
		{Record: record("r1", "doc1", "f1", "a.txt", "green is a great color"), Relevance: 0.9},
	}}
	mock := llm.NewMockProvider("")
	mock.GenerateFunc = func(ctx context.Context, req llm.GenerateRequest) (*llm.GenerateResponse, error) {
		return &llm.GenerateResponse{Text: "green is the answer"}, nil
	}
	c := setupClient(t, store, mock, nil, Config{})

	var chunks []string
	var final *MemoryAnswer
	answer, err := c.AskStream(context.Background(), AskRequest{Index: "default", Question: "what color"},
		func(a *MemoryAnswer) error {
			switch a.StreamState {
			case StreamAppend:
				chunks = append(chunks, a.Result)
			case StreamReset:
				final = a
			}
			return nil
		})
	if err != nil {
		t.Fatalf("AskStream: %v", err)
	}
	if len(chunks) < 2 {
		t.Errorf("got %d chunks, want several", len(chunks))
	}
	if strings.TrimSpace(strings.Join(chunks, "")) != answer.Result {
		t.Errorf("chunks %q do not assemble into %q", strings.Join(chunks, ""), answer.Result)
	}
	if final == nil || final.Result != answer.Result {
		t.Error("final snapshot missing or inconsistent")
	}
	if len(answer.TokenUsage) == 0 {
		t.Error("token usage not accounted")
	}
}

func TestAskTreatsSentinelAsNoFacts(t *testing.T) {
	store := &stubStore{hits: []vectorstore.SearchHit{
		{Record: record("r1", "doc1", "f1", "a.txt", "unrelated content"), Relevance: 0.4},
	}}
	mock := llm.NewMockProvider("")
	mock.GenerateFunc = func(ctx context.Context, req llm.GenerateRequest) (*llm.GenerateResponse, error) {
		// Decorated sentinel must still count as "no answer".
		return &llm.GenerateResponse{Text: "INFO NOT FOUND."}, nil
	}
	c := setupClient(t, store, mock, nil, Config{})

	answer, err := c.Ask(context.Background(), AskRequest{Index: "default", Question: "what color"})
	if err != nil {
		t.Fatalf("Ask: %v", err)
	}
	if !answer.NoResult || answer.NoResultReason != ReasonNoFacts {
		t.Errorf("got %+v, want NoFacts", answer)
	}
}

func TestAskModerationGate(t *testing.T) {
	store := &stubStore{hits: []vectorstore.SearchHit{
		{Record: record("r1", "doc1", "f1", "a.txt", "some content"), Relevance: 0.9},
	}}
	mock := llm.NewMockProvider("")
	mock.GenerateFunc = func(ctx context.Context, req llm.GenerateRequest) (*llm.GenerateResponse, error) {
		return &llm.GenerateResponse{Text: "flagged words here"}, nil
	}
	mod := &llm.MockModerator{FlagSubstrings: []string{"flagged"}}
	c := setupClient(t, store, mock, mod, Config{})

	answer, err := c.Ask(context.Background(), AskRequest{Index: "default", Question: "what"})
	if err != nil {
		t.Fatalf("Ask: %v", err)
	}
	if !answer.NoResult || answer.NoResultReason != ReasonModerated {
		t.Errorf("got %+v, want moderated", answer)
	}
	if answer.Result != DefaultModeratedAnswer {
		t.Errorf("Result = %q, want the canned moderated text", answer.Result)
	}
}

func TestAskEnsuresTrailingQuestionMark(t *testing.T) {
	store := &stubStore{hits: []vectorstore.SearchHit{
		{Record: record("r1", "doc1", "f1", "a.txt", "some content"), Relevance: 0.9},
	}}
	var prompt string
	mock := llm.NewMockProvider("")
	mock.GenerateFunc = func(ctx context.Context, req llm.GenerateRequest) (*llm.GenerateResponse, error) {
		prompt = req.Prompt
		return &llm.GenerateResponse{Text: "answer"}, nil
	}
	c := setupClient(t, store, mock, nil, Config{})

	if _, err := c.Ask(context.Background(), AskRequest{Index: "default", Question: "what color"}); err != nil {
		t.Fatalf("Ask: %v", err)
	}
	if !strings.Contains(prompt, "what color?") {
		t.Errorf("question mark not ensured:\n%s", prompt)
	}
}

func TestEqualIgnoringPunctuation(t *testing.T) {
	cases := []struct {
		a, b string
		want bool
	}{
		{"INFO NOT FOUND", "info not found.", true},
		{"'INFO NOT FOUND'", "INFO NOT FOUND", true},
		{"INFO FOUND", "INFO NOT FOUND", false},
		{"", "", true},
	}
	for _, tc := range cases {
		if got := equalIgnoringPunctuation(tc.a, tc.b); got != tc.want {
			t.Errorf("equalIgnoringPunctuation(%q, %q) = %v, want %v", tc.a, tc.b, got, tc.want)
		}
	}
}
