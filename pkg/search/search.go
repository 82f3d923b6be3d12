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

// Package search implements the retrieval side of the engine: similarity
// search with citation assembly, and grounded answer generation with
// token-budgeted fact packing, streaming, and a moderation gate.
package search

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/kraklabs/recall/pkg/embeddings"
	"github.com/kraklabs/recall/pkg/llm"
	"github.com/kraklabs/recall/pkg/tokenizer"
	"github.com/kraklabs/recall/pkg/vectorstore"
)

// Config bounds and templates for search and ask.
type Config struct {
	// MaxMatchesCount caps how many records a query may touch, regardless
	// of the caller's limit.
	MaxMatchesCount int

	// MaxAskPromptSize is the generator's input window; zero means use the
	// generator's own limit.
	MaxAskPromptSize int

	// AnswerTokens is the output budget reserved for the generated answer.
	AnswerTokens int

	Temperature float64
	TopP        float64

	AnswerPrompt    string
	FactTemplate    string
	EmptyAnswer     string
	ModeratedAnswer string
}

func (c Config) withDefaults() Config {
	if c.MaxMatchesCount <= 0 {
		c.MaxMatchesCount = 100
	}
	if c.AnswerTokens <= 0 {
		c.AnswerTokens = 300
	}
	if c.AnswerPrompt == "" {
		c.AnswerPrompt = DefaultAnswerPrompt
	}
	if c.FactTemplate == "" {
		c.FactTemplate = DefaultFactTemplate
	}
	if c.EmptyAnswer == "" {
		c.EmptyAnswer = DefaultEmptyAnswer
	}
	if c.ModeratedAnswer == "" {
		c.ModeratedAnswer = DefaultModeratedAnswer
	}
	return c
}

// Client answers queries against ingested documents. The moderator is
// optional; when nil, answers are returned unmoderated.
type Client struct {
	store     vectorstore.Store
	embedder  *embeddings.Generator
	generator llm.Provider
	moderator llm.Moderator
	tok       tokenizer.Tokenizer
	cfg       Config
	logger    *slog.Logger
}

// NewClient creates a search client over one vector store.
func NewClient(store vectorstore.Store, embedder *embeddings.Generator, generator llm.Provider, moderator llm.Moderator, tok tokenizer.Tokenizer, cfg Config, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	if tok == nil {
		tok = tokenizer.Default()
	}
	return &Client{
		store:     store,
		embedder:  embedder,
		generator: generator,
		moderator: moderator,
		tok:       tok,
		cfg:       cfg.withDefaults(),
		logger:    logger,
	}
}

// ListIndexes returns the indexes visible in the vector store.
func (c *Client) ListIndexes(ctx context.Context) ([]vectorstore.IndexDetails, error) {
	return c.store.ListIndexes(ctx)
}

// SearchRequest describes one similarity or filter-only search.
type SearchRequest struct {
	Index        string
	Query        string
	Filters      []vectorstore.MemoryFilter
	MinRelevance float64
	Limit        int
}

// Search retrieves matching records and groups them into citations. An empty
// query with filters degrades to a filter-only listing; an empty query
// without filters is an error.
func (c *Client) Search(ctx context.Context, req SearchRequest) (*SearchResult, error) {
	index, err := vectorstore.NormalizeIndexName(req.Index)
	if err != nil {
		return nil, err
	}

	limit := req.Limit
	if limit <= 0 || limit > c.cfg.MaxMatchesCount {
		limit = c.cfg.MaxMatchesCount
	}

	result := &SearchResult{Query: req.Query}

	var hits []vectorstore.SearchHit
	switch {
	case req.Query == "" && len(req.Filters) > 0:
		records, err := c.store.List(ctx, index, req.Filters, limit)
		if err != nil {
			return nil, fmt.Errorf("list records: %w", err)
		}
		for _, r := range records {
			hits = append(hits, vectorstore.SearchHit{Record: r})
		}
	case req.Query == "":
		return nil, fmt.Errorf("search needs a query or at least one filter")
	default:
		vector, _, err := c.embedder.Embed(ctx, req.Query)
		if err != nil {
			return nil, fmt.Errorf("embed query: %w", err)
		}
		hits, err = c.store.Search(ctx, index, vector, req.Filters, req.MinRelevance, limit)
		if err != nil {
			return nil, fmt.Errorf("vector search: %w", err)
		}
	}

	observeSearch(len(hits))
	if len(hits) == 0 {
		result.NoResult = true
		result.NoResultReason = ReasonNoFacts
		return result, nil
	}
	result.Results = groupCitations(index, hits)
	return result, nil
}

// groupCitations folds hits into one citation per (documentID, fileID),
// preserving relevance order both across and within citations.
func groupCitations(index string, hits []vectorstore.SearchHit) []Citation {
	var citations []Citation
	position := make(map[string]int)

	for _, hit := range hits {
		r := hit.Record
		key := r.TagValue(vectorstore.TagDocumentID) + "\x00" + r.TagValue(vectorstore.TagFileID)
		i, ok := position[key]
		if !ok {
			citations = append(citations, Citation{
				Index:      index,
				DocumentID: r.TagValue(vectorstore.TagDocumentID),
				FileID:     r.TagValue(vectorstore.TagFileID),
				SourceName: r.PayloadString(vectorstore.PayloadFileName),
				SourceType: r.TagValue(vectorstore.TagFileType),
			})
			i = len(citations) - 1
			position[key] = i
		}
		citations[i].Partitions = append(citations[i].Partitions, CitationPartition{
			Text:            r.PayloadString(vectorstore.PayloadText),
			Relevance:       hit.Relevance,
			PartitionNumber: payloadInt(r.Payload[vectorstore.PayloadPartitionNumber]),
			SectionNumber:   payloadInt(r.Payload[vectorstore.PayloadSectionNumber]),
			LastUpdate:      r.PayloadString(vectorstore.PayloadLastUpdate),
			Tags:            userTags(r.Tags),
		})
	}
	return citations
}

// userTags filters out the reserved namespace before exposing tags to
// callers.
func userTags(tags map[string][]string) map[string][]string {
	out := make(map[string][]string)
	for key, values := range tags {
		if len(key) >= 2 && key[:2] == vectorstore.ReservedTagPrefix {
			continue
		}
		out[key] = values
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

// payloadInt reads a numeric payload field, tolerating the float64 that JSON
// round-trips produce.
func payloadInt(v any) int {
	switch n := v.(type) {
	case int:
		return n
	case int64:
		return int(n)
	case float64:
		return int(n)
	default:
		return 0
	}
}
