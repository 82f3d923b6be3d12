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
	"time"
)

// StreamState tells a streaming consumer how to apply a MemoryAnswer
// snapshot to its local view.
type StreamState string

const (
	// StreamAppend appends the snapshot's Result to the accumulated text.
	StreamAppend StreamState = "append"

	// StreamReset replaces the accumulated text with the snapshot's Result.
	// The final snapshot of every stream is a Reset carrying the full
	// answer and its citations.
	StreamReset StreamState = "reset"

	// StreamError aborts the stream.
	StreamError StreamState = "error"
)

// Reasons attached to NoResult answers.
const (
	ReasonNoFacts            = "no facts available"
	ReasonInsufficientTokens = "unable to fit any fact in the prompt token budget"
	ReasonModerated          = "content moderation"
)

// CitationPartition is one matched chunk inside a cited file.
type CitationPartition struct {
	Text            string              `json:"text"`
	Relevance       float64             `json:"relevance"`
	PartitionNumber int                 `json:"partition_number"`
	SectionNumber   int                 `json:"section_number"`
	LastUpdate      string              `json:"last_update,omitempty"`
	Tags            map[string][]string `json:"tags,omitempty"`
}

// Citation groups the matched partitions of one source file.
type Citation struct {
	Index      string              `json:"index"`
	DocumentID string              `json:"document_id"`
	FileID     string              `json:"file_id"`
	SourceName string              `json:"source_name"`
	SourceType string              `json:"source_type,omitempty"`
	Partitions []CitationPartition `json:"partitions"`
}

// SearchResult is the response of a similarity or filter-only search.
type SearchResult struct {
	Query          string     `json:"query"`
	NoResult       bool       `json:"no_result"`
	NoResultReason string     `json:"no_result_reason,omitempty"`
	Results        []Citation `json:"results"`
}

// TokenUsage accounts tokens spent on one model call.
type TokenUsage struct {
	Timestamp    time.Time `json:"timestamp"`
	Service      string    `json:"service"`
	Model        string    `json:"model"`
	InputTokens  int       `json:"input_tokens"`
	OutputTokens int       `json:"output_tokens"`
}

// MemoryAnswer is the response of Ask. During streaming, intermediate
// snapshots carry StreamState=StreamAppend with a Result fragment; the final
// snapshot is StreamState=StreamReset with the complete answer, citations,
// and token usage.
type MemoryAnswer struct {
	StreamState     StreamState   `json:"stream_state,omitempty"`
	Question        string        `json:"question"`
	NoResult        bool          `json:"no_result"`
	NoResultReason  string        `json:"no_result_reason,omitempty"`
	Result          string        `json:"text"`
	RelevantSources []Citation    `json:"relevant_sources,omitempty"`
	TokenUsage      []*TokenUsage `json:"token_usage,omitempty"`
}

// noResultAnswer builds a terminal NoResult snapshot.
func noResultAnswer(question, reason, text string) *MemoryAnswer {
	return &MemoryAnswer{
		StreamState:    StreamReset,
		Question:       question,
		NoResult:       true,
		NoResultReason: reason,
		Result:         text,
	}
}
