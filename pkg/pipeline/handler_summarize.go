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

package pipeline

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/kraklabs/recall/pkg/filetype"
	"github.com/kraklabs/recall/pkg/llm"
	"github.com/kraklabs/recall/pkg/partition"
	"github.com/kraklabs/recall/pkg/tokenizer"
)

// Summarization bounds.
const (
	// SummaryMinTokens is the size under which content is kept verbatim
	// instead of summarized.
	SummaryMinTokens = 50

	// DefaultSummaryMaxTokens caps the finished summary.
	DefaultSummaryMaxTokens = 1024
)

// DefaultSummaryPrompt condenses one block of text. {{$input}} is replaced
// with the content.
const DefaultSummaryPrompt = `[SUMMARIZATION RULES]
- Summarize the content below.
- Keep every entity name, number, date, and factual claim.
- Do not add information that is not in the content.
- Reply with the summary only, no preamble.

[CONTENT]
{{$input}}

[SUMMARY]
`

// SummarizeHandler condenses each extracted text into a synthetic-data
// artifact, iterating map-reduce style until the summary fits the token cap.
// A summary that stops shrinking between iterations fails the step; partial
// summaries are never persisted.
type SummarizeHandler struct {
	orchestrator *Orchestrator
	provider     llm.Provider
	tok          tokenizer.Tokenizer
	maxTokens    int
	prompt       string
	logger       *slog.Logger
}

// NewSummarizeHandler creates the summarize step handler. Zero maxTokens
// falls back to DefaultSummaryMaxTokens.
func NewSummarizeHandler(o *Orchestrator, provider llm.Provider, tok tokenizer.Tokenizer, maxTokens int, logger *slog.Logger) *SummarizeHandler {
	if logger == nil {
		logger = slog.Default()
	}
	if tok == nil {
		tok = tokenizer.Default()
	}
	if maxTokens <= 0 {
		maxTokens = DefaultSummaryMaxTokens
	}
	return &SummarizeHandler{
		orchestrator: o,
		provider:     provider,
		tok:          tok,
		maxTokens:    maxTokens,
		prompt:       DefaultSummaryPrompt,
		logger:       logger,
	}
}

func (h *SummarizeHandler) StepName() string { return StepSummarize }

// Invoke summarizes every extracted artifact not yet processed.
func (h *SummarizeHandler) Invoke(ctx context.Context, p *DataPipeline) (Outcome, error) {
	for _, file := range p.Files {
		var sources []*GeneratedFileDescriptor
		for _, artifact := range file.GeneratedFiles {
			if artifact.ArtifactType == ArtifactExtractedText &&
				filetype.IsTextual(artifact.MimeType) &&
				!artifact.IsProcessedBy(StepSummarize) {
				sources = append(sources, artifact)
			}
		}

		for _, source := range sources {
			if err := ctx.Err(); err != nil {
				return TransientError, err
			}

			text, err := h.orchestrator.ReadTextFile(ctx, p, source.Name)
			if err != nil {
				return TransientError, fmt.Errorf("read artifact %q: %w", source.Name, err)
			}

			summary, err := h.summarize(ctx, text)
			if err != nil {
				return TransientError, fmt.Errorf("summarize %q: %w", source.Name, err)
			}

			artifactName := file.Name + ".summarize.txt"
			if err := h.orchestrator.WriteTextFile(ctx, p, artifactName, summary); err != nil {
				return TransientError, fmt.Errorf("write summary %q: %w", artifactName, err)
			}
			sum := sha256.Sum256([]byte(summary))
			file.GeneratedFiles[artifactName] = &GeneratedFileDescriptor{
				ID:            uuid.NewString(),
				ParentID:      file.ID,
				Name:          artifactName,
				Size:          int64(len(summary)),
				MimeType:      filetype.MimePlainText,
				ContentSHA256: hex.EncodeToString(sum[:]),
				ArtifactType:  ArtifactSyntheticData,
				ProcessedBy:   []string{StepSummarize},
			}
			source.MarkProcessedBy(StepSummarize)
		}
	}
	return Success, nil
}

// summarize condenses text under the token cap. Content below
// SummaryMinTokens is returned verbatim.
func (h *SummarizeHandler) summarize(ctx context.Context, text string) (string, error) {
	tokens := h.tok.CountTokens(text)
	if tokens < SummaryMinTokens {
		return text, nil
	}

	splitter := partition.NewSplitter(h.tok, partition.Options{
		MaxTokensPerParagraph: h.maxTokens / 2,
	})

	firstIteration := true
	prevTokens := tokens
	overlapped := true
	for tokens > h.maxTokens || overlapped {
		chunks := splitter.SplitPlainText(text)
		overlapped = len(chunks) > 1

		var sb strings.Builder
		for _, chunk := range chunks {
			if err := ctx.Err(); err != nil {
				return "", err
			}
			resp, err := h.provider.Generate(ctx, llm.GenerateRequest{
				Prompt:    strings.ReplaceAll(h.prompt, "{{$input}}", chunk),
				MaxTokens: h.maxTokens,
			})
			if err != nil {
				return "", err
			}
			if sb.Len() > 0 {
				sb.WriteString("\n")
			}
			sb.WriteString(strings.TrimSpace(resp.Text))
		}

		text = sb.String()
		tokens = h.tok.CountTokens(text)
		if !firstIteration && tokens >= prevTokens {
			// Guard against runaway models that stop condensing.
			return "", fmt.Errorf("summary not shrinking: %d tokens after %d", tokens, prevTokens)
		}
		prevTokens = tokens
		firstIteration = false
	}
	return text, nil
}
