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

	"github.com/google/uuid"

	"github.com/kraklabs/recall/pkg/filetype"
	"github.com/kraklabs/recall/pkg/partition"
	"github.com/kraklabs/recall/pkg/tokenizer"
)

// PartitionHandler splits every extracted-text artifact into token-bounded
// partitions, each written as its own artifact with a deterministic name so
// re-runs overwrite rather than duplicate.
type PartitionHandler struct {
	orchestrator *Orchestrator
	splitter     *partition.Splitter
	logger       *slog.Logger
}

// NewPartitionHandler creates the partition step handler. Zero fields in
// opts fall back to the package defaults.
func NewPartitionHandler(o *Orchestrator, tok tokenizer.Tokenizer, opts partition.Options, logger *slog.Logger) *PartitionHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &PartitionHandler{
		orchestrator: o,
		splitter:     partition.NewSplitter(tok, opts),
		logger:       logger,
	}
}

func (h *PartitionHandler) StepName() string { return StepPartition }

// Invoke partitions every extracted artifact not yet processed.
func (h *PartitionHandler) Invoke(ctx context.Context, p *DataPipeline) (Outcome, error) {
	for _, file := range p.Files {
		// Snapshot: the loop below adds partition artifacts to the map.
		var sources []*GeneratedFileDescriptor
		for _, artifact := range file.GeneratedFiles {
			if artifact.ArtifactType == ArtifactExtractedText && !artifact.IsProcessedBy(StepPartition) {
				sources = append(sources, artifact)
			}
		}

		for _, source := range sources {
			if err := ctx.Err(); err != nil {
				return TransientError, err
			}
			if !filetype.IsTextual(source.MimeType) {
				h.logger.Warn("pipeline.partition.not_textual",
					"index", p.Index, "document_id", p.DocumentID,
					"artifact", source.Name, "mime_type", source.MimeType)
				source.MarkProcessedBy(StepPartition)
				continue
			}

			text, err := h.orchestrator.ReadTextFile(ctx, p, source.Name)
			if err != nil {
				return TransientError, fmt.Errorf("read artifact %q: %w", source.Name, err)
			}

			var chunks []string
			if source.MimeType == filetype.MimeMarkdown {
				chunks = h.splitter.SplitMarkdown(text)
			} else {
				chunks = h.splitter.SplitPlainText(text)
			}

			for i, chunk := range chunks {
				name := fmt.Sprintf("%s.partition.%d.txt", file.Name, i)
				if err := h.orchestrator.WriteTextFile(ctx, p, name, chunk); err != nil {
					return TransientError, fmt.Errorf("write partition %q: %w", name, err)
				}
				sum := sha256.Sum256([]byte(chunk))
				file.GeneratedFiles[name] = &GeneratedFileDescriptor{
					ID:              uuid.NewString(),
					ParentID:        file.ID,
					Name:            name,
					Size:            int64(len(chunk)),
					MimeType:        source.MimeType,
					ContentSHA256:   hex.EncodeToString(sum[:]),
					ArtifactType:    ArtifactTextPartition,
					PartitionNumber: i,
					ProcessedBy:     []string{StepPartition},
				}
			}
			source.MarkProcessedBy(StepPartition)

			h.logger.Info("pipeline.partition.done",
				"index", p.Index, "document_id", p.DocumentID,
				"artifact", source.Name, "partitions", len(chunks))
		}
	}
	return Success, nil
}
