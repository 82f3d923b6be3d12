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
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/kraklabs/recall/pkg/embeddings"
	"github.com/kraklabs/recall/pkg/filetype"
)

// EmbeddingArtifact is the JSON body of a text-embedding artifact. It records
// enough provenance to tell vectors from different generators apart.
type EmbeddingArtifact struct {
	SourceFileName    string    `json:"source_file_name"`
	GeneratorProvider string    `json:"generator_provider"`
	GeneratorName     string    `json:"generator_name"`
	Vector            []float32 `json:"vector"`
	VectorSize        int       `json:"vector_size"`
	Timestamp         time.Time `json:"timestamp"`
}

// EmbedHandler computes a vector for every partition and synthetic-data
// artifact. The artifact name carries the generator provider and model, so
// the same content embedded by two generators yields two artifacts.
type EmbedHandler struct {
	orchestrator *Orchestrator
	generator    *embeddings.Generator
	logger       *slog.Logger
}

// NewEmbedHandler creates the embed step handler.
func NewEmbedHandler(o *Orchestrator, generator *embeddings.Generator, logger *slog.Logger) *EmbedHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &EmbedHandler{orchestrator: o, generator: generator, logger: logger}
}

func (h *EmbedHandler) StepName() string { return StepEmbed }

// Invoke embeds every eligible artifact whose vector this generator has not
// produced yet. The gate is the existence of the generator-specific embedding
// artifact, not a per-step marker, so switching the configured generator
// re-embeds content a previous generator already covered.
func (h *EmbedHandler) Invoke(ctx context.Context, p *DataPipeline) (Outcome, error) {
	provider := h.generator.Provider()

	for _, file := range p.Files {
		var sources []*GeneratedFileDescriptor
		for _, artifact := range file.GeneratedFiles {
			if !embeddable(artifact) {
				continue
			}
			name := EmbeddingArtifactName(artifact.Name, provider.Name(), provider.Model())
			if _, done := file.GeneratedFiles[name]; done {
				continue
			}
			sources = append(sources, artifact)
		}

		for _, source := range sources {
			if err := ctx.Err(); err != nil {
				return TransientError, err
			}

			text, err := h.orchestrator.ReadTextFile(ctx, p, source.Name)
			if err != nil {
				return TransientError, fmt.Errorf("read artifact %q: %w", source.Name, err)
			}

			vector, truncated, err := h.generator.Embed(ctx, text)
			if err != nil {
				return TransientError, fmt.Errorf("embed %q: %w", source.Name, err)
			}
			if len(vector) == 0 {
				// A zero-length vector is a provider contract violation,
				// not a transient hiccup.
				return FatalError, fmt.Errorf("provider %s/%s returned an empty vector for %q",
					provider.Name(), provider.Model(), source.Name)
			}
			if truncated {
				h.logger.Warn("pipeline.embed.truncated",
					"index", p.Index, "document_id", p.DocumentID,
					"artifact", source.Name, "max_tokens", provider.MaxTokens())
			}

			body, err := json.Marshal(EmbeddingArtifact{
				SourceFileName:    source.Name,
				GeneratorProvider: provider.Name(),
				GeneratorName:     provider.Model(),
				Vector:            vector,
				VectorSize:        len(vector),
				Timestamp:         time.Now().UTC(),
			})
			if err != nil {
				return FatalError, fmt.Errorf("marshal embedding for %q: %w", source.Name, err)
			}

			name := EmbeddingArtifactName(source.Name, provider.Name(), provider.Model())
			if err := h.orchestrator.WriteFile(ctx, p, name, body); err != nil {
				return TransientError, fmt.Errorf("write embedding %q: %w", name, err)
			}
			sum := sha256.Sum256(body)
			file.GeneratedFiles[name] = &GeneratedFileDescriptor{
				ID:              uuid.NewString(),
				ParentID:        file.ID,
				Name:            name,
				Size:            int64(len(body)),
				MimeType:        filetype.MimeTextEmbedding,
				ContentSHA256:   hex.EncodeToString(sum[:]),
				ArtifactType:    ArtifactTextEmbeddingVector,
				PartitionNumber: source.PartitionNumber,
				SectionNumber:   source.SectionNumber,
				SourcePartition: source.Name,
				ProcessedBy:     []string{StepEmbed},
			}
			source.MarkProcessedBy(StepEmbed)
		}
	}
	return Success, nil
}

// EmbeddingArtifactName builds the deterministic name of an embedding
// artifact. Path separators in model names are flattened so the name stays a
// single file.
func EmbeddingArtifactName(sourceName, provider, model string) string {
	sanitize := strings.NewReplacer("/", "_", "\\", "_", ":", "_")
	return fmt.Sprintf("%s.%s.%s.text_embedding", sourceName, sanitize.Replace(provider), sanitize.Replace(model))
}

// embeddable reports whether an artifact carries text worth a vector.
func embeddable(a *GeneratedFileDescriptor) bool {
	switch a.ArtifactType {
	case ArtifactTextPartition, ArtifactSyntheticData:
		return filetype.IsTextual(a.MimeType)
	default:
		return false
	}
}
