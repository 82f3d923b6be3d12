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
)

// ExtractHandler turns every source file into a plain-text artifact, routing
// by MIME type through the extractor registry. Textual files pass through
// with their flavor (plain or markdown) preserved.
type ExtractHandler struct {
	orchestrator *Orchestrator
	extractors   *filetype.Registry
	logger       *slog.Logger
}

// NewExtractHandler creates the extract step handler.
func NewExtractHandler(o *Orchestrator, extractors *filetype.Registry, logger *slog.Logger) *ExtractHandler {
	if logger == nil {
		logger = slog.Default()
	}
	if extractors == nil {
		extractors = filetype.NewRegistry()
	}
	return &ExtractHandler{orchestrator: o, extractors: extractors, logger: logger}
}

func (h *ExtractHandler) StepName() string { return StepExtract }

// Invoke extracts text from every source file not yet processed.
func (h *ExtractHandler) Invoke(ctx context.Context, p *DataPipeline) (Outcome, error) {
	for _, file := range p.Files {
		if file.IsProcessedBy(StepExtract) {
			continue
		}
		if err := ctx.Err(); err != nil {
			return TransientError, err
		}

		content, err := h.orchestrator.ReadFile(ctx, p, file.Name)
		if err != nil {
			return TransientError, fmt.Errorf("read source %q: %w", file.Name, err)
		}

		text, outMime, sections, ok, err := h.extract(ctx, file.MimeType, content)
		if err != nil {
			return FatalError, fmt.Errorf("extract %q: %w", file.Name, err)
		}
		if !ok {
			// No extractor for this MIME type (e.g. images without
			// OCR): skip the file, but don't fail the document.
			h.logger.Warn("pipeline.extract.unsupported",
				"index", p.Index, "document_id", p.DocumentID,
				"file", file.Name, "mime_type", file.MimeType)
			file.MarkProcessedBy(StepExtract)
			continue
		}

		artifactName := file.Name + ".extract.txt"
		if err := h.orchestrator.WriteTextFile(ctx, p, artifactName, text); err != nil {
			return TransientError, fmt.Errorf("write artifact %q: %w", artifactName, err)
		}

		sum := sha256.Sum256([]byte(text))
		file.GeneratedFiles[artifactName] = &GeneratedFileDescriptor{
			ID:            uuid.NewString(),
			ParentID:      file.ID,
			Name:          artifactName,
			Size:          int64(len(text)),
			MimeType:      outMime,
			ContentSHA256: hex.EncodeToString(sum[:]),
			ArtifactType:  ArtifactExtractedText,
			SectionNumber: sections,
			ProcessedBy:   []string{StepExtract},
		}
		file.MarkProcessedBy(StepExtract)
	}
	return Success, nil
}

// extract returns the text, its output MIME flavor, the section count, and
// whether an extractor was available.
func (h *ExtractHandler) extract(ctx context.Context, mime string, content []byte) (string, string, int, bool, error) {
	// Textual content passes through; markdown keeps its flavor so the
	// partitioner can pick the markdown-aware splitter.
	if filetype.IsTextual(mime) {
		return string(content), mime, 1, true, nil
	}
	if mime == filetype.MimeJSON {
		return string(content), filetype.MimePlainText, 1, true, nil
	}

	extractor, ok := h.extractors.ForMime(mime)
	if !ok {
		return "", "", 0, false, nil
	}
	sections, err := extractor.Extract(ctx, content)
	if err != nil {
		return "", "", 0, true, err
	}

	var sb strings.Builder
	for i, section := range sections {
		if i > 0 {
			sb.WriteString("\n\n")
		}
		sb.WriteString(section.Text)
	}
	return sb.String(), filetype.MimePlainText, len(sections), true, nil
}
