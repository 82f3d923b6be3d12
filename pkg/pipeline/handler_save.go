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
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/kraklabs/recall/pkg/vectorstore"
)

// SaveRecordsHandler turns embedding artifacts into memory records and
// upserts them into every configured vector store.
//
// Before writing anything it consolidates: records produced by previous
// executions of the same document that this execution did not reproduce are
// deleted, so a re-upload with fewer partitions leaves no orphans. Record ids
// are deterministic in (documentID, partition name), so reproduced partitions
// are overwritten in place by the upsert.
type SaveRecordsHandler struct {
	orchestrator *Orchestrator
	stores       []vectorstore.Store
	logger       *slog.Logger
}

// NewSaveRecordsHandler creates the save_records step handler.
func NewSaveRecordsHandler(o *Orchestrator, stores []vectorstore.Store, logger *slog.Logger) *SaveRecordsHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &SaveRecordsHandler{orchestrator: o, stores: stores, logger: logger}
}

func (h *SaveRecordsHandler) StepName() string { return StepSaveRecords }

// Invoke consolidates previous executions, then upserts one record per
// embedding artifact.
func (h *SaveRecordsHandler) Invoke(ctx context.Context, p *DataPipeline) (Outcome, error) {
	if err := h.consolidate(ctx, p); err != nil {
		return TransientError, err
	}

	indexCreated := false
	saved := 0
	for _, file := range p.Files {
		for _, artifact := range file.GeneratedFiles {
			if artifact.ArtifactType != ArtifactTextEmbeddingVector || artifact.IsProcessedBy(StepSaveRecords) {
				continue
			}
			if err := ctx.Err(); err != nil {
				return TransientError, err
			}

			record, err := h.buildRecord(ctx, p, file, artifact)
			if err != nil {
				return TransientError, err
			}

			if !indexCreated {
				for _, store := range h.stores {
					if err := store.CreateIndex(ctx, p.Index, len(record.Vector)); err != nil {
						return TransientError, fmt.Errorf("create index %q: %w", p.Index, err)
					}
				}
				indexCreated = true
			}
			for _, store := range h.stores {
				if err := store.Upsert(ctx, p.Index, record); err != nil {
					return TransientError, fmt.Errorf("upsert record %q: %w", record.ID, err)
				}
			}
			artifact.MarkProcessedBy(StepSaveRecords)
			saved++
		}
	}

	h.logger.Info("pipeline.save_records.done",
		"index", p.Index, "document_id", p.DocumentID, "records", saved)
	return Success, nil
}

// consolidate deletes records from previous executions that this execution
// did not reproduce, then clears the purge list. Deletes tolerate absent ids,
// so a retry after a partial pass is harmless.
func (h *SaveRecordsHandler) consolidate(ctx context.Context, p *DataPipeline) error {
	if len(p.PreviousExecutionsToPurge) == 0 {
		return nil
	}

	retained := recordIDSet(p)
	deleted := 0
	for _, prev := range p.PreviousExecutionsToPurge {
		for id := range recordIDSet(prev) {
			if retained[id] {
				continue
			}
			for _, store := range h.stores {
				if err := store.DeleteByID(ctx, p.Index, id); err != nil {
					return fmt.Errorf("purge record %q: %w", id, err)
				}
			}
			deleted++
		}
	}
	if deleted > 0 {
		h.logger.Info("pipeline.save_records.purged",
			"index", p.Index, "document_id", p.DocumentID,
			"executions", len(p.PreviousExecutionsToPurge), "records", deleted)
	}
	p.PreviousExecutionsToPurge = nil
	return nil
}

// recordIDSet collects the record ids a pipeline's embedding artifacts map to.
func recordIDSet(p *DataPipeline) map[string]bool {
	ids := make(map[string]bool)
	for _, file := range p.Files {
		for _, artifact := range file.GeneratedFiles {
			if artifact.ArtifactType == ArtifactTextEmbeddingVector && artifact.SourcePartition != "" {
				ids[vectorstore.NewRecordID(p.DocumentID, artifact.SourcePartition)] = true
			}
		}
	}
	return ids
}

// buildRecord assembles the memory record for one embedding artifact: the
// vector from the artifact, the text from its source partition, the user tags
// from the pipeline, and the reserved provenance tags.
func (h *SaveRecordsHandler) buildRecord(ctx context.Context, p *DataPipeline, file *FileDescriptor, artifact *GeneratedFileDescriptor) (*vectorstore.MemoryRecord, error) {
	data, err := h.orchestrator.ReadFile(ctx, p, artifact.Name)
	if err != nil {
		return nil, fmt.Errorf("read embedding %q: %w", artifact.Name, err)
	}
	var embedding EmbeddingArtifact
	if err := json.Unmarshal(data, &embedding); err != nil {
		return nil, fmt.Errorf("parse embedding %q: %w", artifact.Name, err)
	}

	partition, ok := file.GeneratedFiles[artifact.SourcePartition]
	if !ok {
		return nil, fmt.Errorf("embedding %q references unknown partition %q", artifact.Name, artifact.SourcePartition)
	}
	text, err := h.orchestrator.ReadTextFile(ctx, p, partition.Name)
	if err != nil {
		return nil, fmt.Errorf("read partition %q: %w", partition.Name, err)
	}

	tags := make(map[string][]string, len(p.Tags)+4)
	for key, values := range p.Tags {
		tags[key] = append([]string(nil), values...)
	}
	tags[vectorstore.TagDocumentID] = []string{p.DocumentID}
	tags[vectorstore.TagFileID] = []string{file.ID}
	tags[vectorstore.TagFilePartition] = []string{partition.ID}
	tags[vectorstore.TagFileType] = []string{partition.MimeType}

	return &vectorstore.MemoryRecord{
		ID:     vectorstore.NewRecordID(p.DocumentID, artifact.SourcePartition),
		Vector: embedding.Vector,
		Tags:   tags,
		Payload: map[string]any{
			vectorstore.PayloadFileName:        file.Name,
			vectorstore.PayloadText:            text,
			vectorstore.PayloadLastUpdate:      time.Now().UTC().Format(time.RFC3339),
			vectorstore.PayloadPartitionNumber: partition.PartitionNumber,
			vectorstore.PayloadSectionNumber:   partition.SectionNumber,
			vectorstore.PayloadVectorProvider:  embedding.GeneratorProvider,
			vectorstore.PayloadVectorGenerator: embedding.GeneratorName,
		},
	}, nil
}
