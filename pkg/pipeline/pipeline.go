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

// Package pipeline implements the document ingestion engine: the durable
// DataPipeline status document, the orchestrator that drives it step by step
// (in-process or queue-backed), and the handlers for each step.
package pipeline

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/kraklabs/recall/pkg/vectorstore"
)

// Canonical step names. Each step has exactly one handler registered.
const (
	StepExtract        = "extract"
	StepPartition      = "partition"
	StepSummarize      = "summarize"
	StepEmbed          = "embed"
	StepSaveRecords    = "save_records"
	StepDeleteDocument = "delete_document"
	StepDeleteIndex    = "delete_index"
)

// DefaultSteps is the ingestion plan used when the caller provides none.
var DefaultSteps = []string{StepExtract, StepPartition, StepEmbed, StepSaveRecords}

// StatusFileName is the durable pipeline status document, stored next to the
// document's files. The double-underscore prefix keeps it out of the
// uploadable namespace.
const StatusFileName = "__pipeline_status.json"

// ArtifactType classifies generated files.
type ArtifactType string

const (
	ArtifactExtractedText       ArtifactType = "extracted_text"
	ArtifactTextPartition       ArtifactType = "text_partition"
	ArtifactSyntheticData       ArtifactType = "synthetic_data"
	ArtifactTextEmbeddingVector ArtifactType = "text_embedding_vector"
	ArtifactSummary             ArtifactType = "summary"
)

// ErrPipelineCompleted signals an attempt to advance past the last step.
var ErrPipelineCompleted = errors.New("pipeline already completed")

// FileDescriptor tracks one source file and every artifact derived from it.
type FileDescriptor struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	Size          int64  `json:"size"`
	MimeType      string `json:"mime_type"`
	ContentSHA256 string `json:"content_sha256,omitempty"`

	// ProcessedBy is the set of handler step names that already handled
	// this file (idempotency marker).
	ProcessedBy []string `json:"processed_by,omitempty"`

	// GeneratedFiles maps artifact file name to its descriptor.
	GeneratedFiles map[string]*GeneratedFileDescriptor `json:"generated_files,omitempty"`
}

// GeneratedFileDescriptor describes an artifact produced by a handler.
type GeneratedFileDescriptor struct {
	ID            string `json:"id"`
	ParentID      string `json:"parent_id"`
	Name          string `json:"name"`
	Size          int64  `json:"size"`
	MimeType      string `json:"mime_type"`
	ContentSHA256 string `json:"content_sha256,omitempty"`

	ArtifactType    ArtifactType `json:"artifact_type"`
	PartitionNumber int          `json:"partition_number"`
	SectionNumber   int          `json:"section_number"`

	// SourcePartition is the partition artifact an embedding was computed
	// from; empty for other artifact types.
	SourcePartition string `json:"source_partition,omitempty"`

	ProcessedBy []string `json:"processed_by,omitempty"`
}

// IsProcessedBy reports whether the handler already touched this file.
func (f *FileDescriptor) IsProcessedBy(step string) bool {
	return slices.Contains(f.ProcessedBy, step)
}

// MarkProcessedBy records the handler in the idempotency set.
func (f *FileDescriptor) MarkProcessedBy(step string) {
	if !f.IsProcessedBy(step) {
		f.ProcessedBy = append(f.ProcessedBy, step)
	}
}

// IsProcessedBy reports whether the handler already touched this artifact.
func (g *GeneratedFileDescriptor) IsProcessedBy(step string) bool {
	return slices.Contains(g.ProcessedBy, step)
}

// MarkProcessedBy records the handler in the idempotency set.
func (g *GeneratedFileDescriptor) MarkProcessedBy(step string) {
	if !g.IsProcessedBy(step) {
		g.ProcessedBy = append(g.ProcessedBy, step)
	}
}

// DataPipeline is the durable status document for one execution of a
// document's ingestion plan. It is persisted before any destructive work and
// rewritten after each step transition.
type DataPipeline struct {
	Index       string `json:"index"`
	DocumentID  string `json:"document_id"`
	ExecutionID string `json:"execution_id"`

	// Steps is the full ordered plan; RemainingSteps and CompletedSteps
	// are disjoint partitions of it, with the boundary moving forward
	// only.
	Steps          []string `json:"steps"`
	RemainingSteps []string `json:"remaining_steps"`
	CompletedSteps []string `json:"completed_steps"`

	Tags map[string][]string `json:"tags,omitempty"`

	Creation   time.Time `json:"creation"`
	LastUpdate time.Time `json:"last_update"`

	Files []*FileDescriptor `json:"files"`

	// PreviousExecutionsToPurge holds snapshots of prior executions of the
	// same (index, documentID) whose derived records must be retired by
	// save_records. Kept one level deep: appended snapshots have their own
	// purge list flattened and cleared.
	PreviousExecutionsToPurge []*DataPipeline `json:"previous_executions_to_purge,omitempty"`

	// UploadComplete is transient; never persisted.
	UploadComplete bool `json:"-"`
}

// NewDataPipeline builds a fresh pipeline with a new execution id and the
// whole plan remaining.
func NewDataPipeline(index, documentID string, steps []string, tags map[string][]string) *DataPipeline {
	now := time.Now().UTC()
	return &DataPipeline{
		Index:          index,
		DocumentID:     documentID,
		ExecutionID:    uuid.NewString(),
		Steps:          slices.Clone(steps),
		RemainingSteps: slices.Clone(steps),
		CompletedSteps: []string{},
		Tags:           tags,
		Creation:       now,
		LastUpdate:     now,
		Files:          []*FileDescriptor{},
	}
}

// Complete reports whether every step has run.
func (p *DataPipeline) Complete() bool {
	return len(p.RemainingSteps) == 0
}

// CurrentStep returns the next step to run, or "" when complete.
func (p *DataPipeline) CurrentStep() string {
	if len(p.RemainingSteps) == 0 {
		return ""
	}
	return p.RemainingSteps[0]
}

// MoveForward advances the step boundary by one and bumps LastUpdate.
func (p *DataPipeline) MoveForward() error {
	if len(p.RemainingSteps) == 0 {
		return ErrPipelineCompleted
	}
	p.CompletedSteps = append(p.CompletedSteps, p.RemainingSteps[0])
	p.RemainingSteps = p.RemainingSteps[1:]
	p.touch()
	return nil
}

// RollBack moves the given step from the tail of CompletedSteps back to the
// head of RemainingSteps. Used when a queue message arrives for a step the
// status shows as just completed: the process crashed between persisting the
// status and enqueueing the next step.
func (p *DataPipeline) RollBack(step string) error {
	if len(p.CompletedSteps) == 0 {
		return fmt.Errorf("cannot roll back %q: no completed steps", step)
	}
	last := p.CompletedSteps[len(p.CompletedSteps)-1]
	if last != step {
		return fmt.Errorf("cannot roll back %q: last completed step is %q", step, last)
	}
	p.CompletedSteps = p.CompletedSteps[:len(p.CompletedSteps)-1]
	p.RemainingSteps = append([]string{step}, p.RemainingSteps...)
	p.touch()
	return nil
}

// touch bumps LastUpdate, keeping it monotonic non-decreasing.
func (p *DataPipeline) touch() {
	now := time.Now().UTC()
	if now.After(p.LastUpdate) {
		p.LastUpdate = now
	}
}

// Validate checks the structural invariants of the status document.
func (p *DataPipeline) Validate() error {
	if p.Index == "" {
		return fmt.Errorf("pipeline has no index")
	}
	if p.DocumentID == "" {
		return fmt.Errorf("pipeline has no document id")
	}
	if len(p.Steps) == 0 {
		return fmt.Errorf("pipeline has no steps")
	}
	if err := ValidateSteps(p.Steps); err != nil {
		return err
	}
	if len(p.CompletedSteps)+len(p.RemainingSteps) != len(p.Steps) {
		return fmt.Errorf("step partitions do not cover the plan: %d completed + %d remaining != %d steps",
			len(p.CompletedSteps), len(p.RemainingSteps), len(p.Steps))
	}
	if !slices.Equal(append(slices.Clone(p.CompletedSteps), p.RemainingSteps...), p.Steps) {
		return fmt.Errorf("completed and remaining steps do not concatenate to the plan")
	}

	fileIDs := make(map[string]bool, len(p.Files))
	for _, f := range p.Files {
		fileIDs[f.ID] = true
	}
	for _, f := range p.Files {
		for name, g := range f.GeneratedFiles {
			if !fileIDs[g.ParentID] {
				return fmt.Errorf("artifact %q references unknown parent %q", name, g.ParentID)
			}
		}
	}
	return nil
}

// GetFile finds a source file by id.
func (p *DataPipeline) GetFile(id string) (*FileDescriptor, bool) {
	for _, f := range p.Files {
		if f.ID == id {
			return f, true
		}
	}
	return nil, false
}

// ValidateSteps rejects empty step names and a handler chained to itself.
func ValidateSteps(steps []string) error {
	for i, step := range steps {
		if step == "" {
			return fmt.Errorf("step %d is empty", i)
		}
		if i > 0 && steps[i-1] == step {
			return fmt.Errorf("step %q appears twice in a row", step)
		}
	}
	return nil
}

// ValidateTags rejects user tags in the reserved double-underscore namespace.
func ValidateTags(tags map[string][]string) error {
	for key := range tags {
		if strings.HasPrefix(key, vectorstore.ReservedTagPrefix) {
			return fmt.Errorf("tag %q uses the reserved %q prefix", key, vectorstore.ReservedTagPrefix)
		}
	}
	return nil
}
