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
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/kraklabs/recall/pkg/contentstore"
	"github.com/kraklabs/recall/pkg/filetype"
	"github.com/kraklabs/recall/pkg/vectorstore"
)

// stepRunner is the execution strategy behind an Orchestrator: in-process
// runs the whole plan synchronously, queue-backed enqueues one pointer
// message per step.
type stepRunner interface {
	// Bind is called when a handler is attached; queue-backed mode
	// subscribes to the step's queue here.
	Bind(o *Orchestrator, step string) error

	// Dispatch schedules execution of the pipeline starting at its
	// current step.
	Dispatch(ctx context.Context, o *Orchestrator, p *DataPipeline) error
}

// Orchestrator drives pipelines through their steps. The execution mode
// (in-process or queue-backed) is fixed at construction by the runner.
type Orchestrator struct {
	store  contentstore.Store
	runner stepRunner
	logger *slog.Logger

	mu       sync.RWMutex
	handlers map[string]Handler
}

func newOrchestrator(store contentstore.Store, runner stepRunner, logger *slog.Logger) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{
		store:    store,
		runner:   runner,
		logger:   logger,
		handlers: make(map[string]Handler),
	}
}

// AttachHandler registers a handler for its step. Attaching two handlers to
// the same step is an error.
func (o *Orchestrator) AttachHandler(h Handler) error {
	o.mu.Lock()
	if _, exists := o.handlers[h.StepName()]; exists {
		o.mu.Unlock()
		return fmt.Errorf("step %q already has a handler", h.StepName())
	}
	o.handlers[h.StepName()] = h
	o.mu.Unlock()

	return o.runner.Bind(o, h.StepName())
}

func (o *Orchestrator) handler(step string) (Handler, bool) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	h, ok := o.handlers[step]
	return h, ok
}

// UploadFile is one source file of an import request.
type UploadFile struct {
	Name    string
	Content []byte
}

// ImportRequest describes a document ingestion.
type ImportRequest struct {
	// Index is normalized before use; empty means the default index.
	Index string

	// DocumentID is stable across re-uploads; generated when empty.
	DocumentID string

	// Tags are attached to every record derived from this document.
	// Keys in the reserved double-underscore namespace are rejected.
	Tags map[string][]string

	// Steps overrides DefaultSteps.
	Steps []string

	Files []UploadFile
}

// ImportDocument validates the request, uploads the files, persists the
// initial status, and schedules the first step. Returns the document id.
//
// Files are written before the status document, so the status never points
// at missing bytes.
func (o *Orchestrator) ImportDocument(ctx context.Context, req ImportRequest) (string, error) {
	index, err := vectorstore.NormalizeIndexName(req.Index)
	if err != nil {
		return "", err
	}
	if err := ValidateTags(req.Tags); err != nil {
		return "", err
	}
	steps := req.Steps
	if len(steps) == 0 {
		steps = DefaultSteps
	}
	if err := ValidateSteps(steps); err != nil {
		return "", err
	}
	if len(req.Files) == 0 {
		return "", fmt.Errorf("import request has no files")
	}
	for _, f := range req.Files {
		if f.Name == "" || strings.HasPrefix(f.Name, "__") {
			return "", fmt.Errorf("file name %q is empty or reserved", f.Name)
		}
	}
	documentID := req.DocumentID
	if documentID == "" {
		documentID = uuid.NewString()
	}

	p := NewDataPipeline(index, documentID, steps, req.Tags)

	if err := o.store.CreateIndexDirectory(ctx, index); err != nil {
		return "", fmt.Errorf("create index directory: %w", err)
	}
	if err := o.store.CreateDocumentDirectory(ctx, index, documentID); err != nil {
		return "", fmt.Errorf("create document directory: %w", err)
	}

	for _, f := range req.Files {
		sum := sha256.Sum256(f.Content)
		descriptor := &FileDescriptor{
			ID:             uuid.NewString(),
			Name:           f.Name,
			Size:           int64(len(f.Content)),
			MimeType:       filetype.Detect(f.Name, f.Content),
			ContentSHA256:  hex.EncodeToString(sum[:]),
			GeneratedFiles: make(map[string]*GeneratedFileDescriptor),
		}
		if err := o.store.WriteFile(ctx, index, documentID, f.Name, f.Content); err != nil {
			return "", fmt.Errorf("upload %q: %w", f.Name, err)
		}
		p.Files = append(p.Files, descriptor)
	}
	p.UploadComplete = true

	if err := o.capturePreviousExecution(ctx, p); err != nil {
		return "", err
	}
	if err := o.PersistStatus(ctx, p); err != nil {
		return "", err
	}

	o.logger.Info("pipeline.import.accepted",
		"index", index, "document_id", documentID,
		"execution_id", p.ExecutionID, "files", len(p.Files), "steps", steps)

	if err := o.runner.Dispatch(ctx, o, p); err != nil {
		return documentID, err
	}
	return documentID, nil
}

// capturePreviousExecution appends any prior status for the same document to
// the purge list. The prior snapshot's own purge list is flattened into the
// new one and cleared on the copy, keeping the tree one level deep.
func (o *Orchestrator) capturePreviousExecution(ctx context.Context, p *DataPipeline) error {
	prev, err := o.ReadPipelineStatus(ctx, p.Index, p.DocumentID)
	if errors.Is(err, contentstore.ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read previous status: %w", err)
	}
	if prev.ExecutionID == p.ExecutionID {
		return nil
	}

	p.PreviousExecutionsToPurge = append(p.PreviousExecutionsToPurge, prev.PreviousExecutionsToPurge...)
	prev.PreviousExecutionsToPurge = nil
	p.PreviousExecutionsToPurge = append(p.PreviousExecutionsToPurge, prev)
	return nil
}

// StartDocumentDeletion schedules a single-step pipeline that removes a
// document's records and files.
func (o *Orchestrator) StartDocumentDeletion(ctx context.Context, index, documentID string) error {
	index, err := vectorstore.NormalizeIndexName(index)
	if err != nil {
		return err
	}
	if documentID == "" {
		return fmt.Errorf("document id is empty")
	}

	p := NewDataPipeline(index, documentID, []string{StepDeleteDocument}, nil)
	if err := o.PersistStatus(ctx, p); err != nil {
		return err
	}
	return o.runner.Dispatch(ctx, o, p)
}

// StartIndexDeletion schedules a single-step pipeline that drops an index.
func (o *Orchestrator) StartIndexDeletion(ctx context.Context, index string) error {
	index, err := vectorstore.NormalizeIndexName(index)
	if err != nil {
		return err
	}

	// The status needs a document directory to live in; the whole index
	// directory goes away when the step completes.
	p := NewDataPipeline(index, uuid.NewString(), []string{StepDeleteIndex}, nil)
	if err := o.PersistStatus(ctx, p); err != nil {
		return err
	}
	return o.runner.Dispatch(ctx, o, p)
}

// ReadPipelineStatus loads the canonical status document, or
// contentstore.ErrNotFound.
func (o *Orchestrator) ReadPipelineStatus(ctx context.Context, index, documentID string) (*DataPipeline, error) {
	data, err := o.store.ReadFile(ctx, index, documentID, StatusFileName)
	if err != nil {
		return nil, err
	}
	var p DataPipeline
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("parse status for %s/%s: %w", index, documentID, err)
	}
	return &p, nil
}

// IsDocumentReady reports whether a document finished ingesting: status
// exists, is complete, and covers at least one file.
func (o *Orchestrator) IsDocumentReady(ctx context.Context, index, documentID string) (bool, error) {
	p, err := o.ReadPipelineStatus(ctx, index, documentID)
	if errors.Is(err, contentstore.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return p.Complete() && len(p.Files) > 0, nil
}

// PersistStatus writes the status document atomically.
func (o *Orchestrator) PersistStatus(ctx context.Context, p *DataPipeline) error {
	if err := p.Validate(); err != nil {
		return fmt.Errorf("refusing to persist invalid status: %w", err)
	}
	data, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal status: %w", err)
	}
	if err := o.store.WriteFile(ctx, p.Index, p.DocumentID, StatusFileName, data); err != nil {
		return fmt.Errorf("persist status for %s/%s: %w", p.Index, p.DocumentID, err)
	}
	return nil
}

// ReadFile reads a file scoped to the pipeline's document.
func (o *Orchestrator) ReadFile(ctx context.Context, p *DataPipeline, fileName string) ([]byte, error) {
	return o.store.ReadFile(ctx, p.Index, p.DocumentID, fileName)
}

// ReadTextFile reads a file as a string.
func (o *Orchestrator) ReadTextFile(ctx context.Context, p *DataPipeline, fileName string) (string, error) {
	data, err := o.ReadFile(ctx, p, fileName)
	return string(data), err
}

// WriteFile writes a file scoped to the pipeline's document.
func (o *Orchestrator) WriteFile(ctx context.Context, p *DataPipeline, fileName string, content []byte) error {
	return o.store.WriteFile(ctx, p.Index, p.DocumentID, fileName, content)
}

// WriteTextFile writes a string file scoped to the pipeline's document.
func (o *Orchestrator) WriteTextFile(ctx context.Context, p *DataPipeline, fileName, content string) error {
	return o.WriteFile(ctx, p, fileName, []byte(content))
}

// ContentStore exposes the underlying store for handlers that operate on
// whole directories (deletions).
func (o *Orchestrator) ContentStore() contentstore.Store {
	return o.store
}

// runCurrentStep invokes the handler for the pipeline's current step and, on
// success, advances and persists the status. Failed steps leave the durable
// status parked on the failed step.
func (o *Orchestrator) runCurrentStep(ctx context.Context, p *DataPipeline) (Outcome, error) {
	step := p.CurrentStep()
	if step == "" {
		return FatalError, ErrPipelineCompleted
	}
	h, ok := o.handler(step)
	if !ok {
		return FatalError, fmt.Errorf("no handler registered for step %q", step)
	}

	o.logger.Info("pipeline.step.start",
		"index", p.Index, "document_id", p.DocumentID, "step", step)
	start := time.Now()

	outcome, err := h.Invoke(ctx, p)
	observeStep(step, outcome, time.Since(start))
	if outcome != Success {
		o.logger.Warn("pipeline.step.failed",
			"index", p.Index, "document_id", p.DocumentID,
			"step", step, "outcome", outcome.String(), "err", err)
		if err == nil {
			err = fmt.Errorf("step %q failed", step)
		}
		return outcome, err
	}

	if err := p.MoveForward(); err != nil {
		return FatalError, err
	}
	// Deletion steps remove the directory the status lives in; persisting
	// after them would resurrect it.
	if !(p.Complete() && (step == StepDeleteDocument || step == StepDeleteIndex)) {
		if err := o.PersistStatus(ctx, p); err != nil {
			return TransientError, err
		}
	}

	o.logger.Info("pipeline.step.complete",
		"index", p.Index, "document_id", p.DocumentID,
		"step", step, "duration_ms", time.Since(start).Milliseconds(),
		"remaining", len(p.RemainingSteps))
	return Success, nil
}
