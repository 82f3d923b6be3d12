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
	"fmt"
	"log/slog"

	"github.com/kraklabs/recall/pkg/vectorstore"
)

// DeleteDocumentHandler removes a document's records from every vector store
// and its directory from the content store. Deleting a document that never
// existed succeeds: the observable state is the same.
type DeleteDocumentHandler struct {
	orchestrator *Orchestrator
	stores       []vectorstore.Store
	logger       *slog.Logger
}

// NewDeleteDocumentHandler creates the delete_document step handler.
func NewDeleteDocumentHandler(o *Orchestrator, stores []vectorstore.Store, logger *slog.Logger) *DeleteDocumentHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &DeleteDocumentHandler{orchestrator: o, stores: stores, logger: logger}
}

func (h *DeleteDocumentHandler) StepName() string { return StepDeleteDocument }

func (h *DeleteDocumentHandler) Invoke(ctx context.Context, p *DataPipeline) (Outcome, error) {
	filter := vectorstore.MemoryFilter{}.ByDocument(p.DocumentID)
	for _, store := range h.stores {
		if err := store.DeleteByFilter(ctx, p.Index, filter); err != nil {
			return TransientError, fmt.Errorf("delete records for %s/%s: %w", p.Index, p.DocumentID, err)
		}
	}
	if err := h.orchestrator.ContentStore().DeleteDocumentDirectory(ctx, p.Index, p.DocumentID); err != nil {
		return TransientError, fmt.Errorf("delete document directory %s/%s: %w", p.Index, p.DocumentID, err)
	}

	h.logger.Info("pipeline.delete_document.done", "index", p.Index, "document_id", p.DocumentID)
	return Success, nil
}

// DeleteIndexHandler drops an entire index from every vector store and
// removes its directory from the content store, status documents included.
type DeleteIndexHandler struct {
	orchestrator *Orchestrator
	stores       []vectorstore.Store
	logger       *slog.Logger
}

// NewDeleteIndexHandler creates the delete_index step handler.
func NewDeleteIndexHandler(o *Orchestrator, stores []vectorstore.Store, logger *slog.Logger) *DeleteIndexHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &DeleteIndexHandler{orchestrator: o, stores: stores, logger: logger}
}

func (h *DeleteIndexHandler) StepName() string { return StepDeleteIndex }

func (h *DeleteIndexHandler) Invoke(ctx context.Context, p *DataPipeline) (Outcome, error) {
	for _, store := range h.stores {
		if err := store.DeleteIndex(ctx, p.Index); err != nil {
			return TransientError, fmt.Errorf("delete index %q: %w", p.Index, err)
		}
	}
	// Removes the index directory and with it this pipeline's own status;
	// the step completes in memory only, which is fine for a terminal step.
	if err := h.orchestrator.ContentStore().DeleteIndexDirectory(ctx, p.Index); err != nil {
		return TransientError, fmt.Errorf("delete index directory %q: %w", p.Index, err)
	}

	h.logger.Info("pipeline.delete_index.done", "index", p.Index)
	return Success, nil
}
