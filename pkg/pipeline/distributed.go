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
	"errors"
	"fmt"
	"log/slog"
	"slices"

	"github.com/kraklabs/recall/pkg/contentstore"
	"github.com/kraklabs/recall/pkg/queue"
)

// pointerMessage is the queue payload: only the coordinates of the status
// document, never the pipeline itself (pipelines can be arbitrarily large).
type pointerMessage struct {
	Index      string `json:"index"`
	DocumentID string `json:"document_id"`
}

// NewDistributedOrchestrator creates an orchestrator where each step runs off
// its own named queue. Handlers are bound to their queue when attached;
// multiple worker processes may share the queues.
//
// The order of operations at a step boundary is persist-status then
// enqueue-next. A crash between the two leaves the status one step ahead of
// the queue; on redelivery the mismatch is detected and the status rolled
// back one step before re-running, which is safe because handlers are
// idempotent.
func NewDistributedOrchestrator(store contentstore.Store, queues queue.Adapter, logger *slog.Logger) *Orchestrator {
	return newOrchestrator(store, &queueRunner{queues: queues}, logger)
}

type queueRunner struct {
	queues queue.Adapter
}

func (r *queueRunner) Bind(o *Orchestrator, step string) error {
	return r.queues.Subscribe(step, func(ctx context.Context, msg *queue.Message) error {
		return r.handleMessage(ctx, o, step, msg)
	})
}

func (r *queueRunner) Dispatch(ctx context.Context, o *Orchestrator, p *DataPipeline) error {
	if p.Complete() {
		return nil
	}
	return r.enqueuePointer(ctx, p.CurrentStep(), p)
}

func (r *queueRunner) enqueuePointer(ctx context.Context, step string, p *DataPipeline) error {
	body, err := json.Marshal(pointerMessage{Index: p.Index, DocumentID: p.DocumentID})
	if err != nil {
		return fmt.Errorf("marshal pointer: %w", err)
	}
	if err := r.queues.Enqueue(ctx, step, body); err != nil {
		return fmt.Errorf("enqueue %s/%s onto %q: %w", p.Index, p.DocumentID, step, err)
	}
	return nil
}

// handleMessage processes one delivery for a step queue. Returning nil acks;
// returning an error nacks and lets the queue redeliver.
func (r *queueRunner) handleMessage(ctx context.Context, o *Orchestrator, step string, msg *queue.Message) error {
	var ptr pointerMessage
	if err := json.Unmarshal(msg.Body, &ptr); err != nil {
		// Malformed pointers can never succeed; ack them away.
		o.logger.Error("pipeline.queue.bad_pointer", "step", step, "err", err)
		return nil
	}

	logger := o.logger.With("index", ptr.Index, "document_id", ptr.DocumentID, "step", step)

	p, err := o.ReadPipelineStatus(ctx, ptr.Index, ptr.DocumentID)
	if errors.Is(err, contentstore.ErrNotFound) {
		// Document deleted while the message was in flight.
		logger.Warn("pipeline.queue.status_missing")
		return nil
	}
	if err != nil {
		return err
	}
	if p.Complete() {
		logger.Debug("pipeline.queue.already_complete")
		return nil
	}

	if expected := p.CurrentStep(); expected != step {
		// A message for a step the status says is done means the process
		// died between persist and enqueue-next: roll the status back one
		// step and re-run. Anything else is a stale duplicate.
		if n := len(p.CompletedSteps); n > 0 && p.CompletedSteps[n-1] == step {
			if err := p.RollBack(step); err != nil {
				return err
			}
			if err := o.PersistStatus(ctx, p); err != nil {
				return err
			}
			recordRollback()
			logger.Warn("pipeline.queue.rolled_back", "expected", expected)
		} else if slices.Contains(p.CompletedSteps, step) {
			logger.Debug("pipeline.queue.stale_message", "expected", expected)
			return nil
		} else {
			// Message arrived ahead of the status; redeliver later.
			return fmt.Errorf("step %q not yet current (expected %q)", step, expected)
		}
	}

	if _, err := o.runCurrentStep(ctx, p); err != nil {
		return err
	}

	if p.Complete() {
		logger.Info("pipeline.complete", "execution_id", p.ExecutionID)
		return nil
	}
	return r.enqueuePointer(ctx, p.CurrentStep(), p)
}
