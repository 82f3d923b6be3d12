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

	"github.com/kraklabs/recall/pkg/contentstore"
)

// NewInProcessOrchestrator creates an orchestrator that runs every pipeline
// synchronously in the calling goroutine. Used by local mode, the one-shot
// CLI commands, and tests.
func NewInProcessOrchestrator(store contentstore.Store, logger *slog.Logger) *Orchestrator {
	return newOrchestrator(store, &inProcessRunner{}, logger)
}

// inProcessRunner executes the remaining plan as a single-threaded loop.
type inProcessRunner struct{}

func (r *inProcessRunner) Bind(o *Orchestrator, step string) error { return nil }

func (r *inProcessRunner) Dispatch(ctx context.Context, o *Orchestrator, p *DataPipeline) error {
	for !p.Complete() {
		if err := ctx.Err(); err != nil {
			return err
		}
		step := p.CurrentStep()
		if _, err := o.runCurrentStep(ctx, p); err != nil {
			return fmt.Errorf("step %q: %w", step, err)
		}
	}
	return nil
}
