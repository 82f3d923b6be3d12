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

import "context"

// Outcome classifies a handler invocation.
type Outcome int

const (
	// Success means the step finished and the pipeline may advance.
	Success Outcome = iota

	// TransientError means the step failed but a retry may succeed;
	// queue-backed mode nacks and redelivers.
	TransientError

	// FatalError means retrying cannot help (malformed artifact, missing
	// handler input). The pipeline stays parked on the failed step.
	FatalError
)

func (o Outcome) String() string {
	switch o {
	case Success:
		return "success"
	case TransientError:
		return "transient_error"
	case FatalError:
		return "fatal_error"
	default:
		return "unknown"
	}
}

// Handler is the unit of work for one step.
//
// Handlers must be idempotent: re-invoking over the same inputs never creates
// duplicate artifacts. This is enforced by the processed-by sets and by
// deterministic artifact naming. Handlers mutate the pipeline they receive;
// the orchestrator persists it after a successful invocation, so a failed
// step leaves the durable status untouched.
type Handler interface {
	// StepName is the step this handler serves and, in queue-backed mode,
	// the queue it is bound to.
	StepName() string

	// Invoke runs the step over the pipeline's current state.
	Invoke(ctx context.Context, p *DataPipeline) (Outcome, error)
}
