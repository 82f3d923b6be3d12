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

// Package bootstrap assembles the recall engine from configuration.
//
// This internal package wires the configured backends (content store, vector
// store, step queues), the embedding and generation providers, the ingestion
// orchestrator with its full handler set, and the search client into one
// Engine value that the HTTP server and the CLI commands share.
//
// # Assembly Workflow
//
//	cfg, err := config.Load("recall.yaml")
//	if err != nil {
//	    errors.FatalError(err, false)
//	}
//	engine, err := bootstrap.NewEngine(ctx, cfg)
//	if err != nil {
//	    errors.FatalError(err, false)
//	}
//	defer engine.Close()
//
//	docID, err := engine.Orchestrator.ImportDocument(ctx, req)
//
// # Backends
//
// The vector store is one of:
//
//   - memory: in-process store for local mode and tests (default)
//   - qdrant: Qdrant over gRPC
//   - postgres: Postgres with the pgvector extension
//
// The step queue, used only by the distributed orchestrator, is one of:
//
//   - memory: in-process queues, single-process distribution semantics
//   - pulsar: Apache Pulsar shared subscriptions for multi-worker setups
//
// Providers for embeddings and text generation are "mock", "openai", or
// "ollama"; the mock providers make the default configuration fully
// self-contained.
package bootstrap
