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

package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	goerrors "errors"

	"github.com/kraklabs/recall/internal/errors"
	"github.com/kraklabs/recall/internal/output"
	"github.com/kraklabs/recall/internal/ui"
	"github.com/kraklabs/recall/pkg/contentstore"
)

// StatusResult represents a document's ingestion status for JSON output.
type StatusResult struct {
	Index          string    `json:"index"`
	DocumentID     string    `json:"document_id"`
	Completed      bool      `json:"completed"`
	Steps          []string  `json:"steps"`
	RemainingSteps []string  `json:"remaining_steps"`
	CompletedSteps []string  `json:"completed_steps"`
	Creation       time.Time `json:"creation"`
	LastUpdate     time.Time `json:"last_update"`
}

// runStatus executes the 'status' CLI command, displaying the ingestion
// progress of one document.
//
// Examples:
//
//	recall status --index notes doc-0001
//	recall status --index notes --json doc-0001
func runStatus(args []string, configPath string) {
	fs := flag.NewFlagSet("status", flag.ExitOnError)
	index := fs.String("index", "", "Index holding the document (default: the default index)")
	jsonOutput := fs.Bool("json", false, "Output as JSON")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `Usage: recall status [options] <document-id>

Shows the ingestion status of a document: which pipeline steps have
completed and which remain.

Options:
`)
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}
	if fs.NArg() != 1 {
		errors.FatalError(errors.NewInputError(
			"Missing document id",
			"The status command needs exactly one document-id argument",
			"Run: recall status --index <index> <document-id>",
		), *jsonOutput)
	}
	documentID := fs.Arg(0)

	ctx := context.Background()
	engine, uerr := newEngine(ctx, configPath)
	if uerr != nil {
		errors.FatalError(uerr, *jsonOutput)
	}
	defer func() { _ = engine.Close() }()

	p, err := engine.Orchestrator.ReadPipelineStatus(ctx, *index, documentID)
	if goerrors.Is(err, contentstore.ErrNotFound) {
		errors.FatalError(errors.NewNotFoundError(
			"Document not found",
			fmt.Sprintf("No document %q in index %q", documentID, *index),
			"Check the index and document id, or ingest the document first",
		), *jsonOutput)
	}
	if err != nil {
		errors.FatalError(errors.NewInternalError("Cannot read pipeline status", err.Error(), "", err), *jsonOutput)
	}

	result := StatusResult{
		Index:          p.Index,
		DocumentID:     p.DocumentID,
		Completed:      p.Complete(),
		Steps:          p.Steps,
		RemainingSteps: p.RemainingSteps,
		CompletedSteps: p.CompletedSteps,
		Creation:       p.Creation,
		LastUpdate:     p.LastUpdate,
	}

	if *jsonOutput {
		if err := output.JSON(result); err != nil {
			errors.FatalError(err, true)
		}
		return
	}

	ui.Header("Document Status")
	fmt.Printf("%s %s\n", ui.Label("Index:"), result.Index)
	fmt.Printf("%s %s\n", ui.Label("Document:"), result.DocumentID)
	if result.Completed {
		ui.Success("Ingestion complete")
	} else {
		ui.Warningf("In progress, next step: %s", result.RemainingSteps[0])
	}
	fmt.Printf("%s %v\n", ui.Label("Completed steps:"), result.CompletedSteps)
	fmt.Printf("%s %s\n", ui.Label("Last update:"), ui.DimText(result.LastUpdate.Format(time.RFC3339)))
}
