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

	"github.com/kraklabs/recall/internal/errors"
	"github.com/kraklabs/recall/internal/ui"
)

// runDelete executes the 'delete' CLI command: remove one document, or a
// whole index when no document is named. Deletion runs through the pipeline
// so records, files, and status are retired together.
func runDelete(args []string, configPath string) {
	fs := flag.NewFlagSet("delete", flag.ExitOnError)
	index := fs.String("index", "", "Target index (default: the default index)")
	documentID := fs.String("document", "", "Document to delete; empty deletes the whole index")
	yes := fs.Bool("yes", false, "Skip the confirmation prompt for index deletion")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `Usage: recall delete [options]

Deletes a document's records and files, or an entire index when no
--document is given.

Options:
`)
		fs.PrintDefaults()
		fmt.Fprintf(os.Stderr, `
Examples:
  recall delete --index notes --document doc-0001
  recall delete --index notes --yes
`)
	}

	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}

	ctx := context.Background()
	engine, uerr := newEngine(ctx, configPath)
	if uerr != nil {
		errors.FatalError(uerr, false)
	}
	defer func() { _ = engine.Close() }()

	if *documentID != "" {
		if err := engine.Orchestrator.StartDocumentDeletion(ctx, *index, *documentID); err != nil {
			errors.FatalError(errors.NewInputError("Document deletion failed", err.Error(), ""), false)
		}
		ui.Successf("Deleted document %s", *documentID)
		return
	}

	if !*yes {
		fmt.Printf("Delete the entire index %q? [y/N] ", *index)
		var reply string
		_, _ = fmt.Scanln(&reply)
		if reply != "y" && reply != "Y" {
			ui.Info("Aborted")
			return
		}
	}
	if err := engine.Orchestrator.StartIndexDeletion(ctx, *index); err != nil {
		errors.FatalError(errors.NewInputError("Index deletion failed", err.Error(), ""), false)
	}
	ui.Success("Index deletion complete")
}
