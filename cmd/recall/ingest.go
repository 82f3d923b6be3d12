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
	"fmt"
	"os"
	"path/filepath"

	flag "github.com/spf13/pflag"

	"github.com/kraklabs/recall/internal/errors"
	"github.com/kraklabs/recall/internal/output"
	"github.com/kraklabs/recall/internal/ui"
	"github.com/kraklabs/recall/pkg/pipeline"
)

// IngestResult represents a completed ingestion for JSON output.
type IngestResult struct {
	Index      string   `json:"index"`
	DocumentID string   `json:"document_id"`
	Files      []string `json:"files"`
	Steps      []string `json:"steps"`
}

// runIngest executes the 'ingest' CLI command: upload one or more files as a
// single document and run the ingestion pipeline to completion in-process.
func runIngest(args []string, configPath string) {
	fs := flag.NewFlagSet("ingest", flag.ExitOnError)
	index := fs.String("index", "", "Target index (default: the default index)")
	documentID := fs.String("document", "", "Document id (generated when empty; reuse to update)")
	tags := fs.StringArray("tag", nil, "Tag as key:value (repeatable)")
	steps := fs.StringSlice("steps", nil, "Override the ingestion steps (comma separated)")
	jsonOutput := fs.Bool("json", false, "Output as JSON")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `Usage: recall ingest [options] <files...>

Description:
  Ingest the given files as one document: extract text, partition it into
  chunks, embed the chunks, and save the records into the vector index.
  Re-ingesting with the same --document replaces the previous version.

Options:
`)
		fs.PrintDefaults()
		fmt.Fprintf(os.Stderr, `
Examples:
  recall ingest --index notes report.pdf
  recall ingest --index notes --document doc-0001 --tag user:u1 a.md b.md
  recall ingest --steps extract,partition,summarize,embed,save_records report.pdf
`)
	}

	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}
	if fs.NArg() == 0 {
		errors.FatalError(errors.NewInputError(
			"No files to ingest",
			"The ingest command needs at least one file argument",
			"Run: recall ingest --index <index> <files...>",
		), *jsonOutput)
	}

	parsedTags, err := parseTagFlags(*tags)
	if err != nil {
		errors.FatalError(errors.NewInputError("Invalid tag", err.Error(), "Use --tag key:value"), *jsonOutput)
	}

	var files []pipeline.UploadFile
	for _, path := range fs.Args() {
		content, err := os.ReadFile(path)
		if err != nil {
			errors.FatalError(errors.NewInputError(
				"Cannot read file "+path,
				err.Error(),
				"Check the path and permissions",
			), *jsonOutput)
		}
		files = append(files, pipeline.UploadFile{Name: filepath.Base(path), Content: content})
	}

	ctx := context.Background()
	engine, uerr := newEngine(ctx, configPath)
	if uerr != nil {
		errors.FatalError(uerr, *jsonOutput)
	}
	defer func() { _ = engine.Close() }()

	plan := *steps
	if len(plan) == 0 {
		plan = engine.DefaultSteps()
	}

	docID, err := engine.Orchestrator.ImportDocument(ctx, pipeline.ImportRequest{
		Index:      *index,
		DocumentID: *documentID,
		Tags:       parsedTags,
		Steps:      plan,
		Files:      files,
	})
	if err != nil {
		errors.FatalError(errors.NewInputError(
			"Ingestion failed",
			err.Error(),
			"Check the index name, tags, and steps",
		), *jsonOutput)
	}

	result := IngestResult{
		Index:      *index,
		DocumentID: docID,
		Steps:      plan,
	}
	for _, f := range files {
		result.Files = append(result.Files, f.Name)
	}

	if *jsonOutput {
		if err := output.JSON(result); err != nil {
			errors.FatalError(err, true)
		}
		return
	}
	ui.Successf("Ingested %d file(s) as document %s", len(files), docID)
}

// parseTagFlags parses repeated key:value tag flags.
func parseTagFlags(entries []string) (map[string][]string, error) {
	if len(entries) == 0 {
		return nil, nil
	}
	tags := make(map[string][]string)
	for _, entry := range entries {
		key, value, ok := cutTag(entry)
		if !ok {
			return nil, fmt.Errorf("tag %q is not key:value", entry)
		}
		tags[key] = append(tags[key], value)
	}
	return tags, nil
}

func cutTag(entry string) (string, string, bool) {
	for i := 0; i < len(entry); i++ {
		if entry[i] == ':' {
			if i == 0 {
				return "", "", false
			}
			return entry[:i], entry[i+1:], true
		}
	}
	if entry == "" {
		return "", "", false
	}
	return entry, "", true
}
