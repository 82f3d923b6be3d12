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
	"strings"

	"github.com/kraklabs/recall/internal/errors"
	"github.com/kraklabs/recall/internal/output"
	"github.com/kraklabs/recall/internal/ui"
	"github.com/kraklabs/recall/pkg/search"
)

// runSearch executes the 'search' CLI command, printing matched chunks
// grouped by source file.
//
// Examples:
//
//	recall search --index notes "solar panels"
//	recall search --index notes --limit 5 --json "solar panels"
func runSearch(args []string, configPath string) {
	fs := flag.NewFlagSet("search", flag.ExitOnError)
	index := fs.String("index", "", "Index to search (default: the default index)")
	limit := fs.Int("limit", 10, "Maximum matches to return")
	minRelevance := fs.Float64("min-relevance", 0, "Minimum cosine similarity")
	jsonOutput := fs.Bool("json", false, "Output as JSON")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `Usage: recall search [options] <query>

Searches the index for chunks similar to the query and prints them with
their source files and relevance.

Options:
`)
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}
	query := strings.TrimSpace(strings.Join(fs.Args(), " "))
	if query == "" {
		errors.FatalError(errors.NewInputError(
			"No query given",
			"The search command needs a query argument",
			"Run: recall search --index <index> <query>",
		), *jsonOutput)
	}

	ctx := context.Background()
	engine, uerr := newEngine(ctx, configPath)
	if uerr != nil {
		errors.FatalError(uerr, *jsonOutput)
	}
	defer func() { _ = engine.Close() }()

	result, err := engine.Search.Search(ctx, search.SearchRequest{
		Index:        *index,
		Query:        query,
		MinRelevance: *minRelevance,
		Limit:        *limit,
	})
	if err != nil {
		errors.FatalError(errors.NewInputError("Search failed", err.Error(), ""), *jsonOutput)
	}

	if *jsonOutput {
		if err := output.JSON(result); err != nil {
			errors.FatalError(err, true)
		}
		return
	}

	if result.NoResult {
		ui.Warning("No results: " + result.NoResultReason)
		return
	}
	for _, citation := range result.Results {
		ui.SubHeader(citation.SourceName)
		for _, p := range citation.Partitions {
			fmt.Printf("  [%.2f] %s\n", p.Relevance, firstLine(p.Text))
		}
	}
}

// firstLine truncates a chunk to its first line for terminal display.
func firstLine(text string) string {
	if i := strings.IndexByte(text, '\n'); i >= 0 {
		return text[:i] + " ..."
	}
	return text
}
