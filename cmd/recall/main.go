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

// Package main implements the recall CLI for serving the memory engine and
// for one-shot ingestion and retrieval against a local engine.
//
// Usage:
//
//	recall serve                      Start the HTTP service
//	recall ingest <files...>          Ingest documents into an index
//	recall search <query>             Search an index
//	recall ask <question>             Ask a question grounded on an index
//	recall status <document-id>       Show ingestion status of a document
//	recall delete                     Delete a document or a whole index
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/kraklabs/recall/internal/ui"
)

// Version information (set via ldflags during build)
var (
	version = "dev"     // Version string
	commit  = "unknown" // Git commit hash
	date    = "unknown" // Build date
)

// main parses global flags and dispatches to command handlers.
//
// Global flags:
//   - --version: Display version information and exit
//   - --config: Path to the recall.yaml configuration file
//   - --no-color: Disable colored terminal output
func main() {
	var (
		showVersion = flag.Bool("version", false, "Show version and exit")
		configPath  = flag.String("config", "", "Path to recall.yaml (default: built-in local configuration)")
		noColor     = flag.Bool("no-color", false, "Disable color output")
	)

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, `recall - document memory engine

recall ingests documents into searchable memory and answers questions
grounded on their content. Documents are extracted, partitioned,
embedded, and stored in a vector index; retrieval returns cited chunks
or generated answers.

Usage:
  recall <command> [options]

Commands:
  serve    Start the HTTP service
  ingest   Ingest documents into an index
  search   Search an index for matching chunks
  ask      Ask a question grounded on an index
  status   Show ingestion status of a document
  delete   Delete a document or a whole index

Global Options:
  --config    Path to recall.yaml
  --no-color  Disable color output (respects NO_COLOR env var)
  --version   Show version and exit

Examples:
  recall serve --config recall.yaml
  recall ingest --index notes report.pdf appendix.md
  recall search --index notes "solar panels"
  recall ask --index notes "How many panels are in Reno?"
  recall status --index notes doc-0001
  recall delete --index notes --document doc-0001

Without --config, commands run against a fully local engine: files under
./data/content, an in-memory vector index, and mock providers.

For detailed command help: recall <command> --help

`)
	}

	flag.Parse()
	ui.InitColors(*noColor)

	if *showVersion {
		fmt.Printf("recall version %s\n", version)
		fmt.Printf("commit: %s\n", commit)
		fmt.Printf("built: %s\n", date)
		os.Exit(0)
	}

	args := flag.Args()
	if len(args) == 0 {
		flag.Usage()
		os.Exit(1)
	}

	command := args[0]
	cmdArgs := args[1:]

	switch command {
	case "serve":
		runServe(cmdArgs, *configPath)
	case "ingest":
		runIngest(cmdArgs, *configPath)
	case "search":
		runSearch(cmdArgs, *configPath)
	case "ask":
		runAsk(cmdArgs, *configPath)
	case "status":
		runStatus(cmdArgs, *configPath)
	case "delete":
		runDelete(cmdArgs, *configPath)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", command)
		flag.Usage()
		os.Exit(1)
	}
}
