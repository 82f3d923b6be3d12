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

// runAsk executes the 'ask' CLI command: retrieve relevant facts and generate
// a grounded answer. With --stream the answer is printed token by token as
// the generator produces it.
func runAsk(args []string, configPath string) {
	fs := flag.NewFlagSet("ask", flag.ExitOnError)
	index := fs.String("index", "", "Index to answer from (default: the default index)")
	stream := fs.Bool("stream", false, "Print the answer as it is generated")
	jsonOutput := fs.Bool("json", false, "Output as JSON")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `Usage: recall ask [options] <question>

Retrieves the most relevant chunks for the question, packs them into the
generator's prompt budget, and prints the generated answer with its
sources.

Options:
`)
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}
	question := strings.TrimSpace(strings.Join(fs.Args(), " "))
	if question == "" {
		errors.FatalError(errors.NewInputError(
			"No question given",
			"The ask command needs a question argument",
			"Run: recall ask --index <index> <question>",
		), *jsonOutput)
	}

	ctx := context.Background()
	engine, uerr := newEngine(ctx, configPath)
	if uerr != nil {
		errors.FatalError(uerr, *jsonOutput)
	}
	defer func() { _ = engine.Close() }()

	req := search.AskRequest{Index: *index, Question: question}

	var answer *search.MemoryAnswer
	var err error
	if *stream && !*jsonOutput {
		answer, err = engine.Search.AskStream(ctx, req, func(snapshot *search.MemoryAnswer) error {
			if snapshot.StreamState == search.StreamAppend {
				fmt.Print(snapshot.Result)
			}
			return nil
		})
		fmt.Println()
	} else {
		answer, err = engine.Search.Ask(ctx, req)
	}
	if err != nil {
		errors.FatalError(errors.NewInputError("Ask failed", err.Error(), ""), *jsonOutput)
	}

	if *jsonOutput {
		if err := output.JSON(answer); err != nil {
			errors.FatalError(err, true)
		}
		return
	}

	if answer.NoResult {
		ui.Warning("No answer: " + answer.NoResultReason)
		fmt.Println(answer.Result)
		return
	}
	if !*stream {
		fmt.Println(answer.Result)
	}
	if len(answer.RelevantSources) > 0 {
		fmt.Println()
		ui.SubHeader("Sources:")
		for _, citation := range answer.RelevantSources {
			fmt.Printf("  %s (%s)\n", citation.SourceName, citation.DocumentID)
		}
	}
}
