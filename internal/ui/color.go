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

// Package ui renders the recall CLI's human-readable output.
//
// Helpers honor the --no-color flag and the NO_COLOR environment variable,
// and colors are dropped automatically when output is piped.
//
// Color conventions across commands:
//   - Red: failures (a step that errored, an unreachable backend)
//   - Yellow: degraded outcomes (NoResult answers, skipped files)
//   - Green: completed work (documents ingested, deletions done)
//   - Cyan: neutral progress notes and counts
//   - Bold: section headers and field labels
//   - Dim: secondary detail (paths, timestamps)
package ui

import (
	"fmt"
	"strings"

	"github.com/fatih/color"
)

// Shared color handles. They consult color.NoColor at print time, so
// InitColors can flip them after flag parsing.
var (
	// Red marks failures.
	Red = color.New(color.FgRed)

	// Yellow marks degraded outcomes.
	Yellow = color.New(color.FgYellow)

	// Green marks completed work.
	Green = color.New(color.FgGreen)

	// Cyan marks neutral progress notes.
	Cyan = color.New(color.FgCyan)

	// Bold marks headers and field labels.
	Bold = color.New(color.Bold)

	// Dim marks secondary detail.
	Dim = color.New(color.Faint)
)

// InitColors applies the --no-color flag. Call it once in main() after flag
// parsing; the NO_COLOR environment variable is honored by fatih/color on its
// own, this adds the explicit CLI override.
func InitColors(noColor bool) {
	color.NoColor = noColor
}

// Success prints a green message with a checkmark prefix.
//
// Example output: "✓ Ingested 3 file(s) as document doc-0001"
func Success(msg string) {
	_, _ = Green.Println("✓ " + msg)
}

// Successf is Success with formatting.
func Successf(format string, args ...any) {
	_, _ = Green.Printf("✓ "+format+"\n", args...)
}

// Warning prints a yellow message with a warning symbol prefix.
//
// Example output: "⚠ No results: no facts available"
func Warning(msg string) {
	_, _ = Yellow.Println("⚠ " + msg)
}

// Warningf is Warning with formatting.
func Warningf(format string, args ...any) {
	_, _ = Yellow.Printf("⚠ "+format+"\n", args...)
}

// Error prints a red message with an X prefix.
//
// Example output: "✗ Cannot reach the vector store"
func Error(msg string) {
	_, _ = Red.Println("✗ " + msg)
}

// Errorf is Error with formatting.
func Errorf(format string, args ...any) {
	_, _ = Red.Printf("✗ "+format+"\n", args...)
}

// Info prints a cyan message with an info symbol prefix.
//
// Example output: "ℹ recall dev listening on 127.0.0.1:9001"
func Info(msg string) {
	_, _ = Cyan.Println("ℹ " + msg)
}

// Infof is Info with formatting.
func Infof(format string, args ...any) {
	_, _ = Cyan.Printf("ℹ "+format+"\n", args...)
}

// Header prints a bold title with an underline separator.
//
// Example output:
//
//	Document Status
//	===============
func Header(text string) {
	_, _ = Bold.Println(text)
	fmt.Println(strings.Repeat("=", len(text)))
}

// SubHeader prints a bold line without an underline, used for per-source
// groupings in search output.
//
// Example output: "report.pdf"
func SubHeader(text string) {
	_, _ = Bold.Println(text)
}

// Label returns a bold field label for inline use.
//
// Example: fmt.Printf("%s %s\n", ui.Label("Index:"), index)
func Label(text string) string {
	return Bold.Sprint(text)
}

// DimText returns dimmed text for secondary detail.
//
// Example: fmt.Printf("%s %s\n", ui.Label("Last update:"), ui.DimText(ts))
func DimText(text string) string {
	return Dim.Sprint(text)
}

// CountText returns a cyan count for statistics lines.
//
// Example: fmt.Printf("  Records: %s\n", ui.CountText(records))
func CountText(count int) string {
	return Cyan.Sprint(count)
}
