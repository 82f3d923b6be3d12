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

// Package partition splits extracted text into token-bounded chunks sized for
// downstream embedding and generation models.
//
// Splitting happens in two passes: text is first cut into lines no longer
// than MaxTokensPerLine, then lines are packed into paragraphs no longer than
// MaxTokensPerParagraph with OverlapTokens of trailing context repeated at
// the start of the next paragraph. Lines keep their original separators, so
// concatenating the paragraphs of a file (minus the overlap prefixes)
// reproduces the original character sequence exactly.
package partition

import (
	"strings"

	"github.com/kraklabs/recall/pkg/tokenizer"
)

// Default splitting bounds.
const (
	DefaultMaxTokensPerLine      = 300
	DefaultMaxTokensPerParagraph = 1000
	DefaultOverlapTokens         = 100
)

// Options bounds the splitter output.
type Options struct {
	// MaxTokensPerLine caps individual lines; longer lines are hard-split.
	MaxTokensPerLine int

	// MaxTokensPerParagraph caps each emitted chunk.
	MaxTokensPerParagraph int

	// OverlapTokens is the amount of trailing context from one paragraph
	// repeated at the start of the next.
	OverlapTokens int
}

// withDefaults fills zero fields with the default bounds.
func (o Options) withDefaults() Options {
	if o.MaxTokensPerLine <= 0 {
		o.MaxTokensPerLine = DefaultMaxTokensPerLine
	}
	if o.MaxTokensPerParagraph <= 0 {
		o.MaxTokensPerParagraph = DefaultMaxTokensPerParagraph
	}
	if o.OverlapTokens < 0 {
		o.OverlapTokens = 0
	}
	// Overlap must leave room for new content in every paragraph.
	if o.OverlapTokens >= o.MaxTokensPerParagraph {
		o.OverlapTokens = o.MaxTokensPerParagraph / 2
	}
	return o
}

// Splitter turns text into token-bounded paragraphs.
type Splitter struct {
	tok  tokenizer.Tokenizer
	opts Options
}

// NewSplitter creates a splitter with the given tokenizer and bounds.
func NewSplitter(tok tokenizer.Tokenizer, opts Options) *Splitter {
	if tok == nil {
		tok = tokenizer.Default()
	}
	return &Splitter{tok: tok, opts: opts.withDefaults()}
}

// SplitPlainText splits generic text into paragraphs. Lines break at
// newlines and sentence boundaries, keeping the separators attached so the
// output is lossless.
func (s *Splitter) SplitPlainText(text string) []string {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	lines := s.boundLines(splitSentences(text))
	return s.packParagraphs(lines)
}

// SplitMarkdown splits markdown text into paragraphs, keeping fenced code
// blocks and heading lines intact where they fit. Content inside a code
// fence is never merged with surrounding prose lines.
func (s *Splitter) SplitMarkdown(text string) []string {
	if strings.TrimSpace(text) == "" {
		return nil
	}

	var lines []string
	inFence := false
	for _, raw := range splitKeepNewlines(text) {
		trimmed := strings.TrimSpace(raw)
		isFence := strings.HasPrefix(trimmed, "```") || strings.HasPrefix(trimmed, "~~~")
		switch {
		case isFence:
			inFence = !inFence
			lines = append(lines, raw)
		case inFence:
			// Code lines stay whole; sentence boundaries are meaningless here.
			lines = append(lines, raw)
		default:
			lines = append(lines, splitSentences(raw)...)
		}
	}
	return s.packParagraphs(s.boundLines(lines))
}

// boundLines hard-splits any line exceeding MaxTokensPerLine by re-encoding
// it and slicing the token stream.
func (s *Splitter) boundLines(lines []string) []string {
	var out []string
	for _, line := range lines {
		if s.tok.CountTokens(line) <= s.opts.MaxTokensPerLine {
			out = append(out, line)
			continue
		}
		tokens := s.tok.Encode(line)
		for start := 0; start < len(tokens); start += s.opts.MaxTokensPerLine {
			end := start + s.opts.MaxTokensPerLine
			if end > len(tokens) {
				end = len(tokens)
			}
			out = append(out, s.tok.Decode(tokens[start:end]))
		}
	}
	return out
}

// packParagraphs greedily accumulates lines up to MaxTokensPerParagraph and
// seeds each new paragraph with the overlap tail of the previous one.
func (s *Splitter) packParagraphs(lines []string) []string {
	var paragraphs []string
	var current []string
	currentTokens := 0

	flush := func() {
		if len(current) == 0 {
			return
		}
		paragraphs = append(paragraphs, strings.Join(current, ""))
		if s.opts.OverlapTokens > 0 {
			overlap, overlapTokens := s.overlapTail(current)
			current = overlap
			currentTokens = overlapTokens
		} else {
			current = nil
			currentTokens = 0
		}
	}

	for _, line := range lines {
		lineTokens := s.tok.CountTokens(line)
		if currentTokens+lineTokens > s.opts.MaxTokensPerParagraph && currentTokens > 0 {
			flush()
			// The overlap tail alone may already crowd out the next line.
			if currentTokens+lineTokens > s.opts.MaxTokensPerParagraph {
				current = nil
				currentTokens = 0
			}
		}
		current = append(current, line)
		currentTokens += lineTokens
	}
	if len(current) > 0 && currentTokens > 0 {
		paragraphs = append(paragraphs, strings.Join(current, ""))
	}
	return paragraphs
}

// overlapTail returns the trailing lines of a paragraph whose combined token
// count fits within OverlapTokens.
func (s *Splitter) overlapTail(lines []string) ([]string, int) {
	var tail []string
	total := 0
	for i := len(lines) - 1; i >= 0; i-- {
		n := s.tok.CountTokens(lines[i])
		if total+n > s.opts.OverlapTokens {
			break
		}
		tail = append([]string{lines[i]}, tail...)
		total += n
	}
	return tail, total
}

// splitSentences cuts text at newlines and sentence-ending punctuation,
// keeping every separator attached to the fragment before it. Joining the
// fragments with an empty string reproduces the input.
func splitSentences(text string) []string {
	var parts []string
	start := 0
	runes := []rune(text)
	for i := 0; i < len(runes); i++ {
		r := runes[i]
		if r == '\n' {
			parts = append(parts, string(runes[start:i+1]))
			start = i + 1
			continue
		}
		if (r == '.' || r == '!' || r == '?' || r == ';') && i+1 < len(runes) && runes[i+1] == ' ' {
			parts = append(parts, string(runes[start:i+2]))
			start = i + 2
			i++
		}
	}
	if start < len(runes) {
		parts = append(parts, string(runes[start:]))
	}
	return parts
}

// splitKeepNewlines splits text on newlines, keeping each newline attached to
// its line.
func splitKeepNewlines(text string) []string {
	var lines []string
	start := 0
	for i := 0; i < len(text); i++ {
		if text[i] == '\n' {
			lines = append(lines, text[start:i+1])
			start = i + 1
		}
	}
	if start < len(text) {
		lines = append(lines, text[start:])
	}
	return lines
}
