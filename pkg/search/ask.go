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

package search

import (
	"context"
	"crypto/sha256"
	"fmt"
	"strings"
	"time"
	"unicode"

	"github.com/samber/lo"

	"github.com/kraklabs/recall/pkg/llm"
	"github.com/kraklabs/recall/pkg/vectorstore"
)

// AskRequest describes one grounded question.
type AskRequest struct {
	Index        string
	Question     string
	Filters      []vectorstore.MemoryFilter
	MinRelevance float64
}

// AnswerUpdate receives progressive MemoryAnswer snapshots during streaming.
// Returning an error aborts the stream.
type AnswerUpdate func(*MemoryAnswer) error

// Ask answers a question grounded on retrieved facts and returns the final
// answer in one shot.
func (c *Client) Ask(ctx context.Context, req AskRequest) (*MemoryAnswer, error) {
	return c.AskStream(ctx, req, nil)
}

// AskStream answers a question, invoking onUpdate for every generated chunk
// (StreamAppend snapshots) and once at the end with the complete answer
// (StreamReset snapshot). The returned answer equals the final snapshot.
//
// Retrieved facts are packed most relevant first under the prompt token
// budget; the first fact that does not fit ends the packing, so the facts
// block is always a prefix of the relevance ranking.
func (c *Client) AskStream(ctx context.Context, req AskRequest, onUpdate AnswerUpdate) (*MemoryAnswer, error) {
	start := time.Now()
	index, err := vectorstore.NormalizeIndexName(req.Index)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(req.Question) == "" {
		return nil, fmt.Errorf("question is empty")
	}
	question := strings.TrimSpace(req.Question)
	if !strings.HasSuffix(question, "?") {
		question += "?"
	}

	budget := c.promptBudget(question)

	vector, _, err := c.embedder.Embed(ctx, question)
	if err != nil {
		return nil, fmt.Errorf("embed question: %w", err)
	}
	hits, err := c.store.Search(ctx, index, vector, req.Filters, req.MinRelevance, c.cfg.MaxMatchesCount)
	if err != nil {
		return nil, fmt.Errorf("vector search: %w", err)
	}
	if len(hits) == 0 {
		answer := noResultAnswer(question, ReasonNoFacts, c.cfg.EmptyAnswer)
		observeAsk("no_facts", time.Since(start))
		return c.finish(answer, onUpdate)
	}

	facts, citations := c.packFacts(index, hits, budget)
	if facts == "" {
		answer := noResultAnswer(question, ReasonInsufficientTokens, c.cfg.EmptyAnswer)
		observeAsk("insufficient_tokens", time.Since(start))
		return c.finish(answer, onUpdate)
	}

	prompt := strings.NewReplacer(
		"{{$facts}}", facts,
		"{{$input}}", question,
		"{{$notFound}}", c.cfg.EmptyAnswer,
	).Replace(c.cfg.AnswerPrompt)

	var sb strings.Builder
	resp, err := c.generator.GenerateStream(ctx, llm.GenerateRequest{
		Prompt:      prompt,
		MaxTokens:   c.cfg.AnswerTokens,
		Temperature: c.cfg.Temperature,
		TopP:        c.cfg.TopP,
	}, func(chunk string) error {
		sb.WriteString(chunk)
		if onUpdate == nil {
			return nil
		}
		return onUpdate(&MemoryAnswer{
			StreamState: StreamAppend,
			Question:    question,
			Result:      chunk,
		})
	})
	if err != nil {
		return nil, fmt.Errorf("generate answer: %w", err)
	}

	text := strings.TrimSpace(sb.String())
	usage := []*TokenUsage{{
		Timestamp:    time.Now().UTC(),
		Service:      c.generator.Name(),
		Model:        resp.Model,
		InputTokens:  c.tok.CountTokens(prompt),
		OutputTokens: c.tok.CountTokens(text),
	}}

	if text == "" || equalIgnoringPunctuation(text, c.cfg.EmptyAnswer) {
		answer := noResultAnswer(question, ReasonNoFacts, c.cfg.EmptyAnswer)
		answer.TokenUsage = usage
		observeAsk("empty_answer", time.Since(start))
		return c.finish(answer, onUpdate)
	}

	if c.moderator != nil {
		safe, err := c.moderator.IsSafe(ctx, text)
		if err != nil {
			return nil, fmt.Errorf("moderate answer: %w", err)
		}
		if !safe {
			answer := noResultAnswer(question, ReasonModerated, c.cfg.ModeratedAnswer)
			answer.TokenUsage = usage
			observeAsk("moderated", time.Since(start))
			return c.finish(answer, onUpdate)
		}
	}

	answer := &MemoryAnswer{
		StreamState:     StreamReset,
		Question:        question,
		Result:          text,
		RelevantSources: citations,
		TokenUsage:      usage,
	}
	observeAsk("answered", time.Since(start))
	observeTokens(lo.SumBy(usage, func(u *TokenUsage) int { return u.InputTokens }),
		lo.SumBy(usage, func(u *TokenUsage) int { return u.OutputTokens }))

	c.logger.Info("search.ask.complete",
		"index", index, "facts_tokens", c.tok.CountTokens(facts),
		"citations", len(citations), "duration_ms", time.Since(start).Milliseconds())
	return c.finish(answer, onUpdate)
}

// promptBudget computes the tokens available for the facts block.
func (c *Client) promptBudget(question string) int {
	max := c.cfg.MaxAskPromptSize
	if max <= 0 {
		max = c.generator.MaxInputTokens()
	}
	return max - c.tok.CountTokens(c.cfg.AnswerPrompt) - c.tok.CountTokens(question) - c.cfg.AnswerTokens
}

// packFacts renders hits into the facts block most relevant first, stopping
// at the first fact that exceeds the remaining budget. Duplicate chunk
// contents are skipped. Returns the block and the citations of the packed
// facts only.
func (c *Client) packFacts(index string, hits []vectorstore.SearchHit, budget int) (string, []Citation) {
	var sb strings.Builder
	var packed []vectorstore.SearchHit
	seen := make(map[[32]byte]bool)

	for _, hit := range hits {
		content := hit.Record.PayloadString(vectorstore.PayloadText)
		if content == "" {
			continue
		}
		hash := sha256.Sum256([]byte(content))
		if seen[hash] {
			continue
		}

		fact := strings.NewReplacer(
			"{{$content}}", content,
			"{{$source}}", hit.Record.PayloadString(vectorstore.PayloadFileName),
			"{{$relevance}}", fmt.Sprintf("%.2f", hit.Relevance),
			"{{$recordId}}", hit.Record.ID,
			"{{$tags}}", renderTags(hit.Record.Tags),
		).Replace(c.cfg.FactTemplate)

		cost := c.tok.CountTokens(fact)
		if cost > budget {
			break
		}
		budget -= cost
		seen[hash] = true
		sb.WriteString(fact)
		packed = append(packed, hit)
	}
	return sb.String(), groupCitations(index, packed)
}

// renderTags flattens user tags into "key:value" pairs for fact templates.
func renderTags(tags map[string][]string) string {
	var pairs []string
	for key, values := range userTags(tags) {
		for _, v := range values {
			pairs = append(pairs, key+":"+v)
		}
	}
	return strings.Join(pairs, " ")
}

// finish emits the terminal snapshot and returns it.
func (c *Client) finish(answer *MemoryAnswer, onUpdate AnswerUpdate) (*MemoryAnswer, error) {
	if onUpdate != nil {
		if err := onUpdate(answer); err != nil {
			return nil, err
		}
	}
	return answer, nil
}

// equalIgnoringPunctuation compares two strings after dropping punctuation,
// whitespace, and case. Catches generators that reply with a decorated
// version of the empty-answer sentinel.
func equalIgnoringPunctuation(a, b string) bool {
	return canonical(a) == canonical(b)
}

func canonical(s string) string {
	var sb strings.Builder
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			sb.WriteRune(unicode.ToLower(r))
		}
	}
	return sb.String()
}
