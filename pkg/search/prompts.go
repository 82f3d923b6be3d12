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

// DefaultAnswerPrompt grounds the generator on the packed facts.
// Placeholders: {{$facts}}, {{$input}}, {{$notFound}}.
const DefaultAnswerPrompt = `Facts:
{{$facts}}======
Given only the facts above, provide a comprehensive answer.
You don't know where the knowledge comes from, just answer.
If you don't have sufficient information, reply with '{{$notFound}}'.
Question: {{$input}}
Answer: `

// DefaultFactTemplate renders one retrieved chunk into the facts block.
// Placeholders: {{$content}}, {{$source}}, {{$relevance}}, {{$recordId}},
// {{$tags}}.
const DefaultFactTemplate = `==== [File:{{$source}};Relevance:{{$relevance}}]:
{{$content}}
`

// DefaultEmptyAnswer is the sentinel the generator replies with when the
// facts don't cover the question.
const DefaultEmptyAnswer = "INFO NOT FOUND"

// DefaultModeratedAnswer replaces answers rejected by the moderation gate.
const DefaultModeratedAnswer = "Sorry, the generated content was blocked by the content moderation policy."
