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

package filetype

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/ledongthuc/pdf"
	"golang.org/x/net/html"
)

// Section is one unit of extracted text. Multi-page formats preserve their
// page boundary through Number; single-body formats produce one section with
// Number zero.
type Section struct {
	Number int
	Text   string
}

// Extractor decodes a file's content into plain-text sections.
type Extractor interface {
	// SupportedMimeTypes lists the MIME types this extractor handles.
	SupportedMimeTypes() []string

	// Extract decodes content into one or more text sections.
	Extract(ctx context.Context, content []byte) ([]Section, error)
}

// Registry routes extraction by MIME type.
type Registry struct {
	extractors map[string]Extractor
}

// NewRegistry creates a registry with the default extractors: plain text,
// markdown, JSON, HTML, PDF, and Word (docx). Image OCR is not registered by
// default; the image MIME types stay unroutable until a caller registers an
// OCR extractor. The legacy binary .doc format has no extractor and is
// skipped at the extract step.
func NewRegistry() *Registry {
	r := &Registry{extractors: make(map[string]Extractor)}
	r.Register(&TextExtractor{})
	r.Register(&HTMLExtractor{})
	r.Register(&PDFExtractor{})
	r.Register(&WordExtractor{})
	return r
}

// Register adds an extractor for all of its supported MIME types, replacing
// any previous registration.
func (r *Registry) Register(e Extractor) {
	for _, mime := range e.SupportedMimeTypes() {
		r.extractors[mime] = e
	}
}

// ForMime returns the extractor registered for a MIME type.
func (r *Registry) ForMime(mime string) (Extractor, bool) {
	e, ok := r.extractors[mime]
	return e, ok
}

// TextExtractor passes through textual content, validating UTF-8.
// Handles plain text, markdown, and JSON.
type TextExtractor struct{}

// SupportedMimeTypes lists the MIME types this extractor handles.
func (t *TextExtractor) SupportedMimeTypes() []string {
	return []string{MimePlainText, MimeMarkdown, MimeJSON}
}

// Extract returns the content as a single section.
func (t *TextExtractor) Extract(ctx context.Context, content []byte) ([]Section, error) {
	if !utf8.Valid(content) {
		return nil, fmt.Errorf("content is not valid UTF-8")
	}
	return []Section{{Number: 0, Text: string(content)}}, nil
}

// HTMLExtractor strips markup and returns the visible text of an HTML
// document. Script and style bodies are dropped.
type HTMLExtractor struct{}

// SupportedMimeTypes lists the MIME types this extractor handles.
func (h *HTMLExtractor) SupportedMimeTypes() []string {
	return []string{MimeHTML}
}

// Extract parses the document and collects text nodes.
func (h *HTMLExtractor) Extract(ctx context.Context, content []byte) ([]Section, error) {
	doc, err := html.Parse(bytes.NewReader(content))
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}

	var sb strings.Builder
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && (n.Data == "script" || n.Data == "style") {
			return
		}
		if n.Type == html.TextNode {
			text := strings.TrimSpace(n.Data)
			if text != "" {
				if sb.Len() > 0 {
					sb.WriteByte('\n')
				}
				sb.WriteString(text)
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)

	return []Section{{Number: 0, Text: sb.String()}}, nil
}

// WordExtractor extracts text from Word documents in the OOXML (.docx)
// format: a zip archive whose word/document.xml holds the body. Paragraphs
// become lines; tabs and explicit breaks are preserved.
type WordExtractor struct{}

// SupportedMimeTypes lists the MIME types this extractor handles.
func (w *WordExtractor) SupportedMimeTypes() []string {
	return []string{MimeMSWordX}
}

// Extract walks the document XML and collects run text (w:t), emitting a
// newline per paragraph (w:p), a tab per w:tab, and a newline per w:br.
func (w *WordExtractor) Extract(ctx context.Context, content []byte) ([]Section, error) {
	archive, err := zip.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return nil, fmt.Errorf("open docx: %w", err)
	}

	var body *zip.File
	for _, f := range archive.File {
		if f.Name == "word/document.xml" {
			body = f
			break
		}
	}
	if body == nil {
		return nil, fmt.Errorf("docx has no word/document.xml")
	}
	reader, err := body.Open()
	if err != nil {
		return nil, fmt.Errorf("open docx body: %w", err)
	}
	defer reader.Close()

	var sb strings.Builder
	inRun := false
	decoder := xml.NewDecoder(reader)
	for {
		token, err := decoder.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("parse docx body: %w", err)
		}
		switch t := token.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "t":
				inRun = true
			case "tab":
				sb.WriteByte('\t')
			case "br":
				sb.WriteByte('\n')
			}
		case xml.EndElement:
			switch t.Name.Local {
			case "t":
				inRun = false
			case "p":
				sb.WriteByte('\n')
				if err := ctx.Err(); err != nil {
					return nil, err
				}
			}
		case xml.CharData:
			if inRun {
				sb.Write(t)
			}
		}
	}

	text := strings.TrimSpace(sb.String())
	if text == "" {
		return nil, fmt.Errorf("docx contains no extractable text")
	}
	return []Section{{Number: 0, Text: text}}, nil
}

// PDFExtractor extracts text from PDF documents, one section per page.
type PDFExtractor struct{}

// SupportedMimeTypes lists the MIME types this extractor handles.
func (p *PDFExtractor) SupportedMimeTypes() []string {
	return []string{MimePDF}
}

// Extract reads each page's plain text. Pages that fail text extraction are
// skipped rather than failing the whole document.
func (p *PDFExtractor) Extract(ctx context.Context, content []byte) ([]Section, error) {
	reader, err := pdf.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return nil, fmt.Errorf("open pdf: %w", err)
	}

	var sections []Section
	for pageNum := 1; pageNum <= reader.NumPage(); pageNum++ {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		page := reader.Page(pageNum)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			continue
		}
		text = strings.TrimSpace(text)
		if text == "" {
			continue
		}
		sections = append(sections, Section{Number: pageNum, Text: text})
	}

	if len(sections) == 0 {
		return nil, fmt.Errorf("pdf contains no extractable text")
	}
	return sections, nil
}
