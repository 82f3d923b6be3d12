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
	"strings"
	"testing"
)

func TestDetectByExtension(t *testing.T) {
	tests := []struct {
		fileName string
		want     string
	}{
		{"notes.txt", MimePlainText},
		{"README.md", MimeMarkdown},
		{"data.json", MimeJSON},
		{"report.pdf", MimePDF},
		{"legacy.doc", MimeMSWord},
		{"modern.docx", MimeMSWordX},
		{"page.html", MimeHTML},
		{"page.htm", MimeHTML},
		{"photo.JPG", MimeImageJpeg},
		{"chunk.openai.text-embedding-3-small.text_embedding", MimeTextEmbedding},
	}

	for _, tt := range tests {
		t.Run(tt.fileName, func(t *testing.T) {
			if got := Detect(tt.fileName, nil); got != tt.want {
				t.Errorf("Detect(%q) = %q, want %q", tt.fileName, got, tt.want)
			}
		})
	}
}

func TestDetectUnknownExtensionSniffsContent(t *testing.T) {
	got := Detect("mystery.bin", []byte("just some readable text content"))
	if !strings.HasPrefix(got, "text/") {
		t.Errorf("expected text/* from sniffing, got %q", got)
	}
}

func TestDetectUnknownNoContent(t *testing.T) {
	if got := Detect("mystery.bin", nil); got != MimeOctetStream {
		t.Errorf("Detect = %q, want %q", got, MimeOctetStream)
	}
}

func TestTextExtractorPassthrough(t *testing.T) {
	e := &TextExtractor{}
	sections, err := e.Extract(context.Background(), []byte("hello world"))
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}
	if len(sections) != 1 || sections[0].Text != "hello world" {
		t.Errorf("unexpected sections: %+v", sections)
	}
}

func TestTextExtractorRejectsInvalidUTF8(t *testing.T) {
	e := &TextExtractor{}
	if _, err := e.Extract(context.Background(), []byte{0xff, 0xfe, 0xfd}); err == nil {
		t.Error("expected error for invalid UTF-8")
	}
}

func TestHTMLExtractorStripsMarkup(t *testing.T) {
	doc := `<html><head><style>body{color:red}</style><script>alert(1)</script></head>
<body><h1>Title</h1><p>First paragraph.</p><p>Second <b>bold</b> paragraph.</p></body></html>`

	e := &HTMLExtractor{}
	sections, err := e.Extract(context.Background(), []byte(doc))
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}
	text := sections[0].Text

	for _, want := range []string{"Title", "First paragraph.", "bold"} {
		if !strings.Contains(text, want) {
			t.Errorf("extracted text missing %q: %q", want, text)
		}
	}
	for _, reject := range []string{"<p>", "alert", "color:red"} {
		if strings.Contains(text, reject) {
			t.Errorf("extracted text contains %q: %q", reject, text)
		}
	}
}

// writeDocx builds a minimal OOXML document with one paragraph per entry.
func writeDocx(t *testing.T, paragraphs []string) []byte {
	t.Helper()
	var sb strings.Builder
	sb.WriteString(`<?xml version="1.0" encoding="UTF-8" standalone="yes"?>` +
		`<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"><w:body>`)
	for _, p := range paragraphs {
		sb.WriteString(`<w:p><w:r><w:t>` + p + `</w:t></w:r></w:p>`)
	}
	sb.WriteString(`</w:body></w:document>`)

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	f, err := zw.Create("word/document.xml")
	if err != nil {
		t.Fatalf("create zip entry: %v", err)
	}
	if _, err := f.Write([]byte(sb.String())); err != nil {
		t.Fatalf("write zip entry: %v", err)
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("close zip: %v", err)
	}
	return buf.Bytes()
}

func TestWordExtractorReadsParagraphs(t *testing.T) {
	content := writeDocx(t, []string{"First paragraph.", "Second paragraph."})

	e := &WordExtractor{}
	sections, err := e.Extract(context.Background(), content)
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}
	if len(sections) != 1 {
		t.Fatalf("got %d sections, want 1", len(sections))
	}
	lines := strings.Split(sections[0].Text, "\n")
	if len(lines) != 2 || lines[0] != "First paragraph." || lines[1] != "Second paragraph." {
		t.Errorf("unexpected paragraphs: %q", lines)
	}
}

func TestWordExtractorRejectsNonDocx(t *testing.T) {
	e := &WordExtractor{}
	// A legacy binary .doc is not a zip archive.
	if _, err := e.Extract(context.Background(), []byte("\xd0\xcf\x11\xe0 not a zip")); err == nil {
		t.Error("expected error for non-zip content")
	}

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	if _, err := zw.Create("other.xml"); err != nil {
		t.Fatal(err)
	}
	if err := zw.Close(); err != nil {
		t.Fatal(err)
	}
	if _, err := e.Extract(context.Background(), buf.Bytes()); err == nil {
		t.Error("expected error for zip without word/document.xml")
	}
}

func TestRegistryRouting(t *testing.T) {
	r := NewRegistry()

	for _, mime := range []string{MimePlainText, MimeMarkdown, MimeJSON, MimeHTML, MimePDF, MimeMSWordX} {
		if _, ok := r.ForMime(mime); !ok {
			t.Errorf("no extractor registered for %q", mime)
		}
	}
	// Image types have no default extractor (OCR is opt-in), and neither does
	// the legacy binary Word format.
	if _, ok := r.ForMime(MimeImagePng); ok {
		t.Error("unexpected extractor for image/png")
	}
	if _, ok := r.ForMime(MimeMSWord); ok {
		t.Error("unexpected extractor for the legacy .doc format")
	}
}

func TestIsTextual(t *testing.T) {
	if !IsTextual(MimePlainText) || !IsTextual(MimeMarkdown) {
		t.Error("plain text and markdown should be textual")
	}
	if IsTextual(MimePDF) || IsTextual(MimeHTML) {
		t.Error("pdf and html are not pass-through textual")
	}
}
