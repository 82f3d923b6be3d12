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

// Package filetype classifies files by MIME type and extracts plain text from
// supported formats. Classification is extension-first with content sniffing
// as fallback, so ".md" keeps its markdown identity even though the bytes are
// plain text.
package filetype

import (
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

// MIME types recognized by the ingestion pipeline.
const (
	MimePlainText     = "text/plain"
	MimeMarkdown      = "text/plain-markdown"
	MimeJSON          = "application/json"
	MimePDF           = "application/pdf"
	MimeMSWord        = "application/msword"
	MimeMSWordX       = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	MimeHTML          = "text/html"
	MimeImageJpeg     = "image/jpeg"
	MimeImagePng      = "image/png"
	MimeImageTiff     = "image/tiff"
	MimeImageBmp      = "image/bmp"
	MimeImageGif      = "image/gif"
	MimeTextEmbedding = "float[]"
	MimeOctetStream   = "application/octet-stream"
)

// FileExtTextEmbedding marks embedding artifacts; their MIME is the internal
// float[] marker and they are never re-extracted.
const FileExtTextEmbedding = ".text_embedding"

// extensionMap maps lowercase file extensions to MIME types.
var extensionMap = map[string]string{
	".txt":               MimePlainText,
	".text":              MimePlainText,
	".md":                MimeMarkdown,
	".markdown":          MimeMarkdown,
	".json":              MimeJSON,
	".pdf":               MimePDF,
	".doc":               MimeMSWord,
	".docx":              MimeMSWordX,
	".html":              MimeHTML,
	".htm":               MimeHTML,
	".jpg":               MimeImageJpeg,
	".jpeg":              MimeImageJpeg,
	".png":               MimeImagePng,
	".tiff":              MimeImageTiff,
	".bmp":               MimeImageBmp,
	".gif":               MimeImageGif,
	FileExtTextEmbedding: MimeTextEmbedding,
}

// Detect returns the MIME type for a file, preferring the extension map and
// falling back to content sniffing when the extension is unknown. Content may
// be nil, in which case an unknown extension yields application/octet-stream.
func Detect(fileName string, content []byte) string {
	ext := strings.ToLower(filepath.Ext(fileName))
	if mime, ok := extensionMap[ext]; ok {
		return mime
	}
	if len(content) > 0 {
		detected := mimetype.Detect(content)
		// Sniffing never distinguishes markdown from plain text; strip the
		// charset parameter it appends.
		m := detected.String()
		if i := strings.Index(m, ";"); i >= 0 {
			m = strings.TrimSpace(m[:i])
		}
		return m
	}
	return MimeOctetStream
}

// IsTextual reports whether a MIME type is already plain text or markdown,
// meaning extraction is a pass-through.
func IsTextual(mime string) bool {
	return mime == MimePlainText || mime == MimeMarkdown
}
