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

// Package contentstore persists document blobs and pipeline status documents
// under (index, documentID, fileName) coordinates.
package contentstore

import (
	"context"
	"errors"
)

// ErrNotFound signals a missing file, document, or index. Callers distinguish
// it from I/O failures with errors.Is.
var ErrNotFound = errors.New("content not found")

// Store is a blob store scoped by index and document directories.
//
// Writes at the file level are last-writer-wins; implementations must make
// individual file writes atomic so readers never observe partial content.
type Store interface {
	// CreateIndexDirectory ensures the index directory exists.
	CreateIndexDirectory(ctx context.Context, index string) error

	// DeleteIndexDirectory removes an index directory and everything under
	// it. Deleting an absent index is not an error.
	DeleteIndexDirectory(ctx context.Context, index string) error

	// CreateDocumentDirectory ensures the document directory exists.
	CreateDocumentDirectory(ctx context.Context, index, documentID string) error

	// DeleteDocumentDirectory removes a document directory and its files.
	// Deleting an absent document is not an error.
	DeleteDocumentDirectory(ctx context.Context, index, documentID string) error

	// ReadFile returns a file's content, or ErrNotFound.
	ReadFile(ctx context.Context, index, documentID, fileName string) ([]byte, error)

	// WriteFile writes a file atomically, replacing any previous content.
	WriteFile(ctx context.Context, index, documentID, fileName string, content []byte) error
}
