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

package contentstore

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// FSStore is a filesystem-backed Store rooted at a base directory, laid out
// as <root>/<index>/<documentID>/<fileName>.
type FSStore struct {
	root string
}

// NewFSStore creates a filesystem store rooted at root, creating the root
// directory if needed.
func NewFSStore(root string) (*FSStore, error) {
	if root == "" {
		return nil, fmt.Errorf("content store root is required")
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create content store root: %w", err)
	}
	return &FSStore{root: root}, nil
}

// CreateIndexDirectory ensures the index directory exists.
func (s *FSStore) CreateIndexDirectory(ctx context.Context, index string) error {
	dir, err := s.indexPath(index)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create index dir: %w", err)
	}
	return nil
}

// DeleteIndexDirectory removes the index directory recursively.
func (s *FSStore) DeleteIndexDirectory(ctx context.Context, index string) error {
	dir, err := s.indexPath(index)
	if err != nil {
		return err
	}
	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("delete index dir: %w", err)
	}
	return nil
}

// CreateDocumentDirectory ensures the document directory exists.
func (s *FSStore) CreateDocumentDirectory(ctx context.Context, index, documentID string) error {
	dir, err := s.documentPath(index, documentID)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create document dir: %w", err)
	}
	return nil
}

// DeleteDocumentDirectory removes the document directory recursively.
func (s *FSStore) DeleteDocumentDirectory(ctx context.Context, index, documentID string) error {
	dir, err := s.documentPath(index, documentID)
	if err != nil {
		return err
	}
	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("delete document dir: %w", err)
	}
	return nil
}

// ReadFile returns a file's content, or ErrNotFound.
func (s *FSStore) ReadFile(ctx context.Context, index, documentID, fileName string) ([]byte, error) {
	path, err := s.filePath(index, documentID, fileName)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%s/%s/%s: %w", index, documentID, fileName, ErrNotFound)
		}
		return nil, fmt.Errorf("read file: %w", err)
	}
	return data, nil
}

// WriteFile writes a file atomically (temp file + rename), creating parent
// directories as needed.
func (s *FSStore) WriteFile(ctx context.Context, index, documentID, fileName string, content []byte) error {
	path, err := s.filePath(index, documentID, fileName)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create document dir: %w", err)
	}

	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, content, 0o644); err != nil {
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("rename temp file: %w", err)
	}
	return nil
}

func (s *FSStore) indexPath(index string) (string, error) {
	if err := checkPathSegment(index); err != nil {
		return "", fmt.Errorf("index %q: %w", index, err)
	}
	return filepath.Join(s.root, index), nil
}

func (s *FSStore) documentPath(index, documentID string) (string, error) {
	dir, err := s.indexPath(index)
	if err != nil {
		return "", err
	}
	if err := checkPathSegment(documentID); err != nil {
		return "", fmt.Errorf("document %q: %w", documentID, err)
	}
	return filepath.Join(dir, documentID), nil
}

func (s *FSStore) filePath(index, documentID, fileName string) (string, error) {
	dir, err := s.documentPath(index, documentID)
	if err != nil {
		return "", err
	}
	if err := checkPathSegment(fileName); err != nil {
		return "", fmt.Errorf("file %q: %w", fileName, err)
	}
	return filepath.Join(dir, fileName), nil
}

// checkPathSegment rejects values that would escape the store root.
func checkPathSegment(segment string) error {
	if segment == "" {
		return fmt.Errorf("empty path segment")
	}
	if strings.Contains(segment, "/") || strings.Contains(segment, "\\") {
		return fmt.Errorf("path separator not allowed")
	}
	if segment == "." || segment == ".." {
		return fmt.Errorf("relative path segment not allowed")
	}
	return nil
}
