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
	"errors"
	"testing"
)

// setupTestStore creates an FSStore rooted at a temp directory.
func setupTestStore(t *testing.T) *FSStore {
	t.Helper()
	store, err := NewFSStore(t.TempDir())
	if err != nil {
		t.Fatalf("setupTestStore failed: %v", err)
	}
	return store
}

func TestWriteReadRoundtrip(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	content := []byte("green is a great color")
	if err := store.WriteFile(ctx, "default", "doc1", "source.txt", content); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	got, err := store.ReadFile(ctx, "default", "doc1", "source.txt")
	if err != nil {
		t.Fatalf("ReadFile failed: %v", err)
	}
	if string(got) != string(content) {
		t.Errorf("content mismatch: got %q", got)
	}
}

func TestReadMissingFileIsNotFound(t *testing.T) {
	store := setupTestStore(t)

	_, err := store.ReadFile(context.Background(), "default", "doc1", "absent.txt")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestOverwriteIsLastWriterWins(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	if err := store.WriteFile(ctx, "idx", "doc", "f.txt", []byte("v1")); err != nil {
		t.Fatalf("first write failed: %v", err)
	}
	if err := store.WriteFile(ctx, "idx", "doc", "f.txt", []byte("v2")); err != nil {
		t.Fatalf("second write failed: %v", err)
	}
	got, err := store.ReadFile(ctx, "idx", "doc", "f.txt")
	if err != nil {
		t.Fatalf("ReadFile failed: %v", err)
	}
	if string(got) != "v2" {
		t.Errorf("expected v2, got %q", got)
	}
}

func TestDeleteDocumentDirectory(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	if err := store.WriteFile(ctx, "idx", "doc", "f.txt", []byte("x")); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}
	if err := store.DeleteDocumentDirectory(ctx, "idx", "doc"); err != nil {
		t.Fatalf("DeleteDocumentDirectory failed: %v", err)
	}
	if _, err := store.ReadFile(ctx, "idx", "doc", "f.txt"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound after delete, got %v", err)
	}

	// Deleting again must not error (idempotent deletes).
	if err := store.DeleteDocumentDirectory(ctx, "idx", "doc"); err != nil {
		t.Errorf("repeat delete failed: %v", err)
	}
}

func TestDeleteIndexDirectory(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	if err := store.WriteFile(ctx, "idx", "doc", "f.txt", []byte("x")); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}
	if err := store.DeleteIndexDirectory(ctx, "idx"); err != nil {
		t.Fatalf("DeleteIndexDirectory failed: %v", err)
	}
	if _, err := store.ReadFile(ctx, "idx", "doc", "f.txt"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound after index delete, got %v", err)
	}
}

func TestPathTraversalRejected(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	cases := []struct{ index, doc, file string }{
		{"../evil", "doc", "f.txt"},
		{"idx", "..", "f.txt"},
		{"idx", "doc", "../../etc/passwd"},
		{"idx", "doc", ""},
	}
	for _, c := range cases {
		if err := store.WriteFile(ctx, c.index, c.doc, c.file, []byte("x")); err == nil {
			t.Errorf("expected rejection for %+v", c)
		}
	}
}
