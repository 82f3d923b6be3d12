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

// Package vectorstore defines the memory record model and the vector store
// contract: index lifecycle, idempotent upserts keyed by record id, deletes
// by id or tag filter, and similarity search with filters and a minimum
// relevance threshold.
package vectorstore

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// Reserved tag keys attached to every record by the ingestion pipeline.
// Callers may not set tags in the reserved (double underscore) namespace.
const (
	TagDocumentID    = "__document_id"
	TagFileID        = "__file_id"
	TagFilePartition = "__file_partition"
	TagFileType      = "__file_type"

	// ReservedTagPrefix marks the reserved namespace.
	ReservedTagPrefix = "__"
)

// Payload keys used by the ingestion pipeline and read back by search.
const (
	PayloadFileName        = "file_name"
	PayloadURL             = "url"
	PayloadText            = "text"
	PayloadLastUpdate      = "last_update"
	PayloadPartitionNumber = "partition_number"
	PayloadSectionNumber   = "section_number"
	PayloadVectorProvider  = "vector_provider"
	PayloadVectorGenerator = "vector_generator"
)

// ErrIndexNotFound signals an operation against an index that was never
// created or has been dropped.
var ErrIndexNotFound = errors.New("index not found")

// MemoryRecord is the unit of search: a vector plus the tags and payload
// needed to reconstruct a citation.
//
// The id is deterministic in (documentID, partitionID), so re-embedding the
// same partition overwrites the previous record instead of duplicating it.
type MemoryRecord struct {
	ID      string              `json:"id"`
	Vector  []float32           `json:"vector"`
	Tags    map[string][]string `json:"tags"`
	Payload map[string]any      `json:"payload"`
}

// NewRecordID builds the deterministic record id for a document partition.
func NewRecordID(documentID, partitionID string) string {
	return fmt.Sprintf("d=%s//p=%s", documentID, partitionID)
}

// TagValue returns the first value of a tag, or "" when absent.
func (r *MemoryRecord) TagValue(key string) string {
	if vals, ok := r.Tags[key]; ok && len(vals) > 0 {
		return vals[0]
	}
	return ""
}

// PayloadString returns a payload field as a string, or "" when absent or of
// another type.
func (r *MemoryRecord) PayloadString(key string) string {
	if v, ok := r.Payload[key]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

// MemoryFilter is a conjunction of required tag pairs: a record matches when
// every (key, value) pair is present in its tags. A slice of filters is a
// disjunction — the record matches if any filter matches.
type MemoryFilter map[string][]string

// ByTag adds a required tag pair and returns the filter for chaining.
func (f MemoryFilter) ByTag(key, value string) MemoryFilter {
	f[key] = append(f[key], value)
	return f
}

// ByDocument requires the reserved document-id tag.
func (f MemoryFilter) ByDocument(documentID string) MemoryFilter {
	return f.ByTag(TagDocumentID, documentID)
}

// Empty reports whether the filter carries no pairs.
func (f MemoryFilter) Empty() bool {
	return len(f) == 0
}

// Matches reports whether a record satisfies every pair in the filter.
func (f MemoryFilter) Matches(r *MemoryRecord) bool {
	for key, values := range f {
		recorded := r.Tags[key]
		for _, want := range values {
			found := false
			for _, have := range recorded {
				if have == want {
					found = true
					break
				}
			}
			if !found {
				return false
			}
		}
	}
	return true
}

// AnyMatches reports whether a record satisfies at least one of the filters.
// An empty filter list matches everything.
func AnyMatches(filters []MemoryFilter, r *MemoryRecord) bool {
	if len(filters) == 0 {
		return true
	}
	for _, f := range filters {
		if f.Empty() || f.Matches(r) {
			return true
		}
	}
	return false
}

// SearchHit is one similarity search result.
type SearchHit struct {
	Record    *MemoryRecord
	Relevance float64
}

// IndexDetails describes one index.
type IndexDetails struct {
	Name       string `json:"name"`
	VectorSize int    `json:"vector_size"`
	Records    int64  `json:"records"`
}

// Store is the vector store contract. Upserts are idempotent by record id;
// deletes tolerate absent ids, filters, and indexes.
type Store interface {
	// CreateIndex ensures an index exists, sized for vectors of vectorSize.
	// Creating an existing index is a no-op.
	CreateIndex(ctx context.Context, index string, vectorSize int) error

	// DeleteIndex drops an index and all its records. Dropping an absent
	// index is not an error.
	DeleteIndex(ctx context.Context, index string) error

	// ListIndexes returns details for every index.
	ListIndexes(ctx context.Context) ([]IndexDetails, error)

	// Upsert inserts or replaces a record by id.
	Upsert(ctx context.Context, index string, record *MemoryRecord) error

	// DeleteByID removes a record by id. Absent ids are ignored.
	DeleteByID(ctx context.Context, index, id string) error

	// DeleteByFilter removes every record matching any of the filters.
	DeleteByFilter(ctx context.Context, index string, filters ...MemoryFilter) error

	// Search returns up to limit records above minRelevance, most relevant
	// first. A missing index yields no results, not an error.
	Search(ctx context.Context, index string, vector []float32, filters []MemoryFilter, minRelevance float64, limit int) ([]SearchHit, error)

	// List returns up to limit records matching the filters, without
	// ranking. Used for filter-only queries.
	List(ctx context.Context, index string, filters []MemoryFilter, limit int) ([]*MemoryRecord, error)

	// Close releases backend resources.
	Close() error
}

// DefaultIndexName is used when callers omit the index.
const DefaultIndexName = "default"

// MaxIndexNameLength bounds normalized index names.
const MaxIndexNameLength = 128

var indexNameRE = regexp.MustCompile(`^[a-z0-9][a-z0-9-]*$`)

// NormalizeIndexName lowercases and validates an index name. Empty names map
// to DefaultIndexName. Distinct raw names can normalize to the same value;
// that collision is the caller's to manage.
func NormalizeIndexName(name string) (string, error) {
	name = strings.TrimSpace(strings.ToLower(name))
	if name == "" {
		return DefaultIndexName, nil
	}
	name = strings.ReplaceAll(name, "_", "-")
	name = strings.ReplaceAll(name, " ", "-")
	if len(name) > MaxIndexNameLength {
		return "", fmt.Errorf("index name exceeds %d characters", MaxIndexNameLength)
	}
	if !indexNameRE.MatchString(name) || strings.HasSuffix(name, "-") {
		return "", fmt.Errorf("index name %q: only lowercase alphanumerics and interior hyphens allowed", name)
	}
	return name, nil
}
