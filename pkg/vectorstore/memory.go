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

package vectorstore

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"
)

// MemoryStore is an in-process Store used for local mode and tests.
// Search ranks by cosine similarity.
type MemoryStore struct {
	mu      sync.RWMutex
	indexes map[string]*memoryIndex
}

type memoryIndex struct {
	vectorSize int
	records    map[string]*MemoryRecord
}

// NewMemoryStore creates an empty in-process store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{indexes: make(map[string]*memoryIndex)}
}

// CreateIndex ensures an index exists. Re-creating with a different vector
// size is an error; the existing index wins otherwise.
func (s *MemoryStore) CreateIndex(ctx context.Context, index string, vectorSize int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.indexes[index]; ok {
		if existing.vectorSize != vectorSize {
			return fmt.Errorf("index %q exists with vector size %d, requested %d", index, existing.vectorSize, vectorSize)
		}
		return nil
	}
	s.indexes[index] = &memoryIndex{
		vectorSize: vectorSize,
		records:    make(map[string]*MemoryRecord),
	}
	return nil
}

// DeleteIndex drops an index; absent indexes are ignored.
func (s *MemoryStore) DeleteIndex(ctx context.Context, index string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.indexes, index)
	return nil
}

// ListIndexes returns details for every index.
func (s *MemoryStore) ListIndexes(ctx context.Context) ([]IndexDetails, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	details := make([]IndexDetails, 0, len(s.indexes))
	for name, idx := range s.indexes {
		details = append(details, IndexDetails{
			Name:       name,
			VectorSize: idx.vectorSize,
			Records:    int64(len(idx.records)),
		})
	}
	sort.Slice(details, func(i, j int) bool { return details[i].Name < details[j].Name })
	return details, nil
}

// Upsert inserts or replaces a record by id.
func (s *MemoryStore) Upsert(ctx context.Context, index string, record *MemoryRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx, ok := s.indexes[index]
	if !ok {
		return fmt.Errorf("upsert into %q: %w", index, ErrIndexNotFound)
	}
	if len(record.Vector) != idx.vectorSize {
		return fmt.Errorf("vector size %d does not match index size %d", len(record.Vector), idx.vectorSize)
	}
	idx.records[record.ID] = record
	return nil
}

// DeleteByID removes a record; absent ids and indexes are ignored.
func (s *MemoryStore) DeleteByID(ctx context.Context, index, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if idx, ok := s.indexes[index]; ok {
		delete(idx.records, id)
	}
	return nil
}

// DeleteByFilter removes every record matching any filter.
func (s *MemoryStore) DeleteByFilter(ctx context.Context, index string, filters ...MemoryFilter) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx, ok := s.indexes[index]
	if !ok {
		return nil
	}
	for id, record := range idx.records {
		if AnyMatches(filters, record) {
			delete(idx.records, id)
		}
	}
	return nil
}

// Search ranks matching records by cosine similarity.
func (s *MemoryStore) Search(ctx context.Context, index string, vector []float32, filters []MemoryFilter, minRelevance float64, limit int) ([]SearchHit, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	idx, ok := s.indexes[index]
	if !ok {
		return nil, nil
	}
	if limit <= 0 {
		limit = 10
	}

	var hits []SearchHit
	for _, record := range idx.records {
		if !AnyMatches(filters, record) {
			continue
		}
		relevance := cosineSimilarity(vector, record.Vector)
		if relevance < minRelevance {
			continue
		}
		hits = append(hits, SearchHit{Record: record, Relevance: relevance})
	}
	sort.Slice(hits, func(i, j int) bool { return hits[i].Relevance > hits[j].Relevance })
	if len(hits) > limit {
		hits = hits[:limit]
	}
	return hits, nil
}

// List returns matching records without ranking, ordered by id for
// determinism.
func (s *MemoryStore) List(ctx context.Context, index string, filters []MemoryFilter, limit int) ([]*MemoryRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	idx, ok := s.indexes[index]
	if !ok {
		return nil, nil
	}
	if limit <= 0 {
		limit = 10
	}

	var records []*MemoryRecord
	for _, record := range idx.records {
		if AnyMatches(filters, record) {
			records = append(records, record)
		}
	}
	sort.Slice(records, func(i, j int) bool { return records[i].ID < records[j].ID })
	if len(records) > limit {
		records = records[:limit]
	}
	return records, nil
}

// Close is a no-op for the in-process store.
func (s *MemoryStore) Close() error { return nil }

// cosineSimilarity computes the cosine of the angle between two vectors.
// Mismatched lengths score zero.
func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
