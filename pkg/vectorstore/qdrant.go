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
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/qdrant/go-client/qdrant"
)

// Qdrant payload fields. Record tags are flattened into a keyword list of
// "key:value" strings so delete-by-filter and search filters map onto plain
// keyword match conditions.
const (
	qdrantFieldRecordID = "_record_id"
	qdrantFieldTags     = "_tags"
	qdrantFieldTagsJSON = "_tags_json"
	qdrantFieldPayload  = "_payload"
)

// QdrantConfig configures the Qdrant adapter.
type QdrantConfig struct {
	// Host of the Qdrant gRPC endpoint.
	Host string

	// Port of the Qdrant gRPC endpoint (default 6334).
	Port int

	// APIKey enables authenticated access; empty for local instances.
	APIKey string

	// UseTLS enables transport security, required by managed clusters.
	UseTLS bool
}

// QdrantStore implements Store against a Qdrant cluster. Record ids are
// strings, Qdrant point ids are UUIDs; the adapter derives a stable UUID from
// each record id and keeps the original in the payload.
type QdrantStore struct {
	client *qdrant.Client
	logger *slog.Logger
}

// NewQdrantStore connects to a Qdrant cluster.
func NewQdrantStore(cfg QdrantConfig, logger *slog.Logger) (*QdrantStore, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Host == "" {
		cfg.Host = "localhost"
	}
	if cfg.Port == 0 {
		cfg.Port = 6334
	}

	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   cfg.Host,
		Port:   cfg.Port,
		APIKey: cfg.APIKey,
		UseTLS: cfg.UseTLS,
	})
	if err != nil {
		return nil, fmt.Errorf("connect qdrant at %s:%d: %w", cfg.Host, cfg.Port, err)
	}
	return &QdrantStore{client: client, logger: logger}, nil
}

// CreateIndex ensures a collection exists with cosine distance.
func (s *QdrantStore) CreateIndex(ctx context.Context, index string, vectorSize int) error {
	exists, err := s.client.CollectionExists(ctx, index)
	if err != nil {
		return fmt.Errorf("check collection %q: %w", index, err)
	}
	if exists {
		return nil
	}

	err = s.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: index,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     uint64(vectorSize),
			Distance: qdrant.Distance_Cosine,
		}),
	})
	if err != nil {
		return fmt.Errorf("create collection %q: %w", index, err)
	}
	s.logger.Info("vectorstore.qdrant.collection.created", "index", index, "vector_size", vectorSize)
	return nil
}

// DeleteIndex drops a collection; absent collections are ignored.
func (s *QdrantStore) DeleteIndex(ctx context.Context, index string) error {
	exists, err := s.client.CollectionExists(ctx, index)
	if err != nil {
		return fmt.Errorf("check collection %q: %w", index, err)
	}
	if !exists {
		return nil
	}
	if err := s.client.DeleteCollection(ctx, index); err != nil {
		return fmt.Errorf("delete collection %q: %w", index, err)
	}
	return nil
}

// ListIndexes returns details for every collection.
func (s *QdrantStore) ListIndexes(ctx context.Context) ([]IndexDetails, error) {
	names, err := s.client.ListCollections(ctx)
	if err != nil {
		return nil, fmt.Errorf("list collections: %w", err)
	}

	details := make([]IndexDetails, 0, len(names))
	for _, name := range names {
		count, err := s.client.Count(ctx, &qdrant.CountPoints{CollectionName: name})
		if err != nil {
			return nil, fmt.Errorf("count collection %q: %w", name, err)
		}
		details = append(details, IndexDetails{Name: name, Records: int64(count)})
	}
	return details, nil
}

// Upsert inserts or replaces a record by its derived point id.
func (s *QdrantStore) Upsert(ctx context.Context, index string, record *MemoryRecord) error {
	payload, err := qdrantPayload(record)
	if err != nil {
		return err
	}

	_, err = s.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: index,
		Points: []*qdrant.PointStruct{{
			Id:      qdrant.NewIDUUID(pointUUID(record.ID)),
			Vectors: qdrant.NewVectors(record.Vector...),
			Payload: qdrant.NewValueMap(payload),
		}},
	})
	if err != nil {
		return fmt.Errorf("upsert %q into %q: %w", record.ID, index, err)
	}
	return nil
}

// DeleteByID removes a record by its derived point id.
func (s *QdrantStore) DeleteByID(ctx context.Context, index, id string) error {
	_, err := s.client.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: index,
		Points:         qdrant.NewPointsSelector(qdrant.NewIDUUID(pointUUID(id))),
	})
	if err != nil {
		return fmt.Errorf("delete %q from %q: %w", id, index, err)
	}
	return nil
}

// DeleteByFilter removes every record matching any filter.
func (s *QdrantStore) DeleteByFilter(ctx context.Context, index string, filters ...MemoryFilter) error {
	qf := qdrantFilter(filters)
	if qf == nil {
		return nil
	}
	_, err := s.client.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: index,
		Points:         qdrant.NewPointsSelectorFilter(qf),
	})
	if err != nil {
		return fmt.Errorf("delete by filter from %q: %w", index, err)
	}
	return nil
}

// Search runs a similarity query with the score threshold pushed down.
func (s *QdrantStore) Search(ctx context.Context, index string, vector []float32, filters []MemoryFilter, minRelevance float64, limit int) ([]SearchHit, error) {
	exists, err := s.client.CollectionExists(ctx, index)
	if err != nil {
		return nil, fmt.Errorf("check collection %q: %w", index, err)
	}
	if !exists {
		return nil, nil
	}
	if limit <= 0 {
		limit = 10
	}

	lim := uint64(limit)
	threshold := float32(minRelevance)
	points, err := s.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: index,
		Query:          qdrant.NewQuery(vector...),
		Filter:         qdrantFilter(filters),
		Limit:          &lim,
		ScoreThreshold: &threshold,
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, fmt.Errorf("query %q: %w", index, err)
	}

	hits := make([]SearchHit, 0, len(points))
	for _, point := range points {
		record, err := recordFromQdrantPayload(point.Payload)
		if err != nil {
			return nil, err
		}
		hits = append(hits, SearchHit{Record: record, Relevance: float64(point.Score)})
	}
	return hits, nil
}

// List scrolls matching records without ranking.
func (s *QdrantStore) List(ctx context.Context, index string, filters []MemoryFilter, limit int) ([]*MemoryRecord, error) {
	exists, err := s.client.CollectionExists(ctx, index)
	if err != nil {
		return nil, fmt.Errorf("check collection %q: %w", index, err)
	}
	if !exists {
		return nil, nil
	}
	if limit <= 0 {
		limit = 10
	}

	lim := uint32(limit)
	points, err := s.client.Scroll(ctx, &qdrant.ScrollPoints{
		CollectionName: index,
		Filter:         qdrantFilter(filters),
		Limit:          &lim,
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, fmt.Errorf("scroll %q: %w", index, err)
	}

	records := make([]*MemoryRecord, 0, len(points))
	for _, point := range points {
		record, err := recordFromQdrantPayload(point.Payload)
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}
	return records, nil
}

// Close closes the underlying gRPC connection.
func (s *QdrantStore) Close() error {
	return s.client.Close()
}

// pointUUID derives a stable UUID from a record id.
func pointUUID(recordID string) string {
	sum := sha256.Sum256([]byte(recordID))
	id, _ := uuid.FromBytes(sum[:16])
	return id.String()
}

// qdrantPayload flattens a record for storage: the original id, tags as
// "key:value" keywords for filtering, and tags/payload as JSON for faithful
// reconstruction.
func qdrantPayload(record *MemoryRecord) (map[string]any, error) {
	tagsJSON, err := json.Marshal(record.Tags)
	if err != nil {
		return nil, fmt.Errorf("marshal tags: %w", err)
	}
	payloadJSON, err := json.Marshal(record.Payload)
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}

	var tagPairs []any
	for key, values := range record.Tags {
		for _, value := range values {
			tagPairs = append(tagPairs, key+":"+value)
		}
	}

	return map[string]any{
		qdrantFieldRecordID: record.ID,
		qdrantFieldTags:     tagPairs,
		qdrantFieldTagsJSON: string(tagsJSON),
		qdrantFieldPayload:  string(payloadJSON),
	}, nil
}

// recordFromQdrantPayload reconstructs a MemoryRecord from a stored payload.
// The vector is not read back; search consumers only need tags and payload.
func recordFromQdrantPayload(payload map[string]*qdrant.Value) (*MemoryRecord, error) {
	record := &MemoryRecord{
		Tags:    make(map[string][]string),
		Payload: make(map[string]any),
	}
	if v, ok := payload[qdrantFieldRecordID]; ok {
		record.ID = v.GetStringValue()
	}
	if v, ok := payload[qdrantFieldTagsJSON]; ok {
		if err := json.Unmarshal([]byte(v.GetStringValue()), &record.Tags); err != nil {
			return nil, fmt.Errorf("unmarshal record tags: %w", err)
		}
	}
	if v, ok := payload[qdrantFieldPayload]; ok {
		if err := json.Unmarshal([]byte(v.GetStringValue()), &record.Payload); err != nil {
			return nil, fmt.Errorf("unmarshal record payload: %w", err)
		}
	}
	return record, nil
}

// qdrantFilter converts filter disjunctions to a Qdrant filter: each
// MemoryFilter becomes a Must of keyword matches, joined under Should.
func qdrantFilter(filters []MemoryFilter) *qdrant.Filter {
	var should []*qdrant.Condition
	for _, f := range filters {
		var must []*qdrant.Condition
		for key, values := range f {
			for _, value := range values {
				must = append(must, qdrant.NewMatch(qdrantFieldTags, key+":"+value))
			}
		}
		if len(must) == 0 {
			continue
		}
		should = append(should, qdrant.NewFilterAsCondition(&qdrant.Filter{Must: must}))
	}
	if len(should) == 0 {
		return nil
	}
	return &qdrant.Filter{Should: should}
}
