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

package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/kraklabs/recall/pkg/contentstore"
	"github.com/kraklabs/recall/pkg/pipeline"
	"github.com/kraklabs/recall/pkg/search"
	"github.com/kraklabs/recall/pkg/vectorstore"
)

// maxUploadMemory bounds how much of a multipart upload is buffered in
// memory; larger parts spill to temp files.
const maxUploadMemory = 64 << 20

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"message": msg})
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"service":        "recall",
		"status":         "ok",
		"uptime_seconds": int64(time.Since(s.engine.StartedAt).Seconds()),
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type uploadResponse struct {
	Index      string `json:"index"`
	DocumentID string `json:"document_id"`
	Message    string `json:"message"`
}

// handleUpload accepts a multipart document upload and schedules its
// ingestion. Returns 202: ingestion is asynchronous, poll /upload-status.
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUploadMemory); err != nil {
		writeError(w, http.StatusBadRequest, "malformed multipart form: "+err.Error())
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	index := r.FormValue("index")
	documentID := r.FormValue("documentId")
	if documentID == "" {
		documentID = r.FormValue("document_id")
	}

	tags, err := parseTagValues(r.MultipartForm.Value["tags"])
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	steps := parseStepValues(r.MultipartForm.Value["steps"])
	if len(steps) == 0 {
		steps = s.engine.DefaultSteps()
	}

	var files []pipeline.UploadFile
	for _, headers := range r.MultipartForm.File {
		for _, header := range headers {
			f, err := header.Open()
			if err != nil {
				writeError(w, http.StatusBadRequest, "read upload "+header.Filename+": "+err.Error())
				return
			}
			content, err := io.ReadAll(f)
			_ = f.Close()
			if err != nil {
				writeError(w, http.StatusBadRequest, "read upload "+header.Filename+": "+err.Error())
				return
			}
			files = append(files, pipeline.UploadFile{Name: header.Filename, Content: content})
		}
	}

	docID, err := s.engine.Orchestrator.ImportDocument(r.Context(), pipeline.ImportRequest{
		Index:      index,
		DocumentID: documentID,
		Tags:       tags,
		Steps:      steps,
		Files:      files,
	})
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	writeJSON(w, http.StatusAccepted, uploadResponse{
		Index:      index,
		DocumentID: docID,
		Message:    "document upload accepted, ingestion started",
	})
}

// parseTagValues parses repeated "key:value" form entries. A bare "key"
// yields an empty value.
func parseTagValues(values []string) (map[string][]string, error) {
	if len(values) == 0 {
		return nil, nil
	}
	tags := make(map[string][]string)
	for _, entry := range values {
		if strings.TrimSpace(entry) == "" {
			continue
		}
		key, value, _ := strings.Cut(entry, ":")
		key = strings.TrimSpace(key)
		if key == "" {
			return nil, errors.New("tag entry " + entry + " has an empty key")
		}
		tags[key] = append(tags[key], strings.TrimSpace(value))
	}
	return tags, nil
}

// parseStepValues accepts repeated entries and comma-separated lists.
func parseStepValues(values []string) []string {
	var steps []string
	for _, entry := range values {
		for _, step := range strings.Split(entry, ",") {
			if step = strings.TrimSpace(step); step != "" {
				steps = append(steps, step)
			}
		}
	}
	return steps
}

type statusResponse struct {
	Index          string    `json:"index"`
	DocumentID     string    `json:"document_id"`
	Completed      bool      `json:"completed"`
	Empty          bool      `json:"empty"`
	Steps          []string  `json:"steps"`
	RemainingSteps []string  `json:"remaining_steps"`
	CompletedSteps []string  `json:"completed_steps"`
	Creation       time.Time `json:"creation"`
	LastUpdate     time.Time `json:"last_update"`
}

func (s *Server) handleUploadStatus(w http.ResponseWriter, r *http.Request) {
	index := r.URL.Query().Get("index")
	documentID := r.URL.Query().Get("documentId")
	if documentID == "" {
		documentID = r.URL.Query().Get("document_id")
	}
	if documentID == "" {
		writeError(w, http.StatusBadRequest, "documentId is required")
		return
	}

	p, err := s.engine.Orchestrator.ReadPipelineStatus(r.Context(), index, documentID)
	if errors.Is(err, contentstore.ErrNotFound) {
		writeError(w, http.StatusNotFound, "document not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, statusResponse{
		Index:          p.Index,
		DocumentID:     p.DocumentID,
		Completed:      p.Complete(),
		Empty:          len(p.Files) == 0,
		Steps:          p.Steps,
		RemainingSteps: p.RemainingSteps,
		CompletedSteps: p.CompletedSteps,
		Creation:       p.Creation,
		LastUpdate:     p.LastUpdate,
	})
}

func (s *Server) handleListIndexes(w http.ResponseWriter, r *http.Request) {
	indexes, err := s.engine.Search.ListIndexes(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if indexes == nil {
		indexes = []vectorstore.IndexDetails{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"results": indexes})
}

func (s *Server) handleDeleteIndex(w http.ResponseWriter, r *http.Request) {
	index := r.URL.Query().Get("index")
	if err := s.engine.Orchestrator.StartIndexDeletion(r.Context(), index); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"message": "index deletion scheduled"})
}

func (s *Server) handleDeleteDocument(w http.ResponseWriter, r *http.Request) {
	index := r.URL.Query().Get("index")
	documentID := r.URL.Query().Get("documentId")
	if documentID == "" {
		documentID = r.URL.Query().Get("document_id")
	}
	if documentID == "" {
		writeError(w, http.StatusBadRequest, "documentId is required")
		return
	}
	if err := s.engine.Orchestrator.StartDocumentDeletion(r.Context(), index, documentID); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"message": "document deletion scheduled"})
}

type searchRequest struct {
	Index        string                `json:"index"`
	Query        string                `json:"query"`
	Filters      map[string][]string   `json:"filters,omitempty"`
	OrFilters    []map[string][]string `json:"or_filters,omitempty"`
	MinRelevance float64               `json:"min_relevance"`
	Limit        int                   `json:"limit"`
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	var req searchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body: "+err.Error())
		return
	}

	result, err := s.engine.Search.Search(r.Context(), search.SearchRequest{
		Index:        req.Index,
		Query:        req.Query,
		Filters:      toFilters(req.Filters, req.OrFilters),
		MinRelevance: req.MinRelevance,
		Limit:        req.Limit,
	})
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, result)
}

type askRequest struct {
	Index        string                `json:"index"`
	Question     string                `json:"question"`
	Filters      map[string][]string   `json:"filters,omitempty"`
	OrFilters    []map[string][]string `json:"or_filters,omitempty"`
	MinRelevance float64               `json:"min_relevance"`
	Stream       bool                  `json:"stream"`
}

// handleAsk answers a question grounded on ingested documents. With
// "stream": true the response is newline-delimited JSON, one MemoryAnswer
// snapshot per line, ending with the complete answer.
func (s *Server) handleAsk(w http.ResponseWriter, r *http.Request) {
	var req askRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body: "+err.Error())
		return
	}

	ask := search.AskRequest{
		Index:        req.Index,
		Question:     req.Question,
		Filters:      toFilters(req.Filters, req.OrFilters),
		MinRelevance: req.MinRelevance,
	}

	if !req.Stream {
		answer, err := s.engine.Search.Ask(r.Context(), ask)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, answer)
		return
	}

	w.Header().Set("Content-Type", "application/x-ndjson")
	w.WriteHeader(http.StatusOK)
	flusher, _ := w.(http.Flusher)
	enc := json.NewEncoder(w)

	_, err := s.engine.Search.AskStream(r.Context(), ask, func(answer *search.MemoryAnswer) error {
		if err := enc.Encode(answer); err != nil {
			return err
		}
		if flusher != nil {
			flusher.Flush()
		}
		return nil
	})
	if err != nil {
		// Headers are already out; the best we can do is log and drop.
		s.logger.Error("server.ask.stream_failed", "err", err)
	}
}

// toFilters folds the single AND filter and the OR filter list into the
// store's filter slice (entries are OR-ed, pairs within one entry AND-ed).
func toFilters(single map[string][]string, multi []map[string][]string) []vectorstore.MemoryFilter {
	var filters []vectorstore.MemoryFilter
	if len(single) > 0 {
		filters = append(filters, vectorstore.MemoryFilter(single))
	}
	for _, m := range multi {
		if len(m) > 0 {
			filters = append(filters, vectorstore.MemoryFilter(m))
		}
	}
	return filters
}
