// Package store owns the vector index: collection lifecycle, chunk
// upsertion, similarity search with metadata filters, and
// document-level aggregation over chunk-level points.
package store

import (
	"context"

	"github.com/google/uuid"
)

// Payload field names shared by all drivers.
const (
	FieldText         = "text"
	FieldDocumentID   = "document_id"
	FieldSource       = "source"
	FieldDocumentType = "document_type"
	FieldPatientID    = "patient_id"
	FieldCaseNumber   = "case_number"
	FieldTotalPages   = "total_pages"
	FieldPage         = "page"
	FieldDuration     = "duration"
)

// DocumentTypeTranscript marks points indexed from speech transcripts.
const DocumentTypeTranscript = "transcript"

// SearchResult is one scored chunk.
type SearchResult struct {
	Text     string         `json:"text"`
	Score    float32        `json:"score"`
	Metadata map[string]any `json:"metadata"`
}

// Document summarizes all points sharing one document_id.
type Document struct {
	DocumentID   string `json:"document_id"`
	Source       string `json:"source"`
	DocumentType string `json:"document_type"`
	PatientID    string `json:"patient_id"`
	CaseNumber   string `json:"case_number"`
	TotalPages   int    `json:"total_pages"`
	Chunks       int    `json:"chunks"`
}

// Transcript is a speech transcription to index.
type Transcript struct {
	Text     string
	Filename string
	Duration float64
}

// VectorIndex is the vector database capability consumed by the
// orchestrator and the ingestion pipeline.
type VectorIndex interface {
	// EnsureCollection creates the collection if missing. Failure at
	// startup is fatal.
	EnsureCollection(ctx context.Context) error

	// RecreateCollection drops and recreates the collection.
	RecreateCollection(ctx context.Context) error

	// AddText chunks, embeds and upserts one text. Returns the number
	// of chunks indexed; zero when the text yields no chunks.
	AddText(ctx context.Context, text string, metadata map[string]any) (int, error)

	// AddTranscript indexes a speech transcript under a fresh
	// document_id with patient metadata.
	AddTranscript(ctx context.Context, tr *Transcript, patientID string) (int, error)

	// Search embeds the query and returns up to topK chunks ordered by
	// descending score. filters are equality conditions ANDed together.
	Search(ctx context.Context, query string, topK int, filters map[string]any) ([]SearchResult, error)

	// ListDocuments aggregates points into per-document summaries.
	ListDocuments(ctx context.Context) ([]Document, error)

	// DeleteDocument removes all chunks of a document and returns how
	// many points were removed. The count and the delete are separate
	// operations, so the count is best-effort under concurrent writes.
	DeleteDocument(ctx context.Context, documentID string) (int, error)

	// Stats returns diagnostic collection statistics. It never fails;
	// unreachable backends are reported inside the map.
	Stats(ctx context.Context) map[string]any

	// Ready reports whether the backing database answers.
	Ready(ctx context.Context) bool

	// Close releases the client connection.
	Close() error
}

// TranscriptMetadata builds the payload for transcript chunks.
func TranscriptMetadata(tr *Transcript, patientID string) map[string]any {
	source := tr.Filename
	if source == "" {
		source = "audio_transcript"
	}
	return map[string]any{
		FieldSource:       source,
		FieldDocumentType: DocumentTypeTranscript,
		FieldPatientID:    patientID,
		FieldDuration:     tr.Duration,
		FieldDocumentID:   uuid.NewString(),
		FieldPage:         0,
	}
}

// DocumentAccumulator groups chunk payloads by document_id while
// preserving first-seen order. Document-level fields come from the
// first chunk observed for each document.
type DocumentAccumulator struct {
	order []string
	docs  map[string]*Document
}

func NewDocumentAccumulator() *DocumentAccumulator {
	return &DocumentAccumulator{docs: make(map[string]*Document)}
}

// Observe counts one chunk payload towards its document.
func (a *DocumentAccumulator) Observe(meta map[string]any) {
	docID := metaString(meta, FieldDocumentID)
	if docID == "" {
		docID = "unknown"
	}

	doc, ok := a.docs[docID]
	if !ok {
		doc = &Document{
			DocumentID:   docID,
			Source:       metaString(meta, FieldSource),
			DocumentType: metaString(meta, FieldDocumentType),
			PatientID:    metaString(meta, FieldPatientID),
			CaseNumber:   metaString(meta, FieldCaseNumber),
			TotalPages:   metaInt(meta, FieldTotalPages),
		}
		a.docs[docID] = doc
		a.order = append(a.order, docID)
	}
	doc.Chunks++
}

// Documents returns the accumulated summaries in first-seen order.
func (a *DocumentAccumulator) Documents() []Document {
	out := make([]Document, 0, len(a.order))
	for _, id := range a.order {
		out = append(out, *a.docs[id])
	}
	return out
}

func metaString(m map[string]any, key string) string {
	if v, ok := m[key].(string); ok {
		return v
	}
	return ""
}

func metaInt(m map[string]any, key string) int {
	switch v := m[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	}
	return 0
}
