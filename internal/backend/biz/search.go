package biz

import (
	"context"

	"github.com/kart-io/logger"

	"github.com/mentis-ai/mentis/internal/backend/store"
	"github.com/mentis-ai/mentis/internal/model"
	"github.com/mentis-ai/mentis/pkg/errors"
)

// Search bounds for the manual search endpoint.
const (
	minSearchTopK = 1
	maxSearchTopK = 20
)

// Search runs a raw similarity search with optional equality filters.
func (s *BackendService) Search(ctx context.Context, req *model.SearchRequest) (*model.SearchResponse, error) {
	if req.Query == "" {
		return nil, errors.ErrInvalidParam.WithMessage("query is required")
	}

	topK := req.TopK
	if topK == 0 {
		topK = s.config.TopK
	}
	if topK < minSearchTopK || topK > maxSearchTopK {
		return nil, errors.ErrInvalidParam.WithMessagef("top_k must be between %d and %d", minSearchTopK, maxSearchTopK)
	}

	filters := map[string]any{}
	if req.DocumentType != "" {
		filters[store.FieldDocumentType] = req.DocumentType
	}
	if req.PatientID != "" {
		filters[store.FieldPatientID] = req.PatientID
	}

	results, err := s.index.Search(ctx, req.Query, topK, filters)
	if err != nil {
		return nil, err
	}

	hits := make([]model.SearchHit, len(results))
	for i, r := range results {
		hits[i] = model.SearchHit{Text: r.Text, Score: r.Score, Metadata: r.Metadata}
	}

	return &model.SearchResponse{
		Query:   req.Query,
		Results: hits,
		Total:   len(hits),
		Filters: filters,
	}, nil
}

// ListDocuments returns per-document summaries of the index.
func (s *BackendService) ListDocuments(ctx context.Context) ([]store.Document, error) {
	return s.index.ListDocuments(ctx)
}

// DeleteDocument removes all chunks of one document.
func (s *BackendService) DeleteDocument(ctx context.Context, documentID string) (*model.DeleteDocumentResponse, error) {
	if documentID == "" {
		return nil, errors.ErrInvalidParam.WithMessage("document_id is required")
	}

	deleted, err := s.index.DeleteDocument(ctx, documentID)
	if err != nil {
		return nil, err
	}

	logger.Infow("document deleted", "document_id", documentID, "chunks_deleted", deleted)
	return &model.DeleteDocumentResponse{
		Status:        "deleted",
		DocumentID:    documentID,
		ChunksDeleted: deleted,
	}, nil
}

// Stats returns index diagnostics. Never fails.
func (s *BackendService) Stats(ctx context.Context) map[string]any {
	return s.index.Stats(ctx)
}

// Reindex drops and recreates the collection, then clears the
// retrieval cache since every cached context now points at nothing.
func (s *BackendService) Reindex(ctx context.Context) error {
	if err := s.index.RecreateCollection(ctx); err != nil {
		return err
	}
	if err := s.cache.Clear(ctx); err != nil {
		logger.Warnw("failed to clear retrieval cache after reindex", "error", err)
	}

	logger.Infow("collection recreated")
	return nil
}
