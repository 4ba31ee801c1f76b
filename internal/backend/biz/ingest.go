package biz

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/kart-io/logger"

	"github.com/mentis-ai/mentis/internal/backend/store"
	"github.com/mentis-ai/mentis/internal/model"
	"github.com/mentis-ai/mentis/pkg/errors"
)

// UploadDocument runs the ingestion pipeline: OCR, page-wise chunking
// with page provenance, and indexing under one shared document_id.
func (s *BackendService) UploadDocument(ctx context.Context, filename string, data []byte, meta DocumentMeta) (*model.UploadDocumentResponse, error) {
	if len(data) == 0 {
		return nil, errors.ErrInvalidParam.WithMessage("empty file")
	}
	if !strings.HasSuffix(strings.ToLower(filename), ".pdf") {
		return nil, errors.ErrInvalidParam.WithMessage("only PDF files are supported")
	}

	logger.Infow("document upload",
		"filename", filename,
		"bytes", len(data),
		"document_type", meta.DocumentType,
		"patient_id", meta.PatientID,
		"case_number", meta.CaseNumber)

	result, err := s.ocr.Process(ctx, filename, data)
	if err != nil {
		s.metrics.RecordIndexing(0, 0, err)
		return nil, errors.ErrUpstreamUnavailable.WithMessage("ocr processing failed").WithCause(err)
	}
	if strings.TrimSpace(result.Markdown) == "" {
		return nil, errors.ErrUnprocessableContent.WithMessage("ocr extracted no text from the PDF")
	}

	logger.Infow("ocr done", "pages", result.TotalPages, "characters", len(result.Markdown))

	documentID := uuid.NewString()
	metadata := map[string]any{
		store.FieldSource:       filename,
		store.FieldDocumentID:   documentID,
		store.FieldDocumentType: meta.DocumentType,
		store.FieldPatientID:    meta.PatientID,
		store.FieldCaseNumber:   meta.CaseNumber,
		store.FieldTotalPages:   result.TotalPages,
	}

	chunksIndexed := 0
	if len(result.Pages) > 0 {
		for _, page := range result.Pages {
			if strings.TrimSpace(page.Text) == "" {
				continue
			}
			count, err := s.index.AddText(ctx, page.Text, withPage(metadata, page.Page))
			if err != nil {
				s.metrics.RecordIndexing(0, chunksIndexed, err)
				return nil, errors.ErrIndexing.WithMessagef("indexing failed on page %d", page.Page).WithCause(err)
			}
			chunksIndexed += count
		}
	} else {
		// Unsegmented extraction: index the whole text as page 0.
		count, err := s.index.AddText(ctx, result.Markdown, withPage(metadata, 0))
		if err != nil {
			s.metrics.RecordIndexing(0, 0, err)
			return nil, errors.ErrIndexing.WithMessage("indexing failed").WithCause(err)
		}
		chunksIndexed = count
	}

	s.metrics.RecordIndexing(1, chunksIndexed, nil)
	logger.Infow("document indexed", "filename", filename, "document_id", documentID, "chunks", chunksIndexed)

	return &model.UploadDocumentResponse{
		Status:              "success",
		DocumentID:          documentID,
		Filename:            filename,
		TotalPages:          result.TotalPages,
		ChunksIndexed:       chunksIndexed,
		CharactersExtracted: len(result.Markdown),
		Metadata:            metadata,
	}, nil
}

func withPage(metadata map[string]any, page int) map[string]any {
	out := make(map[string]any, len(metadata)+1)
	for k, v := range metadata {
		out[k] = v
	}
	out[store.FieldPage] = page
	return out
}

// IndexTranscript stores a speech transcript for a patient.
func (s *BackendService) IndexTranscript(ctx context.Context, tr *store.Transcript, patientID string) (int, error) {
	count, err := s.index.AddTranscript(ctx, tr, patientID)
	s.metrics.RecordTranscript(count, err)
	if err != nil {
		return 0, errors.ErrIndexing.WithMessage("transcript indexing failed").WithCause(err)
	}

	logger.Infow("transcript indexed", "patient_id", patientID, "chunks", count, "duration", tr.Duration)
	return count, nil
}
