// Package biz implements the retrieval-augmented chat pipeline and
// the document, transcript and knowledge-base operations behind the
// HTTP surface.
package biz

import (
	"context"

	"github.com/mentis-ai/mentis/internal/backend/metrics"
	"github.com/mentis-ai/mentis/internal/backend/store"
	"github.com/mentis-ai/mentis/internal/model"
	"github.com/mentis-ai/mentis/pkg/component/ocr"
	"github.com/mentis-ai/mentis/pkg/llm"
)

// Service is the business capability consumed by the HTTP handlers.
type Service interface {
	// Chat answers one chat request with retrieval-augmented context
	// and returns the completion plus the sources behind it.
	Chat(ctx context.Context, req *llm.ChatRequest) (*llm.ChatCompletion, []model.SourceRef, error)

	// ChatStream answers one chat request as a stream of completion
	// chunks. emit receives each upstream data payload. Sources are
	// resolved before streaming starts but are not part of the stream.
	ChatStream(ctx context.Context, req *llm.ChatRequest, emit llm.StreamFunc) ([]model.SourceRef, error)

	// UploadDocument runs a PDF through OCR and indexes every page.
	UploadDocument(ctx context.Context, filename string, data []byte, meta DocumentMeta) (*model.UploadDocumentResponse, error)

	// ListDocuments returns per-document summaries of the index.
	ListDocuments(ctx context.Context) ([]store.Document, error)

	// DeleteDocument removes all chunks of one document.
	DeleteDocument(ctx context.Context, documentID string) (*model.DeleteDocumentResponse, error)

	// Search runs a manual similarity search.
	Search(ctx context.Context, req *model.SearchRequest) (*model.SearchResponse, error)

	// Stats returns index diagnostics.
	Stats(ctx context.Context) map[string]any

	// Reindex drops and recreates the collection.
	Reindex(ctx context.Context) error

	// IndexTranscript stores a speech transcript for a patient.
	IndexTranscript(ctx context.Context, tr *store.Transcript, patientID string) (int, error)
}

// Config tunes the chat pipeline.
type Config struct {
	// Model is the generation model requested upstream.
	Model string

	// TopK is the number of chunks retrieved per query.
	TopK int

	// ScoreThreshold drops retrieved chunks below this similarity.
	ScoreThreshold float32

	// Temperature is the default sampling temperature.
	Temperature float64

	// MaxTokens is the default completion budget.
	MaxTokens int
}

// DefaultConfig returns the pipeline defaults.
func DefaultConfig() *Config {
	return &Config{
		TopK:           5,
		ScoreThreshold: 0.7,
		Temperature:    0.3,
		MaxTokens:      4096,
	}
}

// DocumentMeta carries the caller-supplied document attributes.
type DocumentMeta struct {
	DocumentType string
	PatientID    string
	CaseNumber   string
}

// BackendService implements Service over a vector index, a chat
// provider and the collaborator clients.
type BackendService struct {
	index   store.VectorIndex
	chat    llm.ChatProvider
	ocr     *ocr.Client
	cache   *RetrievalCache
	config  *Config
	metrics *metrics.BackendMetrics
}

var _ Service = (*BackendService)(nil)

// NewBackendService wires the service. cache may be nil.
func NewBackendService(index store.VectorIndex, chat llm.ChatProvider, ocrClient *ocr.Client, cache *RetrievalCache, config *Config) *BackendService {
	if config == nil {
		config = DefaultConfig()
	}
	if cache == nil {
		cache = NewRetrievalCache(nil, nil)
	}
	return &BackendService{
		index:   index,
		chat:    chat,
		ocr:     ocrClient,
		cache:   cache,
		config:  config,
		metrics: metrics.Get(),
	}
}
