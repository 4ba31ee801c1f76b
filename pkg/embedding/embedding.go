// Package embedding wraps an embedding provider with the retrieval
// model's contract: role prefixes for queries and passages, L2
// normalization, and a dimension discovered once at load time.
package embedding

import (
	"context"
	"math"
	"sync"

	"github.com/kart-io/logger"

	"github.com/mentis-ai/mentis/pkg/errors"
	"github.com/mentis-ai/mentis/pkg/llm"
)

// Role prefixes required by e5-style retrieval models. Omitting them
// voids the retrieval quality contract.
const (
	QueryPrefix   = "query: "
	PassagePrefix = "passage: "
)

// DefaultBatchSize bounds the number of texts per provider call.
const DefaultBatchSize = 32

// Service is the embedding capability used by the vector index.
type Service struct {
	provider  llm.EmbeddingProvider
	batchSize int

	mu        sync.RWMutex
	dimension int
	loaded    bool
}

// NewService creates a Service. batchSize <= 0 selects the default.
func NewService(provider llm.EmbeddingProvider, batchSize int) *Service {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	return &Service{
		provider:  provider,
		batchSize: batchSize,
	}
}

// Load probes the provider once to discover the vector dimension.
// Must be called before any embed method.
func (s *Service) Load(ctx context.Context) error {
	vec, err := s.provider.EmbedSingle(ctx, QueryPrefix+"dimension probe")
	if err != nil {
		return errors.ErrUpstreamUnavailable.WithMessage("embedding provider unreachable").WithCause(err)
	}
	if len(vec) == 0 {
		return errors.ErrUpstreamUnavailable.WithMessage("embedding provider returned an empty vector")
	}

	s.mu.Lock()
	s.dimension = len(vec)
	s.loaded = true
	s.mu.Unlock()

	logger.Infow("embedding service loaded", "provider", s.provider.Name(), "dimension", len(vec))
	return nil
}

// Ready reports whether Load has completed.
func (s *Service) Ready() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loaded
}

// Dimension returns the vector dimension discovered at load.
func (s *Service) Dimension() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.dimension
}

// EmbedQuery embeds one search query with the query prefix.
func (s *Service) EmbedQuery(ctx context.Context, query string) ([]float32, error) {
	if !s.Ready() {
		return nil, errors.ErrNotInitialized.WithMessage("embedding service not loaded")
	}

	vecs, err := s.embed(ctx, []string{QueryPrefix + query})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

// EmbedDocuments embeds passage chunks with the passage prefix,
// index-aligned with the input.
func (s *Service) EmbedDocuments(ctx context.Context, docs []string) ([][]float32, error) {
	if !s.Ready() {
		return nil, errors.ErrNotInitialized.WithMessage("embedding service not loaded")
	}
	if len(docs) == 0 {
		return nil, nil
	}

	prefixed := make([]string, len(docs))
	for i, d := range docs {
		prefixed[i] = PassagePrefix + d
	}
	return s.embed(ctx, prefixed)
}

// embed batches texts through the provider and L2-normalizes each
// returned vector.
func (s *Service) embed(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, 0, len(texts))

	for start := 0; start < len(texts); start += s.batchSize {
		end := start + s.batchSize
		if end > len(texts) {
			end = len(texts)
		}

		vecs, err := s.provider.Embed(ctx, texts[start:end])
		if err != nil {
			return nil, errors.ErrUpstreamUnavailable.WithMessage("embedding request failed").WithCause(err)
		}
		if len(vecs) != end-start {
			return nil, errors.ErrUpstreamUnavailable.WithMessagef("expected %d embeddings, got %d", end-start, len(vecs))
		}

		for _, v := range vecs {
			out = append(out, normalize(v))
		}
	}

	return out, nil
}

// normalize scales v to unit L2 norm. Zero vectors pass through so a
// degenerate provider response stays visible downstream.
func normalize(v []float32) []float32 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	if sum == 0 {
		return v
	}

	inv := 1 / math.Sqrt(sum)
	out := make([]float32, len(v))
	for i, x := range v {
		out[i] = float32(float64(x) * inv)
	}
	return out
}
