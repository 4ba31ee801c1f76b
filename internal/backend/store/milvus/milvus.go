// Package milvus is the alternative vector index driver. The
// collection is schema-bound, so unlike the Qdrant driver arbitrary
// metadata keys are not stored; unknown keys are dropped on insert and
// ignored in filters.
package milvus

import (
	"context"
	"strconv"
	"strings"

	"github.com/kart-io/logger"
	"github.com/milvus-io/milvus/client/v2/entity"

	"github.com/mentis-ai/mentis/internal/backend/store"
	"github.com/mentis-ai/mentis/internal/pkg/textsplit"
	milvusclient "github.com/mentis-ai/mentis/pkg/component/milvus"
	"github.com/mentis-ai/mentis/pkg/embedding"
	"github.com/mentis-ai/mentis/pkg/errors"
)

// pageSize bounds rows per metadata query page.
const pageSize = 100

// metaFields is the fixed payload schema.
var metaFields = []milvusclient.MetaField{
	{Name: store.FieldText, DataType: entity.FieldTypeVarChar, MaxLen: 65535},
	{Name: store.FieldDocumentID, DataType: entity.FieldTypeVarChar, MaxLen: 64},
	{Name: store.FieldSource, DataType: entity.FieldTypeVarChar, MaxLen: 512},
	{Name: store.FieldDocumentType, DataType: entity.FieldTypeVarChar, MaxLen: 64},
	{Name: store.FieldPatientID, DataType: entity.FieldTypeVarChar, MaxLen: 64},
	{Name: store.FieldCaseNumber, DataType: entity.FieldTypeVarChar, MaxLen: 128},
	{Name: store.FieldTotalPages, DataType: entity.FieldTypeInt64},
	{Name: store.FieldPage, DataType: entity.FieldTypeInt64},
	{Name: store.FieldDuration, DataType: entity.FieldTypeDouble},
}

// Config configures the Milvus driver.
type Config struct {
	Client     *milvusclient.Config
	Collection string
}

// Index implements store.VectorIndex on Milvus.
type Index struct {
	client     *milvusclient.Client
	collection string
	embedder   *embedding.Service
	splitter   *textsplit.Splitter
}

// New connects to Milvus. The collection is not touched here; call
// EnsureCollection once the embedder knows its dimension.
func New(cfg Config, embedder *embedding.Service, splitter *textsplit.Splitter) (*Index, error) {
	if cfg.Collection == "" {
		return nil, errors.ErrConfiguration.WithMessage("milvus collection name is required")
	}

	client, err := milvusclient.New(cfg.Client)
	if err != nil {
		return nil, errors.ErrUpstreamUnavailable.WithMessage("failed to connect to milvus").WithCause(err)
	}

	return &Index{
		client:     client,
		collection: cfg.Collection,
		embedder:   embedder,
		splitter:   splitter,
	}, nil
}

// EnsureCollection creates the collection if missing.
func (m *Index) EnsureCollection(ctx context.Context) error {
	err := m.client.CreateCollection(ctx, &milvusclient.CollectionSchema{
		Name:        m.collection,
		Description: "document and transcript chunks with embeddings",
		Dimension:   m.embedder.Dimension(),
		MetaFields:  metaFields,
	})
	if err != nil {
		return errors.ErrInternal.WithMessage("failed to ensure milvus collection").WithCause(err)
	}

	logger.Infow("milvus collection ready",
		"collection", m.collection,
		"dimension", m.embedder.Dimension())
	return nil
}

// RecreateCollection drops and recreates the collection. A failed drop
// of a missing collection is ignored.
func (m *Index) RecreateCollection(ctx context.Context) error {
	if err := m.client.DropCollection(ctx, m.collection); err != nil {
		logger.Warnw("failed to drop collection, continuing", "collection", m.collection, "error", err)
	}
	return m.EnsureCollection(ctx)
}

// AddText chunks, embeds and inserts one text.
func (m *Index) AddText(ctx context.Context, text string, metadata map[string]any) (int, error) {
	chunks := m.splitter.Split(text)
	if len(chunks) == 0 {
		return 0, nil
	}

	vectors, err := m.embedder.EmbedDocuments(ctx, chunks)
	if err != nil {
		return 0, err
	}

	data := &milvusclient.InsertData{
		Embeddings: vectors,
		Metadata:   make(map[string][]any, len(metaFields)),
	}
	for _, f := range metaFields {
		values := make([]any, len(chunks))
		for i := range chunks {
			values[i] = fieldValue(f, chunks[i], metadata)
		}
		data.Metadata[f.Name] = values
	}

	if _, err := m.client.Insert(ctx, m.collection, data); err != nil {
		return 0, errors.ErrInternal.WithMessage("failed to insert chunks").WithCause(err)
	}

	return len(chunks), nil
}

// fieldValue resolves one schema field for one chunk, falling back to
// the zero value of the column type.
func fieldValue(f milvusclient.MetaField, chunk string, metadata map[string]any) any {
	if f.Name == store.FieldText {
		return chunk
	}

	v, ok := metadata[f.Name]
	switch f.DataType {
	case entity.FieldTypeInt64:
		if !ok {
			return int64(0)
		}
		switch n := v.(type) {
		case int:
			return int64(n)
		case int64:
			return n
		case float64:
			return int64(n)
		}
		return int64(0)
	case entity.FieldTypeDouble:
		if !ok {
			return float64(0)
		}
		switch n := v.(type) {
		case float64:
			return n
		case float32:
			return float64(n)
		case int:
			return float64(n)
		}
		return float64(0)
	default:
		if s, ok := v.(string); ok {
			return s
		}
		return ""
	}
}

// AddTranscript indexes a speech transcript.
func (m *Index) AddTranscript(ctx context.Context, tr *store.Transcript, patientID string) (int, error) {
	return m.AddText(ctx, tr.Text, store.TranscriptMetadata(tr, patientID))
}

// Search embeds the query and runs a filtered similarity search.
func (m *Index) Search(ctx context.Context, query string, topK int, filters map[string]any) ([]store.SearchResult, error) {
	vec, err := m.embedder.EmbedQuery(ctx, query)
	if err != nil {
		return nil, err
	}

	rows, err := m.client.Search(ctx, m.collection, vec, topK, buildExpr(filters), fieldNames())
	if err != nil {
		return nil, errors.ErrInternal.WithMessage("similarity search failed").WithCause(err)
	}

	results := make([]store.SearchResult, 0, len(rows))
	for _, row := range rows {
		text, _ := row.Metadata[store.FieldText].(string)
		delete(row.Metadata, store.FieldText)
		results = append(results, store.SearchResult{
			Text:     text,
			Score:    row.Score,
			Metadata: row.Metadata,
		})
	}

	return results, nil
}

// ListDocuments pages through all rows and groups them by document_id.
func (m *Index) ListDocuments(ctx context.Context) ([]store.Document, error) {
	acc := store.NewDocumentAccumulator()
	fields := []string{store.FieldDocumentID, store.FieldSource, store.FieldDocumentType, store.FieldPatientID, store.FieldCaseNumber, store.FieldTotalPages}

	for offset := 0; ; offset += pageSize {
		rows, err := m.client.Query(ctx, m.collection, allRowsExpr(), fields, pageSize, offset)
		if err != nil {
			return nil, errors.ErrInternal.WithMessage("metadata scan failed").WithCause(err)
		}
		for _, row := range rows {
			acc.Observe(row.Metadata)
		}
		if len(rows) < pageSize {
			break
		}
	}

	return acc.Documents(), nil
}

// DeleteDocument counts then removes all chunks of one document. The
// two steps are not transactional.
func (m *Index) DeleteDocument(ctx context.Context, documentID string) (int, error) {
	expr := buildExpr(map[string]any{store.FieldDocumentID: documentID})

	count := 0
	for offset := 0; ; offset += pageSize {
		rows, err := m.client.Query(ctx, m.collection, expr, []string{store.FieldDocumentID}, pageSize, offset)
		if err != nil {
			return 0, errors.ErrInternal.WithMessage("failed to count document chunks").WithCause(err)
		}
		count += len(rows)
		if len(rows) < pageSize {
			break
		}
	}

	if err := m.client.DeleteByExpr(ctx, m.collection, expr); err != nil {
		return 0, errors.ErrInternal.WithMessage("failed to delete document chunks").WithCause(err)
	}

	return count, nil
}

// Stats returns collection diagnostics without failing.
func (m *Index) Stats(ctx context.Context) map[string]any {
	rows, err := m.client.GetCollectionStats(ctx, m.collection)
	if err != nil {
		return map[string]any{"error": err.Error()}
	}

	return map[string]any{
		"collection":   m.collection,
		"points_count": rows,
	}
}

// Ready reports whether Milvus answers.
func (m *Index) Ready(ctx context.Context) bool {
	_, err := m.client.ListCollections(ctx)
	return err == nil
}

// Close closes the client connection.
func (m *Index) Close() error {
	return m.client.Close(context.Background())
}

func fieldNames() []string {
	names := make([]string, len(metaFields))
	for i, f := range metaFields {
		names[i] = f.Name
	}
	return names
}

// allRowsExpr matches every row. Milvus queries require a filter, and
// document_id is never stored empty.
func allRowsExpr() string {
	return store.FieldDocumentID + ` != ""`
}

// buildExpr turns equality conditions into a boolean filter
// expression. Terms follow schema field order so the expression is
// deterministic; keys outside the schema are ignored.
func buildExpr(filters map[string]any) string {
	if len(filters) == 0 {
		return ""
	}

	terms := make([]string, 0, len(filters))
	for _, f := range metaFields {
		v, ok := filters[f.Name]
		if !ok {
			continue
		}
		switch val := v.(type) {
		case string:
			terms = append(terms, f.Name+` == "`+escapeString(val)+`"`)
		case int:
			terms = append(terms, f.Name+" == "+strconv.FormatInt(int64(val), 10))
		case int64:
			terms = append(terms, f.Name+" == "+strconv.FormatInt(val, 10))
		case bool:
			if val {
				terms = append(terms, f.Name+" == true")
			} else {
				terms = append(terms, f.Name+" == false")
			}
		}
	}
	return strings.Join(terms, " && ")
}

func escapeString(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	return strings.ReplaceAll(s, `"`, `\"`)
}
