// Package qdrant is the default vector index driver. Collections are
// created with cosine distance and int8 scalar quantization kept in
// RAM.
package qdrant

import (
	"context"
	"net"
	"strconv"

	"github.com/google/uuid"
	"github.com/kart-io/logger"
	"github.com/qdrant/go-client/qdrant"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/mentis-ai/mentis/internal/backend/store"
	"github.com/mentis-ai/mentis/internal/pkg/textsplit"
	"github.com/mentis-ai/mentis/pkg/embedding"
	"github.com/mentis-ai/mentis/pkg/errors"
)

// upsertBatchSize bounds points per upsert call.
const upsertBatchSize = 100

// scrollPageSize bounds points per scroll page.
const scrollPageSize = 100

// Config configures the Qdrant driver.
type Config struct {
	// URL is host or host:port of the gRPC endpoint.
	URL string

	// APIKey is optional.
	APIKey string

	// Collection is the collection name.
	Collection string
}

// Index implements store.VectorIndex on Qdrant.
type Index struct {
	client     *qdrant.Client
	collection string
	embedder   *embedding.Service
	splitter   *textsplit.Splitter
}

// New connects to Qdrant. The collection is not touched here; call
// EnsureCollection once the embedder knows its dimension.
func New(cfg Config, embedder *embedding.Service, splitter *textsplit.Splitter) (*Index, error) {
	if cfg.Collection == "" {
		return nil, errors.ErrConfiguration.WithMessage("qdrant collection name is required")
	}

	url := cfg.URL
	if url == "" {
		url = "localhost:6334"
	}

	// The client takes host and port separately.
	host, portStr, err := net.SplitHostPort(url)
	if err != nil {
		host = url
		portStr = "6334"
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		port = 6334
	}

	clientConfig := &qdrant.Config{
		Host: host,
		Port: port,
	}
	if cfg.APIKey != "" {
		clientConfig.APIKey = cfg.APIKey
	}

	client, err := qdrant.NewClient(clientConfig)
	if err != nil {
		return nil, errors.ErrUpstreamUnavailable.WithMessage("failed to create qdrant client").WithCause(err)
	}

	return &Index{
		client:     client,
		collection: cfg.Collection,
		embedder:   embedder,
		splitter:   splitter,
	}, nil
}

// EnsureCollection creates the collection if missing.
func (q *Index) EnsureCollection(ctx context.Context) error {
	exists, err := q.client.CollectionExists(ctx, q.collection)
	if err != nil {
		return classifyErr(err, "failed to check collection existence")
	}
	if exists {
		logger.Infow("qdrant collection exists", "collection", q.collection)
		return nil
	}

	err = q.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: q.collection,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     uint64(q.embedder.Dimension()),
			Distance: qdrant.Distance_Cosine,
		}),
		QuantizationConfig: qdrant.NewQuantizationScalar(&qdrant.ScalarQuantization{
			Type:      qdrant.QuantizationType_Int8,
			AlwaysRam: qdrant.PtrOf(true),
		}),
	})
	if err != nil {
		return classifyErr(err, "failed to create collection")
	}

	logger.Infow("qdrant collection created",
		"collection", q.collection,
		"dimension", q.embedder.Dimension(),
		"quantization", "int8")
	return nil
}

// RecreateCollection drops and recreates the collection. A failed drop
// of a missing collection is ignored.
func (q *Index) RecreateCollection(ctx context.Context) error {
	if err := q.client.DeleteCollection(ctx, q.collection); err != nil {
		logger.Warnw("failed to drop collection, continuing", "collection", q.collection, "error", err)
	}
	return q.EnsureCollection(ctx)
}

// AddText chunks, embeds and upserts one text.
func (q *Index) AddText(ctx context.Context, text string, metadata map[string]any) (int, error) {
	chunks := q.splitter.Split(text)
	if len(chunks) == 0 {
		return 0, nil
	}

	vectors, err := q.embedder.EmbedDocuments(ctx, chunks)
	if err != nil {
		return 0, err
	}

	points := make([]*qdrant.PointStruct, len(chunks))
	for i, chunk := range chunks {
		payload := map[string]*qdrant.Value{
			store.FieldText: qdrant.NewValueString(chunk),
		}
		for k, v := range metadata {
			payload[k] = toValue(v)
		}
		points[i] = &qdrant.PointStruct{
			Id:      qdrant.NewID(uuid.NewString()),
			Vectors: qdrant.NewVectors(vectors[i]...),
			Payload: payload,
		}
	}

	for start := 0; start < len(points); start += upsertBatchSize {
		end := start + upsertBatchSize
		if end > len(points) {
			end = len(points)
		}
		_, err := q.client.Upsert(ctx, &qdrant.UpsertPoints{
			CollectionName: q.collection,
			Points:         points[start:end],
			Wait:           qdrant.PtrOf(true),
		})
		if err != nil {
			return 0, classifyErr(err, "failed to upsert points")
		}
	}

	return len(points), nil
}

// AddTranscript indexes a speech transcript.
func (q *Index) AddTranscript(ctx context.Context, tr *store.Transcript, patientID string) (int, error) {
	return q.AddText(ctx, tr.Text, store.TranscriptMetadata(tr, patientID))
}

// Search embeds the query and runs a filtered similarity query.
func (q *Index) Search(ctx context.Context, query string, topK int, filters map[string]any) ([]store.SearchResult, error) {
	vec, err := q.embedder.EmbedQuery(ctx, query)
	if err != nil {
		return nil, err
	}

	req := &qdrant.QueryPoints{
		CollectionName: q.collection,
		Query:          qdrant.NewQuery(vec...),
		Limit:          qdrant.PtrOf(uint64(topK)),
		WithPayload:    qdrant.NewWithPayload(true),
	}
	if f := buildFilter(filters); f != nil {
		req.Filter = f
	}

	points, err := q.client.Query(ctx, req)
	if err != nil {
		return nil, classifyErr(err, "similarity query failed")
	}

	results := make([]store.SearchResult, 0, len(points))
	for _, point := range points {
		meta := make(map[string]any, len(point.Payload))
		var text string
		for k, v := range point.Payload {
			if k == store.FieldText {
				text = v.GetStringValue()
				continue
			}
			meta[k] = fromValue(v)
		}
		results = append(results, store.SearchResult{
			Text:     text,
			Score:    point.Score,
			Metadata: meta,
		})
	}

	return results, nil
}

// ListDocuments scrolls all payloads and groups them by document_id.
// Pagination follows the next-page offset returned by the server; the
// last point ID of a page is not a valid continuation cursor because
// the scroll offset is inclusive.
func (q *Index) ListDocuments(ctx context.Context) ([]store.Document, error) {
	acc := store.NewDocumentAccumulator()
	var offset *qdrant.PointId

	for {
		points, next, err := q.client.ScrollAndOffset(ctx, &qdrant.ScrollPoints{
			CollectionName: q.collection,
			Limit:          qdrant.PtrOf(uint32(scrollPageSize)),
			Offset:         offset,
			WithPayload:    qdrant.NewWithPayload(true),
			WithVectors:    qdrant.NewWithVectors(false),
		})
		if err != nil {
			return nil, classifyErr(err, "scroll failed")
		}

		for _, point := range points {
			meta := make(map[string]any, len(point.Payload))
			for k, v := range point.Payload {
				meta[k] = fromValue(v)
			}
			acc.Observe(meta)
		}

		if next == nil {
			break
		}
		offset = next
	}

	return acc.Documents(), nil
}

// DeleteDocument counts then removes all chunks of one document. The
// two steps are not transactional.
func (q *Index) DeleteDocument(ctx context.Context, documentID string) (int, error) {
	filter := buildFilter(map[string]any{store.FieldDocumentID: documentID})

	count, err := q.client.Count(ctx, &qdrant.CountPoints{
		CollectionName: q.collection,
		Filter:         filter,
		Exact:          qdrant.PtrOf(true),
	})
	if err != nil {
		return 0, classifyErr(err, "failed to count document points")
	}

	_, err = q.client.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: q.collection,
		Points: &qdrant.PointsSelector{
			PointsSelectorOneOf: &qdrant.PointsSelector_Filter{Filter: filter},
		},
		Wait: qdrant.PtrOf(true),
	})
	if err != nil {
		return 0, classifyErr(err, "failed to delete document points")
	}

	return int(count), nil
}

// Stats returns collection diagnostics without failing.
func (q *Index) Stats(ctx context.Context) map[string]any {
	info, err := q.client.GetCollectionInfo(ctx, q.collection)
	if err != nil {
		return map[string]any{"error": err.Error()}
	}

	return map[string]any{
		"collection":            q.collection,
		"points_count":          info.GetPointsCount(),
		"indexed_vectors_count": info.GetIndexedVectorsCount(),
		"segments_count":        info.GetSegmentsCount(),
		"status":                info.GetStatus().String(),
	}
}

// Ready reports whether Qdrant answers.
func (q *Index) Ready(ctx context.Context) bool {
	_, err := q.client.ListCollections(ctx)
	return err == nil
}

// Close closes the client connection.
func (q *Index) Close() error {
	if q.client != nil {
		return q.client.Close()
	}
	return nil
}

// buildFilter turns equality conditions into a must-filter.
func buildFilter(filters map[string]any) *qdrant.Filter {
	if len(filters) == 0 {
		return nil
	}
	conditions := make([]*qdrant.Condition, 0, len(filters))
	for k, v := range filters {
		switch val := v.(type) {
		case string:
			conditions = append(conditions, qdrant.NewMatchKeyword(k, val))
		case int:
			conditions = append(conditions, qdrant.NewMatchInt(k, int64(val)))
		case int64:
			conditions = append(conditions, qdrant.NewMatchInt(k, val))
		case bool:
			conditions = append(conditions, qdrant.NewMatchBool(k, val))
		}
	}
	if len(conditions) == 0 {
		return nil
	}
	return &qdrant.Filter{Must: conditions}
}

func toValue(v any) *qdrant.Value {
	switch val := v.(type) {
	case string:
		return qdrant.NewValueString(val)
	case int:
		return qdrant.NewValueInt(int64(val))
	case int64:
		return qdrant.NewValueInt(val)
	case float64:
		return qdrant.NewValueDouble(val)
	case float32:
		return qdrant.NewValueDouble(float64(val))
	case bool:
		return qdrant.NewValueBool(val)
	default:
		return qdrant.NewValueString("")
	}
}

func fromValue(v *qdrant.Value) any {
	switch v.Kind.(type) {
	case *qdrant.Value_StringValue:
		return v.GetStringValue()
	case *qdrant.Value_IntegerValue:
		return v.GetIntegerValue()
	case *qdrant.Value_DoubleValue:
		return v.GetDoubleValue()
	case *qdrant.Value_BoolValue:
		return v.GetBoolValue()
	default:
		return nil
	}
}

// classifyErr maps transport-level gRPC failures onto the
// upstream-unavailable errno, everything else onto internal.
func classifyErr(err error, msg string) error {
	if s, ok := status.FromError(err); ok {
		switch s.Code() {
		case codes.Unavailable, codes.DeadlineExceeded:
			return errors.ErrUpstreamUnavailable.WithMessage(msg).WithCause(err)
		}
	}
	return errors.ErrInternal.WithMessage(msg).WithCause(err)
}
