package biz_test

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mentis-ai/mentis/internal/backend/biz"
	"github.com/mentis-ai/mentis/internal/backend/store"
	"github.com/mentis-ai/mentis/internal/model"
	"github.com/mentis-ai/mentis/pkg/component/ocr"
	"github.com/mentis-ai/mentis/pkg/errors"
	"github.com/mentis-ai/mentis/pkg/llm"
)

// fakeIndex implements store.VectorIndex in memory, recording calls.
type fakeIndex struct {
	searchResults []store.SearchResult
	searchErr     error
	searchCalls   []searchCall

	addedTexts []addCall
	addErr     error

	documents  []store.Document
	deleted    []string
	deleteN    int
	recreated  int
	statsValue map[string]any
}

type searchCall struct {
	query   string
	topK    int
	filters map[string]any
}

type addCall struct {
	text     string
	metadata map[string]any
}

func (f *fakeIndex) EnsureCollection(context.Context) error   { return nil }
func (f *fakeIndex) RecreateCollection(context.Context) error { f.recreated++; return nil }

func (f *fakeIndex) AddText(_ context.Context, text string, metadata map[string]any) (int, error) {
	if f.addErr != nil {
		return 0, f.addErr
	}
	f.addedTexts = append(f.addedTexts, addCall{text: text, metadata: metadata})
	return 2, nil
}

func (f *fakeIndex) AddTranscript(ctx context.Context, tr *store.Transcript, patientID string) (int, error) {
	meta := map[string]any{
		store.FieldDocumentType: store.DocumentTypeTranscript,
		store.FieldPatientID:    patientID,
	}
	return f.AddText(ctx, tr.Text, meta)
}

func (f *fakeIndex) Search(_ context.Context, query string, topK int, filters map[string]any) ([]store.SearchResult, error) {
	f.searchCalls = append(f.searchCalls, searchCall{query: query, topK: topK, filters: filters})
	if f.searchErr != nil {
		return nil, f.searchErr
	}
	return f.searchResults, nil
}

func (f *fakeIndex) ListDocuments(context.Context) ([]store.Document, error) {
	return f.documents, nil
}

func (f *fakeIndex) DeleteDocument(_ context.Context, documentID string) (int, error) {
	f.deleted = append(f.deleted, documentID)
	return f.deleteN, nil
}

func (f *fakeIndex) Stats(context.Context) map[string]any { return f.statsValue }
func (f *fakeIndex) Ready(context.Context) bool           { return true }
func (f *fakeIndex) Close() error                         { return nil }

// fakeChat implements llm.StreamingChatProvider and records the last
// request it saw.
type fakeChat struct {
	lastReq     *llm.ChatRequest
	answer      string
	err         error
	streamData  []string
	streamCalls int
}

func (f *fakeChat) Name() string { return "fake" }

func (f *fakeChat) ChatCompletion(_ context.Context, req *llm.ChatRequest) (*llm.ChatCompletion, error) {
	f.lastReq = req
	if f.err != nil {
		return nil, f.err
	}
	return &llm.ChatCompletion{
		ID:     "chatcmpl-test",
		Object: "chat.completion",
		Model:  req.Model,
		Choices: []llm.ChatChoice{{
			Message:      llm.Message{Role: llm.RoleAssistant, Content: f.answer},
			FinishReason: "stop",
		}},
		Usage: llm.TokenUsage{PromptTokens: 10, CompletionTokens: 5, TotalTokens: 15},
	}, nil
}

func (f *fakeChat) StreamChatCompletion(_ context.Context, req *llm.ChatRequest, emit llm.StreamFunc) error {
	f.lastReq = req
	f.streamCalls++
	if f.err != nil {
		return f.err
	}
	for _, data := range f.streamData {
		if err := emit(data); err != nil {
			return err
		}
	}
	return nil
}

// batchOnlyChat has no streaming support.
type batchOnlyChat struct{}

func (batchOnlyChat) Name() string { return "batch-only" }
func (batchOnlyChat) ChatCompletion(context.Context, *llm.ChatRequest) (*llm.ChatCompletion, error) {
	return &llm.ChatCompletion{}, nil
}

func newService(index *fakeIndex, chat llm.ChatProvider, ocrURL string) *biz.BackendService {
	var ocrClient *ocr.Client
	if ocrURL != "" {
		ocrClient = ocr.New(&ocr.Config{URL: ocrURL, Timeout: 5 * time.Second})
	}
	return biz.NewBackendService(index, chat, ocrClient, nil, nil)
}

func userReq(content string) *llm.ChatRequest {
	return &llm.ChatRequest{Messages: []llm.Message{{Role: llm.RoleUser, Content: content}}}
}

func TestChatRequiresUserMessage(t *testing.T) {
	svc := newService(&fakeIndex{}, &fakeChat{}, "")

	_, _, err := svc.Chat(context.Background(), &llm.ChatRequest{
		Messages: []llm.Message{{Role: llm.RoleSystem, Content: "only system"}},
	})
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrInvalidParam.Code))
}

func TestChatInjectsContextAndAppendsSources(t *testing.T) {
	index := &fakeIndex{searchResults: []store.SearchResult{
		{Text: "Schlafhygiene verbessern.", Score: 0.91, Metadata: map[string]any{
			store.FieldSource: "leitlinie.pdf", store.FieldPage: int64(12),
		}},
		{Text: "irrelevant", Score: 0.42, Metadata: map[string]any{store.FieldSource: "other.pdf"}},
	}}
	chat := &fakeChat{answer: "Antwort."}
	svc := newService(index, chat, "")

	completion, sources, err := svc.Chat(context.Background(), userReq("Wie behandelt man Insomnie?"))
	require.NoError(t, err)

	// The below-threshold hit is dropped.
	require.Len(t, sources, 1)
	assert.Equal(t, "leitlinie.pdf", sources[0].Source)
	assert.Equal(t, 12, sources[0].Page)

	require.NotEmpty(t, chat.lastReq.Messages)
	system := chat.lastReq.Messages[0]
	assert.Equal(t, llm.RoleSystem, system.Role)
	assert.Contains(t, system.Content, "[Quelle 1: leitlinie.pdf, S.12] (Relevanz: 0.91)")
	assert.Contains(t, system.Content, "Schlafhygiene verbessern.")
	assert.NotContains(t, system.Content, "irrelevant")

	answer := completion.Choices[0].Message.Content
	assert.Contains(t, answer, "Antwort.")
	assert.Contains(t, answer, "**Quellen:**")
	assert.Contains(t, answer, "- leitlinie.pdf, Seite 12 (Relevanz: 91%)")
}

func TestChatReplacesCallerSystemMessages(t *testing.T) {
	chat := &fakeChat{answer: "ok"}
	svc := newService(&fakeIndex{}, chat, "")

	_, _, err := svc.Chat(context.Background(), &llm.ChatRequest{
		Messages: []llm.Message{
			{Role: llm.RoleSystem, Content: "caller system prompt"},
			{Role: llm.RoleUser, Content: "Frage"},
		},
	})
	require.NoError(t, err)

	require.Len(t, chat.lastReq.Messages, 2)
	assert.NotContains(t, chat.lastReq.Messages[0].Content, "caller system prompt")
	assert.Equal(t, "Frage", chat.lastReq.Messages[1].Content)
}

func TestChatEmptyRetrievalUsesMarker(t *testing.T) {
	chat := &fakeChat{answer: "ok"}
	svc := newService(&fakeIndex{}, chat, "")

	_, sources, err := svc.Chat(context.Background(), userReq("Frage"))
	require.NoError(t, err)
	assert.Empty(t, sources)
	assert.Contains(t, chat.lastReq.Messages[0].Content, "[Keine relevanten Dokumente gefunden]")
}

func TestChatDegradesWhenRetrievalFails(t *testing.T) {
	index := &fakeIndex{searchErr: fmt.Errorf("qdrant down")}
	chat := &fakeChat{answer: "trotzdem eine Antwort"}
	svc := newService(index, chat, "")

	completion, sources, err := svc.Chat(context.Background(), userReq("Frage"))
	require.NoError(t, err)
	assert.Empty(t, sources)
	assert.Contains(t, chat.lastReq.Messages[0].Content, "[Wissensdatenbank nicht verfügbar]")
	assert.Equal(t, "trotzdem eine Antwort", completion.Choices[0].Message.Content)
}

func TestChatBackendFailure(t *testing.T) {
	chat := &fakeChat{err: fmt.Errorf("connection refused")}
	svc := newService(&fakeIndex{}, chat, "")

	_, _, err := svc.Chat(context.Background(), userReq("Frage"))
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrUpstreamUnavailable.Code))
}

func TestChatAppliesDefaults(t *testing.T) {
	chat := &fakeChat{answer: "ok"}
	svc := newService(&fakeIndex{}, chat, "")

	_, _, err := svc.Chat(context.Background(), userReq("Frage"))
	require.NoError(t, err)

	require.NotNil(t, chat.lastReq.Temperature)
	assert.InDelta(t, 0.3, *chat.lastReq.Temperature, 1e-9)
	assert.Equal(t, 4096, chat.lastReq.MaxTokens)
	assert.False(t, chat.lastReq.Stream)
}

func TestChatStream(t *testing.T) {
	index := &fakeIndex{searchResults: []store.SearchResult{
		{Text: "Kontext", Score: 0.9, Metadata: map[string]any{store.FieldSource: "doc.pdf", store.FieldPage: 1}},
	}}
	chat := &fakeChat{streamData: []string{`{"choices":[{"delta":{"content":"An"}}]}`, `{"choices":[{"delta":{"content":"twort"}}]}`}}
	svc := newService(index, chat, "")

	var got []string
	sources, err := svc.ChatStream(context.Background(), userReq("Frage"), func(data string) error {
		got = append(got, data)
		return nil
	})
	require.NoError(t, err)
	assert.Len(t, got, 2)
	require.Len(t, sources, 1)
	assert.True(t, chat.lastReq.Stream)

	// Streams never carry a source appendix.
	for _, chunk := range got {
		assert.NotContains(t, chunk, "Quellen")
	}
}

func TestChatStreamUnsupportedProvider(t *testing.T) {
	svc := newService(&fakeIndex{}, batchOnlyChat{}, "")

	_, err := svc.ChatStream(context.Background(), userReq("Frage"), func(string) error { return nil })
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrInvalidParam.Code))
}

func TestUploadDocumentValidation(t *testing.T) {
	svc := newService(&fakeIndex{}, &fakeChat{}, "")

	_, err := svc.UploadDocument(context.Background(), "report.pdf", nil, biz.DocumentMeta{})
	assert.True(t, errors.IsCode(err, errors.ErrInvalidParam.Code))

	_, err = svc.UploadDocument(context.Background(), "notes.txt", []byte("text"), biz.DocumentMeta{})
	assert.True(t, errors.IsCode(err, errors.ErrInvalidParam.Code))
}

func TestUploadDocumentIndexesPerPage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"markdown": "# Befund\n\nSeite eins. Seite zwei.",
			"pages": [
				{"page": 1, "text": "Seite eins."},
				{"page": 2, "text": "   "},
				{"page": 3, "text": "Seite drei."}
			],
			"total_pages": 3
		}`))
	}))
	defer srv.Close()

	index := &fakeIndex{}
	svc := newService(index, &fakeChat{}, srv.URL)

	resp, err := svc.UploadDocument(context.Background(), "Befund.PDF", []byte("%PDF-1.4"), biz.DocumentMeta{
		DocumentType: "befund",
		PatientID:    "p-7",
		CaseNumber:   "AZ-1",
	})
	require.NoError(t, err)

	assert.Equal(t, "success", resp.Status)
	assert.Equal(t, 3, resp.TotalPages)
	assert.NotEmpty(t, resp.DocumentID)

	// The blank page is skipped; two pages indexed at 2 chunks each.
	require.Len(t, index.addedTexts, 2)
	assert.Equal(t, 4, resp.ChunksIndexed)

	first := index.addedTexts[0]
	assert.Equal(t, "Seite eins.", first.text)
	assert.Equal(t, resp.DocumentID, first.metadata[store.FieldDocumentID])
	assert.Equal(t, "Befund.PDF", first.metadata[store.FieldSource])
	assert.Equal(t, "befund", first.metadata[store.FieldDocumentType])
	assert.Equal(t, "p-7", first.metadata[store.FieldPatientID])
	assert.Equal(t, 1, first.metadata[store.FieldPage])

	second := index.addedTexts[1]
	assert.Equal(t, 3, second.metadata[store.FieldPage])
	assert.Equal(t, resp.DocumentID, second.metadata[store.FieldDocumentID])
}

func TestUploadDocumentUnsegmentedFallback(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"markdown": "Nur Fliesstext.", "pages": [], "total_pages": 1}`))
	}))
	defer srv.Close()

	index := &fakeIndex{}
	svc := newService(index, &fakeChat{}, srv.URL)

	resp, err := svc.UploadDocument(context.Background(), "scan.pdf", []byte("%PDF-1.4"), biz.DocumentMeta{})
	require.NoError(t, err)

	require.Len(t, index.addedTexts, 1)
	assert.Equal(t, 0, index.addedTexts[0].metadata[store.FieldPage])
	assert.Equal(t, 2, resp.ChunksIndexed)
}

func TestUploadDocumentOCRFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "ocr exploded", http.StatusInternalServerError)
	}))
	defer srv.Close()

	svc := newService(&fakeIndex{}, &fakeChat{}, srv.URL)
	_, err := svc.UploadDocument(context.Background(), "scan.pdf", []byte("%PDF-1.4"), biz.DocumentMeta{})
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrUpstreamUnavailable.Code))
}

func TestUploadDocumentNoText(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"markdown": "   ", "pages": [], "total_pages": 1}`))
	}))
	defer srv.Close()

	svc := newService(&fakeIndex{}, &fakeChat{}, srv.URL)
	_, err := svc.UploadDocument(context.Background(), "blank.pdf", []byte("%PDF-1.4"), biz.DocumentMeta{})
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrUnprocessableContent.Code))
}

func TestSearchValidation(t *testing.T) {
	svc := newService(&fakeIndex{}, &fakeChat{}, "")

	_, err := svc.Search(context.Background(), &model.SearchRequest{})
	assert.True(t, errors.IsCode(err, errors.ErrInvalidParam.Code))

	_, err = svc.Search(context.Background(), &model.SearchRequest{Query: "x", TopK: 21})
	assert.True(t, errors.IsCode(err, errors.ErrInvalidParam.Code))

	_, err = svc.Search(context.Background(), &model.SearchRequest{Query: "x", TopK: -1})
	assert.True(t, errors.IsCode(err, errors.ErrInvalidParam.Code))
}

func TestSearchBuildsFilters(t *testing.T) {
	index := &fakeIndex{searchResults: []store.SearchResult{
		{Text: "hit", Score: 0.8, Metadata: map[string]any{store.FieldSource: "a.pdf"}},
	}}
	svc := newService(index, &fakeChat{}, "")

	resp, err := svc.Search(context.Background(), &model.SearchRequest{
		Query:        "Insomnie",
		DocumentType: "transcript",
		PatientID:    "p-1",
	})
	require.NoError(t, err)

	require.Len(t, index.searchCalls, 1)
	call := index.searchCalls[0]
	assert.Equal(t, 5, call.topK)
	assert.Equal(t, map[string]any{
		store.FieldDocumentType: "transcript",
		store.FieldPatientID:    "p-1",
	}, call.filters)

	assert.Equal(t, 1, resp.Total)
	assert.Equal(t, "Insomnie", resp.Query)
}

func TestDeleteDocument(t *testing.T) {
	index := &fakeIndex{deleteN: 7}
	svc := newService(index, &fakeChat{}, "")

	resp, err := svc.DeleteDocument(context.Background(), "doc-1")
	require.NoError(t, err)
	assert.Equal(t, "deleted", resp.Status)
	assert.Equal(t, 7, resp.ChunksDeleted)
	assert.Equal(t, []string{"doc-1"}, index.deleted)

	_, err = svc.DeleteDocument(context.Background(), "")
	assert.True(t, errors.IsCode(err, errors.ErrInvalidParam.Code))
}

func TestReindex(t *testing.T) {
	index := &fakeIndex{}
	svc := newService(index, &fakeChat{}, "")

	require.NoError(t, svc.Reindex(context.Background()))
	assert.Equal(t, 1, index.recreated)
}

func TestIndexTranscript(t *testing.T) {
	index := &fakeIndex{}
	svc := newService(index, &fakeChat{}, "")

	count, err := svc.IndexTranscript(context.Background(), &store.Transcript{
		Text: "Patient berichtet über Schlafstörungen.", Filename: "visite.wav", Duration: 60,
	}, "p-9")
	require.NoError(t, err)
	assert.Equal(t, 2, count)
	require.Len(t, index.addedTexts, 1)
	assert.True(t, strings.Contains(index.addedTexts[0].text, "Schlafstörungen"))
}
