package biz

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/kart-io/logger"

	"github.com/mentis-ai/mentis/internal/backend/store"
	"github.com/mentis-ai/mentis/internal/model"
	"github.com/mentis-ai/mentis/pkg/errors"
	"github.com/mentis-ai/mentis/pkg/llm"
)

// systemPrompt is injected as the first message of every completion.
// The answer language follows the clinical corpus, which is German.
const systemPrompt = `Du bist ein hochqualifizierter psychiatrischer KI-Assistent für klinische Fachkräfte.

REGELN:
1. Antworte AUSSCHLIESSLICH auf Basis der bereitgestellten Kontextinformationen.
2. Wenn die bereitgestellten Informationen nicht ausreichen, sage klar:
   "Die verfügbaren Unterlagen enthalten keine ausreichende Evidenz zu dieser Frage."
3. Halluziniere NIEMALS Diagnosen, Medikamente, Dosierungen oder Behandlungsempfehlungen.
4. Zitiere die Quelle (Dokumentname, Seite) bei jeder faktischen Aussage.
5. Verwende korrekte psychiatrische Fachterminologie (ICD-11, DSM-5-TR).
6. Kennzeichne deine Reasoning-Schritte klar und nachvollziehbar.
7. Bei Unsicherheit gib den Konfidenzgrad an (hoch/mittel/niedrig).
8. Weise bei kritischen Entscheidungen immer darauf hin, dass eine ärztliche Überprüfung erforderlich ist.

KONTEXT AUS WISSENSDATENBANK:
{context}
`

// Context markers for the two degenerate retrieval outcomes.
const (
	contextUnavailable = "[Wissensdatenbank nicht verfügbar]"
	contextEmpty       = "[Keine relevanten Dokumente gefunden]"
)

// Chat answers one request with a batched completion. Sources are
// appended to the answer text and returned alongside.
func (s *BackendService) Chat(ctx context.Context, req *llm.ChatRequest) (*llm.ChatCompletion, []model.SourceRef, error) {
	query, err := lastUserMessage(req.Messages)
	if err != nil {
		return nil, nil, err
	}

	ret := s.retrieve(ctx, query)
	upstream := s.upstreamRequest(req, ret, false)

	start := time.Now()
	completion, err := s.chat.ChatCompletion(ctx, upstream)
	if err != nil {
		s.metrics.RecordLLMCall(time.Since(start), 0, 0, err)
		s.metrics.RecordChat(false, ret.Degraded, err)
		return nil, nil, errors.ErrUpstreamUnavailable.WithMessage("generation backend unreachable").WithCause(err)
	}
	s.metrics.RecordLLMCall(time.Since(start), completion.Usage.PromptTokens, completion.Usage.CompletionTokens, nil)
	s.metrics.RecordChat(false, ret.Degraded, nil)

	appendSources(completion, ret.Sources)
	return completion, ret.Sources, nil
}

// ChatStream answers one request as a stream of completion chunks.
// Streamed answers carry no source appendix; the stream relays the
// upstream chunks untouched.
func (s *BackendService) ChatStream(ctx context.Context, req *llm.ChatRequest, emit llm.StreamFunc) ([]model.SourceRef, error) {
	streamer, ok := s.chat.(llm.StreamingChatProvider)
	if !ok {
		return nil, errors.ErrInvalidParam.WithMessagef("provider %s does not support streaming", s.chat.Name())
	}

	query, err := lastUserMessage(req.Messages)
	if err != nil {
		return nil, err
	}

	ret := s.retrieve(ctx, query)
	upstream := s.upstreamRequest(req, ret, true)

	start := time.Now()
	err = streamer.StreamChatCompletion(ctx, upstream, emit)
	s.metrics.RecordLLMCall(time.Since(start), 0, 0, err)
	s.metrics.RecordChat(true, ret.Degraded, err)
	if err != nil {
		return nil, errors.ErrUpstreamUnavailable.WithMessage("generation backend unreachable").WithCause(err)
	}

	return ret.Sources, nil
}

// lastUserMessage scans backwards for the newest user turn.
func lastUserMessage(messages []llm.Message) (string, error) {
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role == llm.RoleUser && messages[i].Content != "" {
			return messages[i].Content, nil
		}
	}
	return "", errors.ErrInvalidParam.WithMessage("no user message found")
}

// retrieve assembles the context block for one query. Retrieval
// failure degrades to an explicit unavailable marker instead of
// failing the chat.
func (s *BackendService) retrieve(ctx context.Context, query string) *model.RetrievalResult {
	if cached := s.cache.Get(ctx, query); cached != nil {
		s.metrics.RecordCache(true)
		return cached
	}
	s.metrics.RecordCache(false)

	start := time.Now()
	results, err := s.index.Search(ctx, query, s.config.TopK, nil)
	s.metrics.RecordRetrieval(time.Since(start), err)
	if err != nil {
		logger.Warnw("retrieval failed, answering without knowledge base", "error", err)
		return &model.RetrievalResult{Context: contextUnavailable, Degraded: true}
	}

	var parts []string
	var sources []model.SourceRef
	for i, result := range results {
		if result.Score < s.config.ScoreThreshold {
			continue
		}
		source := metaStringOr(result.Metadata, store.FieldSource, "Unbekannt")
		page := metaIntValue(result.Metadata, store.FieldPage)
		parts = append(parts, fmt.Sprintf("[Quelle %d: %s, S.%d] (Relevanz: %.2f)\n%s",
			i+1, source, page, result.Score, result.Text))
		sources = append(sources, model.SourceRef{Source: source, Page: page, Score: result.Score})
	}

	logger.Infow("retrieval done", "relevant", len(parts), "retrieved", len(results))

	ret := &model.RetrievalResult{
		Context: strings.Join(parts, "\n\n---\n\n"),
		Sources: sources,
	}
	s.cache.Set(ctx, query, ret)
	return ret
}

// upstreamRequest builds the generation request: injected system
// prompt first, then every non-system message of the original request.
func (s *BackendService) upstreamRequest(req *llm.ChatRequest, ret *model.RetrievalResult, stream bool) *llm.ChatRequest {
	contextBlock := ret.Context
	if contextBlock == "" {
		contextBlock = contextEmpty
	}

	messages := make([]llm.Message, 0, len(req.Messages)+1)
	messages = append(messages, llm.Message{
		Role:    llm.RoleSystem,
		Content: strings.Replace(systemPrompt, "{context}", contextBlock, 1),
	})
	for _, msg := range req.Messages {
		if msg.Role != llm.RoleSystem {
			messages = append(messages, msg)
		}
	}

	upstream := &llm.ChatRequest{
		Model:    s.config.Model,
		Messages: messages,
		TopP:     req.TopP,
		Stream:   stream,
	}

	if req.Temperature != nil {
		upstream.Temperature = req.Temperature
	} else {
		temp := s.config.Temperature
		upstream.Temperature = &temp
	}
	if req.MaxTokens > 0 {
		upstream.MaxTokens = req.MaxTokens
	} else {
		upstream.MaxTokens = s.config.MaxTokens
	}

	return upstream
}

// appendSources attaches the source list to the answer text.
func appendSources(completion *llm.ChatCompletion, sources []model.SourceRef) {
	if len(sources) == 0 || len(completion.Choices) == 0 {
		return
	}

	var sb strings.Builder
	sb.WriteString("\n\n---\n**Quellen:**\n")
	for _, src := range sources {
		sb.WriteString(fmt.Sprintf("- %s, Seite %d (Relevanz: %.0f%%)\n", src.Source, src.Page, src.Score*100))
	}
	completion.Choices[0].Message.Content += sb.String()
}

func metaStringOr(m map[string]any, key, fallback string) string {
	if v, ok := m[key].(string); ok && v != "" {
		return v
	}
	return fallback
}

func metaIntValue(m map[string]any, key string) int {
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
