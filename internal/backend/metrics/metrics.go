// Package metrics collects the business metrics of the backend:
// chat queries, retrieval, generation calls and indexing.
package metrics

import (
	"sync"
	"time"

	"github.com/mentis-ai/mentis/pkg/observability/metrics"
)

// BackendMetrics aggregates the service counters. All methods are
// safe for concurrent use.
type BackendMetrics struct {
	chatTotal       metrics.Counter
	chatStreamed    metrics.Counter
	chatErrors      metrics.Counter
	chatDegraded    metrics.Counter
	cacheHits       metrics.Counter
	cacheMisses     metrics.Counter
	retrievalTotal  metrics.Counter
	retrievalErrors metrics.Counter
	retrievalSecs   metrics.Counter
	llmCalls        metrics.Counter
	llmErrors       metrics.Counter
	llmSecs         metrics.Counter
	promptTokens    metrics.Counter
	outputTokens    metrics.Counter
	docsIndexed     metrics.Counter
	chunksIndexed   metrics.Counter
	indexErrors     metrics.Counter
	transcripts     metrics.Counter
}

var (
	global *BackendMetrics
	once   sync.Once
)

// Get returns the process-wide metrics instance, registering every
// metric with the default registry on first use.
func Get() *BackendMetrics {
	once.Do(func() {
		global = &BackendMetrics{
			chatTotal:       newCounter("backend_chat_total", "Total chat completions."),
			chatStreamed:    newCounter("backend_chat_streamed_total", "Chat completions served over SSE."),
			chatErrors:      newCounter("backend_chat_errors_total", "Chat completions that failed."),
			chatDegraded:    newCounter("backend_chat_degraded_total", "Chat completions answered without retrieval context."),
			cacheHits:       newCounter("backend_retrieval_cache_hits_total", "Retrieval cache hits."),
			cacheMisses:     newCounter("backend_retrieval_cache_misses_total", "Retrieval cache misses."),
			retrievalTotal:  newCounter("backend_retrieval_total", "Total retrieval operations."),
			retrievalErrors: newCounter("backend_retrieval_errors_total", "Retrieval operations that failed."),
			retrievalSecs:   newCounter("backend_retrieval_duration_seconds_total", "Cumulative retrieval duration."),
			llmCalls:        newCounter("backend_llm_calls_total", "Total generation backend calls."),
			llmErrors:       newCounter("backend_llm_errors_total", "Generation backend calls that failed."),
			llmSecs:         newCounter("backend_llm_duration_seconds_total", "Cumulative generation call duration."),
			promptTokens:    newCounter("backend_llm_tokens_prompt_total", "Total prompt tokens."),
			outputTokens:    newCounter("backend_llm_tokens_completion_total", "Total completion tokens."),
			docsIndexed:     newCounter("backend_documents_indexed_total", "Documents indexed."),
			chunksIndexed:   newCounter("backend_chunks_indexed_total", "Chunks indexed."),
			indexErrors:     newCounter("backend_index_errors_total", "Indexing operations that failed."),
			transcripts:     newCounter("backend_transcripts_indexed_total", "Speech transcripts indexed."),
		}
	})
	return global
}

func newCounter(name, help string) metrics.Counter {
	c := metrics.NewCounter(name, help)
	metrics.Register(c)
	return c
}

// RecordChat records one chat completion.
func (m *BackendMetrics) RecordChat(streamed, degraded bool, err error) {
	m.chatTotal.Inc()
	if err != nil {
		m.chatErrors.Inc()
		return
	}
	if streamed {
		m.chatStreamed.Inc()
	}
	if degraded {
		m.chatDegraded.Inc()
	}
}

// RecordCache records a retrieval cache lookup outcome.
func (m *BackendMetrics) RecordCache(hit bool) {
	if hit {
		m.cacheHits.Inc()
	} else {
		m.cacheMisses.Inc()
	}
}

// RecordRetrieval records one retrieval operation.
func (m *BackendMetrics) RecordRetrieval(duration time.Duration, err error) {
	m.retrievalTotal.Inc()
	if err != nil {
		m.retrievalErrors.Inc()
		return
	}
	m.retrievalSecs.Add(duration.Seconds())
}

// RecordLLMCall records one generation backend call.
func (m *BackendMetrics) RecordLLMCall(duration time.Duration, promptTokens, completionTokens int, err error) {
	m.llmCalls.Inc()
	if err != nil {
		m.llmErrors.Inc()
		return
	}
	m.llmSecs.Add(duration.Seconds())
	if promptTokens > 0 {
		m.promptTokens.Add(float64(promptTokens))
	}
	if completionTokens > 0 {
		m.outputTokens.Add(float64(completionTokens))
	}
}

// RecordIndexing records one document indexing operation.
func (m *BackendMetrics) RecordIndexing(documents, chunks int, err error) {
	if err != nil {
		m.indexErrors.Inc()
		return
	}
	m.docsIndexed.Add(float64(documents))
	m.chunksIndexed.Add(float64(chunks))
}

// RecordTranscript records one indexed transcript.
func (m *BackendMetrics) RecordTranscript(chunks int, err error) {
	if err != nil {
		m.indexErrors.Inc()
		return
	}
	m.transcripts.Inc()
	m.chunksIndexed.Add(float64(chunks))
}

// Export renders every registered metric in Prometheus text format.
func Export() string {
	return metrics.Export()
}

// Export renders every registered metric in Prometheus text format.
func (m *BackendMetrics) Export() string {
	return metrics.Export()
}
