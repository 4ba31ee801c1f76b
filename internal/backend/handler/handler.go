// Package handler exposes the HTTP surface: OpenAI-compatible chat
// and audio endpoints, document ingestion, and knowledge-base
// administration.
package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/mentis-ai/mentis/internal/backend/biz"
	"github.com/mentis-ai/mentis/internal/backend/metrics"
	"github.com/mentis-ai/mentis/internal/backend/store"
	"github.com/mentis-ai/mentis/internal/model"
	"github.com/mentis-ai/mentis/pkg/component/speech"
	"github.com/mentis-ai/mentis/pkg/embedding"
	"github.com/mentis-ai/mentis/pkg/response"
)

// Deps collects the collaborators behind the HTTP surface. Denoiser
// may be nil when no denoising service is configured.
type Deps struct {
	Service  biz.Service
	STT      *speech.STTClient
	TTS      *speech.TTSClient
	Denoiser *speech.DenoiserClient
	Embedder *embedding.Service
	Index    store.VectorIndex

	// Model is the generation model advertised on /v1/models.
	Model string
}

// Handler handles all HTTP requests of the service.
type Handler struct {
	deps Deps
}

// New creates a Handler.
func New(deps Deps) *Handler {
	return &Handler{deps: deps}
}

func timestamp() string {
	return time.Now().UTC().Format(time.RFC3339)
}

// Health is the shallow liveness probe.
func (h *Handler) Health(c *gin.Context) {
	response.OK(c, model.HealthResponse{Status: "ok", Timestamp: timestamp()})
}

// HealthDetail probes every dependency. Status degrades when any
// check fails; the response stays 200 so probes can read the detail.
func (h *Handler) HealthDetail(c *gin.Context) {
	ctx := c.Request.Context()

	checks := map[string]string{"backend": "ok"}
	mark := func(name string, ok bool) {
		if ok {
			checks[name] = "ok"
		} else {
			checks[name] = "unavailable"
		}
	}
	mark("embedding", h.deps.Embedder.Ready())
	mark("vectorstore", h.deps.Index.Ready(ctx))
	mark("stt", h.deps.STT.Ready(ctx))

	status := "ok"
	for _, v := range checks {
		if v != "ok" {
			status = "degraded"
			break
		}
	}

	response.OK(c, model.HealthDetailResponse{
		Status:    status,
		Checks:    checks,
		Timestamp: timestamp(),
	})
}

// Models lists the single configured generation model in the OpenAI
// list shape.
func (h *Handler) Models(c *gin.Context) {
	response.OK(c, gin.H{
		"object": "list",
		"data": []gin.H{
			{
				"id":       h.deps.Model,
				"object":   "model",
				"created":  time.Now().Unix(),
				"owned_by": "system",
			},
		},
	})
}

// Metrics serves the counter registry in text exposition format.
func (h *Handler) Metrics(c *gin.Context) {
	c.Data(http.StatusOK, "text/plain; charset=utf-8", []byte(metrics.Get().Export()))
}
