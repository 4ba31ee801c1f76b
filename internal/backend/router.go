package backend

import (
	"github.com/gin-gonic/gin"

	"github.com/mentis-ai/mentis/internal/backend/handler"
)

// NewRouter builds the gin engine and registers every route.
func NewRouter(h *handler.Handler, mode string) *gin.Engine {
	if mode != "" {
		gin.SetMode(mode)
	}

	engine := gin.New()
	engine.Use(gin.Recovery())

	engine.GET("/health", h.Health)
	engine.GET("/health/detail", h.HealthDetail)
	engine.GET("/metrics", h.Metrics)

	v1 := engine.Group("/v1")
	{
		v1.GET("/models", h.Models)
		v1.POST("/chat/completions", h.ChatCompletions)

		audio := v1.Group("/audio")
		{
			audio.POST("/transcriptions", h.Transcriptions)
			audio.POST("/speech", h.Speech)
			audio.POST("/transcribe-long", h.TranscribeLong)
			audio.POST("/denoise", h.Denoise)
		}
	}

	api := engine.Group("/api")
	{
		documents := api.Group("/documents")
		{
			documents.POST("/upload", h.UploadDocument)
			documents.GET("", h.ListDocuments)
			documents.DELETE("/:document_id", h.DeleteDocument)
		}

		rag := api.Group("/rag")
		{
			rag.GET("/stats", h.Stats)
			rag.POST("/search", h.SearchKnowledge)
			rag.POST("/reindex", h.Reindex)
		}
	}

	return engine
}
