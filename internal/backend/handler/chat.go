package handler

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/kart-io/logger"

	"github.com/mentis-ai/mentis/pkg/llm"
	"github.com/mentis-ai/mentis/pkg/response"
)

// ChatCompletions answers a chat request with retrieval-augmented
// context. stream=true relays the upstream SSE events.
func (h *Handler) ChatCompletions(c *gin.Context) {
	var req llm.ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.FailBind(c, err)
		return
	}

	if req.Stream {
		h.streamChat(c, &req)
		return
	}

	completion, _, err := h.deps.Service.Chat(c.Request.Context(), &req)
	if err != nil {
		response.Fail(c, err)
		return
	}
	response.OK(c, completion)
}

// streamChat relays completion chunks as SSE. Headers go out with the
// first chunk, so failures before any output still return JSON.
func (h *Handler) streamChat(c *gin.Context, req *llm.ChatRequest) {
	started := false
	begin := func() {
		c.Header("Content-Type", "text/event-stream")
		c.Header("Cache-Control", "no-cache")
		c.Header("Connection", "keep-alive")
		c.Header("X-Accel-Buffering", "no")
		c.Status(http.StatusOK)
		started = true
	}

	_, err := h.deps.Service.ChatStream(c.Request.Context(), req, func(data string) error {
		if !started {
			begin()
		}
		if _, err := fmt.Fprintf(c.Writer, "data: %s\n\n", data); err != nil {
			return err
		}
		c.Writer.Flush()
		return nil
	})
	if err != nil {
		if !started {
			response.Fail(c, err)
			return
		}
		// Mid-stream the status is already on the wire; the client sees
		// a stream without the terminal sentinel.
		logger.Warnw("chat stream aborted", "error", err)
		return
	}

	if !started {
		begin()
	}
	_, _ = fmt.Fprint(c.Writer, "data: [DONE]\n\n")
	c.Writer.Flush()
}
