package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/kart-io/logger"

	"github.com/mentis-ai/mentis/internal/backend/store"
	"github.com/mentis-ai/mentis/internal/model"
	"github.com/mentis-ai/mentis/pkg/component/speech"
	"github.com/mentis-ai/mentis/pkg/errors"
	"github.com/mentis-ai/mentis/pkg/response"
)

func toWords(segments []speech.Segment) []model.TranscriptWord {
	if len(segments) == 0 {
		return nil
	}
	words := make([]model.TranscriptWord, len(segments))
	for i, s := range segments {
		words[i] = model.TranscriptWord{Word: s.Word, Start: s.Start, End: s.End}
	}
	return words
}

// readAudioUpload reads the "file" form field, rejecting missing and
// empty uploads.
func readAudioUpload(c *gin.Context) (string, []byte, bool) {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		response.Fail(c, errors.ErrInvalidParam.WithMessage("file is required"))
		return "", nil, false
	}
	data, err := readFormFile(fileHeader)
	if err != nil {
		response.Fail(c, errors.ErrInternal.WithMessage("failed to read uploaded file").WithCause(err))
		return "", nil, false
	}
	if len(data) == 0 {
		response.Fail(c, errors.ErrInvalidParam.WithMessage("empty audio file"))
		return "", nil, false
	}
	return fileHeader.Filename, data, true
}

// Transcriptions implements the OpenAI transcription endpoint as a
// proxy to the transcription collaborator.
func (h *Handler) Transcriptions(c *gin.Context) {
	ctx := c.Request.Context()
	if !h.deps.STT.Ready(ctx) {
		response.Fail(c, errors.ErrNotInitialized.WithMessage("transcription service not ready"))
		return
	}

	filename, data, ok := readAudioUpload(c)
	if !ok {
		return
	}

	tr, err := h.deps.STT.Transcribe(ctx, filename, data, speech.TranscribeOptions{
		Language: c.PostForm("language"),
	})
	if err != nil {
		response.Fail(c, errors.ErrUpstreamUnavailable.WithMessage("transcription failed").WithCause(err))
		return
	}

	if c.PostForm("response_format") == "verbose_json" {
		response.OK(c, model.TranscriptionResponse{
			Text:     tr.Text,
			Language: tr.Language,
			Duration: tr.Duration,
			Segments: toWords(tr.Segments),
		})
		return
	}
	response.OK(c, gin.H{"text": tr.Text})
}

// Speech synthesizes audio from text through the TTS collaborator.
func (h *Handler) Speech(c *gin.Context) {
	var req model.SpeechRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.FailBind(c, err)
		return
	}

	format := req.ResponseFormat
	if format == "" {
		format = "wav"
	}

	audio, err := h.deps.TTS.Synthesize(c.Request.Context(), req.Input, req.Voice, format)
	if err != nil {
		response.Fail(c, errors.ErrUpstreamUnavailable.WithMessage("speech synthesis failed").WithCause(err))
		return
	}

	c.Header("Content-Disposition", `attachment; filename="speech.`+format+`"`)
	c.Data(http.StatusOK, speech.ContentType(format), audio)
}

// TranscribeLong handles long recordings: optional denoising, word
// timestamps, and transcript indexing when a patient is given.
func (h *Handler) TranscribeLong(c *gin.Context) {
	ctx := c.Request.Context()
	if !h.deps.STT.Ready(ctx) {
		response.Fail(c, errors.ErrNotInitialized.WithMessage("transcription service not ready"))
		return
	}

	filename, data, ok := readAudioUpload(c)
	if !ok {
		return
	}

	audio := data
	denoised := false
	if c.DefaultPostForm("denoise", "true") == "true" && h.deps.Denoiser != nil {
		cleaned, err := h.deps.Denoiser.Denoise(ctx, filename, data, true)
		if err != nil {
			// Denoising is best effort, the original audio still works.
			logger.Warnw("denoising failed, transcribing original audio", "error", err)
		} else {
			audio = cleaned
			denoised = true
		}
	}

	tr, err := h.deps.STT.Transcribe(ctx, filename, audio, speech.TranscribeOptions{
		Language:       c.PostForm("language"),
		WordTimestamps: true,
	})
	if err != nil {
		response.Fail(c, errors.ErrUpstreamUnavailable.WithMessage("transcription failed").WithCause(err))
		return
	}

	resp := model.TranscribeLongResponse{
		Text:     tr.Text,
		Duration: tr.Duration,
		Words:    toWords(tr.Segments),
		Denoised: denoised,
	}

	if patientID := c.PostForm("patient_id"); patientID != "" {
		resp.PatientID = patientID
		chunks, err := h.deps.Service.IndexTranscript(ctx, &store.Transcript{
			Text:     tr.Text,
			Filename: filename,
			Duration: tr.Duration,
		}, patientID)
		if err != nil {
			logger.Warnw("transcript indexing failed", "patient_id", patientID, "error", err)
		} else {
			resp.Indexed = true
			resp.ChunksIndexed = chunks
		}
	}

	response.OK(c, resp)
}

// Denoise proxies audio cleanup to the denoiser collaborator.
func (h *Handler) Denoise(c *gin.Context) {
	if h.deps.Denoiser == nil {
		response.Fail(c, errors.ErrNotInitialized.WithMessage("denoising service not configured"))
		return
	}

	filename, data, ok := readAudioUpload(c)
	if !ok {
		return
	}

	enhance := c.DefaultPostForm("enhance", "true") == "true"
	cleaned, err := h.deps.Denoiser.Denoise(c.Request.Context(), filename, data, enhance)
	if err != nil {
		response.Fail(c, errors.ErrUpstreamUnavailable.WithMessage("denoising failed").WithCause(err))
		return
	}

	c.Header("Content-Disposition", `attachment; filename="denoised_`+filename+`"`)
	c.Data(http.StatusOK, "audio/wav", cleaned)
}
