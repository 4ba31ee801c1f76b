package model

// TranscriptionResponse mirrors the OpenAI transcription shape.
type TranscriptionResponse struct {
	Text     string            `json:"text"`
	Language string            `json:"language,omitempty"`
	Duration float64           `json:"duration,omitempty"`
	Segments []TranscriptWord  `json:"segments,omitempty"`
}

// TranscriptWord is one timed unit of a verbose transcription.
type TranscriptWord struct {
	Word  string  `json:"word"`
	Start float64 `json:"start"`
	End   float64 `json:"end"`
}

// SpeechRequest asks for synthesized speech.
type SpeechRequest struct {
	Input          string `json:"input" binding:"required"`
	Voice          string `json:"voice"`
	ResponseFormat string `json:"response_format"`
}

// TranscribeLongResponse reports a long-form transcription and, when a
// patient is given, whether the transcript was indexed.
type TranscribeLongResponse struct {
	Text          string           `json:"text"`
	Duration      float64          `json:"duration"`
	Words         []TranscriptWord `json:"words,omitempty"`
	Denoised      bool             `json:"denoised"`
	PatientID     string           `json:"patient_id,omitempty"`
	Indexed       bool             `json:"indexed"`
	ChunksIndexed int              `json:"chunks_indexed"`
}
