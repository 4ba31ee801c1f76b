// Package speech holds the clients for the speech collaborators:
// transcription with an ordered provider fallback chain, synthesis,
// and audio denoising.
package speech

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/kart-io/logger"

	"github.com/mentis-ai/mentis/pkg/utils/httpclient"
	"github.com/mentis-ai/mentis/pkg/utils/json"
)

// STTConfig configures the transcription client.
type STTConfig struct {
	// Endpoints are candidate transcription services in preference
	// order. The first one whose health endpoint answers is used.
	Endpoints []string `json:"endpoints" mapstructure:"endpoints"`

	// Language is the default transcription language.
	Language string `json:"language" mapstructure:"language"`

	// Timeout bounds one transcription call.
	Timeout time.Duration `json:"timeout" mapstructure:"timeout"`
}

// DefaultSTTConfig returns defaults for a local whisper service.
func DefaultSTTConfig() *STTConfig {
	return &STTConfig{
		Endpoints: []string{"http://localhost:8500"},
		Language:  "de",
		Timeout:   600 * time.Second,
	}
}

// Segment is one timed unit of a transcription.
type Segment struct {
	Word  string  `json:"word"`
	Start float64 `json:"start"`
	End   float64 `json:"end"`
}

// Transcription is the result of one transcription call.
type Transcription struct {
	Text     string    `json:"text"`
	Language string    `json:"language"`
	Duration float64   `json:"duration"`
	Segments []Segment `json:"segments"`
}

// TranscribeOptions tune one transcription call.
type TranscribeOptions struct {
	// Language overrides the configured default when set.
	Language string

	// WordTimestamps asks the service for per-word timing.
	WordTimestamps bool
}

// STTClient transcribes audio through the first reachable endpoint.
type STTClient struct {
	config *STTConfig
	client *httpclient.Client

	mu     sync.Mutex
	active int // index into Endpoints, -1 when none probed yet
}

// NewSTTClient creates a transcription client.
func NewSTTClient(cfg *STTConfig) *STTClient {
	if cfg == nil {
		cfg = DefaultSTTConfig()
	}
	return &STTClient{
		config: cfg,
		client: httpclient.NewClient(cfg.Timeout, 0),
		active: -1,
	}
}

// Ready reports whether any endpoint answers.
func (s *STTClient) Ready(ctx context.Context) bool {
	_, err := s.pickEndpoint(ctx)
	return err == nil
}

// ActiveEndpoint returns the endpoint currently selected, empty when
// none has been probed successfully.
func (s *STTClient) ActiveEndpoint() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.active < 0 || s.active >= len(s.config.Endpoints) {
		return ""
	}
	return s.config.Endpoints[s.active]
}

// pickEndpoint returns the active endpoint, probing the chain in order
// when none is selected.
func (s *STTClient) pickEndpoint(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.active >= 0 && s.active < len(s.config.Endpoints) {
		return s.config.Endpoints[s.active], nil
	}

	for i, endpoint := range s.config.Endpoints {
		if s.probe(ctx, endpoint) {
			s.active = i
			logger.Infow("stt endpoint selected", "endpoint", endpoint, "rank", i)
			return endpoint, nil
		}
		logger.Warnw("stt endpoint not answering, trying next", "endpoint", endpoint)
	}

	return "", fmt.Errorf("no transcription endpoint reachable")
}

func (s *STTClient) probe(ctx context.Context, endpoint string) bool {
	probeCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(probeCtx, http.MethodGet, endpoint+"/health", nil)
	if err != nil {
		return false
	}
	resp, err := s.client.DoRequest(req)
	if err != nil {
		return false
	}
	defer func() { _ = resp.Body.Close() }()
	return resp.StatusCode < 400
}

// demote drops the active endpoint so the next call re-probes the
// chain from the top.
func (s *STTClient) demote() {
	s.mu.Lock()
	s.active = -1
	s.mu.Unlock()
}

// Transcribe sends audio to the active endpoint. A transport failure
// demotes the endpoint and retries once over the remaining chain.
func (s *STTClient) Transcribe(ctx context.Context, filename string, audio []byte, opts TranscribeOptions) (*Transcription, error) {
	language := opts.Language
	if language == "" {
		language = s.config.Language
	}

	var lastErr error
	for attempt := 0; attempt < 2; attempt++ {
		endpoint, err := s.pickEndpoint(ctx)
		if err != nil {
			return nil, err
		}

		result, err := s.transcribeOnce(ctx, endpoint, filename, audio, language, opts.WordTimestamps)
		if err == nil {
			return result, nil
		}
		lastErr = err
		s.demote()
		logger.Warnw("transcription failed, demoting endpoint", "endpoint", endpoint, "error", err)
	}

	return nil, lastErr
}

func (s *STTClient) transcribeOnce(ctx context.Context, endpoint, filename string, audio []byte, language string, wordTimestamps bool) (*Transcription, error) {
	resp, err := s.client.PostMultipart(ctx, endpoint+"/transcribe", httpclient.MultipartFile{
		FieldName:   "file",
		FileName:    filename,
		ContentType: "application/octet-stream",
		Data:        audio,
	}, map[string]string{
		"language":        language,
		"word_timestamps": strconv.FormatBool(wordTimestamps),
	})
	if err != nil {
		return nil, fmt.Errorf("transcription service unreachable: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read transcription response: %w", err)
	}
	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("transcription service returned status %d: %s", resp.StatusCode, string(body))
	}

	var result Transcription
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("failed to decode transcription response: %w", err)
	}
	return &result, nil
}
