package speech

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/mentis-ai/mentis/pkg/utils/httpclient"
	"github.com/mentis-ai/mentis/pkg/utils/json"
)

// TTSConfig configures the synthesis client.
type TTSConfig struct {
	// URL is the base URL of the synthesis service.
	URL string `json:"url" mapstructure:"url"`

	// Language is passed on every synthesis request.
	Language string `json:"language" mapstructure:"language"`

	// Timeout bounds one synthesis call.
	Timeout time.Duration `json:"timeout" mapstructure:"timeout"`
}

// DefaultTTSConfig returns defaults for a local deployment.
func DefaultTTSConfig() *TTSConfig {
	return &TTSConfig{
		URL:      "http://localhost:8700",
		Language: "de",
		Timeout:  120 * time.Second,
	}
}

// ContentType maps an audio format name to its MIME type.
func ContentType(format string) string {
	switch format {
	case "mp3":
		return "audio/mpeg"
	case "opus":
		return "audio/opus"
	default:
		return "audio/wav"
	}
}

// TTSClient talks to the synthesis service.
type TTSClient struct {
	config *TTSConfig
	client *httpclient.Client
}

// NewTTSClient creates a synthesis client.
func NewTTSClient(cfg *TTSConfig) *TTSClient {
	if cfg == nil {
		cfg = DefaultTTSConfig()
	}
	return &TTSClient{
		config: cfg,
		client: httpclient.NewClient(cfg.Timeout, 0),
	}
}

type synthesizeRequest struct {
	Text     string `json:"text"`
	Language string `json:"language"`
	Voice    string `json:"voice"`
	Format   string `json:"format"`
}

// Synthesize converts text to audio bytes in the requested format.
func (t *TTSClient) Synthesize(ctx context.Context, text, voice, format string) ([]byte, error) {
	if voice == "" {
		voice = "default"
	}
	if format == "" {
		format = "wav"
	}

	payload, err := json.Marshal(synthesizeRequest{
		Text:     text,
		Language: t.config.Language,
		Voice:    voice,
		Format:   format,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal synthesis request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.config.URL+"/synthesize", bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.client.DoRequest(req)
	if err != nil {
		return nil, fmt.Errorf("synthesis service unreachable: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read synthesis response: %w", err)
	}
	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("synthesis service returned status %d: %s", resp.StatusCode, string(body))
	}
	return body, nil
}
