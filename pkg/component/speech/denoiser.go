package speech

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/mentis-ai/mentis/pkg/utils/httpclient"
)

// DenoiserConfig configures the denoiser client.
type DenoiserConfig struct {
	// URL is the base URL of the denoiser service.
	URL string `json:"url" mapstructure:"url"`

	// Timeout bounds one cleanup call. Long recordings take minutes.
	Timeout time.Duration `json:"timeout" mapstructure:"timeout"`
}

// DefaultDenoiserConfig returns defaults for a local deployment.
func DefaultDenoiserConfig() *DenoiserConfig {
	return &DenoiserConfig{
		URL:     "http://localhost:8800",
		Timeout: 600 * time.Second,
	}
}

// DenoiserClient talks to the audio cleanup service.
type DenoiserClient struct {
	config *DenoiserConfig
	client *httpclient.Client
}

// NewDenoiserClient creates a denoiser client.
func NewDenoiserClient(cfg *DenoiserConfig) *DenoiserClient {
	if cfg == nil {
		cfg = DefaultDenoiserConfig()
	}
	return &DenoiserClient{
		config: cfg,
		client: httpclient.NewClient(cfg.Timeout, 0),
	}
}

// Denoise returns a cleaned copy of the audio. enhance additionally
// runs speech enhancement after noise removal.
func (d *DenoiserClient) Denoise(ctx context.Context, filename string, audio []byte, enhance bool) ([]byte, error) {
	resp, err := d.client.PostMultipart(ctx, d.config.URL+"/denoise", httpclient.MultipartFile{
		FieldName:   "file",
		FileName:    filename,
		ContentType: "application/octet-stream",
		Data:        audio,
	}, map[string]string{
		"enhance": strconv.FormatBool(enhance),
	})
	if err != nil {
		return nil, fmt.Errorf("denoiser service unreachable: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read denoiser response: %w", err)
	}
	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("denoiser service returned status %d: %s", resp.StatusCode, string(body))
	}
	return body, nil
}
