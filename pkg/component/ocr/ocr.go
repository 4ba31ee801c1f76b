// Package ocr is the client for the OCR collaborator service. The
// service accepts a PDF and returns markdown plus per-page text, which
// ingestion uses to keep page provenance on every chunk.
package ocr

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/mentis-ai/mentis/pkg/utils/httpclient"
	"github.com/mentis-ai/mentis/pkg/utils/json"
)

// Config holds client settings.
type Config struct {
	// URL is the base URL of the OCR service.
	URL string `json:"url" mapstructure:"url"`

	// Timeout bounds one extraction. OCR of large scans is slow.
	Timeout time.Duration `json:"timeout" mapstructure:"timeout"`
}

// DefaultConfig returns defaults for a local deployment.
func DefaultConfig() *Config {
	return &Config{
		URL:     "http://localhost:8600",
		Timeout: 600 * time.Second,
	}
}

// Page is the extracted text of one document page.
type Page struct {
	Page int    `json:"page"`
	Text string `json:"text"`
}

// Result is one extraction.
type Result struct {
	Markdown   string         `json:"markdown"`
	Pages      []Page         `json:"pages"`
	TotalPages int            `json:"total_pages"`
	Metadata   map[string]any `json:"metadata"`
}

// Client talks to the OCR service.
type Client struct {
	config *Config
	client *httpclient.Client
}

// New creates a client.
func New(cfg *Config) *Client {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	return &Client{
		config: cfg,
		client: httpclient.NewClient(cfg.Timeout, 0),
	}
}

// Process extracts text from one PDF.
func (c *Client) Process(ctx context.Context, filename string, data []byte) (*Result, error) {
	resp, err := c.client.PostMultipart(ctx, c.config.URL+"/process", httpclient.MultipartFile{
		FieldName:   "file",
		FileName:    filename,
		ContentType: "application/pdf",
		Data:        data,
	}, map[string]string{
		"output_format": "markdown",
	})
	// 5xx responses are consumed by the retrying transport, so err
	// covers both transport failures and exhausted server errors; only
	// 4xx responses reach the status branch below.
	if err != nil {
		return nil, fmt.Errorf("ocr request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read ocr response: %w", err)
	}
	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("ocr service returned status %d: %s", resp.StatusCode, string(body))
	}

	var result Result
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("failed to decode ocr response: %w", err)
	}
	return &result, nil
}

// Ready reports whether the OCR service answers its health endpoint.
func (c *Client) Ready(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.config.URL+"/health", nil)
	if err != nil {
		return false
	}
	resp, err := c.client.DoRequest(req)
	if err != nil {
		return false
	}
	defer func() { _ = resp.Body.Close() }()
	return resp.StatusCode < 400
}
