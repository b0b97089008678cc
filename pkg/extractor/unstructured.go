package extractor

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/finlens/finlens/internal/models"
)

// Client calls an unstructured-style partition API and adapts its response to
// the extraction oracle contract.
type Client struct {
	apiURL     string
	apiKey     string
	httpClient *http.Client
}

type ClientConfig struct {
	APIURL  string
	APIKey  string
	Timeout time.Duration
}

func NewClient(config ClientConfig) (*Client, error) {
	if config.APIURL == "" {
		return nil, fmt.Errorf("extraction API URL is required")
	}
	if config.Timeout == 0 {
		config.Timeout = 120 * time.Second
	}

	return &Client{
		apiURL:     config.APIURL,
		apiKey:     config.APIKey,
		httpClient: &http.Client{Timeout: config.Timeout},
	}, nil
}

// partitionElement mirrors the API's element shape. Tables carry their HTML
// rendition in metadata.text_as_html.
type partitionElement struct {
	Type     string `json:"type"`
	Text     string `json:"text"`
	Metadata struct {
		PageNumber int    `json:"page_number"`
		TextAsHTML string `json:"text_as_html"`
	} `json:"metadata"`
}

// Extract uploads the PDF bytes and returns typed elements in original
// document order.
func (c *Client) Extract(ctx context.Context, fileBytes []byte, filename string) ([]models.RawElement, error) {
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)

	part, err := writer.CreateFormFile("files", filename)
	if err != nil {
		return nil, fmt.Errorf("failed to build upload form: %w", err)
	}
	if _, err := part.Write(fileBytes); err != nil {
		return nil, fmt.Errorf("failed to write upload body: %w", err)
	}

	_ = writer.WriteField("strategy", "hi_res")
	_ = writer.WriteField("include_page_breaks", "true")
	_ = writer.WriteField("combine_under_n_chars", "0")

	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("failed to finalize upload form: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiURL, &body)
	if err != nil {
		return nil, fmt.Errorf("failed to build partition request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("unstructured-api-key", c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("partition request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("partition API returned %d: %s", resp.StatusCode, string(msg))
	}

	var elements []partitionElement
	if err := json.NewDecoder(resp.Body).Decode(&elements); err != nil {
		return nil, fmt.Errorf("failed to decode partition response: %w", err)
	}

	raw := make([]models.RawElement, 0, len(elements))
	for _, el := range elements {
		raw = append(raw, models.RawElement{
			Type:       el.Type,
			Text:       el.Text,
			PageNumber: el.Metadata.PageNumber,
			HTML:       el.Metadata.TextAsHTML,
		})
	}

	return raw, nil
}
