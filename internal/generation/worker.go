package generation

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	maxImageBytes     = 20 << 20
	maxErrorBodyBytes = 2 << 10
)

// WorkerClient calls the image generation worker over HTTP. The worker
// answers with the raw image as the response body.
type WorkerClient struct {
	client   *http.Client
	endpoint string
	apiKey   string
}

// WorkerOption configures the WorkerClient during construction.
type WorkerOption func(*WorkerClient)

// WithAPIKey sets the bearer token sent to the worker.
func WithAPIKey(key string) WorkerOption {
	return func(c *WorkerClient) {
		c.apiKey = strings.TrimSpace(key)
	}
}

// NewWorkerClient constructs a WorkerClient for the given endpoint.
func NewWorkerClient(client *http.Client, endpoint string, opts ...WorkerOption) *WorkerClient {
	if client == nil {
		client = &http.Client{Timeout: 2 * time.Minute}
	}

	c := &WorkerClient{
		client:   client,
		endpoint: strings.TrimSpace(endpoint),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type workerRequest struct {
	Prompt   string `json:"prompt"`
	Type     string `json:"type"`
	ImageURL string `json:"imageUrl,omitempty"`
}

// Generate posts the request to the worker and returns the image bytes.
func (c *WorkerClient) Generate(ctx context.Context, req Request) ([]byte, error) {
	body, err := json.Marshal(workerRequest{
		Prompt:   req.Prompt,
		Type:     string(req.Kind),
		ImageURL: req.SourceURL,
	})
	if err != nil {
		return nil, fmt.Errorf("encode worker request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create worker request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("call worker: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyBytes))
		return nil, &ProviderError{
			Provider:   "worker",
			StatusCode: resp.StatusCode,
			Detail:     strings.TrimSpace(string(snippet)),
		}
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxImageBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read worker response: %w", err)
	}
	if len(data) > maxImageBytes {
		return nil, &ProviderError{Provider: "worker", Detail: "image exceeds size limit"}
	}
	if len(data) == 0 {
		return nil, ErrEmptyImage
	}
	return data, nil
}
